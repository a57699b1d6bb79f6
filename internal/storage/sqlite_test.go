package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/volunteerhub/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	// Create temp directory for test database
	tmpDir, err := os.MkdirTemp("", "volunteerhub-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")

	store := NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func testUser(t *testing.T, store *SQLiteStorage, username string) *models.User {
	t.Helper()
	ctx := context.Background()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed-password",
		Role:         models.RoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func testOrganization(t *testing.T, store *SQLiteStorage, name string) *models.Organization {
	t.Helper()
	ctx := context.Background()
	org := &models.Organization{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Organizations().Create(ctx, org); err != nil {
		t.Fatalf("create organization %s: %v", name, err)
	}
	return org
}

func testProject(t *testing.T, store *SQLiteStorage, orgID, name string, status models.ProjectStatus) *models.Project {
	t.Helper()
	ctx := context.Background()
	project := &models.Project{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           name,
		Status:         status,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := store.Projects().Create(ctx, project); err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return project
}

func testTask(t *testing.T, store *SQLiteStorage, projectID string, taskType models.TaskType, stage models.TaskStatus) *models.ProjectTask {
	t.Helper()
	ctx := context.Background()
	task := &models.ProjectTask{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      string(taskType) + " task",
		Type:      taskType,
		Stage:     stage,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Tasks().Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// Verify tables exist by querying them
	tables := []string{
		"users", "organizations", "organization_members", "projects",
		"project_roles", "project_followers", "discussion_channels", "project_scopes",
		"project_tasks", "project_task_roles", "project_task_requirements",
		"volunteer_applications", "project_task_reviews", "project_logs",
		"notifications", "refresh_tokens", "schema_migrations",
	}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := testUser(t, store, "alice")

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user by id: %v", err)
	}
	if got == nil {
		t.Fatal("user should exist")
	}
	if got.Username != user.Username {
		t.Errorf("username = %v, want %v", got.Username, user.Username)
	}

	got, err = store.Users().GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user by username: %v", err)
	}
	if got == nil {
		t.Fatal("user should exist")
	}

	got, err = store.Users().GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if got == nil {
		t.Fatal("user should exist")
	}

	// Update
	user.FirstName = "Alice"
	user.HasVolunteerProfile = true
	user.UpdatedAt = time.Now()
	if err := store.Users().Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	got, _ = store.Users().GetByID(ctx, user.ID)
	if !got.HasVolunteerProfile {
		t.Error("has_volunteer_profile should be true after update")
	}

	// Duplicate username
	dup := &models.User{
		ID:           uuid.New().String(),
		Username:     "alice",
		Email:        "other@example.com",
		PasswordHash: "x",
		Role:         models.RoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	err = store.Users().Create(ctx, dup)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate username error = %v, want ErrDuplicate", err)
	}

	// Delete
	if err := store.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err = store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get deleted user: %v", err)
	}
	if got != nil {
		t.Error("user should be gone after delete")
	}
}

func TestUserRepository_GetByIDs(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	a := testUser(t, store, "alice")
	b := testUser(t, store, "bob")
	testUser(t, store, "carol")

	users, err := store.Users().GetByIDs(ctx, []string{a.ID, b.ID})
	if err != nil {
		t.Fatalf("get users by ids: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("len(users) = %d, want 2", len(users))
	}

	users, err = store.Users().GetByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("get users by empty ids: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("len(users) = %d, want 0", len(users))
	}
}

func TestOrganizationRepository_Members(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	user := testUser(t, store, "alice")

	if err := store.Organizations().AddMember(ctx, org.ID, user.ID, models.OrgRoleStaff); err != nil {
		t.Fatalf("add member: %v", err)
	}

	isMember, err := store.Organizations().IsMember(ctx, org.ID, user.ID)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !isMember {
		t.Error("user should be a member")
	}

	ids, err := store.Organizations().ListMemberIDs(ctx, org.ID)
	if err != nil {
		t.Fatalf("list member ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != user.ID {
		t.Errorf("member ids = %v, want [%s]", ids, user.ID)
	}

	// Adding twice is a duplicate
	err = store.Organizations().AddMember(ctx, org.ID, user.ID, models.OrgRoleStaff)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate member error = %v, want ErrDuplicate", err)
	}

	if err := store.Organizations().RemoveMember(ctx, org.ID, user.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	isMember, _ = store.Organizations().IsMember(ctx, org.ID, user.ID)
	if isMember {
		t.Error("user should no longer be a member")
	}
}

func TestProjectRepository_ListPublic(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	testProject(t, store, org.ID, "draft project", models.ProjectDraft)
	testProject(t, store, org.ID, "new project", models.ProjectNew)
	testProject(t, store, org.ID, "running project", models.ProjectInProgress)
	testProject(t, store, org.ID, "expired project", models.ProjectExpired)
	testProject(t, store, org.ID, "deleted project", models.ProjectDeleted)

	projects, err := store.Projects().ListPublic(ctx)
	if err != nil {
		t.Fatalf("list public projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("len(projects) = %d, want 2", len(projects))
	}
	for _, p := range projects {
		if !p.IsPublic() {
			t.Errorf("project %s with status %s should not be listed", p.Name, p.Status)
		}
	}
}

func TestProjectRepository_Roles(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectDraft)
	owner := testUser(t, store, "owner")
	staff := testUser(t, store, "staff")

	ownerRole := &models.ProjectRole{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		UserID:    owner.ID,
		Role:      models.ProjRoleOwner,
	}
	if err := store.Projects().AddRole(ctx, ownerRole); err != nil {
		t.Fatalf("add owner role: %v", err)
	}
	staffRole := &models.ProjectRole{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		UserID:    staff.ID,
		Role:      models.ProjRoleStaff,
	}
	if err := store.Projects().AddRole(ctx, staffRole); err != nil {
		t.Fatalf("add staff role: %v", err)
	}

	// One role per user per project
	err := store.Projects().AddRole(ctx, &models.ProjectRole{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		UserID:    owner.ID,
		Role:      models.ProjRoleStaff,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate role error = %v, want ErrDuplicate", err)
	}

	count, err := store.Projects().CountOwners(ctx, project.ID)
	if err != nil {
		t.Fatalf("count owners: %v", err)
	}
	if count != 1 {
		t.Errorf("owner count = %d, want 1", count)
	}

	got, err := store.Projects().GetRoleByUser(ctx, project.ID, staff.ID)
	if err != nil {
		t.Fatalf("get role by user: %v", err)
	}
	if got == nil || got.Role != models.ProjRoleStaff {
		t.Errorf("role = %+v, want staff role", got)
	}

	ownerIDs, err := store.Projects().ListOwnerUserIDs(ctx, project.ID)
	if err != nil {
		t.Fatalf("list owner ids: %v", err)
	}
	if len(ownerIDs) != 1 || ownerIDs[0] != owner.ID {
		t.Errorf("owner ids = %v, want [%s]", ownerIDs, owner.ID)
	}

	drafts, err := store.Projects().ListDraftsOwnedBy(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list drafts owned: %v", err)
	}
	if len(drafts) != 1 {
		t.Errorf("len(drafts) = %d, want 1", len(drafts))
	}
	drafts, _ = store.Projects().ListDraftsOwnedBy(ctx, staff.ID)
	if len(drafts) != 0 {
		t.Errorf("staff should own no drafts, got %d", len(drafts))
	}
}

func TestProjectRepository_FollowersAndChannels(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectNew)
	user := testUser(t, store, "alice")

	if err := store.Projects().AddFollower(ctx, project.ID, user.ID); err != nil {
		t.Fatalf("add follower: %v", err)
	}
	following, err := store.Projects().IsFollower(ctx, project.ID, user.ID)
	if err != nil {
		t.Fatalf("is follower: %v", err)
	}
	if !following {
		t.Error("user should be following")
	}
	err = store.Projects().AddFollower(ctx, project.ID, user.ID)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate follower error = %v, want ErrDuplicate", err)
	}
	if err := store.Projects().RemoveFollower(ctx, project.ID, user.ID); err != nil {
		t.Fatalf("remove follower: %v", err)
	}

	channel := &models.DiscussionChannel{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      "General discussion",
		CreatedAt: time.Now(),
	}
	if err := store.Projects().CreateChannel(ctx, channel); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	err = store.Projects().CreateChannel(ctx, &models.DiscussionChannel{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      "General discussion",
		CreatedAt: time.Now(),
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate channel error = %v, want ErrDuplicate", err)
	}

	channels, err := store.Projects().ListChannels(ctx, project.ID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 1 {
		t.Errorf("len(channels) = %d, want 1", len(channels))
	}
}

func TestTaskRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectNew)
	task := testTask(t, store, project.ID, models.TaskTypeScoping, models.TaskNotStarted)

	got, err := store.Tasks().GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got == nil || got.Type != models.TaskTypeScoping {
		t.Fatalf("task = %+v, want scoping task", got)
	}

	task.Stage = models.TaskStarted
	task.AcceptingVolunteers = true
	task.PercentageComplete = 0.5
	task.UpdatedAt = time.Now()
	if err := store.Tasks().Update(ctx, task); err != nil {
		t.Fatalf("update task: %v", err)
	}
	got, _ = store.Tasks().GetByID(ctx, task.ID)
	if got.Stage != models.TaskStarted || !got.AcceptingVolunteers {
		t.Errorf("task after update = %+v", got)
	}

	tasks, err := store.Tasks().ListByTypeAndStage(ctx, project.ID, models.TaskTypeScoping, models.TaskStarted)
	if err != nil {
		t.Fatalf("list by type and stage: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("len(tasks) = %d, want 1", len(tasks))
	}
}

func TestTaskRepository_ExistsNonCompleted(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectInProgress)
	scoping := testTask(t, store, project.ID, models.TaskTypeScoping, models.TaskCompleted)
	domain := testTask(t, store, project.ID, models.TaskTypeDomainWork, models.TaskStarted)

	exists, err := store.Tasks().ExistsNonCompleted(ctx, project.ID, models.TaskTypeScoping)
	if err != nil {
		t.Fatalf("exists non-completed: %v", err)
	}
	if exists {
		t.Error("scoping tasks are all completed")
	}

	exists, err = store.Tasks().ExistsNonCompleted(ctx, project.ID, "")
	if err != nil {
		t.Fatalf("exists non-completed: %v", err)
	}
	if !exists {
		t.Error("domain task is still started")
	}

	domain.Stage = models.TaskDeleted
	domain.UpdatedAt = time.Now()
	if err := store.Tasks().Update(ctx, domain); err != nil {
		t.Fatalf("update task: %v", err)
	}
	exists, _ = store.Tasks().ExistsNonCompleted(ctx, project.ID, "")
	if exists {
		t.Error("deleted tasks do not count as pending work")
	}

	_ = scoping
}

func TestTaskRepository_VolunteerRoles(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectInProgress)
	scoping := testTask(t, store, project.ID, models.TaskTypeScoping, models.TaskStarted)
	domain := testTask(t, store, project.ID, models.TaskTypeDomainWork, models.TaskStarted)
	alice := testUser(t, store, "alice")
	bob := testUser(t, store, "bob")

	addRole := func(taskID, userID string) {
		t.Helper()
		err := store.Tasks().AddRole(ctx, &models.ProjectTaskRole{
			ID:     uuid.New().String(),
			TaskID: taskID,
			UserID: userID,
			Role:   models.TaskRoleVolunteer,
		})
		if err != nil {
			t.Fatalf("add task role: %v", err)
		}
	}
	addRole(scoping.ID, alice.ID)
	addRole(domain.ID, bob.ID)

	has, err := store.Tasks().HasVolunteers(ctx, scoping.ID)
	if err != nil {
		t.Fatalf("has volunteers: %v", err)
	}
	if !has {
		t.Error("scoping task should have volunteers")
	}

	// Same user twice on one task is a duplicate
	err = store.Tasks().AddRole(ctx, &models.ProjectTaskRole{
		ID:     uuid.New().String(),
		TaskID: scoping.ID,
		UserID: alice.ID,
		Role:   models.TaskRoleVolunteer,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate task role error = %v, want ErrDuplicate", err)
	}

	ids, err := store.Tasks().ListVolunteerUserIDs(ctx, project.ID, nil, nil)
	if err != nil {
		t.Fatalf("list volunteer ids: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(ids) = %d, want 2", len(ids))
	}

	ids, err = store.Tasks().ListVolunteerUserIDs(ctx, project.ID,
		[]models.TaskType{models.TaskTypeScoping}, []models.TaskStatus{models.TaskStarted})
	if err != nil {
		t.Fatalf("list volunteer ids filtered: %v", err)
	}
	if len(ids) != 1 || ids[0] != alice.ID {
		t.Errorf("ids = %v, want [%s]", ids, alice.ID)
	}

	role, err := store.Tasks().GetRoleByUser(ctx, scoping.ID, alice.ID)
	if err != nil {
		t.Fatalf("get role by user: %v", err)
	}
	if role == nil {
		t.Fatal("role should exist")
	}
	if err := store.Tasks().DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("delete role: %v", err)
	}
	has, _ = store.Tasks().HasVolunteers(ctx, scoping.ID)
	if has {
		t.Error("scoping task should have no volunteers left")
	}
}

func TestApplicationRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectInProgress)
	task := testTask(t, store, project.ID, models.TaskTypeDomainWork, models.TaskStarted)
	volunteer := testUser(t, store, "vol")
	reviewer := testUser(t, store, "owner")

	app := &models.VolunteerApplication{
		ID:              uuid.New().String(),
		TaskID:          task.ID,
		VolunteerID:     volunteer.ID,
		Status:          models.ReviewNew,
		ApplicationDate: time.Now(),
	}
	if err := store.Applications().Create(ctx, app); err != nil {
		t.Fatalf("create application: %v", err)
	}

	pending, err := store.Applications().HasPendingForVolunteer(ctx, task.ID, volunteer.ID)
	if err != nil {
		t.Fatalf("has pending: %v", err)
	}
	if !pending {
		t.Error("volunteer should have a pending application")
	}

	now := time.Now()
	app.Status = models.ReviewAccepted
	app.ReviewerID = reviewer.ID
	app.ResolutionDate = &now
	if err := store.Applications().Update(ctx, app); err != nil {
		t.Fatalf("update application: %v", err)
	}

	pending, _ = store.Applications().HasPendingForVolunteer(ctx, task.ID, volunteer.ID)
	if pending {
		t.Error("resolved application should not count as pending")
	}

	apps, err := store.Applications().ListByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list by project: %v", err)
	}
	if len(apps) != 1 || apps[0].ReviewerID != reviewer.ID {
		t.Errorf("apps = %+v", apps)
	}
}

func TestReviewRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectInProgress)
	task := testTask(t, store, project.ID, models.TaskTypeDomainWork, models.TaskWaitingReview)
	volunteer := testUser(t, store, "vol")

	review := &models.ProjectTaskReview{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		VolunteerID: volunteer.ID,
		Result:      models.ReviewNew,
		EffortHours: 12.5,
		CreatedAt:   time.Now(),
	}
	if err := store.Reviews().Create(ctx, review); err != nil {
		t.Fatalf("create review: %v", err)
	}

	pendingReviews, err := store.Reviews().ListPendingByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list pending reviews: %v", err)
	}
	if len(pendingReviews) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pendingReviews))
	}
	if pendingReviews[0].EffortHours != 12.5 {
		t.Errorf("effort hours = %v, want 12.5", pendingReviews[0].EffortHours)
	}

	now := time.Now()
	review.Result = models.ReviewAccepted
	review.ReviewDate = &now
	if err := store.Reviews().Update(ctx, review); err != nil {
		t.Fatalf("update review: %v", err)
	}

	pendingReviews, _ = store.Reviews().ListPendingByProject(ctx, project.ID)
	if len(pendingReviews) != 0 {
		t.Errorf("resolved review should not be pending, got %d", len(pendingReviews))
	}
}

func TestProjectLogRepository_Append(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	org := testOrganization(t, store, "Data For Good")
	project := testProject(t, store, org.ID, "p1", models.ProjectNew)
	author := testUser(t, store, "owner")

	for i := 0; i < 3; i++ {
		entry := &models.ProjectLog{
			ID:          uuid.New().String(),
			ProjectID:   project.ID,
			AuthorID:    author.ID,
			ChangeType:  models.LogEdit,
			Source:      models.LogSourceInformation,
			Description: fmt.Sprintf("edit %d", i),
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.Logs().Append(ctx, entry); err != nil {
			t.Fatalf("append log: %v", err)
		}
	}

	entries, err := store.Logs().ListByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	// Newest first
	if entries[0].Description != "edit 2" {
		t.Errorf("first entry = %s, want edit 2", entries[0].Description)
	}
}

func TestNotificationRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := testUser(t, store, "alice")

	for i := 0; i < 3; i++ {
		n := &models.Notification{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Message:   fmt.Sprintf("message %d", i),
			Severity:  models.SeverityInfo,
			Source:    models.SourceProject,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.Notifications().Create(ctx, n); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}

	count, err := store.Notifications().CountUnread(ctx, user.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 3 {
		t.Errorf("unread = %d, want 3", count)
	}

	list, err := store.Notifications().ListByUser(ctx, user.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}

	if err := store.Notifications().MarkRead(ctx, user.ID, list[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, _ = store.Notifications().CountUnread(ctx, user.ID)
	if count != 2 {
		t.Errorf("unread after mark = %d, want 2", count)
	}

	if err := store.Notifications().MarkAllRead(ctx, user.ID); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	count, _ = store.Notifications().CountUnread(ctx, user.ID)
	if count != 0 {
		t.Errorf("unread after mark all = %d, want 0", count)
	}
}

func TestTokenRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := testUser(t, store, "alice")

	token, plain, err := models.NewRefreshToken(user.ID, time.Hour)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if err := store.Tokens().Create(ctx, token); err != nil {
		t.Fatalf("create token: %v", err)
	}

	got, err := store.Tokens().GetByTokenHash(ctx, models.HashToken(plain))
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got == nil || !got.IsValid() {
		t.Fatalf("token = %+v, want valid token", got)
	}

	if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
		t.Fatalf("revoke tokens: %v", err)
	}
	got, _ = store.Tokens().GetByTokenHash(ctx, models.HashToken(plain))
	if got.IsValid() {
		t.Error("token should be revoked")
	}
}

func TestInTransaction_RollbackOnError(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := store.InTransaction(ctx, func(tx Storage) error {
		user := &models.User{
			ID:           uuid.New().String(),
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "x",
			Role:         models.RoleUser,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("transaction should return the error")
	}

	got, err := store.Users().GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got != nil {
		t.Error("insert should have been rolled back")
	}
}

func TestInTransaction_CommitAndJoin(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := store.InTransaction(ctx, func(tx Storage) error {
		user := &models.User{
			ID:           uuid.New().String(),
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "x",
			Role:         models.RoleUser,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		// Nested call joins the same transaction
		return tx.InTransaction(ctx, func(inner Storage) error {
			got, err := inner.Users().GetByUsername(ctx, "alice")
			if err != nil {
				return err
			}
			if got == nil {
				return errors.New("nested scope should see uncommitted insert")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	got, err := store.Users().GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil {
		t.Error("insert should have been committed")
	}
}
