package domain

import (
	"context"
	"testing"

	"github.com/civicworks/volunteerhub/internal/models"
)

func TestCreateProject_Defaults(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	project := env.createProject(t, owner)

	if project.Status != models.ProjectDraft {
		t.Errorf("status = %s, want draft", project.Status)
	}

	// Exactly one task of each type
	tasks, err := env.store.Tasks().ListByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len(tasks) = %d, want 3", len(tasks))
	}
	byType := map[models.TaskType]*models.ProjectTask{}
	for _, task := range tasks {
		byType[task.Type] = task
	}
	for _, taskType := range []models.TaskType{models.TaskTypeScoping, models.TaskTypeProjectManagement, models.TaskTypeDomainWork} {
		if byType[taskType] == nil {
			t.Errorf("missing default task of type %s", taskType)
		}
	}
	for _, task := range tasks {
		if task.AcceptingVolunteers {
			t.Errorf("%s task should start closed to volunteers", task.Type)
		}
	}

	// The scope history starts with an initial version
	scopes, err := env.store.Projects().ListScopes(ctx, project.ID)
	if err != nil {
		t.Fatalf("list scopes: %v", err)
	}
	if len(scopes) != 1 {
		t.Fatalf("len(scopes) = %d, want 1", len(scopes))
	}
	if scopes[0].AuthorID != owner.ID {
		t.Errorf("initial scope author = %s, want creator", scopes[0].AuthorID)
	}

	// Exactly three discussion channels
	channels, err := env.store.Projects().ListChannels(ctx, project.ID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 3 {
		t.Errorf("len(channels) = %d, want 3", len(channels))
	}

	// The creator owns the project
	role, err := env.store.Projects().GetRoleByUser(ctx, project.ID, owner.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if role == nil || role.Role != models.ProjRoleOwner {
		t.Errorf("creator role = %+v, want owner", role)
	}

	// Exactly two notifications (org broadcast + creator), zero log entries
	if got := env.countNotifications(t, owner.ID); got != 2 {
		t.Errorf("notifications = %d, want 2", got)
	}
	if got := env.countLogs(t, project.ID); got != 0 {
		t.Errorf("log entries = %d, want 0", got)
	}
}

func TestCreateProject_RequiresOrgMembership(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	member := env.createUser(t, "member", false)
	outsider := env.createUser(t, "outsider", false)
	org := env.createOrganization(t, "Org", member)

	_, err := env.projects.CreateProject(ctx, outsider, &models.Project{
		OrganizationID: org.ID,
		Name:           "Nope",
	})
	if !IsPermissionDenied(err) {
		t.Errorf("err = %v, want permission denied", err)
	}
}

func TestPublish(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	project := env.createProject(t, owner)
	notificationsBefore := env.countNotifications(t, owner.ID)

	published, err := env.projects.Publish(ctx, owner, project.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != models.ProjectNew {
		t.Errorf("status = %s, want new", published.Status)
	}
	if published.ActualStartDate == nil {
		t.Error("actual start date should be stamped")
	}

	entries, err := env.store.Logs().ListByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0].ChangeType != models.LogAdd || entries[0].Source != models.LogSourceStatus {
		t.Errorf("log entry = %s/%s, want add/status", entries[0].ChangeType, entries[0].Source)
	}

	if got := env.countNotifications(t, owner.ID); got != notificationsBefore+1 {
		t.Errorf("notifications = %d, want %d", got, notificationsBefore+1)
	}
}

func TestPublish_DeniedForStaff(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	staff := env.createUser(t, "staff", false)
	project := env.createProject(t, owner)
	if err := env.projects.AddStaffRole(ctx, owner, &models.ProjectRole{
		ProjectID: project.ID,
		UserID:    staff.ID,
		Role:      models.ProjRoleStaff,
	}); err != nil {
		t.Fatalf("add staff role: %v", err)
	}
	logsBefore := env.countLogs(t, project.ID)

	_, err := env.projects.Publish(ctx, staff, project.ID)
	if !IsPermissionDenied(err) {
		t.Fatalf("err = %v, want permission denied", err)
	}

	// Atomicity: no status change, no log entry
	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectDraft {
		t.Errorf("status = %s, want draft", got.Status)
	}
	if got := env.countLogs(t, project.ID); got != logsBefore {
		t.Errorf("log entries = %d, want %d", got, logsBefore)
	}
}

func TestPublish_AlreadyPublishedStillNotifiesAndLogs(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	project := env.createProject(t, owner)

	if _, err := env.projects.Publish(ctx, owner, project.ID); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	logsBefore := env.countLogs(t, project.ID)
	notificationsBefore := env.countNotifications(t, owner.ID)

	published, err := env.projects.Publish(ctx, owner, project.ID)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if published.Status != models.ProjectNew {
		t.Errorf("status = %s, want new", published.Status)
	}
	// The notification and log fire even without a state change.
	if got := env.countLogs(t, project.ID); got != logsBefore+1 {
		t.Errorf("log entries = %d, want %d", got, logsBefore+1)
	}
	if got := env.countNotifications(t, owner.ID); got != notificationsBefore+1 {
		t.Errorf("notifications = %d, want %d", got, notificationsBefore+1)
	}
}

func TestFinish(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectWaitingReview)

	finished, err := env.projects.Finish(ctx, owner, project.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.Status != models.ProjectCompleted {
		t.Errorf("status = %s, want completed", finished.Status)
	}
	if finished.ActualEndDate == nil {
		t.Error("actual end date should be stamped")
	}
}

func TestLastOwnerInvariant(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	project := env.createProject(t, owner)

	role, err := env.store.Projects().GetRoleByUser(ctx, project.ID, owner.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}

	// Removing the only owner fails
	err = env.projects.DeleteStaffRole(ctx, owner, project.ID, role.ID)
	if !IsLastOwner(err) {
		t.Errorf("delete err = %v, want last owner", err)
	}

	// Demoting the only owner fails
	err = env.projects.SaveStaffRole(ctx, owner, &models.ProjectRole{
		ID:        role.ID,
		ProjectID: project.ID,
		UserID:    owner.ID,
		Role:      models.ProjRoleStaff,
	})
	if !IsLastOwner(err) {
		t.Errorf("demote err = %v, want last owner", err)
	}

	// With a second owner the demotion goes through
	second := env.createUser(t, "second", false)
	if err := env.projects.AddStaffRole(ctx, owner, &models.ProjectRole{
		ProjectID: project.ID,
		UserID:    second.ID,
		Role:      models.ProjRoleOwner,
	}); err != nil {
		t.Fatalf("add second owner: %v", err)
	}
	if err := env.projects.SaveStaffRole(ctx, owner, &models.ProjectRole{
		ID:        role.ID,
		ProjectID: project.ID,
		UserID:    owner.ID,
		Role:      models.ProjRoleStaff,
	}); err != nil {
		t.Fatalf("demote with second owner: %v", err)
	}

	owners, err := env.store.Projects().CountOwners(ctx, project.ID)
	if err != nil {
		t.Fatalf("count owners: %v", err)
	}
	if owners != 1 {
		t.Errorf("owners = %d, want 1", owners)
	}
}

func TestAddStaffRole_Duplicate(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	project := env.createProject(t, owner)

	err := env.projects.AddStaffRole(ctx, owner, &models.ProjectRole{
		ProjectID: project.ID,
		UserID:    owner.ID,
		Role:      models.ProjRoleStaff,
	})
	if !IsDuplicate(err) {
		t.Errorf("err = %v, want duplicate", err)
	}
}

func TestToggleFollower(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	follower := env.createUser(t, "follower", false)
	project := env.createProject(t, owner)

	following, err := env.projects.ToggleFollower(ctx, follower, project.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !following {
		t.Error("first toggle should follow")
	}
	following, err = env.projects.ToggleFollower(ctx, follower, project.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if following {
		t.Error("second toggle should unfollow")
	}
}

func TestUpdateScope_AppendsVersion(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	project := env.createProject(t, owner)

	err := env.projects.UpdateScope(ctx, owner, project.ID, &models.ProjectScope{
		ProjectImpact: "Helps the community",
		VersionNotes:  "first draft",
	})
	if err != nil {
		t.Fatalf("update scope: %v", err)
	}

	// The initial version from project creation plus the update.
	scopes, err := env.store.Projects().ListScopes(ctx, project.ID)
	if err != nil {
		t.Fatalf("list scopes: %v", err)
	}
	if len(scopes) != 2 {
		t.Fatalf("len(scopes) = %d, want 2", len(scopes))
	}
	if got := env.reloadProject(t, project.ID); got.ProjectImpact != "Helps the community" {
		t.Errorf("project impact = %q, want copied scope", got.ProjectImpact)
	}
}
