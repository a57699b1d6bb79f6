package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

type testEnv struct {
	store    storage.Storage
	reg      *Registry
	projects *ProjectService
	tasks    *TaskService
	workflow *WorkflowService
}

func newTestEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "volunteerhub-domain-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store := storage.NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	reg := NewRegistry()
	perms := NewEvaluator(reg)
	sink := NewStorageSink()
	changelog := NewStorageChangeLog()
	projects := NewProjectService(store, perms, reg, sink, changelog)
	tasks := NewTaskService(store, perms, reg, sink, changelog, projects)
	workflow := NewWorkflowService(store, perms, reg, sink, changelog, projects, tasks)

	env := &testEnv{
		store:    store,
		reg:      reg,
		projects: projects,
		tasks:    tasks,
		workflow: workflow,
	}
	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return env, cleanup
}

func (e *testEnv) createUser(t *testing.T, username string, volunteerProfile bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:                  uuid.New().String(),
		Username:            username,
		Email:               username + "@example.com",
		PasswordHash:        "x",
		Role:                models.RoleUser,
		HasVolunteerProfile: volunteerProfile,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	if err := e.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func (e *testEnv) createOrganization(t *testing.T, name string, members ...*models.User) *models.Organization {
	t.Helper()
	ctx := context.Background()
	org := &models.Organization{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := e.store.Organizations().Create(ctx, org); err != nil {
		t.Fatalf("create organization: %v", err)
	}
	for _, m := range members {
		if err := e.store.Organizations().AddMember(ctx, org.ID, m.ID, models.OrgRoleStaff); err != nil {
			t.Fatalf("add org member: %v", err)
		}
	}
	return org
}

// createProject sets up an organization owned project through the real
// creation path, so the default tasks and channels exist.
func (e *testEnv) createProject(t *testing.T, owner *models.User) *models.Project {
	t.Helper()
	org := e.createOrganization(t, "Org for "+owner.Username+" "+uuid.New().String()[:8], owner)
	project, err := e.projects.CreateProject(context.Background(), owner, &models.Project{
		OrganizationID: org.ID,
		Name:           "Test project",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func (e *testEnv) setProjectStatus(t *testing.T, project *models.Project, status models.ProjectStatus) {
	t.Helper()
	project.Status = status
	project.UpdatedAt = time.Now()
	if err := e.store.Projects().Update(context.Background(), project); err != nil {
		t.Fatalf("set project status: %v", err)
	}
}

func (e *testEnv) taskByType(t *testing.T, projectID string, taskType models.TaskType) *models.ProjectTask {
	t.Helper()
	tasks, err := e.store.Tasks().ListByProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	for _, task := range tasks {
		if task.Type == taskType {
			return task
		}
	}
	t.Fatalf("no task of type %s on project %s", taskType, projectID)
	return nil
}

func (e *testEnv) setTaskStage(t *testing.T, task *models.ProjectTask, stage models.TaskStatus) {
	t.Helper()
	task.Stage = stage
	task.UpdatedAt = time.Now()
	if err := e.store.Tasks().Update(context.Background(), task); err != nil {
		t.Fatalf("set task stage: %v", err)
	}
}

func (e *testEnv) openTask(t *testing.T, task *models.ProjectTask) {
	t.Helper()
	task.AcceptingVolunteers = true
	if err := e.store.Tasks().Update(context.Background(), task); err != nil {
		t.Fatalf("open task: %v", err)
	}
}

func (e *testEnv) addVolunteer(t *testing.T, task *models.ProjectTask, user *models.User) *models.ProjectTaskRole {
	t.Helper()
	role := &models.ProjectTaskRole{
		ID:     uuid.New().String(),
		TaskID: task.ID,
		UserID: user.ID,
		Role:   models.TaskRoleVolunteer,
	}
	if err := e.store.Tasks().AddRole(context.Background(), role); err != nil {
		t.Fatalf("add volunteer role: %v", err)
	}
	return role
}

func (e *testEnv) reloadProject(t *testing.T, id string) *models.Project {
	t.Helper()
	project, err := e.store.Projects().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload project: %v", err)
	}
	if project == nil {
		t.Fatalf("project %s disappeared", id)
	}
	return project
}

func (e *testEnv) reloadTask(t *testing.T, id string) *models.ProjectTask {
	t.Helper()
	task, err := e.store.Tasks().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if task == nil {
		t.Fatalf("task %s disappeared", id)
	}
	return task
}

func (e *testEnv) countLogs(t *testing.T, projectID string) int {
	t.Helper()
	entries, err := e.store.Logs().ListByProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	return len(entries)
}

func (e *testEnv) latestNotification(t *testing.T, userID string) *models.Notification {
	t.Helper()
	list, err := e.store.Notifications().ListByUser(context.Background(), userID, false, 1, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("no notifications")
	}
	return list[0]
}

func (e *testEnv) countNotifications(t *testing.T, userID string) int {
	t.Helper()
	list, err := e.store.Notifications().ListByUser(context.Background(), userID, false, 1000, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return len(list)
}
