package domain

import (
	"context"
	"testing"

	"github.com/civicworks/volunteerhub/internal/models"
)

func TestApplyToVolunteer_RequiresProfile(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	noProfile := env.createUser(t, "noprofile", false)
	project := env.createProject(t, owner)
	task := env.taskByType(t, project.ID, models.TaskTypeScoping)
	env.openTask(t, task)

	_, err := env.workflow.ApplyToVolunteer(ctx, noProfile, task.ID, "let me help")
	if !IsInvalidState(err) {
		t.Errorf("err = %v, want invalid state", err)
	}
}

func TestApplyToVolunteer_DuplicateGuards(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	task := env.taskByType(t, project.ID, models.TaskTypeScoping)
	env.openTask(t, task)

	if _, err := env.workflow.ApplyToVolunteer(ctx, volunteer, task.ID, ""); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// Second pending application
	_, err := env.workflow.ApplyToVolunteer(ctx, volunteer, task.ID, "")
	if !IsDuplicate(err) {
		t.Errorf("second apply err = %v, want duplicate", err)
	}

	// Holding a role on the task also blocks applying
	holder := env.createUser(t, "holder", true)
	env.addVolunteer(t, task, holder)
	_, err = env.workflow.ApplyToVolunteer(ctx, holder, task.ID, "")
	if !IsDuplicate(err) {
		t.Errorf("role holder apply err = %v, want duplicate", err)
	}
}

func TestAcceptApplication_StartsTaskAndProject(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectNew)
	scoping := env.taskByType(t, project.ID, models.TaskTypeScoping)
	env.openTask(t, scoping)

	app, err := env.workflow.ApplyToVolunteer(ctx, volunteer, scoping.ID, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := env.workflow.AcceptApplication(ctx, owner, app.ID, "welcome"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Role created, task started, project moved NEW -> DESIGN
	role, err := env.store.Tasks().GetRoleByUser(ctx, scoping.ID, volunteer.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if role == nil {
		t.Fatal("acceptance should create a volunteer role")
	}
	task := env.reloadTask(t, scoping.ID)
	if task.Stage != models.TaskStarted {
		t.Errorf("stage = %s, want started", task.Stage)
	}
	if task.ActualStartDate == nil {
		t.Error("actual start date should be stamped")
	}
	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectDesign {
		t.Errorf("status = %s, want design", got.Status)
	}

	resolved, err := env.store.Applications().GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if resolved.Status != models.ReviewAccepted || resolved.ReviewerID != owner.ID || resolved.ResolutionDate == nil {
		t.Errorf("application = %+v, want accepted with reviewer and date", resolved)
	}
}

// A scoping volunteer accepted before publication starts the task while
// the project is still a draft. The NEW -> DESIGN transition must then
// fire on a later acceptance, not only on the one that starts the task.
func TestAcceptApplication_AfterPrePublishAcceptance(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	first := env.createUser(t, "vol-first", true)
	second := env.createUser(t, "vol-second", true)
	project := env.createProject(t, owner)
	scoping := env.taskByType(t, project.ID, models.TaskTypeScoping)
	env.openTask(t, scoping)

	app, err := env.workflow.ApplyToVolunteer(ctx, first, scoping.ID, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := env.workflow.AcceptApplication(ctx, owner, app.ID, ""); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectDraft {
		t.Fatalf("status = %s, want draft before publication", got.Status)
	}

	if _, err := env.projects.Publish(ctx, owner, project.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	app, err = env.workflow.ApplyToVolunteer(ctx, second, scoping.ID, "")
	if err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if err := env.workflow.AcceptApplication(ctx, owner, app.ID, ""); err != nil {
		t.Fatalf("accept second: %v", err)
	}

	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectDesign {
		t.Errorf("status = %s, want design", got.Status)
	}
}

func TestAcceptApplication_DomainWorkStartsProject(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectWaitingStaff)
	domainTask := env.taskByType(t, project.ID, models.TaskTypeDomainWork)
	env.openTask(t, domainTask)

	app, err := env.workflow.ApplyToVolunteer(ctx, volunteer, domainTask.ID, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := env.workflow.AcceptApplication(ctx, owner, app.ID, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectInProgress {
		t.Errorf("status = %s, want in_progress", got.Status)
	}
}

func TestApplication_SingleResolution(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	task := env.taskByType(t, project.ID, models.TaskTypeScoping)
	env.openTask(t, task)

	app, err := env.workflow.ApplyToVolunteer(ctx, volunteer, task.ID, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := env.workflow.RejectApplication(ctx, owner, app.ID, "not now"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	err = env.workflow.AcceptApplication(ctx, owner, app.ID, "")
	if !IsInvalidState(err) {
		t.Errorf("re-resolve err = %v, want invalid state", err)
	}
	err = env.workflow.RejectApplication(ctx, owner, app.ID, "")
	if !IsInvalidState(err) {
		t.Errorf("re-reject err = %v, want invalid state", err)
	}
}

// Full scoping QA round trip: DESIGN -> WAITING_DESIGN_APPROVAL on
// submission, back to DESIGN with the task back to STARTED on rejection.
func TestScopingReviewRejection_RevertsProject(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectDesign)
	scoping := env.taskByType(t, project.ID, models.TaskTypeScoping)
	env.setTaskStage(t, scoping, models.TaskStarted)
	env.addVolunteer(t, scoping, volunteer)

	review, err := env.tasks.MarkCompletedByVolunteer(ctx, volunteer, project.ID, scoping.ID, 20, "scope ready")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectWaitingDesignApproval {
		t.Fatalf("status = %s, want waiting_design_approval", got.Status)
	}

	if err := env.workflow.RejectReview(ctx, owner, review.ID, "needs more detail"); err != nil {
		t.Fatalf("reject review: %v", err)
	}
	if got := env.reloadTask(t, scoping.ID); got.Stage != models.TaskStarted {
		t.Errorf("task stage = %s, want started", got.Stage)
	}
	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectDesign {
		t.Errorf("status = %s, want design", got.Status)
	}

	resolved, err := env.store.Reviews().GetByID(ctx, review.ID)
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if resolved.Result != models.ReviewRejected || resolved.ReviewerID != owner.ID || resolved.ReviewDate == nil {
		t.Errorf("review = %+v, want rejected with reviewer and date", resolved)
	}
}

func TestScopingReviewAccepted_OpensStaffing(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectDesign)
	scoping := env.taskByType(t, project.ID, models.TaskTypeScoping)
	env.setTaskStage(t, scoping, models.TaskStarted)
	env.addVolunteer(t, scoping, volunteer)

	review, err := env.tasks.MarkCompletedByVolunteer(ctx, volunteer, project.ID, scoping.ID, 20, "")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := env.workflow.AcceptReview(ctx, owner, review.ID, "great scope"); err != nil {
		t.Fatalf("accept review: %v", err)
	}

	task := env.reloadTask(t, scoping.ID)
	if task.Stage != models.TaskCompleted {
		t.Errorf("stage = %s, want completed", task.Stage)
	}
	if task.AcceptingVolunteers {
		t.Error("completed task should not accept volunteers")
	}
	if task.PercentageComplete != 1.0 {
		t.Errorf("percentage = %v, want 1.0", task.PercentageComplete)
	}
	if task.ActualEffortHours != 20 {
		t.Errorf("actual effort = %v, want reported 20", task.ActualEffortHours)
	}
	if task.ActualEndDate == nil {
		t.Error("actual end date should be stamped")
	}

	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectWaitingStaff {
		t.Errorf("status = %s, want waiting_staff", got.Status)
	}
	if got := env.reloadTask(t, env.taskByType(t, project.ID, models.TaskTypeDomainWork).ID); !got.AcceptingVolunteers {
		t.Error("domain work should open to volunteers when scoping is approved")
	}
}

func TestReview_SingleResolution(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectInProgress)
	task := env.taskByType(t, project.ID, models.TaskTypeDomainWork)
	env.setTaskStage(t, task, models.TaskStarted)
	env.addVolunteer(t, task, volunteer)

	review, err := env.tasks.MarkCompletedByVolunteer(ctx, volunteer, project.ID, task.ID, 5, "")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := env.workflow.AcceptReview(ctx, owner, review.ID, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	err = env.workflow.RejectReview(ctx, owner, review.ID, "")
	if !IsInvalidState(err) {
		t.Errorf("re-resolve err = %v, want invalid state", err)
	}
}

// Last domain task completes while project management remains open:
// officials get a warning, the project status stays put.
func TestDomainWorkDone_OtherTasksOpen_WarnsOnly(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectInProgress)

	// Scoping done, project management still open
	env.setTaskStage(t, env.taskByType(t, project.ID, models.TaskTypeScoping), models.TaskCompleted)
	env.setTaskStage(t, env.taskByType(t, project.ID, models.TaskTypeProjectManagement), models.TaskStarted)

	task := env.taskByType(t, project.ID, models.TaskTypeDomainWork)
	env.setTaskStage(t, task, models.TaskStarted)
	env.addVolunteer(t, task, volunteer)

	notificationsBefore := env.countNotifications(t, owner.ID)
	review, err := env.tasks.MarkCompletedByVolunteer(ctx, volunteer, project.ID, task.ID, 3, "")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := env.workflow.AcceptReview(ctx, owner, review.ID, ""); err != nil {
		t.Fatalf("accept review: %v", err)
	}

	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectInProgress {
		t.Errorf("status = %s, want unchanged in_progress", got.Status)
	}
	if got := env.countNotifications(t, owner.ID); got <= notificationsBefore {
		t.Error("owner should have been warned about remaining open tasks")
	}
}

func TestAllTasksDone_MovesToFinalQA(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	env.setProjectStatus(t, project, models.ProjectInProgress)

	env.setTaskStage(t, env.taskByType(t, project.ID, models.TaskTypeScoping), models.TaskCompleted)
	env.setTaskStage(t, env.taskByType(t, project.ID, models.TaskTypeProjectManagement), models.TaskCompleted)

	task := env.taskByType(t, project.ID, models.TaskTypeDomainWork)
	env.setTaskStage(t, task, models.TaskStarted)
	env.addVolunteer(t, task, volunteer)

	review, err := env.tasks.MarkCompletedByVolunteer(ctx, volunteer, project.ID, task.ID, 3, "")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := env.workflow.AcceptReview(ctx, owner, review.ID, ""); err != nil {
		t.Fatalf("accept review: %v", err)
	}

	if got := env.reloadProject(t, project.ID); got.Status != models.ProjectWaitingReview {
		t.Errorf("status = %s, want waiting_review", got.Status)
	}
}

func TestCancelVolunteering_ReopensTask(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	task := env.taskByType(t, project.ID, models.TaskTypeDomainWork)
	env.setTaskStage(t, task, models.TaskStarted)
	env.addVolunteer(t, task, volunteer)

	if err := env.workflow.CancelVolunteering(ctx, volunteer, task.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got := env.reloadTask(t, task.ID)
	if got.Stage != models.TaskStarted {
		t.Errorf("stage = %s, want started", got.Stage)
	}
	if !got.AcceptingVolunteers {
		t.Error("task should reopen to applications")
	}

	// Members hear about the departure at error severity, the departing
	// volunteer gets a plain confirmation.
	if note := env.latestNotification(t, owner.ID); note.Severity != models.SeverityError {
		t.Errorf("member notification severity = %s, want error", note.Severity)
	}
	if note := env.latestNotification(t, volunteer.ID); note.Severity != models.SeverityInfo {
		t.Errorf("volunteer notification severity = %s, want info", note.Severity)
	}

	err := env.workflow.CancelVolunteering(ctx, volunteer, task.ID)
	if !IsNotFound(err) {
		t.Errorf("second cancel err = %v, want not found", err)
	}
}

func TestDeleteVolunteerRole(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	owner := env.createUser(t, "owner", false)
	volunteer := env.createUser(t, "vol", true)
	project := env.createProject(t, owner)
	task := env.taskByType(t, project.ID, models.TaskTypeDomainWork)
	env.setTaskStage(t, task, models.TaskStarted)
	role := env.addVolunteer(t, task, volunteer)

	if err := env.workflow.DeleteVolunteerRole(ctx, owner, project.ID, task.ID, role.ID); err != nil {
		t.Fatalf("delete volunteer role: %v", err)
	}
	still, err := env.store.Tasks().GetRoleByUser(ctx, task.ID, volunteer.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if still != nil {
		t.Error("role should be gone")
	}
	if got := env.reloadTask(t, task.ID); !got.AcceptingVolunteers {
		t.Error("task should reopen to applications")
	}
}
