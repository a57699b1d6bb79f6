package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/volunteerhub/internal/metrics"
	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

// WorkflowService runs the volunteer application pipeline and the task
// QA review pipeline. Both resolve exactly once, and both feed stage
// changes back into the project engine.
type WorkflowService struct {
	store    storage.Storage
	perms    PermissionChecker
	reg      *Registry
	sink     Sink
	log      ChangeLogger
	projects *ProjectService
	tasks    *TaskService
}

// NewWorkflowService creates an application and review workflow engine.
func NewWorkflowService(store storage.Storage, perms PermissionChecker, reg *Registry, sink Sink, log ChangeLogger,
	projects *ProjectService, tasks *TaskService) *WorkflowService {
	return &WorkflowService{store: store, perms: perms, reg: reg, sink: sink, log: log, projects: projects, tasks: tasks}
}

func (s *WorkflowService) loadTask(ctx context.Context, taskID string) (*models.ProjectTask, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFoundf("task %s not found", taskID)
	}
	return task, nil
}

// ApplyToVolunteer creates a NEW application by the actor for the task.
// Applying requires a volunteer profile and an open task; a second role
// or a second pending application is a duplicate.
func (s *WorkflowService) ApplyToVolunteer(ctx context.Context, actor *models.User, taskID, comments string) (*models.VolunteerApplication, error) {
	if actor == nil {
		return nil, PermissionDeniedf("not authenticated")
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !actor.HasVolunteerProfile {
		return nil, InvalidStatef("user %s has no volunteer profile", actor.Username)
	}
	if !task.AcceptingVolunteers {
		return nil, InvalidStatef("task %s is not accepting volunteers", task.Name)
	}

	role, err := s.store.Tasks().GetRoleByUser(ctx, taskID, actor.ID)
	if err != nil {
		return nil, err
	}
	if role != nil {
		return nil, Duplicatef("user %s already volunteers on task %s", actor.Username, task.Name)
	}
	pending, err := s.store.Applications().HasPendingForVolunteer(ctx, taskID, actor.ID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, Duplicatef("user %s already applied to task %s", actor.Username, task.Name)
	}

	app := &models.VolunteerApplication{
		ID:                uuid.New().String(),
		TaskID:            taskID,
		VolunteerID:       actor.ID,
		Status:            models.ReviewNew,
		VolunteerComments: comments,
		ApplicationDate:   time.Now(),
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Applications().Create(ctx, app); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, task.ProjectID, actor.ID,
			models.LogAdd, models.LogSourceVolunteerApplication, app.ID,
			fmt.Sprintf("%s applied to volunteer on task %s.", actor.DisplayName(), task.Name)); err != nil {
			return err
		}
		officials, err := s.reg.OfficialIDs(ctx, tx, task.ProjectID)
		if err != nil {
			return err
		}
		return s.sink.NotifyUsers(ctx, tx, officials,
			fmt.Sprintf("New volunteer application for task %s.", task.Name),
			models.SeverityInfo, models.SourceVolunteerApplication, app.ID)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// AcceptApplication resolves a NEW application as accepted: the volunteer
// gets a task role, a NOT_STARTED task starts, and the first-accept
// project transitions run.
func (s *WorkflowService) AcceptApplication(ctx context.Context, actor *models.User, applicationID, reviewerComments string) error {
	return s.resolveApplication(ctx, actor, applicationID, models.ReviewAccepted, reviewerComments)
}

// RejectApplication resolves a NEW application as rejected.
func (s *WorkflowService) RejectApplication(ctx context.Context, actor *models.User, applicationID, reviewerComments string) error {
	return s.resolveApplication(ctx, actor, applicationID, models.ReviewRejected, reviewerComments)
}

func (s *WorkflowService) resolveApplication(ctx context.Context, actor *models.User, applicationID string,
	result models.ReviewStatus, reviewerComments string) error {
	app, err := s.store.Applications().GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return NotFoundf("application %s not found", applicationID)
	}
	task, err := s.loadTask(ctx, app.TaskID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectApplicationReview, task.ProjectID); err != nil {
		return err
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		// Re-read under the transaction so the single-resolution check is
		// race-safe.
		current, err := tx.Applications().GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if current == nil {
			return NotFoundf("application %s not found", applicationID)
		}
		if !current.IsNew() {
			return InvalidStatef("application %s was already resolved", applicationID)
		}
		now := time.Now()
		current.Status = result
		current.ReviewerID = actor.ID
		current.ReviewerComments = reviewerComments
		current.ResolutionDate = &now
		if err := tx.Applications().Update(ctx, current); err != nil {
			return err
		}

		if result == models.ReviewAccepted {
			if err := tx.Tasks().AddRole(ctx, &models.ProjectTaskRole{
				ID:     uuid.New().String(),
				TaskID: task.ID,
				UserID: current.VolunteerID,
				Role:   models.TaskRoleVolunteer,
			}); err != nil {
				if isDuplicate(err) {
					return Duplicatef("user already volunteers on task %s", task.Name)
				}
				return err
			}
			if task.Stage == models.TaskNotStarted {
				metrics.TaskTransitionsTotal.WithLabelValues(string(task.Stage), string(models.TaskStarted)).Inc()
				task.Stage = models.TaskStarted
				task.ActualStartDate = &now
				task.UpdatedAt = now
				if err := tx.Tasks().Update(ctx, task); err != nil {
					return err
				}
			}
			// The project transition does not depend on the task stage:
			// a project published after its scoping task already started
			// still moves NEW to DESIGN on the next acceptance.
			if err := s.projects.onVolunteerAccepted(ctx, tx, actor.ID, task); err != nil {
				return err
			}
		}

		if err := s.log.AppendLog(ctx, tx, task.ProjectID, actor.ID,
			models.LogEdit, models.LogSourceVolunteerApplication, applicationID,
			fmt.Sprintf("A volunteer application for task %s was %s.", task.Name, result)); err != nil {
			return err
		}
		metrics.ApplicationsResolvedTotal.WithLabelValues(string(result)).Inc()

		msg := fmt.Sprintf("Your application to task %s was rejected.", task.Name)
		severity := models.SeverityWarning
		if result == models.ReviewAccepted {
			msg = fmt.Sprintf("Welcome aboard! Your application to task %s was accepted.", task.Name)
			severity = models.SeverityInfo
		}
		return s.sink.NotifyUser(ctx, tx, current.VolunteerID, msg,
			severity, models.SourceVolunteerApplication, applicationID)
	})
	return err
}

// AcceptReview resolves a NEW QA review as accepted and completes the
// task: volunteers closed, work marked done, reported effort recorded.
func (s *WorkflowService) AcceptReview(ctx context.Context, actor *models.User, reviewID, reviewerComments string) error {
	return s.resolveReview(ctx, actor, reviewID, models.ReviewAccepted, reviewerComments)
}

// RejectReview resolves a NEW QA review as rejected and sends the task
// back to STARTED. A rejected scoping review also reverts a project
// awaiting design approval back to DESIGN.
func (s *WorkflowService) RejectReview(ctx context.Context, actor *models.User, reviewID, reviewerComments string) error {
	return s.resolveReview(ctx, actor, reviewID, models.ReviewRejected, reviewerComments)
}

func (s *WorkflowService) resolveReview(ctx context.Context, actor *models.User, reviewID string,
	result models.ReviewStatus, reviewerComments string) error {
	review, err := s.store.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review == nil {
		return NotFoundf("review %s not found", reviewID)
	}
	task, err := s.loadTask(ctx, review.TaskID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectTaskReviewDo, task.ProjectID); err != nil {
		return err
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		current, err := tx.Reviews().GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if current == nil {
			return NotFoundf("review %s not found", reviewID)
		}
		if !current.IsNew() {
			return InvalidStatef("review %s was already resolved", reviewID)
		}
		now := time.Now()
		current.Result = result
		current.ReviewerID = actor.ID
		current.ReviewerComments = reviewerComments
		current.ReviewDate = &now
		if err := tx.Reviews().Update(ctx, current); err != nil {
			return err
		}
		metrics.ReviewsResolvedTotal.WithLabelValues(string(result)).Inc()

		if result == models.ReviewAccepted {
			return s.applyAcceptedReview(ctx, tx, actor, task, current, now)
		}
		return s.applyRejectedReview(ctx, tx, actor, task, current)
	})
	return err
}

func (s *WorkflowService) applyAcceptedReview(ctx context.Context, tx storage.Storage, actor *models.User,
	task *models.ProjectTask, review *models.ProjectTaskReview, now time.Time) error {
	metrics.TaskTransitionsTotal.WithLabelValues(string(task.Stage), string(models.TaskCompleted)).Inc()
	task.Stage = models.TaskCompleted
	task.AcceptingVolunteers = false
	task.PercentageComplete = 1.0
	task.ActualEffortHours = review.EffortHours
	task.ActualEndDate = &now
	task.UpdatedAt = now
	if err := tx.Tasks().Update(ctx, task); err != nil {
		return err
	}
	if err := s.log.AppendLog(ctx, tx, task.ProjectID, actor.ID,
		models.LogComplete, models.LogSourceTaskReview, review.ID,
		fmt.Sprintf("Task %s passed QA review and was completed.", task.Name)); err != nil {
		return err
	}

	members, err := s.reg.MemberIDs(ctx, tx, task.ProjectID)
	if err != nil {
		return err
	}
	if err := s.sink.NotifyUsers(ctx, tx, members,
		fmt.Sprintf("Task %s was completed.", task.Name),
		models.SeverityInfo, models.SourceTask, task.ID); err != nil {
		return err
	}
	volunteers, err := s.reg.TaskVolunteerIDs(ctx, tx, task.ID)
	if err != nil {
		return err
	}
	congrats := fmt.Sprintf("Congratulations! Your work on task %s passed QA review.", task.Name)
	if review.ReviewerComments != "" {
		congrats = fmt.Sprintf("%s Reviewer comments: %s", congrats, review.ReviewerComments)
	}
	if err := s.sink.NotifyUsers(ctx, tx, volunteers, congrats,
		models.SeverityInfo, models.SourceTask, task.ID); err != nil {
		return err
	}

	// COMPLETED may cascade into project transitions.
	return s.projects.applyTaskStageRules(ctx, tx, actor.ID, task)
}

func (s *WorkflowService) applyRejectedReview(ctx context.Context, tx storage.Storage, actor *models.User,
	task *models.ProjectTask, review *models.ProjectTaskReview) error {
	if task.Stage != models.TaskCompleted {
		metrics.TaskTransitionsTotal.WithLabelValues(string(task.Stage), string(models.TaskStarted)).Inc()
		task.Stage = models.TaskStarted
		task.UpdatedAt = time.Now()
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
	}
	if err := s.log.AppendLog(ctx, tx, task.ProjectID, actor.ID,
		models.LogEdit, models.LogSourceTaskReview, review.ID,
		fmt.Sprintf("The QA review of task %s was rejected. More work is needed.", task.Name)); err != nil {
		return err
	}

	members, err := s.reg.MemberIDs(ctx, tx, task.ProjectID)
	if err != nil {
		return err
	}
	if err := s.sink.NotifyUsers(ctx, tx, members,
		fmt.Sprintf("Task %s did not pass QA review.", task.Name),
		models.SeverityWarning, models.SourceTask, task.ID); err != nil {
		return err
	}
	msg := fmt.Sprintf("Your work on task %s did not pass QA review.", task.Name)
	if review.ReviewerComments != "" {
		msg = fmt.Sprintf("%s Reviewer comments: %s", msg, review.ReviewerComments)
	}
	if err := s.sink.NotifyUser(ctx, tx, review.VolunteerID, msg,
		models.SeverityError, models.SourceTask, task.ID); err != nil {
		return err
	}

	return s.projects.onScopingReviewRejected(ctx, tx, actor.ID, task)
}

// CancelVolunteering removes the actor's own volunteer role from the
// task. When the last volunteer leaves, the task reopens to applications
// and stays STARTED.
func (s *WorkflowService) CancelVolunteering(ctx context.Context, actor *models.User, taskID string) error {
	if actor == nil {
		return PermissionDeniedf("not authenticated")
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	role, err := s.store.Tasks().GetRoleByUser(ctx, taskID, actor.ID)
	if err != nil {
		return err
	}
	if role == nil {
		return NotFoundf("user %s does not volunteer on task %s", actor.Username, task.Name)
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Tasks().DeleteRole(ctx, role.ID); err != nil {
			return err
		}
		if err := s.reopenTaskIfEmpty(ctx, tx, task); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, task.ProjectID, actor.ID,
			models.LogRemove, models.LogSourceVolunteer, role.ID,
			fmt.Sprintf("%s stopped volunteering on task %s.", actor.DisplayName(), task.Name)); err != nil {
			return err
		}
		members, err := s.reg.MemberIDs(ctx, tx, task.ProjectID)
		if err != nil {
			return err
		}
		if err := s.sink.NotifyUsers(ctx, tx, members,
			fmt.Sprintf("%s stopped volunteering on task %s.", actor.DisplayName(), task.Name),
			models.SeverityError, models.SourceTask, taskID); err != nil {
			return err
		}
		return s.sink.NotifyUser(ctx, tx, actor.ID,
			fmt.Sprintf("You stopped volunteering on task %s.", task.Name),
			models.SeverityInfo, models.SourceTask, taskID)
	})
}

// SaveVolunteerRole reassigns a volunteer role to another task of the
// same project.
func (s *WorkflowService) SaveVolunteerRole(ctx context.Context, actor *models.User, projectID string, role *models.ProjectTaskRole) error {
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectVolunteersEdit, projectID); err != nil {
		return err
	}
	target, err := s.tasks.GetTask(ctx, projectID, role.TaskID)
	if err != nil {
		return err
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Tasks().UpdateRole(ctx, role); err != nil {
			if isDuplicate(err) {
				return Duplicatef("user already volunteers on task %s", target.Name)
			}
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogEdit, models.LogSourceVolunteer, role.ID,
			fmt.Sprintf("A volunteer was reassigned to task %s.", target.Name)); err != nil {
			return err
		}
		return s.sink.NotifyUser(ctx, tx, role.UserID,
			fmt.Sprintf("You were reassigned to task %s.", target.Name),
			models.SeverityInfo, models.SourceTask, target.ID)
	})
}

// DeleteVolunteerRole removes another user's volunteer role from a task.
func (s *WorkflowService) DeleteVolunteerRole(ctx context.Context, actor *models.User, projectID, taskID, roleID string) error {
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectVolunteersRemove, projectID); err != nil {
		return err
	}
	task, err := s.tasks.GetTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		role, err := tx.Tasks().GetRole(ctx, taskID, roleID)
		if err != nil {
			return err
		}
		if role == nil {
			return NotFoundf("volunteer role %s not found on task %s", roleID, taskID)
		}
		if err := tx.Tasks().DeleteRole(ctx, roleID); err != nil {
			return err
		}
		if err := s.reopenTaskIfEmpty(ctx, tx, task); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogRemove, models.LogSourceVolunteer, roleID,
			fmt.Sprintf("A volunteer was removed from task %s.", task.Name)); err != nil {
			return err
		}
		return s.sink.NotifyUser(ctx, tx, role.UserID,
			fmt.Sprintf("You were removed from task %s.", task.Name),
			models.SeverityWarning, models.SourceTask, task.ID)
	})
}

// reopenTaskIfEmpty reopens a task to applications when its last
// volunteer is gone. The stage stays STARTED so prior progress is kept.
func (s *WorkflowService) reopenTaskIfEmpty(ctx context.Context, tx storage.Storage, task *models.ProjectTask) error {
	hasVolunteers, err := tx.Tasks().HasVolunteers(ctx, task.ID)
	if err != nil {
		return err
	}
	if hasVolunteers || task.Stage == models.TaskCompleted {
		return nil
	}
	task.Stage = models.TaskStarted
	task.AcceptingVolunteers = true
	task.UpdatedAt = time.Now()
	return tx.Tasks().Update(ctx, task)
}
