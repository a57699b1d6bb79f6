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

// TaskService owns the per-task stage state machine. Stage changes feed
// back into the project engine to evaluate derived project transitions.
type TaskService struct {
	store    storage.Storage
	perms    PermissionChecker
	reg      *Registry
	sink     Sink
	log      ChangeLogger
	projects *ProjectService
}

// NewTaskService creates a task lifecycle engine.
func NewTaskService(store storage.Storage, perms PermissionChecker, reg *Registry, sink Sink, log ChangeLogger, projects *ProjectService) *TaskService {
	return &TaskService{store: store, perms: perms, reg: reg, sink: sink, log: log, projects: projects}
}

// GetTask loads a task, checking it belongs to the given project.
func (s *TaskService) GetTask(ctx context.Context, projectID, taskID string) (*models.ProjectTask, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.ProjectID != projectID {
		return nil, NotFoundf("task %s not found on project %s", taskID, projectID)
	}
	return task, nil
}

// SaveTask updates a task. The persisted stage decides editability:
// completed tasks are immutable no matter what stage the caller supplies.
// A stage change triggers the derived project transition rules.
func (s *TaskService) SaveTask(ctx context.Context, actor *models.User, task *models.ProjectTask) error {
	current, err := s.GetTask(ctx, task.ProjectID, task.ID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectTaskEdit, task.ProjectID); err != nil {
		return err
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if current.Stage == models.TaskCompleted {
			return InvalidStatef("task %s is completed and cannot be edited", current.Name)
		}
		return s.saveTaskInternal(ctx, tx, actor.ID, current, task)
	})
}

// saveTaskInternal persists the task, logs the edit and runs the stage
// hook. It must run inside a transaction.
func (s *TaskService) saveTaskInternal(ctx context.Context, tx storage.Storage, actorID string,
	current, task *models.ProjectTask) error {
	stageChanged := current.Stage != task.Stage
	if stageChanged {
		metrics.TaskTransitionsTotal.WithLabelValues(string(current.Stage), string(task.Stage)).Inc()
	}
	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = time.Now()
	if err := tx.Tasks().Update(ctx, task); err != nil {
		return err
	}
	if err := s.log.AppendLog(ctx, tx, task.ProjectID, actorID,
		models.LogEdit, models.LogSourceTask, task.ID,
		fmt.Sprintf("Task %s was edited.", task.Name)); err != nil {
		return err
	}
	members, err := s.reg.MemberIDs(ctx, tx, task.ProjectID)
	if err != nil {
		return err
	}
	if err := s.sink.NotifyUsers(ctx, tx, members,
		fmt.Sprintf("Task %s was edited.", task.Name),
		models.SeverityInfo, models.SourceTask, task.ID); err != nil {
		return err
	}
	if stageChanged {
		return s.projects.applyTaskStageRules(ctx, tx, actorID, task)
	}
	return nil
}

// MarkCompletedByVolunteer lets a task volunteer report the work done.
// The task moves to WAITING_REVIEW and a NEW QA review is created for the
// officials.
func (s *TaskService) MarkCompletedByVolunteer(ctx context.Context, actor *models.User, projectID, taskID string,
	effortHours float64, comments string) (*models.ProjectTaskReview, error) {
	task, err := s.GetTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectVolunteerTaskFinish, taskID); err != nil {
		return nil, err
	}
	if task.Stage != models.TaskStarted {
		return nil, InvalidStatef("task %s is not in progress", task.Name)
	}

	review := &models.ProjectTaskReview{
		ID:                uuid.New().String(),
		TaskID:            taskID,
		VolunteerID:       actor.ID,
		Result:            models.ReviewNew,
		VolunteerComments: comments,
		EffortHours:       effortHours,
		CreatedAt:         time.Now(),
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		metrics.TaskTransitionsTotal.WithLabelValues(string(task.Stage), string(models.TaskWaitingReview)).Inc()
		task.Stage = models.TaskWaitingReview
		task.UpdatedAt = time.Now()
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogAdd, models.LogSourceTaskReview, review.ID,
			fmt.Sprintf("Task %s was marked as completed and awaits QA review.", task.Name)); err != nil {
			return err
		}
		officials, err := s.reg.OfficialIDs(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := s.sink.NotifyUsers(ctx, tx, officials,
			fmt.Sprintf("Task %s awaits QA review.", task.Name),
			models.SeverityWarning, models.SourceTask, taskID); err != nil {
			return err
		}
		volunteers, err := s.reg.TaskVolunteerIDs(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := s.sink.NotifyUsers(ctx, tx, volunteers,
			fmt.Sprintf("Task %s was marked as completed. It will be reviewed shortly.", task.Name),
			models.SeverityInfo, models.SourceTask, taskID); err != nil {
			return err
		}
		// STARTED -> WAITING_REVIEW can move the project out of DESIGN.
		return s.projects.applyTaskStageRules(ctx, tx, actor.ID, task)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ToggleAcceptingVolunteers flips the task's volunteer gate and tells the
// project audience either way.
func (s *TaskService) ToggleAcceptingVolunteers(ctx context.Context, actor *models.User, projectID, taskID string) (*models.ProjectTask, error) {
	task, err := s.GetTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectTaskEdit, projectID); err != nil {
		return nil, err
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		task.AcceptingVolunteers = !task.AcceptingVolunteers
		task.UpdatedAt = time.Now()
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogEdit, models.LogSourceTask, taskID,
			fmt.Sprintf("Task %s volunteer applications were toggled.", task.Name)); err != nil {
			return err
		}
		msg := fmt.Sprintf("Task %s is no longer accepting volunteers.", task.Name)
		if task.AcceptingVolunteers {
			msg = fmt.Sprintf("Task %s is now accepting volunteers.", task.Name)
		}
		audience, err := s.reg.NotificationEligibleIDs(ctx, tx, projectID)
		if err != nil {
			return err
		}
		return s.sink.NotifyUsers(ctx, tx, audience, msg,
			models.SeverityInfo, models.SourceTask, taskID)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task. Completed tasks and tasks that still have
// volunteers cannot be deleted.
func (s *TaskService) DeleteTask(ctx context.Context, actor *models.User, projectID, taskID string) error {
	task, err := s.GetTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectTaskDelete, projectID); err != nil {
		return err
	}
	if task.Stage == models.TaskCompleted {
		return InvalidStatef("task %s is completed and cannot be deleted", task.Name)
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		hasVolunteers, err := tx.Tasks().HasVolunteers(ctx, taskID)
		if err != nil {
			return err
		}
		if hasVolunteers {
			return InvalidStatef("task %s still has volunteers; remove them first", task.Name)
		}
		if err := tx.Tasks().Delete(ctx, taskID); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogRemove, models.LogSourceTask, taskID,
			fmt.Sprintf("Task %s was deleted.", task.Name)); err != nil {
			return err
		}
		officials, err := s.reg.OfficialIDs(ctx, tx, projectID)
		if err != nil {
			return err
		}
		return s.sink.NotifyUsers(ctx, tx, officials,
			fmt.Sprintf("Task %s was deleted.", task.Name),
			models.SeverityInfo, models.SourceTask, taskID)
	})
}

// CreateDefaultTask adds a fresh DOMAIN_WORK task to the project. Adding
// a task to a project in final QA reverts the project to IN_PROGRESS
// first: new work means the project was not actually finished.
func (s *TaskService) CreateDefaultTask(ctx context.Context, actor *models.User, projectID string) (*models.ProjectTask, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectTaskEdit, projectID); err != nil {
		return nil, err
	}

	now := time.Now()
	task := &models.ProjectTask{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		Name:         "New project task",
		ShortSummary: "This task was just created and needs a description.",
		Type:         models.TaskTypeDomainWork,
		Stage:        models.TaskNotStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if project.Status == models.ProjectWaitingReview {
			if err := s.projects.transitionStatus(ctx, tx, actor.ID, project, models.ProjectInProgress,
				fmt.Sprintf("A new task was added to project %s. Work continues.", project.Name)); err != nil {
				return err
			}
		}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogAdd, models.LogSourceTask, task.ID,
			fmt.Sprintf("Task %s was added to project %s.", task.Name, project.Name)); err != nil {
			return err
		}
		officials, err := s.reg.OfficialIDs(ctx, tx, projectID)
		if err != nil {
			return err
		}
		return s.sink.NotifyUsers(ctx, tx, officials,
			fmt.Sprintf("A new task was added to project %s.", project.Name),
			models.SeverityInfo, models.SourceTask, task.ID)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// AddRequirement attaches a skill requirement to a task.
func (s *TaskService) AddRequirement(ctx context.Context, actor *models.User, projectID string, req *models.ProjectTaskRequirement) error {
	task, err := s.GetTask(ctx, projectID, req.TaskID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectTaskEdit, projectID); err != nil {
		return err
	}
	req.ID = uuid.New().String()

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Tasks().AddRequirement(ctx, req); err != nil {
			if isDuplicate(err) {
				return Duplicatef("task %s already requires skill %s", task.Name, req.Skill)
			}
			return err
		}
		return s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogAdd, models.LogSourceTask, req.TaskID,
			fmt.Sprintf("A skill requirement was added to task %s.", task.Name))
	})
}

// DeleteRequirement removes a skill requirement from a task.
func (s *TaskService) DeleteRequirement(ctx context.Context, actor *models.User, projectID, taskID, reqID string) error {
	task, err := s.GetTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectTaskEdit, projectID); err != nil {
		return err
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Tasks().DeleteRequirement(ctx, taskID, reqID); err != nil {
			return err
		}
		return s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogRemove, models.LogSourceTask, taskID,
			fmt.Sprintf("A skill requirement was removed from task %s.", task.Name))
	})
}
