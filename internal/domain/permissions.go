package domain

import (
	"context"
	"fmt"

	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

// Action names a permission-gated capability. The set is closed: every
// action has a handler in Evaluator.Check and an unknown action is a
// wiring bug, not a denial.
type Action string

const (
	ActionProjectPublish             Action = "project.publish"
	ActionProjectApproveAsCompleted  Action = "project.approve_as_completed"
	ActionProjectInformationEdit     Action = "project.information_edit"
	ActionProjectScopeEdit           Action = "project.scope_edit"
	ActionProjectStaffEdit           Action = "project.staff_edit"
	ActionProjectStaffRemove         Action = "project.staff_remove"
	ActionProjectTaskEdit            Action = "project.task_edit"
	ActionProjectTaskDelete          Action = "project.task_delete"
	ActionProjectTaskReviewDo        Action = "project.task_review_do"
	ActionProjectVolunteerTaskFinish Action = "project.volunteer_task_finish"
	ActionProjectVolunteersEdit      Action = "project.volunteers_edit"
	ActionProjectVolunteersRemove    Action = "project.volunteers_remove"
	ActionProjectApplicationReview   Action = "project.volunteers_application_review"
	ActionOrganizationProjectCreate  Action = "organization.project_create"
	ActionUserIsSameUser             Action = "user.is_same_user"
)

// PermissionChecker gates every mutating lifecycle operation.
type PermissionChecker interface {
	// Check returns nil when the actor may perform the action on the
	// target, a permission-denied domain error when not. The target id
	// names a project, task, organization or user depending on the
	// action.
	Check(ctx context.Context, store storage.Storage, actor *models.User, action Action, targetID string) error
}

// Evaluator is the registry-backed permission checker.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates a permission evaluator.
func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Check dispatches the action to its predicate. Site admins pass every
// check.
func (e *Evaluator) Check(ctx context.Context, store storage.Storage, actor *models.User, action Action, targetID string) error {
	if actor == nil {
		return PermissionDeniedf("not authenticated")
	}
	if actor.IsAdmin() {
		return nil
	}

	switch action {
	// Owner-only project administration.
	case ActionProjectPublish,
		ActionProjectApproveAsCompleted,
		ActionProjectInformationEdit,
		ActionProjectStaffEdit,
		ActionProjectStaffRemove:
		return e.requireOwner(ctx, store, actor, action, targetID)

	// Project content administration open to any official.
	case ActionProjectScopeEdit,
		ActionProjectTaskEdit,
		ActionProjectTaskDelete,
		ActionProjectTaskReviewDo,
		ActionProjectVolunteersEdit,
		ActionProjectVolunteersRemove,
		ActionProjectApplicationReview:
		return e.requireOfficial(ctx, store, actor, action, targetID)

	case ActionProjectVolunteerTaskFinish:
		ok, err := e.registry.IsTaskVolunteer(ctx, store, targetID, actor.ID)
		if err != nil {
			return err
		}
		if !ok {
			return PermissionDeniedf("user %s is not a volunteer on task %s", actor.Username, targetID)
		}
		return nil

	case ActionOrganizationProjectCreate:
		ok, err := e.registry.IsOrganizationMember(ctx, store, targetID, actor.ID)
		if err != nil {
			return err
		}
		if !ok {
			return PermissionDeniedf("user %s is not a member of organization %s", actor.Username, targetID)
		}
		return nil

	case ActionUserIsSameUser:
		if actor.ID != targetID {
			return PermissionDeniedf("user %s may not act for another user", actor.Username)
		}
		return nil

	default:
		return fmt.Errorf("unknown permission action %q", action)
	}
}

func (e *Evaluator) requireOwner(ctx context.Context, store storage.Storage, actor *models.User, action Action, projectID string) error {
	ok, err := e.registry.IsOwner(ctx, store, projectID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return PermissionDeniedf("%s requires project ownership", action)
	}
	return nil
}

func (e *Evaluator) requireOfficial(ctx context.Context, store storage.Storage, actor *models.User, action Action, projectID string) error {
	ok, err := e.registry.IsOfficial(ctx, store, projectID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return PermissionDeniedf("%s requires acting as a project official", action)
	}
	return nil
}
