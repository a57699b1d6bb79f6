package domain

import (
	"context"

	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

// officialTaskTypes are the task types whose volunteers count as project
// officials.
var officialTaskTypes = []models.TaskType{
	models.TaskTypeScoping,
	models.TaskTypeProjectManagement,
}

// activeStages are the task stages in which a volunteer role counts as
// active for membership purposes.
var activeStages = []models.TaskStatus{
	models.TaskStarted,
	models.TaskWaitingReview,
}

// Registry answers role and membership questions about projects, tasks
// and organizations. It is the single source the permission evaluator and
// the notification audiences consult.
type Registry struct{}

// NewRegistry creates a registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// IsOwner reports whether the user holds the OWNER role on the project.
func (r *Registry) IsOwner(ctx context.Context, store storage.Storage, projectID, userID string) (bool, error) {
	role, err := store.Projects().GetRoleByUser(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	return role != nil && role.Role == models.ProjRoleOwner, nil
}

// IsStaff reports whether the user holds any staff role on the project.
func (r *Registry) IsStaff(ctx context.Context, store storage.Storage, projectID, userID string) (bool, error) {
	role, err := store.Projects().GetRoleByUser(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	return role != nil, nil
}

// IsOfficial reports whether the user is a project official: an OWNER, or
// an active volunteer on a SCOPING or PROJECT_MANAGEMENT task.
func (r *Registry) IsOfficial(ctx context.Context, store storage.Storage, projectID, userID string) (bool, error) {
	owner, err := r.IsOwner(ctx, store, projectID, userID)
	if err != nil {
		return false, err
	}
	if owner {
		return true, nil
	}
	ids, err := store.Tasks().ListVolunteerUserIDs(ctx, projectID, officialTaskTypes, activeStages)
	if err != nil {
		return false, err
	}
	return contains(ids, userID), nil
}

// IsTaskVolunteer reports whether the user holds a volunteer role on the
// task.
func (r *Registry) IsTaskVolunteer(ctx context.Context, store storage.Storage, taskID, userID string) (bool, error) {
	role, err := store.Tasks().GetRoleByUser(ctx, taskID, userID)
	if err != nil {
		return false, err
	}
	return role != nil, nil
}

// IsOrganizationMember reports whether the user belongs to the
// organization.
func (r *Registry) IsOrganizationMember(ctx context.Context, store storage.Storage, orgID, userID string) (bool, error) {
	return store.Organizations().IsMember(ctx, orgID, userID)
}

// OfficialIDs returns the users who may act on behalf of the project:
// owners and active volunteers on SCOPING/PROJECT_MANAGEMENT tasks.
func (r *Registry) OfficialIDs(ctx context.Context, store storage.Storage, projectID string) ([]string, error) {
	owners, err := store.Projects().ListOwnerUserIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	officials, err := store.Tasks().ListVolunteerUserIDs(ctx, projectID, officialTaskTypes, activeStages)
	if err != nil {
		return nil, err
	}
	return dedupe(owners, officials), nil
}

// MemberIDs returns every user with a staff role on the project plus the
// active volunteers on official-type tasks.
func (r *Registry) MemberIDs(ctx context.Context, store storage.Storage, projectID string) ([]string, error) {
	staff, err := store.Projects().ListRoleUserIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	officials, err := store.Tasks().ListVolunteerUserIDs(ctx, projectID, officialTaskTypes, activeStages)
	if err != nil {
		return nil, err
	}
	return dedupe(staff, officials), nil
}

// NotificationEligibleIDs returns the audience for public project
// broadcasts: members, active volunteers on any task, and followers.
func (r *Registry) NotificationEligibleIDs(ctx context.Context, store storage.Storage, projectID string) ([]string, error) {
	staff, err := store.Projects().ListRoleUserIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	volunteers, err := store.Tasks().ListVolunteerUserIDs(ctx, projectID, nil, activeStages)
	if err != nil {
		return nil, err
	}
	followers, err := store.Projects().ListFollowerUserIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return dedupe(staff, volunteers, followers), nil
}

// TaskVolunteerIDs returns the users volunteering on the task.
func (r *Registry) TaskVolunteerIDs(ctx context.Context, store storage.Storage, taskID string) ([]string, error) {
	return store.Tasks().ListVolunteerUserIDsByTask(ctx, taskID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// dedupe merges id slices preserving first-seen order.
func dedupe(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
