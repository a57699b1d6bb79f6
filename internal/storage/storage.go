// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"

	"github.com/civicworks/volunteerhub/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates a default admin if no users exist.
	EnsureAdminUser() error

	// InTransaction runs fn with a Storage whose repositories are bound to
	// a single database transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Calling InTransaction on an
	// already transaction-bound Storage joins the existing transaction.
	InTransaction(ctx context.Context, fn func(tx Storage) error) error

	// Repository accessors
	Users() UserRepository
	Organizations() OrganizationRepository
	Projects() ProjectRepository
	Tasks() TaskRepository
	Applications() ApplicationRepository
	Reviews() ReviewRepository
	Logs() ProjectLogRepository
	Notifications() NotificationRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// OrganizationRepository defines operations for organization management.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	GetByName(ctx context.Context, name string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	List(ctx context.Context) ([]*models.Organization, error)
	AddMember(ctx context.Context, orgID, userID string, role models.OrgRole) error
	RemoveMember(ctx context.Context, orgID, userID string) error
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	ListMemberIDs(ctx context.Context, orgID string) ([]string, error)
}

// ProjectRepository defines operations for projects and their staff,
// followers, discussion channels and scope history.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	ListPublic(ctx context.Context) ([]*models.Project, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*models.Project, error)
	ListDraftsOwnedBy(ctx context.Context, userID string) ([]*models.Project, error)

	AddRole(ctx context.Context, role *models.ProjectRole) error
	GetRole(ctx context.Context, projectID, roleID string) (*models.ProjectRole, error)
	GetRoleByUser(ctx context.Context, projectID, userID string) (*models.ProjectRole, error)
	UpdateRole(ctx context.Context, role *models.ProjectRole) error
	DeleteRole(ctx context.Context, projectID, roleID string) error
	ListRoles(ctx context.Context, projectID string) ([]*models.ProjectRole, error)
	CountOwners(ctx context.Context, projectID string) (int, error)
	ListRoleUserIDs(ctx context.Context, projectID string) ([]string, error)
	ListOwnerUserIDs(ctx context.Context, projectID string) ([]string, error)

	AddFollower(ctx context.Context, projectID, userID string) error
	RemoveFollower(ctx context.Context, projectID, userID string) error
	IsFollower(ctx context.Context, projectID, userID string) (bool, error)
	ListFollowerUserIDs(ctx context.Context, projectID string) ([]string, error)

	CreateChannel(ctx context.Context, channel *models.DiscussionChannel) error
	ListChannels(ctx context.Context, projectID string) ([]*models.DiscussionChannel, error)

	CreateScope(ctx context.Context, scope *models.ProjectScope) error
	ListScopes(ctx context.Context, projectID string) ([]*models.ProjectScope, error)
}

// TaskRepository defines operations for project tasks and volunteer roles.
type TaskRepository interface {
	Create(ctx context.Context, task *models.ProjectTask) error
	GetByID(ctx context.Context, id string) (*models.ProjectTask, error)
	Update(ctx context.Context, task *models.ProjectTask) error
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string) ([]*models.ProjectTask, error)
	ListByTypeAndStage(ctx context.Context, projectID string, taskType models.TaskType, stage models.TaskStatus) ([]*models.ProjectTask, error)
	// ExistsNonCompleted reports whether the project has any task whose
	// stage is not COMPLETED. When taskType is non-empty the check is
	// restricted to tasks of that type.
	ExistsNonCompleted(ctx context.Context, projectID string, taskType models.TaskType) (bool, error)

	AddRole(ctx context.Context, role *models.ProjectTaskRole) error
	GetRole(ctx context.Context, taskID, roleID string) (*models.ProjectTaskRole, error)
	GetRoleByUser(ctx context.Context, taskID, userID string) (*models.ProjectTaskRole, error)
	UpdateRole(ctx context.Context, role *models.ProjectTaskRole) error
	DeleteRole(ctx context.Context, roleID string) error
	HasVolunteers(ctx context.Context, taskID string) (bool, error)
	ListVolunteerUserIDsByTask(ctx context.Context, taskID string) ([]string, error)
	// ListVolunteerUserIDs returns the users holding a volunteer role on
	// any task of the project matching the given type and stage filters.
	// Empty filters match all types or stages.
	ListVolunteerUserIDs(ctx context.Context, projectID string, types []models.TaskType, stages []models.TaskStatus) ([]string, error)

	AddRequirement(ctx context.Context, req *models.ProjectTaskRequirement) error
	DeleteRequirement(ctx context.Context, taskID, reqID string) error
	ListRequirements(ctx context.Context, taskID string) ([]*models.ProjectTaskRequirement, error)
}

// ApplicationRepository defines operations for volunteer applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.VolunteerApplication) error
	GetByID(ctx context.Context, id string) (*models.VolunteerApplication, error)
	Update(ctx context.Context, app *models.VolunteerApplication) error
	ListByTask(ctx context.Context, taskID string) ([]*models.VolunteerApplication, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.VolunteerApplication, error)
	HasPendingForVolunteer(ctx context.Context, taskID, userID string) (bool, error)
}

// ReviewRepository defines operations for task QA reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.ProjectTaskReview) error
	GetByID(ctx context.Context, id string) (*models.ProjectTaskReview, error)
	Update(ctx context.Context, review *models.ProjectTaskReview) error
	ListByTask(ctx context.Context, taskID string) ([]*models.ProjectTaskReview, error)
	ListPendingByProject(ctx context.Context, projectID string) ([]*models.ProjectTaskReview, error)
}

// ProjectLogRepository defines operations for the append-only change log.
// Entries are never updated or deleted.
type ProjectLogRepository interface {
	Append(ctx context.Context, entry *models.ProjectLog) error
	ListByProject(ctx context.Context, projectID string) ([]*models.ProjectLog, error)
}

// NotificationRepository defines operations for user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
