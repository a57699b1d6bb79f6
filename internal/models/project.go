package models

import (
	"time"
)

// ProjectStatus represents a project's position in its lifecycle.
type ProjectStatus string

const (
	ProjectDraft                 ProjectStatus = "draft"
	ProjectNew                   ProjectStatus = "new"
	ProjectDesign                ProjectStatus = "design"
	ProjectWaitingDesignApproval ProjectStatus = "waiting_design_approval"
	ProjectWaitingStaff          ProjectStatus = "waiting_staff"
	ProjectInProgress            ProjectStatus = "in_progress"
	ProjectWaitingReview         ProjectStatus = "waiting_review"
	ProjectCompleted             ProjectStatus = "completed"
	ProjectExpired               ProjectStatus = "expired"
	ProjectDeleted               ProjectStatus = "deleted"
)

// DisplayName returns the user-facing name of the status.
func (s ProjectStatus) DisplayName() string {
	switch s {
	case ProjectDraft:
		return "Draft"
	case ProjectNew:
		return "Accepting volunteers"
	case ProjectDesign:
		return "Scoping"
	case ProjectWaitingDesignApproval:
		return "Scoping QA"
	case ProjectWaitingStaff:
		return "Staffing"
	case ProjectInProgress:
		return "In progress"
	case ProjectWaitingReview:
		return "Final QA"
	case ProjectCompleted:
		return "Completed"
	case ProjectExpired:
		return "Expired"
	case ProjectDeleted:
		return "Deleted"
	}
	return string(s)
}

// Project represents a data-science project owned by an organization.
type Project struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	ShortSummary   string        `json:"short_summary,omitempty"`
	Description    string        `json:"description,omitempty"`
	Status         ProjectStatus `json:"status"`

	// Scope fields, versioned separately in the scope history.
	ProjectImpact  string `json:"project_impact,omitempty"`
	ScopingProcess string `json:"scoping_process,omitempty"`
	AvailableStaff string `json:"available_staff,omitempty"`
	AvailableData  string `json:"available_data,omitempty"`

	EstimatedStartDate *time.Time `json:"estimated_start_date,omitempty"`
	EstimatedEndDate   *time.Time `json:"estimated_end_date,omitempty"`
	ActualStartDate    *time.Time `json:"actual_start_date,omitempty"`
	ActualEndDate      *time.Time `json:"actual_end_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublic reports whether the project appears in public listings.
// Draft, expired and deleted projects are hidden.
func (p *Project) IsPublic() bool {
	switch p.Status {
	case ProjectDraft, ProjectExpired, ProjectDeleted:
		return false
	}
	return true
}

// ProjRole represents a staff role within a project.
type ProjRole string

const (
	ProjRoleOwner ProjRole = "owner"
	ProjRoleStaff ProjRole = "staff"
)

// ProjectRole represents a user's staff membership in a project.
// Unique per (project, user).
type ProjectRole struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	UserID    string   `json:"user_id"`
	Role      ProjRole `json:"role"`
}

// ProjectFollower represents a user following a project's activity.
type ProjectFollower struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DiscussionChannel represents a project discussion channel.
type DiscussionChannel struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectScope is one version of a project's scope document. Scopes are
// never edited in place; saving one inserts a new version.
type ProjectScope struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	AuthorID       string    `json:"author_id"`
	ProjectImpact  string    `json:"project_impact,omitempty"`
	ScopingProcess string    `json:"scoping_process,omitempty"`
	AvailableStaff string    `json:"available_staff,omitempty"`
	AvailableData  string    `json:"available_data,omitempty"`
	VersionNotes   string    `json:"version_notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
