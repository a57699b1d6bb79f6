package models

import (
	"time"
)

// TaskType classifies the work a project task represents.
type TaskType string

const (
	TaskTypeScoping           TaskType = "scoping"
	TaskTypeProjectManagement TaskType = "project_management"
	TaskTypeDomainWork        TaskType = "domain_work"
)

// TaskStatus represents a task's position in its lifecycle.
type TaskStatus string

const (
	TaskNotStarted    TaskStatus = "not_started"
	TaskStarted       TaskStatus = "started"
	TaskWaitingReview TaskStatus = "waiting_review"
	TaskCompleted     TaskStatus = "completed"
	TaskDeleted       TaskStatus = "deleted"
)

// ProjectTask represents a unit of volunteer work within a project.
type ProjectTask struct {
	ID                     string     `json:"id"`
	ProjectID              string     `json:"project_id"`
	Name                   string     `json:"name"`
	ShortSummary           string     `json:"short_summary,omitempty"`
	Description            string     `json:"description,omitempty"`
	OnboardingInstructions string     `json:"onboarding_instructions,omitempty"`
	Type                   TaskType   `json:"type"`
	Stage                  TaskStatus `json:"stage"`
	AcceptingVolunteers    bool       `json:"accepting_volunteers"`
	PercentageComplete     float64    `json:"percentage_complete"`
	EstimatedEffortHours   float64    `json:"estimated_effort_hours,omitempty"`
	ActualEffortHours      float64    `json:"actual_effort_hours,omitempty"`
	EstimatedStartDate     *time.Time `json:"estimated_start_date,omitempty"`
	EstimatedEndDate       *time.Time `json:"estimated_end_date,omitempty"`
	ActualStartDate        *time.Time `json:"actual_start_date,omitempty"`
	ActualEndDate          *time.Time `json:"actual_end_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TaskRole represents the kind of role a user holds on a task.
type TaskRole string

const (
	TaskRoleVolunteer TaskRole = "volunteer"
)

// ProjectTaskRole represents a volunteer assignment to a task.
// Unique per (task, user).
type ProjectTaskRole struct {
	ID     string   `json:"id"`
	TaskID string   `json:"task_id"`
	UserID string   `json:"user_id"`
	Role   TaskRole `json:"role"`
}

// ProjectTaskRequirement represents a skill required by a task.
// Unique per (task, skill).
type ProjectTaskRequirement struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	Skill      string `json:"skill"`
	Level      int    `json:"level"`
	Importance int    `json:"importance"`
}
