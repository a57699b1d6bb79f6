package models

import (
	"time"
)

// LogChangeType classifies what a change log entry records.
type LogChangeType string

const (
	LogAdd      LogChangeType = "add"
	LogEdit     LogChangeType = "edit"
	LogRemove   LogChangeType = "remove"
	LogComplete LogChangeType = "complete"
)

// LogSource identifies the part of the project a change touched.
type LogSource string

const (
	LogSourceStatus               LogSource = "status"
	LogSourceInformation          LogSource = "information"
	LogSourceStaff                LogSource = "staff"
	LogSourceScope                LogSource = "scope"
	LogSourceTask                 LogSource = "task"
	LogSourceTaskReview           LogSource = "task_review"
	LogSourceVolunteer            LogSource = "volunteer"
	LogSourceVolunteerApplication LogSource = "volunteer_application"
)

// ProjectLog is an append-only audit record of a project mutation.
// Entries are never updated or deleted.
type ProjectLog struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	AuthorID    string        `json:"author_id"`
	ChangeType  LogChangeType `json:"change_type"`
	Source      LogSource     `json:"source"`
	TargetID    string        `json:"target_id"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
}
