package models

import (
	"time"
)

// NotificationSeverity indicates how a notification should be presented.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

// NotificationSource identifies what kind of entity a notification is about.
type NotificationSource string

const (
	SourceProject              NotificationSource = "project"
	SourceTask                 NotificationSource = "task"
	SourceOrganization         NotificationSource = "organization"
	SourceVolunteerApplication NotificationSource = "volunteer_application"
)

// Notification is a message enqueued for a single user.
type Notification struct {
	ID       string               `json:"id"`
	UserID   string               `json:"user_id"`
	Message  string               `json:"message"`
	Severity NotificationSeverity `json:"severity"`
	Source   NotificationSource   `json:"source"`
	// ID of the entity the notification refers to (project, task, ...).
	TargetID  string    `json:"target_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
