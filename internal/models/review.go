package models

import (
	"time"
)

// ReviewStatus represents the resolution state of an application or review.
// Both start NEW and are resolved exactly once to ACCEPTED or REJECTED.
type ReviewStatus string

const (
	ReviewNew      ReviewStatus = "new"
	ReviewAccepted ReviewStatus = "accepted"
	ReviewRejected ReviewStatus = "rejected"
)

// VolunteerApplication represents a volunteer's request to work on a task.
type VolunteerApplication struct {
	ID                string       `json:"id"`
	TaskID            string       `json:"task_id"`
	VolunteerID       string       `json:"volunteer_id"`
	Status            ReviewStatus `json:"status"`
	VolunteerComments string       `json:"volunteer_comments,omitempty"`
	ReviewerComments  string       `json:"reviewer_comments,omitempty"`
	ReviewerID        string       `json:"reviewer_id,omitempty"`
	ApplicationDate   time.Time    `json:"application_date"`
	ResolutionDate    *time.Time   `json:"resolution_date,omitempty"`
}

// IsNew reports whether the application is still unresolved.
func (a *VolunteerApplication) IsNew() bool {
	return a.Status == ReviewNew
}

// ProjectTaskReview represents a QA review of a task a volunteer marked
// as completed.
type ProjectTaskReview struct {
	ID                string       `json:"id"`
	TaskID            string       `json:"task_id"`
	VolunteerID       string       `json:"volunteer_id"`
	Result            ReviewStatus `json:"result"`
	VolunteerComments string       `json:"volunteer_comments,omitempty"`
	ReviewerComments  string       `json:"reviewer_comments,omitempty"`
	// Hours the volunteer reports having spent on the task; copied to the
	// task's actual effort when the review is accepted.
	EffortHours float64    `json:"effort_hours"`
	ReviewerID  string     `json:"reviewer_id,omitempty"`
	ReviewDate  *time.Time `json:"review_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsNew reports whether the review is still unresolved.
func (r *ProjectTaskReview) IsNew() bool {
	return r.Result == ReviewNew
}
