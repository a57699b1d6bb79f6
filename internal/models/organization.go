package models

import (
	"time"
)

// OrgRole represents a user's role within an organization.
type OrgRole string

const (
	OrgRoleAdmin OrgRole = "admin"
	OrgRoleStaff OrgRole = "staff"
)

// Organization represents a nonprofit that owns projects.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Website     string    `json:"website,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewOrganization creates a new Organization with initialized timestamps.
func NewOrganization(name, description string) *Organization {
	now := time.Now()
	return &Organization{
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// OrganizationMember represents a user's membership in an organization.
type OrganizationMember struct {
	OrganizationID string  `json:"organization_id"`
	UserID         string  `json:"user_id"`
	Role           OrgRole `json:"role"`
}
