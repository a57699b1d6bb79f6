package storage

import (
	"errors"
	"strings"
)

// ErrDuplicate is returned when an insert or update violates a uniqueness
// constraint (duplicate role, requirement, username, ...).
var ErrDuplicate = errors.New("duplicate record")

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("record not found")

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure. The driver does not expose a typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
