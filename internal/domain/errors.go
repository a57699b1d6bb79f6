// Package domain implements the project and task lifecycle engines, the
// volunteer application and review workflow, and the permission model
// gating every mutation.
package domain

import (
	"errors"
	"fmt"

	"github.com/civicworks/volunteerhub/internal/storage"
)

// Kind classifies a domain error so callers can map it to an outcome
// without string matching.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindDuplicate        Kind = "duplicate"
	KindLastOwner        Kind = "last_owner"
)

// Error is a domain-level failure. Lifecycle operations fail fast with an
// *Error and never partially apply.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// PermissionDeniedf builds a permission-denied error.
func PermissionDeniedf(format string, a ...any) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, a...)}
}

// NotFoundf builds a not-found error. It also covers key-consistency
// failures where a caller-supplied parent id does not match the entity.
func NotFoundf(format string, a ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, a...)}
}

// InvalidStatef builds an invalid-state error.
func InvalidStatef(format string, a ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, a...)}
}

// Duplicatef builds a duplicate error for uniqueness violations.
func Duplicatef(format string, a ...any) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, a...)}
}

// LastOwnerf builds a last-owner error: the project would be left without
// an owner.
func LastOwnerf(format string, a ...any) *Error {
	return &Error{Kind: KindLastOwner, Message: fmt.Sprintf(format, a...)}
}

// ErrKind reports the kind of err, or "" if err is not a domain error.
func ErrKind(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	return ErrKind(err) == kind
}

// IsPermissionDenied reports whether err is a permission denial.
func IsPermissionDenied(err error) bool { return IsKind(err, KindPermissionDenied) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsInvalidState reports whether err is an invalid-state error.
func IsInvalidState(err error) bool { return IsKind(err, KindInvalidState) }

// IsDuplicate reports whether err is a duplicate error.
func IsDuplicate(err error) bool { return IsKind(err, KindDuplicate) }

// IsLastOwner reports whether err is a last-owner error.
func IsLastOwner(err error) bool { return IsKind(err, KindLastOwner) }

// isDuplicate reports whether err is a storage uniqueness violation.
func isDuplicate(err error) bool {
	return errors.Is(err, storage.ErrDuplicate)
}
