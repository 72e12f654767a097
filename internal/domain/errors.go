package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Versioning errors
	ErrInvalidIntent   = errors.New("invalid intent")
	ErrInvalidHead     = errors.New("invalid head")
	ErrVersionConflict = errors.New("version conflict")
	ErrLockTimeout     = errors.New("lock timeout")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (family, entity)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InvalidIntentError is returned when a resolve request is malformed:
// an unknown intent, or a "version" intent without exactly one source.
type InvalidIntentError struct {
	Intent      string
	SourceCount int
	Reason      string
}

func (e *InvalidIntentError) Error() string {
	return fmt.Sprintf("invalid intent %q with %d source(s): %s", e.Intent, e.SourceCount, e.Reason)
}

func (e *InvalidIntentError) StatusCode() int { return http.StatusBadRequest }

func (e *InvalidIntentError) Is(target error) bool { return target == ErrInvalidIntent }

// InvalidHeadError is returned when HEAD would point at an entity outside the family.
type InvalidHeadError struct {
	FamilyID string
	EntityID string
}

func (e *InvalidHeadError) Error() string {
	return fmt.Sprintf("entity %s is not a member of family %s", e.EntityID, e.FamilyID)
}

func (e *InvalidHeadError) StatusCode() int { return http.StatusBadRequest }

func (e *InvalidHeadError) Is(target error) bool { return target == ErrInvalidHead }

// VersionConflictError means the (family_id, version_number) uniqueness
// constraint rejected an insert. Under correct locking this never happens;
// callers may retry the whole allocation.
type VersionConflictError struct {
	FamilyID      string
	VersionNumber int
}

func (e *VersionConflictError) Error() string {
	if e.FamilyID == "" {
		return "version number already taken"
	}
	return fmt.Sprintf("version %d already taken in family %s", e.VersionNumber, e.FamilyID)
}

func (e *VersionConflictError) StatusCode() int { return http.StatusServiceUnavailable }

func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// IsRetryable reports whether err may be resolved by re-running the
// allocation transaction from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrLockTimeout)
}
