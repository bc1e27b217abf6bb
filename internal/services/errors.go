package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthenticated matches every AuthError.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrPermissionDenied is returned when the caller's role is insufficient.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrLockRequired is returned when a mutation is attempted without holding the equipment lock.
	ErrLockRequired = errors.New("this equipment is not locked by you; acquire the lock before saving")
	// ErrLockConflict matches every LockConflictError.
	ErrLockConflict = errors.New("equipment is locked by another user")
	// ErrNotFound is returned for missing equipment, attachments and users.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// AuthError reports a missing, invalid or expired credential.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return e.Reason }

// Is makes errors.Is(err, ErrUnauthenticated) true for any AuthError.
func (e *AuthError) Is(target error) bool { return target == ErrUnauthenticated }

var (
	ErrInvalidCredentials = &AuthError{Reason: "invalid credentials"}
	ErrAccountLocked      = &AuthError{Reason: "account locked"}
	ErrAccountDisabled    = &AuthError{Reason: "account disabled"}
	ErrInvalidToken       = &AuthError{Reason: "invalid token"}
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LockConflictError describes a live lock held by someone other than the caller.
type LockConflictError struct {
	EquipmentID uint
	HolderID    uint
	HolderName  string
	LockedAt    time.Time
}

func (e *LockConflictError) Error() string {
	holder := e.HolderName
	if holder == "" {
		holder = fmt.Sprintf("user %d", e.HolderID)
	}
	return fmt.Sprintf("equipment is locked by %s since %s", holder, e.LockedAt.UTC().Format(time.RFC3339))
}

func (e *LockConflictError) Is(target error) bool { return target == ErrLockConflict }
