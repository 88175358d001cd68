// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Document store errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrTimeout        = errors.New("operation timed out")

	// Draft lifecycle errors.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrBlankNote        = errors.New("note cannot be empty")
	ErrNoDraft          = errors.New("no active draft")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrMissingFields    = errors.New("missing required fields")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error whose message should be shown to the user.
// The sub-state machines carry UserError messages in their Error variants.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// Message extracts the text to surface for err: the UserMessage when err is
// a UserError, otherwise err.Error(). Returns fallback for a nil error.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}
