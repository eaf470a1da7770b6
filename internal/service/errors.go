package service

import (
	"errors"
	"fmt"
)

// ValidationError rejects a command before any state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Command rejections.
var (
	ErrEmptyProtocol   = &ValidationError{Field: "protocol", Reason: "protocol is empty"}
	ErrInvalidBasename = &ValidationError{Field: "basename", Reason: "must be a non-empty file name without path separators"}
	ErrInvalidAddress  = &ValidationError{Field: "address", Reason: "must be between 1 and 24"}
	ErrInvalidPort     = &ValidationError{Field: "port", Reason: "port is empty"}
	ErrInvalidStep     = &ValidationError{Field: "step", Reason: "temperature and time must be finite numbers"}

	ErrBoxRunning   = errors.New("box is running: stop it first")
	ErrNotRunning   = errors.New("box is not running")
	ErrUnknownBox   = errors.New("unknown box")
	ErrEngineClosed = errors.New("scheduler is not running")
)

// IsValidation reports whether err is a rejected user input.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
