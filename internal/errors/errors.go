package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the categories the chat service distinguishes.
var (
	// ErrInvalidInput - malformed request body or missing identifier
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized - no or invalid session
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermissionDenied - authenticated, but not the owner
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound - conversation or tool does not exist
	ErrNotFound = errors.New("not found")

	// ErrTimeout - a generation pass or tool exceeded its time budget
	ErrTimeout = errors.New("timeout")

	// ErrToolLoop - the model kept requesting tools past the pass limit
	ErrToolLoop = errors.New("tool loop")
)

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFound wraps message as not found.
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// PermissionDenied wraps message as permission denied.
func PermissionDenied(message string) error {
	return fmt.Errorf("%s: %w", message, ErrPermissionDenied)
}

// InvalidInput wraps message as invalid input.
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Timeout wraps message as timeout.
func Timeout(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTimeout)
}

// FromContext maps a context error to the taxonomy. Deadline overruns become
// ErrTimeout; cancellation is returned unchanged.
func FromContext(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", message, ErrTimeout)
	default:
		return fmt.Errorf("%s: %w", message, err)
	}
}

// Category returns a short label for logs.
func Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrToolLoop):
		return "tool_loop"
	default:
		return "internal"
	}
}
