package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: device_command_failed, device_busy, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context (state, step, command)
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches any ExecutionError carrying the same code, so derived copies
// (WithCause, WithDetails) still satisfy errors.Is against the sentinels below.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// ErrDeviceCommandFailure is raised for every adb invocation that exits
	// non-zero, whatever the reason (disconnected, missing file, app not
	// installed, permission denied).
	ErrDeviceCommandFailure = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "device_command_failed",
		Message:  "device command failed",
	}
	ErrDeviceNotFound = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "device_not_found",
		Message:  "no connected device",
	}

	ErrDeviceBusy = &ExecutionError{
		Category: ErrCategoryBusy,
		Code:     "device_busy",
		Message:  "device is busy",
	}

	// ErrInvalidImage rejects image names that are empty or would leave the
	// source and picture folders.
	ErrInvalidImage = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_image",
		Message:  "invalid image name",
	}

	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)
