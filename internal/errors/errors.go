package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an acta error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"         // 404
	ErrConflict          ErrorCode = "CONFLICT"          // 409
	ErrConfiguration     ErrorCode = "CONFIGURATION"     // 412
	ErrCancelled         ErrorCode = "CANCELLED"         // 499
	ErrInternal          ErrorCode = "INTERNAL"          // 500
	ErrGenerationFailed  ErrorCode = "GENERATION_FAILED" // 502
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrUnsupportedMedia  ErrorCode = "UNSUPPORTED_MEDIA" // 415
	ErrSessionNotReady   ErrorCode = "SESSION_NOT_READY" // 409
	ErrGenerationRunning ErrorCode = "GENERATION_RUNNING"
)

// ActaError represents a structured error with code, status, and details.
type ActaError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ActaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ActaError {
	return &ActaError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing meeting or image.
// kind is "meeting" or "image".
func NewNotFound(kind string, id int64) *ActaError {
	return &ActaError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %d", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing file on disk.
func NewFileNotFound(path string) *ActaError {
	return &ActaError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *ActaError {
	return &ActaError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewSessionNotReady is returned when an edit reaches a session that has no
// persisted meeting behind it (not opened yet, or already closed).
func NewSessionNotReady(state string) *ActaError {
	return &ActaError{
		Code:    ErrSessionNotReady,
		Status:  409,
		Message: fmt.Sprintf("session is not ready (state: %s)", state),
		Details: map[string]any{"state": state},
	}
}

// NewGenerationRunning is returned when a second generation is requested
// while one is still in flight for the same session.
func NewGenerationRunning(meetingID int64) *ActaError {
	return &ActaError{
		Code:    ErrGenerationRunning,
		Status:  409,
		Message: "minutes generation already in progress",
		Details: map[string]any{"meeting_id": meetingID},
	}
}

// NewConfiguration creates a 412 error for missing or invalid configuration,
// such as an absent API key.
func NewConfiguration(msg string) *ActaError {
	return &ActaError{
		Code:    ErrConfiguration,
		Status:  412,
		Message: msg,
	}
}

// NewGenerationFailed creates a 502 error for transport or remote-service
// failures during minutes generation.
func NewGenerationFailed(err error) *ActaError {
	msg := "generation failed"
	if err != nil {
		msg = err.Error()
	}
	return &ActaError{
		Code:    ErrGenerationFailed,
		Status:  502,
		Message: msg,
	}
}

// NewUnsupportedMedia creates a 415 error for attachments that are not images.
func NewUnsupportedMedia(mimeType string) *ActaError {
	return &ActaError{
		Code:    ErrUnsupportedMedia,
		Status:  415,
		Message: fmt.Sprintf("unsupported media type: %s (only images can be attached)", mimeType),
		Details: map[string]any{"mime_type": mimeType},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *ActaError {
	return &ActaError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ActaError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ActaError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error (or anything it wraps) is an ActaError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *ActaError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}

// As returns the ActaError inside err, if any.
func As(err error) (*ActaError, bool) {
	var aErr *ActaError
	if stderrors.As(err, &aErr) {
		return aErr, true
	}
	return nil, false
}
