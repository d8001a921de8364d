package session

import (
	"time"

	"github.com/hpungsan/acta/internal/errors"
)

// NoticeKind classifies an asynchronous failure.
type NoticeKind string

const (
	NoticeAutosaveFailed   NoticeKind = "autosave_failed"
	NoticeGenerationFailed NoticeKind = "generation_failed"
)

// Notice reports a failure that happened off the caller's goroutine.
type Notice struct {
	Kind      NoticeKind
	MeetingID int64
	Message   string
	Err       error
	At        time.Time
}

// Describe turns an error into a message fit to show a user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	aErr, ok := errors.As(err)
	if !ok {
		return "Something went wrong: " + err.Error()
	}
	switch aErr.Code {
	case errors.ErrConfiguration:
		return aErr.Message
	case errors.ErrGenerationFailed:
		return "Error generating minutes: " + aErr.Message
	case errors.ErrCancelled:
		return "Minutes generation was cancelled."
	case errors.ErrNotFound:
		return "This meeting no longer exists."
	case errors.ErrSessionNotReady:
		return "Open or create a meeting first."
	case errors.ErrGenerationRunning:
		return "Minutes are already being generated."
	case errors.ErrInvalidRequest, errors.ErrUnsupportedMedia:
		return aErr.Message
	default:
		return "Something went wrong: " + aErr.Message
	}
}
