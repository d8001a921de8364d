package errors

import (
	"fmt"
	"testing"
)

func TestActaError_Error(t *testing.T) {
	err := &ActaError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "meeting not found: 7",
	}

	expected := "NOT_FOUND: meeting not found: 7"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("notes are empty")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "notes are empty" {
		t.Errorf("Message = %q, want %q", err.Message, "notes are empty")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("image", 42)

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["kind"] != "image" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "image")
	}
	if err.Details["id"] != int64(42) {
		t.Errorf("Details[id] = %v, want 42", err.Details["id"])
	}
}

func TestNewConfiguration(t *testing.T) {
	err := NewConfiguration("API key not found")

	if err.Code != ErrConfiguration {
		t.Errorf("Code = %q, want %q", err.Code, ErrConfiguration)
	}
	if err.Status != 412 {
		t.Errorf("Status = %d, want 412", err.Status)
	}
}

func TestNewGenerationFailed(t *testing.T) {
	err := NewGenerationFailed(fmt.Errorf("gemini api error: quota exceeded"))

	if err.Code != ErrGenerationFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrGenerationFailed)
	}
	if err.Message != "gemini api error: quota exceeded" {
		t.Errorf("Message = %q", err.Message)
	}

	nilErr := NewGenerationFailed(nil)
	if nilErr.Message != "generation failed" {
		t.Errorf("Message = %q, want %q", nilErr.Message, "generation failed")
	}
}

func TestNewUnsupportedMedia(t *testing.T) {
	err := NewUnsupportedMedia("application/pdf")

	if err.Status != 415 {
		t.Errorf("Status = %d, want 415", err.Status)
	}
	if err.Details["mime_type"] != "application/pdf" {
		t.Errorf("Details[mime_type] = %v", err.Details["mime_type"])
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk I/O error"))
	if err.Code != ErrInternal || err.Message != "disk I/O error" {
		t.Errorf("NewInternal = %+v", err)
	}

	nilErr := NewInternal(nil)
	if nilErr.Message != "internal error" {
		t.Errorf("Message = %q, want %q", nilErr.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("meeting", 1), ErrNotFound, true},
		{"different code", NewNotFound("meeting", 1), ErrConflict, false},
		{"wrapped", fmt.Errorf("loading: %w", NewConfiguration("x")), ErrConfiguration, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewConflict("busy"))

	aErr, ok := As(wrapped)
	if !ok {
		t.Fatal("As() should find ActaError")
	}
	if aErr.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", aErr.Code, ErrConflict)
	}

	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As() should not match plain errors")
	}
}
