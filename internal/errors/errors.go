package errors

import (
	"errors"
	"fmt"
)

// Category groups errors by subsystem
type Category string

const (
	CategoryLLM       Category = "llm"
	CategoryConfig    Category = "config"
	CategoryContext   Category = "context"
	CategoryHistory   Category = "history"
	CategorySession   Category = "session"
	CategoryClipboard Category = "clipboard"
)

// ChatError is the structured error type shared by every package.
// Message is safe to show in the transcript; Cause carries the detail.
type ChatError struct {
	Category  Category
	Code      string
	Message   string
	Retryable bool
	Cause     error

	status int
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

func (e *ChatError) Unwrap() error {
	return e.Cause
}

func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Category == t.Category
}

// IsRetryable checks whether an error is retryable.
// Returns false for nil errors or non-ChatError types.
func IsRetryable(err error) bool {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from a ChatError.
// Returns an empty Category for nil errors or non-ChatError types.
func GetCategory(err error) Category {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// StatusCode extracts the HTTP status from a wrapped ChatError, or 0.
func StatusCode(err error) int {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.status
	}
	return 0
}

// GetUserMessage returns a user-friendly message for the error.
// For ChatError it returns the Message field; for other errors it returns Error().
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

// Describe renders an error for the transcript: the ChatError message
// followed by its cause, or Error() for anything else.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ce *ChatError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if ce.Cause != nil {
		return ce.Message + ": " + ce.Cause.Error()
	}
	return ce.Message
}
