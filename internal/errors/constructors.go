package errors

import (
	"fmt"
	"net/http"
)

// LLMUnavailable creates an error for when the provider cannot be reached.
func LLMUnavailable(cause error) *ChatError {
	return &ChatError{
		Category:  CategoryLLM,
		Code:      "llm_unavailable",
		Message:   "LLM service is unavailable",
		Retryable: true,
		Cause:     cause,
	}
}

// LLMRequestFailed creates an error for when an LLM request fails.
func LLMRequestFailed(cause error) *ChatError {
	return &ChatError{
		Category:  CategoryLLM,
		Code:      "llm_request_failed",
		Message:   "LLM request failed",
		Retryable: true,
		Cause:     cause,
	}
}

// LLMHTTPStatus creates an error for a non-2xx provider response. message is
// the provider's own error text when the body carried one.
// Rate limits and server errors are retryable.
func LLMHTTPStatus(status int, message string) *ChatError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &ChatError{
		Category:  CategoryLLM,
		Code:      "llm_http_status",
		Message:   fmt.Sprintf("HTTP %d: %s", status, message),
		Retryable: status == http.StatusTooManyRequests || status >= 500,
		status:    status,
	}
}

// LLMTimeout creates an error for when an LLM request times out.
func LLMTimeout(cause error) *ChatError {
	return &ChatError{
		Category:  CategoryLLM,
		Code:      "llm_timeout",
		Message:   "LLM request timed out",
		Retryable: true,
		Cause:     cause,
	}
}

// LLMBlocked creates an error for a response stopped by the provider,
// e.g. a safety filter.
func LLMBlocked(reason string) *ChatError {
	return &ChatError{
		Category:  CategoryLLM,
		Code:      "llm_blocked",
		Message:   fmt.Sprintf("response stopped: %s", reason),
		Retryable: false,
	}
}

// RequestTooLarge creates an error for a payload over the provider limit.
func RequestTooLarge(size, limit int) *ChatError {
	return &ChatError{
		Category:  CategoryLLM,
		Code:      "request_too_large",
		Message:   fmt.Sprintf("request too large (%d bytes, limit %d); remove some context files", size, limit),
		Retryable: false,
	}
}

// MissingAPIKey creates an error for a provider with no configured key.
func MissingAPIKey(provider, envVar string) *ChatError {
	return &ChatError{
		Category:  CategoryConfig,
		Code:      "missing_api_key",
		Message:   fmt.Sprintf("A %s API key is required. Set %s or add api_key to the config file.", provider, envVar),
		Retryable: false,
	}
}

// ConfigLoadFailed creates an error for when configuration loading fails.
func ConfigLoadFailed(path string, cause error) *ChatError {
	return &ChatError{
		Category:  CategoryConfig,
		Code:      "config_load_failed",
		Message:   fmt.Sprintf("failed to load config from %q", path),
		Retryable: false,
		Cause:     cause,
	}
}

// ConfigSaveFailed creates an error for when configuration cannot be written.
func ConfigSaveFailed(path string, cause error) *ChatError {
	return &ChatError{
		Category:  CategoryConfig,
		Code:      "config_save_failed",
		Message:   fmt.Sprintf("failed to save config to %q", path),
		Retryable: false,
		Cause:     cause,
	}
}

// FileNotText creates an error for a context file that cannot be attached.
func FileNotText(path, reason string) *ChatError {
	return &ChatError{
		Category:  CategoryContext,
		Code:      "file_not_text",
		Message:   fmt.Sprintf("%s: %s", path, reason),
		Retryable: false,
	}
}

// FileReadFailed creates an error for a context file read failure.
func FileReadFailed(path string, cause error) *ChatError {
	return &ChatError{
		Category:  CategoryContext,
		Code:      "file_read_failed",
		Message:   fmt.Sprintf("error reading file %s", path),
		Retryable: false,
		Cause:     cause,
	}
}

// HistoryEmpty creates an error for exporting a chat with no messages.
func HistoryEmpty() *ChatError {
	return &ChatError{
		Category: CategoryHistory,
		Code:     "history_empty",
		Message:  "No chat history to export",
	}
}

// HistoryInvalid creates an error for a malformed history file.
func HistoryInvalid(reason string, cause error) *ChatError {
	return &ChatError{
		Category: CategoryHistory,
		Code:     "history_invalid",
		Message:  reason,
		Cause:    cause,
	}
}

// HistoryNoValidMessages creates an error for an import with nothing usable.
func HistoryNoValidMessages() *ChatError {
	return &ChatError{
		Category: CategoryHistory,
		Code:     "history_no_valid_messages",
		Message:  "No valid messages found in import file",
	}
}

// SessionNotFound creates an error for an unknown saved session.
func SessionNotFound(id string) *ChatError {
	return &ChatError{
		Category: CategorySession,
		Code:     "session_not_found",
		Message:  fmt.Sprintf("session %q not found", id),
	}
}

// ClipboardUnavailable creates an error for a failed clipboard write.
func ClipboardUnavailable(cause error) *ChatError {
	return &ChatError{
		Category: CategoryClipboard,
		Code:     "clipboard_unavailable",
		Message:  "could not copy to clipboard",
		Cause:    cause,
	}
}
