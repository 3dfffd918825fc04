// Package debug writes a JSONL trace of chat requests when CLAUDETTE_DEBUG=1.
// With CLAUDETTE_DEBUG_LLM=1 the conversation sent and the text received
// go to a second file.
package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventSessionStart = "session.start"
	EventSessionEnd   = "session.end"
	EventLLMRequest   = "llm.request"
	EventLLMResponse  = "llm.response"
	EventError        = "error"
)

// Environment switches
const (
	EnvDebug    = "CLAUDETTE_DEBUG"
	EnvDebugDir = "CLAUDETTE_DEBUG_DIR"
	EnvDebugLLM = "CLAUDETTE_DEBUG_LLM"
)

// defaultDebugDir returns the default debug directory using os.UserCacheDir.
func defaultDebugDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "claudette", "debug")
	}
	return filepath.Join(os.TempDir(), "claudette-debug")
}

// global tracer instance
var (
	globalTracer *Tracer
	globalMu     sync.RWMutex
)

// Event is one line of the trace
type Event struct {
	Timestamp string         `json:"ts"`
	Event     string         `json:"event"`
	Session   string         `json:"session"`
	Data      map[string]any `json:"data,omitempty"`
}

// LLMPayload is one full request or response
type LLMPayload struct {
	Timestamp string         `json:"ts"`
	Type      string         `json:"type"` // "request" or "response"
	Session   string         `json:"session"`
	RequestID string         `json:"request_id"`
	Data      map[string]any `json:"data"`
}

// Tracer handles debug event logging
type Tracer struct {
	sessionID   string
	sessionFile *os.File
	llmFile     *os.File
	llmEnabled  bool
	mu          sync.Mutex
}

// Requested reports whether CLAUDETTE_DEBUG asks for a trace
func Requested() bool {
	v := strings.ToLower(os.Getenv(EnvDebug))
	return v == "1" || v == "true"
}

// Init opens the trace files. It is a no-op when already initialized.
func Init() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTracer != nil {
		return nil
	}

	debugDir := os.Getenv(EnvDebugDir)
	if debugDir == "" {
		debugDir = defaultDebugDir()
	}
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		return fmt.Errorf("failed to create debug directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	sessionPath := filepath.Join(debugDir, fmt.Sprintf("session_%s.jsonl", timestamp))
	sessionFile, err := os.OpenFile(sessionPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}

	llmEnabled := os.Getenv(EnvDebugLLM) == "1"
	var llmFile *os.File
	if llmEnabled {
		llmPath := filepath.Join(debugDir, fmt.Sprintf("llm_%s.jsonl", timestamp))
		llmFile, err = os.OpenFile(llmPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			_ = sessionFile.Close()
			return fmt.Errorf("failed to create LLM file: %w", err)
		}
	}

	latestPath := filepath.Join(debugDir, "latest.jsonl")
	_ = os.Remove(latestPath)
	_ = os.Symlink(sessionPath, latestPath)

	tracer := &Tracer{
		sessionID:   generateSessionID(),
		sessionFile: sessionFile,
		llmFile:     llmFile,
		llmEnabled:  llmEnabled,
	}
	tracer.logEvent(EventSessionStart, map[string]any{
		"session_id": tracer.sessionID,
		"debug_dir":  debugDir,
		"llm_trace":  llmEnabled,
	})

	globalTracer = tracer
	return nil
}

// IsEnabled returns whether tracing is active
func IsEnabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalTracer != nil
}

func current() *Tracer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalTracer
}

// Log records a structured event
func Log(eventType string, data map[string]any) {
	if t := current(); t != nil {
		t.logEvent(eventType, data)
	}
}

// LLMRequest records a request leaving for the provider
func LLMRequest(requestID, model, viewID string, msgCount, fileCount int) {
	Log(EventLLMRequest, map[string]any{
		"request_id": requestID,
		"model":      model,
		"view":       viewID,
		"messages":   msgCount,
		"files":      fileCount,
	})
}

// LLMResponse records the end of a response
func LLMResponse(requestID string, duration time.Duration, inputTokens, outputTokens int, err error) {
	data := map[string]any{
		"request_id":    requestID,
		"duration_ms":   duration.Milliseconds(),
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	Log(EventLLMResponse, data)
}

// LLMRequestFull records the full request when CLAUDETTE_DEBUG_LLM=1
func LLMRequestFull(requestID string, payload map[string]any) {
	if t := current(); t != nil && t.llmEnabled {
		t.logLLMPayload("request", requestID, payload)
	}
}

// LLMResponseFull records the full response when CLAUDETTE_DEBUG_LLM=1
func LLMResponseFull(requestID string, payload map[string]any) {
	if t := current(); t != nil && t.llmEnabled {
		t.logLLMPayload("response", requestID, payload)
	}
}

// Error records a failure with optional context
func Error(errType string, err error, ctx map[string]any) {
	data := map[string]any{
		"type":  errType,
		"error": err.Error(),
	}
	for k, v := range truncateValues(ctx) {
		data[k] = v
	}
	Log(EventError, data)
}

// Close closes the debug tracer and logs session end
func Close() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTracer == nil {
		return
	}
	globalTracer.logEvent(EventSessionEnd, map[string]any{
		"session_id": globalTracer.sessionID,
	})
	if globalTracer.sessionFile != nil {
		_ = globalTracer.sessionFile.Close()
	}
	if globalTracer.llmFile != nil {
		_ = globalTracer.llmFile.Close()
	}
	globalTracer = nil
}

func (t *Tracer) logEvent(eventType string, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessionFile == nil {
		return
	}
	t.writeLine(t.sessionFile, Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Event:     eventType,
		Session:   t.sessionID,
		Data:      data,
	})
}

func (t *Tracer) logLLMPayload(payloadType, requestID string, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.llmFile == nil {
		return
	}
	t.writeLine(t.llmFile, LLMPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      payloadType,
		Session:   t.sessionID,
		RequestID: requestID,
		Data:      data,
	})
}

// writeLine appends v as one JSON line; t.mu must be held
func (t *Tracer) writeLine(f *os.File, v any) {
	line, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
}

func generateSessionID() string {
	return "sess_" + hexID()[:16]
}

// GenerateRequestID creates a request identifier, e.g. "req_3f2a9c0d11b4"
func GenerateRequestID() string {
	return "req_" + hexID()[:12]
}

func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// truncateValues shortens long strings for the event log
func truncateValues(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		if s, ok := v.(string); ok && len(s) > 200 {
			result[k] = s[:200] + "..."
			continue
		}
		result[k] = v
	}
	return result
}
