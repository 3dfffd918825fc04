package debug

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// traceFile returns the single file in dir starting with prefix
func traceFile(t *testing.T, dir, prefix string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".jsonl") {
			return filepath.Join(dir, e.Name())
		}
	}
	t.Fatalf("no %s*.jsonl in %s", prefix, dir)
	return ""
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestInitAndClose(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDebugDir, dir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("second Init() error: %v", err)
	}
	if !IsEnabled() {
		t.Error("expected IsEnabled() after Init")
	}
	traceFile(t, dir, "session_")

	Close()
	if IsEnabled() {
		t.Error("expected IsEnabled() to be false after Close")
	}
	Close()
}

func TestRequested(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"1", true},
		{"true", true},
		{"TRUE", true},
	}
	for _, tt := range tests {
		t.Setenv(EnvDebug, tt.value)
		if got := Requested(); got != tt.want {
			t.Errorf("Requested() with %q = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestNilSafety_BeforeInit(t *testing.T) {
	Close()

	Log("test.event", map[string]any{"key": "value"})
	LLMRequest("req_1", "model", "view", 3, 2)
	LLMResponse("req_1", time.Second, 10, 20, nil)
	LLMRequestFull("req_1", map[string]any{"model": "test"})
	LLMResponseFull("req_1", map[string]any{"text": "hello"})
	Error("stream", errors.New("oops"), nil)

	if IsEnabled() {
		t.Error("expected IsEnabled() to be false without Init")
	}
}

func TestEventFormatting(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDebugDir, dir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	LLMRequest("req_test", "claude-sonnet", "view-1", 5, 2)
	LLMResponse("req_test", 1500*time.Millisecond, 100, 40, errors.New("overloaded"))
	Error("stream", errors.New("boom"), map[string]any{"detail": strings.Repeat("x", 300)})
	Close()

	lines := readLines(t, traceFile(t, dir, "session_"))
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines (start, 3 events, end), got %d", len(lines))
	}

	events := make([]Event, len(lines))
	for i, line := range lines {
		if err := json.Unmarshal([]byte(line), &events[i]); err != nil {
			t.Fatalf("line %d is not valid JSON: %v\n%s", i, err, line)
		}
		if events[i].Timestamp == "" || events[i].Session == "" {
			t.Errorf("line %d: missing timestamp or session: %s", i, line)
		}
	}

	wantTypes := []string{EventSessionStart, EventLLMRequest, EventLLMResponse, EventError, EventSessionEnd}
	for i, want := range wantTypes {
		if events[i].Event != want {
			t.Errorf("event %d = %q, want %q", i, events[i].Event, want)
		}
	}
	if events[2].Data["duration_ms"] != float64(1500) || events[2].Data["error"] != "overloaded" {
		t.Errorf("response data = %v", events[2].Data)
	}
	if detail, _ := events[3].Data["detail"].(string); len(detail) != 203 {
		t.Errorf("detail not truncated: %d chars", len(detail))
	}
}

func TestLLMPayloadLogging(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDebugDir, dir)
	t.Setenv(EnvDebugLLM, "1")

	if err := Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	LLMRequestFull("req_test", map[string]any{"model": "claude-sonnet", "messages": 5})
	LLMResponseFull("req_test", map[string]any{"text": "response text"})
	Close()

	lines := readLines(t, traceFile(t, dir, "llm_"))
	if len(lines) != 2 {
		t.Fatalf("expected request and response, got %d lines", len(lines))
	}
	for i, want := range []string{"request", "response"} {
		var p LLMPayload
		if err := json.Unmarshal([]byte(lines[i]), &p); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if p.Type != want || p.RequestID != "req_test" {
			t.Errorf("line %d = %+v", i, p)
		}
	}
}

func TestGeneratedIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if !strings.HasPrefix(id, "req_") || len(id) != 16 {
			t.Fatalf("bad request id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate request ID: %q", id)
		}
		seen[id] = true
	}

	if id := generateSessionID(); !strings.HasPrefix(id, "sess_") || len(id) != 21 {
		t.Errorf("bad session id %q", id)
	}
}
