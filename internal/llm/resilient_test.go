package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	for range 3 {
		if !cb.Allow() {
			t.Fatal("closed circuit should allow requests")
		}
		cb.RecordFailure()
	}
	if cb.State() != CircuitOpen {
		t.Errorf("expected open after 3 failures, got %d", cb.State())
	}
	if cb.Allow() {
		t.Error("open circuit should reject requests")
	}
}

func TestCircuitBreaker_SingleProbeAfterCooldown(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, 30*time.Second)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("should reject during cooldown")
	}

	now = now.Add(31 * time.Second)
	if !cb.Allow() {
		t.Fatal("should allow one probe after cooldown")
	}
	if cb.Allow() {
		t.Error("second concurrent probe should be rejected")
	}

	cb.RecordSuccess()
	if cb.State() != CircuitClosed || !cb.Allow() {
		t.Error("successful probe should close the circuit")
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(2, time.Second)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	if !cb.Allow() {
		t.Fatal("probe should be allowed")
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen || cb.Allow() {
		t.Error("failed probe should reopen the circuit")
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Error("failures should be consecutive to open the circuit")
	}
}

func TestResilientClient_PausesAfterOutages(t *testing.T) {
	mock := NewMockLLMClient()
	mock.ChatStreamFunc = func(ctx context.Context, req Request) <-chan StreamChunk {
		return MockStream(StreamChunk{Type: ChunkError, Error: chaterrors.LLMHTTPStatus(503, "unavailable")})
	}
	rc := NewResilientClient(mock, config.RateLimitConfig{OutageThreshold: 2, OutageCooldown: time.Minute})
	req := Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}

	collect(rc.ChatStream(context.Background(), req))
	collect(rc.ChatStream(context.Background(), req))
	chunks := collect(rc.ChatStream(context.Background(), req))

	if n := len(mock.Calls()); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
	if len(chunks) != 1 || !errors.Is(chunks[0].Error, ErrProviderPaused) {
		t.Errorf("chunks = %+v, want paused error", chunks)
	}
}

func TestResilientClient_IgnoresRequestErrors(t *testing.T) {
	mock := NewMockLLMClient()
	mock.ChatStreamFunc = func(ctx context.Context, req Request) <-chan StreamChunk {
		return MockStream(StreamChunk{Type: ChunkError, Error: chaterrors.LLMHTTPStatus(401, "invalid x-api-key")})
	}
	rc := NewResilientClient(mock, config.RateLimitConfig{OutageThreshold: 1, OutageCooldown: time.Minute})
	req := Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}

	for range 3 {
		collect(rc.ChatStream(context.Background(), req))
	}
	if n := len(mock.Calls()); n != 3 {
		t.Errorf("provider called %d times, want 3", n)
	}
	if rc.Breaker().State() != CircuitClosed {
		t.Error("auth errors should not open the circuit")
	}
}

func TestNewClient_DelegatesModel(t *testing.T) {
	cfg := config.DefaultConfig()
	client := NewClient(cfg, nil)
	if client.Name() != "Claude" {
		t.Errorf("Name() = %q", client.Name())
	}
	client.SetModel("claude-sonnet-4-5")
	if client.GetModel() != "claude-sonnet-4-5" {
		t.Errorf("GetModel() = %q", client.GetModel())
	}

	cfg.Provider = config.ProviderGemini
	if NewClient(cfg, nil).Name() != "Gemini" {
		t.Error("gemini provider should build the Gemini client")
	}
}
