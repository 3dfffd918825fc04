package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
)

// ErrProviderPaused is the cause reported while requests are paused
var ErrProviderPaused = errors.New("provider failed repeatedly; requests paused")

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Paused, reject requests
	CircuitHalfOpen                     // One probe request allowed
)

// CircuitBreaker pauses requests after consecutive provider outages.
type CircuitBreaker struct {
	mu sync.Mutex

	state       CircuitState
	failures    int
	openedAt    time.Time
	maxFailures int
	cooldown    time.Duration
	probing     bool
	now         func() time.Time
}

// NewCircuitBreaker creates a circuit breaker. Non-positive values use
// 5 failures and a 30s cooldown.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Allow reports whether a request may go out. After the cooldown exactly
// one probe is let through; its outcome closes or reopens the circuit.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
		return true
	case CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return true
}

// RecordSuccess closes the circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.probing = false
}

// RecordFailure counts an outage; a failed probe reopens immediately
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.probing = false
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
	}
}

// Release returns an unused probe slot, e.g. when the user cancelled
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.probing = false
}

// ResilientClient stops sending requests to a provider that keeps failing.
// Only outages count: throttling, 5xx and transport failures. A bad key or
// a malformed request is the user's problem and leaves the circuit alone.
type ResilientClient struct {
	LLMClient
	cb *CircuitBreaker
}

// NewResilientClient wraps inner with a breaker configured from cfg.
func NewResilientClient(inner LLMClient, cfg config.RateLimitConfig) *ResilientClient {
	return &ResilientClient{
		LLMClient: inner,
		cb:        NewCircuitBreaker(cfg.OutageThreshold, cfg.OutageCooldown),
	}
}

// Breaker exposes the circuit for status display
func (rc *ResilientClient) Breaker() *CircuitBreaker { return rc.cb }

// ChatStream forwards the stream and records its outcome.
func (rc *ResilientClient) ChatStream(ctx context.Context, req Request) <-chan StreamChunk {
	if !rc.cb.Allow() {
		return single(StreamChunk{Type: ChunkError, Error: chaterrors.LLMUnavailable(ErrProviderPaused)})
	}

	inner := rc.LLMClient.ChatStream(ctx, req)
	out := make(chan StreamChunk, 100)
	go func() {
		defer close(out)
		var streamErr error
		for chunk := range inner {
			if chunk.Type == ChunkError {
				streamErr = chunk.Error
			}
			out <- chunk
		}
		switch {
		case streamErr == nil:
			rc.cb.RecordSuccess()
		case isOutage(streamErr):
			rc.cb.RecordFailure()
		default:
			rc.cb.Release()
		}
	}()
	return out
}

// isOutage reports whether err says the provider, not the request, failed
func isOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if status := chaterrors.StatusCode(err); status != 0 {
		return status == 429 || status >= 500
	}
	return chaterrors.GetCategory(err) == chaterrors.CategoryLLM && chaterrors.IsRetryable(err)
}
