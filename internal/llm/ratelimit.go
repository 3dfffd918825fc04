package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
)

// TokenEstimator estimates token counts for rate limiting
type TokenEstimator struct{}

// NewTokenEstimator creates a new token estimator
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

// EstimateTokens estimates the number of tokens in a string
// Uses a rough approximation: chars/4 + 20% buffer
func (e *TokenEstimator) EstimateTokens(text string) int {
	// Rough estimation: ~4 characters per token on average
	baseEstimate := len(text) / 4
	// Add 20% buffer for safety
	return int(float64(baseEstimate) * 1.2)
}

// EstimateMessages estimates tokens for a slice of messages
func (e *TokenEstimator) EstimateMessages(messages []Message) int {
	total := 0
	for _, msg := range messages {
		// Add overhead for message structure (~4 tokens per message)
		total += 4
		total += e.EstimateTokens(msg.Content)
	}
	return total
}

// WaitInfo contains information about a rate limit wait
type WaitInfo struct {
	Duration    time.Duration // How long to wait
	Reason      string        // Why we're waiting (e.g., "token bucket cooldown" or "API returned 429")
	Attempt     int           // Current attempt number (1-based, 0 if not a retry)
	MaxAttempts int           // Maximum number of attempts (0 if not a retry)
}

// WaitCallback is called when the client needs to wait due to rate limiting.
// It should block for the specified duration or until context is cancelled.
// If nil, the default time.After behavior is used.
type WaitCallback func(ctx context.Context, info WaitInfo) error

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	onWait  WaitCallback
}

// NewTokenBucket creates a new token bucket rate limiter
// tokensPerMinute is converted to tokens per second for the limiter
func NewTokenBucket(tokensPerMinute int) *TokenBucket {
	// Convert tokens/minute to tokens/second
	tokensPerSecond := float64(tokensPerMinute) / 60.0
	// Burst size allows for some flexibility (10 seconds worth of tokens)
	burstSize := tokensPerMinute / 6
	if burstSize < 1000 {
		burstSize = 1000
	}

	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), burstSize),
	}
}

// SetWaitCallback sets a callback to be invoked when waiting for tokens
func (tb *TokenBucket) SetWaitCallback(cb WaitCallback) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.onWait = cb
}

// Wait blocks until the specified number of tokens are available
func (tb *TokenBucket) Wait(ctx context.Context, tokens int) error {
	tb.mu.Lock()
	onWait := tb.onWait
	tb.mu.Unlock()

	// a request larger than the burst could never be reserved; it waits
	// for a full bucket instead
	if burst := tb.limiter.Burst(); tokens > burst {
		logger.Debug("Rate limit: %d tokens exceed burst size %d, reserving a full bucket", tokens, burst)
		tokens = burst
	}
	reservation := tb.limiter.ReserveN(time.Now(), tokens)
	if !reservation.OK() {
		logger.Debug("Rate limit: reservation of %d tokens refused, not limiting", tokens)
		return nil
	}

	delay := reservation.Delay()
	if delay > 0 {
		logger.Debug("Rate limit: waiting %v for %d tokens", delay, tokens)

		// Use callback if available
		if onWait != nil {
			err := onWait(ctx, WaitInfo{
				Duration: delay,
				Reason:   "token bucket cooldown",
			})
			if err != nil {
				reservation.Cancel()
				return err
			}
			return nil
		}

		// Default behavior: simple time.After
		select {
		case <-time.After(delay):
			return nil
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		}
	}

	return nil
}

// RateLimitedClient wraps an LLMClient with a token bucket and retries
// rate-limited or overloaded responses.
type RateLimitedClient struct {
	LLMClient
	tokenBucket *TokenBucket
	estimator   *TokenEstimator
	cfg         *config.RateLimitConfig
	onWait      WaitCallback
}

// NewRateLimitedClient creates a new rate-limited client wrapper
func NewRateLimitedClient(client LLMClient, cfg *config.RateLimitConfig) *RateLimitedClient {
	return &RateLimitedClient{
		LLMClient:   client,
		tokenBucket: NewTokenBucket(cfg.TokensPerMinute),
		estimator:   NewTokenEstimator(),
		cfg:         cfg,
	}
}

// SetWaitCallback sets a callback to be invoked when waiting due to rate limiting.
// The callback is called both for token bucket waits and retry waits.
func (c *RateLimitedClient) SetWaitCallback(cb WaitCallback) {
	c.onWait = cb
	c.tokenBucket.SetWaitCallback(cb)
}

// estimate sizes a request for the token bucket
func (c *RateLimitedClient) estimate(req Request) int {
	tokens := c.estimator.EstimateMessages(req.Messages)
	for _, f := range req.ContextFiles {
		tokens += c.estimator.EstimateTokens(f.Content)
	}
	return tokens
}

func (c *RateLimitedClient) wait(ctx context.Context, info WaitInfo) error {
	if c.onWait != nil {
		return c.onWait(ctx, info)
	}
	select {
	case <-time.After(info.Duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ChatStream streams the response. A request is retried only while
// nothing has been forwarded, so a retry never repeats visible text.
func (c *RateLimitedClient) ChatStream(ctx context.Context, req Request) <-chan StreamChunk {
	ch := make(chan StreamChunk, 100)

	go func() {
		defer close(ch)

		if c.cfg.EnableRateLimiting {
			estimatedTokens := c.estimate(req)
			logger.Debug("Rate limit: estimated %d tokens for stream request", estimatedTokens)
			if err := c.tokenBucket.Wait(ctx, estimatedTokens); err != nil {
				ch <- StreamChunk{Type: ChunkError, Error: err}
				return
			}
		}

		var lastErr error
		for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := c.calculateBackoff(attempt)
				logger.Debug("Rate limit: stream retry %d/%d, waiting %v", attempt, c.cfg.MaxRetries, delay)
				err := c.wait(ctx, WaitInfo{
					Duration:    delay,
					Reason:      chaterrors.GetUserMessage(lastErr),
					Attempt:     attempt,
					MaxAttempts: c.cfg.MaxRetries,
				})
				if err != nil {
					ch <- StreamChunk{Type: ChunkError, Error: err}
					return
				}
			}

			stream := c.LLMClient.ChatStream(ctx, req)

			forwarded := false
			retry := false
			for chunk := range stream {
				if chunk.Type == ChunkError && chunk.Error != nil && !forwarded && shouldRetry(chunk.Error) {
					lastErr = chunk.Error
					retry = true
					logger.Warn("Rate limit hit on stream (attempt %d/%d): %v", attempt+1, c.cfg.MaxRetries+1, chunk.Error)
					// drain so the provider goroutine can exit
					for range stream {
					}
					break
				}
				switch chunk.Type {
				case ChunkText, ChunkThinking, ChunkNotice:
					forwarded = true
				}
				ch <- chunk
			}

			if !retry {
				return
			}
		}

		// Max retries exceeded
		if lastErr != nil {
			ch <- StreamChunk{Type: ChunkError, Error: lastErr}
		}
	}()

	return ch
}

// shouldRetry reports whether a failed request is worth repeating
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if status := chaterrors.StatusCode(err); status != 0 {
		return status == 429 || status >= 500
	}
	return isRateLimitError(err)
}

// calculateBackoff calculates the backoff delay for a retry attempt
// Uses exponential backoff with jitter
func (c *RateLimitedClient) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: baseDelay * 2^attempt
	backoff := float64(c.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))

	// Add jitter (0-25% of backoff)
	jitter := backoff * 0.25 * rand.Float64()
	backoff += jitter

	// Cap at maxDelay
	if backoff > float64(c.cfg.MaxDelay) {
		backoff = float64(c.cfg.MaxDelay)
	}

	return time.Duration(backoff)
}

// isRateLimitError checks if an error is a rate limit (429) error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "Too Many Requests") ||
		strings.Contains(errStr, "overloaded")
}
