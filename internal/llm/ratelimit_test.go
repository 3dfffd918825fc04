package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
)

func TestTokenEstimator_EstimateTokens(t *testing.T) {
	estimator := NewTokenEstimator()

	tests := []struct {
		name    string
		text    string
		wantMin int
		wantMax int
	}{
		{
			name:    "empty string",
			text:    "",
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "short text",
			text:    "Hello, world!",
			wantMin: 1,
			wantMax: 10,
		},
		{
			name:    "longer text",
			text:    "This is a longer piece of text that should result in a reasonable token estimate.",
			wantMin: 15,
			wantMax: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimator.EstimateTokens(tt.text)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("EstimateTokens() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestTokenEstimator_EstimateMessages(t *testing.T) {
	estimator := NewTokenEstimator()

	messages := []Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there, how can I help you?"},
		{Role: "user", Content: "Tell me about Go programming."},
	}

	estimate := estimator.EstimateMessages(messages)

	// Should include overhead per message (4 tokens each = 12) plus content estimates
	if estimate < 15 {
		t.Errorf("EstimateMessages() = %v, expected at least 15 (overhead + content)", estimate)
	}
}

func TestTokenBucket_Wait(t *testing.T) {
	// Create a bucket with 1000 tokens/minute (about 16.67 tokens/second)
	bucket := NewTokenBucket(1000)

	ctx := context.Background()

	// First request should not block
	start := time.Now()
	err := bucket.Wait(ctx, 100)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	elapsed := time.Since(start)
	if elapsed > 100*time.Millisecond {
		t.Errorf("First Wait() took too long: %v", elapsed)
	}
}

func TestTokenBucket_Wait_Context_Cancelled(t *testing.T) {
	// Create an already-cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Create a very restrictive bucket that would require waiting
	bucket := NewTokenBucket(1) // 1 token/minute

	// First exhaust the burst allowance
	_ = bucket.Wait(context.Background(), 1000)

	// Now try with cancelled context - should fail
	err := bucket.Wait(ctx, 1000)
	if err == nil {
		t.Error("Wait() should return error when context is cancelled")
	}
	if err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestTokenBucket_Wait_LargerThanBurst(t *testing.T) {
	bucket := NewTokenBucket(6000) // burst 1000

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := bucket.Wait(ctx, 5000); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait() on a full bucket took %v", elapsed)
	}
}

func TestRateLimitedClient_LargeRequestReachesProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	mock := NewMockLLMClient()
	client := NewRateLimitedClient(mock, &cfg.RateLimit)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req := Request{
		Messages:     []Message{{Role: RoleUser, Content: "explain this file"}},
		ContextFiles: []ContextFile{{Path: "big.txt", Content: strings.Repeat("x", 40*1024)}},
	}
	if n, burst := client.estimate(req), client.tokenBucket.limiter.Burst(); n <= burst {
		t.Fatalf("estimate %d does not exceed burst %d", n, burst)
	}

	chunks := collect(client.ChatStream(ctx, req))

	if n := len(mock.ChatStreamCalls); n != 1 {
		t.Fatalf("provider called %d times, want 1", n)
	}
	for _, c := range chunks {
		if c.Type == ChunkError {
			t.Errorf("unexpected error chunk: %v", c.Error)
		}
	}
}

func TestRateLimitedClient_calculateBackoff(t *testing.T) {
	cfg := &config.RateLimitConfig{
		BaseDelay: 1 * time.Second,
		MaxDelay:  60 * time.Second,
	}

	client := &RateLimitedClient{cfg: cfg}

	tests := []struct {
		attempt int
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			attempt: 1,
			wantMin: 1 * time.Second,
			wantMax: 2 * time.Second, // base + 25% jitter max
		},
		{
			attempt: 2,
			wantMin: 2 * time.Second,
			wantMax: 3 * time.Second,
		},
		{
			attempt: 3,
			wantMin: 4 * time.Second,
			wantMax: 6 * time.Second,
		},
		{
			attempt: 10,
			wantMin: 50 * time.Second, // Would be >512s without cap, capped at 60s
			wantMax: 75 * time.Second, // 60s + 25% jitter
		},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			got := client.calculateBackoff(tt.attempt)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("calculateBackoff(%d) = %v, want between %v and %v", tt.attempt, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "429 error",
			err:  errors.New("status code 429"),
			want: true,
		},
		{
			name: "rate limit error",
			err:  errors.New("rate limit exceeded"),
			want: true,
		},
		{
			name: "Rate limit error (capitalized)",
			err:  errors.New("Rate limit reached"),
			want: true,
		},
		{
			name: "too many requests",
			err:  errors.New("too many requests"),
			want: true,
		},
		{
			name: "Too Many Requests (HTTP status text)",
			err:  errors.New("429 Too Many Requests"),
			want: true,
		},
		{
			name: "overloaded",
			err:  errors.New("Overloaded: the API is temporarily overloaded"),
			want: true,
		},
		{
			name: "other error",
			err:  errors.New("connection refused"),
			want: false,
		},
		{
			name: "timeout error",
			err:  errors.New("request timeout"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRateLimitError(tt.err); got != tt.want {
				t.Errorf("isRateLimitError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewTokenBucket(t *testing.T) {
	// Test that bucket is created with reasonable parameters
	bucket := NewTokenBucket(30000) // 30k tokens/minute

	if bucket.limiter == nil {
		t.Error("NewTokenBucket() created bucket with nil limiter")
	}
}

func TestRateLimitConfig_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.RateLimit.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.RateLimit.MaxRetries)
	}
	if cfg.RateLimit.BaseDelay != 1*time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.RateLimit.BaseDelay)
	}
	if cfg.RateLimit.MaxDelay != 60*time.Second {
		t.Errorf("MaxDelay = %v, want 60s", cfg.RateLimit.MaxDelay)
	}
	if cfg.RateLimit.TokensPerMinute != 40000 {
		t.Errorf("TokensPerMinute = %d, want 40000", cfg.RateLimit.TokensPerMinute)
	}
	if !cfg.RateLimit.EnableRateLimiting {
		t.Error("EnableRateLimiting = false, want true")
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", chaterrors.LLMHTTPStatus(429, "rate_limit_error"), true},
		{"529 overloaded", chaterrors.LLMHTTPStatus(529, "Overloaded"), true},
		{"500", chaterrors.LLMHTTPStatus(500, "internal"), true},
		{"401 is final", chaterrors.LLMHTTPStatus(401, "invalid x-api-key"), false},
		{"400 mentioning 429 is final", chaterrors.LLMHTTPStatus(400, "max_tokens: 429 too large"), false},
		{"plain rate limit text", errors.New("rate limit exceeded"), true},
		{"cancelled", context.Canceled, false},
		{"timeout", chaterrors.LLMTimeout(ErrChunkTimeout), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.want {
				t.Errorf("shouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func fastRetryConfig() *config.RateLimitConfig {
	return &config.RateLimitConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func collect(ch <-chan StreamChunk) []StreamChunk {
	var out []StreamChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestRateLimitedClient_RetriesBeforeContent(t *testing.T) {
	mock := NewMockLLMClient()
	calls := 0
	mock.ChatStreamFunc = func(ctx context.Context, req Request) <-chan StreamChunk {
		calls++
		if calls == 1 {
			return single(StreamChunk{Type: ChunkError, Error: chaterrors.LLMHTTPStatus(429, "slow down")})
		}
		return MockStream(StreamChunk{Type: ChunkText, Text: "hello"}, StreamChunk{Type: ChunkDone})
	}

	var waits []WaitInfo
	client := NewRateLimitedClient(mock, fastRetryConfig())
	client.SetWaitCallback(func(ctx context.Context, info WaitInfo) error {
		waits = append(waits, info)
		return nil
	})

	chunks := collect(client.ChatStream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}))

	if calls != 2 {
		t.Fatalf("provider called %d times, want 2", calls)
	}
	if len(waits) != 1 || waits[0].Attempt != 1 || waits[0].Reason != "HTTP 429: slow down" {
		t.Errorf("waits = %+v", waits)
	}
	if len(chunks) != 2 || chunks[0].Text != "hello" || chunks[1].Type != ChunkDone {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestRateLimitedClient_NoRetryAfterContent(t *testing.T) {
	mock := NewMockLLMClient()
	mock.ChatStreamFunc = func(ctx context.Context, req Request) <-chan StreamChunk {
		return MockStream(
			StreamChunk{Type: ChunkText, Text: "partial"},
			StreamChunk{Type: ChunkError, Error: chaterrors.LLMHTTPStatus(529, "Overloaded")},
		)
	}

	client := NewRateLimitedClient(mock, fastRetryConfig())
	chunks := collect(client.ChatStream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}))

	if n := len(mock.ChatStreamCalls); n != 1 {
		t.Fatalf("provider called %d times, want 1", n)
	}
	if len(chunks) != 2 || chunks[1].Type != ChunkError {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestRateLimitedClient_GivesUp(t *testing.T) {
	mock := NewMockLLMClient()
	mock.ChatStreamFunc = func(ctx context.Context, req Request) <-chan StreamChunk {
		return single(StreamChunk{Type: ChunkError, Error: chaterrors.LLMHTTPStatus(503, "unavailable")})
	}

	client := NewRateLimitedClient(mock, fastRetryConfig())
	chunks := collect(client.ChatStream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}))

	if n := len(mock.ChatStreamCalls); n != 3 {
		t.Errorf("provider called %d times, want 3", n)
	}
	if len(chunks) != 1 || chaterrors.StatusCode(chunks[0].Error) != 503 {
		t.Errorf("chunks = %+v", chunks)
	}
}
