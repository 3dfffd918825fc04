package llm

import (
	"context"
	"strings"

	"github.com/abdul-hamid-achik/claudette/internal/config"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextFile is a file attached to a conversation
type ContextFile struct {
	Path    string // relative display path
	Content string
}

// Request is one streamed chat turn
type Request struct {
	Messages     []Message
	ContextFiles []ContextFile
}

// ChunkType identifies the kind of stream chunk
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkThinking ChunkType = "thinking"
	ChunkNotice   ChunkType = "notice" // provider annotation appended to the transcript, e.g. "[Stopped: Max Tokens]"
	ChunkUsage    ChunkType = "usage"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// Usage is the token accounting reported at the end of a response
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	TotalTokens      int
	Cost             float64 // dollars, 0 when the model has no pricing
}

// StreamChunk represents a chunk of streamed response
type StreamChunk struct {
	Type  ChunkType
	Text  string
	Usage *Usage
	Error error
}

// SessionStats accumulates usage across a chat
type SessionStats struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add folds one response's usage into the totals
func (s *SessionStats) Add(u Usage) {
	s.InputTokens += u.InputTokens
	s.OutputTokens += u.OutputTokens
	s.Cost += u.Cost
}

// LLMClient is the interface for chat providers
type LLMClient interface {
	// Name is the assistant's display name, e.g. "Claude".
	Name() string
	ChatStream(ctx context.Context, req Request) <-chan StreamChunk
	ListModels(ctx context.Context) ([]string, error)
	// UsageStatus renders the status line shown after a response.
	UsageStatus(u Usage, session SessionStats) string
	SetModel(model string)
	GetModel() string
}

// nonEmpty drops messages whose content is blank
func nonEmpty(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) != "" {
			out = append(out, m)
		}
	}
	return out
}

// single returns a closed channel holding one chunk
func single(chunk StreamChunk) <-chan StreamChunk {
	ch := make(chan StreamChunk, 1)
	ch <- chunk
	close(ch)
	return ch
}

// NewProvider returns the bare client for cfg.Provider
func NewProvider(cfg *config.Config) LLMClient {
	if cfg.Provider == config.ProviderGemini {
		return NewGeminiClient(cfg, nil)
	}
	return NewAnthropicClient(cfg)
}

// NewClient wraps the provider for interactive use: a token bucket with
// retries, behind a breaker that pauses requests during an outage.
// onWait may be nil.
func NewClient(cfg *config.Config, onWait WaitCallback) LLMClient {
	limited := NewRateLimitedClient(NewProvider(cfg), &cfg.RateLimit)
	if onWait != nil {
		limited.SetWaitCallback(onWait)
	}
	return NewResilientClient(limited, cfg.RateLimit)
}
