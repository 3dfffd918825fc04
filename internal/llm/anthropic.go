package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
)

var anthropicLog = logger.WithPrefix("anthropic")

// codeBlockInstruction is always the first system block
const codeBlockInstruction = "Wrap all code examples in a markdown code block. Ensure each code block is complete and self-contained."

// defaultModelMaxTokens applies to models missing from modelMaxTokens
const defaultModelMaxTokens = 4096

// modelMaxTokens caps max_tokens by model prefix; the longest prefix wins.
var modelMaxTokens = map[string]int{
	"claude-3-opus":            4096,
	"claude-3-haiku":           4096,
	"claude-3.5-sonnet":        8192,
	"claude-3-5-sonnet":        8192,
	"claude-3.5-haiku":         4096,
	"claude-3-5-haiku":         4096,
	"claude-3.7-sonnet":        64000,
	"claude-3-7-sonnet":        64000,
	"claude-3-7-sonnet-latest": 64000,
	"claude-sonnet-4":          64000,
	"claude-haiku-4":           64000,
	"claude-opus-4":            32000,
}

// cacheModelPrefixes lists models that accept cache_control on system blocks
var cacheModelPrefixes = []string{
	"claude-3-opus",
	"claude-3-haiku",
	"claude-3-5-sonnet",
	"claude-3.5-sonnet",
	"claude-3-5-haiku",
	"claude-3.5-haiku",
	"claude-3-7-sonnet",
	"claude-3.7-sonnet",
	"claude-sonnet-4",
	"claude-opus-4",
	"claude-haiku-4",
}

// minThinkingBudget is the smallest budget the API accepts
const minThinkingBudget = 1024

// AnthropicClient wraps the Anthropic SDK
type AnthropicClient struct {
	client       *anthropic.Client
	config       *config.Config
	chunkTimeout time.Duration

	mu    sync.RWMutex
	model string
}

// NewAnthropicClient creates a new Claude client. Extra options are
// appended after the ones derived from cfg.
func NewAnthropicClient(cfg *config.Config, extra ...option.RequestOption) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey()),
		// RateLimitedClient owns retries
		option.WithMaxRetries(0),
	}
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	opts = append(opts, extra...)

	client := anthropic.NewClient(opts...)
	model := cfg.Anthropic.Model
	if model == "" {
		model = config.DefaultAnthropicModel
	}
	return &AnthropicClient{
		client:       &client,
		config:       cfg,
		chunkTimeout: cfg.Chat.ChunkTimeout,
		model:        model,
	}
}

// Name returns the assistant's display name
func (c *AnthropicClient) Name() string { return "Claude" }

// SetModel changes the current model
func (c *AnthropicClient) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// GetModel returns the current model
func (c *AnthropicClient) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// MaxTokensFor caps the configured max_tokens at the model's limit
func MaxTokensFor(model string, configured int) int {
	limit := defaultModelMaxTokens
	best := ""
	for prefix, n := range modelMaxTokens {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, limit = prefix, n
		}
	}
	if configured <= 0 || configured > limit {
		return limit
	}
	return configured
}

// SupportsPromptCache reports whether the model accepts cache_control
func SupportsPromptCache(model string) bool {
	for _, p := range cacheModelPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// ReferenceFiles renders context files as the <reference_files> block.
// Files without content are skipped; "" means nothing to send.
func ReferenceFiles(files []ContextFile) string {
	var b strings.Builder
	for _, f := range files {
		if f.Content == "" {
			continue
		}
		b.WriteString("<file>\n")
		fmt.Fprintf(&b, "<path>%s</path>\n", f.Path)
		fmt.Fprintf(&b, "<content>\n%s\n</content>\n", f.Content)
		b.WriteString("</file>\n")
	}
	if b.Len() == 0 {
		return ""
	}
	return "<reference_files>\n" + b.String() + "</reference_files>"
}

func (c *AnthropicClient) buildParams(model string, messages []Message, files []ContextFile) anthropic.MessageNewParams {
	var apiMessages []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			apiMessages = append(apiMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			apiMessages = append(apiMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	system := []anthropic.TextBlockParam{{Type: "text", Text: codeBlockInstruction}}
	if msg, ok := c.config.SystemMessage(); ok {
		system = append(system, anthropic.TextBlockParam{Type: "text", Text: msg})
	}
	if refs := ReferenceFiles(files); refs != "" {
		block := anthropic.TextBlockParam{Type: "text", Text: refs}
		if SupportsPromptCache(model) {
			block.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		system = append(system, block)
	}

	maxTokens := MaxTokensFor(model, c.config.Anthropic.MaxTokens)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  apiMessages,
		System:    system,
	}

	temperature := config.ValidTemperature(c.config.Anthropic.Temperature, config.DefaultAnthropicTemp)
	budget := c.config.Anthropic.ThinkingBudget
	if budget > 0 && budget < minThinkingBudget {
		anthropicLog.Warn("thinking_budget %d is below the API minimum, using %d", budget, minThinkingBudget)
		budget = minThinkingBudget
	}
	if budget > 0 && budget < maxTokens {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
		// extended thinking requires temperature 1
		temperature = 1
	}
	params.Temperature = anthropic.Float(temperature)

	return params
}

// ChatStream sends the conversation and streams the response
func (c *AnthropicClient) ChatStream(ctx context.Context, req Request) <-chan StreamChunk {
	messages := nonEmpty(req.Messages)
	if len(messages) == 0 {
		return single(StreamChunk{Type: ChunkDone})
	}
	if c.config.APIKey() == "" {
		return single(StreamChunk{Type: ChunkError, Error: chaterrors.MissingAPIKey("Anthropic", "ANTHROPIC_API_KEY")})
	}

	model := c.GetModel()
	params := c.buildParams(model, messages, req.ContextFiles)
	anthropicLog.Debug("ChatStream: %d messages, %d context files, model=%s max_tokens=%d",
		len(messages), len(req.ContextFiles), model, params.MaxTokens)

	ch := make(chan StreamChunk, 100)

	go func() {
		defer close(ch)

		stream := c.client.Messages.NewStreaming(ctx, params)
		wrapper := NewStreamWrapper(ctx, stream, c.chunkTimeout)
		defer func() { _ = wrapper.Close() }()

		var usage Usage
		for {
			event, more, err := wrapper.Next()
			if err != nil {
				anthropicLog.Error("ChatStream: stream error: %v", err)
				ch <- StreamChunk{Type: ChunkError, Error: translateAnthropicError(err)}
				return
			}
			if !more {
				// stream ended without message_stop
				ch <- StreamChunk{Type: ChunkDone}
				return
			}

			switch e := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				u := e.Message.Usage
				usage.InputTokens = int(u.InputTokens)
				usage.CacheReadTokens = int(u.CacheReadInputTokens)
				usage.CacheWriteTokens = int(u.CacheCreationInputTokens)

			case anthropic.ContentBlockDeltaEvent:
				switch delta := e.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					ch <- StreamChunk{Type: ChunkText, Text: delta.Text}
				case anthropic.ThinkingDelta:
					ch <- StreamChunk{Type: ChunkThinking, Text: delta.Thinking}
				}

			case anthropic.MessageDeltaEvent:
				usage.OutputTokens = int(e.Usage.OutputTokens)

			case anthropic.MessageStopEvent:
				usage.TotalTokens = usage.InputTokens + usage.OutputTokens
				usage.Cost = CalculateCost(c.config.Anthropic, model, usage)
				ch <- StreamChunk{Type: ChunkUsage, Usage: &usage}
				ch <- StreamChunk{Type: ChunkDone}
				return
			}
		}
	}()

	return ch
}

// ListModels returns the model IDs available to the key
func (c *AnthropicClient) ListModels(ctx context.Context) ([]string, error) {
	if c.config.APIKey() == "" {
		return nil, chaterrors.MissingAPIKey("Anthropic", "ANTHROPIC_API_KEY")
	}

	var ids []string
	pager := c.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for pager.Next() {
		ids = append(ids, pager.Current().ID)
	}
	if err := pager.Err(); err != nil {
		anthropicLog.Error("ListModels: %v", err)
		return nil, translateAnthropicError(err)
	}
	return ids, nil
}

// UsageStatus renders "Tokens: 1,234 sent, 56 received (cache read: 1,000)."
// plus the message and session cost once the session has cost anything.
func (c *AnthropicClient) UsageStatus(u Usage, session SessionStats) string {
	cacheInfo := ""
	switch {
	case u.CacheReadTokens > 0:
		cacheInfo = fmt.Sprintf(" (cache read: %s)", formatCount(u.CacheReadTokens))
	case u.CacheWriteTokens > 0:
		cacheInfo = fmt.Sprintf(" (cache write: %s)", formatCount(u.CacheWriteTokens))
	}

	status := fmt.Sprintf("Tokens: %s sent, %s received%s.",
		formatCount(u.InputTokens), formatCount(u.OutputTokens), cacheInfo)
	if session.Cost > 0 {
		status += fmt.Sprintf(" Cost: $%.4f message, $%.4f session.", u.Cost, session.Cost)
	}
	return status
}

// translateAnthropicError maps SDK errors onto ChatError
func translateAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return chaterrors.LLMHTTPStatus(apiErr.StatusCode, providerErrorMessage(apiErr.RawJSON()))
	}
	switch {
	case errors.Is(err, ErrChunkTimeout):
		return chaterrors.LLMTimeout(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isRateLimitError(err):
		return chaterrors.LLMHTTPStatus(429, err.Error())
	}
	return chaterrors.LLMRequestFailed(err)
}

// providerErrorMessage pulls error.message out of a provider error body
func providerErrorMessage(body string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return strings.TrimSpace(body)
	}
	return payload.Error.Message
}
