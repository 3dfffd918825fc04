package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
	"github.com/abdul-hamid-achik/claudette/internal/sse"
)

var geminiLog = logger.WithPrefix("gemini")

// DefaultGeminiBaseURL is the Generative Language API root
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// MaxGeminiRequestSize is the largest request body sent (2 MiB less 1 KiB of headroom)
const MaxGeminiRequestSize = 2*1024*1024 - 1024

const (
	contextStartMarker = "--- Start of Included Context Files ---"
	contextEndMarker   = "--- End of Included Context Files ---"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	CandidateCount  int     `json:"candidateCount"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiSafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

type geminiCandidate struct {
	Content       geminiContent        `json:"content"`
	FinishReason  string               `json:"finishReason"`
	SafetyRatings []geminiSafetyRating `json:"safetyRatings"`
}

type geminiChunk struct {
	Candidates     []geminiCandidate `json:"candidates"`
	UsageMetadata  *geminiUsage      `json:"usageMetadata"`
	PromptFeedback *struct {
		BlockReason   string       `json:"blockReason"`
		UsageMetadata *geminiUsage `json:"usageMetadata"`
	} `json:"promptFeedback"`
}

// usage returns the chunk's usage metadata, which some responses nest in
// promptFeedback.
func (c geminiChunk) usage() *geminiUsage {
	if c.UsageMetadata != nil {
		return c.UsageMetadata
	}
	if c.PromptFeedback != nil {
		return c.PromptFeedback.UsageMetadata
	}
	return nil
}

// GeminiClient talks to the Generative Language API over plain HTTP
type GeminiClient struct {
	http         *http.Client
	config       *config.Config
	baseURL      string
	chunkTimeout time.Duration

	mu    sync.RWMutex
	model string
}

// NewGeminiClient creates a Gemini client. A nil httpClient gets one whose
// transport waits at most chat.request_timeout for response headers.
func NewGeminiClient(cfg *config.Config, httpClient *http.Client) *GeminiClient {
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.Chat.RequestTimeout
		httpClient = &http.Client{Transport: transport}
	}
	base := strings.TrimRight(cfg.Gemini.BaseURL, "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	model := cfg.Gemini.Model
	if model == "" {
		model = config.DefaultGeminiModel
	}
	timeout := cfg.Chat.ChunkTimeout
	if timeout <= 0 {
		timeout = defaultChunkTimeout
	}
	return &GeminiClient{
		http:         httpClient,
		config:       cfg,
		baseURL:      base,
		chunkTimeout: timeout,
		model:        strings.TrimPrefix(model, "models/"),
	}
}

// Name returns the assistant's display name
func (c *GeminiClient) Name() string { return "Gemini" }

// SetModel changes the current model; a "models/" prefix is accepted
func (c *GeminiClient) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = strings.TrimPrefix(model, "models/")
}

// GetModel returns the current model without the "models/" prefix
func (c *GeminiClient) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// ContextPreamble renders context files the way they are prepended to the
// first user turn. No files yields "".
func ContextPreamble(files []ContextFile) string {
	if len(files) == 0 {
		return ""
	}
	parts := []string{contextStartMarker}
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("<file path=\"%s\">\n%s\n</file>", f.Path, f.Content))
	}
	parts = append(parts, contextEndMarker+"\n")
	return strings.Join(parts, "\n")
}

// formatContents converts history into Gemini turns. The result starts with
// a user turn and alternates; of two adjacent same-role turns the later one
// is kept.
func formatContents(messages []Message, files []ContextFile) []geminiContent {
	var contents []geminiContent
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		var role string
		switch m.Role {
		case RoleUser:
			role = "user"
		case RoleAssistant:
			role = "model"
		default:
			continue
		}
		if len(contents) == 0 && role != "user" {
			continue
		}
		turn := geminiContent{Role: role, Parts: []geminiPart{{Text: text}}}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1] = turn
			continue
		}
		contents = append(contents, turn)
	}

	if preamble := ContextPreamble(files); preamble != "" && len(contents) > 0 {
		first := &contents[0].Parts[0]
		first.Text = preamble + "\n" + first.Text
	}
	return contents
}

// systemInstruction picks the selected system message. An index outside
// the list falls back to the first message.
func (c *GeminiClient) systemInstruction() *geminiContent {
	msgs := c.config.SystemMessages
	i := c.config.DefaultSystemMessageIndex

	var text string
	if i >= 0 && i < len(msgs) {
		text = strings.TrimSpace(msgs[i])
	} else if len(msgs) > 0 {
		text = strings.TrimSpace(msgs[0])
	}
	if text == "" {
		return nil
	}
	return &geminiContent{Parts: []geminiPart{{Text: text}}}
}

func (c *GeminiClient) buildRequest(messages []Message, files []ContextFile) geminiRequest {
	g := c.config.Gemini
	return geminiRequest{
		Contents: formatContents(messages, files),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     config.ValidTemperature(g.Temperature, config.DefaultGeminiTemp),
			TopP:            config.ValidTopP(g.TopP),
			TopK:            config.ValidTopK(g.TopK),
			MaxOutputTokens: g.MaxTokens,
			CandidateCount:  1,
		},
		SystemInstruction: c.systemInstruction(),
	}
}

func (c *GeminiClient) modelPath(model string) string {
	return c.baseURL + "/models/" + url.PathEscape(strings.TrimPrefix(model, "models/"))
}

// ChatStream sends the conversation and streams the response
func (c *GeminiClient) ChatStream(ctx context.Context, req Request) <-chan StreamChunk {
	messages := nonEmpty(req.Messages)
	if len(messages) == 0 {
		return single(StreamChunk{Type: ChunkDone})
	}
	apiKey := c.config.APIKey()
	if apiKey == "" {
		return single(StreamChunk{Type: ChunkError, Error: chaterrors.MissingAPIKey("Gemini", "GEMINI_API_KEY")})
	}

	body, err := json.Marshal(c.buildRequest(messages, req.ContextFiles))
	if err != nil {
		return single(StreamChunk{Type: ChunkError, Error: chaterrors.LLMRequestFailed(err)})
	}
	if len(body) > MaxGeminiRequestSize {
		geminiLog.Warn("ChatStream: request of %d bytes exceeds %d", len(body), MaxGeminiRequestSize)
		return single(StreamChunk{Type: ChunkError, Error: chaterrors.RequestTooLarge(len(body), MaxGeminiRequestSize)})
	}

	model := c.GetModel()
	endpoint := c.modelPath(model) + ":streamGenerateContent?alt=sse"
	geminiLog.Debug("ChatStream: %d messages, %d context files, model=%s, %d bytes",
		len(messages), len(req.ContextFiles), model, len(body))

	ch := make(chan StreamChunk, 100)

	go func() {
		defer close(ch)

		// cancelled with ErrChunkTimeout when the server goes quiet
		streamCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		watchdog := time.AfterFunc(c.chunkTimeout, func() { cancel(ErrChunkTimeout) })
		defer watchdog.Stop()

		resp, err := sse.Post(streamCtx, c.http, endpoint, body, map[string]string{"x-goog-api-key": apiKey})
		if err != nil {
			geminiLog.Error("ChatStream: request failed: %v", err)
			ch <- StreamChunk{Type: ChunkError, Error: translateGeminiError(streamCtx, err)}
			return
		}
		defer func() { _ = resp.Body.Close() }()

		var usage *Usage
		finish := func() {
			if usage != nil {
				ch <- StreamChunk{Type: ChunkUsage, Usage: usage}
			}
			ch <- StreamChunk{Type: ChunkDone}
		}

		scanner := sse.NewScanner(resp.Body)
		for {
			event, err := scanner.Next()
			if errors.Is(err, io.EOF) {
				finish()
				return
			}
			if err != nil {
				geminiLog.Error("ChatStream: stream error: %v", err)
				ch <- StreamChunk{Type: ChunkError, Error: translateGeminiError(streamCtx, err)}
				return
			}
			watchdog.Reset(c.chunkTimeout)

			var chunk geminiChunk
			if err := sse.DecodeJSON(event.Data, &chunk); err != nil {
				geminiLog.Warn("ChatStream: skipping chunk: %v", err)
				continue
			}

			if u := chunk.usage(); u != nil && u.TotalTokenCount > 0 {
				usage = &Usage{
					InputTokens:  u.PromptTokenCount,
					OutputTokens: u.CandidatesTokenCount,
					TotalTokens:  u.TotalTokenCount,
				}
			}

			if len(chunk.Candidates) == 0 {
				if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
					reason := chunk.PromptFeedback.BlockReason
					geminiLog.Warn("ChatStream: prompt blocked: %s", reason)
					ch <- StreamChunk{Type: ChunkNotice, Text: fmt.Sprintf("\n[Blocked: %s]", reason)}
					finish()
					return
				}
				continue
			}

			candidate := chunk.Candidates[0]
			if len(candidate.Content.Parts) > 0 && candidate.Content.Parts[0].Text != "" {
				ch <- StreamChunk{Type: ChunkText, Text: candidate.Content.Parts[0].Text}
			}

			notice, terminal := finishNotice(candidate)
			if notice != "" {
				ch <- StreamChunk{Type: ChunkNotice, Text: notice}
			}
			if terminal {
				geminiLog.Warn("ChatStream: stopped with finish reason %s", candidate.FinishReason)
				finish()
				return
			}
		}
	}()

	return ch
}

// finishNotice maps a finish reason onto the transcript annotation and
// whether the response is over.
func finishNotice(c geminiCandidate) (string, bool) {
	switch c.FinishReason {
	case "", "STOP", "FINISH_REASON_UNSPECIFIED", "NOT_FINISHED":
		return "", false
	case "MAX_TOKENS":
		return "\n[Stopped: Max Tokens]", false
	case "SAFETY":
		ratings := make([]string, 0, len(c.SafetyRatings))
		for _, r := range c.SafetyRatings {
			ratings = append(ratings, fmt.Sprintf("%s: %s", r.Category, r.Probability))
		}
		return fmt.Sprintf("\n[Blocked: SAFETY - %s]", strings.Join(ratings, ", ")), true
	default:
		return fmt.Sprintf("\n[Finished: %s]", c.FinishReason), true
	}
}

// translateGeminiError maps transport failures onto ChatError
func translateGeminiError(ctx context.Context, err error) error {
	var statusErr *sse.StatusError
	if errors.As(err, &statusErr) {
		msg := providerErrorMessage(string(statusErr.Body))
		return chaterrors.LLMHTTPStatus(statusErr.StatusCode, msg)
	}
	if errors.Is(context.Cause(ctx), ErrChunkTimeout) {
		return chaterrors.LLMTimeout(ErrChunkTimeout)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return chaterrors.LLMRequestFailed(err)
}

type geminiModel struct {
	Name                       string   `json:"name"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

type geminiModelList struct {
	Models        []geminiModel `json:"models"`
	NextPageToken string        `json:"nextPageToken"`
}

// ListModels returns chat-capable models as "models/<id>", best first
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	apiKey := c.config.APIKey()
	if apiKey == "" {
		return nil, chaterrors.MissingAPIKey("Gemini", "GEMINI_API_KEY")
	}

	var names []string
	pageToken := ""
	for {
		page, err := c.listModelsPage(ctx, apiKey, pageToken)
		if err != nil {
			geminiLog.Error("ListModels: %v", err)
			return nil, err
		}
		for _, m := range page.Models {
			if !supportsChat(m.SupportedGenerationMethods) {
				continue
			}
			name := m.Name
			if !strings.HasPrefix(name, "models/") {
				name = "models/" + name
			}
			names = append(names, name)
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	SortGeminiModels(names)
	return names, nil
}

func (c *GeminiClient) listModelsPage(ctx context.Context, apiKey, pageToken string) (*geminiModelList, error) {
	q := url.Values{"pageSize": {"1000"}}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models?"+q.Encode(), nil)
	if err != nil {
		return nil, chaterrors.LLMRequestFailed(err)
	}
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, translateGeminiError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, chaterrors.LLMRequestFailed(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, chaterrors.LLMHTTPStatus(resp.StatusCode, providerErrorMessage(string(data)))
	}

	var page geminiModelList
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, chaterrors.LLMRequestFailed(fmt.Errorf("decode model list: %w", err))
	}
	return &page, nil
}

func supportsChat(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" || m == "streamGenerateContent" {
			return true
		}
	}
	return false
}

// SortGeminiModels orders names with "pro" models first, then "1.5", then
// "latest", then alphabetically.
func SortGeminiModels(names []string) {
	rank := func(name string) [3]bool {
		return [3]bool{
			!strings.Contains(name, "pro"),
			!strings.Contains(name, "1.5"),
			!strings.Contains(name, "latest"),
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		for k := range ri {
			if ri[k] != rj[k] {
				return !ri[k]
			}
		}
		return names[i] < names[j]
	})
}

// UsageStatus renders "Tokens: 1,234 prompt, 56 completion, 1,290 total."
// and nothing when the response carried no usage.
func (c *GeminiClient) UsageStatus(u Usage, _ SessionStats) string {
	if u.TotalTokens <= 0 {
		return ""
	}
	return fmt.Sprintf("Tokens: %s prompt, %s completion, %s total.",
		formatCount(u.InputTokens), formatCount(u.OutputTokens), formatCount(u.TotalTokens))
}
