package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	"github.com/abdul-hamid-achik/claudette/internal/debug"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
)

var log = logger.WithPrefix("chat")

// EventType identifies what an Event carries
type EventType string

const (
	EventText     EventType = "text"     // response text appended to the transcript
	EventThinking EventType = "thinking" // extended thinking, not part of the transcript
	EventStatus   EventType = "status"   // usage line for the status bar
	EventError    EventType = "error"    // error line appended to the transcript
	EventDone     EventType = "done"     // always last
)

// Event reports streaming progress to the UI
type Event struct {
	Type   EventType
	ViewID string
	Text   string
	Err    error
	Usage  *llm.Usage
}

// Asker sends questions from a chat tab to the provider and streams the
// answer back into the tab.
type Asker struct {
	client llm.LLMClient
	cfg    *config.Config
}

// NewAsker creates an asker
func NewAsker(client llm.LLMClient, cfg *config.Config) *Asker {
	return &Asker{client: client, cfg: cfg}
}

// Client returns the provider client
func (a *Asker) Client() llm.LLMClient { return a.client }

// errorPrefix matches the label each assistant's transcript uses
func (a *Asker) errorPrefix() string {
	if a.cfg.Provider == config.ProviderGemini {
		return "\n[API Error] "
	}
	return "[Error] "
}

// QuestionHeader renders the transcript block that precedes a response.
func QuestionHeader(question, selection, assistant string, first bool) string {
	var b strings.Builder
	if !first {
		b.WriteString("\n\n")
	}
	b.WriteString("## Question\n\n" + question + "\n\n")
	if strings.TrimSpace(selection) != "" {
		b.WriteString("### Selected Code\n\n```\n" + selection + "\n```\n\n")
	}
	b.WriteString("### " + assistant + "'s Response\n\n")
	return b.String()
}

// UserMessage is the conversation entry for a question
func UserMessage(question, selection string) string {
	if strings.TrimSpace(selection) == "" {
		return question
	}
	return question + "\n\nCode:\n" + selection
}

// Ask appends the question to v and starts streaming the answer. The
// returned channel is closed after EventDone. A nil channel means nothing
// was sent: the question was blank, no API key is configured, or v is
// already streaming.
func (a *Asker) Ask(ctx context.Context, v *View, selection, question string) <-chan Event {
	question = strings.TrimSpace(question)
	if question == "" || v.Streaming() {
		return nil
	}
	if a.cfg.APIKey() == "" {
		v.Append(chaterrors.MissingAPIKey(a.client.Name(), a.cfg.APIKeyEnv()).Message + "\n")
		return nil
	}

	header := QuestionHeader(question, selection, a.client.Name(), v.Size() == 0)
	conversation := v.HandleQuestion(UserMessage(question, selection))
	v.Append(header)

	req := llm.Request{Messages: conversation, ContextFiles: v.ContextFiles()}
	events := make(chan Event, 64)
	v.setStreaming(true)
	go a.stream(ctx, v, req, events)
	return events
}

func (a *Asker) stream(ctx context.Context, v *View, req llm.Request, events chan<- Event) {
	defer close(events)

	var (
		response strings.Builder
		usage    *llm.Usage
		failure  error
		once     sync.Once
	)
	requestID := debug.GenerateRequestID()
	started := time.Now()
	debug.LLMRequest(requestID, a.client.GetModel(), v.id, len(req.Messages), len(req.ContextFiles))
	debug.LLMRequestFull(requestID, map[string]any{"messages": req.Messages, "context_files": contextPaths(req.ContextFiles)})

	complete := func() {
		once.Do(func() {
			var in, out int
			if usage != nil {
				in, out = usage.InputTokens, usage.OutputTokens
			}
			debug.LLMResponse(requestID, time.Since(started), in, out, failure)
			debug.LLMResponseFull(requestID, map[string]any{"text": response.String()})

			if strings.TrimSpace(response.String()) != "" {
				v.HandleResponse(response.String())
			}
			v.OnStreamingComplete()
			v.setStreaming(false)
			if usage != nil {
				stats := v.AddUsage(*usage)
				events <- Event{Type: EventStatus, ViewID: v.id, Text: a.client.UsageStatus(*usage, stats), Usage: usage}
			}
			events <- Event{Type: EventDone, ViewID: v.id}
		})
	}
	defer complete()

	for chunk := range a.client.ChatStream(ctx, req) {
		switch chunk.Type {
		case llm.ChunkText, llm.ChunkNotice:
			response.WriteString(chunk.Text)
			v.Append(chunk.Text)
			events <- Event{Type: EventText, ViewID: v.id, Text: chunk.Text}
		case llm.ChunkThinking:
			events <- Event{Type: EventThinking, ViewID: v.id, Text: chunk.Text}
		case llm.ChunkUsage:
			usage = chunk.Usage
		case llm.ChunkError:
			failure = chunk.Error
			a.appendError(v, chunk.Error, events)
		case llm.ChunkDone:
		}
	}
}

func contextPaths(files []llm.ContextFile) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

func (a *Asker) appendError(v *View, err error, events chan<- Event) {
	if errors.Is(err, context.Canceled) {
		log.Debug("response cancelled in %s", v.id)
		v.Append("\n\n_Response cancelled._\n")
		events <- Event{Type: EventError, ViewID: v.id, Err: err, Text: "Response cancelled"}
		return
	}
	log.Warn("stream error: %v", err)
	text := a.errorPrefix() + chaterrors.Describe(err)
	v.Append(text)
	events <- Event{Type: EventError, ViewID: v.id, Err: err, Text: text}
}

// Wait drains events and returns the first error reported, if any.
func Wait(events <-chan Event) error {
	var first error
	for ev := range events {
		if ev.Type == EventError && first == nil {
			first = ev.Err
		}
	}
	return first
}
