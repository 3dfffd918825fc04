// Package chat holds chat tabs: the markdown transcript, the conversation
// sent to the provider, attached context files and the copy markers placed
// after fenced code blocks.
package chat

import (
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/claudette/internal/codeblock"
	"github.com/abdul-hamid-achik/claudette/internal/contextfiles"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
	"github.com/google/uuid"
)

// DefaultStatusPrefix is used by StatusMessage when no prefix is given
const DefaultStatusPrefix = "ℹ️"

// View is one chat tab
type View struct {
	mu sync.Mutex

	id         string
	name       string
	transcript strings.Builder
	history    []llm.Message
	stats      llm.SessionStats
	tracker    *codeblock.Tracker
	streaming  bool

	files *contextfiles.Set
}

// NewView creates an empty chat tab
func NewView(name string) *View {
	return &View{
		id:      uuid.NewString(),
		name:    name,
		tracker: codeblock.NewTracker(),
		files:   contextfiles.NewSet(),
	}
}

// RestoreView recreates a saved tab under its original id
func RestoreView(id, name string) *View {
	v := NewView(name)
	if id != "" {
		v.id = id
	}
	return v
}

// ID returns the tab's unique id
func (v *View) ID() string { return v.id }

// Name returns the tab's display name
func (v *View) Name() string { return v.name }

// Files returns the context files attached to this tab
func (v *View) Files() *contextfiles.Set { return v.files }

// HandleQuestion records a user turn and returns the conversation to send.
func (v *View) HandleQuestion(question string) []llm.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append(v.history, llm.Message{Role: llm.RoleUser, Content: question})
	return append([]llm.Message(nil), v.history...)
}

// HandleResponse records an assistant turn
func (v *View) HandleResponse(response string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append(v.history, llm.Message{Role: llm.RoleAssistant, Content: response})
}

// History returns a copy of the conversation
func (v *View) History() []llm.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]llm.Message(nil), v.history...)
}

// SetHistory replaces the conversation
func (v *View) SetHistory(messages []llm.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append([]llm.Message(nil), messages...)
}

// ClearHistory forgets the conversation but keeps the transcript
func (v *View) ClearHistory() {
	v.mu.Lock()
	v.history = nil
	v.mu.Unlock()
	v.StatusMessage("Chat history cleared", "✅")
}

// Append adds text to the end of the transcript
func (v *View) Append(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transcript.WriteString(text)
}

// Transcript returns the markdown transcript
func (v *View) Transcript() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transcript.String()
}

// Size returns the transcript length in bytes
func (v *View) Size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transcript.Len()
}

// Clear empties the transcript, the conversation and the markers.
// Context files and session stats stay.
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transcript.Reset()
	v.history = nil
	v.tracker.Reset()
}

// StatusMessage appends a one-line notice to the transcript
func (v *View) StatusMessage(msg, prefix string) {
	if prefix == "" {
		prefix = DefaultStatusPrefix
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.transcript.Len() > 0 {
		v.transcript.WriteString("\n\n")
	}
	v.transcript.WriteString(prefix + " " + msg + "\n")
}

// OnStreamingComplete closes fences the response left open and places
// copy markers after every complete block.
func (v *View) OnStreamingComplete() (added, removed []codeblock.Marker) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transcript.WriteString(codeblock.Close(v.transcript.String()))
	return v.tracker.Update(v.transcript.String())
}

// Markers returns the copy markers in transcript order
func (v *View) Markers() []codeblock.Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tracker.Markers()
}

// Marker returns copy marker n, counting from 1
func (v *View) Marker(n int) (codeblock.Marker, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tracker.Get(n)
}

// Annotated returns the transcript with a label after every marked block
func (v *View) Annotated(label func(codeblock.Marker) string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tracker.Annotate(v.transcript.String(), label)
}

// Stats returns the session token and cost totals
func (v *View) Stats() llm.SessionStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// AddUsage folds one response into the session totals and returns them
func (v *View) AddUsage(u llm.Usage) llm.SessionStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats.Add(u)
	return v.stats
}

// SetStats replaces the session totals, e.g. when a tab is restored
func (v *View) SetStats(s llm.SessionStats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = s
}

// Streaming reports whether a response is being received
func (v *View) Streaming() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.streaming
}

func (v *View) setStreaming(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.streaming = on
}

// ContextFiles converts the attached files for a provider request
func (v *View) ContextFiles() []llm.ContextFile {
	files := v.files.List()
	out := make([]llm.ContextFile, 0, len(files))
	for _, f := range files {
		if f.Content == "" {
			continue
		}
		out = append(out, llm.ContextFile{Path: f.RelPath, Content: f.Content})
	}
	return out
}
