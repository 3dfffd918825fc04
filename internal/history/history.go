// Package history imports and exports chat conversations as JSON files of
// the form {"messages": [{"role": ..., "content": ...}]}.
package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
)

var log = logger.WithPrefix("history")

// DefaultFileName is suggested when no export path is given
const DefaultFileName = "chat_history.json"

type file struct {
	Messages []llm.Message `json:"messages"`
}

var validRoles = map[string]bool{
	llm.RoleSystem:    true,
	llm.RoleUser:      true,
	llm.RoleAssistant: true,
}

func checkExt(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return chaterrors.HistoryInvalid("chat history files must end in .json: "+path, nil)
	}
	return nil
}

// Export writes messages to path.
func Export(path string, messages []llm.Message) error {
	if err := checkExt(path); err != nil {
		return err
	}
	if len(messages) == 0 {
		return chaterrors.HistoryEmpty()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file{Messages: messages}); err != nil {
		return chaterrors.HistoryInvalid("could not encode chat history", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return chaterrors.HistoryInvalid("could not save chat history", err)
	}
	SaveLastPath(path)
	log.Info("exported %d messages to %s", len(messages), path)
	return nil
}

// Import reads path and returns its valid messages. Messages with an
// unknown role or non-string content are dropped; extra keys are ignored.
func Import(path string) ([]llm.Message, error) {
	if err := checkExt(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, chaterrors.HistoryInvalid("could not load chat history", err)
	}
	SaveLastPath(path)
	return Parse(data)
}

// Parse validates the JSON of a history file
func Parse(data []byte) ([]llm.Message, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, chaterrors.HistoryInvalid("Invalid chat history file format", err)
	}
	raw, ok := top["messages"]
	if !ok {
		return nil, chaterrors.HistoryInvalid("Invalid chat history file format", nil)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, chaterrors.HistoryInvalid("Messages must be a list", err)
	}

	var messages []llm.Message
	for _, item := range items {
		if m, ok := sanitize(item); ok {
			messages = append(messages, m)
		}
	}
	if len(messages) == 0 {
		return nil, chaterrors.HistoryNoValidMessages()
	}
	return messages, nil
}

func sanitize(item json.RawMessage) (llm.Message, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return llm.Message{}, false
	}
	var role, content string
	if err := json.Unmarshal(fields["role"], &role); err != nil || !validRoles[role] {
		return llm.Message{}, false
	}
	rawContent, ok := fields["content"]
	if !ok || string(rawContent) == "null" || json.Unmarshal(rawContent, &content) != nil {
		return llm.Message{}, false
	}
	return llm.Message{Role: role, Content: content}, true
}

// Render replaces v's transcript and conversation with messages, then
// places copy markers. System messages go to the conversation only.
func Render(v *chat.View, messages []llm.Message, assistant string) {
	v.Clear()
	first := true
	for _, m := range messages {
		switch m.Role {
		case llm.RoleUser:
			v.Append(chat.QuestionHeader(m.Content, "", assistant, first))
			first = false
		case llm.RoleAssistant:
			v.Append(m.Content + "\n")
		}
	}
	v.SetHistory(messages)
	v.OnStreamingComplete()
}
