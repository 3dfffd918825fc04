package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	"github.com/abdul-hamid-achik/claudette/internal/contextfiles"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/history"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
)

var log = logger.WithPrefix("session")

const (
	// MaxSessions is the maximum number of sessions to retain
	MaxSessions = 10
	// CurrentSessionLink is the name of the symlink to the last saved session
	CurrentSessionLink = "current.json"
)

// Session is a saved chat tab
type Session struct {
	ID         string              `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Provider   string              `json:"provider"`
	Model      string              `json:"model"`
	Name       string              `json:"name"`
	Messages   []llm.Message       `json:"messages"`
	Transcript string              `json:"transcript"`
	Files      []contextfiles.File `json:"context_files,omitempty"`
	Stats      llm.SessionStats    `json:"stats"`
}

// SessionInfo contains summary information about a session for listing
type SessionInfo struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Provider  string
	Model     string
	Preview   string // First user message
	MsgCount  int
	FileCount int
}

// Manager handles session persistence
type Manager struct {
	dir     string // ~/.claudette/sessions/
	created map[string]time.Time
}

// NewManager creates a manager for ~/.claudette/sessions
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewManagerAt(filepath.Join(home, ".claudette", "sessions"))
}

// NewManagerAt creates a manager storing sessions in dir
func NewManagerAt(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Manager{dir: dir, created: make(map[string]time.Time)}, nil
}

// Dir returns the sessions directory
func (m *Manager) Dir() string { return m.dir }

// Snapshot captures v for saving
func Snapshot(v *chat.View, provider, model string) *Session {
	return &Session{
		ID:         v.ID(),
		Provider:   provider,
		Model:      model,
		Name:       v.Name(),
		Messages:   v.History(),
		Transcript: v.Transcript(),
		Files:      v.Files().List(),
		Stats:      v.Stats(),
	}
}

// Save writes v to disk. Tabs with an empty conversation are skipped.
func (m *Manager) Save(v *chat.View, provider, model string) error {
	s := Snapshot(v, provider, model)
	if len(s.Messages) == 0 {
		return nil
	}
	return m.write(s)
}

func (m *Manager) write(s *Session) error {
	now := time.Now()
	s.UpdatedAt = now
	if created, ok := m.created[s.ID]; ok {
		s.CreatedAt = created
	} else if prev, err := m.Load(s.ID); err == nil {
		s.CreatedAt = prev.CreatedAt
	} else {
		s.CreatedAt = now
	}
	m.created[s.ID] = s.CreatedAt

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(m.sessionPath(s.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := m.updateCurrentLink(s.ID); err != nil {
		return fmt.Errorf("failed to update current link: %w", err)
	}
	if err := m.cleanupOldSessions(); err != nil {
		log.Warn("failed to cleanup old sessions: %v", err)
	}
	return nil
}

// Load loads a session by ID
func (m *Manager) Load(id string) (*Session, error) {
	data, err := os.ReadFile(m.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, chaterrors.SessionNotFound(id)
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &session, nil
}

// Find loads the session whose id starts with prefix. Listing output shows
// short ids, so a unique prefix is enough.
func (m *Manager) Find(prefix string) (*Session, error) {
	if s, err := m.Load(prefix); err == nil {
		return s, nil
	}
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	var match string
	for _, info := range infos {
		if strings.HasPrefix(info.ID, prefix) {
			if match != "" {
				return nil, fmt.Errorf("session prefix %q is ambiguous", prefix)
			}
			match = info.ID
		}
	}
	if match == "" {
		return nil, chaterrors.SessionNotFound(prefix)
	}
	return m.Load(match)
}

// List returns information about all saved sessions, most recent first
func (m *Manager) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || name == CurrentSessionLink {
			continue
		}

		session, err := m.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			log.Debug("skipping unreadable session %s: %v", name, err)
			continue
		}

		info := SessionInfo{
			ID:        session.ID,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
			Provider:  session.Provider,
			Model:     session.Model,
			MsgCount:  len(session.Messages),
			FileCount: len(session.Files),
		}
		for _, msg := range session.Messages {
			if msg.Role == llm.RoleUser {
				info.Preview = truncate(msg.Content, 50)
				break
			}
		}
		sessions = append(sessions, info)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// GetCurrent returns the last saved session, or nil when there is none
func (m *Manager) GetCurrent() (*Session, error) {
	linkPath := filepath.Join(m.dir, CurrentSessionLink)
	target, err := os.Readlink(linkPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read current session link: %w", err)
	}

	session, err := m.Load(strings.TrimSuffix(filepath.Base(target), ".json"))
	if err != nil {
		_ = os.Remove(linkPath)
		return nil, nil
	}
	return session, nil
}

// Delete removes a session by ID
func (m *Manager) Delete(id string) error {
	if err := os.Remove(m.sessionPath(id)); err != nil {
		if os.IsNotExist(err) {
			return chaterrors.SessionNotFound(id)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	delete(m.created, id)

	linkPath := filepath.Join(m.dir, CurrentSessionLink)
	if target, err := os.Readlink(linkPath); err == nil {
		if strings.TrimSuffix(filepath.Base(target), ".json") == id {
			_ = os.Remove(linkPath)
		}
	}
	return nil
}

// Restore rebuilds a chat tab from s. Sessions saved without a transcript
// get one rendered from the conversation.
func Restore(s *Session) *chat.View {
	v := chat.RestoreView(s.ID, s.Name)
	if s.Transcript != "" {
		v.Append(s.Transcript)
		v.SetHistory(s.Messages)
		v.OnStreamingComplete()
	} else {
		history.Render(v, s.Messages, assistantName(s.Provider))
	}
	v.Files().Replace(s.Files)
	v.SetStats(s.Stats)
	return v
}

func assistantName(provider string) string {
	if provider == "gemini" {
		return "Gemini"
	}
	return "Claude"
}

// sessionPath returns the file path for a session ID
func (m *Manager) sessionPath(id string) string {
	return filepath.Join(m.dir, id+".json")
}

// updateCurrentLink points current.json at the given session
func (m *Manager) updateCurrentLink(id string) error {
	linkPath := filepath.Join(m.dir, CurrentSessionLink)
	_ = os.Remove(linkPath)
	return os.Symlink(id+".json", linkPath)
}

// cleanupOldSessions removes sessions beyond MaxSessions
func (m *Manager) cleanupOldSessions() error {
	sessions, err := m.List()
	if err != nil {
		return err
	}
	for i := MaxSessions; i < len(sessions); i++ {
		_ = os.Remove(m.sessionPath(sessions[i].ID))
		delete(m.created, sessions[i].ID)
	}
	return nil
}

// truncate truncates a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)

	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// FormatRelativeTime formats a time as a human-readable relative string
func FormatRelativeTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		if t.Year() == now.Year() {
			return t.Format("Jan 2")
		}
		return t.Format("Jan 2, 2006")
	}
}
