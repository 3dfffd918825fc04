package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/claudette/internal/config"
	"github.com/abdul-hamid-achik/claudette/internal/debug"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
	"github.com/abdul-hamid-achik/claudette/internal/session"
)

type testApp struct {
	*App
	mock     *llm.MockLLMClient
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	sessions string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.SetAPIKey("test-key")
	cfg.SetConfigPath(filepath.Join(t.TempDir(), "config.yaml"))

	ta := &testApp{
		mock:     llm.NewMockLLMClient(),
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		sessions: t.TempDir(),
	}
	app := New(config.ProviderAnthropic, "claudette", "Claude Chat", "test")
	app.stdin = strings.NewReader("")
	app.stdinIsPipe = func() bool { return false }
	app.stdout = ta.stdout
	app.stderr = ta.stderr
	app.loadConfig = func(config.Provider) (*config.Config, error) { return cfg, nil }
	app.newClient = func(*config.Config, llm.WaitCallback) llm.LLMClient { return ta.mock }
	app.newSessions = func() (*session.Manager, error) { return session.NewManagerAt(ta.sessions) }
	ta.App = app
	return ta
}

// run executes the command line args against a fresh command tree
func (ta *testApp) run(args ...string) error {
	ta.stdout.Reset()
	ta.stderr.Reset()
	root := ta.Command()
	root.SetArgs(append(args, "--no-log-file"))
	return root.Execute()
}

func TestAsk_StreamsToStdout(t *testing.T) {
	ta := newTestApp(t)
	ta.mock.ChatStreamFunc = func(context.Context, llm.Request) <-chan llm.StreamChunk {
		return llm.MockStream(
			llm.StreamChunk{Type: llm.ChunkText, Text: "Hello "},
			llm.StreamChunk{Type: llm.ChunkThinking, Text: "hmm"},
			llm.StreamChunk{Type: llm.ChunkText, Text: "there"},
			llm.StreamChunk{Type: llm.ChunkUsage, Usage: &llm.Usage{InputTokens: 12, OutputTokens: 3}},
			llm.StreamChunk{Type: llm.ChunkDone},
		)
	}

	if err := ta.run("ask", "say", "hello"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if got := ta.stdout.String(); got != "Hello there\n" {
		t.Errorf("stdout = %q", got)
	}
	if errOut := ta.stderr.String(); !strings.Contains(errOut, "Tokens: 12 in, 3 out.") || strings.Contains(errOut, "hmm") {
		t.Errorf("stderr = %q", errOut)
	}

	calls := ta.mock.Calls()
	if len(calls) != 1 || calls[0].Messages[len(calls[0].Messages)-1].Content != "say hello" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestAsk_Thinking(t *testing.T) {
	ta := newTestApp(t)
	ta.mock.ChatStreamFunc = func(context.Context, llm.Request) <-chan llm.StreamChunk {
		return llm.MockStream(
			llm.StreamChunk{Type: llm.ChunkThinking, Text: "hmm"},
			llm.StreamChunk{Type: llm.ChunkText, Text: "ok"},
		)
	}
	if err := ta.run("ask", "--thinking", "why"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.stderr.String(), "hmm") {
		t.Errorf("thinking missing from stderr: %q", ta.stderr.String())
	}
}

func TestAsk_PipedSelection(t *testing.T) {
	ta := newTestApp(t)
	ta.stdin = strings.NewReader("x := 1\n")
	ta.stdinIsPipe = func() bool { return true }

	if err := ta.run("ask", "what is x?"); err != nil {
		t.Fatal(err)
	}
	msgs := ta.mock.Calls()[0].Messages
	if got := msgs[len(msgs)-1].Content; got != "what is x?\n\nCode:\nx := 1" {
		t.Errorf("user message = %q", got)
	}
}

func TestAsk_ContextFiles(t *testing.T) {
	ta := newTestApp(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ta.run("ask", "--context", filepath.Join(dir, "main.go"), "explain"); err != nil {
		t.Fatal(err)
	}
	files := ta.mock.Calls()[0].ContextFiles
	if len(files) != 1 || !strings.Contains(files[0].Content, "package main") {
		t.Errorf("context files = %+v", files)
	}
	if !strings.Contains(ta.stderr.String(), "Included 1 file") {
		t.Errorf("summary missing: %q", ta.stderr.String())
	}
}

func TestAsk_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		prepare func(ta *testApp)
		want    string
	}{
		{
			name: "no question",
			args: []string{"ask"},
			want: "no question given",
		},
		{
			name: "missing key",
			args: []string{"ask", "hi"},
			prepare: func(ta *testApp) {
				cfg := config.DefaultConfig()
				cfg.SetConfigPath(filepath.Join(ta.sessions, "config.yaml"))
				ta.loadConfig = func(config.Provider) (*config.Config, error) { return cfg, nil }
			},
			want: "A Mock API key is required",
		},
		{
			name: "bad system message",
			args: []string{"ask", "--system", "9", "hi"},
			want: "no system message 9",
		},
		{
			name: "stream error",
			args: []string{"ask", "hi"},
			prepare: func(ta *testApp) {
				ta.mock.ChatStreamFunc = func(context.Context, llm.Request) <-chan llm.StreamChunk {
					return llm.MockStream(llm.StreamChunk{Type: llm.ChunkError, Error: errors.New("boom")})
				}
			},
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			if tt.prepare != nil {
				tt.prepare(ta)
			}
			err := ta.run(tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestAsk_TokenFlag(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run("ask", "--token", "flag-key", "hi"); err != nil {
		t.Fatal(err)
	}
	if ta.cfg.APIKey() != "flag-key" {
		t.Errorf("APIKey() = %q", ta.cfg.APIKey())
	}
}

func TestModels_TokenFlagNotSaved(t *testing.T) {
	ta := newTestApp(t)
	ta.mock.ListModelsFunc = func(context.Context) ([]string, error) {
		return []string{"model-a", "model-b"}, nil
	}
	if err := ta.run("models", "--token", "sk-secret-flag", "2"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(ta.cfg.ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret-flag") {
		t.Errorf("config file holds the --token key:\n%s", data)
	}
}

func TestAsk_SaveThenSessions(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run("ask", "--save", "first question"); err != nil {
		t.Fatal(err)
	}

	if err := ta.run("sessions"); err != nil {
		t.Fatal(err)
	}
	list := ta.stdout.String()
	if !strings.Contains(list, "first question") || !strings.Contains(list, "FIRST QUESTION") {
		t.Fatalf("sessions list:\n%s", list)
	}

	mgr, _ := session.NewManagerAt(ta.sessions)
	current, err := mgr.GetCurrent()
	if err != nil || current == nil {
		t.Fatalf("GetCurrent() = %v, %v", current, err)
	}

	if err := ta.run("sessions", "show", current.ID[:8]); err != nil {
		t.Fatal(err)
	}
	shown := ta.stdout.String()
	for _, want := range []string{"## Question", "first question", "mock response"} {
		if !strings.Contains(shown, want) {
			t.Errorf("show missing %q:\n%s", want, shown)
		}
	}

	if err := ta.run("sessions", "delete", current.ID); err != nil {
		t.Fatal(err)
	}
	if err := ta.run("sessions", "show", current.ID); err == nil {
		t.Error("deleted session still shows")
	}
}

func TestModels(t *testing.T) {
	ta := newTestApp(t)
	ta.mock.ListModelsFunc = func(context.Context) ([]string, error) {
		return []string{"model-a", "mock-model", "model-c"}, nil
	}

	if err := ta.run("models"); err != nil {
		t.Fatal(err)
	}
	out := ta.stdout.String()
	if !strings.Contains(out, "* [2] mock-model") || !strings.Contains(out, "  [1] model-a") {
		t.Errorf("models list:\n%s", out)
	}

	if err := ta.run("models", "3"); err != nil {
		t.Fatal(err)
	}
	if ta.cfg.Model() != "model-c" {
		t.Errorf("Model() = %q", ta.cfg.Model())
	}
	if _, err := os.Stat(ta.cfg.ConfigPath()); err != nil {
		t.Errorf("config not saved: %v", err)
	}

	if err := ta.run("models", "7"); err == nil {
		t.Error("out of range model accepted")
	}
}

func TestSystem(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run("system"); err != nil {
		t.Fatal(err)
	}
	ta.cfg.SystemMessages = []string{"Be terse.", "Explain like a mentor.\nUse examples."}

	if err := ta.run("system", "2"); err != nil {
		t.Fatal(err)
	}
	if ta.cfg.DefaultSystemMessageIndex != 1 {
		t.Errorf("index = %d", ta.cfg.DefaultSystemMessageIndex)
	}
	if err := ta.run("system"); err != nil {
		t.Fatal(err)
	}
	if out := ta.stdout.String(); !strings.Contains(out, "* [2] Explain like a mentor") {
		t.Errorf("system list:\n%s", out)
	}
	if err := ta.run("system", "5"); err == nil {
		t.Error("out of range system message accepted")
	}
}

func TestHistoryExportImport(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run("ask", "--save", "exported question"); err != nil {
		t.Fatal(err)
	}
	mgr, _ := session.NewManagerAt(ta.sessions)
	current, _ := mgr.GetCurrent()

	path := filepath.Join(t.TempDir(), "chat.json")
	if err := ta.run("history", "export", current.ID, path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export missing: %v", err)
	}

	if err := ta.run("history", "import", path); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ta.stderr.String(), "Imported 2 messages") {
		t.Errorf("stderr = %q", ta.stderr.String())
	}
	infos, _ := mgr.List()
	if len(infos) != 2 {
		t.Errorf("sessions after import = %d, want 2", len(infos))
	}

	if err := ta.run("history", "export", current.ID, filepath.Join(t.TempDir(), "chat.txt")); err == nil {
		t.Error("non-json export accepted")
	}
}

func TestVersion(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run("--version"); err != nil {
		t.Fatal(err)
	}
	if got := ta.stdout.String(); got != "claudette version test\n" {
		t.Errorf("version = %q", got)
	}
}

func TestAsk_DebugTrace(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(debug.EnvDebugDir, dir)
	ta := newTestApp(t)

	err := ta.run("ask", "--debug", "traced question")
	debug.Close()
	if err != nil {
		t.Fatal(err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "session_*.jsonl"))
	if len(matches) != 1 {
		t.Fatalf("trace files = %v", matches)
	}
	data, _ := os.ReadFile(matches[0])
	for _, want := range []string{debug.EventLLMRequest, debug.EventLLMResponse, "mock-model"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("trace missing %q:\n%s", want, data)
		}
	}
}
