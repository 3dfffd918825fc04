package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/claudette/internal/chat"
	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/llm"
)

// useTempCache points the last-path cache at a temp dir
func useTempCache(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := cacheDir
	cacheDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { cacheDir = orig })
	return dir
}

func TestExport(t *testing.T) {
	useTempCache(t)
	path := filepath.Join(t.TempDir(), "chat.json")
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "is <b> & \"ok\"?"},
		{Role: llm.RoleAssistant, Content: "yes ✅"},
	}

	if err := Export(path, msgs); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{
  "messages": [
    {
      "role": "user",
      "content": "is <b> & \"ok\"?"
    },
    {
      "role": "assistant",
      "content": "yes ✅"
    }
  ]
}
`
	if string(data) != want {
		t.Errorf("file =\n%s\nwant\n%s", data, want)
	}
}

func TestExportErrors(t *testing.T) {
	useTempCache(t)
	dir := t.TempDir()
	tests := []struct {
		name     string
		path     string
		messages []llm.Message
		code     string
	}{
		{"wrong extension", filepath.Join(dir, "chat.txt"), []llm.Message{{Role: "user", Content: "x"}}, "history_invalid"},
		{"no messages", filepath.Join(dir, "chat.json"), nil, "history_empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Export(tt.path, tt.messages)
			var ce *chaterrors.ChatError
			if !errors.As(err, &ce) || ce.Code != tt.code {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []llm.Message
		code  string
	}{
		{
			name:  "valid",
			input: `{"messages": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}]}`,
			want:  []llm.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		},
		{
			name:  "sanitizes",
			input: `{"messages": [{"role": "user", "content": "hi", "id": 7}, {"role": "tool", "content": "x"}, {"role": "assistant", "content": 3}, {"role": "assistant"}, {"role": "system", "content": "be brief"}, "junk", {"role": "assistant", "content": null}]}`,
			want:  []llm.Message{{Role: "user", Content: "hi"}, {Role: "system", Content: "be brief"}},
		},
		{name: "not an object", input: `[1, 2]`, code: "history_invalid"},
		{name: "no messages key", input: `{"chat": []}`, code: "history_invalid"},
		{name: "messages not a list", input: `{"messages": {"role": "user"}}`, code: "history_invalid"},
		{name: "messages null", input: `{"messages": null}`, code: "history_invalid"},
		{name: "nothing valid", input: `{"messages": [{"role": "bot", "content": "x"}]}`, code: "history_no_valid_messages"},
		{name: "empty list", input: `{"messages": []}`, code: "history_no_valid_messages"},
		{name: "bad json", input: `{"messages": [`, code: "history_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if tt.code != "" {
				var ce *chaterrors.ChatError
				if !errors.As(err, &ce) || ce.Code != tt.code {
					t.Fatalf("err = %v, want code %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestImportRoundTripAndLastDir(t *testing.T) {
	useTempCache(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.json")
	msgs := []llm.Message{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}}
	if err := Export(path, msgs); err != nil {
		t.Fatal(err)
	}

	got, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(got) != 2 || got[1].Content != "a" {
		t.Errorf("Import = %+v", got)
	}
	if LastDir() != dir {
		t.Errorf("LastDir = %q, want %q", LastDir(), dir)
	}
	if ResolvePath("next.json") != filepath.Join(dir, "next.json") {
		t.Errorf("ResolvePath = %q", ResolvePath("next.json"))
	}
	if ResolvePath("") != filepath.Join(dir, DefaultFileName) {
		t.Errorf("ResolvePath(\"\") = %q", ResolvePath(""))
	}
}

func TestLastDirFallsBackToHome(t *testing.T) {
	cache := useTempCache(t)
	home, _ := os.UserHomeDir()

	if LastDir() != home {
		t.Errorf("no cache: LastDir = %q, want %q", LastDir(), home)
	}

	gone := filepath.Join(t.TempDir(), "deleted", "x.json")
	if err := os.WriteFile(filepath.Join(cache, lastPathFile), []byte(gone), 0o644); err != nil {
		t.Fatal(err)
	}
	if LastDir() != home {
		t.Errorf("missing dir: LastDir = %q, want %q", LastDir(), home)
	}
}

func TestImportRejectsNonJSON(t *testing.T) {
	useTempCache(t)
	if _, err := Import(filepath.Join(t.TempDir(), "chat.md")); chaterrors.GetCategory(err) != chaterrors.CategoryHistory {
		t.Errorf("err = %v", err)
	}
}

func TestRender(t *testing.T) {
	v := chat.NewView("chat")
	v.Append("old transcript")
	msgs := []llm.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "```go\nx := 1\n```"},
		{Role: "user", Content: "second"},
		{Role: "assistant", Content: "done"},
	}

	Render(v, msgs, "Claude")

	want := "## Question\n\nfirst\n\n### Claude's Response\n\n```go\nx := 1\n```\n" +
		"\n\n## Question\n\nsecond\n\n### Claude's Response\n\ndone\n"
	if got := v.Transcript(); got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}
	if len(v.History()) != 5 {
		t.Errorf("history = %d messages, want 5", len(v.History()))
	}
	if len(v.Markers()) != 1 {
		t.Errorf("markers = %d, want 1", len(v.Markers()))
	}
	if strings.Contains(v.Transcript(), "be brief") {
		t.Error("system message rendered into transcript")
	}
}
