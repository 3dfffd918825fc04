package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/abdul-hamid-achik/claudette/internal/codeblock"
)

// Highlighter provides syntax highlighting for code blocks
type Highlighter struct {
	enabled   bool
	formatter chroma.Formatter
	style     *chroma.Style
}

// New creates a new Highlighter
func New(enabled bool) *Highlighter {
	return &Highlighter{
		enabled:   enabled,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("nord"),
	}
}

// Enabled reports whether output is colored
func (h *Highlighter) Enabled() bool { return h.enabled }

// Highlight applies syntax highlighting to a code string. Without a
// language the lexer is guessed from the code.
func (h *Highlighter) Highlight(code, language string) string {
	if !h.enabled {
		return code
	}

	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return code
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// HighlightMarkdownCodeBlocks highlights the body of every complete fenced
// block in text, keeping the fences.
func (h *Highlighter) HighlightMarkdownCodeBlocks(text string) string {
	if !h.enabled {
		return text
	}

	blocks := codeblock.Find(text)
	if len(blocks) == 0 {
		return text
	}

	var b strings.Builder
	prev := 0
	for _, block := range blocks {
		b.WriteString(text[prev:block.Start])
		b.WriteString("```" + block.Language + "\n")
		b.WriteString(h.Highlight(block.Content, block.Language))
		b.WriteString("\n```")
		prev = block.End
	}
	b.WriteString(text[prev:])
	return b.String()
}
