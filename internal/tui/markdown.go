package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// markdownRenderer renders transcripts with the Nord style, rebuilding the
// glamour renderer when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// Render renders content wrapped at width, falling back to plain text
func (r *markdownRenderer) Render(content string, width int) string {
	if width <= 0 {
		width = 100
	}
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStyles(getNordGlamourStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Warn("markdown renderer unavailable: %v", err)
			return content
		}
		r.renderer = tr
		r.width = width
	}

	rendered, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	// Trim trailing newlines that glamour adds
	return strings.TrimRight(rendered, "\n")
}

// getNordGlamourStyle returns a glamour style matching the Nord theme
func getNordGlamourStyle() ansi.StyleConfig {
	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr("#d8dee9"), // nord4 - primary text
			},
			Margin: uintPtr(0),
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr("#88c0d0"), // nord8 - accent
				Bold:  boolPtr(true),
			},
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:  stringPtr("#88c0d0"),
				Bold:   boolPtr(true),
				Prefix: "",
			},
			Margin: uintPtr(1),
		},
		H2: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:  stringPtr("#81a1c1"), // nord9
				Bold:   boolPtr(true),
				Prefix: "",
			},
		},
		H3: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:  stringPtr("#81a1c1"),
				Bold:   boolPtr(true),
				Prefix: "",
			},
		},
		H4: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr("#8fbcbb"), // nord7
				Bold:  boolPtr(true),
			},
		},
		H5: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr("#8fbcbb"),
			},
		},
		H6: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr("#4c566a"), // nord3
			},
		},
		Paragraph: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr("#d8dee9"),
			},
		},
		Text: ansi.StylePrimitive{
			Color: stringPtr("#d8dee9"),
		},
		Emph: ansi.StylePrimitive{
			Color:  stringPtr("#d8dee9"),
			Italic: boolPtr(true),
		},
		Strong: ansi.StylePrimitive{
			Color: stringPtr("#eceff4"), // nord6 - bright
			Bold:  boolPtr(true),
		},
		Strikethrough: ansi.StylePrimitive{
			Color: stringPtr("#4c566a"),
		},
		List: ansi.StyleList{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr("#d8dee9"),
				},
			},
			LevelIndent: 2,
		},
		Item: ansi.StylePrimitive{
			Color:       stringPtr("#d8dee9"),
			BlockPrefix: "  ", // Indent list items
		},
		Enumeration: ansi.StylePrimitive{
			Color:  stringPtr("#88c0d0"),
			Format: "%d. ", // Explicit format: number + period + space
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:           stringPtr("#a3be8c"), // nord14 - green for inline code
				BackgroundColor: stringPtr("#3b4252"), // nord1
			},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr("#d8dee9"),
				},
				Margin: uintPtr(1),
			},
			Chroma: &ansi.Chroma{
				Text: ansi.StylePrimitive{
					Color: stringPtr("#d8dee9"),
				},
				Keyword: ansi.StylePrimitive{
					Color: stringPtr("#81a1c1"),
				},
				Name: ansi.StylePrimitive{
					Color: stringPtr("#88c0d0"),
				},
				NameFunction: ansi.StylePrimitive{
					Color: stringPtr("#88c0d0"),
				},
				LiteralString: ansi.StylePrimitive{
					Color: stringPtr("#a3be8c"),
				},
				LiteralNumber: ansi.StylePrimitive{
					Color: stringPtr("#b48ead"),
				},
				Comment: ansi.StylePrimitive{
					Color: stringPtr("#4c566a"),
				},
				Operator: ansi.StylePrimitive{
					Color: stringPtr("#81a1c1"),
				},
			},
		},
		Link: ansi.StylePrimitive{
			Color:     stringPtr("#88c0d0"),
			Underline: boolPtr(true),
		},
		LinkText: ansi.StylePrimitive{
			Color: stringPtr("#8fbcbb"),
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  stringPtr("#4c566a"),
			Format: "─────",
		},
		Table: ansi.StyleTable{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr("#d8dee9"),
				},
			},
		},
		DefinitionList: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr("#d8dee9"),
			},
		},
		DefinitionTerm: ansi.StylePrimitive{
			Color: stringPtr("#88c0d0"),
			Bold:  boolPtr(true),
		},
		DefinitionDescription: ansi.StylePrimitive{
			Color: stringPtr("#d8dee9"),
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:  stringPtr("#4c566a"),
				Italic: boolPtr(true),
			},
			Indent:      uintPtr(1),
			IndentToken: stringPtr("│ "),
		},
	}
}

// Helper functions for glamour style config
func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }
func uintPtr(u uint) *uint       { return &u }
