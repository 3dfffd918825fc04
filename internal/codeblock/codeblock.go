// Package codeblock finds fenced code blocks in a chat transcript and keeps
// the numbered copy markers placed after them.
package codeblock

import (
	"regexp"
	"sort"
	"strings"
)

// Block is one fenced code block
type Block struct {
	Language string
	Content  string // trimmed body
	Start    int    // byte offset of the opening fence
	End      int    // byte offset just past the closing fence
}

// blockRegex needs a newline after the info string and before the closing
// fence, so a fence still being streamed never matches.
var blockRegex = regexp.MustCompile("(?s)```([\\w+]*)\n(.*?)\n```")

// Find returns every complete block in content, in order
func Find(content string) []Block {
	matches := blockRegex.FindAllStringSubmatchIndex(content, -1)
	blocks := make([]Block, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, Block{
			Language: strings.TrimSpace(content[m[2]:m[3]]),
			Content:  strings.TrimSpace(content[m[4]:m[5]]),
			Start:    m[0],
			End:      m[1],
		})
	}
	return blocks
}

// UnclosedFences counts blocks left open at the end of content. A fence
// line with an info string opens a block; a bare fence closes the innermost
// open one, or is ignored when nothing is open.
func UnclosedFences(content string) int {
	open := 0
	for _, line := range strings.Split(content, "\n") {
		fence := strings.TrimSpace(line)
		if !strings.HasPrefix(fence, "```") {
			continue
		}
		if fence == "```" {
			if open > 0 {
				open--
			}
			continue
		}
		open++
	}
	return open
}

// Close returns what to append to content so every block is closed
func Close(content string) string {
	return strings.Repeat("\n```", UnclosedFences(content))
}

// Marker is a copy marker placed after a block
type Marker struct {
	Number int // 1-based, in transcript order
	Pos    int // the block's End
	Block  Block
}

// Tracker remembers which block ends already carry a marker
type Tracker struct {
	markers map[int]Block
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{markers: make(map[int]Block)}
}

// Update reconciles markers with content. Markers whose position is still
// a block end stay, block ends without a marker get one, and the rest are
// dropped. Removed markers carry Number 0.
func (t *Tracker) Update(content string) (added, removed []Marker) {
	current := make(map[int]Block)
	for _, b := range Find(content) {
		current[b.End] = b
	}

	for pos, b := range t.markers {
		if _, ok := current[pos]; !ok {
			removed = append(removed, Marker{Pos: pos, Block: b})
			delete(t.markers, pos)
		}
	}
	fresh := make(map[int]bool)
	for pos, b := range current {
		if _, ok := t.markers[pos]; !ok {
			fresh[pos] = true
		}
		t.markers[pos] = b
	}

	for _, m := range t.Markers() {
		if fresh[m.Pos] {
			added = append(added, m)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Pos < removed[j].Pos })
	return added, removed
}

// Reset drops every marker
func (t *Tracker) Reset() {
	clear(t.markers)
}

// Markers returns the markers in transcript order, numbered from 1
func (t *Tracker) Markers() []Marker {
	positions := make([]int, 0, len(t.markers))
	for pos := range t.markers {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	out := make([]Marker, len(positions))
	for i, pos := range positions {
		out[i] = Marker{Number: i + 1, Pos: pos, Block: t.markers[pos]}
	}
	return out
}

// Get returns marker n (1-based)
func (t *Tracker) Get(n int) (Marker, bool) {
	markers := t.Markers()
	if n < 1 || n > len(markers) {
		return Marker{}, false
	}
	return markers[n-1], true
}

// Annotate inserts a label after every marked block, e.g. "[copy 2]", for
// display. content must be the text the tracker was last updated with.
func (t *Tracker) Annotate(content string, label func(Marker) string) string {
	markers := t.Markers()
	if len(markers) == 0 {
		return content
	}

	var b strings.Builder
	last := 0
	for _, m := range markers {
		if m.Pos > len(content) {
			break
		}
		b.WriteString(content[last:m.Pos])
		b.WriteString(label(m))
		last = m.Pos
	}
	b.WriteString(content[last:])
	return b.String()
}
