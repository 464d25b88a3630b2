// Package surface holds an in-memory render surface used by the check
// command and by tests. Positions are reported in terminal cells, scaled by
// an optional cell size.
package surface

import (
	"fmt"
	"strings"
	"sync"

	"squiggle/text"
	"squiggle/types"
)

// Highlight is one drawn range with its colors
type Highlight struct {
	Range types.Range
	Fg    string
	Bg    string
}

// Text is a Surface over a plain string split on a single-byte or multi-byte
// line break
type Text struct {
	mu         sync.Mutex
	convention text.Convention
	cellWidth  int
	cellHeight int

	content   string
	lines     []string
	highlight *Highlight
	marker    types.MarkerState
}

type Option func(*Text)

// WithCellSize scales reported points, e.g. to pixels
func WithCellSize(width, height int) Option {
	return func(t *Text) {
		t.cellWidth = max(1, width)
		t.cellHeight = max(1, height)
	}
}

// WithConvention sets the line break the display text uses (default LF)
func WithConvention(c text.Convention) Option {
	return func(t *Text) {
		t.convention = c
	}
}

func NewText(opts ...Option) *Text {
	t := &Text{
		convention: text.LF,
		cellWidth:  1,
		cellHeight: 1,
		lines:      []string{""},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Text) SetText(content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.content = content
	t.lines = t.convention.Split(content)
	t.highlight = nil
	return nil
}

func (t *Text) Highlight(r types.Range, fg, bg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.Start < 0 || r.Length < 0 || r.Start+r.Length > len(t.content) {
		return &types.RangeError{Offset: r.Start, Length: r.Length, Limit: len(t.content)}
	}
	t.highlight = &Highlight{Range: r, Fg: fg, Bg: bg}
	return nil
}

func (t *Text) ClearHighlight() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.highlight = nil
	return nil
}

// PositionFromOffset reports the cell position of a display byte offset.
// Offsets inside a multi-byte break report the end of that line.
func (t *Text) PositionFromOffset(offset int) (types.Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if offset < 0 || offset > len(t.content) {
		return types.Point{}, &types.RangeError{Offset: offset, Limit: len(t.content)}
	}
	line, col := text.LineCol(t.lines, t.convention.Width(), offset)
	return types.Point{
		X: text.CellColumn(t.lines[line], col) * t.cellWidth,
		Y: line * t.cellHeight,
	}, nil
}

func (t *Text) SetMarkerPosition(p types.Point) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marker.Position = p
	return nil
}

func (t *Text) SetMarkerVisible(visible bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marker.Visible = visible
	return nil
}

func (t *Text) Content() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content
}

// Highlighted returns the current highlight, or nil
func (t *Text) Highlighted() *Highlight {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.highlight == nil {
		return nil
	}
	h := *t.highlight
	return &h
}

func (t *Text) Marker() types.MarkerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marker
}

// String describes what is drawn, one item per line
func (t *Text) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	if h := t.highlight; h != nil {
		fmt.Fprintf(&b, "highlight %q fg=%s bg=%s\n", t.content[h.Range.Start:h.Range.Start+h.Range.Length], h.Fg, h.Bg)
	}
	if t.marker.Visible {
		fmt.Fprintf(&b, "marker x=%d y=%d\n", t.marker.Position.X, t.marker.Position.Y)
	}
	return b.String()
}
