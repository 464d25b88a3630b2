package engine

import (
	"context"
	"time"

	"squiggle/types"
)

// Source is the editor buffer being edited.
// Implemented by buffer.NvimBuffer for Neovim integration.
type Source interface {
	// Snapshot returns the full current contents and the buffer's line-ending
	// name (e.g. Neovim's 'fileformat'); an empty name means unknown.
	Snapshot() (content string, lineEnding string, err error)
	RegisterEventHandler(handler func(event string)) error
}

// Surface is the rendering collaborator holding the display buffer.
// Implemented by buffer.DisplayBuffer and surface.Text.
type Surface interface {
	SetText(content string) error
	Highlight(r types.Range, fg, bg string) error
	ClearHighlight() error
	PositionFromOffset(offset int) (types.Point, error)
	SetMarkerPosition(p types.Point) error
	SetMarkerVisible(visible bool) error
}

// Parser produces diagnostics for one full text snapshot, in source order.
// Implemented by golang.Parser, remote.Parser and buffer.NvimBuffer.
type Parser interface {
	Parse(ctx context.Context, content string) ([]*types.Diagnostic, error)
}

type state int

const (
	stateIdle state = iota
	stateComputing
)

// ControllerConfig configures the recompute pipeline
type ControllerConfig struct {
	// SourceLineEnding is "auto" (use what the source buffer reports) or a
	// convention name accepted by text.ParseConvention
	SourceLineEnding  string
	DisplayLineEnding string
	HighlightFg       string
	HighlightBg       string
}

type EngineConfig struct {
	Controller    ControllerConfig
	ParserTimeout time.Duration // 0 = no timeout
}
