package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"squiggle/highlight"
	"squiggle/logger"
	"squiggle/report"
	"squiggle/text"
	"squiggle/types"
)

// Snapshot is one captured version of the source text. Seq grows with every
// capture, so only the most recent snapshot may drive the surface.
type Snapshot struct {
	Seq uint64
	Doc *text.Document
}

// Cycle records the outcome of the last completed recompute
type Cycle struct {
	Snapshot    *Snapshot
	Diagnostics []*types.Diagnostic
	Directive   types.Directive
	Marker      types.MarkerState
	ParseErr    error
}

// Controller turns text snapshots into highlight directives and applies them
// to a Surface. Results for a snapshot older than the latest capture are
// discarded, so completions may arrive in any order.
type Controller struct {
	mu      sync.Mutex
	surface Surface
	config  ControllerConfig
	seq     uint64
	last    *Cycle
}

func NewController(surface Surface, config ControllerConfig) *Controller {
	if config.DisplayLineEnding == "" {
		config.DisplayLineEnding = text.LF.Name
	}
	if config.SourceLineEnding == "" {
		config.SourceLineEnding = "auto"
	}
	return &Controller{
		surface: surface,
		config:  config,
	}
}

// SetSurface swaps the render surface; the next completed cycle draws on it
func (c *Controller) SetSurface(surface Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = surface
}

// conventions resolves the source and display line endings for a snapshot.
// lineEnding is what the editor reports and is used only in auto mode.
func (c *Controller) conventions(lineEnding string) (text.Convention, text.Convention, error) {
	name := c.config.SourceLineEnding
	if name == "auto" {
		name = lineEnding
	}
	source := text.LF
	if name != "" {
		conv, err := text.ParseConvention(name)
		if err != nil {
			return text.Convention{}, text.Convention{}, fmt.Errorf("source line ending: %w", err)
		}
		source = conv
	}
	display, err := text.ParseConvention(c.config.DisplayLineEnding)
	if err != nil {
		return text.Convention{}, text.Convention{}, fmt.Errorf("display line ending: %w", err)
	}
	return source, display, nil
}

// Capture records a new snapshot of the source text. Every earlier snapshot
// becomes stale, even if capture fails.
func (c *Controller) Capture(content, lineEnding string) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	source, display, err := c.conventions(lineEnding)
	if err != nil {
		return nil, err
	}
	doc, err := text.NewDocument(content, source, display)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Seq: c.seq, Doc: doc}, nil
}

// IsLatest reports whether snap is the most recent capture
func (c *Controller) IsLatest(snap *Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snap != nil && snap.Seq == c.seq
}

// Complete applies the parser's answer for snap. It returns
// types.ErrStaleSnapshot, without touching the surface, when a newer snapshot
// has been captured since. A parse error is logged and treated as an empty
// diagnostic list, which clears any highlight.
func (c *Controller) Complete(snap *Snapshot, diagnostics []*types.Diagnostic, parseErr error) (*Cycle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap == nil || snap.Seq != c.seq {
		return nil, types.ErrStaleSnapshot
	}

	if parseErr != nil {
		logger.Warn("parse failed for snapshot %d: %v", snap.Seq, parseErr)
		diagnostics = nil
	}
	logDiagnostics(snap, diagnostics)

	cycle := &Cycle{
		Snapshot:    snap,
		Diagnostics: diagnostics,
		ParseErr:    parseErr,
	}

	if c.surface == nil {
		cycle.Directive = types.Directive{Kind: types.DirectiveHide}
		c.last = cycle
		return cycle, nil
	}

	if err := c.surface.SetText(snap.Doc.Display()); err != nil {
		return nil, fmt.Errorf("set display text: %w", err)
	}

	directive, marker, err := highlight.Run(snap.Doc, diagnostics, c.surface)
	if err != nil {
		// unmappable span: parser or translator defect, directive is Hide
		logger.Error("highlight plan for snapshot %d: %v", snap.Seq, err)
	}
	cycle.Directive = directive
	cycle.Marker = marker

	if err := c.apply(directive); err != nil {
		return nil, err
	}
	logger.Debug("snapshot %d: %s", snap.Seq, directive)

	c.last = cycle
	return cycle, nil
}

// apply clears whatever the previous cycle drew and draws directive
func (c *Controller) apply(directive types.Directive) error {
	if err := c.surface.ClearHighlight(); err != nil {
		return fmt.Errorf("clear highlight: %w", err)
	}
	if err := c.surface.SetMarkerVisible(false); err != nil {
		return fmt.Errorf("hide marker: %w", err)
	}

	switch directive.Kind {
	case types.DirectiveRange:
		if err := c.surface.Highlight(directive.Range, c.config.HighlightFg, c.config.HighlightBg); err != nil {
			return fmt.Errorf("highlight %s: %w", directive, err)
		}
	case types.DirectivePoint:
		if err := c.surface.SetMarkerPosition(directive.Point); err != nil {
			return fmt.Errorf("place marker %s: %w", directive, err)
		}
		if err := c.surface.SetMarkerVisible(true); err != nil {
			return fmt.Errorf("show marker: %w", err)
		}
	}
	return nil
}

// Recompute runs one synchronous cycle: capture, parse, complete
func (c *Controller) Recompute(ctx context.Context, parser Parser, content, lineEnding string) (*Cycle, error) {
	defer logger.Trace("recompute")()

	snap, err := c.Capture(content, lineEnding)
	if err != nil {
		return nil, err
	}
	diagnostics, parseErr := parser.Parse(ctx, snap.Doc.Text())
	if errors.Is(parseErr, context.Canceled) {
		return nil, parseErr
	}
	return c.Complete(snap, diagnostics, parseErr)
}

// Reset invalidates every outstanding snapshot and hides anything drawn
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.last = nil
	if c.surface == nil {
		return nil
	}
	return c.apply(types.Directive{Kind: types.DirectiveHide})
}

// Last returns the most recently completed cycle, or nil
func (c *Controller) Last() *Cycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) Directive() types.Directive {
	if last := c.Last(); last != nil {
		return last.Directive
	}
	return types.Directive{Kind: types.DirectiveHide}
}

func (c *Controller) Marker() types.MarkerState {
	if last := c.Last(); last != nil {
		return last.Marker
	}
	return types.MarkerState{}
}

func logDiagnostics(snap *Snapshot, diagnostics []*types.Diagnostic) {
	if !logger.Enabled(logger.LogLevelDebug) {
		return
	}
	logger.Debug("snapshot %d: %d diagnostics (%s -> %s)", snap.Seq, len(diagnostics), snap.Doc.SourceConvention(), snap.Doc.DisplayConvention())
	for _, d := range diagnostics {
		logger.Debug("  %s", d)
	}
	if logger.Enabled(logger.LogLevelTrace) {
		logger.Tracef("snapshot %d report:\n%s", snap.Seq, report.String(snap.Doc.Text(), diagnostics, report.Options{NoColor: true}))
	}
}
