package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"squiggle/text"
	"squiggle/types"
)

// --- Mock implementations ---

// mockSource implements the Source interface for testing
type mockSource struct {
	mu         sync.Mutex
	content    string
	lineEnding string
	err        error
	handler    func(event string)

	snapshotCalls int
}

func newMockSource(content, lineEnding string) *mockSource {
	return &mockSource{content: content, lineEnding: lineEnding}
}

func (s *mockSource) Snapshot() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotCalls++
	return s.content, s.lineEnding, s.err
}

func (s *mockSource) RegisterEventHandler(handler func(event string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	return nil
}

func (s *mockSource) setContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
}

func (s *mockSource) fire(event string) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

// mockSurface implements the Surface interface and records what is drawn
type mockSurface struct {
	mu sync.Mutex

	text          string
	highlight     *types.Range
	fg, bg        string
	marker        types.Point
	markerVisible bool

	setTextCalls   int
	clearCalls     int
	highlightCalls int
	failHighlight  error
}

func newMockSurface() *mockSurface {
	return &mockSurface{}
}

func (s *mockSurface) SetText(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTextCalls++
	s.text = content
	return nil
}

func (s *mockSurface) Highlight(r types.Range, fg, bg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHighlight != nil {
		return s.failHighlight
	}
	s.highlightCalls++
	s.highlight = &r
	s.fg, s.bg = fg, bg
	return nil
}

func (s *mockSurface) ClearHighlight() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	s.highlight = nil
	return nil
}

func (s *mockSurface) PositionFromOffset(offset int) (types.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 || offset > len(s.text) {
		return types.Point{}, errors.New("offset outside display text")
	}
	line, col := text.LineCol(text.LF.Split(s.text), 1, offset)
	return types.Point{X: col, Y: line}, nil
}

func (s *mockSurface) SetMarkerPosition(p types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = p
	return nil
}

func (s *mockSurface) SetMarkerVisible(visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markerVisible = visible
	return nil
}

func (s *mockSurface) drawn() (*types.Range, bool, types.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlight, s.markerVisible, s.marker
}

// mockParser returns canned diagnostics per content. When gated, each Parse
// call blocks until release is called for its content.
type mockParser struct {
	mu      sync.Mutex
	results map[string][]*types.Diagnostic
	err     error
	gated   bool
	gates   map[string]chan struct{}
	calls   []string
}

func newMockParser() *mockParser {
	return &mockParser{
		results: make(map[string][]*types.Diagnostic),
		gates:   make(map[string]chan struct{}),
	}
}

func (p *mockParser) on(content string, diags ...*types.Diagnostic) *mockParser {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[content] = diags
	return p
}

func (p *mockParser) gate(content string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.gates[content]
	if !ok {
		ch = make(chan struct{})
		p.gates[content] = ch
	}
	return ch
}

func (p *mockParser) release(content string) {
	close(p.gate(content))
}

func (p *mockParser) Parse(ctx context.Context, content string) ([]*types.Diagnostic, error) {
	p.mu.Lock()
	p.calls = append(p.calls, content)
	gated := p.gated
	p.mu.Unlock()

	if gated {
		select {
		case <-p.gate(content):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.results[content], nil
}

func diag(start, length int, msg string) *types.Diagnostic {
	return &types.Diagnostic{
		Span:     types.Span{Start: start, Length: length},
		Message:  msg,
		Severity: "error",
		InSource: true,
	}
}

func testConfig() EngineConfig {
	return EngineConfig{
		Controller: ControllerConfig{
			SourceLineEnding:  "auto",
			DisplayLineEnding: "lf",
			HighlightFg:       "#ffff00",
			HighlightBg:       "#ff0000",
		},
		ParserTimeout: 5 * time.Second,
	}
}
