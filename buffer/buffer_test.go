package buffer

import (
	"context"
	"sync"
	"testing"

	"squiggle/assert"
	"squiggle/text"
	"squiggle/types"

	"github.com/neovim/go-client/nvim"
)

func TestJoinSource(t *testing.T) {
	tests := []struct {
		name       string
		lines      []string
		fileFormat string
		eol        bool
		expected   string
		wantErr    bool
	}{
		{"unix with eol", []string{"a", "b"}, "unix", true, "a\nb\n", false},
		{"dos without eol", []string{"line1", "line2"}, "dos", false, "line1\r\nline2", false},
		{"mac", []string{"x", "y"}, "mac", false, "x\ry", false},
		{"unknown format defaults to lf", []string{"x"}, "", true, "x\n", false},
		{"empty buffer", nil, "unix", true, "", false},
		{"bogus format", []string{"x"}, "vms", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := joinSource(tt.lines, tt.fileFormat, tt.eol)
			if tt.wantErr {
				assert.Error(t, err, "joinSource")
				return
			}
			assert.NoError(t, err, "joinSource")
			assert.Equal(t, tt.expected, got, "content")
		})
	}
}

func TestConvertDiagnostics(t *testing.T) {
	content := "line1\r\nline2\r\n"
	raw := []map[string]any{
		{"message": "later", "severity": int64(2), "lnum": int64(1), "col": int64(2), "end_lnum": int64(1), "end_col": int64(4), "code": "W1"},
		{"message": "first", "severity": int64(1), "lnum": int64(0), "col": int64(5), "end_lnum": int64(0), "end_col": int64(5), "code": int64(1513)},
		{"message": "no position"},
		{"message": "stale row", "lnum": int64(9), "col": int64(0)},
	}

	diags := convertDiagnostics(raw, content, text.CRLF)
	assert.Len(t, diags, 4, "all kept")

	assert.Equal(t, types.Diagnostic{
		Span:     types.Span{Start: 5, Length: 0},
		Message:  "first",
		Severity: "error",
		Code:     "1513",
		InSource: true,
	}, *diags[0], "sorted first")
	assert.Equal(t, types.Diagnostic{
		Span:     types.Span{Start: 9, Length: 2},
		Message:  "later",
		Severity: "warning",
		Code:     "W1",
		InSource: true,
	}, *diags[1], "second line offsets count CRLF")
	assert.False(t, diags[2].InSource, "no position")
	assert.False(t, diags[3].InSource, "row past text")
}

func TestConvertDiagnosticsMultiline(t *testing.T) {
	content := "ab\ncd\nef"
	raw := []map[string]any{
		{"message": "block", "lnum": 0, "col": 1, "end_lnum": 2, "end_col": 1},
		{"message": "past end", "lnum": 2, "col": 0, "end_lnum": 5, "end_col": 0},
	}

	diags := convertDiagnostics(raw, content, text.LF)
	assert.Equal(t, types.Span{Start: 1, Length: 6}, diags[0].Span, "multi-line span")
	assert.Equal(t, types.Span{Start: 6, Length: 2}, diags[1].Span, "end clamps to text")
}

func TestGetNumber(t *testing.T) {
	m := map[string]any{"i": 3, "f": 4.0, "i64": int64(5), "u64": uint64(6), "s": "7"}
	assert.Equal(t, 3, getNumber(m, "i"), "int")
	assert.Equal(t, 4, getNumber(m, "f"), "float64")
	assert.Equal(t, 5, getNumber(m, "i64"), "int64")
	assert.Equal(t, 6, getNumber(m, "u64"), "uint64")
	assert.Equal(t, -1, getNumber(m, "s"), "string")
	assert.Equal(t, -1, getNumber(m, "missing"), "missing")
}

func TestNvimBufferWithoutClient(t *testing.T) {
	buf := New(Config{NsID: 1})

	_, _, err := buf.Snapshot()
	assert.Error(t, err, "Snapshot")
	assert.Error(t, buf.RegisterEventHandler(func(string) {}), "RegisterEventHandler")
	_, err = buf.Parse(context.Background(), "")
	assert.Error(t, err, "Parse")
}

func TestExtmarkRange(t *testing.T) {
	lines := []string{"line1", "line2"}
	row, col, endRow, endCol := extmarkRange(lines, 1, types.Range{Start: 3, Length: 5})
	assert.Equal(t, 0, row, "row")
	assert.Equal(t, 3, col, "col")
	assert.Equal(t, 1, endRow, "end row")
	assert.Equal(t, 2, endCol, "end col")
}

func TestDisplayPositionFromOffset(t *testing.T) {
	d := NewDisplay(DisplayConfig{NsID: 1})
	d.lines = []string{"line1", "日本"}

	p, err := d.PositionFromOffset(9)
	assert.NoError(t, err, "PositionFromOffset")
	assert.Equal(t, types.Point{X: 2, Y: 1}, p, "wide rune cells")

	p, err = d.PositionFromOffset(12)
	assert.NoError(t, err, "end of text")
	assert.Equal(t, types.Point{X: 4, Y: 1}, p, "end")

	_, err = d.PositionFromOffset(13)
	assert.ErrorIs(t, err, types.ErrOutOfRange, "past end")
}

func TestDisplayWithoutClient(t *testing.T) {
	d := NewDisplay(DisplayConfig{})
	assert.Equal(t, "✗", d.config.MarkerText, "default marker")
	assert.Equal(t, text.LF, d.config.Convention, "default convention")

	assert.Error(t, d.Open(), "Open")
	assert.Error(t, d.SetText("x"), "SetText")
	assert.Error(t, d.ClearHighlight(), "ClearHighlight")
	assert.Error(t, d.SetMarkerVisible(true), "SetMarkerVisible")
	assert.NoError(t, d.SetMarkerPosition(types.Point{X: 1}), "position is stored while hidden")
}

func TestAttachReplacesStaleBaseline(t *testing.T) {
	d := NewDisplay(DisplayConfig{NsID: 1})
	d.lines = []string{"package main", "", "func main() {", "}"}
	d.markerVisible = true

	// a new connection finds a fresh, empty display buffer
	fresh := []string{""}
	d.attach(nvim.Buffer(7), 3, fresh)
	assert.Equal(t, nvim.Buffer(7), d.id, "buffer id")
	assert.Equal(t, 3, d.markerNs, "marker ns")
	assert.False(t, d.markerVisible, "marker reset")

	newLines, err := d.splitLines("package main\n\nfunc main() {\n\tx :=\n}")
	assert.NoError(t, err, "splitLines")
	hunks := text.LineHunks(d.lines, newLines)
	assert.Equal(t, newLines, text.ApplyHunks(fresh, hunks), "display mirrors source")

	d.attach(nvim.Buffer(8), 3, nil)
	assert.Equal(t, []string{""}, d.lines, "empty buffer has one line")
}

func TestSplitLinesRejectsNewlines(t *testing.T) {
	d := NewDisplay(DisplayConfig{Convention: text.CR})

	lines, err := d.splitLines("a\rb")
	assert.NoError(t, err, "CR text")
	assert.Equal(t, []string{"a", "b"}, lines, "lines")

	_, err = d.splitLines("a\nb\rc")
	assert.Error(t, err, "newline inside a display line")

	lf := NewDisplay(DisplayConfig{})
	lines, err = lf.splitLines("a\r\nb")
	assert.NoError(t, err, "carriage return is an ordinary byte")
	assert.Equal(t, []string{"a\r", "b"}, lines, "lines")
}

func TestSourceStateConcurrentAccess(t *testing.T) {
	buf := New(Config{NsID: 1})
	formats := []string{"unix", "dos", "mac"}

	var wg sync.WaitGroup
	wg.Add(2)
	// snapshots on the event loop
	go func() {
		defer wg.Done()
		for i := range 500 {
			buf.remember(sourceState{id: nvim.Buffer(i%3 + 1), path: "main.go", lineEnding: formats[i%3]})
		}
	}()
	// lsp parses on their own goroutine
	go func() {
		defer wg.Done()
		for range 500 {
			s := buf.current()
			if s.id != 0 {
				assert.Equal(t, formats[int(s.id)-1], s.lineEnding, "id and line ending read together")
			}
		}
	}()
	wg.Wait()

	prev := buf.remember(sourceState{id: 9, lineEnding: "dos"})
	assert.Equal(t, nvim.Buffer(2), prev.id, "previous source returned")
	assert.Equal(t, text.CRLF, buf.current().convention(), "dos")
	assert.Equal(t, text.LF, sourceState{}.convention(), "unknown format")
}
