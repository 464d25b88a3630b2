package buffer

import (
	"fmt"
	"strings"
	"sync"

	"squiggle/logger"
	"squiggle/text"
	"squiggle/types"

	"github.com/neovim/go-client/nvim"
)

// HighlightGroup is the group the selected range is drawn with
const HighlightGroup = "SquiggleError"

// MarkerGroup is the group the empty-span marker is drawn with
const MarkerGroup = "SquiggleMarker"

type DisplayConfig struct {
	NsID       int
	MarkerText string
	Convention text.Convention
}

// DisplayBuffer is a read-only scratch buffer shown in a vertical split next
// to the source window. Points are (display cell column, 0-indexed row).
type DisplayBuffer struct {
	client   *nvim.Nvim
	id       nvim.Buffer
	markerNs int

	mu            sync.Mutex
	lines         []string
	marker        types.Point
	markerVisible bool

	config DisplayConfig
}

func NewDisplay(config DisplayConfig) *DisplayBuffer {
	if config.MarkerText == "" {
		config.MarkerText = "✗"
	}
	if config.Convention.Sequence == "" {
		config.Convention = text.LF
	}
	return &DisplayBuffer{
		lines:  []string{""},
		config: config,
	}
}

// SetClient stores the nvim client for all display operations
func (d *DisplayBuffer) SetClient(n *nvim.Nvim) {
	d.client = n
}

const openDisplayLua = `
	local var, marker_ns_name = ...
	for _, buf in ipairs(vim.api.nvim_list_bufs()) do
		if vim.b[buf][var] then
			return {
				buf = buf,
				ns = vim.api.nvim_create_namespace(marker_ns_name),
				lines = vim.api.nvim_buf_get_lines(buf, 0, -1, false),
			}
		end
	end
	local source_win = vim.api.nvim_get_current_win()
	local buf = vim.api.nvim_create_buf(false, true)
	vim.b[buf][var] = true
	vim.bo[buf].buftype = "nofile"
	vim.bo[buf].bufhidden = "hide"
	vim.bo[buf].swapfile = false
	vim.bo[buf].modifiable = false
	vim.cmd("rightbelow vsplit")
	local win = vim.api.nvim_get_current_win()
	vim.api.nvim_win_set_buf(win, buf)
	vim.wo[win].wrap = false
	vim.wo[win].number = false
	vim.api.nvim_set_current_win(source_win)
	return {
		buf = buf,
		ns = vim.api.nvim_create_namespace(marker_ns_name),
		lines = vim.api.nvim_buf_get_lines(buf, 0, -1, false),
	}
`

// Open finds or creates the display buffer and its window
func (d *DisplayBuffer) Open() error {
	if d.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	var result struct {
		Buf   int      `msgpack:"buf"`
		Ns    int      `msgpack:"ns"`
		Lines []string `msgpack:"lines"`
	}
	batch := d.client.NewBatch()
	batch.ExecLua(openDisplayLua, &result, DisplayVar, "squiggle_marker")
	batch.ExecLua(`
		local marker_group = ...
		if vim.tbl_isempty(vim.api.nvim_get_hl(0, { name = marker_group })) then
			vim.api.nvim_set_hl(0, marker_group, { fg = "#ff0000", bold = true })
		end
	`, nil, MarkerGroup)
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("open display buffer: %w", err)
	}

	d.attach(nvim.Buffer(result.Buf), result.Ns, result.Lines)
	logger.Debug("display buffer %d (marker ns %d, %d lines)", result.Buf, result.Ns, len(result.Lines))
	return nil
}

// attach points the display at a buffer whose current lines are lines. The
// next SetText diffs against them, not against what an earlier connection
// drew.
func (d *DisplayBuffer) attach(id nvim.Buffer, markerNs int, lines []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.id = id
	d.markerNs = markerNs
	if len(lines) == 0 {
		lines = []string{""}
	}
	d.lines = lines
	d.markerVisible = false
}

func (d *DisplayBuffer) ready() error {
	if d.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	if d.id == 0 {
		return fmt.Errorf("display buffer not open")
	}
	return nil
}

// SetText replaces the display text, sending only the changed lines
func (d *DisplayBuffer) SetText(content string) error {
	defer logger.Trace("display.SetText")()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}

	newLines, err := d.splitLines(content)
	if err != nil {
		return err
	}
	hunks := text.LineHunks(d.lines, newLines)
	if len(hunks) == 0 {
		return nil
	}

	batch := d.client.NewBatch()
	batch.ExecLua(`vim.bo[...].modifiable = true`, nil, int(d.id))
	// bottom-up so earlier hunk indexes stay valid
	for i := len(hunks) - 1; i >= 0; i-- {
		h := hunks[i]
		replacement := make([][]byte, len(h.Lines))
		for j, line := range h.Lines {
			replacement[j] = []byte(line)
		}
		batch.SetBufferLines(d.id, h.Start, h.End, false, replacement)
	}
	batch.ExecLua(`vim.bo[...].modifiable = false`, nil, int(d.id))
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("set display text: %w", err)
	}

	d.lines = newLines
	logger.Debug("display: %d hunks, %d lines", len(hunks), len(newLines))
	return nil
}

// splitLines breaks display text into buffer lines; Neovim lines cannot hold
// a newline
func (d *DisplayBuffer) splitLines(content string) ([]string, error) {
	lines := d.config.Convention.Split(content)
	for i, line := range lines {
		if strings.ContainsRune(line, '\n') {
			return nil, fmt.Errorf("display line %d contains a newline (display line ending %s)", i, d.config.Convention)
		}
	}
	return lines, nil
}

// extmarkRange converts a display byte range into Neovim extmark coordinates
func extmarkRange(lines []string, breakWidth int, r types.Range) (row, col, endRow, endCol int) {
	row, col = text.LineCol(lines, breakWidth, r.Start)
	endRow, endCol = text.LineCol(lines, breakWidth, r.Start+r.Length)
	return row, col, endRow, endCol
}

func (d *DisplayBuffer) Highlight(r types.Range, fg, bg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.checkOffset(r.Start + r.Length); err != nil {
		return err
	}

	row, col, endRow, endCol := extmarkRange(d.lines, d.config.Convention.Width(), r)
	batch := d.client.NewBatch()
	batch.ExecLua(`
		local buf, ns, group, fg, bg, row, col, end_row, end_col = ...
		vim.api.nvim_set_hl(0, group, { fg = fg, bg = bg })
		vim.api.nvim_buf_set_extmark(buf, ns, row, col, {
			end_row = end_row,
			end_col = end_col,
			hl_group = group,
			strict = false,
		})
	`, nil, int(d.id), d.config.NsID, HighlightGroup, fg, bg, row, col, endRow, endCol)
	return batch.Execute()
}

func (d *DisplayBuffer) ClearHighlight() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	batch := d.client.NewBatch()
	batch.ClearBufferNamespace(d.id, d.config.NsID, 0, -1)
	return batch.Execute()
}

func (d *DisplayBuffer) checkOffset(offset int) error {
	limit := len(d.config.Convention.Join(d.lines))
	if offset < 0 || offset > limit {
		return &types.RangeError{Offset: offset, Limit: limit}
	}
	return nil
}

// PositionFromOffset reports the screen cell column and row of a display
// byte offset, computed from the last text sent to the buffer
func (d *DisplayBuffer) PositionFromOffset(offset int) (types.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOffset(offset); err != nil {
		return types.Point{}, err
	}
	row, col := text.LineCol(d.lines, d.config.Convention.Width(), offset)
	return types.Point{X: text.CellColumn(d.lines[row], col), Y: row}, nil
}

func (d *DisplayBuffer) SetMarkerPosition(p types.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.marker = p
	if !d.markerVisible {
		return nil
	}
	return d.drawMarker()
}

func (d *DisplayBuffer) SetMarkerVisible(visible bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markerVisible = visible
	if visible {
		return d.drawMarker()
	}
	if err := d.ready(); err != nil {
		return err
	}
	batch := d.client.NewBatch()
	batch.ClearBufferNamespace(d.id, d.markerNs, 0, -1)
	return batch.Execute()
}

// drawMarker overlays the marker text at the marker cell; caller holds mu
func (d *DisplayBuffer) drawMarker() error {
	if err := d.ready(); err != nil {
		return err
	}
	batch := d.client.NewBatch()
	batch.ClearBufferNamespace(d.id, d.markerNs, 0, -1)
	batch.ExecLua(`
		local buf, ns, row, win_col, marker, group = ...
		vim.api.nvim_buf_set_extmark(buf, ns, row, 0, {
			virt_text = { { marker, group } },
			virt_text_win_col = win_col,
			strict = false,
		})
	`, nil, int(d.id), d.markerNs, d.marker.Y, d.marker.X, d.config.MarkerText, MarkerGroup)
	return batch.Execute()
}
