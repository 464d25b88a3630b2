package buffer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"squiggle/logger"
	"squiggle/text"
	"squiggle/types"

	"github.com/neovim/go-client/nvim"
)

// EventName is the RPC notification the editor plugin sends engine events on
const EventName = "squiggle_event"

// DisplayVar marks the display buffer so it is never treated as a source
const DisplayVar = "squiggle_display"

type Config struct {
	NsID int
}

// sourceState identifies the buffer the last snapshot was read from
type sourceState struct {
	id         nvim.Buffer
	path       string
	lineEnding string
}

// NvimBuffer is the source buffer being edited. It also serves diagnostics
// Neovim already holds for that buffer (the lsp parser). Snapshot runs on the
// engine's event loop while Parse runs on a parse goroutine, so the source
// state is guarded by mu.
type NvimBuffer struct {
	client *nvim.Nvim // stored internally, set via SetClient

	mu     sync.Mutex
	source sourceState

	config Config
}

func New(config Config) *NvimBuffer {
	return &NvimBuffer{
		config: config,
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.client = n
}

func (b *NvimBuffer) current() sourceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source
}

// remember records the buffer a snapshot was read from and returns the
// previous one
func (b *NvimBuffer) remember(next sourceState) sourceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.source
	b.source = next
	return prev
}

// Snapshot reads the full text of the source buffer. Lines are joined with
// the buffer's 'fileformat' break, so offsets match the file on disk. While
// the display buffer has focus the last source buffer is read instead.
func (b *NvimBuffer) Snapshot() (string, string, error) {
	defer logger.Trace("buffer.Snapshot")()
	if b.client == nil {
		return "", "", fmt.Errorf("nvim client not set")
	}

	var currentBuf nvim.Buffer
	var isDisplay bool

	batch := b.client.NewBatch()
	batch.CurrentBuffer(&currentBuf)
	batch.ExecLua(fmt.Sprintf(`return vim.b.%s == true`, DisplayVar), &isDisplay, nil)
	if err := batch.Execute(); err != nil {
		return "", "", err
	}

	target := currentBuf
	if isDisplay {
		last := b.current()
		if last.id == 0 {
			return "", "", fmt.Errorf("no source buffer yet")
		}
		target = last.id
	}

	var lines [][]byte
	var path string
	var state struct {
		FileFormat string `msgpack:"fileformat"`
		EOL        bool   `msgpack:"eol"`
	}

	batch = b.client.NewBatch()
	batch.BufferLines(target, 0, -1, false, &lines)
	batch.BufferName(target, &path)
	batch.ExecLua(`
		local buf = ...
		return { fileformat = vim.bo[buf].fileformat, eol = vim.bo[buf].eol }
	`, &state, int(target))
	if err := batch.Execute(); err != nil {
		logger.Error("error executing snapshot batch: %v", err)
		return "", "", err
	}

	linesStr := make([]string, len(lines))
	for i, line := range lines {
		linesStr[i] = string(line)
	}

	prev := b.remember(sourceState{id: target, path: path, lineEnding: state.FileFormat})
	if prev.id != target {
		logger.Debug("source buffer: %d -> %d (%s)", prev.id, target, path)
	}

	content, err := joinSource(linesStr, state.FileFormat, state.EOL)
	if err != nil {
		return "", "", err
	}
	return content, state.FileFormat, nil
}

// convention is the break sequence the snapshot text was joined with
func (s sourceState) convention() text.Convention {
	if c, err := text.ParseConvention(s.lineEnding); err == nil {
		return c
	}
	return text.LF
}

// joinSource rebuilds file text from buffer lines
func joinSource(lines []string, fileFormat string, eol bool) (string, error) {
	conv := text.LF
	if fileFormat != "" {
		c, err := text.ParseConvention(fileFormat)
		if err != nil {
			return "", err
		}
		conv = c
	}
	content := conv.Join(lines)
	if eol && len(lines) > 0 {
		content += conv.Sequence
	}
	return content, nil
}

// RegisterEventHandler registers a handler for nvim RPC events
func (b *NvimBuffer) RegisterEventHandler(handler func(event string)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler(EventName, func(_ *nvim.Nvim, event string) {
		handler(event)
	})
}

// Parse returns the diagnostics Neovim holds for the source buffer, with
// line/column positions converted to byte spans over content
func (b *NvimBuffer) Parse(ctx context.Context, content string) ([]*types.Diagnostic, error) {
	defer logger.Trace("buffer.Parse")()
	if b.client == nil {
		return nil, fmt.Errorf("nvim client not set")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source := b.current()

	var diagnostics []map[string]any
	batch := b.client.NewBatch()
	batch.ExecLua(fmt.Sprintf(`
		local diagnostics = vim.diagnostic.get(%d)
		return diagnostics
	`, int(source.id)), &diagnostics, nil)
	if err := batch.Execute(); err != nil {
		logger.Error("error getting diagnostics: %v", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return convertDiagnostics(diagnostics, content, source.convention()), nil
}

// convertDiagnostics maps vim.diagnostic entries (0-indexed lnum, byte col)
// onto byte spans. Entries whose start lies past the text stay as messages
// only. The result is sorted by start offset.
func convertDiagnostics(raw []map[string]any, content string, conv text.Convention) []*types.Diagnostic {
	lines := conv.Split(content)
	width := conv.Width()

	result := make([]*types.Diagnostic, 0, len(raw))
	for _, d := range raw {
		diag := &types.Diagnostic{
			Message:  getString(d, "message"),
			Severity: severityName(getNumber(d, "severity")),
			Code:     codeString(d["code"]),
		}

		lnum, col := getNumber(d, "lnum"), getNumber(d, "col")
		if lnum >= 0 && col >= 0 && lnum < len(lines) && col <= len(lines[lnum]) {
			endLnum, endCol := lnum, col
			if l := getNumber(d, "end_lnum"); l >= 0 {
				endLnum = l
			}
			if c := getNumber(d, "end_col"); c >= 0 {
				endCol = c
			}
			start := text.OffsetOf(lines, width, lnum, col)
			end := text.OffsetOf(lines, width, endLnum, endCol)
			if endLnum >= len(lines) {
				end = len(content)
			}
			diag.Span = types.Span{Start: start, Length: max(0, end-start)}
			diag.InSource = true
		}
		result = append(result, diag)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].InSource != result[j].InSource {
			return result[i].InSource
		}
		return result[i].Span.Start < result[j].Span.Start
	})
	return result
}

func severityName(severity int) string {
	switch severity {
	case 1:
		return "error"
	case 2:
		return "warning"
	case 3:
		return "info"
	case 4:
		return "hint"
	default:
		return "error"
	}
}

func codeString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

// Helper function to safely get string from map
func getString(m map[string]any, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

// Helper function to safely get number from map, handling both int and float64
func getNumber(m map[string]any, key string) int {
	if val, ok := m[key].(int); ok {
		return val
	}
	if val, ok := m[key].(float64); ok {
		return int(val)
	}
	if val, ok := m[key].(int32); ok {
		return int(val)
	}
	if val, ok := m[key].(int64); ok {
		return int(val)
	}
	if val, ok := m[key].(uint64); ok {
		return int(val)
	}
	return -1
}
