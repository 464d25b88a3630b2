package text

import (
	"github.com/mattn/go-runewidth"
)

// LineCol converts a byte offset within lines joined by a break of width
// breakWidth into a 0-indexed line and 0-indexed byte column. An offset
// inside a break reports the end of the line the break terminates.
func LineCol(lines []string, breakWidth, offset int) (line, col int) {
	if offset < 0 {
		return 0, 0
	}
	for i, l := range lines {
		if offset <= len(l) || i == len(lines)-1 {
			return i, min(offset, len(l))
		}
		offset -= len(l)
		if offset < breakWidth {
			return i, len(l)
		}
		offset -= breakWidth
	}
	return 0, 0
}

// OffsetOf is the inverse of LineCol. Columns past the end of a line clamp to
// the line length, rows past the end clamp to the last line.
func OffsetOf(lines []string, breakWidth, line, col int) int {
	if len(lines) == 0 || line < 0 {
		return 0
	}
	line = min(line, len(lines)-1)
	offset := 0
	for i := 0; i < line; i++ {
		offset += len(lines[i]) + breakWidth
	}
	return offset + max(0, min(col, len(lines[line])))
}

// CellColumn returns the number of terminal cells occupied by the first
// byteCol bytes of line
func CellColumn(line string, byteCol int) int {
	byteCol = max(0, min(byteCol, len(line)))
	return runewidth.StringWidth(line[:byteCol])
}
