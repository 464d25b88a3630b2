package text

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Hunk replaces old lines [Start, End) with Lines. Start and End are
// 0-indexed positions in the old line slice; Start == End is a pure insertion.
type Hunk struct {
	Start int
	End   int
	Lines []string
}

// LineHunks computes the contiguous line regions that differ between two
// versions of a buffer. Lines are compared whole, so they may contain any
// bytes. Hunks are returned in ascending order and do not overlap, so
// applying them from last to first keeps every index valid.
func LineHunks(oldLines, newLines []string) []Hunk {
	oldRunes, newRunes := encodeLines(oldLines, newLines)
	if string(oldRunes) == string(newRunes) {
		return nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(oldRunes, newRunes, false)

	var hunks []Hunk
	var current *Hunk
	oldLine, newLine := 0, 0

	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}

	for _, diff := range diffs {
		n := utf8.RuneCountInString(diff.Text)

		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			oldLine += n
			newLine += n

		case diffmatchpatch.DiffDelete:
			if current == nil {
				current = &Hunk{Start: oldLine, End: oldLine}
			}
			current.End += n
			oldLine += n

		case diffmatchpatch.DiffInsert:
			if current == nil {
				current = &Hunk{Start: oldLine, End: oldLine}
			}
			current.Lines = append(current.Lines, newLines[newLine:newLine+n]...)
			newLine += n
		}
	}
	flush()

	return hunks
}

// ApplyHunks applies hunks produced by LineHunks to oldLines
func ApplyHunks(oldLines []string, hunks []Hunk) []string {
	result := append([]string{}, oldLines...)
	for i := len(hunks) - 1; i >= 0; i-- {
		h := hunks[i]
		tail := append([]string{}, result[h.End:]...)
		result = append(append(result[:h.Start], h.Lines...), tail...)
	}
	return result
}

// encodeLines maps every distinct line to one rune, shared by both sides
func encodeLines(oldLines, newLines []string) ([]rune, []rune) {
	ids := make(map[string]rune)
	encode := func(lines []string) []rune {
		out := make([]rune, len(lines))
		for i, line := range lines {
			r, ok := ids[line]
			if !ok {
				r = lineRune(len(ids))
				ids[line] = r
			}
			out[i] = r
		}
		return out
	}
	return encode(oldLines), encode(newLines)
}

// lineRune returns the i-th valid rune, skipping NUL and surrogates
func lineRune(i int) rune {
	r := rune(i + 1)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}
