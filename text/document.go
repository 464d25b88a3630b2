package text

import (
	"fmt"
	"sort"
	"strings"

	"squiggle/types"
)

// Document is an immutable snapshot of the source buffer together with the
// line-ending conventions of the source and display buffers. A new Document is
// built for every edit; none is ever mutated.
type Document struct {
	content string
	display string
	source  Convention
	target  Convention

	// breaks holds the start offset of every source line break, ascending
	breaks []int
	// drift is how many bytes each break shrinks by when moving to the display
	// convention; negative when the display break is wider
	drift int
}

func NewDocument(content string, source, display Convention) (*Document, error) {
	if source.Width() == 0 || display.Width() == 0 {
		return nil, fmt.Errorf("line ending conventions must be non-empty (source=%q, display=%q)", source.Name, display.Name)
	}

	var breaks []int
	for pos := 0; pos < len(content); {
		idx := strings.Index(content[pos:], source.Sequence)
		if idx < 0 {
			break
		}
		breaks = append(breaks, pos+idx)
		pos += idx + source.Width()
	}

	displayText := content
	if source.Sequence != display.Sequence && len(breaks) > 0 {
		displayText = strings.ReplaceAll(content, source.Sequence, display.Sequence)
	}

	return &Document{
		content: content,
		display: displayText,
		source:  source,
		target:  display,
		breaks:  breaks,
		drift:   source.Width() - display.Width(),
	}, nil
}

// Text returns the source text
func (d *Document) Text() string { return d.content }

func (d *Document) Len() int { return len(d.content) }

// Display returns the text as the display buffer holds it
func (d *Document) Display() string { return d.display }

func (d *Document) SourceConvention() Convention { return d.source }

func (d *Document) DisplayConvention() Convention { return d.target }

// breaksBefore counts the line breaks that end at or before offset and
// reports whether offset lies strictly inside the next one. A break starting
// exactly at offset is not counted.
func (d *Document) breaksBefore(offset int) (n int, inside bool) {
	n = sort.SearchInts(d.breaks, offset)
	if n > 0 && offset < d.breaks[n-1]+d.source.Width() {
		return n - 1, true
	}
	return n, false
}

// Translate converts a span valid in the source text into the equivalent span
// in the display text. Every line break lying before an endpoint moves that
// endpoint by the width difference of the two conventions. An endpoint that
// falls strictly inside a multi-byte break snaps outward to the enclosing
// display break, so a non-empty span never translates to an empty one.
func (d *Document) Translate(offset, length int) (int, int, error) {
	if offset < 0 || length < 0 || offset+length > len(d.content) {
		return 0, 0, &types.RangeError{Offset: offset, Length: length, Limit: len(d.content)}
	}

	start := d.mapOffset(offset, false)
	if length == 0 {
		return start, 0, nil
	}
	end := d.mapOffset(offset+length, true)
	return start, end - start, nil
}

func (d *Document) mapOffset(offset int, roundUp bool) int {
	n, inside := d.breaksBefore(offset)
	if inside {
		displayStart := d.breaks[n] - n*d.drift
		if roundUp {
			return displayStart + d.target.Width()
		}
		return displayStart
	}
	return offset - n*d.drift
}

// expand is the inverse of Translate for a single offset: it maps a display
// offset back into source coordinates. Offsets strictly inside a multi-byte
// display break map to the start of the source break.
func (d *Document) expand(displayOffset int) (int, error) {
	if displayOffset < 0 || displayOffset > len(d.display) {
		return 0, &types.RangeError{Offset: displayOffset, Limit: len(d.display)}
	}

	// display break k starts at breaks[k] - k*drift
	n := sort.Search(len(d.breaks), func(k int) bool {
		return d.breaks[k]-k*d.drift >= displayOffset
	})
	if n > 0 {
		prevStart := d.breaks[n-1] - (n-1)*d.drift
		if displayOffset < prevStart+d.target.Width() {
			return d.breaks[n-1], nil
		}
	}
	return displayOffset + n*d.drift, nil
}
