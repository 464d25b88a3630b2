package types

import (
	"errors"
	"fmt"
)

// Span is a (start, length) byte range over a text buffer
type Span struct {
	Start  int
	Length int
}

// End returns the exclusive end offset
func (s Span) End() int { return s.Start + s.Length }

// Diagnostic is a parser-reported issue tied to a span of the source text
type Diagnostic struct {
	Span     Span
	Message  string
	Severity string // informational only, never used for selection or styling
	Code     string
	InSource bool // false when the diagnostic has no concrete source location
}

func (d *Diagnostic) String() string {
	if !d.InSource {
		return d.Message
	}
	return fmt.Sprintf("[%d+%d] %s", d.Span.Start, d.Span.Length, d.Message)
}

// Range is a span in display-buffer coordinates
type Range struct {
	Start  int
	Length int
}

// Point is a 2-D position reported by the render surface.
// For Neovim surfaces X is the 0-indexed byte column and Y the 0-indexed row.
type Point struct {
	X int
	Y int
}

type DirectiveKind int

const (
	DirectiveHide DirectiveKind = iota
	DirectiveRange
	DirectivePoint
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveHide:
		return "Hide"
	case DirectiveRange:
		return "Range"
	case DirectivePoint:
		return "Point"
	default:
		return "Unknown"
	}
}

// Directive tells the render surface what to display for one recompute cycle.
// Exactly one of Range or Point is meaningful, selected by Kind.
type Directive struct {
	Kind       DirectiveKind
	Range      Range
	Point      Point
	Offset     int         // display offset the Point was computed from
	Diagnostic *Diagnostic // nil for Hide
}

func (d Directive) String() string {
	switch d.Kind {
	case DirectiveRange:
		return fmt.Sprintf("Range{start=%d len=%d}", d.Range.Start, d.Range.Length)
	case DirectivePoint:
		return fmt.Sprintf("Point{x=%d y=%d offset=%d}", d.Point.X, d.Point.Y, d.Offset)
	default:
		return "Hide"
	}
}

// MarkerState is the visibility and position of the single error marker
type MarkerState struct {
	Visible  bool
	Position Point
}

var (
	// ErrOutOfRange marks an offset or length outside the document bounds.
	// It is a caller defect, never a user error.
	ErrOutOfRange = errors.New("offset out of range")

	// ErrStaleSnapshot is returned when a result belongs to a snapshot that a
	// newer edit has already replaced.
	ErrStaleSnapshot = errors.New("stale snapshot")
)

// RangeError carries the offending bounds of an ErrOutOfRange failure
type RangeError struct {
	Offset int
	Length int
	Limit  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("span [%d+%d] outside [0, %d]", e.Offset, e.Length, e.Limit)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// ParserType selects where diagnostics come from
type ParserType string

const (
	ParserTypeGo     ParserType = "go"
	ParserTypeRemote ParserType = "remote"
	ParserTypeLSP    ParserType = "lsp"
)

// ParserConfig holds configuration for parsers
type ParserConfig struct {
	URL       string // diagnostics service endpoint (remote)
	AuthToken string // bearer token for the diagnostics service
	TimeoutMs int    // per-request timeout in milliseconds (0 = none)
	FilePath  string // name reported with each snapshot
	Language  string // language hint for the diagnostics service
}
