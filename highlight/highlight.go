// Package highlight decides which diagnostic to surface for a document and
// what the render surface should draw for it.
package highlight

import (
	"fmt"

	"squiggle/text"
	"squiggle/types"
)

// Positioner maps a display offset to the point the marker should be drawn at.
// Render surfaces implement it.
type Positioner interface {
	PositionFromOffset(offset int) (types.Point, error)
}

// Select returns the first diagnostic that maps to a source location, in the
// order the parser supplied them. Everything after it is ignored for the cycle.
func Select(diagnostics []*types.Diagnostic) *types.Diagnostic {
	for _, d := range diagnostics {
		if d != nil && d.InSource {
			return d
		}
	}
	return nil
}

// Plan turns the selected diagnostic into exactly one directive. A nil
// diagnostic yields Hide.
func Plan(diag *types.Diagnostic, doc *text.Document, pos Positioner) (types.Directive, error) {
	if diag == nil {
		return types.Directive{Kind: types.DirectiveHide}, nil
	}

	offset, length, err := doc.Translate(diag.Span.Start, diag.Span.Length)
	if err != nil {
		return types.Directive{Kind: types.DirectiveHide}, fmt.Errorf("translate %s: %w", diag, err)
	}

	if length > 0 {
		return types.Directive{
			Kind:       types.DirectiveRange,
			Range:      types.Range{Start: offset, Length: length},
			Diagnostic: diag,
		}, nil
	}

	point, err := pos.PositionFromOffset(offset)
	if err != nil {
		return types.Directive{Kind: types.DirectiveHide}, fmt.Errorf("position from offset %d: %w", offset, err)
	}
	return types.Directive{
		Kind:       types.DirectivePoint,
		Point:      point,
		Offset:     offset,
		Diagnostic: diag,
	}, nil
}

// Marker derives the marker state a directive implies
func Marker(d types.Directive) types.MarkerState {
	if d.Kind != types.DirectivePoint {
		return types.MarkerState{}
	}
	return types.MarkerState{Visible: true, Position: d.Point}
}

// Run is the whole selection pipeline for one snapshot
func Run(doc *text.Document, diagnostics []*types.Diagnostic, pos Positioner) (types.Directive, types.MarkerState, error) {
	directive, err := Plan(Select(diagnostics), doc, pos)
	return directive, Marker(directive), err
}
