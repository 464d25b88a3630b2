// Package report renders every diagnostic of a cycle for a console or log:
// the count, one line per message, then the source text with the selected
// span colored.
package report

import (
	"fmt"
	"io"
	"strings"

	"squiggle/highlight"
	"squiggle/types"

	"github.com/fatih/color"
)

const (
	rule      = "============================"
	separator = "-------------------------"

	// EmptySpanMark is drawn where an empty span points
	EmptySpanMark = "✗"
)

type Options struct {
	// Name labels the report, e.g. the file path
	Name    string
	NoColor bool
}

func painters(opts Options) (span, mark *color.Color) {
	span = color.New(color.FgBlack, color.BgRed)
	mark = color.New(color.FgRed, color.Bold)
	if opts.NoColor {
		span.DisableColor()
		mark.DisableColor()
	}
	return span, mark
}

// Write renders the report for content. Spans of the selected diagnostic are
// byte offsets into content and must lie within it; an invalid span is
// reported instead of drawn.
func Write(w io.Writer, content string, diagnostics []*types.Diagnostic, opts Options) error {
	_, err := io.WriteString(w, render(content, diagnostics, opts))
	return err
}

// String returns the report Write would produce
func String(content string, diagnostics []*types.Diagnostic, opts Options) string {
	return render(content, diagnostics, opts)
}

func render(content string, diagnostics []*types.Diagnostic, opts Options) string {
	var b strings.Builder
	span, mark := painters(opts)

	b.WriteString(rule + "\n")
	if opts.Name != "" {
		fmt.Fprintf(&b, "%s\n", opts.Name)
	}
	fmt.Fprintf(&b, "Parser reported %d diagnostic %s.\n", len(diagnostics), plural(len(diagnostics), "message", "messages"))
	for _, d := range diagnostics {
		if d == nil {
			continue
		}
		fmt.Fprintf(&b, "> %s\n", d.Message)
	}
	b.WriteString(separator + "\n")

	if selected := highlight.Select(diagnostics); selected != nil {
		start, end := selected.Span.Start, selected.Span.End()
		if start < 0 || selected.Span.Length < 0 || end > len(content) {
			fmt.Fprintf(&b, "span %s outside text of %d bytes\n", selected, len(content))
		} else {
			b.WriteString(content[:start])
			if selected.Span.Length == 0 {
				b.WriteString(mark.Sprint(EmptySpanMark))
			} else {
				b.WriteString(span.Sprint(content[start:end]))
			}
			b.WriteString(content[end:])
			b.WriteString("\n")
		}
	}

	b.WriteString(rule + "\n")
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
