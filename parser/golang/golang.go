// Package golang reports Go syntax errors using the standard library parser
package golang

import (
	"context"
	"errors"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"squiggle/logger"
	"squiggle/types"
)

// DefaultFilename is used in diagnostics when no file path is configured
const DefaultFilename = "buffer.go"

type Parser struct {
	Filename string
}

func NewParser(filename string) *Parser {
	if filename == "" {
		filename = DefaultFilename
	}
	return &Parser{Filename: filename}
}

// Parse returns every syntax error in content, in source order. Each span
// covers the token the error points at; errors at end of input or at an
// inserted semicolon get an empty span.
func (p *Parser) Parse(ctx context.Context, content string) ([]*types.Diagnostic, error) {
	defer logger.Trace("golang.Parse")()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, p.Filename, content, parser.AllErrors|parser.SkipObjectResolution)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err == nil {
		return nil, nil
	}

	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return []*types.Diagnostic{{Message: err.Error(), Severity: "error"}}, nil
	}
	list.Sort()

	diagnostics := make([]*types.Diagnostic, 0, len(list))
	for _, e := range list {
		d := &types.Diagnostic{
			Message:  e.Msg,
			Severity: "error",
		}
		if e.Pos.IsValid() && e.Pos.Offset >= 0 && e.Pos.Offset <= len(content) {
			d.Span = types.Span{Start: e.Pos.Offset, Length: tokenLength(content, e.Pos.Offset)}
			d.InSource = true
		}
		diagnostics = append(diagnostics, d)
	}
	return diagnostics, nil
}

// tokenLength returns the byte length of the token starting exactly at
// offset, or 0 when offset is at end of input, on whitespace, or on a
// semicolon the scanner inserted at a newline
func tokenLength(src string, offset int) int {
	if offset >= len(src) {
		return 0
	}
	rest := src[offset:]

	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(rest))
	var s scanner.Scanner
	s.Init(file, []byte(rest), func(token.Position, string) {}, 0)

	pos, tok, lit := s.Scan()
	if tok == token.EOF || file.Offset(pos) != 0 {
		return 0
	}
	if tok == token.SEMICOLON && lit != ";" {
		return 0
	}

	n := len(tok.String())
	if lit != "" {
		n = len(lit)
	}
	if tok == token.STRING && rest[0] == '`' {
		// raw string literals drop carriage returns from lit
		n = len(rest)
		if i := strings.IndexByte(rest[1:], '`'); i >= 0 {
			n = i + 2
		}
	}
	return min(n, len(rest))
}
