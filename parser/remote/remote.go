// Package remote asks an HTTP diagnostics service to check each snapshot
package remote

import (
	"context"

	"squiggle/client/diagapi"
	"squiggle/logger"
	"squiggle/types"
)

// Client interface for API calls (enables mocking in tests)
type Client interface {
	DoCheck(ctx context.Context, req *diagapi.CheckRequest) (*diagapi.CheckResponse, error)
}

type Parser struct {
	config *types.ParserConfig
	client Client
}

func NewParser(config *types.ParserConfig) *Parser {
	return &Parser{
		config: config,
		client: diagapi.NewClient(config.URL, config.AuthToken, config.TimeoutMs),
	}
}

// Parse submits content and converts the service's diagnostics. Entries
// whose span does not fit the submitted text lose their source location so
// they are reported but never highlighted.
func (p *Parser) Parse(ctx context.Context, content string) ([]*types.Diagnostic, error) {
	defer logger.Trace("remote.Parse")()

	resp, err := p.client.DoCheck(ctx, &diagapi.CheckRequest{
		FilePath:     p.config.FilePath,
		FileContents: content,
		Language:     p.config.Language,
		UseBytes:     true,
	})
	if err != nil {
		return nil, err
	}

	diagnostics := make([]*types.Diagnostic, 0, len(resp.Diagnostics))
	for _, d := range resp.Diagnostics {
		diag := &types.Diagnostic{
			Span:     types.Span{Start: d.Start, Length: d.Length},
			Message:  d.Message,
			Severity: d.Severity,
			Code:     d.Code,
			InSource: d.InSource,
		}
		if diag.InSource && (d.Start < 0 || d.Length < 0 || d.Start+d.Length > len(content)) {
			logger.Warn("remote diagnostic %q has span %d+%d outside %d bytes; not highlighting", d.Message, d.Start, d.Length, len(content))
			diag.InSource = false
		}
		diagnostics = append(diagnostics, diag)
	}
	return diagnostics, nil
}
