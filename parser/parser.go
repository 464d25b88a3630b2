// Package parser builds the diagnostics source selected in the configuration
package parser

import (
	"fmt"

	"squiggle/engine"
	"squiggle/parser/golang"
	"squiggle/parser/remote"
	"squiggle/types"
)

// Compile-time checks that parsers implement engine.Parser
var (
	_ engine.Parser = (*golang.Parser)(nil)
	_ engine.Parser = (*remote.Parser)(nil)
)

// New returns the parser for parserType. editor serves the lsp type, which
// reads diagnostics the editor already holds, and may be nil otherwise.
func New(parserType types.ParserType, config *types.ParserConfig, editor engine.Parser) (engine.Parser, error) {
	switch parserType {
	case types.ParserTypeGo, "":
		return golang.NewParser(config.FilePath), nil
	case types.ParserTypeRemote:
		if config.URL == "" {
			return nil, fmt.Errorf("parser %q requires parser_url", parserType)
		}
		return remote.NewParser(config), nil
	case types.ParserTypeLSP:
		if editor == nil {
			return nil, fmt.Errorf("parser %q requires an editor connection", parserType)
		}
		return editor, nil
	default:
		return nil, fmt.Errorf("unknown parser type: %s", parserType)
	}
}
