package main

import (
	"testing"

	"squiggle/assert"
)

func TestParseConfigDefaults(t *testing.T) {
	config, err := parseConfig("")
	assert.NoError(t, err, "parseConfig")
	assert.Equal(t, Config{
		Parser:            "go",
		ParserTimeout:     intPtr(5000),
		SourceLineEnding:  "auto",
		DisplayLineEnding: "lf",
		HighlightFg:       "#ffff00",
		HighlightBg:       "#ff0000",
		MarkerText:        "✗",
		LogLevel:          "info",
	}, config, "defaults")
}

func TestParseConfigOverrides(t *testing.T) {
	config, err := parseConfig(`{
		"ns_id": 7,
		"parser": "remote",
		"parser_url": "http://127.0.0.1:8080/check",
		"parser_timeout": 250,
		"source_line_ending": "crlf",
		"highlight_bg": "#440000",
		"debug_immediate_shutdown": true
	}`)
	assert.NoError(t, err, "parseConfig")
	assert.Equal(t, 7, config.NsID, "ns_id")
	assert.Equal(t, "remote", config.Parser, "parser")
	assert.Equal(t, 250, config.timeoutMs(), "timeout")
	assert.Equal(t, "crlf", config.SourceLineEnding, "source line ending")
	assert.Equal(t, "#ffff00", config.HighlightFg, "default fg kept")
	assert.Equal(t, "#440000", config.HighlightBg, "bg override")
	assert.True(t, config.DebugImmediateShutdown, "debug shutdown")
}

func TestParseConfigZeroTimeoutDisables(t *testing.T) {
	config, err := parseConfig(`{"parser_timeout": 0}`)
	assert.NoError(t, err, "parseConfig")
	assert.NotNil(t, config.ParserTimeout, "explicit zero kept")
	assert.Equal(t, 0, config.timeoutMs(), "no timeout")

	config, err = parseConfig(`{"parser": "remote"}`)
	assert.NoError(t, err, "parseConfig")
	assert.Equal(t, 5000, config.timeoutMs(), "unset gets the default")
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"parser":`},
		{"bad source line ending", `{"source_line_ending":"ebcdic"}`},
		{"bad display line ending", `{"display_line_ending":"auto"}`},
		{"negative timeout", `{"parser_timeout":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.raw)
			assert.Error(t, err, "parseConfig")
		})
	}
}

func intPtr(v int) *int { return &v }
