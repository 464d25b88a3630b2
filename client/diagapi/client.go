package diagapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"squiggle/logger"

	"github.com/andybalholm/brotli"
)

// CheckRequest is the request format for the diagnostics service
type CheckRequest struct {
	FilePath     string `json:"file_path"`
	FileContents string `json:"file_contents"`
	Language     string `json:"language,omitempty"`
	// UseBytes asks for byte offsets rather than UTF-16 code units
	UseBytes bool `json:"use_bytes"`
}

// Diagnostic is one entry of a CheckResponse. Start and Length are offsets
// into the submitted file_contents.
type Diagnostic struct {
	Start    int    `json:"start"`
	Length   int    `json:"length"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	InSource bool   `json:"in_source"`
}

// CheckResponse is the response format from the diagnostics service
type CheckResponse struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Client is the HTTP client for the diagnostics service
type Client struct {
	HTTPClient *http.Client
	URL        string
	AuthToken  string
}

// NewClient creates a new diagnostics service client
// timeoutMs is the HTTP client timeout in milliseconds (0 = no timeout)
func NewClient(url, authToken string, timeoutMs int) *Client {
	timeout := time.Duration(0)
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		URL:       url,
		AuthToken: authToken,
	}
}

// DoCheck sends one snapshot to the diagnostics service
func (c *Client) DoCheck(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	defer logger.Trace("diagapi.DoCheck")()

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Compress with brotli (quality 1 for speed)
	var compressedBuf bytes.Buffer
	brotliWriter := brotli.NewWriterLevel(&compressedBuf, 1)
	if _, err := brotliWriter.Write(jsonData); err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}
	if err := brotliWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.URL, &compressedBuf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Encoding", "br")
	httpReq.Header.Set("Accept-Encoding", "br")
	if c.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "br" {
		reader = brotli.NewReader(resp.Body)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp CheckResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &apiResp, nil
}
