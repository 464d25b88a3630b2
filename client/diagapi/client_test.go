package diagapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"squiggle/assert"

	"github.com/andybalholm/brotli"
)

func decodeRequest(t *testing.T, r *http.Request) CheckRequest {
	t.Helper()
	compressedBody, err := io.ReadAll(r.Body)
	assert.NoError(t, err, "reading request body")

	decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(compressedBody)))
	assert.NoError(t, err, "decompressing request")

	var req CheckRequest
	assert.NoError(t, json.Unmarshal(decompressed, &req), "parsing JSON")
	return req
}

func TestClientBrotliCompression(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "br", r.Header.Get("Content-Encoding"), "Content-Encoding header")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"), "Content-Type header")

		req := decodeRequest(t, r)
		assert.Equal(t, "main.go", req.FilePath, "file path")
		assert.Equal(t, "package main\n", req.FileContents, "contents")
		assert.True(t, req.UseBytes, "byte offsets requested")

		json.NewEncoder(w).Encode(CheckResponse{
			Diagnostics: []Diagnostic{{Start: 8, Length: 4, Message: "unused", Severity: "warning", InSource: true}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 30000)
	resp, err := client.DoCheck(context.Background(), &CheckRequest{
		FilePath:     "main.go",
		FileContents: "package main\n",
		UseBytes:     true,
	})
	assert.NoError(t, err, "DoCheck")
	assert.Len(t, resp.Diagnostics, 1, "diagnostics")
	assert.Equal(t, Diagnostic{Start: 8, Length: 4, Message: "unused", Severity: "warning", InSource: true}, resp.Diagnostics[0], "diagnostic")
}

func TestClientCompressedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "br", r.Header.Get("Accept-Encoding"), "Accept-Encoding header")
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		json.NewEncoder(bw).Encode(CheckResponse{Diagnostics: []Diagnostic{{Start: 1, Message: "x", InSource: true}}})
		bw.Close()
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "", 0).DoCheck(context.Background(), &CheckRequest{FileContents: "ab"})
	assert.NoError(t, err, "DoCheck")
	assert.Equal(t, "x", resp.Diagnostics[0].Message, "decoded message")
}

func TestClientAuthorizationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"), "Authorization header")
		w.Write([]byte(`{"diagnostics":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "secret", 0).DoCheck(context.Background(), &CheckRequest{})
	assert.NoError(t, err, "DoCheck")
}

func TestClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", 0).DoCheck(context.Background(), &CheckRequest{})
	assert.Error(t, err, "non-200")
	assert.Contains(t, err.Error(), "503", "status in error")
}

func TestClientContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(server.URL, "", 0).DoCheck(ctx, &CheckRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded, "deadline propagates")
}
