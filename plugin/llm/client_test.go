package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func completionBody(content string) map[string]any {
	return map[string]any{
		"id": "cmpl-test",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestCompleteSuccess(t *testing.T) {
	var gotStream any = "unset"
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotStream = payload["stream"]

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("  Woof! Nice to meet you.  "))
	})

	c := NewCompleter()
	reply, err := c.Complete(context.Background(), &CompletionRequest{
		Model:        "moonshot-v1-8k",
		SystemPrompt: "You are an adorable AI pet named Mochi.",
		Messages: []PromptMessage{
			{Role: RoleUser, Content: TextContent("hello")},
		},
		APIKey:  "sk-test",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "Woof! Nice to meet you.", reply)
	// Streaming must never be requested.
	assert.NotEqual(t, true, gotStream)
}

func TestCompleteStripsBearerPrefix(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("ok"))
	})

	c := NewCompleter()
	_, err := c.Complete(context.Background(), &CompletionRequest{
		Model:   "moonshot-v1-8k",
		APIKey:  "Bearer sk-test",
		BaseURL: srv.URL,
		Messages: []PromptMessage{
			{Role: RoleUser, Content: TextContent("hi")},
		},
	})
	require.NoError(t, err)
}

func TestCompleteProviderError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "invalid api key",
				"type":    "authentication_error",
				"code":    "invalid_api_key",
			},
		})
	})

	c := NewCompleter()
	_, err := c.Complete(context.Background(), &CompletionRequest{
		Model:    "moonshot-v1-8k",
		APIKey:   "sk-bad",
		BaseURL:  srv.URL,
		Messages: []PromptMessage{{Role: RoleUser, Content: TextContent("hi")}},
	})
	require.Error(t, err)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureProvider, f.Kind)
	assert.Equal(t, http.StatusUnauthorized, f.StatusCode)
	assert.Equal(t, "invalid api key", f.Message)
	assert.Equal(t, "authentication_error", f.Type)
	assert.Equal(t, "invalid_api_key", f.Code)
}

func TestCompleteHTTPError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	c := NewCompleter()
	_, err := c.Complete(context.Background(), &CompletionRequest{
		Model:    "moonshot-v1-8k",
		APIKey:   "sk-test",
		BaseURL:  srv.URL,
		Messages: []PromptMessage{{Role: RoleUser, Content: TextContent("hi")}},
	})
	require.Error(t, err)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureHTTP, f.Kind)
	assert.Equal(t, http.StatusBadGateway, f.StatusCode)
}

func TestCompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c := NewCompleter()
	_, err := c.Complete(context.Background(), &CompletionRequest{
		Model:    "moonshot-v1-8k",
		APIKey:   "sk-test",
		BaseURL:  url,
		Messages: []PromptMessage{{Role: RoleUser, Content: TextContent("hi")}},
	})
	require.Error(t, err)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureTransport, f.Kind)
}

func TestCompleteBlankReply(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("   "))
	})

	c := NewCompleter()
	_, err := c.Complete(context.Background(), &CompletionRequest{
		Model:    "moonshot-v1-8k",
		APIKey:   "sk-test",
		BaseURL:  srv.URL,
		Messages: []PromptMessage{{Role: RoleUser, Content: TextContent("hi")}},
	})
	require.Error(t, err)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, FailureProvider, f.Kind)
	assert.Equal(t, "no usable reply content", f.Message)
}

func TestContentUnion(t *testing.T) {
	text := TextContent("hello")
	assert.False(t, text.IsParts())
	assert.Equal(t, "hello", text.Text())

	parts := PartsContent(ImagePart("data:image/jpeg;base64,AAAA"), TextPart("what is this?"))
	require.True(t, parts.IsParts())
	require.Len(t, parts.Parts(), 2)
	assert.Equal(t, ContentPartImage, parts.Parts()[0].Type)
	assert.Equal(t, ContentPartText, parts.Parts()[1].Type)
}
