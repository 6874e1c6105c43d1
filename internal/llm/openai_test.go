package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "servimatt/chat/internal/errors"
)

// sseBody renders chunks the way the provider frames them.
func sseBody(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		payload, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]string{"content": c}}},
		})
		fmt.Fprintf(&b, "data: %s\n\n", payload)
	}
	return b.String()
}

func drain(t *testing.T, s ChunkStream) []string {
	t.Helper()
	var got []string
	for s.Next() {
		got = append(got, s.Chunk())
	}
	return got
}

// TestOpenAIProvider_Stream runs the client against an httptest server that
// stands in for the chat-completions endpoint.
func TestOpenAIProvider_Stream(t *testing.T) {
	ctx := context.Background()
	req := &CompletionRequest{
		Model:        "gpt-4o",
		SystemPrompt: "be helpful",
		Messages:     []Message{{Role: "user", Content: "Hi"}},
		Temperature:  0.7,
		MaxTokens:    1000,
	}

	t.Run("Yields chunks in order and stops at DONE", func(t *testing.T) {
		var captured chatRequest
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			auth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = fmt.Fprint(w, sseBody("Hel", "lo", " world"))
			_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
			_, _ = fmt.Fprint(w, sseBody("ignored"))
		}))
		defer server.Close()

		stream, err := NewOpenAIProvider(server.URL, "sk-test").Stream(ctx, req)
		require.NoError(t, err)
		defer stream.Close()

		assert.Equal(t, []string{"Hel", "lo", " world"}, drain(t, stream))
		assert.NoError(t, stream.Err())

		assert.Equal(t, "Bearer sk-test", auth)
		assert.True(t, captured.Stream)
		assert.Equal(t, "gpt-4o", captured.Model)
		assert.Equal(t, 1000, captured.MaxTokens)
		require.Len(t, captured.Messages, 2)
		assert.Equal(t, Message{Role: "system", Content: "be helpful"}, captured.Messages[0])
		assert.Equal(t, Message{Role: "user", Content: "Hi"}, captured.Messages[1])
	})

	t.Run("Malformed and empty events are skipped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, sseBody("a"))
			_, _ = fmt.Fprint(w, "data: {not json\n\n")
			_, _ = fmt.Fprint(w, ": keep-alive comment\n\n")
			_, _ = fmt.Fprint(w, `data: {"choices":[{"delta":{}}]}`+"\n\n")
			_, _ = fmt.Fprint(w, sseBody("", "b"))
			_, _ = fmt.Fprint(w, "data: [DONE]\n")
		}))
		defer server.Close()

		stream, err := NewOpenAIProvider(server.URL, "sk-test").Stream(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, drain(t, stream))
		assert.NoError(t, stream.Err())
		assert.False(t, stream.Next(), "a finished stream cannot be restarted")
	})

	t.Run("Structured error body wins over status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`)
		}))
		defer server.Close()

		_, err := NewOpenAIProvider(server.URL, "sk-bad").Stream(ctx, req)
		require.Error(t, err)
		assert.ErrorIs(t, err, app_errors.ErrTransport)
		assert.Contains(t, err.Error(), "Incorrect API key provided")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})

	t.Run("Falls back to the status line", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewOpenAIProvider(server.URL, "sk-test").Stream(ctx, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error: 502 Bad Gateway")
	})

	t.Run("Missing key fails before any request", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
		}))
		defer server.Close()

		_, err := NewOpenAIProvider(server.URL, "").Stream(ctx, req)
		assert.ErrorIs(t, err, app_errors.ErrNotConfigured)
		assert.Zero(t, atomic.LoadInt32(&hits))
	})

	t.Run("Cancelled context surfaces as the stream error", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, sseBody("first"))
			w.(http.Flusher).Flush()
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		cctx, cancel := context.WithCancel(ctx)
		stream, err := NewOpenAIProvider(server.URL, "sk-test").Stream(cctx, req)
		require.NoError(t, err)

		require.True(t, stream.Next())
		assert.Equal(t, "first", stream.Chunk())
		cancel()
		assert.False(t, stream.Next())
		assert.ErrorIs(t, stream.Err(), context.Canceled)
	})
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer server.Close()

	got, err := NewOpenAIProvider(server.URL, "sk-test").Complete(context.Background(), &CompletionRequest{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 1, "no system message when the prompt is empty")
}

func TestOpenAIProvider_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"data":[{"id":"gpt-4o","owned_by":"system"},{"id":"gpt-4o-mini","owned_by":"system"}]}`)
	}))
	defer server.Close()

	models, err := NewOpenAIProvider(server.URL+"/", "sk-test").ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models.Models, 2)
	assert.Equal(t, "gpt-4o", models.Models[0].ID)
}
