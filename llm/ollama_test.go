package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(
	t *testing.T,
	handler http.HandlerFunc,
) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func writeChunks(t *testing.T, w http.ResponseWriter, chunks ...ollamaChatResponse) {
	t.Helper()
	enc := json.NewEncoder(w)
	for _, chunk := range chunks {
		enc.Encode(chunk)
	}
}

func TestChatCompletionStreamsDeltas(t *testing.T) {
	var captured ollamaChatRequest
	server := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeChunks(t, w,
			ollamaChatResponse{Message: Message{Content: `{"summary":`}},
			ollamaChatResponse{Message: Message{Content: ` "hi"}`}},
			ollamaChatResponse{Done: true},
		)
	})

	model := NewOllamaLanguageModel(server.URL, "test-model", log.New(io.Discard))
	req := &ChatCompletionRequest{
		SystemPrompt:  "You are a teacher.",
		JSONMode:      true,
		Temperature:   0.2,
		ContextWindow: 24576,
		Stream:        true,
	}
	req.WithUserMessage("analyze this")

	var deltas []string
	content, err := Complete(
		context.Background(),
		model,
		req,
		func(delta string) { deltas = append(deltas, delta) },
	)

	require.NoError(t, err)
	assert.Equal(t, `{"summary": "hi"}`, content)
	assert.Equal(t, []string{`{"summary":`, ` "hi"}`}, deltas)

	// request shape on the wire
	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, "json", captured.Format)
	assert.Equal(t, 0.2, captured.Options.Temperature)
	assert.Equal(t, 24576, captured.Options.NumCtx)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, RoleSystem, captured.Messages[0].Role)
	assert.Equal(t, "You are a teacher.", captured.Messages[0].Content)
	assert.Equal(t, RoleUser, captured.Messages[1].Role)
}

func TestChatCompletionOmitsFormatWithoutJSONMode(t *testing.T) {
	var captured ollamaChatRequest
	server := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeChunks(t, w,
			ollamaChatResponse{Message: Message{Content: "plain text"}},
			ollamaChatResponse{Done: true},
		)
	})

	model := NewOllamaLanguageModel(server.URL, "test-model", log.New(io.Discard))
	req := (&ChatCompletionRequest{Temperature: 0.7}).
		WithUserMessage("hello")

	content, err := Complete(context.Background(), model, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", content)
	assert.Empty(t, captured.Format)
}

func TestChatCompletionServerError(t *testing.T) {
	server := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	model := NewOllamaLanguageModel(server.URL, "test-model", log.New(io.Discard))
	req := (&ChatCompletionRequest{}).WithUserMessage("hello")

	_, err := model.ChatCompletion(context.Background(), req)
	require.Error(t, err)

	var backendErr *BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Contains(t, backendErr.Error(), "404")
}

func TestChatCompletionStreamError(t *testing.T) {
	server := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(t, w,
			ollamaChatResponse{Message: Message{Content: "partial"}},
			ollamaChatResponse{Error: "model crashed"},
		)
	})

	model := NewOllamaLanguageModel(server.URL, "test-model", log.New(io.Discard))
	req := (&ChatCompletionRequest{}).WithUserMessage("hello")

	content, err := Complete(context.Background(), model, req, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
	assert.Equal(t, "partial", content)
}

func TestChatCompletionConnectionRefused(t *testing.T) {
	model := NewOllamaLanguageModel(
		"http://127.0.0.1:1", "test-model", log.New(io.Discard),
	)
	req := (&ChatCompletionRequest{}).WithUserMessage("hello")

	_, err := model.ChatCompletion(context.Background(), req)
	var backendErr *BackendError
	require.True(t, errors.As(err, &backendErr))
}

func TestHealthCheck(t *testing.T) {
	healthy := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models": []}`)
	})
	model := NewOllamaLanguageModel(healthy.URL, "m", log.New(io.Discard))
	assert.True(t, model.HealthCheck(context.Background()))

	broken := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	model = NewOllamaLanguageModel(broken.URL, "m", log.New(io.Discard))
	assert.False(t, model.HealthCheck(context.Background()))

	model = NewOllamaLanguageModel("http://127.0.0.1:1", "m", log.New(io.Discard))
	assert.False(t, model.HealthCheck(context.Background()))
}

func TestEnsureAvailableWhenAlreadyHealthy(t *testing.T) {
	server := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models": []}`)
	})
	model := NewOllamaLanguageModel(server.URL, "m", log.New(io.Discard))

	var statuses []string
	ok := model.EnsureAvailable(context.Background(), func(s string) {
		statuses = append(statuses, s)
	})
	assert.True(t, ok)
	assert.Empty(t, statuses, "no startup chatter when already up")
}

func TestDefaultsApplied(t *testing.T) {
	model := NewOllamaLanguageModel("", "", log.New(io.Discard))
	assert.Equal(t, DefaultOllamaURL, model.baseURL)
	assert.Equal(t, DefaultOllamaModel, model.model)
}

func TestBackendErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &BackendError{Op: "chat", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "chat")
}
