package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	SystemPrompt  string
	Messages      []Message
	JSONMode      bool
	Temperature   float64
	ContextWindow int
	Stream        bool
}

func (r *ChatCompletionRequest) WithUserMessage(
	message string,
) *ChatCompletionRequest {
	r.Messages = append(r.Messages, Message{
		Role:    RoleUser,
		Content: message,
	})
	return r
}

// ChatCompletionResponse is one streamed delta, or a terminal error.
type ChatCompletionResponse struct {
	Err     error
	Content string
}

// LanguageModel is the inference backend boundary. ChatCompletion streams
// content deltas over the returned channel and closes it when the response
// is complete; a request error is reported either as the returned error or
// as the final message on the channel.
type LanguageModel interface {
	ChatCompletion(
		ctx context.Context,
		req *ChatCompletionRequest,
	) (chan *ChatCompletionResponse, error)

	// HealthCheck probes backend liveness without side effects.
	HealthCheck(ctx context.Context) bool

	// EnsureAvailable checks liveness and, if the backend is down, tries
	// to launch it, polling until it comes up or the budget runs out.
	// Status text for each attempt is reported through onStatus. All
	// failures reduce to a false return; it never returns an error.
	EnsureAvailable(ctx context.Context, onStatus func(string)) bool
}

// Complete issues one completion request and accumulates the streamed
// content into a single string. When onToken is non-nil it receives each
// incremental delta as it arrives.
func Complete(
	ctx context.Context,
	model LanguageModel,
	req *ChatCompletionRequest,
	onToken func(string),
) (string, error) {
	stream, err := model.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for resp := range stream {
		if resp.Err != nil {
			return content.String(), resp.Err
		}
		content.WriteString(resp.Content)
		if onToken != nil {
			onToken(resp.Content)
		}
	}
	return content.String(), nil
}

// BackendError wraps a network or protocol failure talking to the
// inference backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("llm backend: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
