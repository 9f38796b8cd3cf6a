package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1:8b"

	startAttempts = 8
	startInterval = time.Second
)

// OllamaLanguageModel talks to a local Ollama server over its REST API.
type OllamaLanguageModel struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *log.Logger

	// collapses concurrent auto-start attempts into one
	startGroup singleflight.Group
}

func NewOllamaLanguageModel(
	baseURL, model string,
	logger *log.Logger,
) *OllamaLanguageModel {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaLanguageModel{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
		logger:  logger,
	}
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Format   string        `json:"format,omitempty"`
	Options  ollamaOptions `json:"options"`
	Stream   bool          `json:"stream"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func (o *OllamaLanguageModel) ChatCompletion(
	ctx context.Context,
	req *ChatCompletionRequest,
) (chan *ChatCompletionResponse, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{
			Role:    RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, req.Messages...)

	apiReq := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumCtx:      req.ContextWindow,
		},
		Stream: req.Stream,
	}
	if req.JSONMode {
		apiReq.Format = "json"
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &BackendError{Op: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		o.baseURL+"/api/chat",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, &BackendError{Op: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &BackendError{Op: "chat", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &BackendError{
			Op: "chat",
			Err: fmt.Errorf(
				"status %d: %s",
				resp.StatusCode,
				string(respBody),
			),
		}
	}

	result := make(chan *ChatCompletionResponse)
	go func() {
		defer close(result)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				result <- &ChatCompletionResponse{
					Err: &BackendError{Op: "decode chunk", Err: err},
				}
				return
			}
			if chunk.Error != "" {
				result <- &ChatCompletionResponse{
					Err: &BackendError{
						Op:  "chat",
						Err: fmt.Errorf("%s", chunk.Error),
					},
				}
				return
			}
			if chunk.Message.Content != "" {
				result <- &ChatCompletionResponse{
					Content: chunk.Message.Content,
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			result <- &ChatCompletionResponse{
				Err: &BackendError{Op: "read stream", Err: err},
			}
		}
	}()

	return result, nil
}

// HealthCheck probes the server's tag listing endpoint.
func (o *OllamaLanguageModel) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		o.baseURL+"/api/tags",
		nil,
	)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// EnsureAvailable launches "ollama serve" when the server is down and polls
// liveness once per second for up to eight attempts. Concurrent callers
// share a single startup attempt; they all wait for the same outcome.
func (o *OllamaLanguageModel) EnsureAvailable(
	ctx context.Context,
	onStatus func(string),
) bool {
	if o.HealthCheck(ctx) {
		return true
	}

	if onStatus != nil {
		onStatus("LLM backend is down. Starting server...")
	}
	o.logger.Info("ollama not running, attempting to start")

	ok, _, _ := o.startGroup.Do("start", func() (interface{}, error) {
		cmd := exec.Command("ollama", "serve")
		if err := cmd.Start(); err != nil {
			o.logger.Error("failed to launch ollama", "error", err)
			return false, nil
		}
		go cmd.Wait()

		for i := 0; i < startAttempts; i++ {
			if onStatus != nil {
				onStatus(fmt.Sprintf(
					"Starting AI engine... (%d/%ds)",
					i+1,
					startAttempts,
				))
			}
			select {
			case <-ctx.Done():
				return false, nil
			case <-time.After(startInterval):
			}
			if o.HealthCheck(ctx) {
				o.logger.Info("ollama started")
				return true, nil
			}
		}
		return false, nil
	})

	return ok.(bool)
}
