package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"studium/llm"
	"studium/subject"
)

const (
	// transcripts longer than this go through the chunked map path
	longTextThreshold = 20000
	chunkSize         = 8000
	chunkOverlap      = 500

	contextWindow = 24576

	firstAttemptTemp = 0.2
	retryTemp        = 0.1
	maxAttempts      = 3

	// progress callback cadence while streaming, in characters
	progressEvery = 50
)

// Agent turns raw transcript text into one structured study artifact at a
// time, absorbing the LLM's JSON-shape inconsistencies along the way.
type Agent struct {
	model  llm.LanguageModel
	logger *log.Logger
}

func New(model llm.LanguageModel, logger *log.Logger) *Agent {
	return &Agent{
		model:  model,
		logger: logger,
	}
}

// GenerateJSON substitutes the transcript into the prompt template, runs a
// streaming completion in JSON mode, and parses the result. Empty or
// unparseable responses are retried up to two times with a lower
// temperature and an amended system prompt; when the budget is exhausted
// it returns nil. Callers must treat nil as "no data available".
func (a *Agent) GenerateJSON(
	ctx context.Context,
	prompt, text string,
	subj subject.Config,
	onProgress func(string),
) interface{} {
	fullPrompt := strings.ReplaceAll(prompt, "{text}", text)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		temp := firstAttemptTemp
		if attempt > 0 {
			temp = retryTemp
		}

		systemPrompt := subj.SystemRole() +
			" You output strictly valid JSON."
		if attempt > 0 {
			systemPrompt += " IMPORTANT: Previous attempt was empty." +
				" You MUST generate content."
		}

		a.logger.Debug(
			"sending prompt to LLM",
			"subject", subj.ID,
			"attempt", attempt+1,
		)

		req := &llm.ChatCompletionRequest{
			SystemPrompt:  systemPrompt,
			JSONMode:      true,
			Temperature:   temp,
			ContextWindow: contextWindow,
			Stream:        true,
		}
		req.WithUserMessage(fullPrompt)

		received := 0
		lastUpdate := 0
		content, err := llm.Complete(ctx, a.model, req, func(delta string) {
			received += len(delta)
			if onProgress != nil && received-lastUpdate > progressEvery {
				onProgress(fmt.Sprintf("Generating... (%d chars)", received))
				lastUpdate = received
			}
		})
		if err != nil {
			a.logger.Error(
				"LLM completion failed",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		var parsed interface{}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			a.logger.Warn(
				"response was not valid JSON",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if IsEmpty(parsed) {
			a.logger.Warn(
				"attempt returned empty JSON, retrying",
				"attempt", attempt+1,
			)
			continue
		}

		return parsed
	}

	return nil
}

// Chat holds a roleplay conversation grounded in the class transcript.
// Single turn or history-aware; no retries, no JSON parsing.
func (a *Agent) Chat(
	ctx context.Context,
	transcript, question string,
	subj subject.Config,
	history []llm.Message,
) (string, error) {
	systemPrompt := strings.ReplaceAll(
		subj.RoleplayPrompt(),
		"{text}",
		transcript,
	)

	req := &llm.ChatCompletionRequest{
		SystemPrompt:  systemPrompt,
		Messages:      append([]llm.Message{}, history...),
		Temperature:   0.7,
		ContextWindow: contextWindow,
	}
	req.WithUserMessage(question)

	reply, err := llm.Complete(ctx, a.model, req, nil)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return reply, nil
}

// decodeItems converts normalized generic items into a typed slice via a
// JSON round trip, skipping entries that do not fit the target shape.
func decodeItems[T any](items []interface{}) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var typed T
		if err := json.Unmarshal(raw, &typed); err != nil {
			continue
		}
		out = append(out, typed)
	}
	return out
}
