package stt

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiTranscriber transcribes audio files with a Gemini model, as a
// fallback when no local whisper server is running. The file is uploaded
// to the Files API and referenced from the prompt.
type GeminiTranscriber struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiTranscriber(
	ctx context.Context,
	apiKey string,
) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-1.5-pro")
	model.GenerationConfig.SetMaxOutputTokens(8192)
	model.GenerationConfig.SetTemperature(0.1)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{
			genai.Text(
				"Transcribe this class recording as accurately as " +
					"possible, with good grammar and punctuation. " +
					"Output only the transcript text.",
			),
		},
	}

	return &GeminiTranscriber{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiTranscriber) Close() error {
	return g.client.Close()
}

func (g *GeminiTranscriber) Transcribe(
	ctx context.Context,
	path string,
	language string,
) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	uploaded, err := g.client.UploadFile(
		ctx,
		"",
		file,
		&genai.UploadFileOptions{
			MIMEType: mimeTypeFor(path),
		},
	)
	if err != nil {
		return Result{}, fmt.Errorf("upload audio file: %w", err)
	}
	defer g.client.DeleteFile(ctx, uploaded.Name)

	prompt := []genai.Part{
		genai.FileData{URI: uploaded.URI, MIMEType: uploaded.MIMEType},
	}
	if language != "" {
		prompt = append(prompt, genai.Text(
			"The recording is in language: "+language,
		))
	}

	stream := g.model.GenerateContentStream(ctx, prompt...)

	var text strings.Builder
	for {
		resp, err := stream.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("stream transcription: %w", err)
		}
		text.WriteString(responseText(resp))
	}

	return Result{Text: text.String()}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}

func mimeTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "audio/mpeg"
}
