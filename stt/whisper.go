package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const DefaultWhisperURL = "http://localhost:8178"

// WhisperClient transcribes audio files through a whisper.cpp server's
// inference endpoint.
type WhisperClient struct {
	baseURL string
	client  *http.Client
}

func NewWhisperClient(baseURL string) *WhisperClient {
	if baseURL == "" {
		baseURL = DefaultWhisperURL
	}
	return &WhisperClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

type whisperResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (w *WhisperClient) Transcribe(
	ctx context.Context,
	path string,
	language string,
) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return Result{}, fmt.Errorf("copy audio data: %w", err)
	}

	writer.WriteField("response_format", "json")
	if language != "" {
		writer.WriteField("language", language)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		w.baseURL+"/inference",
		&body,
	)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf(
			"whisper server returned status %d: %s",
			resp.StatusCode,
			string(respBody),
		)
	}

	var decoded whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode whisper response: %w", err)
	}
	if decoded.Error != "" {
		return Result{}, fmt.Errorf("whisper error: %s", decoded.Error)
	}

	return Result{Text: decoded.Text}, nil
}
