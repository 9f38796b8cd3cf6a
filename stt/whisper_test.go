package stt

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "class.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake audio bytes"), 0o644))
	return path
}

func TestWhisperTranscribe(t *testing.T) {
	var gotPath, gotFilename, gotLanguage, gotFormat string
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, r.ParseMultipartForm(1<<20))

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			file.Close()
			gotFilename = header.Filename
			gotLanguage = r.FormValue("language")
			gotFormat = r.FormValue("response_format")

			fmt.Fprint(w, `{"text": "I look forward to hearing from you."}`)
		},
	))
	defer server.Close()

	client := NewWhisperClient(server.URL)
	result, err := client.Transcribe(
		context.Background(),
		writeAudioFile(t),
		"en",
	)

	require.NoError(t, err)
	assert.Equal(t, "I look forward to hearing from you.", result.Text)
	assert.Equal(t, "/inference", gotPath)
	assert.Equal(t, "class.mp3", gotFilename)
	assert.Equal(t, "en", gotLanguage)
	assert.Equal(t, "json", gotFormat)
}

func TestWhisperTranscribeOmitsEmptyLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, ok := r.MultipartForm.Value["language"]
			assert.False(t, ok)
			fmt.Fprint(w, `{"text": "hello"}`)
		},
	))
	defer server.Close()

	client := NewWhisperClient(server.URL)
	_, err := client.Transcribe(context.Background(), writeAudioFile(t), "")
	require.NoError(t, err)
}

func TestWhisperTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no model loaded", http.StatusInternalServerError)
		},
	))
	defer server.Close()

	client := NewWhisperClient(server.URL)
	_, err := client.Transcribe(context.Background(), writeAudioFile(t), "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestWhisperTranscribeErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"text": "", "error": "unsupported codec"}`)
		},
	))
	defer server.Close()

	client := NewWhisperClient(server.URL)
	_, err := client.Transcribe(context.Background(), writeAudioFile(t), "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported codec")
}

func TestWhisperTranscribeMissingFile(t *testing.T) {
	client := NewWhisperClient("http://127.0.0.1:1")
	_, err := client.Transcribe(
		context.Background(),
		filepath.Join(t.TempDir(), "missing.mp3"),
		"en",
	)
	require.Error(t, err)
}
