package agent

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		empty bool
	}{
		{"null", `null`, true},
		{"empty object", `{}`, true},
		{"empty array", `[]`, true},
		{"object of empty strings", `{"summary": "", "level": ""}`, true},
		{"object with empty list", `{"items": []}`, true},
		{"object with empty nested map", `{"data": {}}`, true},
		{"non-empty string field", `{"summary": "x"}`, false},
		{"non-empty list field", `{"items": [1]}`, false},
		{"non-zero number", `{"count": 3}`, false},
		{"true flag", `{"ok": true}`, false},
		{"non-empty array", `[{"word": "hi"}]`, false},
		{"bare string", `"hello"`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.empty, IsEmpty(decode(t, tc.raw)))
		})
	}
}

func TestNormalizeToListPassesListsThrough(t *testing.T) {
	v := decode(t, `[{"word": "ubiquitous"}, {"word": "fleeting"}]`)
	out := NormalizeToList(v, nil)
	assert.Len(t, out, 2)
}

func TestNormalizeToListUnwrapsPreferredKey(t *testing.T) {
	v := decode(t, `{"vocabulary": [{"word": "ubiquitous"}]}`)
	out := NormalizeToList(v, []string{"vocabulary"})
	require.Len(t, out, 1)

	item, ok := out[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ubiquitous", item["word"])
}

func TestNormalizeToListUnwrapsCommonKeys(t *testing.T) {
	for _, key := range []string{"words", "items", "questions", "results"} {
		v := decode(t, `{"`+key+`": [{"word": "x"}]}`)
		assert.Len(t, NormalizeToList(v, nil), 1, key)
	}
}

func TestNormalizeToListWrapsSingleItem(t *testing.T) {
	v := decode(t, `{"word": "ubiquitous", "definition": "everywhere"}`)
	out := NormalizeToList(v, nil)
	require.Len(t, out, 1)
	assert.Equal(t, v, out[0])

	v = decode(t, `{"question": "What?", "options": ["a", "b"]}`)
	assert.Len(t, NormalizeToList(v, nil), 1)

	v = decode(t, `{"front": "hello", "back": "world"}`)
	assert.Len(t, NormalizeToList(v, nil), 1)
}

func TestNormalizeToListFallsBackToAnyListValue(t *testing.T) {
	v := decode(t, `{"entries": [{"word": "a"}], "note": "extra"}`)
	out := NormalizeToList(v, nil)
	assert.Len(t, out, 1)
}

func TestNormalizeToListNeverFails(t *testing.T) {
	for _, raw := range []string{
		`null`, `{}`, `"a string"`, `42`, `true`,
		`{"note": "no list here"}`,
	} {
		out := NormalizeToList(decode(t, raw), []string{"vocabulary"})
		require.NotNil(t, out, raw)
		assert.Empty(t, out, raw)
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("short text", 8000, 500)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunkTextCoversWholeInput(t *testing.T) {
	text := strings.Repeat("abcdefghij", 2500)
	chunks := ChunkText(text, 8000, 500)
	require.Greater(t, len(chunks), 1)

	// every chunk after the first overlaps the previous one
	assert.True(t, strings.HasPrefix(text, chunks[0]))
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
	for _, chunk := range chunks {
		assert.Contains(t, text, chunk)
	}

	covered := len(chunks[0])
	for i := 1; i < len(chunks); i++ {
		covered += len(chunks[i]) - 500
	}
	assert.Equal(t, len(text), covered)
}

func TestChunkTextPrefersSentenceBoundary(t *testing.T) {
	sentence := strings.Repeat("x", 99) + "."
	text := strings.Repeat(sentence, 100)
	chunks := ChunkText(text, 1000, 100)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks[:len(chunks)-1] {
		assert.True(
			t,
			strings.HasSuffix(chunk, "."),
			"chunk should end at a sentence boundary",
		)
	}
}

func TestChunkTextIgnoresEarlyPeriod(t *testing.T) {
	// the only period sits in the first fifth of the chunk, so the cut
	// happens at the size limit instead
	text := strings.Repeat("y", 100) + "." + strings.Repeat("z", 2000)
	chunks := ChunkText(text, 1000, 100)
	require.Greater(t, len(chunks), 1)
	assert.Len(t, chunks[0], 1000)
}
