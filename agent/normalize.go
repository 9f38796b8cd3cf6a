package agent

import (
	"sort"
	"strings"
)

// Wrapper keys models commonly use around list results, tried in order
// after any caller-preferred keys.
var commonListKeys = []string{
	"vocabulary", "words", "terms", "items", "questions",
	"flashcards", "cards", "list", "results",
}

// Keys whose presence marks a map as a single item of an expected shape
// rather than a wrapper around a list.
var singleItemKeys = []string{"word", "question", "front"}

// IsEmpty classifies a decoded JSON value as carrying no usable content:
// nil, an empty map, an empty slice, or a map whose values contain no
// non-empty scalar and no non-empty nested collection.
func IsEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		if len(val) == 0 {
			return true
		}
		hasScalar := false
		hasContainer := false
		for _, entry := range val {
			switch e := entry.(type) {
			case string:
				if e != "" {
					hasScalar = true
				}
			case float64:
				if e != 0 {
					hasScalar = true
				}
			case bool:
				if e {
					hasScalar = true
				}
			case []interface{}:
				if len(e) > 0 {
					hasContainer = true
				}
			case map[string]interface{}:
				if len(e) > 0 {
					hasContainer = true
				}
			}
		}
		return !hasScalar && !hasContainer
	default:
		return false
	}
}

// NormalizeToList coerces an LLM response of unpredictable shape into a
// flat list. Strategies, in order: pass lists through; unwrap a
// list-valued entry under a preferred or common wrapper key; wrap a map
// that looks like a single item; fall back to the first non-empty
// list-valued entry; otherwise an empty list. It never fails.
func NormalizeToList(
	v interface{},
	preferredKeys []string,
) []interface{} {
	switch val := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return val
	case map[string]interface{}:
		keys := append(
			append([]string{}, preferredKeys...),
			commonListKeys...,
		)
		for _, key := range keys {
			if list, ok := val[key].([]interface{}); ok {
				return list
			}
		}

		for _, key := range singleItemKeys {
			if _, ok := val[key]; ok {
				return []interface{}{val}
			}
		}

		// sorted for determinism; Go map iteration order is random
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if list, ok := val[name].([]interface{}); ok && len(list) > 0 {
				return list
			}
		}
	}
	return []interface{}{}
}

// ChunkText splits text into overlapping chunks, preferring to cut at a
// sentence boundary when a period exists in the last fifth of a chunk.
func ChunkText(text string, chunkSize, overlap int) []string {
	var chunks []string
	start := 0
	textLen := len(text)

	for start < textLen {
		end := start + chunkSize
		if end >= textLen {
			chunks = append(chunks, text[start:])
			break
		}

		lastPeriod := strings.LastIndex(text[start:end], ".")
		if lastPeriod != -1 && lastPeriod > chunkSize*8/10 {
			end = start + lastPeriod + 1
		}

		chunks = append(chunks, text[start:end])
		start = end - overlap
	}

	return chunks
}
