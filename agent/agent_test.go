package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studium/db"
	"studium/llm"
	"studium/subject"
)

// scriptedModel replays canned responses, one per ChatCompletion call.
// When the script runs out it repeats the last response.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	requests  []*llm.ChatCompletionRequest
}

func (m *scriptedModel) ChatCompletion(
	ctx context.Context,
	req *llm.ChatCompletionRequest,
) (chan *llm.ChatCompletionResponse, error) {
	m.mu.Lock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	content := m.responses[i]
	m.mu.Unlock()

	ch := make(chan *llm.ChatCompletionResponse, 1)
	ch <- &llm.ChatCompletionResponse{Content: content}
	close(ch)
	return ch, nil
}

func (m *scriptedModel) HealthCheck(ctx context.Context) bool { return true }

func (m *scriptedModel) EnsureAvailable(
	ctx context.Context,
	onStatus func(string),
) bool {
	return true
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func newTestAgent(responses ...string) (*Agent, *scriptedModel) {
	model := &scriptedModel{responses: responses}
	return New(model, log.New(io.Discard)), model
}

func TestGenerateJSONFirstAttemptSucceeds(t *testing.T) {
	a, model := newTestAgent(`{"summary": "a class about emails"}`)

	parsed := a.GenerateJSON(
		context.Background(),
		"Summarize: {text}",
		"transcript",
		subject.Lookup("english"),
		nil,
	)

	require.NotNil(t, parsed)
	assert.Equal(t, 1, model.callCount())

	req := model.requests[0]
	assert.True(t, req.JSONMode)
	assert.True(t, req.Stream)
	assert.Equal(t, 0.2, req.Temperature)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "Summarize: transcript", req.Messages[0].Content)
	assert.NotContains(t, req.SystemPrompt, "Previous attempt was empty")
}

func TestGenerateJSONRetriesOnEmpty(t *testing.T) {
	a, model := newTestAgent(`{}`, `[]`, `{"summary": "third time"}`)

	parsed := a.GenerateJSON(
		context.Background(),
		"{text}",
		"transcript",
		subject.Lookup("english"),
		nil,
	)

	require.NotNil(t, parsed)
	require.Equal(t, 3, model.callCount())

	// retries lower the temperature and amend the system prompt
	assert.Equal(t, 0.1, model.requests[1].Temperature)
	assert.Contains(
		t,
		model.requests[1].SystemPrompt,
		"Previous attempt was empty",
	)
	assert.Contains(
		t,
		model.requests[2].SystemPrompt,
		"Previous attempt was empty",
	)
}

func TestGenerateJSONReturnsNilAfterBudget(t *testing.T) {
	a, model := newTestAgent(`{}`)

	parsed := a.GenerateJSON(
		context.Background(),
		"{text}",
		"transcript",
		subject.Lookup("english"),
		nil,
	)

	assert.Nil(t, parsed)
	assert.Equal(t, 3, model.callCount())
}

func TestGenerateJSONInvalidJSONCountsAgainstBudget(t *testing.T) {
	a, model := newTestAgent(
		"this is not json",
		"still not json",
		`{"summary": "recovered"}`,
	)

	parsed := a.GenerateJSON(
		context.Background(),
		"{text}",
		"transcript",
		subject.Lookup("english"),
		nil,
	)

	require.NotNil(t, parsed)
	assert.Equal(t, 3, model.callCount())
}

func TestGenerateSummary(t *testing.T) {
	a, _ := newTestAgent(
		`{"summary": "formal email phrases", "topics": ["emails"], "level": "B2"}`,
	)

	s := a.GenerateSummary(
		context.Background(),
		"transcript",
		subject.Lookup("english"),
		nil,
	)

	require.NotNil(t, s)
	assert.Equal(t, "formal email phrases", s.Summary)
	assert.Equal(t, []string{"emails"}, s.Topics)
	assert.Equal(t, "B2", s.Level)
}

func TestGenerateSummaryDropsLevelWhenSubjectDoesNotReportOne(t *testing.T) {
	a, _ := newTestAgent(
		`{"summary": "indexes and joins", "level": "B2"}`,
	)

	s := a.GenerateSummary(
		context.Background(),
		"transcript",
		subject.Lookup("sgbd"),
		nil,
	)

	require.NotNil(t, s)
	assert.Equal(t, "indexes and joins", s.Summary)
	assert.Empty(t, s.Level)
}

func TestGenerateSummaryNilWhenExhausted(t *testing.T) {
	a, _ := newTestAgent(`{}`)
	s := a.GenerateSummary(
		context.Background(),
		"transcript",
		subject.Lookup("english"),
		nil,
	)
	assert.Nil(t, s)
}

func TestExtractVocabularyShortText(t *testing.T) {
	a, _ := newTestAgent(
		`{"vocabulary": [
			{"word": "fleeting", "definition": "lasting a short time"},
			{"word": "ubiquitous", "definition": "found everywhere"}
		]}`,
	)

	var partials [][]db.VocabularyItem
	items := a.ExtractVocabulary(
		context.Background(),
		"short transcript",
		subject.Lookup("english"),
		nil,
		func(batch []db.VocabularyItem) {
			partials = append(partials, batch)
		},
	)

	require.Len(t, items, 2)
	assert.Equal(t, "fleeting", items[0].Word)
	require.Len(t, partials, 1)
	assert.Len(t, partials[0], 2)
}

func TestExtractVocabularyDeduplicatesAcrossChunks(t *testing.T) {
	// long enough to force the chunked path
	text := strings.Repeat("The lecture continued at length. ", 700)
	require.Greater(t, len(text), longTextThreshold)

	a, model := newTestAgent(
		`{"vocabulary": [
			{"word": "Fleeting", "definition": "first chunk"},
			{"word": "ubiquitous", "definition": "first chunk"}
		]}`,
		`{"vocabulary": [
			{"word": "fleeting ", "definition": "duplicate, different case"},
			{"word": "tenacious", "definition": "second chunk"}
		]}`,
	)

	var partials [][]db.VocabularyItem
	items := a.ExtractVocabulary(
		context.Background(),
		text,
		subject.Lookup("english"),
		nil,
		func(batch []db.VocabularyItem) {
			partials = append(partials, batch)
		},
	)

	words := make([]string, 0, len(items))
	for _, item := range items {
		words = append(words, strings.ToLower(strings.TrimSpace(item.Word)))
	}
	assert.Equal(t, 1, countOf(words, "fleeting"))
	assert.Equal(t, 1, countOf(words, "ubiquitous"))
	assert.Equal(t, 1, countOf(words, "tenacious"))
	assert.GreaterOrEqual(t, model.callCount(), 2)

	// only genuinely new words show up in partial batches
	total := 0
	for _, batch := range partials {
		total += len(batch)
	}
	assert.Equal(t, len(items), total)
}

func countOf(words []string, want string) int {
	n := 0
	for _, w := range words {
		if w == want {
			n++
		}
	}
	return n
}

func TestExtractVocabularyCapsChunkedResults(t *testing.T) {
	text := strings.Repeat("Another sentence for the record. ", 700)
	require.Greater(t, len(text), longTextThreshold)

	// each chunk yields 15 unique words, far past the cap
	var responses []string
	for c := 0; c < 4; c++ {
		items := make([]map[string]string, 15)
		for i := range items {
			items[i] = map[string]string{
				"word":       fmt.Sprintf("word-%d-%d", c, i),
				"definition": "filler",
			}
		}
		raw, err := json.Marshal(map[string]interface{}{"vocabulary": items})
		require.NoError(t, err)
		responses = append(responses, string(raw))
	}

	a, _ := newTestAgent(responses...)
	items := a.ExtractVocabulary(
		context.Background(),
		text,
		subject.Lookup("english"),
		nil,
		nil,
	)
	assert.Len(t, items, maxVocabularyItems)
}

func TestGenerateQuestionsShortText(t *testing.T) {
	a, model := newTestAgent(
		`{"questions": [
			{"question": "Pick one", "options": ["a", "b", "c"], "correct_answer": "a"}
		]}`,
	)

	items := a.GenerateQuestions(
		context.Background(),
		"short transcript",
		subject.Lookup("english"),
		5,
		nil,
		nil,
	)

	require.Len(t, items, 1)
	assert.Equal(t, []string{"a", "b", "c"}, items[0].Options)

	// the requested count is substituted into the prompt
	assert.Contains(t, model.requests[0].Messages[0].Content, "5")
}

func TestGenerateQuestionsChunkedTruncatesToCount(t *testing.T) {
	text := strings.Repeat("Yet another sentence to study. ", 800)
	require.Greater(t, len(text), longTextThreshold)

	a, _ := newTestAgent(
		`{"questions": [
			{"question": "q1", "options": ["a"], "correct_answer": "a"},
			{"question": "q2", "options": ["a"], "correct_answer": "a"},
			{"question": "q3", "options": ["a"], "correct_answer": "a"}
		]}`,
	)

	items := a.GenerateQuestions(
		context.Background(),
		text,
		subject.Lookup("english"),
		5,
		nil,
		nil,
	)
	assert.Len(t, items, 5)
}

func TestCreateFlashcards(t *testing.T) {
	a, _ := newTestAgent(
		`{"flashcards": [
			{"front": "look forward to", "back": "anticipate with pleasure"}
		]}`,
	)

	var partials int
	items := a.CreateFlashcards(
		context.Background(),
		"short transcript",
		subject.Lookup("english"),
		nil,
		func(batch []db.Flashcard) { partials++ },
	)

	require.Len(t, items, 1)
	assert.Equal(t, "look forward to", items[0].Front)
	assert.Equal(t, 1, partials)
}

func TestAnalyzeGrammarSkipsUnsupportedSubject(t *testing.T) {
	a, model := newTestAgent(`{"grammar_points": []}`)

	points := a.AnalyzeGrammar(
		context.Background(),
		"transcript",
		subject.Lookup("sgbd"),
		nil,
	)

	assert.Nil(t, points)
	assert.Equal(t, 0, model.callCount(), "no LLM call should happen")
}

func TestAnalyzeGrammarUnwrapsShapes(t *testing.T) {
	wrapped := `{"grammar_points": [
		{"concept": "present perfect", "explanation": "links past to present"}
	]}`
	bareList := `[
		{"concept": "phrasal verbs", "explanation": "verb plus particle"}
	]`
	single := `{"concept": "conditionals", "explanation": "if clauses"}`

	for _, raw := range []string{wrapped, bareList, single} {
		a, _ := newTestAgent(raw)
		points := a.AnalyzeGrammar(
			context.Background(),
			"transcript",
			subject.Lookup("english"),
			nil,
		)
		require.Len(t, points, 1, raw)
		assert.NotEmpty(t, points[0].Concept, raw)
		assert.NotEmpty(t, points[0].Explanation, raw)
	}
}

func TestChatSubstitutesTranscriptAndKeepsHistory(t *testing.T) {
	a, model := newTestAgent("Happy to help!")

	reply, err := a.Chat(
		context.Background(),
		"the transcript body",
		"Can you explain that phrase?",
		subject.Lookup("english"),
		[]llm.Message{
			{Role: llm.RoleUser, Content: "earlier question"},
			{Role: llm.RoleAssistant, Content: "earlier answer"},
		},
	)

	require.NoError(t, err)
	assert.Equal(t, "Happy to help!", reply)

	req := model.requests[0]
	assert.Contains(t, req.SystemPrompt, "the transcript body")
	assert.NotContains(t, req.SystemPrompt, "{text}")
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "Can you explain that phrase?", req.Messages[2].Content)
	assert.False(t, req.JSONMode)
}
