package agent

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"studium/db"
	"studium/subject"
)

const (
	maxVocabularyItems = 20
	maxFlashcards      = 15

	// DefaultQuestionCount is the quiz size requested per analysis run.
	DefaultQuestionCount = 5
)

// Summary is the first stage's output. Level is only populated for
// subjects that report a proficiency level.
type Summary struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics,omitempty"`
	Level   string   `json:"level,omitempty"`
}

// GenerateSummary produces the class summary, and the proficiency level
// where the subject reports one. Returns nil when the model yielded
// nothing usable.
func (a *Agent) GenerateSummary(
	ctx context.Context,
	text string,
	subj subject.Config,
	onProgress func(string),
) *Summary {
	parsed := a.GenerateJSON(
		ctx,
		subj.SummaryPrompt(),
		text,
		subj,
		onProgress,
	)
	if parsed == nil {
		return nil
	}

	summaries := decodeItems[Summary]([]interface{}{parsed})
	if len(summaries) == 0 || summaries[0].Summary == "" {
		return nil
	}

	s := summaries[0]
	if !subj.ReportsLevel {
		s.Level = ""
	}
	return &s
}

// ExtractVocabulary pulls the notable vocabulary or terminology out of the
// transcript. Long transcripts are processed chunk by chunk with
// deduplication by lower-cased word; every non-empty batch is reported
// through onPartial before the stage completes.
func (a *Agent) ExtractVocabulary(
	ctx context.Context,
	text string,
	subj subject.Config,
	onProgress func(string),
	onPartial func([]db.VocabularyItem),
) []db.VocabularyItem {
	preferred := []string{"vocabulary", "words", "terms"}
	prompt := subj.VocabularyPrompt()

	if len(text) > longTextThreshold {
		a.logger.Info(
			"transcript too long, chunking vocabulary extraction",
			"chars", len(text),
		)
		chunks := ChunkText(text, chunkSize, chunkOverlap)
		var all []db.VocabularyItem
		seen := make(map[string]bool)

		for i, chunk := range chunks {
			if onProgress != nil {
				onProgress(fmt.Sprintf("Chunk %d/%d", i+1, len(chunks)))
			}

			parsed := a.GenerateJSON(ctx, prompt, chunk, subj, onProgress)
			items := decodeItems[db.VocabularyItem](
				NormalizeToList(parsed, preferred),
			)

			var fresh []db.VocabularyItem
			for _, item := range items {
				word := strings.ToLower(strings.TrimSpace(item.Word))
				if word == "" || seen[word] {
					continue
				}
				seen[word] = true
				all = append(all, item)
				fresh = append(fresh, item)
			}

			if onPartial != nil && len(fresh) > 0 {
				onPartial(fresh)
			}
		}

		if len(all) > maxVocabularyItems {
			all = all[:maxVocabularyItems]
		}
		return all
	}

	parsed := a.GenerateJSON(ctx, prompt, text, subj, onProgress)
	items := decodeItems[db.VocabularyItem](
		NormalizeToList(parsed, preferred),
	)
	if onPartial != nil && len(items) > 0 {
		onPartial(items)
	}
	return items
}

// GenerateQuestions builds the quiz. On the chunked path the per-chunk
// yields are accumulated, shuffled, and truncated to count.
func (a *Agent) GenerateQuestions(
	ctx context.Context,
	text string,
	subj subject.Config,
	count int,
	onProgress func(string),
	onPartial func([]db.QuizQuestion),
) []db.QuizQuestion {
	preferred := []string{"questions", "quiz"}

	if len(text) > longTextThreshold {
		a.logger.Info(
			"transcript too long, chunking quiz generation",
			"chars", len(text),
		)
		chunks := ChunkText(text, chunkSize, chunkOverlap)
		perChunk := count/len(chunks) + 1

		var all []db.QuizQuestion
		for i, chunk := range chunks {
			if onProgress != nil {
				onProgress(fmt.Sprintf("Chunk %d/%d", i+1, len(chunks)))
			}

			prompt := subj.QuestionPrompt(perChunk)
			parsed := a.GenerateJSON(ctx, prompt, chunk, subj, onProgress)
			items := decodeItems[db.QuizQuestion](
				NormalizeToList(parsed, preferred),
			)
			if len(items) == 0 {
				continue
			}
			all = append(all, items...)
			if onPartial != nil {
				onPartial(items)
			}
		}

		rand.Shuffle(len(all), func(i, j int) {
			all[i], all[j] = all[j], all[i]
		})
		if len(all) > count {
			all = all[:count]
		}
		return all
	}

	parsed := a.GenerateJSON(
		ctx,
		subj.QuestionPrompt(count),
		text,
		subj,
		onProgress,
	)
	items := decodeItems[db.QuizQuestion](
		NormalizeToList(parsed, preferred),
	)
	if onPartial != nil && len(items) > 0 {
		onPartial(items)
	}
	return items
}

// CreateFlashcards builds spaced-repetition cards; chunked yields are
// concatenated and truncated.
func (a *Agent) CreateFlashcards(
	ctx context.Context,
	text string,
	subj subject.Config,
	onProgress func(string),
	onPartial func([]db.Flashcard),
) []db.Flashcard {
	preferred := []string{"flashcards", "cards"}
	prompt := subj.FlashcardPrompt()

	if len(text) > longTextThreshold {
		chunks := ChunkText(text, chunkSize, chunkOverlap)
		var all []db.Flashcard

		for i, chunk := range chunks {
			if onProgress != nil {
				onProgress(fmt.Sprintf("Chunk %d/%d", i+1, len(chunks)))
			}

			parsed := a.GenerateJSON(ctx, prompt, chunk, subj, onProgress)
			items := decodeItems[db.Flashcard](
				NormalizeToList(parsed, preferred),
			)
			if len(items) == 0 {
				continue
			}
			all = append(all, items...)
			if onPartial != nil {
				onPartial(items)
			}
		}

		if len(all) > maxFlashcards {
			all = all[:maxFlashcards]
		}
		return all
	}

	parsed := a.GenerateJSON(ctx, prompt, text, subj, onProgress)
	items := decodeItems[db.Flashcard](
		NormalizeToList(parsed, preferred),
	)
	if onPartial != nil && len(items) > 0 {
		onPartial(items)
	}
	return items
}

// AnalyzeGrammar extracts grammar points from the transcript. Subjects
// without grammar support yield an empty result without touching the LLM.
func (a *Agent) AnalyzeGrammar(
	ctx context.Context,
	text string,
	subj subject.Config,
	onProgress func(string),
) []db.GrammarPoint {
	prompt, ok := subj.GrammarPrompt()
	if !ok {
		a.logger.Info("grammar analysis skipped", "subject", subj.ID)
		return nil
	}

	parsed := a.GenerateJSON(ctx, prompt, text, subj, onProgress)

	switch v := parsed.(type) {
	case []interface{}:
		return decodeItems[db.GrammarPoint](v)
	case map[string]interface{}:
		for _, key := range []string{
			"grammar_points", "points", "analysis", "concepts",
		} {
			if list, ok := v[key].([]interface{}); ok {
				return decodeItems[db.GrammarPoint](list)
			}
		}
		_, hasConcept := v["concept"]
		_, hasExplanation := v["explanation"]
		if hasConcept && hasExplanation {
			return decodeItems[db.GrammarPoint]([]interface{}{v})
		}
	}
	return nil
}
