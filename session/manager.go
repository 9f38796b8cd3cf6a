package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"studium/agent"
	"studium/db"
	"studium/llm"
	"studium/subject"
)

// Store is the slice of the session store the orchestrator writes to.
type Store interface {
	SaveClass(
		ctx context.Context,
		title, rawText string,
		durationSec int,
		subject, source string,
	) (int64, error)
	UpdateClassSummary(
		ctx context.Context,
		classID int64,
		summary, level string,
	) error
	SaveVocabulary(
		ctx context.Context,
		classID int64,
		items []db.VocabularyItem,
	) error
	SaveQuestions(
		ctx context.Context,
		classID int64,
		items []db.QuizQuestion,
	) error
	SaveFlashcards(
		ctx context.Context,
		classID int64,
		items []db.Flashcard,
	) error
	SaveGrammarPoints(
		ctx context.Context,
		classID int64,
		items []db.GrammarPoint,
	) error
	GetClass(ctx context.Context, classID int64) (*db.Class, error)
}

// Analyzer is the per-stage artifact generator the orchestrator drives.
type Analyzer interface {
	GenerateSummary(
		ctx context.Context,
		text string,
		subj subject.Config,
		onProgress func(string),
	) *agent.Summary
	ExtractVocabulary(
		ctx context.Context,
		text string,
		subj subject.Config,
		onProgress func(string),
		onPartial func([]db.VocabularyItem),
	) []db.VocabularyItem
	GenerateQuestions(
		ctx context.Context,
		text string,
		subj subject.Config,
		count int,
		onProgress func(string),
		onPartial func([]db.QuizQuestion),
	) []db.QuizQuestion
	CreateFlashcards(
		ctx context.Context,
		text string,
		subj subject.Config,
		onProgress func(string),
		onPartial func([]db.Flashcard),
	) []db.Flashcard
	AnalyzeGrammar(
		ctx context.Context,
		text string,
		subj subject.Config,
		onProgress func(string),
	) []db.GrammarPoint
}

// Manager drives the multi-stage analysis pipeline for sessions: it
// persists drafts, runs each stage in a background goroutine, stores every
// artifact batch the moment it exists, and streams progress to a
// caller-supplied observer.
type Manager struct {
	store         Store
	model         llm.LanguageModel
	agent         Analyzer
	logger        *log.Logger
	questionCount int
}

func NewManager(
	store Store,
	model llm.LanguageModel,
	analyzer Analyzer,
	logger *log.Logger,
) *Manager {
	return &Manager{
		store:         store,
		model:         model,
		agent:         analyzer,
		logger:        logger,
		questionCount: agent.DefaultQuestionCount,
	}
}

// SaveSession persists a draft session and starts analysis on it in the
// background, returning the new class id immediately.
func (m *Manager) SaveSession(
	ctx context.Context,
	rawText, title string,
	durationSec int,
	subjectID, source string,
	obs Observer,
) (int64, error) {
	classID, err := m.CreateDraft(
		ctx,
		rawText,
		title,
		durationSec,
		subjectID,
		source,
	)
	if err != nil {
		return 0, err
	}

	go m.analyze(classID, rawText, subjectID, obs)
	return classID, nil
}

// CreateDraft persists the raw transcript without starting analysis.
func (m *Manager) CreateDraft(
	ctx context.Context,
	rawText, title string,
	durationSec int,
	subjectID, source string,
) (int64, error) {
	if strings.TrimSpace(rawText) == "" {
		return 0, fmt.Errorf("empty transcript")
	}
	if title == "" {
		title = "Class " + time.Now().Format("2006-01-02 15:04")
	}
	if !subject.Known(subjectID) {
		subjectID = subject.DefaultID
	}

	classID, err := m.store.SaveClass(
		ctx,
		title,
		rawText,
		durationSec,
		subjectID,
		source,
	)
	if err != nil {
		return 0, fmt.Errorf("create draft session: %w", err)
	}

	m.logger.Info(
		"draft session saved",
		"class_id", classID,
		"subject", subjectID,
		"chars", len(rawText),
	)
	return classID, nil
}

// StartAnalysis re-reads a stored session and runs the pipeline on it in
// the background. Re-running analysis appends new artifact rows alongside
// any existing ones.
func (m *Manager) StartAnalysis(
	ctx context.Context,
	classID int64,
	obs Observer,
) error {
	class, err := m.store.GetClass(ctx, classID)
	if err != nil {
		return fmt.Errorf("load session %d: %w", classID, err)
	}

	go m.analyze(class.ID, class.RawText, class.Subject, obs)
	return nil
}

// analyze is the pipeline body. It runs detached from the caller's
// context: once started, a run proceeds to completion; per-stage failures
// are absorbed, only an unreachable backend aborts the run.
func (m *Manager) analyze(
	classID int64,
	text, subjectID string,
	obs Observer,
) {
	ctx := context.Background()
	subj := subject.Lookup(subjectID)
	totalSteps := subj.TotalSteps()
	completed := 0

	emit := func(message, dataType string) {
		if obs == nil {
			return
		}
		obs(Progress{
			Message:    message,
			Percent:    float64(completed) / float64(totalSteps),
			Step:       completed,
			TotalSteps: totalSteps,
			DataType:   dataType,
		})
	}

	sub := func(stageMsg string) func(string) {
		return func(detail string) {
			emit(stageMsg+" "+detail, "")
		}
	}

	emit("Starting analysis...", "")

	ok := m.model.EnsureAvailable(ctx, func(status string) {
		emit(status, "")
	})
	if !ok {
		m.logger.Error("LLM backend unavailable", "class_id", classID)
		if obs != nil {
			obs(Progress{
				Message:    "AI engine is not available. Analysis aborted.",
				TotalSteps: totalSteps,
				Failed:     true,
			})
		}
		return
	}

	// 1. Summary (and level, where the subject reports one)
	msg := "Generating summary..."
	emit(msg, "")
	m.runStage(classID, "summary", func() {
		summary := m.agent.GenerateSummary(ctx, text, subj, sub(msg))
		if summary == nil {
			return
		}
		err := m.store.UpdateClassSummary(
			ctx,
			classID,
			summary.Summary,
			summary.Level,
		)
		if err != nil {
			m.logger.Error(
				"persist summary",
				"class_id", classID,
				"error", err,
			)
			return
		}
		emit(msg, "summary")
	})
	completed++

	// 2. Vocabulary
	msg = fmt.Sprintf("Analyzing %s...", strings.ToLower(subj.VocabLabel))
	emit(msg, "")
	m.runStage(classID, "vocabulary", func() {
		persisted := false
		items := m.agent.ExtractVocabulary(
			ctx, text, subj, sub(msg),
			func(batch []db.VocabularyItem) {
				if m.persistVocabulary(ctx, classID, batch) {
					persisted = true
					emit(msg, "vocabulary")
				}
			},
		)
		if !persisted && m.persistVocabulary(ctx, classID, items) {
			emit(msg, "vocabulary")
		}
	})
	completed++

	// 3. Quiz
	msg = "Designing the quiz..."
	emit(msg, "")
	m.runStage(classID, "questions", func() {
		persisted := false
		items := m.agent.GenerateQuestions(
			ctx, text, subj, m.questionCount, sub(msg),
			func(batch []db.QuizQuestion) {
				if m.persistQuestions(ctx, classID, batch) {
					persisted = true
					emit(msg, "questions")
				}
			},
		)
		if !persisted && m.persistQuestions(ctx, classID, items) {
			emit(msg, "questions")
		}
	})
	completed++

	// 4. Flashcards
	msg = "Creating review material..."
	emit(msg, "")
	m.runStage(classID, "flashcards", func() {
		persisted := false
		items := m.agent.CreateFlashcards(
			ctx, text, subj, sub(msg),
			func(batch []db.Flashcard) {
				if m.persistFlashcards(ctx, classID, batch) {
					persisted = true
					emit(msg, "flashcards")
				}
			},
		)
		if !persisted && m.persistFlashcards(ctx, classID, items) {
			emit(msg, "flashcards")
		}
	})
	completed++

	// 5. Grammar, only for subjects that support it
	if subj.SupportsGrammar {
		msg = "Analyzing grammar and register..."
		emit(msg, "")
		m.runStage(classID, "grammar", func() {
			points := m.agent.AnalyzeGrammar(ctx, text, subj, sub(msg))
			if len(points) == 0 {
				return
			}
			err := m.store.SaveGrammarPoints(ctx, classID, points)
			if err != nil {
				m.logger.Error(
					"persist grammar points",
					"class_id", classID,
					"error", err,
				)
				return
			}
			emit(msg, "grammar")
		})
		completed++
	}

	emit("Analysis complete! 🎉", "")
}

// runStage runs one stage, absorbing any panic so a failing stage never
// takes down the rest of the run.
func (m *Manager) runStage(classID int64, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(
				"stage failed",
				"stage", name,
				"class_id", classID,
				"error", r,
			)
		}
	}()
	fn()
}

func (m *Manager) persistVocabulary(
	ctx context.Context,
	classID int64,
	items []db.VocabularyItem,
) bool {
	if len(items) == 0 {
		return false
	}
	if err := m.store.SaveVocabulary(ctx, classID, items); err != nil {
		m.logger.Error(
			"persist vocabulary",
			"class_id", classID,
			"count", len(items),
			"error", err,
		)
		return false
	}
	return true
}

func (m *Manager) persistQuestions(
	ctx context.Context,
	classID int64,
	items []db.QuizQuestion,
) bool {
	if len(items) == 0 {
		return false
	}
	if err := m.store.SaveQuestions(ctx, classID, items); err != nil {
		m.logger.Error(
			"persist questions",
			"class_id", classID,
			"count", len(items),
			"error", err,
		)
		return false
	}
	return true
}

func (m *Manager) persistFlashcards(
	ctx context.Context,
	classID int64,
	items []db.Flashcard,
) bool {
	if len(items) == 0 {
		return false
	}
	if err := m.store.SaveFlashcards(ctx, classID, items); err != nil {
		m.logger.Error(
			"persist flashcards",
			"class_id", classID,
			"count", len(items),
			"error", err,
		)
		return false
	}
	return true
}
