package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a class id does not exist.
var ErrNotFound = errors.New("class not found")

// SaveClass inserts a new draft class holding the raw transcript and
// returns its id. Summary and level stay unset until analysis runs.
func (db *DB) SaveClass(
	ctx context.Context,
	title, rawText string,
	durationSec int,
	subject, source string,
) (int64, error) {
	query := `
		INSERT INTO classes (created_at, title, raw_text, duration_sec, subject, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := db.exec(
		ctx,
		query,
		time.Now().Format(time.RFC3339),
		title,
		rawText,
		durationSec,
		subject,
		nullable(source),
	)
	if err != nil {
		return 0, fmt.Errorf("save class: %w", err)
	}
	return res.LastInsertId()
}

// UpdateClassSummary sets the summary produced by the first pipeline stage.
// The level column is only touched when level is non-empty, so subjects
// that report no proficiency level keep it unset.
func (db *DB) UpdateClassSummary(
	ctx context.Context,
	classID int64,
	summary, level string,
) error {
	var err error
	if level != "" {
		_, err = db.exec(
			ctx,
			"UPDATE classes SET summary = ?, level = ? WHERE id = ?",
			summary, level, classID,
		)
	} else {
		_, err = db.exec(
			ctx,
			"UPDATE classes SET summary = ? WHERE id = ?",
			summary, classID,
		)
	}
	if err != nil {
		return fmt.Errorf("update class summary: %w", err)
	}
	return nil
}

// SaveVocabulary appends vocabulary rows for a class in one transaction.
func (db *DB) SaveVocabulary(
	ctx context.Context,
	classID int64,
	items []VocabularyItem,
) error {
	return db.insertBatch(ctx, len(items), func(tx *sql.Tx, i int) error {
		v := items[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vocabulary (class_id, word, definition, example, type, level)
			VALUES (?, ?, ?, ?, ?, ?)`,
			classID, v.Word, v.Definition, v.Example, v.Type, v.Level,
		)
		return err
	})
}

// SaveQuestions appends quiz rows for a class in one transaction.
func (db *DB) SaveQuestions(
	ctx context.Context,
	classID int64,
	items []QuizQuestion,
) error {
	return db.insertBatch(ctx, len(items), func(tx *sql.Tx, i int) error {
		q := items[i]
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO questions (class_id, question, options_json, correct_answer, explanation, type)
			VALUES (?, ?, ?, ?, ?, ?)`,
			classID, q.Question, string(optionsJSON),
			q.CorrectAnswer, q.Explanation, q.Type,
		)
		return err
	})
}

// SaveFlashcards appends flashcard rows for a class in one transaction.
// New cards start in box 1 with no review history.
func (db *DB) SaveFlashcards(
	ctx context.Context,
	classID int64,
	items []Flashcard,
) error {
	return db.insertBatch(ctx, len(items), func(tx *sql.Tx, i int) error {
		f := items[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flashcards (class_id, front, back)
			VALUES (?, ?, ?)`,
			classID, f.Front, f.Back,
		)
		return err
	})
}

// SaveGrammarPoints appends grammar rows for a class in one transaction.
func (db *DB) SaveGrammarPoints(
	ctx context.Context,
	classID int64,
	items []GrammarPoint,
) error {
	return db.insertBatch(ctx, len(items), func(tx *sql.Tx, i int) error {
		g := items[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO grammar_points (class_id, concept, explanation, example_in_text, rule, tone_learning)
			VALUES (?, ?, ?, ?, ?, ?)`,
			classID, g.Concept, g.Explanation, g.ExampleInText,
			g.Rule, g.ToneLearning,
		)
		return err
	})
}

func (db *DB) insertBatch(
	ctx context.Context,
	n int,
	insert func(tx *sql.Tx, i int) error,
) error {
	if n == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := insert(tx, i); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetClass fetches one class by id; ErrNotFound when it does not exist.
func (db *DB) GetClass(ctx context.Context, classID int64) (*Class, error) {
	row := db.queryRow(ctx, `
		SELECT id, created_at, title, raw_text, summary, level, duration_sec, subject, source
		FROM classes WHERE id = ?`,
		classID,
	)
	c, err := scanClass(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClass(row rowScanner) (*Class, error) {
	var (
		c         Class
		createdAt string
		summary   sql.NullString
		level     sql.NullString
		source    sql.NullString
	)
	err := row.Scan(
		&c.ID, &createdAt, &c.Title, &c.RawText,
		&summary, &level, &c.DurationSec, &c.Subject, &source,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.Summary = summary.String
	c.Level = level.String
	c.Source = source.String
	return &c, nil
}

// GetRecentClasses lists the newest classes without their transcripts.
func (db *DB) GetRecentClasses(
	ctx context.Context,
	limit int,
) ([]Class, error) {
	rows, err := db.query(ctx, `
		SELECT id, created_at, title, summary, level, duration_sec, subject, source
		FROM classes ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get recent classes: %w", err)
	}
	defer rows.Close()

	var classes []Class
	for rows.Next() {
		var (
			c         Class
			createdAt string
			summary   sql.NullString
			level     sql.NullString
			source    sql.NullString
		)
		err := rows.Scan(
			&c.ID, &createdAt, &c.Title,
			&summary, &level, &c.DurationSec, &c.Subject, &source,
		)
		if err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.Summary = summary.String
		c.Level = level.String
		c.Source = source.String
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// GetClassData loads a class together with every artifact generated for it.
func (db *DB) GetClassData(
	ctx context.Context,
	classID int64,
) (*ClassData, error) {
	info, err := db.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	data := &ClassData{
		Info:       *info,
		Vocabulary: []VocabularyItem{},
		Questions:  []QuizQuestion{},
		Flashcards: []Flashcard{},
		Grammar:    []GrammarPoint{},
	}

	rows, err := db.query(ctx, `
		SELECT id, class_id, word, definition, example, type, level
		FROM vocabulary WHERE class_id = ? ORDER BY id`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("get vocabulary: %w", err)
	}
	for rows.Next() {
		var v VocabularyItem
		var definition, example, typ, level sql.NullString
		err := rows.Scan(
			&v.ID, &v.ClassID, &v.Word,
			&definition, &example, &typ, &level,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}
		v.Definition = definition.String
		v.Example = example.String
		v.Type = typ.String
		v.Level = level.String
		data.Vocabulary = append(data.Vocabulary, v)
	}
	rows.Close()

	rows, err = db.query(ctx, `
		SELECT id, class_id, question, options_json, correct_answer, explanation, type
		FROM questions WHERE class_id = ? ORDER BY id`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	for rows.Next() {
		var q QuizQuestion
		var optionsJSON, answer, explanation, typ sql.NullString
		err := rows.Scan(
			&q.ID, &q.ClassID, &q.Question,
			&optionsJSON, &answer, &explanation, &typ,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if optionsJSON.Valid && optionsJSON.String != "" {
			json.Unmarshal([]byte(optionsJSON.String), &q.Options)
		}
		q.CorrectAnswer = answer.String
		q.Explanation = explanation.String
		q.Type = typ.String
		data.Questions = append(data.Questions, q)
	}
	rows.Close()

	rows, err = db.query(ctx, `
		SELECT id, class_id, front, back, box, next_review_ts, last_review_ts
		FROM flashcards WHERE class_id = ? ORDER BY id`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("get flashcards: %w", err)
	}
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		data.Flashcards = append(data.Flashcards, *f)
	}
	rows.Close()

	rows, err = db.query(ctx, `
		SELECT id, class_id, concept, explanation, example_in_text, rule, tone_learning
		FROM grammar_points WHERE class_id = ? ORDER BY id`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("get grammar points: %w", err)
	}
	for rows.Next() {
		var g GrammarPoint
		var concept, explanation, example, rule, tone sql.NullString
		err := rows.Scan(
			&g.ID, &g.ClassID,
			&concept, &explanation, &example, &rule, &tone,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}
		g.Concept = concept.String
		g.Explanation = explanation.String
		g.ExampleInText = example.String
		g.Rule = rule.String
		g.ToneLearning = tone.String
		data.Grammar = append(data.Grammar, g)
	}
	rows.Close()

	return data, nil
}

// GetDueFlashcards returns flashcards across all classes whose next review
// is due at or before now, plus cards never reviewed.
func (db *DB) GetDueFlashcards(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]Flashcard, error) {
	rows, err := db.query(ctx, `
		SELECT id, class_id, front, back, box, next_review_ts, last_review_ts
		FROM flashcards
		WHERE next_review_ts IS NULL OR next_review_ts <= ?
		ORDER BY box, id LIMIT ?`,
		now.Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get due flashcards: %w", err)
	}
	defer rows.Close()

	var cards []Flashcard
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *f)
	}
	return cards, rows.Err()
}

func scanFlashcard(row rowScanner) (*Flashcard, error) {
	var f Flashcard
	var next, last sql.NullString
	err := row.Scan(&f.ID, &f.ClassID, &f.Front, &f.Back, &f.Box, &next, &last)
	if err != nil {
		return nil, err
	}
	if next.Valid {
		if t, err := time.Parse(time.RFC3339, next.String); err == nil {
			f.NextReviewAt = &t
		}
	}
	if last.Valid {
		if t, err := time.Parse(time.RFC3339, last.String); err == nil {
			f.LastReviewAt = &t
		}
	}
	return &f, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
