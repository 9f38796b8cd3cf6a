package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with a prepared statement cache.
type DB struct {
	*sql.DB
	stmtCache sync.Map
	logger    *log.Logger
}

// Class is one saved session: the raw transcript plus the analysis summary
// once the pipeline's first stage has completed.
type Class struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	RawText     string    `json:"raw_text,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Level       string    `json:"level,omitempty"`
	DurationSec int       `json:"duration_sec"`
	Source      string    `json:"source,omitempty"`
}

type VocabularyItem struct {
	ID         int64  `json:"id,omitempty"`
	ClassID    int64  `json:"class_id,omitempty"`
	Word       string `json:"word"`
	Definition string `json:"definition"`
	Example    string `json:"example,omitempty"`
	Type       string `json:"type,omitempty"`
	Level      string `json:"level,omitempty"`
}

type QuizQuestion struct {
	ID            int64    `json:"id,omitempty"`
	ClassID       int64    `json:"class_id,omitempty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Type          string   `json:"type,omitempty"`
}

// Flashcard carries spaced-repetition scheduling fields. The analysis
// pipeline only ever writes Front and Back; the review fields belong to
// the study UI.
type Flashcard struct {
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	ID           int64      `json:"id,omitempty"`
	ClassID      int64      `json:"class_id,omitempty"`
	Box          int        `json:"box,omitempty"`
	NextReviewAt *time.Time `json:"next_review_at,omitempty"`
	LastReviewAt *time.Time `json:"last_review_at,omitempty"`
}

type GrammarPoint struct {
	ID            int64  `json:"id,omitempty"`
	ClassID       int64  `json:"class_id,omitempty"`
	Concept       string `json:"concept"`
	Explanation   string `json:"explanation"`
	ExampleInText string `json:"example_in_text,omitempty"`
	Rule          string `json:"rule,omitempty"`
	ToneLearning  string `json:"tone_learning,omitempty"`
}

// ClassData is everything stored for one class.
type ClassData struct {
	Info       Class            `json:"info"`
	Vocabulary []VocabularyItem `json:"vocabulary"`
	Questions  []QuizQuestion   `json:"questions"`
	Flashcards []Flashcard      `json:"flashcards"`
	Grammar    []GrammarPoint   `json:"grammar"`
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string, logger *log.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// serialized access keeps concurrent artifact inserts safe
	sqlDB.SetMaxOpenConns(1)

	db := &DB{
		DB:     sqlDB,
		logger: logger,
	}

	if err := Migrate(sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection and clears the statement cache.
func (db *DB) Close() error {
	db.stmtCache.Range(func(_, value interface{}) bool {
		if stmt, ok := value.(*sql.Stmt); ok {
			stmt.Close()
		}
		return true
	})
	return db.DB.Close()
}

func (db *DB) prepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := db.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := db.Prepare(query)
	if err != nil {
		return nil, err
	}

	db.stmtCache.Store(query, stmt)
	return stmt, nil
}

func (db *DB) exec(
	ctx context.Context,
	query string,
	args ...interface{},
) (sql.Result, error) {
	db.logger.Debug("executing SQL statement", "query", query)
	stmt, err := db.prepareStmt(query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (db *DB) queryRow(
	ctx context.Context,
	query string,
	args ...interface{},
) *sql.Row {
	stmt, err := db.prepareStmt(query)
	if err != nil {
		return db.QueryRowContext(ctx, query, args...)
	}
	return stmt.QueryRowContext(ctx, args...)
}

func (db *DB) query(
	ctx context.Context,
	query string,
	args ...interface{},
) (*sql.Rows, error) {
	stmt, err := db.prepareStmt(query)
	if err != nil {
		return db.QueryContext(ctx, query, args...)
	}
	return stmt.QueryContext(ctx, args...)
}
