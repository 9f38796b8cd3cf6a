package db

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
)

type Migration struct {
	ID          string
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

var migrations = []Migration{
	{
		ID:          "001_initial_schema",
		Description: "Create initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS classes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					created_at TEXT NOT NULL,
					title TEXT NOT NULL,
					raw_text TEXT NOT NULL,
					summary TEXT,
					level TEXT,
					duration_sec INTEGER NOT NULL DEFAULT 0,
					subject TEXT NOT NULL DEFAULT 'english',
					source TEXT
				);

				CREATE TABLE IF NOT EXISTS vocabulary (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					class_id INTEGER NOT NULL,
					word TEXT NOT NULL,
					definition TEXT,
					example TEXT,
					type TEXT,
					level TEXT,
					FOREIGN KEY (class_id) REFERENCES classes(id)
				);

				CREATE TABLE IF NOT EXISTS questions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					class_id INTEGER NOT NULL,
					question TEXT NOT NULL,
					options_json TEXT,
					correct_answer TEXT,
					explanation TEXT,
					type TEXT,
					FOREIGN KEY (class_id) REFERENCES classes(id)
				);

				CREATE TABLE IF NOT EXISTS flashcards (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					class_id INTEGER NOT NULL,
					front TEXT NOT NULL,
					back TEXT NOT NULL,
					box INTEGER NOT NULL DEFAULT 1,
					next_review_ts TEXT,
					last_review_ts TEXT,
					FOREIGN KEY (class_id) REFERENCES classes(id)
				);

				CREATE TABLE IF NOT EXISTS grammar_points (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					class_id INTEGER NOT NULL,
					concept TEXT,
					explanation TEXT,
					example_in_text TEXT,
					rule TEXT,
					tone_learning TEXT,
					FOREIGN KEY (class_id) REFERENCES classes(id)
				);

				CREATE TABLE IF NOT EXISTS migration_history (
					id TEXT PRIMARY KEY,
					applied_at TEXT NOT NULL DEFAULT (datetime('now'))
				);
			`)
			return err
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				DROP TABLE IF EXISTS grammar_points;
				DROP TABLE IF EXISTS flashcards;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS vocabulary;
				DROP TABLE IF EXISTS classes;
				DROP TABLE IF EXISTS migration_history;
			`)
			return err
		},
	},
	{
		ID:          "002_class_indexes",
		Description: "Index artifact tables by class",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_vocabulary_class ON vocabulary(class_id);
				CREATE INDEX IF NOT EXISTS idx_questions_class ON questions(class_id);
				CREATE INDEX IF NOT EXISTS idx_flashcards_class ON flashcards(class_id);
				CREATE INDEX IF NOT EXISTS idx_grammar_points_class ON grammar_points(class_id);
			`)
			return err
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				DROP INDEX IF EXISTS idx_vocabulary_class;
				DROP INDEX IF EXISTS idx_questions_class;
				DROP INDEX IF EXISTS idx_flashcards_class;
				DROP INDEX IF EXISTS idx_grammar_points_class;
			`)
			return err
		},
	},
}

// Migrate applies every pending migration in order.
func Migrate(db *sql.DB, logger *log.Logger) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migration_history (
			id TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("error creating migration_history table: %w", err)
	}

	for _, migration := range migrations {
		var applied bool
		err := db.QueryRow(
			"SELECT 1 FROM migration_history WHERE id = ?",
			migration.ID,
		).Scan(&applied)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("error checking migration status: %w", err)
		}

		if applied {
			continue
		}

		logger.Info("applying migration", "id", migration.ID)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("error starting transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf(
				"error applying migration %s: %w",
				migration.ID,
				err,
			)
		}

		_, err = tx.Exec(
			"INSERT INTO migration_history (id) VALUES (?)",
			migration.ID,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf(
				"error recording migration %s: %w",
				migration.ID,
				err,
			)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf(
				"error committing migration %s: %w",
				migration.ID,
				err,
			)
		}
	}

	return nil
}

// Reset drops and recreates the whole schema.
func Reset(db *sql.DB, logger *log.Logger) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		logger.Warn("reverting migration", "id", migration.ID)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("error starting transaction: %w", err)
		}
		if err := migration.Down(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf(
				"error reverting migration %s: %w",
				migration.ID,
				err,
			)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	_, err := db.Exec("DELETE FROM migration_history")
	if err != nil && err != sql.ErrNoRows {
		// table may already be dropped by the last Down
		logger.Debug("clearing migration history", "error", err)
	}

	return Migrate(db, logger)
}
