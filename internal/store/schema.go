package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Table names.
const (
	tableSets      = "flashcard_sets"
	tableCards     = "flashcards"
	tableQuizzes   = "quizzes"
	tableQuestions = "questions"
	tableOptions   = "options"
	tableAttempts  = "quiz_attempts"
	tableResponses = "quiz_attempt_responses"
	tableLLMEvents = "llm_request_events"
	tableVectors   = "vector_chunks"
)

// Timestamps are stored as Unix nanoseconds so ordering is numeric.
// Children cascade with their owners.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS flashcard_sets (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_public INTEGER NOT NULL DEFAULT 0,
		author_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS flashcard_sets_author ON flashcard_sets(author_id)`,
	`CREATE TABLE IF NOT EXISTS flashcards (
		id TEXT PRIMARY KEY,
		set_id TEXT NOT NULL REFERENCES flashcard_sets(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		term TEXT NOT NULL,
		definition TEXT NOT NULL,
		UNIQUE (set_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL,
		flashcard_set_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quizzes_author ON quizzes(author_id)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL,
		UNIQUE (quiz_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		is_correct INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_attempts (
		id TEXT PRIMARY KEY,
		quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		attempt_date INTEGER NOT NULL,
		score INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quiz_attempts_user ON quiz_attempts(user_id)`,
	`CREATE INDEX IF NOT EXISTS quiz_attempts_quiz ON quiz_attempts(quiz_id)`,
	`CREATE TABLE IF NOT EXISTS quiz_attempt_responses (
		id TEXT PRIMARY KEY,
		attempt_id TEXT NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL,
		response_text TEXT NOT NULL DEFAULT '',
		is_correct INTEGER NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS vector_chunks (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS vector_chunks_owner ON vector_chunks(json_extract(metadata, '$.ownerUserId'))`,
}

// migrate creates every table that does not exist yet.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec ddl: %w", err)
		}
	}
	return nil
}
