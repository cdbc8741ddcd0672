package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema if it does not exist. It is safe to run on
// every startup. driver is "postgres" or "sqlite"; the two only disagree
// on auto-increment key syntax.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	idCol := "BIGSERIAL PRIMARY KEY"
	if driver == "sqlite" {
		idCol = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS exams (
			id %s,
			name TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'pending',
			created_by BIGINT NOT NULL,
			target_scope TEXT NOT NULL DEFAULT '',
			target_group_id BIGINT,
			created_at TIMESTAMP NOT NULL
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS questions (
			id %s,
			exam_id BIGINT NOT NULL,
			question_text TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_option INTEGER NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			poll_id TEXT NOT NULL DEFAULT ''
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_answers (
			id %s,
			user_id BIGINT NOT NULL,
			exam_id BIGINT NOT NULL,
			question_id BIGINT NOT NULL,
			selected_option INTEGER NOT NULL,
			answered_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, exam_id, question_id)
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS participants (
			id %s,
			user_id BIGINT NOT NULL,
			exam_id BIGINT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			joined_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, exam_id)
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %s,
			user_id BIGINT NOT NULL UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			added_by BIGINT NOT NULL,
			added_at TIMESTAMP NOT NULL
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS authorized_groups (
			id %s,
			chat_id BIGINT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			added_by BIGINT NOT NULL,
			added_at TIMESTAMP NOT NULL
		)`, idCol),
		`CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_id)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_poll ON questions(poll_id)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_exam ON user_answers(exam_id)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_exam ON participants(exam_id)`,
	}

	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
