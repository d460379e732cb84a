package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/jmoiron/sqlx"
)

// Schema creates the session table. Applied by EnsureSchema on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS task_sessions (
	session_id      UUID PRIMARY KEY,
	kind            TEXT NOT NULL,
	task_id         TEXT NOT NULL,
	state           TEXT NOT NULL,
	progress        INTEGER NOT NULL DEFAULT 0,
	total           INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT NOT NULL DEFAULT '',
	input_path      TEXT NOT NULL DEFAULT '',
	output_path     TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_sessions_created ON task_sessions (created_at DESC, session_id DESC);
`

const sessionColumns = `
	session_id, kind, task_id, state, progress, total,
	error_message, input_path, output_path, idempotency_key,
	created_at, updated_at
`

// PostgresStore keeps sessions in the task_sessions table
type PostgresStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresStore creates a store on top of db
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: time.Now,
	}
}

// EnsureSchema creates the session table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create session schema: %w", err)
	}
	return nil
}

// Create implements Store
func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	query := `
		INSERT INTO task_sessions (
			session_id, kind, task_id, state, progress, total,
			error_message, input_path, output_path, idempotency_key,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		sess.ID,
		sess.Kind,
		sess.TaskID,
		sess.State,
		sess.Progress,
		sess.Total,
		sess.ErrorMessage,
		sess.InputPath,
		sess.OutputPath,
		sess.IdempotencyKey,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get implements Store
func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	query := `SELECT ` + sessionColumns + ` FROM task_sessions WHERE session_id = $1`

	if err := s.db.GetContext(ctx, &sess, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &sess, nil
}

// Update implements Store
func (s *PostgresStore) Update(ctx context.Context, id string, h domain.TaskHandle) error {
	query := `
		UPDATE task_sessions
		SET state = $1, progress = $2, total = $3, error_message = $4, updated_at = $5
		WHERE session_id = $6 AND state NOT IN ('COMPLETED', 'FAILED', 'CANCELED')
	`

	res, err := s.db.ExecContext(ctx, query, h.State, h.Progress, h.Total, h.ErrorDetail, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n > 0 {
		return nil
	}

	// nothing changed: either terminal already or missing
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM task_sessions WHERE session_id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return notFound(id)
	}
	return nil
}

// List implements Store
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM task_sessions WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, filter.State)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, session_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, session_id DESC"

	// one extra row tells the caller whether another page exists
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var sessions []Session
	if err := s.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}
