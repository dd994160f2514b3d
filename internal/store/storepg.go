package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/corvidlabs/interviewsim/pkg/types"
)

// Schema is the SQL DDL for the sessions and speech_tasks tables. Execute
// it via [PostgresGateway.Migrate] before issuing any other query.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id          TEXT PRIMARY KEY,
    owner_user_id       TEXT NOT NULL DEFAULT '',
    config              JSONB NOT NULL DEFAULT '{}',
    history             JSONB NOT NULL DEFAULT '[]',
    feedback_log        JSONB NOT NULL DEFAULT '[]',
    final_summary        JSONB,
    stats               JSONB NOT NULL DEFAULT '{}',
    status              TEXT NOT NULL DEFAULT 'active',
    summary_generating  BOOLEAN NOT NULL DEFAULT false,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

CREATE TABLE IF NOT EXISTS speech_tasks (
    task_id     TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL,
    task_type   TEXT NOT NULL,
    status      TEXT NOT NULL,
    progress    JSONB NOT NULL DEFAULT '{}',
    result      JSONB NOT NULL DEFAULT '{}',
    error       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_speech_tasks_session ON speech_tasks(session_id);
`

// DB is the database interface used by [PostgresGateway]. Both
// *pgxpool.Pool and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresGateway is a Gateway backed by a PostgreSQL database. Structured
// sub-fields (config, history, feedback log, summary, stats) are stored as
// JSONB columns.
type PostgresGateway struct {
	db DB
}

var _ Gateway = (*PostgresGateway)(nil)

// NewPostgresGateway creates a PostgresGateway over the given connection or
// pool. Callers must invoke Migrate before issuing any other query.
func NewPostgresGateway(db DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// Migrate executes the Schema DDL, creating tables and indexes if they do
// not already exist.
func (g *PostgresGateway) Migrate(ctx context.Context) error {
	if _, err := g.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (g *PostgresGateway) Ping(ctx context.Context) error {
	var one int
	err := g.db.QueryRow(ctx, "SELECT 1").Scan(&one)
	if err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

func (g *PostgresGateway) CreateSession(ctx context.Context, rec *types.SessionRecord) error {
	configJSON, historyJSON, feedbackJSON, summaryJSON, statsJSON, err := marshalSessionFields(rec)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO sessions (
			session_id, owner_user_id, config, history, feedback_log,
			final_summary, stats, status, summary_generating
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`

	err = g.db.QueryRow(ctx, query,
		rec.SessionID, rec.OwnerUserID, configJSON, historyJSON, feedbackJSON,
		summaryJSON, statsJSON, rec.Status, rec.SummaryGenerating,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: session %q already exists", rec.SessionID)
		}
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

func (g *PostgresGateway) LoadSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	const query = `
		SELECT session_id, owner_user_id, config, history, feedback_log,
		       final_summary, stats, status, summary_generating, created_at, updated_at
		FROM sessions
		WHERE session_id = $1`

	var rec types.SessionRecord
	var configJSON, historyJSON, feedbackJSON, statsJSON []byte
	var summaryJSON []byte

	err := g.db.QueryRow(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.OwnerUserID, &configJSON, &historyJSON, &feedbackJSON,
		&summaryJSON, &statsJSON, &rec.Status, &rec.SummaryGenerating, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load session %q: %w", sessionID, err)
	}

	if err := unmarshalSessionFields(&rec, configJSON, historyJSON, feedbackJSON, summaryJSON, statsJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *PostgresGateway) SaveSession(ctx context.Context, rec *types.SessionRecord) error {
	configJSON, historyJSON, feedbackJSON, summaryJSON, statsJSON, err := marshalSessionFields(rec)
	if err != nil {
		return err
	}

	const query = `
		UPDATE sessions SET
			owner_user_id = $2, config = $3, history = $4, feedback_log = $5,
			final_summary = $6, stats = $7, status = $8, summary_generating = $9,
			updated_at = now()
		WHERE session_id = $1
		RETURNING updated_at`

	err = g.db.QueryRow(ctx, query,
		rec.SessionID, rec.OwnerUserID, configJSON, historyJSON, feedbackJSON,
		summaryJSON, statsJSON, rec.Status, rec.SummaryGenerating,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: session %q not found", rec.SessionID)
		}
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

func (g *PostgresGateway) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := g.db.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete session %q: %w", sessionID, err)
	}
	return nil
}

func (g *PostgresGateway) CreateSpeechTask(ctx context.Context, rec *types.SpeechTaskRecord) error {
	progressJSON, resultJSON, err := marshalSpeechFields(rec)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO speech_tasks (task_id, session_id, task_type, status, progress, result, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`

	err = g.db.QueryRow(ctx, query,
		rec.TaskID, rec.SessionID, rec.TaskType, rec.Status, progressJSON, resultJSON, rec.Error,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create speech task: %w", err)
	}
	return nil
}

func (g *PostgresGateway) SaveSpeechTask(ctx context.Context, rec *types.SpeechTaskRecord) error {
	progressJSON, resultJSON, err := marshalSpeechFields(rec)
	if err != nil {
		return err
	}

	const query = `
		UPDATE speech_tasks SET
			status = $2, progress = $3, result = $4, error = $5, updated_at = now()
		WHERE task_id = $1
		RETURNING updated_at`

	err = g.db.QueryRow(ctx, query, rec.TaskID, rec.Status, progressJSON, resultJSON, rec.Error).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: speech task %q not found", rec.TaskID)
		}
		return fmt.Errorf("store: save speech task: %w", err)
	}
	return nil
}

func (g *PostgresGateway) LoadSpeechTask(ctx context.Context, taskID string) (*types.SpeechTaskRecord, error) {
	const query = `
		SELECT task_id, session_id, task_type, status, progress, result, error, created_at, updated_at
		FROM speech_tasks
		WHERE task_id = $1`

	var rec types.SpeechTaskRecord
	var progressJSON, resultJSON []byte

	err := g.db.QueryRow(ctx, query, taskID).Scan(
		&rec.TaskID, &rec.SessionID, &rec.TaskType, &rec.Status,
		&progressJSON, &resultJSON, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load speech task %q: %w", taskID, err)
	}

	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &rec.Progress); err != nil {
			return nil, fmt.Errorf("store: unmarshal progress: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
			return nil, fmt.Errorf("store: unmarshal result: %w", err)
		}
	}
	return &rec, nil
}

// CleanupSpeechTasks removes speech task rows untouched for longer than
// olderThan and reports how many rows were removed. No code in this module
// calls it on a schedule.
func (g *PostgresGateway) CleanupSpeechTasks(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := g.db.Exec(ctx, `DELETE FROM speech_tasks WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup speech tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func marshalSessionFields(rec *types.SessionRecord) (config, history, feedback, summary, stats []byte, err error) {
	if config, err = json.Marshal(rec.Config); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("store: marshal config: %w", err)
	}
	if history, err = json.Marshal(emptyMessages(rec.History)); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("store: marshal history: %w", err)
	}
	if feedback, err = json.Marshal(emptyFeedback(rec.FeedbackLog)); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("store: marshal feedback_log: %w", err)
	}
	if rec.FinalSummary != nil {
		if summary, err = json.Marshal(rec.FinalSummary); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("store: marshal final_summary: %w", err)
		}
	}
	if stats, err = json.Marshal(rec.Stats); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("store: marshal stats: %w", err)
	}
	return config, history, feedback, summary, stats, nil
}

func unmarshalSessionFields(rec *types.SessionRecord, config, history, feedback, summary, stats []byte) error {
	if err := json.Unmarshal(config, &rec.Config); err != nil {
		return fmt.Errorf("store: unmarshal config: %w", err)
	}
	if err := json.Unmarshal(history, &rec.History); err != nil {
		return fmt.Errorf("store: unmarshal history: %w", err)
	}
	if err := json.Unmarshal(feedback, &rec.FeedbackLog); err != nil {
		return fmt.Errorf("store: unmarshal feedback_log: %w", err)
	}
	if len(summary) > 0 {
		var s *types.Summary
		if err := json.Unmarshal(summary, &s); err != nil {
			return fmt.Errorf("store: unmarshal final_summary: %w", err)
		}
		rec.FinalSummary = s
	}
	if err := json.Unmarshal(stats, &rec.Stats); err != nil {
		return fmt.Errorf("store: unmarshal stats: %w", err)
	}
	return nil
}

func marshalSpeechFields(rec *types.SpeechTaskRecord) (progress, result []byte, err error) {
	if progress, err = json.Marshal(emptyAnyMap(rec.Progress)); err != nil {
		return nil, nil, fmt.Errorf("store: marshal progress: %w", err)
	}
	if result, err = json.Marshal(emptyAnyMap(rec.Result)); err != nil {
		return nil, nil, fmt.Errorf("store: marshal result: %w", err)
	}
	return progress, result, nil
}

func emptyMessages(m []types.Message) []types.Message {
	if m == nil {
		return []types.Message{}
	}
	return m
}

func emptyFeedback(f []types.FeedbackEntry) []types.FeedbackEntry {
	if f == nil {
		return []types.FeedbackEntry{}
	}
	return f
}

func emptyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
