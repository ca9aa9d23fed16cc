// Package postgres is the shared-database storage driver, used when
// several engine instances grade against one Postgres cluster.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"

	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/session"
)

// Ensure the Postgres store implements the session storage interface.
var _ session.Store = (*SessionStore)(nil)

// NewPool connects a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// SessionStore implements session.Store backed by Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a Postgres-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// EnsureSchema creates the session tables when they do not exist yet.
func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    signals     JSONB NOT NULL,
    start_state JSONB NOT NULL,
    status      TEXT NOT NULL DEFAULT 'active',
    difficulty  TEXT NOT NULL,
    report      JSONB,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS task_outcomes (
    seq            BIGSERIAL PRIMARY KEY,
    session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    task_id        TEXT NOT NULL,
    difficulty     TEXT NOT NULL,
    reason         TEXT NOT NULL,
    visible_passed INTEGER NOT NULL DEFAULT 0,
    visible_total  INTEGER NOT NULL DEFAULT 0,
    hidden_passed  INTEGER NOT NULL DEFAULT 0,
    hidden_total   INTEGER NOT NULL DEFAULT 0,
    hints_soft     INTEGER NOT NULL DEFAULT 0,
    hints_medium   INTEGER NOT NULL DEFAULT 0,
    hints_hard     INTEGER NOT NULL DEFAULT 0,
    elapsed_ms     BIGINT NOT NULL DEFAULT 0,
    requested_next BOOLEAN NOT NULL DEFAULT FALSE,
    recorded_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_outcomes_session ON task_outcomes(session_id);

CREATE TABLE IF NOT EXISTS theory_outcomes (
    seq         BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL,
    correctness DOUBLE PRECISION NOT NULL DEFAULT 0,
    skipped     BOOLEAN NOT NULL DEFAULT FALSE,
    recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_theory_outcomes_session ON theory_outcomes(session_id);

CREATE TABLE IF NOT EXISTS behavioral_events (
    seq         BIGSERIAL PRIMARY KEY,
    id          UUID NOT NULL UNIQUE,
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    task_id     TEXT,
    type        TEXT NOT NULL,
    meta        JSONB,
    occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_behavioral_events_session ON behavioral_events(session_id);
`

func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	signals, err := json.Marshal(sess.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	start, err := json.Marshal(sess.Start)
	if err != nil {
		return fmt.Errorf("marshal start state: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, signals, start_state, status, difficulty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, signals, start, string(sess.Status),
		string(sess.Difficulty), sess.CreatedAt, sess.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, signals, start_state, status, difficulty, report, created_at, updated_at
		FROM sessions WHERE id = $1`, id)

	var (
		sess           session.Session
		signals, start []byte
		report         []byte
		status         string
		difficulty     string
	)
	err := row.Scan(&sess.ID, &signals, &start, &status, &difficulty,
		&report, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = session.Status(status)
	sess.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal(signals, &sess.Signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	if err := json.Unmarshal(start, &sess.Start); err != nil {
		return nil, fmt.Errorf("unmarshal start state: %w", err)
	}
	if len(report) > 0 {
		var r domain.FinalGradeReport
		if err := json.Unmarshal(report, &r); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		sess.Report = &r
	}

	if err := s.loadTasks(ctx, &sess); err != nil {
		return nil, err
	}
	if err := s.loadTheory(ctx, &sess); err != nil {
		return nil, err
	}
	if err := s.loadEvents(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) loadTasks(ctx context.Context, sess *session.Session) error {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, difficulty, reason,
			visible_passed, visible_total, hidden_passed, hidden_total,
			hints_soft, hints_medium, hints_hard,
			elapsed_ms, requested_next, recorded_at
		FROM task_outcomes WHERE session_id = $1 ORDER BY seq`, sess.ID)
	if err != nil {
		return fmt.Errorf("query task outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o             domain.TaskOutcome
			difficulty    string
			reason        string
			elapsedMilli  int64
			requestedNext bool
		)
		err := rows.Scan(&o.TaskID, &difficulty, &reason,
			&o.VisiblePassed, &o.VisibleTotal, &o.HiddenPassed, &o.HiddenTotal,
			&o.HintsSoft, &o.HintsMedium, &o.HintsHard,
			&elapsedMilli, &requestedNext, &o.RecordedAt)
		if err != nil {
			return fmt.Errorf("scan task outcome: %w", err)
		}
		o.Difficulty = domain.Difficulty(difficulty)
		o.Reason = domain.FinalizeReason(reason)
		o.Elapsed = time.Duration(elapsedMilli) * time.Millisecond
		sess.Tasks = append(sess.Tasks, o)
		sess.NextFlags = append(sess.NextFlags, requestedNext)
	}
	return rows.Err()
}

func (s *SessionStore) loadTheory(ctx context.Context, sess *session.Session) error {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id, correctness, skipped, recorded_at
		FROM theory_outcomes WHERE session_id = $1 ORDER BY seq`, sess.ID)
	if err != nil {
		return fmt.Errorf("query theory outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.TheoryOutcome
		if err := rows.Scan(&o.QuestionID, &o.Correctness, &o.Skipped, &o.RecordedAt); err != nil {
			return fmt.Errorf("scan theory outcome: %w", err)
		}
		sess.Theory = append(sess.Theory, o)
	}
	return rows.Err()
}

func (s *SessionStore) loadEvents(ctx context.Context, sess *session.Session) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, type, meta, occurred_at
		FROM behavioral_events WHERE session_id = $1 ORDER BY seq`, sess.ID)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e         domain.BehavioralEvent
			taskID    *string
			eventType string
			meta      pqtype.NullRawMessage
		)
		if err := rows.Scan(&e.ID, &taskID, &eventType, &meta, &e.OccurredAt); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		e.SessionID = sess.ID
		if taskID != nil {
			e.TaskID = *taskID
		}
		e.Type = domain.EventType(eventType)
		if meta.Valid {
			e.Meta = meta.RawMessage
		}
		sess.Events = append(sess.Events, e)
	}
	return rows.Err()
}

func (s *SessionStore) AppendTask(ctx context.Context, id string, outcome domain.TaskOutcome, requestedNext bool, next domain.Difficulty) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireSession(ctx, tx, id); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO task_outcomes (session_id, task_id, difficulty, reason,
			visible_passed, visible_total, hidden_passed, hidden_total,
			hints_soft, hints_medium, hints_hard,
			elapsed_ms, requested_next, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, outcome.TaskID, string(outcome.Difficulty), string(outcome.Reason),
		outcome.VisiblePassed, outcome.VisibleTotal, outcome.HiddenPassed, outcome.HiddenTotal,
		outcome.HintsSoft, outcome.HintsMedium, outcome.HintsHard,
		outcome.Elapsed.Milliseconds(), requestedNext, outcome.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task outcome: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE sessions SET difficulty = $1, updated_at = $2 WHERE id = $3",
		string(next), outcome.RecordedAt, id)
	if err != nil {
		return fmt.Errorf("update difficulty: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *SessionStore) AppendTheory(ctx context.Context, id string, outcome domain.TheoryOutcome) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireSession(ctx, tx, id); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO theory_outcomes (session_id, question_id, correctness, skipped, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, outcome.QuestionID, outcome.Correctness, outcome.Skipped, outcome.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert theory outcome: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE sessions SET updated_at = $1 WHERE id = $2", outcome.RecordedAt, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *SessionStore) AppendEvent(ctx context.Context, id string, event domain.BehavioralEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireSession(ctx, tx, id); err != nil {
		return err
	}

	meta := pqtype.NullRawMessage{}
	if len(event.Meta) > 0 {
		meta = pqtype.NullRawMessage{RawMessage: event.Meta, Valid: true}
	}
	var taskID *string
	if event.TaskID != "" {
		taskID = &event.TaskID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO behavioral_events (id, session_id, task_id, type, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, id, taskID, string(event.Type), meta, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *SessionStore) SaveReport(ctx context.Context, id string, report domain.FinalGradeReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET status = $1, report = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(session.StatusFinalized), data, report.FinalizedAt,
		id, string(session.StatusActive))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var status string
		err := s.pool.QueryRow(ctx, "SELECT status FROM sessions WHERE id = $1", id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("check session status: %w", err)
		}
		return domain.ErrSessionFinalized
	}
	return nil
}

func requireSession(ctx context.Context, tx pgx.Tx, id string) error {
	var one int
	err := tx.QueryRow(ctx, "SELECT 1 FROM sessions WHERE id = $1", id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
