package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/session"
)

// SessionStore implements session.Store backed by SQLite. The session
// row carries the mutable head state (status, difficulty, report); the
// three ledgers live in append-only child tables ordered by insertion.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a SQLite-backed session store.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	signals, err := json.Marshal(sess.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	start, err := json.Marshal(sess.Start)
	if err != nil {
		return fmt.Errorf("marshal start state: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, signals, start_state, status, difficulty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(signals), string(start), string(sess.Status),
		string(sess.Difficulty), sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, signals, start_state, status, difficulty, report, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	var (
		sess           session.Session
		signals, start string
		report         sql.NullString
		status         string
		difficulty     string
	)
	err := row.Scan(&sess.ID, &signals, &start, &status, &difficulty,
		&report, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = session.Status(status)
	sess.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal([]byte(signals), &sess.Signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	if err := json.Unmarshal([]byte(start), &sess.Start); err != nil {
		return nil, fmt.Errorf("unmarshal start state: %w", err)
	}
	if report.Valid {
		var r domain.FinalGradeReport
		if err := json.Unmarshal([]byte(report.String), &r); err != nil {
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, difficulty, reason,
			visible_passed, visible_total, hidden_passed, hidden_total,
			hints_soft, hints_medium, hints_hard,
			elapsed_ms, requested_next, recorded_at
		FROM task_outcomes WHERE session_id = ? ORDER BY seq`, sess.ID)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, correctness, skipped, recorded_at
		FROM theory_outcomes WHERE session_id = ? ORDER BY seq`, sess.ID)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, type, meta, occurred_at
		FROM behavioral_events WHERE session_id = ? ORDER BY seq`, sess.ID)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e            domain.BehavioralEvent
			rawID        string
			taskID, meta sql.NullString
			eventType    string
		)
		if err := rows.Scan(&rawID, &taskID, &eventType, &meta, &e.OccurredAt); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return fmt.Errorf("parse event id %q: %w", rawID, err)
		}
		e.ID = id
		e.SessionID = sess.ID
		e.TaskID = taskID.String
		e.Type = domain.EventType(eventType)
		if meta.Valid {
			e.Meta = json.RawMessage(meta.String)
		}
		sess.Events = append(sess.Events, e)
	}
	return rows.Err()
}

func (s *SessionStore) AppendTask(ctx context.Context, id string, outcome domain.TaskOutcome, requestedNext bool, next domain.Difficulty) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := requireSession(ctx, tx, id); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_outcomes (session_id, task_id, difficulty, reason,
			visible_passed, visible_total, hidden_passed, hidden_total,
			hints_soft, hints_medium, hints_hard,
			elapsed_ms, requested_next, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, outcome.TaskID, string(outcome.Difficulty), string(outcome.Reason),
		outcome.VisiblePassed, outcome.VisibleTotal, outcome.HiddenPassed, outcome.HiddenTotal,
		outcome.HintsSoft, outcome.HintsMedium, outcome.HintsHard,
		outcome.Elapsed.Milliseconds(), requestedNext, outcome.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task outcome: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET difficulty = ?, updated_at = ? WHERE id = ?",
		string(next), outcome.RecordedAt, id)
	if err != nil {
		return fmt.Errorf("update difficulty: %w", err)
	}

	return tx.Commit()
}

func (s *SessionStore) AppendTheory(ctx context.Context, id string, outcome domain.TheoryOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := requireSession(ctx, tx, id); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO theory_outcomes (session_id, question_id, correctness, skipped, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, outcome.QuestionID, outcome.Correctness, outcome.Skipped, outcome.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert theory outcome: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?", outcome.RecordedAt, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return tx.Commit()
}

func (s *SessionStore) AppendEvent(ctx context.Context, id string, event domain.BehavioralEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := requireSession(ctx, tx, id); err != nil {
		return err
	}

	var meta any
	if len(event.Meta) > 0 {
		meta = string(event.Meta)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO behavioral_events (id, session_id, task_id, type, meta, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID.String(), id, event.TaskID, string(event.Type), meta, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return tx.Commit()
}

func (s *SessionStore) SaveReport(ctx context.Context, id string, report domain.FinalGradeReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, report = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(session.StatusFinalized), string(data), report.FinalizedAt,
		id, string(session.StatusActive))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		// Either the session does not exist or it is already finalized.
		var status string
		err := s.db.QueryRowContext(ctx, "SELECT status FROM sessions WHERE id = ?", id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("check session status: %w", err)
		}
		return domain.ErrSessionFinalized
	}
	return nil
}

// requireSession fails an append fast when the parent row is missing so
// the caller gets ErrSessionNotFound instead of a foreign-key error.
func requireSession(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return nil
}
