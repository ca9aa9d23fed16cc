package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/provelo/assay/internal/adaptive"
	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/grade"
	"github.com/provelo/assay/internal/scoring"
	"github.com/provelo/assay/internal/trust"
)

// Service orchestrates sessions: it resolves the starting state, routes
// ledger appends through the difficulty state machine, and grades the
// session exactly once on finalize.
//
// Writers are serialized per session so the difficulty state has a
// single writer; reads work on store snapshots and never block writers
// of other sessions.
type Service struct {
	store    Store
	resolver *grade.Resolver
	machine  *adaptive.Machine
	calc     *scoring.Calculator
	scorer   *trust.Scorer
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a session service wired to the given store and
// scoring configuration.
func NewService(store Store, cfg config.Scoring, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: grade.NewResolver(cfg.Resolver),
		machine:  adaptive.NewMachine(cfg.Adaptive),
		calc:     scoring.NewCalculator(cfg),
		scorer:   trust.NewScorer(cfg.Trust),
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing writers for one session.
// Locks are created lazily and released once the session is finalized.
func (s *Service) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// releaseLock drops a session's writer lock. Called once the session is
// finalized: the only writes still accepted are event appends, which the
// store serializes itself, so the entry would otherwise sit in the map
// for the process lifetime.
func (s *Service) releaseLock(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

// Create resolves the candidate's starting tier, track and difficulty
// and persists a fresh session.
func (s *Service) Create(ctx context.Context, signals domain.CandidateSignals) (*Session, error) {
	start := s.resolver.Resolve(signals)
	sess := NewSession(signals, start, adaptive.StartDifficulty(start.Tier))

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session created",
		"session_id", sess.ID,
		"tier", start.Tier.String(),
		"track", string(start.Track),
		"difficulty", string(sess.Difficulty))
	return sess, nil
}

// Get returns a snapshot of the session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// RecordTask appends a finalized task outcome and advances the
// difficulty state machine. It returns the difficulty the next task
// should be selected at.
func (s *Service) RecordTask(ctx context.Context, id string, outcome domain.TaskOutcome, requestedNext bool) (domain.Difficulty, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Finalized() {
		defer s.releaseLock(id)
		return "", domain.ErrSessionFinalized
	}

	outcome.Difficulty = domain.ParseDifficulty(string(outcome.Difficulty))
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now().UTC()
	}

	next := s.machine.Next(sess.Difficulty, outcome, requestedNext)
	if err := s.store.AppendTask(ctx, id, outcome, requestedNext, next); err != nil {
		return "", fmt.Errorf("append task outcome: %w", err)
	}

	s.logger.Info("task outcome recorded",
		"session_id", id,
		"task_id", outcome.TaskID,
		"verdict", string(s.machine.Classify(outcome)),
		"difficulty", string(next))
	return next, nil
}

// RecordTheory appends a judged theory outcome. Correctness is clamped
// into [0,1] before it reaches the ledger.
func (s *Service) RecordTheory(ctx context.Context, id string, outcome domain.TheoryOutcome) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Finalized() {
		defer s.releaseLock(id)
		return domain.ErrSessionFinalized
	}

	if outcome.Correctness < 0 {
		outcome.Correctness = 0
	}
	if outcome.Correctness > 1 {
		outcome.Correctness = 1
	}
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now().UTC()
	}

	if err := s.store.AppendTheory(ctx, id, outcome); err != nil {
		return fmt.Errorf("append theory outcome: %w", err)
	}
	return nil
}

// RecordEvent appends a behavioral event. Events are accepted even
// after finalize so late deliveries are not lost; the stored grade
// report stays immutable and only on-demand trust reads see them.
func (s *Service) RecordEvent(ctx context.Context, id string, event domain.BehavioralEvent) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Finalized() {
		// The lock was re-minted just for this late append; do not let
		// late deliveries regrow the lock map.
		defer s.releaseLock(id)
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.SessionID = id
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := s.store.AppendEvent(ctx, id, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Trust recomputes the trust assessment from the current event ledger.
func (s *Service) Trust(ctx context.Context, id string) (domain.TrustAssessment, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.TrustAssessment{}, err
	}
	return s.scorer.Assess(sess.Events), nil
}

// Finalize grades the session from its ledgers and stores the report.
// A second Finalize returns ErrSessionFinalized; the first report stays
// the report of record.
func (s *Service) Finalize(ctx context.Context, id string) (domain.FinalGradeReport, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.FinalGradeReport{}, err
	}
	if sess.Finalized() {
		defer s.releaseLock(id)
		return domain.FinalGradeReport{}, domain.ErrSessionFinalized
	}

	report := s.calc.Aggregate(sess.Start, sess.Tasks, sess.Theory)
	report.SessionID = id

	if err := s.store.SaveReport(ctx, id, report); err != nil {
		return domain.FinalGradeReport{}, fmt.Errorf("save report: %w", err)
	}
	defer s.releaseLock(id)

	s.logger.Info("session finalized",
		"session_id", id,
		"overall", report.OverallScore,
		"final_tier", report.FinalTier.String())
	return report, nil
}

// Report returns the stored final grade report, or ErrReportNotFound
// when the session has not been finalized yet.
func (s *Service) Report(ctx context.Context, id string) (domain.FinalGradeReport, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.FinalGradeReport{}, err
	}
	if sess.Report == nil {
		return domain.FinalGradeReport{}, domain.ErrReportNotFound
	}
	return *sess.Report, nil
}
