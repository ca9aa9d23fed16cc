// Package session owns the per-session ledgers and orchestrates the
// scoring engine around them. Each session carries three append-only
// logs (task outcomes, theory outcomes, behavioral events) plus the
// difficulty state; the service serializes writers per session while
// reads run against snapshot copies.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/grade"
)

// Status represents the session state.
type Status string

const (
	StatusActive    Status = "active"
	StatusFinalized Status = "finalized"
)

// Session is one candidate assessment run.
type Session struct {
	ID      string                  `json:"id"`
	Signals domain.CandidateSignals `json:"signals"`
	Start   grade.Start             `json:"start"`
	Status  Status                  `json:"status"`

	// Difficulty is the tier the next task will be selected at. It is
	// mutated exactly once per recorded task outcome, by the difficulty
	// state machine, and by nothing else.
	Difficulty domain.Difficulty `json:"difficulty"`

	// The three append-only ledgers. Insertion order is chronological;
	// entries are never reordered or deleted.
	Tasks  []domain.TaskOutcome     `json:"tasks"`
	Theory []domain.TheoryOutcome   `json:"theory"`
	Events []domain.BehavioralEvent `json:"events"`

	// NextFlags records the user-requested-next flag alongside each task
	// outcome so the difficulty state stays re-derivable from the ledger.
	NextFlags []bool `json:"next_flags"`

	// Report is set once by Finalize and never replaced.
	Report *domain.FinalGradeReport `json:"report,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an active session seeded with the resolver output.
func NewSession(signals domain.CandidateSignals, start grade.Start, difficulty domain.Difficulty) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.New().String(),
		Signals:    signals,
		Start:      start,
		Status:     StatusActive,
		Difficulty: difficulty,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Finalized reports whether the session has been graded.
func (s *Session) Finalized() bool {
	return s.Status == StatusFinalized
}

// Clone returns a deep copy usable as a read snapshot.
func (s *Session) Clone() *Session {
	c := *s
	c.Tasks = append([]domain.TaskOutcome(nil), s.Tasks...)
	c.Theory = append([]domain.TheoryOutcome(nil), s.Theory...)
	c.Events = append([]domain.BehavioralEvent(nil), s.Events...)
	c.NextFlags = append([]bool(nil), s.NextFlags...)
	if s.Report != nil {
		r := *s.Report
		c.Report = &r
	}
	if s.Signals.ResumeTier != nil {
		t := *s.Signals.ResumeTier
		c.Signals.ResumeTier = &t
	}
	c.Signals.ResumeTracks = append([]string(nil), s.Signals.ResumeTracks...)
	return &c
}
