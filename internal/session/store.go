package session

import (
	"context"
	"sync"

	"github.com/provelo/assay/internal/domain"
)

// Store persists sessions and their ledgers. Implementations must treat
// the ledgers as append-only and must never return shared mutable state:
// every Get hands back a snapshot the caller owns.
type Store interface {
	// Create persists a new session. A duplicate ID returns ErrConflict.
	Create(ctx context.Context, s *Session) error

	// Get returns a snapshot of the session or domain.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// AppendTask appends one task outcome with its requested-next flag and
	// persists the recomputed difficulty in the same write.
	AppendTask(ctx context.Context, id string, outcome domain.TaskOutcome, requestedNext bool, next domain.Difficulty) error

	// AppendTheory appends one theory outcome.
	AppendTheory(ctx context.Context, id string, outcome domain.TheoryOutcome) error

	// AppendEvent appends one behavioral event.
	AppendEvent(ctx context.Context, id string, event domain.BehavioralEvent) error

	// SaveReport stores the final grade report and flips the session to
	// finalized. An already-finalized session returns ErrSessionFinalized.
	SaveReport(ctx context.Context, id string, report domain.FinalGradeReport) error
}

// MemoryStore is the in-process Store used by tests and the memory
// storage driver.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return domain.ErrConflict
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) AppendTask(_ context.Context, id string, outcome domain.TaskOutcome, requestedNext bool, next domain.Difficulty) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Tasks = append(s.Tasks, outcome)
	s.NextFlags = append(s.NextFlags, requestedNext)
	s.Difficulty = next
	s.UpdatedAt = outcome.RecordedAt
	return nil
}

func (m *MemoryStore) AppendTheory(_ context.Context, id string, outcome domain.TheoryOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Theory = append(s.Theory, outcome)
	s.UpdatedAt = outcome.RecordedAt
	return nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, id string, event domain.BehavioralEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = event.OccurredAt
	return nil
}

func (m *MemoryStore) SaveReport(_ context.Context, id string, report domain.FinalGradeReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.Status == StatusFinalized {
		return domain.ErrSessionFinalized
	}
	s.Status = StatusFinalized
	s.Report = &report
	s.UpdatedAt = report.FinalizedAt
	return nil
}
