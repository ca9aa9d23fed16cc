package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
)

func newTestService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(NewMemoryStore(), config.DefaultScoring(), logger)
}

func passedOutcome(difficulty domain.Difficulty) domain.TaskOutcome {
	return domain.TaskOutcome{
		TaskID:        "task-1",
		Difficulty:    difficulty,
		Reason:        domain.FinalizedSubmitted,
		VisiblePassed: 4,
		VisibleTotal:  4,
		HiddenPassed:  6,
		HiddenTotal:   6,
	}
}

func failedOutcome(difficulty domain.Difficulty) domain.TaskOutcome {
	return domain.TaskOutcome{
		TaskID:        "task-2",
		Difficulty:    difficulty,
		Reason:        domain.FinalizedSubmitted,
		VisiblePassed: 1,
		VisibleTotal:  4,
		HiddenPassed:  1,
		HiddenTotal:   6,
	}
}

func TestService_CreateSeedsStartState(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{
		YearsOfExperience: 2,
		SelfDeclaredTier:  domain.TierMiddle,
		DeclaredTrack:     "backend",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if sess.Status != StatusActive {
		t.Errorf("status = %q, want %q", sess.Status, StatusActive)
	}
	if sess.Start.Tier != domain.TierMiddle {
		t.Errorf("start tier = %v, want %v", sess.Start.Tier, domain.TierMiddle)
	}
	if sess.Difficulty != domain.DifficultyMiddle {
		t.Errorf("difficulty = %q, want middle", sess.Difficulty)
	}
	if sess.Start.Track != domain.TrackBackend {
		t.Errorf("track = %q, want backend", sess.Start.Track)
	}

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("Get returned session %q, want %q", got.ID, sess.ID)
	}
}

func TestService_GetUnknownSession(t *testing.T) {
	svc := newTestService()

	_, err := svc.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestService_RecordTaskAdvancesDifficulty(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{
		YearsOfExperience: 2,
		SelfDeclaredTier:  domain.TierMiddle,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next, err := svc.RecordTask(ctx, sess.ID, passedOutcome(domain.DifficultyMiddle), false)
	if err != nil {
		t.Fatalf("RecordTask: %v", err)
	}
	if next != domain.DifficultyHard {
		t.Errorf("next = %q, want hard after strong pass", next)
	}

	// Failure without a move-on request holds the state.
	next, err = svc.RecordTask(ctx, sess.ID, failedOutcome(domain.DifficultyHard), false)
	if err != nil {
		t.Fatalf("RecordTask: %v", err)
	}
	if next != domain.DifficultyHard {
		t.Errorf("next = %q, want hard to hold on plain fail", next)
	}

	// Failure with a move-on request demotes.
	next, err = svc.RecordTask(ctx, sess.ID, failedOutcome(domain.DifficultyHard), true)
	if err != nil {
		t.Fatalf("RecordTask: %v", err)
	}
	if next != domain.DifficultyMiddle {
		t.Errorf("next = %q, want middle after requested demotion", next)
	}

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Tasks) != 3 {
		t.Errorf("ledger has %d outcomes, want 3", len(got.Tasks))
	}
	if got.Difficulty != domain.DifficultyMiddle {
		t.Errorf("stored difficulty = %q, want middle", got.Difficulty)
	}
	if len(got.NextFlags) != 3 || got.NextFlags[2] != true {
		t.Errorf("next flags = %v, want third flag true", got.NextFlags)
	}
}

func TestService_RecordTaskNormalizesDifficulty(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{SelfDeclaredTier: domain.TierMiddle, YearsOfExperience: 4})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	outcome := passedOutcome("medium")
	if _, err := svc.RecordTask(ctx, sess.ID, outcome, false); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}

	got, _ := svc.Get(ctx, sess.ID)
	if got.Tasks[0].Difficulty != domain.DifficultyMiddle {
		t.Errorf("stored difficulty = %q, want middle", got.Tasks[0].Difficulty)
	}
	if got.Tasks[0].RecordedAt.IsZero() {
		t.Error("RecordedAt not stamped")
	}
}

func TestService_RecordTheoryClampsCorrectness(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.RecordTheory(ctx, sess.ID, domain.TheoryOutcome{QuestionID: "q1", Correctness: 1.4}); err != nil {
		t.Fatalf("RecordTheory: %v", err)
	}
	if err := svc.RecordTheory(ctx, sess.ID, domain.TheoryOutcome{QuestionID: "q2", Correctness: -0.2}); err != nil {
		t.Fatalf("RecordTheory: %v", err)
	}

	got, _ := svc.Get(ctx, sess.ID)
	if got.Theory[0].Correctness != 1 {
		t.Errorf("correctness = %v, want clamp to 1", got.Theory[0].Correctness)
	}
	if got.Theory[1].Correctness != 0 {
		t.Errorf("correctness = %v, want clamp to 0", got.Theory[1].Correctness)
	}
}

func TestService_FinalizeOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{
		YearsOfExperience: 4,
		SelfDeclaredTier:  domain.TierMiddle,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.RecordTask(ctx, sess.ID, passedOutcome(domain.DifficultyMiddle), false); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}
	if err := svc.RecordTheory(ctx, sess.ID, domain.TheoryOutcome{QuestionID: "q1", Correctness: 1}); err != nil {
		t.Fatalf("RecordTheory: %v", err)
	}

	report, err := svc.Finalize(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if report.SessionID != sess.ID {
		t.Errorf("report session id = %q, want %q", report.SessionID, sess.ID)
	}
	if report.CodingScore != 100 || report.TheoryScore != 100 {
		t.Errorf("scores = %v/%v, want 100/100", report.CodingScore, report.TheoryScore)
	}
	if report.FinalizedAt.IsZero() {
		t.Error("FinalizedAt not stamped")
	}

	if _, err := svc.Finalize(ctx, sess.ID); !errors.Is(err, domain.ErrSessionFinalized) {
		t.Fatalf("second Finalize err = %v, want ErrSessionFinalized", err)
	}

	stored, err := svc.Report(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if stored.FinalizedAt != report.FinalizedAt {
		t.Error("stored report differs from the first finalize")
	}
}

func TestService_WritesRejectedAfterFinalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Finalize(ctx, sess.ID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if _, err := svc.RecordTask(ctx, sess.ID, passedOutcome(domain.DifficultyEasy), false); !errors.Is(err, domain.ErrSessionFinalized) {
		t.Errorf("RecordTask err = %v, want ErrSessionFinalized", err)
	}
	if err := svc.RecordTheory(ctx, sess.ID, domain.TheoryOutcome{QuestionID: "q1"}); !errors.Is(err, domain.ErrSessionFinalized) {
		t.Errorf("RecordTheory err = %v, want ErrSessionFinalized", err)
	}

	// Late behavioral events are still accepted.
	if err := svc.RecordEvent(ctx, sess.ID, domain.BehavioralEvent{Type: domain.EventDevTools}); err != nil {
		t.Errorf("RecordEvent after finalize: %v", err)
	}
}

// Finalize releases the session's writer lock so the lock map does not
// grow for the daemon's lifetime; later event appends recreate it.
func TestService_FinalizeReleasesSessionLock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.RecordTask(ctx, sess.ID, passedOutcome(domain.DifficultyEasy), false); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}

	svc.mu.Lock()
	_, held := svc.locks[sess.ID]
	svc.mu.Unlock()
	if !held {
		t.Fatal("no lock entry after RecordTask")
	}

	if _, err := svc.Finalize(ctx, sess.ID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	svc.mu.Lock()
	_, held = svc.locks[sess.ID]
	svc.mu.Unlock()
	if held {
		t.Error("lock entry still present after Finalize")
	}

	// A late event append re-mints the lock only for its own duration.
	if err := svc.RecordEvent(ctx, sess.ID, domain.BehavioralEvent{Type: domain.EventBlur}); err != nil {
		t.Errorf("RecordEvent after Finalize: %v", err)
	}
	svc.mu.Lock()
	_, held = svc.locks[sess.ID]
	svc.mu.Unlock()
	if held {
		t.Error("lock entry left behind by a post-finalize event append")
	}
}

func TestService_ReportBeforeFinalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Report(ctx, sess.ID); !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
}

func TestService_TrustFromLedger(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	assessment, err := svc.Trust(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Trust: %v", err)
	}
	if assessment.Score != 100 || assessment.Status != domain.TrustOK {
		t.Errorf("assessment = %d/%s, want 100/ok", assessment.Score, assessment.Status)
	}

	for i := 0; i < 3; i++ {
		err := svc.RecordEvent(ctx, sess.ID, domain.BehavioralEvent{
			Type: domain.EventPaste,
			Meta: []byte(`{"length":400}`),
		})
		if err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}

	assessment, err = svc.Trust(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Trust: %v", err)
	}
	if assessment.Score != 70 || assessment.Status != domain.TrustSuspicious {
		t.Errorf("assessment = %d/%s, want 70/suspicious", assessment.Score, assessment.Status)
	}

	got, _ := svc.Get(ctx, sess.ID)
	for _, event := range got.Events {
		if event.SessionID != sess.ID {
			t.Errorf("event session id = %q, want %q", event.SessionID, sess.ID)
		}
		if event.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Error("event id not assigned")
		}
	}
}

func TestService_SnapshotIsolation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.RecordTask(ctx, sess.ID, passedOutcome(domain.DifficultyEasy), false); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}

	snap, _ := svc.Get(ctx, sess.ID)
	snap.Tasks[0].VisiblePassed = 0
	snap.Difficulty = domain.DifficultyHard

	fresh, _ := svc.Get(ctx, sess.ID)
	if fresh.Tasks[0].VisiblePassed != 4 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestService_ConcurrentAppends(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, domain.CandidateSignals{YearsOfExperience: 4, SelfDeclaredTier: domain.TierMiddle})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, _ = svc.RecordTask(ctx, sess.ID, passedOutcome(domain.DifficultyMiddle), false)
			_ = svc.RecordEvent(ctx, sess.ID, domain.BehavioralEvent{Type: domain.EventBlur})
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Tasks) != writers {
		t.Errorf("task ledger has %d entries, want %d", len(got.Tasks), writers)
	}
	if len(got.Events) != writers {
		t.Errorf("event ledger has %d entries, want %d", len(got.Events), writers)
	}
}
