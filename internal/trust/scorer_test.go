package trust

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
)

func newScorer() *Scorer {
	return NewScorer(config.DefaultScoring().Trust)
}

var baseTime = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func event(t domain.EventType, offset time.Duration, meta string) domain.BehavioralEvent {
	ev := domain.BehavioralEvent{
		Type:       t,
		OccurredAt: baseTime.Add(offset),
	}
	if meta != "" {
		ev.Meta = json.RawMessage(meta)
	}
	return ev
}

func pasteEvent(offset time.Duration, length int) domain.BehavioralEvent {
	return event(domain.EventPaste, offset, fmt.Sprintf(`{"length": %d}`, length))
}

func TestScorer_EmptyLedger(t *testing.T) {
	s := newScorer()

	got := s.Assess(nil)
	if got.Score != 100 {
		t.Errorf("Score = %d, want 100", got.Score)
	}
	if got.Status != domain.TrustOK {
		t.Errorf("Status = %v, want ok", got.Status)
	}
	if len(got.Reasons) != 1 || got.Reasons[0] != "no anomalies" {
		t.Errorf("Reasons = %v, want [no anomalies]", got.Reasons)
	}
}

func TestScorer_BigPastes(t *testing.T) {
	s := newScorer()

	events := []domain.BehavioralEvent{
		pasteEvent(time.Minute, 300),
		pasteEvent(2*time.Minute, 151),
		pasteEvent(3*time.Minute, 2000),
	}

	got := s.Assess(events)
	if got.Score != 70 {
		t.Errorf("Score = %d, want 70", got.Score)
	}
	if got.Status != domain.TrustSuspicious {
		t.Errorf("Status = %v, want suspicious", got.Status)
	}
	if got.Reasons[0] != "3 large pastes detected" {
		t.Errorf("Reasons[0] = %q", got.Reasons[0])
	}
}

func TestScorer_BigPasteCapAndSmallPastesIgnored(t *testing.T) {
	s := newScorer()

	var events []domain.BehavioralEvent
	for i := 0; i < 7; i++ {
		events = append(events, pasteEvent(time.Duration(i)*time.Minute, 500))
	}
	events = append(events, pasteEvent(10*time.Minute, 20)) // under threshold

	got := s.Assess(events)
	// Capped at 3 occurrences: 100 - 10*3.
	if got.Score != 70 {
		t.Errorf("Score = %d, want 70", got.Score)
	}
}

func TestScorer_PasteAfterLongBlur(t *testing.T) {
	s := newScorer()

	tests := []struct {
		name   string
		events []domain.BehavioralEvent
		want   int
	}{
		{
			name: "paste after long absence",
			events: []domain.BehavioralEvent{
				event(domain.EventBlur, 0, ""),
				pasteEvent(90*time.Second, 10), // small paste still counts for absence
			},
			want: 85,
		},
		{
			name: "short absence is fine",
			events: []domain.BehavioralEvent{
				event(domain.EventBlur, 0, ""),
				pasteEvent(30*time.Second, 10),
			},
			want: 100,
		},
		{
			name: "focus resets the window",
			events: []domain.BehavioralEvent{
				event(domain.EventBlur, 0, ""),
				event(domain.EventFocus, 2*time.Minute, ""),
				pasteEvent(2*time.Minute+time.Second, 10),
			},
			want: 100,
		},
		{
			name: "hidden visibility counts as absence",
			events: []domain.BehavioralEvent{
				event(domain.EventVisibilityChange, 0, `{"visible": false}`),
				pasteEvent(2*time.Minute, 10),
			},
			want: 85,
		},
		{
			name: "visibility change without flag keeps the window open",
			events: []domain.BehavioralEvent{
				event(domain.EventBlur, 0, ""),
				event(domain.EventVisibilityChange, 10*time.Second, ""),
				pasteEvent(90*time.Second, 10),
			},
			want: 85,
		},
		{
			name: "visible again resets the window",
			events: []domain.BehavioralEvent{
				event(domain.EventVisibilityChange, 0, `{"visible": false}`),
				event(domain.EventVisibilityChange, 90*time.Second, `{"visible": true}`),
				pasteEvent(91*time.Second, 10),
			},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Assess(tt.events); got.Score != tt.want {
				t.Errorf("Score = %d, want %d", got.Score, tt.want)
			}
		})
	}
}

func TestScorer_FastSolves(t *testing.T) {
	s := newScorer()

	fast := `{"difficulty": "hard", "elapsed_sec": 45, "coverage": 0.95}`
	slow := `{"difficulty": "hard", "elapsed_sec": 400, "coverage": 0.95}`
	easyFast := `{"difficulty": "easy", "elapsed_sec": 20, "coverage": 1.0}`
	lowCover := `{"difficulty": "middle", "elapsed_sec": 30, "coverage": 0.5}`

	events := []domain.BehavioralEvent{
		event(domain.EventTaskCompleted, time.Minute, fast),
		event(domain.EventTaskCompleted, 2*time.Minute, slow),
		event(domain.EventTaskCompleted, 3*time.Minute, easyFast),
		event(domain.EventTaskCompleted, 4*time.Minute, lowCover),
		event(domain.EventTaskCompleted, 5*time.Minute, fast),
		event(domain.EventTaskCompleted, 6*time.Minute, fast),
	}

	got := s.Assess(events)
	// Three fast solves, capped at 2: 100 - 15*2 = 70.
	if got.Score != 70 {
		t.Errorf("Score = %d, want 70", got.Score)
	}
}

func TestScorer_ToolOpenAndOriginality(t *testing.T) {
	s := newScorer()

	tests := []struct {
		name   string
		events []domain.BehavioralEvent
		want   int
	}{
		{
			name:   "devtools flat penalty",
			events: []domain.BehavioralEvent{event(domain.EventDevTools, 0, `{"opened": true}`)},
			want:   90,
		},
		{
			name: "devtools counted once",
			events: []domain.BehavioralEvent{
				event(domain.EventDevTools, 0, `{"opened": true}`),
				event(domain.EventDevTools, time.Minute, `{"opened": true}`),
			},
			want: 90,
		},
		{
			name:   "high originality",
			events: []domain.BehavioralEvent{event(domain.EventOriginality, 0, `{"score": 92}`)},
			want:   75,
		},
		{
			name:   "medium originality",
			events: []domain.BehavioralEvent{event(domain.EventOriginality, 0, `{"score": 65}`)},
			want:   90,
		},
		{
			name:   "low originality is clean",
			events: []domain.BehavioralEvent{event(domain.EventOriginality, 0, `{"score": 12}`)},
			want:   100,
		},
		{
			name: "last originality event wins",
			events: []domain.BehavioralEvent{
				event(domain.EventOriginality, 0, `{"score": 92}`),
				event(domain.EventOriginality, time.Minute, `{"score": 30}`),
			},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Assess(tt.events); got.Score != tt.want {
				t.Errorf("Score = %d, want %d", got.Score, tt.want)
			}
		})
	}
}

func TestScorer_EverythingTriggeredClampsAtZero(t *testing.T) {
	s := newScorer()

	events := []domain.BehavioralEvent{
		pasteEvent(time.Second, 999),
		pasteEvent(2*time.Second, 999),
		pasteEvent(3*time.Second, 999),
		event(domain.EventBlur, time.Minute, ""),
		pasteEvent(3*time.Minute, 999),
		event(domain.EventTaskCompleted, 4*time.Minute, `{"difficulty": "hard", "elapsed_sec": 10, "coverage": 1.0}`),
		event(domain.EventTaskCompleted, 5*time.Minute, `{"difficulty": "hard", "elapsed_sec": 10, "coverage": 1.0}`),
		event(domain.EventDevTools, 6*time.Minute, `{"opened": true}`),
		event(domain.EventOriginality, 7*time.Minute, `{"score": 95}`),
	}

	got := s.Assess(events)
	// 100 - 30 - 15 - 30 - 10 - 25 = -10, clamped to 0.
	if got.Score != 0 {
		t.Errorf("Score = %d, want 0", got.Score)
	}
	if got.Status != domain.TrustHighRisk {
		t.Errorf("Status = %v, want high_risk", got.Status)
	}
	// All five reasons, in the documented order.
	if len(got.Reasons) != 5 {
		t.Fatalf("Reasons = %v, want 5 entries", got.Reasons)
	}
	if got.Reasons[0] != "4 large pastes detected" {
		t.Errorf("Reasons[0] = %q", got.Reasons[0])
	}
	if got.Reasons[3] != "developer tools were opened during the session" {
		t.Errorf("Reasons[3] = %q", got.Reasons[3])
	}
}

// Assessing the same ledger twice yields identical results and leaves
// the ledger untouched.
func TestScorer_Idempotent(t *testing.T) {
	s := newScorer()

	events := []domain.BehavioralEvent{
		pasteEvent(time.Minute, 400),
		event(domain.EventBlur, 2*time.Minute, ""),
		pasteEvent(5*time.Minute, 400),
		event(domain.EventOriginality, 6*time.Minute, `{"score": 70}`),
	}

	first := s.Assess(events)
	second := s.Assess(events)

	if first.Score != second.Score || first.Status != second.Status {
		t.Errorf("assessments differ: %+v vs %+v", first, second)
	}
	if len(first.Reasons) != len(second.Reasons) {
		t.Fatalf("reason lists differ: %v vs %v", first.Reasons, second.Reasons)
	}
	for i := range first.Reasons {
		if first.Reasons[i] != second.Reasons[i] {
			t.Errorf("reason %d differs: %q vs %q", i, first.Reasons[i], second.Reasons[i])
		}
	}
}

func TestScorer_StatusBands(t *testing.T) {
	s := newScorer()

	tests := []struct {
		score int
		want  domain.TrustStatus
	}{
		{100, domain.TrustOK},
		{80, domain.TrustOK},
		{79, domain.TrustSuspicious},
		{50, domain.TrustSuspicious},
		{49, domain.TrustHighRisk},
		{0, domain.TrustHighRisk},
	}
	for _, tt := range tests {
		if got := s.Status(tt.score); got != tt.want {
			t.Errorf("Status(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}
