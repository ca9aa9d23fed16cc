// Package trust aggregates behavioral telemetry into a 0-100 trust score
// with human-readable justification. Assessment is a pure fold over the
// event ledger: recomputing from the same ledger always yields the same
// result, and the ledger itself is never touched.
package trust

import (
	"time"

	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
)

// Signals are the categorical counters derived from one pass over a
// session's event ledger.
type Signals struct {
	BigPastes       int
	PastesAfterBlur int
	FastSolves      int
	ToolOpened      bool

	// Originality is the externally computed 0-100 originality score,
	// nil when no originality event was reported. The last event wins.
	Originality *float64
}

// Scorer derives trust signals and scores from event ledgers.
type Scorer struct {
	cfg config.TrustConfig
}

// NewScorer creates a trust scorer with the given thresholds.
func NewScorer(cfg config.TrustConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// DeriveSignals folds the event list into categorical signals. Events
// must be in timestamp order; the blur-then-paste window depends on it.
func (s *Scorer) DeriveSignals(events []domain.BehavioralEvent) Signals {
	var sig Signals

	// Start of the current away-from-editor period, zero when focused.
	var blurStart time.Time

	for _, ev := range events {
		meta := ev.DecodeMeta()

		switch ev.Type {
		case domain.EventPaste:
			if meta.Length != nil && *meta.Length >= s.cfg.BigPasteChars {
				sig.BigPastes++
			}
			if !blurStart.IsZero() {
				// The candidate pasted without ever coming back into
				// focus; treat the paste time as the return point.
				if ev.OccurredAt.Sub(blurStart).Seconds() >= s.cfg.LongBlurSeconds {
					sig.PastesAfterBlur++
				}
			}

		case domain.EventBlur:
			if blurStart.IsZero() {
				blurStart = ev.OccurredAt
			}

		case domain.EventVisibilityChange:
			// An event without the visible flag is malformed telemetry
			// and must not close an open blur window.
			if meta.Visible == nil {
				break
			}
			if !*meta.Visible {
				if blurStart.IsZero() {
					blurStart = ev.OccurredAt
				}
			} else {
				blurStart = time.Time{}
			}

		case domain.EventFocus:
			blurStart = time.Time{}

		case domain.EventDevTools:
			if meta.Opened == nil || *meta.Opened {
				sig.ToolOpened = true
			}

		case domain.EventOriginality:
			if meta.Score != nil {
				score := clampScore(*meta.Score)
				sig.Originality = &score
			}

		case domain.EventTaskCompleted:
			if s.isFastSolve(meta) {
				sig.FastSolves++
			}
		}
	}

	return sig
}

// isFastSolve flags a completion as suspiciously fast: a middle or hard
// task finished under the time threshold with high check coverage.
func (s *Scorer) isFastSolve(meta domain.EventMeta) bool {
	if meta.Difficulty == "" {
		return false
	}
	if domain.ParseDifficulty(meta.Difficulty) == domain.DifficultyEasy {
		return false
	}
	return meta.ElapsedSec > 0 &&
		meta.ElapsedSec < s.cfg.FastSolveSeconds &&
		meta.Coverage >= s.cfg.FastSolveCoverage
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
