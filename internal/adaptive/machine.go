// Package adaptive steers task difficulty session-by-session. It is a
// three-state machine (easy, middle, hard) with no terminal state: each
// finalized task outcome yields exactly one transition decision, and the
// current state is always re-derivable by replaying the outcome ledger.
package adaptive

import (
	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
)

// Verdict classifies a single task outcome for transition purposes.
type Verdict string

const (
	VerdictStrongPass Verdict = "strong_pass"
	VerdictFail       Verdict = "fail"
	VerdictNeutral    Verdict = "neutral"
)

// Machine applies promotion/demotion/hold rules to difficulty state.
type Machine struct {
	cfg config.AdaptiveConfig
}

// NewMachine creates a difficulty state machine with the given thresholds.
func NewMachine(cfg config.AdaptiveConfig) *Machine {
	return &Machine{cfg: cfg}
}

// Classify buckets an outcome as strong-pass, fail or neutral.
//
// Strong-pass for easy/middle requires every visible check green, a total
// rate at or above the configured bound, no hard hints and at most one
// medium hint. Hard tasks only require all visible checks plus the lower
// hard-tier total-rate bound. Fail triggers on a weak visible or total
// rate at any difficulty. Boundary comparisons are inclusive.
func (m *Machine) Classify(outcome domain.TaskOutcome) Verdict {
	visibleRate := outcome.VisibleRate()
	totalRate := outcome.TotalRate()

	if visibleRate < m.cfg.FailVisibleRate || totalRate < m.cfg.FailTotalRate {
		return VerdictFail
	}

	if visibleRate == 1.0 {
		switch outcome.Difficulty {
		case domain.DifficultyHard:
			if totalRate >= m.cfg.StrongPassTotalRateHard {
				return VerdictStrongPass
			}
		default:
			if totalRate >= m.cfg.StrongPassTotalRate &&
				outcome.HintsHard == 0 &&
				outcome.HintsMedium <= m.cfg.StrongPassMaxMediumHints {
				return VerdictStrongPass
			}
		}
	}

	return VerdictNeutral
}

// Next computes the difficulty for the following task. Strong-pass
// promotes, fail demotes only when the candidate asked to move on, and
// everything else holds. The edges saturate: hard stays hard on
// promotion, easy stays easy on demotion.
func (m *Machine) Next(current domain.Difficulty, outcome domain.TaskOutcome, userRequestedNext bool) domain.Difficulty {
	switch m.Classify(outcome) {
	case VerdictStrongPass:
		return promote(current)
	case VerdictFail:
		if userRequestedNext {
			return demote(current)
		}
	}
	return current
}

// Replay re-derives the difficulty state from the outcome ledger alone.
// nextFlags carries the user-requested-next flag per outcome; a short
// slice reads as false. Replay(start, ledger) equals the live state after
// the same sequence of Next calls, which is what makes the state machine
// auditable without hidden counters.
func (m *Machine) Replay(start domain.Difficulty, outcomes []domain.TaskOutcome, nextFlags []bool) domain.Difficulty {
	current := start
	for i, outcome := range outcomes {
		requested := i < len(nextFlags) && nextFlags[i]
		current = m.Next(current, outcome, requested)
	}
	return current
}

func promote(d domain.Difficulty) domain.Difficulty {
	switch d {
	case domain.DifficultyEasy:
		return domain.DifficultyMiddle
	case domain.DifficultyMiddle:
		return domain.DifficultyHard
	default:
		return domain.DifficultyHard
	}
}

func demote(d domain.Difficulty) domain.Difficulty {
	switch d {
	case domain.DifficultyHard:
		return domain.DifficultyMiddle
	case domain.DifficultyMiddle:
		return domain.DifficultyEasy
	default:
		return domain.DifficultyEasy
	}
}

// StartDifficulty seeds the state machine from the resolved starting
// tier: junior tiers begin on easy, middle tiers on middle, senior and
// middle_plus on hard.
func StartDifficulty(tier domain.ProficiencyTier) domain.Difficulty {
	switch tier.Clamp() {
	case domain.TierJunior, domain.TierJuniorPlus:
		return domain.DifficultyEasy
	case domain.TierMiddle:
		return domain.DifficultyMiddle
	default:
		return domain.DifficultyHard
	}
}
