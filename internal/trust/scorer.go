package trust

import (
	"fmt"

	"github.com/provelo/assay/internal/domain"
)

// Assess folds the event ledger into a full trust assessment.
func (s *Scorer) Assess(events []domain.BehavioralEvent) domain.TrustAssessment {
	sig := s.DeriveSignals(events)
	score := s.Score(sig)

	return domain.TrustAssessment{
		Score:   score,
		Status:  s.Status(score),
		Reasons: s.Reasons(sig),
	}
}

// Score computes the 0-100 trust score from derived signals. Each signal
// subtracts independently and additively, with per-signal caps, and the
// result clamps into [0,100].
func (s *Scorer) Score(sig Signals) int {
	score := 100

	if sig.BigPastes > 0 {
		score -= s.cfg.BigPastePenalty * minInt(sig.BigPastes, s.cfg.BigPasteCap)
	}
	if sig.PastesAfterBlur > 0 {
		score -= s.cfg.BlurPastePenalty
	}
	if sig.FastSolves > 0 {
		score -= s.cfg.FastSolvePenalty * minInt(sig.FastSolves, s.cfg.FastSolveCap)
	}
	if sig.ToolOpened {
		score -= s.cfg.ToolOpenPenalty
	}
	if sig.Originality != nil {
		switch {
		case *sig.Originality >= s.cfg.OriginalityHigh:
			score -= s.cfg.OriginalityHighPenalty
		case *sig.Originality >= s.cfg.OriginalityMedium:
			score -= s.cfg.OriginalityMediumPenalty
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Status bands a trust score into a judgment.
func (s *Scorer) Status(score int) domain.TrustStatus {
	switch {
	case score >= s.cfg.OKThreshold:
		return domain.TrustOK
	case score >= s.cfg.SuspiciousThreshold:
		return domain.TrustSuspicious
	default:
		return domain.TrustHighRisk
	}
}

// Reasons renders one justification per triggered signal, in a fixed
// deterministic order: big pastes, pastes after absence, fast solves,
// tool-open, originality. No triggered signals yields the single
// no-anomalies line.
func (s *Scorer) Reasons(sig Signals) []string {
	var reasons []string

	if sig.BigPastes > 0 {
		reasons = append(reasons, fmt.Sprintf("%d large pastes detected", sig.BigPastes))
	}
	if sig.PastesAfterBlur > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"%d pastes occurred right after a long absence from the editor", sig.PastesAfterBlur))
	}
	if sig.FastSolves > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"%d tasks solved suspiciously fast with high check coverage", sig.FastSolves))
	}
	if sig.ToolOpened {
		reasons = append(reasons, "developer tools were opened during the session")
	}
	if sig.Originality != nil {
		switch {
		case *sig.Originality >= s.cfg.OriginalityHigh:
			reasons = append(reasons, fmt.Sprintf(
				"submitted code closely resembles generated code (originality %.0f)", *sig.Originality))
		case *sig.Originality >= s.cfg.OriginalityMedium:
			reasons = append(reasons, fmt.Sprintf(
				"submitted code partially resembles generated code (originality %.0f)", *sig.Originality))
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "no anomalies")
	}
	return reasons
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
