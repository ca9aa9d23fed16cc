// Package scoring converts raw outcome records into normalized scores
// and aggregates them into the final proficiency grade. Every calculator
// is pure and total: rates are clamped into [0,1] before use, divisions
// are guarded, and empty ledgers degrade to zero scores.
package scoring

import (
	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
)

// TaskScore is a single task's weighted contribution to the coding score.
type TaskScore struct {
	// UnitScore is effectiveRate × Weight, in [0, Weight].
	UnitScore float64
	// Weight is the difficulty weight the unit score was computed with.
	Weight float64
}

// Calculator scores task and theory outcomes.
type Calculator struct {
	cfg config.Scoring
}

// NewCalculator creates a calculator with the given scoring constants.
func NewCalculator(cfg config.Scoring) *Calculator {
	return &Calculator{cfg: cfg}
}

// ScoreTask converts one task outcome into its weighted unit score.
// Hints eat into credit at fixed per-severity rates, capped so a
// candidate never loses more than the configured share to hints alone.
func (c *Calculator) ScoreTask(outcome domain.TaskOutcome) TaskScore {
	weight := outcome.Difficulty.Weight()

	penalty := c.HintPenalty(outcome)
	effectiveRate := outcome.TotalRate() * (1 - penalty)
	if effectiveRate < 0 {
		effectiveRate = 0
	}

	return TaskScore{
		UnitScore: effectiveRate * weight,
		Weight:    weight,
	}
}

// HintPenalty computes the fractional credit lost to hints, in
// [0, MaxHintPenalty]. Negative hint counts read as zero.
func (c *Calculator) HintPenalty(outcome domain.TaskOutcome) float64 {
	penalty := c.cfg.Task.SoftHintPenalty*nonNegative(outcome.HintsSoft) +
		c.cfg.Task.MediumHintPenalty*nonNegative(outcome.HintsMedium) +
		c.cfg.Task.HardHintPenalty*nonNegative(outcome.HintsHard)

	if penalty > c.cfg.Task.MaxHintPenalty {
		return c.cfg.Task.MaxHintPenalty
	}
	return penalty
}

func nonNegative(n int) float64 {
	if n < 0 {
		return 0
	}
	return float64(n)
}
