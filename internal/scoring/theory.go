package scoring

import "github.com/provelo/assay/internal/domain"

// ScoreTheory averages the pre-judged correctness of answered questions
// onto a 0-100 scale. Skipped questions are excluded from the
// denominator entirely: skipping loses the opportunity to score but
// carries no further penalty. No answered questions means 0.
func (c *Calculator) ScoreTheory(outcomes []domain.TheoryOutcome) float64 {
	var sum float64
	var answered int

	for _, o := range outcomes {
		if o.Skipped {
			continue
		}
		sum += clamp01(o.Correctness)
		answered++
	}

	if answered == 0 {
		return 0
	}
	return 100 * sum / float64(answered)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
