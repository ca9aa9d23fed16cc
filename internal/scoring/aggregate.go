package scoring

import (
	"math"
	"time"

	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/grade"
)

// Aggregate combines the full outcome ledgers with the original candidate
// signals into the final grade report. It reads only its arguments and is
// safe to call on any snapshot; the session service is responsible for
// invoking it exactly once per session.
func (c *Calculator) Aggregate(start grade.Start, tasks []domain.TaskOutcome, theory []domain.TheoryOutcome) domain.FinalGradeReport {
	codingScore := c.CodingScore(tasks)
	theoryScore := c.ScoreTheory(theory)

	overall := c.cfg.Aggregate.CodingWeight*codingScore +
		c.cfg.Aggregate.TheoryWeight*theoryScore

	perfTier := c.PerformanceTier(overall)

	weighted := c.cfg.Aggregate.PerformanceWeight*float64(perfTier) +
		c.cfg.Aggregate.ExperienceWeight*float64(start.ExperienceTier) +
		c.cfg.Aggregate.SelfWeight*float64(start.SelfTier)
	finalTier := domain.ProficiencyTier(int(math.Round(weighted))).Clamp()

	answered := 0
	for _, o := range theory {
		if !o.Skipped {
			answered++
		}
	}

	return domain.FinalGradeReport{
		CodingScore:     codingScore,
		TheoryScore:     theoryScore,
		OverallScore:    overall,
		ExperienceTier:  start.ExperienceTier,
		SelfTier:        start.SelfTier,
		PerformanceTier: perfTier,
		FinalTier:       finalTier,
		Track:           start.Track,
		TasksScored:     len(tasks),
		TheoryScored:    answered,
		Progress:        c.progress(finalTier, overall),
		FinalizedAt:     time.Now().UTC(),
	}
}

// CodingScore normalizes the sum of weighted unit scores by the sum of
// weights onto a 0-100 scale. No attempted tasks means 0.
func (c *Calculator) CodingScore(tasks []domain.TaskOutcome) float64 {
	var sumUnits, sumWeights float64
	for _, outcome := range tasks {
		score := c.ScoreTask(outcome)
		sumUnits += score.UnitScore
		sumWeights += score.Weight
	}

	if sumWeights == 0 {
		return 0
	}

	score := 100 * sumUnits / sumWeights
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// PerformanceTier bands an overall score onto the tier scale using the
// configured bounds. Scores below the first bound map to the lowest tier.
func (c *Calculator) PerformanceTier(score float64) domain.ProficiencyTier {
	tier := domain.TierJunior
	for i, bound := range c.cfg.Aggregate.ScoreBands {
		if score >= bound {
			tier = domain.ProficiencyTier(i + 1)
		}
	}
	return tier.Clamp()
}

// progress reports where the overall score sits inside the final tier's
// band. The top tier is always 100% with nothing left to earn.
func (c *Calculator) progress(tier domain.ProficiencyTier, score float64) domain.GradeProgress {
	bands := c.cfg.Aggregate.ScoreBands
	bounds := []float64{0, bands[0], bands[1], bands[2], bands[3], 100}

	if tier >= domain.MaxTier {
		return domain.GradeProgress{
			CurrentTier:     domain.MaxTier,
			NextTier:        domain.MaxTier,
			ProgressPercent: 100,
		}
	}

	lower := bounds[int(tier)]
	upper := bounds[int(tier)+1]
	percent := 100 * (score - lower) / (upper - lower)
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	pointsToNext := upper - score
	if pointsToNext < 0 {
		pointsToNext = 0
	}

	return domain.GradeProgress{
		CurrentTier:     tier,
		NextTier:        (tier + 1).Clamp(),
		ProgressPercent: percent,
		PointsToNext:    pointsToNext,
	}
}
