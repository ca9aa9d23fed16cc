// Package grade resolves a candidate's starting proficiency tier and
// technical track from stated and inferred evidence. Every function here
// is pure and total: malformed input clamps to a defined boundary rather
// than failing, because session setup must always produce a tier.
package grade

import (
	"math"

	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/domain"
)

// Resolver turns candidate signals into a starting tier and track.
type Resolver struct {
	cfg config.ResolverConfig
}

// NewResolver creates a resolver with the given thresholds.
func NewResolver(cfg config.ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Start holds the resolver's output for one session.
type Start struct {
	Tier           domain.ProficiencyTier
	Track          domain.Track
	ExperienceTier domain.ProficiencyTier
	SelfTier       domain.ProficiencyTier
	ResumeTier     domain.ProficiencyTier
}

// Resolve computes the starting tier and track for a candidate.
func (r *Resolver) Resolve(signals domain.CandidateSignals) Start {
	expTier := r.ExperienceTier(signals.YearsOfExperience)

	// Never downgrade a candidate based on a possibly conservative resume
	// summary: the effective self component is the max of the declared tier
	// and the resume-derived one. Absent a resume tier, the resume component
	// falls back to the self component.
	selfTier := signals.SelfDeclaredTier.Clamp()
	resumeTier := selfTier
	if signals.ResumeTier != nil {
		resumeTier = signals.ResumeTier.Clamp()
		if resumeTier > selfTier {
			selfTier = resumeTier
		}
	}

	weighted := r.cfg.ExperienceWeight*float64(expTier) +
		r.cfg.SelfWeight*float64(selfTier) +
		r.cfg.ResumeWeight*float64(resumeTier)

	return Start{
		Tier:           roundTier(weighted),
		Track:          r.ResolveTrack(signals),
		ExperienceTier: expTier,
		SelfTier:       selfTier,
		ResumeTier:     resumeTier,
	}
}

// ExperienceTier maps years of experience onto the tier scale using the
// configured band bounds. Negative input maps to the lowest tier.
func (r *Resolver) ExperienceTier(years float64) domain.ProficiencyTier {
	tier := domain.TierJunior
	for i, bound := range r.cfg.ExperienceBands {
		if years >= bound {
			tier = domain.ProficiencyTier(i + 1)
		}
	}
	return tier.Clamp()
}

// roundTier rounds a weighted tier average half away from zero and clamps
// it into the valid ordinal range. math.Round is half-away-from-zero, so
// 1.5 promotes to 2 while 1.49 stays at 1.
func roundTier(v float64) domain.ProficiencyTier {
	return domain.ProficiencyTier(int(math.Round(v))).Clamp()
}
