package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scoring centralizes every threshold and weight the engine applies.
// Tuning a threshold is a one-place change here, verified by the property
// tests next to each calculator.
type Scoring struct {
	Resolver  ResolverConfig  `yaml:"resolver"`
	Adaptive  AdaptiveConfig  `yaml:"adaptive"`
	Task      TaskConfig      `yaml:"task"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Trust     TrustConfig     `yaml:"trust"`
}

// ResolverConfig holds start-tier resolution parameters.
type ResolverConfig struct {
	// ExperienceBands are the lower bounds, in years, of tiers 1..4.
	// Experience below the first bound maps to the lowest tier.
	ExperienceBands [4]float64 `yaml:"experience_bands"`

	ExperienceWeight float64 `yaml:"experience_weight"`
	SelfWeight       float64 `yaml:"self_weight"`
	ResumeWeight     float64 `yaml:"resume_weight"`
}

// AdaptiveConfig holds difficulty transition thresholds.
type AdaptiveConfig struct {
	StrongPassTotalRate      float64 `yaml:"strong_pass_total_rate"`      // easy/middle
	StrongPassTotalRateHard  float64 `yaml:"strong_pass_total_rate_hard"` // hard
	StrongPassMaxMediumHints int     `yaml:"strong_pass_max_medium_hints"`
	FailVisibleRate          float64 `yaml:"fail_visible_rate"`
	FailTotalRate            float64 `yaml:"fail_total_rate"`
}

// TaskConfig holds per-task scoring parameters.
type TaskConfig struct {
	SoftHintPenalty   float64 `yaml:"soft_hint_penalty"`
	MediumHintPenalty float64 `yaml:"medium_hint_penalty"`
	HardHintPenalty   float64 `yaml:"hard_hint_penalty"`
	MaxHintPenalty    float64 `yaml:"max_hint_penalty"`
}

// AggregateConfig holds final-grade aggregation parameters.
type AggregateConfig struct {
	CodingWeight float64 `yaml:"coding_weight"`
	TheoryWeight float64 `yaml:"theory_weight"`

	// ScoreBands are the lower bounds, on the 0-100 overall score axis,
	// of performance tiers 1..4.
	ScoreBands [4]float64 `yaml:"score_bands"`

	PerformanceWeight float64 `yaml:"performance_weight"`
	ExperienceWeight  float64 `yaml:"experience_weight"`
	SelfWeight        float64 `yaml:"self_weight"`
}

// TrustConfig holds anti-cheat thresholds and penalties.
type TrustConfig struct {
	BigPasteChars     int     `yaml:"big_paste_chars"`
	LongBlurSeconds   float64 `yaml:"long_blur_seconds"`
	FastSolveSeconds  float64 `yaml:"fast_solve_seconds"`
	FastSolveCoverage float64 `yaml:"fast_solve_coverage"`

	BigPastePenalty          int     `yaml:"big_paste_penalty"`
	BigPasteCap              int     `yaml:"big_paste_cap"`
	BlurPastePenalty         int     `yaml:"blur_paste_penalty"`
	FastSolvePenalty         int     `yaml:"fast_solve_penalty"`
	FastSolveCap             int     `yaml:"fast_solve_cap"`
	ToolOpenPenalty          int     `yaml:"tool_open_penalty"`
	OriginalityHigh          float64 `yaml:"originality_high"`
	OriginalityMedium        float64 `yaml:"originality_medium"`
	OriginalityHighPenalty   int     `yaml:"originality_high_penalty"`
	OriginalityMediumPenalty int     `yaml:"originality_medium_penalty"`

	OKThreshold         int `yaml:"ok_threshold"`
	SuspiciousThreshold int `yaml:"suspicious_threshold"`
}

// DefaultScoring returns the production scoring constants.
func DefaultScoring() Scoring {
	return Scoring{
		Resolver: ResolverConfig{
			ExperienceBands:  [4]float64{0.5, 1.5, 3.5, 6},
			ExperienceWeight: 0.5,
			SelfWeight:       0.3,
			ResumeWeight:     0.2,
		},
		Adaptive: AdaptiveConfig{
			StrongPassTotalRate:      0.9,
			StrongPassTotalRateHard:  0.75,
			StrongPassMaxMediumHints: 1,
			FailVisibleRate:          0.6,
			FailTotalRate:            0.5,
		},
		Task: TaskConfig{
			SoftHintPenalty:   0.10,
			MediumHintPenalty: 0.20,
			HardHintPenalty:   0.35,
			MaxHintPenalty:    0.7,
		},
		Aggregate: AggregateConfig{
			CodingWeight:      0.7,
			TheoryWeight:      0.3,
			ScoreBands:        [4]float64{30, 50, 70, 85},
			PerformanceWeight: 0.6,
			ExperienceWeight:  0.25,
			SelfWeight:        0.15,
		},
		Trust: TrustConfig{
			BigPasteChars:            150,
			LongBlurSeconds:          60,
			FastSolveSeconds:         60,
			FastSolveCoverage:        0.8,
			BigPastePenalty:          10,
			BigPasteCap:              3,
			BlurPastePenalty:         15,
			FastSolvePenalty:         15,
			FastSolveCap:             2,
			ToolOpenPenalty:          10,
			OriginalityHigh:          80,
			OriginalityMedium:        60,
			OriginalityHighPenalty:   25,
			OriginalityMediumPenalty: 10,
			OKThreshold:              80,
			SuspiciousThreshold:      50,
		},
	}
}

// LoadScoring reads a scoring config from a YAML file, starting from the
// defaults so a partial file only overrides what it names.
func LoadScoring(path string) (Scoring, error) {
	s := DefaultScoring()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read scoring config: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse scoring config: %w", err)
	}
	return s, nil
}
