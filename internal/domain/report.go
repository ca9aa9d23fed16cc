package domain

import "time"

// TrustStatus bands a trust score into a human judgment.
type TrustStatus string

const (
	TrustOK         TrustStatus = "ok"
	TrustSuspicious TrustStatus = "suspicious"
	TrustHighRisk   TrustStatus = "high_risk"
)

// TrustAssessment is the behavioral-integrity estimate derived from the
// event ledger. It is never persisted as ground truth: recomputing from
// the same ledger always yields the same assessment.
type TrustAssessment struct {
	Score   int         `json:"score"`
	Status  TrustStatus `json:"status"`
	Reasons []string    `json:"reasons"`
}

// GradeProgress describes how far the overall score sits inside the
// current tier's band and what it would take to reach the next one.
type GradeProgress struct {
	CurrentTier     ProficiencyTier `json:"current_tier"`
	NextTier        ProficiencyTier `json:"next_tier"`
	ProgressPercent float64         `json:"progress_percent"`
	PointsToNext    float64         `json:"points_to_next"`
}

// FinalGradeReport is the immutable result of grading a completed
// session. A session is graded exactly once and never re-graded.
type FinalGradeReport struct {
	SessionID string `json:"session_id"`

	CodingScore  float64 `json:"coding_score"`
	TheoryScore  float64 `json:"theory_score"`
	OverallScore float64 `json:"overall_score"`

	ExperienceTier  ProficiencyTier `json:"experience_tier"`
	SelfTier        ProficiencyTier `json:"self_tier"`
	PerformanceTier ProficiencyTier `json:"performance_tier"`
	FinalTier       ProficiencyTier `json:"final_tier"`
	Track           Track           `json:"track"`

	TasksScored  int `json:"tasks_scored"`
	TheoryScored int `json:"theory_scored"`

	Progress    GradeProgress `json:"progress"`
	FinalizedAt time.Time     `json:"finalized_at"`
}
