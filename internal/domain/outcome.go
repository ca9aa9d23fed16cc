package domain

import "time"

// Difficulty is the tier a task is attempted at.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMiddle Difficulty = "middle"
	DifficultyHard   Difficulty = "hard"
)

// Weight returns the fixed scoring weight for the difficulty.
func (d Difficulty) Weight() float64 {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMiddle:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

// ParseDifficulty resolves a difficulty label, folding the legacy
// "medium" spelling into middle. Unknown labels resolve to middle.
func ParseDifficulty(label string) Difficulty {
	switch normalizeLabel(label) {
	case "easy":
		return DifficultyEasy
	case "middle", "medium":
		return DifficultyMiddle
	case "hard":
		return DifficultyHard
	default:
		return DifficultyMiddle
	}
}

// FinalizeReason records how a task attempt ended.
type FinalizeReason string

const (
	FinalizedSubmitted FinalizeReason = "submitted"
	FinalizedSkipped   FinalizeReason = "skipped"
	FinalizedTimedOut  FinalizeReason = "timed_out"
)

// TaskOutcome is one immutable record of a finalized task attempt.
// Outcomes live in the session's append-only ledger; insertion order is
// chronological and entries are never reordered or deleted.
type TaskOutcome struct {
	TaskID     string         `json:"task_id"`
	Difficulty Difficulty     `json:"difficulty"`
	Reason     FinalizeReason `json:"reason"`

	VisiblePassed int `json:"visible_passed"`
	VisibleTotal  int `json:"visible_total"`
	HiddenPassed  int `json:"hidden_passed"`
	HiddenTotal   int `json:"hidden_total"`

	HintsSoft   int `json:"hints_soft"`
	HintsMedium int `json:"hints_medium"`
	HintsHard   int `json:"hints_hard"`

	Elapsed    time.Duration `json:"elapsed"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// VisibleRate is the fraction of visible checks passed, with 0/0 treated
// as 0 and the result clamped into [0,1] to guard malformed counts.
func (o TaskOutcome) VisibleRate() float64 {
	return safeRate(o.VisiblePassed, o.VisibleTotal)
}

// TotalRate is the fraction of all checks passed across both visibility
// classes, guarded the same way as VisibleRate.
func (o TaskOutcome) TotalRate() float64 {
	return safeRate(o.VisiblePassed+o.HiddenPassed, o.VisibleTotal+o.HiddenTotal)
}

func safeRate(passed, total int) float64 {
	if total <= 0 || passed <= 0 {
		return 0
	}
	r := float64(passed) / float64(total)
	if r > 1 {
		return 1
	}
	return r
}

// TheoryOutcome is one immutable record of an answered or skipped theory
// question. Correctness arrives pre-judged in [0,1] from the external
// judging collaborator.
type TheoryOutcome struct {
	QuestionID  string    `json:"question_id"`
	Correctness float64   `json:"correctness"`
	Skipped     bool      `json:"skipped"`
	RecordedAt  time.Time `json:"recorded_at"`
}
