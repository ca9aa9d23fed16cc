// Package judge grades free-text theory answers and checks code
// originality. Grading itself is delegated to external collaborators
// over HTTP; a keyword matcher serves as the offline fallback.
package judge

import "context"

// AnswerRequest is one theory answer to grade.
type AnswerRequest struct {
	QuestionID string   `json:"question_id"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Keywords   []string `json:"keywords,omitempty"`
}

// Judge grades a theory answer to a correctness in [0,1].
type Judge interface {
	// Name identifies the judge in logs.
	Name() string

	// GradeAnswer returns the answer's correctness in [0,1].
	GradeAnswer(ctx context.Context, req AnswerRequest) (float64, error)
}

// clamp01 bounds a grade into the correctness range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
