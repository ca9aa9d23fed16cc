package judge

import (
	"context"
	"strings"
)

// KeywordJudge grades answers by keyword presence. It is the fallback
// when no external judge is configured: blunt, but deterministic.
type KeywordJudge struct{}

// NewKeywordJudge creates the keyword-matching fallback judge.
func NewKeywordJudge() *KeywordJudge {
	return &KeywordJudge{}
}

func (j *KeywordJudge) Name() string { return "keyword" }

// GradeAnswer scores by how many expected keywords the answer mentions:
// none gives 0, all give 1, anything in between gives 0.5. An answer
// with no keywords to check grades as fully correct.
func (j *KeywordJudge) GradeAnswer(_ context.Context, req AnswerRequest) (float64, error) {
	if len(req.Keywords) == 0 {
		return 1, nil
	}

	answer := strings.ToLower(req.Answer)
	hits := 0
	for _, keyword := range req.Keywords {
		if strings.Contains(answer, strings.ToLower(keyword)) {
			hits++
		}
	}

	switch {
	case hits == 0:
		return 0, nil
	case hits == len(req.Keywords):
		return 1, nil
	default:
		return 0.5, nil
	}
}
