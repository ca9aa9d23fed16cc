package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPJudge grades theory answers against an external judging service.
type HTTPJudge struct {
	baseURL string
	client  *http.Client
}

// NewHTTPJudge creates a judge client for the given base URL.
func NewHTTPJudge(baseURL string) *HTTPJudge {
	return &HTTPJudge{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (j *HTTPJudge) Name() string { return "http" }

type gradeResponse struct {
	Correctness float64 `json:"correctness"`
}

// GradeAnswer posts the answer to the judging service and returns the
// correctness it reports, clamped into [0,1].
func (j *HTTPJudge) GradeAnswer(ctx context.Context, req AnswerRequest) (float64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal grade request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		j.baseURL+"/v1/grade", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create grade request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("grade answer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("judge returned status %d: %s", resp.StatusCode, body)
	}

	var graded gradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&graded); err != nil {
		return 0, fmt.Errorf("decode grade response: %w", err)
	}
	return clamp01(graded.Correctness), nil
}

// OriginalityClient queries the originality service for a similarity
// score of submitted code against known solutions.
type OriginalityClient struct {
	baseURL string
	client  *http.Client
}

// NewOriginalityClient creates an originality client for the given base URL.
func NewOriginalityClient(baseURL string) *OriginalityClient {
	return &OriginalityClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type originalityRequest struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	Code      string `json:"code"`
}

type originalityResponse struct {
	Score float64 `json:"score"`
}

// Check returns the similarity score 0-100 for the submitted code.
func (c *OriginalityClient) Check(ctx context.Context, sessionID, taskID, code string) (float64, error) {
	body, err := json.Marshal(originalityRequest{
		SessionID: sessionID,
		TaskID:    taskID,
		Code:      code,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal originality request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/originality", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create originality request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("check originality: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("originality service returned status %d: %s", resp.StatusCode, body)
	}

	var checked originalityResponse
	if err := json.NewDecoder(resp.Body).Decode(&checked); err != nil {
		return 0, fmt.Errorf("decode originality response: %w", err)
	}

	score := checked.Score
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
