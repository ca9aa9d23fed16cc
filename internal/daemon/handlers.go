package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/judge"
	"github.com/provelo/assay/internal/session"
)

type createSessionRequest struct {
	YearsOfExperience float64  `json:"years_of_experience"`
	SelfDeclaredTier  string   `json:"self_declared_tier"`
	ResumeTier        *string  `json:"resume_tier,omitempty"`
	DeclaredTrack     string   `json:"declared_track,omitempty"`
	ResumeTracks      []string `json:"resume_tracks,omitempty"`
	ResumeSummary     string   `json:"resume_summary,omitempty"`
}

type startView struct {
	Tier           string `json:"tier"`
	Track          string `json:"track"`
	ExperienceTier string `json:"experience_tier"`
	SelfTier       string `json:"self_tier"`
	ResumeTier     string `json:"resume_tier"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Difficulty string    `json:"difficulty"`
	Start      startView `json:"start"`
	Tasks      int       `json:"tasks_recorded"`
	Theory     int       `json:"theory_recorded"`
	Events     int       `json:"events_recorded"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func sessionView(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:         sess.ID,
		Status:     string(sess.Status),
		Difficulty: string(sess.Difficulty),
		Start: startView{
			Tier:           sess.Start.Tier.String(),
			Track:          string(sess.Start.Track),
			ExperienceTier: sess.Start.ExperienceTier.String(),
			SelfTier:       sess.Start.SelfTier.String(),
			ResumeTier:     sess.Start.ResumeTier.String(),
		},
		Tasks:     len(sess.Tasks),
		Theory:    len(sess.Theory),
		Events:    len(sess.Events),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	signals := domain.CandidateSignals{
		YearsOfExperience: req.YearsOfExperience,
		SelfDeclaredTier:  domain.ParseTier(req.SelfDeclaredTier),
		DeclaredTrack:     req.DeclaredTrack,
		ResumeTracks:      req.ResumeTracks,
		ResumeSummary:     req.ResumeSummary,
	}
	if req.ResumeTier != nil {
		tier := domain.ParseTier(*req.ResumeTier)
		signals.ResumeTier = &tier
	}

	sess, err := s.sessions.Create(r.Context(), signals)
	if err != nil {
		s.serviceError(w, "failed to create session", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sessionView(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to get session", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sessionView(sess))
}

type recordTaskRequest struct {
	TaskID        string  `json:"task_id"`
	Difficulty    string  `json:"difficulty"`
	Reason        string  `json:"reason"`
	VisiblePassed int     `json:"visible_passed"`
	VisibleTotal  int     `json:"visible_total"`
	HiddenPassed  int     `json:"hidden_passed"`
	HiddenTotal   int     `json:"hidden_total"`
	HintsSoft     int     `json:"hints_soft"`
	HintsMedium   int     `json:"hints_medium"`
	HintsHard     int     `json:"hints_hard"`
	ElapsedSec    float64 `json:"elapsed_sec"`
	RequestedNext bool    `json:"requested_next"`
}

func (s *Server) handleRecordTask(w http.ResponseWriter, r *http.Request) {
	var req recordTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TaskID == "" {
		s.jsonError(w, http.StatusBadRequest, "task_id is required", nil)
		return
	}

	outcome := domain.TaskOutcome{
		TaskID:        req.TaskID,
		Difficulty:    domain.ParseDifficulty(req.Difficulty),
		Reason:        domain.FinalizeReason(req.Reason),
		VisiblePassed: req.VisiblePassed,
		VisibleTotal:  req.VisibleTotal,
		HiddenPassed:  req.HiddenPassed,
		HiddenTotal:   req.HiddenTotal,
		HintsSoft:     req.HintsSoft,
		HintsMedium:   req.HintsMedium,
		HintsHard:     req.HintsHard,
		Elapsed:       time.Duration(req.ElapsedSec * float64(time.Second)),
	}
	if outcome.Reason == "" {
		outcome.Reason = domain.FinalizedSubmitted
	}

	next, err := s.sessions.RecordTask(r.Context(), r.PathValue("id"), outcome, req.RequestedNext)
	if err != nil {
		s.serviceError(w, "failed to record task outcome", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"next_difficulty": string(next),
	})
}

type recordTheoryRequest struct {
	QuestionID  string   `json:"question_id"`
	Question    string   `json:"question,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Correctness *float64 `json:"correctness,omitempty"`
	Skipped     bool     `json:"skipped"`
}

// handleRecordTheory records a theory outcome. Pre-judged submissions
// carry a correctness; free-text answers go through the theory judge.
func (s *Server) handleRecordTheory(w http.ResponseWriter, r *http.Request) {
	var req recordTheoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.QuestionID == "" {
		s.jsonError(w, http.StatusBadRequest, "question_id is required", nil)
		return
	}

	outcome := domain.TheoryOutcome{
		QuestionID: req.QuestionID,
		Skipped:    req.Skipped,
	}
	switch {
	case req.Skipped:
		// skipped answers never reach the judge
	case req.Correctness != nil:
		outcome.Correctness = *req.Correctness
	default:
		correctness, err := s.theoryJudge.GradeAnswer(r.Context(), judge.AnswerRequest{
			QuestionID: req.QuestionID,
			Question:   req.Question,
			Answer:     req.Answer,
			Keywords:   req.Keywords,
		})
		if err != nil {
			s.jsonError(w, http.StatusBadGateway, "failed to grade answer", err)
			return
		}
		outcome.Correctness = correctness
	}

	if err := s.sessions.RecordTheory(r.Context(), r.PathValue("id"), outcome); err != nil {
		s.serviceError(w, "failed to record theory outcome", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"question_id": outcome.QuestionID,
		"correctness": outcome.Correctness,
		"skipped":     outcome.Skipped,
	})
}

type recordEventRequest struct {
	TaskID     string          `json:"task_id,omitempty"`
	Type       string          `json:"type"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Type == "" {
		s.jsonError(w, http.StatusBadRequest, "type is required", nil)
		return
	}

	event := domain.BehavioralEvent{
		TaskID:     req.TaskID,
		Type:       domain.EventType(req.Type),
		Meta:       req.Meta,
		OccurredAt: req.OccurredAt,
	}
	if err := s.sessions.RecordEvent(r.Context(), r.PathValue("id"), event); err != nil {
		s.serviceError(w, "failed to record event", err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]any{
		"accepted": true,
	})
}

type originalityRequest struct {
	TaskID string `json:"task_id"`
	Code   string `json:"code"`
}

// handleCheckOriginality runs submitted code through the originality
// service and stores the result as an originality event on the ledger.
func (s *Server) handleCheckOriginality(w http.ResponseWriter, r *http.Request) {
	if s.originality == nil {
		s.jsonError(w, http.StatusNotImplemented, "originality service not configured", nil)
		return
	}

	var req originalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	id := r.PathValue("id")
	score, err := s.originality.Check(r.Context(), id, req.TaskID, req.Code)
	if err != nil {
		s.jsonError(w, http.StatusBadGateway, "originality check failed", err)
		return
	}

	meta, _ := json.Marshal(map[string]float64{"score": score})
	event := domain.BehavioralEvent{
		TaskID: req.TaskID,
		Type:   domain.EventOriginality,
		Meta:   meta,
	}
	if err := s.sessions.RecordEvent(r.Context(), id, event); err != nil {
		s.serviceError(w, "failed to record originality event", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"score": score,
	})
}

func (s *Server) handleGetTrust(w http.ResponseWriter, r *http.Request) {
	assessment, err := s.sessions.Trust(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to assess trust", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, assessment)
}

type reportResponse struct {
	domain.FinalGradeReport
	FinalTierLabel       string `json:"final_tier_label"`
	PerformanceTierLabel string `json:"performance_tier_label"`
}

func reportView(report domain.FinalGradeReport) reportResponse {
	return reportResponse{
		FinalGradeReport:     report,
		FinalTierLabel:       report.FinalTier.String(),
		PerformanceTierLabel: report.PerformanceTier.String(),
	}
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	report, err := s.sessions.Finalize(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to finalize session", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, reportView(report))
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.sessions.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to get report", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, reportView(report))
}
