package domain

import "strings"

// CandidateSignals holds everything known about a candidate before adaptive
// scoring begins. Built once at session start and never mutated afterward.
type CandidateSignals struct {
	YearsOfExperience float64         `json:"years_of_experience"`
	SelfDeclaredTier  ProficiencyTier `json:"self_declared_tier"`

	// ResumeTier is an externally derived tier from resume parsing.
	// Nil when no resume was supplied or parsing produced nothing.
	ResumeTier *ProficiencyTier `json:"resume_tier,omitempty"`

	// DeclaredTrack is the track the candidate picked themselves.
	DeclaredTrack string `json:"declared_track,omitempty"`

	// ResumeTracks are track suggestions from the external resume parser,
	// in descending confidence order.
	ResumeTracks []string `json:"resume_tracks,omitempty"`

	// ResumeSummary is free text used for keyword-evidence track matching.
	ResumeSummary string `json:"resume_summary,omitempty"`
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
