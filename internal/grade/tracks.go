package grade

import (
	"strings"

	"github.com/provelo/assay/internal/domain"
)

// trackKeywords is the fixed evidence vocabulary per track. Matching is
// case-insensitive substring search over the resume summary.
var trackKeywords = map[domain.Track][]string{
	domain.TrackBackend: {
		"python", "java", "spring", "fastapi", "django", "flask",
		"rest", "api", "sql", "postgres", "mysql", "mongodb",
		"node", "express", "golang", "rust", "backend",
	},
	domain.TrackFrontend: {
		"javascript", "typescript", "react", "vue", "angular",
		"css", "html", "sass", "webpack", "vite", "frontend",
		"ui", "ux", "dom", "browser",
	},
	domain.TrackFullstack: {
		"fullstack", "full-stack", "full stack", "mern", "mean",
		"lamp", "jamstack",
	},
	domain.TrackData: {
		"data", "ml", "machine learning", "pandas", "numpy",
		"tensorflow", "pytorch", "sklearn", "jupyter", "analytics",
		"bigdata", "spark", "hadoop",
	},
	domain.TrackDevOps: {
		"devops", "docker", "kubernetes", "k8s", "ci/cd", "jenkins",
		"gitlab", "terraform", "ansible", "aws", "azure", "gcp",
		"cloud", "infrastructure",
	},
	domain.TrackMobile: {
		"mobile", "ios", "android", "swift", "kotlin", "react native",
		"flutter", "xamarin", "app store", "play store",
	},
}

// keywordOrder fixes the iteration order so ties resolve deterministically.
var keywordOrder = []domain.Track{
	domain.TrackBackend, domain.TrackFrontend, domain.TrackFullstack,
	domain.TrackData, domain.TrackDevOps, domain.TrackMobile,
}

// ResolveTrack picks the candidate's track: the first non-empty declared
// source wins (candidate's own choice, then external resume suggestions),
// falling back to keyword evidence in the resume summary, then backend.
func (r *Resolver) ResolveTrack(signals domain.CandidateSignals) domain.Track {
	if t, ok := domain.ParseTrack(signals.DeclaredTrack); ok {
		return t
	}

	for _, suggestion := range signals.ResumeTracks {
		if t, ok := domain.ParseTrack(suggestion); ok {
			return t
		}
	}

	if t, ok := matchKeywords(signals.ResumeSummary); ok {
		return t
	}

	return domain.TrackBackend
}

func matchKeywords(summary string) (domain.Track, bool) {
	if summary == "" {
		return "", false
	}
	lower := strings.ToLower(summary)

	best := domain.Track("")
	bestHits := 0
	for _, track := range keywordOrder {
		hits := 0
		for _, kw := range trackKeywords[track] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = track
			bestHits = hits
		}
	}

	return best, bestHits > 0
}
