package domain

// ProficiencyTier is an ordinal proficiency level on a fixed five-point scale.
// The zero value is the lowest tier.
type ProficiencyTier int

const (
	TierJunior ProficiencyTier = iota
	TierJuniorPlus
	TierMiddle
	TierMiddlePlus
	TierSenior

	// MaxTier is the highest valid tier ordinal.
	MaxTier = TierSenior
)

var tierLabels = map[ProficiencyTier]string{
	TierJunior:     "junior",
	TierJuniorPlus: "junior_plus",
	TierMiddle:     "middle",
	TierMiddlePlus: "middle_plus",
	TierSenior:     "senior",
}

var tierByLabel = map[string]ProficiencyTier{
	"junior":       TierJunior,
	"junior_plus":  TierJuniorPlus,
	"middle_minus": TierJuniorPlus,
	"middle":       TierMiddle,
	"middle_plus":  TierMiddlePlus,
	"senior_minus": TierMiddlePlus,
	"senior":       TierSenior,
	"intern":       TierJunior,
	"trainee":      TierJunior,
}

// String returns the canonical label for the tier.
func (t ProficiencyTier) String() string {
	return tierLabels[t.Clamp()]
}

// Clamp snaps the tier into the valid ordinal range [0, MaxTier].
func (t ProficiencyTier) Clamp() ProficiencyTier {
	if t < TierJunior {
		return TierJunior
	}
	if t > MaxTier {
		return MaxTier
	}
	return t
}

// ParseTier resolves a tier label, accepting legacy aliases such as
// "intern" or "middle-minus". Unknown labels resolve to middle.
func ParseTier(label string) ProficiencyTier {
	if t, ok := tierByLabel[normalizeLabel(label)]; ok {
		return t
	}
	return TierMiddle
}

// Track is a candidate's technical discipline, resolved once per session.
type Track string

const (
	TrackBackend   Track = "backend"
	TrackFrontend  Track = "frontend"
	TrackFullstack Track = "fullstack"
	TrackData      Track = "data"
	TrackDevOps    Track = "devops"
	TrackMobile    Track = "mobile"
	TrackOther     Track = "other"
)

// KnownTracks lists every resolvable track.
var KnownTracks = []Track{
	TrackBackend, TrackFrontend, TrackFullstack,
	TrackData, TrackDevOps, TrackMobile, TrackOther,
}

// ParseTrack resolves a track label. The boolean reports whether the
// label named a known track.
func ParseTrack(label string) (Track, bool) {
	t := Track(normalizeLabel(label))
	for _, known := range KnownTracks {
		if t == known {
			return t, true
		}
	}
	return TrackOther, false
}
