package domain

import "testing"

func TestProficiencyTier_Clamp(t *testing.T) {
	tests := []struct {
		name string
		in   ProficiencyTier
		want ProficiencyTier
	}{
		{"negative", ProficiencyTier(-3), TierJunior},
		{"lowest", TierJunior, TierJunior},
		{"middle", TierMiddle, TierMiddle},
		{"highest", TierSenior, TierSenior},
		{"above max", ProficiencyTier(9), TierSenior},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamp(); got != tt.want {
				t.Errorf("Clamp(%d) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		label string
		want  ProficiencyTier
	}{
		{"junior", TierJunior},
		{"Junior_Plus", TierJuniorPlus},
		{"middle-minus", TierJuniorPlus},
		{"middle", TierMiddle},
		{"senior minus", TierMiddlePlus},
		{"senior", TierSenior},
		{"intern", TierJunior},
		{"", TierMiddle},
		{"staff", TierMiddle},
	}

	for _, tt := range tests {
		if got := ParseTier(tt.label); got != tt.want {
			t.Errorf("ParseTier(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}

func TestParseTrack(t *testing.T) {
	if tr, ok := ParseTrack("Backend"); !ok || tr != TrackBackend {
		t.Errorf("ParseTrack(Backend) = %v, %v", tr, ok)
	}
	if tr, ok := ParseTrack("gamedev"); ok || tr != TrackOther {
		t.Errorf("unknown track should resolve to other, got %v, %v", tr, ok)
	}
}

func TestTaskOutcome_Rates(t *testing.T) {
	tests := []struct {
		name        string
		outcome     TaskOutcome
		wantVisible float64
		wantTotal   float64
	}{
		{
			name:        "zero totals",
			outcome:     TaskOutcome{},
			wantVisible: 0,
			wantTotal:   0,
		},
		{
			name:        "all passed",
			outcome:     TaskOutcome{VisiblePassed: 5, VisibleTotal: 5, HiddenPassed: 4, HiddenTotal: 4},
			wantVisible: 1,
			wantTotal:   1,
		},
		{
			name:        "partial hidden",
			outcome:     TaskOutcome{VisiblePassed: 5, VisibleTotal: 5, HiddenPassed: 3, HiddenTotal: 4},
			wantVisible: 1,
			wantTotal:   8.0 / 9.0,
		},
		{
			name:        "passed exceeds total clamps to one",
			outcome:     TaskOutcome{VisiblePassed: 7, VisibleTotal: 5},
			wantVisible: 1,
			wantTotal:   1,
		},
		{
			name:        "negative counts treated as zero",
			outcome:     TaskOutcome{VisiblePassed: -2, VisibleTotal: 5},
			wantVisible: 0,
			wantTotal:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.VisibleRate(); !floatEq(got, tt.wantVisible) {
				t.Errorf("VisibleRate() = %v, want %v", got, tt.wantVisible)
			}
			if got := tt.outcome.TotalRate(); !floatEq(got, tt.wantTotal) {
				t.Errorf("TotalRate() = %v, want %v", got, tt.wantTotal)
			}
		})
	}
}

func TestBehavioralEvent_DecodeMeta(t *testing.T) {
	ev := BehavioralEvent{Meta: []byte(`{"length": 320, "visible": false}`)}
	m := ev.DecodeMeta()
	if m.Length == nil || *m.Length != 320 {
		t.Errorf("Length = %v, want 320", m.Length)
	}
	if m.Visible == nil || *m.Visible {
		t.Errorf("Visible = %v, want false", m.Visible)
	}

	// Malformed meta must not panic and decodes to zero meta.
	bad := BehavioralEvent{Meta: []byte(`{not json`)}
	if m := bad.DecodeMeta(); m.Length != nil {
		t.Errorf("malformed meta should decode to zero value, got %+v", m)
	}
}

func floatEq(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
