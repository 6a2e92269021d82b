package verify

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		t.Errorf("Sum() = %v, want 1.0", w.Sum())
	}
}

func TestVerdictBoundaries(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Verdict
	}{
		{1.0, VerdictVerified},
		{0.85, VerdictVerified},
		{0.8499, VerdictUncertain},
		{0.775, VerdictUncertain},
		{0.60, VerdictUncertain},
		{0.5999, VerdictRejected},
		{0.0, VerdictRejected},
	}

	for _, tt := range tests {
		if got := VerdictFor(tt.confidence); got != tt.want {
			t.Errorf("VerdictFor(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestCompositeKnownScenario(t *testing.T) {
	// Perfect geofence and authenticity with a judge absent (neutral 0.5
	// defaults) lands at 0.775, in the uncertain band.
	scores := ComponentScores{
		Geofence:         1.0,
		Authenticity:     1.0,
		VisualSceneMatch: 0.5,
		QuestMatch:       0.5,
		SceneRelevance:   0.5,
	}

	got := Composite(scores, nil)
	if math.Abs(got-0.775) > 1e-9 {
		t.Errorf("Composite() = %v, want 0.775", got)
	}
	if VerdictFor(got) != VerdictUncertain {
		t.Errorf("VerdictFor(%v) = %v, want uncertain", got, VerdictFor(got))
	}
}

func TestCompositeStaysInRange(t *testing.T) {
	// Weighted sum of clamped components with weights summing to 1.0 must
	// itself stay in [0, 1].
	values := []float64{0.0, 0.25, 0.5, 0.75, 1.0}
	for _, g := range values {
		for _, a := range values {
			for _, v := range values {
				scores := ComponentScores{
					Geofence:         g,
					Authenticity:     a,
					VisualSceneMatch: v,
					QuestMatch:       v,
					SceneRelevance:   v,
				}
				got := Composite(scores, nil)
				if got < 0 || got > 1 {
					t.Fatalf("Composite(%+v) = %v, out of [0,1]", scores, got)
				}
			}
		}
	}
}

func TestMergeCalibrationPartialOverride(t *testing.T) {
	merged := MergeCalibration(DefaultWeights(), &Weights{Geofence: 0.5})
	if merged.Geofence != 0.5 {
		t.Errorf("Geofence = %v, want 0.5", merged.Geofence)
	}
	if merged.Authenticity != 0.25 {
		t.Errorf("Authenticity = %v, want default 0.25", merged.Authenticity)
	}
}

func TestMergeCalibrationNilInputs(t *testing.T) {
	if got := MergeCalibration(nil, nil); got.Geofence != 0.30 {
		t.Errorf("nil base should fall back to defaults, got %+v", got)
	}

	base := DefaultWeights()
	copied := MergeCalibration(base, nil)
	copied.Geofence = 0.9
	if base.Geofence != 0.30 {
		t.Error("MergeCalibration(base, nil) must return a copy, not the base")
	}
}

func TestLoadCalibration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")
	content := `{"version":"1","weights":{"quest_match":0.25}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write calibration file: %v", err)
	}

	weights, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration() error = %v", err)
	}
	if weights.QuestMatch != 0.25 {
		t.Errorf("QuestMatch = %v, want 0.25", weights.QuestMatch)
	}
	if weights.Geofence != 0.30 {
		t.Errorf("Geofence = %v, want default 0.30", weights.Geofence)
	}
}

func TestLoadCalibrationMissingFile(t *testing.T) {
	weights, err := LoadCalibration("/nonexistent/weights.json")
	if err == nil {
		t.Error("LoadCalibration() expected error for missing file")
	}
	if weights == nil || weights.Geofence != 0.30 {
		t.Error("LoadCalibration() must return defaults on error")
	}
}

func TestComposeReason(t *testing.T) {
	got := ComposeReason(
		"scene matches the described plaza",
		"within geofence (42m)",
		[]string{"capture is 3 days old", "no camera identity"},
	)
	want := "scene matches the described plaza; within geofence (42m); capture is 3 days old; no camera identity"
	if got != want {
		t.Errorf("ComposeReason() = %q, want %q", got, want)
	}
}

func TestComposeReasonSkipsEmptyRationale(t *testing.T) {
	got := ComposeReason("", "no GPS coordinates available", nil)
	if got != "no GPS coordinates available" {
		t.Errorf("ComposeReason() = %q", got)
	}
}
