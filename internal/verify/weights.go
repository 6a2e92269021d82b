package verify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Weights defines the aggregation weight for each component score. The
// defaults emphasize hard-to-fake physical signals (location, metadata
// freshness) over the softer semantic opinions of the remote judge.
type Weights struct {
	Geofence         float64 `json:"geofence"`           // default 0.30
	Authenticity     float64 `json:"authenticity"`       // default 0.25
	VisualSceneMatch float64 `json:"visual_scene_match"` // default 0.20
	QuestMatch       float64 `json:"quest_match"`        // default 0.15
	SceneRelevance   float64 `json:"scene_relevance"`    // default 0.10
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the default aggregation weights.
//
// finalConfidence = (geofence * 0.30) + (authenticity * 0.25) +
// (visual_scene_match * 0.20) + (quest_match * 0.15) + (scene_relevance * 0.10)
//
// The weights sum to 1.0, so a weighted sum of clamped components is itself
// always in [0, 1].
func DefaultWeights() *Weights {
	return &Weights{
		Geofence:         0.30,
		Authenticity:     0.25,
		VisualSceneMatch: 0.20,
		QuestMatch:       0.15,
		SceneRelevance:   0.10,
	}
}

// Sum returns the total of all component weights.
func (w *Weights) Sum() float64 {
	return w.Geofence + w.Authenticity + w.VisualSceneMatch + w.QuestMatch + w.SceneRelevance
}

// Composite computes the weighted confidence for a set of component scores.
// Falls back to default weights when weights is nil.
func Composite(scores ComponentScores, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}

	return (scores.Geofence * weights.Geofence) +
		(scores.Authenticity * weights.Authenticity) +
		(scores.VisualSceneMatch * weights.VisualSceneMatch) +
		(scores.QuestMatch * weights.QuestMatch) +
		(scores.SceneRelevance * weights.SceneRelevance)
}

// LoadCalibration loads aggregation weights from a JSON calibration file.
// Partial configurations are merged with defaults. On any read or parse
// error the defaults are returned alongside the error so callers can
// degrade gracefully.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultWeights(), &config.Weights)
	logCalibrationOverrides(DefaultWeights(), merged)
	return merged, nil
}

// MergeCalibration merges override weights into base weights. Only non-zero
// override values are applied, allowing partial calibration files.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	if override.Geofence != 0 {
		result.Geofence = override.Geofence
	}
	if override.Authenticity != 0 {
		result.Authenticity = override.Authenticity
	}
	if override.VisualSceneMatch != 0 {
		result.VisualSceneMatch = override.VisualSceneMatch
	}
	if override.QuestMatch != 0 {
		result.QuestMatch = override.QuestMatch
	}
	if override.SceneRelevance != 0 {
		result.SceneRelevance = override.SceneRelevance
	}
	return &result
}

func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Geofence != defaults.Geofence {
		overrides = append(overrides, fmt.Sprintf("geofence: %.2f -> %.2f",
			defaults.Geofence, loaded.Geofence))
	}
	if loaded.Authenticity != defaults.Authenticity {
		overrides = append(overrides, fmt.Sprintf("authenticity: %.2f -> %.2f",
			defaults.Authenticity, loaded.Authenticity))
	}
	if loaded.VisualSceneMatch != defaults.VisualSceneMatch {
		overrides = append(overrides, fmt.Sprintf("visual_scene_match: %.2f -> %.2f",
			defaults.VisualSceneMatch, loaded.VisualSceneMatch))
	}
	if loaded.QuestMatch != defaults.QuestMatch {
		overrides = append(overrides, fmt.Sprintf("quest_match: %.2f -> %.2f",
			defaults.QuestMatch, loaded.QuestMatch))
	}
	if loaded.SceneRelevance != defaults.SceneRelevance {
		overrides = append(overrides, fmt.Sprintf("scene_relevance: %.2f -> %.2f",
			defaults.SceneRelevance, loaded.SceneRelevance))
	}

	if len(overrides) > 0 {
		slog.Info("loaded verification weight calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded verification weight calibration (using all defaults)")
	}
}

// ComposeReason builds the human-readable reason trail for an outcome. The
// judge rationale leads (when present), followed by the geofence reason and
// the authenticity flags, joined with "; " so a reviewer can read the
// decision linearly without inspecting raw scores.
func ComposeReason(judgeRationale, fenceReason string, authenticityFlags []string) string {
	parts := make([]string, 0, 2+len(authenticityFlags))
	if judgeRationale != "" {
		parts = append(parts, judgeRationale)
	}
	if fenceReason != "" {
		parts = append(parts, fenceReason)
	}
	parts = append(parts, authenticityFlags...)
	return strings.Join(parts, "; ")
}
