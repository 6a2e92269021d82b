// Package verify implements the photo-proof verification pipeline: it
// combines extracted photo metadata, geofence and authenticity scoring, and
// an optional remote vision judge into a single confidence value and a
// three-way verdict with a human-readable reason trail.
package verify

import (
	"errors"
	"time"

	"github.com/snapquest/api/internal/geo"
	"github.com/snapquest/api/internal/photo"
)

// Verdict is the pipeline's three-way decision for a submission photo.
type Verdict string

// Valid verdict constants.
const (
	VerdictVerified  Verdict = "verified"
	VerdictUncertain Verdict = "uncertain"
	VerdictRejected  Verdict = "rejected"
)

// Verdict thresholds. Fixed, not configurable per call: a confidence at or
// above VerifiedThreshold auto-approves, at or above UncertainThreshold
// holds for manual review, below it rejects.
const (
	VerifiedThreshold  = 0.85
	UncertainThreshold = 0.60
)

// Validation errors.
var (
	ErrMissingSubmissionID = errors.New("submission ID is required")
	ErrMissingPhotoRef     = errors.New("photo reference is required")
	ErrOutcomeNotFound     = errors.New("verification outcome not found")
)

// VerdictFor maps a final confidence value to a verdict. Boundary values
// belong to the higher band: exactly 0.85 is verified, exactly 0.60 is
// uncertain.
func VerdictFor(confidence float64) Verdict {
	switch {
	case confidence >= VerifiedThreshold:
		return VerdictVerified
	case confidence >= UncertainThreshold:
		return VerdictUncertain
	default:
		return VerdictRejected
	}
}

// VerificationRequest is the immutable input bundle for one verification
// attempt, constructed by the submission-creation flow when a photo is
// attached.
type VerificationRequest struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	QuestID      string `json:"quest_id"`

	// PhotoURL references the submitted photo, either an object-store
	// public URL or an arbitrary HTTP(S) URL.
	PhotoURL string `json:"photo_url"`

	QuestTitle        string `json:"quest_title"`
	QuestDescription  string `json:"quest_description"`
	QuestLocationText string `json:"quest_location_text"`

	// QuestLocation is the expected location of the quest, when known.
	QuestLocation *geo.Point `json:"quest_location,omitempty"`

	// UserLocation is the user-reported location at submission time. Used
	// for geofencing only when the photo carries no embedded GPS.
	UserLocation *geo.Point `json:"user_location,omitempty"`
}

// Validate checks that the request carries the fields every attempt needs.
func (r *VerificationRequest) Validate() error {
	if r.SubmissionID == "" {
		return ErrMissingSubmissionID
	}
	if r.PhotoURL == "" {
		return ErrMissingPhotoRef
	}
	return nil
}

// ComponentScores holds the five clamped [0,1] signals the aggregator
// combines. When no judge provider is configured the three judge-derived
// components carry the neutral default 0.5.
type ComponentScores struct {
	Geofence         float64 `json:"geofence"`
	Authenticity     float64 `json:"authenticity"`
	VisualSceneMatch float64 `json:"visual_scene_match"`
	QuestMatch       float64 `json:"quest_match"`
	SceneRelevance   float64 `json:"scene_relevance"`
}

// VerificationOutcome is the aggregate record of one verification attempt.
// Outcomes are append-only: re-verifying a submission produces a new record
// rather than overwriting the old one.
type VerificationOutcome struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	QuestID      string `json:"quest_id"`

	Scores          ComponentScores `json:"scores"`
	FinalConfidence float64         `json:"final_confidence"`
	Verdict         Verdict         `json:"verdict"`
	Reason          string          `json:"reason"`

	// Metadata is the extracted photo metadata for this attempt, retained
	// so reviewers can inspect what the scorers saw.
	Metadata photo.Metadata `json:"metadata"`

	// Model identifies the remote judge model used, or "heuristic-only"
	// when no provider was configured.
	Model string `json:"model"`

	// Override marks an outcome forced by an explicitly authorized admin
	// rather than produced by the pipeline. Reason then carries the
	// admin's justification.
	Override bool `json:"override,omitempty"`

	ExecutionMs int64     `json:"execution_ms"`
	CreatedAt   time.Time `json:"created_at"`

	// Specialist enrichments, attached out-of-band after the verdict.
	// Nil means the check has not run (or was reset).
	DeepfakeVerdict *string `json:"deepfake_verdict,omitempty"`
	AnalysisReport  *string `json:"analysis_report,omitempty"`
}

// HeuristicOnlyModel is recorded as the model identifier when the remote
// vision judge is not configured and the attempt ran on local signals only.
const HeuristicOnlyModel = "heuristic-only"
