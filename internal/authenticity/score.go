// Package authenticity scores how plausibly an image is a real, freshly
// captured photograph using only its embedded metadata. It is the cheap,
// offline counterpart to the remote vision judge: AI-generated and stock
// images tend to strip metadata, omit camera identity, or reuse old
// captures, and each of those absences costs score here.
package authenticity

import (
	"fmt"
	"time"

	"github.com/snapquest/api/internal/photo"
)

// Deduction weights. The starting score is 1.0 and each matched condition
// subtracts its weight; the result is clamped into [0, 1].
const (
	// DeductNoMetadata applies when the image carries no metadata block at
	// all. This is the strongest single signal: generated and re-encoded
	// stock images rarely carry one.
	DeductNoMetadata = 0.3

	// DeductStaleCapture applies when the capture timestamp is more than
	// StaleAfter before the verification attempt, suggesting a photo reused
	// across submissions.
	DeductStaleCapture = 0.2

	// DeductAgingCapture applies when the capture is between AgingAfter and
	// StaleAfter old.
	DeductAgingCapture = 0.1

	// DeductNoCamera applies when the camera identity tags are absent;
	// anonymized and stock pipelines often omit them.
	DeductNoCamera = 0.1

	// DeductBadTimestamp applies when a capture timestamp is missing,
	// unparseable, or in the future.
	DeductBadTimestamp = 0.1
)

// Capture age boundaries.
const (
	StaleAfter = 7 * 24 * time.Hour
	AgingAfter = 24 * time.Hour
)

// Result carries the clamped authenticity score and the ordered list of
// deduction flags for the audit trail. Flags are cumulative, not mutually
// exclusive.
type Result struct {
	Score float64  `json:"score"`
	Flags []string `json:"flags"`
}

// Score evaluates the metadata of a photo against the verification
// attempt's wall-clock time. It is a pure function; callers inject now so
// staleness is testable.
func Score(meta photo.Metadata, now time.Time) Result {
	score := 1.0
	var flags []string

	if !meta.HasMetadata {
		// With no metadata block there is nothing further to evaluate;
		// timestamp and camera signals are moot rather than separate
		// deductions.
		return Result{
			Score: score - DeductNoMetadata,
			Flags: []string{"no metadata present"},
		}
	}

	switch {
	case meta.TimestampInvalid:
		score -= DeductBadTimestamp
		flags = append(flags, "invalid timestamp")
	case meta.CapturedAt == nil:
		score -= DeductBadTimestamp
		flags = append(flags, "no capture timestamp")
	case meta.CapturedAt.After(now):
		score -= DeductBadTimestamp
		flags = append(flags, "capture timestamp in the future")
	default:
		age := now.Sub(*meta.CapturedAt)
		if age > StaleAfter {
			score -= DeductStaleCapture
			flags = append(flags, fmt.Sprintf("photo captured %d days before submission", int(age.Hours()/24)))
		} else if age > AgingAfter {
			score -= DeductAgingCapture
			flags = append(flags, fmt.Sprintf("photo captured %d days before submission", int(age.Hours()/24)))
		}
	}

	if meta.Camera == "" {
		score -= DeductNoCamera
		flags = append(flags, "no camera identity")
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return Result{Score: score, Flags: flags}
}
