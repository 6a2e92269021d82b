// Package audit records every verification attempt for traceability and
// admin review. Entries are write-once and never deleted.
package audit

import (
	"errors"
	"time"
)

// Attempt status constants.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// ValidStatuses defines the allowed attempt statuses.
var ValidStatuses = map[string]bool{
	StatusSuccess: true,
	StatusError:   true,
	StatusTimeout: true,
}

// Validation errors.
var (
	ErrInvalidStatus       = errors.New("invalid status: must be success, error, or timeout")
	ErrMissingSubmissionID = errors.New("submission ID cannot be empty")
	ErrNegativeExecution   = errors.New("execution time cannot be negative")
)

// Entry is one audit row per verification attempt. The location, when
// known, is stored as a coarse geohash rather than precise coordinates so
// the audit trail does not leak exact user positions.
type Entry struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	Confidence   float64   `json:"confidence"`
	Verdict      string    `json:"verdict"`
	Status       string    `json:"status"`
	ErrorText    string    `json:"error_text,omitempty"`
	Geohash      string    `json:"geohash,omitempty"`
	ExecutionMs  int64     `json:"execution_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the entry's required fields.
func (e *Entry) Validate() error {
	if e.SubmissionID == "" {
		return ErrMissingSubmissionID
	}
	if !ValidStatuses[e.Status] {
		return ErrInvalidStatus
	}
	if e.ExecutionMs < 0 {
		return ErrNegativeExecution
	}
	return nil
}
