// Package submission manages quest submissions and applies verdict side
// effects: approving verified submissions, purging rejected ones so the
// quest becomes resubmittable, and leaving uncertain ones pending for
// manual review.
package submission

import (
	"errors"
	"time"

	"github.com/snapquest/api/internal/geo"
)

// Valid status constants.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatuses defines the allowed submission statuses.
var ValidStatuses = map[string]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

// Common errors for submission operations.
var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidStatus      = errors.New("invalid status: must be pending, approved, or rejected")
	ErrMissingQuestID     = errors.New("quest ID is required")
	ErrMissingUserID      = errors.New("user ID is required")
	ErrMissingPhotoURL    = errors.New("photo URL is required")
)

// Submission is a user's attempt record for a quest. The quest is a proper
// foreign key, never inferred from free-text markers.
type Submission struct {
	ID      string `json:"id"`
	QuestID string `json:"quest_id"`
	UserID  string `json:"user_id"`

	PhotoURL string `json:"photo_url"`
	Caption  string `json:"caption,omitempty"`

	// Location is the user-reported position at submission time.
	Location *geo.Point `json:"location,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the submission's required fields.
func (s *Submission) Validate() error {
	if s.QuestID == "" {
		return ErrMissingQuestID
	}
	if s.UserID == "" {
		return ErrMissingUserID
	}
	if s.PhotoURL == "" {
		return ErrMissingPhotoURL
	}
	if s.Status != "" && !ValidStatuses[s.Status] {
		return ErrInvalidStatus
	}
	return nil
}

// Like is a social row dependent on a submission.
type Like struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is a social row dependent on a submission.
type Comment struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

// Share is a social row dependent on a submission.
type Share struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}
