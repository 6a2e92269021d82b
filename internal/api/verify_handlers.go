package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/snapquest/api/internal/geo"
	"github.com/snapquest/api/internal/middleware"
	"github.com/snapquest/api/internal/submission"
	"github.com/snapquest/api/internal/verify"
)

// Verifier runs one verification attempt. It always returns a well-formed
// outcome, converting internal failures into an uncertain verdict.
type Verifier interface {
	Verify(ctx context.Context, req verify.VerificationRequest) *verify.VerificationOutcome
}

// VerifyRequest carries the quest context for one verification attempt.
// Everything about the submission itself comes from the stored row.
type VerifyRequest struct {
	QuestTitle        string     `json:"quest_title"`
	QuestDescription  string     `json:"quest_description,omitempty"`
	QuestLocationText string     `json:"quest_location_text,omitempty"`
	QuestLocation     *geo.Point `json:"quest_location,omitempty"`
}

// VerifyHandlers holds dependencies for verification HTTP handlers.
type VerifyHandlers struct {
	verifier    Verifier
	submissions submission.Repository
	outcomes    verify.OutcomeRepository
}

// NewVerifyHandlers creates a new VerifyHandlers instance.
func NewVerifyHandlers(verifier Verifier, submissions submission.Repository, outcomes verify.OutcomeRepository) *VerifyHandlers {
	return &VerifyHandlers{
		verifier:    verifier,
		submissions: submissions,
		outcomes:    outcomes,
	}
}

// Verify handles POST /submissions/{id}/verify - runs the pipeline for a
// submission. Re-verifying produces a new append-only outcome record.
func (h *VerifyHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	sub, err := h.submissions.GetByID(id)
	if err != nil {
		if errors.Is(err, submission.ErrSubmissionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeSubmissionNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeSubmissionNotFound, "Submission not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve submission")
		return
	}

	outcome := h.verifier.Verify(r.Context(), verify.VerificationRequest{
		SubmissionID:      sub.ID,
		UserID:            sub.UserID,
		QuestID:           sub.QuestID,
		PhotoURL:          sub.PhotoURL,
		QuestTitle:        req.QuestTitle,
		QuestDescription:  req.QuestDescription,
		QuestLocationText: req.QuestLocationText,
		QuestLocation:     req.QuestLocation,
		UserLocation:      sub.Location,
	})

	writeJSON(w, http.StatusOK, outcome)
}

// ListOutcomes handles GET /submissions/{id}/outcomes - lists the attempt
// history for a submission, newest first.
func (h *VerifyHandlers) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return
	}

	outcomes, err := h.outcomes.ListBySubmission(id, parseLimit(r))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list outcomes")
		return
	}

	writeJSON(w, http.StatusOK, outcomes)
}

// GetOutcome handles GET /outcomes/{id}.
func (h *VerifyHandlers) GetOutcome(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/outcomes/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Outcome ID is required")
		return
	}

	outcome, err := h.outcomes.Get(parts[0])
	if err != nil {
		if errors.Is(err, verify.ErrOutcomeNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeOutcomeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeOutcomeNotFound, "Outcome not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve outcome")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// ListUserOutcomes handles GET /users/{id}/outcomes.
func (h *VerifyHandlers) ListUserOutcomes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	outcomes, err := h.outcomes.ListByUser(parts[0], parseLimit(r))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list outcomes")
		return
	}

	writeJSON(w, http.StatusOK, outcomes)
}
