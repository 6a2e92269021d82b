package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snapquest/api/internal/middleware"
	"github.com/snapquest/api/internal/submission"
	"github.com/snapquest/api/internal/validate"
	"github.com/snapquest/api/internal/verify"
)

// Overrider forces a verdict on behalf of an admin.
type Overrider interface {
	Override(ctx context.Context, req submission.OverrideRequest) (*verify.VerificationOutcome, error)
}

// OverrideBody is the request body for POST /submissions/{id}/override.
type OverrideBody struct {
	Verdict       string `json:"verdict"`
	Justification string `json:"justification"`
}

// OverrideHandlers holds dependencies for admin override handlers.
type OverrideHandlers struct {
	controller Overrider
}

// NewOverrideHandlers creates a new OverrideHandlers instance.
func NewOverrideHandlers(controller Overrider) *OverrideHandlers {
	return &OverrideHandlers{controller: controller}
}

// Override handles POST /submissions/{id}/override - forces a verified or
// rejected verdict with a required justification. Admin only; the route must
// be wrapped with RequireAdmin.
func (h *OverrideHandlers) Override(w http.ResponseWriter, r *http.Request) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return
	}

	var body OverrideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	justification, err := validate.Justification(body.Justification)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	outcome, err := h.controller.Override(r.Context(), submission.OverrideRequest{
		SubmissionID:  id,
		AdminID:       middleware.GetUserID(r.Context()),
		Verdict:       verify.Verdict(body.Verdict),
		Justification: justification,
	})
	if err != nil {
		switch {
		case errors.Is(err, submission.ErrInvalidOverride):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidVerdict)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidVerdict, "Override verdict must be verified or rejected")
		case errors.Is(err, submission.ErrMissingJustification):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Justification is required")
		case errors.Is(err, submission.ErrSubmissionNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeSubmissionNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeSubmissionNotFound, "Submission not found")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to apply override")
		}
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
