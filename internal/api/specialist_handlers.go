package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/snapquest/api/internal/middleware"
	"github.com/snapquest/api/internal/specialist"
	"github.com/snapquest/api/internal/verify"
)

// SpecialistRunner runs and resets the out-of-band specialist checks.
type SpecialistRunner interface {
	RunDeepfake(ctx context.Context, submissionID string) error
	RunAnalysis(ctx context.Context, submissionID string) error
	ResetDeepfake(submissionID string) error
	ResetAnalysis(submissionID string) error
	DispatchAsync(submissionID string)
}

// SpecialistHandlers holds dependencies for specialist check handlers.
type SpecialistHandlers struct {
	runner SpecialistRunner
}

// NewSpecialistHandlers creates a new SpecialistHandlers instance.
func NewSpecialistHandlers(runner SpecialistRunner) *SpecialistHandlers {
	return &SpecialistHandlers{runner: runner}
}

// Dispatch handles POST /submissions/{id}/checks - fires both checks in the
// background and returns immediately.
func (h *SpecialistHandlers) Dispatch(w http.ResponseWriter, r *http.Request) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return
	}

	h.runner.DispatchAsync(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

// Check handles POST and DELETE on /submissions/{id}/checks/{check} -
// running a single check synchronously or resetting its stored result.
func (h *SpecialistHandlers) Check(w http.ResponseWriter, r *http.Request) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/submissions/"), "/")
	if len(parts) < 3 || parts[2] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Check type is required")
		return
	}
	check := parts[2]

	var err error
	switch {
	case r.Method == http.MethodPost && check == "deepfake":
		err = h.runner.RunDeepfake(r.Context(), id)
	case r.Method == http.MethodPost && check == "analysis":
		err = h.runner.RunAnalysis(r.Context(), id)
	case r.Method == http.MethodDelete && check == "deepfake":
		err = h.runner.ResetDeepfake(id)
	case r.Method == http.MethodDelete && check == "analysis":
		err = h.runner.ResetAnalysis(id)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Unknown check")
		return
	}

	if err != nil {
		h.writeCheckError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SpecialistHandlers) writeCheckError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, specialist.ErrAlreadyRun):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeCheckAlreadyRun)
		WriteError(w, ctx, http.StatusConflict, ErrCodeCheckAlreadyRun, "Check already ran; reset it first")
	case errors.Is(err, specialist.ErrCheckNotConfigured):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeCheckNotConfigured)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeCheckNotConfigured, "Check backend is not configured")
	case errors.Is(err, specialist.ErrNoOutcome), errors.Is(err, verify.ErrOutcomeNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeOutcomeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeOutcomeNotFound, "No verification outcome for this submission")
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Check failed")
	}
}
