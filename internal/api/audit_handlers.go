package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/snapquest/api/internal/audit"
	"github.com/snapquest/api/internal/middleware"
)

// AuditHandlers holds dependencies for audit trail HTTP handlers.
type AuditHandlers struct {
	repo audit.Repository
}

// NewAuditHandlers creates a new AuditHandlers instance.
func NewAuditHandlers(repo audit.Repository) *AuditHandlers {
	return &AuditHandlers{repo: repo}
}

// ListBySubmission handles GET /submissions/{id}/audit.
func (h *AuditHandlers) ListBySubmission(w http.ResponseWriter, r *http.Request) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return
	}

	entries, err := h.repo.QueryBySubmission(id, parseLimit(r))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to query audit log")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// ListByUser handles GET /users/{id}/audit.
func (h *AuditHandlers) ListByUser(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	entries, err := h.repo.QueryByUser(parts[0], parseLimit(r))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to query audit log")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// Export handles GET /audit/export - exports audit entries as CSV or JSON
// for compliance review. Admin only.
//
// Query parameters: format (csv|json, default csv), submission_id or
// user_id (exactly one required), from, to (RFC3339, optional), limit.
func (h *AuditHandlers) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format := audit.ExportFormat(q.Get("format"))
	if format == "" {
		format = audit.ExportFormatCSV
	}
	if format != audit.ExportFormatCSV && format != audit.ExportFormatJSON {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "format must be csv or json")
		return
	}

	submissionID := q.Get("submission_id")
	userID := q.Get("user_id")
	if (submissionID == "") == (userID == "") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "exactly one of submission_id or user_id is required")
		return
	}

	opts := audit.ExportOptions{
		Format:       format,
		SubmissionID: submissionID,
		UserID:       userID,
		Limit:        parseLimit(r),
	}

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "from must be RFC3339")
			return
		}
		opts.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "to must be RFC3339")
			return
		}
		opts.To = to
	}

	data, err := audit.ExportEntries(h.repo, opts)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to export audit log")
		return
	}

	if format == audit.ExportFormatCSV {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit_export.csv"`)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
