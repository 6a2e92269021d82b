package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snapquest/api/internal/middleware"
	"github.com/snapquest/api/internal/upload"
)

// UploadURLProvider issues pre-signed upload URLs for proof photos.
type UploadURLProvider interface {
	GenerateSignedURL(ctx context.Context, req upload.SignedURLRequest) (*upload.SignedURLResponse, error)
}

// UploadRequest is the body for requesting a signed upload URL.
type UploadRequest struct {
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// UploadHandlers serves signed-URL requests for direct photo uploads.
type UploadHandlers struct {
	provider UploadURLProvider
}

// NewUploadHandlers creates upload URL handlers.
func NewUploadHandlers(provider UploadURLProvider) *UploadHandlers {
	return &UploadHandlers{provider: provider}
}

// SignedURL handles POST /uploads. The caller uploads the photo directly
// to object storage with the returned URL, then references the photo_url
// when creating the submission.
func (h *UploadHandlers) SignedURL(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid request body")
		return
	}

	resp, err := h.provider.GenerateSignedURL(r.Context(), upload.SignedURLRequest{
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		UserID:      userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Unsupported photo content type")
		case errors.Is(err, upload.ErrFileTooLarge):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Photo exceeds the maximum upload size")
		case errors.Is(err, upload.ErrInvalidUserID):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid user ID")
		case req.SizeBytes <= 0:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Photo size must be positive")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate upload URL")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
