// Package api provides HTTP handlers for the SnapQuest API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/snapquest/api/internal/geo"
	"github.com/snapquest/api/internal/middleware"
	"github.com/snapquest/api/internal/submission"
	"github.com/snapquest/api/internal/validate"
)

// CreateSubmissionRequest represents the request body for creating a
// submission. The user is taken from the access token, never the body.
type CreateSubmissionRequest struct {
	QuestID  string     `json:"quest_id"`
	PhotoURL string     `json:"photo_url"`
	Caption  string     `json:"caption,omitempty"`
	Location *geo.Point `json:"location,omitempty"`
}

// SubmissionResponse is a submission plus its social counters.
type SubmissionResponse struct {
	submission.Submission
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// CommentRequest represents the request body for commenting on a submission.
type CommentRequest struct {
	Text string `json:"text"`
}

// SubmissionHandlers holds dependencies for submission HTTP handlers.
type SubmissionHandlers struct {
	repo   submission.Repository
	social submission.SocialRepository
}

// NewSubmissionHandlers creates a new SubmissionHandlers instance.
func NewSubmissionHandlers(repo submission.Repository, social submission.SocialRepository) *SubmissionHandlers {
	return &SubmissionHandlers{repo: repo, social: social}
}

// submissionIDFromPath extracts the submission ID from /submissions/{id}[/...].
func submissionIDFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/submissions/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// CreateSubmission handles POST /submissions - records a new attempt.
func (h *SubmissionHandlers) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	caption, err := validate.Caption(req.Caption)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if _, err := validate.PhotoURL(req.PhotoURL); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	sub := &submission.Submission{
		QuestID:  req.QuestID,
		UserID:   userID,
		PhotoURL: req.PhotoURL,
		Caption:  caption,
		Location: req.Location,
	}
	if err := sub.Validate(); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := h.repo.Create(sub); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create submission")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(sub); err != nil {
		return
	}
}

// GetSubmission handles GET /submissions/{id} - returns a submission with
// its social counters.
func (h *SubmissionHandlers) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return
	}

	sub, err := h.repo.GetByID(id)
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

	resp := SubmissionResponse{Submission: *sub}
	if h.social != nil {
		likes, comments, shares, err := h.social.CountBySubmission(id)
		if err == nil {
			resp.Likes = likes
			resp.Comments = comments
			resp.Shares = shares
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return
	}
}

// ListByQuest handles GET /quests/{id}/submissions.
func (h *SubmissionHandlers) ListByQuest(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/quests/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Quest ID is required")
		return
	}

	subs, err := h.repo.ListByQuest(parts[0], parseLimit(r))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list submissions")
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

// ListByUser handles GET /users/{id}/submissions.
func (h *SubmissionHandlers) ListByUser(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	subs, err := h.repo.ListByUser(parts[0], parseLimit(r))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list submissions")
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

// Like handles POST /submissions/{id}/like.
func (h *SubmissionHandlers) Like(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.lookup(w, r)
	if !ok {
		return
	}

	like := &submission.Like{
		SubmissionID: sub.ID,
		UserID:       middleware.GetUserID(r.Context()),
	}
	if err := h.social.AddLike(like); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to add like")
		return
	}

	writeJSON(w, http.StatusCreated, like)
}

// Comment handles POST /submissions/{id}/comment.
func (h *SubmissionHandlers) Comment(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Comment text is required")
		return
	}

	comment := &submission.Comment{
		SubmissionID: sub.ID,
		UserID:       middleware.GetUserID(r.Context()),
		Text:         validate.SanitizeHTML(req.Text),
	}
	if err := h.social.AddComment(comment); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to add comment")
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// Share handles POST /submissions/{id}/share.
func (h *SubmissionHandlers) Share(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.lookup(w, r)
	if !ok {
		return
	}

	share := &submission.Share{
		SubmissionID: sub.ID,
		UserID:       middleware.GetUserID(r.Context()),
	}
	if err := h.social.AddShare(share); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to add share")
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

func (h *SubmissionHandlers) lookup(w http.ResponseWriter, r *http.Request) (*submission.Submission, bool) {
	id := submissionIDFromPath(r.URL.Path)
	if id == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Submission ID is required")
		return nil, false
	}

	sub, err := h.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, submission.ErrSubmissionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeSubmissionNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeSubmissionNotFound, "Submission not found")
			return nil, false
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve submission")
		return nil, false
	}
	return sub, true
}
