package submission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/snapquest/api/internal/audit"
	"github.com/snapquest/api/internal/verify"
)

// StoragePurger removes stored objects behind the given public URLs.
// Deletion is best-effort.
type StoragePurger interface {
	DeleteByPublicURLs(ctx context.Context, urls []string) int
}

// DisplayRenderer publishes a metadata-stripped display copy of an
// approved submission's photo. Rendering is best-effort.
type DisplayRenderer interface {
	Render(ctx context.Context, photoURL string) (string, error)
}

// displayRenderTimeout bounds the background display copy render.
const displayRenderTimeout = 30 * time.Second

// Controller errors.
var (
	ErrMissingRepository    = errors.New("submission repository is required")
	ErrMissingJustification = errors.New("override justification is required")
	ErrInvalidOverride      = errors.New("override verdict must be verified or rejected")
)

// ControllerConfig holds the dependencies for the lifecycle controller.
type ControllerConfig struct {
	// Submissions is the submission store. Required.
	Submissions Repository

	// Social removes dependent likes/comments/shares on rejection.
	// Optional.
	Social SocialRepository

	// Storage removes stored photo objects on rejection. Optional.
	Storage StoragePurger

	// Display renders a display copy of approved photos. Optional.
	Display DisplayRenderer

	// Outcomes records admin override outcomes. Optional; required only
	// for Override.
	Outcomes verify.OutcomeRepository

	// Audit records admin overrides. Optional.
	Audit audit.Repository

	Logger *slog.Logger
}

// Controller applies verdict side effects to submissions. It implements
// the pipeline's LifecycleController contract.
type Controller struct {
	submissions Repository
	social      SocialRepository
	storage     StoragePurger
	display     DisplayRenderer
	outcomes    verify.OutcomeRepository
	auditLog    audit.Repository
	logger      *slog.Logger
}

// NewController creates a lifecycle controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Submissions == nil {
		return nil, ErrMissingRepository
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		submissions: cfg.Submissions,
		social:      cfg.Social,
		storage:     cfg.Storage,
		display:     cfg.Display,
		outcomes:    cfg.Outcomes,
		auditLog:    cfg.Audit,
		logger:      cfg.Logger,
	}, nil
}

// ApplyVerdict applies a verdict's side effects exactly once per attempt:
// verified approves the submission, rejected purges it entirely, uncertain
// leaves it pending for manual review.
func (c *Controller) ApplyVerdict(ctx context.Context, submissionID string, verdict verify.Verdict) error {
	switch verdict {
	case verify.VerdictVerified:
		if err := c.submissions.UpdateStatus(submissionID, StatusApproved); err != nil {
			return err
		}
		c.renderDisplay(submissionID)
		return nil
	case verify.VerdictRejected:
		return c.purge(ctx, submissionID)
	case verify.VerdictUncertain:
		// Remains pending; nothing to do.
		return nil
	default:
		return errors.New("unknown verdict: " + string(verdict))
	}
}

// renderDisplay kicks off a background render of the approved photo's
// display copy. Failures are logged; approval already succeeded.
func (c *Controller) renderDisplay(submissionID string) {
	if c.display == nil {
		return
	}
	sub, err := c.submissions.GetByID(submissionID)
	if err != nil || sub.PhotoURL == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), displayRenderTimeout)
		defer cancel()

		displayURL, err := c.display.Render(ctx, sub.PhotoURL)
		if err != nil {
			c.logger.Warn("failed to render display copy",
				"submission_id", submissionID,
				"error", err)
			return
		}
		c.logger.Info("display copy rendered",
			"submission_id", submissionID,
			"display_url", displayURL)
	}()
}

// purge deletes the submission's stored files, its dependent social rows,
// and finally the submission row itself, making the quest resubmittable.
// The steps are best-effort ordered, not atomic: partial failures are
// logged and the purge continues, since the primary goal is achieved once
// the submission row is gone.
func (c *Controller) purge(ctx context.Context, submissionID string) error {
	sub, err := c.submissions.GetByID(submissionID)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			// Already gone; purge is idempotent.
			return nil
		}
		return err
	}

	if c.storage != nil && sub.PhotoURL != "" {
		deleted := c.storage.DeleteByPublicURLs(ctx, []string{sub.PhotoURL})
		c.logger.Info("purged submission storage objects",
			"submission_id", submissionID,
			"deleted", deleted)
	}

	if c.social != nil {
		removed, err := c.social.DeleteBySubmission(submissionID)
		if err != nil {
			c.logger.Error("failed to delete social rows during purge",
				"submission_id", submissionID,
				"error", err)
		} else {
			c.logger.Info("purged submission social rows",
				"submission_id", submissionID,
				"removed", removed)
		}
	}

	if err := c.submissions.Delete(submissionID); err != nil && !errors.Is(err, ErrSubmissionNotFound) {
		c.logger.Error("failed to delete submission row during purge",
			"submission_id", submissionID,
			"error", err)
		return err
	}
	return nil
}

// OverrideRequest forces a verdict after the fact. Only an explicitly
// authorized admin may do this; it is the one legitimate way to reverse an
// automated decision.
type OverrideRequest struct {
	SubmissionID  string         `json:"submission_id"`
	AdminID       string         `json:"admin_id"`
	Verdict       verify.Verdict `json:"verdict"`
	Justification string         `json:"justification"`
}

// Override forces a submission's verdict to verified or rejected, records
// an override-flagged outcome carrying the justification, and applies the
// corresponding side effects.
func (c *Controller) Override(ctx context.Context, req OverrideRequest) (*verify.VerificationOutcome, error) {
	if req.Verdict != verify.VerdictVerified && req.Verdict != verify.VerdictRejected {
		return nil, ErrInvalidOverride
	}
	if req.Justification == "" {
		return nil, ErrMissingJustification
	}

	sub, err := c.submissions.GetByID(req.SubmissionID)
	if err != nil {
		return nil, err
	}

	confidence := 0.0
	if req.Verdict == verify.VerdictVerified {
		confidence = 1.0
	}

	outcome := &verify.VerificationOutcome{
		SubmissionID:    sub.ID,
		UserID:          sub.UserID,
		QuestID:         sub.QuestID,
		FinalConfidence: confidence,
		Verdict:         req.Verdict,
		Reason:          req.Justification,
		Model:           "admin-override",
		Override:        true,
	}

	if c.outcomes != nil {
		if err := c.outcomes.Save(outcome); err != nil {
			return nil, err
		}
	}

	if c.auditLog != nil {
		_, err := c.auditLog.Record(audit.Entry{
			SubmissionID: sub.ID,
			UserID:       req.AdminID,
			Model:        "admin-override",
			Confidence:   confidence,
			Verdict:      string(req.Verdict),
			Status:       audit.StatusSuccess,
		})
		if err != nil {
			c.logger.Error("failed to audit admin override",
				"submission_id", sub.ID,
				"error", err)
		}
	}

	if err := c.ApplyVerdict(ctx, sub.ID, req.Verdict); err != nil {
		return outcome, err
	}

	c.logger.Info("admin override applied",
		"submission_id", sub.ID,
		"admin_id", req.AdminID,
		"verdict", string(req.Verdict))

	return outcome, nil
}
