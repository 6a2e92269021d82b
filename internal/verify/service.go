package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/snapquest/api/internal/audit"
	"github.com/snapquest/api/internal/authenticity"
	"github.com/snapquest/api/internal/geo"
	"github.com/snapquest/api/internal/judge"
	"github.com/snapquest/api/internal/photo"
	"github.com/snapquest/api/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultJudgeTimeout bounds the remote vision judge call. Exceeding it is
// treated identically to a provider error.
const DefaultJudgeTimeout = 30 * time.Second

// PhotoFetcher retrieves image bytes for a photo reference.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, ref string) ([]byte, string, error)
}

// VisionJudge obtains a multimodal judgment for a photo in its quest
// context.
type VisionJudge interface {
	Judge(ctx context.Context, image []byte, mimeType string, quest judge.QuestContext) (*judge.Judgment, error)
}

// LifecycleController applies a verdict's side effects to the submission.
type LifecycleController interface {
	ApplyVerdict(ctx context.Context, submissionID string, verdict Verdict) error
}

// AuditLogger records one entry per verification attempt.
type AuditLogger interface {
	Record(entry audit.Entry) (*audit.Entry, error)
}

// ServiceConfig holds the dependencies and tuning for the pipeline service.
type ServiceConfig struct {
	// Outcomes persists verification outcomes. Required.
	Outcomes OutcomeRepository

	// Audit records per-attempt audit entries. Required.
	Audit AuditLogger

	// Fetcher retrieves photo bytes. Optional; without it every attempt
	// runs metadata-less and is held for manual review.
	Fetcher PhotoFetcher

	// Judge is the remote vision judge. Nil means no provider is
	// configured and attempts run in heuristic-only mode.
	Judge VisionJudge

	// Lifecycle applies verdict side effects. Optional; nil leaves status
	// transitions to the caller.
	Lifecycle LifecycleController

	// Weights overrides the aggregation weights. Nil uses defaults.
	Weights *Weights

	// FenceRadiusMeters is the geofence threshold. Zero or negative uses
	// the default radius.
	FenceRadiusMeters float64

	// JudgeTimeout bounds the remote judge call. Zero uses the default.
	JudgeTimeout time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
}

// Service errors.
var (
	ErrMissingOutcomes = errors.New("outcome repository is required")
	ErrMissingAudit    = errors.New("audit logger is required")
)

// Service runs the verification pipeline. Each attempt is independent and
// safe to run concurrently with attempts for other submissions.
type Service struct {
	outcomes     OutcomeRepository
	auditLog     AuditLogger
	fetcher      PhotoFetcher
	judge        VisionJudge
	lifecycle    LifecycleController
	weights      *Weights
	fenceRadius  float64
	judgeTimeout time.Duration
	logger       *slog.Logger
	metrics      *Metrics

	// timeNow is injectable for tests.
	timeNow func() time.Time
}

// NewService creates a pipeline service from the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Outcomes == nil {
		return nil, ErrMissingOutcomes
	}
	if cfg.Audit == nil {
		return nil, ErrMissingAudit
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	if cfg.FenceRadiusMeters <= 0 {
		cfg.FenceRadiusMeters = geo.DefaultFenceRadiusMeters
	}
	if cfg.JudgeTimeout <= 0 {
		cfg.JudgeTimeout = DefaultJudgeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		outcomes:     cfg.Outcomes,
		auditLog:     cfg.Audit,
		fetcher:      cfg.Fetcher,
		judge:        cfg.Judge,
		lifecycle:    cfg.Lifecycle,
		weights:      cfg.Weights,
		fenceRadius:  cfg.FenceRadiusMeters,
		judgeTimeout: cfg.JudgeTimeout,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		timeNow:      time.Now,
	}, nil
}

// Verify runs one verification attempt and always returns a well-formed
// outcome: internal failures are converted into an uncertain verdict with
// an explanatory reason rather than an error, so callers always receive a
// decidable result.
func (s *Service) Verify(ctx context.Context, req VerificationRequest) (outcome *VerificationOutcome) {
	start := s.timeNow()

	ctx, endSpan := tracing.StartSpan(ctx, "verify.attempt")
	defer func() { endSpan(nil) }()
	tracing.SetAttributes(ctx,
		attribute.String("submission.id", req.SubmissionID),
		attribute.String("quest.id", req.QuestID),
	)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verification attempt panicked",
				"submission_id", req.SubmissionID,
				"panic", r)
			outcome = s.fallback(ctx, req, start, fmt.Sprintf("internal error during scoring: %v", r), audit.StatusError)
		}
	}()

	if err := req.Validate(); err != nil {
		return s.fallback(ctx, req, start, "invalid verification request: "+err.Error(), audit.StatusError)
	}

	imageBytes, mimeType, fetchErr := s.fetchPhoto(ctx, req.PhotoURL)
	if fetchErr != nil {
		s.logger.Warn("photo fetch failed, scoring without image bytes",
			"submission_id", req.SubmissionID,
			"error", fetchErr)
	}

	meta := photo.Extract(imageBytes)

	// Prefer embedded GPS over the user-reported position.
	candidate := meta.Location
	if candidate == nil {
		candidate = req.UserLocation
	}

	fence := geo.ScoreFence(req.QuestLocation, candidate, s.fenceRadius)
	auth := authenticity.Score(meta, s.timeNow())

	scores := ComponentScores{
		Geofence:         fence.Score,
		Authenticity:     auth.Score,
		VisualSceneMatch: judge.NeutralScore,
		QuestMatch:       judge.NeutralScore,
		SceneRelevance:   judge.NeutralScore,
	}

	model := HeuristicOnlyModel
	rationale := ""

	if s.judge != nil && len(imageBytes) > 0 {
		judgment, err := s.callJudge(ctx, imageBytes, mimeType, req)
		if err != nil {
			return s.judgeFailure(ctx, req, start, meta, scores, fence, auth, err)
		}
		scores.VisualSceneMatch = judgment.VisualSceneMatch
		scores.QuestMatch = judgment.QuestMatch
		scores.SceneRelevance = judgment.SceneRelevance
		model = judgment.Model
		rationale = judgment.Rationale
	} else if s.metrics != nil {
		s.metrics.IncHeuristicOnly()
	}

	confidence := Composite(scores, s.weights)
	verdict := VerdictFor(confidence)
	reason := ComposeReason(rationale, fence.Reason, auth.Flags)

	if fetchErr != nil || (s.judge != nil && len(imageBytes) == 0) {
		// Without image bytes the strongest signals never ran; a
		// destructive rejection on that basis is not safe.
		verdict = VerdictUncertain
		reason = ComposeReason("photo could not be retrieved, manual review required", fence.Reason, auth.Flags)
	}

	outcome = &VerificationOutcome{
		SubmissionID:    req.SubmissionID,
		UserID:          req.UserID,
		QuestID:         req.QuestID,
		Scores:          scores,
		FinalConfidence: confidence,
		Verdict:         verdict,
		Reason:          reason,
		Metadata:        meta,
		Model:           model,
		ExecutionMs:     s.elapsedMs(start),
		CreatedAt:       s.timeNow().UTC(),
	}

	s.persist(ctx, outcome, candidate, audit.StatusSuccess, "")
	s.applyLifecycle(ctx, req.SubmissionID, verdict)

	if s.metrics != nil {
		s.metrics.ObserveAttempt(verdict, confidence, s.timeNow().Sub(start).Seconds())
	}

	s.logger.Info("verification attempt completed",
		"submission_id", req.SubmissionID,
		"verdict", string(verdict),
		"confidence", confidence,
		"model", model,
		"execution_ms", outcome.ExecutionMs)

	return outcome
}

func (s *Service) fetchPhoto(ctx context.Context, ref string) ([]byte, string, error) {
	if s.fetcher == nil {
		return nil, "", errors.New("no photo fetcher configured")
	}
	return s.fetcher.FetchPhoto(ctx, ref)
}

func (s *Service) callJudge(ctx context.Context, image []byte, mimeType string, req VerificationRequest) (*judge.Judgment, error) {
	jctx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	defer cancel()

	jctx, endSpan := tracing.StartSpan(jctx, "verify.judge")
	judgment, err := s.judge.Judge(jctx, image, mimeType, judge.QuestContext{
		Title:        req.QuestTitle,
		Description:  req.QuestDescription,
		LocationText: req.QuestLocationText,
	})
	endSpan(err)
	return judgment, err
}

// judgeFailure converts a remote judge error into the attempt-fatal path:
// an uncertain outcome flagged for manual review, never an error to the
// caller.
func (s *Service) judgeFailure(ctx context.Context, req VerificationRequest, start time.Time, meta photo.Metadata, scores ComponentScores, fence geo.FenceResult, auth authenticity.Result, judgeErr error) *VerificationOutcome {
	status := audit.StatusError
	if errors.Is(judgeErr, context.DeadlineExceeded) {
		status = audit.StatusTimeout
	}

	if s.metrics != nil {
		s.metrics.IncJudgeFailures()
	}
	s.logger.Error("remote judge failed, holding submission for manual review",
		"submission_id", req.SubmissionID,
		"status", status,
		"error", judgeErr)

	confidence := Composite(scores, s.weights)
	reason := ComposeReason("remote judge unavailable, manual review required", fence.Reason, auth.Flags)

	outcome := &VerificationOutcome{
		SubmissionID:    req.SubmissionID,
		UserID:          req.UserID,
		QuestID:         req.QuestID,
		Scores:          scores,
		FinalConfidence: confidence,
		Verdict:         VerdictUncertain,
		Reason:          reason,
		Metadata:        meta,
		Model:           HeuristicOnlyModel,
		ExecutionMs:     s.elapsedMs(start),
		CreatedAt:       s.timeNow().UTC(),
	}

	candidate := meta.Location
	if candidate == nil {
		candidate = req.UserLocation
	}
	s.persist(ctx, outcome, candidate, status, judgeErr.Error())
	s.applyLifecycle(ctx, req.SubmissionID, VerdictUncertain)

	if s.metrics != nil {
		s.metrics.ObserveAttempt(VerdictUncertain, confidence, s.timeNow().Sub(start).Seconds())
	}
	return outcome
}

// fallback produces the uncertain outcome returned when the attempt could
// not score at all (invalid request, panic).
func (s *Service) fallback(ctx context.Context, req VerificationRequest, start time.Time, reason, status string) *VerificationOutcome {
	outcome := &VerificationOutcome{
		SubmissionID:    req.SubmissionID,
		UserID:          req.UserID,
		QuestID:         req.QuestID,
		FinalConfidence: 0,
		Verdict:         VerdictUncertain,
		Reason:          reason,
		Model:           HeuristicOnlyModel,
		ExecutionMs:     s.elapsedMs(start),
		CreatedAt:       s.timeNow().UTC(),
	}

	s.persist(ctx, outcome, nil, status, reason)
	return outcome
}

// persist saves the outcome and writes the audit entry. Both are
// best-effort: persistence failures are logged, never surfaced, since the
// verdict has already been decided.
func (s *Service) persist(ctx context.Context, outcome *VerificationOutcome, location *geo.Point, status, errorText string) {
	_, endSave := tracing.StartDBSpan(ctx, "verification_outcomes", tracing.DBOperationInsert)
	err := s.outcomes.Save(outcome)
	endSave(err)
	if err != nil {
		s.logger.Error("failed to persist verification outcome",
			"submission_id", outcome.SubmissionID,
			"error", err)
	}

	geohash := ""
	if location != nil {
		geohash = geo.EncodeGeohash(location.Lat, location.Lng, geo.AuditPrecision)
	}

	_, endRecord := tracing.StartDBSpan(ctx, "audit_entries", tracing.DBOperationInsert)
	_, err = s.auditLog.Record(audit.Entry{
		SubmissionID: outcome.SubmissionID,
		UserID:       outcome.UserID,
		Model:        outcome.Model,
		Confidence:   outcome.FinalConfidence,
		Verdict:      string(outcome.Verdict),
		Status:       status,
		ErrorText:    errorText,
		Geohash:      geohash,
		ExecutionMs:  outcome.ExecutionMs,
	})
	endRecord(err)
	if err != nil {
		s.logger.Error("failed to write audit entry",
			"submission_id", outcome.SubmissionID,
			"error", err)
	}
}

func (s *Service) applyLifecycle(ctx context.Context, submissionID string, verdict Verdict) {
	if s.lifecycle == nil {
		return
	}
	if err := s.lifecycle.ApplyVerdict(ctx, submissionID, verdict); err != nil {
		s.logger.Error("failed to apply verdict side effects",
			"submission_id", submissionID,
			"verdict", string(verdict),
			"error", err)
	}
}

func (s *Service) elapsedMs(start time.Time) int64 {
	ms := s.timeNow().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
