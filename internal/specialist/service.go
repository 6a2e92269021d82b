package specialist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/snapquest/api/internal/judge"
	"github.com/snapquest/api/internal/submission"
	"github.com/snapquest/api/internal/verify"
)

// Service errors.
var (
	ErrMissingOutcomes    = errors.New("outcome repository is required")
	ErrMissingSubmissions = errors.New("submission repository is required")
	ErrNoOutcome          = errors.New("submission has no verification outcome yet")
	ErrAlreadyRun         = errors.New("check already has a result; reset it before re-running")
	ErrCheckNotConfigured = errors.New("check provider is not configured")
)

// Classifier is the deepfake detection provider.
type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType string) (*DeepfakeResult, error)
}

// Analyzer produces a free-form image analysis report.
type Analyzer interface {
	Describe(ctx context.Context, image []byte, mimeType string, quest judge.QuestContext) (string, error)
}

// SubmissionReader looks up submissions; specialists no-op when the
// submission has been deleted.
type SubmissionReader interface {
	GetByID(id string) (*submission.Submission, error)
}

// ServiceConfig holds the dependencies for the specialist service.
type ServiceConfig struct {
	// Outcomes stores enrichment results on verification outcomes.
	// Required.
	Outcomes verify.OutcomeRepository

	// Submissions is used to confirm the submission still exists.
	// Required.
	Submissions SubmissionReader

	// Fetcher retrieves photo bytes. Required for both checks.
	Fetcher verify.PhotoFetcher

	// Deepfake is the classifier provider. Optional.
	Deepfake Classifier

	// Analyzer is the report provider. Optional.
	Analyzer Analyzer

	// Timeout bounds each individual check. Zero uses a default.
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
}

// Service runs specialist checks. Each check is idempotent: a check with an
// existing result refuses to run again until explicitly reset.
type Service struct {
	outcomes    verify.OutcomeRepository
	submissions SubmissionReader
	fetcher     verify.PhotoFetcher
	deepfake    Classifier
	analyzer    Analyzer
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

// NewService creates a specialist service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Outcomes == nil {
		return nil, ErrMissingOutcomes
	}
	if cfg.Submissions == nil {
		return nil, ErrMissingSubmissions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDeepfakeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		outcomes:    cfg.Outcomes,
		submissions: cfg.Submissions,
		fetcher:     cfg.Fetcher,
		deepfake:    cfg.Deepfake,
		analyzer:    cfg.Analyzer,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}, nil
}

// Results carries the independent outcomes of a dispatch: a failure in one
// check never affects the other.
type Results struct {
	DeepfakeErr error
	AnalysisErr error
}

// RunAll dispatches both checks in parallel and waits for each
// independently.
func (s *Service) RunAll(ctx context.Context, submissionID string) Results {
	deepfakeDone := make(chan error, 1)
	analysisDone := make(chan error, 1)

	go func() { deepfakeDone <- s.RunDeepfake(ctx, submissionID) }()
	go func() { analysisDone <- s.RunAnalysis(ctx, submissionID) }()

	return Results{
		DeepfakeErr: <-deepfakeDone,
		AnalysisErr: <-analysisDone,
	}
}

// DispatchAsync fires both checks in the background, detached from the
// caller's request context. Failures are logged, never surfaced.
func (s *Service) DispatchAsync(submissionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.timeout)
		defer cancel()

		results := s.RunAll(ctx, submissionID)
		if results.DeepfakeErr != nil && !errors.Is(results.DeepfakeErr, ErrCheckNotConfigured) {
			s.logger.Warn("deepfake check failed",
				"submission_id", submissionID,
				"error", results.DeepfakeErr)
		}
		if results.AnalysisErr != nil && !errors.Is(results.AnalysisErr, ErrCheckNotConfigured) {
			s.logger.Warn("analysis check failed",
				"submission_id", submissionID,
				"error", results.AnalysisErr)
		}
	}()
}

// RunDeepfake classifies the submission photo and stores the verdict on
// the latest verification outcome. No-ops when the submission no longer
// exists; refuses to overwrite an existing result.
func (s *Service) RunDeepfake(ctx context.Context, submissionID string) error {
	return s.runCheck(ctx, submissionID, CheckTypeDeepfake, func(ctx context.Context, outcome *verify.VerificationOutcome, image []byte, mimeType string, quest judge.QuestContext) error {
		if s.deepfake == nil {
			return ErrCheckNotConfigured
		}
		if outcome.DeepfakeVerdict != nil {
			return ErrAlreadyRun
		}

		result, err := s.deepfake.Classify(ctx, image, mimeType)
		if err != nil {
			return err
		}

		verdict := fmt.Sprintf("%s (fake probability %.2f)", result.Verdict, result.FakeProbability)
		return s.outcomes.SetDeepfakeVerdict(outcome.ID, &verdict)
	})
}

// RunAnalysis generates a free-form report for the submission photo and
// stores it on the latest verification outcome.
func (s *Service) RunAnalysis(ctx context.Context, submissionID string) error {
	return s.runCheck(ctx, submissionID, CheckTypeAnalysis, func(ctx context.Context, outcome *verify.VerificationOutcome, image []byte, mimeType string, quest judge.QuestContext) error {
		if s.analyzer == nil {
			return ErrCheckNotConfigured
		}
		if outcome.AnalysisReport != nil {
			return ErrAlreadyRun
		}

		report, err := s.analyzer.Describe(ctx, image, mimeType, quest)
		if err != nil {
			return err
		}
		return s.outcomes.SetAnalysisReport(outcome.ID, &report)
	})
}

// ResetDeepfake clears a prior deepfake verdict so the check can re-run.
func (s *Service) ResetDeepfake(submissionID string) error {
	outcome, err := s.outcomes.GetLatestBySubmission(submissionID)
	if err != nil {
		return err
	}
	return s.outcomes.SetDeepfakeVerdict(outcome.ID, nil)
}

// ResetAnalysis clears a prior analysis report so the check can re-run.
func (s *Service) ResetAnalysis(submissionID string) error {
	outcome, err := s.outcomes.GetLatestBySubmission(submissionID)
	if err != nil {
		return err
	}
	return s.outcomes.SetAnalysisReport(outcome.ID, nil)
}

type checkFunc func(ctx context.Context, outcome *verify.VerificationOutcome, image []byte, mimeType string, quest judge.QuestContext) error

func (s *Service) runCheck(ctx context.Context, submissionID, checkType string, run checkFunc) error {
	start := time.Now()

	sub, err := s.submissions.GetByID(submissionID)
	if err != nil {
		if errors.Is(err, submission.ErrSubmissionNotFound) {
			// Terminal rejection already removed the submission; any
			// check still in flight must discard its work.
			if s.metrics != nil {
				s.metrics.IncChecksTotal(checkType, StatusSkipped)
			}
			s.logger.Info("skipping specialist check for deleted submission",
				"submission_id", submissionID,
				"check_type", checkType)
			return nil
		}
		return err
	}

	outcome, err := s.outcomes.GetLatestBySubmission(submissionID)
	if err != nil {
		if errors.Is(err, verify.ErrOutcomeNotFound) {
			return ErrNoOutcome
		}
		return err
	}

	var image []byte
	var mimeType string
	if s.fetcher != nil {
		image, mimeType, err = s.fetcher.FetchPhoto(ctx, sub.PhotoURL)
		if err != nil {
			s.recordFailure(checkType, "fetch_error", start)
			return fmt.Errorf("failed to fetch photo for %s check: %w", checkType, err)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = run(cctx, outcome, image, mimeType, judge.QuestContext{
		Description: sub.Caption,
	})
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.IncChecksTotal(checkType, StatusSuccess)
			s.metrics.ObserveCheckDuration(checkType, time.Since(start).Seconds())
		}
		return nil
	case errors.Is(err, ErrAlreadyRun), errors.Is(err, ErrCheckNotConfigured):
		if s.metrics != nil {
			s.metrics.IncChecksTotal(checkType, StatusSkipped)
		}
		return err
	default:
		s.recordFailure(checkType, "provider_error", start)
		return err
	}
}

func (s *Service) recordFailure(checkType, errorType string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncChecksTotal(checkType, StatusFailure)
	s.metrics.IncCheckErrors(checkType, errorType)
	s.metrics.ObserveCheckDuration(checkType, time.Since(start).Seconds())
}
