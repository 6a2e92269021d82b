package verify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// OutcomeRepository defines persistence for verification outcomes. Outcomes
// are append-only; specialist enrichments mutate only their own fields on
// an existing record.
type OutcomeRepository interface {
	// Save persists a new outcome. Assigns ID and CreatedAt when unset.
	Save(outcome *VerificationOutcome) error

	// Get retrieves a single outcome by ID.
	// Returns ErrOutcomeNotFound if it does not exist.
	Get(id string) (*VerificationOutcome, error)

	// GetLatestBySubmission retrieves the most recent outcome for a
	// submission. Returns ErrOutcomeNotFound when none exists.
	GetLatestBySubmission(submissionID string) (*VerificationOutcome, error)

	// ListBySubmission retrieves outcomes for a submission, newest first.
	// Limit specifies the maximum number of entries to return (0 = no limit).
	ListBySubmission(submissionID string, limit int) ([]*VerificationOutcome, error)

	// ListByUser retrieves outcomes for a user, newest first.
	// Limit specifies the maximum number of entries to return (0 = no limit).
	ListByUser(userID string, limit int) ([]*VerificationOutcome, error)

	// SetDeepfakeVerdict attaches (or clears, with nil) a deepfake
	// classifier result on an existing outcome.
	SetDeepfakeVerdict(outcomeID string, verdict *string) error

	// SetAnalysisReport attaches (or clears, with nil) a free-form image
	// analysis report on an existing outcome.
	SetAnalysisReport(outcomeID string, report *string) error
}

// InMemoryOutcomeRepository is an in-memory implementation of
// OutcomeRepository. Used for testing and development. Thread-safe via
// RWMutex.
type InMemoryOutcomeRepository struct {
	mu       sync.RWMutex
	outcomes map[string]*VerificationOutcome
	// Maintain insertion order for newest-first queries
	order []string
}

// NewInMemoryOutcomeRepository creates a new in-memory outcome repository.
func NewInMemoryOutcomeRepository() *InMemoryOutcomeRepository {
	return &InMemoryOutcomeRepository{
		outcomes: make(map[string]*VerificationOutcome),
		order:    make([]string, 0),
	}
}

// Save persists a new outcome.
func (r *InMemoryOutcomeRepository) Save(outcome *VerificationOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}

	stored := copyOutcome(outcome)

	r.mu.Lock()
	r.outcomes[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	r.mu.Unlock()

	return nil
}

// Get retrieves a single outcome by ID.
func (r *InMemoryOutcomeRepository) Get(id string) (*VerificationOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	outcome, ok := r.outcomes[id]
	if !ok {
		return nil, ErrOutcomeNotFound
	}
	return copyOutcome(outcome), nil
}

// GetLatestBySubmission retrieves the most recent outcome for a submission.
func (r *InMemoryOutcomeRepository) GetLatestBySubmission(submissionID string) (*VerificationOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		outcome := r.outcomes[r.order[i]]
		if outcome.SubmissionID == submissionID {
			return copyOutcome(outcome), nil
		}
	}
	return nil, ErrOutcomeNotFound
}

// ListBySubmission retrieves outcomes for a submission, newest first.
func (r *InMemoryOutcomeRepository) ListBySubmission(submissionID string, limit int) ([]*VerificationOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*VerificationOutcome
	for i := len(r.order) - 1; i >= 0; i-- {
		outcome := r.outcomes[r.order[i]]
		if outcome.SubmissionID == submissionID {
			results = append(results, copyOutcome(outcome))
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// ListByUser retrieves outcomes for a user, newest first.
func (r *InMemoryOutcomeRepository) ListByUser(userID string, limit int) ([]*VerificationOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*VerificationOutcome
	for i := len(r.order) - 1; i >= 0; i-- {
		outcome := r.outcomes[r.order[i]]
		if outcome.UserID == userID {
			results = append(results, copyOutcome(outcome))
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// SetDeepfakeVerdict attaches or clears a deepfake classifier result.
func (r *InMemoryOutcomeRepository) SetDeepfakeVerdict(outcomeID string, verdict *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, ok := r.outcomes[outcomeID]
	if !ok {
		return ErrOutcomeNotFound
	}
	outcome.DeepfakeVerdict = copyStringPtr(verdict)
	return nil
}

// SetAnalysisReport attaches or clears a free-form analysis report.
func (r *InMemoryOutcomeRepository) SetAnalysisReport(outcomeID string, report *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, ok := r.outcomes[outcomeID]
	if !ok {
		return ErrOutcomeNotFound
	}
	outcome.AnalysisReport = copyStringPtr(report)
	return nil
}

// copyOutcome returns a deep copy to prevent external modification of
// stored records.
func copyOutcome(o *VerificationOutcome) *VerificationOutcome {
	c := *o
	c.DeepfakeVerdict = copyStringPtr(o.DeepfakeVerdict)
	c.AnalysisReport = copyStringPtr(o.AnalysisReport)
	if o.Metadata.Location != nil {
		loc := *o.Metadata.Location
		c.Metadata.Location = &loc
	}
	if o.Metadata.CapturedAt != nil {
		at := *o.Metadata.CapturedAt
		c.Metadata.CapturedAt = &at
	}
	return &c
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
