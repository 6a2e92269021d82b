package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for audit log operations.
type Repository interface {
	// Record appends a verification attempt to the audit log.
	// Returns the created entry.
	Record(entry Entry) (*Entry, error)

	// QueryBySubmission retrieves entries for a submission, sorted by time (newest first).
	// Limit specifies the maximum number of entries to return (0 = no limit).
	QueryBySubmission(submissionID string, limit int) ([]*Entry, error)

	// QueryByUser retrieves entries for a user, sorted by time (newest first).
	// Limit specifies the maximum number of entries to return (0 = no limit).
	QueryByUser(userID string, limit int) ([]*Entry, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	// Maintain insertion order for queries
	order []string
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[string]*Entry),
		order:   make([]string, 0),
	}
}

// Record appends a verification attempt to the audit log.
func (r *InMemoryRepository) Record(entry Entry) (*Entry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	stored := entry
	stored.ID = uuid.New().String()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.entries[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.mu.Unlock()

	// Return a copy to prevent external modification
	entryCopy := stored
	return &entryCopy, nil
}

// QueryBySubmission retrieves entries for a submission, newest first.
func (r *InMemoryRepository) QueryBySubmission(submissionID string, limit int) ([]*Entry, error) {
	return r.query(func(e *Entry) bool { return e.SubmissionID == submissionID }, limit)
}

// QueryByUser retrieves entries for a user, newest first.
func (r *InMemoryRepository) QueryByUser(userID string, limit int) ([]*Entry, error) {
	return r.query(func(e *Entry) bool { return e.UserID == userID }, limit)
}

func (r *InMemoryRepository) query(match func(*Entry) bool, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry

	// Iterate in reverse order (newest first)
	for i := len(r.order) - 1; i >= 0; i-- {
		entry := r.entries[r.order[i]]
		if match(entry) {
			entryCopy := *entry
			results = append(results, &entryCopy)

			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}

	return results, nil
}
