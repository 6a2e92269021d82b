package submission

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for submission data operations.
// Deletion is a hard delete: a purged submission leaves no row behind, so
// the quest immediately becomes resubmittable.
type Repository interface {
	// Create inserts a new submission with a generated UUID and pending
	// status.
	Create(sub *Submission) error

	// GetByID retrieves a submission by its UUID.
	GetByID(id string) (*Submission, error)

	// UpdateStatus transitions a submission to the given status.
	UpdateStatus(id, status string) error

	// Delete removes the submission row entirely.
	Delete(id string) error

	// ListByQuest retrieves submissions for a quest, newest first.
	ListByQuest(questID string, limit int) ([]*Submission, error)

	// ListByUser retrieves submissions for a user, newest first.
	ListByUser(userID string, limit int) ([]*Submission, error)
}

// SocialRepository manages the social rows (likes, comments, shares) keyed
// to a submission.
type SocialRepository interface {
	AddLike(like *Like) error
	AddComment(comment *Comment) error
	AddShare(share *Share) error

	// CountBySubmission returns the number of likes, comments, and shares
	// for a submission.
	CountBySubmission(submissionID string) (likes, comments, shares int, err error)

	// DeleteBySubmission removes all social rows for a submission.
	// Returns the total number of rows removed.
	DeleteBySubmission(submissionID string) (int, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu          sync.RWMutex
	submissions map[string]*Submission
	// Maintain insertion order for newest-first listing
	order []string
}

// NewInMemoryRepository creates a new in-memory submission repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		submissions: make(map[string]*Submission),
		order:       make([]string, 0),
	}
}

// Create inserts a new submission with a generated UUID and pending status.
func (r *InMemoryRepository) Create(sub *Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	sub.ID = uuid.New().String()
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now

	subCopy := copySubmission(sub)

	r.mu.Lock()
	r.submissions[sub.ID] = subCopy
	r.order = append(r.order, sub.ID)
	r.mu.Unlock()

	return nil
}

// GetByID retrieves a submission by its UUID.
func (r *InMemoryRepository) GetByID(id string) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return copySubmission(sub), nil
}

// UpdateStatus transitions a submission to the given status.
func (r *InMemoryRepository) UpdateStatus(id, status string) error {
	if !ValidStatuses[status] {
		return ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.submissions[id]
	if !ok {
		return ErrSubmissionNotFound
	}
	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the submission row entirely.
func (r *InMemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.submissions[id]; !ok {
		return ErrSubmissionNotFound
	}
	delete(r.submissions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListByQuest retrieves submissions for a quest, newest first.
func (r *InMemoryRepository) ListByQuest(questID string, limit int) ([]*Submission, error) {
	return r.list(func(s *Submission) bool { return s.QuestID == questID }, limit)
}

// ListByUser retrieves submissions for a user, newest first.
func (r *InMemoryRepository) ListByUser(userID string, limit int) ([]*Submission, error) {
	return r.list(func(s *Submission) bool { return s.UserID == userID }, limit)
}

func (r *InMemoryRepository) list(match func(*Submission) bool, limit int) ([]*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Submission
	for i := len(r.order) - 1; i >= 0; i-- {
		sub := r.submissions[r.order[i]]
		if match(sub) {
			results = append(results, copySubmission(sub))
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func copySubmission(s *Submission) *Submission {
	c := *s
	if s.Location != nil {
		loc := *s.Location
		c.Location = &loc
	}
	return &c
}

// InMemorySocialRepository is an in-memory implementation of
// SocialRepository. Thread-safe via RWMutex.
type InMemorySocialRepository struct {
	mu       sync.RWMutex
	likes    map[string]*Like
	comments map[string]*Comment
	shares   map[string]*Share
}

// NewInMemorySocialRepository creates a new in-memory social repository.
func NewInMemorySocialRepository() *InMemorySocialRepository {
	return &InMemorySocialRepository{
		likes:    make(map[string]*Like),
		comments: make(map[string]*Comment),
		shares:   make(map[string]*Share),
	}
}

// AddLike records a like on a submission.
func (r *InMemorySocialRepository) AddLike(like *Like) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	like.ID = uuid.New().String()
	like.CreatedAt = time.Now().UTC()
	likeCopy := *like
	r.likes[like.ID] = &likeCopy
	return nil
}

// AddComment records a comment on a submission.
func (r *InMemorySocialRepository) AddComment(comment *Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	comment.ID = uuid.New().String()
	comment.CreatedAt = time.Now().UTC()
	commentCopy := *comment
	r.comments[comment.ID] = &commentCopy
	return nil
}

// AddShare records a share of a submission.
func (r *InMemorySocialRepository) AddShare(share *Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	share.ID = uuid.New().String()
	share.CreatedAt = time.Now().UTC()
	shareCopy := *share
	r.shares[share.ID] = &shareCopy
	return nil
}

// CountBySubmission returns the number of likes, comments, and shares.
func (r *InMemorySocialRepository) CountBySubmission(submissionID string) (int, int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var likes, comments, shares int
	for _, l := range r.likes {
		if l.SubmissionID == submissionID {
			likes++
		}
	}
	for _, c := range r.comments {
		if c.SubmissionID == submissionID {
			comments++
		}
	}
	for _, s := range r.shares {
		if s.SubmissionID == submissionID {
			shares++
		}
	}
	return likes, comments, shares, nil
}

// DeleteBySubmission removes all social rows for a submission.
func (r *InMemorySocialRepository) DeleteBySubmission(submissionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, l := range r.likes {
		if l.SubmissionID == submissionID {
			delete(r.likes, id)
			removed++
		}
	}
	for id, c := range r.comments {
		if c.SubmissionID == submissionID {
			delete(r.comments, id)
			removed++
		}
	}
	for id, s := range r.shares {
		if s.SubmissionID == submissionID {
			delete(r.shares, id)
			removed++
		}
	}
	return removed, nil
}
