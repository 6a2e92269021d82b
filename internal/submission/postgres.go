package submission

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/snapquest/api/internal/geo"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new submission with a generated UUID and pending status.
func (r *PostgresRepository) Create(sub *Submission) error {
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

	var lat, lng *float64
	if sub.Location != nil {
		lat = &sub.Location.Lat
		lng = &sub.Location.Lng
	}

	query := `
		INSERT INTO submissions (
			id, quest_id, user_id, photo_url, caption,
			location_lat, location_lng, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(
		query,
		sub.ID,
		sub.QuestID,
		sub.UserID,
		sub.PhotoURL,
		sub.Caption,
		lat,
		lng,
		sub.Status,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID retrieves a submission by its UUID.
func (r *PostgresRepository) GetByID(id string) (*Submission, error) {
	query := `
		SELECT id, quest_id, user_id, photo_url, caption,
		       location_lat, location_lng, status, created_at, updated_at
		FROM submissions
		WHERE id = $1
	`
	sub, err := scanSubmission(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrSubmissionNotFound
	}
	return sub, err
}

// UpdateStatus transitions a submission to the given status.
func (r *PostgresRepository) UpdateStatus(id, status string) error {
	if !ValidStatuses[status] {
		return ErrInvalidStatus
	}

	result, err := r.db.Exec(
		`UPDATE submissions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// Delete removes the submission row entirely.
func (r *PostgresRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// ListByQuest retrieves submissions for a quest, newest first.
func (r *PostgresRepository) ListByQuest(questID string, limit int) ([]*Submission, error) {
	return r.list("quest_id", questID, limit)
}

// ListByUser retrieves submissions for a user, newest first.
func (r *PostgresRepository) ListByUser(userID string, limit int) ([]*Submission, error) {
	return r.list("user_id", userID, limit)
}

func (r *PostgresRepository) list(column, key string, limit int) ([]*Submission, error) {
	// column is one of two compile-time-known names, never user input.
	query := fmt.Sprintf(`
		SELECT id, quest_id, user_id, photo_url, caption,
		       location_lat, location_lng, status, created_at, updated_at
		FROM submissions
		WHERE %s = $1
		ORDER BY created_at DESC
	`, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	sub := &Submission{}
	var lat, lng *float64

	err := row.Scan(
		&sub.ID,
		&sub.QuestID,
		&sub.UserID,
		&sub.PhotoURL,
		&sub.Caption,
		&lat,
		&lng,
		&sub.Status,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	if lat != nil && lng != nil {
		sub.Location = &geo.Point{Lat: *lat, Lng: *lng}
	}
	return sub, nil
}

// PostgresSocialRepository implements SocialRepository using PostgreSQL.
type PostgresSocialRepository struct {
	db *sql.DB
}

// NewPostgresSocialRepository creates a new PostgresSocialRepository.
func NewPostgresSocialRepository(db *sql.DB) *PostgresSocialRepository {
	return &PostgresSocialRepository{db: db}
}

// AddLike records a like on a submission.
func (r *PostgresSocialRepository) AddLike(like *Like) error {
	like.ID = uuid.New().String()
	like.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO submission_likes (id, submission_id, user_id, created_at) VALUES ($1, $2, $3, $4)`,
		like.ID, like.SubmissionID, like.UserID, like.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add like: %w", err)
	}
	return nil
}

// AddComment records a comment on a submission.
func (r *PostgresSocialRepository) AddComment(comment *Comment) error {
	comment.ID = uuid.New().String()
	comment.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO submission_comments (id, submission_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		comment.ID, comment.SubmissionID, comment.UserID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

// AddShare records a share of a submission.
func (r *PostgresSocialRepository) AddShare(share *Share) error {
	share.ID = uuid.New().String()
	share.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO submission_shares (id, submission_id, user_id, created_at) VALUES ($1, $2, $3, $4)`,
		share.ID, share.SubmissionID, share.UserID, share.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add share: %w", err)
	}
	return nil
}

// CountBySubmission returns the number of likes, comments, and shares.
func (r *PostgresSocialRepository) CountBySubmission(submissionID string) (int, int, int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM submission_likes WHERE submission_id = $1),
			(SELECT COUNT(*) FROM submission_comments WHERE submission_id = $1),
			(SELECT COUNT(*) FROM submission_shares WHERE submission_id = $1)
	`

	var likes, comments, shares int
	if err := r.db.QueryRow(query, submissionID).Scan(&likes, &comments, &shares); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count social rows: %w", err)
	}
	return likes, comments, shares, nil
}

// DeleteBySubmission removes all social rows for a submission.
func (r *PostgresSocialRepository) DeleteBySubmission(submissionID string) (int, error) {
	total := 0
	for _, table := range []string{"submission_likes", "submission_comments", "submission_shares"} {
		result, err := r.db.Exec(
			fmt.Sprintf(`DELETE FROM %s WHERE submission_id = $1`, table),
			submissionID,
		)
		if err != nil {
			return total, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		if affected, err := result.RowsAffected(); err == nil {
			total += int(affected)
		}
	}
	return total, nil
}
