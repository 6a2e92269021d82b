package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record appends a verification attempt to the audit log.
func (r *PostgresRepository) Record(entry Entry) (*Entry, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	entry.ID = uuid.New().String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_entries (
			id, submission_id, user_id, model, confidence, verdict,
			status, error_text, geohash, execution_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		query,
		entry.ID,
		entry.SubmissionID,
		entry.UserID,
		entry.Model,
		entry.Confidence,
		entry.Verdict,
		entry.Status,
		entry.ErrorText,
		entry.Geohash,
		entry.ExecutionMs,
		entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	return &entry, nil
}

// QueryBySubmission retrieves entries for a submission, newest first.
func (r *PostgresRepository) QueryBySubmission(submissionID string, limit int) ([]*Entry, error) {
	return r.query("submission_id", submissionID, limit)
}

// QueryByUser retrieves entries for a user, newest first.
func (r *PostgresRepository) QueryByUser(userID string, limit int) ([]*Entry, error) {
	return r.query("user_id", userID, limit)
}

func (r *PostgresRepository) query(column, key string, limit int) ([]*Entry, error) {
	// column is one of two compile-time-known names, never user input.
	query := fmt.Sprintf(`
		SELECT id, submission_id, user_id, model, confidence, verdict,
		       status, error_text, geohash, execution_ms, created_at
		FROM audit_entries
		WHERE %s = $1
		ORDER BY created_at DESC
	`, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		err := rows.Scan(
			&entry.ID,
			&entry.SubmissionID,
			&entry.UserID,
			&entry.Model,
			&entry.Confidence,
			&entry.Verdict,
			&entry.Status,
			&entry.ErrorText,
			&entry.Geohash,
			&entry.ExecutionMs,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
