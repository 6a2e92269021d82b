package verify

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/snapquest/api/internal/photo"
)

// PostgresOutcomeRepository implements OutcomeRepository using PostgreSQL.
// Extracted photo metadata is stored as JSONB so the full record survives
// without a column per EXIF field.
type PostgresOutcomeRepository struct {
	db *sql.DB
}

// NewPostgresOutcomeRepository creates a new PostgresOutcomeRepository.
func NewPostgresOutcomeRepository(db *sql.DB) *PostgresOutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

const outcomeColumns = `
	id, submission_id, user_id, quest_id,
	geofence_score, authenticity_score, visual_scene_match_score,
	quest_match_score, scene_relevance_score,
	final_confidence, verdict, reason, metadata, model, override,
	execution_ms, created_at, deepfake_verdict, analysis_report
`

// Save persists a new outcome.
func (r *PostgresOutcomeRepository) Save(outcome *VerificationOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(outcome.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal photo metadata: %w", err)
	}

	query := `
		INSERT INTO verification_outcomes (` + outcomeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.db.Exec(
		query,
		outcome.ID,
		outcome.SubmissionID,
		outcome.UserID,
		outcome.QuestID,
		outcome.Scores.Geofence,
		outcome.Scores.Authenticity,
		outcome.Scores.VisualSceneMatch,
		outcome.Scores.QuestMatch,
		outcome.Scores.SceneRelevance,
		outcome.FinalConfidence,
		string(outcome.Verdict),
		outcome.Reason,
		metadataJSON,
		outcome.Model,
		outcome.Override,
		outcome.ExecutionMs,
		outcome.CreatedAt,
		outcome.DeepfakeVerdict,
		outcome.AnalysisReport,
	)
	if err != nil {
		return fmt.Errorf("failed to save verification outcome: %w", err)
	}
	return nil
}

// Get retrieves a single outcome by ID.
func (r *PostgresOutcomeRepository) Get(id string) (*VerificationOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM verification_outcomes WHERE id = $1`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetLatestBySubmission retrieves the most recent outcome for a submission.
func (r *PostgresOutcomeRepository) GetLatestBySubmission(submissionID string) (*VerificationOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM verification_outcomes
		WHERE submission_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(query, submissionID))
}

// ListBySubmission retrieves outcomes for a submission, newest first.
func (r *PostgresOutcomeRepository) ListBySubmission(submissionID string, limit int) ([]*VerificationOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM verification_outcomes
		WHERE submission_id = $1
		ORDER BY created_at DESC
	`
	return r.list(query, submissionID, limit)
}

// ListByUser retrieves outcomes for a user, newest first.
func (r *PostgresOutcomeRepository) ListByUser(userID string, limit int) ([]*VerificationOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM verification_outcomes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(query, userID, limit)
}

// SetDeepfakeVerdict attaches or clears a deepfake classifier result.
func (r *PostgresOutcomeRepository) SetDeepfakeVerdict(outcomeID string, verdict *string) error {
	return r.setEnrichment(outcomeID, "deepfake_verdict", verdict)
}

// SetAnalysisReport attaches or clears a free-form analysis report.
func (r *PostgresOutcomeRepository) SetAnalysisReport(outcomeID string, report *string) error {
	return r.setEnrichment(outcomeID, "analysis_report", report)
}

func (r *PostgresOutcomeRepository) setEnrichment(outcomeID, column string, value *string) error {
	// column is one of two compile-time-known names, never user input.
	query := fmt.Sprintf(`UPDATE verification_outcomes SET %s = $1 WHERE id = $2`, column)

	result, err := r.db.Exec(query, value, outcomeID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOutcomeNotFound
	}
	return nil
}

func (r *PostgresOutcomeRepository) list(query, key string, limit int) ([]*VerificationOutcome, error) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list verification outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*VerificationOutcome
	for rows.Next() {
		outcome, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verification outcomes: %w", err)
	}
	return outcomes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresOutcomeRepository) scanOne(row *sql.Row) (*VerificationOutcome, error) {
	outcome, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrOutcomeNotFound
	}
	return outcome, err
}

func (r *PostgresOutcomeRepository) scanRow(row rowScanner) (*VerificationOutcome, error) {
	outcome := &VerificationOutcome{}
	var verdict string
	var metadataJSON []byte

	err := row.Scan(
		&outcome.ID,
		&outcome.SubmissionID,
		&outcome.UserID,
		&outcome.QuestID,
		&outcome.Scores.Geofence,
		&outcome.Scores.Authenticity,
		&outcome.Scores.VisualSceneMatch,
		&outcome.Scores.QuestMatch,
		&outcome.Scores.SceneRelevance,
		&outcome.FinalConfidence,
		&verdict,
		&outcome.Reason,
		&metadataJSON,
		&outcome.Model,
		&outcome.Override,
		&outcome.ExecutionMs,
		&outcome.CreatedAt,
		&outcome.DeepfakeVerdict,
		&outcome.AnalysisReport,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan verification outcome: %w", err)
	}

	outcome.Verdict = Verdict(verdict)
	if len(metadataJSON) > 0 {
		var meta photo.Metadata
		if err := json.Unmarshal(metadataJSON, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal photo metadata: %w", err)
		}
		outcome.Metadata = meta
	}
	return outcome, nil
}
