package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports entries as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports entries as a JSON array.
	ExportFormatJSON ExportFormat = "json"
)

// ExportOptions configures audit log export parameters. Exactly one of
// SubmissionID or UserID must be set.
type ExportOptions struct {
	Format       ExportFormat
	SubmissionID string    // Filter by submission (optional)
	UserID       string    // Filter by user (optional)
	From         time.Time // Start of time range, inclusive (optional)
	To           time.Time // End of time range, inclusive (optional)
	Limit        int       // Maximum number of entries (0 = no limit)
}

// ExportEntries exports audit entries matching the given options, for
// compliance review and incident response.
func ExportEntries(repo Repository, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatJSON {
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}

	// Query without limit first so the time-range filter sees everything,
	// then apply the limit to the filtered set.
	var entries []*Entry
	var err error
	switch {
	case opts.SubmissionID != "":
		entries, err = repo.QueryBySubmission(opts.SubmissionID, 0)
	case opts.UserID != "":
		entries, err = repo.QueryByUser(opts.UserID, 0)
	default:
		return nil, fmt.Errorf("export requires a submission or user filter")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	if !opts.From.IsZero() || !opts.To.IsZero() {
		entries = filterByTimeRange(entries, opts.From, opts.To)
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	switch opts.Format {
	case ExportFormatCSV:
		return exportToCSV(entries)
	default:
		return exportToJSON(entries)
	}
}

func filterByTimeRange(entries []*Entry, from, to time.Time) []*Entry {
	var filtered []*Entry
	for _, e := range entries {
		if !from.IsZero() && e.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.CreatedAt.After(to) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func exportToCSV(entries []*Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	header := []string{
		"ID",
		"Timestamp (UTC)",
		"Submission ID",
		"User ID",
		"Model",
		"Confidence",
		"Verdict",
		"Status",
		"Error",
		"Geohash",
		"Execution (ms)",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.ID,
			e.CreatedAt.Format(time.RFC3339),
			e.SubmissionID,
			e.UserID,
			e.Model,
			strconv.FormatFloat(e.Confidence, 'f', 4, 64),
			e.Verdict,
			e.Status,
			e.ErrorText,
			e.Geohash,
			strconv.FormatInt(e.ExecutionMs, 10),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func exportToJSON(entries []*Entry) ([]byte, error) {
	if entries == nil {
		entries = []*Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}
