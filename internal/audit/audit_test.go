package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func validEntry() Entry {
	return Entry{
		SubmissionID: "sub-1",
		UserID:       "user-1",
		Model:        "gemini-2.0-flash",
		Confidence:   0.72,
		Verdict:      "uncertain",
		Status:       StatusSuccess,
		Geohash:      "tdr1v9",
		ExecutionMs:  1250,
	}
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Entry)
		wantErr error
	}{
		{
			name:   "valid entry",
			mutate: func(e *Entry) {},
		},
		{
			name:    "missing submission ID",
			mutate:  func(e *Entry) { e.SubmissionID = "" },
			wantErr: ErrMissingSubmissionID,
		},
		{
			name:    "invalid status",
			mutate:  func(e *Entry) { e.Status = "partial" },
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "negative execution time",
			mutate:  func(e *Entry) { e.ExecutionMs = -1 },
			wantErr: ErrNegativeExecution,
		},
		{
			name:   "timeout status",
			mutate: func(e *Entry) { e.Status = StatusTimeout },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := validEntry()
			tt.mutate(&entry)
			if err := entry.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordAndQueryBySubmission(t *testing.T) {
	repo := NewInMemoryRepository()

	created, err := repo.Record(validEntry())
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Record() did not assign an ID")
	}
	if created.CreatedAt.IsZero() {
		t.Error("Record() did not assign CreatedAt")
	}

	entries, err := repo.QueryBySubmission("sub-1", 0)
	if err != nil {
		t.Fatalf("QueryBySubmission() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("QueryBySubmission() returned %d entries, want 1", len(entries))
	}
	if entries[0].ExecutionMs < 0 {
		t.Errorf("ExecutionMs = %d, want >= 0", entries[0].ExecutionMs)
	}
	if !ValidStatuses[entries[0].Status] {
		t.Errorf("Status = %q, want one of success/error/timeout", entries[0].Status)
	}
}

func TestRecordRejectsInvalidEntry(t *testing.T) {
	repo := NewInMemoryRepository()

	entry := validEntry()
	entry.Status = "maybe"
	if _, err := repo.Record(entry); err != ErrInvalidStatus {
		t.Errorf("Record() error = %v, want %v", err, ErrInvalidStatus)
	}
}

func TestQueryNewestFirstWithLimit(t *testing.T) {
	repo := NewInMemoryRepository()

	for i := 0; i < 3; i++ {
		entry := validEntry()
		entry.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if _, err := repo.Record(entry); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := repo.QueryByUser("user-1", 2)
	if err != nil {
		t.Fatalf("QueryByUser() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("QueryByUser() returned %d entries, want 2", len(entries))
	}
	if entries[0].CreatedAt.Before(entries[1].CreatedAt) {
		t.Error("QueryByUser() entries not sorted newest first")
	}
}

func TestQueryReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.Record(validEntry()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	first, _ := repo.QueryBySubmission("sub-1", 0)
	first[0].Verdict = "tampered"

	second, _ := repo.QueryBySubmission("sub-1", 0)
	if second[0].Verdict != "uncertain" {
		t.Errorf("stored entry was mutated through query result: verdict = %q", second[0].Verdict)
	}
}

func TestExportCSV(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.Record(validEntry()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	data, err := ExportEntries(repo, ExportOptions{
		Format:       ExportFormatCSV,
		SubmissionID: "sub-1",
	})
	if err != nil {
		t.Fatalf("ExportEntries() error = %v", err)
	}

	out := string(data)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("CSV export has %d lines, want header + 1 row", len(lines))
	}
	if !strings.Contains(lines[1], "sub-1") || !strings.Contains(lines[1], "0.7200") {
		t.Errorf("CSV row missing expected fields: %q", lines[1])
	}
}

func TestExportJSONTimeRange(t *testing.T) {
	repo := NewInMemoryRepository()

	old := validEntry()
	old.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := validEntry()
	recent.CreatedAt = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []Entry{old, recent} {
		if _, err := repo.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	data, err := ExportEntries(repo, ExportOptions{
		Format: ExportFormatJSON,
		UserID: "user-1",
		From:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ExportEntries() error = %v", err)
	}

	var exported []Entry
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(exported) != 1 {
		t.Fatalf("exported %d entries, want 1 (time-filtered)", len(exported))
	}
}

func TestExportRequiresFilter(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := ExportEntries(repo, ExportOptions{Format: ExportFormatJSON}); err == nil {
		t.Error("ExportEntries() expected error without a filter")
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := ExportEntries(repo, ExportOptions{Format: "xml", UserID: "u"}); err == nil {
		t.Error("ExportEntries() expected error for unknown format")
	}
}
