package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snapquest/api/internal/specialist"
)

// stubRunner records specialist invocations and returns configured errors.
type stubRunner struct {
	deepfakeErr error
	analysisErr error
	resetErr    error

	deepfakeRuns int
	analysisRuns int
	resets       int
	dispatches   int
}

func (s *stubRunner) RunDeepfake(ctx context.Context, submissionID string) error {
	s.deepfakeRuns++
	return s.deepfakeErr
}

func (s *stubRunner) RunAnalysis(ctx context.Context, submissionID string) error {
	s.analysisRuns++
	return s.analysisErr
}

func (s *stubRunner) ResetDeepfake(submissionID string) error {
	s.resets++
	return s.resetErr
}

func (s *stubRunner) ResetAnalysis(submissionID string) error {
	s.resets++
	return s.resetErr
}

func (s *stubRunner) DispatchAsync(submissionID string) {
	s.dispatches++
}

func TestDispatch_Accepted(t *testing.T) {
	runner := &stubRunner{}
	handlers := NewSpecialistHandlers(runner)

	req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/checks", nil)
	w := httptest.NewRecorder()

	handlers.Dispatch(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", w.Code)
	}
	if runner.dispatches != 1 {
		t.Errorf("expected 1 dispatch, got %d", runner.dispatches)
	}
}

func TestCheck_RunDeepfake(t *testing.T) {
	runner := &stubRunner{}
	handlers := NewSpecialistHandlers(runner)

	req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/checks/deepfake", nil)
	w := httptest.NewRecorder()

	handlers.Check(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if runner.deepfakeRuns != 1 {
		t.Errorf("expected 1 deepfake run, got %d", runner.deepfakeRuns)
	}
}

func TestCheck_RunAnalysis(t *testing.T) {
	runner := &stubRunner{}
	handlers := NewSpecialistHandlers(runner)

	req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/checks/analysis", nil)
	w := httptest.NewRecorder()

	handlers.Check(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if runner.analysisRuns != 1 {
		t.Errorf("expected 1 analysis run, got %d", runner.analysisRuns)
	}
}

func TestCheck_Reset(t *testing.T) {
	runner := &stubRunner{}
	handlers := NewSpecialistHandlers(runner)

	for _, check := range []string{"deepfake", "analysis"} {
		req := httptest.NewRequest(http.MethodDelete, "/submissions/sub-1/checks/"+check, nil)
		w := httptest.NewRecorder()

		handlers.Check(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", check, w.Code)
		}
	}
	if runner.resets != 2 {
		t.Errorf("expected 2 resets, got %d", runner.resets)
	}
}

func TestCheck_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "already run",
			err:        specialist.ErrAlreadyRun,
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeCheckAlreadyRun,
		},
		{
			name:       "not configured",
			err:        specialist.ErrCheckNotConfigured,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeCheckNotConfigured,
		},
		{
			name:       "no outcome",
			err:        specialist.ErrNoOutcome,
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeOutcomeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewSpecialistHandlers(&stubRunner{deepfakeErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/checks/deepfake", nil)
			w := httptest.NewRecorder()

			handlers.Check(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestCheck_UnknownCheck(t *testing.T) {
	handlers := NewSpecialistHandlers(&stubRunner{})

	req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/checks/palmistry", nil)
	w := httptest.NewRecorder()

	handlers.Check(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}
