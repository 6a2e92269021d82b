package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snapquest/api/internal/audit"
	"github.com/snapquest/api/internal/auth"
	"github.com/snapquest/api/internal/submission"
	"github.com/snapquest/api/internal/verify"
)

func routerFixture(t *testing.T) (http.Handler, *auth.JWTService, *submission.InMemoryRepository) {
	t.Helper()

	repo := submission.NewInMemoryRepository()
	outcomes := verify.NewInMemoryOutcomeRepository()
	jwtSvc := auth.NewJWTService("test-secret-key-32-characters-xx")

	router := NewRouter(RouterConfig{
		Submissions: NewSubmissionHandlers(repo, submission.NewInMemorySocialRepository()),
		Verify: NewVerifyHandlers(
			&stubVerifier{outcome: &verify.VerificationOutcome{Verdict: verify.VerdictUncertain}},
			repo, outcomes,
		),
		Audit:      NewAuditHandlers(audit.NewInMemoryRepository()),
		Specialist: NewSpecialistHandlers(&stubRunner{}),
		Health:     NewHealthHandlers(HealthHandlersConfig{}),
		Validator:  jwtSvc,
	})
	return router, jwtSvc, repo
}

func TestRouter_HealthRoutes(t *testing.T) {
	router, _, _ := routerFixture(t)

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}
	}
}

func TestRouter_CreateRequiresAuth(t *testing.T) {
	router, jwtSvc, _ := routerFixture(t)

	body, _ := json.Marshal(CreateSubmissionRequest{QuestID: "q1", PhotoURL: "https://x/p.jpg"})

	// Without a token.
	req := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", w.Code)
	}

	// With a token.
	token, err := jwtSvc.GenerateAccessToken("user-1", auth.RoleUser)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201 with token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_VerifyFlow(t *testing.T) {
	router, jwtSvc, repo := routerFixture(t)

	sub := &submission.Submission{QuestID: "q1", UserID: "user-1", PhotoURL: "https://x/p.jpg"}
	if err := repo.Create(sub); err != nil {
		t.Fatalf("create: %v", err)
	}

	token, err := jwtSvc.GenerateAccessToken("user-1", auth.RoleUser)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	body, _ := json.Marshal(VerifyRequest{QuestTitle: "Find the mural"})
	req := httptest.NewRequest(http.MethodPost, "/submissions/"+sub.ID+"/verify", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var outcome verify.VerificationOutcome
	if err := json.NewDecoder(w.Body).Decode(&outcome); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if outcome.Verdict != verify.VerdictUncertain {
		t.Errorf("expected uncertain, got %s", outcome.Verdict)
	}
}

func TestRouter_AuditExportRequiresAdmin(t *testing.T) {
	router, jwtSvc, _ := routerFixture(t)

	userToken, err := jwtSvc.GenerateAccessToken("user-1", auth.RoleUser)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	adminToken, err := jwtSvc.GenerateAccessToken("admin-1", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/audit/export?submission_id=s1", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for user token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/audit/export?submission_id=s1", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 for admin token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _ := routerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/submissions/s1/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router, _, _ := routerFixture(t)

	req := httptest.NewRequest(http.MethodDelete, "/outcomes/o1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}
