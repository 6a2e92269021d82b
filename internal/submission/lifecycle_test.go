package submission

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/snapquest/api/internal/audit"
	"github.com/snapquest/api/internal/verify"
)

type stubPurger struct {
	urls []string
}

func (p *stubPurger) DeleteByPublicURLs(ctx context.Context, urls []string) int {
	p.urls = append(p.urls, urls...)
	return len(urls)
}

type fixture struct {
	controller *Controller
	subs       *InMemoryRepository
	social     *InMemorySocialRepository
	purger     *stubPurger
	outcomes   *verify.InMemoryOutcomeRepository
	auditRepo  *audit.InMemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		subs:      NewInMemoryRepository(),
		social:    NewInMemorySocialRepository(),
		purger:    &stubPurger{},
		outcomes:  verify.NewInMemoryOutcomeRepository(),
		auditRepo: audit.NewInMemoryRepository(),
	}

	controller, err := NewController(ControllerConfig{
		Submissions: f.subs,
		Social:      f.social,
		Storage:     f.purger,
		Outcomes:    f.outcomes,
		Audit:       f.auditRepo,
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	f.controller = controller
	return f
}

func (f *fixture) createSubmission(t *testing.T) *Submission {
	t.Helper()
	sub := &Submission{
		QuestID:  "quest-1",
		UserID:   "user-1",
		PhotoURL: "https://media.example.com/subs/1/photo.jpg",
	}
	if err := f.subs.Create(sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sub
}

func TestApplyVerdictVerifiedApproves(t *testing.T) {
	f := newFixture(t)
	sub := f.createSubmission(t)

	if err := f.controller.ApplyVerdict(context.Background(), sub.ID, verify.VerdictVerified); err != nil {
		t.Fatalf("ApplyVerdict() error = %v", err)
	}

	got, err := f.subs.GetByID(sub.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
}

func TestApplyVerdictUncertainLeavesPending(t *testing.T) {
	f := newFixture(t)
	sub := f.createSubmission(t)

	if err := f.controller.ApplyVerdict(context.Background(), sub.ID, verify.VerdictUncertain); err != nil {
		t.Fatalf("ApplyVerdict() error = %v", err)
	}

	got, _ := f.subs.GetByID(sub.ID)
	if got.Status != StatusPending {
		t.Errorf("status = %q, want pending (unchanged)", got.Status)
	}
}

func TestApplyVerdictRejectedPurges(t *testing.T) {
	f := newFixture(t)
	sub := f.createSubmission(t)

	// Dependent social rows that must disappear with the submission.
	f.social.AddLike(&Like{SubmissionID: sub.ID, UserID: "user-2"})
	f.social.AddComment(&Comment{SubmissionID: sub.ID, UserID: "user-3", Text: "nice"})
	f.social.AddShare(&Share{SubmissionID: sub.ID, UserID: "user-4"})
	f.social.AddLike(&Like{SubmissionID: "other-sub", UserID: "user-5"})

	if err := f.controller.ApplyVerdict(context.Background(), sub.ID, verify.VerdictRejected); err != nil {
		t.Fatalf("ApplyVerdict() error = %v", err)
	}

	if _, err := f.subs.GetByID(sub.ID); err != ErrSubmissionNotFound {
		t.Errorf("GetByID() error = %v, want not found after purge", err)
	}

	likes, comments, shares, _ := f.social.CountBySubmission(sub.ID)
	if likes+comments+shares != 0 {
		t.Errorf("social rows remain after purge: %d likes, %d comments, %d shares", likes, comments, shares)
	}

	otherLikes, _, _, _ := f.social.CountBySubmission("other-sub")
	if otherLikes != 1 {
		t.Errorf("purge removed social rows for an unrelated submission")
	}

	if len(f.purger.urls) != 1 || f.purger.urls[0] != sub.PhotoURL {
		t.Errorf("storage purge urls = %v, want [%s]", f.purger.urls, sub.PhotoURL)
	}
}

func TestPurgeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	sub := f.createSubmission(t)

	for i := 0; i < 2; i++ {
		if err := f.controller.ApplyVerdict(context.Background(), sub.ID, verify.VerdictRejected); err != nil {
			t.Fatalf("ApplyVerdict() pass %d error = %v", i+1, err)
		}
	}
}

func TestOverrideVerified(t *testing.T) {
	f := newFixture(t)
	sub := f.createSubmission(t)

	outcome, err := f.controller.Override(context.Background(), OverrideRequest{
		SubmissionID:  sub.ID,
		AdminID:       "admin-1",
		Verdict:       verify.VerdictVerified,
		Justification: "photo manually confirmed on site",
	})
	if err != nil {
		t.Fatalf("Override() error = %v", err)
	}

	if !outcome.Override {
		t.Error("outcome not flagged as override")
	}
	if outcome.Reason != "photo manually confirmed on site" {
		t.Errorf("reason = %q, want the justification", outcome.Reason)
	}

	got, _ := f.subs.GetByID(sub.ID)
	if got.Status != StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}

	latest, err := f.outcomes.GetLatestBySubmission(sub.ID)
	if err != nil {
		t.Fatalf("GetLatestBySubmission() error = %v", err)
	}
	if !latest.Override || latest.Verdict != verify.VerdictVerified {
		t.Errorf("persisted override outcome = %+v", latest)
	}

	entries, _ := f.auditRepo.QueryBySubmission(sub.ID, 0)
	if len(entries) != 1 || entries[0].Model != "admin-override" {
		t.Errorf("audit entries = %v, want one admin-override entry", entries)
	}
}

func TestOverrideRejectedPurges(t *testing.T) {
	f := newFixture(t)
	sub := f.createSubmission(t)

	_, err := f.controller.Override(context.Background(), OverrideRequest{
		SubmissionID:  sub.ID,
		AdminID:       "admin-1",
		Verdict:       verify.VerdictRejected,
		Justification: "confirmed stock image",
	})
	if err != nil {
		t.Fatalf("Override() error = %v", err)
	}

	if _, err := f.subs.GetByID(sub.ID); err != ErrSubmissionNotFound {
		t.Errorf("submission still present after rejected override")
	}
}

func TestOverrideValidation(t *testing.T) {
	f := newFixture(t)
	sub := f.createSubmission(t)

	_, err := f.controller.Override(context.Background(), OverrideRequest{
		SubmissionID: sub.ID,
		Verdict:      verify.VerdictUncertain,
	})
	if err != ErrInvalidOverride {
		t.Errorf("Override(uncertain) error = %v, want %v", err, ErrInvalidOverride)
	}

	_, err = f.controller.Override(context.Background(), OverrideRequest{
		SubmissionID: sub.ID,
		Verdict:      verify.VerdictVerified,
	})
	if err != ErrMissingJustification {
		t.Errorf("Override(no justification) error = %v, want %v", err, ErrMissingJustification)
	}

	_, err = f.controller.Override(context.Background(), OverrideRequest{
		SubmissionID:  "missing",
		Verdict:       verify.VerdictVerified,
		Justification: "x",
	})
	if err != ErrSubmissionNotFound {
		t.Errorf("Override(missing submission) error = %v, want %v", err, ErrSubmissionNotFound)
	}
}

type stubRenderer struct {
	rendered chan string
}

func (r *stubRenderer) Render(ctx context.Context, photoURL string) (string, error) {
	r.rendered <- photoURL
	return "https://media.example.com/display/subs/1/photo.jpg", nil
}

func TestApplyVerdictVerifiedRendersDisplayCopy(t *testing.T) {
	subs := NewInMemoryRepository()
	renderer := &stubRenderer{rendered: make(chan string, 1)}

	controller, err := NewController(ControllerConfig{
		Submissions: subs,
		Display:     renderer,
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	sub := &Submission{
		QuestID:  "quest-1",
		UserID:   "user-1",
		PhotoURL: "https://media.example.com/subs/1/photo.jpg",
	}
	if err := subs.Create(sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := controller.ApplyVerdict(context.Background(), sub.ID, verify.VerdictVerified); err != nil {
		t.Fatalf("ApplyVerdict() error = %v", err)
	}

	select {
	case photoURL := <-renderer.rendered:
		if photoURL != sub.PhotoURL {
			t.Errorf("rendered photo URL = %q, want %q", photoURL, sub.PhotoURL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("display renderer was not invoked")
	}
}

func TestApplyVerdictRejectedSkipsDisplayCopy(t *testing.T) {
	subs := NewInMemoryRepository()
	renderer := &stubRenderer{rendered: make(chan string, 1)}

	controller, err := NewController(ControllerConfig{
		Submissions: subs,
		Display:     renderer,
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	sub := &Submission{
		QuestID:  "quest-1",
		UserID:   "user-1",
		PhotoURL: "https://media.example.com/subs/1/photo.jpg",
	}
	if err := subs.Create(sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := controller.ApplyVerdict(context.Background(), sub.ID, verify.VerdictRejected); err != nil {
		t.Fatalf("ApplyVerdict() error = %v", err)
	}

	select {
	case <-renderer.rendered:
		t.Error("display renderer should not run for rejected submissions")
	case <-time.After(50 * time.Millisecond):
	}
}
