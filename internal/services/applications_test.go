package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/notify"
	"github.com/brasillegalize/agency-server/internal/portal"
)

const staff = "staff@agency.test"

func newApplication(t *testing.T, f *fixture) *models.Application {
	t.Helper()
	app, err := f.appSvc.Create(context.Background(), &models.ApplicationInput{
		Name:   "Ana Souza",
		Email:  "ana@example.com",
		Locale: "es",
	}, staff)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return app
}

func setStatus(t *testing.T, f *fixture, id string, status lifecycle.Status) *models.Application {
	t.Helper()
	app, err := f.appSvc.Update(context.Background(), id, &models.ApplicationUpdate{Status: strPtr(string(status))}, staff)
	if err != nil {
		t.Fatalf("Update to %s: %v", status, err)
	}
	return app
}

func TestCreateApplicationStartsAtNew(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)

	if app.Status != lifecycle.StatusNew || app.Phase != lifecycle.PhaseLead {
		t.Fatalf("expected new/1, got %s/%d", app.Status, app.Phase)
	}
	if len(app.Timeline) != 1 || app.Timeline[0].Status != lifecycle.StatusNew || app.Timeline[0].By != staff {
		t.Fatalf("unexpected initial timeline: %+v", app.Timeline)
	}
	if app.HasPortalAccess {
		t.Fatal("a new application has no portal access")
	}
}

func TestCreateApplicationUnknownClient(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	_, err := f.appSvc.Create(context.Background(), &models.ApplicationInput{
		ClientID: strPtr("CLT-2026-09999"),
		Name:     "Ana",
	}, staff)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "client_id" {
		t.Fatalf("expected client_id validation error, got %v", err)
	}
}

func TestPaymentReceivedIssuesCredentialsOnce(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)

	paid := setStatus(t, f, app.ApplicationID, lifecycle.StatusPaymentReceived)
	if paid.Phase != lifecycle.PhasePotential {
		t.Fatalf("expected phase 2, got %d", paid.Phase)
	}
	if !paid.HasPortalAccess {
		t.Fatal("credentials should be issued on payment_received")
	}
	if len(paid.Timeline) != 2 {
		t.Fatalf("expected two timeline events, got %d", len(paid.Timeline))
	}

	if f.mail.count() != 1 {
		t.Fatalf("expected one credentials email, got %d", f.mail.count())
	}
	sent := f.mail.sent[0]
	if sent.template != notify.TemplatePortalAccess || sent.to != "ana@example.com" || sent.locale != "es" {
		t.Fatalf("unexpected email: %+v", sent)
	}
	data := sent.data.(notify.PortalAccessData)

	stored, _ := f.apps.Get(context.Background(), app.ApplicationID)
	token := *stored.PortalToken
	if len(token) != 64 {
		t.Fatalf("expected a 256-bit hex token, got %q", token)
	}
	if data.TrackerURL != portal.TrackerURL(testBaseURL, token) {
		t.Fatalf("tracker url %q does not use the stored token", data.TrackerURL)
	}
	if !portal.VerifyPassword(*stored.PortalPasswordHash, data.Password) {
		t.Fatal("emailed password does not match the stored hash")
	}

	// Re-applying the same status neither re-issues nor re-sends.
	again := setStatus(t, f, app.ApplicationID, lifecycle.StatusPaymentReceived)
	if len(again.Timeline) != 2 {
		t.Fatalf("same status must not append a timeline event, got %d", len(again.Timeline))
	}
	after, _ := f.apps.Get(context.Background(), app.ApplicationID)
	if *after.PortalToken != token {
		t.Fatal("token must never be rotated")
	}
	if f.mail.count() != 1 {
		t.Fatalf("expected still one email, got %d", f.mail.count())
	}
}

func TestConcurrentPaymentReceivedSendsOneEmail(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.appSvc.Update(context.Background(), app.ApplicationID,
				&models.ApplicationUpdate{Status: strPtr(string(lifecycle.StatusPaymentReceived))}, staff)
		}()
	}
	wg.Wait()

	if f.apps.issueWrites != 1 {
		t.Fatalf("expected exactly one credential write, got %d", f.apps.issueWrites)
	}
	if f.mail.count() != 1 {
		t.Fatalf("expected exactly one email, got %d", f.mail.count())
	}
}

func TestOtherStatusesDoNotIssue(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)

	for _, st := range []lifecycle.Status{lifecycle.StatusContacted, lifecycle.StatusAwaitingPayment, lifecycle.StatusOnboarding} {
		setStatus(t, f, app.ApplicationID, st)
	}
	if f.apps.issueCalls != 0 || f.mail.count() != 0 {
		t.Fatalf("no credentials expected, got %d calls and %d emails", f.apps.issueCalls, f.mail.count())
	}

	done := setStatus(t, f, app.ApplicationID, lifecycle.StatusCompleted)
	if done.Phase != lifecycle.PhaseCompletion {
		t.Fatalf("expected phase 4, got %d", done.Phase)
	}
	if len(done.Timeline) != 5 {
		t.Fatalf("expected one event per transition, got %d", len(done.Timeline))
	}
}

func TestUpdateRejectsContradictingPhase(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)

	_, err := f.appSvc.Update(context.Background(), app.ApplicationID, &models.ApplicationUpdate{
		Status: strPtr(string(lifecycle.StatusOnboarding)),
		Phase:  intPtr(2),
	}, staff)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "phase" {
		t.Fatalf("expected phase validation error, got %v", err)
	}

	ok, err := f.appSvc.Update(context.Background(), app.ApplicationID, &models.ApplicationUpdate{
		Status: strPtr(string(lifecycle.StatusOnboarding)),
		Phase:  intPtr(3),
	}, staff)
	if err != nil {
		t.Fatalf("matching phase should be accepted: %v", err)
	}
	if ok.Phase != lifecycle.PhaseActive {
		t.Fatalf("expected phase 3, got %d", ok.Phase)
	}
}

func TestUpdateUnknownStatus(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)

	_, err := f.appSvc.Update(context.Background(), app.ApplicationID, &models.ApplicationUpdate{Status: strPtr("teleported")}, staff)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("expected status validation error, got %v", err)
	}
	if _, err := f.appSvc.Update(context.Background(), "APP-202601-9999", &models.ApplicationUpdate{}, staff); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPermissivePolicyAllowsGoingBack(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)
	setStatus(t, f, app.ApplicationID, lifecycle.StatusOnboarding)

	back := setStatus(t, f, app.ApplicationID, lifecycle.StatusContacted)
	if back.Phase != lifecycle.PhaseLead {
		t.Fatalf("expected phase 1 after moving back, got %d", back.Phase)
	}
}

func TestForwardOnlyPolicyRefusesGoingBack(t *testing.T) {
	f := newFixture(lifecycle.ForwardOnly{})
	app := newApplication(t, f)
	setStatus(t, f, app.ApplicationID, lifecycle.StatusOnboarding)

	_, err := f.appSvc.Update(context.Background(), app.ApplicationID,
		&models.ApplicationUpdate{Status: strPtr(string(lifecycle.StatusContacted))}, staff)
	if !errors.Is(err, ErrConflict) || !errors.Is(err, lifecycle.ErrTransitionNotAllowed) {
		t.Fatalf("expected transition conflict, got %v", err)
	}
}

func TestUpdateAppendsNotesPaymentsAndReviews(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)
	ctx := context.Background()

	if err := f.apps.AppendDocuments(ctx, app.ApplicationID, []models.UploadedFile{
		{Kind: models.KindUploadedFile, Name: "passport.pdf", StoredFilename: "01abc.pdf", Status: models.FilePending},
	}); err != nil {
		t.Fatalf("AppendDocuments: %v", err)
	}

	updated, err := f.appSvc.Update(ctx, app.ApplicationID, &models.ApplicationUpdate{
		Note:     "called the client",
		Notes:    []models.NoteInput{{Text: "prefers whatsapp"}},
		Payments: []models.PaymentInput{{AmountCents: 150000, Currency: "brl", Method: "pix"}},
		Documents: []models.DocumentReview{
			{StoredFilename: "01abc.pdf", Status: models.FileRejected, RejectionReason: "blurry"},
		},
	}, staff)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Timeline) != 1 {
		t.Fatal("no status change means no timeline event")
	}
	if len(updated.Notes) != 2 || updated.Notes[0].Kind != models.KindNote || updated.Notes[0].Author != staff {
		t.Fatalf("unexpected notes: %+v", updated.Notes)
	}
	if len(updated.Payments) != 1 || updated.Payments[0].Currency != "BRL" || !updated.Payments[0].PaidAt.Equal(fixedNow) {
		t.Fatalf("unexpected payments: %+v", updated.Payments)
	}
	if updated.Documents[0].Status != models.FileRejected || updated.Documents[0].RejectionReason != "blurry" {
		t.Fatalf("document review not applied: %+v", updated.Documents[0])
	}

	_, err = f.appSvc.Update(ctx, app.ApplicationID, &models.ApplicationUpdate{
		Documents: []models.DocumentReview{{StoredFilename: "missing.pdf", Status: models.FileApproved}},
	}, staff)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown document, got %v", err)
	}

	_, err = f.appSvc.Update(ctx, app.ApplicationID, &models.ApplicationUpdate{
		Documents: []models.DocumentReview{{StoredFilename: "01abc.pdf", Status: models.FileRejected}},
	}, staff)
	var ve *ValidationError
	if !errors.As(err, &ve) || !strings.HasPrefix(ve.Field, "documents") {
		t.Fatalf("rejection without reason should fail validation, got %v", err)
	}
}

func TestUpdateWithMissingReviewChangesNothing(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)
	ctx := context.Background()

	if err := f.apps.AppendDocuments(ctx, app.ApplicationID, []models.UploadedFile{
		{Kind: models.KindUploadedFile, Name: "passport.pdf", StoredFilename: "01abc.pdf", Status: models.FilePending},
	}); err != nil {
		t.Fatalf("AppendDocuments: %v", err)
	}

	_, err := f.appSvc.Update(ctx, app.ApplicationID, &models.ApplicationUpdate{
		Status: strPtr(string(lifecycle.StatusContacted)),
		Documents: []models.DocumentReview{
			{StoredFilename: "01abc.pdf", Status: models.FileApproved},
			{StoredFilename: "missing.pdf", Status: models.FileApproved},
		},
	}, staff)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stored, err := f.appSvc.Get(ctx, app.ApplicationID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != lifecycle.StatusNew || len(stored.Timeline) != 1 {
		t.Fatalf("status change applied despite failed review: %s %+v", stored.Status, stored.Timeline)
	}
	if stored.Documents[0].Status != models.FilePending {
		t.Fatalf("first review applied despite failed update: %+v", stored.Documents[0])
	}
}

func TestArchiveApplication(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	app := newApplication(t, f)

	if err := f.appSvc.Archive(context.Background(), app.ApplicationID, staff); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := f.appSvc.Archive(context.Background(), "APP-202601-9999", staff); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
