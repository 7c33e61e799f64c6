package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/brasillegalize/agency-server/internal/eligibility"
	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/google/uuid"
)

func submission() *models.LeadSubmission {
	return &models.LeadSubmission{
		Name:    "Ana Souza",
		Email:   "ana@example.com",
		Country: "PT",
		Consent: boolPtr(true),
		Locale:  "pt-BR",
	}
}

func TestSubmitEvaluatesDefaultRules(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	ctx := context.Background()

	req := submission()
	req.Answers = map[string]any{"current_status": "married_to_brazilian"}
	lead, err := f.leadSvc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if lead.EligibilityResult != eligibility.ResultLikelyEligible {
		t.Fatalf("expected likely_eligible, got %s", lead.EligibilityResult)
	}
	if lead.Locale != "pt" || lead.ConsentVersion != "2026-01" || !lead.ConsentAt.Equal(fixedNow) {
		t.Fatalf("unexpected lead fields: %+v", lead)
	}
	if _, err := f.leads.Get(ctx, lead.ID); err != nil {
		t.Fatalf("lead not stored: %v", err)
	}

	empty, err := f.leadSvc.Submit(ctx, submission())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if empty.EligibilityResult != eligibility.ResultContactForAssessment {
		t.Fatalf("expected fallback result, got %s", empty.EligibilityResult)
	}
}

func TestSubmitUsesStoredRules(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	f.rules.rules = []eligibility.Rule{
		{Name: "custom", ResultType: "custom_result", Conditions: map[string]string{"visa": "golden"}, Priority: 5},
		{Name: "default", ResultType: "custom_default", Priority: 0},
	}

	req := submission()
	req.Answers = map[string]any{"visa": "golden"}
	lead, err := f.leadSvc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if lead.EligibilityResult != "custom_result" {
		t.Fatalf("expected stored rule result, got %s", lead.EligibilityResult)
	}
}

func TestSubmitFallsBackWhenRulesUnavailable(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	f.rules.err = errors.New("relation does not exist")

	req := submission()
	req.Answers = map[string]any{"current_status": "married_to_brazilian"}
	lead, err := f.leadSvc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if lead.EligibilityResult != eligibility.ResultLikelyEligible {
		t.Fatalf("expected default rules to apply, got %s", lead.EligibilityResult)
	}
}

func TestSubmitAcceptsNonStringAnswers(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	f.rules.rules = []eligibility.Rule{
		{Name: "family", ResultType: "family_route", Conditions: map[string]string{"has_children": "true", "children": "2"}, Priority: 5},
		{Name: "default", ResultType: "custom_default", Priority: 0},
	}

	req := submission()
	req.Answers = map[string]any{"has_children": true, "children": float64(2), "notes": nil, "visas": []any{"golden"}}
	lead, err := f.leadSvc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if lead.EligibilityResult != "family_route" {
		t.Fatalf("expected family_route, got %s", lead.EligibilityResult)
	}
	if _, ok := lead.Answers["notes"]; ok {
		t.Fatal("null answers should be dropped")
	}
	if lead.Answers["visas"] != `["golden"]` {
		t.Fatalf("unexpected list answer %q", lead.Answers["visas"])
	}
}

func TestSubmitHoneypotPretendsSuccess(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	req := submission()
	req.Website = "http://spam.example"

	lead, err := f.leadSvc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if lead.ID == uuid.Nil {
		t.Fatal("honeypot response should look like a real lead")
	}
	if len(f.leads.leads) != 0 {
		t.Fatal("honeypot submission must not be stored")
	}
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(r *models.LeadSubmission)
		field string
	}{
		{"missing name", func(r *models.LeadSubmission) { r.Name = "" }, "name"},
		{"missing consent", func(r *models.LeadSubmission) { r.Consent = nil }, "consent"},
		{"declined consent", func(r *models.LeadSubmission) { r.Consent = boolPtr(false) }, "consent"},
		{"missing contact", func(r *models.LeadSubmission) { r.Email = ""; r.Phone = "" }, "email"},
		{"bad email", func(r *models.LeadSubmission) { r.Email = "not-an-email" }, "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(lifecycle.Permissive{})
			req := submission()
			tc.edit(req)

			_, err := f.leadSvc.Submit(context.Background(), req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %s, got %s (%s)", tc.field, ve.Field, ve.Message)
			}
			if len(f.leads.leads) != 0 {
				t.Fatal("invalid lead must not be stored")
			}
		})
	}
}

func TestSubmitPhoneOnlyIsEnough(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	req := submission()
	req.Email = ""
	req.Phone = "+55 11 99999-0000"
	if _, err := f.leadSvc.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestConvertLead(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	ctx := context.Background()

	lead, err := f.leadSvc.Submit(ctx, submission())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	conv, err := f.leadSvc.Convert(ctx, lead.ID, "staff@agency.test")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if conv.Client.ClientID != "CLT-2026-00001" {
		t.Fatalf("unexpected client id %s", conv.Client.ClientID)
	}
	if conv.Application.ApplicationID != "APP-202601-0001" {
		t.Fatalf("unexpected application id %s", conv.Application.ApplicationID)
	}
	if conv.Application.Status != lifecycle.StatusNew || conv.Application.Phase != lifecycle.PhaseLead {
		t.Fatalf("new application should start at new/phase 1, got %s/%d", conv.Application.Status, conv.Application.Phase)
	}
	if *conv.Application.ClientID != conv.Client.ClientID {
		t.Fatal("application should belong to the new client")
	}

	stored, _ := f.leads.Get(ctx, lead.ID)
	if stored.Status != models.LeadConverted || *stored.ClientID != conv.Client.ClientID {
		t.Fatalf("lead not marked converted: %+v", stored)
	}

	if _, err := f.leadSvc.Convert(ctx, lead.ID, "staff@agency.test"); !errors.Is(err, ErrConflict) {
		t.Fatalf("second conversion should conflict, got %v", err)
	}
}

func TestConcurrentConvertCreatesOneClient(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	ctx := context.Background()
	lead, err := f.leadSvc.Submit(ctx, submission())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.leadSvc.Convert(ctx, lead.ID, "staff@agency.test")
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != 1 {
		t.Fatalf("expected one conversion and one conflict, got %v", errs)
	}
	if len(f.clients.clients) != 1 || len(f.apps.apps) != 1 {
		t.Fatalf("expected one client and one application, got %d and %d", len(f.clients.clients), len(f.apps.apps))
	}
}

func TestConvertFailureLeavesLeadOpen(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	ctx := context.Background()
	lead, _ := f.leadSvc.Submit(ctx, submission())

	f.apps.createErr = errors.New("connection reset")
	if _, err := f.leadSvc.Convert(ctx, lead.ID, "staff@agency.test"); err == nil {
		t.Fatal("expected conversion to fail")
	}
	if len(f.clients.clients) != 0 {
		t.Fatalf("failed conversion left %d clients behind", len(f.clients.clients))
	}
	stored, _ := f.leads.Get(ctx, lead.ID)
	if stored.Status == models.LeadConverted || stored.ClientID != nil {
		t.Fatalf("lead should stay unconverted: %+v", stored)
	}

	f.apps.createErr = nil
	conv, err := f.leadSvc.Convert(ctx, lead.ID, "staff@agency.test")
	if err != nil {
		t.Fatalf("retry Convert: %v", err)
	}
	if len(f.clients.clients) != 1 || conv.Lead.Status != models.LeadConverted {
		t.Fatalf("retry should convert once, got %d clients, lead %s", len(f.clients.clients), conv.Lead.Status)
	}
}

func TestConvertUnknownLead(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	if _, err := f.leadSvc.Convert(context.Background(), uuid.New(), "staff@agency.test"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateLeadStatus(t *testing.T) {
	f := newFixture(lifecycle.Permissive{})
	ctx := context.Background()
	lead, _ := f.leadSvc.Submit(ctx, submission())

	updated, err := f.leadSvc.UpdateStatus(ctx, lead.ID, &models.LeadStatusUpdate{Status: models.LeadContacted})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != models.LeadContacted {
		t.Fatalf("expected contacted, got %s", updated.Status)
	}

	if _, err := f.leadSvc.UpdateStatus(ctx, lead.ID, &models.LeadStatusUpdate{Status: "archived"}); err == nil {
		t.Fatal("unknown triage status should be rejected")
	}
	if _, err := f.leadSvc.UpdateStatus(ctx, uuid.New(), &models.LeadStatusUpdate{Status: models.LeadContacted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
