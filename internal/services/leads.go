package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brasillegalize/agency-server/internal/eligibility"
	"github.com/brasillegalize/agency-server/internal/locale"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LeadService handles lead capture and triage
type LeadService struct {
	leads          LeadStore
	rules          RuleSource
	clients        *ClientService
	apps           *ApplicationService
	consentVersion string
	logger         *zap.SugaredLogger
	now            func() time.Time
}

// NewLeadService creates a new lead service
func NewLeadService(leads LeadStore, rules RuleSource, clients *ClientService, apps *ApplicationService, consentVersion string, logger *zap.SugaredLogger) *LeadService {
	return &LeadService{
		leads:          leads,
		rules:          rules,
		clients:        clients,
		apps:           apps,
		consentVersion: consentVersion,
		logger:         logger,
		now:            time.Now,
	}
}

// Submit evaluates the answers and stores a new lead. A filled honeypot
// returns a plausible lead that is never stored.
func (s *LeadService) Submit(ctx context.Context, req *models.LeadSubmission) (*models.Lead, error) {
	if strings.TrimSpace(req.Website) != "" {
		s.logger.Infow("Honeypot lead discarded", "source", req.Source)
		return &models.Lead{
			ID:                uuid.New(),
			Name:              req.Name,
			Status:            models.LeadNew,
			EligibilityResult: eligibility.ResultContactForAssessment,
			CreatedAt:         s.now(),
		}, nil
	}

	if err := validateInput(req); err != nil {
		return nil, err
	}
	if !*req.Consent {
		return nil, invalid("consent", "must be accepted")
	}

	answers := eligibility.Answers(req.Answers)

	now := s.now()
	source := req.Source
	if source == "" {
		source = "eligibility"
	}
	lead := &models.Lead{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		Phone:             strings.TrimSpace(req.Phone),
		Country:           req.Country,
		ServiceType:       req.ServiceType,
		Locale:            locale.Normalize(req.Locale),
		Answers:           answers,
		Consent:           true,
		ConsentVersion:    s.consentVersion,
		ConsentAt:         now,
		EligibilityResult: s.evaluate(ctx, answers),
		Source:            source,
		Status:            models.LeadNew,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}

	s.logger.Infow("Lead captured",
		"id", lead.ID,
		"result", lead.EligibilityResult,
		"source", lead.Source,
	)
	return lead, nil
}

// evaluate uses the stored rules, or the built-in set when none are
// configured or they cannot be read.
func (s *LeadService) evaluate(ctx context.Context, answers map[string]string) string {
	rules, err := s.rules.Active(ctx)
	if err != nil {
		s.logger.Warnw("Falling back to default eligibility rules", "error", err)
		rules = nil
	}
	if len(rules) == 0 {
		rules = eligibility.DefaultRules()
	}
	result, ok := eligibility.Evaluate(answers, rules)
	if !ok {
		return eligibility.ResultContactForAssessment
	}
	return result
}

// List returns leads, optionally filtered by triage status
func (s *LeadService) List(ctx context.Context, status string, limit, offset int) ([]models.Lead, error) {
	if status != "" && !validLeadStatus(status) {
		return nil, invalid("status", "must be one of: %s", strings.Join(models.LeadStatuses, " "))
	}
	leads, err := s.leads.List(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

// Get returns one lead
func (s *LeadService) Get(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get lead")
	}
	return lead, nil
}

// UpdateStatus changes a lead's triage status. Conversion goes through
// Convert so that the client record exists.
func (s *LeadService) UpdateStatus(ctx context.Context, id uuid.UUID, req *models.LeadStatusUpdate) (*models.Lead, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	if req.Status == models.LeadConverted {
		return nil, invalid("status", "use the convert action to convert a lead")
	}
	lead, err := s.leads.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return nil, storeErr(err, "update lead status")
	}
	return lead, nil
}

// Conversion is the result of turning a lead into a client and a case.
type Conversion struct {
	Lead        *models.Lead        `json:"lead"`
	Client      *models.Client      `json:"client"`
	Application *models.Application `json:"application"`
}

// Convert creates a client and a first application from a lead. The lead is
// claimed and both records are written in one transaction, so a lead is
// converted at most once and a failure leaves nothing behind.
func (s *LeadService) Convert(ctx context.Context, id uuid.UUID, actor string) (*Conversion, error) {
	var (
		client *models.Client
		app    *models.Application
	)
	lead, err := s.leads.Convert(ctx, id, func(lead *models.Lead) (*models.Client, *models.Application, error) {
		var err error
		client, err = s.clients.newClient(ctx, &models.ClientInput{
			Name:        lead.Name,
			Email:       lead.Email,
			Phone:       lead.Phone,
			Country:     lead.Country,
			Locale:      lead.Locale,
			ServiceType: lead.ServiceType,
			Adults:      1,
		}, &lead.ID)
		if err != nil {
			return nil, nil, err
		}

		in := &models.ApplicationInput{
			ClientID:    &client.ClientID,
			Name:        client.Name,
			Email:       client.Email,
			Phone:       client.Phone,
			Locale:      client.Locale,
			ServiceType: client.ServiceType,
			Note:        "Converted from lead " + lead.ID.String(),
		}
		if err := validateInput(in); err != nil {
			return nil, nil, err
		}
		app, err = s.apps.newApplication(ctx, in, actor)
		if err != nil {
			return nil, nil, err
		}
		return client, app, nil
	})
	if err != nil {
		return nil, storeErr(err, "convert lead")
	}

	s.logger.Infow("Lead converted",
		"lead_id", id,
		"client_id", client.ClientID,
		"application_id", app.ApplicationID,
		"by", actor,
	)
	return &Conversion{Lead: lead, Client: client, Application: app}, nil
}

func validLeadStatus(status string) bool {
	for _, s := range models.LeadStatuses {
		if s == status {
			return true
		}
	}
	return false
}
