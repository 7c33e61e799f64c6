package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brasillegalize/agency-server/internal/ids"
	"github.com/brasillegalize/agency-server/internal/locale"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCurrency = "BRL"

// ClientService handles client records and their logs
type ClientService struct {
	clients ClientStore
	apps    ApplicationStore
	seq     Sequencer
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewClientService creates a new client service
func NewClientService(clients ClientStore, apps ApplicationStore, seq Sequencer, logger *zap.SugaredLogger) *ClientService {
	return &ClientService{clients: clients, apps: apps, seq: seq, logger: logger, now: time.Now}
}

// Create allocates a client id and stores the client. leadID links a
// converted lead and may be nil.
func (s *ClientService) Create(ctx context.Context, in *models.ClientInput, leadID *uuid.UUID) (*models.Client, error) {
	c, err := s.newClient(ctx, in, leadID)
	if err != nil {
		return nil, err
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	s.logger.Infow("Client created", "client_id", c.ClientID, "from_lead", leadID != nil)
	return c, nil
}

// newClient validates the input and builds a client with a freshly
// allocated id without storing it.
func (s *ClientService) newClient(ctx context.Context, in *models.ClientInput, leadID *uuid.UUID) (*models.Client, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	id, err := allocateID(ctx, s.seq, ids.Client, now)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	c := &models.Client{
		ClientID:       id,
		Name:           strings.TrimSpace(in.Name),
		Email:          strings.TrimSpace(in.Email),
		Phone:          in.Phone,
		WhatsApp:       in.WhatsApp,
		Country:        in.Country,
		Locale:         locale.Normalize(in.Locale),
		ServiceType:    in.ServiceType,
		Package:        in.Package,
		Adults:         in.Adults,
		Children:       in.Children,
		TotalDueCents:  in.TotalDueCents,
		Currency:       currency,
		Tags:           tags,
		Notes:          []models.NoteEntry{},
		Communications: []models.CommunicationEntry{},
		Payments:       []models.PaymentEntry{},
		IsHistorical:   in.IsHistorical,
		LeadID:         leadID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return c, nil
}

// Get returns one client
func (s *ClientService) Get(ctx context.Context, clientID string) (*models.Client, error) {
	c, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, storeErr(err, "get client")
	}
	return c, nil
}

// List returns clients matching the filter
func (s *ClientService) List(ctx context.Context, f models.ClientFilter) ([]models.Client, error) {
	f.Search = strings.TrimSpace(f.Search)
	clients, err := s.clients.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Update changes the given fields. The client id never changes.
func (s *ClientService) Update(ctx context.Context, clientID string, p *models.ClientPatch) (*models.Client, error) {
	if err := validateInput(p); err != nil {
		return nil, err
	}
	if p.Locale != nil {
		loc := locale.Normalize(*p.Locale)
		p.Locale = &loc
	}
	if p.Currency != nil {
		cur := strings.ToUpper(*p.Currency)
		p.Currency = &cur
	}
	c, err := s.clients.Update(ctx, clientID, *p)
	if err != nil {
		return nil, storeErr(err, "update client")
	}
	return c, nil
}

// Archive soft-deletes a client
func (s *ClientService) Archive(ctx context.Context, clientID, actor string) error {
	if err := s.clients.Archive(ctx, clientID); err != nil {
		return storeErr(err, "archive client")
	}
	s.logger.Infow("Client archived", "client_id", clientID, "by", actor)
	return nil
}

// AddNote appends a staff note
func (s *ClientService) AddNote(ctx context.Context, clientID string, in *models.NoteInput, actor string) (*models.Client, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c, err := s.clients.AppendNote(ctx, clientID, models.NewNote(*in, actor, s.now()))
	if err != nil {
		return nil, storeErr(err, "add client note")
	}
	return c, nil
}

// AddCommunication logs a contact with the client
func (s *ClientService) AddCommunication(ctx context.Context, clientID string, in *models.CommunicationInput, actor string) (*models.Client, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c, err := s.clients.AppendCommunication(ctx, clientID, models.NewCommunication(*in, actor, s.now()))
	if err != nil {
		return nil, storeErr(err, "add client communication")
	}
	return c, nil
}

// AddPayment records a payment; the stored total paid grows with it.
func (s *ClientService) AddPayment(ctx context.Context, clientID string, in *models.PaymentInput, actor string) (*models.Client, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	payment := models.NewPayment(*in, actor, s.now())
	payment.Currency = strings.ToUpper(payment.Currency)

	c, err := s.clients.AppendPayment(ctx, clientID, payment)
	if err != nil {
		return nil, storeErr(err, "add client payment")
	}
	s.logger.Infow("Payment recorded",
		"client_id", clientID,
		"amount_cents", payment.AmountCents,
		"currency", payment.Currency,
		"by", actor,
	)
	return c, nil
}

// Applications returns the client's applications, matched by client id or,
// for applications opened before the client existed, by email.
func (s *ClientService) Applications(ctx context.Context, clientID string) ([]models.Application, error) {
	c, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	apps, err := s.apps.ListForClient(ctx, c.ClientID, c.Email)
	if err != nil {
		return nil, fmt.Errorf("list client applications: %w", err)
	}
	return apps, nil
}
