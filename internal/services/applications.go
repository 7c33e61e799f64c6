package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brasillegalize/agency-server/internal/ids"
	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/brasillegalize/agency-server/internal/locale"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/notify"
	"github.com/brasillegalize/agency-server/internal/portal"
	"github.com/brasillegalize/agency-server/internal/repository"
	"go.uber.org/zap"
)

// ApplicationService moves applications through the lifecycle and issues
// portal credentials once payment is received.
type ApplicationService struct {
	apps    ApplicationStore
	clients ClientStore
	seq     Sequencer
	policy  lifecycle.TransitionPolicy
	mail    Notifier
	baseURL string
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewApplicationService creates a new application service
func NewApplicationService(apps ApplicationStore, clients ClientStore, seq Sequencer, policy lifecycle.TransitionPolicy, mail Notifier, baseURL string, logger *zap.SugaredLogger) *ApplicationService {
	return &ApplicationService{
		apps:    apps,
		clients: clients,
		seq:     seq,
		policy:  policy,
		mail:    mail,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
	}
}

// Create opens an application. Status defaults to new; the first timeline
// event records the opening status.
func (s *ApplicationService) Create(ctx context.Context, in *models.ApplicationInput, actor string) (*models.Application, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ClientID != nil && *in.ClientID != "" {
		if _, err := s.clients.Get(ctx, *in.ClientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, invalid("client_id", "client %s does not exist", *in.ClientID)
			}
			return nil, fmt.Errorf("create application: %w", err)
		}
	} else {
		in.ClientID = nil
	}

	app, err := s.newApplication(ctx, in, actor)
	if err != nil {
		return nil, err
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.logger.Infow("Application created",
		"application_id", app.ApplicationID,
		"status", app.Status,
		"by", actor,
	)
	return s.issueIfDue(ctx, app), nil
}

// newApplication builds an application from validated input with a freshly
// allocated id without storing it. The client reference is taken as given.
func (s *ApplicationService) newApplication(ctx context.Context, in *models.ApplicationInput, actor string) (*models.Application, error) {
	status := lifecycle.StatusNew
	if in.Status != "" {
		parsed, err := lifecycle.ParseStatus(in.Status)
		if err != nil {
			return nil, invalid("status", "unknown status %q", in.Status)
		}
		status = parsed
	}
	phase, err := lifecycle.DerivePhase(status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id, err := allocateID(ctx, s.seq, ids.Application, now)
	if err != nil {
		return nil, err
	}

	app := &models.Application{
		ApplicationID: id,
		ClientID:      in.ClientID,
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		Phone:         in.Phone,
		Locale:        locale.Normalize(in.Locale),
		ServiceType:   in.ServiceType,
		Package:       in.Package,
		Phase:         phase,
		Status:        status,
		Timeline: []models.TimelineEvent{
			{Status: status, Timestamp: now, By: actor, Note: in.Note},
		},
		Documents: []models.UploadedFile{},
		Notes:     []models.NoteEntry{},
		Payments:  []models.PaymentEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return app, nil
}

// Get returns one application
func (s *ApplicationService) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := s.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, storeErr(err, "get application")
	}
	return app, nil
}

// List returns applications matching the filter
func (s *ApplicationService) List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	if f.Status != "" && !lifecycle.Status(f.Status).Valid() {
		return nil, invalid("status", "unknown status %q", f.Status)
	}
	if f.Phase != 0 && !lifecycle.Phase(f.Phase).Valid() {
		return nil, invalid("phase", "must be between 1 and 4")
	}
	apps, err := s.apps.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Update applies a partial update. When the status changes the phase is
// derived from it and one timeline event is appended. A supplied phase must
// agree with the resulting status.
func (s *ApplicationService) Update(ctx context.Context, applicationID string, upd *models.ApplicationUpdate, actor string) (*models.Application, error) {
	if err := validateInput(upd); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var change repository.ApplicationChange
	status := current.Status

	if upd.Status != nil {
		next, err := lifecycle.ParseStatus(*upd.Status)
		if err != nil {
			return nil, invalid("status", "unknown status %q", *upd.Status)
		}
		if next != current.Status {
			if err := s.policy.Allow(current.Status, next); err != nil {
				return nil, fmt.Errorf("update application: %w: %w", ErrConflict, err)
			}
			status = next
		}
	}

	phase, err := lifecycle.DerivePhase(status)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	if upd.Phase != nil && lifecycle.Phase(*upd.Phase) != phase {
		return nil, invalid("phase", "phase %d does not match status %s (phase %d)", *upd.Phase, status, phase)
	}

	if status != current.Status {
		st, ph := string(status), int(phase)
		change.Status = &st
		change.Phase = &ph
		change.Timeline = []models.TimelineEvent{{Status: status, Timestamp: now, By: actor, Note: upd.Note}}
	} else if strings.TrimSpace(upd.Note) != "" {
		change.Notes = append(change.Notes, models.NewNote(models.NoteInput{Text: upd.Note}, actor, now))
	}

	change.ServiceType = upd.ServiceType
	change.Package = upd.Package
	if upd.Locale != nil {
		loc := locale.Normalize(*upd.Locale)
		change.Locale = &loc
	}
	for _, n := range upd.Notes {
		change.Notes = append(change.Notes, models.NewNote(n, actor, now))
	}
	for _, p := range upd.Payments {
		payment := models.NewPayment(p, actor, now)
		payment.Currency = strings.ToUpper(payment.Currency)
		change.Payments = append(change.Payments, payment)
	}

	change.Reviews = upd.Documents

	app, err := s.apps.ApplyUpdate(ctx, applicationID, change)
	if err != nil {
		return nil, storeErr(err, "update application")
	}

	if status != current.Status {
		s.logger.Infow("Application status changed",
			"application_id", applicationID,
			"from", current.Status,
			"to", status,
			"phase", phase,
			"by", actor,
		)
	}
	return s.issueIfDue(ctx, app), nil
}

// issueIfDue issues portal credentials when the application sits at
// payment_received without a token. The store only writes them when no token
// exists, so at most one caller wins and sends the email. Failures are
// logged; the status change has already been committed.
func (s *ApplicationService) issueIfDue(ctx context.Context, app *models.Application) *models.Application {
	if app.Status != lifecycle.StatusPaymentReceived || app.HasPortalAccess {
		return app
	}

	creds, err := portal.Generate()
	if err != nil {
		s.logger.Errorw("Failed to generate portal credentials", "application_id", app.ApplicationID, "error", err)
		return app
	}
	issued, err := s.apps.IssuePortalCredentials(ctx, app.ApplicationID, creds.Token, creds.PasswordHash)
	if err != nil {
		s.logger.Errorw("Failed to store portal credentials", "application_id", app.ApplicationID, "error", err)
		return app
	}
	app.HasPortalAccess = true
	if !issued {
		return app
	}

	s.logger.Infow("Portal credentials issued", "application_id", app.ApplicationID)
	s.mail.Dispatch(ctx, notify.TemplatePortalAccess, app.Locale, app.Email, notify.PortalAccessData{
		Name:          app.Name,
		ApplicationID: app.ApplicationID,
		TrackerURL:    portal.TrackerURL(s.baseURL, creds.Token),
		Password:      creds.Password,
	})
	return app
}

// Archive soft-deletes an application
func (s *ApplicationService) Archive(ctx context.Context, applicationID, actor string) error {
	if err := s.apps.Archive(ctx, applicationID); err != nil {
		return storeErr(err, "archive application")
	}
	s.logger.Infow("Application archived", "application_id", applicationID, "by", actor)
	return nil
}
