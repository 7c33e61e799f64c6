package services

import (
	"context"
	"fmt"
	"time"

	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/portal"
	"go.uber.org/zap"
)

// TrackerService serves the client-facing case tracker
type TrackerService struct {
	apps   ApplicationStore
	logger *zap.SugaredLogger
}

// NewTrackerService creates a new tracker service
func NewTrackerService(apps ApplicationStore, logger *zap.SugaredLogger) *TrackerService {
	return &TrackerService{apps: apps, logger: logger}
}

// TrackerView is what a portal token holder sees.
type TrackerView struct {
	ApplicationID string                 `json:"application_id"`
	Name          string                 `json:"name"`
	ServiceType   string                 `json:"service_type,omitempty"`
	Locale        string                 `json:"locale"`
	Status        lifecycle.Status       `json:"status"`
	Phase         lifecycle.Phase        `json:"phase"`
	StatusInfo    lifecycle.Info         `json:"status_info"`
	Timeline      []models.TimelineEvent `json:"timeline"`
	Documents     []UploadedSummary      `json:"documents"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// View returns the tracker payload for a portal token, timeline most
// recent first.
func (s *TrackerService) View(ctx context.Context, token string) (*TrackerView, error) {
	app, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	info, err := lifecycle.Describe(app.Status)
	if err != nil {
		return nil, fmt.Errorf("describe status: %w", err)
	}

	timeline := make([]models.TimelineEvent, len(app.Timeline))
	for i, ev := range app.Timeline {
		timeline[len(app.Timeline)-1-i] = ev
	}

	return &TrackerView{
		ApplicationID: app.ApplicationID,
		Name:          app.Name,
		ServiceType:   app.ServiceType,
		Locale:        app.Locale,
		Status:        app.Status,
		Phase:         info.Phase,
		StatusInfo:    info,
		Timeline:      timeline,
		Documents:     summarize(app.Documents),
		UpdatedAt:     app.UpdatedAt,
	}, nil
}

// VerifyPassword checks the password emailed with the portal credentials.
func (s *TrackerService) VerifyPassword(ctx context.Context, token, password string) error {
	app, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}
	hash := ""
	if app.PortalPasswordHash != nil {
		hash = *app.PortalPasswordHash
	}
	if !portal.VerifyPassword(hash, password) {
		s.logger.Infow("Tracker password rejected", "application_id", app.ApplicationID)
		return fmt.Errorf("verify tracker password: %w", ErrUnauthorized)
	}
	return nil
}

func (s *TrackerService) lookup(ctx context.Context, token string) (*models.Application, error) {
	if token == "" {
		return nil, fmt.Errorf("tracker: %w", ErrNotFound)
	}
	app, err := s.apps.GetByToken(ctx, token)
	if err != nil {
		return nil, storeErr(err, "tracker")
	}
	return app, nil
}
