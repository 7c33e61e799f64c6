package services

import (
	"context"
	"fmt"

	"github.com/brasillegalize/agency-server/internal/models"
)

// DashboardService aggregates the admin home page counters
type DashboardService struct {
	leads    LeadStore
	clients  ClientStore
	apps     ApplicationStore
	requests DocumentRequestStore
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(leads LeadStore, clients ClientStore, apps ApplicationStore, requests DocumentRequestStore) *DashboardService {
	return &DashboardService{leads: leads, clients: clients, apps: apps, requests: requests}
}

// Summary returns the current counters. Every phase and lead status is
// present, with zero when empty.
func (s *DashboardService) Summary(ctx context.Context) (*models.Dashboard, error) {
	leadCounts, err := s.leads.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	phaseCounts, err := s.apps.CountByPhase(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	open, err := s.requests.CountOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	active, err := s.clients.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	d := &models.Dashboard{
		LeadsByStatus:        make(map[string]int, len(models.LeadStatuses)),
		ApplicationsByPhase:  make(map[int]int, 4),
		OpenDocumentRequests: open,
		ActiveClients:        active,
	}
	for _, st := range models.LeadStatuses {
		d.LeadsByStatus[st] = leadCounts[st]
	}
	for phase := 1; phase <= 4; phase++ {
		d.ApplicationsByPhase[phase] = phaseCounts[phase]
	}
	return d, nil
}
