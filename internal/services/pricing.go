package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/brasillegalize/agency-server/internal/locale"
	"github.com/brasillegalize/agency-server/internal/models"
	"go.uber.org/zap"
)

// PricingService handles service packages and their localized names
type PricingService struct {
	pricing PricingStore
	logger  *zap.SugaredLogger
}

// NewPricingService creates a new pricing service
func NewPricingService(pricing PricingStore, logger *zap.SugaredLogger) *PricingService {
	return &PricingService{pricing: pricing, logger: logger}
}

// List returns packages with names in loc. The public site only sees active
// packages.
func (s *PricingService) List(ctx context.Context, loc string, activeOnly bool) ([]models.PricingPackage, error) {
	packages, err := s.pricing.List(ctx, locale.Normalize(loc), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	return packages, nil
}

// Update changes a package. Name and description are written for the
// patch's locale only.
func (s *PricingService) Update(ctx context.Context, id int, p *models.PricingPatch, actor string) (*models.PricingPackage, error) {
	if err := validateInput(p); err != nil {
		return nil, err
	}
	p.Locale = locale.Normalize(p.Locale)
	if p.Currency != nil {
		cur := strings.ToUpper(*p.Currency)
		p.Currency = &cur
	}
	pkg, err := s.pricing.Update(ctx, id, *p)
	if err != nil {
		return nil, storeErr(err, "update pricing")
	}
	s.logger.Infow("Pricing updated", "id", id, "locale", p.Locale, "by", actor)
	return pkg, nil
}
