package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/brasillegalize/agency-server/internal/database"
	"github.com/brasillegalize/agency-server/internal/locale"
	"github.com/brasillegalize/agency-server/internal/models"
)

type localizedColumns struct {
	name        string
	description string
}

// pricingColumns is the only source of localized column names; request
// values are looked up here and never interpolated.
var pricingColumns = map[string]localizedColumns{
	locale.English:    {name: "name_en", description: "description_en"},
	locale.Portuguese: {name: "name_pt", description: "description_pt"},
	locale.Spanish:    {name: "name_es", description: "description_es"},
}

func columnsFor(loc string) localizedColumns {
	return pricingColumns[locale.Normalize(loc)]
}

// PricingRepository persists service packages
type PricingRepository struct {
	db database.Querier
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db database.Querier) *PricingRepository {
	return &PricingRepository{db: db}
}

func selectPricing(cols localizedColumns) string {
	// Untranslated names fall back to English.
	return fmt.Sprintf(`SELECT id, slug, service_type, price_cents, currency,
		COALESCE(NULLIF(%s, ''), name_en), COALESCE(NULLIF(%s, ''), description_en),
		active, sort_order, updated_at
		FROM pricing_packages`, cols.name, cols.description)
}

func scanPricing(row scanner) (*models.PricingPackage, error) {
	var p models.PricingPackage
	err := row.Scan(&p.ID, &p.Slug, &p.ServiceType, &p.PriceCents, &p.Currency, &p.Name,
		&p.Description, &p.Active, &p.SortOrder, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns packages in display order with names in the given locale
func (r *PricingRepository) List(ctx context.Context, loc string, activeOnly bool) ([]models.PricingPackage, error) {
	query := selectPricing(columnsFor(loc)) + ` WHERE (NOT $1 OR active) ORDER BY sort_order ASC, id ASC`
	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	defer rows.Close()

	packages := []models.PricingPackage{}
	for rows.Next() {
		p, err := scanPricing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pricing: %w", err)
		}
		packages = append(packages, *p)
	}
	return packages, rows.Err()
}

// Get returns one package with names in the given locale
func (r *PricingRepository) Get(ctx context.Context, id int, loc string) (*models.PricingPackage, error) {
	p, err := scanPricing(r.db.QueryRow(ctx, selectPricing(columnsFor(loc))+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get pricing")
	}
	return p, nil
}

// Update applies the non-nil fields of p; Name and Description are written
// to the columns of p.Locale.
func (r *PricingRepository) Update(ctx context.Context, id int, p models.PricingPatch) (*models.PricingPackage, error) {
	cols := columnsFor(p.Locale)
	var sets []string
	args := []any{id}
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.PriceCents != nil {
		add("price_cents", *p.PriceCents)
	}
	if p.Currency != nil {
		add("currency", *p.Currency)
	}
	if p.Name != nil {
		add(cols.name, *p.Name)
	}
	if p.Description != nil {
		add(cols.description, *p.Description)
	}
	if p.Active != nil {
		add("active", *p.Active)
	}
	if p.SortOrder != nil {
		add("sort_order", *p.SortOrder)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = NOW()")
		tag, err := r.db.Exec(ctx, `UPDATE pricing_packages SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
		if err != nil {
			return nil, fmt.Errorf("update pricing: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("update pricing: %w", ErrNotFound)
		}
	}
	return r.Get(ctx, id, p.Locale)
}
