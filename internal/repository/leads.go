package repository

import (
	"context"
	"fmt"

	"github.com/brasillegalize/agency-server/internal/database"
	"github.com/brasillegalize/agency-server/internal/eligibility"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, name, email, phone, country, service_type, locale, answers, consent,
	consent_version, consent_at, eligibility_result, source, status, client_id, created_at, updated_at`

// LeadRepository persists leads
type LeadRepository struct {
	db database.Querier
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db database.Querier) *LeadRepository {
	return &LeadRepository{db: db}
}

func scanLead(row scanner) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Country, &l.ServiceType, &l.Locale,
		&l.Answers, &l.Consent, &l.ConsentVersion, &l.ConsentAt, &l.EligibilityResult,
		&l.Source, &l.Status, &l.ClientID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a new lead
func (r *LeadRepository) Create(ctx context.Context, l *models.Lead) error {
	query := `
		INSERT INTO leads (id, name, email, phone, country, service_type, locale, answers, consent,
			consent_version, consent_at, eligibility_result, source, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`
	_, err := r.db.Exec(ctx, query,
		l.ID, l.Name, l.Email, l.Phone, l.Country, l.ServiceType, l.Locale, l.Answers, l.Consent,
		l.ConsentVersion, l.ConsentAt, l.EligibilityResult, l.Source, l.Status, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// Get looks up a lead by id
func (r *LeadRepository) Get(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	l, err := scanLead(r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get lead")
	}
	return l, nil
}

// List returns leads newest first, optionally filtered by triage status
func (r *LeadRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, status, pageSize(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// UpdateStatus changes a lead's triage status
func (r *LeadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Lead, error) {
	query := `UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + leadColumns
	l, err := scanLead(r.db.QueryRow(ctx, query, id, status))
	if err != nil {
		return nil, notFound(err, "update lead status")
	}
	return l, nil
}

// ConvertFunc builds the client and first application for a locked lead.
type ConvertFunc func(lead *models.Lead) (*models.Client, *models.Application, error)

// Convert locks the lead, inserts the client and application built from it
// and marks the lead converted in one transaction. A lead that is already
// converted returns ErrConflict and nothing is written.
func (r *LeadRepository) Convert(ctx context.Context, id uuid.UUID, build ConvertFunc) (*models.Lead, error) {
	var converted *models.Lead
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		lead, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "lock lead")
		}
		if lead.Status == models.LeadConverted {
			return fmt.Errorf("lead %s already converted: %w", id, ErrConflict)
		}

		client, app, err := build(lead)
		if err != nil {
			return err
		}
		if err := NewClientRepository(tx).Create(ctx, client); err != nil {
			return err
		}
		if err := NewApplicationRepository(tx).Create(ctx, app); err != nil {
			return err
		}

		query := `UPDATE leads SET status = $2, client_id = $3, updated_at = NOW() WHERE id = $1 RETURNING ` + leadColumns
		converted, err = scanLead(tx.QueryRow(ctx, query, id, models.LeadConverted, client.ClientID))
		if err != nil {
			return fmt.Errorf("mark lead converted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return converted, nil
}

// CountByStatus returns the number of leads per triage status
func (r *LeadRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count leads: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan lead count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// RuleRepository reads configured eligibility rules
type RuleRepository struct {
	db database.Querier
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db database.Querier) *RuleRepository {
	return &RuleRepository{db: db}
}

// Active returns active rules, highest priority first and insertion order
// within a priority.
func (r *RuleRepository) Active(ctx context.Context) ([]eligibility.Rule, error) {
	query := `
		SELECT name, result_type, conditions, priority
		FROM eligibility_rules
		WHERE active
		ORDER BY priority DESC, id ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list eligibility rules: %w", err)
	}
	defer rows.Close()

	var rules []eligibility.Rule
	for rows.Next() {
		var rule eligibility.Rule
		if err := rows.Scan(&rule.Name, &rule.ResultType, &rule.Conditions, &rule.Priority); err != nil {
			return nil, fmt.Errorf("scan eligibility rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
