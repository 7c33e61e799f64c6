package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/brasillegalize/agency-server/internal/database"
	"github.com/brasillegalize/agency-server/internal/models"
)

const clientColumns = `client_id, name, email, phone, whatsapp, country, locale, service_type, package,
	adults, children, total_paid_cents, total_due_cents, currency, tags, notes, communications, payments,
	is_historical, archived, archived_at, lead_id, created_at, updated_at`

// ClientRepository persists clients
type ClientRepository struct {
	db database.Querier
}

// NewClientRepository creates a new client repository
func NewClientRepository(db database.Querier) *ClientRepository {
	return &ClientRepository{db: db}
}

func scanClient(row scanner) (*models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ClientID, &c.Name, &c.Email, &c.Phone, &c.WhatsApp, &c.Country, &c.Locale,
		&c.ServiceType, &c.Package, &c.Adults, &c.Children, &c.TotalPaidCents, &c.TotalDueCents,
		&c.Currency, &c.Tags, &c.Notes, &c.Communications, &c.Payments, &c.IsHistorical,
		&c.Archived, &c.ArchivedAt, &c.LeadID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a client whose ClientID has already been allocated
func (r *ClientRepository) Create(ctx context.Context, c *models.Client) error {
	query := `
		INSERT INTO clients (client_id, name, email, phone, whatsapp, country, locale, service_type, package,
			adults, children, total_due_cents, currency, tags, is_historical, lead_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
	`
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		c.ClientID, c.Name, c.Email, c.Phone, c.WhatsApp, c.Country, c.Locale, c.ServiceType, c.Package,
		c.Adults, c.Children, c.TotalDueCents, c.Currency, tags, c.IsHistorical, c.LeadID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// Get looks up a client by its human-readable id
func (r *ClientRepository) Get(ctx context.Context, clientID string) (*models.Client, error) {
	c, err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE client_id = $1`, clientID))
	if err != nil {
		return nil, notFound(err, "get client")
	}
	return c, nil
}

// List returns clients newest first
func (r *ClientRepository) List(ctx context.Context, f models.ClientFilter) ([]models.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE archived = $1
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%' OR client_id ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, f.Archived, f.Search, pageSize(f.Limit), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// Update applies the non-nil fields of p. Column names come from this
// function, never from the request.
func (r *ClientRepository) Update(ctx context.Context, clientID string, p models.ClientPatch) (*models.Client, error) {
	var sets []string
	args := []any{clientID}
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.Phone != nil {
		add("phone", *p.Phone)
	}
	if p.WhatsApp != nil {
		add("whatsapp", *p.WhatsApp)
	}
	if p.Country != nil {
		add("country", *p.Country)
	}
	if p.Locale != nil {
		add("locale", *p.Locale)
	}
	if p.ServiceType != nil {
		add("service_type", *p.ServiceType)
	}
	if p.Package != nil {
		add("package", *p.Package)
	}
	if p.Adults != nil {
		add("adults", *p.Adults)
	}
	if p.Children != nil {
		add("children", *p.Children)
	}
	if p.TotalDueCents != nil {
		add("total_due_cents", *p.TotalDueCents)
	}
	if p.Currency != nil {
		add("currency", *p.Currency)
	}
	if p.Tags != nil {
		add("tags", *p.Tags)
	}
	if p.IsHistorical != nil {
		add("is_historical", *p.IsHistorical)
	}

	if len(sets) == 0 {
		return r.Get(ctx, clientID)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE clients SET ` + strings.Join(sets, ", ") + ` WHERE client_id = $1 RETURNING ` + clientColumns
	c, err := scanClient(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "update client")
	}
	return c, nil
}

// Archive soft-deletes a client
func (r *ClientRepository) Archive(ctx context.Context, clientID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE clients SET archived = TRUE, archived_at = NOW(), updated_at = NOW() WHERE client_id = $1 AND NOT archived`,
		clientID)
	if err != nil {
		return fmt.Errorf("archive client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, clientID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ClientRepository) appendEntry(ctx context.Context, clientID, column string, entry any) (*models.Client, error) {
	payload, err := jsonArray([]any{entry})
	if err != nil {
		return nil, fmt.Errorf("encode %s entry: %w", column, err)
	}
	query := `UPDATE clients SET ` + column + ` = ` + column + ` || $2::jsonb, updated_at = NOW()
		WHERE client_id = $1 RETURNING ` + clientColumns
	c, err := scanClient(r.db.QueryRow(ctx, query, clientID, payload))
	if err != nil {
		return nil, notFound(err, "append client "+column)
	}
	return c, nil
}

// AppendNote adds a note to the client's log
func (r *ClientRepository) AppendNote(ctx context.Context, clientID string, n models.NoteEntry) (*models.Client, error) {
	return r.appendEntry(ctx, clientID, "notes", n)
}

// AppendCommunication adds a communication to the client's log
func (r *ClientRepository) AppendCommunication(ctx context.Context, clientID string, e models.CommunicationEntry) (*models.Client, error) {
	return r.appendEntry(ctx, clientID, "communications", e)
}

// AppendPayment adds a payment and raises total_paid_cents in the same statement
func (r *ClientRepository) AppendPayment(ctx context.Context, clientID string, p models.PaymentEntry) (*models.Client, error) {
	payload, err := jsonArray([]models.PaymentEntry{p})
	if err != nil {
		return nil, fmt.Errorf("encode payment entry: %w", err)
	}
	query := `UPDATE clients SET payments = payments || $2::jsonb, total_paid_cents = total_paid_cents + $3,
		updated_at = NOW() WHERE client_id = $1 RETURNING ` + clientColumns
	c, err := scanClient(r.db.QueryRow(ctx, query, clientID, payload, p.AmountCents))
	if err != nil {
		return nil, notFound(err, "append client payment")
	}
	return c, nil
}

// CountActive returns the number of non-archived clients
func (r *ClientRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE NOT archived`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}
