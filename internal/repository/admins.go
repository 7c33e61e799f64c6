package repository

import (
	"context"
	"fmt"

	"github.com/brasillegalize/agency-server/internal/database"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/google/uuid"
)

const adminColumns = `id, email, name, role, password_hash, created_at`

// AdminRepository persists staff accounts
type AdminRepository struct {
	db database.Querier
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db database.Querier) *AdminRepository {
	return &AdminRepository{db: db}
}

func scanAdmin(row scanner) (*models.AdminUser, error) {
	var a models.AdminUser
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail looks up an admin by email, case-insensitively
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	a, err := scanAdmin(r.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admin_users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		return nil, notFound(err, "get admin by email")
	}
	return a, nil
}

// GetByID looks up an admin by id
func (r *AdminRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	a, err := scanAdmin(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get admin")
	}
	return a, nil
}

// CreateIfMissing inserts an admin unless the email is already taken. It
// reports whether a row was inserted.
func (r *AdminRepository) CreateIfMissing(ctx context.Context, a *models.AdminUser) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO admin_users (id, email, name, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
	`, a.ID, a.Email, a.Name, a.Role, a.PasswordHash, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
