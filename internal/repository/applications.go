package repository

import (
	"context"
	"fmt"

	"github.com/brasillegalize/agency-server/internal/database"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/jackc/pgx/v5"
)

const applicationColumns = `application_id, client_id, name, email, phone, locale, service_type, package,
	phase, status, timeline, documents, notes, payments, portal_token, portal_password_hash,
	archived, created_at, updated_at`

// ApplicationChange is one status-update request resolved into column
// values. Nil pointers leave the column untouched and the slices are
// appended, never replacing what is stored.
type ApplicationChange struct {
	Status      *string
	Phase       *int
	ServiceType *string
	Package     *string
	Locale      *string
	Timeline    []models.TimelineEvent
	Notes       []models.NoteEntry
	Payments    []models.PaymentEntry
	Reviews     []models.DocumentReview
}

// ApplicationRepository persists applications
type ApplicationRepository struct {
	db database.Querier
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db database.Querier) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func scanApplication(row scanner) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ApplicationID, &a.ClientID, &a.Name, &a.Email, &a.Phone, &a.Locale,
		&a.ServiceType, &a.Package, &a.Phase, &a.Status, &a.Timeline, &a.Documents, &a.Notes,
		&a.Payments, &a.PortalToken, &a.PortalPasswordHash, &a.Archived, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.HasPortalAccess = a.PortalToken != nil
	return &a, nil
}

// Create inserts an application whose ApplicationID has already been allocated
func (r *ApplicationRepository) Create(ctx context.Context, a *models.Application) error {
	timeline, err := jsonArray(a.Timeline)
	if err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}
	notes, err := jsonArray(a.Notes)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}

	query := `
		INSERT INTO applications (application_id, client_id, name, email, phone, locale, service_type,
			package, phase, status, timeline, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`
	_, err = r.db.Exec(ctx, query,
		a.ApplicationID, a.ClientID, a.Name, a.Email, a.Phone, a.Locale, a.ServiceType, a.Package,
		int(a.Phase), string(a.Status), timeline, notes, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// Get looks up an application by its human-readable id
func (r *ApplicationRepository) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	a, err := scanApplication(r.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE application_id = $1`, applicationID))
	if err != nil {
		return nil, notFound(err, "get application")
	}
	return a, nil
}

// GetByToken looks up an application by its portal token
func (r *ApplicationRepository) GetByToken(ctx context.Context, token string) (*models.Application, error) {
	a, err := scanApplication(r.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE portal_token = $1 AND NOT archived`, token))
	if err != nil {
		return nil, notFound(err, "get application by token")
	}
	return a, nil
}

func (r *ApplicationRepository) collect(ctx context.Context, query string, args ...any) ([]models.Application, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// List returns applications newest first
func (r *ApplicationRepository) List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE archived = $1
		  AND ($2 = '' OR client_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4 = 0 OR phase = $4)
		  AND ($5 = '' OR name ILIKE '%' || $5 || '%' OR email ILIKE '%' || $5 || '%' OR application_id ILIKE '%' || $5 || '%')
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7
	`
	return r.collect(ctx, query, f.Archived, f.ClientID, f.Status, f.Phase, f.Search, pageSize(f.Limit), f.Offset)
}

// ListForClient returns the client's applications. Applications created
// before the client existed are matched on email instead.
func (r *ApplicationRepository) ListForClient(ctx context.Context, clientID, email string) ([]models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE NOT archived
		  AND (client_id = $1 OR (client_id IS NULL AND $2 <> '' AND LOWER(email) = LOWER($2)))
		ORDER BY created_at DESC
	`
	return r.collect(ctx, query, clientID, email)
}

// ApplyUpdate applies the document reviews and the column changes in one
// transaction and returns the stored row. Any failing review rolls back
// the whole change.
func (r *ApplicationRepository) ApplyUpdate(ctx context.Context, applicationID string, c ApplicationChange) (*models.Application, error) {
	timeline, err := jsonArray(c.Timeline)
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	notes, err := jsonArray(c.Notes)
	if err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	payments, err := jsonArray(c.Payments)
	if err != nil {
		return nil, fmt.Errorf("encode payments: %w", err)
	}

	query := `
		UPDATE applications SET
			status = COALESCE($2, status),
			phase = COALESCE($3, phase),
			service_type = COALESCE($4, service_type),
			package = COALESCE($5, package),
			locale = COALESCE($6, locale),
			timeline = timeline || $7::jsonb,
			notes = notes || $8::jsonb,
			payments = payments || $9::jsonb,
			updated_at = NOW()
		WHERE application_id = $1
		RETURNING ` + applicationColumns
	var updated *models.Application
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, review := range c.Reviews {
			if err := reviewDocument(ctx, tx, applicationID, review); err != nil {
				return err
			}
		}
		a, err := scanApplication(tx.QueryRow(ctx, query, applicationID,
			c.Status, c.Phase, c.ServiceType, c.Package, c.Locale, timeline, notes, payments))
		if err != nil {
			return notFound(err, "update application")
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// IssuePortalCredentials stores a token and password hash only when the
// application has none yet. It reports whether this call issued them, so
// concurrent callers never both send credentials.
func (r *ApplicationRepository) IssuePortalCredentials(ctx context.Context, applicationID, token, passwordHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE applications
		SET portal_token = $2, portal_password_hash = $3, updated_at = NOW()
		WHERE application_id = $1 AND portal_token IS NULL
	`, applicationID, token, passwordHash)
	if err != nil {
		return false, fmt.Errorf("issue portal credentials: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendDocuments attaches uploaded files to an application
func (r *ApplicationRepository) AppendDocuments(ctx context.Context, applicationID string, files []models.UploadedFile) error {
	payload, err := jsonArray(files)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE applications SET documents = documents || $2::jsonb, updated_at = NOW() WHERE application_id = $1`,
		applicationID, payload)
	if err != nil {
		return fmt.Errorf("append documents: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("append documents: %w", ErrNotFound)
	}
	return nil
}

// reviewDocument sets the review status of one stored document. The array is
// rebuilt inside the statement so concurrent uploads are not lost.
func reviewDocument(ctx context.Context, db database.Querier, applicationID string, review models.DocumentReview) error {
	query := `
		UPDATE applications SET
			documents = (
				SELECT COALESCE(jsonb_agg(
					CASE WHEN elem->>'stored_filename' = $2
						THEN elem || jsonb_build_object('status', $3::text, 'rejection_reason', $4::text)
						ELSE elem
					END ORDER BY ord), '[]'::jsonb)
				FROM jsonb_array_elements(documents) WITH ORDINALITY AS t(elem, ord)
			),
			updated_at = NOW()
		WHERE application_id = $1
		  AND documents @> jsonb_build_array(jsonb_build_object('stored_filename', $2::text))
	`
	reason := review.RejectionReason
	if review.Status != models.FileRejected {
		reason = ""
	}
	tag, err := db.Exec(ctx, query, applicationID, review.StoredFilename, review.Status, reason)
	if err != nil {
		return fmt.Errorf("review document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review document %s: %w", review.StoredFilename, ErrNotFound)
	}
	return nil
}

// Archive soft-deletes an application
func (r *ApplicationRepository) Archive(ctx context.Context, applicationID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE applications SET archived = TRUE, updated_at = NOW() WHERE application_id = $1`,
		applicationID)
	if err != nil {
		return fmt.Errorf("archive application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("archive application: %w", ErrNotFound)
	}
	return nil
}

// CountByPhase returns the number of open applications per phase
func (r *ApplicationRepository) CountByPhase(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.Query(ctx, `SELECT phase, COUNT(*) FROM applications WHERE NOT archived GROUP BY phase`)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var phase, n int
		if err := rows.Scan(&phase, &n); err != nil {
			return nil, fmt.Errorf("scan application count: %w", err)
		}
		counts[phase] = n
	}
	return counts, rows.Err()
}
