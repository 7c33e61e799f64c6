package repository

import (
	"context"
	"fmt"

	"github.com/brasillegalize/agency-server/internal/database"
	"github.com/brasillegalize/agency-server/internal/documents"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/jackc/pgx/v5"
)

const documentRequestColumns = `request_id, client_id, application_id, requested_documents, message, due_date,
	upload_token, status, uploaded_files, storage_prefix, created_by, created_at, updated_at, completed_at`

// DocumentRequestRepository persists document requests
type DocumentRequestRepository struct {
	db database.Querier
}

// NewDocumentRequestRepository creates a new document request repository
func NewDocumentRequestRepository(db database.Querier) *DocumentRequestRepository {
	return &DocumentRequestRepository{db: db}
}

func scanDocumentRequest(row scanner) (*models.DocumentRequest, error) {
	var d models.DocumentRequest
	err := row.Scan(&d.RequestID, &d.ClientID, &d.ApplicationID, &d.RequestedDocuments, &d.Message,
		&d.DueDate, &d.UploadToken, &d.Status, &d.UploadedFiles, &d.StoragePrefix, &d.CreatedBy,
		&d.CreatedAt, &d.UpdatedAt, &d.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a document request whose RequestID has already been allocated
func (r *DocumentRequestRepository) Create(ctx context.Context, d *models.DocumentRequest) error {
	requested, err := jsonArray(d.RequestedDocuments)
	if err != nil {
		return fmt.Errorf("encode requested documents: %w", err)
	}
	query := `
		INSERT INTO document_requests (request_id, client_id, application_id, requested_documents, message,
			due_date, upload_token, status, storage_prefix, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`
	_, err = r.db.Exec(ctx, query,
		d.RequestID, d.ClientID, d.ApplicationID, requested, d.Message, d.DueDate, d.UploadToken,
		string(d.Status), d.StoragePrefix, d.CreatedBy, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document request: %w", err)
	}
	return nil
}

// Get looks up a document request by its human-readable id
func (r *DocumentRequestRepository) Get(ctx context.Context, requestID string) (*models.DocumentRequest, error) {
	d, err := scanDocumentRequest(r.db.QueryRow(ctx,
		`SELECT `+documentRequestColumns+` FROM document_requests WHERE request_id = $1`, requestID))
	if err != nil {
		return nil, notFound(err, "get document request")
	}
	return d, nil
}

// GetByToken looks up a document request by its upload token
func (r *DocumentRequestRepository) GetByToken(ctx context.Context, token string) (*models.DocumentRequest, error) {
	d, err := scanDocumentRequest(r.db.QueryRow(ctx,
		`SELECT `+documentRequestColumns+` FROM document_requests WHERE upload_token = $1`, token))
	if err != nil {
		return nil, notFound(err, "get document request by token")
	}
	return d, nil
}

// ListByClient returns a client's document requests, newest first
func (r *DocumentRequestRepository) ListByClient(ctx context.Context, clientID string) ([]models.DocumentRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentRequestColumns+` FROM document_requests WHERE client_id = $1 ORDER BY created_at DESC`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("list document requests: %w", err)
	}
	defer rows.Close()

	reqs := []models.DocumentRequest{}
	for rows.Next() {
		d, err := scanDocumentRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document request: %w", err)
		}
		reqs = append(reqs, *d)
	}
	return reqs, rows.Err()
}

// lockStatus reads a request's status and holds the row until tx ends.
func lockStatus(ctx context.Context, tx pgx.Tx, requestID string) (documents.RequestStatus, error) {
	var status documents.RequestStatus
	err := tx.QueryRow(ctx, `SELECT status FROM document_requests WHERE request_id = $1 FOR UPDATE`, requestID).Scan(&status)
	if err != nil {
		return "", notFound(err, "lock document request")
	}
	if !status.Valid() {
		return "", fmt.Errorf("document request %s has unknown status %q", requestID, status)
	}
	return status, nil
}

// AppendFiles records uploaded files and moves the request on as
// documents.AfterUpload decides. A completed request is left untouched and
// documents.ErrRequestClosed is returned.
func (r *DocumentRequestRepository) AppendFiles(ctx context.Context, requestID string, files []models.UploadedFile) (documents.RequestStatus, error) {
	payload, err := jsonArray(files)
	if err != nil {
		return "", fmt.Errorf("encode uploaded files: %w", err)
	}

	var next documents.RequestStatus
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockStatus(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if next, err = documents.AfterUpload(current); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE document_requests
			SET uploaded_files = uploaded_files || $2::jsonb, status = $3, updated_at = NOW()
			WHERE request_id = $1
		`, requestID, payload, string(next))
		if err != nil {
			return fmt.Errorf("append uploaded files: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

// Complete closes a request as documents.Complete decides. Completing twice
// returns documents.ErrAlreadyCompleted.
func (r *DocumentRequestRepository) Complete(ctx context.Context, requestID string) (*models.DocumentRequest, error) {
	var completed *models.DocumentRequest
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockStatus(ctx, tx, requestID)
		if err != nil {
			return err
		}
		next, err := documents.Complete(current)
		if err != nil {
			return err
		}
		query := `
			UPDATE document_requests
			SET status = $2, completed_at = NOW(), updated_at = NOW()
			WHERE request_id = $1
			RETURNING ` + documentRequestColumns
		completed, err = scanDocumentRequest(tx.QueryRow(ctx, query, requestID, string(next)))
		if err != nil {
			return fmt.Errorf("complete document request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// CountOpen returns the number of requests still awaiting files
func (r *DocumentRequestRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM document_requests WHERE status <> $1`, string(documents.StatusCompleted)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count document requests: %w", err)
	}
	return n, nil
}
