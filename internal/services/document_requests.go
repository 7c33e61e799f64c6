package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brasillegalize/agency-server/internal/documents"
	"github.com/brasillegalize/agency-server/internal/ids"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/notify"
	"github.com/brasillegalize/agency-server/internal/portal"
	"github.com/brasillegalize/agency-server/internal/repository"
	"github.com/brasillegalize/agency-server/internal/storage"
	"go.uber.org/zap"
)

// Upload targets
const (
	TargetDocumentRequest = "document_request"
	TargetApplication     = "application"
)

const defaultDocumentType = "other"

// DocumentRequestService handles document requests and token uploads
type DocumentRequestService struct {
	requests DocumentRequestStore
	clients  ClientStore
	apps     ApplicationStore
	seq      Sequencer
	blobs    storage.BlobStore
	mail     Notifier
	baseURL  string
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewDocumentRequestService creates a new document request service
func NewDocumentRequestService(requests DocumentRequestStore, clients ClientStore, apps ApplicationStore, seq Sequencer, blobs storage.BlobStore, mail Notifier, baseURL string, logger *zap.SugaredLogger) *DocumentRequestService {
	return &DocumentRequestService{
		requests: requests,
		clients:  clients,
		apps:     apps,
		seq:      seq,
		blobs:    blobs,
		mail:     mail,
		baseURL:  baseURL,
		logger:   logger,
		now:      time.Now,
	}
}

// CreatedRequest is returned to staff after creating a request.
type CreatedRequest struct {
	Request     *models.DocumentRequest `json:"request"`
	UploadToken string                  `json:"upload_token"`
	UploadURL   string                  `json:"upload_url"`
}

// UploadPath is the relative client-facing upload link for a token.
func UploadPath(token string) string {
	return "/upload/" + token
}

// Create issues a request for documents from an existing client, optionally
// tied to one of the client's applications, and emails the upload link.
func (s *DocumentRequestService) Create(ctx context.Context, in *models.DocumentRequestInput, actor string) (*CreatedRequest, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	client, err := s.clients.Get(ctx, in.ClientID)
	if err != nil {
		return nil, storeErr(err, "create document request: client "+in.ClientID)
	}
	if in.ApplicationID != nil && *in.ApplicationID == "" {
		in.ApplicationID = nil
	}
	if in.ApplicationID != nil {
		app, err := s.apps.Get(ctx, *in.ApplicationID)
		if err != nil {
			return nil, storeErr(err, "create document request: application "+*in.ApplicationID)
		}
		if app.ClientID != nil && *app.ClientID != client.ClientID {
			return nil, invalid("application_id", "application %s belongs to another client", app.ApplicationID)
		}
	}

	token, err := portal.NewToken()
	if err != nil {
		return nil, fmt.Errorf("create document request: %w", err)
	}
	now := s.now()
	id, err := allocateID(ctx, s.seq, ids.DocumentRequest, now)
	if err != nil {
		return nil, err
	}

	req := &models.DocumentRequest{
		RequestID:          id,
		ClientID:           client.ClientID,
		ApplicationID:      in.ApplicationID,
		RequestedDocuments: in.RequestedDocuments,
		Message:            strings.TrimSpace(in.Message),
		DueDate:            in.DueDate,
		UploadToken:        token,
		Status:             documents.StatusPending,
		UploadedFiles:      []models.UploadedFile{},
		StoragePrefix:      documents.RequestPrefix(client.ClientID, id),
		CreatedBy:          actor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create document request: %w", err)
	}

	s.logger.Infow("Document request created",
		"request_id", req.RequestID,
		"client_id", req.ClientID,
		"documents", len(req.RequestedDocuments),
		"by", actor,
	)

	s.mail.Dispatch(ctx, notify.TemplateDocumentRequest, client.Locale, client.Email, notify.DocumentRequestData{
		Name:      client.Name,
		Documents: labels(req.RequestedDocuments),
		Message:   req.Message,
		DueDate:   formatDate(req.DueDate),
		UploadURL: s.baseURL + UploadPath(token),
	})

	return &CreatedRequest{Request: req, UploadToken: token, UploadURL: UploadPath(token)}, nil
}

// Get returns one document request
func (s *DocumentRequestService) Get(ctx context.Context, requestID string) (*models.DocumentRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, storeErr(err, "get document request")
	}
	return req, nil
}

// ListByClient returns the client's document requests
func (s *DocumentRequestService) ListByClient(ctx context.Context, clientID string) ([]models.DocumentRequest, error) {
	if _, err := s.clients.Get(ctx, clientID); err != nil {
		return nil, storeErr(err, "list document requests")
	}
	reqs, err := s.requests.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list document requests: %w", err)
	}
	return reqs, nil
}

// Complete is the staff action that closes a request
func (s *DocumentRequestService) Complete(ctx context.Context, requestID, actor string) (*models.DocumentRequest, error) {
	req, err := s.requests.Complete(ctx, requestID)
	if err != nil {
		return nil, storeErr(err, "complete document request")
	}
	s.logger.Infow("Document request completed", "request_id", requestID, "by", actor)
	return req, nil
}

// Download is a stored file opened for reading. Callers close Content.
type Download struct {
	File    models.UploadedFile
	Content io.ReadCloser
}

// RequestFile opens a file uploaded against a document request.
func (s *DocumentRequestService) RequestFile(ctx context.Context, requestID, storedFilename string) (*Download, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, storeErr(err, "download file")
	}
	return s.open(ctx, req.UploadedFiles, storedFilename)
}

// ApplicationFile opens a file uploaded through an application's portal.
func (s *DocumentRequestService) ApplicationFile(ctx context.Context, applicationID, storedFilename string) (*Download, error) {
	app, err := s.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, storeErr(err, "download file")
	}
	return s.open(ctx, app.Documents, storedFilename)
}

func (s *DocumentRequestService) open(ctx context.Context, files []models.UploadedFile, storedFilename string) (*Download, error) {
	for _, f := range files {
		if f.StoredFilename != storedFilename {
			continue
		}
		body, err := s.blobs.Get(ctx, f.ObjectKey)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warnw("Recorded file missing from storage", "key", f.ObjectKey)
			return nil, fmt.Errorf("download %s: %w", storedFilename, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", storedFilename, err)
		}
		return &Download{File: f, Content: body}, nil
	}
	return nil, fmt.Errorf("download %s: %w", storedFilename, ErrNotFound)
}

// UploadPage describes what a token holder is asked to upload.
type UploadPage struct {
	Target             string                     `json:"target"`
	Name               string                     `json:"name"`
	Status             documents.RequestStatus    `json:"status,omitempty"`
	RequestedDocuments []models.RequestedDocument `json:"requested_documents"`
	Message            string                     `json:"message,omitempty"`
	DueDate            *time.Time                 `json:"due_date,omitempty"`
	Uploaded           []UploadedSummary          `json:"uploaded"`
	MaxFileSize        int64                      `json:"max_file_size"`
}

// UploadedSummary is the public view of a stored file.
type UploadedSummary struct {
	Name            string    `json:"name"`
	DocumentType    string    `json:"document_type"`
	Status          string    `json:"status"`
	UploadedAt      time.Time `json:"uploaded_at"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
}

func summarize(files []models.UploadedFile) []UploadedSummary {
	out := make([]UploadedSummary, 0, len(files))
	for _, f := range files {
		out = append(out, UploadedSummary{
			Name:            f.Name,
			DocumentType:    f.DocumentType,
			Status:          f.Status,
			UploadedAt:      f.UploadedAt,
			RejectionReason: f.RejectionReason,
		})
	}
	return out
}

// uploadTarget is whatever an upload token resolved to.
type uploadTarget struct {
	request *models.DocumentRequest
	app     *models.Application
}

// resolve tries document requests first, then application portal tokens.
func (s *DocumentRequestService) resolve(ctx context.Context, token string) (*uploadTarget, error) {
	if token == "" {
		return nil, fmt.Errorf("resolve upload token: %w", ErrNotFound)
	}
	req, err := s.requests.GetByToken(ctx, token)
	if err == nil {
		return &uploadTarget{request: req}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("resolve upload token: %w", err)
	}

	app, err := s.apps.GetByToken(ctx, token)
	if err != nil {
		return nil, storeErr(err, "resolve upload token")
	}
	return &uploadTarget{app: app}, nil
}

// Describe returns the upload page for a token
func (s *DocumentRequestService) Describe(ctx context.Context, token string) (*UploadPage, error) {
	target, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if req := target.request; req != nil {
		name := ""
		if c, err := s.clients.Get(ctx, req.ClientID); err == nil {
			name = c.Name
		}
		return &UploadPage{
			Target:             TargetDocumentRequest,
			Name:               name,
			Status:             req.Status,
			RequestedDocuments: req.RequestedDocuments,
			Message:            req.Message,
			DueDate:            req.DueDate,
			Uploaded:           summarize(req.UploadedFiles),
			MaxFileSize:        documents.MaxFileSize,
		}, nil
	}
	return &UploadPage{
		Target:             TargetApplication,
		Name:               target.app.Name,
		RequestedDocuments: []models.RequestedDocument{},
		Uploaded:           summarize(target.app.Documents),
		MaxFileSize:        documents.MaxFileSize,
	}, nil
}

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Name         string
	Size         int64
	DocumentType string
	Content      io.ReadSeeker
}

// FileResult reports the outcome for one file of a batch.
type FileResult struct {
	Name           string `json:"name"`
	Accepted       bool   `json:"accepted"`
	StoredFilename string `json:"stored_filename,omitempty"`
	MimeType       string `json:"mime_type,omitempty"`
	Error          string `json:"error,omitempty"`
}

// UploadResult is the per-file outcome of a batch.
type UploadResult struct {
	Target   string                  `json:"target"`
	Status   documents.RequestStatus `json:"status,omitempty"`
	Accepted int                     `json:"accepted"`
	Rejected int                     `json:"rejected"`
	Files    []FileResult            `json:"files"`
}

// Upload validates and stores each file independently. Rejected files are
// never written; accepted ones are recorded in one update of the request
// (or application) the token resolves to.
func (s *DocumentRequestService) Upload(ctx context.Context, token string, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, invalid("files", "at least one file is required")
	}

	target, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	var prefix, mirror string
	result := &UploadResult{Files: make([]FileResult, 0, len(files))}
	if req := target.request; req != nil {
		if req.Status == documents.StatusCompleted {
			return nil, fmt.Errorf("upload: %w: %w", ErrConflict, documents.ErrRequestClosed)
		}
		result.Target = TargetDocumentRequest
		result.Status = req.Status
		prefix = req.StoragePrefix
		if req.ApplicationID != nil {
			mirror = documents.CaseRequestPrefix(*req.ApplicationID, req.RequestID)
		}
	} else {
		result.Target = TargetApplication
		prefix = documents.CaseDocumentsPrefix(target.app.ApplicationID)
	}

	var stored []models.UploadedFile
	for _, f := range files {
		desc, err := s.store(ctx, f, prefix, mirror)
		name := documents.CleanFilename(f.Name)
		if err != nil {
			result.Rejected++
			result.Files = append(result.Files, FileResult{Name: name, Error: uploadMessage(err)})
			continue
		}
		stored = append(stored, *desc)
		result.Accepted++
		result.Files = append(result.Files, FileResult{
			Name:           name,
			Accepted:       true,
			StoredFilename: desc.StoredFilename,
			MimeType:       desc.MimeType,
		})
	}

	if len(stored) == 0 {
		return result, nil
	}

	if req := target.request; req != nil {
		status, err := s.requests.AppendFiles(ctx, req.RequestID, stored)
		if err != nil {
			s.discard(ctx, stored, mirror)
			return nil, storeErr(err, "record uploaded files")
		}
		result.Status = status
	} else if err := s.apps.AppendDocuments(ctx, target.app.ApplicationID, stored); err != nil {
		s.discard(ctx, stored, "")
		return nil, storeErr(err, "record uploaded files")
	}

	s.logger.Infow("Files uploaded",
		"target", result.Target,
		"accepted", result.Accepted,
		"rejected", result.Rejected,
	)
	return result, nil
}

// uploadError marks a failure caused by the file itself.
type uploadError struct{ err error }

func (e *uploadError) Error() string { return e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

func uploadMessage(err error) string {
	var ue *uploadError
	if errors.As(err, &ue) {
		return ue.Error()
	}
	return "could not store file"
}

// store validates one file and writes it under prefix (and mirror, when set).
func (s *DocumentRequestService) store(ctx context.Context, f UploadFile, prefix, mirror string) (*models.UploadedFile, error) {
	inspected, err := documents.Inspect(f.Content, f.Size)
	if err != nil {
		if errors.Is(err, documents.ErrEmptyFile) || errors.Is(err, documents.ErrFileTooLarge) || errors.Is(err, documents.ErrFileTypeNotAllowed) {
			return nil, &uploadError{err: err}
		}
		s.logger.Errorw("Failed to read upload", "name", f.Name, "error", err)
		return nil, err
	}

	storedName := documents.StoredFilename(inspected.Extension)
	key := documents.ObjectKey(prefix, storedName)
	if err := s.blobs.Put(ctx, key, inspected.MimeType, f.Content, f.Size); err != nil {
		s.logger.Errorw("Failed to store upload", "key", key, "error", err)
		return nil, err
	}

	if mirror != "" {
		mirrorKey := documents.ObjectKey(mirror, storedName)
		if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
			s.logger.Warnw("Skipping upload mirror", "key", mirrorKey, "error", err)
		} else if err := s.blobs.Put(ctx, mirrorKey, inspected.MimeType, f.Content, f.Size); err != nil {
			s.logger.Warnw("Failed to mirror upload", "key", mirrorKey, "error", err)
		}
	}

	docType := strings.TrimSpace(f.DocumentType)
	if docType == "" {
		docType = defaultDocumentType
	}
	return &models.UploadedFile{
		Kind:           models.KindUploadedFile,
		Name:           documents.CleanFilename(f.Name),
		StoredFilename: storedName,
		ObjectKey:      key,
		MimeType:       inspected.MimeType,
		Size:           f.Size,
		DocumentType:   docType,
		Status:         models.FilePending,
		UploadedAt:     s.now(),
	}, nil
}

// discard removes blobs written for a batch that could not be recorded.
func (s *DocumentRequestService) discard(ctx context.Context, files []models.UploadedFile, mirror string) {
	for _, f := range files {
		keys := []string{f.ObjectKey}
		if mirror != "" {
			keys = append(keys, documents.ObjectKey(mirror, f.StoredFilename))
		}
		for _, key := range keys {
			if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warnw("Failed to remove orphaned upload", "key", key, "error", err)
			}
		}
	}
}

func labels(docs []models.RequestedDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Label)
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
