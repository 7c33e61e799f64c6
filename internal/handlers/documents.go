package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/brasillegalize/agency-server/internal/documents"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Multipart parts above this size spill to temporary files.
const multipartMemory = 32 << 20

var errTooManyFiles = errors.New("too many files")

// DocumentHandler handles document requests and token uploads
type DocumentHandler struct {
	svc      *services.DocumentRequestService
	maxFiles int
	logger   *zap.SugaredLogger
}

// NewDocumentHandler creates a new document handler. maxFiles caps the
// number of files accepted in one upload.
func NewDocumentHandler(svc *services.DocumentRequestService, maxFiles int, logger *zap.SugaredLogger) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxFiles: maxFiles, logger: logger}
}

// Create handles POST /api/v1/admin/document-requests
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.DocumentRequestInput
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.svc.Create(r.Context(), &req, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "create document request")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// Get handles GET /api/v1/admin/document-requests/{requestId}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Get(r.Context(), chi.URLParam(r, "requestId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "get document request")
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// Complete handles POST /api/v1/admin/document-requests/{requestId}/complete
func (h *DocumentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Complete(r.Context(), chi.URLParam(r, "requestId"), actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "complete document request")
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// RequestFile handles GET /api/v1/admin/document-requests/{requestId}/files/{storedFilename}
func (h *DocumentHandler) RequestFile(w http.ResponseWriter, r *http.Request) {
	dl, err := h.svc.RequestFile(r.Context(), chi.URLParam(r, "requestId"), chi.URLParam(r, "storedFilename"))
	if err != nil {
		respondServiceError(w, h.logger, err, "download file")
		return
	}
	h.stream(w, dl)
}

// ApplicationFile handles GET /api/v1/admin/applications/{applicationId}/documents/{storedFilename}
func (h *DocumentHandler) ApplicationFile(w http.ResponseWriter, r *http.Request) {
	dl, err := h.svc.ApplicationFile(r.Context(), chi.URLParam(r, "applicationId"), chi.URLParam(r, "storedFilename"))
	if err != nil {
		respondServiceError(w, h.logger, err, "download file")
		return
	}
	h.stream(w, dl)
}

// stream writes a download as an attachment named after the original upload.
func (h *DocumentHandler) stream(w http.ResponseWriter, dl *services.Download) {
	defer dl.Content.Close()

	contentType := dl.File.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.File.Name}))
	if dl.File.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.File.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Content); err != nil {
		h.logger.Warnw("Download interrupted", "stored_filename", dl.File.StoredFilename, "error", err)
	}
}

// Describe handles GET /api/v1/upload/{token}
func (h *DocumentHandler) Describe(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Describe(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondServiceError(w, h.logger, err, "load upload page")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Upload handles POST /api/v1/upload/{token}
// Multipart form: one or more "files" parts and optional "documentType"
// values, either one per file or a single value for the whole batch.
// Partially accepted batches still answer 200 with per-file results.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxFiles)*documents.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid multipart upload", Field: "files"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, closeAll, err := uploadFiles(r.MultipartForm, h.maxFiles)
	defer closeAll()
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: "files"})
		return
	}

	result, err := h.svc.Upload(r.Context(), chi.URLParam(r, "token"), files)
	if err != nil {
		respondServiceError(w, h.logger, err, "upload files")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// uploadFiles opens every "files" part of form. The returned func closes
// whatever was opened and is safe to call on error.
func uploadFiles(form *multipart.Form, maxFiles int) ([]services.UploadFile, func(), error) {
	headers := form.File["files"]
	types := form.Value["documentType"]

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	if len(headers) > maxFiles {
		return nil, closeAll, fmt.Errorf("%w: at most %d files per upload", errTooManyFiles, maxFiles)
	}

	files := make([]services.UploadFile, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)

		docType := ""
		switch {
		case i < len(types):
			docType = types[i]
		case len(types) == 1:
			docType = types[0]
		}
		files = append(files, services.UploadFile{
			Name:         fh.Filename,
			Size:         fh.Size,
			DocumentType: docType,
			Content:      f,
		})
	}
	return files, closeAll, nil
}
