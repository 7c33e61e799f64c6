package handlers

import (
	"net/http"
	"strconv"

	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ApplicationHandler handles admin application (case) endpoints
type ApplicationHandler struct {
	svc    *services.ApplicationService
	logger *zap.SugaredLogger
}

// NewApplicationHandler creates a new application handler
func NewApplicationHandler(svc *services.ApplicationService, logger *zap.SugaredLogger) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/admin/applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := paging(r)
	f := models.ApplicationFilter{
		ClientID: q.Get("client_id"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Archived: queryBool(r, "archived"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := q.Get("phase"); raw != "" {
		phase, err := strconv.Atoi(raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "phase must be a number", Field: "phase"})
			return
		}
		f.Phase = phase
	}

	apps, err := h.svc.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, h.logger, err, "list applications")
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

// Create handles POST /api/v1/admin/applications
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ApplicationInput
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.svc.Create(r.Context(), &req, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "create application")
		return
	}
	respondJSON(w, http.StatusCreated, app)
}

// Get handles GET /api/v1/admin/applications/{applicationId}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.Get(r.Context(), chi.URLParam(r, "applicationId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "get application")
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// Update handles PATCH /api/v1/admin/applications/{applicationId}.
// Status changes derive the phase and may issue portal credentials.
func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.ApplicationUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.svc.Update(r.Context(), chi.URLParam(r, "applicationId"), &req, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "update application")
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// Archive handles DELETE /api/v1/admin/applications/{applicationId}
func (h *ApplicationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Archive(r.Context(), chi.URLParam(r, "applicationId"), actor(r)); err != nil {
		respondServiceError(w, h.logger, err, "archive application")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}
