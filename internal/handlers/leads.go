package handlers

import (
	"net/http"

	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LeadHandler handles the public eligibility form and admin lead triage
type LeadHandler struct {
	svc    *services.LeadService
	logger *zap.SugaredLogger
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(svc *services.LeadService, logger *zap.SugaredLogger) *LeadHandler {
	return &LeadHandler{svc: svc, logger: logger}
}

// Submit handles POST /api/v1/leads
func (h *LeadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.LeadSubmission
	if !decodeJSON(w, r, &req) {
		return
	}

	lead, err := h.svc.Submit(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "submit lead")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                 lead.ID,
		"eligibility_result": lead.EligibilityResult,
		"message":            "Thank you, we will be in touch shortly",
	})
}

// List handles GET /api/v1/admin/leads
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	leads, err := h.svc.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		respondServiceError(w, h.logger, err, "list leads")
		return
	}
	respondJSON(w, http.StatusOK, leads)
}

// Get handles GET /api/v1/admin/leads/{id}
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	lead, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get lead")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// UpdateStatus handles PATCH /api/v1/admin/leads/{id}
func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	var req models.LeadStatusUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	lead, err := h.svc.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update lead")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// Convert handles POST /api/v1/admin/leads/{id}/convert
func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	conv, err := h.svc.Convert(r.Context(), id, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "convert lead")
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func leadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return uuid.Nil, false
	}
	return id, true
}
