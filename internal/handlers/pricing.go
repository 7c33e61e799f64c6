package handlers

import (
	"net/http"
	"strconv"

	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PricingHandler handles service package endpoints
type PricingHandler struct {
	svc    *services.PricingService
	logger *zap.SugaredLogger
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(svc *services.PricingService, logger *zap.SugaredLogger) *PricingHandler {
	return &PricingHandler{svc: svc, logger: logger}
}

// Public handles GET /api/v1/pricing?locale=
func (h *PricingHandler) Public(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// Admin handles GET /api/v1/admin/pricing?locale=
func (h *PricingHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *PricingHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	packages, err := h.svc.List(r.Context(), r.URL.Query().Get("locale"), activeOnly)
	if err != nil {
		respondServiceError(w, h.logger, err, "list pricing")
		return
	}
	respondJSON(w, http.StatusOK, packages)
}

// Update handles PATCH /api/v1/admin/pricing/{id}
func (h *PricingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	var req models.PricingPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	pkg, err := h.svc.Update(r.Context(), id, &req, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "update pricing")
		return
	}
	respondJSON(w, http.StatusOK, pkg)
}
