package handlers

import (
	"net/http"

	"github.com/brasillegalize/agency-server/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TrackerHandler serves the client-facing case tracker
type TrackerHandler struct {
	svc    *services.TrackerService
	logger *zap.SugaredLogger
}

// NewTrackerHandler creates a new tracker handler
func NewTrackerHandler(svc *services.TrackerService, logger *zap.SugaredLogger) *TrackerHandler {
	return &TrackerHandler{svc: svc, logger: logger}
}

type verifyRequest struct {
	Password string `json:"password"`
}

// View handles GET /api/v1/tracker/{token}
func (h *TrackerHandler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.View(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondServiceError(w, h.logger, err, "load tracker")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Verify handles POST /api/v1/tracker/{token}/verify
func (h *TrackerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "password is required", Field: "password"})
		return
	}
	if err := h.svc.VerifyPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		respondServiceError(w, h.logger, err, "verify tracker password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"verified": true})
}
