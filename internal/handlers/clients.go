package handlers

import (
	"net/http"

	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ClientHandler handles admin client endpoints
type ClientHandler struct {
	clients  *services.ClientService
	requests *services.DocumentRequestService
	logger   *zap.SugaredLogger
}

// NewClientHandler creates a new client handler
func NewClientHandler(clients *services.ClientService, requests *services.DocumentRequestService, logger *zap.SugaredLogger) *ClientHandler {
	return &ClientHandler{clients: clients, requests: requests, logger: logger}
}

// List handles GET /api/v1/admin/clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	clients, err := h.clients.List(r.Context(), models.ClientFilter{
		Search:   r.URL.Query().Get("search"),
		Archived: queryBool(r, "archived"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "list clients")
		return
	}
	respondJSON(w, http.StatusOK, clients)
}

// Create handles POST /api/v1/admin/clients
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ClientInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.clients.Create(r.Context(), &req, nil)
	if err != nil {
		respondServiceError(w, h.logger, err, "create client")
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// Get handles GET /api/v1/admin/clients/{clientId}
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.Get(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "get client")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Update handles PATCH /api/v1/admin/clients/{clientId}
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.ClientPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.clients.Update(r.Context(), chi.URLParam(r, "clientId"), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update client")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Archive handles DELETE /api/v1/admin/clients/{clientId}
func (h *ClientHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Archive(r.Context(), chi.URLParam(r, "clientId"), actor(r)); err != nil {
		respondServiceError(w, h.logger, err, "archive client")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// AddNote handles POST /api/v1/admin/clients/{clientId}/notes
func (h *ClientHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req models.NoteInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.clients.AddNote(r.Context(), chi.URLParam(r, "clientId"), &req, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "add note")
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// AddCommunication handles POST /api/v1/admin/clients/{clientId}/communications
func (h *ClientHandler) AddCommunication(w http.ResponseWriter, r *http.Request) {
	var req models.CommunicationInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.clients.AddCommunication(r.Context(), chi.URLParam(r, "clientId"), &req, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "add communication")
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// AddPayment handles POST /api/v1/admin/clients/{clientId}/payments
func (h *ClientHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.clients.AddPayment(r.Context(), chi.URLParam(r, "clientId"), &req, actor(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "add payment")
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// Applications handles GET /api/v1/admin/clients/{clientId}/applications
func (h *ClientHandler) Applications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.clients.Applications(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list client applications")
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

// DocumentRequests handles GET /api/v1/admin/clients/{clientId}/document-requests
func (h *ClientHandler) DocumentRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListByClient(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list document requests")
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}
