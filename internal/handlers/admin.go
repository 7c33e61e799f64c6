package handlers

import (
	"net/http"

	"github.com/brasillegalize/agency-server/internal/middleware"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/services"
	"go.uber.org/zap"
)

// AdminHandler handles admin login, logout and the dashboard
type AdminHandler struct {
	auth         *services.AuthService
	dashboard    *services.DashboardService
	secureCookie bool
	logger       *zap.SugaredLogger
}

// NewAdminHandler creates a new admin handler. secureCookie marks the
// session cookie HTTPS-only.
func NewAdminHandler(auth *services.AuthService, dashboard *services.DashboardService, secureCookie bool, logger *zap.SugaredLogger) *AdminHandler {
	return &AdminHandler{auth: auth, dashboard: dashboard, secureCookie: secureCookie, logger: logger}
}

// Login handles POST /api/v1/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, sess, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "log in")
		return
	}

	http.SetCookie(w, h.cookie(token, int(h.auth.TTL().Seconds())))
	respondJSON(w, http.StatusOK, sess)
}

// Logout handles POST /api/v1/admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.SessionCookie); err == nil && c.Value != "" {
		if err := h.auth.Logout(r.Context(), c.Value); err != nil {
			respondServiceError(w, h.logger, err, "log out")
			return
		}
	}
	http.SetCookie(w, h.cookie("", -1))
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /api/v1/admin/me
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, middleware.SessionFrom(r.Context()))
}

// Dashboard handles GET /api/v1/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Summary(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "load dashboard")
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
