// Package handlers contains HTTP request handlers for the agency API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/brasillegalize/agency-server/internal/documents"
	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/brasillegalize/agency-server/internal/middleware"
	"github.com/brasillegalize/agency-server/internal/services"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondServiceError maps service errors onto status codes. Anything
// unrecognized is logged and reported as a generic 500.
func respondServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, err error, action string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: ve.Field + " " + ve.Message, Field: ve.Field})
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusConflict, conflictMessage(err))
	case errors.Is(err, services.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "Too many requests")
	default:
		logger.Errorw("Failed to "+action, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, documents.ErrRequestClosed), errors.Is(err, documents.ErrAlreadyCompleted):
		return "Document request is already completed"
	case errors.Is(err, lifecycle.ErrTransitionNotAllowed):
		return "Status transition not allowed"
	}
	return "Request conflicts with the current state"
}

// decodeJSON reads a JSON body into dst, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// actor names the signed-in admin for audit fields.
func actor(r *http.Request) string {
	if sess := middleware.SessionFrom(r.Context()); sess != nil {
		return sess.Email
	}
	return "system"
}

// paging reads limit and offset query parameters. Bad values are ignored.
func paging(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
