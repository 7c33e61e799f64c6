package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const version = "1.0.0"

var startTime = time.Now()

// Pinger checks a backend connection. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db     Pinger
	cache  *redis.Client
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. cache may be nil when
// sessions and rate limits are kept in memory.
func NewHealthHandler(db Pinger, cache *redis.Client, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// Check handles GET /api/v1/health (liveness)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: "connected",
	}
	code := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warnw("Database ping failed", "error", err)
		status.Database = "disconnected"
		status.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		status.Redis = "connected"
		if err := h.cache.Ping(r.Context()).Err(); err != nil {
			h.logger.Warnw("Redis ping failed", "error", err)
			status.Redis = "disconnected"
			status.Status = "not ready"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, status)
}
