package handlers

import (
	"net/http"
	"time"

	"github.com/brasillegalize/agency-server/internal/middleware"
	"github.com/brasillegalize/agency-server/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Routes wires handlers, limiters and the session guard into one router.
type Routes struct {
	Health       *HealthHandler
	Leads        *LeadHandler
	Clients      *ClientHandler
	Applications *ApplicationHandler
	Documents    *DocumentHandler
	Tracker      *TrackerHandler
	Pricing      *PricingHandler
	Admin        *AdminHandler

	Auth           middleware.Authenticator
	GlobalLimiter  ratelimit.Limiter
	LeadLimiter    ratelimit.Limiter
	TrackerLimiter ratelimit.Limiter

	AllowedOrigins []string
	Logger         *zap.Logger
}

// Handler builds the chi router for the whole API.
func (rt *Routes) Handler() http.Handler {
	sugar := rt.Logger.Sugar()
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(rt.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(rt.GlobalLimiter, sugar))

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", rt.Health.Check)
		r.Get("/health/ready", rt.Health.Ready)

		// Public site
		r.With(middleware.RateLimit(rt.LeadLimiter, sugar)).Post("/leads", rt.Leads.Submit)
		r.Get("/pricing", rt.Pricing.Public)

		// Client portal (token holders)
		r.Get("/tracker/{token}", rt.Tracker.View)
		r.With(middleware.RateLimit(rt.TrackerLimiter, sugar)).Post("/tracker/{token}/verify", rt.Tracker.Verify)
		r.Get("/upload/{token}", rt.Documents.Describe)
		r.Post("/upload/{token}", rt.Documents.Upload)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", rt.Admin.Login)
			r.Post("/logout", rt.Admin.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(rt.Auth))
				r.Use(chimw.Timeout(30 * time.Second))

				r.Get("/me", rt.Admin.Me)
				r.Get("/dashboard", rt.Admin.Dashboard)

				r.Route("/leads", func(r chi.Router) {
					r.Get("/", rt.Leads.List)
					r.Get("/{id}", rt.Leads.Get)
					r.Patch("/{id}", rt.Leads.UpdateStatus)
					r.Post("/{id}/convert", rt.Leads.Convert)
				})

				r.Route("/clients", func(r chi.Router) {
					r.Get("/", rt.Clients.List)
					r.Post("/", rt.Clients.Create)
					r.Get("/{clientId}", rt.Clients.Get)
					r.Patch("/{clientId}", rt.Clients.Update)
					r.Delete("/{clientId}", rt.Clients.Archive)
					r.Post("/{clientId}/notes", rt.Clients.AddNote)
					r.Post("/{clientId}/communications", rt.Clients.AddCommunication)
					r.Post("/{clientId}/payments", rt.Clients.AddPayment)
					r.Get("/{clientId}/applications", rt.Clients.Applications)
					r.Get("/{clientId}/document-requests", rt.Clients.DocumentRequests)
				})

				r.Route("/applications", func(r chi.Router) {
					r.Get("/", rt.Applications.List)
					r.Post("/", rt.Applications.Create)
					r.Get("/{applicationId}", rt.Applications.Get)
					r.Patch("/{applicationId}", rt.Applications.Update)
					r.Delete("/{applicationId}", rt.Applications.Archive)
					r.Get("/{applicationId}/documents/{storedFilename}", rt.Documents.ApplicationFile)
				})

				r.Route("/document-requests", func(r chi.Router) {
					r.Post("/", rt.Documents.Create)
					r.Get("/{requestId}", rt.Documents.Get)
					r.Post("/{requestId}/complete", rt.Documents.Complete)
					r.Get("/{requestId}/files/{storedFilename}", rt.Documents.RequestFile)
				})

				r.Route("/pricing", func(r chi.Router) {
					r.Get("/", rt.Pricing.Admin)
					r.Patch("/{id}", rt.Pricing.Update)
				})
			})
		})
	})

	return r
}
