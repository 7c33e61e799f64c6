// Package main is the entry point for the Brasil Legalize agency server.
// It serves the public site API (eligibility leads, pricing), the client
// portal (case tracker and document uploads) and the admin back office.
//
// Architecture:
//   - PostgreSQL holds leads, clients, applications and document requests
//   - Redis holds admin sessions and rate-limit counters when configured
//   - Uploaded files go to a blob store (local disk or S3)
//   - Email is sent in the background and never blocks a state change
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brasillegalize/agency-server/internal/config"
	"github.com/brasillegalize/agency-server/internal/database"
	"github.com/brasillegalize/agency-server/internal/handlers"
	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/brasillegalize/agency-server/internal/logger"
	"github.com/brasillegalize/agency-server/internal/notify"
	"github.com/brasillegalize/agency-server/internal/ratelimit"
	"github.com/brasillegalize/agency-server/internal/repository"
	"github.com/brasillegalize/agency-server/internal/services"
	"github.com/brasillegalize/agency-server/internal/session"
	"github.com/brasillegalize/agency-server/internal/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	sugar := log.Sugar()

	sugar.Infow("Starting Brasil Legalize agency server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"storage", cfg.StorageBackend,
		"strict_transitions", cfg.StrictTransitions,
	)

	// Initialize database connection pool
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := database.Migrate(context.Background(), db); err != nil {
			sugar.Fatalf("Failed to apply schema: %v", err)
		}
		sugar.Info("Schema applied")
	}

	// Sessions and rate limits live in Redis when configured
	var (
		cache          *redis.Client
		sessions       session.Store
		globalLimiter  ratelimit.Limiter
		leadLimiter    ratelimit.Limiter
		trackerLimiter ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		cache, err = database.NewRedis(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to redis: %v", err)
		}
		defer cache.Close()
		sessions = session.NewRedisStore(cache)
		globalLimiter = ratelimit.NewRedisLimiter(cache, "global", cfg.RateLimitRPM, time.Minute)
		leadLimiter = ratelimit.NewRedisLimiter(cache, "leads", cfg.LeadRateLimitPerMinute, time.Minute)
		trackerLimiter = ratelimit.NewRedisLimiter(cache, "tracker_verify", 5, time.Minute)
	} else {
		sugar.Warn("REDIS_URL not set, sessions and rate limits are kept in process memory")
		sessions = session.NewMemoryStore()
		globalLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPM, time.Minute)
		leadLimiter = ratelimit.NewMemoryLimiter(cfg.LeadRateLimitPerMinute, time.Minute)
		trackerLimiter = ratelimit.NewMemoryLimiter(5, time.Minute)
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		sugar.Fatalf("Failed to initialize file storage: %v", err)
	}

	var mailer notify.Mailer = notify.NewLogMailer(sugar)
	if cfg.SMTPConfigured() {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		sugar.Warn("SMTP not configured, outgoing email is only logged")
	}
	dispatcher := notify.NewDispatcher(mailer, sugar)

	// Repositories
	leadRepo := repository.NewLeadRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	clientRepo := repository.NewClientRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	requestRepo := repository.NewDocumentRequestRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	seqRepo := repository.NewSequenceRepository(db)

	// Initialize services
	clientSvc := services.NewClientService(clientRepo, appRepo, seqRepo, sugar)
	appSvc := services.NewApplicationService(appRepo, clientRepo, seqRepo,
		lifecycle.PolicyFor(cfg.StrictTransitions), dispatcher, cfg.PublicBaseURL, sugar)
	leadSvc := services.NewLeadService(leadRepo, ruleRepo, clientSvc, appSvc, cfg.ConsentVersion, sugar)
	requestSvc := services.NewDocumentRequestService(requestRepo, clientRepo, appRepo, seqRepo,
		blobs, dispatcher, cfg.PublicBaseURL, sugar)
	trackerSvc := services.NewTrackerService(appRepo, sugar)
	pricingSvc := services.NewPricingService(pricingRepo, sugar)
	authSvc := services.NewAuthService(adminRepo, sessions, cfg.JWTSecret, cfg.SessionTTL, sugar)
	dashboardSvc := services.NewDashboardService(leadRepo, clientRepo, appRepo, requestRepo)

	if cfg.AdminEmail != "" {
		if err := authSvc.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			sugar.Fatalf("Failed to create bootstrap admin: %v", err)
		}
	}

	// Build router
	routes := &handlers.Routes{
		Health:       handlers.NewHealthHandler(db, cache, sugar),
		Leads:        handlers.NewLeadHandler(leadSvc, sugar),
		Clients:      handlers.NewClientHandler(clientSvc, requestSvc, sugar),
		Applications: handlers.NewApplicationHandler(appSvc, sugar),
		Documents:    handlers.NewDocumentHandler(requestSvc, cfg.MaxUploadFiles, sugar),
		Tracker:      handlers.NewTrackerHandler(trackerSvc, sugar),
		Pricing:      handlers.NewPricingHandler(pricingSvc, sugar),
		Admin:        handlers.NewAdminHandler(authSvc, dashboardSvc, cfg.IsProduction(), sugar),

		Auth:           authSvc,
		GlobalLimiter:  globalLimiter,
		LeadLimiter:    leadLimiter,
		TrackerLimiter: trackerLimiter,

		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           routes.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Errorw("Forced shutdown", "error", err)
	}
	dispatcher.Wait()

	sugar.Info("Server stopped")
}

func newBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	if cfg.StorageBackend == "s3" {
		client, err := storage.NewS3Client(context.Background(), cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, cfg.S3Bucket), nil
	}
	return storage.NewLocalStore(cfg.UploadDir)
}
