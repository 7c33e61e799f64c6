// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	Port          int
	Environment   string // "development" | "staging" | "production"
	PublicBaseURL string // used to build tracker and upload links in emails

	// Database
	DatabaseURL   string
	RunMigrations bool

	// Security
	JWTSecret              string
	SessionTTL             time.Duration
	AllowedOrigins         []string
	RateLimitRPM           int
	LeadRateLimitPerMinute int

	// First admin account, created on boot when the email is unknown
	AdminEmail    string
	AdminPassword string

	// Redis (sessions & rate limiting). Empty means in-memory backends.
	RedisURL string

	// Mail
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	// File storage
	StorageBackend string // "local" | "s3"
	UploadDir      string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	MaxUploadFiles int

	// Lifecycle
	StrictTransitions bool
	ConsentVersion    string

	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvInt("PORT", 8080),
		Environment:   getEnv("ENVIRONMENT", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", false),

		JWTSecret:              getEnv("JWT_SECRET", defaultJWTSecret),
		SessionTTL:             time.Duration(getEnvInt("SESSION_TTL_HOURS", 12)) * time.Hour,
		AllowedOrigins:         strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:           getEnvInt("RATE_LIMIT_RPM", 120),
		LeadRateLimitPerMinute: getEnvInt("LEAD_RATE_LIMIT_PER_MINUTE", 10),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		MailFrom: getEnv("MAIL_FROM", "Brasil Legalize <no-reply@brasillegalize.com>"),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		MaxUploadFiles: getEnvInt("MAX_UPLOAD_FILES", 10),

		StrictTransitions: getEnvBool("STRICT_TRANSITIONS", false),
		ConsentVersion:    getEnv("CONSENT_VERSION", "2026-01"),

		LogLevel: getEnv("LOG_LEVEL", ""),
	}

	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}

	for _, limit := range []struct {
		name  string
		value int
	}{
		{"RATE_LIMIT_RPM", cfg.RateLimitRPM},
		{"LEAD_RATE_LIMIT_PER_MINUTE", cfg.LeadRateLimitPerMinute},
		{"MAX_UPLOAD_FILES", cfg.MaxUploadFiles},
	} {
		if limit.value < 1 {
			return nil, fmt.Errorf("%s must be at least 1, got %d", limit.name, limit.value)
		}
	}
	if cfg.SessionTTL < time.Hour {
		return nil, fmt.Errorf("SESSION_TTL_HOURS must be at least 1")
	}

	if cfg.AdminEmail != "" && len(cfg.AdminPassword) < 12 {
		return nil, fmt.Errorf("ADMIN_PASSWORD must be at least 12 characters when ADMIN_EMAIL is set")
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// SMTPConfigured reports whether outbound mail can be delivered over SMTP.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}

// IsProduction reports whether secure cookies and production logging apply.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
