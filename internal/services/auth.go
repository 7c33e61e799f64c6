package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/repository"
	"github.com/brasillegalize/agency-server/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps login timing the same whether or not the email exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// sessionClaims is the admin cookie payload; sid points into the session store.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AuthService handles admin login and session cookies
type AuthService struct {
	admins   AdminStore
	sessions session.Store
	secret   []byte
	ttl      time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(admins AdminStore, sessions session.Store, secret string, ttl time.Duration, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{
		admins:   admins,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// TTL is how long a new session lasts.
func (s *AuthService) TTL() time.Duration {
	return s.ttl
}

// Login checks the credentials, stores a session and returns the signed
// cookie value.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (string, *session.Session, error) {
	if err := validateInput(req); err != nil {
		return "", nil, err
	}

	admin, err := s.admins.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", nil, fmt.Errorf("login: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return "", nil, fmt.Errorf("login: %w", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Infow("Admin login rejected", "email", admin.Email)
		return "", nil, fmt.Errorf("login: %w", ErrUnauthorized)
	}

	now := s.now()
	sess := &session.Session{
		ID:        uuid.NewString(),
		AdminID:   admin.ID.String(),
		Email:     admin.Email,
		Name:      admin.Name,
		Role:      admin.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Set(ctx, sess, s.ttl); err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	token, err := s.sign(sess)
	if err != nil {
		return "", nil, err
	}
	s.logger.Infow("Admin logged in", "email", admin.Email)
	return token, sess, nil
}

func (s *AuthService) sign(sess *session.Session) (string, error) {
	claims := sessionClaims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.AdminID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (s *AuthService) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return nil, fmt.Errorf("parse session cookie: %w", ErrUnauthorized)
	}
	return claims, nil
}

// Authenticate resolves a cookie value to a live session. A validly signed
// cookie whose session was deleted is rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("authenticate: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return sess, nil
}

// Logout deletes the session behind a cookie. Unknown cookies are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account if the email is unused.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	created, err := s.admins.CreateIfMissing(ctx, &models.AdminUser{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         "Administrator",
		Role:         "admin",
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return err
	}
	if created {
		s.logger.Infow("Bootstrap admin created", "email", email)
	}
	return nil
}
