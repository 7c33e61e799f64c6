// Package services contains business logic layers.
// Services are called by handlers and reach the database through the
// store interfaces declared here.
package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/brasillegalize/agency-server/internal/documents"
	"github.com/brasillegalize/agency-server/internal/eligibility"
	"github.com/brasillegalize/agency-server/internal/ids"
	"github.com/brasillegalize/agency-server/internal/models"
	"github.com/brasillegalize/agency-server/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("too many requests")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError is a client input problem tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, not Go ones.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}()

// validateInput runs struct validation and converts the first failure into
// a ValidationError.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fieldPath(fe), Message: describeTag(fe)}
}

// fieldPath drops the root struct name from the namespace, e.g.
// "LeadSubmission.email" becomes "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + strings.ToLower(fe.Param()) + " is missing"
	case "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "gt", "gte", "lt", "lte":
		return "is out of range"
	}
	return "is invalid"
}

// storeErr maps persistence errors onto the service sentinels.
func storeErr(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w: %w", what, ErrConflict, err)
	case errors.Is(err, documents.ErrRequestClosed), errors.Is(err, documents.ErrAlreadyCompleted):
		return fmt.Errorf("%s: %w: %w", what, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Sequencer allocates per-scope counters.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}

func allocateID(ctx context.Context, seq Sequencer, kind ids.Kind, now time.Time) (string, error) {
	scope := ids.Scope(kind, now)
	n, err := seq.Next(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("allocate id: %w", err)
	}
	return ids.Format(kind, scope, n), nil
}

// LeadStore persists leads.
type LeadStore interface {
	Create(ctx context.Context, l *models.Lead) error
	Get(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Lead, error)
	Convert(ctx context.Context, id uuid.UUID, build repository.ConvertFunc) (*models.Lead, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// RuleSource returns the configured eligibility rules.
type RuleSource interface {
	Active(ctx context.Context) ([]eligibility.Rule, error)
}

// ClientStore persists clients.
type ClientStore interface {
	Create(ctx context.Context, c *models.Client) error
	Get(ctx context.Context, clientID string) (*models.Client, error)
	List(ctx context.Context, f models.ClientFilter) ([]models.Client, error)
	Update(ctx context.Context, clientID string, p models.ClientPatch) (*models.Client, error)
	Archive(ctx context.Context, clientID string) error
	AppendNote(ctx context.Context, clientID string, n models.NoteEntry) (*models.Client, error)
	AppendCommunication(ctx context.Context, clientID string, e models.CommunicationEntry) (*models.Client, error)
	AppendPayment(ctx context.Context, clientID string, p models.PaymentEntry) (*models.Client, error)
	CountActive(ctx context.Context) (int, error)
}

// ApplicationStore persists applications.
type ApplicationStore interface {
	Create(ctx context.Context, a *models.Application) error
	Get(ctx context.Context, applicationID string) (*models.Application, error)
	GetByToken(ctx context.Context, token string) (*models.Application, error)
	List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error)
	ListForClient(ctx context.Context, clientID, email string) ([]models.Application, error)
	ApplyUpdate(ctx context.Context, applicationID string, c repository.ApplicationChange) (*models.Application, error)
	IssuePortalCredentials(ctx context.Context, applicationID, token, passwordHash string) (bool, error)
	AppendDocuments(ctx context.Context, applicationID string, files []models.UploadedFile) error
	Archive(ctx context.Context, applicationID string) error
	CountByPhase(ctx context.Context) (map[int]int, error)
}

// DocumentRequestStore persists document requests.
type DocumentRequestStore interface {
	Create(ctx context.Context, d *models.DocumentRequest) error
	Get(ctx context.Context, requestID string) (*models.DocumentRequest, error)
	GetByToken(ctx context.Context, token string) (*models.DocumentRequest, error)
	ListByClient(ctx context.Context, clientID string) ([]models.DocumentRequest, error)
	AppendFiles(ctx context.Context, requestID string, files []models.UploadedFile) (documents.RequestStatus, error)
	Complete(ctx context.Context, requestID string) (*models.DocumentRequest, error)
	CountOpen(ctx context.Context) (int, error)
}

// PricingStore persists service packages.
type PricingStore interface {
	List(ctx context.Context, loc string, activeOnly bool) ([]models.PricingPackage, error)
	Update(ctx context.Context, id int, p models.PricingPatch) (*models.PricingPackage, error)
}

// AdminStore reads staff accounts.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	CreateIfMissing(ctx context.Context, a *models.AdminUser) (bool, error)
}

// Notifier queues templated email without waiting for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, template, loc, to string, data any)
}
