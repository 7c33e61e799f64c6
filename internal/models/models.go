// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema in internal/database/schema.sql.
package models

import (
	"time"

	"github.com/brasillegalize/agency-server/internal/documents"
	"github.com/brasillegalize/agency-server/internal/lifecycle"
	"github.com/google/uuid"
)

// Lead triage statuses
const (
	LeadNew          = "new"
	LeadContacted    = "contacted"
	LeadQualified    = "qualified"
	LeadConverted    = "converted"
	LeadDisqualified = "disqualified"
)

// LeadStatuses lists every triage status a lead may hold.
var LeadStatuses = []string{LeadNew, LeadContacted, LeadQualified, LeadConverted, LeadDisqualified}

// Lead is a prospective contact captured from the eligibility flow or a
// marketing form. Leads are never deleted.
type Lead struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	Country           string            `json:"country,omitempty"`
	ServiceType       string            `json:"service_type,omitempty"`
	Locale            string            `json:"locale"`
	Answers           map[string]string `json:"answers"`
	Consent           bool              `json:"consent"`
	ConsentVersion    string            `json:"consent_version"`
	ConsentAt         time.Time         `json:"consent_at"`
	EligibilityResult string            `json:"eligibility_result"`
	Source            string            `json:"source"`
	Status            string            `json:"status"`
	ClientID          *string           `json:"client_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// LeadSubmission is the public request body for the eligibility form
type LeadSubmission struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Email       string            `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone       string            `json:"phone" validate:"required_without=Email,omitempty,max=32"`
	Country     string            `json:"country" validate:"max=100"`
	ServiceType string            `json:"service_type" validate:"max=100"`
	Consent     *bool             `json:"consent" validate:"required"`
	Answers     map[string]any    `json:"answers" validate:"max=50"`
	Locale      string            `json:"locale"`
	Source      string            `json:"source"`
	// Website is a honeypot: humans never see the field, bots fill it.
	Website string `json:"website"`
}

// LeadStatusUpdate is the admin triage request body
type LeadStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified converted disqualified"`
}

// Client is a converted contact with a permanent identifier.
type Client struct {
	ClientID       string               `json:"client_id"`
	Name           string               `json:"name"`
	Email          string               `json:"email,omitempty"`
	Phone          string               `json:"phone,omitempty"`
	WhatsApp       string               `json:"whatsapp,omitempty"`
	Country        string               `json:"country,omitempty"`
	Locale         string               `json:"locale"`
	ServiceType    string               `json:"service_type,omitempty"`
	Package        string               `json:"package,omitempty"`
	Adults         int                  `json:"adults"`
	Children       int                  `json:"children"`
	TotalPaidCents int64                `json:"total_paid_cents"`
	TotalDueCents  int64                `json:"total_due_cents"`
	Currency       string               `json:"currency"`
	Tags           []string             `json:"tags"`
	Notes          []NoteEntry          `json:"notes"`
	Communications []CommunicationEntry `json:"communications"`
	Payments       []PaymentEntry       `json:"payments"`
	IsHistorical   bool                 `json:"is_historical"`
	Archived       bool                 `json:"archived"`
	ArchivedAt     *time.Time           `json:"archived_at,omitempty"`
	LeadID         *uuid.UUID           `json:"lead_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// ClientInput is the create request body for a client
type ClientInput struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Email         string   `json:"email" validate:"omitempty,email"`
	Phone         string   `json:"phone" validate:"max=32"`
	WhatsApp      string   `json:"whatsapp" validate:"max=32"`
	Country       string   `json:"country" validate:"max=100"`
	Locale        string   `json:"locale"`
	ServiceType   string   `json:"service_type" validate:"max=100"`
	Package       string   `json:"package" validate:"max=100"`
	Adults        int      `json:"adults" validate:"gte=0,lte=50"`
	Children      int      `json:"children" validate:"gte=0,lte=50"`
	TotalDueCents int64    `json:"total_due_cents" validate:"gte=0"`
	Currency      string   `json:"currency" validate:"omitempty,len=3"`
	Tags          []string `json:"tags" validate:"max=30,dive,max=50"`
	IsHistorical  bool     `json:"is_historical"`
}

// ClientPatch carries the fields an admin may change on a client. Nil
// fields are left untouched.
type ClientPatch struct {
	Name          *string   `json:"name" validate:"omitempty,max=200"`
	Email         *string   `json:"email" validate:"omitempty,email"`
	Phone         *string   `json:"phone" validate:"omitempty,max=32"`
	WhatsApp      *string   `json:"whatsapp" validate:"omitempty,max=32"`
	Country       *string   `json:"country" validate:"omitempty,max=100"`
	Locale        *string   `json:"locale"`
	ServiceType   *string   `json:"service_type" validate:"omitempty,max=100"`
	Package       *string   `json:"package" validate:"omitempty,max=100"`
	Adults        *int      `json:"adults" validate:"omitempty,gte=0,lte=50"`
	Children      *int      `json:"children" validate:"omitempty,gte=0,lte=50"`
	TotalDueCents *int64    `json:"total_due_cents" validate:"omitempty,gte=0"`
	Currency      *string   `json:"currency" validate:"omitempty,len=3"`
	Tags          *[]string `json:"tags" validate:"omitempty,max=30,dive,max=50"`
	IsHistorical  *bool     `json:"is_historical"`
}

// ClientFilter narrows a client listing
type ClientFilter struct {
	Search   string
	Archived bool
	Limit    int
	Offset   int
}

// TimelineEvent is one entry of an application's append-only history.
type TimelineEvent struct {
	Status    lifecycle.Status `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	By        string           `json:"by"`
	Note      string           `json:"note,omitempty"`
}

// Application is the tracked unit of service work ("case").
type Application struct {
	ApplicationID string           `json:"application_id"`
	ClientID      *string          `json:"client_id,omitempty"`
	Name          string           `json:"name"`
	Email         string           `json:"email,omitempty"`
	Phone         string           `json:"phone,omitempty"`
	Locale        string           `json:"locale"`
	ServiceType   string           `json:"service_type,omitempty"`
	Package       string           `json:"package,omitempty"`
	Phase         lifecycle.Phase  `json:"phase"`
	Status        lifecycle.Status `json:"status"`
	Timeline      []TimelineEvent  `json:"timeline"`
	Documents     []UploadedFile   `json:"documents"`
	Notes         []NoteEntry      `json:"notes"`
	Payments      []PaymentEntry   `json:"payments"`
	// The portal credentials are never serialized to admin responses in
	// plaintext; HasPortalAccess tells staff whether they were issued.
	PortalToken        *string   `json:"-"`
	PortalPasswordHash *string   `json:"-"`
	HasPortalAccess    bool      `json:"has_portal_access"`
	Archived           bool      `json:"archived"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ApplicationInput is the create request body for an application
type ApplicationInput struct {
	ClientID    *string `json:"client_id"`
	Name        string  `json:"name" validate:"required,max=200"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Phone       string  `json:"phone" validate:"max=32"`
	Locale      string  `json:"locale"`
	ServiceType string  `json:"service_type" validate:"max=100"`
	Package     string  `json:"package" validate:"max=100"`
	Status      string  `json:"status"`
	Note        string  `json:"note" validate:"max=2000"`
}

// ApplicationUpdate is the partial status-update request body. Omitted
// fields are left untouched.
type ApplicationUpdate struct {
	Status      *string          `json:"status"`
	Phase       *int             `json:"phase"`
	Note        string           `json:"note" validate:"max=2000"`
	ServiceType *string          `json:"service_type" validate:"omitempty,max=100"`
	Package     *string          `json:"package" validate:"omitempty,max=100"`
	Locale      *string          `json:"locale"`
	Notes       []NoteInput      `json:"notes" validate:"dive"`
	Payments    []PaymentInput   `json:"payments" validate:"dive"`
	Documents   []DocumentReview `json:"documents" validate:"dive"`
}

// ApplicationFilter narrows an application listing
type ApplicationFilter struct {
	ClientID string
	Status   string
	Phase    int
	Search   string
	Archived bool
	Limit    int
	Offset   int
}

// RequestedDocument is one item staff ask the client to provide
type RequestedDocument struct {
	Type  string `json:"type" validate:"required,max=64"`
	Label string `json:"label" validate:"required,max=200"`
}

// DocumentRequest is a staff-issued ask for specific files.
type DocumentRequest struct {
	RequestID          string                  `json:"request_id"`
	ClientID           string                  `json:"client_id"`
	ApplicationID      *string                 `json:"application_id,omitempty"`
	RequestedDocuments []RequestedDocument     `json:"requested_documents"`
	Message            string                  `json:"message,omitempty"`
	DueDate            *time.Time              `json:"due_date,omitempty"`
	UploadToken        string                  `json:"upload_token"`
	Status             documents.RequestStatus `json:"status"`
	UploadedFiles      []UploadedFile          `json:"uploaded_files"`
	StoragePrefix      string                  `json:"storage_prefix"`
	CreatedBy          string                  `json:"created_by"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
	CompletedAt        *time.Time              `json:"completed_at,omitempty"`
}

// DocumentRequestInput is the create request body for a document request
type DocumentRequestInput struct {
	ClientID           string              `json:"client_id" validate:"required"`
	ApplicationID      *string             `json:"application_id"`
	RequestedDocuments []RequestedDocument `json:"requested_documents" validate:"required,min=1,max=30,dive"`
	Message            string              `json:"message" validate:"max=4000"`
	DueDate            *time.Time          `json:"due_date"`
}

// PricingPackage is a sellable service package. Name and Description are
// resolved for one locale when read.
type PricingPackage struct {
	ID          int       `json:"id"`
	Slug        string    `json:"slug"`
	ServiceType string    `json:"service_type"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	SortOrder   int       `json:"sort_order"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PricingPatch updates a package. Name/Description apply to Locale.
type PricingPatch struct {
	Locale      string  `json:"locale"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	Currency    *string `json:"currency" validate:"omitempty,len=3"`
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Active      *bool   `json:"active"`
	SortOrder   *int    `json:"sort_order"`
}

// AdminUser is a staff account for the back office.
type AdminUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the admin login body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Dashboard aggregates counters for the admin home page
type Dashboard struct {
	LeadsByStatus        map[string]int `json:"leads_by_status"`
	ApplicationsByPhase  map[int]int    `json:"applications_by_phase"`
	OpenDocumentRequests int            `json:"open_document_requests"`
	ActiveClients        int            `json:"active_clients"`
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
}
