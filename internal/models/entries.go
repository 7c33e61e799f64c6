package models

import "time"

// Entry kinds. Every logged entry carries one so that stored JSON can be
// told apart without inspecting its fields.
const (
	KindNote          = "note"
	KindCommunication = "communication"
	KindPayment       = "payment"
	KindUploadedFile  = "uploaded_file"
)

// Uploaded file review statuses
const (
	FilePending  = "pending"
	FileApproved = "approved"
	FileRejected = "rejected"
)

// NoteEntry is a free-text staff note.
type NoteEntry struct {
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteInput is the request body for adding a note
type NoteInput struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// CommunicationEntry records a contact with the client.
type CommunicationEntry struct {
	Kind       string    `json:"kind"`
	Channel    string    `json:"channel"`
	Direction  string    `json:"direction"`
	Summary    string    `json:"summary"`
	Author     string    `json:"author"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommunicationInput is the request body for logging a communication
type CommunicationInput struct {
	Channel    string     `json:"channel" validate:"required,oneof=email phone whatsapp meeting video_call other"`
	Direction  string     `json:"direction" validate:"required,oneof=inbound outbound"`
	Summary    string     `json:"summary" validate:"required,max=4000"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// PaymentEntry records money received from the client.
type PaymentEntry struct {
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
	Author      string    `json:"author"`
	PaidAt      time.Time `json:"paid_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentInput is the request body for recording a payment
type PaymentInput struct {
	AmountCents int64      `json:"amount_cents" validate:"required,gt=0"`
	Currency    string     `json:"currency" validate:"required,len=3"`
	Method      string     `json:"method" validate:"required,oneof=pix bank_transfer card cash wise paypal other"`
	Reference   string     `json:"reference" validate:"max=200"`
	PaidAt      *time.Time `json:"paid_at"`
}

// UploadedFile describes one stored file attached to an application or a
// document request.
type UploadedFile struct {
	Kind            string    `json:"kind"`
	Name            string    `json:"name"`
	StoredFilename  string    `json:"stored_filename"`
	ObjectKey       string    `json:"object_key"`
	MimeType        string    `json:"mime_type"`
	Size            int64     `json:"size"`
	DocumentType    string    `json:"document_type"`
	Status          string    `json:"status"`
	UploadedAt      time.Time `json:"uploaded_at"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
}

// DocumentReview approves or rejects one of an application's documents.
type DocumentReview struct {
	StoredFilename  string `json:"stored_filename" validate:"required"`
	Status          string `json:"status" validate:"required,oneof=pending approved rejected"`
	RejectionReason string `json:"rejection_reason" validate:"required_if=Status rejected,max=1000"`
}

// NewNote builds a NoteEntry stamped with author and time.
func NewNote(in NoteInput, author string, now time.Time) NoteEntry {
	return NoteEntry{Kind: KindNote, Text: in.Text, Author: author, CreatedAt: now}
}

// NewCommunication builds a CommunicationEntry; OccurredAt defaults to now.
func NewCommunication(in CommunicationInput, author string, now time.Time) CommunicationEntry {
	occurred := now
	if in.OccurredAt != nil {
		occurred = *in.OccurredAt
	}
	return CommunicationEntry{
		Kind:       KindCommunication,
		Channel:    in.Channel,
		Direction:  in.Direction,
		Summary:    in.Summary,
		Author:     author,
		OccurredAt: occurred,
		CreatedAt:  now,
	}
}

// NewPayment builds a PaymentEntry; PaidAt defaults to now.
func NewPayment(in PaymentInput, author string, now time.Time) PaymentEntry {
	paid := now
	if in.PaidAt != nil {
		paid = *in.PaidAt
	}
	return PaymentEntry{
		Kind:        KindPayment,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		Method:      in.Method,
		Reference:   in.Reference,
		Author:      author,
		PaidAt:      paid,
		CreatedAt:   now,
	}
}
