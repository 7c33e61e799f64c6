// Package documents holds the rules for document requests and uploaded files:
// request status progression, upload validation and storage key layout.
package documents

import "errors"

// RequestStatus is the completion state of a document request.
type RequestStatus string

const (
	StatusPending            RequestStatus = "pending"
	StatusPartiallyCompleted RequestStatus = "partially_completed"
	StatusCompleted          RequestStatus = "completed"
)

var (
	// ErrRequestClosed is returned when uploading against a completed request.
	ErrRequestClosed = errors.New("document request already completed")
	// ErrAlreadyCompleted is returned when completing a completed request.
	ErrAlreadyCompleted = errors.New("document request already completed")
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPartiallyCompleted, StatusCompleted:
		return true
	}
	return false
}

// AfterUpload returns the status a request moves to once a file is accepted.
// Uploads never complete a request on their own.
func AfterUpload(s RequestStatus) (RequestStatus, error) {
	switch s {
	case StatusPending:
		return StatusPartiallyCompleted, nil
	case StatusPartiallyCompleted:
		return s, nil
	}
	return s, ErrRequestClosed
}

// Complete is the explicit staff action closing a request.
func Complete(s RequestStatus) (RequestStatus, error) {
	if s == StatusCompleted {
		return s, ErrAlreadyCompleted
	}
	return StatusCompleted, nil
}
