// Package lifecycle defines the application (case) statuses, the phase each
// status belongs to, and the derived progress shown on the client tracker.
package lifecycle

import (
	"errors"
	"fmt"
	"math"
)

// Status is the source of truth for where an application is in the pipeline.
type Status string

const (
	StatusNew              Status = "new"
	StatusContacted        Status = "contacted"
	StatusMeetingScheduled Status = "meeting_scheduled"
	StatusMeetingCompleted Status = "meeting_completed"

	StatusProposalSent    Status = "proposal_sent"
	StatusNegotiating     Status = "negotiating"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaymentReceived Status = "payment_received"

	StatusOnboarding           Status = "onboarding"
	StatusDocumentsPending     Status = "documents_pending"
	StatusDocumentsReview      Status = "documents_review"
	StatusApplicationSubmitted Status = "application_submitted"

	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
)

// Phase groups statuses into four coarse stages.
type Phase int

const (
	PhaseLead       Phase = 1
	PhasePotential  Phase = 2
	PhaseActive     Phase = 3
	PhaseCompletion Phase = 4
)

// ErrUnknownStatus is returned when a status string is not one of the 16 defined statuses.
var ErrUnknownStatus = errors.New("unknown status")

// ErrTransitionNotAllowed is returned by a policy that refuses a move.
var ErrTransitionNotAllowed = errors.New("status transition not allowed")

var phaseNames = map[Phase]string{
	PhaseLead:       "Lead",
	PhasePotential:  "Potential",
	PhaseActive:     "Active",
	PhaseCompletion: "Completion",
}

// ordered is the flattened pipeline, phase by phase.
var ordered = []Status{
	StatusNew, StatusContacted, StatusMeetingScheduled, StatusMeetingCompleted,
	StatusProposalSent, StatusNegotiating, StatusAwaitingPayment, StatusPaymentReceived,
	StatusOnboarding, StatusDocumentsPending, StatusDocumentsReview, StatusApplicationSubmitted,
	StatusProcessing, StatusApproved, StatusFinalizing, StatusCompleted,
}

var phaseOf = map[Status]Phase{
	StatusNew:              PhaseLead,
	StatusContacted:        PhaseLead,
	StatusMeetingScheduled: PhaseLead,
	StatusMeetingCompleted: PhaseLead,

	StatusProposalSent:    PhasePotential,
	StatusNegotiating:     PhasePotential,
	StatusAwaitingPayment: PhasePotential,
	StatusPaymentReceived: PhasePotential,

	StatusOnboarding:           PhaseActive,
	StatusDocumentsPending:     PhaseActive,
	StatusDocumentsReview:      PhaseActive,
	StatusApplicationSubmitted: PhaseActive,

	StatusProcessing: PhaseCompletion,
	StatusApproved:   PhaseCompletion,
	StatusFinalizing: PhaseCompletion,
	StatusCompleted:  PhaseCompletion,
}

var indexOf = func() map[Status]int {
	m := make(map[Status]int, len(ordered))
	for i, s := range ordered {
		m[s] = i
	}
	return m
}()

// Statuses returns the 16 statuses in pipeline order.
func Statuses() []Status {
	out := make([]Status, len(ordered))
	copy(out, ordered)
	return out
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := phaseOf[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	_, ok := phaseOf[s]
	return ok
}

// DerivePhase looks up the phase a status belongs to.
func DerivePhase(s Status) (Phase, error) {
	p, ok := phaseOf[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return p, nil
}

// Valid reports whether p is one of the four phases.
func (p Phase) Valid() bool {
	return p >= PhaseLead && p <= PhaseCompletion
}

// Name returns the display name of the phase.
func (p Phase) Name() string {
	return phaseNames[p]
}

// Index returns the zero-based position of s in the pipeline, or -1.
func Index(s Status) int {
	i, ok := indexOf[s]
	if !ok {
		return -1
	}
	return i
}

// Progress returns round((index+1)/16*100). Unknown statuses report 0.
func Progress(s Status) int {
	i := Index(s)
	if i < 0 {
		return 0
	}
	return int(math.Round(float64(i+1) / float64(len(ordered)) * 100))
}

// Info is the tracker-facing description of a status.
type Info struct {
	Status    Status `json:"status"`
	Phase     Phase  `json:"phase"`
	PhaseName string `json:"phase_name"`
	Step      int    `json:"step"`
	Steps     int    `json:"steps"`
	Progress  int    `json:"progress"`
}

// Describe builds the Info for a status.
func Describe(s Status) (Info, error) {
	p, err := DerivePhase(s)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Status:    s,
		Phase:     p,
		PhaseName: p.Name(),
		Step:      Index(s) + 1,
		Steps:     len(ordered),
		Progress:  Progress(s),
	}, nil
}
