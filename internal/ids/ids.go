// Package ids formats the human-readable sequential identifiers given to
// clients, applications and document requests.
package ids

import (
	"fmt"
	"time"
)

// Kind selects the prefix and the period a sequence restarts on.
type Kind int

const (
	Client Kind = iota
	Application
	DocumentRequest
)

// Scope returns the counter scope for kind at t, e.g. "CLT-2026" or "APP-202601".
// Each scope has its own sequence starting at 1.
func Scope(kind Kind, t time.Time) string {
	t = t.UTC()
	switch kind {
	case Client:
		return fmt.Sprintf("CLT-%04d", t.Year())
	case Application:
		return fmt.Sprintf("APP-%04d%02d", t.Year(), int(t.Month()))
	case DocumentRequest:
		return fmt.Sprintf("REQ-%04d%02d", t.Year(), int(t.Month()))
	}
	panic(fmt.Sprintf("ids: unknown kind %d", kind))
}

// Format renders the identifier for sequence number n within scope.
// Client ids pad to five digits, the monthly ids to four.
func Format(kind Kind, scope string, n int64) string {
	if kind == Client {
		return fmt.Sprintf("%s-%05d", scope, n)
	}
	return fmt.Sprintf("%s-%04d", scope, n)
}
