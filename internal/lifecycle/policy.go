package lifecycle

import "fmt"

// TransitionPolicy decides whether staff may move an application from one
// status to another.
type TransitionPolicy interface {
	Allow(from, to Status) error
}

// Permissive lets staff set any status at any time. This is the default:
// staff use it to correct mistakes and to re-open cases.
type Permissive struct{}

func (Permissive) Allow(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	return nil
}

// ForwardOnly refuses moves to an earlier point in the pipeline.
type ForwardOnly struct{}

func (ForwardOnly) Allow(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if Index(to) < Index(from) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	return nil
}

// PolicyFor returns ForwardOnly when strict is set, Permissive otherwise.
func PolicyFor(strict bool) TransitionPolicy {
	if strict {
		return ForwardOnly{}
	}
	return Permissive{}
}
