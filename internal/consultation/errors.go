package consultation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a consultation does not exist or is not
	// visible to the requester.
	ErrNotFound = errors.New("consultation not found")

	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidGrant is returned when a reconcile grant was not minted by Create.
	ErrInvalidGrant = errors.New("consultation: invalid reconcile grant")

	// ErrProfileNotFound is returned when a user has no patient or doctor profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// TransitionError reports a rejected status change. Stored state is unchanged.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PersistenceError wraps a storage failure for a named operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("consultation: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
