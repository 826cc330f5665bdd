// README: Trip engine error taxonomy (sentinels plus typed carriers for errors.As).
package trip

import (
	"errors"
	"fmt"

	"busops/internal/types"
)

var (
	ErrNotFound          = errors.New("trip not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrValidation        = errors.New("validation failed")
	ErrPersistence       = errors.New("trip store failure")
)

// TransitionError reports a move that is not in the transition table, or
// one whose expected prior status was changed by a concurrent writer.
type TransitionError struct {
	TripID types.ID
	From   Status
	To     Status
	Lost   bool
}

func (e *TransitionError) Error() string {
	if e.Lost {
		return fmt.Sprintf("trip %s: %s -> %s lost to a concurrent update", e.TripID, e.From, e.To)
	}
	return fmt.Sprintf("trip %s: cannot move from %s to %s", e.TripID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// persistErr wraps raw store errors. Engine errors pass through untouched.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
