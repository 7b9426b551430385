package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrConflictingTransition = errors.New("conflicting transition")
	ErrEmptyTable            = errors.New("transition table is empty")
)

// NoTransitionError reports an event fired from a state that has no edge for it.
type NoTransitionError struct {
	From  string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition from state %q on event %q", e.From, e.Event)
}

// IsNoTransition reports whether err is a *NoTransitionError.
func IsNoTransition(err error) bool {
	var e *NoTransitionError
	return errors.As(err, &e)
}
