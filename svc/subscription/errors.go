package subscription

import (
	"errors"
)

var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrNoCounterRegistered   = errors.New("no service counter registered")
	ErrFailedToCountServices = errors.New("failed to count services")
)

// Validation messages returned to API callers verbatim.
const (
	msgSelectorGet    = "Either userId or organizationId must be provided for getSubscription"
	msgSelectorUpsert = "Either userId or organizationId must be provided for upsertSubscription"
)

// InvalidArgumentError is a client error whose message is shown to the caller
// as is. It matches ErrInvalidArgument with errors.Is.
type InvalidArgumentError struct {
	Message string
}

// NewInvalidArgument returns an *InvalidArgumentError carrying msg.
func NewInvalidArgument(msg string) error {
	return &InvalidArgumentError{Message: msg}
}

func (e *InvalidArgumentError) Error() string { return e.Message }

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// IsInvalidArgument reports whether err is a client validation error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsNotFound reports whether err means no stored subscription matched.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound)
}
