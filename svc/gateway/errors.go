package gateway

import (
	"context"
	"errors"
	"net"

	"github.com/stripe/stripe-go/v82"
)

var (
	ErrNotConfigured       = errors.New("stripe is not configured")
	ErrTransient           = errors.New("transient payment provider failure")
	ErrRemote              = errors.New("payment provider error")
	ErrRemoteNotFound      = errors.New("payment provider resource not found")
	ErrCustomerNotFound    = errors.New("stripe customer not found")
	ErrNoCustomer          = errors.New("no stripe customer for selector")
	ErrNoSubscriptionItems = errors.New("remote subscription has no items")
	ErrNoPriceForPlan      = errors.New("no stripe price configured for plan")
	ErrInvalidQuantity     = errors.New("usage quantity must be a non-negative number")
)

// IsTransient reports whether err may succeed when retried later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound reports whether the remote side does not know the resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRemoteNotFound) || errors.Is(err, ErrCustomerNotFound)
}

// classify wraps a raw remote error with the gateway sentinel it belongs to.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRemoteNotFound) || errors.Is(err, ErrTransient) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTransient, err)
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == stripe.ErrorCodeResourceMissing:
			return errors.Join(ErrRemoteNotFound, err)
		case se.HTTPStatusCode == 429, se.HTTPStatusCode >= 500:
			return errors.Join(ErrTransient, err)
		}
		return errors.Join(ErrRemote, err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return errors.Join(ErrTransient, err)
	}
	return errors.Join(ErrRemote, err)
}

// outcome is the metrics label for a classified error.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRemoteNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
