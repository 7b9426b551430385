package usage

import (
	"errors"

	"github.com/dmitrymomot/billingd/svc/subscription"
)

var (
	// ErrInvalidArgument matches every validation error of this package.
	ErrInvalidArgument = subscription.ErrInvalidArgument

	ErrServiceNotFound   = errors.New("service not found")
	ErrNoStripeCustomer  = errors.New("no stripe customer for selector")
	ErrReportingDisabled = errors.New("usage reporting is not configured")
)

// Date range messages returned to API callers verbatim.
const (
	MsgInvalidDate    = "Invalid periodStart date format"
	MsgStartAfterEnd  = "periodStart must be before periodEnd"
	MsgRangeTooLong   = "Date range cannot exceed 1 year"
	MsgEndInFuture    = "periodEnd cannot be in the future"
	msgNegativeAmount = "Quantity must be a non-negative number"
)

func invalid(msg string) error {
	return subscription.NewInvalidArgument(msg)
}

// IsInvalidArgument reports whether err is a client validation error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
