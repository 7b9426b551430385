package gateway

import "github.com/dmitrymomot/billingd/svc/subscription"

// MapStatus translates a Stripe subscription status. Unknown values map to
// UNPAID so an unexpected status never grants access.
func MapStatus(remote string) subscription.Status {
	switch remote {
	case "active", "trialing":
		return subscription.StatusActive
	case "past_due":
		return subscription.StatusPastDue
	case "canceled", "incomplete_expired":
		return subscription.StatusCanceled
	case "incomplete", "unpaid":
		return subscription.StatusUnpaid
	default:
		return subscription.StatusUnpaid
	}
}
