package gateway_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

func TestMapStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]subscription.Status{
		"active":             subscription.StatusActive,
		"trialing":           subscription.StatusActive,
		"past_due":           subscription.StatusPastDue,
		"canceled":           subscription.StatusCanceled,
		"incomplete_expired": subscription.StatusCanceled,
		"incomplete":         subscription.StatusUnpaid,
		"unpaid":             subscription.StatusUnpaid,
		"paused":             subscription.StatusUnpaid,
		"ACTIVE":             subscription.StatusUnpaid,
		"":                   subscription.StatusUnpaid,
	}
	for remote, want := range tests {
		assert.Equal(t, want, gateway.MapStatus(remote), "remote status %q", remote)
	}
}
