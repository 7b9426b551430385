package subscription

import "context"

// Store persists subscriptions. Implementations must run each Mutate call
// atomically: the read of the current record and the write of the returned
// one form a single unit, serialized against other mutations of the same
// owner, while mutations of different owners proceed independently.
type Store interface {
	// FindBySelector returns ErrSubscriptionNotFound when the owner has no record.
	FindBySelector(ctx context.Context, sel Selector) (*Subscription, error)

	// MutateBySelector passes the stored record, or nil, to fn and stores the
	// record fn returns. An error from fn aborts the write and is returned as is.
	MutateBySelector(ctx context.Context, sel Selector, fn func(current *Subscription) (*Subscription, error)) (*Subscription, error)

	// MutateByStripeSubscriptionID edits the record holding the Stripe id in
	// place. It returns ErrSubscriptionNotFound when no record holds it.
	MutateByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string, fn func(current *Subscription) error) (*Subscription, error)
}

func clone(s *Subscription) *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	if s.CanceledAt != nil {
		t := *s.CanceledAt
		c.CanceledAt = &t
	}
	return &c
}
