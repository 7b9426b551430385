package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/plans"
)

// Ledger is the public interface of the subscription ledger.
type Ledger interface {
	GetSubscription(ctx context.Context, sel Selector) (*Subscription, error)
	UpsertSubscription(ctx context.Context, params UpsertParams) (*Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, update StatusUpdate) (*Subscription, error)
	HasActiveSubscription(ctx context.Context, sel Selector) (bool, error)

	// Entitlements
	GetLimits(ctx context.Context, sel Selector) (plans.ResourceLimits, error)
	CanCreateService(ctx context.Context, sel Selector) error

	// Stripe customer mapping
	StripeCustomerID(ctx context.Context, sel Selector) (string, error)
	AttachStripeCustomer(ctx context.Context, sel Selector, customerID string) error
}

// ServiceCounter returns how many services the owner currently runs.
type ServiceCounter func(ctx context.Context, sel Selector) (int64, error)

// LedgerOption configures a ledger.
type LedgerOption func(*ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for ledger writes.
func WithLogger(log *slog.Logger) LedgerOption {
	return func(l *ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithServiceCounter enables CanCreateService.
func WithServiceCounter(fn ServiceCounter) LedgerOption {
	return func(l *ledger) { l.countServices = fn }
}

type ledger struct {
	store         Store
	now           func() time.Time
	log           *slog.Logger
	countServices ServiceCounter
}

// NewLedger builds a ledger on store. It panics on a nil store.
func NewLedger(store Store, opts ...LedgerOption) Ledger {
	if store == nil {
		panic("subscription: Store is required")
	}
	l := &ledger{
		store: store,
		now:   time.Now,
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetSubscription returns the stored record of sel. A user without one gets
// the synthetic free record; an organization without one gets nil.
func (l *ledger) GetSubscription(ctx context.Context, sel Selector) (*Subscription, error) {
	if !sel.Valid() {
		return nil, NewInvalidArgument(msgSelectorGet)
	}
	sel = sel.Normalize()

	sub, err := l.store.FindBySelector(ctx, sel)
	switch {
	case err == nil:
		return sub, nil
	case !errors.Is(err, ErrSubscriptionNotFound):
		return nil, err
	case sel.IsUser():
		return DefaultFreeSubscription(sel.UserID, l.now()), nil
	default:
		return nil, nil
	}
}

// UpsertSubscription creates or updates the record of params.Selector,
// keeping the id of an existing record.
func (l *ledger) UpsertSubscription(ctx context.Context, p UpsertParams) (*Subscription, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.Selector = p.Selector.Normalize()
	now := l.now().UTC()

	sub, err := l.store.MutateBySelector(ctx, p.Selector, func(cur *Subscription) (*Subscription, error) {
		next := cur
		if next == nil {
			next = &Subscription{
				ID:             uuid.New(),
				UserID:         p.Selector.UserID,
				OrganizationID: p.Selector.OrganizationID,
				CreatedAt:      now,
			}
		}
		if p.StripeCustomerID != "" {
			next.StripeCustomerID = p.StripeCustomerID
		}
		if p.StripeSubscriptionID != "" {
			next.StripeSubscriptionID = p.StripeSubscriptionID
		}
		next.Plan = p.Plan
		next.CurrentPeriodStart = p.CurrentPeriodStart.UTC()
		next.CurrentPeriodEnd = p.CurrentPeriodEnd.UTC()
		next.UpdatedAt = now
		next.setStatus(p.Status, now)
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	l.log.InfoContext(ctx, "subscription upserted",
		logger.UserID(sub.UserID),
		logger.OrganizationID(sub.OrganizationID),
		logger.SubscriptionID(sub.StripeSubscriptionID),
		slog.String("plan", string(sub.Plan)),
		slog.String("status", string(sub.Status)),
	)
	return sub, nil
}

// UpdateSubscriptionStatus sets the status, and the period bounds when given,
// of the record holding update.StripeSubscriptionID.
func (l *ledger) UpdateSubscriptionStatus(ctx context.Context, u StatusUpdate) (*Subscription, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	now := l.now().UTC()

	sub, err := l.store.MutateByStripeSubscriptionID(ctx, u.StripeSubscriptionID, func(cur *Subscription) error {
		start, end := cur.CurrentPeriodStart, cur.CurrentPeriodEnd
		if u.CurrentPeriodStart != nil {
			start = u.CurrentPeriodStart.UTC()
		}
		if u.CurrentPeriodEnd != nil {
			end = u.CurrentPeriodEnd.UTC()
		}
		if !start.Before(end) {
			return NewInvalidArgument("currentPeriodStart must be before currentPeriodEnd")
		}
		cur.CurrentPeriodStart, cur.CurrentPeriodEnd = start, end
		cur.UpdatedAt = now
		cur.setStatus(u.Status, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.InfoContext(ctx, "subscription status updated",
		logger.SubscriptionID(u.StripeSubscriptionID),
		slog.String("status", string(sub.Status)),
	)
	return sub, nil
}

// HasActiveSubscription is true for the synthetic free record of a user and
// false for an organization without a record.
func (l *ledger) HasActiveSubscription(ctx context.Context, sel Selector) (bool, error) {
	sub, err := l.GetSubscription(ctx, sel)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.IsActive(), nil
}

// GetLimits returns the limits of the owner's effective plan. Owners without
// a subscription get the free tier limits.
func (l *ledger) GetLimits(ctx context.Context, sel Selector) (plans.ResourceLimits, error) {
	sub, err := l.GetSubscription(ctx, sel)
	if err != nil {
		return plans.ResourceLimits{}, err
	}
	if sub == nil {
		return plans.Limits(plans.Free), nil
	}
	return plans.Limits(sub.EffectivePlan()), nil
}

// CanCreateService returns plans.ErrLimitExceeded when the owner already runs
// as many services as the plan allows.
func (l *ledger) CanCreateService(ctx context.Context, sel Selector) error {
	if l.countServices == nil {
		return ErrNoCounterRegistered
	}
	sel = sel.Normalize()
	limits, err := l.GetLimits(ctx, sel)
	if err != nil {
		return err
	}
	if limits.MaxServices == plans.Unlimited {
		return nil
	}
	n, err := l.countServices(ctx, sel)
	if err != nil {
		return errors.Join(ErrFailedToCountServices, err)
	}
	return plans.Check(limits, plans.ResourceServices, n, 1)
}

// StripeCustomerID returns the stored Stripe customer of sel, or "" when none
// is known.
func (l *ledger) StripeCustomerID(ctx context.Context, sel Selector) (string, error) {
	if !sel.Valid() {
		return "", NewInvalidArgument(msgSelectorGet)
	}
	sel = sel.Normalize()
	sub, err := l.store.FindBySelector(ctx, sel)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sub.StripeCustomerID, nil
}

// AttachStripeCustomer records customerID on the owner's subscription. An
// owner without a stored record gets a FREE/ACTIVE one, which is how records
// come into existence on first checkout.
func (l *ledger) AttachStripeCustomer(ctx context.Context, sel Selector, customerID string) error {
	if !sel.Valid() {
		return NewInvalidArgument(msgSelectorUpsert)
	}
	sel = sel.Normalize()
	if customerID == "" {
		return NewInvalidArgument("stripeCustomerId is required")
	}
	now := l.now().UTC()

	_, err := l.store.MutateBySelector(ctx, sel, func(cur *Subscription) (*Subscription, error) {
		if cur == nil {
			cur = DefaultFreeSubscription(sel.UserID, now)
			cur.ID = uuid.New()
			cur.OrganizationID = sel.OrganizationID
		}
		cur.StripeCustomerID = customerID
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return err
	}

	l.log.InfoContext(ctx, "stripe customer attached",
		logger.UserID(sel.UserID),
		logger.OrganizationID(sel.OrganizationID),
		logger.CustomerID(customerID),
	)
	return nil
}
