package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/metrics"
	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

// CustomerStore is the part of the ledger that maps owners to Stripe customers.
type CustomerStore interface {
	StripeCustomerID(ctx context.Context, sel subscription.Selector) (string, error)
	AttachStripeCustomer(ctx context.Context, sel subscription.Selector, customerID string) error
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithCustomerCache replaces the default in-process customer cache.
func WithCustomerCache(c CustomerCache) Option {
	return func(g *Gateway) {
		if c != nil {
			g.cache = c
		}
	}
}

// WithPriceTable sets the plan to price mapping used for plan changes and checkout.
func WithPriceTable(t *plans.PriceTable) Option {
	return func(g *Gateway) { g.prices = t }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// Gateway is the consistency layer in front of the Stripe API.
type Gateway struct {
	cfg       Config
	api       API
	customers CustomerStore
	cache     CustomerCache
	prices    *plans.PriceTable
	log       *slog.Logger
	now       func() time.Time
	group     singleflight.Group
}

// New builds a gateway. api may be nil, in which case the gateway is not
// configured. It panics on a nil customer store.
func New(cfg Config, api API, customers CustomerStore, opts ...Option) *Gateway {
	if customers == nil {
		panic("gateway: CustomerStore is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	g := &Gateway{
		cfg:       cfg,
		api:       api,
		customers: customers,
		log:       logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = NewLRUCustomerCache(cfg.CustomerCacheSize, cfg.CustomerCacheTTL)
	}
	return g
}

// Configured reports whether a remote client is available.
func (g *Gateway) Configured() bool {
	return g.api != nil
}

// call runs fn under the per-call timeout and records the outcome.
func (g *Gateway) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.api == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	err := classify(fn(ctx))
	metrics.GatewayCallsTotal.WithLabelValues(op, outcome(err)).Inc()
	if err != nil && !errors.Is(err, ErrRemoteNotFound) {
		g.log.WarnContext(ctx, "stripe call failed", logger.Operation(op), logger.Error(err))
	}
	return err
}

// GetOrCreateCustomer returns the Stripe customer of sel, creating it only
// when neither the cache nor the ledger knows one.
func (g *Gateway) GetOrCreateCustomer(ctx context.Context, sel subscription.Selector, email string) (string, error) {
	if !sel.Valid() {
		return "", subscription.NewInvalidArgument("Either userId or organizationId must be provided for getOrCreateCustomer")
	}
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	sel = sel.Normalize()
	key := sel.Key()
	if id, ok := g.cache.Get(ctx, key); ok {
		return id, nil
	}

	// The shared create outlives any single caller; call still bounds each
	// remote request by CallTimeout.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		return g.createCustomer(shared, sel, key, email)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (g *Gateway) createCustomer(ctx context.Context, sel subscription.Selector, key, email string) (string, error) {
	id, err := g.customers.StripeCustomerID(ctx, sel)
	if err != nil {
		return "", err
	}
	if id != "" {
		g.cache.Set(ctx, key, id)
		return id, nil
	}

	var c *Customer
	err = g.call(ctx, "create_customer", func(ctx context.Context) error {
		var err error
		c, err = g.api.CreateCustomer(ctx, CustomerParams{
			Email:          email,
			Metadata:       ownerMetadata(sel),
			IdempotencyKey: "customer:" + key,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	if err := g.customers.AttachStripeCustomer(ctx, sel, c.ID); err != nil {
		g.log.ErrorContext(ctx, "failed to attach stripe customer",
			logger.CustomerID(c.ID), logger.UserID(sel.UserID), logger.OrganizationID(sel.OrganizationID), logger.Error(err))
		return "", err
	}
	g.cache.Set(ctx, key, c.ID)
	return c.ID, nil
}

// GetCustomer fetches a customer. A customer Stripe does not know is
// ErrCustomerNotFound; a deleted one is returned with Deleted set.
func (g *Gateway) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c *Customer
	err := g.call(ctx, "get_customer", func(ctx context.Context) error {
		var err error
		c, err = g.api.GetCustomer(ctx, id)
		return err
	})
	if errors.Is(err, ErrRemoteNotFound) {
		return nil, errors.Join(ErrCustomerNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetSubscription returns (nil, nil) when Stripe reports the subscription missing.
func (g *Gateway) GetSubscription(ctx context.Context, id string) (*RemoteSubscription, error) {
	var s *RemoteSubscription
	err := g.call(ctx, "get_subscription", func(ctx context.Context) error {
		var err error
		s, err = g.api.GetSubscription(ctx, id)
		return err
	})
	if errors.Is(err, ErrRemoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateSubscription subscribes a customer to the price of plan.
func (g *Gateway) CreateSubscription(ctx context.Context, customerID string, plan plans.Plan, metadata map[string]string) (*RemoteSubscription, error) {
	priceID, err := g.priceFor(plan)
	if err != nil {
		return nil, err
	}
	var s *RemoteSubscription
	err = g.call(ctx, "create_subscription", func(ctx context.Context) error {
		var err error
		s, err = g.api.CreateSubscription(ctx, customerID, priceID, metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSubscription moves a subscription to plan by swapping the price of
// its first item. A subscription without items is ErrNoSubscriptionItems.
func (g *Gateway) UpdateSubscription(ctx context.Context, id string, plan plans.Plan) (*RemoteSubscription, error) {
	priceID, err := g.priceFor(plan)
	if err != nil {
		return nil, err
	}
	current, err := g.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: subscription %s", ErrRemoteNotFound, id)
	}
	if len(current.Items) == 0 {
		g.log.ErrorContext(ctx, "remote subscription has no items", logger.SubscriptionID(id))
		return nil, fmt.Errorf("%w: subscription %s has no items to change", ErrNoSubscriptionItems, id)
	}

	var s *RemoteSubscription
	err = g.call(ctx, "update_subscription", func(ctx context.Context) error {
		var err error
		s, err = g.api.UpdateSubscriptionItemPrice(ctx, id, current.Items[0].ID, priceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CancelSubscription cancels now or at the end of the current period.
func (g *Gateway) CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*RemoteSubscription, error) {
	var s *RemoteSubscription
	err := g.call(ctx, "cancel_subscription", func(ctx context.Context) error {
		var err error
		s, err = g.api.CancelSubscription(ctx, id, atPeriodEnd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CheckoutRequest starts a subscription checkout for an owner.
type CheckoutRequest struct {
	Selector   subscription.Selector
	Email      string
	Plan       plans.Plan
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutSession returns a hosted checkout URL for plan. The owner's
// ids travel in the subscription metadata so webhooks can resolve them.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	priceID, err := g.priceFor(req.Plan)
	if err != nil {
		return nil, err
	}
	customerID, err := g.GetOrCreateCustomer(ctx, req.Selector, req.Email)
	if err != nil {
		return nil, err
	}

	params := CheckoutParams{
		CustomerID:        customerID,
		PriceID:           priceID,
		SuccessURL:        firstNonEmpty(req.SuccessURL, g.cfg.CheckoutSuccess),
		CancelURL:         firstNonEmpty(req.CancelURL, g.cfg.CheckoutCancel),
		ClientReferenceID: req.Selector.Key(),
		Metadata:          ownerMetadata(req.Selector),
	}
	var s *Session
	err = g.call(ctx, "create_checkout_session", func(ctx context.Context) error {
		var err error
		s, err = g.api.CreateCheckoutSession(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreatePortalSession opens the Stripe billing portal for an owner that
// already has a customer.
func (g *Gateway) CreatePortalSession(ctx context.Context, sel subscription.Selector, returnURL string) (*Session, error) {
	customerID, err := g.existingCustomer(ctx, sel)
	if err != nil {
		return nil, err
	}
	var s *Session
	err = g.call(ctx, "create_portal_session", func(ctx context.Context) error {
		var err error
		s, err = g.api.CreatePortalSession(ctx, customerID, firstNonEmpty(returnURL, g.cfg.PortalReturnURL))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListInvoices returns up to limit recent invoices of an owner.
func (g *Gateway) ListInvoices(ctx context.Context, sel subscription.Selector, limit int64) ([]Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	customerID, err := g.existingCustomer(ctx, sel)
	if err != nil {
		return nil, err
	}
	var out []Invoice
	err = g.call(ctx, "list_invoices", func(ctx context.Context) error {
		var err error
		out, err = g.api.ListInvoices(ctx, customerID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReportUsage sends a metered usage event with the quantity rounded to the
// nearest integer.
func (g *Gateway) ReportUsage(ctx context.Context, r UsageReport) error {
	if math.IsNaN(r.Quantity) || r.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if r.CustomerID == "" {
		return ErrNoCustomer
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = g.now()
	}
	event := MeterEvent{
		EventName:  g.cfg.MeterEventName,
		CustomerID: r.CustomerID,
		Value:      int64(math.Round(r.Quantity)),
		Timestamp:  ts,
		Identifier: r.Identifier,
	}
	return g.call(ctx, "report_usage", func(ctx context.Context) error {
		return g.api.CreateMeterEvent(ctx, event)
	})
}

func (g *Gateway) existingCustomer(ctx context.Context, sel subscription.Selector) (string, error) {
	if !sel.Valid() {
		return "", subscription.NewInvalidArgument("Either userId or organizationId must be provided")
	}
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	if id, ok := g.cache.Get(ctx, sel.Key()); ok {
		return id, nil
	}
	id, err := g.customers.StripeCustomerID(ctx, sel)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoCustomer
	}
	g.cache.Set(ctx, sel.Key(), id)
	return id, nil
}

func (g *Gateway) priceFor(plan plans.Plan) (string, error) {
	id, ok := g.prices.PriceForPlan(plan)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoPriceForPlan, plan)
	}
	return id, nil
}

func ownerMetadata(sel subscription.Selector) map[string]string {
	if sel.IsUser() {
		return map[string]string{"userId": sel.UserID}
	}
	return map[string]string{"organizationId": sel.OrganizationID}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
