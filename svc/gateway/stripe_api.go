package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/billing/meterevent"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
)

// stripeAPI implements API with per-resource stripe-go clients bound to one
// secret key, so no package-level stripe.Key is touched.
type stripeAPI struct {
	customers     customer.Client
	subscriptions stripesub.Client
	checkout      checkoutsession.Client
	portal        portalsession.Client
	invoices      invoice.Client
	meterEvents   meterevent.Client
}

// NewStripeAPI returns an API talking to Stripe with secretKey. It returns
// nil for an empty key so the gateway reports ErrNotConfigured.
func NewStripeAPI(secretKey string) API {
	if secretKey == "" {
		return nil
	}
	b := stripe.GetBackend(stripe.APIBackend)
	return &stripeAPI{
		customers:     customer.Client{B: b, Key: secretKey},
		subscriptions: stripesub.Client{B: b, Key: secretKey},
		checkout:      checkoutsession.Client{B: b, Key: secretKey},
		portal:        portalsession.Client{B: b, Key: secretKey},
		invoices:      invoice.Client{B: b, Key: secretKey},
		meterEvents:   meterevent.Client{B: b, Key: secretKey},
	}
}

func (a *stripeAPI) CreateCustomer(ctx context.Context, p CustomerParams) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if p.Email != "" {
		params.Email = stripe.String(p.Email)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	c, err := a.customers.New(params)
	if err != nil {
		return nil, err
	}
	return toCustomer(c), nil
}

func (a *stripeAPI) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := a.customers.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toCustomer(c), nil
}

func (a *stripeAPI) GetSubscription(ctx context.Context, id string) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := a.subscriptions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toRemoteSubscription(s), nil
}

func (a *stripeAPI) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items:    []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceID)}},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	s, err := a.subscriptions.New(params)
	if err != nil {
		return nil, err
	}
	return toRemoteSubscription(s), nil
}

func (a *stripeAPI) UpdateSubscriptionItemPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*RemoteSubscription, error) {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(itemID),
			Price: stripe.String(priceID),
		}},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	s, err := a.subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	return toRemoteSubscription(s), nil
}

func (a *stripeAPI) CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*RemoteSubscription, error) {
	var (
		s   *stripe.Subscription
		err error
	)
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		s, err = a.subscriptions.Update(id, params)
	} else {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		s, err = a.subscriptions.Cancel(id, params)
	}
	if err != nil {
		return nil, err
	}
	return toRemoteSubscription(s), nil
}

func (a *stripeAPI) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(p.CustomerID),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: p.Metadata},
	}
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}
	params.Context = ctx
	s, err := a.checkout.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (a *stripeAPI) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := a.portal.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (a *stripeAPI) ListInvoices(ctx context.Context, customerID string, limit int64) ([]Invoice, error) {
	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)

	out := make([]Invoice, 0, limit)
	it := a.invoices.List(params)
	for it.Next() && int64(len(out)) < limit {
		inv := it.Invoice()
		out = append(out, Invoice{
			ID:               inv.ID,
			Status:           string(inv.Status),
			AmountDue:        inv.AmountDue,
			AmountPaid:       inv.AmountPaid,
			Currency:         string(inv.Currency),
			Created:          time.Unix(inv.Created, 0).UTC(),
			HostedInvoiceURL: inv.HostedInvoiceURL,
			PDF:              inv.InvoicePDF,
		})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *stripeAPI) CreateMeterEvent(ctx context.Context, e MeterEvent) error {
	params := &stripe.BillingMeterEventParams{
		EventName: stripe.String(e.EventName),
		Payload: map[string]string{
			"stripe_customer_id": e.CustomerID,
			"value":              strconv.FormatInt(e.Value, 10),
		},
		Timestamp: stripe.Int64(e.Timestamp.Unix()),
	}
	if e.Identifier != "" {
		params.Identifier = stripe.String(e.Identifier)
	}
	params.Context = ctx
	_, err := a.meterEvents.New(params)
	return err
}

func toCustomer(c *stripe.Customer) *Customer {
	return &Customer{
		ID:       c.ID,
		Email:    c.Email,
		Deleted:  c.Deleted,
		Metadata: c.Metadata,
	}
}

func toRemoteSubscription(s *stripe.Subscription) *RemoteSubscription {
	out := &RemoteSubscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil {
		for _, it := range s.Items.Data {
			item := Item{
				ID:          it.ID,
				PeriodStart: time.Unix(it.CurrentPeriodStart, 0).UTC(),
				PeriodEnd:   time.Unix(it.CurrentPeriodEnd, 0).UTC(),
			}
			if it.Price != nil {
				item.PriceID = it.Price.ID
			}
			out.Items = append(out.Items, item)
		}
	}
	return out
}
