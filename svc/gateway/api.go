package gateway

import "context"

// API is the remote Stripe surface used by Gateway. Implementations return
// raw errors; Gateway classifies them.
type API interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	GetSubscription(ctx context.Context, id string) (*RemoteSubscription, error)
	CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*RemoteSubscription, error)
	UpdateSubscriptionItemPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*RemoteSubscription, error)
	CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*RemoteSubscription, error)

	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error)
	ListInvoices(ctx context.Context, customerID string, limit int64) ([]Invoice, error)

	CreateMeterEvent(ctx context.Context, event MeterEvent) error
}
