package gateway

import "time"

// Customer is a Stripe customer.
type Customer struct {
	ID       string
	Email    string
	Deleted  bool
	Metadata map[string]string
}

// Item is one line of a remote subscription.
type Item struct {
	ID          string
	PriceID     string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// RemoteSubscription is a Stripe subscription.
type RemoteSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	CancelAtPeriodEnd bool
	Items             []Item
	Metadata          map[string]string
}

// Invoice is a Stripe invoice.
type Invoice struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	AmountDue        int64     `json:"amountDue"`
	AmountPaid       int64     `json:"amountPaid"`
	Currency         string    `json:"currency"`
	Created          time.Time `json:"created"`
	HostedInvoiceURL string    `json:"hostedInvoiceUrl,omitempty"`
	PDF              string    `json:"pdf,omitempty"`
}

// Session is a checkout or billing portal session.
type Session struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

// CustomerParams create a customer.
type CustomerParams struct {
	Email          string
	Metadata       map[string]string
	IdempotencyKey string
}

// CheckoutParams create a subscription checkout session.
type CheckoutParams struct {
	CustomerID        string
	PriceID           string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// MeterEvent is one metered billing event.
type MeterEvent struct {
	EventName  string
	CustomerID string
	Value      int64
	Timestamp  time.Time
	Identifier string
}

// UsageReport is a quantity of metered usage for a customer. Quantity is
// rounded to the nearest integer before it is sent; a zero Timestamp means now.
type UsageReport struct {
	CustomerID string
	Quantity   float64
	Timestamp  time.Time
	Identifier string
}
