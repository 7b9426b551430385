package reconcile

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// envelope is the part of a Stripe event every delivery is parsed into.
// Objects are kept raw until the route for the event type is known.
type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data *struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (e *envelope) object() (json.RawMessage, bool) {
	if e.Data == nil {
		return nil, false
	}
	raw := bytes.TrimSpace(e.Data.Object)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}

// reference is a Stripe field that is either an id string or an expanded
// object carrying an id.
type reference string

func (r *reference) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*r = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = reference(strings.TrimSpace(s))
		return nil
	default:
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*r = reference(strings.TrimSpace(obj.ID))
		return nil
	}
}

func (r reference) String() string { return string(r) }

type subscriptionItem struct {
	ID    string `json:"id"`
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
}

// subscriptionObject is data.object of customer.subscription.* events.
// Older API versions carry the period on the subscription, newer ones on
// each item; both are accepted.
type subscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           reference         `json:"customer"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Items              struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

// period returns the billing window of the first item, falling back to the
// subscription level fields.
func (s *subscriptionObject) period(item subscriptionItem) (time.Time, time.Time) {
	start, end := item.CurrentPeriodStart, item.CurrentPeriodEnd
	if start == 0 || end == 0 {
		start, end = s.CurrentPeriodStart, s.CurrentPeriodEnd
	}
	return time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC()
}

type subscriptionDetails struct {
	Subscription reference `json:"subscription"`
}

// invoiceObject is data.object of invoice.* events. The subscription id moved
// between API versions, see subscriptionIDStrategies.
type invoiceObject struct {
	ID                  string               `json:"id"`
	Customer            reference            `json:"customer"`
	Subscription        reference            `json:"subscription"`
	SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	Parent              *struct {
		SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	} `json:"parent"`
}

// subscriptionIDStrategy extracts the linked subscription id from one known
// invoice shape.
type subscriptionIDStrategy func(inv *invoiceObject) (string, bool)

// subscriptionIDStrategies are tried in order; the first hit wins.
var subscriptionIDStrategies = []subscriptionIDStrategy{
	func(inv *invoiceObject) (string, bool) {
		return nonEmpty(inv.Subscription.String())
	},
	func(inv *invoiceObject) (string, bool) {
		if inv.SubscriptionDetails == nil {
			return "", false
		}
		return nonEmpty(inv.SubscriptionDetails.Subscription.String())
	},
	func(inv *invoiceObject) (string, bool) {
		if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
			return "", false
		}
		return nonEmpty(inv.Parent.SubscriptionDetails.Subscription.String())
	},
}

// linkedSubscriptionID reports the subscription an invoice belongs to.
// Invoices without one, such as one-off charges, report false.
func (inv *invoiceObject) linkedSubscriptionID() (string, bool) {
	for _, extract := range subscriptionIDStrategies {
		if id, ok := extract(inv); ok {
			return id, true
		}
	}
	return "", false
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}
