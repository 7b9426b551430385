package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

// applySubscription upserts the ledger record from a subscription object.
func (h *Handler) applySubscription(ctx context.Context, obj json.RawMessage, ids *refs) error {
	var sub subscriptionObject
	if err := json.Unmarshal(obj, &sub); err != nil {
		return errors.Join(ErrMalformedObject, err)
	}
	ids.subscriptionID = sub.ID
	ids.customerID = sub.Customer.String()
	if sub.ID == "" {
		return ErrMissingReference
	}
	if ids.customerID == "" {
		return fmt.Errorf("%w: subscription %s has no customer", ErrCustomerMissing, sub.ID)
	}

	customer, err := h.customers.GetCustomer(ctx, ids.customerID)
	if errors.Is(err, gateway.ErrCustomerNotFound) {
		return errors.Join(ErrCustomerMissing, err)
	}
	if err != nil {
		return fmt.Errorf("lookup customer %s: %w", ids.customerID, err)
	}
	if customer.Deleted {
		return fmt.Errorf("%w: %s", ErrCustomerDeleted, ids.customerID)
	}

	sel, ok := ownerOf(customer.Metadata)
	if !ok {
		sel, ok = ownerOf(sub.Metadata)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoOwner, ids.customerID)
	}

	if len(sub.Items.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrNoItems, sub.ID)
	}
	item := sub.Items.Data[0]
	plan, ok := h.prices.PlanForPrice(item.Price.ID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPrice, item.Price.ID)
	}
	start, end := sub.period(item)

	_, err = h.ledger.UpsertSubscription(ctx, subscription.UpsertParams{
		Selector:             sel,
		StripeCustomerID:     ids.customerID,
		StripeSubscriptionID: sub.ID,
		Plan:                 plan,
		Status:               gateway.MapStatus(sub.Status),
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
	})
	return err
}

// setStatus sets status on the record of the subscription in the event.
func (h *Handler) setStatus(status subscription.Status) route {
	return func(ctx context.Context, obj json.RawMessage, ids *refs) error {
		var sub subscriptionObject
		if err := json.Unmarshal(obj, &sub); err != nil {
			return errors.Join(ErrMalformedObject, err)
		}
		ids.subscriptionID = sub.ID
		ids.customerID = sub.Customer.String()
		if sub.ID == "" {
			return ErrMissingReference
		}
		_, err := h.ledger.UpdateSubscriptionStatus(ctx, subscription.StatusUpdate{
			StripeSubscriptionID: sub.ID,
			Status:               status,
		})
		return err
	}
}

// setInvoiceStatus sets status on the subscription an invoice belongs to.
// Invoices that belong to no subscription are acknowledged without changes.
func (h *Handler) setInvoiceStatus(status subscription.Status) route {
	return func(ctx context.Context, obj json.RawMessage, ids *refs) error {
		var inv invoiceObject
		if err := json.Unmarshal(obj, &inv); err != nil {
			return errors.Join(ErrMalformedObject, err)
		}
		ids.customerID = inv.Customer.String()
		subID, ok := inv.linkedSubscriptionID()
		if !ok {
			h.log.DebugContext(ctx, "invoice has no linked subscription", slog.String("invoice_id", inv.ID))
			return nil
		}
		ids.subscriptionID = subID
		_, err := h.ledger.UpdateSubscriptionStatus(ctx, subscription.StatusUpdate{
			StripeSubscriptionID: subID,
			Status:               status,
		})
		return err
	}
}

func ownerOf(metadata map[string]string) (subscription.Selector, bool) {
	sel := subscription.Selector{
		UserID:         strings.TrimSpace(metadata["userId"]),
		OrganizationID: strings.TrimSpace(metadata["organizationId"]),
	}
	return sel, sel.Valid()
}
