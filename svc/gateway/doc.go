// Package gateway wraps the Stripe API behind the operations billingd needs:
// customers, subscriptions, checkout and portal sessions, invoices and
// metered usage events.
//
// The remote surface is the narrow API interface; NewStripeAPI implements it
// with stripe-go. Gateway adds the rules around it:
//
//   - GetOrCreateCustomer consults the customer cache and then the ledger
//     before it ever creates a remote customer, and collapses concurrent
//     calls for one owner.
//   - Every remote call runs under its own timeout. Timeouts, rate limits,
//     connection failures and 5xx answers are reported as ErrTransient and
//     never retried here.
//   - GetSubscription answers (nil, nil) only when Stripe reports the
//     subscription as missing.
//
// A Gateway built without an API reports ErrNotConfigured from every call.
package gateway
