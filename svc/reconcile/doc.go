// Package reconcile applies Stripe webhook deliveries to the subscription
// ledger.
//
// Stripe delivers at least once, may reorder deliveries and may deliver the
// same event concurrently. Every handler is therefore an upsert or an
// unconditional status set keyed by the Stripe subscription id, and applying
// a payload twice leaves the ledger in the same state as applying it once.
// The EventLog only short-circuits redeliveries that arrive after a
// successful application; correctness never depends on it.
//
// Each delivery walks a fixed lifecycle:
//
//	received -> signature_verified -> parsed -> deduplicated -> routed -> applied
//
// and any gate along the way may move it to rejected instead. Rejections
// caused by the caller are answered with 400, configuration and routing
// faults with 500 so Stripe retries them. Unhandled event types are
// acknowledged so Stripe stops redelivering them.
package reconcile
