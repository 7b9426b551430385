// Package plans is the static plan catalog: the four subscription tiers, the
// resource entitlements each tier grants, the per-unit prices of metered
// usage and the mapping between Stripe price ids and tiers.
//
// Everything here is pure. Limits can be called for previews and display
// without looking up any subscription:
//
//	l := plans.Limits(plans.Pro)
//	if err := plans.Check(l, plans.ResourceServices, running, 1); err != nil {
//	    // plans.ErrLimitExceeded
//	}
//
// A limit of Unlimited (-1) never rejects.
package plans
