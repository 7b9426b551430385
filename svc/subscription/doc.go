// Package subscription is the local subscription ledger: the authoritative
// record of which plan each user or organization is on, in what status and
// for which billing window.
//
// A subscription belongs to exactly one owner, identified by a Selector
// holding either a user id or an organization id. Users without a stored
// record are implicitly on the free plan: GetSubscription returns a synthetic
// FREE/ACTIVE record for them (IsSynthetic reports true). Organizations have
// no implicit tier and a missing organization record is returned as nil.
//
// Writes are keyed two ways. UpsertSubscription creates or updates the record
// of a selector, serialized per selector by the Store so two concurrent
// creates can never produce two records. UpdateSubscriptionStatus finds the
// record by its Stripe subscription id, which is how webhook deliveries refer
// to it, and reports ErrSubscriptionNotFound when the ledger has drifted from
// the provider.
//
// Status and period updates are last-write-wins; no event ordering is
// reconstructed.
package subscription
