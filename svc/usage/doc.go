// Package usage records metered consumption of services and aggregates it
// per billing period.
//
// Records are append-only facts: a service consumed a quantity of one metric
// at a point in time. Aggregation sums quantities per metric over the
// half-open interval [start, end), either for one service or for every
// service owned by a user or organization. Ownership is resolved through a
// ServiceDirectory; this package never authorizes callers.
//
// ReportUsage forwards a quantity to Stripe's metered billing through the
// payment gateway after validating it locally.
package usage
