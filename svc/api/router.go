package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
	"github.com/dmitrymomot/billingd/svc/usage"
)

// Billing is the part of the gateway the caller facing routes use.
// *gateway.Gateway implements it.
type Billing interface {
	CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.Session, error)
	CreatePortalSession(ctx context.Context, sel subscription.Selector, returnURL string) (*gateway.Session, error)
	ListInvoices(ctx context.Context, sel subscription.Selector, limit int64) ([]gateway.Invoice, error)
}

// RouterOptions wires the router. Ledger, Usage and Services are required;
// the webhook and billing routes are mounted only when their handler is set.
type RouterOptions struct {
	Ledger   subscription.Ledger
	Usage    usage.Service
	Services usage.ServiceDirectory
	Billing  Billing
	Webhooks http.Handler

	// Selector defaults to HeaderSelector.
	Selector SelectorResolver
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type handlers struct {
	ledger   subscription.Ledger
	usage    usage.Service
	services usage.ServiceDirectory
	billing  Billing
	log      *slog.Logger
	now      func() time.Time
}

// Router builds the HTTP routes. It panics when a required dependency is nil.
func Router(opts RouterOptions) chi.Router {
	if opts.Ledger == nil || opts.Usage == nil || opts.Services == nil {
		panic("api: Ledger, Usage and Services are required")
	}
	if opts.Selector == nil {
		opts.Selector = HeaderSelector
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handlers{
		ledger:   opts.Ledger,
		usage:    opts.Usage,
		services: opts.Services,
		billing:  opts.Billing,
		log:      opts.Logger.With(logger.Component("api")),
		now:      opts.Now,
	}

	r := chi.NewRouter()
	if opts.Webhooks != nil {
		// The handler answers non-POST methods itself with a JSON 405.
		r.Handle("/webhooks/stripe", opts.Webhooks)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/plans/{plan}/limits", h.planLimits)

		v1.Group(func(owned chi.Router) {
			owned.Use(requireSelector(opts.Selector))

			owned.Get("/subscription", h.getSubscription)
			owned.Get("/services/quota", h.serviceQuota)

			owned.Get("/usage", h.aggregatedUsage)
			owned.Post("/usage", h.recordUsage)
			owned.Post("/usage/report", h.reportUsage)
			owned.Get("/services/{serviceID}/usage", h.serviceUsage)

			if opts.Billing != nil {
				owned.Post("/checkout", h.checkout)
				owned.Post("/portal", h.portal)
				owned.Get("/invoices", h.invoices)
			}
		})
	})
	return r
}
