package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingd/pkg/binder"
	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/pkg/respond"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
	"github.com/dmitrymomot/billingd/svc/usage"
)

var (
	errForbidden   = errors.New("service belongs to another owner")
	errUnknownPlan = errors.New("unknown plan")
)

// writeError maps a service error to a status and message. Only unexpected
// errors are logged; everything else is the caller's doing.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case subscription.IsInvalidArgument(err):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, binder.ErrBodyTooLarge):
		respond.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		respond.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
	case errors.Is(err, binder.ErrFailedToParseJSON):
		respond.Error(w, http.StatusBadRequest, "Invalid JSON body")
	case errors.Is(err, errUnknownPlan), errors.Is(err, plans.ErrUnknownPlan):
		respond.Error(w, http.StatusNotFound, "Unknown plan")
	case errors.Is(err, errForbidden):
		respond.Error(w, http.StatusForbidden, "Service belongs to another owner")
	case errors.Is(err, usage.ErrServiceNotFound):
		respond.Error(w, http.StatusNotFound, "Service not found")
	case errors.Is(err, plans.ErrLimitExceeded):
		respond.Error(w, http.StatusForbidden, "Plan limit reached")
	case errors.Is(err, gateway.ErrNoCustomer), errors.Is(err, usage.ErrNoStripeCustomer):
		respond.Error(w, http.StatusNotFound, "No billing account for this owner")
	case errors.Is(err, gateway.ErrNoPriceForPlan):
		respond.Error(w, http.StatusBadRequest, "Plan is not available for purchase")
	case errors.Is(err, gateway.ErrNotConfigured), errors.Is(err, usage.ErrReportingDisabled):
		respond.Error(w, http.StatusServiceUnavailable, "Stripe is not configured")
	case gateway.IsTransient(err):
		log.WarnContext(r.Context(), "payment provider unavailable", logger.Error(err))
		respond.Error(w, http.StatusBadGateway, "Payment provider unavailable")
	default:
		log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
