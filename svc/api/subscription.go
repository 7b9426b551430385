package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/pkg/respond"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

type subscriptionResponse struct {
	Subscription *subscription.Subscription `json:"subscription"`
	Synthetic    bool                       `json:"synthetic"`
	Active       bool                       `json:"active"`
	Limits       plans.ResourceLimits       `json:"limits"`
}

func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := selectorFrom(ctx)

	sub, err := h.ledger.GetSubscription(ctx, sel)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	limits, err := h.ledger.GetLimits(ctx, sel)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	resp := subscriptionResponse{Subscription: sub, Limits: limits}
	if sub != nil {
		resp.Synthetic = sub.IsSynthetic()
		resp.Active = sub.IsActive()
	}
	respond.JSON(w, http.StatusOK, resp)
}

type quotaResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// serviceQuota reports whether the owner may create another service.
func (h *handlers) serviceQuota(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.CanCreateService(r.Context(), selectorFrom(r.Context()))
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, quotaResponse{Allowed: true})
	case errors.Is(err, plans.ErrLimitExceeded):
		respond.JSON(w, http.StatusOK, quotaResponse{Allowed: false, Reason: err.Error()})
	default:
		writeError(w, r, h.log, err)
	}
}

type planLimitsResponse struct {
	Plan   plans.Plan           `json:"plan"`
	Limits plans.ResourceLimits `json:"limits"`
}

func (h *handlers) planLimits(w http.ResponseWriter, r *http.Request) {
	plan, err := plans.ParsePlan(chi.URLParam(r, "plan"))
	if err != nil {
		writeError(w, r, h.log, errUnknownPlan)
		return
	}
	respond.JSON(w, http.StatusOK, planLimitsResponse{Plan: plan, Limits: plans.Limits(plan)})
}
