package api

import (
	"net/http"
	"strconv"

	"github.com/dmitrymomot/billingd/pkg/binder"
	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/pkg/respond"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

type checkoutRequest struct {
	Plan       string `json:"plan"`
	Email      string `json:"email"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (h *handlers) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := binder.JSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	plan, err := plans.ParsePlan(req.Plan)
	if err != nil {
		writeError(w, r, h.log, subscription.NewInvalidArgument("Unknown plan "+strconv.Quote(req.Plan)))
		return
	}
	s, err := h.billing.CreateCheckoutSession(r.Context(), gateway.CheckoutRequest{
		Selector:   selectorFrom(r.Context()),
		Email:      req.Email,
		Plan:       plan,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

func (h *handlers) portal(w http.ResponseWriter, r *http.Request) {
	var req portalRequest
	if r.ContentLength != 0 {
		if err := binder.JSON(r, &req); err != nil {
			writeError(w, r, h.log, err)
			return
		}
	}
	s, err := h.billing.CreatePortalSession(r.Context(), selectorFrom(r.Context()), req.ReturnURL)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

func (h *handlers) invoices(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, r, h.log, subscription.NewInvalidArgument("limit must be a positive integer"))
			return
		}
		limit = n
	}
	out, err := h.billing.ListInvoices(r.Context(), selectorFrom(r.Context()), limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if out == nil {
		out = []gateway.Invoice{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"invoices": out})
}
