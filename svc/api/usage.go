package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billingd/pkg/binder"
	"github.com/dmitrymomot/billingd/pkg/respond"
	"github.com/dmitrymomot/billingd/svc/usage"
)

type usageResponse struct {
	PeriodStart time.Time        `json:"periodStart"`
	PeriodEnd   time.Time        `json:"periodEnd"`
	Usage       []usage.Summary  `json:"usage"`
	Estimate    []usage.LineItem `json:"estimate"`
}

// dateRange parses periodStart and periodEnd from the query string.
func (h *handlers) dateRange(r *http.Request) (usage.DateRange, error) {
	q := r.URL.Query()
	return usage.ParseDateRange(q.Get("periodStart"), q.Get("periodEnd"), h.now())
}

func (h *handlers) aggregatedUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sel := selectorFrom(ctx)

	period, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	summaries, err := h.usage.GetAggregatedUsage(ctx, usage.AggregateParams{
		Selector:    sel,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	estimate, err := h.usage.EstimateCost(ctx, sel, summaries)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, usageResponse{
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Usage:       summaries,
		Estimate:    estimate,
	})
}

// ownService fails unless the caller owns serviceID.
func (h *handlers) ownService(r *http.Request, serviceID string) error {
	owner, err := h.services.OwnerOf(r.Context(), serviceID)
	if err != nil {
		return err
	}
	if owner != selectorFrom(r.Context()) {
		return errForbidden
	}
	return nil
}

func (h *handlers) serviceUsage(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "serviceID")
	period, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.ownService(r, serviceID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	summaries, err := h.usage.GetServiceUsage(r.Context(), serviceID, period.Start, period.End)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, usageResponse{
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Usage:       summaries,
		Estimate:    []usage.LineItem{},
	})
}

type recordUsageRequest struct {
	ServiceID   string       `json:"serviceId"`
	Metric      usage.Metric `json:"metric"`
	Quantity    float64      `json:"quantity"`
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
	PeriodStart *time.Time   `json:"periodStart,omitempty"`
	PeriodEnd   *time.Time   `json:"periodEnd,omitempty"`
}

func (h *handlers) recordUsage(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if err := binder.JSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if req.ServiceID != "" {
		if err := h.ownService(r, req.ServiceID); err != nil {
			writeError(w, r, h.log, err)
			return
		}
	}
	rec, err := h.usage.RecordUsage(r.Context(), usage.RecordParams{
		ServiceID:   req.ServiceID,
		Metric:      req.Metric,
		Quantity:    req.Quantity,
		Timestamp:   deref(req.Timestamp),
		PeriodStart: deref(req.PeriodStart),
		PeriodEnd:   deref(req.PeriodEnd),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, rec)
}

type reportUsageRequest struct {
	Quantity  float64    `json:"quantity"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (h *handlers) reportUsage(w http.ResponseWriter, r *http.Request) {
	var req reportUsageRequest
	if err := binder.JSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	err := h.usage.ReportUsage(r.Context(), usage.ReportParams{
		Selector:  selectorFrom(r.Context()),
		Quantity:  req.Quantity,
		Timestamp: deref(req.Timestamp),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, map[string]bool{"reported": true})
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
