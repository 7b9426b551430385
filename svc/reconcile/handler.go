package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/metrics"
	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/pkg/respond"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// CustomerLookup is the part of the gateway the handler needs.
// *gateway.Gateway implements it.
type CustomerLookup interface {
	Configured() bool
	GetCustomer(ctx context.Context, id string) (*gateway.Customer, error)
}

// Ledger is the part of the subscription ledger the handler writes to.
type Ledger interface {
	UpsertSubscription(ctx context.Context, p subscription.UpsertParams) (*subscription.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, u subscription.StatusUpdate) (*subscription.Subscription, error)
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithEventLog enables short-circuiting of redelivered events.
func WithEventLog(events EventLog) Option {
	return func(h *Handler) { h.events = events }
}

// Handler receives Stripe webhooks.
type Handler struct {
	cfg       Config
	customers CustomerLookup
	ledger    Ledger
	prices    *plans.PriceTable
	events    EventLog
	log       *slog.Logger
	routes    map[string]route
}

// route applies one event type. It fills in the ids it resolved so faults
// can be logged with them.
type route func(ctx context.Context, obj json.RawMessage, ids *refs) error

type refs struct {
	customerID     string
	subscriptionID string
}

// NewHandler panics when customers or ledger is nil.
func NewHandler(cfg Config, customers CustomerLookup, ledger Ledger, prices *plans.PriceTable, opts ...Option) *Handler {
	if customers == nil {
		panic("reconcile: CustomerLookup is required")
	}
	if ledger == nil {
		panic("reconcile: Ledger is required")
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 1 << 20
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = webhook.DefaultTolerance
	}
	h := &Handler{
		cfg:       cfg,
		customers: customers,
		ledger:    ledger,
		prices:    prices,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("stripe-webhook"))

	cancel := h.setStatus(subscription.StatusCanceled)
	paid := h.setInvoiceStatus(subscription.StatusActive)
	h.routes = map[string]route{
		"customer.subscription.created": h.applySubscription,
		"customer.subscription.updated": h.applySubscription,
		"customer.subscription.deleted": cancel,
		"customer.subscription.paused":  cancel,
		"invoice.paid":                  paid,
		"invoice.payment_succeeded":     paid,
		"invoice.payment_failed":        h.setInvoiceStatus(subscription.StatusPastDue),
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	d := newDelivery()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	ctx := r.Context()
	reject := func(code int, msg string) {
		d.advance(stepReject)
		status = code
		respond.Error(w, code, msg)
	}

	if r.Method != http.MethodPost {
		reject(http.StatusMethodNotAllowed, MsgMethodNotAllowed)
		return
	}

	sig := r.Header.Get(SignatureHeader)
	if strings.TrimSpace(sig) == "" {
		reject(http.StatusBadRequest, MsgMissingSignature)
		return
	}

	if r.Body == nil {
		reject(http.StatusBadRequest, MsgMissingBody)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.BodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reject(http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		reject(http.StatusBadRequest, MsgMissingBody)
		return
	}
	if len(payload) == 0 {
		reject(http.StatusBadRequest, MsgMissingBody)
		return
	}

	if !h.customers.Configured() {
		h.log.ErrorContext(ctx, "webhook received but stripe is not configured")
		reject(http.StatusInternalServerError, MsgNotConfigured)
		return
	}
	if h.cfg.WebhookSecret == "" {
		h.log.ErrorContext(ctx, "webhook received but the signing secret is not configured")
		reject(http.StatusInternalServerError, MsgSecretNotConfigured)
		return
	}

	if err := webhook.ValidatePayloadWithTolerance(payload, sig, h.cfg.WebhookSecret, h.cfg.Tolerance); err != nil {
		h.log.WarnContext(ctx, "webhook signature verification failed", logger.Error(err))
		reject(http.StatusBadRequest, MsgInvalidSignature)
		return
	}
	d.advance(stepVerify)

	var evt envelope
	if err := json.Unmarshal(payload, &evt); err != nil {
		reject(http.StatusBadRequest, MsgInvalidJSON)
		return
	}
	d.advance(stepParse)

	log := h.log.With(logger.EventID(evt.ID), logger.EventType(evt.Type))
	if evt.Type == "" {
		log.WarnContext(ctx, "webhook event without type acknowledged")
		d.advance(stepAcknowledge)
		h.acknowledge(w)
		return
	}
	eventType = evt.Type

	obj, ok := evt.object()
	if !ok {
		log.ErrorContext(ctx, "webhook event is missing data", logger.Error(ErrMissingData))
		reject(http.StatusInternalServerError, MsgMissingData)
		return
	}

	if h.seen(ctx, log, evt.ID) {
		log.InfoContext(ctx, "webhook event already applied")
		d.advance(stepAcknowledge)
		h.acknowledge(w)
		return
	}
	d.advance(stepDeduplicate)

	apply, handled := h.routes[evt.Type]
	d.advance(stepRoute)
	if !handled {
		log.DebugContext(ctx, "webhook event type not handled")
		d.advance(stepApply)
		h.acknowledge(w)
		return
	}

	var ids refs
	if err := apply(ctx, obj, &ids); err != nil {
		log.ErrorContext(ctx, "webhook handler failed",
			logger.CustomerID(ids.customerID),
			logger.SubscriptionID(ids.subscriptionID),
			logger.Error(err),
		)
		reject(http.StatusInternalServerError, MsgHandlerFailed)
		return
	}
	d.advance(stepApply)

	h.remember(ctx, log, evt.ID, evt.Type)
	log.InfoContext(ctx, "webhook event applied",
		logger.CustomerID(ids.customerID),
		logger.SubscriptionID(ids.subscriptionID),
	)
	h.acknowledge(w)
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	respond.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// seen reports a recorded event. Lookup failures count as unseen: handlers
// are idempotent, so applying again is safe.
func (h *Handler) seen(ctx context.Context, log *slog.Logger, eventID string) bool {
	if h.events == nil || eventID == "" {
		return false
	}
	ok, err := h.events.Seen(ctx, eventID)
	if err != nil {
		log.WarnContext(ctx, "webhook event log lookup failed", logger.Error(err))
		return false
	}
	return ok
}

func (h *Handler) remember(ctx context.Context, log *slog.Logger, eventID, eventType string) {
	if h.events == nil || eventID == "" {
		return
	}
	if err := h.events.Record(ctx, eventID, eventType); err != nil {
		log.WarnContext(ctx, "failed to record webhook event", logger.Error(err))
	}
}
