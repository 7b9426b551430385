package reconcile_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/gateway/gatewaytest"
	"github.com/dmitrymomot/billingd/svc/reconcile"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

const secret = "whsec_test_123"

var (
	fixedNow    = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	periodStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = periodStart.Add(30 * 24 * time.Hour)
)

type harness struct {
	handler *reconcile.Handler
	api     *gatewaytest.MockAPI
	ledger  subscription.Ledger
	store   *subscription.MemoryStore
}

func newHarness(t *testing.T, cfg reconcile.Config, opts ...reconcile.Option) *harness {
	t.Helper()
	prices, err := plans.NewPriceTable(map[string]plans.Plan{
		"price_starter": plans.Starter,
		"price_pro":     plans.Pro,
	})
	require.NoError(t, err)

	api := &gatewaytest.MockAPI{}
	store := subscription.NewMemoryStore()
	ledger := subscription.NewLedger(store, subscription.WithClock(func() time.Time { return fixedNow }))
	gw := gateway.New(gateway.Config{CallTimeout: time.Second}, api, ledger, gateway.WithPriceTable(prices))

	return &harness{
		handler: reconcile.NewHandler(cfg, gw, ledger, prices, opts...),
		api:     api,
		ledger:  ledger,
		store:   store,
	}
}

func defaultConfig() reconcile.Config {
	return reconcile.Config{WebhookSecret: secret, BodyLimit: 1 << 20}
}

func sign(payload []byte, key string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    key,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

func deliver(h http.Handler, payload []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", sign(payload, secret))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func event(t *testing.T, id, typ string, object any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":   id,
		"type": typ,
		"data": map[string]any{"object": object},
	})
	require.NoError(t, err)
	return b
}

func subscriptionObject(id, customer, status, price string) map[string]any {
	return map[string]any{
		"id":       id,
		"object":   "subscription",
		"customer": customer,
		"status":   status,
		"items": map[string]any{
			"data": []map[string]any{{
				"id":                   "si_" + id,
				"price":                map[string]any{"id": price},
				"current_period_start": periodStart.Unix(),
				"current_period_end":   periodEnd.Unix(),
			}},
		},
	}
}

func assertReceived(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	assert.Equal(t, status, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, msg), rec.Body.String())
}

func TestNewHandler_PanicsWithoutDependencies(t *testing.T) {
	t.Parallel()
	ledger := subscription.NewLedger(subscription.NewMemoryStore())
	gw := gateway.New(gateway.Config{}, nil, ledger)
	assert.Panics(t, func() { reconcile.NewHandler(defaultConfig(), nil, ledger, nil) })
	assert.Panics(t, func() { reconcile.NewHandler(defaultConfig(), gw, nil, nil) })
}

func TestHandler_TransportGates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())
	payload := event(t, "evt_1", "customer.subscription.created", subscriptionObject("sub_1", "cus_1", "active", "price_starter"))

	t.Run("method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil))
		assertError(t, rec, http.StatusMethodNotAllowed, reconcile.MsgMethodNotAllowed)
	})

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, "Missing stripe-signature header")
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", http.NoBody)
		req.Header.Set("Stripe-Signature", sign(nil, secret))
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, reconcile.MsgMissingBody)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", sign(payload, "whsec_wrong"))
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, reconcile.MsgInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(append(payload, ' ')))
		req.Header.Set("Stripe-Signature", sign(payload, secret))
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, reconcile.MsgInvalidSignature)
	})

	t.Run("expired timestamp", func(t *testing.T) {
		header := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    secret,
			Timestamp: time.Now().Add(-time.Hour),
			Scheme:    "v1",
		}).Header
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", header)
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, reconcile.MsgInvalidSignature)
	})

	h.api.AssertNotCalled(t, "GetCustomer", mock.Anything, mock.Anything)
}

func TestHandler_BodyLimit(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.BodyLimit = 64
	h := newHarness(t, cfg)

	payload := []byte(`{"id":"evt_big","type":"invoice.paid","data":{"object":{"id":"` + strings.Repeat("x", 128) + `"}}}`)
	rec := deliver(h.handler, payload)
	assertError(t, rec, http.StatusRequestEntityTooLarge, reconcile.MsgBodyTooLarge)
}

func TestHandler_ConfigurationGate(t *testing.T) {
	t.Parallel()
	payload := event(t, "evt_1", "invoice.paid", map[string]any{"id": "in_1"})

	t.Run("no stripe client", func(t *testing.T) {
		ledger := subscription.NewLedger(subscription.NewMemoryStore())
		gw := gateway.New(gateway.Config{}, nil, ledger)
		h := reconcile.NewHandler(defaultConfig(), gw, ledger, nil)

		rec := deliver(h, payload)
		assertError(t, rec, http.StatusInternalServerError, reconcile.MsgNotConfigured)
	})

	t.Run("no signing secret", func(t *testing.T) {
		h := newHarness(t, reconcile.Config{})
		rec := deliver(h.handler, payload)
		assertError(t, rec, http.StatusInternalServerError, reconcile.MsgSecretNotConfigured)
	})
}

func TestHandler_PayloadShape(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())

	t.Run("invalid json", func(t *testing.T) {
		rec := deliver(h.handler, []byte(`{"id": "evt_1", "type":`))
		assertError(t, rec, http.StatusBadRequest, reconcile.MsgInvalidJSON)
	})

	t.Run("missing type is acknowledged", func(t *testing.T) {
		rec := deliver(h.handler, []byte(`{"id":"evt_1","data":{"object":{"id":"sub_1"}}}`))
		assertReceived(t, rec)
	})

	t.Run("missing data is a fault", func(t *testing.T) {
		rec := deliver(h.handler, []byte(`{"id":"evt_1","type":"invoice.payment_failed"}`))
		assertError(t, rec, http.StatusInternalServerError, reconcile.MsgMissingData)
	})

	t.Run("null object is a fault", func(t *testing.T) {
		rec := deliver(h.handler, []byte(`{"id":"evt_1","type":"invoice.payment_failed","data":{"object":null}}`))
		assertError(t, rec, http.StatusInternalServerError, reconcile.MsgMissingData)
	})

	t.Run("unhandled type is acknowledged", func(t *testing.T) {
		rec := deliver(h.handler, event(t, "evt_2", "charge.refunded", map[string]any{"id": "ch_1"}))
		assertReceived(t, rec)
	})
}

func TestHandler_SubscriptionCreated(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())
	ctx := context.Background()

	h.api.On("GetCustomer", mock.Anything, "cus_u1").
		Return(&gateway.Customer{ID: "cus_u1", Metadata: map[string]string{"userId": "u1"}}, nil)

	payload := event(t, "evt_created", "customer.subscription.created",
		subscriptionObject("sub_u1", "cus_u1", "active", "price_starter"))

	assertReceived(t, deliver(h.handler, payload))

	sub, err := h.ledger.GetSubscription(ctx, subscription.ForUser("u1"))
	require.NoError(t, err)
	require.False(t, sub.IsSynthetic())
	assert.Equal(t, plans.Starter, sub.Plan)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, "cus_u1", sub.StripeCustomerID)
	assert.Equal(t, "sub_u1", sub.StripeSubscriptionID)
	assert.True(t, periodStart.Equal(sub.CurrentPeriodStart))
	assert.True(t, periodEnd.Equal(sub.CurrentPeriodEnd))

	assertReceived(t, deliver(h.handler, payload))
	again, err := h.ledger.GetSubscription(ctx, subscription.ForUser("u1"))
	require.NoError(t, err)
	assert.Equal(t, sub, again)
	assert.Equal(t, 1, h.store.Len())
}

func TestHandler_SubscriptionUpdated_PlanChangeAndOwnerFallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())
	ctx := context.Background()

	h.api.On("GetCustomer", mock.Anything, "cus_org").
		Return(&gateway.Customer{ID: "cus_org"}, nil)

	obj := subscriptionObject("sub_org", "cus_org", "trialing", "price_pro")
	obj["metadata"] = map[string]string{"organizationId": "org1"}
	obj["customer"] = map[string]any{"id": "cus_org", "object": "customer"}

	assertReceived(t, deliver(h.handler, event(t, "evt_upd", "customer.subscription.updated", obj)))

	sub, err := h.ledger.GetSubscription(ctx, subscription.ForOrganization("org1"))
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, plans.Pro, sub.Plan)
	assert.Equal(t, subscription.StatusActive, sub.Status)
}

func TestHandler_SubscriptionFaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(api *gatewaytest.MockAPI)
		obj   func() map[string]any
	}{
		{
			name: "deleted customer",
			setup: func(api *gatewaytest.MockAPI) {
				api.On("GetCustomer", mock.Anything, "cus_1").
					Return(&gateway.Customer{ID: "cus_1", Deleted: true}, nil)
			},
			obj: func() map[string]any { return subscriptionObject("sub_1", "cus_1", "active", "price_starter") },
		},
		{
			name: "missing customer",
			setup: func(api *gatewaytest.MockAPI) {
				api.On("GetCustomer", mock.Anything, "cus_1").
					Return(nil, &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: 404})
			},
			obj: func() map[string]any { return subscriptionObject("sub_1", "cus_1", "active", "price_starter") },
		},
		{
			name: "stripe unavailable",
			setup: func(api *gatewaytest.MockAPI) {
				api.On("GetCustomer", mock.Anything, "cus_1").
					Return(nil, &stripe.Error{HTTPStatusCode: 503})
			},
			obj: func() map[string]any { return subscriptionObject("sub_1", "cus_1", "active", "price_starter") },
		},
		{
			name: "no owner metadata",
			setup: func(api *gatewaytest.MockAPI) {
				api.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1"}, nil)
			},
			obj: func() map[string]any { return subscriptionObject("sub_1", "cus_1", "active", "price_starter") },
		},
		{
			name: "zero items",
			setup: func(api *gatewaytest.MockAPI) {
				api.On("GetCustomer", mock.Anything, "cus_1").
					Return(&gateway.Customer{ID: "cus_1", Metadata: map[string]string{"userId": "u1"}}, nil)
			},
			obj: func() map[string]any {
				o := subscriptionObject("sub_1", "cus_1", "active", "price_starter")
				o["items"] = map[string]any{"data": []any{}}
				return o
			},
		},
		{
			name: "unknown price",
			setup: func(api *gatewaytest.MockAPI) {
				api.On("GetCustomer", mock.Anything, "cus_1").
					Return(&gateway.Customer{ID: "cus_1", Metadata: map[string]string{"userId": "u1"}}, nil)
			},
			obj: func() map[string]any { return subscriptionObject("sub_1", "cus_1", "active", "price_legacy") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, defaultConfig())
			tt.setup(h.api)

			rec := deliver(h.handler, event(t, "evt_fault", "customer.subscription.created", tt.obj()))
			assertError(t, rec, http.StatusInternalServerError, reconcile.MsgHandlerFailed)
			assert.Zero(t, h.store.Len())
		})
	}
}

func seedSubscription(t *testing.T, ledger subscription.Ledger, sel subscription.Selector, stripeID string) {
	t.Helper()
	_, err := ledger.UpsertSubscription(context.Background(), subscription.UpsertParams{
		Selector:             sel,
		StripeCustomerID:     "cus_seed",
		StripeSubscriptionID: stripeID,
		Plan:                 plans.Starter,
		Status:               subscription.StatusActive,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	})
	require.NoError(t, err)
}

func TestHandler_InvoicePaymentFailed(t *testing.T) {
	t.Parallel()

	shapes := map[string]map[string]any{
		"direct field": {"id": "in_1", "subscription": "sub_x"},
		"expanded subscription": {
			"id":           "in_1",
			"subscription": map[string]any{"id": "sub_x", "object": "subscription"},
		},
		"subscription details": {
			"id":                   "in_1",
			"subscription":         nil,
			"subscription_details": map[string]any{"subscription": "sub_x"},
		},
		"parent subscription details": {
			"id":     "in_1",
			"parent": map[string]any{"subscription_details": map[string]any{"subscription": "sub_x"}},
		},
	}

	for name, obj := range shapes {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, defaultConfig())
			ctx := context.Background()
			seedSubscription(t, h.ledger, subscription.ForUser("u1"), "sub_x")

			payload := event(t, "evt_failed", "invoice.payment_failed", obj)
			assertReceived(t, deliver(h.handler, payload))

			sub, err := h.ledger.GetSubscription(ctx, subscription.ForUser("u1"))
			require.NoError(t, err)
			assert.Equal(t, subscription.StatusPastDue, sub.Status)

			assertReceived(t, deliver(h.handler, payload))
			again, err := h.ledger.GetSubscription(ctx, subscription.ForUser("u1"))
			require.NoError(t, err)
			assert.Equal(t, sub, again)
		})
	}
}

func TestHandler_InvoiceWithoutSubscription(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())

	assertReceived(t, deliver(h.handler, event(t, "evt_paid", "invoice.paid", map[string]any{"id": "in_oneoff"})))
	assertReceived(t, deliver(h.handler, event(t, "evt_failed", "invoice.payment_failed", map[string]any{"id": "in_oneoff"})))
	assert.Zero(t, h.store.Len())
}

func TestHandler_InvoiceForUnknownSubscriptionIsDrift(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())

	rec := deliver(h.handler, event(t, "evt_failed", "invoice.payment_failed", map[string]any{"id": "in_1", "subscription": "sub_unknown"}))
	assertError(t, rec, http.StatusInternalServerError, reconcile.MsgHandlerFailed)
}

func TestHandler_CancelThenInvoicePaidReactivates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	sel := subscription.ForOrganization("org1")
	seedSubscription(t, h.ledger, sel, "sub_org")

	assertReceived(t, deliver(h.handler, event(t, "evt_del", "customer.subscription.deleted",
		subscriptionObject("sub_org", "cus_seed", "canceled", "price_starter"))))

	sub, err := h.ledger.GetSubscription(ctx, sel)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCanceled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)

	assertReceived(t, deliver(h.handler, event(t, "evt_paid", "invoice.paid",
		map[string]any{"id": "in_1", "subscription": "sub_org"})))

	sub, err = h.ledger.GetSubscription(ctx, sel)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Nil(t, sub.CanceledAt)
}

func TestHandler_EventLogShortCircuitsRedelivery(t *testing.T) {
	t.Parallel()
	events := reconcile.NewMemoryEventLog()
	h := newHarness(t, defaultConfig(), reconcile.WithEventLog(events))

	h.api.On("GetCustomer", mock.Anything, "cus_u1").
		Return(&gateway.Customer{ID: "cus_u1", Metadata: map[string]string{"userId": "u1"}}, nil)

	payload := event(t, "evt_once", "customer.subscription.created",
		subscriptionObject("sub_u1", "cus_u1", "active", "price_starter"))

	assertReceived(t, deliver(h.handler, payload))
	assertReceived(t, deliver(h.handler, payload))

	h.api.AssertNumberOfCalls(t, "GetCustomer", 1)
	seen, err := events.Seen(context.Background(), "evt_once")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestHandler_FailedEventIsNotRecorded(t *testing.T) {
	t.Parallel()
	events := reconcile.NewMemoryEventLog()
	h := newHarness(t, defaultConfig(), reconcile.WithEventLog(events))

	rec := deliver(h.handler, event(t, "evt_retry", "invoice.payment_failed", map[string]any{"id": "in_1", "subscription": "sub_later"}))
	assertError(t, rec, http.StatusInternalServerError, reconcile.MsgHandlerFailed)

	seen, err := events.Seen(context.Background(), "evt_retry")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHandler_ConcurrentRedelivery(t *testing.T) {
	t.Parallel()
	h := newHarness(t, defaultConfig())

	h.api.On("GetCustomer", mock.Anything, "cus_u1").
		Return(&gateway.Customer{ID: "cus_u1", Metadata: map[string]string{"userId": "u1"}}, nil)

	payload := event(t, "evt_concurrent", "customer.subscription.created",
		subscriptionObject("sub_u1", "cus_u1", "past_due", "price_pro"))

	var wg sync.WaitGroup
	codes := make([]int, 10)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = deliver(h.handler, payload).Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, 1, h.store.Len())

	sub, err := h.ledger.GetSubscription(context.Background(), subscription.ForUser("u1"))
	require.NoError(t, err)
	assert.Equal(t, plans.Pro, sub.Plan)
	assert.Equal(t, subscription.StatusPastDue, sub.Status)
}
