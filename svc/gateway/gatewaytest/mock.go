// Package gatewaytest provides a testify mock of the gateway's remote API.
package gatewaytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/billingd/svc/gateway"
)

// MockAPI implements gateway.API.
type MockAPI struct {
	mock.Mock
}

var _ gateway.API = (*MockAPI)(nil)

func (m *MockAPI) CreateCustomer(ctx context.Context, p gateway.CustomerParams) (*gateway.Customer, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Customer), args.Error(1)
}

func (m *MockAPI) GetCustomer(ctx context.Context, id string) (*gateway.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Customer), args.Error(1)
}

func (m *MockAPI) GetSubscription(ctx context.Context, id string) (*gateway.RemoteSubscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RemoteSubscription), args.Error(1)
}

func (m *MockAPI) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*gateway.RemoteSubscription, error) {
	args := m.Called(ctx, customerID, priceID, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RemoteSubscription), args.Error(1)
}

func (m *MockAPI) UpdateSubscriptionItemPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*gateway.RemoteSubscription, error) {
	args := m.Called(ctx, subscriptionID, itemID, priceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RemoteSubscription), args.Error(1)
}

func (m *MockAPI) CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*gateway.RemoteSubscription, error) {
	args := m.Called(ctx, id, atPeriodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RemoteSubscription), args.Error(1)
}

func (m *MockAPI) CreateCheckoutSession(ctx context.Context, p gateway.CheckoutParams) (*gateway.Session, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *MockAPI) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*gateway.Session, error) {
	args := m.Called(ctx, customerID, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *MockAPI) ListInvoices(ctx context.Context, customerID string, limit int64) ([]gateway.Invoice, error) {
	args := m.Called(ctx, customerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Invoice), args.Error(1)
}

func (m *MockAPI) CreateMeterEvent(ctx context.Context, e gateway.MeterEvent) error {
	return m.Called(ctx, e).Error(0)
}
