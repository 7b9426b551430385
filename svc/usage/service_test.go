package usage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
	"github.com/dmitrymomot/billingd/svc/usage"
)

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) ReportUsage(ctx context.Context, r gateway.UsageReport) error {
	return m.Called(ctx, r).Error(0)
}

type fixture struct {
	svc    usage.Service
	store  *usage.MemoryStore
	dir    *usage.MemoryDirectory
	ledger subscription.Ledger
}

func newFixture(t *testing.T, opts ...usage.Option) fixture {
	t.Helper()
	clock := func() time.Time { return now }
	ledger := subscription.NewLedger(subscription.NewMemoryStore(), subscription.WithClock(clock))
	store := usage.NewMemoryStore()
	dir := usage.NewMemoryDirectory()
	opts = append([]usage.Option{usage.WithClock(clock)}, opts...)
	return fixture{
		svc:    usage.NewService(store, ledger, dir, opts...),
		store:  store,
		dir:    dir,
		ledger: ledger,
	}
}

func TestNewService_PanicsOnNilDependencies(t *testing.T) {
	t.Parallel()
	ledger := subscription.NewLedger(subscription.NewMemoryStore())
	assert.Panics(t, func() { usage.NewService(nil, ledger, usage.NewMemoryDirectory()) })
	assert.Panics(t, func() { usage.NewService(usage.NewMemoryStore(), nil, usage.NewMemoryDirectory()) })
	assert.Panics(t, func() { usage.NewService(usage.NewMemoryStore(), ledger, nil) })
}

func TestRecordUsage_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := map[string]usage.RecordParams{
		"negative quantity": {ServiceID: "svc_1", Metric: usage.ComputeHours, Quantity: -1},
		"NaN quantity":      {ServiceID: "svc_1", Metric: usage.ComputeHours, Quantity: math.NaN()},
		"unknown metric":    {ServiceID: "svc_1", Metric: "GPU_HOURS", Quantity: 1},
		"missing service":   {Metric: usage.ComputeHours, Quantity: 1},
		"half period":       {ServiceID: "svc_1", Metric: usage.ComputeHours, Quantity: 1, PeriodStart: now},
		"inverted period": {
			ServiceID: "svc_1", Metric: usage.ComputeHours, Quantity: 1,
			PeriodStart: now, PeriodEnd: now.Add(-time.Hour),
		},
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.RecordUsage(ctx, p)
			require.Error(t, err)
			assert.True(t, usage.IsInvalidArgument(err))
		})
	}
	assert.Empty(t, f.store.Records())
}

func TestRecordUsage_Defaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown owner uses the calendar month", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec, err := f.svc.RecordUsage(ctx, usage.RecordParams{ServiceID: "svc_orphan", Metric: usage.StorageGB, Quantity: 3})
		require.NoError(t, err)
		assert.Equal(t, now, rec.Timestamp)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), rec.PeriodStart)
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), rec.PeriodEnd)
	})

	t.Run("owner period from the ledger", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sel := subscription.ForOrganization("org1")
		f.dir.Register("svc_1", sel)

		start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		_, err := f.ledger.UpsertSubscription(ctx, subscription.UpsertParams{
			Selector:             sel,
			StripeSubscriptionID: "sub_1",
			Plan:                 plans.Pro,
			Status:               subscription.StatusActive,
			CurrentPeriodStart:   start,
			CurrentPeriodEnd:     start.AddDate(0, 1, 0),
		})
		require.NoError(t, err)

		rec, err := f.svc.RecordUsage(ctx, usage.RecordParams{ServiceID: "svc_1", Metric: usage.ComputeHours, Quantity: 1.5})
		require.NoError(t, err)
		assert.Equal(t, start, rec.PeriodStart)
		assert.Equal(t, start.AddDate(0, 1, 0), rec.PeriodEnd)
		assert.Len(t, f.store.Records(), 1)
	})

	t.Run("organization without subscription uses the calendar month", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.dir.Register("svc_2", subscription.ForOrganization("org-free"))

		rec, err := f.svc.RecordUsage(ctx, usage.RecordParams{ServiceID: "svc_2", Metric: usage.BandwidthGB, Quantity: 0})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), rec.PeriodStart)
	})
}

func TestGetAggregatedUsage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	owner := subscription.ForUser("u1")
	other := subscription.ForUser("u2")
	f.dir.Register("svc_a", owner)
	f.dir.Register("svc_b", owner)
	f.dir.Register("svc_c", other)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	record := func(service string, m usage.Metric, q float64, at time.Time) {
		_, err := f.svc.RecordUsage(ctx, usage.RecordParams{ServiceID: service, Metric: m, Quantity: q, Timestamp: at})
		require.NoError(t, err)
	}
	record("svc_a", usage.ComputeHours, 2, start)
	record("svc_b", usage.ComputeHours, 3.5, start.Add(time.Hour))
	record("svc_a", usage.StorageGB, 10, start.Add(48*time.Hour))
	record("svc_a", usage.ComputeHours, 100, end)
	record("svc_c", usage.ComputeHours, 7, start.Add(time.Hour))

	got, err := f.svc.GetAggregatedUsage(ctx, usage.AggregateParams{Selector: owner, PeriodStart: start, PeriodEnd: end})
	require.NoError(t, err)
	assert.Equal(t, []usage.Summary{
		{Metric: usage.ComputeHours, Quantity: 5.5},
		{Metric: usage.StorageGB, Quantity: 10},
	}, got)

	got, err = f.svc.GetServiceUsage(ctx, "svc_c", start, end)
	require.NoError(t, err)
	assert.Equal(t, []usage.Summary{{Metric: usage.ComputeHours, Quantity: 7}}, got)

	got, err = f.svc.GetAggregatedUsage(ctx, usage.AggregateParams{
		Selector: subscription.ForOrganization("no-services"), PeriodStart: start, PeriodEnd: end,
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = f.svc.GetAggregatedUsage(ctx, usage.AggregateParams{PeriodStart: start, PeriodEnd: end})
	assert.True(t, usage.IsInvalidArgument(err))

	_, err = f.svc.GetServiceUsage(ctx, "svc_a", end, start)
	assert.EqualError(t, err, "periodStart must be before periodEnd")
}

func TestReportUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("negative quantity never reaches the gateway", func(t *testing.T) {
		t.Parallel()
		reporter := &mockReporter{}
		f := newFixture(t, usage.WithReporter(reporter))

		err := f.svc.ReportUsage(ctx, usage.ReportParams{CustomerID: "cus_1", Quantity: -50})
		require.Error(t, err)
		assert.EqualError(t, err, "Quantity must be a non-negative number")
		assert.True(t, usage.IsInvalidArgument(err))
		reporter.AssertNotCalled(t, "ReportUsage", mock.Anything, mock.Anything)
	})

	t.Run("resolves customer from the ledger", func(t *testing.T) {
		t.Parallel()
		reporter := &mockReporter{}
		f := newFixture(t, usage.WithReporter(reporter))
		sel := subscription.ForUser("u1")
		require.NoError(t, f.ledger.AttachStripeCustomer(ctx, sel, "cus_u1"))

		reporter.On("ReportUsage", mock.Anything, gateway.UsageReport{CustomerID: "cus_u1", Quantity: 100.7}).Return(nil).Once()

		require.NoError(t, f.svc.ReportUsage(ctx, usage.ReportParams{Selector: sel, Quantity: 100.7}))
		reporter.AssertExpectations(t)
	})

	t.Run("owner without customer", func(t *testing.T) {
		t.Parallel()
		reporter := &mockReporter{}
		f := newFixture(t, usage.WithReporter(reporter))

		err := f.svc.ReportUsage(ctx, usage.ReportParams{Selector: subscription.ForUser("u-new"), Quantity: 1})
		assert.ErrorIs(t, err, usage.ErrNoStripeCustomer)
		reporter.AssertNotCalled(t, "ReportUsage", mock.Anything, mock.Anything)
	})

	t.Run("reporting disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		err := f.svc.ReportUsage(ctx, usage.ReportParams{CustomerID: "cus_1", Quantity: 1})
		assert.ErrorIs(t, err, usage.ErrReportingDisabled)
	})
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	summaries := []usage.Summary{
		{Metric: usage.ComputeHours, Quantity: 10},
		{Metric: usage.StorageGB, Quantity: 2.5},
	}

	items := usage.EstimateCost(summaries, plans.Starter)
	require.Len(t, items, 2)
	assert.Equal(t, plans.UnitPrice(plans.Starter, usage.ComputeHours), items[0].UnitPrice)
	assert.Equal(t, 10*plans.UnitPrice(plans.Starter, usage.ComputeHours).Amount, items[0].Total.Amount)

	for _, item := range usage.EstimateCost(summaries, plans.Free) {
		assert.Zero(t, item.Total.Amount)
	}

	f := newFixture(t)
	items, err := f.svc.EstimateCost(context.Background(), subscription.ForOrganization("missing"), summaries)
	require.NoError(t, err)
	for _, item := range items {
		assert.Zero(t, item.Total.Amount)
	}
}
