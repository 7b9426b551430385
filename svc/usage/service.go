package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/metrics"
	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

// Service records and aggregates usage.
type Service interface {
	RecordUsage(ctx context.Context, params RecordParams) (*Record, error)
	GetAggregatedUsage(ctx context.Context, params AggregateParams) ([]Summary, error)
	GetServiceUsage(ctx context.Context, serviceID string, start, end time.Time) ([]Summary, error)
	ReportUsage(ctx context.Context, params ReportParams) error
	EstimateCost(ctx context.Context, sel subscription.Selector, summaries []Summary) ([]LineItem, error)
}

// Reporter pushes metered quantities to the payment provider.
// *gateway.Gateway implements it.
type Reporter interface {
	ReportUsage(ctx context.Context, report gateway.UsageReport) error
}

// RecordParams describe a usage fact. Zero times are filled in: Timestamp
// with now and the period with the owner's current billing window.
type RecordParams struct {
	ServiceID   string
	Metric      Metric
	Quantity    float64
	Timestamp   time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// AggregateParams select the owner and interval to aggregate.
type AggregateParams struct {
	Selector    subscription.Selector
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// ReportParams describe a metered usage push. CustomerID wins over Selector.
type ReportParams struct {
	Selector   subscription.Selector
	CustomerID string
	Quantity   float64
	Timestamp  time.Time
}

// Option configures the service.
type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithReporter enables ReportUsage.
func WithReporter(r Reporter) Option {
	return func(s *service) { s.reporter = r }
}

type service struct {
	store    Store
	ledger   subscription.Ledger
	dir      ServiceDirectory
	reporter Reporter
	now      func() time.Time
	log      *slog.Logger
}

// NewService panics when a required dependency is nil.
func NewService(store Store, ledger subscription.Ledger, dir ServiceDirectory, opts ...Option) Service {
	if store == nil {
		panic("usage: Store is required")
	}
	if ledger == nil {
		panic("usage: Ledger is required")
	}
	if dir == nil {
		panic("usage: ServiceDirectory is required")
	}
	s := &service{
		store:  store,
		ledger: ledger,
		dir:    dir,
		now:    time.Now,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validQuantity(q float64) bool {
	return !math.IsNaN(q) && !math.IsInf(q, 0) && q >= 0
}

// RecordUsage appends a usage record.
func (s *service) RecordUsage(ctx context.Context, p RecordParams) (*Record, error) {
	if strings.TrimSpace(p.ServiceID) == "" {
		return nil, invalid("serviceId is required")
	}
	if !p.Metric.Valid() {
		return nil, invalid(fmt.Sprintf("Unknown metric %q", string(p.Metric)))
	}
	if !validQuantity(p.Quantity) {
		return nil, invalid(msgNegativeAmount)
	}
	if p.PeriodStart.IsZero() != p.PeriodEnd.IsZero() {
		return nil, invalid("periodStart and periodEnd must be provided together")
	}

	now := s.now().UTC()
	rec := Record{
		ID:          uuid.New(),
		ServiceID:   p.ServiceID,
		Metric:      p.Metric,
		Quantity:    p.Quantity,
		Timestamp:   p.Timestamp.UTC(),
		PeriodStart: p.PeriodStart.UTC(),
		PeriodEnd:   p.PeriodEnd.UTC(),
	}
	if p.Timestamp.IsZero() {
		rec.Timestamp = now
	}

	if p.PeriodStart.IsZero() {
		period, err := s.currentPeriod(ctx, p.ServiceID, rec.Timestamp)
		if err != nil {
			return nil, err
		}
		rec.PeriodStart, rec.PeriodEnd = period.Start, period.End
	} else if !rec.PeriodStart.Before(rec.PeriodEnd) {
		return nil, invalid(MsgStartAfterEnd)
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		s.log.ErrorContext(ctx, "failed to store usage record",
			logger.ServiceID(rec.ServiceID), slog.String("metric", string(rec.Metric)), logger.Error(err))
		return nil, err
	}
	metrics.UsageRecordsTotal.WithLabelValues(string(rec.Metric)).Inc()
	return &rec, nil
}

// currentPeriod resolves the billing window of the service owner, falling
// back to the calendar month of at when the owner or its record is unknown.
func (s *service) currentPeriod(ctx context.Context, serviceID string, at time.Time) (DateRange, error) {
	owner, err := s.dir.OwnerOf(ctx, serviceID)
	if errors.Is(err, ErrServiceNotFound) {
		return calendarMonth(at), nil
	}
	if err != nil {
		return DateRange{}, err
	}

	sub, err := s.ledger.GetSubscription(ctx, owner)
	if err != nil {
		return DateRange{}, err
	}
	if sub == nil {
		return calendarMonth(at), nil
	}
	return DateRange{Start: sub.CurrentPeriodStart, End: sub.CurrentPeriodEnd}, nil
}

// GetAggregatedUsage sums usage of every service the selector owns. An owner
// without services gets an empty slice.
func (s *service) GetAggregatedUsage(ctx context.Context, p AggregateParams) ([]Summary, error) {
	if !p.Selector.Valid() {
		return nil, invalid("Either userId or organizationId must be provided for getAggregatedUsage")
	}
	if !p.PeriodStart.Before(p.PeriodEnd) {
		return nil, invalid(MsgStartAfterEnd)
	}

	ids, err := s.dir.ServicesOf(ctx, p.Selector)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Summary{}, nil
	}
	return s.store.Sum(ctx, ids, p.PeriodStart.UTC(), p.PeriodEnd.UTC())
}

// GetServiceUsage sums usage of one service. Callers check ownership.
func (s *service) GetServiceUsage(ctx context.Context, serviceID string, start, end time.Time) ([]Summary, error) {
	if strings.TrimSpace(serviceID) == "" {
		return nil, invalid("serviceId is required")
	}
	if !start.Before(end) {
		return nil, invalid(MsgStartAfterEnd)
	}
	return s.store.Sum(ctx, []string{serviceID}, start.UTC(), end.UTC())
}

// ReportUsage validates the quantity before anything reaches the gateway.
func (s *service) ReportUsage(ctx context.Context, p ReportParams) error {
	if !validQuantity(p.Quantity) {
		return invalid(msgNegativeAmount)
	}
	if s.reporter == nil {
		return ErrReportingDisabled
	}

	customerID := p.CustomerID
	if customerID == "" {
		if !p.Selector.Valid() {
			return invalid("Either customerId, userId or organizationId must be provided for reportUsage")
		}
		id, err := s.ledger.StripeCustomerID(ctx, p.Selector)
		if err != nil {
			return err
		}
		if id == "" {
			return ErrNoStripeCustomer
		}
		customerID = id
	}

	return s.reporter.ReportUsage(ctx, gateway.UsageReport{
		CustomerID: customerID,
		Quantity:   p.Quantity,
		Timestamp:  p.Timestamp,
	})
}

// EstimateCost prices summaries with the unit prices of the owner's plan.
func (s *service) EstimateCost(ctx context.Context, sel subscription.Selector, summaries []Summary) ([]LineItem, error) {
	plan := plans.Free
	sub, err := s.ledger.GetSubscription(ctx, sel)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		plan = sub.EffectivePlan()
	}
	return EstimateCost(summaries, plan), nil
}

// EstimateCost prices summaries with the unit prices of plan.
func EstimateCost(summaries []Summary, plan plans.Plan) []LineItem {
	items := make([]LineItem, 0, len(summaries))
	for _, sum := range summaries {
		unit := plans.UnitPrice(plan, sum.Metric)
		items = append(items, LineItem{
			Metric:    sum.Metric,
			Quantity:  sum.Quantity,
			UnitPrice: unit,
			Total: plans.Money{
				Amount:   int64(math.Round(sum.Quantity * float64(unit.Amount))),
				Currency: unit.Currency,
			},
		})
	}
	return items
}
