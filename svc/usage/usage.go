package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingd/pkg/plans"
)

// Metric is a metered dimension. The catalog in package plans owns the values.
type Metric = plans.Metric

const (
	ComputeHours  = plans.MetricComputeHours
	MemoryGBHours = plans.MetricMemoryGBHours
	BandwidthGB   = plans.MetricBandwidthGB
	StorageGB     = plans.MetricStorageGB
)

// Record is one usage fact. It is never modified after insertion.
type Record struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   string    `json:"serviceId"`
	Metric      Metric    `json:"metric"`
	Quantity    float64   `json:"quantity"`
	Timestamp   time.Time `json:"timestamp"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

// Summary is the total quantity of one metric.
type Summary struct {
	Metric   Metric  `json:"metric"`
	Quantity float64 `json:"quantity"`
}

// LineItem is the estimated charge for one metric.
type LineItem struct {
	Metric    Metric      `json:"metric"`
	Quantity  float64     `json:"quantity"`
	UnitPrice plans.Money `json:"unitPrice"`
	Total     plans.Money `json:"total"`
}
