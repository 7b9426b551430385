package plans

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Metric is a metered usage dimension.
type Metric string

const (
	MetricComputeHours  Metric = "COMPUTE_HOURS"
	MetricMemoryGBHours Metric = "MEMORY_GB_HOURS"
	MetricBandwidthGB   Metric = "BANDWIDTH_GB"
	MetricStorageGB     Metric = "STORAGE_GB"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{MetricComputeHours, MetricMemoryGBHours, MetricBandwidthGB, MetricStorageGB}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricComputeHours, MetricMemoryGBHours, MetricBandwidthGB, MetricStorageGB:
		return true
	}
	return false
}

// microsPerUnit converts Money.Amount to whole currency units.
const microsPerUnit = 1_000_000

// Money is an amount in millionths of the currency unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Float returns the amount in whole currency units.
func (m Money) Float() float64 {
	return float64(m.Amount) / microsPerUnit
}

// Format renders m for the given locale, e.g. "$ 0.02" for English.
func (m Money) Format(tag language.Tag) string {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		unit = currency.USD
	}
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(m.Float())))
}

// Enterprise usage is billed by contract and priced at zero here.
var unitPrices = map[Plan]map[Metric]int64{
	Free: {},
	Starter: {
		MetricComputeHours:  20_000,
		MetricMemoryGBHours: 5_000,
		MetricBandwidthGB:   90_000,
		MetricStorageGB:     100_000,
	},
	Pro: {
		MetricComputeHours:  15_000,
		MetricMemoryGBHours: 4_000,
		MetricBandwidthGB:   70_000,
		MetricStorageGB:     80_000,
	},
	Enterprise: {},
}

// UnitPrice returns the USD price of one unit of m on plan p. The free tier
// does not bill usage.
func UnitPrice(p Plan, m Metric) Money {
	if !p.Valid() {
		panic("plans: unit price requested for unknown plan " + string(p))
	}
	return Money{Amount: unitPrices[p][m], Currency: "USD"}
}
