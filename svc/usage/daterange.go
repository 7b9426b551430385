package usage

import (
	"strings"
	"time"
)

// DefaultRange is the window used when a caller gives no dates.
const DefaultRange = 30 * 24 * time.Hour

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"periodStart"`
	End   time.Time `json:"periodEnd"`
}

// ParseDateRange parses user supplied ISO-8601 bounds and validates them
// against now. A missing end means now; a missing start means DefaultRange
// before the end. Either bound failing to parse yields MsgInvalidDate.
func ParseDateRange(startRaw, endRaw string, now time.Time) (DateRange, error) {
	now = now.UTC()

	var start, end time.Time
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw != "" {
		t, ok := parseTime(startRaw)
		if !ok {
			return DateRange{}, invalid(MsgInvalidDate)
		}
		start = t
	}
	if endRaw != "" {
		t, ok := parseTime(endRaw)
		if !ok {
			return DateRange{}, invalid(MsgInvalidDate)
		}
		end = t
	}

	r := DateRange{Start: start, End: end}
	if endRaw == "" {
		r.End = now
	}
	if startRaw == "" {
		r.Start = r.End.Add(-DefaultRange)
	}

	if err := r.Validate(now); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks ordering, the future bound and the one year span, in that
// order.
func (r DateRange) Validate(now time.Time) error {
	if !r.Start.Before(r.End) {
		return invalid(MsgStartAfterEnd)
	}
	if r.End.After(now) {
		return invalid(MsgEndInFuture)
	}
	if r.End.After(r.Start.AddDate(1, 0, 0)) {
		return invalid(MsgRangeTooLong)
	}
	return nil
}

// Contains reports whether t lies in [Start, End).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

var layouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// calendarMonth returns the UTC month containing t.
func calendarMonth(t time.Time) DateRange {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}
}
