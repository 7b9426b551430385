package plans

import (
	"fmt"
	"sort"
)

// Unlimited marks a resource without an upper bound.
const Unlimited int64 = -1

// Resource names a quota-limited resource.
type Resource string

const (
	ResourceServices  Resource = "services"
	ResourceMemoryMB  Resource = "memory_mb"
	ResourceCPUCores  Resource = "cpu_cores"
	ResourceBandwidth Resource = "bandwidth_gb"
	ResourceStorage   Resource = "storage_gb"
)

// Resources lists every limited resource in display order.
var Resources = []Resource{ResourceServices, ResourceMemoryMB, ResourceCPUCores, ResourceBandwidth, ResourceStorage}

// ResourceLimits are the entitlements derived from a plan. A field equal to
// Unlimited has no bound.
type ResourceLimits struct {
	MaxServices    int64 `json:"maxServices"`
	MaxMemoryMB    int64 `json:"maxMemoryMB"`
	MaxCPUCores    int64 `json:"maxCPUCores"`
	MaxBandwidthGB int64 `json:"maxBandwidthGB"`
	MaxStorageGB   int64 `json:"maxStorageGB"`
}

var catalog = map[Plan]ResourceLimits{
	Free:    {MaxServices: 1, MaxMemoryMB: 512, MaxCPUCores: 1, MaxBandwidthGB: 10, MaxStorageGB: 1},
	Starter: {MaxServices: 5, MaxMemoryMB: 2048, MaxCPUCores: 2, MaxBandwidthGB: 100, MaxStorageGB: 10},
	Pro:     {MaxServices: 20, MaxMemoryMB: 8192, MaxCPUCores: 8, MaxBandwidthGB: 1000, MaxStorageGB: 100},
	Enterprise: {
		MaxServices:    Unlimited,
		MaxMemoryMB:    Unlimited,
		MaxCPUCores:    Unlimited,
		MaxBandwidthGB: Unlimited,
		MaxStorageGB:   Unlimited,
	},
}

// Limits returns the entitlements of p. It panics for a value outside the
// four tiers; callers validate user input with ParsePlan first.
func Limits(p Plan) ResourceLimits {
	l, ok := catalog[p]
	if !ok {
		panic(fmt.Sprintf("plans: limits requested for unknown plan %q", string(p)))
	}
	return l
}

// Get returns the bound for r.
func (l ResourceLimits) Get(r Resource) (int64, error) {
	switch r {
	case ResourceServices:
		return l.MaxServices, nil
	case ResourceMemoryMB:
		return l.MaxMemoryMB, nil
	case ResourceCPUCores:
		return l.MaxCPUCores, nil
	case ResourceBandwidth:
		return l.MaxBandwidthGB, nil
	case ResourceStorage:
		return l.MaxStorageGB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownResource, r)
}

// Check reports ErrLimitExceeded when adding delta to used would go past the
// bound for r.
func Check(l ResourceLimits, r Resource, used, delta int64) error {
	limit, err := l.Get(r)
	if err != nil {
		return err
	}
	if limit == Unlimited {
		return nil
	}
	if used+delta > limit {
		return fmt.Errorf("%w: %s %d/%d", ErrLimitExceeded, r, used+delta, limit)
	}
	return nil
}

// Change is a limit that differs between two plans.
type Change struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Comparison lists the resources whose limits grow or shrink when moving
// from one plan to another.
type Comparison struct {
	Increased map[Resource]Change
	Decreased map[Resource]Change
}

// IsDowngrade reports whether any limit shrinks.
func (c Comparison) IsDowngrade() bool {
	return len(c.Decreased) > 0
}

// DecreasedResources returns the shrinking resources sorted by name.
func (c Comparison) DecreasedResources() []Resource {
	out := make([]Resource, 0, len(c.Decreased))
	for r := range c.Decreased {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Compare diffs the limits of two valid plans.
func Compare(current, target Plan) Comparison {
	from, to := Limits(current), Limits(target)
	c := Comparison{
		Increased: make(map[Resource]Change),
		Decreased: make(map[Resource]Change),
	}
	for _, r := range Resources {
		a, _ := from.Get(r)
		b, _ := to.Get(r)
		switch {
		case a == b:
		case below(a, b):
			c.Increased[r] = Change{From: a, To: b}
		default:
			c.Decreased[r] = Change{From: a, To: b}
		}
	}
	return c
}

// below orders bounds with Unlimited above every finite value.
func below(a, b int64) bool {
	if a == Unlimited {
		return false
	}
	if b == Unlimited {
		return true
	}
	return a < b
}
