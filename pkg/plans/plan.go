package plans

import (
	"fmt"
	"strings"
)

// Plan is a subscription tier.
type Plan string

const (
	Free       Plan = "FREE"
	Starter    Plan = "STARTER"
	Pro        Plan = "PRO"
	Enterprise Plan = "ENTERPRISE"
)

// All lists the tiers from lowest to highest.
var All = []Plan{Free, Starter, Pro, Enterprise}

// ParsePlan accepts a tier name in any letter case.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return p, nil
}

// Valid reports whether p is one of the four tiers.
func (p Plan) Valid() bool {
	return p.rank() >= 0
}

func (p Plan) String() string { return string(p) }

// rank orders tiers; -1 for unknown values.
func (p Plan) rank() int {
	switch p {
	case Free:
		return 0
	case Starter:
		return 1
	case Pro:
		return 2
	case Enterprise:
		return 3
	default:
		return -1
	}
}
