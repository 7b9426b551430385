package plans

import "errors"

var (
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrUnknownResource = errors.New("unknown resource")
	ErrLimitExceeded   = errors.New("plan limit exceeded")
	ErrInvalidPriceMap = errors.New("invalid price table")
)
