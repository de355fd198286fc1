package app

// AllocationError reports a matching failure the caller can recover from:
// insufficient lots, malformed manual pairs, a non-sell transaction, or a lot
// race lost at commit time. The commit path guarantees no partial state survives
// an AllocationError.
type AllocationError struct {
	Reason string
}

func (e *AllocationError) Error() string { return e.Reason }

// ForecastError reports invalid forecast inputs: no lots for the security,
// insufficient available quantity, or non-positive quantity/price.
type ForecastError struct {
	Reason string
}

func (e *ForecastError) Error() string { return e.Reason }
