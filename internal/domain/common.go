package domain

import "fmt"

// TransactionType represents the direction of a trade (BUY or SELL).
type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// Exchange is the listing venue of a security.
type Exchange string

const (
	ExchangeASX    Exchange = "ASX"
	ExchangeNYSE   Exchange = "NYSE"
	ExchangeNASDAQ Exchange = "NASDAQ"
)

// AssetType classifies a security.
type AssetType string

const (
	AssetShare AssetType = "SHARE"
	AssetETF   AssetType = "ETF"
)

// Strategy selects how parcels are consumed when matching a sell.
type Strategy int

const (
	// EarliestFirst consumes the oldest parcels first.
	EarliestFirst Strategy = iota
	// LatestFirst consumes the newest parcels first.
	LatestFirst
	// HighestCostFirst consumes the most expensive parcels first, minimising the gain.
	HighestCostFirst
	// Manual uses caller-supplied parcel/quantity pairs.
	Manual
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case EarliestFirst:
		return "earliest-first"
	case LatestFirst:
		return "latest-first"
	case HighestCostFirst:
		return "highest-cost-first"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a string (e.g. a CLI flag value) to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "earliest-first", "fifo":
		return EarliestFirst, nil
	case "latest-first", "lifo":
		return LatestFirst, nil
	case "highest-cost-first":
		return HighestCostFirst, nil
	case "manual":
		return Manual, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
}
