package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FYAllocation is the read model the financial-year aggregator consumes: one
// committed allocation joined with its security ticker and sell date.
type FYAllocation struct {
	Ticker         string
	SellDate       time.Time
	GainLoss       decimal.Decimal
	DiscountAmount decimal.Decimal
	NetGain        decimal.Decimal
}

// SecuritySummary is the per-ticker slice of a financial-year summary.
type SecuritySummary struct {
	Ticker     string
	Gains      decimal.Decimal
	Losses     decimal.Decimal
	Discounts  decimal.Decimal
	Net        decimal.Decimal
	MatchCount int
}

// FYSummary aggregates committed allocations over one Australian financial year
// (Jul 1 of year-1 through Jun 30 of year, both inclusive).
type FYSummary struct {
	Year        int
	Label       string // e.g. "FY2024-25"
	Start       time.Time
	End         time.Time
	Gains       decimal.Decimal // Sum of positive gross gains
	Losses      decimal.Decimal // Sum of negative gross gains (non-positive)
	Discounts   decimal.Decimal
	NetGain     decimal.Decimal
	MatchCount  int
	PerSecurity []SecuritySummary // Sorted by ticker
}

// StrategyForecast is the simulated outcome of one matching strategy for a
// hypothetical sell.
type StrategyForecast struct {
	Strategy          Strategy
	Allocations       []*ProposedAllocation
	TotalCostBase     decimal.Decimal
	TotalProceeds     decimal.Decimal
	TotalGainLoss     decimal.Decimal
	TotalDiscount     decimal.Decimal
	TotalNetGain      decimal.Decimal
	QuantityMatched   decimal.Decimal
	QuantityShortfall decimal.Decimal
}

// ForecastReport compares the three automatic strategies for one hypothetical sell.
type ForecastReport struct {
	Ticker    string
	Quantity  decimal.Decimal
	SellPrice decimal.Decimal // AUD per unit
	SellDate  time.Time

	EarliestFirst    *StrategyForecast
	LatestFirst      *StrategyForecast
	HighestCostFirst *StrategyForecast
}

// Results returns the strategy forecasts in a fixed presentation order.
func (r *ForecastReport) Results() []*StrategyForecast {
	return []*StrategyForecast{r.EarliestFirst, r.LatestFirst, r.HighestCostFirst}
}
