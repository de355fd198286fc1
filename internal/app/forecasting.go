package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cgtTracker/internal/domain"
	"cgtTracker/internal/ports"
)

// ForecastService simulates CGT outcomes for hypothetical sells. It runs the
// real allocation engine against a synthetic, unpersisted sell transaction for
// each automatic strategy and never touches the commit path, so previewing a
// sell has zero effect on stored state and confirming the same sell later
// produces numerically identical figures.
type ForecastService struct {
	logger  ports.Logger
	parcels ports.ParcelRepository
	matcher *MatchingService
}

// NewForecastService creates the forecasting engine.
func NewForecastService(logger ports.Logger, parcels ports.ParcelRepository, matcher *MatchingService) (*ForecastService, error) {
	if logger == nil || parcels == nil || matcher == nil {
		return nil, fmt.Errorf("missing required dependencies for ForecastService")
	}
	return &ForecastService{logger: logger, parcels: parcels, matcher: matcher}, nil
}

// Forecast compares earliest-first, latest-first and highest-cost-first outcomes
// for selling quantity units of a security at sellPrice (AUD) on sellDate.
//
// Fails with *ForecastError if quantity or price is not positive, the security
// has no available lots, or the available quantity cannot cover the request.
func (s *ForecastService) Forecast(ctx context.Context, security *domain.Security, quantity, sellPrice decimal.Decimal, sellDate time.Time) (*domain.ForecastReport, error) {
	if !quantity.IsPositive() {
		return nil, &ForecastError{Reason: "quantity must be positive"}
	}
	if !sellPrice.IsPositive() {
		return nil, &ForecastError{Reason: "sell price must be positive"}
	}

	available, err := s.parcels.AvailableBySecurity(ctx, security.ID, ports.ByAcquisitionAsc)
	if err != nil {
		return nil, fmt.Errorf("failed to load available parcels: %w", err)
	}
	if len(available) == 0 {
		return nil, &ForecastError{Reason: fmt.Sprintf("no available parcels for %s", security.Ticker)}
	}

	totalAvailable := decimal.Zero
	for _, p := range available {
		totalAvailable = totalAvailable.Add(p.RemainingQuantity)
	}
	if totalAvailable.LessThan(quantity) {
		return nil, &ForecastError{Reason: fmt.Sprintf(
			"insufficient parcels: need %s units, only %s available for %s",
			quantity, totalAvailable, security.Ticker)}
	}

	// Synthetic sell: unpersisted, price assumed already in AUD (fx = 1).
	sell := &domain.Transaction{
		SecurityID:   security.ID,
		TradeDate:    sellDate,
		Type:         domain.Sell,
		Quantity:     quantity,
		UnitPrice:    sellPrice,
		Brokerage:    decimal.Zero,
		TotalValue:   quantity.Mul(sellPrice),
		Currency:     "AUD",
		ExchangeRate: decimal.NewFromInt(1),
	}

	report := &domain.ForecastReport{
		Ticker:    security.Ticker,
		Quantity:  quantity,
		SellPrice: sellPrice,
		SellDate:  sellDate,
	}
	for _, strategy := range []domain.Strategy{domain.EarliestFirst, domain.LatestFirst, domain.HighestCostFirst} {
		result, err := s.simulate(ctx, sell, strategy)
		if err != nil {
			return nil, err
		}
		switch strategy {
		case domain.EarliestFirst:
			report.EarliestFirst = result
		case domain.LatestFirst:
			report.LatestFirst = result
		case domain.HighestCostFirst:
			report.HighestCostFirst = result
		}
	}

	s.logger.Debug(ctx, "Forecast computed", map[string]interface{}{
		"ticker":   security.Ticker,
		"quantity": quantity.String(),
	})
	return report, nil
}

// simulate runs the allocation engine for one strategy and aggregates totals.
func (s *ForecastService) simulate(ctx context.Context, sell *domain.Transaction, strategy domain.Strategy) (*domain.StrategyForecast, error) {
	proposed, err := s.matcher.Allocate(ctx, sell, strategy, nil)
	if err != nil {
		return nil, err
	}

	result := &domain.StrategyForecast{
		Strategy:          strategy,
		Allocations:       proposed,
		TotalCostBase:     decimal.Zero,
		TotalProceeds:     decimal.Zero,
		TotalGainLoss:     decimal.Zero,
		TotalDiscount:     decimal.Zero,
		TotalNetGain:      decimal.Zero,
		QuantityMatched:   decimal.Zero,
		QuantityShortfall: decimal.Zero,
	}
	for _, pa := range proposed {
		result.TotalCostBase = result.TotalCostBase.Add(pa.CostBase)
		result.TotalProceeds = result.TotalProceeds.Add(pa.Proceeds)
		result.TotalGainLoss = result.TotalGainLoss.Add(pa.GainLoss)
		result.TotalDiscount = result.TotalDiscount.Add(pa.DiscountAmount)
		result.TotalNetGain = result.TotalNetGain.Add(pa.NetGain)
		result.QuantityMatched = result.QuantityMatched.Add(pa.MatchedQuantity)
	}
	result.QuantityShortfall = sell.Quantity.Sub(result.QuantityMatched)
	return result, nil
}
