package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cgtTracker/internal/domain"
)

func newTestForecaster(t *testing.T, store *fakeLotStore) (*ForecastService, *MatchingService) {
	t.Helper()
	matcher := newTestMatcher(t, store)
	svc, err := NewForecastService(&mockLogger{}, store, matcher)
	require.NoError(t, err)
	return svc, matcher
}

func testSecurity() *domain.Security {
	return &domain.Security{ID: 7, Ticker: "VAS", Exchange: domain.ExchangeASX, Currency: "AUD", AssetType: domain.AssetETF}
}

func TestForecast_ComparesStrategies(t *testing.T) {
	store := threeLotStore()
	svc, _ := newTestForecaster(t, store)

	report, err := svc.Forecast(context.Background(), testSecurity(),
		dec(t, "60"), dec(t, "25.00"), day(2025, time.March, 1))
	require.NoError(t, err)

	assert.Equal(t, "VAS", report.Ticker)
	require.NotNil(t, report.EarliestFirst)
	require.NotNil(t, report.LatestFirst)
	require.NotNil(t, report.HighestCostFirst)

	// Earliest-first: 30 @ 12.00 + 30 @ 20.00 against a 25.00 sell.
	ef := report.EarliestFirst
	assert.Equal(t, domain.EarliestFirst, ef.Strategy)
	assert.Equal(t, "960", ef.TotalCostBase.String())
	assert.Equal(t, "1500", ef.TotalProceeds.String())
	assert.Equal(t, "540", ef.TotalGainLoss.String())
	assert.Equal(t, "60", ef.QuantityMatched.String())
	assert.True(t, ef.QuantityShortfall.IsZero())

	// Highest-cost-first consumes the expensive lot 2 whole.
	hc := report.HighestCostFirst
	assert.Equal(t, "1150", hc.TotalCostBase.String())
	assert.Equal(t, "350", hc.TotalGainLoss.String())

	// Totals always reconcile: gain = proceeds - cost base.
	for _, result := range report.Results() {
		assert.True(t, result.TotalProceeds.Sub(result.TotalCostBase).Equal(result.TotalGainLoss),
			"strategy %s totals do not reconcile", result.Strategy)
	}

	// Forecasting never mutates lot state.
	assert.Equal(t, "30", store.parcel(1).RemainingQuantity.String())
	assert.Equal(t, "50", store.parcel(2).RemainingQuantity.String())
	assert.Equal(t, "40", store.parcel(3).RemainingQuantity.String())
	assert.Empty(t, store.allocations)
}

// A forecast and a later commit of the same sell must report identical figures.
func TestForecast_MatchesCommittedOutcome(t *testing.T) {
	store := threeLotStore()
	svc, matcher := newTestForecaster(t, store)
	ctx := context.Background()
	date := day(2025, time.March, 1)

	report, err := svc.Forecast(ctx, testSecurity(), dec(t, "60"), dec(t, "25.00"), date)
	require.NoError(t, err)

	sell := sellTxn(500, 7, "60", "25.00", date)
	proposed, err := matcher.Allocate(ctx, sell, domain.EarliestFirst, nil)
	require.NoError(t, err)
	committed, err := matcher.Commit(ctx, sell, proposed)
	require.NoError(t, err)
	require.Len(t, committed, len(report.EarliestFirst.Allocations))

	for i, forecast := range report.EarliestFirst.Allocations {
		assert.Equal(t, forecast.CostBase.String(), committed[i].CostBase.String())
		assert.Equal(t, forecast.Proceeds.String(), committed[i].Proceeds.String())
		assert.Equal(t, forecast.GainLoss.String(), committed[i].GainLoss.String())
		assert.Equal(t, forecast.DiscountAmount.String(), committed[i].DiscountAmount.String())
		assert.Equal(t, forecast.NetGain.String(), committed[i].NetGain.String())
	}
}

func TestForecast_Validation(t *testing.T) {
	store := threeLotStore()
	svc, _ := newTestForecaster(t, store)
	ctx := context.Background()
	date := day(2025, time.March, 1)

	tests := []struct {
		name     string
		security *domain.Security
		quantity string
		price    string
		want     string
	}{
		{"zero quantity", testSecurity(), "0", "25.00", "quantity must be positive"},
		{"negative price", testSecurity(), "10", "-1", "price must be positive"},
		{"no lots", &domain.Security{ID: 99, Ticker: "NDQ"}, "10", "25.00", "no available parcels"},
		{"insufficient lots", testSecurity(), "500", "25.00", "insufficient parcels"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Forecast(ctx, tt.security, dec(t, tt.quantity), dec(t, tt.price), date)
			var fcErr *ForecastError
			require.ErrorAs(t, err, &fcErr)
			assert.Contains(t, fcErr.Reason, tt.want)
		})
	}
}
