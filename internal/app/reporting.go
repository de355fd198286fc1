package app

import (
	"context"
	"fmt"
	"sort"

	"cgtTracker/internal/cgt"
	"cgtTracker/internal/domain"
	"cgtTracker/internal/ports"
)

// ReportingService aggregates committed allocations by Australian financial year.
type ReportingService struct {
	logger      ports.Logger
	allocations ports.AllocationRepository
}

// NewReportingService creates the financial-year aggregator.
func NewReportingService(logger ports.Logger, allocations ports.AllocationRepository) (*ReportingService, error) {
	if logger == nil || allocations == nil {
		return nil, fmt.Errorf("missing required dependencies for ReportingService")
	}
	return &ReportingService{logger: logger, allocations: allocations}, nil
}

// Summarize aggregates all committed allocations whose sell trade date falls in
// the given financial year (Jul 1 year-1 through Jun 30 year, both inclusive).
// Gains and losses are accumulated separately by the sign of the gross gain;
// discounts and net gain are summed regardless of sign. The per-security
// breakdown is sorted by ticker.
func (s *ReportingService) Summarize(ctx context.Context, year int) (*domain.FYSummary, error) {
	start, end := cgt.FinancialYearRange(year)

	allocs, err := s.allocations.AllocationsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations for FY%d: %w", year, err)
	}

	summary := &domain.FYSummary{
		Year:       year,
		Label:      cgt.FinancialYearLabel(year),
		Start:      start,
		End:        end,
		MatchCount: len(allocs),
	}
	perSecurity := make(map[string]*domain.SecuritySummary)

	for _, a := range allocs {
		sec, ok := perSecurity[a.Ticker]
		if !ok {
			sec = &domain.SecuritySummary{Ticker: a.Ticker}
			perSecurity[a.Ticker] = sec
		}

		if a.GainLoss.IsPositive() {
			summary.Gains = summary.Gains.Add(a.GainLoss)
			sec.Gains = sec.Gains.Add(a.GainLoss)
		} else {
			summary.Losses = summary.Losses.Add(a.GainLoss)
			sec.Losses = sec.Losses.Add(a.GainLoss)
		}
		summary.Discounts = summary.Discounts.Add(a.DiscountAmount)
		summary.NetGain = summary.NetGain.Add(a.NetGain)
		sec.Discounts = sec.Discounts.Add(a.DiscountAmount)
		sec.Net = sec.Net.Add(a.NetGain)
		sec.MatchCount++
	}

	summary.PerSecurity = make([]domain.SecuritySummary, 0, len(perSecurity))
	for _, sec := range perSecurity {
		summary.PerSecurity = append(summary.PerSecurity, *sec)
	}
	sort.Slice(summary.PerSecurity, func(i, j int) bool {
		return summary.PerSecurity[i].Ticker < summary.PerSecurity[j].Ticker
	})

	s.logger.Debug(ctx, "Financial year summarized", map[string]interface{}{
		"year":    year,
		"matches": summary.MatchCount,
	})
	return summary, nil
}
