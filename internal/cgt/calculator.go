// Package cgt implements the Australian capital gains tax rules applied to a
// single parcel slice.
//
// Rules:
//   - Financial year runs Jul 1 - Jun 30.
//   - 50% CGT discount for holding periods strictly greater than 365 days,
//     applied only to positive gains.
//   - Cost base includes acquisition brokerage, converted to AUD at the buy-side
//     exchange rate (baked into the parcel's cost per unit at creation).
//   - Sell-side brokerage is NOT subtracted from proceeds. The disposal's total
//     value includes it, but the gain calculation never sees it. This matches the
//     rule as actually applied upstream, and reports depend on it staying that way.
package cgt

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cgtTracker/internal/domain"
)

// DiscountHoldingDays is the holding period that must be strictly exceeded for
// discount eligibility. 365 days exactly is not eligible; 366 is.
const DiscountHoldingDays = 365

var discountRate = decimal.RequireFromString("0.5")

// Breakdown is the full CGT outcome for one parcel slice. All amounts are AUD.
type Breakdown struct {
	CostBase         decimal.Decimal
	Proceeds         decimal.Decimal
	GainLoss         decimal.Decimal
	HoldingDays      int
	DiscountEligible bool
	DiscountAmount   decimal.Decimal
	NetGain          decimal.Decimal
}

// ComputeGain calculates the CGT breakdown for consuming matchedQty units of a
// parcel against a sell transaction. Pure: no state, no I/O. Callers are
// responsible for only passing positive quantities against valid lots.
func ComputeGain(parcel *domain.Parcel, sell *domain.Transaction, matchedQty decimal.Decimal) Breakdown {
	costBase := parcel.CostPerUnit.Mul(matchedQty)

	proceedsPerUnit := sell.UnitPrice.Mul(sell.ExchangeRate)
	proceeds := proceedsPerUnit.Mul(matchedQty)

	gainLoss := proceeds.Sub(costBase)

	holdingDays := daysBetween(parcel.AcquisitionDate, sell.TradeDate)

	eligible := holdingDays > DiscountHoldingDays && gainLoss.IsPositive()

	discount := decimal.Zero
	if eligible {
		discount = gainLoss.Mul(discountRate)
	}

	return Breakdown{
		CostBase:         costBase,
		Proceeds:         proceeds,
		GainLoss:         gainLoss,
		HoldingDays:      holdingDays,
		DiscountEligible: eligible,
		DiscountAmount:   discount,
		NetGain:          gainLoss.Sub(discount),
	}
}

// daysBetween returns whole calendar days from a to b. Trade dates are stored at
// UTC midnight, so the division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// FinancialYearRange returns the inclusive date window for an Australian
// financial year. year=2025 means FY2024-25: Jul 1 2024 through Jun 30 2025.
func FinancialYearRange(year int) (start, end time.Time) {
	start = time.Date(year-1, time.July, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)
	return start, end
}

// FinancialYearLabel formats a financial year the way reports display it,
// e.g. FinancialYearLabel(2025) == "FY2024-25".
func FinancialYearLabel(year int) string {
	return fmt.Sprintf("FY%d-%02d", year-1, year%100)
}
