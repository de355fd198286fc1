package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Parcel is a cost-basis lot created from a BUY transaction. RemainingQuantity is
// monotonically non-increasing and mutated only inside the commit path; everything
// else is fixed at creation.
//
// Invariant: 0 <= RemainingQuantity <= OriginalQuantity, and
// FullyMatched is true exactly when RemainingQuantity is zero.
type Parcel struct {
	ID                int64
	TransactionID     int64
	SecurityID        int64
	AcquisitionDate   time.Time
	OriginalQuantity  decimal.Decimal
	RemainingQuantity decimal.Decimal
	CostPerUnit       decimal.Decimal // AUD per unit, brokerage and FX baked in
	TotalCostBase     decimal.Decimal // AUD
	FullyMatched      bool
}

// NewParcelFromBuy derives the cost-basis lot for a BUY transaction.
// Cost base = (quantity * unit price + brokerage) * FX rate.
func NewParcelFromBuy(buy *Transaction) *Parcel {
	costBase := buy.Quantity.Mul(buy.UnitPrice).Add(buy.Brokerage).Mul(buy.ExchangeRate)
	costPerUnit := decimal.Zero
	if !buy.Quantity.IsZero() {
		costPerUnit = costBase.Div(buy.Quantity)
	}
	return &Parcel{
		TransactionID:     buy.ID,
		SecurityID:        buy.SecurityID,
		AcquisitionDate:   buy.TradeDate,
		OriginalQuantity:  buy.Quantity,
		RemainingQuantity: buy.Quantity,
		CostPerUnit:       costPerUnit,
		TotalCostBase:     costBase,
	}
}
