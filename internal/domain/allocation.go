package domain

import "github.com/shopspring/decimal"

// Allocation records how much of one parcel was consumed by one sell transaction,
// together with the tax outcome of that slice. Created only by the commit path and
// immutable thereafter.
type Allocation struct {
	ID                int64
	ParcelID          int64
	SellTransactionID int64
	MatchedQuantity   decimal.Decimal
	CostBase          decimal.Decimal
	Proceeds          decimal.Decimal
	GainLoss          decimal.Decimal
	HoldingDays       int
	DiscountEligible  bool
	DiscountAmount    decimal.Decimal
	NetGain           decimal.Decimal
}

// ProposedAllocation is a transient, unpersisted allocation produced by the
// allocation engine. The caller may discard it at any point before commit with no
// effect on stored state; committing turns it into an Allocation after the lot is
// re-validated under lock.
type ProposedAllocation struct {
	Parcel            *Parcel // Snapshot of the lot at proposal time
	SellTransactionID int64
	MatchedQuantity   decimal.Decimal
	CostBase          decimal.Decimal
	Proceeds          decimal.Decimal
	GainLoss          decimal.Decimal
	HoldingDays       int
	DiscountEligible  bool
	DiscountAmount    decimal.Decimal
	NetGain           decimal.Decimal
}
