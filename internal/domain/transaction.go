package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents an executed trade. Immutable after creation; downstream
// records (parcels, allocations) only ever reference it.
//
// The tuple (trade date, security, type, quantity, unit price) is unique — this is
// the duplicate-trade protection enforced by the store.
type Transaction struct {
	ID           int64
	SecurityID   int64
	ImportID     *int64 // Import batch that produced this trade, if any
	TradeDate    time.Time
	Type         TransactionType
	Quantity     decimal.Decimal // Units traded, always positive
	UnitPrice    decimal.Decimal // Price per unit in settlement currency
	Brokerage    decimal.Decimal // Broker fee in settlement currency
	TotalValue   decimal.Decimal
	Currency     string
	ExchangeRate decimal.Decimal   // FX rate to AUD (1 for AUD trades)
	RawData      map[string]string // Opaque source row kept for audit
}

// IsSell reports whether the transaction is a disposal.
func (t *Transaction) IsSell() bool {
	return t.Type == Sell
}
