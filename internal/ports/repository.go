package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"cgtTracker/internal/domain"
)

// LotOrder controls how available parcels are sorted when building the candidate
// set for a matching strategy.
type LotOrder int

const (
	// ByAcquisitionAsc orders oldest acquisition first.
	ByAcquisitionAsc LotOrder = iota
	// ByAcquisitionDesc orders newest acquisition first.
	ByAcquisitionDesc
	// ByCostPerUnitDesc orders most expensive cost base per unit first.
	ByCostPerUnitDesc
)

// SecurityRepository defines the read interface over securities. Securities are
// created inside an import batch via ImportTx.
type SecurityRepository interface {
	// FindByTicker retrieves a security by ticker. Returns nil, nil if not found.
	FindByTicker(ctx context.Context, ticker string) (*domain.Security, error)
}

// TransactionRepository defines the read interface over trades. Trades are
// created inside an import batch via ImportTx.
type TransactionRepository interface {
	// FindByID retrieves a transaction by its unique ID. Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.Transaction, error)
	// Exists reports whether a transaction with the same duplicate-protection
	// tuple (trade date, security, type, quantity, unit price) is already stored.
	Exists(ctx context.Context, txn *domain.Transaction) (bool, error)
}

// ParcelRepository defines the read interface over cost-basis lots. Lot mutation
// never happens here; it is confined to MatchTx inside an exclusive unit of work.
type ParcelRepository interface {
	// FindParcelByID retrieves a parcel by its unique ID. Returns nil, nil if not found.
	FindParcelByID(ctx context.Context, id int64) (*domain.Parcel, error)
	// AvailableBySecurity retrieves all parcels of a security with remaining
	// quantity > 0, sorted by the given order.
	AvailableBySecurity(ctx context.Context, securityID int64, order LotOrder) ([]*domain.Parcel, error)
}

// AllocationRepository defines the read interface over committed allocations.
type AllocationRepository interface {
	// FindBySellTransaction retrieves all allocations consuming lots for one sell.
	FindBySellTransaction(ctx context.Context, sellID int64) ([]*domain.Allocation, error)
	// AllocationsBetween retrieves committed allocations whose sell trade date
	// falls inside [start, end], joined with their security ticker.
	AllocationsBetween(ctx context.Context, start, end time.Time) ([]*domain.FYAllocation, error)
}

// ImportTx is the write surface for confirming one CSV import batch. Everything
// created through it lands together or not at all.
type ImportTx interface {
	// GetOrCreateSecurity returns the security with sec.Ticker, creating it from
	// sec's fields if it does not exist yet.
	GetOrCreateSecurity(ctx context.Context, sec *domain.Security) (*domain.Security, error)
	// CreateImportRecord saves the audit row for the batch and returns its ID.
	CreateImportRecord(ctx context.Context, rec *domain.ImportRecord) (int64, error)
	// CreateTrade saves a transaction and, for BUY trades, its parcel. Returns the
	// assigned transaction ID.
	CreateTrade(ctx context.Context, txn *domain.Transaction, parcel *domain.Parcel) (int64, error)
}

// ImportUnitOfWork runs an import batch as one all-or-nothing transaction: a
// failure on any row rolls back the audit record and every row before it.
type ImportUnitOfWork interface {
	RunImport(ctx context.Context, fn func(tx ImportTx) error) error
}

// MatchTx is the lot-mutation surface available inside an exclusive unit of work.
// The commit engine re-validates every lot through ParcelForUpdate before touching it.
type MatchTx interface {
	// ParcelForUpdate re-reads a parcel's current state under the exclusive
	// transaction. Returns ErrNotFound if the parcel does not exist.
	ParcelForUpdate(ctx context.Context, id int64) (*domain.Parcel, error)
	// UpdateParcelQuantity sets a parcel's remaining quantity and depletion flag.
	UpdateParcelQuantity(ctx context.Context, id int64, remaining decimal.Decimal, fullyMatched bool) error
	// MatchedQuantityForSell returns the combined matched quantity of every
	// allocation already committed for one sell transaction.
	MatchedQuantityForSell(ctx context.Context, sellID int64) (decimal.Decimal, error)
	// CreateAllocation persists one allocation record and returns its ID.
	CreateAllocation(ctx context.Context, alloc *domain.Allocation) (int64, error)
}

// UnitOfWork provides all-or-nothing multi-record commits with exclusive-writer
// semantics: while fn runs, no other writer can observe or mutate lot state. Any
// error returned by fn rolls back every mutation made through the MatchTx.
type UnitOfWork interface {
	RunExclusive(ctx context.Context, fn func(tx MatchTx) error) error
}
