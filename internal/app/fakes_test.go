package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cgtTracker/internal/domain"
	"cgtTracker/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// fakeLotStore is an in-memory ports.ParcelRepository, ports.AllocationRepository
// and ports.UnitOfWork with the same all-or-nothing semantics as the SQLite
// adapter: mutations made through a MatchTx only land if the function returns nil.
type fakeLotStore struct {
	mu          sync.Mutex
	parcels     map[int64]*domain.Parcel
	allocations []*domain.Allocation
	nextAllocID int64
}

func newFakeLotStore() *fakeLotStore {
	return &fakeLotStore{parcels: make(map[int64]*domain.Parcel)}
}

func (f *fakeLotStore) addParcel(p *domain.Parcel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.parcels[p.ID] = &cp
}

func (f *fakeLotStore) parcel(id int64) *domain.Parcel {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.parcels[id]
	return &cp
}

func (f *fakeLotStore) FindParcelByID(ctx context.Context, id int64) (*domain.Parcel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.parcels[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeLotStore) AvailableBySecurity(ctx context.Context, securityID int64, order ports.LotOrder) ([]*domain.Parcel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	available := make([]*domain.Parcel, 0)
	for _, p := range f.parcels {
		if p.SecurityID == securityID && p.RemainingQuantity.IsPositive() {
			cp := *p
			available = append(available, &cp)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		a, b := available[i], available[j]
		switch order {
		case ports.ByAcquisitionDesc:
			if !a.AcquisitionDate.Equal(b.AcquisitionDate) {
				return a.AcquisitionDate.After(b.AcquisitionDate)
			}
		case ports.ByCostPerUnitDesc:
			if !a.CostPerUnit.Equal(b.CostPerUnit) {
				return a.CostPerUnit.GreaterThan(b.CostPerUnit)
			}
		default:
			if !a.AcquisitionDate.Equal(b.AcquisitionDate) {
				return a.AcquisitionDate.Before(b.AcquisitionDate)
			}
		}
		return a.ID < b.ID
	})
	return available, nil
}

func (f *fakeLotStore) FindBySellTransaction(ctx context.Context, sellID int64) ([]*domain.Allocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]*domain.Allocation, 0)
	for _, a := range f.allocations {
		if a.SellTransactionID == sellID {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func (f *fakeLotStore) AllocationsBetween(ctx context.Context, start, end time.Time) ([]*domain.FYAllocation, error) {
	return nil, nil
}

type stagedUpdate struct {
	remaining    decimal.Decimal
	fullyMatched bool
}

type fakeMatchTx struct {
	store  *fakeLotStore
	staged map[int64]stagedUpdate
	allocs []*domain.Allocation
}

func (f *fakeLotStore) RunExclusive(ctx context.Context, fn func(tx ports.MatchTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeMatchTx{store: f, staged: make(map[int64]stagedUpdate)}
	if err := fn(tx); err != nil {
		return err // staged mutations are dropped
	}
	for id, upd := range tx.staged {
		p := f.parcels[id]
		p.RemainingQuantity = upd.remaining
		p.FullyMatched = upd.fullyMatched
	}
	f.allocations = append(f.allocations, tx.allocs...)
	return nil
}

func (t *fakeMatchTx) ParcelForUpdate(ctx context.Context, id int64) (*domain.Parcel, error) {
	p, ok := t.store.parcels[id]
	if !ok {
		return nil, fmt.Errorf("parcel %d: %w", id, ports.ErrNotFound)
	}
	cp := *p
	if upd, ok := t.staged[id]; ok {
		cp.RemainingQuantity = upd.remaining
		cp.FullyMatched = upd.fullyMatched
	}
	return &cp, nil
}

func (t *fakeMatchTx) UpdateParcelQuantity(ctx context.Context, id int64, remaining decimal.Decimal, fullyMatched bool) error {
	if _, ok := t.store.parcels[id]; !ok {
		return fmt.Errorf("parcel %d: %w", id, ports.ErrNotFound)
	}
	t.staged[id] = stagedUpdate{remaining: remaining, fullyMatched: fullyMatched}
	return nil
}

func (t *fakeMatchTx) MatchedQuantityForSell(ctx context.Context, sellID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range t.store.allocations {
		if a.SellTransactionID == sellID {
			total = total.Add(a.MatchedQuantity)
		}
	}
	for _, a := range t.allocs {
		if a.SellTransactionID == sellID {
			total = total.Add(a.MatchedQuantity)
		}
	}
	return total, nil
}

func (t *fakeMatchTx) CreateAllocation(ctx context.Context, a *domain.Allocation) (int64, error) {
	t.store.nextAllocID++
	a.ID = t.store.nextAllocID
	t.allocs = append(t.allocs, a)
	return a.ID, nil
}

// fakeAllocationRepo implements ports.AllocationRepository over a fixed slice.
type fakeAllocationRepo struct {
	rows []*domain.FYAllocation
	err  error
}

func (f *fakeAllocationRepo) FindBySellTransaction(ctx context.Context, sellID int64) ([]*domain.Allocation, error) {
	return nil, nil
}

func (f *fakeAllocationRepo) AllocationsBetween(ctx context.Context, start, end time.Time) ([]*domain.FYAllocation, error) {
	if f.err != nil {
		return nil, f.err
	}
	matched := make([]*domain.FYAllocation, 0)
	for _, row := range f.rows {
		if !row.SellDate.Before(start) && !row.SellDate.After(end) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// fakeTradeStore implements the ingestion-facing ports in memory. RunImport
// stages everything created through its ImportTx and applies it only when the
// function succeeds, matching the SQLite adapter's batch atomicity.
type fakeTradeStore struct {
	securities   map[string]*domain.Security
	transactions []*domain.Transaction
	parcels      []*domain.Parcel
	imports      []*domain.ImportRecord
	nextID       int64

	failOnTrade int   // 1-based CreateTrade call within a batch that fails
	tradeErr    error // error returned by the failing call
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{securities: make(map[string]*domain.Security)}
}

func (f *fakeTradeStore) FindByTicker(ctx context.Context, ticker string) (*domain.Security, error) {
	sec, ok := f.securities[ticker]
	if !ok {
		return nil, nil
	}
	return sec, nil
}

func (f *fakeTradeStore) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	for _, t := range f.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeTradeStore) Exists(ctx context.Context, txn *domain.Transaction) (bool, error) {
	for _, t := range f.transactions {
		if t.SecurityID == txn.SecurityID &&
			t.TradeDate.Equal(txn.TradeDate) &&
			t.Type == txn.Type &&
			t.Quantity.Equal(txn.Quantity) &&
			t.UnitPrice.Equal(txn.UnitPrice) {
			return true, nil
		}
	}
	return false, nil
}

type fakeImportTx struct {
	store      *fakeTradeStore
	securities map[string]*domain.Security
	txns       []*domain.Transaction
	parcels    []*domain.Parcel
	records    []*domain.ImportRecord
	trades     int
}

func (f *fakeTradeStore) RunImport(ctx context.Context, fn func(tx ports.ImportTx) error) error {
	tx := &fakeImportTx{store: f, securities: make(map[string]*domain.Security)}
	if err := fn(tx); err != nil {
		return err // staged creations are dropped
	}
	for ticker, sec := range tx.securities {
		f.securities[ticker] = sec
	}
	f.transactions = append(f.transactions, tx.txns...)
	f.parcels = append(f.parcels, tx.parcels...)
	f.imports = append(f.imports, tx.records...)
	return nil
}

func (t *fakeImportTx) GetOrCreateSecurity(ctx context.Context, sec *domain.Security) (*domain.Security, error) {
	if existing, ok := t.store.securities[sec.Ticker]; ok {
		return existing, nil
	}
	if staged, ok := t.securities[sec.Ticker]; ok {
		return staged, nil
	}
	t.store.nextID++
	cp := *sec
	cp.ID = t.store.nextID
	t.securities[sec.Ticker] = &cp
	return &cp, nil
}

func (t *fakeImportTx) CreateImportRecord(ctx context.Context, rec *domain.ImportRecord) (int64, error) {
	t.store.nextID++
	rec.ID = t.store.nextID
	t.records = append(t.records, rec)
	return rec.ID, nil
}

func (t *fakeImportTx) CreateTrade(ctx context.Context, txn *domain.Transaction, parcel *domain.Parcel) (int64, error) {
	t.trades++
	if t.store.failOnTrade > 0 && t.trades >= t.store.failOnTrade {
		return 0, t.store.tradeErr
	}
	t.store.nextID++
	txn.ID = t.store.nextID
	t.txns = append(t.txns, txn)
	if parcel != nil {
		t.store.nextID++
		parcel.ID = t.store.nextID
		parcel.TransactionID = txn.ID
		t.parcels = append(t.parcels, parcel)
	}
	return txn.ID, nil
}
