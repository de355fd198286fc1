package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cgtTracker/internal/domain"
	"cgtTracker/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the repository interfaces in ports using SQLite.
// A single connection in WAL mode gives the exclusive-writer semantics the
// commit path relies on.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/cgt_tracker.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// _txlock=immediate makes every transaction take the write lock at BEGIN, so
	// the commit engine's re-validation reads are already exclusive.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Single connection: the commit engine's exclusive transactions serialize all
	// writers, and the Go driver benefits from not multiplexing SQLite handles.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Decimal columns are stored as TEXT and round-tripped through shopspring/decimal
// so repeated slice calculations never accumulate binary-float drift.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS securities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		exchange TEXT NOT NULL,
		currency TEXT NOT NULL,
		asset_type TEXT NOT NULL DEFAULT 'SHARE'
	);

	CREATE TABLE IF NOT EXISTS import_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		imported_at TIMESTAMP NOT NULL,
		source_type TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		column_mapping TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		security_id INTEGER NOT NULL REFERENCES securities(id),
		import_id INTEGER NULL REFERENCES import_records(id),
		trade_date TIMESTAMP NOT NULL,
		transaction_type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		brokerage TEXT NOT NULL DEFAULT '0',
		total_value TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'AUD',
		exchange_rate TEXT NOT NULL DEFAULT '1',
		raw_data TEXT NOT NULL DEFAULT '{}',
		UNIQUE (trade_date, security_id, transaction_type, quantity, unit_price)
	);

	CREATE TABLE IF NOT EXISTS parcels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL UNIQUE REFERENCES transactions(id),
		security_id INTEGER NOT NULL REFERENCES securities(id),
		acquisition_date TIMESTAMP NOT NULL,
		original_quantity TEXT NOT NULL,
		remaining_quantity TEXT NOT NULL,
		cost_per_unit TEXT NOT NULL,
		total_cost_base TEXT NOT NULL,
		fully_matched INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS allocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parcel_id INTEGER NOT NULL REFERENCES parcels(id),
		sell_transaction_id INTEGER NOT NULL REFERENCES transactions(id),
		matched_quantity TEXT NOT NULL,
		cost_base TEXT NOT NULL,
		proceeds TEXT NOT NULL,
		gain_loss TEXT NOT NULL,
		holding_days INTEGER NOT NULL,
		discount_eligible INTEGER NOT NULL DEFAULT 0,
		discount_amount TEXT NOT NULL DEFAULT '0',
		net_gain TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parcels_security_remaining ON parcels (security_id, fully_matched);
	CREATE INDEX IF NOT EXISTS idx_transactions_security_date ON transactions (security_id, trade_date);
	CREATE INDEX IF NOT EXISTS idx_allocations_sell ON allocations (sell_transaction_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- SecurityRepository Implementation ---

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// FindByTicker retrieves a security by ticker, or nil if not found.
func (r *Repository) FindByTicker(ctx context.Context, ticker string) (*domain.Security, error) {
	return findSecurityByTicker(ctx, r.db, ticker)
}

func findSecurityByTicker(ctx context.Context, q rowQuerier, ticker string) (*domain.Security, error) {
	const query = `
	SELECT id, ticker, name, exchange, currency, asset_type
	FROM securities WHERE ticker = ?`

	sec := &domain.Security{}
	var exchange, assetType string
	err := q.QueryRowContext(ctx, query, ticker).Scan(
		&sec.ID, &sec.Ticker, &sec.Name, &exchange, &sec.Currency, &assetType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query security %s: %w", ticker, err)
	}
	sec.Exchange = domain.Exchange(exchange)
	sec.AssetType = domain.AssetType(assetType)
	return sec, nil
}

// --- TransactionRepository Implementation ---

// FindByID retrieves a transaction by its unique ID, or nil if not found.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	const query = `
	SELECT id, security_id, import_id, trade_date, transaction_type, quantity,
	       unit_price, brokerage, total_value, currency, exchange_rate, raw_data
	FROM transactions WHERE id = ?`

	txn, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query transaction by ID %d: %w", id, err)
	}
	return txn, nil
}

// Exists reports whether a transaction with the same duplicate-protection tuple
// is already stored.
func (r *Repository) Exists(ctx context.Context, txn *domain.Transaction) (bool, error) {
	const query = `
	SELECT COUNT(*) FROM transactions
	WHERE trade_date = ? AND security_id = ? AND transaction_type = ?
	  AND quantity = ? AND unit_price = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query,
		txn.TradeDate, txn.SecurityID, string(txn.Type),
		txn.Quantity.String(), txn.UnitPrice.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}
	return count > 0, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, txn *domain.Transaction) (int64, error) {
	const query = `
	INSERT INTO transactions (security_id, import_id, trade_date, transaction_type,
	                          quantity, unit_price, brokerage, total_value,
	                          currency, exchange_rate, raw_data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var importID sql.NullInt64
	if txn.ImportID != nil {
		importID = sql.NullInt64{Int64: *txn.ImportID, Valid: true}
	}
	rawData, err := json.Marshal(txn.RawData)
	if err != nil {
		return 0, fmt.Errorf("failed to encode raw data: %w", err)
	}

	result, err := tx.ExecContext(ctx, query,
		txn.SecurityID, importID, txn.TradeDate, string(txn.Type),
		txn.Quantity.String(), txn.UnitPrice.String(), txn.Brokerage.String(),
		txn.TotalValue.String(), txn.Currency, txn.ExchangeRate.String(), string(rawData))
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return result.LastInsertId()
}

func insertParcel(ctx context.Context, tx *sql.Tx, p *domain.Parcel) (int64, error) {
	const query = `
	INSERT INTO parcels (transaction_id, security_id, acquisition_date,
	                     original_quantity, remaining_quantity, cost_per_unit,
	                     total_cost_base, fully_matched)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		p.TransactionID, p.SecurityID, p.AcquisitionDate,
		p.OriginalQuantity.String(), p.RemainingQuantity.String(),
		p.CostPerUnit.String(), p.TotalCostBase.String(), p.FullyMatched)
	if err != nil {
		return 0, fmt.Errorf("failed to insert parcel: %w", err)
	}
	return result.LastInsertId()
}

// --- ParcelRepository Implementation ---

// FindParcelByID retrieves a parcel by its unique ID, or nil if not found.
func (r *Repository) FindParcelByID(ctx context.Context, id int64) (*domain.Parcel, error) {
	const query = parcelSelect + ` WHERE id = ?`

	p, err := scanParcel(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query parcel by ID %d: %w", id, err)
	}
	return p, nil
}

const parcelSelect = `
	SELECT id, transaction_id, security_id, acquisition_date, original_quantity,
	       remaining_quantity, cost_per_unit, total_cost_base, fully_matched
	FROM parcels`

// AvailableBySecurity retrieves all parcels of a security with remaining
// quantity > 0, sorted by the given order.
//
// Cost per unit is a TEXT column, so the cost ordering is applied in Go with
// exact decimal comparison; SQL string or REAL ordering would misrank values
// that differ only in scale or beyond float precision.
func (r *Repository) AvailableBySecurity(ctx context.Context, securityID int64, order ports.LotOrder) ([]*domain.Parcel, error) {
	var orderBy string
	switch order {
	case ports.ByAcquisitionAsc:
		orderBy = "acquisition_date ASC, id ASC"
	case ports.ByAcquisitionDesc:
		orderBy = "acquisition_date DESC, id ASC"
	case ports.ByCostPerUnitDesc:
		orderBy = "id ASC" // sorted below
	default:
		return nil, fmt.Errorf("unknown lot order %d: %w", order, ports.ErrInvalidRequest)
	}

	query := parcelSelect + ` WHERE security_id = ? AND fully_matched = 0 ORDER BY ` + orderBy

	rows, err := r.db.QueryContext(ctx, query, securityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query available parcels for security %d: %w", securityID, err)
	}
	defer rows.Close()

	parcels := make([]*domain.Parcel, 0)
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel during AvailableBySecurity: %w", err)
		}
		parcels = append(parcels, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}
	if order == ports.ByCostPerUnitDesc {
		sort.SliceStable(parcels, func(i, j int) bool {
			return parcels[i].CostPerUnit.Cmp(parcels[j].CostPerUnit) > 0
		})
	}
	return parcels, nil
}

// --- AllocationRepository Implementation ---

// FindBySellTransaction retrieves all allocations for one sell transaction.
func (r *Repository) FindBySellTransaction(ctx context.Context, sellID int64) ([]*domain.Allocation, error) {
	const query = `
	SELECT id, parcel_id, sell_transaction_id, matched_quantity, cost_base,
	       proceeds, gain_loss, holding_days, discount_eligible, discount_amount, net_gain
	FROM allocations WHERE sell_transaction_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, sellID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for sell %d: %w", sellID, err)
	}
	defer rows.Close()

	allocs := make([]*domain.Allocation, 0)
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation during FindBySellTransaction: %w", err)
		}
		allocs = append(allocs, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation rows: %w", err)
	}
	return allocs, nil
}

// AllocationsBetween retrieves committed allocations whose sell trade date falls
// inside [start, end], joined with their security ticker.
func (r *Repository) AllocationsBetween(ctx context.Context, start, end time.Time) ([]*domain.FYAllocation, error) {
	const query = `
	SELECT s.ticker, t.trade_date, a.gain_loss, a.discount_amount, a.net_gain
	FROM allocations a
	JOIN transactions t ON t.id = a.sell_transaction_id
	JOIN securities s ON s.id = t.security_id
	WHERE t.trade_date >= ? AND t.trade_date <= ?
	ORDER BY a.id ASC`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations between %s and %s: %w",
			start.Format("2006-01-02"), end.Format("2006-01-02"), err)
	}
	defer rows.Close()

	allocs := make([]*domain.FYAllocation, 0)
	for rows.Next() {
		fa := &domain.FYAllocation{}
		var gainLoss, discount, net string
		if err := rows.Scan(&fa.Ticker, &fa.SellDate, &gainLoss, &discount, &net); err != nil {
			return nil, fmt.Errorf("failed to scan allocation during AllocationsBetween: %w", err)
		}
		if fa.GainLoss, err = decimal.NewFromString(gainLoss); err != nil {
			return nil, fmt.Errorf("corrupt gain_loss value %q: %w", gainLoss, err)
		}
		if fa.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
			return nil, fmt.Errorf("corrupt discount_amount value %q: %w", discount, err)
		}
		if fa.NetGain, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("corrupt net_gain value %q: %w", net, err)
		}
		allocs = append(allocs, fa)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation rows: %w", err)
	}
	return allocs, nil
}

// --- ImportUnitOfWork Implementation ---

// importTx implements ports.ImportTx on top of a live transaction.
type importTx struct {
	tx     *sql.Tx
	logger ports.Logger
}

// RunImport executes fn inside a single write transaction so an import batch
// lands whole or not at all. An error from fn rolls everything back.
func (r *Repository) RunImport(ctx context.Context, fn func(tx ports.ImportTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}

	if err := fn(&importTx{tx: sqlTx, logger: r.logger}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			r.logger.Error(ctx, rbErr, "Rollback failed after import error")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import transaction: %w", err)
	}
	return nil
}

// GetOrCreateSecurity returns the security with sec.Ticker, creating it if missing.
func (t *importTx) GetOrCreateSecurity(ctx context.Context, sec *domain.Security) (*domain.Security, error) {
	existing, err := findSecurityByTicker(ctx, t.tx, sec.Ticker)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	const query = `
	INSERT INTO securities (ticker, name, exchange, currency, asset_type)
	VALUES (?, ?, ?, ?, ?)`

	result, err := t.tx.ExecContext(ctx, query,
		sec.Ticker, sec.Name, string(sec.Exchange), sec.Currency, string(sec.AssetType))
	if err != nil {
		return nil, fmt.Errorf("failed to insert security %s: %w", sec.Ticker, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID for security %s: %w", sec.Ticker, err)
	}
	created := *sec
	created.ID = id
	t.logger.Debug(ctx, "Security created", map[string]interface{}{"securityID": id, "ticker": sec.Ticker})
	return &created, nil
}

// CreateImportRecord saves the audit row for the import batch.
func (t *importTx) CreateImportRecord(ctx context.Context, rec *domain.ImportRecord) (int64, error) {
	const query = `
	INSERT INTO import_records (filename, imported_at, source_type, row_count, column_mapping)
	VALUES (?, ?, ?, ?, ?)`

	mapping, err := json.Marshal(rec.ColumnMapping)
	if err != nil {
		return 0, fmt.Errorf("failed to encode column mapping: %w", err)
	}
	result, err := t.tx.ExecContext(ctx, query,
		rec.Filename, rec.ImportedAt, string(rec.SourceType), rec.RowCount, string(mapping))
	if err != nil {
		return 0, fmt.Errorf("failed to insert import record for %s: %w", rec.Filename, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for import record: %w", err)
	}
	rec.ID = id
	return id, nil
}

// CreateTrade saves a transaction and, for BUY trades, its parcel.
func (t *importTx) CreateTrade(ctx context.Context, txn *domain.Transaction, parcel *domain.Parcel) (int64, error) {
	id, err := insertTransaction(ctx, t.tx, txn)
	if err != nil {
		return 0, err
	}
	txn.ID = id

	if parcel != nil {
		parcel.TransactionID = id
		parcelID, err := insertParcel(ctx, t.tx, parcel)
		if err != nil {
			return 0, err
		}
		parcel.ID = parcelID
	}
	t.logger.Debug(ctx, "Trade created", map[string]interface{}{"transactionID": id, "type": txn.Type})
	return id, nil
}

// --- UnitOfWork Implementation ---

// matchTx implements ports.MatchTx on top of a live exclusive transaction.
type matchTx struct {
	tx *sql.Tx
}

// RunExclusive executes fn inside a single immediate write transaction. The
// write lock is held from BEGIN, so fn observes fully-applied state from any
// earlier commit and no later writer can interleave. An error from fn rolls
// everything back.
func (r *Repository) RunExclusive(ctx context.Context, fn func(tx ports.MatchTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin exclusive transaction: %w", err)
	}

	if err := fn(&matchTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			r.logger.Error(ctx, rbErr, "Rollback failed after commit error")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exclusive transaction: %w", err)
	}
	return nil
}

// ParcelForUpdate re-reads a parcel's current state under the transaction.
func (m *matchTx) ParcelForUpdate(ctx context.Context, id int64) (*domain.Parcel, error) {
	const query = parcelSelect + ` WHERE id = ?`

	p, err := scanParcel(m.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parcel %d: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to re-read parcel %d: %w", id, err)
	}
	return p, nil
}

// UpdateParcelQuantity sets a parcel's remaining quantity and depletion flag.
func (m *matchTx) UpdateParcelQuantity(ctx context.Context, id int64, remaining decimal.Decimal, fullyMatched bool) error {
	const query = `UPDATE parcels SET remaining_quantity = ?, fully_matched = ? WHERE id = ?`

	result, err := m.tx.ExecContext(ctx, query, remaining.String(), fullyMatched, id)
	if err != nil {
		return fmt.Errorf("failed to update parcel %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for parcel %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("parcel %d not found for update: %w", id, ports.ErrNotFound)
	}
	return nil
}

// MatchedQuantityForSell sums the committed allocations of one sell under the
// transaction. Summed in Go rather than SQL so the TEXT decimals stay exact.
func (m *matchTx) MatchedQuantityForSell(ctx context.Context, sellID int64) (decimal.Decimal, error) {
	const query = `SELECT matched_quantity FROM allocations WHERE sell_transaction_id = ?`

	rows, err := m.tx.QueryContext(ctx, query, sellID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query allocations for sell %d: %w", sellID, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var matched string
		if err := rows.Scan(&matched); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan matched quantity for sell %d: %w", sellID, err)
		}
		d, err := decimal.NewFromString(matched)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt matched_quantity value %q: %w", matched, err)
		}
		total = total.Add(d)
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating allocation rows: %w", err)
	}
	return total, nil
}

// CreateAllocation persists an allocation record and returns its ID.
func (m *matchTx) CreateAllocation(ctx context.Context, a *domain.Allocation) (int64, error) {
	const query = `
	INSERT INTO allocations (parcel_id, sell_transaction_id, matched_quantity,
	                         cost_base, proceeds, gain_loss, holding_days,
	                         discount_eligible, discount_amount, net_gain)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := m.tx.ExecContext(ctx, query,
		a.ParcelID, a.SellTransactionID, a.MatchedQuantity.String(),
		a.CostBase.String(), a.Proceeds.String(), a.GainLoss.String(),
		a.HoldingDays, a.DiscountEligible, a.DiscountAmount.String(), a.NetGain.String())
	if err != nil {
		return 0, fmt.Errorf("failed to insert allocation for parcel %d: %w", a.ParcelID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for allocation: %w", err)
	}
	a.ID = id
	return id, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTransaction scans a row into a domain.Transaction struct.
func scanTransaction(s scanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var importID sql.NullInt64
	var txnType, quantity, unitPrice, brokerage, totalValue, exchangeRate, rawData string
	err := s.Scan(
		&t.ID, &t.SecurityID, &importID, &t.TradeDate, &txnType, &quantity,
		&unitPrice, &brokerage, &totalValue, &t.Currency, &exchangeRate, &rawData)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if importID.Valid {
		t.ImportID = &importID.Int64
	}
	t.Type = domain.TransactionType(txnType)
	if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("corrupt quantity value %q: %w", quantity, err)
	}
	if t.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("corrupt unit_price value %q: %w", unitPrice, err)
	}
	if t.Brokerage, err = decimal.NewFromString(brokerage); err != nil {
		return nil, fmt.Errorf("corrupt brokerage value %q: %w", brokerage, err)
	}
	if t.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("corrupt total_value value %q: %w", totalValue, err)
	}
	if t.ExchangeRate, err = decimal.NewFromString(exchangeRate); err != nil {
		return nil, fmt.Errorf("corrupt exchange_rate value %q: %w", exchangeRate, err)
	}
	if err := json.Unmarshal([]byte(rawData), &t.RawData); err != nil {
		return nil, fmt.Errorf("corrupt raw_data value: %w", err)
	}
	t.TradeDate = t.TradeDate.UTC()
	return t, nil
}

// scanParcel scans a row into a domain.Parcel struct.
func scanParcel(s scanner) (*domain.Parcel, error) {
	p := &domain.Parcel{}
	var original, remaining, costPerUnit, totalCost string
	err := s.Scan(
		&p.ID, &p.TransactionID, &p.SecurityID, &p.AcquisitionDate,
		&original, &remaining, &costPerUnit, &totalCost, &p.FullyMatched)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if p.OriginalQuantity, err = decimal.NewFromString(original); err != nil {
		return nil, fmt.Errorf("corrupt original_quantity value %q: %w", original, err)
	}
	if p.RemainingQuantity, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("corrupt remaining_quantity value %q: %w", remaining, err)
	}
	if p.CostPerUnit, err = decimal.NewFromString(costPerUnit); err != nil {
		return nil, fmt.Errorf("corrupt cost_per_unit value %q: %w", costPerUnit, err)
	}
	if p.TotalCostBase, err = decimal.NewFromString(totalCost); err != nil {
		return nil, fmt.Errorf("corrupt total_cost_base value %q: %w", totalCost, err)
	}
	p.AcquisitionDate = p.AcquisitionDate.UTC()
	return p, nil
}

// scanAllocation scans a row into a domain.Allocation struct.
func scanAllocation(s scanner) (*domain.Allocation, error) {
	a := &domain.Allocation{}
	var matched, costBase, proceeds, gainLoss, discount, net string
	err := s.Scan(
		&a.ID, &a.ParcelID, &a.SellTransactionID, &matched, &costBase,
		&proceeds, &gainLoss, &a.HoldingDays, &a.DiscountEligible, &discount, &net)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if a.MatchedQuantity, err = decimal.NewFromString(matched); err != nil {
		return nil, fmt.Errorf("corrupt matched_quantity value %q: %w", matched, err)
	}
	if a.CostBase, err = decimal.NewFromString(costBase); err != nil {
		return nil, fmt.Errorf("corrupt cost_base value %q: %w", costBase, err)
	}
	if a.Proceeds, err = decimal.NewFromString(proceeds); err != nil {
		return nil, fmt.Errorf("corrupt proceeds value %q: %w", proceeds, err)
	}
	if a.GainLoss, err = decimal.NewFromString(gainLoss); err != nil {
		return nil, fmt.Errorf("corrupt gain_loss value %q: %w", gainLoss, err)
	}
	if a.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("corrupt discount_amount value %q: %w", discount, err)
	}
	if a.NetGain, err = decimal.NewFromString(net); err != nil {
		return nil, fmt.Errorf("corrupt net_gain value %q: %w", net, err)
	}
	return a, nil
}
