package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cgtTracker/internal/domain"
	"cgtTracker/internal/ports"
)

// Canonical field names expected after column mapping.
const (
	fieldTradeDate    = "trade_date"
	fieldType         = "transaction_type"
	fieldTicker       = "ticker"
	fieldQuantity     = "quantity"
	fieldUnitPrice    = "unit_price"
	fieldBrokerage    = "brokerage"
	fieldTotalValue   = "total_value"
	fieldExchangeRate = "exchange_rate"
	fieldCurrency     = "currency"
	fieldExchange     = "exchange"
	fieldAssetType    = "asset_type"
)

var requiredFields = []string{fieldTradeDate, fieldType, fieldTicker, fieldQuantity, fieldUnitPrice}

// selfWealthMapping maps SelfWealth export columns to canonical fields.
var selfWealthMapping = map[string]string{
	"Trade Date":    fieldTradeDate,
	"Action":        fieldType,
	"Code":          fieldTicker,
	"Units":         fieldQuantity,
	"Average Price": fieldUnitPrice,
	"Brokerage":     fieldBrokerage,
	"Total":         fieldTotalValue,
}

// SelfWealthMapping returns the fixed SelfWealth column mapping.
func SelfWealthMapping() map[string]string {
	m := make(map[string]string, len(selfWealthMapping))
	for k, v := range selfWealthMapping {
		m[k] = v
	}
	return m
}

// DetectSelfWealth checks whether CSV headers look like a SelfWealth export.
func DetectSelfWealth(headers []string) bool {
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		seen[h] = true
	}
	for _, h := range []string{"Trade Date", "Action", "Code", "Units", "Average Price"} {
		if !seen[h] {
			return false
		}
	}
	return true
}

// ParsedRow is one CSV row in canonical form, with any per-row parse errors.
// Rows with errors are reported in the preview and skipped on confirm; they
// never abort the rest of the file.
type ParsedRow struct {
	TradeDate    time.Time
	Type         domain.TransactionType
	Ticker       string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Brokerage    decimal.Decimal
	TotalValue   decimal.Decimal
	ExchangeRate decimal.Decimal
	Currency     string
	Exchange     string
	AssetType    string
	RawData      map[string]string
	RowNumber    int // 1-based line in the file, header is row 1
	Errors       []string
}

// IsValid reports whether the row parsed cleanly.
func (r *ParsedRow) IsValid() bool { return len(r.Errors) == 0 }

// ImportPreview is the result of a dry-run parse: everything a caller needs to
// decide whether to confirm.
type ImportPreview struct {
	Headers        []string
	Rows           []*ParsedRow
	DuplicateRows  map[int]bool // Row numbers that already exist in the store
	ValidCount     int
	ErrorCount     int
	DuplicateCount int
	NewCount       int
}

// ImportService turns raw CSV exports into validated transactions and parcels.
// It is the ingestion collaborator for the matching core: every BUY row creates
// its cost-basis lot atomically with the transaction.
type ImportService struct {
	logger       ports.Logger
	securities   ports.SecurityRepository
	transactions ports.TransactionRepository
	uow          ports.ImportUnitOfWork

	defaultExchange string
	defaultCurrency string
}

// NewImportService creates the CSV ingestion service. defaultExchange and
// defaultCurrency fill rows whose mapping does not provide them.
func NewImportService(
	logger ports.Logger,
	securities ports.SecurityRepository,
	transactions ports.TransactionRepository,
	uow ports.ImportUnitOfWork,
	defaultExchange, defaultCurrency string,
) (*ImportService, error) {
	if logger == nil || securities == nil || transactions == nil || uow == nil {
		return nil, fmt.Errorf("missing required dependencies for ImportService")
	}
	if defaultExchange == "" {
		defaultExchange = string(domain.ExchangeASX)
	}
	if defaultCurrency == "" {
		defaultCurrency = "AUD"
	}
	return &ImportService{
		logger:          logger,
		securities:      securities,
		transactions:    transactions,
		uow:             uow,
		defaultExchange: defaultExchange,
		defaultCurrency: defaultCurrency,
	}, nil
}

// Preview parses CSV content and checks rows against the store for duplicates.
// No writes happen.
func (s *ImportService) Preview(ctx context.Context, content io.Reader, mapping map[string]string) (*ImportPreview, error) {
	headers, rows, err := s.parse(content, mapping)
	if err != nil {
		return nil, err
	}
	duplicates, err := s.findDuplicates(ctx, rows)
	if err != nil {
		return nil, err
	}

	preview := &ImportPreview{Headers: headers, Rows: rows, DuplicateRows: duplicates}
	for _, row := range rows {
		if row.IsValid() {
			preview.ValidCount++
		} else {
			preview.ErrorCount++
		}
	}
	preview.DuplicateCount = len(duplicates)
	preview.NewCount = preview.ValidCount - preview.DuplicateCount
	return preview, nil
}

// Confirm parses CSV content, skips invalid and duplicate rows, and creates the
// securities, transactions and (for BUY rows) parcels, plus the import audit
// record, all inside a single unit of work. A failure on any row rolls the whole
// batch back; nothing is persisted. Returns the record with RowCount set to the
// rows created.
func (s *ImportService) Confirm(ctx context.Context, content io.Reader, mapping map[string]string, filename string, source domain.ImportSource) (*domain.ImportRecord, error) {
	_, rows, err := s.parse(content, mapping)
	if err != nil {
		return nil, err
	}
	duplicates, err := s.findDuplicates(ctx, rows)
	if err != nil {
		return nil, err
	}

	importable := make([]*ParsedRow, 0, len(rows))
	for _, row := range rows {
		if row.IsValid() && !duplicates[row.RowNumber] {
			importable = append(importable, row)
		}
	}

	record := &domain.ImportRecord{
		Filename:      filename,
		ImportedAt:    time.Now().UTC(),
		SourceType:    source,
		RowCount:      len(importable),
		ColumnMapping: mapping,
	}
	err = s.uow.RunImport(ctx, func(tx ports.ImportTx) error {
		if _, err := tx.CreateImportRecord(ctx, record); err != nil {
			return err
		}
		for _, row := range importable {
			if err := s.createTrade(ctx, tx, record.ID, row); err != nil {
				return fmt.Errorf("row %d: %w", row.RowNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Import confirmed", map[string]interface{}{
		"filename": filename,
		"created":  len(importable),
		"skipped":  len(rows) - len(importable),
	})
	return record, nil
}

func (s *ImportService) createTrade(ctx context.Context, tx ports.ImportTx, importID int64, row *ParsedRow) error {
	security, err := tx.GetOrCreateSecurity(ctx, &domain.Security{
		Ticker:    row.Ticker,
		Exchange:  domain.Exchange(row.Exchange),
		Currency:  row.Currency,
		AssetType: domain.AssetType(row.AssetType),
	})
	if err != nil {
		return fmt.Errorf("failed to resolve security %s: %w", row.Ticker, err)
	}

	txn := &domain.Transaction{
		SecurityID:   security.ID,
		ImportID:     &importID,
		TradeDate:    row.TradeDate,
		Type:         row.Type,
		Quantity:     row.Quantity,
		UnitPrice:    row.UnitPrice,
		Brokerage:    row.Brokerage,
		TotalValue:   row.TotalValue,
		Currency:     row.Currency,
		ExchangeRate: row.ExchangeRate,
		RawData:      row.RawData,
	}

	var parcel *domain.Parcel
	if txn.Type == domain.Buy {
		parcel = domain.NewParcelFromBuy(txn)
		parcel.SecurityID = security.ID
	}
	if _, err := tx.CreateTrade(ctx, txn, parcel); err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

func (s *ImportService) findDuplicates(ctx context.Context, rows []*ParsedRow) (map[int]bool, error) {
	duplicates := make(map[int]bool)
	for _, row := range rows {
		if !row.IsValid() {
			continue
		}
		security, err := s.securities.FindByTicker(ctx, row.Ticker)
		if err != nil {
			return nil, err
		}
		if security == nil {
			continue // Unknown ticker cannot collide with a stored trade
		}
		exists, err := s.transactions.Exists(ctx, &domain.Transaction{
			SecurityID: security.ID,
			TradeDate:  row.TradeDate,
			Type:       row.Type,
			Quantity:   row.Quantity,
			UnitPrice:  row.UnitPrice,
		})
		if err != nil {
			return nil, err
		}
		if exists {
			duplicates[row.RowNumber] = true
		}
	}
	return duplicates, nil
}

// parse reads CSV content and maps each record into canonical form.
func (s *ImportService) parse(content io.Reader, mapping map[string]string) ([]string, []*ParsedRow, error) {
	reader := csv.NewReader(content)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("CSV is empty: %w", ports.ErrInvalidRequest)
	}

	headers := records[0]
	// Invert mapping: canonical field -> CSV column index.
	columnIndex := make(map[string]int)
	for i, h := range headers {
		if field, ok := mapping[h]; ok {
			columnIndex[field] = i
		}
	}

	rows := make([]*ParsedRow, 0, len(records)-1)
	for i, record := range records[1:] {
		rows = append(rows, s.parseRow(headers, record, columnIndex, i+2))
	}
	return headers, rows, nil
}

func (s *ImportService) parseRow(headers, record []string, columnIndex map[string]int, rowNumber int) *ParsedRow {
	row := &ParsedRow{
		ExchangeRate: decimal.NewFromInt(1),
		Currency:     s.defaultCurrency,
		Exchange:     s.defaultExchange,
		AssetType:    string(domain.AssetShare),
		RawData:      make(map[string]string, len(headers)),
		RowNumber:    rowNumber,
	}
	for i, h := range headers {
		if i < len(record) {
			row.RawData[h] = record[i]
		}
	}

	value := func(field string) (string, bool) {
		idx, ok := columnIndex[field]
		if !ok || idx >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[idx])
		return v, v != ""
	}
	missing := func(field string) {
		row.Errors = append(row.Errors, field+": missing")
	}

	if v, ok := value(fieldTradeDate); ok {
		if d, err := parseDate(v); err != nil {
			row.Errors = append(row.Errors, fmt.Sprintf("%s: %v", fieldTradeDate, err))
		} else {
			row.TradeDate = d
		}
	} else {
		missing(fieldTradeDate)
	}

	if v, ok := value(fieldType); ok {
		if t, err := normaliseType(v); err != nil {
			row.Errors = append(row.Errors, fmt.Sprintf("%s: %v", fieldType, err))
		} else {
			row.Type = t
		}
	} else {
		missing(fieldType)
	}

	if v, ok := value(fieldTicker); ok {
		row.Ticker = strings.ToUpper(v)
	} else {
		missing(fieldTicker)
	}

	decimalField := func(field string, dst *decimal.Decimal, absolute, required bool) {
		v, ok := value(field)
		if !ok {
			if required {
				missing(field)
			}
			return
		}
		d, err := parseDecimal(v)
		if err != nil {
			row.Errors = append(row.Errors, fmt.Sprintf("%s: %v", field, err))
			return
		}
		if absolute {
			d = d.Abs()
		}
		*dst = d
	}
	decimalField(fieldQuantity, &row.Quantity, true, true)
	decimalField(fieldUnitPrice, &row.UnitPrice, false, true)
	decimalField(fieldBrokerage, &row.Brokerage, false, false)
	decimalField(fieldTotalValue, &row.TotalValue, true, false)
	decimalField(fieldExchangeRate, &row.ExchangeRate, false, false)

	if v, ok := value(fieldCurrency); ok {
		row.Currency = strings.ToUpper(v)
	}
	if v, ok := value(fieldExchange); ok {
		row.Exchange = strings.ToUpper(v)
	}
	if v, ok := value(fieldAssetType); ok {
		row.AssetType = strings.ToUpper(v)
	}

	if row.TotalValue.IsZero() && row.IsValid() {
		row.TotalValue = row.Quantity.Mul(row.UnitPrice)
	}
	return row
}

// parseDate tries the date formats brokers commonly export.
func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"02/01/2006",
		"02/01/2006 15:04:05",
		"02-01-2006",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", value)
}

// parseDecimal strips currency symbols and thousands separators.
func parseDecimal(value string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot parse decimal %q", value)
	}
	return d, nil
}

// normaliseType maps broker action codes to BUY/SELL. Corporate actions (IN/OUT
// transfers) are not trades and are rejected per row.
func normaliseType(value string) (domain.TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY", "B":
		return domain.Buy, nil
	case "SELL", "S":
		return domain.Sell, nil
	case "IN", "OUT":
		return "", fmt.Errorf("corporate action %q is not a trade", value)
	default:
		return "", fmt.Errorf("unknown transaction type %q", value)
	}
}
