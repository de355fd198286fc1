package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cgtTracker/internal/domain"
)

const selfWealthCSV = `Trade Date,Action,Code,Units,Average Price,Brokerage,Total
2024-01-10,Buy,VAS,100,40.00,9.50,4009.50
2024-03-05,Sell,VAS,-20,45.00,9.50,-900.00
2024-04-01,IN,VAS,50,0,0,0
2024-05-12,Buy,BHP,10,"$1,234.50",9.50,"$12,354.50"
`

func newTestImporter(t *testing.T, store *fakeTradeStore) *ImportService {
	t.Helper()
	svc, err := NewImportService(&mockLogger{}, store, store, store, "", "")
	require.NoError(t, err)
	return svc
}

func TestDetectSelfWealth(t *testing.T) {
	assert.True(t, DetectSelfWealth([]string{"Trade Date", "Action", "Code", "Units", "Average Price", "Brokerage", "Total"}))
	assert.False(t, DetectSelfWealth([]string{"Date", "Side", "Symbol", "Qty", "Price"}))
}

func TestPreview_SelfWealth(t *testing.T) {
	svc := newTestImporter(t, newFakeTradeStore())

	preview, err := svc.Preview(context.Background(), strings.NewReader(selfWealthCSV), SelfWealthMapping())
	require.NoError(t, err)
	require.Len(t, preview.Rows, 4)

	assert.Equal(t, 3, preview.ValidCount)
	assert.Equal(t, 1, preview.ErrorCount)
	assert.Equal(t, 0, preview.DuplicateCount)
	assert.Equal(t, 3, preview.NewCount)

	buy := preview.Rows[0]
	require.True(t, buy.IsValid())
	assert.Equal(t, day(2024, time.January, 10), buy.TradeDate)
	assert.Equal(t, domain.Buy, buy.Type)
	assert.Equal(t, "VAS", buy.Ticker)
	assert.Equal(t, "100", buy.Quantity.String())
	assert.Equal(t, "40", buy.UnitPrice.String())
	assert.Equal(t, "9.5", buy.Brokerage.String())
	assert.Equal(t, "4009.5", buy.TotalValue.String())
	assert.Equal(t, "AUD", buy.Currency)
	assert.Equal(t, "1", buy.ExchangeRate.String())
	assert.Equal(t, "Buy", buy.RawData["Action"])

	// Broker exports negate sells; quantities are stored unsigned.
	sell := preview.Rows[1]
	require.True(t, sell.IsValid())
	assert.Equal(t, domain.Sell, sell.Type)
	assert.Equal(t, "20", sell.Quantity.String())
	assert.Equal(t, "900", sell.TotalValue.String())

	// Transfers are not trades.
	transfer := preview.Rows[2]
	assert.False(t, transfer.IsValid())
	require.Len(t, transfer.Errors, 1)
	assert.Contains(t, transfer.Errors[0], "corporate action")

	// Currency symbols and thousands separators are tolerated.
	pricey := preview.Rows[3]
	require.True(t, pricey.IsValid(), "errors: %v", pricey.Errors)
	assert.Equal(t, "1234.5", pricey.UnitPrice.String())
	assert.Equal(t, "12354.5", pricey.TotalValue.String())
}

func TestPreview_FlagsDuplicates(t *testing.T) {
	store := newFakeTradeStore()
	svc := newTestImporter(t, store)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, strings.NewReader(selfWealthCSV), SelfWealthMapping(), "trades.csv", domain.SourceSelfWealth)
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, strings.NewReader(selfWealthCSV), SelfWealthMapping())
	require.NoError(t, err)
	assert.Equal(t, 3, preview.ValidCount)
	assert.Equal(t, 3, preview.DuplicateCount)
	assert.Equal(t, 0, preview.NewCount)
	assert.True(t, preview.DuplicateRows[2])
}

func TestConfirm_CreatesTradesAndParcels(t *testing.T) {
	store := newFakeTradeStore()
	svc := newTestImporter(t, store)

	record, err := svc.Confirm(context.Background(), strings.NewReader(selfWealthCSV), SelfWealthMapping(), "trades.csv", domain.SourceSelfWealth)
	require.NoError(t, err)

	assert.Equal(t, "trades.csv", record.Filename)
	assert.Equal(t, domain.SourceSelfWealth, record.SourceType)
	assert.Equal(t, 3, record.RowCount)
	assert.NotZero(t, record.ID)

	require.Len(t, store.transactions, 3)
	require.Len(t, store.imports, 1)
	for _, txn := range store.transactions {
		require.NotNil(t, txn.ImportID)
		assert.Equal(t, record.ID, *txn.ImportID)
	}

	// Only the two BUY rows create cost-basis lots.
	require.Len(t, store.parcels, 2)
	vas := store.parcels[0]
	assert.Equal(t, "100", vas.OriginalQuantity.String())
	assert.Equal(t, "100", vas.RemainingQuantity.String())
	assert.Equal(t, "4009.5", vas.TotalCostBase.String())
	assert.Equal(t, "40.095", vas.CostPerUnit.String())
	assert.Equal(t, day(2024, time.January, 10), vas.AcquisitionDate)

	sec, err := store.FindByTicker(context.Background(), "VAS")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, vas.SecurityID, sec.ID)
}

func TestConfirm_SkipsDuplicatesOnReimport(t *testing.T) {
	store := newFakeTradeStore()
	svc := newTestImporter(t, store)
	ctx := context.Background()

	first, err := svc.Confirm(ctx, strings.NewReader(selfWealthCSV), SelfWealthMapping(), "trades.csv", domain.SourceSelfWealth)
	require.NoError(t, err)
	assert.Equal(t, 3, first.RowCount)

	second, err := svc.Confirm(ctx, strings.NewReader(selfWealthCSV), SelfWealthMapping(), "trades.csv", domain.SourceSelfWealth)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RowCount)
	assert.Len(t, store.transactions, 3)
}

// A failure partway through a file must leave nothing behind: no audit record,
// no transactions, no parcels, no securities from earlier rows.
func TestConfirm_MidFileFailurePersistsNothing(t *testing.T) {
	store := newFakeTradeStore()
	store.failOnTrade = 2
	store.tradeErr = errors.New("constraint violated")
	svc := newTestImporter(t, store)

	_, err := svc.Confirm(context.Background(), strings.NewReader(selfWealthCSV),
		SelfWealthMapping(), "trades.csv", domain.SourceSelfWealth)
	require.ErrorIs(t, err, store.tradeErr)

	assert.Empty(t, store.transactions)
	assert.Empty(t, store.parcels)
	assert.Empty(t, store.imports)
	sec, err := store.FindByTicker(context.Background(), "VAS")
	require.NoError(t, err)
	assert.Nil(t, sec)
}

func TestConfirm_GenericMapping(t *testing.T) {
	csvContent := "Date,Side,Symbol,Qty,Price,FX,Ccy,Market\n" +
		"15/06/2024,B,AAPL,5,180.25,1.52,USD,NASDAQ\n"
	mapping := map[string]string{
		"Date":   "trade_date",
		"Side":   "transaction_type",
		"Symbol": "ticker",
		"Qty":    "quantity",
		"Price":  "unit_price",
		"FX":     "exchange_rate",
		"Ccy":    "currency",
		"Market": "exchange",
	}
	store := newFakeTradeStore()
	svc := newTestImporter(t, store)

	record, err := svc.Confirm(context.Background(), strings.NewReader(csvContent), mapping, "us.csv", domain.SourceGeneric)
	require.NoError(t, err)
	assert.Equal(t, 1, record.RowCount)

	require.Len(t, store.transactions, 1)
	txn := store.transactions[0]
	assert.Equal(t, day(2024, time.June, 15), txn.TradeDate)
	assert.Equal(t, domain.Buy, txn.Type)
	assert.Equal(t, "USD", txn.Currency)
	assert.Equal(t, "1.52", txn.ExchangeRate.String())

	// Cost base converts to AUD: (5 * 180.25 + 0) * 1.52.
	require.Len(t, store.parcels, 1)
	assert.Equal(t, "1369.9", store.parcels[0].TotalCostBase.String())

	sec, err := store.FindByTicker(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, domain.Exchange("NASDAQ"), sec.Exchange)
}

func TestPreview_EmptyFile(t *testing.T) {
	svc := newTestImporter(t, newFakeTradeStore())
	_, err := svc.Preview(context.Background(), strings.NewReader(""), SelfWealthMapping())
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	for _, value := range []string{"2024-06-15", "15/06/2024", "15-06-2024", "2024-06-15 10:30:00"} {
		d, err := parseDate(value)
		require.NoError(t, err, value)
		assert.Equal(t, day(2024, time.June, 15), d, value)
	}
	_, err := parseDate("June 15 2024")
	require.Error(t, err)
}
