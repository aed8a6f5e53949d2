package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/internal/store"
)

func tradeRecord() *store.Record {
	return &store.Record{
		ID:      7,
		Company: "Acme Industries",
		Kind:    invoice.KindTrade,
		Status:  store.StatusPendingReview,
		Invoice: &invoice.Invoice{
			Kind: invoice.KindTrade,
			Trade: &invoice.TradeHeader{
				VoucherType:          invoice.VoucherSales,
				CustomerName:         "Acme Traders",
				DocumentNumber:       "INV-042",
				ResolvedPartyAccount: "Acme Traders",
			},
			Items: []invoice.LineItem{
				{
					ProductName: "Steel Bracket 40mm", ResolvedStockItem: "Steel Bracket 40mm",
					Quantity: 2, ResolvedUnit: "Nos", Rate: 100,
					TaxableAmount: 200, TaxRate: 18, TaxAmount: 36, TotalAmount: 236,
				},
			},
		},
		Violations: []string{"[Row 1] Total Amount 230, Calculated Total Amount: 236"},
	}
}

func TestBuildTradeWorkbook(t *testing.T) {
	w := NewWorkbookWriter(zap.NewNop())

	f, err := w.Build(tradeRecord())
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{sheetInvoice, sheetItems, sheetViolations}, f.GetSheetList())

	company, err := f.GetCellValue(sheetInvoice, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Acme Industries", company)

	vt, err := f.GetCellValue(sheetInvoice, "B5")
	require.NoError(t, err)
	assert.Equal(t, "Sales", vt)

	name, err := f.GetCellValue(sheetItems, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Steel Bracket 40mm", name)

	total, err := f.GetCellValue(sheetItems, "K2")
	require.NoError(t, err)
	assert.Equal(t, "236", total)

	violation, err := f.GetCellValue(sheetViolations, "A2")
	require.NoError(t, err)
	assert.Contains(t, violation, "Total Amount 230")
}

func TestBuildJournalWorkbook(t *testing.T) {
	w := NewWorkbookWriter(zap.NewNop())

	rec := &store.Record{
		ID:      9,
		Company: "Acme Industries",
		Kind:    invoice.KindJournal,
		Status:  store.StatusPendingReview,
		Invoice: &invoice.Invoice{
			Kind:    invoice.KindJournal,
			Journal: &invoice.JournalHeader{VoucherType: invoice.VoucherJournal, Date: "2026-07-15"},
			Accounts: []invoice.AccountLine{
				{AccountName: "Depreciation", Group: "Indirect Expenses", TransactionType: invoice.Debit, DebitAmount: 500},
				{AccountName: "Machinery", Group: "Fixed Assets", TransactionType: invoice.Credit, CreditAmount: 500},
			},
		},
	}

	f, err := w.Build(rec)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{sheetInvoice, sheetAccounts, sheetViolations}, f.GetSheetList())

	acc, err := f.GetCellValue(sheetAccounts, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Machinery", acc)

	credit, err := f.GetCellValue(sheetAccounts, "F3")
	require.NoError(t, err)
	assert.Equal(t, "500", credit)

	empty, err := f.GetCellValue(sheetViolations, "A2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBuildRejectsEmptyPayload(t *testing.T) {
	w := NewWorkbookWriter(zap.NewNop())

	_, err := w.Build(&store.Record{ID: 3})
	require.Error(t, err)
}
