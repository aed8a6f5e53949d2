package voucher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/internal/tally"
)

type fakePoster struct {
	posted  []*tally.Voucher
	postErr error
}

func (f *fakePoster) Ledgers(context.Context) ([]string, error)       { return nil, nil }
func (f *fakePoster) StockItems(context.Context) ([]string, error)    { return nil, nil }
func (f *fakePoster) Units(context.Context) ([]string, error)         { return nil, nil }
func (f *fakePoster) CreateLedger(context.Context, tally.Ledger) error { return nil }
func (f *fakePoster) CreateUnit(context.Context, tally.Unit) error     { return nil }
func (f *fakePoster) CreateStockItem(context.Context, tally.StockItem) error {
	return nil
}

func (f *fakePoster) PostVoucher(_ context.Context, v *tally.Voucher) error {
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, v)
	return nil
}

func testLedgers() Ledgers {
	return Ledgers{
		Sales:    "TallAi - Sales Account",
		Purchase: "TallAi - Purchase Account",
		Tax:      []string{"IGST"},
	}
}

func newTestBuilder(backend tally.Backend, ledgers Ledgers) *Builder {
	return NewBuilder(backend, ledgers, invoice.DefaultTolerance(), zap.NewNop())
}

func resolvedSalesInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		Kind: invoice.KindTrade,
		Trade: &invoice.TradeHeader{
			VoucherType:          invoice.VoucherSales,
			CustomerName:         "Acme Traders",
			CustomerState:        "Maharashtra",
			DocumentNumber:       "INV-042",
			DocumentDate:         "15/07/2026",
			Narration:            "Being goods sold",
			ResolvedPartyAccount: "Acme Traders",
		},
		Items: []invoice.LineItem{
			{
				ResolvedStockItem: "Steel Bracket 40mm", ResolvedUnit: "Nos",
				Quantity: 2, Rate: 100,
				TaxableAmount: 200, TaxRate: 18, TaxAmount: 36, TotalAmount: 236,
			},
		},
	}
}

func TestBuildSalesVoucher(t *testing.T) {
	b := newTestBuilder(&fakePoster{}, testLedgers())

	v, err := b.Build(resolvedSalesInvoice())
	require.NoError(t, err)

	assert.Equal(t, "Sales", v.Type)
	assert.Equal(t, tally.Date("20260715"), v.Date)
	assert.Equal(t, v.Date, v.ReferenceDate)
	assert.Equal(t, "INV-042", v.Reference)
	assert.Equal(t, "Maharashtra", v.PlaceOfSupply)

	require.Len(t, v.Ledgers, 2)
	assert.Equal(t, tally.VoucherLedger{Name: "Acme Traders", Amount: -236}, v.Ledgers[0])
	assert.Equal(t, tally.VoucherLedger{Name: "IGST", Amount: 36}, v.Ledgers[1])

	require.Len(t, v.Inventory, 1)
	alloc := v.Inventory[0]
	assert.Equal(t, "Steel Bracket 40mm", alloc.StockItem)
	assert.Equal(t, "Nos", alloc.Unit)
	assert.Equal(t, 200.0, alloc.Amount)
	require.Len(t, alloc.Ledgers, 1)
	assert.Equal(t, tally.VoucherLedger{Name: "TallAi - Sales Account", Amount: 200}, alloc.Ledgers[0])
}

func TestBuildPurchaseMirrorsSigns(t *testing.T) {
	b := newTestBuilder(&fakePoster{}, testLedgers())

	inv := resolvedSalesInvoice()
	inv.Trade.VoucherType = invoice.VoucherPurchase
	inv.Trade.SupplierName = "Acme Traders"
	inv.Trade.SupplierState = "Karnataka"

	v, err := b.Build(inv)
	require.NoError(t, err)

	assert.Equal(t, "Purchase", v.Type)
	assert.Equal(t, "Karnataka", v.PlaceOfSupply, "purchase posts against the supplier")
	assert.Equal(t, 236.0, v.Ledgers[0].Amount, "party credited on purchase")
	assert.Equal(t, -36.0, v.Ledgers[1].Amount)
	assert.Equal(t, -200.0, v.Inventory[0].Amount)
	assert.Equal(t, "TallAi - Purchase Account", v.Inventory[0].Ledgers[0].Name)
}

func TestBuildTaxSplitAcrossLedgers(t *testing.T) {
	ledgers := testLedgers()
	ledgers.Tax = []string{"CGST", "SGST"}
	b := newTestBuilder(&fakePoster{}, ledgers)

	v, err := b.Build(resolvedSalesInvoice())
	require.NoError(t, err)

	require.Len(t, v.Ledgers, 3)
	assert.Equal(t, tally.VoucherLedger{Name: "CGST", Amount: 18}, v.Ledgers[1])
	assert.Equal(t, tally.VoucherLedger{Name: "SGST", Amount: 18}, v.Ledgers[2])
}

func TestBuildTaxSplitRemainderOnLastLedger(t *testing.T) {
	ledgers := testLedgers()
	ledgers.Tax = []string{"CGST", "SGST"}
	b := newTestBuilder(&fakePoster{}, ledgers)

	inv := resolvedSalesInvoice()
	// 36.1 splits into 18.1 + 18.0 after rounding to one decimal
	inv.Items[0].TaxAmount = 36.1
	inv.Items[0].TotalAmount = 236.1

	v, err := b.Build(inv)
	require.NoError(t, err)

	assert.Equal(t, 18.1, v.Ledgers[1].Amount)
	assert.Equal(t, 18.0, v.Ledgers[2].Amount)
	assert.InDelta(t, 0, v.Ledgers[0].Amount+v.Ledgers[1].Amount+v.Ledgers[2].Amount+v.Inventory[0].Ledgers[0].Amount, 1e-9)
}

func TestBuildJournalVoucher(t *testing.T) {
	b := newTestBuilder(&fakePoster{}, testLedgers())

	inv := &invoice.Invoice{
		Kind: invoice.KindJournal,
		Journal: &invoice.JournalHeader{
			VoucherType: invoice.VoucherJournal,
			Date:        "2026-07-15",
			Narration:   "Depreciation for the year",
		},
		Accounts: []invoice.AccountLine{
			{AccountName: "Depreciation", ResolvedAccount: "Depreciation A/c", TransactionType: invoice.Debit, DebitAmount: 500},
			{AccountName: "Machinery", TransactionType: invoice.Credit, CreditAmount: 500},
		},
	}

	v, err := b.Build(inv)
	require.NoError(t, err)

	assert.Equal(t, "Journal", v.Type)
	assert.Equal(t, tally.Date("20260715"), v.Date)
	require.Len(t, v.Ledgers, 2)
	assert.Equal(t, tally.VoucherLedger{Name: "Depreciation A/c", Amount: -500}, v.Ledgers[0])
	assert.Equal(t, tally.VoucherLedger{Name: "Machinery", Amount: 500}, v.Ledgers[1],
		"unresolved row falls back to the raw account name")
	assert.Empty(t, v.Inventory)
}

func TestBuildRefusesUnbalancedVoucher(t *testing.T) {
	b := newTestBuilder(&fakePoster{}, testLedgers())

	inv := resolvedSalesInvoice()
	// reviewer bumped the total without touching the parts
	inv.Items[0].TotalAmount = 250

	_, err := b.Build(inv)
	require.ErrorIs(t, err, ErrUnbalanced)
}

func TestBuildUnbalancedJournal(t *testing.T) {
	b := newTestBuilder(&fakePoster{}, testLedgers())

	inv := &invoice.Invoice{
		Kind:    invoice.KindJournal,
		Journal: &invoice.JournalHeader{VoucherType: invoice.VoucherJournal},
		Accounts: []invoice.AccountLine{
			{AccountName: "Depreciation", TransactionType: invoice.Debit, DebitAmount: 510},
			{AccountName: "Machinery", TransactionType: invoice.Credit, CreditAmount: 500},
		},
	}

	_, err := b.Build(inv)
	require.ErrorIs(t, err, ErrUnbalanced)
}

func TestBuildFallsBackToTodayOnBadDate(t *testing.T) {
	b := newTestBuilder(&fakePoster{}, testLedgers())

	inv := resolvedSalesInvoice()
	inv.Trade.DocumentDate = "sometime in July"

	v, err := b.Build(inv)
	require.NoError(t, err)
	assert.Equal(t, tally.Today(), v.Date)
}

func TestSubmitWrapsBackendError(t *testing.T) {
	backend := &fakePoster{postErr: errors.New("gateway closed the connection")}
	b := newTestBuilder(backend, testLedgers())

	v, err := b.Build(resolvedSalesInvoice())
	require.NoError(t, err)

	err = b.Submit(context.Background(), v)
	var perr *PostingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Sales", perr.VoucherType)
	assert.Equal(t, "INV-042", perr.Reference)
}

func TestSubmitPostsVoucher(t *testing.T) {
	backend := &fakePoster{}
	b := newTestBuilder(backend, testLedgers())

	v, err := b.Build(resolvedSalesInvoice())
	require.NoError(t, err)
	require.NoError(t, b.Submit(context.Background(), v))
	require.Len(t, backend.posted, 1)
	assert.Same(t, v, backend.posted[0])
}
