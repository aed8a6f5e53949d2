package provision

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

// fakeBackend keeps master state in memory so a second provisioning run
// sees what the first one created.
type fakeBackend struct {
	ledgers    []string
	stockItems []string
	units      []string

	createdLedgers []tally.Ledger
	createdUnits   []tally.Unit
	createdStock   []tally.StockItem
	posted         []*tally.Voucher

	failLedgers map[string]error
}

func (f *fakeBackend) Ledgers(context.Context) ([]string, error)    { return f.ledgers, nil }
func (f *fakeBackend) StockItems(context.Context) ([]string, error) { return f.stockItems, nil }
func (f *fakeBackend) Units(context.Context) ([]string, error)      { return f.units, nil }

func (f *fakeBackend) CreateLedger(_ context.Context, l tally.Ledger) error {
	if err := f.failLedgers[l.Name]; err != nil {
		return err
	}
	f.createdLedgers = append(f.createdLedgers, l)
	f.ledgers = append(f.ledgers, l.Name)
	return nil
}

func (f *fakeBackend) CreateUnit(_ context.Context, u tally.Unit) error {
	f.createdUnits = append(f.createdUnits, u)
	f.units = append(f.units, u.Name)
	return nil
}

func (f *fakeBackend) CreateStockItem(_ context.Context, s tally.StockItem) error {
	f.createdStock = append(f.createdStock, s)
	f.stockItems = append(f.stockItems, s.Name)
	return nil
}

func (f *fakeBackend) PostVoucher(_ context.Context, v *tally.Voucher) error {
	f.posted = append(f.posted, v)
	return nil
}

func testSystemLedgers() SystemLedgers {
	return SystemLedgers{
		Sales:    NameGroup{Name: "TallAi - Sales Account", Group: "Sales Accounts"},
		Purchase: NameGroup{Name: "TallAi - Purchase Account", Group: "Purchase Accounts"},
		Tax:      []NameGroup{{Name: "IGST", Group: "Duties & Taxes"}},
	}
}

func reviewedSalesInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		Kind: invoice.KindTrade,
		Trade: &invoice.TradeHeader{
			VoucherType:          invoice.VoucherSales,
			CustomerName:         "Acme Traders Pvt Ltd",
			CustomerAddress:      "12 MG Road, Pune",
			CustomerState:        "Maharashtra",
			CustomerGSTIN:        "27AAPFU0939F1ZV",
			PartyAccount:         "Acme Traders Pvt Ltd",
			ResolvedPartyAccount: "Acme Traders",
		},
		Items: []invoice.LineItem{
			{
				HSNCode: "8517", ProductName: "Steel Bracket 40mm", QuantityUnit: "nos",
				TaxRate: 18, ResolvedUnit: "Nos",
			},
			// reviewer left these empty: raw labels become the masters
			{ProductName: "Angle Plate", QuantityUnit: "pcs"},
		},
	}
}

func TestProvisionTradeCreatesMissingMasters(t *testing.T) {
	backend := &fakeBackend{ledgers: []string{"Acme Traders"}, units: []string{"Nos"}}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	got, result := p.Provision(context.Background(), reviewedSalesInvoice())
	require.Empty(t, result.Failures)

	// party already existed; system + tax ledgers were missing
	var ledgerNames []string
	for _, l := range backend.createdLedgers {
		ledgerNames = append(ledgerNames, l.Name)
	}
	assert.Equal(t, []string{"TallAi - Sales Account", "IGST"}, ledgerNames)
	assert.Equal(t, "Sales Accounts", backend.createdLedgers[0].Group)
	assert.Equal(t, "GST", backend.createdLedgers[1].TaxType)
	assert.Equal(t, "IGST", backend.createdLedgers[1].GSTTaxType)

	// "Nos" existed, "pcs" did not
	require.Len(t, backend.createdUnits, 1)
	assert.Equal(t, "pcs", backend.createdUnits[0].Name)
	assert.Equal(t, "pcs", got.Items[1].ResolvedUnit, "raw label written back as final name")

	require.Len(t, backend.createdStock, 2)
	first := backend.createdStock[0]
	assert.Equal(t, "Steel Bracket 40mm", first.Name)
	assert.Equal(t, "Nos", first.BaseUnit)
	require.NotNil(t, first.HSN)
	assert.Equal(t, "8517", first.HSN.Code)
	require.NotNil(t, first.GSTRate)
	assert.Equal(t, 18.0, first.GSTRate.Rate)
	assert.Equal(t, tally.AnyState, first.GSTRate.StateName)

	second := backend.createdStock[1]
	assert.Nil(t, second.HSN, "no HSN code on the row")
	assert.Nil(t, second.GSTRate, "zero tax rate attaches no GST detail")
}

func TestProvisionCreatesPartyLedgerWithDetails(t *testing.T) {
	backend := &fakeBackend{}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	inv := reviewedSalesInvoice()
	_, result := p.Provision(context.Background(), inv)
	require.Empty(t, result.Failures)

	require.NotEmpty(t, backend.createdLedgers)
	party := backend.createdLedgers[0]
	assert.Equal(t, "Acme Traders", party.Name)
	assert.Equal(t, "Sundry Debtors", party.Group)
	require.NotNil(t, party.GSTRegistration)
	assert.Equal(t, "27AAPFU0939F1ZV", party.GSTRegistration.GSTIN)
	assert.Equal(t, "Maharashtra", party.GSTRegistration.State)
	require.NotNil(t, party.Mailing)
	assert.Equal(t, "India", party.Mailing.Country)
}

func TestProvisionPurchaseUsesCreditorsGroup(t *testing.T) {
	backend := &fakeBackend{}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	inv := reviewedSalesInvoice()
	inv.Trade.VoucherType = invoice.VoucherPurchase
	inv.Trade.SupplierName = "Bolt Suppliers"
	inv.Trade.ResolvedPartyAccount = ""
	inv.Trade.PartyAccount = "Bolt Suppliers"

	got, _ := p.Provision(context.Background(), inv)

	assert.Equal(t, "Bolt Suppliers", got.Trade.ResolvedPartyAccount)
	assert.Equal(t, "Sundry Creditors", backend.createdLedgers[0].Group)
	assert.Equal(t, "TallAi - Purchase Account", backend.createdLedgers[1].Name)
}

func TestProvisionIsIdempotentAcrossRuns(t *testing.T) {
	backend := &fakeBackend{}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	_, first := p.Provision(context.Background(), reviewedSalesInvoice())
	require.Empty(t, first.Failures)
	require.NotEmpty(t, first.Created)

	_, second := p.Provision(context.Background(), reviewedSalesInvoice())
	assert.Empty(t, second.Failures)
	assert.Empty(t, second.Created, "second run finds every master present")
}

func TestProvisionSharedNewNameCreatedOnce(t *testing.T) {
	backend := &fakeBackend{}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	inv := reviewedSalesInvoice()
	inv.Items[0].ResolvedUnit = ""
	inv.Items[0].QuantityUnit = "pcs"
	inv.Items[1].QuantityUnit = "pcs" // same new unit on both rows

	p.Provision(context.Background(), inv)

	require.Len(t, backend.createdUnits, 1, "rows sharing a new name create it once")
}

func TestProvisionFailureDoesNotAbortBatch(t *testing.T) {
	backend := &fakeBackend{
		failLedgers: map[string]error{"Acme Traders": errors.New("gateway timeout")},
	}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	got, result := p.Provision(context.Background(), reviewedSalesInvoice())

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "ledger", result.Failures[0].Kind)
	assert.Equal(t, "Acme Traders", result.Failures[0].Name)

	assert.Equal(t, "Acme Traders", got.Trade.ResolvedPartyAccount,
		"intended name stays populated despite the failure")
	assert.NotEmpty(t, backend.createdUnits, "later rows still provisioned")
	assert.NotEmpty(t, backend.createdStock)
}

func TestProvisionJournalLedgers(t *testing.T) {
	backend := &fakeBackend{ledgers: []string{"Machinery A/c"}}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	inv := &invoice.Invoice{
		Kind:    invoice.KindJournal,
		Journal: &invoice.JournalHeader{VoucherType: invoice.VoucherJournal},
		Accounts: []invoice.AccountLine{
			{AccountName: "Depreciation", Group: "Indirect Expenses", TransactionType: invoice.Debit, DebitAmount: 500},
			{AccountName: "Machinery", ResolvedAccount: "Machinery A/c", Group: "Fixed Assets", TransactionType: invoice.Credit, CreditAmount: 500},
		},
	}

	got, result := p.Provision(context.Background(), inv)
	require.Empty(t, result.Failures)

	require.Len(t, backend.createdLedgers, 1, "resolved existing account is not recreated")
	assert.Equal(t, "Depreciation", backend.createdLedgers[0].Name)
	assert.Equal(t, "Indirect Expenses", backend.createdLedgers[0].Group)
	assert.Equal(t, "Depreciation", got.Accounts[0].ResolvedAccount)
}

func TestProvisionSkipsInvalidGSTIN(t *testing.T) {
	backend := &fakeBackend{}
	p := NewProvisioner(backend, testSystemLedgers(), zap.NewNop())

	inv := reviewedSalesInvoice()
	inv.Trade.CustomerGSTIN = "not-a-gstin"

	_, result := p.Provision(context.Background(), inv)
	require.Empty(t, result.Failures)

	party := backend.createdLedgers[0]
	assert.Nil(t, party.GSTRegistration, "bad GSTIN attaches no registration details")
	assert.NotNil(t, party.Mailing)
}
