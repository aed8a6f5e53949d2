// Package tally talks to a Tally gateway over its XML-over-HTTP protocol:
// master queries, master creation and voucher posting.
package tally

import "context"

// Tally uses a control character prefix for its built-in sentinel values.
const (
	NotApplicable = " Not Applicable"
	AnyState      = " Any"
)

// GSTRegistration carries a ledger's GST registration details
type GSTRegistration struct {
	GSTIN            string
	State            string
	RegistrationType string // "Regular" for everything this system creates
	ApplicableFrom   Date
}

// Mailing carries a ledger's mailing details
type Mailing struct {
	Name           string
	Address        string
	State          string
	Country        string
	ApplicableFrom Date
}

// Ledger is an account in the chart of accounts
type Ledger struct {
	Name            string
	Group           string
	TaxType         string // "GST" on tax ledgers
	GSTTaxType      string // e.g. "IGST"
	GSTRegistration *GSTRegistration
	Mailing         *Mailing
}

// Unit is a unit of measure
type Unit struct {
	Name string
}

// HSNDetail is the tax-classification detail of a stock item
type HSNDetail struct {
	Code           string
	ApplicableFrom Date
}

// GSTRateDetail is the GST rate detail of a stock item
type GSTRateDetail struct {
	DutyHead       string // "IGST"
	Rate           float64
	StateName      string // AnyState for a state-wildcard rate
	ApplicableFrom Date
}

// StockItem is an inventory master
type StockItem struct {
	Name     string
	BaseUnit string
	HSN      *HSNDetail
	GSTRate  *GSTRateDetail
}

// VoucherLedger is one signed ledger line of a voucher. Negative amounts
// are debits in Tally's convention.
type VoucherLedger struct {
	Name   string
	Amount float64
}

// InventoryAllocation is one stock line of a trade voucher, with the
// ledger(s) its amount is accounted against.
type InventoryAllocation struct {
	StockItem string
	Quantity  float64
	Unit      string
	Rate      float64
	Amount    float64
	Ledgers   []VoucherLedger
}

// Voucher is a posting request
type Voucher struct {
	Type          string
	Date          Date
	Reference     string
	ReferenceDate Date
	Narration     string
	PlaceOfSupply string
	Ledgers       []VoucherLedger
	Inventory     []InventoryAllocation
}

// Backend is the ledger-backend contract the pipeline depends on. The
// master queries return current names only; creation and posting are
// synchronous request-response calls.
type Backend interface {
	Ledgers(ctx context.Context) ([]string, error)
	StockItems(ctx context.Context) ([]string, error)
	Units(ctx context.Context) ([]string, error)
	CreateLedger(ctx context.Context, ledger Ledger) error
	CreateUnit(ctx context.Context, unit Unit) error
	CreateStockItem(ctx context.Context, item StockItem) error
	PostVoucher(ctx context.Context, voucher *Voucher) error
}
