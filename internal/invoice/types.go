// Package invoice defines the typed invoice records extracted from
// documents and the parsing/verification steps that produce them.
package invoice

import "fmt"

// VoucherType identifies the accounting voucher a document maps to.
type VoucherType string

const (
	VoucherSales    VoucherType = "Sales"
	VoucherPurchase VoucherType = "Purchase"
	VoucherJournal  VoucherType = "Journal"
	VoucherContra   VoucherType = "Contra"
	VoucherReceipt  VoucherType = "Receipt"
	VoucherPayment  VoucherType = "Payment"
)

// ParseVoucherType validates a raw voucher type string against the closed set
func ParseVoucherType(s string) (VoucherType, error) {
	switch VoucherType(s) {
	case VoucherSales, VoucherPurchase, VoucherJournal, VoucherContra, VoucherReceipt, VoucherPayment:
		return VoucherType(s), nil
	}
	return "", fmt.Errorf("unknown voucher type: %q", s)
}

// IsTrade reports whether the voucher carries line items (Sales/Purchase)
// as opposed to raw debit/credit account lines.
func (t VoucherType) IsTrade() bool {
	return t == VoucherSales || t == VoucherPurchase
}

// Kind is the shape of an invoice record set.
type Kind string

const (
	KindTrade   Kind = "trade"
	KindJournal Kind = "journal"
)

// TransactionType marks an account line as debit or credit.
type TransactionType string

const (
	Debit  TransactionType = "Debit"
	Credit TransactionType = "Credit"
)

// AccountGroup is a Tally ledger group. Journal account lines must use one
// of the sixteen groups below.
type AccountGroup string

// AccountGroups is the closed set of ledger groups accepted on journal rows.
var AccountGroups = []AccountGroup{
	"Bank Accounts",
	"Capital Account",
	"Cash-in-Hand",
	"Current Assets",
	"Current Liabilities",
	"Direct Expenses",
	"Direct Incomes",
	"Duties & Taxes",
	"Fixed Assets",
	"Indirect Expenses",
	"Indirect Incomes",
	"Loans (Liability)",
	"Purchase Accounts",
	"Sales Accounts",
	"Sundry Creditors",
	"Sundry Debtors",
}

// ValidAccountGroup reports whether g is one of the accepted ledger groups
func ValidAccountGroup(g string) bool {
	for _, ag := range AccountGroups {
		if string(ag) == g {
			return true
		}
	}
	return false
}

// TradeHeader is the header record of a Sales or Purchase invoice.
// Resolved fields stay empty until reconciliation; empty means unresolved.
type TradeHeader struct {
	VoucherType     VoucherType `json:"voucher_type"`
	CustomerName    string      `json:"customer_name"`
	CustomerAddress string      `json:"customer_address"`
	CustomerState   string      `json:"customer_state"`
	CustomerGSTIN   string      `json:"customer_gstin"`
	SupplierName    string      `json:"supplier_name"`
	SupplierAddress string      `json:"supplier_address"`
	SupplierState   string      `json:"supplier_state"`
	SupplierGSTIN   string      `json:"supplier_gstin"`
	DocumentNumber  string      `json:"document_number"`
	DocumentDate    string      `json:"document_date"`
	Narration       string      `json:"narration"`

	PartyAccount         string `json:"party_account"`
	ResolvedPartyAccount string `json:"resolved_party_account"`
}

// PartyLabel returns the free-text label the party ledger is matched on:
// the customer for Sales (our books, money owed to us), the supplier
// for Purchase.
func (h *TradeHeader) PartyLabel() string {
	if h.VoucherType == VoucherSales {
		return h.CustomerName
	}
	return h.SupplierName
}

// Counterparty returns the name/address/state/GSTIN of the party the
// voucher is posted against.
func (h *TradeHeader) Counterparty() (name, address, state, gstin string) {
	if h.VoucherType == VoucherSales {
		return h.CustomerName, h.CustomerAddress, h.CustomerState, h.CustomerGSTIN
	}
	return h.SupplierName, h.SupplierAddress, h.SupplierState, h.SupplierGSTIN
}

// LineItem is one goods row of a Sales/Purchase invoice.
type LineItem struct {
	HSNCode       string  `json:"hsn_code"`
	ProductName   string  `json:"product_name"`
	Quantity      float64 `json:"quantity"`
	QuantityUnit  string  `json:"quantity_unit"`
	Rate          float64 `json:"rate"`
	Currency      string  `json:"currency"`
	Discount      float64 `json:"discount"`
	TaxableAmount float64 `json:"taxable_amount"`
	TaxRate       float64 `json:"tax_rate"`
	TaxAmount     float64 `json:"tax_amount"`
	TotalAmount   float64 `json:"total_amount"`

	ResolvedStockItem string `json:"resolved_stock_item"`
	ResolvedUnit      string `json:"resolved_unit"`
}

// JournalHeader is the header record of a Journal/Contra/Receipt/Payment
// voucher.
type JournalHeader struct {
	VoucherType VoucherType `json:"voucher_type"`
	Date        string      `json:"date"`
	Narration   string      `json:"narration"`
}

// AccountLine is one debit/credit row of a journal-shaped voucher.
type AccountLine struct {
	AccountName     string          `json:"account_name"`
	Address         string          `json:"address"`
	State           string          `json:"state"`
	GSTIN           string          `json:"gstin"`
	Group           AccountGroup    `json:"group"`
	TransactionType TransactionType `json:"transaction_type"`
	DebitAmount     float64         `json:"debit_amount"`
	CreditAmount    float64         `json:"credit_amount"`

	ResolvedAccount string `json:"resolved_account"`
}

// Invoice is the tagged union of the two record shapes. Exactly one of
// Trade/Journal is set, matching Kind.
type Invoice struct {
	Kind     Kind           `json:"kind"`
	Trade    *TradeHeader   `json:"trade,omitempty"`
	Journal  *JournalHeader `json:"journal,omitempty"`
	Items    []LineItem     `json:"items,omitempty"`
	Accounts []AccountLine  `json:"accounts,omitempty"`
}

// Validate checks the tagged-union invariant: the kind names the shape,
// the matching header is set, the other is absent, and the voucher type
// belongs to the closed set. Records arriving from outside the parser
// (reviewer edits, stored payloads) must pass here before use.
func (inv *Invoice) Validate() error {
	switch inv.Kind {
	case KindTrade:
		if inv.Trade == nil {
			return fmt.Errorf("trade invoice is missing its trade header")
		}
		if inv.Journal != nil || len(inv.Accounts) > 0 {
			return fmt.Errorf("trade invoice carries journal records")
		}
		if !inv.Trade.VoucherType.IsTrade() {
			return fmt.Errorf("voucher type %q does not take line items", inv.Trade.VoucherType)
		}
	case KindJournal:
		if inv.Journal == nil {
			return fmt.Errorf("journal invoice is missing its journal header")
		}
		if inv.Trade != nil || len(inv.Items) > 0 {
			return fmt.Errorf("journal invoice carries trade records")
		}
		if _, err := ParseVoucherType(string(inv.Journal.VoucherType)); err != nil {
			return err
		}
		if inv.Journal.VoucherType.IsTrade() {
			return fmt.Errorf("voucher type %q takes line items, not account rows", inv.Journal.VoucherType)
		}
		for i, acc := range inv.Accounts {
			if !ValidAccountGroup(string(acc.Group)) {
				return fmt.Errorf("account row %d: unknown account group: %q", i, acc.Group)
			}
			if acc.TransactionType != Debit && acc.TransactionType != Credit {
				return fmt.Errorf("account row %d: transaction type must be Debit or Credit, got %q", i, acc.TransactionType)
			}
		}
	default:
		return fmt.Errorf("unknown invoice kind: %q", inv.Kind)
	}
	return nil
}

// Type returns the voucher type regardless of shape, "" when the header
// for the kind is absent.
func (inv *Invoice) Type() VoucherType {
	if inv.Kind == KindTrade {
		if inv.Trade == nil {
			return ""
		}
		return inv.Trade.VoucherType
	}
	if inv.Journal == nil {
		return ""
	}
	return inv.Journal.VoucherType
}

// Clone returns a deep copy. Pipeline stages annotate copies instead of
// mutating their input, so the pre-stage record stays inspectable.
func (inv *Invoice) Clone() *Invoice {
	out := &Invoice{Kind: inv.Kind}
	if inv.Trade != nil {
		h := *inv.Trade
		out.Trade = &h
	}
	if inv.Journal != nil {
		h := *inv.Journal
		out.Journal = &h
	}
	if inv.Items != nil {
		out.Items = make([]LineItem, len(inv.Items))
		copy(out.Items, inv.Items)
	}
	if inv.Accounts != nil {
		out.Accounts = make([]AccountLine, len(inv.Accounts))
		copy(out.Accounts, inv.Accounts)
	}
	return out
}

// Unresolved lists the fields still waiting for a reviewer-confirmed master
// name. An empty result means the invoice is ready for provisioning.
func (inv *Invoice) Unresolved() []string {
	var fields []string
	switch inv.Kind {
	case KindTrade:
		if inv.Trade != nil && inv.Trade.ResolvedPartyAccount == "" {
			fields = append(fields, "party account")
		}
		for i, item := range inv.Items {
			if item.ResolvedStockItem == "" {
				fields = append(fields, fmt.Sprintf("stock item (row %d)", i))
			}
			if item.ResolvedUnit == "" {
				fields = append(fields, fmt.Sprintf("unit (row %d)", i))
			}
		}
	case KindJournal:
		for i, acc := range inv.Accounts {
			if acc.ResolvedAccount == "" {
				fields = append(fields, fmt.Sprintf("account name (row %d)", i))
			}
		}
	}
	return fields
}

// NetTotals sums the stated total and tax across all line items.
func (inv *Invoice) NetTotals() (total, tax float64) {
	for _, item := range inv.Items {
		total += item.TotalAmount
		tax += item.TaxAmount
	}
	return total, tax
}
