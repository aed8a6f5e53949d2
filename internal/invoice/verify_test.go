package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesItem(rate, qty, discount, taxable, taxRate, tax, total float64) LineItem {
	return LineItem{
		ProductName:   "Widget",
		Rate:          rate,
		Quantity:      qty,
		Discount:      discount,
		TaxableAmount: taxable,
		TaxRate:       taxRate,
		TaxAmount:     tax,
		TotalAmount:   total,
	}
}

func TestVerifyBalancedSales(t *testing.T) {
	inv := &Invoice{
		Kind:  KindTrade,
		Trade: &TradeHeader{VoucherType: VoucherSales},
		Items: []LineItem{salesItem(100, 2, 0, 200, 18, 36, 236)},
	}

	violations := Verify(inv, DefaultTolerance())
	assert.Empty(t, violations)
}

func TestVerifyTotalMismatch(t *testing.T) {
	inv := &Invoice{
		Kind:  KindTrade,
		Trade: &TradeHeader{VoucherType: VoucherSales},
		Items: []LineItem{salesItem(100, 2, 0, 200, 18, 36, 230)},
	}

	violations := Verify(inv, DefaultTolerance())
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "[Row 0]")
	assert.Contains(t, violations[0], "Total Amount 230")
	assert.Contains(t, violations[0], "Calculated Total Amount: 236")
}

func TestVerifyCollectsAllViolations(t *testing.T) {
	inv := &Invoice{
		Kind:  KindTrade,
		Trade: &TradeHeader{VoucherType: VoucherPurchase},
		Items: []LineItem{
			// taxable wrong (should be 200) and total wrong (should be 286)
			salesItem(100, 2, 0, 250, 18, 45, 300),
			// clean row
			salesItem(50, 1, 0, 50, 18, 9, 59),
			// tax wrong (should be 18)
			salesItem(100, 1, 0, 100, 18, 25, 125),
		},
	}

	violations := Verify(inv, DefaultTolerance())
	require.Len(t, violations, 3)
	assert.Contains(t, violations[0], "[Row 0] Taxable Amount 250")
	assert.Contains(t, violations[1], "[Row 0] Total Amount 300")
	assert.Contains(t, violations[2], "[Row 2] Tax Amount 25")
}

func TestVerifyToleranceBoundary(t *testing.T) {
	tol := DefaultTolerance()

	// off by exactly epsilon: still fine
	inv := &Invoice{
		Kind:  KindTrade,
		Trade: &TradeHeader{VoucherType: VoucherSales},
		Items: []LineItem{salesItem(100, 2, 0, 200, 18, 36, 237)},
	}
	assert.Empty(t, Verify(inv, tol))

	// beyond epsilon: one violation
	inv.Items[0].TotalAmount = 237.2
	assert.Len(t, Verify(inv, tol), 1)
}

func TestVerifyBalancedJournal(t *testing.T) {
	inv := &Invoice{
		Kind:    KindJournal,
		Journal: &JournalHeader{VoucherType: VoucherJournal},
		Accounts: []AccountLine{
			{AccountName: "Depreciation", TransactionType: Debit, DebitAmount: 500},
			{AccountName: "Machinery", TransactionType: Credit, CreditAmount: 500},
		},
	}

	assert.Empty(t, Verify(inv, DefaultTolerance()))
}

func TestVerifyUnbalancedJournal(t *testing.T) {
	inv := &Invoice{
		Kind:    KindJournal,
		Journal: &JournalHeader{VoucherType: VoucherContra},
		Accounts: []AccountLine{
			{AccountName: "Cash", TransactionType: Debit, DebitAmount: 510},
			{AccountName: "Bank", TransactionType: Credit, CreditAmount: 500},
		},
	}

	violations := Verify(inv, DefaultTolerance())
	require.Len(t, violations, 1, "journal imbalance yields exactly one message")
	assert.Contains(t, violations[0], "510")
	assert.Contains(t, violations[0], "500")
}

func TestToleranceRounding(t *testing.T) {
	tol := Tolerance{Epsilon: 0.01, Digits: 2}
	assert.True(t, tol.Within(10.004, 10.0))
	assert.False(t, tol.Within(10.5, 10.0))

	zero := Tolerance{Epsilon: 0, Digits: 0}
	assert.True(t, zero.Within(10.4, 10.0), "round-to-integer tolerance")
	assert.False(t, zero.Within(11.0, 10.0))
}
