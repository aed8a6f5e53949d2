package invoice

import (
	"fmt"
	"math"
)

// Tolerance is the shared arithmetic tolerance: amounts are compared with
// absolute slack Epsilon after rounding to Digits decimal places. One
// Tolerance serves both the line-item checks and the journal balance check.
type Tolerance struct {
	Epsilon float64
	Digits  int
}

// DefaultTolerance returns the standard accounting tolerance.
func DefaultTolerance() Tolerance {
	return Tolerance{Epsilon: 1.0, Digits: 1}
}

// Round rounds v to the configured number of decimal digits.
func (t Tolerance) Round(v float64) float64 {
	scale := math.Pow(10, float64(t.Digits))
	return math.Round(v*scale) / scale
}

// Within reports whether two amounts agree within the tolerance.
func (t Tolerance) Within(a, b float64) bool {
	return math.Abs(t.Round(a)-t.Round(b)) <= t.Epsilon
}

// Verify checks the invoice's arithmetic invariants and returns the ordered
// list of violation messages. An empty list means verified. Violations are
// data for the reviewer, not errors: all rows are checked, nothing
// short-circuits, and malformed numbers cannot occur here (the parser
// already coerced every numeric column).
func Verify(inv *Invoice, tol Tolerance) []string {
	if inv.Kind == KindTrade {
		return verifyTrade(inv.Items, tol)
	}
	return verifyJournal(inv.Accounts, tol)
}

// verifyTrade recomputes each row's derived amounts and compares them
// against the stated values.
func verifyTrade(items []LineItem, tol Tolerance) []string {
	var violations []string
	for i, item := range items {
		taxableCalc := item.Rate*item.Quantity - item.Discount
		if !tol.Within(item.TaxableAmount, taxableCalc) {
			violations = append(violations, fmt.Sprintf(
				"[Row %d] Taxable Amount %s, Calculated Taxable Amount: %s",
				i, formatNum(item.TaxableAmount), formatNum(tol.Round(taxableCalc))))
		}

		taxCalc := item.TaxableAmount * item.TaxRate / 100
		if !tol.Within(item.TaxAmount, taxCalc) {
			violations = append(violations, fmt.Sprintf(
				"[Row %d] Tax Amount %s, Calculated Tax Amount: %s",
				i, formatNum(item.TaxAmount), formatNum(tol.Round(taxCalc))))
		}

		totalCalc := item.TaxableAmount + item.TaxAmount
		if !tol.Within(item.TotalAmount, totalCalc) {
			violations = append(violations, fmt.Sprintf(
				"[Row %d] Total Amount %s, Calculated Total Amount: %s",
				i, formatNum(item.TotalAmount), formatNum(tol.Round(totalCalc))))
		}
	}
	return violations
}

// verifyJournal checks that debits balance credits across the whole batch.
func verifyJournal(accounts []AccountLine, tol Tolerance) []string {
	var debit, credit float64
	for _, acc := range accounts {
		debit += acc.DebitAmount
		credit += acc.CreditAmount
	}

	debit = tol.Round(debit)
	credit = tol.Round(credit)
	if math.Abs(debit-credit) > tol.Epsilon {
		return []string{fmt.Sprintf(
			"Debit total %s does not balance credit total %s",
			formatNum(debit), formatNum(credit))}
	}
	return nil
}
