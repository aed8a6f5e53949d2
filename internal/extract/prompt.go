package extract

import (
	"fmt"
	"strings"

	"github.com/tallai/tallai/internal/invoice"
)

// buildPrompt asks the model for the four-section CSV format the
// invoice parser understands. The column names here must stay in sync
// with the parser; defaults match what the amount verifier assumes for
// missing cells.
func buildPrompt(documentText string) string {
	groups := make([]string, 0, len(invoice.AccountGroups))
	for _, g := range invoice.AccountGroups {
		groups = append(groups, string(g))
	}

	return fmt.Sprintf(`You are an expert accounting system assistant specializing in Tally data entry automation.
Your task is to analyze a financial document's text and prepare it for Tally import.

First decide the Voucher Type: Sales, Purchase, Journal, Contra, Receipt or Payment.
An invoice for goods sold is Sales; an invoice for goods bought is Purchase.
Everything else is an accounting voucher with debit and credit rows.

For Sales and Purchase, get for the invoice:
Voucher Type,Customer Name,Customer Address,Customer State,Customer GSTIN,Supplier Name,Supplier Address,Supplier State,Supplier GSTIN,Document Number,Document Date,Narration

and for each good in the invoice:
HSN code,Product Name,Quantity,Quantity Unit,Rate,Currency,Discount,Taxable Amount,Tax Rate,Tax Amount,Total Amount

For Journal, Contra, Receipt and Payment, get for the voucher:
Voucher Type,Voucher Date,Narration

and for each account affected:
Account Name,Account Address,Account State,Account GSTIN,Account Group,Transaction Type,Debit Amount,Credit Amount

Important rules:
1. Keep the output format strictly as follows:
    line 1 for the titles above in csv format
    line 2 for the data in csv format
    line 3 for the row titles in csv format
    line 4 onwards for row data in csv format
2. Output no other information.
3. Wrap comma separated values in double quotes and escape any double quotes in the values with another double quote.
4. Pages are separated by 3 new lines.
5. Ignore duplicate pages.
6. Remove any commas from numbers.
7. Product Name should be the raw name from the invoice.
8. For decimal numbers, use maximum 2 decimal places.
9. If tax rate is given as IGST, use that directly. If given as CGST/SGST, sum them up.
10. For quantity use default value 1 if not given.
11. For discount use default value 0 if not given.
12. For tax rate use default value 0 if not given.
13. For tax amount use default value 0 if not given.
14. For quantity unit use default value "Nos" if not given.
15. For other fields use default value empty string if not given.
16. Transaction Type must be exactly Debit or Credit.
17. Account Group must be one of: %s.

The document text is as follows:
%s`, strings.Join(groups, ", "), documentText)
}
