package invoice

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// Render serializes the invoice back into the four-section text format,
// including the resolved display columns. Parsing the result yields an
// equivalent Invoice.
func (inv *Invoice) Render() string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if inv.Kind == KindTrade {
		h := inv.Trade
		_ = w.Write([]string{
			colVoucherType,
			colCustomerName, colCustomerAddress, colCustomerState, colCustomerGSTIN,
			colSupplierName, colSupplierAddress, colSupplierState, colSupplierGSTIN,
			colDocumentNumber, colDocumentDate, colNarration,
			colPartyAccount, colDisPartyAccount,
		})
		_ = w.Write([]string{
			string(h.VoucherType),
			h.CustomerName, h.CustomerAddress, h.CustomerState, h.CustomerGSTIN,
			h.SupplierName, h.SupplierAddress, h.SupplierState, h.SupplierGSTIN,
			h.DocumentNumber, h.DocumentDate, h.Narration,
			h.PartyAccount, h.ResolvedPartyAccount,
		})
		_ = w.Write([]string{
			colHSNCode, colProductName, colQuantity, colQuantityUnit, colRate,
			colCurrency, colDiscount, colTaxableAmt, colTaxRate, colTaxAmount,
			colTotalAmount, colDisStockItem, colDisUnits,
		})
		for _, item := range inv.Items {
			_ = w.Write([]string{
				item.HSNCode, item.ProductName, formatNum(item.Quantity), item.QuantityUnit,
				formatNum(item.Rate), item.Currency, formatNum(item.Discount),
				formatNum(item.TaxableAmount), formatNum(item.TaxRate),
				formatNum(item.TaxAmount), formatNum(item.TotalAmount),
				item.ResolvedStockItem, item.ResolvedUnit,
			})
		}
	} else {
		h := inv.Journal
		_ = w.Write([]string{colVoucherType, colVoucherDate, colNarration})
		_ = w.Write([]string{string(h.VoucherType), h.Date, h.Narration})
		_ = w.Write([]string{
			colAccountName, colAccountAddress, colAccountState, colAccountGSTIN,
			colAccountGroup, colTxnType, colDebitAmount, colCreditAmount,
			colDisAccountName,
		})
		for _, acc := range inv.Accounts {
			_ = w.Write([]string{
				acc.AccountName, acc.Address, acc.State, acc.GSTIN,
				string(acc.Group), string(acc.TransactionType),
				formatNum(acc.DebitAmount), formatNum(acc.CreditAmount),
				acc.ResolvedAccount,
			})
		}
	}

	w.Flush()
	return sb.String()
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
