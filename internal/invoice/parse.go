package invoice

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports malformed extracted text. It carries the 1-based line
// index and the raw line content so the reviewer can see exactly what the
// extraction service produced. Parse errors are never auto-corrected.
type ParseError struct {
	Line int
	Raw  string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("parse error at line %d: %s (line: %q)", e.Line, e.Msg, e.Raw)
}

// Column names of the four-section extraction format. The extraction
// service is prompted to emit exactly these; lookup is case-insensitive.
const (
	colVoucherType = "Voucher Type"

	colCustomerName    = "Customer Name"
	colCustomerAddress = "Customer Address"
	colCustomerState   = "Customer State"
	colCustomerGSTIN   = "Customer GSTIN"
	colSupplierName    = "Supplier Name"
	colSupplierAddress = "Supplier Address"
	colSupplierState   = "Supplier State"
	colSupplierGSTIN   = "Supplier GSTIN"
	colDocumentNumber  = "Document Number"
	colDocumentDate    = "Document Date"
	colNarration       = "Narration"
	colVoucherDate     = "Voucher Date"

	colHSNCode      = "HSN code"
	colProductName  = "Product Name"
	colQuantity     = "Quantity"
	colQuantityUnit = "Quantity Unit"
	colRate         = "Rate"
	colCurrency     = "Currency"
	colDiscount     = "Discount"
	colTaxableAmt   = "Taxable Amount"
	colTaxRate      = "Tax Rate"
	colTaxAmount    = "Tax Amount"
	colTotalAmount  = "Total Amount"

	colAccountName    = "Account Name"
	colAccountAddress = "Account Address"
	colAccountState   = "Account State"
	colAccountGSTIN   = "Account GSTIN"
	colAccountGroup   = "Account Group"
	colTxnType        = "Transaction Type"
	colDebitAmount    = "Debit Amount"
	colCreditAmount   = "Credit Amount"

	// Reviewer-facing resolved columns, "[D]" for display value
	colPartyAccount    = "Party Account"
	colDisPartyAccount = "[D] Party Account"
	colDisStockItem    = "[D] Stock Item"
	colDisUnits        = "[D] Units"
	colDisAccountName  = "[D] Account Name"
)

// Parse turns the four-section extracted text (header names, header values,
// item names, item rows) into a typed Invoice. The shape is decided by the
// header's voucher type. Pure transform, no side effects.
func Parse(text string) (*Invoice, error) {
	lines := contentLines(text)
	if len(lines) < 3 {
		return nil, &ParseError{Line: len(lines), Msg: fmt.Sprintf("expected at least 3 sections, got %d lines", len(lines))}
	}

	headerNames, err := parseCSVLine(lines[0])
	if err != nil {
		return nil, err
	}
	headerValues, err := parseCSVLine(lines[1])
	if err != nil {
		return nil, err
	}
	if len(headerValues) != len(headerNames) {
		return nil, &ParseError{
			Line: lines[1].idx,
			Raw:  lines[1].text,
			Msg:  fmt.Sprintf("header has %d columns but %d values", len(headerNames), len(headerValues)),
		}
	}

	header := newRecord(headerNames, headerValues, lines[1].idx, lines[1].text)

	vt, verr := ParseVoucherType(header.str(colVoucherType))
	if verr != nil {
		return nil, &ParseError{Line: lines[1].idx, Raw: lines[1].text, Msg: verr.Error()}
	}

	itemNames, err := parseCSVLine(lines[2])
	if err != nil {
		return nil, err
	}

	rows := make([]record, 0, len(lines)-3)
	for _, ln := range lines[3:] {
		fields, err := parseCSVLine(ln)
		if err != nil {
			return nil, err
		}
		if len(fields) != len(itemNames) {
			return nil, &ParseError{
				Line: ln.idx,
				Raw:  ln.text,
				Msg:  fmt.Sprintf("row has %d fields, expected %d", len(fields), len(itemNames)),
			}
		}
		rows = append(rows, newRecord(itemNames, fields, ln.idx, ln.text))
	}

	if vt.IsTrade() {
		return parseTrade(vt, header, rows)
	}
	return parseJournal(vt, header, rows)
}

func parseTrade(vt VoucherType, header record, rows []record) (*Invoice, error) {
	h := &TradeHeader{
		VoucherType:          vt,
		CustomerName:         header.str(colCustomerName),
		CustomerAddress:      header.str(colCustomerAddress),
		CustomerState:        header.str(colCustomerState),
		CustomerGSTIN:        header.str(colCustomerGSTIN),
		SupplierName:         header.str(colSupplierName),
		SupplierAddress:      header.str(colSupplierAddress),
		SupplierState:        header.str(colSupplierState),
		SupplierGSTIN:        header.str(colSupplierGSTIN),
		DocumentNumber:       header.str(colDocumentNumber),
		DocumentDate:         header.str(colDocumentDate),
		Narration:            header.str(colNarration),
		PartyAccount:         header.str(colPartyAccount),
		ResolvedPartyAccount: header.str(colDisPartyAccount),
	}

	items := make([]LineItem, 0, len(rows))
	for _, row := range rows {
		item := LineItem{
			HSNCode:           row.str(colHSNCode),
			ProductName:       row.str(colProductName),
			QuantityUnit:      row.str(colQuantityUnit),
			Currency:          row.str(colCurrency),
			ResolvedStockItem: row.str(colDisStockItem),
			ResolvedUnit:      row.str(colDisUnits),
		}

		var err error
		if item.Quantity, err = row.num(colQuantity); err != nil {
			return nil, err
		}
		if item.Rate, err = row.num(colRate); err != nil {
			return nil, err
		}
		if item.Discount, err = row.num(colDiscount); err != nil {
			return nil, err
		}
		if item.TaxableAmount, err = row.num(colTaxableAmt); err != nil {
			return nil, err
		}
		if item.TaxRate, err = row.num(colTaxRate); err != nil {
			return nil, err
		}
		if item.TaxAmount, err = row.num(colTaxAmount); err != nil {
			return nil, err
		}
		if item.TotalAmount, err = row.num(colTotalAmount); err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return &Invoice{Kind: KindTrade, Trade: h, Items: items}, nil
}

func parseJournal(vt VoucherType, header record, rows []record) (*Invoice, error) {
	h := &JournalHeader{
		VoucherType: vt,
		Date:        header.str(colVoucherDate),
		Narration:   header.str(colNarration),
	}

	accounts := make([]AccountLine, 0, len(rows))
	for _, row := range rows {
		group := row.str(colAccountGroup)
		if !ValidAccountGroup(group) {
			return nil, &ParseError{Line: row.line, Raw: row.raw, Msg: fmt.Sprintf("unknown account group: %q", group)}
		}

		txn := TransactionType(row.str(colTxnType))
		if txn != Debit && txn != Credit {
			return nil, &ParseError{Line: row.line, Raw: row.raw, Msg: fmt.Sprintf("transaction type must be Debit or Credit, got %q", string(txn))}
		}

		acc := AccountLine{
			AccountName:     row.str(colAccountName),
			Address:         row.str(colAccountAddress),
			State:           row.str(colAccountState),
			GSTIN:           row.str(colAccountGSTIN),
			Group:           AccountGroup(group),
			TransactionType: txn,
			ResolvedAccount: row.str(colDisAccountName),
		}

		var err error
		if acc.DebitAmount, err = row.num(colDebitAmount); err != nil {
			return nil, err
		}
		if acc.CreditAmount, err = row.num(colCreditAmount); err != nil {
			return nil, err
		}

		accounts = append(accounts, acc)
	}

	return &Invoice{Kind: KindJournal, Journal: h, Accounts: accounts}, nil
}

// line pairs content with its 1-based position in the stripped text.
type line struct {
	idx  int
	text string
}

// contentLines strips a wrapping markdown code fence and drops blank lines,
// preserving original line numbers for error reporting.
func contentLines(text string) []line {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]line, 0, len(raw))
	for i, l := range raw {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}
		out = append(out, line{idx: i + 1, text: l})
	}
	return out
}

// parseCSVLine splits one line with standard CSV quoting (double-quote
// wrapping, doubled quotes for embedded quotes).
func parseCSVLine(ln line) ([]string, error) {
	r := csv.NewReader(strings.NewReader(ln.text))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return nil, &ParseError{Line: ln.idx, Raw: ln.text, Msg: fmt.Sprintf("malformed CSV: %v", err)}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

// record is one parsed CSV row addressed by column name.
type record struct {
	line int
	raw  string
	vals map[string]string
}

func newRecord(names, values []string, lineIdx int, raw string) record {
	vals := make(map[string]string, len(names))
	for i, name := range names {
		vals[normalizeCol(name)] = values[i]
	}
	return record{line: lineIdx, raw: raw, vals: vals}
}

func normalizeCol(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r record) str(col string) string {
	return r.vals[normalizeCol(col)]
}

// num coerces a numeric column. Thousands separators are tolerated; an
// empty cell reads as zero. Anything else non-numeric is a ParseError.
func (r record) num(col string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(r.str(col), ",", ""))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Line: r.line, Raw: r.raw, Msg: fmt.Sprintf("column %q: invalid number %q", col, r.str(col))}
	}
	return v, nil
}
