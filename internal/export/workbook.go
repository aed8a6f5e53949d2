// Package export renders stored invoices as review workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/internal/store"
)

const (
	sheetInvoice    = "Invoice"
	sheetItems      = "Items"
	sheetAccounts   = "Accounts"
	sheetViolations = "Violations"
)

// WorkbookWriter builds an Excel workbook a reviewer can read offline:
// one sheet for the header fields, one for the rows, one for the open
// arithmetic violations.
type WorkbookWriter struct {
	logger *zap.Logger
}

func NewWorkbookWriter(logger *zap.Logger) *WorkbookWriter {
	return &WorkbookWriter{logger: logger}
}

// Build renders the record into a new in-memory workbook. The caller
// owns the file and must Close it.
func (w *WorkbookWriter) Build(rec *store.Record) (*excelize.File, error) {
	if rec.Invoice == nil {
		return nil, fmt.Errorf("record %d has no invoice payload", rec.ID)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetInvoice); err != nil {
		return nil, fmt.Errorf("failed to name invoice sheet: %w", err)
	}

	w.fillHeader(f, rec)

	if rec.Invoice.Kind == invoice.KindTrade {
		if err := w.fillItems(f, rec.Invoice.Items); err != nil {
			return nil, err
		}
	} else {
		if err := w.fillAccounts(f, rec.Invoice.Accounts); err != nil {
			return nil, err
		}
	}

	if err := w.fillViolations(f, rec.Violations); err != nil {
		return nil, err
	}

	w.logger.Debug("Built review workbook",
		zap.Int64("record_id", rec.ID),
		zap.Int("violations", len(rec.Violations)))
	return f, nil
}

func (w *WorkbookWriter) fillHeader(f *excelize.File, rec *store.Record) {
	rows := [][2]interface{}{
		{"Record ID", rec.ID},
		{"Company", rec.Company},
		{"Status", string(rec.Status)},
		{"Source File", rec.SourceFile},
		{"Voucher Type", string(rec.Invoice.Type())},
	}

	if h := rec.Invoice.Trade; h != nil {
		rows = append(rows,
			[2]interface{}{"Customer Name", h.CustomerName},
			[2]interface{}{"Customer State", h.CustomerState},
			[2]interface{}{"Customer GSTIN", h.CustomerGSTIN},
			[2]interface{}{"Supplier Name", h.SupplierName},
			[2]interface{}{"Supplier State", h.SupplierState},
			[2]interface{}{"Supplier GSTIN", h.SupplierGSTIN},
			[2]interface{}{"Document Number", h.DocumentNumber},
			[2]interface{}{"Document Date", h.DocumentDate},
			[2]interface{}{"Party Account", h.ResolvedPartyAccount},
			[2]interface{}{"Narration", h.Narration},
		)
	}
	if h := rec.Invoice.Journal; h != nil {
		rows = append(rows,
			[2]interface{}{"Voucher Date", h.Date},
			[2]interface{}{"Narration", h.Narration},
		)
	}

	for i, kv := range rows {
		w.setCell(f, sheetInvoice, fmt.Sprintf("A%d", i+1), kv[0])
		w.setCell(f, sheetInvoice, fmt.Sprintf("B%d", i+1), kv[1])
	}
}

func (w *WorkbookWriter) fillItems(f *excelize.File, items []invoice.LineItem) error {
	if _, err := f.NewSheet(sheetItems); err != nil {
		return fmt.Errorf("failed to add items sheet: %w", err)
	}

	header := []interface{}{
		"HSN Code", "Product Name", "Stock Item", "Quantity", "Unit",
		"Rate", "Discount", "Taxable Amount", "Tax Rate", "Tax Amount", "Total Amount",
	}
	if err := f.SetSheetRow(sheetItems, "A1", &header); err != nil {
		return fmt.Errorf("failed to write items header: %w", err)
	}

	for i, item := range items {
		row := []interface{}{
			item.HSNCode, item.ProductName, item.ResolvedStockItem,
			item.Quantity, item.ResolvedUnit, item.Rate, item.Discount,
			item.TaxableAmount, item.TaxRate, item.TaxAmount, item.TotalAmount,
		}
		if err := f.SetSheetRow(sheetItems, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("failed to write item row %d: %w", i+1, err)
		}
	}
	return nil
}

func (w *WorkbookWriter) fillAccounts(f *excelize.File, accounts []invoice.AccountLine) error {
	if _, err := f.NewSheet(sheetAccounts); err != nil {
		return fmt.Errorf("failed to add accounts sheet: %w", err)
	}

	header := []interface{}{
		"Account Name", "Ledger", "Group", "Transaction Type", "Debit Amount", "Credit Amount",
	}
	if err := f.SetSheetRow(sheetAccounts, "A1", &header); err != nil {
		return fmt.Errorf("failed to write accounts header: %w", err)
	}

	for i, acc := range accounts {
		row := []interface{}{
			acc.AccountName, acc.ResolvedAccount, string(acc.Group),
			string(acc.TransactionType), acc.DebitAmount, acc.CreditAmount,
		}
		if err := f.SetSheetRow(sheetAccounts, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("failed to write account row %d: %w", i+1, err)
		}
	}
	return nil
}

func (w *WorkbookWriter) fillViolations(f *excelize.File, violations []string) error {
	if _, err := f.NewSheet(sheetViolations); err != nil {
		return fmt.Errorf("failed to add violations sheet: %w", err)
	}

	w.setCell(f, sheetViolations, "A1", "Violation")
	for i, v := range violations {
		w.setCell(f, sheetViolations, fmt.Sprintf("A%d", i+2), v)
	}
	return nil
}

func (w *WorkbookWriter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
