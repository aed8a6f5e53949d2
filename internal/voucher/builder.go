// Package voucher turns a reconciled invoice into a balanced ledger
// posting and submits it.
package voucher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/internal/tally"
)

// Ledgers names the system ledgers trade amounts are accounted against.
// Tax carries at least one entry; the tax total is split evenly across
// them.
type Ledgers struct {
	Sales    string
	Purchase string
	Tax      []string
}

// ForType returns the contra ledger goods lines of this voucher type
// post to.
func (l Ledgers) ForType(vt invoice.VoucherType) string {
	if vt == invoice.VoucherPurchase {
		return l.Purchase
	}
	return l.Sales
}

// Builder assembles vouchers and posts them through a ledger backend.
type Builder struct {
	backend tally.Backend
	ledgers Ledgers
	tol     invoice.Tolerance
	logger  *zap.Logger
}

func NewBuilder(backend tally.Backend, ledgers Ledgers, tol invoice.Tolerance, logger *zap.Logger) *Builder {
	return &Builder{
		backend: backend,
		ledgers: ledgers,
		tol:     tol,
		logger:  logger,
	}
}

// Build assembles a voucher from the invoice without touching the
// backend. Sign convention follows the books of the posting company:
// positive amounts are credits, negative amounts are debits. On a Sales
// voucher the party is debited for the gross total and the sales and
// tax ledgers are credited; Purchase mirrors every sign. Journal rows
// post credit minus debit per account.
//
// The assembled amounts must sum to zero within tolerance or Build
// returns ErrUnbalanced.
func (b *Builder) Build(inv *invoice.Invoice) (*tally.Voucher, error) {
	var v *tally.Voucher
	if inv.Kind == invoice.KindTrade {
		v = b.buildTrade(inv)
	} else {
		v = b.buildJournal(inv)
	}

	if sum := ledgerSum(v); !b.tol.Within(sum, 0) {
		return nil, fmt.Errorf("%w: ledger amounts sum to %v", ErrUnbalanced, sum)
	}
	return v, nil
}

// Submit posts an already balanced voucher. Failures are wrapped in a
// PostingError; the caller decides whether to retry.
func (b *Builder) Submit(ctx context.Context, v *tally.Voucher) error {
	if err := b.backend.PostVoucher(ctx, v); err != nil {
		return &PostingError{VoucherType: v.Type, Reference: v.Reference, Err: err}
	}
	b.logger.Info("Voucher posted",
		zap.String("type", v.Type),
		zap.String("reference", v.Reference),
		zap.String("date", string(v.Date)))
	return nil
}

func (b *Builder) buildTrade(inv *invoice.Invoice) *tally.Voucher {
	h := inv.Trade
	mult := 1.0
	if h.VoucherType == invoice.VoucherPurchase {
		mult = -1
	}

	_, _, state, _ := h.Counterparty()
	v := &tally.Voucher{
		Type:          string(h.VoucherType),
		Date:          b.voucherDate(h.DocumentDate),
		Reference:     h.DocumentNumber,
		Narration:     h.Narration,
		PlaceOfSupply: state,
	}
	if h.DocumentNumber != "" {
		v.ReferenceDate = v.Date
	}

	total, tax := inv.NetTotals()

	v.Ledgers = append(v.Ledgers, tally.VoucherLedger{
		Name:   h.ResolvedPartyAccount,
		Amount: b.tol.Round(-total * mult),
	})

	contra := b.ledgers.ForType(h.VoucherType)
	for _, item := range inv.Items {
		amount := b.tol.Round(item.TaxableAmount * mult)
		v.Inventory = append(v.Inventory, tally.InventoryAllocation{
			StockItem: item.ResolvedStockItem,
			Quantity:  item.Quantity,
			Unit:      item.ResolvedUnit,
			Rate:      item.Rate,
			Amount:    amount,
			Ledgers:   []tally.VoucherLedger{{Name: contra, Amount: amount}},
		})
	}

	v.Ledgers = append(v.Ledgers, b.splitTax(tax*mult)...)
	return v
}

func (b *Builder) buildJournal(inv *invoice.Invoice) *tally.Voucher {
	h := inv.Journal
	v := &tally.Voucher{
		Type:      string(h.VoucherType),
		Date:      b.voucherDate(h.Date),
		Narration: h.Narration,
	}

	for _, acc := range inv.Accounts {
		name := acc.ResolvedAccount
		if name == "" {
			name = acc.AccountName
		}
		v.Ledgers = append(v.Ledgers, tally.VoucherLedger{
			Name:   name,
			Amount: b.tol.Round(acc.CreditAmount - acc.DebitAmount),
		})
	}
	return v
}

// splitTax divides the signed tax total evenly across the configured
// tax ledgers. Rounding remainders land on the last ledger so the
// shares always add up to the rounded total.
func (b *Builder) splitTax(tax float64) []tally.VoucherLedger {
	if tax == 0 || len(b.ledgers.Tax) == 0 {
		return nil
	}

	entries := make([]tally.VoucherLedger, 0, len(b.ledgers.Tax))
	totalRounded := b.tol.Round(tax)
	assigned := 0.0
	for i, name := range b.ledgers.Tax {
		share := b.tol.Round(tax / float64(len(b.ledgers.Tax)))
		if i == len(b.ledgers.Tax)-1 {
			share = b.tol.Round(totalRounded - assigned)
		}
		entries = append(entries, tally.VoucherLedger{Name: name, Amount: share})
		assigned += share
	}
	return entries
}

func (b *Builder) voucherDate(raw string) tally.Date {
	if raw == "" {
		return tally.Today()
	}
	d, err := tally.ParseDate(raw)
	if err != nil {
		b.logger.Warn("Unparseable document date, posting with today",
			zap.String("date", raw), zap.Error(err))
		return tally.Today()
	}
	return d
}

func ledgerSum(v *tally.Voucher) float64 {
	sum := 0.0
	for _, l := range v.Ledgers {
		sum += l.Amount
	}
	for _, alloc := range v.Inventory {
		for _, l := range alloc.Ledgers {
			sum += l.Amount
		}
	}
	return sum
}
