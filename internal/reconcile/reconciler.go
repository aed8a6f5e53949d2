// Package reconcile maps extracted free-text entity names onto canonical
// master-data names ahead of the human review step.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
)

// Matcher resolves labels to canonical candidates; "" means no match.
type Matcher interface {
	MatchOne(ctx context.Context, label string, candidates []string) string
	MatchMany(ctx context.Context, labels, candidates []string) []string
}

// MasterSource provides the current master name lists.
type MasterSource interface {
	Ledgers(ctx context.Context) ([]string, error)
	StockItems(ctx context.Context) ([]string, error)
	Units(ctx context.Context) ([]string, error)
}

// MasterSet is a read-only snapshot of the three master-name collections,
// taken once per reconciliation pass.
type MasterSet struct {
	Ledgers    []string
	StockItems []string
	Units      []string
}

// Reconciler annotates invoices with resolved master names.
type Reconciler struct {
	source  MasterSource
	matcher Matcher
	logger  *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(source MasterSource, matcher Matcher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		source:  source,
		matcher: matcher,
		logger:  logger,
	}
}

// Snapshot queries the backend for the current master names
func (r *Reconciler) Snapshot(ctx context.Context) (*MasterSet, error) {
	ledgers, err := r.source.Ledgers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledgers: %w", err)
	}
	stockItems, err := r.source.StockItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock items: %w", err)
	}
	units, err := r.source.Units(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}

	r.logger.Debug("Master snapshot taken",
		zap.Int("ledgers", len(ledgers)),
		zap.Int("stock_items", len(stockItems)),
		zap.Int("units", len(units)))

	return &MasterSet{Ledgers: ledgers, StockItems: stockItems, Units: units}, nil
}

// Reconcile returns an annotated copy of the invoice with resolved-name
// fields filled where the matcher finds a confident master. Fields the
// matcher cannot resolve stay empty for the reviewer to settle; nothing
// else is touched and the input invoice is left as-is.
func (r *Reconciler) Reconcile(ctx context.Context, inv *invoice.Invoice, masters *MasterSet) *invoice.Invoice {
	out := inv.Clone()

	switch out.Kind {
	case invoice.KindTrade:
		r.reconcileTrade(ctx, out, masters)
	case invoice.KindJournal:
		r.reconcileJournal(ctx, out, masters)
	}

	if unresolved := out.Unresolved(); len(unresolved) > 0 {
		r.logger.Info("Reconciliation left fields for review",
			zap.Strings("unresolved", unresolved))
	}
	return out
}

func (r *Reconciler) reconcileTrade(ctx context.Context, inv *invoice.Invoice, masters *MasterSet) {
	h := inv.Trade
	h.PartyAccount = h.PartyLabel()
	h.ResolvedPartyAccount = r.matcher.MatchOne(ctx, h.PartyAccount, masters.Ledgers)

	products := make([]string, len(inv.Items))
	units := make([]string, len(inv.Items))
	for i, item := range inv.Items {
		products[i] = item.ProductName
		units[i] = item.QuantityUnit
	}

	stockMatches := r.matcher.MatchMany(ctx, products, masters.StockItems)
	unitMatches := r.matcher.MatchMany(ctx, units, masters.Units)
	for i := range inv.Items {
		inv.Items[i].ResolvedStockItem = stockMatches[i]
		inv.Items[i].ResolvedUnit = unitMatches[i]
	}
}

func (r *Reconciler) reconcileJournal(ctx context.Context, inv *invoice.Invoice, masters *MasterSet) {
	labels := make([]string, len(inv.Accounts))
	for i, acc := range inv.Accounts {
		labels[i] = acc.AccountName
	}

	matches := r.matcher.MatchMany(ctx, labels, masters.Ledgers)
	for i := range inv.Accounts {
		inv.Accounts[i].ResolvedAccount = matches[i]
	}
}
