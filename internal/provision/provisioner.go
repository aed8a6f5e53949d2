// Package provision creates missing master records in the ledger backend
// after the reviewer has settled every resolved name.
package provision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/internal/tally"
	"github.com/tallai/tallai/pkg/utils"
)

// NameGroup pairs a ledger name with its parent group.
type NameGroup struct {
	Name  string
	Group string
}

// SystemLedgers are the company's default posting ledgers, created once
// if absent. Explicit configuration, never ambient state: concurrent runs
// for different companies carry their own copy.
type SystemLedgers struct {
	Sales    NameGroup
	Purchase NameGroup
	Tax      []NameGroup
}

// ForType returns the default ledger a trade voucher of this type posts
// against.
func (s SystemLedgers) ForType(vt invoice.VoucherType) NameGroup {
	if vt == invoice.VoucherSales {
		return s.Sales
	}
	return s.Purchase
}

// Failure records one master that could not be created. The row keeps its
// intended name regardless: voucher building proceeds optimistically,
// matching the backend's idempotent-create semantics.
type Failure struct {
	Kind string
	Name string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("failed to provision %s %q: %v", f.Kind, f.Name, f.Err)
}

// Result reports what one provisioning run did.
type Result struct {
	Created  []string
	Failures []Failure
}

// Provisioner creates missing ledgers, units and stock items.
type Provisioner struct {
	backend tally.Backend
	system  SystemLedgers
	logger  *zap.Logger
}

// NewProvisioner creates a new provisioner
func NewProvisioner(backend tally.Backend, system SystemLedgers, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		backend: backend,
		system:  system,
		logger:  logger,
	}
}

// Provision ensures every master the invoice references exists, returning
// an annotated copy in which each resolved-name field holds the final
// name (the reviewer's choice, or the raw extracted label when the
// reviewer left it empty). Master lists are queried fresh here, since
// masters may have changed since reconciliation. Rows are processed sequentially:
// each created name joins the in-run known-names list so rows sharing a
// new name create it only once. A failed create never aborts the batch.
func (p *Provisioner) Provision(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, *Result) {
	out := inv.Clone()
	result := &Result{}

	if out.Kind == invoice.KindTrade {
		p.provisionTrade(ctx, out, result)
	} else {
		p.provisionJournal(ctx, out, result)
	}

	if len(result.Failures) > 0 {
		p.logger.Warn("Provisioning finished with failures",
			zap.Int("created", len(result.Created)),
			zap.Int("failures", len(result.Failures)))
	}
	return out, result
}

func (p *Provisioner) provisionTrade(ctx context.Context, inv *invoice.Invoice, result *Result) {
	ledgerNames, err := p.backend.Ledgers(ctx)
	if err != nil {
		result.Failures = append(result.Failures, Failure{Kind: "ledger query", Err: err})
	}

	known := newKnownNames(ledgerNames)
	p.provisionPartyLedger(ctx, inv, known, result)
	p.provisionSystemLedgers(ctx, inv.Trade.VoucherType, known, result)
	p.provisionUnits(ctx, inv, result)
	p.provisionStockItems(ctx, inv, result)
}

func (p *Provisioner) provisionPartyLedger(ctx context.Context, inv *invoice.Invoice, known *knownNames, result *Result) {
	h := inv.Trade
	name := h.ResolvedPartyAccount
	if name == "" {
		name = h.PartyLabel()
	}
	h.ResolvedPartyAccount = name

	if known.has(name) {
		return
	}

	group := "Sundry Creditors"
	if h.VoucherType == invoice.VoucherSales {
		group = "Sundry Debtors"
	}

	_, address, state, gstin := h.Counterparty()
	ledger := tally.Ledger{
		Name:            name,
		Group:           group,
		GSTRegistration: gstRegistration(gstin, state, p.logger),
		Mailing:         mailing(name, address, state),
	}

	if err := p.backend.CreateLedger(ctx, ledger); err != nil {
		result.Failures = append(result.Failures, Failure{Kind: "ledger", Name: name, Err: err})
		return
	}
	known.add(name)
	result.Created = append(result.Created, name)
}

func (p *Provisioner) provisionSystemLedgers(ctx context.Context, vt invoice.VoucherType, known *knownNames, result *Result) {
	system := p.system.ForType(vt)
	if !known.has(system.Name) {
		ledger := tally.Ledger{Name: system.Name, Group: system.Group}
		if err := p.backend.CreateLedger(ctx, ledger); err != nil {
			result.Failures = append(result.Failures, Failure{Kind: "ledger", Name: system.Name, Err: err})
		} else {
			known.add(system.Name)
			result.Created = append(result.Created, system.Name)
		}
	}

	for _, tax := range p.system.Tax {
		if known.has(tax.Name) {
			continue
		}
		ledger := tally.Ledger{
			Name:       tax.Name,
			Group:      tax.Group,
			TaxType:    "GST",
			GSTTaxType: tax.Name,
		}
		if err := p.backend.CreateLedger(ctx, ledger); err != nil {
			result.Failures = append(result.Failures, Failure{Kind: "ledger", Name: tax.Name, Err: err})
			continue
		}
		known.add(tax.Name)
		result.Created = append(result.Created, tax.Name)
	}
}

func (p *Provisioner) provisionUnits(ctx context.Context, inv *invoice.Invoice, result *Result) {
	unitNames, err := p.backend.Units(ctx)
	if err != nil {
		result.Failures = append(result.Failures, Failure{Kind: "unit query", Err: err})
	}
	known := newKnownNames(unitNames)

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.ResolvedUnit == "" {
			item.ResolvedUnit = item.QuantityUnit
		}
		if item.ResolvedUnit == "" || known.has(item.ResolvedUnit) {
			continue
		}

		if err := p.backend.CreateUnit(ctx, tally.Unit{Name: item.ResolvedUnit}); err != nil {
			result.Failures = append(result.Failures, Failure{Kind: "unit", Name: item.ResolvedUnit, Err: err})
			continue
		}
		known.add(item.ResolvedUnit)
		result.Created = append(result.Created, item.ResolvedUnit)
	}
}

func (p *Provisioner) provisionStockItems(ctx context.Context, inv *invoice.Invoice, result *Result) {
	stockNames, err := p.backend.StockItems(ctx)
	if err != nil {
		result.Failures = append(result.Failures, Failure{Kind: "stock item query", Err: err})
	}
	known := newKnownNames(stockNames)

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.ResolvedStockItem == "" {
			item.ResolvedStockItem = item.ProductName
		}
		if item.ResolvedStockItem == "" || known.has(item.ResolvedStockItem) {
			continue
		}

		stock := tally.StockItem{
			Name:     item.ResolvedStockItem,
			BaseUnit: item.ResolvedUnit,
		}
		if item.HSNCode != "" {
			stock.HSN = &tally.HSNDetail{
				Code:           item.HSNCode,
				ApplicableFrom: tally.FinancialYearStart(),
			}
		}
		if item.TaxRate > 0 {
			stock.GSTRate = &tally.GSTRateDetail{
				DutyHead:       "IGST",
				Rate:           item.TaxRate,
				StateName:      tally.AnyState,
				ApplicableFrom: tally.FinancialYearStart(),
			}
		}

		if err := p.backend.CreateStockItem(ctx, stock); err != nil {
			result.Failures = append(result.Failures, Failure{Kind: "stock item", Name: item.ResolvedStockItem, Err: err})
			continue
		}
		known.add(item.ResolvedStockItem)
		result.Created = append(result.Created, item.ResolvedStockItem)
	}
}

func (p *Provisioner) provisionJournal(ctx context.Context, inv *invoice.Invoice, result *Result) {
	ledgerNames, err := p.backend.Ledgers(ctx)
	if err != nil {
		result.Failures = append(result.Failures, Failure{Kind: "ledger query", Err: err})
	}
	known := newKnownNames(ledgerNames)

	for i := range inv.Accounts {
		acc := &inv.Accounts[i]
		if acc.ResolvedAccount == "" {
			acc.ResolvedAccount = acc.AccountName
		}
		if acc.ResolvedAccount == "" || known.has(acc.ResolvedAccount) {
			continue
		}

		ledger := tally.Ledger{
			Name:            acc.ResolvedAccount,
			Group:           string(acc.Group),
			GSTRegistration: gstRegistration(acc.GSTIN, acc.State, p.logger),
			Mailing:         mailing(acc.ResolvedAccount, acc.Address, acc.State),
		}

		if err := p.backend.CreateLedger(ctx, ledger); err != nil {
			result.Failures = append(result.Failures, Failure{Kind: "ledger", Name: acc.ResolvedAccount, Err: err})
			continue
		}
		known.add(acc.ResolvedAccount)
		result.Created = append(result.Created, acc.ResolvedAccount)
	}
}

// gstRegistration builds GST registration details when a GSTIN is present.
// A malformed GSTIN is skipped, not fatal: the ledger is still usable and
// the registration can be fixed in the backend later.
func gstRegistration(gstin, state string, logger *zap.Logger) *tally.GSTRegistration {
	if gstin == "" {
		return nil
	}
	if err := utils.ValidateGSTIN(gstin); err != nil {
		logger.Warn("Skipping GST registration details", zap.Error(err))
		return nil
	}
	return &tally.GSTRegistration{
		GSTIN:            gstin,
		State:            stateOrNA(state),
		RegistrationType: "Regular",
		ApplicableFrom:   tally.FinancialYearStart(),
	}
}

func mailing(name, address, state string) *tally.Mailing {
	return &tally.Mailing{
		Name:           name,
		Address:        address,
		State:          stateOrNA(state),
		Country:        "India",
		ApplicableFrom: tally.FinancialYearStart(),
	}
}

func stateOrNA(state string) string {
	if state == "" {
		return tally.NotApplicable
	}
	return state
}

// knownNames tracks the names already present in the backend plus those
// created during this run.
type knownNames struct {
	names map[string]struct{}
}

func newKnownNames(names []string) *knownNames {
	k := &knownNames{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		k.names[n] = struct{}{}
	}
	return k
}

func (k *knownNames) has(name string) bool {
	_, ok := k.names[name]
	return ok
}

func (k *knownNames) add(name string) {
	k.names[name] = struct{}{}
}
