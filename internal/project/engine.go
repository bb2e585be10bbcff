// Package project wires the catalog, ledger, proration and outbound checks
// of one construction project behind a single mutation path, and serves
// that path over PostgreSQL, Redis and HTTP.
package project

import (
	"time"

	"github.com/sitestock/sitestock/internal/catalog"
	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/procurement"
	"github.com/sitestock/sitestock/internal/shared"
)

// State is the persisted form of a project's inventory.
type State struct {
	Catalog   []catalog.Material   `json:"catalog"`
	Movements []inventory.Movement `json:"movements"`
}

// PurchaseResult is returned by RecordPurchase.
type PurchaseResult struct {
	Movements []inventory.Movement      `json:"movements"`
	Totals    procurement.InvoiceTotals `json:"totals"`
}

// Engine owns one catalog and one ledger. It is not safe for concurrent use.
type Engine struct {
	catalog *catalog.Catalog
	ledger  *inventory.Ledger
	now     func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock used to date requests submitted without a date.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// LoadEngine adopts a saved state verbatim. Movements are not re-validated
// against the catalog.
func LoadEngine(state State, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: catalog.New(state.Catalog),
		ledger:  inventory.NewLedger(state.Movements),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore replaces the catalog and ledger with a saved state verbatim.
func (e *Engine) Restore(state State) {
	e.catalog = catalog.New(state.Catalog)
	e.ledger = inventory.NewLedger(state.Movements)
}

// State returns a copy of the engine state for saving.
func (e *Engine) State() State {
	return State{Catalog: e.catalog.Materials(), Movements: e.ledger.Movements()}
}

// ListMovements returns the ledger in insertion order.
func (e *Engine) ListMovements() []inventory.Movement {
	return e.ledger.Movements()
}

// CurrentStock returns the visible stock snapshot sorted by material name.
func (e *Engine) CurrentStock() []inventory.Snapshot {
	return e.position().Snapshots()
}

// Materials returns the catalog in insertion order.
func (e *Engine) Materials() []catalog.Material {
	return e.catalog.Materials()
}

func (e *Engine) position() *inventory.Position {
	return inventory.Aggregate(e.ledger.Movements(), e.catalog.Materials())
}

// AddMaterial registers a new material with its units.
func (e *Engine) AddMaterial(name string, units []string) (catalog.Material, error) {
	return e.catalog.Add(name, units)
}

// ExtendMaterial adds units to an existing material.
func (e *Engine) ExtendMaterial(name string, units []string) (catalog.Material, error) {
	return e.catalog.Extend(name, units)
}

// RecordPurchase prorates an invoice and appends one movement per line.
// An invoice ID already present in the ledger is rejected.
func (e *Engine) RecordPurchase(inv procurement.Invoice) (PurchaseResult, error) {
	if inv.Date.IsZero() {
		inv.Date = e.now()
	}
	movements, totals, err := procurement.Prorate(inv, e.catalog)
	if err != nil {
		return PurchaseResult{}, err
	}
	if e.ledger.HasInvoice(movements[0].InvoiceID) {
		return PurchaseResult{}, shared.Invalid("invoiceId", "already recorded")
	}
	if err := e.ledger.Append(movements...); err != nil {
		return PurchaseResult{}, err
	}
	return PurchaseResult{Movements: movements, Totals: totals}, nil
}

// RecordOutbound checks a sale or write-off against current stock and
// appends the resulting movement.
func (e *Engine) RecordOutbound(req inventory.OutboundRequest) (inventory.Movement, error) {
	if req.Date.IsZero() {
		req.Date = e.now()
	}
	if errs := shared.ValidateStruct(req); len(errs) > 0 {
		return inventory.Movement{}, errs
	}
	if err := e.catalog.Resolve(req.Item, req.Unit); err != nil {
		return inventory.Movement{}, err
	}
	m, err := inventory.CheckOutbound(e.position(), req)
	if err != nil {
		return inventory.Movement{}, err
	}
	if err := e.ledger.Append(m); err != nil {
		return inventory.Movement{}, err
	}
	return m, nil
}
