package project

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/catalog"
	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/procurement"
	"github.com/sitestock/sitestock/internal/shared"
)

const (
	cement     = "Cemento Portland Tipo I"
	cementUnit = "Saco 42.5kg"
	rebar      = "Varilla de Acero Grado 60"
)

var fixedNow = time.Date(2024, 10, 15, 8, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return LoadEngine(State{Catalog: catalog.Defaults()}, WithClock(func() time.Time { return fixedNow }))
}

func cementInvoice(id string, qty, price float64) procurement.Invoice {
	return procurement.Invoice{
		InvoiceID:    id,
		Supplier:     "Ferretería Central",
		Currency:     shared.CurrencyUSD,
		ExchangeRate: 36.60,
		Lines:        []procurement.LineItem{{Item: cement, Unit: cementUnit, Quantity: qty, UnitPrice: price}},
	}
}

func stockOf(t *testing.T, e *Engine, item string) inventory.Snapshot {
	t.Helper()
	for _, s := range e.CurrentStock() {
		if s.Name == item {
			return s
		}
	}
	t.Fatalf("no visible stock for %s", item)
	return inventory.Snapshot{}
}

func TestEngineLocalCurrencyPurchase(t *testing.T) {
	e := newTestEngine(t)
	inv := cementInvoice("FAC-001", 50, 12.50)
	inv.Currency = "C$"
	inv.TaxRatePercent = 15

	res, err := e.RecordPurchase(inv)
	require.NoError(t, err)
	require.Len(t, res.Movements, 1)
	require.InDelta(t, 718.75/36.60, res.Movements[0].TotalCostUSD, 1e-9)
	require.InDelta(t, 0.3927, res.Movements[0].UnitCostUSD, 1e-4)
	require.Equal(t, fixedNow, res.Movements[0].Date)

	snap := stockOf(t, e, cement)
	require.InDelta(t, 50, snap.Total, 1e-9)
	require.InDelta(t, 50, snap.Units[cementUnit], 1e-9)
}

func TestEngineRejectsOverdrawWithoutChangingLedger(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RecordPurchase(cementInvoice("FAC-001", 5, 10))
	require.NoError(t, err)
	before := e.ListMovements()

	_, err = e.RecordOutbound(inventory.OutboundRequest{Item: cement, Unit: cementUnit, Quantity: 10, Mode: inventory.ModeSale, UnitPrice: 15})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Equal(t, before, e.ListMovements())
}

func TestEngineWriteOffKeepsAverage(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RecordPurchase(cementInvoice("FAC-001", 100, 8.79))
	require.NoError(t, err)

	m, err := e.RecordOutbound(inventory.OutboundRequest{Item: cement, Unit: cementUnit, Quantity: 20, Mode: inventory.ModeWriteOff})
	require.NoError(t, err)
	require.InDelta(t, -20*8.79, m.TotalCostUSD, 1e-9)
	require.Zero(t, m.SalePrice)

	snap := stockOf(t, e, cement)
	require.InDelta(t, 80, snap.Total, 1e-9)
	require.InDelta(t, 8.79, snap.AvgCostUSD, 1e-9)
}

func TestEngineWeightedAverageAcrossInvoices(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RecordPurchase(cementInvoice("FAC-001", 10, 8))
	require.NoError(t, err)
	_, err = e.RecordPurchase(cementInvoice("FAC-002", 30, 12))
	require.NoError(t, err)

	snap := stockOf(t, e, cement)
	require.InDelta(t, (10*8.0+30*12.0)/40, snap.AvgCostUSD, 1e-9)

	sale, err := e.RecordOutbound(inventory.OutboundRequest{Item: cement, Unit: cementUnit, Quantity: 4, Mode: inventory.ModeSale, UnitPrice: 20})
	require.NoError(t, err)
	require.InDelta(t, -4*11.0, sale.TotalCostUSD, 1e-9)
	require.InDelta(t, 80, sale.SalePrice, 1e-9)
}

func TestEngineRejectsDuplicateInvoice(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RecordPurchase(cementInvoice("FAC-001", 5, 10))
	require.NoError(t, err)

	_, err = e.RecordPurchase(cementInvoice(" FAC-001 ", 5, 10))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "invoiceId", shared.Fields(err)[0].Field)
	require.Len(t, e.ListMovements(), 1)
}

func TestEngineRejectsUnknownMaterialOrUnit(t *testing.T) {
	e := newTestEngine(t)

	inv := cementInvoice("FAC-001", 5, 10)
	inv.Lines = append(inv.Lines, procurement.LineItem{Item: "Grava", Unit: "m³", Quantity: 1, UnitPrice: 1})
	_, err := e.RecordPurchase(inv)
	require.ErrorIs(t, err, catalog.ErrUnknownMaterial)
	require.Empty(t, e.ListMovements(), "invoices commit all lines or none")

	_, err = e.RecordOutbound(inventory.OutboundRequest{Item: rebar, Unit: "Tonelada", Quantity: 1, Mode: inventory.ModeWriteOff})
	require.ErrorIs(t, err, catalog.ErrUnknownMaterial)
}

func TestEngineDepletedMaterialIsInsufficientNotUnknown(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.RecordOutbound(inventory.OutboundRequest{Item: cement, Unit: cementUnit, Quantity: 1, Mode: inventory.ModeWriteOff})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestEngineExtendMaterialAllowsNewUnit(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ExtendMaterial(cement, []string{"Bolsa 25kg"})
	require.NoError(t, err)

	inv := cementInvoice("FAC-001", 8, 6)
	inv.Lines[0].Unit = "Bolsa 25kg"
	_, err = e.RecordPurchase(inv)
	require.NoError(t, err)

	snap := stockOf(t, e, cement)
	require.InDelta(t, 8, snap.Units["Bolsa 25kg"], 1e-9)
	require.InDelta(t, 0, snap.Units[cementUnit], 1e-9)
}

func TestEngineLedgerInvariantsHold(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RecordPurchase(cementInvoice("FAC-001", 40, 9.5))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _ = e.RecordOutbound(inventory.OutboundRequest{Item: cement, Unit: cementUnit, Quantity: 9, Mode: inventory.ModeWriteOff})
	}

	require.Empty(t, inventory.Verify(e.ListMovements()))
	require.Len(t, e.ListMovements(), 5, "the fifth write-off overdraws and is rejected")
}

func TestEngineStateRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AddMaterial("Grava", []string{"m³", " m³", ""})
	require.NoError(t, err)
	inv := cementInvoice("FAC-001", 50, 12.50)
	inv.Currency = shared.CurrencyLocal
	_, err = e.RecordPurchase(inv)
	require.NoError(t, err)
	_, err = e.RecordOutbound(inventory.OutboundRequest{Item: cement, Unit: cementUnit, Quantity: 5, Mode: inventory.ModeSale, UnitPrice: 400, Currency: "C$", ExchangeRate: 36.60})
	require.NoError(t, err)

	first, err := json.Marshal(e.State())
	require.NoError(t, err)

	var loaded State
	require.NoError(t, json.Unmarshal(first, &loaded))
	second, err := json.Marshal(LoadEngine(loaded).State())
	require.NoError(t, err)

	require.JSONEq(t, string(first), string(second))
	require.Equal(t, e.State(), LoadEngine(loaded).State())
}

func TestEmptyStateSerialisesAsLists(t *testing.T) {
	raw, err := json.Marshal(LoadEngine(State{}).State())
	require.NoError(t, err)
	require.JSONEq(t, `{"catalog":[],"movements":[]}`, string(raw))
}
