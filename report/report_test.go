package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/shared"
)

func ledger(t *testing.T) []inventory.Movement {
	t.Helper()
	day1 := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 10, 3, 9, 0, 0, 0, time.UTC)
	detail := inventory.PurchaseDetail{Supplier: "Ferretería Central", Currency: shared.CurrencyUSD, ExchangeRate: 36.6, UnitPrice: 10}

	cement, err := inventory.NewPurchase(inventory.PurchaseInput{Item: "Cemento", Unit: "Saco", Quantity: 10, TotalCostUSD: 100, Date: day1, InvoiceID: "FAC-1", Detail: detail})
	require.NoError(t, err)
	sand, err := inventory.NewPurchase(inventory.PurchaseInput{Item: "Arena", Unit: "m³", Quantity: 4, TotalCostUSD: 60, Date: day1, InvoiceID: "FAC-1", Detail: detail})
	require.NoError(t, err)
	sale, err := inventory.NewSale(inventory.OutflowInput{Item: "Cemento", Unit: "Saco", Quantity: 2, UnitCostUSD: 10, Date: day2}, inventory.SaleDetail{Currency: shared.CurrencyUSD, UnitPrice: 15}, 30)
	require.NoError(t, err)
	loss, err := inventory.NewWriteOff(inventory.OutflowInput{Item: "Arena", Unit: "m³", Quantity: 1, UnitCostUSD: 15, Date: day2})
	require.NoError(t, err)
	return []inventory.Movement{cement, sand, sale, loss}
}

func TestGroupMovementsByItem(t *testing.T) {
	groups := GroupMovements(ledger(t), ByItem)

	require.Len(t, groups, 2)
	require.Equal(t, "Arena", groups[0].Key)
	require.InDelta(t, 3, groups[0].TotalQuantity, 1e-9)
	require.InDelta(t, 45, groups[0].TotalCostUSD, 1e-9)
	require.Zero(t, groups[0].TotalSalePrice)

	require.Equal(t, "Cemento", groups[1].Key)
	require.InDelta(t, 8, groups[1].TotalQuantity, 1e-9)
	require.InDelta(t, 30, groups[1].TotalSalePrice, 1e-9)
	require.Len(t, groups[1].Movements, 2)
}

func TestGroupMovementsByInvoicePutsUnclassifiedLast(t *testing.T) {
	groups := GroupMovements(ledger(t), ByInvoice)

	require.Len(t, groups, 2)
	require.Equal(t, "FAC-1", groups[0].Key)
	require.InDelta(t, 160, groups[0].TotalCostUSD, 1e-9)
	require.Equal(t, Unclassified, groups[1].Key)
	require.Len(t, groups[1].Movements, 2)
}

func TestGroupMovementsByDateAndMode(t *testing.T) {
	byDate := GroupMovements(ledger(t), ByDate)
	require.Equal(t, "2024-10-01", byDate[0].Key)
	require.Equal(t, "2024-10-03", byDate[1].Key)

	byMode := GroupMovements(ledger(t), ByMode)
	keys := make([]string, 0, len(byMode))
	for _, g := range byMode {
		keys = append(keys, g.Key)
	}
	require.Equal(t, []string{"Purchase", "Sale", "WriteOff"}, keys)
}

func TestParseGroupBy(t *testing.T) {
	by, err := ParseGroupBy("")
	require.NoError(t, err)
	require.Equal(t, ByItem, by)

	by, err = ParseGroupBy("invoice")
	require.NoError(t, err)
	require.Equal(t, ByInvoice, by)

	_, err = ParseGroupBy("supplier")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFormatUSD(t *testing.T) {
	require.Equal(t, "$1,234.50", FormatUSD(1234.5))
	require.Equal(t, "$0.00", FormatUSD(-0.001))
	require.Equal(t, "-$12.00", FormatUSD(-12))
}

func TestWriteXLSX(t *testing.T) {
	movements := ledger(t)
	stock := inventory.Aggregate(movements, nil).Snapshots()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, movements, stock))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{movementsSheet, stockSheet}, f.GetSheetList())

	rows, err := f.GetRows(movementsSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(movements)+1)
	require.Equal(t, "Date", rows[0][0])
	require.Equal(t, "Ferretería Central", rows[1][9])
	require.Equal(t, "WriteOff", rows[4][1])

	rows, err = f.GetRows(stockSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Arena", rows[1][0])
	require.Equal(t, "m³: 3.00", rows[1][4])
}
