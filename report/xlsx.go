package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sitestock/sitestock/internal/inventory"
)

const (
	movementsSheet = "Movements"
	stockSheet     = "Stock"
	moneyFormat    = "#,##0.00"
)

// ContentTypeXLSX is the media type of WriteXLSX output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var movementHeader = []any{"Date", "Mode", "Item", "Unit", "Quantity", "Unit Cost USD", "Total Cost USD", "Sale Price USD", "Invoice", "Supplier"}

var stockHeader = []any{"Material", "Total", "Avg Cost USD", "Value USD", "Units"}

// WriteXLSX writes a workbook with the ledger on a Movements sheet and the
// visible stock on a Stock sheet.
func WriteXLSX(w io.Writer, movements []inventory.Movement, stock []inventory.Snapshot) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", movementsSheet); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(stockSheet); err != nil {
		return fmt.Errorf("report: new sheet: %w", err)
	}
	numFmt := moneyFormat
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("report: style: %w", err)
	}

	if err := writeRow(f, movementsSheet, 1, movementHeader); err != nil {
		return err
	}
	for i, m := range movements {
		supplier := ""
		if m.Purchase != nil {
			supplier = m.Purchase.Supplier
		}
		row := []any{m.Date.Format(DateLayout), string(m.Mode), m.Item, m.Unit, m.Quantity, m.UnitCostUSD, m.TotalCostUSD, m.SalePrice, m.InvoiceID, supplier}
		if err := writeRow(f, movementsSheet, i+2, row); err != nil {
			return err
		}
	}
	if len(movements) > 0 {
		if err := f.SetCellStyle(movementsSheet, "F2", fmt.Sprintf("H%d", len(movements)+1), money); err != nil {
			return fmt.Errorf("report: style movements: %w", err)
		}
	}

	if err := writeRow(f, stockSheet, 1, stockHeader); err != nil {
		return err
	}
	for i, s := range stock {
		row := []any{s.Name, s.Total, s.AvgCostUSD, s.TotalValueUSD, formatUnits(s.Units)}
		if err := writeRow(f, stockSheet, i+2, row); err != nil {
			return err
		}
	}
	if len(stock) > 0 {
		if err := f.SetCellStyle(stockSheet, "C2", fmt.Sprintf("D%d", len(stock)+1), money); err != nil {
			return fmt.Errorf("report: style stock: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("report: %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatUnits(units map[string]float64) string {
	names := make([]string, 0, len(units))
	for u := range units {
		names = append(names, u)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, u := range names {
		parts = append(parts, fmt.Sprintf("%s: %.2f", u, units[u]))
	}
	return strings.Join(parts, ", ")
}
