// Package procurement turns supplier invoices into purchase movements,
// spreading invoice-level tax, discount and currency conversion across the
// lines by value share.
package procurement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// Validate checks the header and every line, collecting all failures.
// Currency aliases such as "C$" are normalised in place; an empty currency
// means USD.
func (inv *Invoice) Validate() error {
	inv.InvoiceID = strings.TrimSpace(inv.InvoiceID)
	if inv.Currency == "" {
		inv.Currency = shared.CurrencyUSD
	}
	inv.Currency, _ = shared.ParseCurrency(string(inv.Currency))
	if errs := shared.ValidateStruct(inv); len(errs) > 0 {
		return errs
	}
	return nil
}

// Prorate validates inv and returns one purchase movement per line. When
// resolver is non-nil every line must name a registered material and unit.
// Nothing is returned unless the whole invoice is valid.
func Prorate(inv Invoice, resolver Resolver) ([]inventory.Movement, InvoiceTotals, error) {
	if err := inv.Validate(); err != nil {
		return nil, InvoiceTotals{}, err
	}
	if resolver != nil {
		for _, line := range inv.Lines {
			if err := resolver.Resolve(line.Item, line.Unit); err != nil {
				return nil, InvoiceTotals{}, err
			}
		}
	}

	rate := decimal.NewFromFloat(inv.ExchangeRate)
	gross := make([]decimal.Decimal, len(inv.Lines))
	subtotalGross := decimal.Zero
	for i, line := range inv.Lines {
		gross[i] = decimal.NewFromFloat(line.Quantity).Mul(decimal.NewFromFloat(line.UnitPrice))
		subtotalGross = subtotalGross.Add(gross[i])
	}

	subtotalNet := decimal.Max(decimal.Zero, subtotalGross.Sub(decimal.NewFromFloat(inv.TotalDiscount)))
	taxMultiplier := decimal.NewFromInt(1).Add(decimal.NewFromFloat(inv.TaxRatePercent).Div(hundred))
	totalWithTax := subtotalNet.Mul(taxMultiplier)
	totalUSD := shared.ToUSD(totalWithTax, inv.Currency, rate)
	grossUSD := shared.ToUSD(subtotalGross, inv.Currency, rate)

	factor := decimal.Zero
	if grossUSD.IsPositive() {
		factor = totalUSD.Div(grossUSD)
	}

	detail := inventory.PurchaseDetail{
		Supplier:       inv.Supplier,
		Currency:       inv.Currency,
		ExchangeRate:   inv.ExchangeRate,
		TaxRatePercent: inv.TaxRatePercent,
		TotalDiscount:  inv.TotalDiscount,
	}
	movements := make([]inventory.Movement, 0, len(inv.Lines))
	for i, line := range inv.Lines {
		distributed := shared.ToUSD(gross[i], inv.Currency, rate).Mul(factor)
		lineDetail := detail
		lineDetail.UnitPrice = line.UnitPrice
		m, err := inventory.NewPurchase(inventory.PurchaseInput{
			Item:         line.Item,
			Unit:         line.Unit,
			Quantity:     line.Quantity,
			TotalCostUSD: distributed.InexactFloat64(),
			Date:         inv.Date,
			InvoiceID:    inv.InvoiceID,
			Detail:       lineDetail,
		})
		if err != nil {
			return nil, InvoiceTotals{}, fmt.Errorf("line %d: %w", i, err)
		}
		movements = append(movements, m)
	}

	totals := InvoiceTotals{
		SubtotalGross:    subtotalGross.InexactFloat64(),
		SubtotalNet:      subtotalNet.InexactFloat64(),
		TotalWithTax:     totalWithTax.InexactFloat64(),
		SubtotalGrossUSD: grossUSD.InexactFloat64(),
		TotalCostUSD:     totalUSD.InexactFloat64(),
		Factor:           factor.InexactFloat64(),
	}
	return movements, totals, nil
}
