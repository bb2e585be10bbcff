package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitestock/sitestock/internal/catalog"
	"github.com/sitestock/sitestock/internal/shared"
)

// ErrInsufficientStock matches every InsufficientStockError.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// InsufficientStockError reports an outbound request exceeding the stock
// held under the requested unit.
type InsufficientStockError struct {
	Item      string  `json:"item"`
	Unit      string  `json:"unit"`
	Available float64 `json:"available"`
	Requested float64 `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock of %s in unit %s: available %.2f, requested %.2f", e.Item, e.Unit, e.Available, e.Requested)
}

// Is makes InsufficientStockError match ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// OutboundRequest asks to remove stock by sale or write-off. Sale prices
// follow the invoice shape: a unit price in Currency converted with
// ExchangeRate when the currency is local.
type OutboundRequest struct {
	Item         string          `json:"item" validate:"required"`
	Unit         string          `json:"unit" validate:"required"`
	Quantity     float64         `json:"quantity" validate:"gt=0"`
	Mode         Mode            `json:"mode" validate:"oneof=Sale WriteOff"`
	Date         time.Time       `json:"date" validate:"required"`
	UnitPrice    float64         `json:"unitPrice" validate:"gte=0"`
	Currency     shared.Currency `json:"currency,omitempty"`
	ExchangeRate float64         `json:"exchangeRate,omitempty" validate:"gte=0"`
}

// CheckOutbound validates req against the current position and returns the
// movement to append. Checks run in order: field shape, material and unit
// resolution, per-unit stock sufficiency, then sale pricing. Cost is taken
// at the material's current average cost.
func CheckOutbound(pos *Position, req OutboundRequest) (Movement, error) {
	if errs := shared.ValidateStruct(req); len(errs) > 0 {
		return Movement{}, errs
	}
	entry, ok := pos.Lookup(req.Item)
	if !ok {
		return Movement{}, &catalog.UnknownMaterialError{Item: req.Item}
	}
	available, ok := entry.Units[req.Unit]
	if !ok {
		return Movement{}, &catalog.UnknownMaterialError{Item: req.Item, Unit: req.Unit}
	}
	if available+qtyEpsilon < req.Quantity {
		return Movement{}, &InsufficientStockError{Item: req.Item, Unit: req.Unit, Available: available, Requested: req.Quantity}
	}

	in := OutflowInput{
		Item:        req.Item,
		Unit:        req.Unit,
		Quantity:    req.Quantity,
		UnitCostUSD: entry.AvgCostUSD,
		Date:        req.Date,
	}
	if req.Mode == ModeWriteOff {
		return NewWriteOff(in)
	}

	detail, proceeds, err := salePricing(req)
	if err != nil {
		return Movement{}, err
	}
	return NewSale(in, detail, proceeds)
}

func salePricing(req OutboundRequest) (SaleDetail, float64, error) {
	var errs shared.ValidationErrors
	currency := shared.CurrencyUSD
	if req.Currency != "" {
		var known bool
		if currency, known = shared.ParseCurrency(string(req.Currency)); !known {
			errs.Add("currency", "must be USD or NIO")
		}
	}
	if req.UnitPrice <= 0 {
		errs.Add("unitPrice", "must be greater than 0 for a sale")
	}
	if currency.IsLocal() && req.ExchangeRate <= 0 {
		errs.Add("exchangeRate", "must be greater than 0")
	}
	if err := errs.Err(); err != nil {
		return SaleDetail{}, 0, err
	}
	gross := decimal.NewFromFloat(req.UnitPrice).Mul(decimal.NewFromFloat(req.Quantity))
	proceeds := shared.ToUSD(gross, currency, decimal.NewFromFloat(req.ExchangeRate))
	detail := SaleDetail{Currency: currency, ExchangeRate: req.ExchangeRate, UnitPrice: req.UnitPrice}
	return detail, proceeds.InexactFloat64(), nil
}
