package procurement

import (
	"time"

	"github.com/sitestock/sitestock/internal/shared"
)

// Invoice is a supplier invoice header with its line items. It is transient
// input: only the movements prorated from it are stored.
type Invoice struct {
	InvoiceID      string          `json:"invoiceId" validate:"required"`
	Date           time.Time       `json:"date" validate:"required"`
	Supplier       string          `json:"supplier"`
	Currency       shared.Currency `json:"currency" validate:"oneof=USD NIO"`
	ExchangeRate   float64         `json:"exchangeRate" validate:"gt=0"`
	TaxRatePercent float64         `json:"taxRatePercent" validate:"gte=0"`
	TotalDiscount  float64         `json:"totalDiscount" validate:"gte=0"`
	Lines          []LineItem      `json:"lines" validate:"min=1,dive"`
}

// LineItem is one material line priced in the invoice currency.
type LineItem struct {
	Item      string  `json:"item" validate:"required"`
	Unit      string  `json:"unit" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	UnitPrice float64 `json:"unitPrice" validate:"gt=0"`
}

// InvoiceTotals summarises the proration of one invoice. Amounts up to
// TotalWithTax are in the invoice currency.
type InvoiceTotals struct {
	SubtotalGross    float64 `json:"subtotalGross"`
	SubtotalNet      float64 `json:"subtotalNet"`
	TotalWithTax     float64 `json:"totalWithTax"`
	SubtotalGrossUSD float64 `json:"subtotalGrossUSD"`
	TotalCostUSD     float64 `json:"totalCostUSD"`
	Factor           float64 `json:"factor"`
}

// Resolver confirms a material/unit pair is registered.
type Resolver interface {
	Resolve(item, unit string) error
}
