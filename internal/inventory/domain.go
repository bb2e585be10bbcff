package inventory

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sitestock/sitestock/internal/shared"
)

// Mode enumerates supported inventory movements.
type Mode string

const (
	// ModePurchase represents an inbound movement from a supplier invoice.
	ModePurchase Mode = "Purchase"
	// ModeSale represents stock sold to a third party.
	ModeSale Mode = "Sale"
	// ModeWriteOff represents stock discarded as waste or loss.
	ModeWriteOff Mode = "WriteOff"
)

// Outbound reports whether the mode removes stock.
func (m Mode) Outbound() bool {
	return m == ModeSale || m == ModeWriteOff
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePurchase || m.Outbound()
}

// CostTolerance bounds |totalCostUSD - quantity*unitCostUSD| for totals up
// to 1 USD; larger totals scale it by their magnitude.
const CostTolerance = 1e-6

// costDrift returns how far m.TotalCostUSD is from quantity x unit cost and
// whether that exceeds the tolerance for m's total.
func costDrift(m Movement) (float64, bool) {
	diff := math.Abs(m.TotalCostUSD - m.Quantity*m.UnitCostUSD)
	return diff, diff > CostTolerance*math.Max(1, math.Abs(m.TotalCostUSD))
}

// qtyEpsilon absorbs float noise when comparing running quantities.
const qtyEpsilon = 1e-9

// Movement is one immutable change to a material's stock. Mode is the
// discriminant: Purchase carries Purchase details, Sale carries Sale details
// and a positive SalePrice, WriteOff carries neither.
type Movement struct {
	ID           string          `json:"id"`
	Item         string          `json:"item"`
	Unit         string          `json:"unit"`
	Quantity     float64         `json:"quantity"`
	UnitCostUSD  float64         `json:"unitCostUSD"`
	TotalCostUSD float64         `json:"totalCostUSD"`
	Mode         Mode            `json:"mode"`
	Date         time.Time       `json:"date"`
	InvoiceID    string          `json:"invoiceId,omitempty"`
	SalePrice    float64         `json:"salePrice"`
	Purchase     *PurchaseDetail `json:"purchase,omitempty"`
	Sale         *SaleDetail     `json:"sale,omitempty"`
}

// PurchaseDetail keeps the invoice context a purchase was prorated from.
type PurchaseDetail struct {
	Supplier       string          `json:"supplier"`
	Currency       shared.Currency `json:"currency"`
	ExchangeRate   float64         `json:"exchangeRate"`
	UnitPrice      float64         `json:"unitPrice"`
	TaxRatePercent float64         `json:"taxRatePercent"`
	TotalDiscount  float64         `json:"totalDiscount"`
}

// SaleDetail keeps the price the material was sold at, in its own currency.
type SaleDetail struct {
	Currency     shared.Currency `json:"currency"`
	ExchangeRate float64         `json:"exchangeRate"`
	UnitPrice    float64         `json:"unitPrice"`
}

// ErrInvalidMovement indicates a movement violating the record invariants.
var ErrInvalidMovement = errors.New("inventory: invalid movement")

// Validate checks the record invariants: known mode, sign matching mode,
// cost consistency and mode-specific fields.
func (m Movement) Validate() error {
	if err := m.validateShape(); err != nil {
		return err
	}
	if err := m.checkSign(); err != nil {
		return err
	}
	return m.checkCost()
}

func (m Movement) validateShape() error {
	switch {
	case !m.Mode.Valid():
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidMovement, m.Mode)
	case m.Item == "" || m.Unit == "":
		return fmt.Errorf("%w: item and unit required", ErrInvalidMovement)
	case !finite(m.Quantity, m.UnitCostUSD, m.TotalCostUSD, m.SalePrice):
		return fmt.Errorf("%w: non-finite amount", ErrInvalidMovement)
	}
	switch m.Mode {
	case ModePurchase:
		if m.Purchase == nil || m.Sale != nil || m.SalePrice != 0 {
			return fmt.Errorf("%w: purchase requires purchase details only", ErrInvalidMovement)
		}
	case ModeSale:
		if m.Sale == nil || m.Purchase != nil {
			return fmt.Errorf("%w: sale requires sale details only", ErrInvalidMovement)
		}
		if m.SalePrice <= 0 {
			return fmt.Errorf("%w: sale price must be positive", ErrInvalidMovement)
		}
	case ModeWriteOff:
		if m.Sale != nil || m.Purchase != nil || m.SalePrice != 0 {
			return fmt.Errorf("%w: write-off carries no pricing", ErrInvalidMovement)
		}
	}
	return nil
}

func (m Movement) checkSign() error {
	if m.Mode == ModePurchase && m.Quantity <= 0 {
		return fmt.Errorf("%w: purchase quantity must be positive", ErrInvalidMovement)
	}
	if m.Mode.Outbound() && m.Quantity >= 0 {
		return fmt.Errorf("%w: %s quantity must be negative", ErrInvalidMovement, m.Mode)
	}
	if m.TotalCostUSD != 0 && (m.TotalCostUSD > 0) != (m.Quantity > 0) {
		return fmt.Errorf("%w: total cost sign differs from quantity", ErrInvalidMovement)
	}
	return nil
}

func (m Movement) checkCost() error {
	if _, off := costDrift(m); off {
		return fmt.Errorf("%w: total cost %.6f != quantity x unit cost %.6f", ErrInvalidMovement, m.TotalCostUSD, m.Quantity*m.UnitCostUSD)
	}
	return nil
}

func (m Movement) clone() Movement {
	if m.Purchase != nil {
		p := *m.Purchase
		m.Purchase = &p
	}
	if m.Sale != nil {
		s := *m.Sale
		m.Sale = &s
	}
	return m
}

// PurchaseInput describes one prorated invoice line.
type PurchaseInput struct {
	Item         string
	Unit         string
	Quantity     float64
	TotalCostUSD float64
	Date         time.Time
	InvoiceID    string
	Detail       PurchaseDetail
}

// NewPurchase builds an inbound movement; unit cost derives from the
// distributed total so the cost invariant holds by construction.
func NewPurchase(in PurchaseInput) (Movement, error) {
	if in.Quantity <= 0 {
		return Movement{}, shared.Invalid("quantity", "must be greater than 0")
	}
	if in.InvoiceID == "" {
		return Movement{}, shared.Invalid("invoiceId", "is required")
	}
	detail := in.Detail
	m := Movement{
		ID:           NewID(),
		Item:         in.Item,
		Unit:         in.Unit,
		Quantity:     in.Quantity,
		UnitCostUSD:  in.TotalCostUSD / in.Quantity,
		TotalCostUSD: in.TotalCostUSD,
		Mode:         ModePurchase,
		Date:         in.Date,
		InvoiceID:    in.InvoiceID,
		Purchase:     &detail,
	}
	return m, m.Validate()
}

// OutflowInput describes stock leaving at a given unit cost. Quantity is the
// positive amount removed.
type OutflowInput struct {
	Item        string
	Unit        string
	Quantity    float64
	UnitCostUSD float64
	Date        time.Time
}

// NewSale builds an outbound sale movement; salePriceUSD is the total
// proceeds in USD.
func NewSale(in OutflowInput, detail SaleDetail, salePriceUSD float64) (Movement, error) {
	m := newOutflow(in, ModeSale)
	m.Sale = &detail
	m.SalePrice = salePriceUSD
	return m, m.Validate()
}

// NewWriteOff builds an outbound write-off movement.
func NewWriteOff(in OutflowInput) (Movement, error) {
	m := newOutflow(in, ModeWriteOff)
	return m, m.Validate()
}

func newOutflow(in OutflowInput, mode Mode) Movement {
	total := -in.Quantity * in.UnitCostUSD
	if total == 0 {
		// normalise -0 so it serialises as 0
		total = 0
	}
	return Movement{
		ID:           NewID(),
		Item:         in.Item,
		Unit:         in.Unit,
		Quantity:     -in.Quantity,
		UnitCostUSD:  in.UnitCostUSD,
		TotalCostUSD: total,
		Mode:         mode,
		Date:         in.Date,
	}
}

// NewID returns a time-ordered movement identifier.
var NewID = func() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
