package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency identifies the currency an amount is denominated in. The ledger
// values everything in USD; the only other accepted currency is the local one.
type Currency string

const (
	// CurrencyUSD is the valuation currency.
	CurrencyUSD Currency = "USD"
	// CurrencyLocal is the project's local currency (Nicaraguan córdoba).
	CurrencyLocal Currency = "NIO"
)

// ParseCurrency normalises user input, accepting the "C$" alias for the
// local currency. Unknown codes come back as-is with ok=false.
func ParseCurrency(raw string) (Currency, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	switch code {
	case "USD", "US$", "$":
		return CurrencyUSD, true
	case "NIO", "C$", "CORDOBA":
		return CurrencyLocal, true
	}
	return Currency(code), false
}

// UnmarshalText applies ParseCurrency so stored and submitted aliases agree.
func (c *Currency) UnmarshalText(text []byte) error {
	*c, _ = ParseCurrency(string(text))
	return nil
}

// IsLocal reports whether amounts need conversion through an exchange rate.
func (c Currency) IsLocal() bool {
	return c == CurrencyLocal
}

// ToUSD converts amount using rate (local units per USD). USD amounts pass
// through untouched. Callers must reject non-positive rates beforehand.
func ToUSD(amount decimal.Decimal, currency Currency, rate decimal.Decimal) decimal.Decimal {
	if !currency.IsLocal() {
		return amount
	}
	return amount.Div(rate)
}
