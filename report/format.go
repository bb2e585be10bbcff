package report

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders amount as dollars with thousands grouping, e.g.
// "$1,234.50" or "-$12.00".
func FormatUSD(amount float64) string {
	if amount < 0 && math.Round(amount*100) != 0 {
		return usdPrinter.Sprintf("-$%.2f", -amount)
	}
	return usdPrinter.Sprintf("$%.2f", math.Abs(amount))
}
