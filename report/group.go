// Package report derives display and export views from a project ledger.
package report

import (
	"sort"
	"strings"

	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/shared"
)

// GroupBy names the movement field groups are keyed on.
type GroupBy string

const (
	ByItem    GroupBy = "item"
	ByInvoice GroupBy = "invoiceId"
	ByDate    GroupBy = "date"
	ByMode    GroupBy = "mode"
)

// Unclassified collects movements missing the grouping field.
const Unclassified = "Unclassified"

// DateLayout formats date group keys.
const DateLayout = "2006-01-02"

// ParseGroupBy accepts the group field names, defaulting to item.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch GroupBy(strings.TrimSpace(raw)) {
	case "", ByItem:
		return ByItem, nil
	case ByInvoice, "invoice":
		return ByInvoice, nil
	case ByDate:
		return ByDate, nil
	case ByMode:
		return ByMode, nil
	}
	return "", shared.Invalid("by", "must be one of item invoiceId date mode")
}

// Group is a run of movements sharing one key, with signed totals.
type Group struct {
	Key            string               `json:"key"`
	TotalQuantity  float64              `json:"totalQuantity"`
	TotalCostUSD   float64              `json:"totalCostUSD"`
	TotalSalePrice float64              `json:"totalSalePrice"`
	Movements      []inventory.Movement `json:"movements"`
}

// GroupMovements partitions movements by the chosen field. Groups are
// sorted by key with Unclassified last; movements keep ledger order.
func GroupMovements(movements []inventory.Movement, by GroupBy) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, m := range movements {
		key := groupKey(m, by)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		g := &groups[i]
		g.TotalQuantity += m.Quantity
		g.TotalCostUSD += m.TotalCostUSD
		if m.Mode == inventory.ModeSale {
			g.TotalSalePrice += m.SalePrice
		}
		g.Movements = append(g.Movements, m)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if (a == Unclassified) != (b == Unclassified) {
			return b == Unclassified
		}
		return a < b
	})
	return groups
}

func groupKey(m inventory.Movement, by GroupBy) string {
	var key string
	switch by {
	case ByInvoice:
		key = m.InvoiceID
	case ByDate:
		if !m.Date.IsZero() {
			key = m.Date.Format(DateLayout)
		}
	case ByMode:
		key = string(m.Mode)
	default:
		key = m.Item
	}
	if strings.TrimSpace(key) == "" {
		return Unclassified
	}
	return key
}
