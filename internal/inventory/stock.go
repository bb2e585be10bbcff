package inventory

import (
	"sort"

	"github.com/sitestock/sitestock/internal/catalog"
)

// Snapshot summarises one material's stock and valuation.
type Snapshot struct {
	Name          string             `json:"name"`
	Total         float64            `json:"total"`
	TotalValueUSD float64            `json:"totalValueUSD"`
	AvgCostUSD    float64            `json:"avgCostUSD"`
	Units         map[string]float64 `json:"units"`
}

// Visible reports whether the material still holds stock or value. Float
// residue left by fractional outflows does not count.
func (s Snapshot) Visible() bool {
	return s.Total > qtyEpsilon || s.TotalValueUSD > CostTolerance
}

// Position is the full fold of a ledger, including materials whose stock is
// exhausted. It is derived data and is never stored.
type Position struct {
	entries map[string]*Snapshot
}

// Aggregate folds movements into per-material balances. Catalog materials
// are seeded with zero buckets for each of their units so they resolve even
// before the first purchase. Average cost is recomputed after every
// movement as a running weighted average of the whole balance.
func Aggregate(movements []Movement, materials []catalog.Material) *Position {
	p := &Position{entries: make(map[string]*Snapshot, len(materials))}
	for _, mat := range materials {
		entry := p.entry(mat.Name)
		for _, u := range mat.Units {
			if _, ok := entry.Units[u]; !ok {
				entry.Units[u] = 0
			}
		}
	}
	for _, m := range movements {
		entry := p.entry(m.Item)
		entry.Total += m.Quantity
		entry.TotalValueUSD += m.TotalCostUSD
		entry.AvgCostUSD = averageCost(entry.Total, entry.TotalValueUSD)
		entry.Units[m.Unit] += m.Quantity
	}
	return p
}

func (p *Position) entry(name string) *Snapshot {
	if e, ok := p.entries[name]; ok {
		return e
	}
	e := &Snapshot{Name: name, Units: make(map[string]float64)}
	p.entries[name] = e
	return e
}

func averageCost(total, value float64) float64 {
	if total <= qtyEpsilon {
		return 0
	}
	return value / total
}

// Lookup returns the balance of item, including exhausted materials.
func (p *Position) Lookup(item string) (Snapshot, bool) {
	e, ok := p.entries[item]
	if !ok {
		return Snapshot{}, false
	}
	return e.copy(), true
}

// Snapshots returns the externally visible stock sorted by material name.
func (p *Position) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(p.entries))
	for _, e := range p.entries {
		if !e.Visible() {
			continue
		}
		out = append(out, e.copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Snapshot) copy() Snapshot {
	out := *s
	out.Units = make(map[string]float64, len(s.Units))
	for k, v := range s.Units {
		out.Units[k] = v
	}
	return out
}
