// Package catalog holds the registry of materials and their units of measure.
// Entries can be added and extended but never removed or renamed, so every
// historical movement keeps resolving to its material by name.
package catalog

import (
	"strings"

	"github.com/sitestock/sitestock/internal/shared"
)

// Catalog is an append-only material registry preserving insertion order.
type Catalog struct {
	materials []Material
	index     map[string]int
}

// New builds a catalog from previously saved materials as-is. A repeated
// name stays in the list but lookups resolve to its first occurrence.
func New(materials []Material) *Catalog {
	c := &Catalog{index: make(map[string]int, len(materials))}
	for _, m := range materials {
		if _, dup := c.index[m.Name]; !dup {
			c.index[m.Name] = len(c.materials)
		}
		c.materials = append(c.materials, cloneMaterial(m))
	}
	return c
}

// Add registers a new material.
func (c *Catalog) Add(name string, units []string) (Material, error) {
	name = strings.TrimSpace(name)
	units = normaliseUnits(units)
	if err := validateMaterial(name, units); err != nil {
		return Material{}, err
	}
	if _, exists := c.index[name]; exists {
		return Material{}, shared.Invalid("name", "already exists in catalog")
	}
	m := Material{Name: name, Units: units}
	c.index[name] = len(c.materials)
	c.materials = append(c.materials, m)
	return cloneMaterial(m), nil
}

// Extend appends units not yet known to an existing material.
func (c *Catalog) Extend(name string, units []string) (Material, error) {
	name = strings.TrimSpace(name)
	idx, ok := c.index[name]
	if !ok {
		return Material{}, &UnknownMaterialError{Item: name}
	}
	units = normaliseUnits(units)
	if len(units) == 0 {
		return Material{}, shared.Invalid("units", "must contain at least one unit")
	}
	m := &c.materials[idx]
	for _, u := range units {
		if !m.HasUnit(u) {
			m.Units = append(m.Units, u)
		}
	}
	return cloneMaterial(*m), nil
}

// Get looks up a material by exact name.
func (c *Catalog) Get(name string) (Material, bool) {
	idx, ok := c.index[name]
	if !ok {
		return Material{}, false
	}
	return cloneMaterial(c.materials[idx]), true
}

// Resolve checks that unit belongs to the named material.
func (c *Catalog) Resolve(item, unit string) error {
	idx, ok := c.index[item]
	if !ok {
		return &UnknownMaterialError{Item: item}
	}
	if !c.materials[idx].HasUnit(unit) {
		return &UnknownMaterialError{Item: item, Unit: unit}
	}
	return nil
}

// Materials returns a copy of every entry in insertion order.
func (c *Catalog) Materials() []Material {
	out := make([]Material, len(c.materials))
	for i, m := range c.materials {
		out[i] = cloneMaterial(m)
	}
	return out
}

// Len returns the number of registered materials.
func (c *Catalog) Len() int {
	return len(c.materials)
}

func cloneMaterial(m Material) Material {
	units := make([]string, len(m.Units))
	copy(units, m.Units)
	return Material{Name: m.Name, Units: units}
}
