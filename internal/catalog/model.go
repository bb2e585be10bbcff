package catalog

import (
	"errors"
	"fmt"
)

// Material is a catalog entry with its permitted units of measure.
type Material struct {
	Name  string   `json:"name"`
	Units []string `json:"units"`
}

// HasUnit reports whether unit is one of the material's units.
func (m Material) HasUnit(unit string) bool {
	for _, u := range m.Units {
		if u == unit {
			return true
		}
	}
	return false
}

// ErrUnknownMaterial matches every UnknownMaterialError.
var ErrUnknownMaterial = errors.New("catalog: unknown material or unit")

// UnknownMaterialError reports a reference to a material, or a unit of a
// material, that the catalog does not define.
type UnknownMaterialError struct {
	Item string `json:"item"`
	Unit string `json:"unit,omitempty"`
}

func (e *UnknownMaterialError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("catalog: unknown material %q", e.Item)
	}
	return fmt.Sprintf("catalog: unit %q is not defined for material %q", e.Unit, e.Item)
}

// Is makes UnknownMaterialError match ErrUnknownMaterial.
func (e *UnknownMaterialError) Is(target error) bool {
	return target == ErrUnknownMaterial
}
