package catalog

import (
	"strings"

	"github.com/sitestock/sitestock/internal/shared"
)

// ParseUnits splits a comma separated unit list, trimming each fragment and
// dropping empty ones.
func ParseUnits(input string) []string {
	return normaliseUnits(strings.Split(input, ","))
}

func normaliseUnits(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	units := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		units = append(units, u)
	}
	return units
}

func validateMaterial(name string, units []string) error {
	var errs shared.ValidationErrors
	if name == "" {
		errs.Add("name", "is required")
	}
	if len(units) == 0 {
		errs.Add("units", "must contain at least one unit")
	}
	return errs.Err()
}
