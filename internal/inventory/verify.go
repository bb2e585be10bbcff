package inventory

import "fmt"

// ViolationKind classifies a ledger audit finding.
type ViolationKind string

const (
	ViolationInvalid       ViolationKind = "invalid_movement"
	ViolationCostMismatch  ViolationKind = "cost_mismatch"
	ViolationSignMismatch  ViolationKind = "sign_mismatch"
	ViolationNegativeStock ViolationKind = "negative_stock"
	ViolationDuplicateID   ViolationKind = "duplicate_id"
)

// Violation is one broken ledger invariant, located by insertion index.
type Violation struct {
	Index      int           `json:"index"`
	MovementID string        `json:"movementId"`
	Kind       ViolationKind `json:"kind"`
	Detail     string        `json:"detail"`
}

// Verify replays movements in insertion order and reports every movement
// breaking cost or sign consistency, every duplicate ID and every prefix at
// which a material's per-unit running quantity turns negative.
func Verify(movements []Movement) []Violation {
	var out []Violation
	ids := make(map[string]int, len(movements))
	running := make(map[[2]string]float64)
	for i, m := range movements {
		report := func(kind ViolationKind, detail string) {
			out = append(out, Violation{Index: i, MovementID: m.ID, Kind: kind, Detail: detail})
		}
		if first, dup := ids[m.ID]; dup {
			report(ViolationDuplicateID, fmt.Sprintf("id first used at index %d", first))
		} else {
			ids[m.ID] = i
		}
		if diff, off := costDrift(m); off {
			report(ViolationCostMismatch, fmt.Sprintf("total cost off by %.6f", diff))
		}
		if signMismatch(m) {
			report(ViolationSignMismatch, fmt.Sprintf("%s with quantity %.4f", m.Mode, m.Quantity))
		}
		if err := m.validateShape(); err != nil {
			report(ViolationInvalid, err.Error())
		}
		key := [2]string{m.Item, m.Unit}
		running[key] += m.Quantity
		if m.Quantity < 0 && running[key] < -qtyEpsilon {
			report(ViolationNegativeStock, fmt.Sprintf("%s/%s running quantity %.4f", m.Item, m.Unit, running[key]))
		}
	}
	return out
}

func signMismatch(m Movement) bool {
	switch {
	case m.Mode == ModePurchase:
		return m.Quantity <= 0
	case m.Mode.Outbound():
		return m.Quantity >= 0
	}
	return false
}
