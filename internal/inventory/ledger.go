package inventory

import "fmt"

// Ledger is the append-only movement sequence of one project.
type Ledger struct {
	movements []Movement
	ids       map[string]struct{}
	invoices  map[string]struct{}
}

// NewLedger adopts previously saved movements as-is, without re-validating
// them against the current catalog.
func NewLedger(movements []Movement) *Ledger {
	l := &Ledger{
		movements: make([]Movement, 0, len(movements)),
		ids:       make(map[string]struct{}, len(movements)),
		invoices:  make(map[string]struct{}),
	}
	for _, m := range movements {
		l.push(m.clone())
	}
	return l
}

// Append adds every movement or none. Each movement must satisfy Validate
// and carry an ID not yet present in the ledger.
func (l *Ledger) Append(batch ...Movement) error {
	seen := make(map[string]struct{}, len(batch))
	for i, m := range batch {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("inventory: movement %d: %w", i, err)
		}
		if _, dup := l.ids[m.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidMovement, m.ID)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidMovement, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	for _, m := range batch {
		l.push(m.clone())
	}
	return nil
}

func (l *Ledger) push(m Movement) {
	l.movements = append(l.movements, m)
	l.ids[m.ID] = struct{}{}
	if m.InvoiceID != "" {
		l.invoices[m.InvoiceID] = struct{}{}
	}
}

// Movements returns a copy of the ledger in insertion order.
func (l *Ledger) Movements() []Movement {
	out := make([]Movement, len(l.movements))
	for i, m := range l.movements {
		out[i] = m.clone()
	}
	return out
}

// HasInvoice reports whether any movement references invoiceID.
func (l *Ledger) HasInvoice(invoiceID string) bool {
	_, ok := l.invoices[invoiceID]
	return ok
}

// Len returns the number of movements.
func (l *Ledger) Len() int {
	return len(l.movements)
}
