package inventory

import "time"

// MovementsRecordedEvent announces movements appended to a project ledger.
type MovementsRecordedEvent struct {
	ProjectID  string
	Mode       Mode
	InvoiceID  string
	Movements  []Movement
	RecordedAt time.Time
}
