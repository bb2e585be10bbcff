package inventory

import "context"

// IntegrationHandler receives inventory events for downstream processing.
type IntegrationHandler interface {
	HandleMovementsRecorded(ctx context.Context, evt MovementsRecordedEvent) error
}
