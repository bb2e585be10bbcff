package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerRevaluation recomputes stock snapshots and replays ledgers.
	TaskLedgerRevaluation = "ledger:revaluation"
	// TaskLedgerExport writes a project's ledger workbook to the export dir.
	TaskLedgerExport = "ledger:export"
	// TaskIdempotencyCleanup prunes processed idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// TaskTypes lists the task types a worker handles.
var TaskTypes = []string{TaskLedgerRevaluation, TaskLedgerExport, TaskIdempotencyCleanup}

// LedgerPayload targets one project, or every project when ProjectID is empty.
type LedgerPayload struct {
	ProjectID    string    `json:"project_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerRevaluationTask constructs a revaluation task.
func NewLedgerRevaluationTask(projectID string, at time.Time) (*asynq.Task, error) {
	return newLedgerTask(TaskLedgerRevaluation, projectID, at)
}

// NewLedgerExportTask constructs an export task.
func NewLedgerExportTask(projectID string, at time.Time) (*asynq.Task, error) {
	return newLedgerTask(TaskLedgerExport, projectID, at)
}

// NewTask builds a task by type name, as used by the CLI trigger.
func NewTask(taskType, projectID string, at time.Time) (*asynq.Task, error) {
	switch taskType {
	case TaskLedgerRevaluation, TaskLedgerExport:
		return newLedgerTask(taskType, projectID, at)
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(0)
	}
	return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
}

func newLedgerTask(taskType, projectID string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerPayload{ProjectID: projectID, ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

func decodeLedgerPayload(t *asynq.Task) (LedgerPayload, error) {
	var payload LedgerPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return LedgerPayload{}, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return payload, nil
}
