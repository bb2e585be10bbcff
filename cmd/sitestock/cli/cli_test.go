package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/catalog"
	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/project"
	"github.com/sitestock/sitestock/internal/shared"
	"github.com/sitestock/sitestock/jobs"
)

var day = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

func rebarMovement(id string, qty float64, mode inventory.Mode) inventory.Movement {
	m := inventory.Movement{
		ID:           id,
		Item:         "Varilla de Acero Grado 60",
		Unit:         `Unidad 1/2"`,
		Quantity:     qty,
		UnitCostUSD:  4,
		TotalCostUSD: qty * 4,
		Mode:         mode,
		Date:         day,
	}
	if mode == inventory.ModePurchase {
		m.Purchase = &inventory.PurchaseDetail{Supplier: "Acero Nica", Currency: shared.CurrencyUSD, ExchangeRate: 1, UnitPrice: 4}
	}
	return m
}

func writeState(t *testing.T, movements ...inventory.Movement) string {
	t.Helper()
	raw, err := json.Marshal(project.State{Catalog: catalog.Defaults(), Movements: movements})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestVerifyCommandCleanLedger(t *testing.T) {
	path := writeState(t,
		rebarMovement("m1", 20, inventory.ModePurchase),
		rebarMovement("m2", -5, inventory.ModeWriteOff),
	)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := VerifyCommand(VerifyOptions{File: path, JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitOK, code, stderr.String())

	var summary VerifySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Equal(t, 2, summary.Movements)
	require.Empty(t, summary.Violations)
	require.Len(t, summary.Stock, 1)
	require.InDelta(t, 15, summary.Stock[0].Total, 1e-9)
}

func TestVerifyCommandReportsViolations(t *testing.T) {
	bad := rebarMovement("m2", -30, inventory.ModeWriteOff)
	path := writeState(t, rebarMovement("m1", 20, inventory.ModePurchase), bad)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := VerifyCommand(VerifyOptions{File: path, Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitViolations, code)
	require.Contains(t, stdout.String(), "1 violation(s)")
	require.Contains(t, stdout.String(), "[negative_stock]")
}

func TestVerifyCommandUsageErrors(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, ExitFailure, VerifyCommand(VerifyOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "--file is required")

	stderr.Reset()
	missing := filepath.Join(t.TempDir(), "none.json")
	require.Equal(t, ExitFailure, VerifyCommand(VerifyOptions{File: missing, Stdout: new(bytes.Buffer), Stderr: stderr}))

	garbage := filepath.Join(t.TempDir(), "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o600))
	stderr.Reset()
	require.Equal(t, ExitFailure, VerifyCommand(VerifyOptions{File: garbage, Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "decode")
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, nil
}

func TestJobsTrigger(t *testing.T) {
	enq := &recordingEnqueuer{}
	c := NewJobsCLIWith(jobs.NewClientWith(enq), stubInspector{info: &asynq.QueueInfo{Pending: 2, Scheduled: 1}})

	info, err := c.Trigger(context.Background(), jobs.TaskLedgerExport, "obra-norte")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskLedgerExport, info.Type)
	require.Len(t, enq.tasks, 1)

	var payload jobs.LedgerPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "obra-norte", payload.ProjectID)

	_, err = c.Trigger(context.Background(), "mail:send", "")
	require.Error(t, err)
	require.Len(t, enq.tasks, 1)

	stats, err := c.InspectQueue()
	require.NoError(t, err)
	require.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Scheduled: 1}, stats)
	require.NoError(t, c.Close())
}
