package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sitestock/sitestock/internal/catalog"
	"github.com/sitestock/sitestock/internal/inventory"
	jobmetrics "github.com/sitestock/sitestock/internal/jobs"
	"github.com/sitestock/sitestock/internal/project"
	"github.com/sitestock/sitestock/internal/shared"
)

var day = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

type memoryStore struct {
	states map[string]project.State
}

func (s memoryStore) Load(_ context.Context, id string) (project.State, error) {
	state, ok := s.states[id]
	if !ok {
		return project.State{}, project.ErrNotFound
	}
	return state, nil
}

func (s memoryStore) IDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func movement(id string, qty, unitCost float64, mode inventory.Mode) inventory.Movement {
	m := inventory.Movement{
		ID:           id,
		Item:         "Arena Fina de Río",
		Unit:         "Saco",
		Quantity:     qty,
		UnitCostUSD:  unitCost,
		TotalCostUSD: qty * unitCost,
		Mode:         mode,
		Date:         day,
	}
	if mode == inventory.ModePurchase {
		m.Purchase = &inventory.PurchaseDetail{Supplier: "Ferretería Central", Currency: shared.CurrencyUSD, ExchangeRate: 1, UnitPrice: unitCost}
	}
	return m
}

func testStore() memoryStore {
	return memoryStore{states: map[string]project.State{
		"clean": {
			Catalog:   catalog.Defaults(),
			Movements: []inventory.Movement{movement("m1", 10, 2, inventory.ModePurchase)},
		},
		"broken": {
			Catalog: catalog.Defaults(),
			Movements: []inventory.Movement{
				movement("m1", 2, 2, inventory.ModePurchase),
				movement("m2", -5, 2, inventory.ModeWriteOff),
			},
		},
	}}
}

func newCache(t *testing.T) (*project.SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return project.NewSnapshotCache(client, time.Hour), mr
}

func scrape(t *testing.T, registry *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRevaluationCachesStockAndReportsViolations(t *testing.T) {
	cache, _ := newCache(t)
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewLedgerRevaluationJob(testStore(), cache, discard(), metrics)

	task, err := NewLedgerRevaluationTask("", day)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	calls := 0
	stock, err := cache.Fetch(context.Background(), "clean", func(context.Context) ([]inventory.Snapshot, error) {
		calls++
		return nil, nil
	})
	require.NoError(t, err)
	require.Zero(t, calls)
	require.Len(t, stock, 1)
	require.InDelta(t, 10, stock[0].Total, 1e-9)

	res, err := job.Revalue(context.Background(), "broken")
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	require.Equal(t, inventory.ViolationNegativeStock, res.Violations[0].Kind)

	body := scrape(t, registry)
	require.Contains(t, body, `sitestock_ledger_violations_total{kind="negative_stock"} 2`)
	require.Contains(t, body, `sitestock_jobs_total{job="ledger:revaluation",status="success"} 1`)
}

func TestRevaluationSkipsStaleVersion(t *testing.T) {
	cache, _ := newCache(t)
	job := NewLedgerRevaluationJob(testStore(), cache, discard(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	_, err := job.Revalue(context.Background(), "clean")
	require.NoError(t, err)
	require.NoError(t, cache.Bump(context.Background(), "clean"))

	calls := 0
	_, err = cache.Fetch(context.Background(), "clean", func(context.Context) ([]inventory.Snapshot, error) {
		calls++
		return []inventory.Snapshot{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRevaluationUnknownProjectFails(t *testing.T) {
	cache, _ := newCache(t)
	registry := prometheus.NewRegistry()
	job := NewLedgerRevaluationJob(testStore(), cache, discard(), jobmetrics.NewMetrics(registry))

	task, err := NewLedgerRevaluationTask("missing", day)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, scrape(t, registry), `sitestock_jobs_total{job="ledger:revaluation",status="failure"} 1`)
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	cache, _ := newCache(t)
	job := NewLedgerRevaluationJob(testStore(), cache, discard(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerRevaluation, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestExportWritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	job := NewLedgerExportJob(testStore(), filepath.Join(dir, "out"), discard(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return day }

	task, err := NewLedgerExportTask("clean", day)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	path := filepath.Join(dir, "out", "clean-20241001T000000Z.xlsx")
	_, err = os.Stat(path)
	require.NoError(t, err)
	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Stock")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func TestClientEnqueuesRevaluationOnMovements(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := NewClientWith(enq)
	client.now = func() time.Time { return time.Date(2024, 10, 15, 8, 0, 47, 0, time.UTC) }

	require.NoError(t, client.HandleMovementsRecorded(context.Background(), inventory.MovementsRecordedEvent{
		ProjectID: "clean",
		Mode:      inventory.ModePurchase,
	}))
	require.NoError(t, client.HandleMovementsRecorded(context.Background(), inventory.MovementsRecordedEvent{}))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskLedgerRevaluation, enq.tasks[0].Type())

	var payload LedgerPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "clean", payload.ProjectID)
	require.Equal(t, time.Date(2024, 10, 15, 8, 0, 30, 0, time.UTC), payload.ScheduledFor)

	enq.err = asynq.ErrDuplicateTask
	require.NoError(t, client.EnqueueRevaluation(context.Background(), "clean"))
	require.NoError(t, client.Close())
}

func TestNewTaskRejectsUnknownType(t *testing.T) {
	_, err := NewTask("mail:send", "", day)
	require.Error(t, err)

	for _, taskType := range TaskTypes {
		task, err := NewTask(taskType, "p1", day)
		require.NoError(t, err)
		require.Equal(t, taskType, task.Type())
	}
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   float64
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue info", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, status: http.StatusOK, pending: 3},
		{name: "redis down", inspector: fakeInspector{err: errors.New("dial tcp: refused")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(tc.inspector, discard())
			rr := httptest.NewRecorder()
			h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				require.Equal(t, QueueDefault, body["queue"])
				require.Equal(t, tc.pending, body["pending"])
			}
		})
	}
}

type recordingCleaner struct {
	retention time.Duration
}

func (r *recordingCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	r.retention = olderThan
	return nil
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	cleaner := &recordingCleaner{}
	job := &IdempotencyCleanupJob{Store: cleaner, Logger: discard(), Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	task, err := NewTask(TaskIdempotencyCleanup, "", day)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, DefaultKeyRetention, cleaner.retention)

	task, err = NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, cleaner.retention)
}
