package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sitestock/sitestock/internal/inventory"
	jobmetrics "github.com/sitestock/sitestock/internal/jobs"
	"github.com/sitestock/sitestock/internal/project"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ProjectStore reads saved project states.
type ProjectStore interface {
	Load(ctx context.Context, id string) (project.State, error)
	IDs(ctx context.Context) ([]string, error)
}

// Revaluation is the outcome of replaying one project's ledger.
type Revaluation struct {
	ProjectID  string                `json:"projectId"`
	Stock      []inventory.Snapshot  `json:"stock"`
	Violations []inventory.Violation `json:"violations"`
}

// LedgerRevaluationJob recomputes stock snapshots into the snapshot cache and
// replays each ledger looking for invariant violations.
type LedgerRevaluationJob struct {
	Store   ProjectStore
	Cache   *project.SnapshotCache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerRevaluationJob wires dependencies for the revaluation handler.
func NewLedgerRevaluationJob(store ProjectStore, cache *project.SnapshotCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerRevaluationJob {
	return &LedgerRevaluationJob{Store: store, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes revaluation tasks.
func (j *LedgerRevaluationJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("ledger revaluation: handler not configured")
	}
	payload, err := decodeLedgerPayload(t)
	if err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskLedgerRevaluation)
	defer func() {
		err = tracker.End(err)
	}()

	ids, err := projectIDs(ctx, j.Store, payload.ProjectID)
	if err != nil {
		j.logger().Error("list projects", slog.Any("error", err))
		return err
	}
	start := time.Now()
	dirty := 0
	for _, id := range ids {
		res, err := j.Revalue(ctx, id)
		if err != nil {
			j.logger().Error("revalue project", slog.String("project", id), slog.Any("error", err))
			return err
		}
		if len(res.Violations) > 0 {
			dirty++
		}
	}
	j.logger().Info("completed ledger revaluation",
		slog.Int("projects", len(ids)),
		slog.Int("with_violations", dirty),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Revalue recomputes one project's stock, caches it and reports violations.
func (j *LedgerRevaluationJob) Revalue(ctx context.Context, id string) (Revaluation, error) {
	version, err := j.Cache.Version(ctx, id)
	if err != nil {
		return Revaluation{}, err
	}
	state, err := j.Store.Load(ctx, id)
	if err != nil {
		return Revaluation{}, err
	}
	res := Revaluation{
		ProjectID:  id,
		Stock:      project.LoadEngine(state).CurrentStock(),
		Violations: inventory.Verify(state.Movements),
	}
	if err := j.Cache.Store(ctx, id, version, res.Stock); err != nil {
		return Revaluation{}, err
	}
	if len(res.Violations) > 0 {
		counts := make(map[inventory.ViolationKind]int)
		for _, v := range res.Violations {
			counts[v.Kind]++
		}
		for kind, n := range counts {
			j.metrics().AddViolations(string(kind), n)
		}
		j.logger().Warn("ledger violations", slog.String("project", id), slog.Int("count", len(res.Violations)))
	}
	return res, nil
}

func (j *LedgerRevaluationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerRevaluation))
	}
	return slog.Default().With(slog.String("job", TaskLedgerRevaluation))
}

func (j *LedgerRevaluationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func projectIDs(ctx context.Context, store ProjectStore, id string) ([]string, error) {
	if id != "" {
		return []string{id}, nil
	}
	return store.IDs(ctx)
}
