package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sitestock/sitestock/internal/jobs"
	"github.com/sitestock/sitestock/internal/project"
	"github.com/sitestock/sitestock/report"
)

// LedgerExportJob writes ledger workbooks into Dir.
type LedgerExportJob struct {
	Store   ProjectStore
	Dir     string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerExportJob wires dependencies for the export handler.
func NewLedgerExportJob(store ProjectStore, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerExportJob {
	return &LedgerExportJob{
		Store:   store,
		Dir:     dir,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes export tasks.
func (j *LedgerExportJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil || j.Dir == "" {
		return errors.New("ledger export: handler not configured")
	}
	payload, err := decodeLedgerPayload(t)
	if err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskLedgerExport)
	defer func() {
		err = tracker.End(err)
	}()

	ids, err := projectIDs(ctx, j.Store, payload.ProjectID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return fmt.Errorf("ledger export: %w", err)
	}
	for _, id := range ids {
		path, err := j.Export(ctx, id)
		if err != nil {
			j.logger().Error("export project", slog.String("project", id), slog.Any("error", err))
			return err
		}
		j.logger().Info("exported ledger", slog.String("project", id), slog.String("path", path))
	}
	return nil
}

// Export writes one project's workbook and returns its path.
func (j *LedgerExportJob) Export(ctx context.Context, id string) (string, error) {
	state, err := j.Store.Load(ctx, id)
	if err != nil {
		return "", err
	}
	stock := project.LoadEngine(state).CurrentStock()

	name := fmt.Sprintf("%s-%s.xlsx", filepath.Base(id), j.now().Format("20060102T150405Z"))
	path := filepath.Join(j.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ledger export: %w", err)
	}
	if err := report.WriteXLSX(f, state.Movements, stock); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, f.Close()
}

func (j *LedgerExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerExport))
	}
	return slog.Default().With(slog.String("job", TaskLedgerExport))
}

func (j *LedgerExportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerExportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
