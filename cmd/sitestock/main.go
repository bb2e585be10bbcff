package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sitestock/sitestock/cmd/sitestock/cli"
	"github.com/sitestock/sitestock/internal/app"
	"github.com/sitestock/sitestock/internal/audit"
	"github.com/sitestock/sitestock/internal/observability"
	"github.com/sitestock/sitestock/internal/platform/cache"
	"github.com/sitestock/sitestock/internal/platform/db"
	"github.com/sitestock/sitestock/internal/project"
	"github.com/sitestock/sitestock/internal/shared"
	"github.com/sitestock/sitestock/jobs"
)

const usage = `usage:
  sitestock [serve]                          run the HTTP API
  sitestock migrate                          apply the database schema
  sitestock verify --file state.json [--json]
  sitestock jobs trigger <task> [--project id]
  sitestock jobs stats`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		return serve()
	case "migrate":
		return migrate()
	case "verify":
		return verify(args)
	case "jobs":
		return jobsCommand(args)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return cli.ExitOK
	}
	fmt.Fprintln(os.Stderr, usage)
	return cli.ExitFailure
}

func verify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	file := fs.String("file", "", "path to a saved project state")
	asJSON := fs.Bool("json", false, "print a JSON summary")
	if err := fs.Parse(args); err != nil {
		return cli.ExitFailure
	}
	return cli.VerifyCommand(cli.VerifyOptions{File: *file, JSONOutput: *asJSON})
}

func jobsCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return cli.ExitFailure
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: load config: %v\n", err)
		return cli.ExitFailure
	}
	helper, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return cli.ExitFailure
	}
	defer helper.Close()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		projectID := fs.String("project", "", "limit the task to one project")
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "jobs trigger: task required (%v)\n", jobs.TaskTypes)
			return cli.ExitFailure
		}
		if err := fs.Parse(args[2:]); err != nil {
			return cli.ExitFailure
		}
		info, err := helper.Trigger(context.Background(), args[1], *projectID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return cli.ExitFailure
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := helper.InspectQueue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return cli.ExitFailure
		}
		_ = json.NewEncoder(os.Stdout).Encode(stats)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return cli.ExitFailure
	}
	return cli.ExitOK
}

func migrate() int {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return cli.ExitFailure
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions()...)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("apply schema", slog.Any("error", err))
		return cli.ExitFailure
	}
	logger.Info("schema applied")
	return cli.ExitOK
}

func serve() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return cli.ExitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return cli.ExitFailure
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions()...)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Error("apply schema", slog.Any("error", err))
		return cli.ExitFailure
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	projectService := project.NewService(project.Deps{
		Repo:        project.NewRepository(dbpool),
		Locker:      project.NewRedisLocker(redisClient),
		Cache:       project.NewSnapshotCache(redisClient, cfg.SnapshotTTL),
		Audit:       shared.NewAuditLogger(dbpool),
		Idempotency: shared.NewIdempotencyStore(dbpool),
		Integration: jobClient,
		Metrics:     metrics,
		Logger:      logger,
	}, project.ServiceConfig{
		LockTTL:             cfg.LockTTL,
		DefaultExchangeRate: cfg.DefaultExchangeRate,
	})
	projectHandler := project.NewHandler(logger, projectService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		ProjectHandler: projectHandler,
		JobHandler:     jobHandler,
		AuditHandler:   audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool))),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return cli.ExitFailure
	}
	return cli.ExitOK
}
