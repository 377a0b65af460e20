package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ember-labs/ember-go/internal/artifacts"
	"github.com/ember-labs/ember-go/internal/config"
	"github.com/ember-labs/ember-go/internal/domain"
	"github.com/ember-labs/ember-go/internal/execution/scheduler"
	"github.com/ember-labs/ember-go/internal/platform/env"
	platformstore "github.com/ember-labs/ember-go/internal/platform/objectstore"
	"github.com/ember-labs/ember-go/internal/platform/postgres"
	repopg "github.com/ember-labs/ember-go/internal/repo/postgres"
	"github.com/ember-labs/ember-go/internal/script"
	"github.com/ember-labs/ember-go/internal/service/ledger"
	"github.com/ember-labs/ember-go/internal/stage"
	"github.com/ember-labs/ember-go/internal/storage/objectstore"
	"github.com/ember-labs/ember-go/internal/task"
)

func main() {
	_ = godotenv.Load()

	var (
		experimentPath = flag.String("f", "experiment.yaml", "path to the experiment file")
		savePath       = flag.String("save-path", "", "override the experiment's save path")
		debug          = flag.Bool("debug", false, "enable debug logging and debug mode for stages")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *experimentPath, *savePath, *debug); err != nil {
		logger.Error("run aborted", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, experimentPath, savePathOverride string, debug bool) error {
	exp, err := config.LoadExperiment(experimentPath)
	if err != nil {
		return err
	}
	if savePathOverride != "" {
		exp.SavePath = savePathOverride
	}
	exp.Debug = exp.Debug || debug
	environment := domain.NewEnvironment(exp.SavePath, exp.Debug)

	cpus, err := env.Int("EMBER_RUNTIME_CPUS", 0)
	if err != nil {
		return err
	}
	gpus, err := env.Int("EMBER_RUNTIME_GPUS", 0)
	if err != nil {
		return err
	}
	runtime := task.NewLocal(task.Config{CPUs: cpus, GPUs: gpus}, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := runtime.Shutdown(shutdownCtx); err != nil {
			logger.Warn("runtime shutdown incomplete", "error", err)
		}
	}()

	sink, err := buildSink(ctx, environment)
	if err != nil {
		return err
	}

	recorder, closeLedger, err := buildLedger(ctx)
	if err != nil {
		return err
	}
	if closeLedger != nil {
		defer closeLedger()
	}

	registry := stage.NewRegistry()
	registry.Register("script", script.Factory)
	runner := stage.NewRunner(registry, logger, sink)

	sched, err := scheduler.New(runtime, runner, logger, recorder)
	if err != nil {
		return err
	}
	return sched.Run(ctx, exp, environment)
}

// buildSink picks the artifact store: MinIO when configured, otherwise the
// local filesystem under the save path.
func buildSink(ctx context.Context, environment domain.Environment) (stage.ResultSink, error) {
	cfg, err := platformstore.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.Enabled() {
		client, err := platformstore.NewMinIOClient(cfg)
		if err != nil {
			return nil, err
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := platformstore.EnsureBucket(startupCtx, client, cfg); err != nil {
			return nil, fmt.Errorf("object store unavailable: %w", err)
		}
		store, err := objectstore.NewMinioStoreWithClient(client)
		if err != nil {
			return nil, err
		}
		return artifacts.NewSink(store, cfg.Bucket)
	}

	store, err := objectstore.NewFSStore(environment.SavePath)
	if err != nil {
		return nil, err
	}
	return artifacts.NewSink(store, "artifacts")
}

// buildLedger opens the run ledger when a database URL is configured. The
// returned recorder is nil when the ledger is disabled.
func buildLedger(ctx context.Context) (scheduler.Recorder, func(), error) {
	cfg, err := postgres.ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Enabled() {
		return nil, nil, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger database unavailable: %w", err)
	}
	service := ledger.New(repopg.NewRunStore(db), repopg.NewStageExecutionStore(db))
	return service, func() { _ = db.Close() }, nil
}
