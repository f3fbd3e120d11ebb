// Package app assembles the services a capture run needs from configuration
// and executes the run end to end.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/weekly-snapshots/internal/clock/system"
	"github.com/JakeFAU/weekly-snapshots/internal/config"
	"github.com/JakeFAU/weekly-snapshots/internal/dispatcher"
	"github.com/JakeFAU/weekly-snapshots/internal/hash/sha256"
	"github.com/JakeFAU/weekly-snapshots/internal/id/uuid"
	"github.com/JakeFAU/weekly-snapshots/internal/progress"
	progresssinks "github.com/JakeFAU/weekly-snapshots/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/weekly-snapshots/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/weekly-snapshots/internal/publisher/pubsub"
	"github.com/JakeFAU/weekly-snapshots/internal/report"
	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
	gcsstorage "github.com/JakeFAU/weekly-snapshots/internal/storage/gcs"
	localstorage "github.com/JakeFAU/weekly-snapshots/internal/storage/local"
	pgstore "github.com/JakeFAU/weekly-snapshots/internal/storage/postgres"
	"github.com/JakeFAU/weekly-snapshots/internal/worker"
)

// RunRecorder stores a completed run report.
type RunRecorder interface {
	RecordRun(ctx context.Context, rep report.Report) error
}

// App contains the dependencies of a capture run.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	runner    worker.Runner
	clock     snapshot.Clock
	ids       snapshot.IDGenerator
	local     *localstorage.BlobStore
	mirror    snapshot.BlobStore
	runs      RunRecorder
	publisher snapshot.Publisher

	closers []func(context.Context) error
}

// Option overrides a dependency, mainly for tests.
type Option func(*App)

// WithRunner replaces the subprocess runner.
func WithRunner(r worker.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithClock replaces the system clock.
func WithClock(c snapshot.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithIDGenerator replaces the UUID7 run ID generator.
func WithIDGenerator(g snapshot.IDGenerator) Option {
	return func(a *App) { a.ids = g }
}

// WithMirror replaces the GCS mirror.
func WithMirror(store snapshot.BlobStore) Option {
	return func(a *App) { a.mirror = store }
}

// WithRunRecorder replaces the Postgres run store.
func WithRunRecorder(r RunRecorder) Option {
	return func(a *App) { a.runs = r }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p snapshot.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// New validates cfg and connects the optional services it enables. Services
// supplied through opts are not dialed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = worker.ExecRunner{}
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.ids == nil {
		a.ids = uuid.New()
	}

	if err := a.setupStorage(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}
	if err := a.setupRunStore(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}
	if err := a.setupPublisher(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}
	return a, nil
}

func (a *App) setupStorage(ctx context.Context) error {
	local, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Output.BaseDir})
	if err != nil {
		return fmt.Errorf("local storage init failed: %w", err)
	}
	a.local = local
	a.logger.Info("local storage initialized", zap.String("base_dir", local.BaseDir()))

	if a.mirror != nil || a.cfg.Storage.GCSBucket == "" {
		return nil
	}
	gcs, err := gcsstorage.Dial(ctx, gcsstorage.Config{
		Bucket: a.cfg.Storage.GCSBucket,
		Prefix: a.cfg.Storage.Prefix,
	})
	if err != nil {
		return fmt.Errorf("gcs storage init failed: %w", err)
	}
	a.mirror = gcs
	a.closers = append(a.closers, func(context.Context) error { return gcs.Close() })
	a.logger.Info("gcs mirror initialized",
		zap.String("bucket", a.cfg.Storage.GCSBucket),
		zap.String("prefix", a.cfg.Storage.Prefix),
		zap.Bool("archives", a.cfg.Storage.MirrorArchives),
	)
	return nil
}

func (a *App) setupRunStore(ctx context.Context) error {
	if a.runs != nil || a.cfg.DB.DSN == "" {
		return nil
	}
	store, err := pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: 2,
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		store.Close()
		return nil
	})
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("run store schema: %w", err)
	}
	a.runs = store
	a.logger.Info("run store initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.publisher != nil {
		return nil
	}
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Debug("no Pub/Sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupProgress() (*progress.Hub, error) {
	registry := prometheus.NewRegistry()
	var opts []progresssinks.Option
	if a.cfg.Metrics.Textfile != "" {
		opts = append(opts, progresssinks.WithTextfile(a.cfg.Metrics.Textfile, registry))
	}
	metrics, err := progresssinks.NewPrometheusSink(registry, opts...)
	if err != nil {
		return nil, err
	}
	sinks := []progress.Sink{metrics}
	if a.cfg.Metrics.LogEvents {
		sinks = append(sinks, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	return progress.NewHub(progress.Config{Logger: a.logger.Named("progress_hub")}, sinks...), nil
}

// Capture runs one full capture batch with poolSize workers: it loads the URL
// list, captures every page, writes the report copies and records and
// announces the run. Only configuration errors and interruption are returned
// as errors; persistence failures are logged.
func (a *App) Capture(ctx context.Context, poolSize int) (report.Report, error) {
	entries, err := config.LoadURLs(a.cfg.URLsFile)
	if err != nil {
		return report.Report{}, err
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return report.Report{}, fmt.Errorf("run id: %w", err)
	}
	rc := snapshot.RunContext{
		RunID:      runID,
		Week:       snapshot.WeekLabel(a.cfg.Output.WeekPrefix, a.clock.Now()),
		BaseDir:    a.local.BaseDir(),
		PoolSize:   poolSize,
		LatestName: a.cfg.Output.LatestDir,
	}

	hub, err := a.setupProgress()
	if err != nil {
		return report.Report{}, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	workerOpts := []worker.Option{worker.WithEmitter(hub)}
	if a.mirror != nil && a.cfg.Storage.MirrorArchives {
		workerOpts = append(workerOpts, worker.WithMirror(a.mirror, rc.Week))
	}
	w := worker.New(worker.Config{
		Tool:          a.cfg.Capture.Tool,
		BrowserPath:   a.cfg.Capture.BrowserPath,
		BrowserArgs:   a.cfg.Capture.BrowserArgs,
		WaitMs:        a.cfg.Capture.WaitMs,
		MaxResourceMB: a.cfg.Capture.MaxResourceMB,
		Timeout:       a.cfg.CaptureTimeout(),
		MinBytes:      a.cfg.Capture.MinBytes,
		RunID:         runID,
	}, a.runner, sha256.New(), a.logger.Named("worker"), workerOpts...)

	d, err := dispatcher.New(w, rc, a.clock, hub, a.logger.Named("dispatcher"))
	if err != nil {
		return report.Report{}, err
	}
	out, err := d.Run(ctx, entries)
	if err != nil {
		return report.Report{}, err
	}

	rep := report.Build(out.Results, out.Elapsed, report.Meta{
		ExecutedAt: out.Started,
		Week:       rc.Week,
		RunID:      runID,
	})
	uris := a.persist(ctx, rep)
	a.announce(ctx, rep, uris)
	return rep, nil
}

func (a *App) persist(ctx context.Context, rep report.Report) []string {
	dests := []report.Destination{{Name: "local", Store: a.local}}
	if a.mirror != nil {
		dests = append(dests, report.Destination{Name: "mirror", Store: a.mirror})
	}
	uris, err := report.NewWriter(a.cfg.Output.LatestDir, a.logger.Named("report"), dests...).Write(ctx, rep)
	if err != nil {
		a.logger.Error("some report copies were not written", zap.Error(err))
	}
	if a.runs != nil {
		if err := a.runs.RecordRun(ctx, rep); err != nil {
			a.logger.Error("record run failed", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	return uris
}

func (a *App) announce(ctx context.Context, rep report.Report, uris []string) {
	id, err := a.publisher.Publish(ctx, report.EventRunCompleted, report.NewNotification(rep, uris))
	if err != nil {
		a.logger.Error("publish run notification failed", zap.String("run_id", rep.RunID), zap.Error(err))
		return
	}
	a.logger.Debug("run notification published", zap.String("message_id", id))
}

// Close releases every dialed service.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) closeQuietly() {
	if err := a.Close(context.Background()); err != nil {
		a.logger.Warn("cleanup after failed init", zap.Error(err))
	}
}
