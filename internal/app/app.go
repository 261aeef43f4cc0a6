// Package app builds the sweep application and owns its dependency wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/pinsweep/internal/api"
	"github.com/JakeFAU/pinsweep/internal/clock/system"
	"github.com/JakeFAU/pinsweep/internal/config"
	"github.com/JakeFAU/pinsweep/internal/hash/sha256"
	iduuid "github.com/JakeFAU/pinsweep/internal/id/uuid"
	"github.com/JakeFAU/pinsweep/internal/logging"
	"github.com/JakeFAU/pinsweep/internal/progress"
	progresssinks "github.com/JakeFAU/pinsweep/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/pinsweep/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/pinsweep/internal/publisher/pubsub"
	"github.com/JakeFAU/pinsweep/internal/scan"
	"github.com/JakeFAU/pinsweep/internal/state"
	gcsstorage "github.com/JakeFAU/pinsweep/internal/storage/gcs"
	localstorage "github.com/JakeFAU/pinsweep/internal/storage/local"
	memorystorage "github.com/JakeFAU/pinsweep/internal/storage/memory"
	pgstore "github.com/JakeFAU/pinsweep/internal/storage/postgres"
	"github.com/JakeFAU/pinsweep/internal/store"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	sweeper      *scan.Sweeper
	apiServer    *api.Server
	progressHub  *progress.Hub
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	gcsClient    *storage.Client
	runRepo      store.RunRepository
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Define a struct for logging only non-sensitive config fields
	type SanitizedConfig struct {
		StartPin   int `json:"start_pin"`
		EndPin     int `json:"end_pin"`
		ServerPort int `json:"server_port,omitempty"`
	}
	safeCfg := SanitizedConfig{
		StartPin: cfg.Scan.StartPin,
		EndPin:   cfg.Scan.EndPin,
	}
	if cfg.Server.Enabled {
		safeCfg.ServerPort = cfg.Server.Port
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Sweeper returns the wired sweep engine.
func (a *App) Sweeper() *scan.Sweeper {
	return a.sweeper
}

// Run executes the sweep and blocks until it finishes or the context is
// canceled. The optional status server runs alongside the sweep and is
// shut down once it returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if a.apiServer != nil {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	summary, runErr := a.sweeper.Run(ctx)
	if runErr != nil {
		a.logger.Warn("sweep stopped early", zap.Error(runErr))
	} else {
		a.logger.Info("sweep complete",
			zap.String("run_id", summary.RunID),
			zap.Int64("probes", summary.Stats.Probes),
			zap.Int64("new_finds", summary.Stats.Matches),
			zap.Duration("elapsed", summary.Elapsed),
		)
	}

	a.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
	}

	if err := a.Close(shutdownCtx); err != nil {
		a.logger.Warn("close failed", zap.Error(err))
	}
	return runErr
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.closeObservability()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.runRepo != nil {
		if pgRepo, ok := a.runRepo.(*pgstore.RunStore); ok {
			pgRepo.Close()
		}
	}
}

func (a *App) closeObservability() {
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	app.logger.Info("building application dependencies")

	archive, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	if err = setupDatabase(ctx, app); err != nil {
		return nil, err
	}

	notifier, err := setupNotifier(ctx, app)
	if err != nil {
		return nil, err
	}

	emitter, err := setupProgress(ctx, app, app.runRepo)
	if err != nil {
		return nil, err
	}

	runID, err := iduuid.NewUUIDGenerator().NewID()
	if err != nil {
		return nil, fmt.Errorf("run id init failed: %w", err)
	}

	var recorder scan.Recorder
	if app.runRepo != nil {
		recorder = &findingRecorder{repo: app.runRepo}
	}

	journal := state.NewJournal(cfg.State.FoundLog, cfg.State.PotentialLog, cfg.State.ScratchFile)
	prober := scan.NewHTTPProber(scan.ProberConfig{
		URL:         cfg.Target.URL,
		PinField:    cfg.Target.PinField,
		ActionField: cfg.Target.ActionField,
		ActionValue: cfg.Target.ActionValue,
		UserAgent:   cfg.Target.UserAgent,
		Referer:     cfg.Target.Referer,
		Headers:     cfg.Target.Headers,
		Timeout:     cfg.RequestTimeout(),
	})

	app.sweeper = scan.New(
		prober,
		journal,
		scan.NewClassifier(cfg.Scan.SuccessIndicator, cfg.Scan.FailureIndicator),
		scan.NewExtractor(),
		archive,
		recorder,
		notifier,
		sha256.New(),
		system.New(),
		emitter,
		scan.Config{
			RunID:              runID,
			StartPin:           cfg.Scan.StartPin,
			EndPin:             cfg.Scan.EndPin,
			Delay:              cfg.ProbeDelay(),
			TransientBackoff:   cfg.TransientBackoff(),
			Cooldown:           cfg.Cooldown(),
			CooldownStatuses:   cfg.Scan.CooldownStatuses,
			ArchivePrefix:      cfg.Archive.Prefix,
			ArchiveContentType: cfg.Archive.ContentType,
			NotifyTopic:        cfg.PubSub.TopicName,
		},
		logger.Named("scan"),
	)

	if cfg.Server.Enabled {
		runs := api.NewRunHandler(app.runRepo, logger.Named("api"))
		app.apiServer = api.NewServer(app.sweeper, runs, logger.Named("api"))
	}

	return app, nil
}

func setupArchive(ctx context.Context, app *App) (scan.Archive, error) {
	if !app.cfg.Archive.Enabled {
		app.logger.Info("find archive disabled")
		return nil, nil
	}
	switch app.cfg.Archive.Backend {
	case "gcs":
		app.logger.Info("using GCS archive backend")
		var err error
		app.gcsClient, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobStore, err := gcsstorage.New(app.gcsClient, gcsstorage.Config{
			Bucket: app.cfg.Archive.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS archive backend", zap.String("bucket", app.cfg.Archive.Bucket))
		return blobStore, nil
	case "local":
		app.logger.Info("using local archive backend")
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Archive.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local archive backend", zap.String("path", app.cfg.Archive.LocalDir))
		return blobStore, nil
	default:
		app.logger.Info("using in-memory archive backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("No DSN specified for database, skipping run repository initialization")
		return nil
	}
	runRepo, err := pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{
		DSN:      app.cfg.DB.DSN,
		MaxConns: int32(app.cfg.DB.MaxOpenConns),
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	app.runRepo = runRepo
	app.logger.Info("run repository initialized")
	return nil
}

func setupNotifier(ctx context.Context, app *App) (scan.Notifier, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(app.pubsubClient)
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.publisher, nil
}

func setupProgress(
	ctx context.Context,
	app *App,
	runRepo store.RunRepository,
) (progress.Emitter, error) {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return nil, nil
	}
	var sinkList []progress.Sink
	if runRepo != nil {
		sinkList = append(
			sinkList,
			progresssinks.NewStoreSink(runRepo, app.logger.Named("progress_store")),
		)
		app.logger.Debug("Added progress store sink")
	}
	if app.cfg.Progress.LogEvents {
		sinkList = append(
			sinkList,
			progresssinks.NewLogSink(app.logger.Named("progress_log")),
		)
		app.logger.Debug("Added progress log sink")
	}
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)

	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(app.cfg.Progress.MaxBatchWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(app.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    ctx,
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.progressHub, nil
}

// findingRecorder adapts the run repository to the scan.Recorder interface.
type findingRecorder struct {
	repo store.RunRepository
}

func (r *findingRecorder) RecordFinding(ctx context.Context, f scan.Finding) error {
	runID, err := uuid.Parse(f.RunID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}
	if err := r.repo.RecordFinding(ctx, store.FindingRecord{
		RunID:      runID,
		Pin:        f.Pin,
		Summary:    f.Summary,
		Digest:     f.Digest,
		ArchiveURI: f.ArchiveURI,
		FoundAt:    f.FoundAt,
	}); err != nil {
		return fmt.Errorf("record finding: %w", err)
	}
	return nil
}
