package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/batch"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/handlers"
	"github.com/ternarybob/lectio/internal/ocr"
	"github.com/ternarybob/lectio/internal/queue"
	"github.com/ternarybob/lectio/internal/storage"
	"github.com/ternarybob/lectio/internal/storage/badger"
	"github.com/ternarybob/lectio/internal/tasks"
	"github.com/ternarybob/lectio/internal/worker"
)

// App holds all application components and dependencies
type App struct {
	Config   *common.Config
	Pipeline *common.PipelineConfig
	Logger   arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	DB      *badger.BadgerDB
	Batches *badger.BatchStorage
	Store   *storage.Filestore

	// Task execution
	QueueManager *queue.Manager
	Spawner      *ocr.Spawner
	Pool         *worker.Pool

	// Batch orchestration
	BatchManager *batch.Manager

	// Scheduled cleanup of stale batches
	cleanupCron *cron.Cron

	// HTTP handlers
	APIHandler   *handlers.APIHandler
	BatchHandler *handlers.BatchHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	pipeline, err := common.LoadPipelineConfig(cfg.Pipeline.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline configuration: %w", err)
	}
	app.Pipeline = pipeline

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initWorkers(); err != nil {
		return nil, fmt.Errorf("failed to initialize workers: %w", err)
	}
	app.initHandlers()

	app.Logger.Info().
		Str("filestore", app.Store.Root()).
		Strs("languages", pipeline.Languages()).
		Int("workers", cfg.Queue.Concurrency).
		Msg("Application initialized")

	return app, nil
}

// initStorage opens the Badger database, the batch store, and the filestore.
func (a *App) initStorage() error {
	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db
	a.Batches = badger.NewBatchStorage(db, a.Logger)

	store, err := storage.NewFilestore(a.Logger, a.Pipeline)
	if err != nil {
		return err
	}
	a.Store = store
	return nil
}

// initWorkers wires the task queue, the OCR engines, and the worker pool.
func (a *App) initWorkers() error {
	queueMgr, err := queue.NewManager(
		a.DB.Store().Badger(),
		a.Config.Queue.QueueName,
		a.Config.VisibilityTimeout(),
		a.Config.Queue.MaxReceive,
	)
	if err != nil {
		return err
	}
	a.QueueManager = queueMgr

	a.Spawner = ocr.NewSpawner(a.Logger, a.Config.Engines.SpawnRate, a.Config.EngineTimeout())
	tesseract := ocr.NewTesseract(a.Logger, a.Pipeline, a.Store, a.Spawner)
	ocropus := ocr.NewOcropus(a.Logger, a.Pipeline, a.Store, a.Spawner)

	pool := worker.NewPool(queueMgr, a.Batches, a.Logger, a.Config.Queue.Concurrency, a.Config.PollInterval())
	pool.RegisterExecutor(tasks.KindGrayscale, tasks.NewGrayscale(a.Logger, a.Store))
	pool.RegisterExecutor(tasks.KindBinarize, tasks.NewBinarize(a.Logger, a.Store))
	pool.RegisterExecutor(tasks.KindTesseract, tasks.NewTesseractOCR(tesseract))
	pool.RegisterExecutor(tasks.KindOcropus, tasks.NewOcropusOCR(ocropus))
	pool.RegisterExecutor(tasks.KindSpellCheck, tasks.NewSpellCheck(a.Logger, a.Pipeline, a.Store))
	a.Pool = pool

	a.BatchManager = batch.NewManager(a.Logger, a.Pipeline, a.Store, a.Batches, queueMgr)
	return nil
}

// initHandlers creates the HTTP handlers.
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.BatchHandler = handlers.NewBatchHandler(a.BatchManager, a.Logger)
}

// Start launches the worker pool and, when enabled, the cleanup schedule.
func (a *App) Start() error {
	a.Pool.Start()

	if a.Config.Cleanup.Enabled {
		retention := a.Config.CleanupRetention()
		c := cron.New()
		_, err := c.AddFunc(a.Config.Cleanup.Schedule, func() {
			removed, err := a.BatchManager.CleanupStale(a.ctx, retention)
			if err != nil {
				a.Logger.Warn().Err(err).Msg("Batch cleanup failed")
				return
			}
			if removed > 0 {
				a.Logger.Info().Int("removed", removed).Msg("Stale batches removed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule batch cleanup: %w", err)
		}
		c.Start()
		a.cleanupCron = c

		a.Logger.Info().
			Str("schedule", a.Config.Cleanup.Schedule).
			Str("retention", a.Config.Cleanup.Retention).
			Msg("Batch cleanup scheduled")
	}

	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.cleanupCron != nil {
		cronCtx := a.cleanupCron.Stop()
		<-cronCtx.Done()
		a.Logger.Info().Msg("Cleanup schedule stopped")
	}

	if a.Pool != nil {
		a.Pool.Stop()
		a.Logger.Info().Msg("Worker pool stopped")
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.Logger.Info().Msg("Database closed")
	}

	return nil
}
