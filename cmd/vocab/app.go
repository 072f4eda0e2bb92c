package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-vocab/internal/config"
	"github.com/phrazzld/scry-vocab/internal/domain/srs"
	"github.com/phrazzld/scry-vocab/internal/events"
	"github.com/phrazzld/scry-vocab/internal/platform/postgres"
	"github.com/phrazzld/scry-vocab/internal/platform/sqlite"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/session"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/phrazzld/scry-vocab/internal/task"
)

// drainTimeout bounds how long close waits for queued writes.
const drainTimeout = 30 * time.Second

// application holds the shared dependencies of the review commands and
// releases them on close.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	cardStore  store.CardStore
	stateStore store.LearningStateStore

	eventEmitter *events.InMemoryEventEmitter

	// Background persistence of learning states
	queue      *task.TaskQueue
	pool       *task.WorkerPool
	dispatcher *task.StateWriteDispatcher

	engine *session.Engine
}

// openDatabase connects to the configured backend.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgres.Open(ctx, cfg.Database.URL)
	case "sqlite":
		db, err = sqlite.Open(ctx, cfg.Database.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		logger.Error("failed to open database",
			"driver", cfg.Database.Driver,
			"url", redact.DatabaseURL(cfg.Database.URL),
			"error", redact.Error(err))
		return nil, fmt.Errorf("failed to open database: %s", redact.Error(err))
	}

	logger.Info("database connection established",
		"driver", cfg.Database.Driver,
		"url", redact.DatabaseURL(cfg.Database.URL))
	return db, nil
}

// migrateDatabase applies the embedded migrations of the configured backend.
func migrateDatabase(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) error {
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.Migrate(ctx, db, logger)
	case "sqlite":
		return sqlite.Migrate(ctx, db, logger)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// newStores builds the card and learning state stores for the configured backend.
func newStores(
	cfg *config.Config,
	db *sql.DB,
	logger *slog.Logger,
) (store.CardStore, store.LearningStateStore) {
	if cfg.Database.Driver == "postgres" {
		return postgres.NewPostgresCardStore(db, logger), postgres.NewPostgresLearningStateStore(db, logger)
	}
	return sqlite.NewCardStore(db, logger), sqlite.NewLearningStateStore(db, logger)
}

// newApplication opens the database and wires the review engine. The worker
// pool is running when it returns; call close to drain it.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}
	app.cardStore, app.stateStore = newStores(cfg, db, logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.LogHandler(logger.With("component", "events")))

	app.queue = task.NewTaskQueue(cfg.Persistence.QueueSize, logger)
	poolCfg := task.DefaultWorkerPoolConfig()
	if cfg.Persistence.Workers > 0 {
		poolCfg.WorkerCount = cfg.Persistence.Workers
	}
	app.pool = task.NewWorkerPool(app.queue, poolCfg, logger)
	app.pool.Start()

	retryCfg := task.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Persistence.MaxRetries
	retryCfg.Base = cfg.Persistence.RetryBase
	app.dispatcher = task.NewStateWriteDispatcher(app.queue, app.stateStore, app.eventEmitter, retryCfg, logger)

	scheduler := srs.NewSchedulerWithParams(srs.NewParams(srs.ParamsConfig{
		MasteryIntervalDays: cfg.Scheduler.MasteryIntervalDays,
		MaxIntervalDays:     cfg.Scheduler.MaxIntervalDays,
	}))

	app.engine = session.NewEngine(
		app.cardStore,
		app.stateStore,
		scheduler,
		app.dispatcher,
		app.eventEmitter,
		logger,
	)

	logger.Debug("application initialized")
	return app, nil
}

// close retries deferred writes once, drains the write queue and closes the
// database. Writes that still failed are reported and lost. Draining outlives
// cancellation of ctx but is bounded by drainTimeout, after which in-flight
// writes are abandoned.
func (app *application) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	if app.dispatcher.DeferredCount() > 0 {
		if n, err := app.dispatcher.Sync(ctx); err != nil {
			app.logger.Warn("failed to requeue deferred learning states",
				"requeued", n,
				"error", redact.Error(err))
		}
	}

	app.queue.Close()
	drained := make(chan struct{})
	go func() {
		app.pool.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		app.logger.Warn("timed out draining learning state writes", "timeout", drainTimeout)
		app.pool.Stop()
		<-drained
	}

	if n := app.dispatcher.DeferredCount(); n > 0 {
		app.logger.Warn("learning states were not saved", "count", n)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database connection", "error", redact.Error(err))
	}
}
