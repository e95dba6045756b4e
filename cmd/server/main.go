package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/verdantlabs/seedbank/internal/server"
	"github.com/verdantlabs/seedbank/modules"
	"github.com/verdantlabs/seedbank/modules/importer"
	importerpersistence "github.com/verdantlabs/seedbank/modules/importer/infrastructure/persistence"
	"github.com/verdantlabs/seedbank/modules/importer/services"
	"github.com/verdantlabs/seedbank/pkg/application"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/configuration"
	"github.com/verdantlabs/seedbank/pkg/eventbus"
	"github.com/verdantlabs/seedbank/pkg/jobqueue"
	"github.com/verdantlabs/seedbank/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Huber: application.NewHub(&application.HuberOptions{
			Logger: logger,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		}),
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	if err := app.Migrations().Apply(context.Background()); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	if conf.Jobs.WorkerEnabled {
		startJobWorker(conf, pool, logger, app)
	}

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	options := &server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	}
	serverInstance, err := server.Default(options)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := serverInstance.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// poolDispatcher hands the pool to stage handlers through the context,
// the same way the HTTP middleware does for request handlers.
type poolDispatcher struct {
	pool *pgxpool.Pool
	next jobqueue.Dispatcher
}

func (d *poolDispatcher) Dispatch(ctx context.Context, job jobqueue.DispatchedJob) error {
	return d.next.Dispatch(composables.WithPool(ctx, d.pool), job)
}

func startJobWorker(
	conf *configuration.Configuration,
	pool *pgxpool.Pool,
	logger *logrus.Logger,
	app application.Application,
) {
	jobLog := logger.WithField("component", "jobqueue")

	mux := jobqueue.NewMux()
	importer.RegisterJobHandlers(mux, app)

	// The dead hook runs outside the dispatcher, so the pool is injected
	// here the same way poolDispatcher does for handlers.
	onDead := services.NewDeadJobHandler(importerpersistence.NewImportRepository(), logger)

	worker, err := jobqueue.NewWorker(pool, services.JobsTable, &poolDispatcher{pool: pool, next: mux}, jobqueue.WorkerOptions{
		PollInterval: conf.Jobs.PollInterval,
		BatchSize:    conf.Jobs.BatchSize,
		LockTTL:      conf.Jobs.LockTTL,
		MaxAttempts:  conf.Jobs.MaxAttempts,
		SingleActive: conf.Jobs.SingleActive,
		OnDead: func(ctx context.Context, job jobqueue.DispatchedJob, lastError string) {
			onDead(composables.WithPool(ctx, pool), job, lastError)
		},
		Logger: jobLog,
	})
	if err != nil {
		log.Fatalf("failed to create job worker: %v", err)
	}
	go func() {
		if err := worker.Run(context.Background()); err != nil {
			jobLog.WithError(err).Error("job worker stopped")
		}
	}()
}
