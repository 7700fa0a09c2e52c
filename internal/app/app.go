package app

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/broker"
	"github.com/ternarybob/revlook/internal/common"
	"github.com/ternarybob/revlook/internal/handlers"
	"github.com/ternarybob/revlook/internal/services/events"
	"github.com/ternarybob/revlook/internal/services/jobs"
	"github.com/ternarybob/revlook/internal/storage/postgres"
)

// App holds the master's components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB        *postgres.PostgresDB
	Broker    *broker.Broker
	Publisher *broker.Publisher

	EventPublisher *events.Publisher
	JobService     *jobs.Service
	Aggregator     *jobs.Aggregator

	// HTTP handlers
	APIHandler *handlers.APIHandler
	JobHandler *handlers.JobHandler
	SSEHandler *handlers.SSEHandler

	aggCancel context.CancelFunc
	aggDone   chan struct{}
}

// New wires the master: storage, broker, event fan-out, job service,
// aggregator and HTTP handlers.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := postgres.NewPostgresDB(logger, &config.Database)
	if err != nil {
		return nil, err
	}

	brk, err := broker.NewBroker(&config.Broker, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	publisher, err := brk.NewPublisher()
	if err != nil {
		brk.Close()
		db.Close()
		return nil, err
	}

	jobStorage := postgres.NewJobStorage(db, logger)
	resultStorage := postgres.NewResultStorage(db, logger)

	eventPublisher := events.NewPublisher(logger)
	jobService := jobs.NewService(jobStorage, resultStorage, publisher, eventPublisher, config, logger)
	aggregator := jobs.NewAggregator(jobStorage, eventPublisher, logger)

	a := &App{
		Config:         config,
		Logger:         logger,
		DB:             db,
		Broker:         brk,
		Publisher:      publisher,
		EventPublisher: eventPublisher,
		JobService:     jobService,
		Aggregator:     aggregator,
		APIHandler:     handlers.NewAPIHandler(),
		JobHandler:     handlers.NewJobHandler(jobService, logger),
		SSEHandler:     handlers.NewSSEHandler(jobService, eventPublisher, logger),
	}

	logger.Info().Msg("Application initialized")
	return a, nil
}

// StartAggregator launches the results-queue consumers in the background
func (a *App) StartAggregator() {
	ctx, cancel := context.WithCancel(context.Background())
	a.aggCancel = cancel
	a.aggDone = make(chan struct{})

	go func() {
		defer close(a.aggDone)
		err := a.Broker.Consume(ctx, a.Config.Broker.ResultsQueue, a.Config.Queue.AggregatorConcurrency, a.Aggregator.HandleEnvelope)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("Aggregator consumers stopped")
		}
	}()

	a.Logger.Info().
		Str("queue", a.Config.Broker.ResultsQueue).
		Int("concurrency", a.Config.Queue.AggregatorConcurrency).
		Msg("Aggregator consumers started")
}

// Close shuts down the aggregator, broker and database
func (a *App) Close() {
	if a.aggCancel != nil {
		a.aggCancel()
		<-a.aggDone
	}

	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Broker close failed")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Database close failed")
		}
	}

	a.Logger.Info().Msg("Application closed")
}
