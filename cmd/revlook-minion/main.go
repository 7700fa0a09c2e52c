package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/broker"
	"github.com/ternarybob/revlook/internal/common"
	"github.com/ternarybob/revlook/internal/minion"
	"github.com/ternarybob/revlook/internal/storage/postgres"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("revlook-minion version %s\n", common.GetVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("revlook.toml"); err == nil {
			configFiles = append(configFiles, "revlook.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config, "revlook-minion")

	common.PrintBanner("revlook-minion")

	logger.Info().
		Strs("config_files", configFiles).
		Int("consumer_concurrency", config.Queue.ConsumerConcurrency).
		Msg("Application configuration loaded")

	db, err := postgres.NewPostgresDB(logger, &config.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	brk, err := broker.NewBroker(&config.Broker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to broker")
	}
	defer brk.Close()

	publisher, err := brk.NewPublisher()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open publisher channel")
	}
	defer publisher.Close()

	worker := minion.NewWorker(
		postgres.NewMappingStorage(db, logger),
		postgres.NewResultStorage(db, logger),
		publisher,
		config,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("queue", config.Broker.WorkQueue).
		Int("concurrency", config.Queue.ConsumerConcurrency).
		Msg("Minion ready - Press Ctrl+C to stop")

	err = brk.Consume(ctx, config.Broker.WorkQueue, config.Queue.ConsumerConcurrency, worker.HandleWorkUnit)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Consumer pool failed")
	}

	logger.Info().Msg("Minion stopped")
}
