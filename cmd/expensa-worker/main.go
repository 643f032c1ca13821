package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expensa/internal/adapters"
	"expensa/internal/amqp"
	"expensa/internal/backend"
	"expensa/internal/cli"
	"expensa/internal/log"
	"expensa/internal/services"
	"expensa/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting expensa-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", log.FieldError, err)
		os.Exit(1)
	}
	mirrorResult, err := backend.NewFactory(logger).CreateMirror(context.Background(), mirrorCfg)
	if err != nil {
		logger.Error("Failed to initialize spreadsheet mirror", log.FieldError, err, "backend", mirrorCfg.Type)
		os.Exit(1)
	}
	if mirrorResult.Cleanup != nil {
		defer func() {
			if err := mirrorResult.Cleanup(); err != nil {
				logger.Warn("Mirror cleanup failed", log.FieldError, err)
			}
		}()
	}

	// Expenses created by jobs publish events too, so the mirror sees them.
	svc := cli.BuildServices(cfg, repo, amqpClient, logger)
	jobs := worker.NewJobWorker(svc.Recurring, svc.Importer, mirrorResult.Mirror, adapters.NewRowBuilder(repo), logger)

	scheduler := services.NewScheduler(repo, svc.Recurring, svc.Importer, amqpClient, services.SchedulerConfig{
		RecurringInterval: cfg.RecurringInterval,
		ImportInterval:    cfg.SplitwiseImportInterval,
		Concurrency:       cfg.WorkerConcurrency,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler stop error", log.FieldError, err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := amqpClient.Consume(ctx, jobs.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"mirror", mirrorCfg.Type.String(),
		"recurring_interval", cfg.RecurringInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
