package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensa/internal/amqp"
	"expensa/internal/cache"
	"expensa/internal/cli"
	apphttp "expensa/internal/http"
	"expensa/internal/log"
	"expensa/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Without a broker the API process publishes nothing and runs the
	// scheduler itself.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events disabled", log.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
			defer amqpClient.Close()
		}
	}

	svc := cli.BuildServices(cfg, repo, publisher, logger)

	caches := cache.NewManager(logger)
	for _, c := range svc.Stats.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(time.Minute)

	var scheduler *services.Scheduler
	if publisher == nil {
		scheduler = services.NewScheduler(repo, svc.Recurring, svc.Importer, nil, services.SchedulerConfig{
			RecurringInterval: cfg.RecurringInterval,
			ImportInterval:    cfg.SplitwiseImportInterval,
			Concurrency:       cfg.WorkerConcurrency,
		}, logger)
	}

	opts := apphttp.DefaultOptions()
	opts.CORSAllowedOrigin = cfg.CORSAllowedOrigin
	opts.RateLimitPerMinute = cfg.RateLimitPerMinute
	opts.ReceiptMaxBytes = cfg.ReceiptMaxBytes

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Users:      repo,
		Store:      repo,
		Categories: svc.Categories,
		Expenses:   svc.Expenses,
		Recurring:  svc.Recurring,
		Budgets:    svc.Budgets,
		Goals:      svc.Goals,
		Settings:   svc.Settings,
		Stats:      svc.Stats,
		Splitwise:  svc.Splitwise,
		Importer:   svc.Importer,
		Receipts:   svc.Receipts,
	}, opts, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if scheduler != nil {
			if err := scheduler.Stop(ctx); err != nil {
				logger.Warn("Scheduler stop error", log.FieldError, err)
			}
		}
		caches.Stop()
	})

	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start scheduler", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.Info("Starting expensa server",
		"port", cfg.Port,
		"amqp", amqpClient != nil,
		"receipts", cfg.ReceiptParsingEnabled(),
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
