package main

import (
	"os"
	"time"

	"homeledger/internal/cli"
	"homeledger/internal/log"
	"homeledger/internal/services"
	"homeledger/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker, os.Stdout)
	logger.Info("Starting ledger-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.DBPath)
	defer repo.Close()

	// Without a broker the worker still reconciles on its interval.
	var source worker.EventSource
	client := cli.InitAMQP(logger, cfg)
	if client != nil {
		source = client
	} else {
		logger.Info("Consuming no ledger events, periodic reconcile only")
	}

	w := worker.NewReconcileWorker(services.NewReconciler(repo), cfg.ReconcileInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if client != nil {
			client.Close()
		}
	})

	if err := w.Run(ctx, source); err != nil {
		logger.Error("Reconcile worker stopped", log.FieldError, err)
		if client != nil {
			client.Close()
		}
		return 1
	}
	<-done

	checks, drifts := w.Stats()
	logger.Info("ledger-worker stopped", "checks", checks, "drifts", drifts)
	return 0
}
