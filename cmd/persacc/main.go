package main

import (
	"errors"
	"net/http"
	"os"

	"persacc/internal/amqp"
	"persacc/internal/cli"
	"persacc/internal/closing"
	"persacc/internal/forecast"
	apphttp "persacc/internal/http"
	"persacc/internal/kpi"
	"persacc/internal/ledger"
	applog "persacc/internal/log"
	"persacc/internal/periods"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.OpenRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext()
	defer cancel()

	// The broker is optional. Without it closings still commit, they just
	// do not announce themselves to the insight worker.
	var notifier closing.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		notifier = amqp.NewNotifier(client)
		logger.Info("AMQP notifier enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, closings will not be announced")
	}

	kpiSvc := kpi.NewService(repo)
	kpiSvc.StartSweeper(ctx)

	registry := periods.NewRegistry(repo)
	ledgerSvc := ledger.NewService(repo, kpiSvc)
	engine := closing.NewEngine(repo, cfg.ClosingConfigPath, notifier, kpiSvc)

	srv := apphttp.NewServer(ledgerSvc, registry, kpiSvc, engine, forecast.LeastSquares{}, repo, logger)

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
