package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"persacc/internal/amqp"
	"persacc/internal/cli"
	"persacc/internal/insight"
	applog "persacc/internal/log"
	"persacc/internal/mirror"
	"persacc/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required, the worker consumes period-closed events")
		os.Exit(1)
	}

	repo := cli.OpenRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP broker", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	var provider insight.Provider
	if os.Getenv("GEMINI_API_KEY") != "" {
		provider = insight.NewGemini(cfg.GeminiModel, cfg.InsightTimeout)
		logger.Info("Gemini insight provider enabled", "model", cfg.GeminiModel)
	} else {
		provider = insight.Noop{}
		logger.Info("No GEMINI_API_KEY, using the built-in recap provider")
	}

	ctx, cancel := cli.SignalContext()
	defer cancel()

	var sheet mirror.Writer
	if cfg.MirrorSpreadsheetID != "" {
		sheet, err = mirror.NewGoogleSheets(ctx, cfg.MirrorSpreadsheetID, cfg.MirrorSheetName, cfg.GoogleCredentialsFile)
		if err != nil {
			logger.Error("Failed to initialize snapshot mirror", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Snapshot mirror enabled", "spreadsheet_id", cfg.MirrorSpreadsheetID)
	} else {
		logger.Info("Snapshot mirror disabled, no MIRROR_SPREADSHEET_ID provided")
	}

	insightWorker := worker.NewInsightWorker(repo, provider, sheet)

	g, gctx := errgroup.WithContext(ctx)

	// Closings committed while the worker was down have no analysis yet.
	g.Go(func() error {
		if err := insightWorker.CatchUp(gctx); err != nil {
			logger.Error("Catch-up pass failed", applog.FieldError, err)
		}
		return nil
	})

	g.Go(func() error {
		return client.ConsumePeriodClosed(gctx, func(msg *amqp.PeriodClosedMessage) error {
			return insightWorker.HandlePeriodClosed(gctx, msg)
		})
	})

	logger.Info("Insight worker started", "queue", cfg.AMQPQueue)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
