// Package worker runs the post-closing pipeline: when a period closes, the
// worker generates its narrative analysis and mirrors the snapshot to the
// configured spreadsheet. Everything here is read-only against the ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"persacc/internal/amqp"
	"persacc/internal/core"
	"persacc/internal/insight"
	"persacc/internal/kpi"
	"persacc/internal/metrics"
	"persacc/internal/mirror"
	"persacc/internal/storage"
)

// AnalysisPeriodMonth is the period_type under which monthly analyses are
// stored.
const AnalysisPeriodMonth = "month"

type InsightWorker struct {
	repo     *storage.Repository
	provider insight.Provider
	mirror   mirror.Writer // nil disables mirroring
}

func NewInsightWorker(repo *storage.Repository, provider insight.Provider, mirror mirror.Writer) *InsightWorker {
	return &InsightWorker{repo: repo, provider: provider, mirror: mirror}
}

// HandlePeriodClosed processes one closing announcement. A returned error
// makes the broker redeliver, so only retryable failures propagate; a mirror
// failure is logged and dropped because the analysis already landed.
func (w *InsightWorker) HandlePeriodClosed(ctx context.Context, msg *amqp.PeriodClosedMessage) error {
	key, err := core.ParsePeriodKey(msg.Period)
	if err != nil {
		return fmt.Errorf("parse period %q: %w", msg.Period, err)
	}
	return w.process(ctx, key)
}

func (w *InsightWorker) process(ctx context.Context, key core.PeriodKey) error {
	q := w.repo.Queries()

	period, err := q.GetPeriod(ctx, key)
	if err != nil {
		return fmt.Errorf("load period %s: %w", key, err)
	}
	if period.State != core.PeriodClosed || period.Snapshot == nil {
		return fmt.Errorf("period %s is not closed yet", key)
	}

	summary, err := kpi.AggregateTx(ctx, q, key)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", key, err)
	}

	req := insight.Request{Period: key, Snapshot: *period.Snapshot, Summary: summary}
	text, err := w.provider.Generate(ctx, req)
	if err != nil {
		metrics.InsightRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("generate insight for %s: %w", key, err)
	}
	if err := q.SaveAnalysis(ctx, AnalysisPeriodMonth, key.String(), text, w.provider.Model()); err != nil {
		metrics.InsightRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("save analysis for %s: %w", key, err)
	}
	metrics.InsightRuns.WithLabelValues("ok").Inc()

	slog.InfoContext(ctx, "Analysis stored",
		"period", key.String(), "model", w.provider.Model(), "length", len(text))

	if w.mirror != nil {
		ref, err := w.mirror.AppendSnapshot(ctx, key, *period.Snapshot)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to mirror snapshot",
				"period", key.String(), "error", err)
		} else {
			slog.InfoContext(ctx, "Snapshot mirrored", "period", key.String(), "ref", ref)
		}
	}
	return nil
}

// CatchUp walks every closed period and fills in analyses that are missing,
// recovering from lost messages or worker downtime.
func (w *InsightWorker) CatchUp(ctx context.Context) error {
	q := w.repo.Queries()
	all, err := q.Periods(ctx)
	if err != nil {
		return fmt.Errorf("list periods: %w", err)
	}

	processed, failed := 0, 0
	for _, p := range all {
		if p.State != core.PeriodClosed {
			continue
		}
		if _, err := q.GetAnalysis(ctx, AnalysisPeriodMonth, p.Key.String()); err == nil {
			continue
		}
		if err := w.process(ctx, p.Key); err != nil {
			slog.ErrorContext(ctx, "Catch-up failed for period",
				"period", p.Key.String(), "error", err)
			failed++
			continue
		}
		processed++
	}

	if processed > 0 || failed > 0 {
		slog.InfoContext(ctx, "Catch-up completed", "processed", processed, "failed", failed)
	}
	return nil
}
