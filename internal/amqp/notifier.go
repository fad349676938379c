package amqp

import (
	"context"
	"log/slog"

	"persacc/internal/core"
	"persacc/internal/metrics"
)

// publisher is the slice of Client the notifier needs.
type publisher interface {
	PublishPeriodClosed(ctx context.Context, msg *PeriodClosedMessage) error
}

// Notifier adapts the client to the closing engine's notification hook.
// Publishing is best-effort: the closing is already committed, so a broker
// failure is logged and counted but never surfaces as an error.
type Notifier struct {
	client publisher
}

func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) PeriodClosed(ctx context.Context, key core.PeriodKey, snap core.ClosingSnapshot) {
	msg := NewPeriodClosedMessage(key.String(), snap.ClosedAt, snap.ClosingBalance.Cents)
	if err := n.client.PublishPeriodClosed(ctx, msg); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "Failed to publish period closed event",
			"error", err, "period", key.String())
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
