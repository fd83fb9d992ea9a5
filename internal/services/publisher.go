package services

import (
	"context"
	"log/slog"

	"envelopes/internal/amqp"
)

// EventPublisher announces ledger changes. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
	Close() error
}

// publish sends ev when a publisher is configured. Failures are logged and
// never fail the write that triggered them: the store is the source of
// truth and consumers rebuild from it.
func publish(ctx context.Context, pub EventPublisher, ev *amqp.LedgerEvent) {
	if pub == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping ledger event", "kind", ev.Kind)
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"kind", ev.Kind,
			"txn_id", ev.TxnID,
			"fill_group", ev.FillGroup,
			"error", err)
	}
}
