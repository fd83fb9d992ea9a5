// Package worker keeps external copies of the ledger up to date in
// response to ledger events.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
	"envelopes/internal/log"
	"envelopes/internal/services"
	"envelopes/internal/sheets"
)

// LedgerWorker exports the journal and current balances whenever the
// ledger changes. Every export is a full rewrite, so events that happened
// before the last export started are already covered and are skipped.
type LedgerWorker struct {
	ledger    *services.LedgerService
	snapshots *services.SnapshotProcessor
	exporter  sheets.Exporter
	now       func() time.Time

	mu          sync.Mutex
	lastStarted time.Time
}

func NewLedgerWorker(ledger *services.LedgerService, snapshots *services.SnapshotProcessor, exporter sheets.Exporter) *LedgerWorker {
	return &LedgerWorker{
		ledger:    ledger,
		snapshots: snapshots,
		exporter:  exporter,
		now:       time.Now,
	}
}

// HandleEvent is the AMQP consumer callback.
func (w *LedgerWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	w.mu.Lock()
	covered := !w.lastStarted.IsZero() && ev.Timestamp.Before(w.lastStarted)
	w.mu.Unlock()
	if covered {
		slog.DebugContext(ctx, "Ledger event already exported", "kind", ev.Kind, log.FieldTxnID, ev.TxnID)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		log.FieldComponent, log.ComponentWorker,
		"kind", ev.Kind,
		log.FieldTxnID, ev.TxnID,
		log.FieldFillGroup, ev.FillGroup)
	return w.Export(ctx)
}

// Export writes the ledger and balance sheets concurrently.
func (w *LedgerWorker) Export(ctx context.Context) error {
	started := w.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.exportLedger(gctx) })
	g.Go(func() error { return w.exportBalances(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}

	w.mu.Lock()
	if started.After(w.lastStarted) {
		w.lastStarted = started
	}
	w.mu.Unlock()
	return nil
}

func (w *LedgerWorker) exportLedger(ctx context.Context) error {
	txns, err := w.ledger.List(ctx, "")
	if err != nil {
		return err
	}
	rows := make([]core.TxnExport, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, core.Export(t))
	}
	ref, err := w.exporter.ExportLedger(ctx, rows)
	if err != nil {
		return fmt.Errorf("write ledger sheet: %w", err)
	}
	slog.InfoContext(ctx, "Ledger exported", log.FieldCount, len(rows), "ref", ref)
	return nil
}

func (w *LedgerWorker) exportBalances(ctx context.Context) error {
	snap, err := w.snapshots.TakeSnapshot(ctx)
	if err != nil {
		return err
	}
	if reader, ok := w.exporter.(sheets.BalanceReader); ok {
		current, err := reader.ReadBalances(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Could not read exported balances, rewriting", "error", err)
		} else if sheets.SameBalances(current, snap.Balances) {
			slog.DebugContext(ctx, "Balances unchanged, skipping export")
			return nil
		}
	}
	ref, err := w.exporter.ExportBalances(ctx, snap.TakenAt, snap.Balances)
	if err != nil {
		return fmt.Errorf("write balance sheet: %w", err)
	}
	slog.InfoContext(ctx, "Balances exported", "buckets", len(snap.Balances), "ref", ref)
	return nil
}
