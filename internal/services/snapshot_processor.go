package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"envelopes/internal/store"
)

type SnapshotProcessorConfig struct {
	// Interval between snapshots (default: 15m)
	Interval time.Duration

	// Keep is how many snapshots survive pruning; 0 disables pruning
	// (default: 96, one day at the default interval)
	Keep int
}

func DefaultSnapshotProcessorConfig() SnapshotProcessorConfig {
	return SnapshotProcessorConfig{
		Interval: 15 * time.Minute,
		Keep:     96,
	}
}

// Pruner is implemented by stores that can drop old snapshots.
type Pruner interface {
	PruneSnapshots(ctx context.Context, keep int) (int64, error)
}

// SnapshotProcessor periodically records every balance so reports can read
// a recent copy without replaying the journal.
type SnapshotProcessor struct {
	ledger *LedgerService
	config SnapshotProcessorConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSnapshotProcessor(ledger *LedgerService, config SnapshotProcessorConfig) *SnapshotProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultSnapshotProcessorConfig().Interval
	}
	return &SnapshotProcessor{
		ledger: ledger,
		config: config,
		now:    time.Now,
	}
}

// Start takes a snapshot immediately and then on every interval. It returns
// an error if already running.
func (p *SnapshotProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Snapshot processor started", "interval", p.config.Interval, "keep", p.config.Keep)
	return nil
}

// Stop signals the loop and waits for it or for ctx.
func (p *SnapshotProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Snapshot processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Snapshot processor stop timed out")
		return ctx.Err()
	}
}

func (p *SnapshotProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SnapshotProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *SnapshotProcessor) tick(ctx context.Context) {
	if _, err := p.TakeSnapshot(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to take balance snapshot", "error", err)
	}
}

// TakeSnapshot recomputes balances, stores them and prunes old copies.
func (p *SnapshotProcessor) TakeSnapshot(ctx context.Context) (store.Snapshot, error) {
	balances, err := p.ledger.ComputeBalances(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	snap := store.Snapshot{TakenAt: p.now().UTC(), Balances: balances}
	if err := p.ledger.store.SaveSnapshot(ctx, snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	if pr, ok := p.ledger.store.(Pruner); ok && p.config.Keep > 0 {
		n, err := pr.PruneSnapshots(ctx, p.config.Keep)
		if err != nil {
			slog.WarnContext(ctx, "Failed to prune snapshots", "error", err)
		} else if n > 0 {
			slog.DebugContext(ctx, "Pruned old snapshots", "count", n)
		}
	}
	slog.DebugContext(ctx, "Balance snapshot saved", "buckets", len(balances))
	return snap, nil
}
