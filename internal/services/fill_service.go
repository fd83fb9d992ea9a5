package services

import (
	"context"
	"fmt"
	"log/slog"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
	"envelopes/internal/fill"
	"envelopes/internal/log"
	"envelopes/internal/store"
)

// FillService plans and records batches of fills out of Unallocated.
type FillService struct {
	ledger  *LedgerService
	planner *fill.Planner
	gen     core.IDGenerator
	clock   core.Clock
}

func NewFillService(ledger *LedgerService, gen core.IDGenerator, clock core.Clock) *FillService {
	return &FillService{
		ledger:  ledger,
		planner: fill.NewPlanner(),
		gen:     gen,
		clock:   clock,
	}
}

// Plan proposes one amount per envelope from current balances.
func (s *FillService) Plan(ctx context.Context, mode fill.Mode) (fill.Plan, error) {
	balances, err := s.ledger.Balances(ctx)
	if err != nil {
		return fill.Plan{}, err
	}
	last, err := s.lastFills(ctx)
	if err != nil {
		return fill.Plan{}, err
	}
	return s.planner.Build(balances, mode, last, core.Today(s.clock))
}

func (s *FillService) lastFills(ctx context.Context) (map[string]core.Date, error) {
	fills, err := s.ledger.store.ListTxnsByType(ctx, core.TypeFill)
	if err != nil {
		return nil, fmt.Errorf("list fills: %w", err)
	}
	last := make(map[string]core.Date)
	for _, t := range fills {
		f := t.(core.Fill)
		if cur, ok := last[f.ToID]; !ok || f.Date.After(cur.Time) {
			last[f.ToID] = f.Date
		}
	}
	return last, nil
}

// NewGroupID returns a fresh fill group identifier for date.
func (s *FillService) NewGroupID(date core.Date) string {
	return "fill/" + date.String() + "/" + s.gen.NewID()
}

// SaveGroup replaces the fill group txnID with one fill per non-zero
// proposal. An empty txnID starts a new group. It returns the group ID and
// the stored fills.
func (s *FillService) SaveGroup(ctx context.Context, txnID string, date core.Date, proposals []fill.Proposal) (string, []core.Fill, error) {
	if date.IsZero() {
		date = core.Today(s.clock)
	}
	if txnID == "" {
		txnID = s.NewGroupID(date)
	}
	buckets, err := s.ledger.store.ListBuckets(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("list buckets: %w", err)
	}
	unallocated, err := fill.FindUnallocated(buckets)
	if err != nil {
		return "", nil, err
	}

	fills := fill.Batch(date, unallocated.ID, txnID, proposals, s.gen)
	for _, f := range fills {
		if err := f.Validate(); err != nil {
			return "", nil, fmt.Errorf("fill for %s: %w", f.ToID, err)
		}
	}
	if err := s.ledger.store.ReplaceFillGroup(ctx, txnID, fills); err != nil {
		return "", nil, fmt.Errorf("save fill group: %w", err)
	}
	s.ledger.Invalidate()

	slog.InfoContext(ctx, "Fill group saved", log.FieldFillGroup, txnID, log.FieldCount, len(fills))
	ev := amqp.NewLedgerEvent(amqp.EventFillSaved)
	ev.FillGroup = txnID
	ev.Count = len(fills)
	publish(ctx, s.ledger.publisher, ev)
	return txnID, fills, nil
}

// DeleteGroup removes every fill in txnID and reports how many went.
func (s *FillService) DeleteGroup(ctx context.Context, txnID string) (int, error) {
	n, err := s.ledger.store.DeleteFillGroup(ctx, txnID)
	if err != nil {
		return 0, fmt.Errorf("delete fill group: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("fill group %s: %w", txnID, store.ErrNotFound)
	}
	s.ledger.Invalidate()

	slog.InfoContext(ctx, "Fill group deleted", log.FieldFillGroup, txnID, log.FieldCount, n)
	ev := amqp.NewLedgerEvent(amqp.EventFillDeleted)
	ev.FillGroup = txnID
	ev.Count = n
	publish(ctx, s.ledger.publisher, ev)
	return n, nil
}

// LoadGroup returns a saved group as editable proposals.
func (s *FillService) LoadGroup(ctx context.Context, txnID string) ([]fill.Proposal, error) {
	fills, err := s.ledger.store.ListFillGroup(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if len(fills) == 0 {
		return nil, fmt.Errorf("fill group %s: %w", txnID, store.ErrNotFound)
	}
	buckets, err := s.ledger.store.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(buckets))
	for _, b := range buckets {
		names[b.ID] = b.Name
	}
	return fill.FromFills(fills, names), nil
}
