package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"envelopes/internal/amqp"
	"envelopes/internal/cache"
	"envelopes/internal/core"
	"envelopes/internal/ledger"
	"envelopes/internal/log"
	"envelopes/internal/store"
)

const balancesKey = "all"

// LedgerService saves and reads transactions and serves balances computed
// from the whole journal.
type LedgerService struct {
	store     store.Store
	publisher EventPublisher
	balances  cache.Cache[[]ledger.Balance]

	// gen counts invalidations; a computed result is cached only when no
	// write landed while it was being computed.
	mu  sync.Mutex
	gen uint64
}

// NewLedgerService wires a store with an optional publisher and balance
// cache. Either may be nil.
func NewLedgerService(st store.Store, publisher EventPublisher, balances cache.Cache[[]ledger.Balance]) *LedgerService {
	return &LedgerService{
		store:     st,
		publisher: publisher,
		balances:  balances,
	}
}

func (s *LedgerService) Store() store.Store { return s.store }

// Save validates t and stores it, replacing any transaction with the same
// ID. Fills go through FillService so groups stay whole.
func (s *LedgerService) Save(ctx context.Context, t core.Transaction) error {
	if err := core.Validate(t); err != nil {
		return err
	}
	if err := s.store.PutTxn(ctx, t); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	s.Invalidate()

	slog.InfoContext(ctx, "Transaction saved", log.NewFields().WithComponent(log.ComponentLedger).WithTxn(t).ToSlice()...)

	ev := amqp.NewLedgerEvent(amqp.EventTxnSaved)
	ev.TxnID = t.Head().ID
	ev.TxnType = string(t.Type())
	publish(ctx, s.publisher, ev)
	return nil
}

func (s *LedgerService) Delete(ctx context.Context, id string) error {
	t, err := s.store.GetTxn(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTxn(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.Invalidate()

	slog.InfoContext(ctx, "Transaction deleted", log.FieldTxnID, id, log.FieldTxnType, t.Type())

	ev := amqp.NewLedgerEvent(amqp.EventTxnDeleted)
	ev.TxnID = id
	ev.TxnType = string(t.Type())
	publish(ctx, s.publisher, ev)
	return nil
}

func (s *LedgerService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTxn(ctx, id)
}

// List returns every transaction, or those of one kind when typ is set.
func (s *LedgerService) List(ctx context.Context, typ core.TxnType) ([]core.Transaction, error) {
	if typ == "" {
		return s.store.ListTxns(ctx)
	}
	if _, err := core.ParseTxnType(string(typ)); err != nil {
		return nil, err
	}
	return s.store.ListTxnsByType(ctx, typ)
}

// ListForAccount returns the transactions that debit or credit accountID.
func (s *LedgerService) ListForAccount(ctx context.Context, accountID string) ([]core.Transaction, error) {
	all, err := s.store.ListTxns(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, t := range all {
		if core.TouchesAccount(accountID, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Balances returns every bucket's balance sorted by type and name. Results
// are cached until the next write.
func (s *LedgerService) Balances(ctx context.Context) ([]ledger.Balance, error) {
	if s.balances != nil {
		if cached, ok := s.balances.Get(balancesKey); ok {
			return cloneBalances(cached), nil
		}
	}
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	out, err := s.ComputeBalances(ctx)
	if err != nil {
		return nil, err
	}
	if s.balances != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.balances.Set(balancesKey, cloneBalances(out))
		}
		s.mu.Unlock()
	}
	return out, nil
}

// ComputeBalances recomputes balances from the store, bypassing the cache.
func (s *LedgerService) ComputeBalances(ctx context.Context) ([]ledger.Balance, error) {
	txns, err := s.store.ListTxns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	buckets, err := s.store.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return ledger.Compute(txns, buckets)
}

// BalancesOf filters Balances to one bucket type.
func (s *LedgerService) BalancesOf(ctx context.Context, typ core.BucketType) ([]ledger.Balance, error) {
	if err := typ.Validate(); err != nil {
		return nil, err
	}
	all, err := s.Balances(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Filter(all, typ), nil
}

func (s *LedgerService) Buckets(ctx context.Context) ([]core.Bucket, error) {
	return s.store.ListBuckets(ctx)
}

// Invalidate drops cached balances. Callers invoke it after the store
// write has completed.
func (s *LedgerService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.balances != nil {
		s.balances.Purge()
	}
}

// Close releases the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}

func cloneBalances(in []ledger.Balance) []ledger.Balance {
	out := make([]ledger.Balance, len(in))
	copy(out, in)
	return out
}
