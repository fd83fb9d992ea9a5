// Package memory is an in-process store used by tests and the memory
// backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"envelopes/internal/core"
	"envelopes/internal/store"
)

type Store struct {
	mu        sync.Mutex
	txns      map[string]core.Transaction
	buckets   map[string]core.Bucket
	snapshots []store.Snapshot
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txns:    make(map[string]core.Transaction),
		buckets: make(map[string]core.Bucket),
	}
}

// NewSeeded returns a store holding buckets.
func NewSeeded(buckets []core.Bucket) *Store {
	s := New()
	for _, b := range buckets {
		s.buckets[b.ID] = b
	}
	return s
}

func (s *Store) GetTxn(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return t, nil
}

func (s *Store) ListTxns(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		out = append(out, t)
	}
	store.SortTxns(out)
	return out, nil
}

func (s *Store) ListTxnsByType(ctx context.Context, typ core.TxnType) ([]core.Transaction, error) {
	all, err := s.ListTxns(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, t := range all {
		if t.Type() == typ {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) PutTxn(_ context.Context, t core.Transaction) error {
	id := t.Head().ID
	if id == "" {
		return core.ErrMissingTxnID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[id] = t
	return nil
}

func (s *Store) DeleteTxn(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	delete(s.txns, id)
	return nil
}

func (s *Store) ListFillGroup(ctx context.Context, txnID string) ([]core.Fill, error) {
	fills, err := s.ListTxnsByType(ctx, core.TypeFill)
	if err != nil {
		return nil, err
	}
	var out []core.Fill
	for _, t := range fills {
		if f := t.(core.Fill); f.TxnID == txnID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) ReplaceFillGroup(_ context.Context, txnID string, fills []core.Fill) error {
	for _, f := range fills {
		if f.TxnID != txnID {
			return fmt.Errorf("fill %s belongs to group %q, not %q", f.ID, f.TxnID, txnID)
		}
		if f.ID == "" {
			return core.ErrMissingTxnID
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteGroupLocked(txnID)
	for _, f := range fills {
		s.txns[f.ID] = f
	}
	return nil
}

func (s *Store) DeleteFillGroup(_ context.Context, txnID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteGroupLocked(txnID), nil
}

func (s *Store) deleteGroupLocked(txnID string) int {
	n := 0
	for id, t := range s.txns {
		if f, ok := t.(core.Fill); ok && f.TxnID == txnID {
			delete(s.txns, id)
			n++
		}
	}
	return n
}

func (s *Store) GetBucket(_ context.Context, id string) (core.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[id]
	if !ok {
		return core.Bucket{}, fmt.Errorf("bucket %s: %w", id, store.ErrNotFound)
	}
	return b, nil
}

func (s *Store) PutBucket(_ context.Context, b core.Bucket) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[b.ID] = b
	return nil
}

func (s *Store) ListBuckets(_ context.Context) ([]core.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	store.SortBuckets(out)
	return out, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context) (store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return store.Snapshot{}, store.ErrNotFound
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
