// Package store defines the persistence ports of the ledger. Transactions
// are keyed by ID and replaced whole; nothing edits them in place.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
)

var ErrNotFound = errors.New("not found")

// Snapshot is a point-in-time copy of every balance.
type Snapshot struct {
	TakenAt  time.Time        `json:"taken_at"`
	Balances []ledger.Balance `json:"balances"`
}

// Ports for persistence adapters.
type (
	TxnReader interface {
		GetTxn(ctx context.Context, id string) (core.Transaction, error)
		// ListTxns returns every transaction ordered by date, then ID.
		ListTxns(ctx context.Context) ([]core.Transaction, error)
		ListTxnsByType(ctx context.Context, typ core.TxnType) ([]core.Transaction, error)
	}

	TxnWriter interface {
		// PutTxn inserts t or replaces the transaction with the same ID.
		PutTxn(ctx context.Context, t core.Transaction) error
		DeleteTxn(ctx context.Context, id string) error
	}

	// FillGroups manages fills sharing a TxnID as one unit.
	FillGroups interface {
		ListFillGroup(ctx context.Context, txnID string) ([]core.Fill, error)
		// ReplaceFillGroup deletes the group and stores fills in its place.
		ReplaceFillGroup(ctx context.Context, txnID string, fills []core.Fill) error
		DeleteFillGroup(ctx context.Context, txnID string) (int, error)
	}

	BucketStore interface {
		GetBucket(ctx context.Context, id string) (core.Bucket, error)
		PutBucket(ctx context.Context, b core.Bucket) error
		ListBuckets(ctx context.Context) ([]core.Bucket, error)
	}

	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, s Snapshot) error
		// LatestSnapshot returns ErrNotFound when none was saved yet.
		LatestSnapshot(ctx context.Context) (Snapshot, error)
	}

	// Store is everything the services need from a backend.
	Store interface {
		TxnReader
		TxnWriter
		FillGroups
		BucketStore
		SnapshotStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// SortTxns orders transactions by date, then ID.
func SortTxns(txns []core.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		a, b := txns[i].Head(), txns[j].Head()
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		return a.ID < b.ID
	})
}

// SortBuckets orders buckets by type, then name.
func SortBuckets(buckets []core.Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Type != buckets[j].Type {
			return buckets[i].Type < buckets[j].Type
		}
		return buckets[i].Name < buckets[j].Name
	})
}
