package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
	"envelopes/internal/store"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "ledger.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func testBankTxn(t *testing.T, id string) core.BankTxn {
	t.Helper()
	b := core.NewBankTxn(core.NewDate(2024, 2, 3))
	b.ID = id
	b.Payee = "Grocer"
	b.From = core.BucketRef{ID: "account/1", Name: "Checking", Type: core.Account}
	b.AddCategory(core.EnvelopeEvent{ID: "envelope/food", Name: "Food", Amount: -1234})
	txn, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return txn
}

func TestMigrations(t *testing.T) {
	_, path := newTestRepo(t)
	version, dirty, err := SchemaVersion(path)
	if err != nil || dirty || version != 2 {
		t.Fatalf("SchemaVersion() = %d, %v, %v", version, dirty, err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("re-running migrations: %v", err)
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	txn := testBankTxn(t, "txn/1")
	if err := repo.PutTxn(ctx, txn); err != nil {
		t.Fatalf("PutTxn: %v", err)
	}
	got, err := repo.GetTxn(ctx, "txn/1")
	if err != nil {
		t.Fatalf("GetTxn: %v", err)
	}
	bank, ok := got.(core.BankTxn)
	if !ok || bank.Total() != -1234 || bank.Payee != "Grocer" {
		t.Fatalf("unexpected transaction %+v", got)
	}

	edited := txn.Edit()
	edited.Payee = "Market"
	replacement, _ := edited.Build()
	if err := repo.PutTxn(ctx, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}
	all, _ := repo.ListTxns(ctx)
	if len(all) != 1 || all[0].(core.BankTxn).Payee != "Market" {
		t.Fatalf("replace did not overwrite: %+v", all)
	}

	if err := repo.DeleteTxn(ctx, "txn/1"); err != nil {
		t.Fatalf("DeleteTxn: %v", err)
	}
	if _, err := repo.GetTxn(ctx, "txn/1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteTxn(ctx, "txn/1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing delete, got %v", err)
	}
}

func TestFillGroups(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	mk := func(id, group string, amount core.Pennies) core.Fill {
		return core.Fill{
			Header: core.Header{ID: id, Date: core.NewDate(2024, 2, 1)},
			FromID: "envelope/u", ToID: "envelope/food", Amount: amount, TxnID: group,
		}
	}

	if err := repo.ReplaceFillGroup(ctx, "g1", []core.Fill{mk("f1", "g1", 100), mk("f2", "g1", 200)}); err != nil {
		t.Fatalf("ReplaceFillGroup: %v", err)
	}
	if err := repo.PutTxn(ctx, testBankTxn(t, "txn/bank")); err != nil {
		t.Fatalf("PutTxn: %v", err)
	}
	if err := repo.ReplaceFillGroup(ctx, "g1", []core.Fill{mk("f3", "g1", 300)}); err != nil {
		t.Fatalf("ReplaceFillGroup again: %v", err)
	}

	group, err := repo.ListFillGroup(ctx, "g1")
	if err != nil || len(group) != 1 || group[0].ID != "f3" {
		t.Fatalf("ListFillGroup() = %+v, %v", group, err)
	}

	if err := repo.ReplaceFillGroup(ctx, "g1", []core.Fill{mk("f4", "other", 1)}); err == nil {
		t.Fatalf("expected error for foreign fill")
	}
	group, _ = repo.ListFillGroup(ctx, "g1")
	if len(group) != 1 || group[0].ID != "f3" {
		t.Fatalf("failed replace was not rolled back: %+v", group)
	}

	n, err := repo.DeleteFillGroup(ctx, "g1")
	if err != nil || n != 1 {
		t.Fatalf("DeleteFillGroup() = %d, %v", n, err)
	}
	fills, _ := repo.ListTxnsByType(ctx, core.TypeFill)
	if len(fills) != 0 {
		t.Fatalf("fills left behind: %+v", fills)
	}
	banks, _ := repo.ListTxnsByType(ctx, core.TypeBankTxn)
	if len(banks) != 1 {
		t.Fatalf("bank transaction lost: %+v", banks)
	}
}

func TestBuckets(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	due := core.NewDate(2024, 12, 25)

	envelope := core.Bucket{
		ID: "envelope/gifts", Name: "Gifts", Type: core.Envelope,
		Extra: core.EnvelopeExtra{Target: 5000, Interval: core.Total, Due: &due},
		Tags:  map[string]string{"group": "fun"},
	}
	account := core.Bucket{ID: "account/1", Name: "Checking", Type: core.Account}
	for _, b := range []core.Bucket{envelope, account} {
		if err := repo.PutBucket(ctx, b); err != nil {
			t.Fatalf("PutBucket: %v", err)
		}
	}

	got, err := repo.GetBucket(ctx, "envelope/gifts")
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if got.Extra.Target != 5000 || got.Extra.Due == nil || got.Extra.Due.String() != "2024-12-25" || got.Tags["group"] != "fun" {
		t.Fatalf("unexpected bucket %+v", got)
	}

	list, _ := repo.ListBuckets(ctx)
	if len(list) != 2 || list[0].ID != "account/1" || list[0].Tags != nil {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, err := repo.GetBucket(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshots(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestSnapshot(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for i := 1; i <= 3; i++ {
		snap := store.Snapshot{
			TakenAt:  time.Date(2024, 1, i, 0, 0, 0, 0, time.UTC),
			Balances: []ledger.Balance{{ID: "account/1", Name: "Checking", Type: core.Account, Balance: core.Pennies(i)}},
		}
		if err := repo.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	latest, err := repo.LatestSnapshot(ctx)
	if err != nil || latest.Balances[0].Balance != 3 || latest.TakenAt.Day() != 3 {
		t.Fatalf("LatestSnapshot() = %+v, %v", latest, err)
	}
	if n, err := repo.PruneSnapshots(ctx, 1); err != nil || n != 2 {
		t.Fatalf("PruneSnapshots() = %d, %v", n, err)
	}
}
