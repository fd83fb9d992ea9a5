package memory

import (
	"context"
	"testing"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
)

func TestExporter(t *testing.T) {
	ctx := context.Background()
	e := New()

	balances, err := e.ReadBalances(ctx)
	if err != nil || balances != nil {
		t.Fatalf("empty ReadBalances() = %v, %v", balances, err)
	}

	ref, err := e.ExportLedger(ctx, []core.TxnExport{{ID: "t1", Date: core.NewDate(2024, 1, 1), Amount: 100, Type: core.TypeFill}})
	if err != nil || ref != "mem:ledger:2" {
		t.Fatalf("ExportLedger() = %q, %v", ref, err)
	}
	if got := e.LedgerTable()[1][3]; got != "1.00" {
		t.Fatalf("amount cell = %v", got)
	}

	want := []ledger.Balance{{ID: "envelope/food", Name: "Food", Type: core.Envelope, Balance: 250}}
	if _, err := e.ExportBalances(ctx, time.Now(), want); err != nil {
		t.Fatal(err)
	}
	got, err := e.ReadBalances(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Balance != 250 || got[0].Name != "Food" {
		t.Fatalf("ReadBalances() = %+v", got)
	}
	if e.Writes() != 2 {
		t.Fatalf("Writes() = %d", e.Writes())
	}
}
