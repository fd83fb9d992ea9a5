package core

import "testing"

func TestExport(t *testing.T) {
	txns := sampleTransactions(t)
	want := []struct {
		from, to string
		amount   Pennies
	}{
		{"Food||Household", "Corner Store", 1500},
		{"Checking", "Savings", 500},
		{"Food", "Fun||Gifts", -300},
		{"envelope/unallocated", "envelope/food", 4000},
	}
	for i, txn := range txns {
		row := Export(txn)
		if row.From != want[i].from || row.To != want[i].to || row.Amount != want[i].amount {
			t.Errorf("%s: got %+v", txn.Type(), row)
		}
		if row.ID != txn.Head().ID || row.Type != txn.Type() {
			t.Errorf("%s: header not carried over", txn.Type())
		}
	}
}
