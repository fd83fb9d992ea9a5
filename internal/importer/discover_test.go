package importer

import (
	"testing"

	"envelopes/internal/core"
)

func TestDiscoverAndResolve(t *testing.T) {
	rows := []Row{
		{Date: "2020-01-01", Amount: "-500", Account: "Checking"},
		{Date: "2020-01-01", Amount: "500", Account: "Savings"},
		{Date: "2020-01-02", Amount: "-200", Envelope: "Food", Notes: NotesEnvelopeTransfer},
		{Date: "2020-01-02", Amount: "200", Envelope: "Fun", Notes: NotesEnvelopeTransfer},
		{Date: "2020-01-04", Amount: "-15.00", Account: "Checking", Name: "Store", Details: "Food|-12.00||Household|-3.00"},
	}
	gen := &seqGen{}
	conv := Convert(rows, gen)
	if len(conv.Rejected) != 0 {
		t.Fatalf("rejected rows: %v", conv.Rejected)
	}

	existing := []core.Bucket{{ID: "account/existing", Name: "Checking", Type: core.Account}}
	accounts := DiscoverAccounts(conv.Transactions, existing, gen)
	if len(accounts.Created) != 1 || accounts.Created[0].Name != "Savings" {
		t.Fatalf("unexpected created accounts %+v", accounts.Created)
	}
	if accounts.IDs["Checking"] != "account/existing" {
		t.Fatalf("existing account not reused: %v", accounts.IDs)
	}

	envelopes := DiscoverEnvelopes(conv.Transactions, existing, gen)
	if len(envelopes.Created) != 3 {
		t.Fatalf("expected Food, Fun and Household, got %+v", envelopes.Created)
	}
	for _, b := range envelopes.Created {
		if b.Type != core.Envelope || b.Extra.Interval != core.Weekly {
			t.Errorf("unexpected envelope %+v", b)
		}
		if err := b.Validate(); err != nil {
			t.Errorf("discovered envelope invalid: %v", err)
		}
	}

	resolved := Resolve(conv.Transactions, accounts.IDs, envelopes.IDs)
	for _, txn := range resolved {
		if err := core.Validate(txn); err != nil {
			t.Errorf("%s did not validate after resolve: %v", txn.Type(), err)
		}
	}
}
