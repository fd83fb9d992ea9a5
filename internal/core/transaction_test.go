package core

import (
	"errors"
	"testing"
)

type seqGen struct{ n int }

func (g *seqGen) NewID() string {
	g.n++
	return "id" + string(rune('0'+g.n))
}

var savings = BucketRef{ID: "account/savings", Name: "Savings", Type: Account}

func sampleTransactions(t *testing.T) []Transaction {
	t.Helper()
	bank, err := groceryTxn().Build()
	if err != nil {
		t.Fatalf("build bank txn: %v", err)
	}
	bank.ID = "txn/2020-01-02/banktxn/Corner Store/a"
	return []Transaction{
		bank,
		AccountTransfer{
			Header: Header{ID: "txn/2020-01-02/accountTransfer/x/b", Date: NewDate(2020, 1, 2)},
			From:   checking, To: savings, Amount: 500, TxfrID: "x",
		},
		NewEnvelopeTransfer(
			Header{ID: "txn/2020-01-02/envelopeTransfer/Food/c", Date: NewDate(2020, 1, 2)},
			BucketRef{ID: "envelope/food", Name: "Food", Type: Envelope},
			[]EnvelopeEvent{{Name: "Fun", ID: "envelope/fun", Amount: 200}, {Name: "Gifts", ID: "envelope/gifts", Amount: 100}},
		),
		Fill{
			Header: Header{ID: "txn/2020-01-02/fill/g1/d", Date: NewDate(2020, 1, 2)},
			FromID: "envelope/unallocated", ToID: "envelope/food", Amount: 4000, TxnID: "g1",
		},
	}
}

func TestCapabilities(t *testing.T) {
	want := map[TxnType][2]bool{
		TypeBankTxn:          {true, true},
		TypeAccountTransfer:  {true, false},
		TypeEnvelopeTransfer: {false, true},
		TypeFill:             {false, false},
	}
	for _, typ := range AllTxnTypes {
		txn, err := Zero(typ)
		if err != nil {
			t.Fatalf("Zero(%s): %v", typ, err)
		}
		if txn.Type() != typ {
			t.Fatalf("Zero(%s).Type() = %s", typ, txn.Type())
		}
		caps, ok := want[typ]
		if !ok {
			t.Fatalf("no expectation for kind %s", typ)
		}
		if TouchesBank(txn) != caps[0] {
			t.Errorf("TouchesBank(%s) = %v", typ, !caps[0])
		}
		if HasCategories(txn) != caps[1] {
			t.Errorf("HasCategories(%s) = %v", typ, !caps[1])
		}
		_ = Export(txn)
		_ = TouchesAccount("any", txn)
	}
}

func TestUnknownKindPanics(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(UnknownKindError); !ok {
			t.Fatalf("expected UnknownKindError panic, got %v", r)
		}
	}()
	var txn Transaction
	TouchesBank(txn)
}

func TestZeroUnknownType(t *testing.T) {
	if _, err := Zero("category"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := ParseTxnType("bogus"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestTouchesAccount(t *testing.T) {
	txns := sampleTransactions(t)
	cases := []struct {
		txn     Transaction
		account string
		want    bool
	}{
		{txns[0], "account/checking", true},
		{txns[0], "account/savings", false},
		{txns[1], "account/savings", true},
		{txns[1], "account/checking", true},
		{txns[2], "account/checking", false},
		{txns[3], "account/checking", false},
	}
	for i, tc := range cases {
		if got := TouchesAccount(tc.account, tc.txn); got != tc.want {
			t.Fatalf("case %d: TouchesAccount(%s) = %v", i, tc.account, got)
		}
	}
}

func TestEnvelopeTransferZeroSum(t *testing.T) {
	et := sampleTransactions(t)[2].(EnvelopeTransfer)
	var legs Pennies
	for _, leg := range et.To {
		legs += leg.Amount
	}
	if et.From.Amount != -legs {
		t.Fatalf("from %d != -sum(to) %d", et.From.Amount, legs)
	}
	if !et.Balanced() {
		t.Fatalf("expected balanced transfer")
	}

	et.To = append(et.To, EnvelopeEvent{Name: "Extra", ID: "envelope/x", Amount: 1})
	if err := et.Validate(); !errors.Is(err, ErrUnbalancedTransfer) {
		t.Fatalf("expected ErrUnbalancedTransfer, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	for _, txn := range sampleTransactions(t) {
		if err := Validate(txn); err != nil {
			t.Fatalf("%s: unexpected error %v", txn.Type(), err)
		}
	}

	bad := []Transaction{
		AccountTransfer{Header: Header{ID: "a", Date: NewDate(2020, 1, 1)}, From: checking, To: checking, Amount: 5},
		AccountTransfer{Header: Header{ID: "a", Date: NewDate(2020, 1, 1)}, From: checking, Amount: 5},
		AccountTransfer{Header: Header{ID: "a", Date: NewDate(2020, 1, 1)}, From: checking, To: savings, Amount: -500},
		Fill{Header: Header{ID: "f", Date: NewDate(2020, 1, 1)}, FromID: "u", ToID: "e", TxnID: "g"},
		Fill{Header: Header{ID: "f", Date: NewDate(2020, 1, 1)}, FromID: "u", ToID: "e", Amount: 1},
		EnvelopeTransfer{Header: Header{ID: "e", Date: NewDate(2020, 1, 1)}, From: EnvelopeEvent{ID: "x"}},
	}
	for i, txn := range bad {
		var verr *ValidationError
		if err := Validate(txn); !errors.As(err, &verr) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}

	reversed := AccountTransfer{Header: Header{ID: "a", Date: NewDate(2020, 1, 1)}, From: checking, To: savings, Amount: -500}
	var verr *ValidationError
	if err := Validate(reversed); !errors.As(err, &verr) || len(verr.Messages) != 1 || verr.Messages[0] != MsgTransferAmount {
		t.Fatalf("negative transfer: got %v, want %q", err, MsgTransferAmount)
	}

	noID := sampleTransactions(t)[3].(Fill)
	noID.ID = ""
	if err := Validate(noID); !errors.Is(err, ErrMissingTxnID) {
		t.Fatalf("expected ErrMissingTxnID, got %v", err)
	}
}
