package importer

import (
	"envelopes/internal/core"
)

// Result is the outcome of reconciliation. Unmatched rows could not be
// paired with an opposite leg.
type Result struct {
	Rows      []Row
	Unmatched []Row
}

type groupKey struct {
	date      string
	magnitude core.Pennies
}

// Reconcile merges the two legs of every transfer of the given kind. Rows
// of other kinds pass through in order, followed by the merged rows in
// first-seen group order. Groups share a date and an amount magnitude, so
// "-1,000.00" and "1000.00" fall together. Within a group the first
// negative row pairs with the first positive row. Rows whose amount does not
// parse are unmatched.
func Reconcile(rows []Row, kind string, ids core.IDGenerator) Result {
	var res Result
	var order []groupKey
	groups := make(map[groupKey][]Row)

	for _, r := range rows {
		if k, err := kindOf(r); err != nil || k != kind {
			res.Rows = append(res.Rows, r)
			continue
		}
		amount, err := ParseAmount(r.Amount)
		if err != nil {
			res.Unmatched = append(res.Unmatched, r)
			continue
		}
		key := groupKey{date: r.Date, magnitude: amount.Abs()}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	for _, key := range order {
		pending := groups[key]
		for len(pending) > 0 {
			neg, pos := -1, -1
			for i, r := range pending {
				amount, err := ParseAmount(r.Amount)
				if err != nil {
					continue
				}
				if amount < 0 && neg < 0 {
					neg = i
				}
				if amount > 0 && pos < 0 {
					pos = i
				}
			}
			if neg < 0 || pos < 0 {
				res.Unmatched = append(res.Unmatched, pending...)
				break
			}
			res.Rows = append(res.Rows, merge(pending[neg], pending[pos], kind, ids.NewID()))
			pending = removeTwo(pending, neg, pos)
		}
	}
	return res
}

// ReconcileAll drops fill rows and runs the account transfer pass followed
// by the envelope transfer pass.
func ReconcileAll(rows []Row, ids core.IDGenerator) Result {
	kept := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !r.IsFill() {
			kept = append(kept, r)
		}
	}
	accounts := Reconcile(kept, KindAccountTransfer, ids)
	envelopes := Reconcile(accounts.Rows, KindEnvelopeTransfer, ids)
	return Result{
		Rows:      envelopes.Rows,
		Unmatched: append(accounts.Unmatched, envelopes.Unmatched...),
	}
}

func merge(neg, pos Row, kind, txfrID string) Row {
	out := neg
	out.Kind = kind
	out.Account = firstNonEmpty(neg.Account, neg.Envelope)
	out.Name = firstNonEmpty(pos.Account, pos.Envelope)
	out.TxfrID = txfrID
	return out
}

func removeTwo(rows []Row, i, j int) []Row {
	out := make([]Row, 0, len(rows)-2)
	for k, r := range rows {
		if k != i && k != j {
			out = append(out, r)
		}
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
