// Package ledger projects transactions into signed per-bucket line items and
// sums them into balances.
package ledger

import (
	"envelopes/internal/core"
)

// LineItem is one signed movement against a single bucket.
type LineItem struct {
	Bucket core.BucketRef
	Amount core.Pennies
	TxnID  string
}

// Dedupe drops every transaction whose ID was already seen, keeping the first
// occurrence. Transactions without an ID are kept.
func Dedupe(txns []core.Transaction) []core.Transaction {
	seen := make(map[string]struct{}, len(txns))
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		id := t.Head().ID
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, t)
	}
	return out
}

// JournalToLedger projects the bank side. A bank transaction moves its amount
// through its account. An account transfer debits From and credits To.
func JournalToLedger(txns []core.Transaction) []LineItem {
	var items []LineItem
	for _, t := range txns {
		if !core.TouchesBank(t) {
			continue
		}
		id := t.Head().ID
		switch v := t.(type) {
		case core.BankTxn:
			items = append(items, LineItem{Bucket: v.From, Amount: v.Total(), TxnID: id})
		case core.AccountTransfer:
			items = append(items,
				LineItem{Bucket: v.To, Amount: v.Amount, TxnID: id},
				LineItem{Bucket: v.From, Amount: -v.Amount, TxnID: id},
			)
		case core.EnvelopeTransfer, core.Fill:
		default:
			panic(core.UnknownKindError{Value: t})
		}
	}
	return items
}

// EnvelopeLedger projects the envelope side of categorized transactions.
func EnvelopeLedger(txns []core.Transaction) []LineItem {
	var items []LineItem
	for _, t := range txns {
		if !core.HasCategories(t) {
			continue
		}
		id := t.Head().ID
		switch v := t.(type) {
		case core.BankTxn:
			for _, c := range v.Categories() {
				items = append(items, LineItem{Bucket: envelopeRef(c), Amount: c.Amount, TxnID: id})
			}
		case core.EnvelopeTransfer:
			items = append(items, LineItem{Bucket: envelopeRef(v.From), Amount: v.From.Amount, TxnID: id})
			for _, leg := range v.To {
				items = append(items, LineItem{Bucket: envelopeRef(leg), Amount: leg.Amount, TxnID: id})
			}
		case core.AccountTransfer, core.Fill:
		default:
			panic(core.UnknownKindError{Value: t})
		}
	}
	return items
}

// FillLedger projects fills as envelope movements out of Unallocated.
// Fill references carry only IDs, so the items have no names.
func FillLedger(txns []core.Transaction) []LineItem {
	var items []LineItem
	for _, t := range txns {
		switch v := t.(type) {
		case core.Fill:
			items = append(items,
				LineItem{Bucket: core.BucketRef{ID: v.FromID, Type: core.Envelope}, Amount: -v.Amount, TxnID: v.ID},
				LineItem{Bucket: core.BucketRef{ID: v.ToID, Type: core.Envelope}, Amount: v.Amount, TxnID: v.ID},
			)
		case core.BankTxn, core.AccountTransfer, core.EnvelopeTransfer:
		default:
			panic(core.UnknownKindError{Value: t})
		}
	}
	return items
}

// AllEnvelopeItems is the complete envelope side: categories, transfers and
// fills.
func AllEnvelopeItems(txns []core.Transaction) []LineItem {
	return append(EnvelopeLedger(txns), FillLedger(txns)...)
}

func envelopeRef(e core.EnvelopeEvent) core.BucketRef {
	return core.BucketRef{ID: e.ID, Name: e.Name, Type: core.Envelope}
}
