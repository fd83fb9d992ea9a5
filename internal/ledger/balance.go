package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"envelopes/internal/core"
)

var ErrEmptyBucket = errors.New("line item has no bucket id")

// Balance is a bucket decorated with its aggregated amount.
type Balance struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Type    core.BucketType    `json:"type"`
	Extra   core.EnvelopeExtra `json:"extra"`
	Balance core.Pennies       `json:"balance"`
}

// Aggregate sums items per bucket ID. Names are ignored so a renamed bucket
// keeps a single balance.
func Aggregate(items []LineItem) (map[string]core.Pennies, error) {
	out := make(map[string]core.Pennies)
	for i, item := range items {
		if item.Bucket.ID == "" {
			return nil, fmt.Errorf("item %d (%q, txn %s): %w", i, item.Bucket.Name, item.TxnID, ErrEmptyBucket)
		}
		out[item.Bucket.ID] += item.Amount
	}
	return out, nil
}

// Balances returns one record per catalogue bucket. Buckets with no activity
// report zero. Sums for IDs missing from the catalogue are returned under
// their ID so no money disappears from view.
func Balances(catalogue []core.Bucket, sums map[string]core.Pennies) []Balance {
	out := make([]Balance, 0, len(catalogue))
	known := make(map[string]struct{}, len(catalogue))
	for _, b := range catalogue {
		known[b.ID] = struct{}{}
		out = append(out, Balance{ID: b.ID, Name: b.Name, Type: b.Type, Extra: b.Extra, Balance: sums[b.ID]})
	}
	orphans := make([]string, 0)
	for id := range sums {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		out = append(out, Balance{ID: id, Name: id, Type: guessType(id), Balance: sums[id]})
	}
	return out
}

// SortByName orders balances by bucket type, then case-insensitive name.
func SortByName(balances []Balance) {
	sort.SliceStable(balances, func(i, j int) bool {
		if balances[i].Type != balances[j].Type {
			return balances[i].Type < balances[j].Type
		}
		return strings.ToLower(balances[i].Name) < strings.ToLower(balances[j].Name)
	})
}

// Filter returns the balances of one bucket type, keeping their order.
func Filter(balances []Balance, typ core.BucketType) []Balance {
	var out []Balance
	for _, b := range balances {
		if b.Type == typ {
			out = append(out, b)
		}
	}
	return out
}

// Compute runs the full pipeline: dedupe, project both sides, aggregate and
// decorate against the catalogue.
func Compute(txns []core.Transaction, catalogue []core.Bucket) ([]Balance, error) {
	txns = Dedupe(txns)
	items := append(JournalToLedger(txns), AllEnvelopeItems(txns)...)
	sums, err := Aggregate(items)
	if err != nil {
		return nil, fmt.Errorf("aggregate balances: %w", err)
	}
	out := Balances(catalogue, sums)
	SortByName(out)
	return out, nil
}

// Total sums a set of balances.
func Total(balances []Balance) core.Pennies {
	var sum core.Pennies
	for _, b := range balances {
		sum += b.Balance
	}
	return sum
}

func guessType(id string) core.BucketType {
	if strings.HasPrefix(id, string(core.Account)) {
		return core.Account
	}
	return core.Envelope
}
