package importer

import (
	"envelopes/internal/core"
	"envelopes/internal/ledger"
)

// Discovery is the set of buckets an import needs. Created lists buckets
// that did not exist yet; IDs maps every referenced name to its bucket ID.
type Discovery struct {
	Created []core.Bucket
	IDs     map[string]string
}

// DiscoverAccounts finds every account named on the bank side of txns.
func DiscoverAccounts(txns []core.Transaction, existing []core.Bucket, gen core.IDGenerator) Discovery {
	return discover(namesOf(ledger.JournalToLedger(txns)), existing, core.Account, gen)
}

// DiscoverEnvelopes finds every envelope named by categories and envelope
// transfers. New envelopes start with no target and a weekly interval.
func DiscoverEnvelopes(txns []core.Transaction, existing []core.Bucket, gen core.IDGenerator) Discovery {
	return discover(namesOf(ledger.EnvelopeLedger(txns)), existing, core.Envelope, gen)
}

func namesOf(items []ledger.LineItem) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, item := range items {
		if item.Bucket.Name == "" {
			continue
		}
		if _, ok := seen[item.Bucket.Name]; ok {
			continue
		}
		seen[item.Bucket.Name] = struct{}{}
		names = append(names, item.Bucket.Name)
	}
	return names
}

func discover(names []string, existing []core.Bucket, typ core.BucketType, gen core.IDGenerator) Discovery {
	d := Discovery{IDs: make(map[string]string, len(names))}
	for _, b := range existing {
		if b.Type == typ {
			d.IDs[b.Name] = b.ID
		}
	}
	for _, name := range names {
		if _, ok := d.IDs[name]; ok {
			continue
		}
		b := core.Bucket{ID: string(typ) + "/" + gen.NewID(), Name: name, Type: typ}
		if typ == core.Envelope {
			b.Extra = core.EnvelopeExtra{Interval: core.Weekly}
		}
		d.Created = append(d.Created, b)
		d.IDs[name] = b.ID
	}
	return d
}

// Resolve fills in missing bucket IDs by name. IDs already present are kept.
func Resolve(txns []core.Transaction, accounts, envelopes map[string]string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		switch v := t.(type) {
		case core.BankTxn:
			v.From = resolveRef(v.From, accounts)
			out = append(out, v.MapCategories(func(e core.EnvelopeEvent) core.EnvelopeEvent {
				return resolveEvent(e, envelopes)
			}))
		case core.AccountTransfer:
			v.From = resolveRef(v.From, accounts)
			v.To = resolveRef(v.To, accounts)
			out = append(out, v)
		case core.EnvelopeTransfer:
			v.From = resolveEvent(v.From, envelopes)
			legs := make([]core.EnvelopeEvent, len(v.To))
			for i, leg := range v.To {
				legs[i] = resolveEvent(leg, envelopes)
			}
			v.To = legs
			out = append(out, v)
		case core.Fill:
			out = append(out, v)
		default:
			panic(core.UnknownKindError{Value: t})
		}
	}
	return out
}

func resolveRef(r core.BucketRef, ids map[string]string) core.BucketRef {
	if r.ID == "" {
		r.ID = ids[r.Name]
	}
	return r
}

func resolveEvent(e core.EnvelopeEvent, ids map[string]string) core.EnvelopeEvent {
	if e.ID == "" {
		e.ID = ids[e.Name]
	}
	return e
}
