package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
	"envelopes/internal/importer"
	"envelopes/internal/ledger"
	"envelopes/internal/log"
)

const importWorkers = 8

// ImportResult summarizes one import. Nothing in Unmatched, Rejected or
// Invalid was stored.
type ImportResult struct {
	Imported       int                  `json:"imported"`
	CreatedBuckets []core.Bucket        `json:"created_buckets"`
	Unmatched      []importer.Row       `json:"unmatched"`
	Rejected       []importer.RowError  `json:"-"`
	Invalid        []InvalidTransaction `json:"invalid"`
}

// InvalidTransaction is a converted row that failed validation.
type InvalidTransaction struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// RejectedMessages renders Rejected for display.
func (r ImportResult) RejectedMessages() []string {
	out := make([]string, 0, len(r.Rejected))
	for _, e := range r.Rejected {
		out = append(out, e.Error())
	}
	return out
}

// ImportService loads rows exported from another tool.
type ImportService struct {
	ledger *LedgerService
	gen    core.IDGenerator
}

func NewImportService(ledger *LedgerService, gen core.IDGenerator) *ImportService {
	return &ImportService{ledger: ledger, gen: gen}
}

// Import reconciles transfer rows, converts everything, creates the buckets
// the valid transactions name and stores those transactions. Buckets are
// written before transactions, so a failed store leaves the new buckets in
// place with nothing booked against them.
func (s *ImportService) Import(ctx context.Context, rows []importer.Row) (ImportResult, error) {
	conv := importer.Convert(rows, s.gen)
	res := ImportResult{Unmatched: conv.Unmatched, Rejected: conv.Rejected}

	st := s.ledger.store
	existing, err := st.ListBuckets(ctx)
	if err != nil {
		return res, fmt.Errorf("list buckets: %w", err)
	}
	accounts := importer.DiscoverAccounts(conv.Transactions, existing, s.gen)
	envelopes := importer.DiscoverEnvelopes(conv.Transactions, existing, s.gen)

	var valid []core.Transaction
	for _, t := range importer.Resolve(conv.Transactions, accounts.IDs, envelopes.IDs) {
		if err := core.Validate(t); err != nil {
			res.Invalid = append(res.Invalid, InvalidTransaction{ID: t.Head().ID, Error: err.Error()})
			continue
		}
		valid = append(valid, t)
	}

	// Only buckets a valid transaction refers to are created.
	used := referencedBuckets(valid)
	for _, b := range append(accounts.Created, envelopes.Created...) {
		if !used[b.ID] {
			continue
		}
		if err := st.PutBucket(ctx, b); err != nil {
			return res, fmt.Errorf("create bucket %s: %w", b.Name, err)
		}
		res.CreatedBuckets = append(res.CreatedBuckets, b)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importWorkers)
	for _, t := range valid {
		g.Go(func() error {
			if err := st.PutTxn(gctx, t); err != nil {
				return fmt.Errorf("store %s: %w", t.Head().ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.ledger.Invalidate()
		return res, fmt.Errorf("import transactions: %w", err)
	}
	res.Imported = len(valid)
	s.ledger.Invalidate()

	slog.InfoContext(ctx, "Import completed",
		log.FieldComponent, log.ComponentImport,
		log.FieldCount, res.Imported,
		log.FieldUnmatched, len(res.Unmatched),
		"rejected", len(res.Rejected),
		"invalid", len(res.Invalid),
		"created_buckets", len(res.CreatedBuckets))

	ev := amqp.NewLedgerEvent(amqp.EventImportDone)
	ev.Count = res.Imported
	publish(ctx, s.ledger.publisher, ev)
	return res, nil
}

func referencedBuckets(txns []core.Transaction) map[string]bool {
	used := make(map[string]bool)
	for _, item := range append(ledger.JournalToLedger(txns), ledger.AllEnvelopeItems(txns)...) {
		used[item.Bucket.ID] = true
	}
	return used
}
