package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
	"envelopes/internal/store"
)

// BucketService edits the account and envelope catalogue.
type BucketService struct {
	ledger *LedgerService
	gen    core.IDGenerator
}

func NewBucketService(ledger *LedgerService, gen core.IDGenerator) *BucketService {
	return &BucketService{ledger: ledger, gen: gen}
}

func (s *BucketService) List(ctx context.Context) ([]core.Bucket, error) {
	return s.ledger.store.ListBuckets(ctx)
}

// Save validates b and stores it. A bucket without an ID gets one of the
// form "<type>/<random>".
func (s *BucketService) Save(ctx context.Context, b core.Bucket) (core.Bucket, error) {
	b.Name = strings.TrimSpace(b.Name)
	if b.ID == "" {
		b.ID = string(b.Type) + "/" + s.gen.NewID()
	}
	if err := b.Validate(); err != nil {
		return core.Bucket{}, err
	}
	if err := s.ledger.store.PutBucket(ctx, b); err != nil {
		return core.Bucket{}, fmt.Errorf("save bucket: %w", err)
	}
	s.ledger.Invalidate()
	return b, nil
}

// SaveTags stores the tags of every bucket whose tags changed and returns
// how many were written. Unknown bucket IDs fail the whole call before
// anything is written.
func (s *BucketService) SaveTags(ctx context.Context, buckets []core.Bucket) (int, error) {
	var changed []core.Bucket
	for _, b := range buckets {
		cur, err := s.ledger.store.GetBucket(ctx, b.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, fmt.Errorf("bucket %s: %w", b.ID, err)
			}
			return 0, err
		}
		if maps.Equal(cur.Tags, b.Tags) {
			continue
		}
		cur.Tags = maps.Clone(b.Tags)
		changed = append(changed, cur)
	}
	for _, b := range changed {
		if err := s.ledger.store.PutBucket(ctx, b); err != nil {
			return 0, fmt.Errorf("save tags for %s: %w", b.Name, err)
		}
	}
	if len(changed) > 0 {
		slog.InfoContext(ctx, "Bucket tags saved", "count", len(changed))
		ev := amqp.NewLedgerEvent(amqp.EventBucketsSaved)
		ev.Count = len(changed)
		publish(ctx, s.ledger.publisher, ev)
		s.ledger.Invalidate()
	}
	return len(changed), nil
}
