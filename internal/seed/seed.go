// Package seed loads a YAML catalogue of accounts and envelopes into a
// store.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"envelopes/internal/core"
	"envelopes/internal/log"
	"envelopes/internal/store"
)

// Catalogue is the file format:
//
//	accounts:
//	  - name: Checking
//	envelopes:
//	  - name: Groceries
//	    target: "40.00"
//	    interval: weekly
//	    tags: {group: home}
type Catalogue struct {
	Accounts  []AccountEntry  `yaml:"accounts"`
	Envelopes []EnvelopeEntry `yaml:"envelopes"`
}

type AccountEntry struct {
	ID   string            `yaml:"id,omitempty"`
	Name string            `yaml:"name"`
	Tags map[string]string `yaml:"tags,omitempty"`
}

type EnvelopeEntry struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name"`
	// Target is a decimal amount such as "40.00".
	Target   string            `yaml:"target,omitempty"`
	Interval string            `yaml:"interval,omitempty"`
	Due      string            `yaml:"due,omitempty"`
	Tags     map[string]string `yaml:"tags,omitempty"`
}

// Parse decodes a catalogue. Unknown keys are rejected.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}
	return &c, nil
}

func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue file: %w", err)
	}
	return Parse(data)
}

// Buckets converts the catalogue into validated buckets. Missing IDs are
// generated and an [Unallocated] envelope is added when absent.
func (c *Catalogue) Buckets(gen core.IDGenerator) ([]core.Bucket, error) {
	out := make([]core.Bucket, 0, len(c.Accounts)+len(c.Envelopes)+1)
	seen := make(map[string]bool)
	add := func(b core.Bucket) error {
		b.Name = strings.TrimSpace(b.Name)
		if b.ID == "" {
			b.ID = string(b.Type) + "/" + gen.NewID()
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%s %q: %w", b.Type, b.Name, err)
		}
		key := string(b.Type) + "\x00" + b.Name
		if seen[key] {
			return fmt.Errorf("%s %q listed twice", b.Type, b.Name)
		}
		seen[key] = true
		out = append(out, b)
		return nil
	}

	for _, a := range c.Accounts {
		if err := add(core.Bucket{ID: a.ID, Name: a.Name, Type: core.Account, Tags: a.Tags}); err != nil {
			return nil, err
		}
	}
	for _, e := range c.Envelopes {
		extra, err := e.extra()
		if err != nil {
			return nil, fmt.Errorf("envelope %q: %w", e.Name, err)
		}
		if err := add(core.Bucket{ID: e.ID, Name: e.Name, Type: core.Envelope, Extra: extra, Tags: e.Tags}); err != nil {
			return nil, err
		}
	}
	if !seen[string(core.Envelope)+"\x00"+core.UnallocatedName] {
		if err := add(core.Bucket{Name: core.UnallocatedName, Type: core.Envelope}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e EnvelopeEntry) extra() (core.EnvelopeExtra, error) {
	var x core.EnvelopeExtra
	if e.Target != "" {
		p, err := core.ParseDecimal(e.Target)
		if err != nil {
			return x, err
		}
		x.Target = p
	}
	if e.Interval != "" {
		x.Interval = core.Interval(strings.ToLower(strings.TrimSpace(e.Interval)))
		if err := x.Interval.Validate(); err != nil {
			return x, err
		}
	}
	if e.Due != "" {
		d, err := core.ParseDate(e.Due)
		if err != nil {
			return x, err
		}
		x.Due = &d
	}
	return x, nil
}

// Result counts what Apply wrote.
type Result struct {
	Created int
	Updated int
}

// Apply upserts buckets into st. A bucket whose type and name already exist
// keeps the stored ID so recorded transactions stay attached to it.
func Apply(ctx context.Context, st store.Store, buckets []core.Bucket) (Result, error) {
	var res Result
	existing, err := st.ListBuckets(ctx)
	if err != nil {
		return res, fmt.Errorf("list buckets: %w", err)
	}
	byName := make(map[string]core.Bucket, len(existing))
	for _, b := range existing {
		byName[string(b.Type)+"\x00"+b.Name] = b
	}

	for _, b := range buckets {
		if cur, ok := byName[string(b.Type)+"\x00"+b.Name]; ok {
			b.ID = cur.ID
			if b.Tags == nil {
				b.Tags = cur.Tags
			}
			res.Updated++
		} else {
			res.Created++
		}
		if err := st.PutBucket(ctx, b); err != nil {
			return res, fmt.Errorf("put bucket %s: %w", b.Name, err)
		}
	}
	slog.InfoContext(ctx, "Catalogue applied",
		log.FieldComponent, log.ComponentStorage,
		"created", res.Created,
		"updated", res.Updated)
	return res, nil
}
