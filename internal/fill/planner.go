package fill

import (
	"errors"
	"fmt"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
)

var (
	ErrNoUnallocated = errors.New("no [Unallocated] envelope")
	ErrNotEnvelope   = errors.New("bucket is not an envelope")
)

// Mode selects which of the two computed proposals a plan uses.
type Mode string

const (
	ModePeriodic Mode = "periodic"
	ModeZeroOut  Mode = "zero"
)

// Proposal is the amount to move into one envelope. Callers may overwrite
// Amount with any value; it is used as given.
type Proposal struct {
	EnvelopeID string       `json:"envelope_id"`
	Name       string       `json:"name"`
	Amount     core.Pennies `json:"amount"`
	Due        bool         `json:"due"`
}

// Plan is a full set of proposals plus what would remain in Unallocated.
type Plan struct {
	UnallocatedID string       `json:"unallocated_id"`
	Unallocated   core.Pennies `json:"unallocated"`
	Proposals     []Proposal   `json:"proposals"`
	Remaining     core.Pennies `json:"remaining"`
}

// Planner computes fill proposals.
type Planner struct {
	lookup func(core.Interval) (IntervalStrategy, error)
}

func NewPlanner() *Planner {
	return &Planner{lookup: GetStrategy}
}

// Propose returns one cycle's contribution for env. Envelopes without an
// interval contribute nothing.
func (p *Planner) Propose(env core.Bucket) (core.Pennies, error) {
	if env.Type != core.Envelope {
		return 0, fmt.Errorf("%w: %s", ErrNotEnvelope, env.Name)
	}
	if env.Extra.Interval == "" {
		return 0, nil
	}
	s, err := p.lookup(env.Extra.Interval)
	if err != nil {
		return 0, err
	}
	return s.Contribution(env.Extra), nil
}

// IsDue reports whether env is due for a fill on now given its last fill.
func (p *Planner) IsDue(env core.Bucket, lastFill, now core.Date) (bool, error) {
	if env.Extra.Interval == "" {
		return false, nil
	}
	s, err := p.lookup(env.Extra.Interval)
	if err != nil {
		return false, err
	}
	return s.IsDue(lastFill, now), nil
}

// ZeroOut returns the fill that empties an envelope back into Unallocated.
func ZeroOut(balance core.Pennies) core.Pennies {
	return -balance
}

// FindUnallocated returns the reserved source envelope.
func FindUnallocated(buckets []core.Bucket) (core.Bucket, error) {
	for _, b := range buckets {
		if b.IsUnallocated() {
			return b, nil
		}
	}
	return core.Bucket{}, ErrNoUnallocated
}

// Build proposes an amount for every envelope in balances except
// Unallocated. lastFills maps envelope IDs to their latest fill date and
// may be nil.
func (p *Planner) Build(balances []ledger.Balance, mode Mode, lastFills map[string]core.Date, today core.Date) (Plan, error) {
	var plan Plan
	found := false
	for _, b := range balances {
		if b.Type != core.Envelope {
			continue
		}
		env := core.Bucket{ID: b.ID, Name: b.Name, Type: b.Type, Extra: b.Extra}
		if env.IsUnallocated() {
			plan.UnallocatedID = b.ID
			plan.Unallocated = b.Balance
			found = true
			continue
		}

		prop := Proposal{EnvelopeID: b.ID, Name: b.Name}
		switch mode {
		case ModeZeroOut:
			prop.Amount = ZeroOut(b.Balance)
		case ModePeriodic:
			amount, err := p.Propose(env)
			if err != nil {
				return Plan{}, fmt.Errorf("propose %s: %w", b.Name, err)
			}
			prop.Amount = amount
		default:
			return Plan{}, fmt.Errorf("unknown fill mode %q", mode)
		}
		due, err := p.IsDue(env, lastFills[b.ID], today)
		if err != nil {
			return Plan{}, fmt.Errorf("check %s: %w", b.Name, err)
		}
		prop.Due = due
		plan.Proposals = append(plan.Proposals, prop)
	}
	if !found {
		return Plan{}, ErrNoUnallocated
	}
	plan.Remaining = Remaining(plan.Unallocated, plan.Proposals)
	return plan, nil
}

// Remaining is what Unallocated would hold after applying proposals.
func Remaining(unallocated core.Pennies, proposals []Proposal) core.Pennies {
	for _, p := range proposals {
		unallocated -= p.Amount
	}
	return unallocated
}

// Batch turns proposals into fills sharing txnID. Zero proposals are
// dropped.
func Batch(date core.Date, unallocatedID, txnID string, proposals []Proposal, gen core.IDGenerator) []core.Fill {
	var fills []core.Fill
	for _, p := range proposals {
		if p.Amount == 0 {
			continue
		}
		f := core.Fill{
			Header: core.Header{Date: date},
			FromID: unallocatedID,
			ToID:   p.EnvelopeID,
			Amount: p.Amount,
			TxnID:  txnID,
		}
		fills = append(fills, core.WithID(f, gen).(core.Fill))
	}
	return fills
}

// FromFills rebuilds proposals from a saved group so it can be edited.
func FromFills(fills []core.Fill, names map[string]string) []Proposal {
	out := make([]Proposal, 0, len(fills))
	for _, f := range fills {
		out = append(out, Proposal{EnvelopeID: f.ToID, Name: names[f.ToID], Amount: f.Amount})
	}
	return out
}
