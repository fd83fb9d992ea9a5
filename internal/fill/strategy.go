// Package fill plans periodic contributions from the Unallocated envelope
// into budget envelopes.
//
// Each interval has its own strategy. A strategy reports how much one cycle
// contributes and whether a cycle has elapsed since the last fill.
package fill

import (
	"fmt"
	"sync"

	"envelopes/internal/core"
)

// IntervalStrategy encapsulates the fill rules for one interval.
type IntervalStrategy interface {
	// Contribution returns the amount one fill cycle moves into the envelope.
	Contribution(extra core.EnvelopeExtra) core.Pennies
	// IsDue reports whether a new cycle started since lastFill. A zero
	// lastFill means the envelope was never filled.
	IsDue(lastFill, now core.Date) bool
}

// Targets are stored as the per-cycle amount, so every strategy returns the
// target as configured.
type unscaled struct{}

func (unscaled) Contribution(extra core.EnvelopeExtra) core.Pennies { return extra.Target }

// TotalStrategy fills once toward a one-off goal.
type TotalStrategy struct{ unscaled }

// IsDue is true until the first fill.
func (TotalStrategy) IsDue(lastFill, _ core.Date) bool {
	return lastFill.IsZero()
}

// DaysStrategy fills every Days days.
type DaysStrategy struct {
	unscaled
	Days int
}

func (s DaysStrategy) IsDue(lastFill, now core.Date) bool {
	if lastFill.IsZero() {
		return true
	}
	daysSince := now.Sub(lastFill.Time).Hours() / 24
	return daysSince >= float64(s.Days)
}

// MonthsStrategy fills once every Months calendar months.
type MonthsStrategy struct {
	unscaled
	Months int
}

func (s MonthsStrategy) IsDue(lastFill, now core.Date) bool {
	if lastFill.IsZero() {
		return true
	}
	elapsed := (now.Year()-lastFill.Year())*12 + int(now.Month()) - int(lastFill.Month())
	return elapsed >= s.Months
}

var (
	strategiesMu sync.RWMutex
	strategies   = map[core.Interval]IntervalStrategy{
		core.Total:     TotalStrategy{},
		core.Weekly:    DaysStrategy{Days: 7},
		core.Biweekly:  DaysStrategy{Days: 14},
		core.Monthly:   MonthsStrategy{Months: 1},
		core.Bimonthly: MonthsStrategy{Months: 2},
		core.Annually:  MonthsStrategy{Months: 12},
	}
)

// GetStrategy returns the strategy registered for interval.
func GetStrategy(interval core.Interval) (IntervalStrategy, error) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := strategies[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidInterval, string(interval))
	}
	return s, nil
}

// RegisterStrategy installs or replaces the strategy for interval.
func RegisterStrategy(interval core.Interval, s IntervalStrategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	strategies[interval] = s
}
