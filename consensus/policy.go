// Package consensus implements the trust-weighted, class-aware consensus
// round state machine: open rounds per proposal, one vote per validator,
// finalize at threshold or expire at deadline.
package consensus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

// ErrOutOfBounds is returned when a threshold or deadline override falls
// outside the safe range.
var ErrOutOfBounds = errors.New("policy value out of bounds")

// Policy maps a proposal class to its required agreement percentage and
// round duration. Thresholds are mutable only within [51, 90]: never
// below simple majority, never above the liveness ceiling. Tables are
// dense arrays indexed by class so every class is covered at
// construction; there is no runtime default fallback.
type Policy struct {
	mu         sync.RWMutex
	thresholds [types.NumClasses]uint32
	ticks      [types.NumClasses]uint32
	tick       time.Duration
}

// NewPolicy seeds a policy from the per-class defaults.
func NewPolicy(cfg types.Config) *Policy {
	p := &Policy{tick: cfg.RoundTick}
	for c := types.ProposalClass(0); c < types.NumClasses; c++ {
		p.thresholds[c] = c.DefaultThreshold()
		p.ticks[c] = c.DefaultDeadlineTicks()
	}
	return p
}

// Threshold returns the required agreement percentage for a class.
func (p *Policy) Threshold(class types.ProposalClass) uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.thresholds[class]
}

// SetThreshold overrides a class threshold. Administrative action only;
// advisory recommendations never reach this.
func (p *Policy) SetThreshold(class types.ProposalClass, pct uint32) error {
	if !class.Valid() {
		return fmt.Errorf("%w: invalid class", ErrOutOfBounds)
	}
	if pct < types.ThresholdMin || pct > types.ThresholdMax {
		return fmt.Errorf("%w: threshold %d outside [%d, %d]", ErrOutOfBounds, pct, types.ThresholdMin, types.ThresholdMax)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.thresholds[class] = pct
	return nil
}

// Duration returns the round duration for a class.
func (p *Policy) Duration(class types.ProposalClass) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Duration(p.ticks[class]) * p.tick
}

// SetDeadlineTicks overrides a class round duration, in ticks.
func (p *Policy) SetDeadlineTicks(class types.ProposalClass, ticks uint32) error {
	if !class.Valid() {
		return fmt.Errorf("%w: invalid class", ErrOutOfBounds)
	}
	if ticks < types.MinDeadlineTicks || ticks > types.MaxDeadlineTicks {
		return fmt.Errorf("%w: %d ticks outside [%d, %d]", ErrOutOfBounds, ticks, types.MinDeadlineTicks, types.MaxDeadlineTicks)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks[class] = ticks
	return nil
}

// InThresholdBounds reports whether pct is an acceptable threshold.
// Used to vet advisory recommendations before adopting them for a round.
func InThresholdBounds(pct uint32) bool {
	return pct >= types.ThresholdMin && pct <= types.ThresholdMax
}
