package consensus

import (
	"sync"
	"time"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

// round is the mutable per-round state. Each round has its own lock:
// every submitVote is a single indivisible read-tally-compare-write
// under it, and different rounds proceed fully in parallel.
type round struct {
	mu sync.Mutex

	id           types.RoundID
	proposalHash types.Hash
	class        types.ProposalClass
	openedAt     time.Time
	deadline     time.Time

	// threshold and eligibility are locked in at open time and frozen
	// from then on.
	threshold     uint32
	eligible      map[types.ValidatorID]struct{}
	eligibleCount uint32

	// votes records every accepted vote, including dissent. Only votes
	// for proposalHash count toward tally.
	votes map[types.ValidatorID]types.Hash
	tally uint32

	finalized bool
	expired   bool
	closedAt  time.Time
}

// percentage returns the current agreement percentage, truncating.
func (r *round) percentage() uint32 {
	if r.eligibleCount == 0 {
		return 0
	}
	return r.tally * 100 / r.eligibleCount
}

// terminal reports whether the round can no longer accept votes.
// Callers hold r.mu.
func (r *round) terminal() bool {
	return r.finalized || r.expired
}

// expireIfDue latches the expired flag once the deadline has passed.
// Expiry is lazy: there are no timers, the transition is observed on
// read or on the next vote attempt. Callers hold r.mu.
func (r *round) expireIfDue(now time.Time) bool {
	if r.terminal() {
		return false
	}
	if now.After(r.deadline) {
		r.expired = true
		r.closedAt = now
		return true
	}
	return false
}

// outcome snapshots the round into its persistent record. Callers hold
// r.mu.
func (r *round) outcome() *types.RoundOutcome {
	return &types.RoundOutcome{
		ID:            r.id,
		ProposalHash:  r.proposalHash,
		Class:         r.class,
		Threshold:     r.threshold,
		EligibleCount: r.eligibleCount,
		Tally:         r.tally,
		Finalized:     r.finalized,
		Expired:       r.expired,
		OpenedAt:      r.openedAt,
		Deadline:      r.deadline,
		ClosedAt:      r.closedAt,
	}
}

// RoundStatus is the read-only view of a round.
type RoundStatus struct {
	ID            types.RoundID       `json:"id"`
	ProposalHash  types.Hash          `json:"proposalHash"`
	Class         types.ProposalClass `json:"class"`
	IsOpen        bool                `json:"isOpen"`
	IsFinalized   bool                `json:"isFinalized"`
	IsExpired     bool                `json:"isExpired"`
	Tally         uint32              `json:"tally"`
	EligibleCount uint32              `json:"eligibleCount"`
	Threshold     uint32              `json:"threshold"`
	Percentage    uint32              `json:"percentage"`
	OpenedAt      time.Time           `json:"openedAt"`
	Deadline      time.Time           `json:"deadline"`
}

// status snapshots the round. Callers hold r.mu.
func (r *round) status() RoundStatus {
	return RoundStatus{
		ID:            r.id,
		ProposalHash:  r.proposalHash,
		Class:         r.class,
		IsOpen:        !r.terminal(),
		IsFinalized:   r.finalized,
		IsExpired:     r.expired,
		Tally:         r.tally,
		EligibleCount: r.eligibleCount,
		Threshold:     r.threshold,
		Percentage:    r.percentage(),
		OpenedAt:      r.openedAt,
		Deadline:      r.deadline,
	}
}
