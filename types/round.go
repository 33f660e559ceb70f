package types

import "time"

// RoundOutcome is the persisted record of a consensus round. Open rounds
// live only in memory; the outcome is written once the round reaches a
// terminal state (finalized or expired).
type RoundOutcome struct {
	ID            RoundID       `json:"id"`
	ProposalHash  Hash          `json:"proposalHash"`
	Class         ProposalClass `json:"class"`
	Threshold     uint32        `json:"threshold"`
	EligibleCount uint32        `json:"eligibleCount"`
	Tally         uint32        `json:"tally"`
	Finalized     bool          `json:"finalized"`
	Expired       bool          `json:"expired"`
	OpenedAt      time.Time     `json:"openedAt"`
	Deadline      time.Time     `json:"deadline"`
	ClosedAt      time.Time     `json:"closedAt"`
}

// Percentage returns the agreement percentage, integer-truncating.
// Truncation is deliberate: the threshold must be strictly met or
// exceeded, never reached by rounding up.
func (o *RoundOutcome) Percentage() uint32 {
	if o.EligibleCount == 0 {
		return 0
	}
	return o.Tally * 100 / o.EligibleCount
}
