package types

import "time"

// Validator is a registered validating party. Validators are never
// deleted, only deactivated, so historical votes stay attributable.
type Validator struct {
	ID             ValidatorID `json:"id"`
	Name           string      `json:"name"`
	CapabilityFlag string      `json:"capabilityFlag"`

	// TrustScore and CapabilityScore are 0-100. TrustScore starts at the
	// neutral baseline and is adjusted by admin or advisory assessment.
	TrustScore      uint32 `json:"trustScore"`
	CapabilityScore uint32 `json:"capabilityScore"`

	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registeredAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`

	// Liveness bookkeeping. RoundsEligible counts eligibility snapshots
	// that included this validator, RoundsVoted counts accepted votes.
	RoundsEligible uint64 `json:"roundsEligible"`
	RoundsVoted    uint64 `json:"roundsVoted"`

	// UptimePct is the vote rate over the recent eligibility window,
	// maintained by the registry.
	UptimePct uint32 `json:"uptimePct"`
}

// ParticipationPct returns the all-time vote rate, truncated.
func (v *Validator) ParticipationPct() uint32 {
	if v.RoundsEligible == 0 {
		return 0
	}
	return uint32(v.RoundsVoted * 100 / v.RoundsEligible)
}

// ScoreInRange reports whether a trust or capability score is valid.
func ScoreInRange(score uint32) bool {
	return score <= ScoreMax
}
