// Package advisory integrates the external advisory (AI) service. The
// service is strictly additive: it recommends, screens and scores, but
// its availability never gates a core engine operation. Integration is a
// strategy selected once at construction: a live HTTP client or the
// disabled fallback. Both satisfy Gateway, so callers never branch on
// whether advisory is enabled.
package advisory

import (
	"context"
	"time"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

// Assessment is the advisory verdict on a validator at registration.
type Assessment struct {
	RequestID       string    `json:"requestId"`
	CapabilityScore uint32    `json:"capabilityScore"`
	Approved        bool      `json:"approved"`
	EvidenceHash    string    `json:"evidenceHash"`
	Timestamp       time.Time `json:"timestamp"`
}

// Advice is the advisory recommendation consumed at round-open time. It
// is ephemeral: it may adjust a single round, never the policy defaults.
type Advice struct {
	RequestID            string    `json:"requestId"`
	RecommendedThreshold uint32    `json:"recommendedThreshold"`
	NetworkHealth        uint32    `json:"networkHealth"`
	EvidenceHash         string    `json:"evidenceHash"`
	Timestamp            time.Time `json:"timestamp"`
}

// VoteScreen is the advisory verdict on a single vote, resolved before
// the vote is committed.
type VoteScreen struct {
	RequestID  string `json:"requestId"`
	Accept     bool   `json:"accept"`
	Reason     string `json:"reason"`
	FraudScore uint32 `json:"fraudScore"`
}

// FraudReport is a read-only fraud score for operators.
type FraudReport struct {
	RequestID    string    `json:"requestId"`
	Score        uint32    `json:"score"`
	EvidenceHash string    `json:"evidenceHash"`
	Timestamp    time.Time `json:"timestamp"`
}

// Gateway is the narrow interface to the advisory collaborator. Every
// implementation must resolve within a bounded time and return a usable
// value: unavailability is recovered internally and never surfaces as an
// error to the engine.
type Gateway interface {
	// AssessValidator evaluates a registration candidate.
	AssessValidator(ctx context.Context, id types.ValidatorID, name, capabilityFlag, evidence string) Assessment

	// RecommendThreshold may suggest a per-round threshold. fallback is
	// the policy default; implementations return it when they have no
	// better answer.
	RecommendThreshold(ctx context.Context, class types.ProposalClass, fallback uint32) Advice

	// ScreenVote may reject a vote before it is recorded. Unreachable
	// advisory screens open (accept), explicit rejection screens closed.
	ScreenVote(ctx context.Context, round types.RoundID, voter types.ValidatorID, voted types.Hash, evidence string) VoteScreen

	// ScoreFraud returns the advisory fraud score for a validator.
	ScoreFraud(ctx context.Context, id types.ValidatorID) FraudReport
}
