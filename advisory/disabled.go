package advisory

import (
	"context"
	"time"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

// Disabled is the fallback strategy used when no advisory service is
// configured. Every call returns the neutral default immediately.
type Disabled struct {
	// DefaultCapability is assigned to every assessed validator.
	DefaultCapability uint32
}

// NewDisabled returns a disabled gateway with the given conservative
// capability default.
func NewDisabled(defaultCapability uint32) *Disabled {
	return &Disabled{DefaultCapability: defaultCapability}
}

var _ Gateway = (*Disabled)(nil)

func (d *Disabled) AssessValidator(_ context.Context, _ types.ValidatorID, _, _, _ string) Assessment {
	return Assessment{
		CapabilityScore: d.DefaultCapability,
		Approved:        true,
		Timestamp:       time.Now(),
	}
}

func (d *Disabled) RecommendThreshold(_ context.Context, _ types.ProposalClass, fallback uint32) Advice {
	return Advice{
		RecommendedThreshold: fallback,
		Timestamp:            time.Now(),
	}
}

func (d *Disabled) ScreenVote(_ context.Context, _ types.RoundID, _ types.ValidatorID, _ types.Hash, _ string) VoteScreen {
	return VoteScreen{Accept: true}
}

func (d *Disabled) ScoreFraud(_ context.Context, _ types.ValidatorID) FraudReport {
	return FraudReport{Timestamp: time.Now()}
}
