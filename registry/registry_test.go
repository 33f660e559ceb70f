package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/MKWorldWide/gamedin-consensus/advisory"
	"github.com/MKWorldWide/gamedin-consensus/types"
)

// scoringGateway assigns a fixed capability score on assessment.
type scoringGateway struct {
	advisory.Disabled
	score    uint32
	approved bool
}

func (g *scoringGateway) AssessValidator(_ context.Context, _ types.ValidatorID, _, _, _ string) advisory.Assessment {
	return advisory.Assessment{CapabilityScore: g.score, Approved: g.approved}
}

func newRegistry(t *testing.T, cfg types.Config, gateway advisory.Gateway) *Registry {
	t.Helper()
	if gateway == nil {
		gateway = advisory.NewDisabled(cfg.DefaultCapability)
	}
	r, err := New(cfg, gateway, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestRegister(t *testing.T) {
	cfg := types.DefaultConfig()
	r := newRegistry(t, cfg, nil)

	v, err := r.Register(context.Background(), "alice", "alice-node", "gaming-optimized", "")
	require.NoError(t, err)
	require.Equal(t, types.ValidatorID("alice"), v.ID)
	require.True(t, v.Active)
	require.Equal(t, cfg.NeutralTrust, v.TrustScore)
	require.Equal(t, cfg.DefaultCapability, v.CapabilityScore)
	require.False(t, v.RegisteredAt.IsZero())
	require.Equal(t, 1, r.Count())
	require.True(t, r.IsActive("alice"))
}

func TestRegisterDuplicateID(t *testing.T) {
	r := newRegistry(t, types.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := r.Register(ctx, "alice", "first", "", "")
	require.NoError(t, err)
	_, err = r.Register(ctx, "alice", "second", "", "")
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.Equal(t, 1, r.Count())
}

func TestRegisterBadID(t *testing.T) {
	r := newRegistry(t, types.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := r.Register(ctx, "", "empty", "", "")
	require.ErrorIs(t, err, ErrBadID)

	long := types.ValidatorID(strings.Repeat("x", types.MaxValidatorIDLen+1))
	_, err = r.Register(ctx, long, "too long", "", "")
	require.ErrorIs(t, err, ErrBadID)
}

func TestRegisterCapacity(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.MaxValidators = 2
	r := newRegistry(t, cfg, nil)
	ctx := context.Background()

	_, err := r.Register(ctx, "a", "", "", "")
	require.NoError(t, err)
	_, err = r.Register(ctx, "b", "", "", "")
	require.NoError(t, err)
	_, err = r.Register(ctx, "c", "", "", "")
	require.ErrorIs(t, err, ErrRegistryFull)
}

func TestRegisterLowCapability(t *testing.T) {
	cfg := types.DefaultConfig()

	// Score below the floor is refused even when approved.
	r := newRegistry(t, cfg, &scoringGateway{score: cfg.MinCapability - 1, approved: true})
	_, err := r.Register(context.Background(), "weak", "", "", "")
	require.ErrorIs(t, err, ErrLowCapability)
	require.Equal(t, 0, r.Count())

	// Explicit rejection is refused regardless of score.
	r = newRegistry(t, cfg, &scoringGateway{score: 99, approved: false})
	_, err = r.Register(context.Background(), "rejected", "", "", "")
	require.ErrorIs(t, err, ErrLowCapability)

	// Exactly at the floor is admitted.
	r = newRegistry(t, cfg, &scoringGateway{score: cfg.MinCapability, approved: true})
	v, err := r.Register(context.Background(), "floor", "", "", "")
	require.NoError(t, err)
	require.Equal(t, cfg.MinCapability, v.CapabilityScore)
}

func TestLifecycle(t *testing.T) {
	r := newRegistry(t, types.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := r.Register(ctx, "alice", "", "", "")
	require.NoError(t, err)

	require.NoError(t, r.Deactivate("alice"))
	require.False(t, r.IsActive("alice"))
	require.Equal(t, 0, r.ActiveCount())
	require.Equal(t, 1, r.Count(), "deactivation keeps the record")

	// Idempotent.
	require.NoError(t, r.Deactivate("alice"))

	require.NoError(t, r.Reactivate("alice"))
	require.True(t, r.IsActive("alice"))

	require.ErrorIs(t, r.Deactivate("ghost"), ErrNotFound)
	require.ErrorIs(t, r.Reactivate("ghost"), ErrNotFound)
}

func TestActiveIDsSortedAndFiltered(t *testing.T) {
	r := newRegistry(t, types.DefaultConfig(), nil)
	ctx := context.Background()

	for _, id := range []types.ValidatorID{"carol", "alice", "bob"} {
		_, err := r.Register(ctx, id, "", "", "")
		require.NoError(t, err)
	}
	require.NoError(t, r.Deactivate("bob"))

	require.Equal(t, []types.ValidatorID{"alice", "carol"}, r.ActiveIDs())
	require.Equal(t, 2, r.ActiveCount())
}

func TestGetReturnsCopy(t *testing.T) {
	r := newRegistry(t, types.DefaultConfig(), nil)
	_, err := r.Register(context.Background(), "alice", "", "", "")
	require.NoError(t, err)

	v, err := r.Get("alice")
	require.NoError(t, err)
	v.TrustScore = 0

	again, err := r.Get("alice")
	require.NoError(t, err)
	require.Equal(t, uint32(types.NeutralTrust), again.TrustScore)

	_, err = r.Get("ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScoreBounds(t *testing.T) {
	r := newRegistry(t, types.DefaultConfig(), nil)
	_, err := r.Register(context.Background(), "alice", "", "", "")
	require.NoError(t, err)

	require.NoError(t, r.SetTrustScore("alice", 0))
	require.NoError(t, r.SetTrustScore("alice", types.ScoreMax))
	require.ErrorIs(t, r.SetTrustScore("alice", types.ScoreMax+1), ErrOutOfBounds)
	require.ErrorIs(t, r.SetCapabilityScore("alice", 200), ErrOutOfBounds)
	require.ErrorIs(t, r.SetTrustScore("ghost", 50), ErrNotFound)

	require.NoError(t, r.SetCapabilityScore("alice", 80))
	v, err := r.Get("alice")
	require.NoError(t, err)
	require.Equal(t, uint32(80), v.CapabilityScore)
	require.Equal(t, uint32(types.ScoreMax), v.TrustScore)
}

func TestParticipationBookkeeping(t *testing.T) {
	r := newRegistry(t, types.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := r.Register(ctx, "alice", "", "", "")
	require.NoError(t, err)
	ids := []types.ValidatorID{"alice"}

	// Eligible for four rounds, votes in three: 75% uptime.
	for round := types.RoundID(1); round <= 4; round++ {
		r.MarkEligible(ids, round)
		if round != 2 {
			r.RecordVote("alice", round)
		}
	}

	v, err := r.Get("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(4), v.RoundsEligible)
	require.Equal(t, uint64(3), v.RoundsVoted)
	require.Equal(t, uint32(75), v.UptimePct)
	require.Equal(t, uint32(75), v.ParticipationPct())
}

func TestUptimeWindowRolls(t *testing.T) {
	cfg := types.DefaultConfig()
	r := newRegistry(t, cfg, nil)
	ctx := context.Background()

	_, err := r.Register(ctx, "alice", "", "", "")
	require.NoError(t, err)
	ids := []types.ValidatorID{"alice"}

	// Miss the first round, then vote in a full window of rounds; the
	// miss falls out of the rolling window.
	r.MarkEligible(ids, 1)
	for i := 0; i < cfg.OnlineWindow; i++ {
		round := types.RoundID(2 + i)
		r.MarkEligible(ids, round)
		r.RecordVote("alice", round)
	}

	v, err := r.Get("alice")
	require.NoError(t, err)
	require.Equal(t, uint32(100), v.UptimePct)
	require.Equal(t, uint64(cfg.OnlineWindow+1), v.RoundsEligible, "lifetime counter keeps every round")
}
