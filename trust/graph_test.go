package trust

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/MKWorldWide/gamedin-consensus/advisory"
	"github.com/MKWorldWide/gamedin-consensus/registry"
	"github.com/MKWorldWide/gamedin-consensus/types"
)

func newGraph(t *testing.T, ids ...types.ValidatorID) (*Graph, *registry.Registry) {
	t.Helper()
	cfg := types.DefaultConfig()
	reg, err := registry.New(cfg, advisory.NewDisabled(cfg.DefaultCapability), zerolog.Nop())
	require.NoError(t, err)
	for _, id := range ids {
		_, err := reg.Register(context.Background(), id, "", "", "")
		require.NoError(t, err)
	}
	g, err := NewGraph(reg, zerolog.Nop())
	require.NoError(t, err)
	return g, reg
}

func TestTrust(t *testing.T) {
	g, _ := newGraph(t, "alice", "bob")

	require.NoError(t, g.Trust("alice", "bob"))
	require.True(t, g.Trusts("alice", "bob"))
	require.False(t, g.Trusts("bob", "alice"), "trust is directed")
	require.Equal(t, 1, g.EdgeCount())

	// Re-adding an existing edge is a no-op.
	require.NoError(t, g.Trust("alice", "bob"))
	require.Equal(t, 1, g.EdgeCount())
}

func TestTrustRejectsSelf(t *testing.T) {
	g, _ := newGraph(t, "alice")
	require.ErrorIs(t, g.Trust("alice", "alice"), ErrSelfTrust)
}

func TestTrustRejectsUnknownEndpoints(t *testing.T) {
	g, _ := newGraph(t, "alice")
	require.ErrorIs(t, g.Trust("alice", "ghost"), ErrUnknownValidator)
	require.ErrorIs(t, g.Trust("ghost", "alice"), ErrUnknownValidator)
}

func TestTrustRejectsInactiveEndpoints(t *testing.T) {
	g, reg := newGraph(t, "alice", "bob")
	require.NoError(t, reg.Deactivate("bob"))

	require.ErrorIs(t, g.Trust("alice", "bob"), ErrInactiveValidator)
	require.ErrorIs(t, g.Trust("bob", "alice"), ErrInactiveValidator)
}

func TestDeactivationPreservesExistingEdges(t *testing.T) {
	g, reg := newGraph(t, "alice", "bob")
	require.NoError(t, g.Trust("alice", "bob"))

	require.NoError(t, reg.Deactivate("bob"))
	require.True(t, g.Trusts("alice", "bob"), "existing edges survive deactivation")
}

func TestUntrustIdempotent(t *testing.T) {
	g, _ := newGraph(t, "alice", "bob")
	require.NoError(t, g.Trust("alice", "bob"))

	require.NoError(t, g.Untrust("alice", "bob"))
	require.False(t, g.Trusts("alice", "bob"))
	require.Equal(t, 0, g.EdgeCount())

	// Removing an absent edge is not an error.
	require.NoError(t, g.Untrust("alice", "bob"))
	require.NoError(t, g.Untrust("ghost", "phantom"))
}

func TestTrustersOfAndTrustedBy(t *testing.T) {
	g, _ := newGraph(t, "alice", "bob", "carol", "dave")

	require.NoError(t, g.Trust("bob", "alice"))
	require.NoError(t, g.Trust("carol", "alice"))
	require.NoError(t, g.Trust("dave", "alice"))
	require.NoError(t, g.Trust("alice", "bob"))

	require.Equal(t, []types.ValidatorID{"bob", "carol", "dave"}, g.TrustersOf("alice"))
	require.Equal(t, []types.ValidatorID{"bob"}, g.TrustedBy("alice"))
	require.Empty(t, g.TrustersOf("dave"))

	require.NoError(t, g.Untrust("carol", "alice"))
	require.Equal(t, []types.ValidatorID{"bob", "dave"}, g.TrustersOf("alice"))
}
