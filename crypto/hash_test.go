package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

func TestHash256Deterministic(t *testing.T) {
	a := Hash256([]byte("proposal"))
	b := Hash256([]byte("proposal"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, Hash256([]byte("other")))
	require.False(t, a.IsZero())
}

func TestHashConcat(t *testing.T) {
	require.Equal(t, Hash256([]byte("ab")), HashConcat([]byte("a"), []byte("b")))
}

func TestListContentID(t *testing.T) {
	members := []types.ValidatorID{"alice", "bob", "carol"}

	id := ListContentID("pub", "main", members, 1)
	require.Equal(t, id, ListContentID("pub", "main", members, 1))

	// Every input participates in the id.
	require.NotEqual(t, id, ListContentID("other", "main", members, 1))
	require.NotEqual(t, id, ListContentID("pub", "alt", members, 1))
	require.NotEqual(t, id, ListContentID("pub", "main", members[:2], 1))
	require.NotEqual(t, id, ListContentID("pub", "main", members, 2))
}

func TestListContentIDFieldSeparation(t *testing.T) {
	// Field boundaries must not be ambiguous under concatenation.
	a := ListContentID("ab", "c", []types.ValidatorID{"x"}, 1)
	b := ListContentID("a", "bc", []types.ValidatorID{"x"}, 1)
	require.NotEqual(t, a, b)

	c := ListContentID("p", "n", []types.ValidatorID{"xy", "z"}, 1)
	d := ListContentID("p", "n", []types.ValidatorID{"x", "yz"}, 1)
	require.NotEqual(t, c, d)
}
