package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatorIDValid(t *testing.T) {
	require.False(t, ValidatorID("").Valid())
	require.True(t, ValidatorID("alice").Valid())
	require.True(t, ValidatorID(strings.Repeat("x", MaxValidatorIDLen)).Valid())
	require.False(t, ValidatorID(strings.Repeat("x", MaxValidatorIDLen+1)).Valid())
}

func TestHash(t *testing.T) {
	require.True(t, EmptyHash.IsZero())
	require.False(t, Hash{1}.IsZero())

	h := Hash{0xde, 0xad, 0xbe, 0xef}
	require.Len(t, h.String(), 64)
	require.Equal(t, "deadbeef...", h.Short())

	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestHashJSONisHex(t *testing.T) {
	h := Hash{0xde, 0xad}
	raw, err := json.Marshal(h)
	require.NoError(t, err)
	require.Equal(t, `"`+h.String()+`"`, string(raw))

	var back Hash
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, h, back)

	require.Error(t, json.Unmarshal([]byte(`"tooshort"`), &back))
}

func TestParseHashRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "zz", "deadbeef", strings.Repeat("ab", 33)} {
		_, err := ParseHash(bad)
		require.ErrorIs(t, err, ErrBadHash, "input %q", bad)
	}
}

func TestProposalClassRoundTrip(t *testing.T) {
	for c := ProposalClass(0); c < NumClasses; c++ {
		require.True(t, c.Valid())
		parsed, err := ParseClass(c.String())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}
	require.False(t, NumClasses.Valid())

	_, err := ParseClass("unheard_of")
	require.Error(t, err)
}

func TestClassDefaultsInBounds(t *testing.T) {
	for c := ProposalClass(0); c < NumClasses; c++ {
		th := c.DefaultThreshold()
		require.GreaterOrEqual(t, th, uint32(ThresholdMin), "class %s", c)
		require.LessOrEqual(t, th, uint32(ThresholdMax), "class %s", c)

		ticks := c.DefaultDeadlineTicks()
		require.GreaterOrEqual(t, ticks, uint32(MinDeadlineTicks), "class %s", c)
		require.LessOrEqual(t, ticks, uint32(MaxDeadlineTicks), "class %s", c)
	}
}

func TestRoundOutcomePercentageTruncates(t *testing.T) {
	cases := []struct {
		tally, eligible, want uint32
	}{
		{0, 0, 0},
		{0, 10, 0},
		{5, 10, 50},
		{6, 10, 60},
		{2, 3, 66},
		{1, 3, 33},
		{10, 10, 100},
	}
	for _, tc := range cases {
		o := RoundOutcome{Tally: tc.tally, EligibleCount: tc.eligible}
		require.Equal(t, tc.want, o.Percentage(), "%d of %d", tc.tally, tc.eligible)
	}
}

func TestParticipationPctTruncates(t *testing.T) {
	v := Validator{RoundsEligible: 3, RoundsVoted: 2}
	require.Equal(t, uint32(66), v.ParticipationPct())

	v = Validator{}
	require.Equal(t, uint32(0), v.ParticipationPct())
}

func TestUniqueListContains(t *testing.T) {
	l := UniqueList{Members: []ValidatorID{"alice", "bob"}}
	require.True(t, l.Contains("alice"))
	require.False(t, l.Contains("carol"))
}
