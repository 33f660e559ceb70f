package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, time.Second, types.DefaultCapability, zerolog.Nop())
	require.NoError(t, err)
	return c, srv
}

func TestDisabledGateway(t *testing.T) {
	g := NewDisabled(types.DefaultCapability)
	ctx := context.Background()

	a := g.AssessValidator(ctx, "alice", "alice-node", "gaming-optimized", "")
	require.True(t, a.Approved)
	require.Equal(t, uint32(types.DefaultCapability), a.CapabilityScore)

	advice := g.RecommendThreshold(ctx, types.ClassCritical, 60)
	require.Equal(t, uint32(60), advice.RecommendedThreshold)

	screen := g.ScreenVote(ctx, 1, "alice", types.Hash{1}, "")
	require.True(t, screen.Accept)

	fraud := g.ScoreFraud(ctx, "alice")
	require.Equal(t, uint32(0), fraud.Score)
}

func TestClientAssess(t *testing.T) {
	var calls atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/v1/assess", r.URL.Path)

		var req assessRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "alice", req.ValidatorID)
		require.NotEmpty(t, req.RequestID)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"capabilityScore": 85,
			"approved":        true,
		})
	}))

	a := c.AssessValidator(context.Background(), "alice", "alice-node", "gaming-optimized", "")
	require.True(t, a.Approved)
	require.Equal(t, uint32(85), a.CapabilityScore)

	// Second assessment of the same validator is served from cache.
	again := c.AssessValidator(context.Background(), "alice", "alice-node", "gaming-optimized", "")
	require.Equal(t, uint32(85), again.CapabilityScore)
	require.Equal(t, int64(1), calls.Load())
}

func TestClientAssessRejection(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"capabilityScore": 10,
			"approved":        false,
		})
	}))

	a := c.AssessValidator(context.Background(), "mallory", "", "", "")
	require.False(t, a.Approved, "explicit rejection is honored")
	require.Equal(t, uint32(10), a.CapabilityScore)
}

func TestClientAssessFallbacks(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("{not json"))
		}},
		{"score out of range", func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"capabilityScore": 9000, "approved": false})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, tc.handler)
			a := c.AssessValidator(context.Background(), "alice", "", "", "")
			require.True(t, a.Approved, "fallback approves with the default")
			require.Equal(t, uint32(types.DefaultCapability), a.CapabilityScore)
		})
	}
}

func TestClientAssessTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 50*time.Millisecond, types.DefaultCapability, zerolog.Nop())
	require.NoError(t, err)

	start := time.Now()
	a := c.AssessValidator(context.Background(), "alice", "", "", "")
	require.Less(t, time.Since(start), time.Second, "call is bounded by the timeout")
	require.True(t, a.Approved)
	require.Equal(t, uint32(types.DefaultCapability), a.CapabilityScore)
}

func TestClientRecommendThreshold(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/threshold", r.URL.Path)

		var req thresholdRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "critical", req.Class)
		require.Equal(t, uint32(60), req.PolicyDefault)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"recommendedThreshold": 70,
			"networkHealth":        95,
		})
	}))

	advice := c.RecommendThreshold(context.Background(), types.ClassCritical, 60)
	require.Equal(t, uint32(70), advice.RecommendedThreshold)
	require.Equal(t, uint32(95), advice.NetworkHealth)
}

func TestClientRecommendThresholdFallback(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	advice := c.RecommendThreshold(context.Background(), types.ClassStandard, 67)
	require.Equal(t, uint32(67), advice.RecommendedThreshold, "fallback returns the policy default")
}

func TestClientScreenVote(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/screen", r.URL.Path)

		var req screenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, uint64(7), req.RoundID)
		require.Equal(t, "mallory", req.VoterID)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"accept":     false,
			"reason":     "anomalous voting pattern",
			"fraudScore": 88,
		})
	}))

	screen := c.ScreenVote(context.Background(), 7, "mallory", types.Hash{1}, "")
	require.False(t, screen.Accept)
	require.Equal(t, "anomalous voting pattern", screen.Reason)
	require.Equal(t, uint32(88), screen.FraudScore)
}

func TestClientScreenVoteFailsOpen(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", 100*time.Millisecond, types.DefaultCapability, zerolog.Nop())
	require.NoError(t, err)

	screen := c.ScreenVote(context.Background(), 7, "alice", types.Hash{1}, "")
	require.True(t, screen.Accept, "unreachable advisory screens open")
}

func TestClientScoreFraud(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/fraud", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"score": 42})
	}))

	report := c.ScoreFraud(context.Background(), "alice")
	require.Equal(t, uint32(42), report.Score)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("", time.Second, types.DefaultCapability, zerolog.Nop())
	require.Error(t, err)
}
