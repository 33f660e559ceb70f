package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/MKWorldWide/gamedin-consensus/types"
)

// Client is the live advisory strategy. It speaks JSON over HTTP with a
// strict per-call timeout and falls back to the neutral default on any
// transport failure or malformed response. Only an explicit, well-formed
// rejection is treated as a rejection.
type Client struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
	log     zerolog.Logger

	defaultCapability uint32

	// Assessments change rarely; cache them so repeated registrations
	// and operator queries do not hammer the service.
	assessCache *lru.Cache
}

var _ Gateway = (*Client)(nil)

// NewClient builds a live advisory gateway.
func NewClient(baseURL string, timeout time.Duration, defaultCapability uint32, log zerolog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("advisory: empty base URL")
	}
	cache, err := lru.New(types.AssessmentCacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:           baseURL,
		httpc:             &http.Client{Timeout: timeout},
		timeout:           timeout,
		log:               log.With().Str("component", "advisory").Logger(),
		defaultCapability: defaultCapability,
		assessCache:       cache,
	}, nil
}

type assessRequest struct {
	RequestID      string `json:"requestId"`
	ValidatorID    string `json:"validatorId"`
	Name           string `json:"name"`
	CapabilityFlag string `json:"capabilityFlag"`
	Evidence       string `json:"evidence,omitempty"`
}

type thresholdRequest struct {
	RequestID     string `json:"requestId"`
	Class         string `json:"class"`
	PolicyDefault uint32 `json:"policyDefault"`
}

type screenRequest struct {
	RequestID string `json:"requestId"`
	RoundID   uint64 `json:"roundId"`
	VoterID   string `json:"voterId"`
	VotedHash string `json:"votedHash"`
	Evidence  string `json:"evidence,omitempty"`
}

type fraudRequest struct {
	RequestID   string `json:"requestId"`
	ValidatorID string `json:"validatorId"`
}

// post issues one bounded JSON round trip. A non-nil error means the
// caller must use its fallback value.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("advisory: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// AssessValidator asks the advisory service to evaluate a registration
// candidate. Unreachable or malformed responses approve with the
// conservative capability default.
func (c *Client) AssessValidator(ctx context.Context, id types.ValidatorID, name, capabilityFlag, evidence string) Assessment {
	if cached, ok := c.assessCache.Get(id); ok {
		observeCall("assess", "cached")
		return cached.(Assessment)
	}

	reqID := uuid.NewString()
	var resp struct {
		CapabilityScore uint32 `json:"capabilityScore"`
		Approved        bool   `json:"approved"`
		EvidenceHash    string `json:"evidenceHash"`
	}
	err := c.post(ctx, "/v1/assess", assessRequest{
		RequestID:      reqID,
		ValidatorID:    string(id),
		Name:           name,
		CapabilityFlag: capabilityFlag,
		Evidence:       evidence,
	}, &resp)
	if err != nil || !types.ScoreInRange(resp.CapabilityScore) {
		c.log.Warn().Err(err).Str("validator", string(id)).Msg("assessment fallback")
		observeCall("assess", "fallback")
		return Assessment{
			RequestID:       reqID,
			CapabilityScore: c.defaultCapability,
			Approved:        true,
			Timestamp:       time.Now(),
		}
	}

	a := Assessment{
		RequestID:       reqID,
		CapabilityScore: resp.CapabilityScore,
		Approved:        resp.Approved,
		EvidenceHash:    resp.EvidenceHash,
		Timestamp:       time.Now(),
	}
	c.assessCache.Add(id, a)
	observeCall("assess", "ok")
	return a
}

// RecommendThreshold asks for a per-round threshold recommendation. The
// raw recommendation is returned; the round manager decides whether it
// lies within the policy's hard bounds.
func (c *Client) RecommendThreshold(ctx context.Context, class types.ProposalClass, fallback uint32) Advice {
	reqID := uuid.NewString()
	var resp struct {
		RecommendedThreshold uint32 `json:"recommendedThreshold"`
		NetworkHealth        uint32 `json:"networkHealth"`
		EvidenceHash         string `json:"evidenceHash"`
	}
	err := c.post(ctx, "/v1/threshold", thresholdRequest{
		RequestID:     reqID,
		Class:         class.String(),
		PolicyDefault: fallback,
	}, &resp)
	if err != nil {
		c.log.Warn().Err(err).Stringer("class", class).Msg("threshold recommendation fallback")
		observeCall("threshold", "fallback")
		return Advice{RequestID: reqID, RecommendedThreshold: fallback, Timestamp: time.Now()}
	}

	observeCall("threshold", "ok")
	return Advice{
		RequestID:            reqID,
		RecommendedThreshold: resp.RecommendedThreshold,
		NetworkHealth:        resp.NetworkHealth,
		EvidenceHash:         resp.EvidenceHash,
		Timestamp:            time.Now(),
	}
}

// ScreenVote asks the advisory service whether a vote should be
// accepted. Screening fails open: only an explicit rejection refuses the
// vote.
func (c *Client) ScreenVote(ctx context.Context, round types.RoundID, voter types.ValidatorID, voted types.Hash, evidence string) VoteScreen {
	reqID := uuid.NewString()
	var resp struct {
		Accept     bool   `json:"accept"`
		Reason     string `json:"reason"`
		FraudScore uint32 `json:"fraudScore"`
	}
	err := c.post(ctx, "/v1/screen", screenRequest{
		RequestID: reqID,
		RoundID:   uint64(round),
		VoterID:   string(voter),
		VotedHash: voted.String(),
		Evidence:  evidence,
	}, &resp)
	if err != nil {
		c.log.Warn().Err(err).Uint64("round", uint64(round)).Str("voter", string(voter)).Msg("vote screening fallback")
		observeCall("screen", "fallback")
		return VoteScreen{RequestID: reqID, Accept: true}
	}

	observeCall("screen", "ok")
	return VoteScreen{
		RequestID:  reqID,
		Accept:     resp.Accept,
		Reason:     resp.Reason,
		FraudScore: resp.FraudScore,
	}
}

// ScoreFraud fetches the advisory fraud score for a validator.
func (c *Client) ScoreFraud(ctx context.Context, id types.ValidatorID) FraudReport {
	reqID := uuid.NewString()
	var resp struct {
		Score        uint32 `json:"score"`
		EvidenceHash string `json:"evidenceHash"`
	}
	err := c.post(ctx, "/v1/fraud", fraudRequest{RequestID: reqID, ValidatorID: string(id)}, &resp)
	if err != nil {
		c.log.Warn().Err(err).Str("validator", string(id)).Msg("fraud score fallback")
		observeCall("fraud", "fallback")
		return FraudReport{RequestID: reqID, Timestamp: time.Now()}
	}

	observeCall("fraud", "ok")
	return FraudReport{
		RequestID:    reqID,
		Score:        resp.Score,
		EvidenceHash: resp.EvidenceHash,
		Timestamp:    time.Now(),
	}
}
