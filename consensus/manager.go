package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MKWorldWide/gamedin-consensus/advisory"
	"github.com/MKWorldWide/gamedin-consensus/registry"
	"github.com/MKWorldWide/gamedin-consensus/storage"
	"github.com/MKWorldWide/gamedin-consensus/types"
)

var (
	// ErrRoundNotFound is returned for unknown round ids.
	ErrRoundNotFound = errors.New("round not found")

	// ErrRoundClosed is returned when a round is finalized or expired.
	ErrRoundClosed = errors.New("round closed")

	// ErrNotEligible is returned when the voter is inactive or outside
	// the round's eligibility snapshot.
	ErrNotEligible = errors.New("voter not eligible")

	// ErrDuplicateVote is returned when the voter already voted this
	// round.
	ErrDuplicateVote = errors.New("duplicate vote")

	// ErrInsufficientQuorum is returned when too few validators are
	// active to open a round.
	ErrInsufficientQuorum = errors.New("insufficient active validators")

	// ErrAdvisoryRejected is returned when advisory screening refuses a
	// vote. The vote is never recorded.
	ErrAdvisoryRejected = errors.New("vote rejected by advisory screening")

	// ErrBadProposal is returned when the proposal hash is zero or the
	// class is unknown.
	ErrBadProposal = errors.New("malformed proposal")
)

// RoundManager is the core state machine. Rounds move Open ->
// {Finalized, Expired}; both terminal states are permanent. A retried
// proposal needs a new round with a new id.
type RoundManager struct {
	mu     sync.RWMutex
	rounds map[types.RoundID]*round
	lastID types.RoundID

	registry *registry.Registry
	policy   *Policy
	gateway  advisory.Gateway
	store    *storage.Store
	cfg      types.Config
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a RoundManager.
type Option func(*RoundManager)

// WithStore persists terminal round outcomes and the round id sequence.
func WithStore(store *storage.Store) Option {
	return func(m *RoundManager) { m.store = store }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *RoundManager) { m.now = now }
}

// NewRoundManager creates the round state machine.
func NewRoundManager(cfg types.Config, reg *registry.Registry, policy *Policy, gateway advisory.Gateway, log zerolog.Logger, opts ...Option) (*RoundManager, error) {
	m := &RoundManager{
		rounds:   make(map[types.RoundID]*round),
		registry: reg,
		policy:   policy,
		gateway:  gateway,
		cfg:      cfg,
		log:      log.With().Str("component", "rounds").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store != nil {
		last, err := m.store.LastRoundID()
		if err != nil && err != storage.ErrNotFound {
			return nil, err
		}
		m.lastID = last
	}
	return m, nil
}

// OpenRound opens a time-boxed round for a proposal. The active
// validator set and the effective threshold are snapshotted here and
// frozen for the round's lifetime. An advisory threshold recommendation
// is adopted for this round only when it lies within the policy's hard
// bounds; policy defaults are never mutated by advisory output.
func (m *RoundManager) OpenRound(ctx context.Context, proposalHash types.Hash, class types.ProposalClass, evidence string) (RoundStatus, error) {
	if proposalHash.IsZero() || !class.Valid() {
		return RoundStatus{}, ErrBadProposal
	}

	ids := m.registry.ActiveIDs()
	if len(ids) < m.cfg.QuorumFloor {
		return RoundStatus{}, fmt.Errorf("%w: %d active, floor %d", ErrInsufficientQuorum, len(ids), m.cfg.QuorumFloor)
	}

	threshold := m.policy.Threshold(class)
	advice := m.gateway.RecommendThreshold(ctx, class, threshold)
	if InThresholdBounds(advice.RecommendedThreshold) && advice.RecommendedThreshold != threshold {
		m.log.Info().
			Uint32("policy", threshold).
			Uint32("advisory", advice.RecommendedThreshold).
			Stringer("class", class).
			Msg("adopting advisory threshold for round")
		threshold = advice.RecommendedThreshold
	}

	eligible := make(map[types.ValidatorID]struct{}, len(ids))
	for _, id := range ids {
		eligible[id] = struct{}{}
	}

	now := m.now()
	r := &round{
		proposalHash:  proposalHash,
		class:         class,
		openedAt:      now,
		deadline:      now.Add(m.policy.Duration(class)),
		threshold:     threshold,
		eligible:      eligible,
		eligibleCount: uint32(len(ids)),
		votes:         make(map[types.ValidatorID]types.Hash, len(ids)),
	}

	// The sequence write stays inside the critical section that assigns
	// the id: persisting after unlock could let a lower id land last and
	// a restart hand out an id that already has an outcome on disk.
	m.mu.Lock()
	m.lastID++
	r.id = m.lastID
	m.rounds[r.id] = r
	if m.store != nil {
		if err := m.store.SaveLastRoundID(r.id); err != nil {
			m.log.Warn().Err(err).Uint64("round", uint64(r.id)).Msg("persist round sequence")
		}
	}
	m.mu.Unlock()

	m.registry.MarkEligible(ids, r.id)
	roundsOpened.WithLabelValues(class.String()).Inc()
	m.log.Info().
		Uint64("round", uint64(r.id)).
		Str("proposal", proposalHash.Short()).
		Stringer("class", class).
		Uint32("threshold", threshold).
		Uint32("eligible", r.eligibleCount).
		Time("deadline", r.deadline).
		Msg("round opened")

	return r.snapshot(), nil
}

// SubmitVote records one validator's vote. Dissenting votes (a hash
// other than the round's proposal) are recorded for audit but never
// counted toward the tally. The tally-compare-finalize step is atomic
// with the vote: once the threshold is met no further votes are
// accepted, including votes racing in the same instant.
func (m *RoundManager) SubmitVote(ctx context.Context, roundID types.RoundID, voter types.ValidatorID, votedHash types.Hash, evidence string) error {
	m.mu.RLock()
	r, ok := m.rounds[roundID]
	m.mu.RUnlock()
	if !ok {
		if m.store != nil {
			if _, err := m.store.GetRoundOutcome(roundID); err == nil {
				return ErrRoundClosed
			}
		}
		return ErrRoundNotFound
	}

	// Advisory screening is resolved before the round lock is taken so
	// external I/O never blocks the atomic transition; the verdict is
	// applied pre-commit below.
	screen := m.gateway.ScreenVote(ctx, roundID, voter, votedHash, evidence)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.expireIfDue(m.now()) {
		m.onTerminal(r)
	}
	if r.terminal() {
		votesTotal.WithLabelValues("closed").Inc()
		return ErrRoundClosed
	}
	if _, eligible := r.eligible[voter]; !eligible || !m.registry.IsActive(voter) {
		votesTotal.WithLabelValues("not_eligible").Inc()
		return ErrNotEligible
	}
	if _, voted := r.votes[voter]; voted {
		votesTotal.WithLabelValues("duplicate").Inc()
		return ErrDuplicateVote
	}
	if !screen.Accept {
		votesTotal.WithLabelValues("advisory_rejected").Inc()
		m.log.Warn().
			Uint64("round", uint64(roundID)).
			Str("voter", string(voter)).
			Str("reason", screen.Reason).
			Msg("vote rejected by advisory")
		return ErrAdvisoryRejected
	}

	r.votes[voter] = votedHash
	m.registry.RecordVote(voter, roundID)

	if votedHash == r.proposalHash {
		r.tally++
		votesTotal.WithLabelValues("counted").Inc()
		if r.percentage() >= r.threshold {
			r.finalized = true
			r.closedAt = m.now()
			m.onTerminal(r)
		}
	} else {
		votesTotal.WithLabelValues("dissent").Inc()
	}

	return nil
}

// Status returns the read-only view of a round, evaluating expiry
// lazily. Terminal rounds evicted from memory are served from the store
// when one is configured.
func (m *RoundManager) Status(roundID types.RoundID) (RoundStatus, error) {
	m.mu.RLock()
	r, ok := m.rounds[roundID]
	m.mu.RUnlock()
	if !ok {
		if m.store != nil {
			if o, err := m.store.GetRoundOutcome(roundID); err == nil {
				return outcomeStatus(o), nil
			}
		}
		return RoundStatus{}, ErrRoundNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expireIfDue(m.now()) {
		m.onTerminal(r)
	}
	return r.status(), nil
}

// onTerminal handles a round's transition into a terminal state.
// Callers hold the round lock.
func (m *RoundManager) onTerminal(r *round) {
	o := r.outcome()
	if r.finalized {
		roundsFinalized.WithLabelValues(r.class.String()).Inc()
		finalityDuration.Observe(r.closedAt.Sub(r.openedAt).Seconds())
		m.log.Info().
			Uint64("round", uint64(r.id)).
			Str("proposal", r.proposalHash.Short()).
			Uint32("tally", r.tally).
			Uint32("percentage", o.Percentage()).
			Msg("round finalized")
	} else {
		roundsExpired.WithLabelValues(r.class.String()).Inc()
		m.log.Info().
			Uint64("round", uint64(r.id)).
			Str("proposal", r.proposalHash.Short()).
			Uint32("tally", r.tally).
			Uint32("threshold", r.threshold).
			Msg("round expired")
	}

	if m.store != nil {
		if err := m.store.SaveRoundOutcome(o); err != nil {
			m.log.Warn().Err(err).Uint64("round", uint64(r.id)).Msg("persist round outcome")
		}
	}
}

// snapshot is status() behind the round lock, for freshly built rounds.
func (r *round) snapshot() RoundStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status()
}

func outcomeStatus(o *types.RoundOutcome) RoundStatus {
	return RoundStatus{
		ID:            o.ID,
		ProposalHash:  o.ProposalHash,
		Class:         o.Class,
		IsOpen:        false,
		IsFinalized:   o.Finalized,
		IsExpired:     o.Expired,
		Tally:         o.Tally,
		EligibleCount: o.EligibleCount,
		Threshold:     o.Threshold,
		Percentage:    o.Percentage(),
		OpenedAt:      o.OpenedAt,
		Deadline:      o.Deadline,
	}
}

// Votes returns the recorded per-voter choices for a round, for audit.
func (m *RoundManager) Votes(roundID types.RoundID) (map[types.ValidatorID]types.Hash, error) {
	m.mu.RLock()
	r, ok := m.rounds[roundID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRoundNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.ValidatorID]types.Hash, len(r.votes))
	for voter, hash := range r.votes {
		out[voter] = hash
	}
	return out, nil
}

// Cleanup evicts terminal rounds older than keep from memory. Their
// outcomes remain queryable through the store.
func (m *RoundManager) Cleanup(keep int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	cutoff := int64(m.lastID) - int64(keep)
	for id, r := range m.rounds {
		if int64(id) > cutoff {
			continue
		}
		r.mu.Lock()
		terminal := r.terminal()
		r.mu.Unlock()
		if terminal {
			delete(m.rounds, id)
		}
	}
}
