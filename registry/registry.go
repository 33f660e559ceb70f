// Package registry owns validator identity, capability flags and
// lifecycle. The set of active validator ids is the only pool eligible
// for round participation and list membership.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MKWorldWide/gamedin-consensus/advisory"
	"github.com/MKWorldWide/gamedin-consensus/storage"
	"github.com/MKWorldWide/gamedin-consensus/types"
)

var (
	// ErrAlreadyExists is returned when registering a taken id.
	ErrAlreadyExists = errors.New("validator already registered")

	// ErrRegistryFull is returned when the registry is at capacity.
	ErrRegistryFull = errors.New("registry at capacity")

	// ErrNotFound is returned for unknown validator ids.
	ErrNotFound = errors.New("validator not found")

	// ErrLowCapability is returned when the advisory-assigned capability
	// score falls below the configured floor.
	ErrLowCapability = errors.New("capability score below minimum")

	// ErrBadID is returned for malformed validator ids.
	ErrBadID = errors.New("malformed validator id")

	// ErrOutOfBounds is returned for scores outside 0..100.
	ErrOutOfBounds = errors.New("score out of bounds")
)

// window tracks a validator's recent eligibility for the rolling uptime
// percentage.
type window struct {
	eligible []types.RoundID
	voted    map[types.RoundID]bool
}

// Registry manages validator records. Reads are safe under concurrent
// access; mutations take exclusive access to the registry, never a
// global engine lock.
type Registry struct {
	mu         sync.RWMutex
	validators map[types.ValidatorID]*types.Validator
	windows    map[types.ValidatorID]*window

	cfg     types.Config
	gateway advisory.Gateway
	store   *storage.Store
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore enables persistence. Existing records are loaded eagerly at
// construction.
func WithStore(store *storage.Store) Option {
	return func(r *Registry) { r.store = store }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a validator registry.
func New(cfg types.Config, gateway advisory.Gateway, log zerolog.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		validators: make(map[types.ValidatorID]*types.Validator),
		windows:    make(map[types.ValidatorID]*window),
		cfg:        cfg,
		gateway:    gateway,
		log:        log.With().Str("component", "registry").Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.store != nil {
		stored, err := r.store.LoadValidators()
		if err != nil {
			return nil, fmt.Errorf("load validators: %w", err)
		}
		for _, v := range stored {
			r.validators[v.ID] = v
			r.windows[v.ID] = &window{voted: make(map[types.RoundID]bool)}
		}
		if len(stored) > 0 {
			r.log.Info().Int("count", len(stored)).Msg("restored validators")
		}
	}

	activeValidators.Set(float64(r.activeCountLocked()))
	return r, nil
}

// Register creates a new validator. The advisory gateway assesses the
// candidate before any state is mutated; when advisory is disabled the
// gateway assigns the conservative capability default and approves.
func (r *Registry) Register(ctx context.Context, id types.ValidatorID, name, capabilityFlag, evidence string) (types.Validator, error) {
	if !id.Valid() {
		return types.Validator{}, ErrBadID
	}

	// Resolve advisory input before taking the registry lock: gateway
	// calls may block on external I/O.
	assessment := r.gateway.AssessValidator(ctx, id, name, capabilityFlag, evidence)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.validators[id]; exists {
		return types.Validator{}, ErrAlreadyExists
	}
	if len(r.validators) >= r.cfg.MaxValidators {
		return types.Validator{}, ErrRegistryFull
	}
	if !assessment.Approved || assessment.CapabilityScore < r.cfg.MinCapability {
		return types.Validator{}, fmt.Errorf("%w: advisory assigned %d, floor %d",
			ErrLowCapability, assessment.CapabilityScore, r.cfg.MinCapability)
	}

	now := r.now()
	v := &types.Validator{
		ID:              id,
		Name:            name,
		CapabilityFlag:  capabilityFlag,
		TrustScore:      r.cfg.NeutralTrust,
		CapabilityScore: assessment.CapabilityScore,
		Active:          true,
		RegisteredAt:    now,
		LastActiveAt:    now,
	}
	r.validators[id] = v
	r.windows[id] = &window{voted: make(map[types.RoundID]bool)}

	if err := r.persist(v); err != nil {
		delete(r.validators, id)
		delete(r.windows, id)
		return types.Validator{}, err
	}

	registrations.Inc()
	activeValidators.Set(float64(r.activeCountLocked()))
	r.log.Info().Str("validator", string(id)).Uint32("capability", v.CapabilityScore).Msg("validator registered")
	return *v, nil
}

// Deactivate excludes a validator from new eligibility snapshots and
// list publications. Trust edges and historical votes are untouched.
func (r *Registry) Deactivate(id types.ValidatorID) error {
	return r.setActive(id, false)
}

// Reactivate restores a deactivated validator.
func (r *Registry) Reactivate(id types.ValidatorID) error {
	return r.setActive(id, true)
}

func (r *Registry) setActive(id types.ValidatorID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return ErrNotFound
	}
	if v.Active == active {
		return nil
	}
	v.Active = active
	if err := r.persist(v); err != nil {
		v.Active = !active
		return err
	}

	activeValidators.Set(float64(r.activeCountLocked()))
	r.log.Info().Str("validator", string(id)).Bool("active", active).Msg("validator lifecycle change")
	return nil
}

// Get returns a copy of the validator record.
func (r *Registry) Get(id types.ValidatorID) (types.Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.validators[id]
	if !ok {
		return types.Validator{}, ErrNotFound
	}
	return *v, nil
}

// IsActive reports whether id names an active validator.
func (r *Registry) IsActive(id types.ValidatorID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.validators[id]
	return ok && v.Active
}

// ActiveIDs returns a sorted snapshot of active validator ids.
func (r *Registry) ActiveIDs() []types.ValidatorID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.ValidatorID, 0, len(r.validators))
	for id, v := range r.validators {
		if v.Active {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ActiveCount returns the number of active validators.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	n := 0
	for _, v := range r.validators {
		if v.Active {
			n++
		}
	}
	return n
}

// Count returns the number of registered validators, active or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.validators)
}

// MarkEligible records that the given validators were snapshotted as
// eligible for a round. Called once per opened round.
func (r *Registry) MarkEligible(ids []types.ValidatorID, round types.RoundID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		v, ok := r.validators[id]
		if !ok {
			continue
		}
		v.RoundsEligible++

		w := r.windows[id]
		w.eligible = append(w.eligible, round)
		for len(w.eligible) > r.cfg.OnlineWindow {
			delete(w.voted, w.eligible[0])
			w.eligible = w.eligible[1:]
		}
		v.UptimePct = w.uptimePct()
	}
}

// RecordVote records an accepted vote for liveness bookkeeping.
func (r *Registry) RecordVote(id types.ValidatorID, round types.RoundID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return
	}
	v.RoundsVoted++
	v.LastActiveAt = r.now()

	w := r.windows[id]
	w.voted[round] = true
	v.UptimePct = w.uptimePct()

	if err := r.persist(v); err != nil {
		r.log.Warn().Err(err).Str("validator", string(id)).Msg("persist vote bookkeeping")
	}
}

func (w *window) uptimePct() uint32 {
	if len(w.eligible) == 0 {
		return 0
	}
	voted := 0
	for _, round := range w.eligible {
		if w.voted[round] {
			voted++
		}
	}
	return uint32(voted * 100 / len(w.eligible))
}

// SetTrustScore adjusts a validator's trust score (admin or advisory
// assessment).
func (r *Registry) SetTrustScore(id types.ValidatorID, score uint32) error {
	return r.setScore(id, score, func(v *types.Validator, s uint32) { v.TrustScore = s })
}

// SetCapabilityScore adjusts a validator's capability score.
func (r *Registry) SetCapabilityScore(id types.ValidatorID, score uint32) error {
	return r.setScore(id, score, func(v *types.Validator, s uint32) { v.CapabilityScore = s })
}

func (r *Registry) setScore(id types.ValidatorID, score uint32, apply func(*types.Validator, uint32)) error {
	if !types.ScoreInRange(score) {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, score)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return ErrNotFound
	}
	apply(v, score)
	return r.persist(v)
}

func (r *Registry) persist(v *types.Validator) error {
	if r.store == nil {
		return nil
	}
	return r.store.SaveValidator(v)
}
