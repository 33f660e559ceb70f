// Package unl manages published unique lists (UNLs): versioned,
// time-bounded sets of validators a publisher vouches for as jointly
// trustworthy.
package unl

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/MKWorldWide/gamedin-consensus/crypto"
	"github.com/MKWorldWide/gamedin-consensus/registry"
	"github.com/MKWorldWide/gamedin-consensus/storage"
	"github.com/MKWorldWide/gamedin-consensus/types"
)

var (
	// ErrNotFound is returned for unknown list ids.
	ErrNotFound = errors.New("list not found")

	// ErrOutOfBounds is returned for structural validation failures:
	// member count bounds, time ordering, duplicate members.
	ErrOutOfBounds = errors.New("list out of bounds")

	// ErrUnknownPublisher is returned when the publisher is not an
	// active validator.
	ErrUnknownPublisher = errors.New("publisher is not an active validator")

	// ErrInactiveMember is returned when a member is not an active
	// validator at publication time.
	ErrInactiveMember = errors.New("member is not an active validator")
)

// Manager owns list publication and the overlap diagnostic. Lists are
// immutable once published except for the active flag, which is cleared
// lazily on expiry or explicitly by governance.
type Manager struct {
	mu       sync.RWMutex
	lists    map[types.Hash]*types.UniqueList
	versions map[types.ValidatorID]uint64 // per-publisher monotonic sequence

	registry *registry.Registry
	store    *storage.Store
	cfg      types.Config
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore enables persistence. Existing lists are loaded eagerly.
func WithStore(store *storage.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a list publication manager.
func NewManager(cfg types.Config, reg *registry.Registry, log zerolog.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		lists:    make(map[types.Hash]*types.UniqueList),
		versions: make(map[types.ValidatorID]uint64),
		registry: reg,
		cfg:      cfg,
		log:      log.With().Str("component", "unl").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store != nil {
		stored, err := m.store.LoadLists()
		if err != nil {
			return nil, err
		}
		for _, l := range stored {
			m.lists[l.ID] = l
			if l.Version > m.versions[l.Publisher] {
				m.versions[l.Publisher] = l.Version
			}
		}
		if len(stored) > 0 {
			m.log.Info().Int("count", len(stored)).Msg("restored lists")
		}
	}
	return m, nil
}

// Publish validates and records a new list, returning its
// content-derived id. Validation failures are aggregated so a caller
// sees every problem at once; nothing is mutated unless all checks pass.
func (m *Manager) Publish(publisher types.ValidatorID, name string, members []types.ValidatorID, activatesAt, expiresAt time.Time) (types.UniqueList, error) {
	now := m.now()

	var verr *multierror.Error
	if len(members) < m.cfg.MinListMembers {
		verr = multierror.Append(verr, fmt.Errorf("%w: %d members, minimum %d", ErrOutOfBounds, len(members), m.cfg.MinListMembers))
	}
	if len(members) > m.cfg.MaxListMembers {
		verr = multierror.Append(verr, fmt.Errorf("%w: %d members, maximum %d", ErrOutOfBounds, len(members), m.cfg.MaxListMembers))
	}
	if !activatesAt.After(now) {
		verr = multierror.Append(verr, fmt.Errorf("%w: activation must be strictly after publication", ErrOutOfBounds))
	}
	if !expiresAt.After(activatesAt) {
		verr = multierror.Append(verr, fmt.Errorf("%w: expiration must be strictly after activation", ErrOutOfBounds))
	}
	if !m.registry.IsActive(publisher) {
		verr = multierror.Append(verr, ErrUnknownPublisher)
	}

	seen := make(map[types.ValidatorID]struct{}, len(members))
	for _, member := range members {
		if _, dup := seen[member]; dup {
			verr = multierror.Append(verr, fmt.Errorf("%w: duplicate member %s", ErrOutOfBounds, member))
			continue
		}
		seen[member] = struct{}{}
		if !m.registry.IsActive(member) {
			verr = multierror.Append(verr, fmt.Errorf("%w: %s", ErrInactiveMember, member))
		}
	}
	if err := verr.ErrorOrNil(); err != nil {
		return types.UniqueList{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	version := m.versions[publisher] + 1
	id := crypto.ListContentID(publisher, name, members, version)

	list := &types.UniqueList{
		ID:          id,
		Publisher:   publisher,
		Name:        name,
		Version:     version,
		PublishedAt: now,
		ActivatesAt: activatesAt,
		ExpiresAt:   expiresAt,
		Members:     append([]types.ValidatorID(nil), members...),
		Active:      true,
	}

	if m.store != nil {
		if err := m.store.SaveList(list); err != nil {
			return types.UniqueList{}, err
		}
	}

	m.lists[id] = list
	m.versions[publisher] = version
	m.log.Info().
		Str("list", id.Short()).
		Str("publisher", string(publisher)).
		Uint64("version", version).
		Int("members", len(members)).
		Msg("list published")
	return *list, nil
}

// Get returns a list by content id. Expiry is evaluated lazily here: a
// list past its expiration reads as inactive from then on.
func (m *Manager) Get(id types.Hash) (types.UniqueList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[id]
	if !ok {
		return types.UniqueList{}, ErrNotFound
	}
	m.expireLocked(list)
	return *list, nil
}

// Deactivate clears a list's active flag (governance action).
func (m *Manager) Deactivate(id types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[id]
	if !ok {
		return ErrNotFound
	}
	if !list.Active {
		return nil
	}
	list.Active = false
	if m.store != nil {
		if err := m.store.SaveList(list); err != nil {
			list.Active = true
			return err
		}
	}
	m.log.Info().Str("list", id.Short()).Msg("list deactivated")
	return nil
}

// Lists returns a snapshot of all known lists, expiring lazily.
func (m *Manager) Lists() []types.UniqueList {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.UniqueList, 0, len(m.lists))
	for _, list := range m.lists {
		m.expireLocked(list)
		out = append(out, *list)
	}
	return out
}

func (m *Manager) expireLocked(list *types.UniqueList) {
	if list.Active && list.ExpiredAt(m.now()) {
		list.Active = false
		if m.store != nil {
			if err := m.store.SaveList(list); err != nil {
				m.log.Warn().Err(err).Str("list", list.ID.Short()).Msg("persist expiry")
			}
		}
		m.log.Info().Str("list", list.ID.Short()).Msg("list expired")
	}
}

// Overlap computes |A∩B| / min(|A|,|B|) × 100 with integer truncation.
// It is a read-only diagnostic: operators are expected to verify that
// coexisting lists stay above types.OverlapSafetyFloor before treating
// them as jointly safe. Nothing here enforces that floor.
func (m *Manager) Overlap(a, b types.Hash) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	la, ok := m.lists[a]
	if !ok {
		return 0, ErrNotFound
	}
	lb, ok := m.lists[b]
	if !ok {
		return 0, ErrNotFound
	}

	inA := make(map[types.ValidatorID]struct{}, len(la.Members))
	for _, id := range la.Members {
		inA[id] = struct{}{}
	}
	shared := 0
	for _, id := range lb.Members {
		if _, ok := inA[id]; ok {
			shared++
		}
	}

	smaller := len(la.Members)
	if len(lb.Members) < smaller {
		smaller = len(lb.Members)
	}
	if smaller == 0 {
		return 0, nil
	}
	return uint32(shared * 100 / smaller), nil
}
