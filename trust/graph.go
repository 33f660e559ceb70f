// Package trust manages the directed trust graph between validators.
// Trust edges inform governance decisions about list membership; they
// never weight round tallying, which is flat one-vote-per-validator.
package trust

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/MKWorldWide/gamedin-consensus/registry"
	"github.com/MKWorldWide/gamedin-consensus/storage"
	"github.com/MKWorldWide/gamedin-consensus/types"
)

var (
	// ErrSelfTrust is returned when a validator tries to trust itself.
	ErrSelfTrust = errors.New("cannot trust oneself")

	// ErrUnknownValidator is returned when an endpoint is not registered.
	ErrUnknownValidator = errors.New("unknown validator")

	// ErrInactiveValidator is returned when an endpoint is deactivated.
	ErrInactiveValidator = errors.New("inactive validator")
)

// edge is an ordered (truster, trusted) pair. Trust graphs are simple:
// an edge is present or absent, never weighted.
type edge struct {
	From types.ValidatorID
	To   types.ValidatorID
}

// Graph holds directed trust edges keyed by (from, to), with a reverse
// index for O(1) trusters-of lookups.
type Graph struct {
	mu       sync.RWMutex
	edges    map[edge]struct{}
	trusters map[types.ValidatorID]map[types.ValidatorID]struct{} // to -> set of from
	trusted  map[types.ValidatorID]map[types.ValidatorID]struct{} // from -> set of to

	registry *registry.Registry
	store    *storage.Store
	log      zerolog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithStore enables persistence. Existing edges are loaded eagerly.
func WithStore(store *storage.Store) Option {
	return func(g *Graph) { g.store = store }
}

// NewGraph creates a trust graph over the given registry.
func NewGraph(reg *registry.Registry, log zerolog.Logger, opts ...Option) (*Graph, error) {
	g := &Graph{
		edges:    make(map[edge]struct{}),
		trusters: make(map[types.ValidatorID]map[types.ValidatorID]struct{}),
		trusted:  make(map[types.ValidatorID]map[types.ValidatorID]struct{}),
		registry: reg,
		log:      log.With().Str("component", "trustgraph").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.store != nil {
		edges, err := g.store.LoadTrustEdges()
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			g.insert(e.From, e.To)
		}
		if len(edges) > 0 {
			g.log.Info().Int("count", len(edges)).Msg("restored trust edges")
		}
	}
	return g, nil
}

// Trust adds a directed edge from truster to trusted. Both endpoints
// must be active validators at creation time.
func (g *Graph) Trust(from, to types.ValidatorID) error {
	if from == to {
		return ErrSelfTrust
	}
	for _, id := range []types.ValidatorID{from, to} {
		v, err := g.registry.Get(id)
		if err != nil {
			return ErrUnknownValidator
		}
		if !v.Active {
			return ErrInactiveValidator
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.edges[edge{from, to}]; exists {
		return nil
	}
	g.insert(from, to)

	if g.store != nil {
		if err := g.store.SaveTrustEdge(from, to); err != nil {
			g.remove(from, to)
			return err
		}
	}
	g.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("trust edge added")
	return nil
}

// Untrust removes a directed edge. Untrusting a non-edge is a no-op.
func (g *Graph) Untrust(from, to types.ValidatorID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.edges[edge{from, to}]; !exists {
		return nil
	}
	g.remove(from, to)

	if g.store != nil {
		if err := g.store.DeleteTrustEdge(from, to); err != nil {
			g.insert(from, to)
			return err
		}
	}
	g.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("trust edge removed")
	return nil
}

// insert and remove maintain the edge set and both indexes. Callers hold
// the write lock.
func (g *Graph) insert(from, to types.ValidatorID) {
	g.edges[edge{from, to}] = struct{}{}
	if g.trusters[to] == nil {
		g.trusters[to] = make(map[types.ValidatorID]struct{})
	}
	g.trusters[to][from] = struct{}{}
	if g.trusted[from] == nil {
		g.trusted[from] = make(map[types.ValidatorID]struct{})
	}
	g.trusted[from][to] = struct{}{}
}

func (g *Graph) remove(from, to types.ValidatorID) {
	delete(g.edges, edge{from, to})
	delete(g.trusters[to], from)
	delete(g.trusted[from], to)
}

// Trusts reports whether the (from, to) edge exists.
func (g *Graph) Trusts(from, to types.ValidatorID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[edge{from, to}]
	return ok
}

// TrustersOf returns all validators currently trusting id, sorted.
func (g *Graph) TrustersOf(id types.ValidatorID) []types.ValidatorID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.trusters[id])
}

// TrustedBy returns all validators id currently trusts, sorted.
func (g *Graph) TrustedBy(id types.ValidatorID) []types.ValidatorID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.trusted[id])
}

// EdgeCount returns the number of trust edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func sortedKeys(set map[types.ValidatorID]struct{}) []types.ValidatorID {
	out := make([]types.ValidatorID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
