// Package api exposes the governance/ops HTTP surface of the engine:
// validator lifecycle, trust edges, list publication and overlap
// queries, threshold administration, round open/vote/status, and
// prometheus exposition.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/MKWorldWide/gamedin-consensus/advisory"
	"github.com/MKWorldWide/gamedin-consensus/consensus"
	"github.com/MKWorldWide/gamedin-consensus/registry"
	"github.com/MKWorldWide/gamedin-consensus/trust"
	"github.com/MKWorldWide/gamedin-consensus/types"
	"github.com/MKWorldWide/gamedin-consensus/unl"
)

// Server bundles the engine components behind an HTTP router.
type Server struct {
	registry *registry.Registry
	graph    *trust.Graph
	lists    *unl.Manager
	policy   *consensus.Policy
	rounds   *consensus.RoundManager
	gateway  advisory.Gateway
	cfg      types.Config
	log      zerolog.Logger
}

// NewServer wires the components into a Server.
func NewServer(cfg types.Config, reg *registry.Registry, graph *trust.Graph, lists *unl.Manager, policy *consensus.Policy, rounds *consensus.RoundManager, gateway advisory.Gateway, log zerolog.Logger) *Server {
	return &Server{
		registry: reg,
		graph:    graph,
		lists:    lists,
		policy:   policy,
		rounds:   rounds,
		gateway:  gateway,
		cfg:      cfg,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Router builds the HTTP handler with logging and rate limiting applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	// Validator lifecycle
	r.HandleFunc("/v1/validators", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/v1/validators/{id}", s.handleGetValidator).Methods(http.MethodGet)
	r.HandleFunc("/v1/validators/{id}/deactivate", s.handleDeactivate).Methods(http.MethodPost)
	r.HandleFunc("/v1/validators/{id}/reactivate", s.handleReactivate).Methods(http.MethodPost)
	r.HandleFunc("/v1/validators/{id}/fraud", s.handleFraudScore).Methods(http.MethodGet)
	r.HandleFunc("/v1/validators/{id}/trusters", s.handleTrusters).Methods(http.MethodGet)

	// Trust edges
	r.HandleFunc("/v1/trust", s.handleTrust).Methods(http.MethodPost)
	r.HandleFunc("/v1/trust", s.handleUntrust).Methods(http.MethodDelete)

	// List publication
	r.HandleFunc("/v1/lists", s.handlePublish).Methods(http.MethodPost)
	r.HandleFunc("/v1/lists/overlap", s.handleOverlap).Methods(http.MethodGet)
	r.HandleFunc("/v1/lists/{id}", s.handleGetList).Methods(http.MethodGet)
	r.HandleFunc("/v1/lists/{id}/deactivate", s.handleDeactivateList).Methods(http.MethodPost)

	// Threshold administration
	r.HandleFunc("/v1/policy/{class}", s.handleSetThreshold).Methods(http.MethodPut)
	r.HandleFunc("/v1/policy/{class}", s.handleGetThreshold).Methods(http.MethodGet)

	// Rounds
	r.HandleFunc("/v1/rounds", s.handleOpenRound).Methods(http.MethodPost)
	r.HandleFunc("/v1/rounds/{id}", s.handleRoundStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/rounds/{id}/votes", s.handleSubmitVote).Methods(http.MethodPost)

	// Operational
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	limiter := newIPRateLimiter(s.cfg.RateLimitPerSec, s.cfg.RateLimitBurst)
	return requestLogging(s.log)(rateLimit(limiter)(r))
}
