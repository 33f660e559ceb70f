package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/MKWorldWide/gamedin-consensus/consensus"
	"github.com/MKWorldWide/gamedin-consensus/registry"
	"github.com/MKWorldWide/gamedin-consensus/trust"
	"github.com/MKWorldWide/gamedin-consensus/types"
	"github.com/MKWorldWide/gamedin-consensus/unl"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps engine sentinel errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, consensus.ErrRoundNotFound),
		errors.Is(err, unl.ErrNotFound),
		errors.Is(err, trust.ErrUnknownValidator):
		code = http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyExists),
		errors.Is(err, consensus.ErrDuplicateVote),
		errors.Is(err, consensus.ErrRoundClosed):
		code = http.StatusConflict
	case errors.Is(err, consensus.ErrNotEligible),
		errors.Is(err, consensus.ErrAdvisoryRejected):
		code = http.StatusForbidden
	case errors.Is(err, consensus.ErrInsufficientQuorum),
		errors.Is(err, registry.ErrRegistryFull),
		errors.Is(err, registry.ErrLowCapability):
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

type registerRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CapabilityFlag string `json:"capabilityFlag"`
	Evidence       string `json:"evidence,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("malformed request body"))
		return
	}
	v, err := s.registry.Register(r.Context(), types.ValidatorID(req.ID), req.Name, req.CapabilityFlag, req.Evidence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetValidator(w http.ResponseWriter, r *http.Request) {
	id := types.ValidatorID(mux.Vars(r)["id"])
	v, err := s.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.registry.Deactivate)
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.registry.Reactivate)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, op func(types.ValidatorID) error) {
	id := types.ValidatorID(mux.Vars(r)["id"])
	if err := op(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFraudScore(w http.ResponseWriter, r *http.Request) {
	id := types.ValidatorID(mux.Vars(r)["id"])
	if _, err := s.registry.Get(id); err != nil {
		writeError(w, err)
		return
	}
	report := s.gateway.ScoreFraud(r.Context(), id)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTrusters(w http.ResponseWriter, r *http.Request) {
	id := types.ValidatorID(mux.Vars(r)["id"])
	if _, err := s.registry.Get(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"validator": id,
		"trusters":  s.graph.TrustersOf(id),
	})
}

type trustRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleTrust(w http.ResponseWriter, r *http.Request) {
	var req trustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("malformed request body"))
		return
	}
	if err := s.graph.Trust(types.ValidatorID(req.From), types.ValidatorID(req.To)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) handleUntrust(w http.ResponseWriter, r *http.Request) {
	var req trustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("malformed request body"))
		return
	}
	if err := s.graph.Untrust(types.ValidatorID(req.From), types.ValidatorID(req.To)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type publishRequest struct {
	Publisher   string    `json:"publisher"`
	Name        string    `json:"name"`
	Members     []string  `json:"members"`
	ActivatesAt time.Time `json:"activatesAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("malformed request body"))
		return
	}
	members := make([]types.ValidatorID, len(req.Members))
	for i, m := range req.Members {
		members[i] = types.ValidatorID(m)
	}
	list, err := s.lists.Publish(types.ValidatorID(req.Publisher), req.Name, members, req.ActivatesAt, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.lists.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeactivateList(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseHash(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.lists.Deactivate(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOverlap(w http.ResponseWriter, r *http.Request) {
	a, err := types.ParseHash(r.URL.Query().Get("a"))
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := types.ParseHash(r.URL.Query().Get("b"))
	if err != nil {
		writeError(w, err)
		return
	}
	pct, err := s.lists.Overlap(a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"overlapPct":  pct,
		"safetyFloor": types.OverlapSafetyFloor,
		"safe":        pct >= types.OverlapSafetyFloor,
	})
}

type thresholdRequest struct {
	Threshold uint32 `json:"threshold"`
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	class, err := types.ParseClass(mux.Vars(r)["class"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("malformed request body"))
		return
	}
	if err := s.policy.SetThreshold(class, req.Threshold); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"class":     class.String(),
		"threshold": req.Threshold,
	})
}

func (s *Server) handleGetThreshold(w http.ResponseWriter, r *http.Request) {
	class, err := types.ParseClass(mux.Vars(r)["class"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"class":         class.String(),
		"threshold":     s.policy.Threshold(class),
		"deadlineTicks": uint32(s.policy.Duration(class) / s.cfg.RoundTick),
	})
}

type openRoundRequest struct {
	ProposalHash string `json:"proposalHash"`
	Class        string `json:"class"`
	Evidence     string `json:"evidence,omitempty"`
}

func (s *Server) handleOpenRound(w http.ResponseWriter, r *http.Request) {
	var req openRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("malformed request body"))
		return
	}
	hash, err := types.ParseHash(req.ProposalHash)
	if err != nil {
		writeError(w, err)
		return
	}
	class, err := types.ParseClass(req.Class)
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := s.rounds.OpenRound(r.Context(), hash, class, req.Evidence)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

type voteRequest struct {
	VoterID   string `json:"voterId"`
	VotedHash string `json:"votedHash"`
	Evidence  string `json:"evidence,omitempty"`
}

func (s *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	roundID, err := parseRoundID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("malformed request body"))
		return
	}
	hash, err := types.ParseHash(req.VotedHash)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.rounds.SubmitVote(r.Context(), roundID, types.ValidatorID(req.VoterID), hash, req.Evidence); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleRoundStatus(w http.ResponseWriter, r *http.Request) {
	roundID, err := parseRoundID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := s.rounds.Status(roundID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func parseRoundID(raw string) (types.RoundID, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("malformed round id")
	}
	return types.RoundID(n), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"activeValidators": s.registry.ActiveCount(),
	})
}
