// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/enmusubi/enmusubi/internal/adapters/repository"
	"github.com/enmusubi/enmusubi/internal/domain/match"
	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/internal/domain/ranking"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Matching lifecycle.
	CreateMatch(ctx context.Context, requesterID string) (model.Match, error)
	GetMatch(ctx context.Context, id string) (model.Match, error)
	ReOffer(ctx context.Context, id string) (model.Match, error)
	CancelMatch(ctx context.Context, id string) (model.Match, error)
	CompleteMatch(ctx context.Context, id string) (model.Match, error)

	// SubmitCallback enqueues an inbound accept/decline event for async
	// processing. Returns false on backpressure.
	SubmitCallback(ctx context.Context, ev model.CallbackEvent) bool

	// Profile management.
	PutRequester(ctx context.Context, r model.Requester) error
	PutResponder(ctx context.Context, r model.Responder) error
	SetAvailability(ctx context.Context, id string, a model.Availability) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	matchesHandler   *MatchesHandler
	callbacksHandler *CallbacksHandler
	profilesHandler  *ProfilesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		matchesHandler:   NewMatchesHandler(deps),
		callbacksHandler: NewCallbacksHandler(deps),
		profilesHandler:  NewProfilesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandleCreateMatch, "matches"))
	mux.HandleFunc("/matches/", MetricsMiddleware(s.matchesHandler.HandleMatch, "match"))
	mux.HandleFunc("/callbacks", MetricsMiddleware(s.callbacksHandler.HandlePostCallback, "callbacks"))
	mux.HandleFunc("/requesters", MetricsMiddleware(s.profilesHandler.HandlePutRequester, "requesters"))
	mux.HandleFunc("/responders", MetricsMiddleware(s.profilesHandler.HandlePutResponder, "responders"))
	mux.HandleFunc("/responders/", MetricsMiddleware(s.profilesHandler.HandleAvailability, "availability"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates domain sentinels into HTTP status codes so
// handlers share one mapping.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, match.ErrUnknownOffer):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrOpenMatch),
		errors.Is(err, match.ErrAlreadyMatched),
		errors.Is(err, match.ErrInvalidTransition),
		errors.Is(err, match.ErrRequesterMatched):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, ranking.ErrNoEligibleCandidates):
		writeError(w, http.StatusUnprocessableEntity, "no_candidates", err)
	case errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
