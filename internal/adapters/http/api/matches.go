// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// MatchesHandler handles match lifecycle requests.
type MatchesHandler struct {
	deps Dependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps Dependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// matchRequest mirrors the request schema for POST /matches.
type matchRequest struct {
	RequesterID string `json:"requester_id"`
}

func (m matchRequest) validate() error {
	if strings.TrimSpace(m.RequesterID) == "" {
		return errors.New("missing requester_id")
	}
	return nil
}

// HandleCreateMatch handles POST /matches requests.
func (h *MatchesHandler) HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_match"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	m, err := h.deps.CreateMatch(r.Context(), req.RequesterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleMatch routes /matches/{id} and its lifecycle actions:
//
//	GET  /matches/{id}
//	POST /matches/{id}/offer
//	POST /matches/{id}/cancel
//	POST /matches/{id}/complete
func (h *MatchesHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/matches/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		m, err := h.deps.GetMatch(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)

	case action == "offer" && r.Method == http.MethodPost:
		m, err := h.deps.ReOffer(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)

	case action == "cancel" && r.Method == http.MethodPost:
		m, err := h.deps.CancelMatch(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)

	case action == "complete" && r.Method == http.MethodPost:
		m, err := h.deps.CompleteMatch(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)

	default:
		http.NotFound(w, r)
	}
}
