// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/enmusubi/enmusubi/internal/domain/model"
)

// ProfilesHandler handles requester and responder profile management.
type ProfilesHandler struct {
	deps Dependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps Dependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

// requesterRequest mirrors the request schema for POST /requesters.
type requesterRequest struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Topics []string `json:"topics"`
	Phase  string   `json:"phase"`
}

func (r requesterRequest) validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return errors.New("missing id")
	case strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Body) == "":
		return errors.New("missing title and body")
	}
	return nil
}

// responderRequest mirrors the request schema for POST /responders.
type responderRequest struct {
	ID           string   `json:"id"`
	Interests    string   `json:"interests"`
	Topics       []string `json:"topics"`
	Phase        string   `json:"phase"`
	Availability string   `json:"availability"`
}

func (r responderRequest) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("missing id")
	}
	if r.Availability != "" && !model.Availability(r.Availability).Valid() {
		return errors.New("availability must be available, constrained, or unavailable")
	}
	return nil
}

// HandlePutRequester handles POST /requesters requests.
func (h *ProfilesHandler) HandlePutRequester(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_requester"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req requesterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	requester := model.Requester{
		ID:     req.ID,
		Title:  req.Title,
		Body:   req.Body,
		Topics: req.Topics,
		Phase:  req.Phase,
		Status: model.RequesterUnmatched,
	}
	if err := h.deps.PutRequester(r.Context(), requester); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, requester)
}

// HandlePutResponder handles POST /responders requests.
func (h *ProfilesHandler) HandlePutResponder(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_responder"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req responderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	availability := model.Availability(req.Availability)
	if req.Availability == "" {
		availability = model.AvailabilityAvailable
	}
	responder := model.Responder{
		ID:           req.ID,
		Interests:    req.Interests,
		Topics:       req.Topics,
		Phase:        req.Phase,
		Availability: availability,
	}
	if err := h.deps.PutResponder(r.Context(), responder); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, responder)
}

// availabilityRequest mirrors the request schema for
// PATCH /responders/{id}/availability.
type availabilityRequest struct {
	Availability string `json:"availability"`
}

// HandleAvailability handles PATCH /responders/{id}/availability requests.
func (h *ProfilesHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_availability"
	if r.Method != http.MethodPatch {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/responders/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || action != "availability" {
		http.NotFound(w, r)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	availability := model.Availability(req.Availability)
	if !availability.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("unknown availability state")))
		return
	}

	if err := h.deps.SetAvailability(r.Context(), id, availability); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "availability": string(availability)})
}
