// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/enmusubi/enmusubi/internal/domain/model"
)

// CallbacksHandler ingests accept/decline events from the notification
// channel. Events are acknowledged as soon as they are queued; the worker
// pool applies them to the state machine asynchronously.
type CallbacksHandler struct {
	deps Dependencies
}

// NewCallbacksHandler creates a new callbacks handler.
func NewCallbacksHandler(deps Dependencies) *CallbacksHandler {
	return &CallbacksHandler{deps: deps}
}

// callbackRequest mirrors the request schema for POST /callbacks.
type callbackRequest struct {
	EventID     string `json:"event_id"`
	Kind        string `json:"kind"`
	MatchID     string `json:"match_id"`
	ResponderID string `json:"responder_id"`
	TS          string `json:"ts"`
}

func (c callbackRequest) validate() error {
	switch {
	case strings.TrimSpace(c.MatchID) == "":
		return errors.New("missing match_id")
	case strings.TrimSpace(c.ResponderID) == "":
		return errors.New("missing responder_id")
	}
	switch model.CallbackKind(c.Kind) {
	case model.CallbackAccept, model.CallbackDecline:
	default:
		return errors.New("kind must be accept or decline")
	}
	if c.TS != "" {
		if _, err := time.Parse(time.RFC3339, c.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

// HandlePostCallback handles POST /callbacks requests.
func (h *CallbacksHandler) HandlePostCallback(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_callback"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ev := model.CallbackEvent{
		EventID:     req.EventID,
		Kind:        model.CallbackKind(req.Kind),
		MatchID:     req.MatchID,
		ResponderID: req.ResponderID,
	}
	if req.TS != "" {
		ev.TS, _ = time.Parse(time.RFC3339, req.TS)
	}

	if ok := h.deps.SubmitCallback(r.Context(), ev); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
