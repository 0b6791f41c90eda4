// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"time"
)

// MatchStatus is the lifecycle state of a match record.
type MatchStatus string

// Lifecycle states. Pending and Accepted are open; the rest are terminal.
const (
	StatusPending   MatchStatus = "pending"
	StatusAccepted  MatchStatus = "accepted"
	StatusCompleted MatchStatus = "completed"
	StatusCancelled MatchStatus = "cancelled"
	StatusExpired   MatchStatus = "expired"
)

// Terminal reports whether no further transitions are accepted from s.
func (s MatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Open reports whether the record still counts against the one-open-match
// invariant for its requester.
func (s MatchStatus) Open() bool {
	return s == StatusPending || s == StatusAccepted
}

// CandidateScore is the ephemeral, derived ranking value for one responder.
// It is recomputed per matching attempt and never persisted on its own.
type CandidateScore struct {
	ResponderID        string  `json:"responder_id"`
	Similarity         float64 `json:"similarity"`
	AvailabilityWeight float64 `json:"availability_weight"`
	HistoryWeight      float64 `json:"history_weight"`
	Composite          float64 `json:"composite"`
}

// Match is the unit the state machine owns. Candidates holds the ordered
// shortlist produced at ranking time; Offered is the still-active offer set,
// shrinking as responders decline.
type Match struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id"`
	Candidates  []CandidateScore `json:"candidates"`
	Offered     []string         `json:"offered"`
	Status      MatchStatus      `json:"status"`
	WinnerID    string           `json:"winner_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Deadline    time.Time        `json:"deadline"`
	AcceptedAt  time.Time        `json:"accepted_at,omitzero"`
	ResolvedAt  time.Time        `json:"resolved_at,omitzero"`

	// Version increments on every committed transition. Stores that use
	// optimistic concurrency key their conditional writes on it.
	Version uint64 `json:"version"`
}

// IsOffered reports whether responderID is still in the active offer set.
func (m *Match) IsOffered(responderID string) bool {
	return slices.Contains(m.Offered, responderID)
}

// RemoveOffer drops responderID from the active offer set.
// Returns false if the responder was not offered.
func (m *Match) RemoveOffer(responderID string) bool {
	i := slices.Index(m.Offered, responderID)
	if i < 0 {
		return false
	}
	m.Offered = slices.Delete(slices.Clone(m.Offered), i, i+1)
	return true
}

// Clone returns a deep copy so store internals never alias caller state.
func (m *Match) Clone() Match {
	out := *m
	out.Candidates = slices.Clone(m.Candidates)
	out.Offered = slices.Clone(m.Offered)
	return out
}

// Offer is the outbound notification payload for one shortlist member.
type Offer struct {
	MatchID          string `json:"match_id"`
	ResponderID      string `json:"responder_id"`
	RequesterSummary string `json:"requester_summary"`
}

// CallbackKind distinguishes inbound notification-channel events.
type CallbackKind string

// Inbound callback kinds.
const (
	CallbackAccept  CallbackKind = "accept"
	CallbackDecline CallbackKind = "decline"
)

// CallbackEvent is an accept or decline delivered by the notification
// channel. Delivery is at-least-once; EventID keys deduplication.
type CallbackEvent struct {
	EventID     string       `json:"event_id"`
	Kind        CallbackKind `json:"kind"`
	MatchID     string       `json:"match_id"`
	ResponderID string       `json:"responder_id"`
	TS          time.Time    `json:"ts"`
}
