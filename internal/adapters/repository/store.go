// Package repository defines the match and profile store contracts and
// their in-memory and redis-backed implementations.
package repository

import (
	"context"

	"github.com/enmusubi/enmusubi/internal/domain/model"
)

// MatchStore persists match records and serializes transitions per record.
type MatchStore interface {
	// Create persists a new match record. It atomically enforces the
	// one-open-match-per-requester invariant and returns ErrOpenMatch when
	// the requester already has a Pending or Accepted record.
	Create(ctx context.Context, m model.Match) error

	// Get returns the record by id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Match, error)

	// Update runs mutate on a copy of the record under per-record
	// serialization and commits the result atomically. When mutate returns
	// an error nothing is written and the error is returned unchanged, so
	// state machine sentinels survive errors.Is. A commit that cannot be
	// persisted fails with ErrUnavailable and leaves the record untouched.
	Update(ctx context.Context, id string, mutate func(*model.Match) error) (model.Match, error)

	// ListByStatus returns records in the given status, ordered by id.
	ListByStatus(ctx context.Context, status model.MatchStatus) ([]model.Match, error)

	// Count returns the number of match records tracked.
	Count(ctx context.Context) int
}

// ProfileStore is the narrow collaborator surface the engine needs from
// profile CRUD. Reads are synchronous snapshots at ranking time; staleness
// between snapshot and Accept is acceptable.
type ProfileStore interface {
	GetRequester(ctx context.Context, id string) (model.Requester, error)
	PutRequester(ctx context.Context, r model.Requester) error
	SetRequesterStatus(ctx context.Context, id string, status model.RequesterStatus) error

	GetResponder(ctx context.Context, id string) (model.Responder, error)
	PutResponder(ctx context.Context, r model.Responder) error
	SetAvailability(ctx context.Context, id string, a model.Availability) error

	// ListEligibleResponders snapshots responders whose availability is not
	// unavailable, with RecentMatches counted over the lookback window.
	ListEligibleResponders(ctx context.Context) ([]model.Responder, error)

	// RecordMatchOutcome settles a completed match: bumps the winner's
	// history counter and marks the requester matched.
	RecordMatchOutcome(ctx context.Context, m model.Match) error

	// RecordDecline bumps the responder's history counter after a decline.
	RecordDecline(ctx context.Context, responderID string) error
}
