package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/pkg/metrics"
)

const defaultLookback = 30 * 24 * time.Hour

// ProfileOption applies a configuration option to the ProfileMemStore.
type ProfileOption func(*ProfileMemStore)

// WithLookback sets the history window used when counting recent matches.
func WithLookback(d time.Duration) ProfileOption {
	return func(s *ProfileMemStore) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithProfileClock overrides the time source.
func WithProfileClock(now func() time.Time) ProfileOption {
	return func(s *ProfileMemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// ProfileMemStore is the in-memory ProfileStore. Profile CRUD proper lives
// with the collaborator; this holds the snapshot the engine ranks over.
type ProfileMemStore struct {
	mu         sync.RWMutex
	requesters map[string]model.Requester
	responders map[string]model.Responder

	// history holds settled-outcome timestamps per responder; recent match
	// counts are derived from it over the lookback window.
	history map[string][]time.Time

	lookback time.Duration
	now      func() time.Time
}

// NewProfileMemStore creates the in-memory profile store.
func NewProfileMemStore(opts ...ProfileOption) *ProfileMemStore {
	s := &ProfileMemStore{
		requesters: make(map[string]model.Requester),
		responders: make(map[string]model.Responder),
		history:    make(map[string][]time.Time),
		lookback:   defaultLookback,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRequester returns the requester by id, or ErrNotFound.
func (s *ProfileMemStore) GetRequester(_ context.Context, id string) (model.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requesters[id]
	if !ok {
		return model.Requester{}, fmt.Errorf("requester %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// PutRequester upserts a requester. New requesters start unmatched.
func (s *ProfileMemStore) PutRequester(_ context.Context, r model.Requester) error {
	if r.Status == "" {
		r.Status = model.RequesterUnmatched
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesters[r.ID] = r
	return nil
}

// SetRequesterStatus moves a requester through the matching funnel.
func (s *ProfileMemStore) SetRequesterStatus(_ context.Context, id string, status model.RequesterStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requesters[id]
	if !ok {
		return fmt.Errorf("requester %s: %w", id, ErrNotFound)
	}
	r.Status = status
	s.requesters[id] = r
	return nil
}

// GetResponder returns the responder by id with RecentMatches filled in.
func (s *ProfileMemStore) GetResponder(_ context.Context, id string) (model.Responder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responders[id]
	if !ok {
		return model.Responder{}, fmt.Errorf("responder %s: %w", id, ErrNotFound)
	}
	r.RecentMatches = s.recentLocked(id)
	return r, nil
}

// PutResponder upserts a responder. Missing availability means available.
func (s *ProfileMemStore) PutResponder(_ context.Context, r model.Responder) error {
	if r.Availability == "" {
		r.Availability = model.AvailabilityAvailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[r.ID] = r
	return nil
}

// SetAvailability changes a responder's availability state.
func (s *ProfileMemStore) SetAvailability(_ context.Context, id string, a model.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responders[id]
	if !ok {
		return fmt.Errorf("responder %s: %w", id, ErrNotFound)
	}
	r.Availability = a
	s.responders[id] = r
	return nil
}

// ListEligibleResponders snapshots every responder whose availability is
// not unavailable, ordered by id, with recent match counts attached.
func (s *ProfileMemStore) ListEligibleResponders(_ context.Context) ([]model.Responder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Responder, 0, len(s.responders))
	for id, r := range s.responders {
		if r.Availability == model.AvailabilityUnavailable {
			continue
		}
		r.RecentMatches = s.recentLocked(id)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	metrics.UpdateResponderPool(len(out))
	return out, nil
}

// RecordMatchOutcome settles a completed match: the winner's history grows
// and the requester is marked matched.
func (s *ProfileMemStore) RecordMatchOutcome(_ context.Context, m model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.responders[m.WinnerID]; !ok {
		return fmt.Errorf("responder %s: %w", m.WinnerID, ErrNotFound)
	}
	s.history[m.WinnerID] = append(s.history[m.WinnerID], s.now())

	r, ok := s.requesters[m.RequesterID]
	if !ok {
		return fmt.Errorf("requester %s: %w", m.RequesterID, ErrNotFound)
	}
	r.Status = model.RequesterMatched
	s.requesters[m.RequesterID] = r
	return nil
}

// RecordDecline counts a decline toward the responder's recent load.
func (s *ProfileMemStore) RecordDecline(_ context.Context, responderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responders[responderID]; !ok {
		return fmt.Errorf("responder %s: %w", responderID, ErrNotFound)
	}
	s.history[responderID] = append(s.history[responderID], s.now())
	return nil
}

// recentLocked counts history entries inside the lookback window.
func (s *ProfileMemStore) recentLocked(responderID string) int {
	cutoff := s.now().Add(-s.lookback)
	n := 0
	for _, ts := range s.history[responderID] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
