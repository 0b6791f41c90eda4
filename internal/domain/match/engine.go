// Package match owns the lifecycle of a match record and arbitrates
// concurrent accept attempts into a single winner.
//
// Every status change is a compare-and-set against the store, serialized
// per record id, so unrelated matches never contend and at most one Accept
// is honored per record regardless of how many callers race. No
// notification or other external call runs inside a transition.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/enmusubi/enmusubi/internal/adapters/repository"
	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/pkg/logger"
	"github.com/enmusubi/enmusubi/pkg/metrics"
)

const defaultOfferTTL = 24 * time.Hour

// OfferSink receives outbound offer fan-out for a freshly created or
// re-offered match. Implementations must not block the caller on network
// I/O; send failures are theirs to log and absorb.
type OfferSink interface {
	SendOffers(ctx context.Context, m model.Match)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithOfferTTL sets how long a Pending record waits for an accept before
// the sweeper may expire it.
func WithOfferTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.offerTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine is the matching state machine.
type Engine struct {
	matches  repository.MatchStore
	profiles repository.ProfileStore
	sink     OfferSink
	offerTTL time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// NewEngine constructs an Engine. The offer sink is bound separately via
// SetOfferSink because the dispatcher needs the engine first.
func NewEngine(matches repository.MatchStore, profiles repository.ProfileStore, opts ...Option) *Engine {
	e := &Engine{
		matches:  matches,
		profiles: profiles,
		offerTTL: defaultOfferTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("match")
	}
	return e
}

// SetOfferSink binds the outbound offer fan-out target.
func (e *Engine) SetOfferSink(sink OfferSink) {
	e.sink = sink
}

// Create persists a new Pending record for requesterID with the given
// shortlist and fans out the initial offers. The store enforces the
// one-open-match-per-requester invariant atomically.
func (e *Engine) Create(ctx context.Context, requesterID string, shortlist []model.CandidateScore) (model.Match, error) {
	if len(shortlist) == 0 {
		return model.Match{}, fmt.Errorf("empty shortlist: %w", ErrUnknownOffer)
	}

	now := e.now()
	m := model.Match{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Candidates:  shortlist,
		Offered:     make([]string, len(shortlist)),
		Status:      model.StatusPending,
		CreatedAt:   now,
		Deadline:    now.Add(e.offerTTL),
		Version:     1,
	}
	for i, c := range shortlist {
		m.Offered[i] = c.ResponderID
	}

	if err := e.matches.Create(ctx, m); err != nil {
		return model.Match{}, err
	}
	if err := e.profiles.SetRequesterStatus(ctx, requesterID, model.RequesterPending); err != nil {
		e.logger.Error(ctx, "failed to mark requester pending",
			logger.String("requesterID", requesterID), logger.Error(err))
	}
	metrics.UpdateMatchRecords(e.matches.Count(ctx))

	e.logger.Info(ctx, "match created",
		logger.String("matchID", m.ID),
		logger.String("requesterID", requesterID),
		logger.Int("shortlist", len(shortlist)),
	)
	e.dispatchOffers(ctx, m)
	return m, nil
}

// Offer re-sends offers for an already-Pending record. Idempotent: it never
// creates a duplicate record and only the still-active offer set is
// re-notified.
func (e *Engine) Offer(ctx context.Context, matchID string) (model.Match, error) {
	m, err := e.matches.Get(ctx, matchID)
	if err != nil {
		return model.Match{}, err
	}
	if m.Status != model.StatusPending {
		return model.Match{}, fmt.Errorf("offer on %s record: %w", m.Status, ErrInvalidTransition)
	}
	e.dispatchOffers(ctx, m)
	return m, nil
}

// dispatchOffers hands the fan-out to the sink, outside any transition.
func (e *Engine) dispatchOffers(ctx context.Context, m model.Match) {
	if e.sink == nil {
		e.logger.Warn(ctx, "no offer sink bound; offers not sent",
			logger.String("matchID", m.ID))
		return
	}
	e.sink.SendOffers(ctx, m)
}

// Accept resolves an accept attempt from responderID. The first caller to
// win the compare-and-set from Pending becomes the winner; every other
// concurrent or later attempt fails with ErrAlreadyMatched, and attempts on
// terminal records fail with ErrInvalidTransition.
func (e *Engine) Accept(ctx context.Context, matchID, responderID string) (model.Match, error) {
	m, err := e.matches.Update(ctx, matchID, func(m *model.Match) error {
		switch {
		case m.Status == model.StatusAccepted:
			return ErrAlreadyMatched
		case m.Status != model.StatusPending:
			return ErrInvalidTransition
		case !m.IsOffered(responderID):
			return ErrUnknownOffer
		}
		m.Status = model.StatusAccepted
		m.WinnerID = responderID
		m.AcceptedAt = e.now()
		return nil
	})
	if err != nil {
		if IsLostRace(err) {
			metrics.RecordAcceptConflict()
		}
		return m, err
	}

	metrics.RecordAcceptWin()
	e.logger.Info(ctx, "accept won",
		logger.String("matchID", matchID),
		logger.String("winnerID", responderID),
	)
	return m, nil
}

// Decline removes responderID from the active offer set of a Pending
// record. When the set empties the record expires and the requester is
// released for re-ranking by the caller.
func (e *Engine) Decline(ctx context.Context, matchID, responderID string) (model.Match, error) {
	m, err := e.matches.Update(ctx, matchID, func(m *model.Match) error {
		if m.Status != model.StatusPending {
			return ErrInvalidTransition
		}
		if !m.RemoveOffer(responderID) {
			return ErrUnknownOffer
		}
		if len(m.Offered) == 0 {
			m.Status = model.StatusExpired
			m.ResolvedAt = e.now()
		}
		return nil
	})
	if err != nil {
		return m, err
	}

	metrics.RecordDecline()
	if err := e.profiles.RecordDecline(ctx, responderID); err != nil {
		e.logger.Error(ctx, "failed to record decline history",
			logger.String("responderID", responderID), logger.Error(err))
	}
	if m.Status == model.StatusExpired {
		metrics.RecordExpiry()
		e.releaseRequester(ctx, m.RequesterID)
		e.logger.Info(ctx, "offer set exhausted, match expired",
			logger.String("matchID", matchID))
	}
	return m, nil
}

// Complete settles an Accepted record, bumps the winner's history counter,
// and marks the requester matched.
func (e *Engine) Complete(ctx context.Context, matchID string) (model.Match, error) {
	m, err := e.matches.Update(ctx, matchID, func(m *model.Match) error {
		if m.Status != model.StatusAccepted {
			return ErrInvalidTransition
		}
		m.Status = model.StatusCompleted
		m.ResolvedAt = e.now()
		return nil
	})
	if err != nil {
		return m, err
	}

	metrics.RecordCompletion()
	if err := e.profiles.RecordMatchOutcome(ctx, m); err != nil {
		return m, fmt.Errorf("record match outcome: %w", err)
	}
	e.logger.Info(ctx, "match completed",
		logger.String("matchID", matchID),
		logger.String("winnerID", m.WinnerID),
	)
	return m, nil
}

// Cancel is the administrative escape hatch from Pending or Accepted.
func (e *Engine) Cancel(ctx context.Context, matchID string) (model.Match, error) {
	m, err := e.matches.Update(ctx, matchID, func(m *model.Match) error {
		if !m.Status.Open() {
			return ErrInvalidTransition
		}
		m.Status = model.StatusCancelled
		m.ResolvedAt = e.now()
		return nil
	})
	if err != nil {
		return m, err
	}

	metrics.RecordCancellation()
	e.releaseRequester(ctx, m.RequesterID)
	e.logger.Info(ctx, "match cancelled", logger.String("matchID", matchID))
	return m, nil
}

// Get returns the record by id.
func (e *Engine) Get(ctx context.Context, matchID string) (model.Match, error) {
	return e.matches.Get(ctx, matchID)
}

// ExpireDue transitions every Pending record whose deadline has passed to
// Expired, using the same compare-and-set discipline as Accept so an expiry
// racing a last-moment accept resolves to exactly one winner. Returns the
// number of records expired.
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	pending, err := e.matches.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range pending {
		if p.Deadline.After(now) {
			continue
		}
		m, err := e.matches.Update(ctx, p.ID, func(m *model.Match) error {
			if m.Status != model.StatusPending {
				return ErrInvalidTransition
			}
			m.Status = model.StatusExpired
			m.ResolvedAt = now
			return nil
		})
		if err != nil {
			// Lost the race to an accept or another transition; fine.
			if IsLostRace(err) {
				continue
			}
			return expired, err
		}
		expired++
		metrics.RecordExpiry()
		e.releaseRequester(ctx, m.RequesterID)
		e.logger.Info(ctx, "match expired",
			logger.String("matchID", m.ID),
			logger.String("requesterID", m.RequesterID),
		)
	}
	return expired, nil
}

// releaseRequester returns the requester to the unmatched pool after a
// cancel or expiry so the caller may re-rank with a fresh shortlist.
func (e *Engine) releaseRequester(ctx context.Context, requesterID string) {
	if err := e.profiles.SetRequesterStatus(ctx, requesterID, model.RequesterUnmatched); err != nil {
		e.logger.Error(ctx, "failed to release requester",
			logger.String("requesterID", requesterID), logger.Error(err))
	}
}
