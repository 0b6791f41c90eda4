package dispatch

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/enmusubi/enmusubi/internal/adapters/repository"
	"github.com/enmusubi/enmusubi/internal/domain/dedupe"
	"github.com/enmusubi/enmusubi/internal/domain/match"
	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/pkg/logger"
	"github.com/enmusubi/enmusubi/pkg/metrics"
)

const summaryMaxRunes = 120

// Arbiter is the slice of the match engine the dispatcher forwards
// callbacks to.
type Arbiter interface {
	Accept(ctx context.Context, matchID, responderID string) (model.Match, error)
	Decline(ctx context.Context, matchID, responderID string) (model.Match, error)
}

// RequesterReader supplies the requester summary for outbound offers.
type RequesterReader interface {
	GetRequester(ctx context.Context, id string) (model.Requester, error)
}

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithNotifier sets the outbound notifier.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithDeduper sets the callback deduper.
func WithDeduper(dd dedupe.Deduper) Option {
	return func(d *Dispatcher) {
		if dd != nil {
			d.deduper = dd
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher translates shortlists into outbound offer notifications and
// validates inbound accept/decline callbacks before handing them to the
// engine. Bad callbacks are logged and discarded; the loop never dies.
type Dispatcher struct {
	requesters RequesterReader
	notifier   Notifier
	deduper    dedupe.Deduper
	logger     logger.Logger

	arbiter Arbiter
}

// New creates a Dispatcher. The arbiter is bound via SetArbiter once the
// engine exists.
func New(requesters RequesterReader, opts ...Option) *Dispatcher {
	d := &Dispatcher{requesters: requesters}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = NewLogNotifier()
	}
	if d.deduper == nil {
		d.deduper = dedupe.NewInMemoryDeduper()
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("dispatch")
	}
	return d
}

// SetArbiter binds the match engine.
func (d *Dispatcher) SetArbiter(a Arbiter) {
	d.arbiter = a
}

// SendOffers emits one offer notification per active shortlist member, in
// shortlist order. Send failures are logged per candidate and never block
// the accept path; the record is already Pending, so an accept arriving
// before the fan-out finishes is honored.
func (d *Dispatcher) SendOffers(ctx context.Context, m model.Match) {
	summary := d.requesterSummary(ctx, m.RequesterID)
	for _, c := range m.Candidates {
		if !m.IsOffered(c.ResponderID) {
			continue
		}
		o := model.Offer{
			MatchID:          m.ID,
			ResponderID:      c.ResponderID,
			RequesterSummary: summary,
		}
		if err := d.notifier.Offer(ctx, o); err != nil {
			metrics.RecordOfferSendError()
			d.logger.Error(ctx, "offer send failed",
				logger.String("matchID", m.ID),
				logger.String("responderID", c.ResponderID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordOfferSent()
	}
}

func (d *Dispatcher) requesterSummary(ctx context.Context, requesterID string) string {
	r, err := d.requesters.GetRequester(ctx, requesterID)
	if err != nil {
		d.logger.Warn(ctx, "requester lookup failed for offer summary",
			logger.String("requesterID", requesterID), logger.Error(err))
		return ""
	}
	return truncate(r.Title, summaryMaxRunes)
}

// Handle consumes one inbound callback. Expected races and unknown
// references resolve to nil so the worker loop keeps draining; only real
// failures propagate.
func (d *Dispatcher) Handle(ctx context.Context, ev model.CallbackEvent) error {
	if ev.EventID != "" && d.deduper.SeenAndRecord(ctx, ev.EventID) {
		metrics.RecordCallbackDuplicate()
		d.logger.Debug(ctx, "duplicate callback dropped",
			logger.String("eventID", ev.EventID))
		return nil
	}

	var err error
	switch ev.Kind {
	case model.CallbackAccept:
		_, err = d.arbiter.Accept(ctx, ev.MatchID, ev.ResponderID)
	case model.CallbackDecline:
		_, err = d.arbiter.Decline(ctx, ev.MatchID, ev.ResponderID)
	default:
		d.logger.Warn(ctx, "unknown callback kind discarded",
			logger.String("kind", string(ev.Kind)),
			logger.String("eventID", ev.EventID),
		)
		return nil
	}
	if err == nil {
		metrics.RecordCallbackProcessed()
		return nil
	}

	switch {
	case errors.Is(err, match.ErrUnknownOffer), errors.Is(err, repository.ErrNotFound):
		metrics.RecordUnknownOffer()
		d.logger.Warn(ctx, "callback references unknown offer, discarded",
			logger.String("matchID", ev.MatchID),
			logger.String("responderID", ev.ResponderID),
			logger.Error(err),
		)
		return nil
	case match.IsLostRace(err):
		d.logger.Info(ctx, "callback lost the arbitration race",
			logger.String("matchID", ev.MatchID),
			logger.String("responderID", ev.ResponderID),
			logger.Error(err),
		)
		return nil
	}
	// The notification channel redelivers on failure; forget the event id
	// so the retry is not dropped as a duplicate.
	if ev.EventID != "" {
		d.deduper.Unrecord(ctx, ev.EventID)
	}
	return fmt.Errorf("handle %s callback: %w", ev.Kind, err)
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
