package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	dispatch "github.com/enmusubi/enmusubi/internal/adapters/dispatch"
	"github.com/enmusubi/enmusubi/internal/adapters/repository"
	match "github.com/enmusubi/enmusubi/internal/domain/match"
	model "github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// captureNotifier records outbound offers.
type captureNotifier struct {
	mu     sync.Mutex
	offers []model.Offer
	fail   error
}

func (n *captureNotifier) Offer(_ context.Context, o model.Offer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.offers = append(n.offers, o)
	return nil
}

func (n *captureNotifier) sent() []model.Offer {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.Offer, len(n.offers))
	copy(out, n.offers)
	return out
}

// fakeArbiter scripts the engine's answers. errOnce fails the first call
// only, then clears.
type fakeArbiter struct {
	mu       sync.Mutex
	accepts  int
	declines int
	err      error
	errOnce  error
}

func (a *fakeArbiter) Accept(_ context.Context, _, _ string) (model.Match, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accepts++
	if a.errOnce != nil {
		err := a.errOnce
		a.errOnce = nil
		return model.Match{}, err
	}
	return model.Match{}, a.err
}

func (a *fakeArbiter) Decline(_ context.Context, _, _ string) (model.Match, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.declines++
	return model.Match{}, a.err
}

func (a *fakeArbiter) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accepts, a.declines
}

func newDispatcher(notifier *captureNotifier, arbiter *fakeArbiter) (*dispatch.Dispatcher, *repository.ProfileMemStore) {
	profiles := repository.NewProfileMemStore()
	_ = profiles.PutRequester(context.Background(), model.Requester{
		ID:    "req-1",
		Title: "機械学習の相談",
	})

	d := dispatch.New(profiles, dispatch.WithNotifier(notifier))
	d.SetArbiter(arbiter)
	return d, profiles
}

func TestDispatcher_SendOffers(t *testing.T) {
	ctx := context.Background()

	Convey("Given a dispatcher with a capturing notifier", t, func() {
		notifier := &captureNotifier{}
		d, _ := newDispatcher(notifier, &fakeArbiter{})

		m := model.Match{
			ID:          "m-1",
			RequesterID: "req-1",
			Candidates: []model.CandidateScore{
				{ResponderID: "res-a"},
				{ResponderID: "res-b"},
				{ResponderID: "res-c"},
			},
			Offered: []string{"res-a", "res-c"},
			Status:  model.StatusPending,
		}

		Convey("When fanning out offers", func() {
			d.SendOffers(ctx, m)
			sent := notifier.sent()

			Convey("Then only the active offer set is notified, in shortlist order", func() {
				So(len(sent), ShouldEqual, 2)
				So(sent[0].ResponderID, ShouldEqual, "res-a")
				So(sent[1].ResponderID, ShouldEqual, "res-c")
			})

			Convey("And each offer should carry the requester summary", func() {
				for _, o := range sent {
					So(o.MatchID, ShouldEqual, "m-1")
					So(o.RequesterSummary, ShouldEqual, "機械学習の相談")
				}
			})
		})

		Convey("When the requester title is very long", func() {
			profiles := repository.NewProfileMemStore()
			long := strings.Repeat("あ", 300)
			_ = profiles.PutRequester(ctx, model.Requester{ID: "req-long", Title: long})
			d2 := dispatch.New(profiles, dispatch.WithNotifier(notifier))
			d2.SetArbiter(&fakeArbiter{})

			d2.SendOffers(ctx, model.Match{
				ID:          "m-2",
				RequesterID: "req-long",
				Candidates:  []model.CandidateScore{{ResponderID: "res-a"}},
				Offered:     []string{"res-a"},
			})

			Convey("Then the summary should be truncated by runes", func() {
				sent := notifier.sent()
				So(len(sent), ShouldEqual, 1)
				So(len([]rune(sent[0].RequesterSummary)), ShouldEqual, 120)
			})
		})

		Convey("When the notifier fails", func() {
			notifier.fail = errors.New("webhook down")

			Convey("Then the fan-out should absorb the failure", func() {
				So(func() { d.SendOffers(ctx, m) }, ShouldNotPanic)
			})
		})
	})
}

func TestDispatcher_Handle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a dispatcher bound to a scripted arbiter", t, func() {
		Convey("When handling an accept callback", func() {
			arbiter := &fakeArbiter{}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			err := d.Handle(ctx, model.CallbackEvent{
				EventID: "event-1", Kind: model.CallbackAccept,
				MatchID: "m-1", ResponderID: "res-a",
			})

			Convey("Then the arbiter should arbitrate the accept", func() {
				So(err, ShouldBeNil)
				accepts, _ := arbiter.counts()
				So(accepts, ShouldEqual, 1)
			})
		})

		Convey("When the same event id is redelivered", func() {
			arbiter := &fakeArbiter{}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			ev := model.CallbackEvent{
				EventID: "event-dup", Kind: model.CallbackDecline,
				MatchID: "m-1", ResponderID: "res-a",
			}
			So(d.Handle(ctx, ev), ShouldBeNil)
			So(d.Handle(ctx, ev), ShouldBeNil)

			Convey("Then the arbiter should run exactly once", func() {
				_, declines := arbiter.counts()
				So(declines, ShouldEqual, 1)
			})
		})

		Convey("When the callback references an unknown offer", func() {
			arbiter := &fakeArbiter{err: match.ErrUnknownOffer}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			err := d.Handle(ctx, model.CallbackEvent{
				EventID: "event-2", Kind: model.CallbackAccept,
				MatchID: "m-1", ResponderID: "res-stranger",
			})

			Convey("Then the event should be logged and discarded, not failed", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the callback references a missing match", func() {
			arbiter := &fakeArbiter{err: repository.ErrNotFound}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			err := d.Handle(ctx, model.CallbackEvent{
				EventID: "event-3", Kind: model.CallbackAccept,
				MatchID: "m-missing", ResponderID: "res-a",
			})

			Convey("Then the event should be discarded", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the callback loses the arbitration race", func() {
			arbiter := &fakeArbiter{err: match.ErrAlreadyMatched}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			err := d.Handle(ctx, model.CallbackEvent{
				EventID: "event-4", Kind: model.CallbackAccept,
				MatchID: "m-1", ResponderID: "res-b",
			})

			Convey("Then the loss should be absorbed", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the arbiter fails for real", func() {
			arbiter := &fakeArbiter{err: repository.ErrUnavailable}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			err := d.Handle(ctx, model.CallbackEvent{
				EventID: "event-5", Kind: model.CallbackAccept,
				MatchID: "m-1", ResponderID: "res-a",
			})

			Convey("Then the failure should propagate", func() {
				So(err, ShouldWrap, repository.ErrUnavailable)
			})
		})

		Convey("When a transient store failure is followed by a redelivery", func() {
			arbiter := &fakeArbiter{errOnce: repository.ErrUnavailable}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			ev := model.CallbackEvent{
				EventID: "event-retry", Kind: model.CallbackAccept,
				MatchID: "m-1", ResponderID: "res-a",
			}

			first := d.Handle(ctx, ev)
			second := d.Handle(ctx, ev)

			Convey("Then the redelivered event should reach the arbiter again", func() {
				So(first, ShouldWrap, repository.ErrUnavailable)
				So(second, ShouldBeNil)
				accepts, _ := arbiter.counts()
				So(accepts, ShouldEqual, 2)
			})

			Convey("And a further redelivery after success should dedupe", func() {
				So(d.Handle(ctx, ev), ShouldBeNil)
				accepts, _ := arbiter.counts()
				So(accepts, ShouldEqual, 2)
			})
		})

		Convey("When the callback kind is unknown", func() {
			arbiter := &fakeArbiter{}
			d, _ := newDispatcher(&captureNotifier{}, arbiter)

			err := d.Handle(ctx, model.CallbackEvent{
				EventID: "event-6", Kind: "snooze",
				MatchID: "m-1", ResponderID: "res-a",
			})

			Convey("Then the event should be discarded without touching the arbiter", func() {
				So(err, ShouldBeNil)
				accepts, declines := arbiter.counts()
				So(accepts, ShouldEqual, 0)
				So(declines, ShouldEqual, 0)
			})
		})
	})
}
