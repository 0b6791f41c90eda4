package repository_test

import (
	"context"
	"testing"
	"time"

	repository "github.com/enmusubi/enmusubi/internal/adapters/repository"
	model "github.com/enmusubi/enmusubi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestProfileMemStore_Requesters(t *testing.T) {
	ctx := context.Background()

	Convey("Given a profile store", t, func() {
		store := repository.NewProfileMemStore()

		Convey("When upserting a requester", func() {
			err := store.PutRequester(ctx, model.Requester{ID: "req-1", Title: "相談"})
			So(err, ShouldBeNil)

			Convey("Then it should be readable and start unmatched", func() {
				r, err := store.GetRequester(ctx, "req-1")
				So(err, ShouldBeNil)
				So(r.Title, ShouldEqual, "相談")
				So(r.Status, ShouldEqual, model.RequesterUnmatched)
			})

			Convey("And status transitions should persist", func() {
				So(store.SetRequesterStatus(ctx, "req-1", model.RequesterPending), ShouldBeNil)
				r, err := store.GetRequester(ctx, "req-1")
				So(err, ShouldBeNil)
				So(r.Status, ShouldEqual, model.RequesterPending)
			})
		})

		Convey("When reading a missing requester", func() {
			_, err := store.GetRequester(ctx, "req-missing")

			Convey("Then it should fail with ErrNotFound", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When setting status on a missing requester", func() {
			err := store.SetRequesterStatus(ctx, "req-missing", model.RequesterMatched)

			Convey("Then it should fail with ErrNotFound", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})
	})
}

func TestProfileMemStore_Responders(t *testing.T) {
	ctx := context.Background()

	Convey("Given a profile store with responders", t, func() {
		store := repository.NewProfileMemStore()
		So(store.PutResponder(ctx, model.Responder{ID: "res-b", Availability: model.AvailabilityAvailable}), ShouldBeNil)
		So(store.PutResponder(ctx, model.Responder{ID: "res-a", Availability: model.AvailabilityConstrained}), ShouldBeNil)
		So(store.PutResponder(ctx, model.Responder{ID: "res-c", Availability: model.AvailabilityUnavailable}), ShouldBeNil)

		Convey("When listing eligible responders", func() {
			pool, err := store.ListEligibleResponders(ctx)

			Convey("Then unavailable responders are excluded and order is by id", func() {
				So(err, ShouldBeNil)
				So(len(pool), ShouldEqual, 2)
				So(pool[0].ID, ShouldEqual, "res-a")
				So(pool[1].ID, ShouldEqual, "res-b")
			})
		})

		Convey("When availability changes", func() {
			So(store.SetAvailability(ctx, "res-c", model.AvailabilityAvailable), ShouldBeNil)
			pool, err := store.ListEligibleResponders(ctx)

			Convey("Then the responder should join the eligible pool", func() {
				So(err, ShouldBeNil)
				So(len(pool), ShouldEqual, 3)
			})
		})

		Convey("When upserting without availability", func() {
			So(store.PutResponder(ctx, model.Responder{ID: "res-d"}), ShouldBeNil)
			r, err := store.GetResponder(ctx, "res-d")

			Convey("Then the responder should default to available", func() {
				So(err, ShouldBeNil)
				So(r.Availability, ShouldEqual, model.AvailabilityAvailable)
			})
		})

		Convey("When setting availability on a missing responder", func() {
			err := store.SetAvailability(ctx, "res-missing", model.AvailabilityAvailable)

			Convey("Then it should fail with ErrNotFound", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})
	})
}

func TestProfileMemStore_History(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with a controllable clock and 30 day lookback", t, func() {
		now := time.Now()
		clock := &now
		store := repository.NewProfileMemStore(
			repository.WithLookback(30*24*time.Hour),
			repository.WithProfileClock(func() time.Time { return *clock }),
		)
		So(store.PutRequester(ctx, model.Requester{ID: "req-1"}), ShouldBeNil)
		So(store.PutResponder(ctx, model.Responder{ID: "res-a", Availability: model.AvailabilityAvailable}), ShouldBeNil)

		Convey("When a completed match is recorded", func() {
			err := store.RecordMatchOutcome(ctx, model.Match{
				ID: "m-1", RequesterID: "req-1", WinnerID: "res-a",
				Status: model.StatusCompleted,
			})
			So(err, ShouldBeNil)

			Convey("Then the winner's recent count grows", func() {
				r, err := store.GetResponder(ctx, "res-a")
				So(err, ShouldBeNil)
				So(r.RecentMatches, ShouldEqual, 1)
			})

			Convey("And the requester is marked matched", func() {
				r, err := store.GetRequester(ctx, "req-1")
				So(err, ShouldBeNil)
				So(r.Status, ShouldEqual, model.RequesterMatched)
			})

			Convey("And the count decays once the window passes", func() {
				later := now.Add(31 * 24 * time.Hour)
				clock = &later
				r, err := store.GetResponder(ctx, "res-a")
				So(err, ShouldBeNil)
				So(r.RecentMatches, ShouldEqual, 0)
			})
		})

		Convey("When declines are recorded", func() {
			So(store.RecordDecline(ctx, "res-a"), ShouldBeNil)
			So(store.RecordDecline(ctx, "res-a"), ShouldBeNil)

			Convey("Then declines count toward recent load", func() {
				r, err := store.GetResponder(ctx, "res-a")
				So(err, ShouldBeNil)
				So(r.RecentMatches, ShouldEqual, 2)
			})
		})

		Convey("When recording an outcome for an unknown winner", func() {
			err := store.RecordMatchOutcome(ctx, model.Match{
				ID: "m-2", RequesterID: "req-1", WinnerID: "res-missing",
			})

			Convey("Then it should fail with ErrNotFound", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})
	})
}
