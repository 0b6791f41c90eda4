package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	repository "github.com/enmusubi/enmusubi/internal/adapters/repository"
	model "github.com/enmusubi/enmusubi/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func pendingMatch(id, requesterID string, offered ...string) model.Match {
	now := time.Now()
	return model.Match{
		ID:          id,
		RequesterID: requesterID,
		Offered:     offered,
		Status:      model.StatusPending,
		CreatedAt:   now,
		Deadline:    now.Add(time.Hour),
		Version:     1,
	}
}

func TestMemStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory match store", t, func() {
		store, err := repository.NewMemStore()
		So(err, ShouldBeNil)

		Convey("When creating and fetching a record", func() {
			err := store.Create(ctx, pendingMatch("m-1", "req-1", "res-a"))
			So(err, ShouldBeNil)

			got, err := store.Get(ctx, "m-1")

			Convey("Then the record should round-trip", func() {
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, "m-1")
				So(got.Status, ShouldEqual, model.StatusPending)
			})

			Convey("And the returned copy should not alias store state", func() {
				So(err, ShouldBeNil)
				got.Offered[0] = "mutated"
				again, err := store.Get(ctx, "m-1")
				So(err, ShouldBeNil)
				So(again.Offered[0], ShouldEqual, "res-a")
			})
		})

		Convey("When fetching a missing record", func() {
			_, err := store.Get(ctx, "m-missing")

			Convey("Then it should fail with ErrNotFound", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When a requester already has an open match", func() {
			So(store.Create(ctx, pendingMatch("m-1", "req-1", "res-a")), ShouldBeNil)
			err := store.Create(ctx, pendingMatch("m-2", "req-1", "res-b"))

			Convey("Then a second open record should be rejected", func() {
				So(err, ShouldWrap, repository.ErrOpenMatch)
			})

			Convey("And a new record should be allowed once the first settles", func() {
				_, err := store.Update(ctx, "m-1", func(m *model.Match) error {
					m.Status = model.StatusCancelled
					return nil
				})
				So(err, ShouldBeNil)
				So(store.Create(ctx, pendingMatch("m-2", "req-1", "res-b")), ShouldBeNil)
			})
		})
	})
}

func TestMemStore_Update(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store holding one Pending record", t, func() {
		store, err := repository.NewMemStore(repository.WithShardCount(4))
		So(err, ShouldBeNil)
		So(store.Create(ctx, pendingMatch("m-1", "req-1", "res-a", "res-b")), ShouldBeNil)

		Convey("When a transition commits", func() {
			got, err := store.Update(ctx, "m-1", func(m *model.Match) error {
				m.Status = model.StatusAccepted
				m.WinnerID = "res-a"
				return nil
			})

			Convey("Then the version should increment", func() {
				So(err, ShouldBeNil)
				So(got.Version, ShouldEqual, 2)
				So(got.Status, ShouldEqual, model.StatusAccepted)
			})
		})

		Convey("When the mutate callback rejects the transition", func() {
			rejected := errors.New("transition rejected")
			_, err := store.Update(ctx, "m-1", func(m *model.Match) error {
				m.Status = model.StatusCompleted
				return rejected
			})

			Convey("Then the error should surface and the record stay untouched", func() {
				So(err, ShouldWrap, rejected)
				cur, err := store.Get(ctx, "m-1")
				So(err, ShouldBeNil)
				So(cur.Status, ShouldEqual, model.StatusPending)
				So(cur.Version, ShouldEqual, 1)
			})
		})

		Convey("When updating a missing record", func() {
			_, err := store.Update(ctx, "m-missing", func(m *model.Match) error { return nil })

			Convey("Then it should fail with ErrNotFound", func() {
				So(err, ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When transitions race on one record", func() {
			const attempts = 20
			var wins int
			var mu sync.Mutex

			var wg sync.WaitGroup
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Update(ctx, "m-1", func(m *model.Match) error {
						if m.Status != model.StatusPending {
							return errors.New("lost")
						}
						m.Status = model.StatusAccepted
						return nil
					})
					if err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one transition should commit", func() {
				So(wins, ShouldEqual, 1)
				cur, err := store.Get(ctx, "m-1")
				So(err, ShouldBeNil)
				So(cur.Version, ShouldEqual, 2)
			})
		})
	})
}

func TestMemStore_ListByStatus(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with mixed statuses", t, func() {
		store, err := repository.NewMemStore()
		So(err, ShouldBeNil)
		So(store.Create(ctx, pendingMatch("m-c", "req-1", "res-a")), ShouldBeNil)
		So(store.Create(ctx, pendingMatch("m-a", "req-2", "res-a")), ShouldBeNil)
		So(store.Create(ctx, pendingMatch("m-b", "req-3", "res-a")), ShouldBeNil)
		_, err = store.Update(ctx, "m-b", func(m *model.Match) error {
			m.Status = model.StatusCancelled
			return nil
		})
		So(err, ShouldBeNil)

		Convey("When listing Pending records", func() {
			pending, err := store.ListByStatus(ctx, model.StatusPending)

			Convey("Then only Pending records should appear, ordered by id", func() {
				So(err, ShouldBeNil)
				So(len(pending), ShouldEqual, 2)
				So(pending[0].ID, ShouldEqual, "m-a")
				So(pending[1].ID, ShouldEqual, "m-c")
			})
		})

		Convey("When counting", func() {
			Convey("Then every record should be tracked", func() {
				So(store.Count(ctx), ShouldEqual, 3)
			})
		})
	})
}

func TestMemStore_Journal(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store journaling to disk", t, func() {
		path := filepath.Join(t.TempDir(), "matches.jsonl")

		store, err := repository.NewMemStore(repository.WithJournal(path))
		So(err, ShouldBeNil)

		So(store.Create(ctx, pendingMatch("m-1", "req-1", "res-a", "res-b")), ShouldBeNil)
		So(store.Create(ctx, pendingMatch("m-2", "req-2", "res-c")), ShouldBeNil)
		_, err = store.Update(ctx, "m-1", func(m *model.Match) error {
			m.Status = model.StatusAccepted
			m.WinnerID = "res-b"
			return nil
		})
		So(err, ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		Convey("When a new store replays the journal", func() {
			reopened, err := repository.NewMemStore(repository.WithJournal(path))
			So(err, ShouldBeNil)
			defer func() { _ = reopened.Close() }()

			Convey("Then the latest state of every record should survive", func() {
				m1, err := reopened.Get(ctx, "m-1")
				So(err, ShouldBeNil)
				So(m1.Status, ShouldEqual, model.StatusAccepted)
				So(m1.WinnerID, ShouldEqual, "res-b")
				So(m1.Version, ShouldEqual, 2)

				m2, err := reopened.Get(ctx, "m-2")
				So(err, ShouldBeNil)
				So(m2.Status, ShouldEqual, model.StatusPending)
			})

			Convey("And the open-match invariant should still hold after replay", func() {
				err := reopened.Create(ctx, pendingMatch("m-3", "req-2", "res-d"))
				So(err, ShouldWrap, repository.ErrOpenMatch)
			})
		})
	})
}
