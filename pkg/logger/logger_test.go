package logger_test

import (
	"context"
	"testing"

	"github.com/enmusubi/enmusubi/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInitAndGet(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		err := logger.Init()
		So(err, ShouldBeNil)

		Convey("Get returns a usable logger", func() {
			log := logger.Get()
			So(log, ShouldNotBeNil)
			So(func() {
				log.Info(context.Background(), "hello", logger.String("k", "v"))
			}, ShouldNotPanic)
		})

		Convey("Named returns a distinct child logger", func() {
			child := logger.Get().Named("child")
			So(child, ShouldNotBeNil)
			So(func() {
				child.Debug(context.Background(), "nested", logger.Int("n", 1))
			}, ShouldNotPanic)
		})

		Convey("Sync is a no-op", func() {
			So(logger.Sync(), ShouldBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("known levels are accepted", func() {
			for _, lvl := range []string{"debug", "info", "WARN", "warning", "Error", ""} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("unknown levels are rejected", func() {
			So(logger.SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}

func TestFieldConstructors(t *testing.T) {
	Convey("Field constructors set key and value", t, func() {
		So(logger.String("a", "b"), ShouldResemble, logger.Field{Key: "a", Value: "b"})
		So(logger.Int("n", 3), ShouldResemble, logger.Field{Key: "n", Value: 3})
		So(logger.Float64("f", 0.5), ShouldResemble, logger.Field{Key: "f", Value: 0.5})
		So(logger.Error(nil).Key, ShouldEqual, "error")
	})
}
