package config_test

import (
	"context"
	"testing"

	config "github.com/enmusubi/enmusubi/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigDefaults(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := config.New()

		Convey("Then the defaults should be valid", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("And ranking defaults should hold", func() {
			So(cfg.ShortlistSize, ShouldEqual, 3)
			So(cfg.SimilarityWeight, ShouldEqual, 0.6)
			So(cfg.AvailabilityWeight, ShouldEqual, 0.2)
			So(cfg.HistoryWeight, ShouldEqual, 0.2)
		})

		Convey("And the memory backend should be selected", func() {
			So(cfg.StoreBackend, ShouldEqual, config.BackendMemory)
			So(cfg.JournalPath, ShouldBeEmpty)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given configs with invalid fields", t, func() {
		Convey("When the listen address is empty", func() {
			cfg := config.New()
			cfg.Addr = ""
			So(cfg.Validate(), ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("When the shortlist size is zero", func() {
			cfg := config.New()
			cfg.ShortlistSize = 0
			So(cfg.Validate(), ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("When a weight is negative", func() {
			cfg := config.New()
			cfg.SimilarityWeight = -0.2
			cfg.AvailabilityWeight = 0.6
			cfg.HistoryWeight = 0.6
			So(cfg.Validate(), ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("When the weights do not sum to 1", func() {
			cfg := config.New()
			cfg.SimilarityWeight = 0.5
			cfg.AvailabilityWeight = 0.2
			cfg.HistoryWeight = 0.2
			So(cfg.Validate(), ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("When the store backend is unknown", func() {
			cfg := config.New()
			cfg.StoreBackend = "etcd"
			So(cfg.Validate(), ShouldWrap, config.ErrInvalidConfig)
		})

		Convey("When the redis backend has no address", func() {
			cfg := config.New()
			cfg.StoreBackend = config.BackendRedis
			cfg.RedisAddr = ""
			So(cfg.Validate(), ShouldWrap, config.ErrInvalidConfig)
		})
	})

	Convey("Given a rebalanced but valid weight set", t, func() {
		cfg := config.New()
		cfg.SimilarityWeight = 0.8
		cfg.AvailabilityWeight = 0.1
		cfg.HistoryWeight = 0.1

		Convey("Then validation should pass", func() {
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestConfigLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given no overrides in the environment", t, func() {
		cfg, err := config.Load(ctx)

		Convey("Then loading should produce the defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.ShortlistSize, ShouldEqual, 3)
		})
	})

	Convey("Given environment overrides", t, func() {
		t.Setenv("ENMUSUBI_ADDR", ":18080")
		t.Setenv("ENMUSUBI_SHORTLIST_SIZE", "5")
		t.Setenv("ENMUSUBI_JOURNAL_PATH", "/tmp/matches.jsonl")

		cfg, err := config.Load(ctx)

		Convey("Then the overrides should win over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":18080")
			So(cfg.ShortlistSize, ShouldEqual, 5)
			So(cfg.JournalPath, ShouldEqual, "/tmp/matches.jsonl")
		})
	})

	Convey("Given an invalid environment override", t, func() {
		t.Setenv("ENMUSUBI_SHORTLIST_SIZE", "0")

		_, err := config.Load(ctx)

		Convey("Then loading should fail validation", func() {
			So(err, ShouldWrap, config.ErrInvalidConfig)
		})
	})
}
