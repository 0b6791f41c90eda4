// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...) to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Store backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShortlistSize is the number of responders offered per match (top-N).
	ShortlistSize int `koanf:"shortlist_size"`

	// Composite score weights. Must be non-negative and sum to 1.
	SimilarityWeight   float64 `koanf:"similarity_weight"`
	AvailabilityWeight float64 `koanf:"availability_weight"`
	HistoryWeight      float64 `koanf:"history_weight"`

	// HistoryLookbackDays bounds the window for recent match counting.
	HistoryLookbackDays int `koanf:"history_lookback_days"`

	// OfferTTLMinutes is how long a Pending match waits before expiry.
	OfferTTLMinutes int `koanf:"offer_ttl_minutes"`

	// SweepIntervalSeconds is the expiry sweeper cadence.
	SweepIntervalSeconds int `koanf:"sweep_interval_seconds"`

	// CallbackQueueSize bounds the inbound callback queue.
	CallbackQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of callback workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the callback deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the match store.
	ShardCount int `koanf:"shard_count"`

	// StoreBackend selects the match store: memory or redis.
	StoreBackend string `koanf:"store_backend"`

	// JournalPath enables the memory backend's restart journal when set.
	JournalPath string `koanf:"journal_path"`

	// RedisAddr is the redis backend address, e.g. "localhost:6379".
	RedisAddr string `koanf:"redis_addr"`

	// WebhookURL routes offer notifications to an incoming webhook when
	// set; offers are logged otherwise.
	WebhookURL string `koanf:"webhook_url"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		ShortlistSize:        3,
		SimilarityWeight:     0.6,
		AvailabilityWeight:   0.2,
		HistoryWeight:        0.2,
		HistoryLookbackDays:  30,
		OfferTTLMinutes:      24 * 60,
		SweepIntervalSeconds: 30,
		CallbackQueueSize:    10_000,
		WorkerCount:          runtime.NumCPU() * 2,
		DedupeSize:           50_000,
		ShardCount:           8,
		StoreBackend:         BackendMemory,
		RedisAddr:            "localhost:6379",
	}
}
