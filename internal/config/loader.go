package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if ENMUSUBI_CONFIG is set
//  3. env (prefix ENMUSUBI_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ENMUSUBI_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: ENMUSUBI_ADDR, ENMUSUBI_SHORTLIST_SIZE, ...
	// Map env keys like ENMUSUBI_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("ENMUSUBI_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "enmusubi_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies basic sanity checks.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.ShortlistSize < 1 {
		return fmt.Errorf("%w: shortlist_size must be positive", ErrInvalidConfig)
	}
	if c.SimilarityWeight < 0 || c.AvailabilityWeight < 0 || c.HistoryWeight < 0 {
		return fmt.Errorf("%w: score weights must be non-negative", ErrInvalidConfig)
	}
	sum := c.SimilarityWeight + c.AvailabilityWeight + c.HistoryWeight
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: score weights must sum to 1, got %v", ErrInvalidConfig, sum)
	}
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	if c.StoreBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("%w: redis_addr required for redis backend", ErrInvalidConfig)
	}
	return nil
}
