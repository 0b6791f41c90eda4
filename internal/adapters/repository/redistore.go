package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/pkg/metrics"
)

// Redis-backed MatchStore.
//
// Transitions use optimistic concurrency: the record carries a version and
// the commit is a compare-version-and-set Lua script, so the per-record
// serialization the engine relies on holds across processes.

const (
	defaultKeyPrefix  = "enmusubi"
	casRetryLimit     = 16
	redisStatusValues = 5
)

// casScript commits ARGV[2] only when the stored record still carries
// version ARGV[1]. Returns 1 on commit, 0 on version conflict, -1 when the
// record is gone.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return -1 end
local obj = cjson.decode(cur)
if obj.version ~= tonumber(ARGV[1]) then return 0 end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// RedisStore implements MatchStore on a redis backend.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a redis-backed match store and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, client *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	s := &RedisStore{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w: %w", ErrUnavailable, err)
	}
	return s, nil
}

func (s *RedisStore) matchKey(id string) string {
	return s.prefix + ":match:" + id
}

func (s *RedisStore) statusKey(status model.MatchStatus) string {
	return s.prefix + ":status:" + string(status)
}

func (s *RedisStore) openKey(requesterID string) string {
	return s.prefix + ":open:" + requesterID
}

// Create persists a new record, enforcing one open match per requester via
// SETNX on the requester's open-match key.
func (s *RedisStore) Create(ctx context.Context, m model.Match) error {
	set, err := s.client.SetNX(ctx, s.openKey(m.RequesterID), m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("reserve requester: %w: %w", ErrUnavailable, err)
	}
	if !set {
		// A key may linger after a crash between transition and index
		// maintenance; re-check the live record before rejecting.
		openID, err := s.client.Get(ctx, s.openKey(m.RequesterID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read open index: %w: %w", ErrUnavailable, err)
		}
		if cur, err := s.Get(ctx, openID); err == nil && cur.Status.Open() {
			return fmt.Errorf("match %s open for requester %s: %w", openID, m.RequesterID, ErrOpenMatch)
		}
		if err := s.client.Set(ctx, s.openKey(m.RequesterID), m.ID, 0).Err(); err != nil {
			return fmt.Errorf("reserve requester: %w: %w", ErrUnavailable, err)
		}
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.matchKey(m.ID), payload, 0)
	pipe.SAdd(ctx, s.statusKey(m.Status), m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("write match: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Get returns the record by id.
func (s *RedisStore) Get(ctx context.Context, id string) (model.Match, error) {
	raw, err := s.client.Get(ctx, s.matchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Match{}, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("read match: %w: %w", ErrUnavailable, err)
	}
	var m model.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Match{}, fmt.Errorf("decode match %s: %w", id, err)
	}
	return m, nil
}

// Update implements the read-mutate-commit loop with version CAS.
func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*model.Match) error) (model.Match, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreTransitionLatency(float64(time.Since(start).Milliseconds()))
	}()

	for attempt := 0; attempt < casRetryLimit; attempt++ {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return model.Match{}, err
		}

		next := cur.Clone()
		if err := mutate(&next); err != nil {
			return cur, err
		}
		next.Version = cur.Version + 1

		payload, err := json.Marshal(next)
		if err != nil {
			return cur, fmt.Errorf("encode match: %w", err)
		}

		res, err := casScript.Run(ctx, s.client, []string{s.matchKey(id)}, cur.Version, payload).Int()
		if err != nil {
			metrics.RecordStoreError()
			return cur, fmt.Errorf("commit match: %w: %w", ErrUnavailable, err)
		}
		switch res {
		case 1:
			s.maintainIndexes(ctx, cur, next)
			return next, nil
		case -1:
			return model.Match{}, fmt.Errorf("match %s: %w", id, ErrNotFound)
		default:
			// Version conflict: another writer won this round, re-read.
		}
	}
	metrics.RecordStoreError()
	return model.Match{}, fmt.Errorf("match %s: cas retries exhausted: %w", id, ErrUnavailable)
}

// maintainIndexes keeps the status sets and open-match key in step with a
// committed transition. Best effort after the commit; Create re-validates
// against the live record, so staleness here cannot break the invariant.
func (s *RedisStore) maintainIndexes(ctx context.Context, prev, next model.Match) {
	pipe := s.client.TxPipeline()
	if prev.Status != next.Status {
		pipe.SMove(ctx, s.statusKey(prev.Status), s.statusKey(next.Status), next.ID)
	}
	if prev.Status.Open() && !next.Status.Open() {
		pipe.Del(ctx, s.openKey(next.RequesterID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordStoreError()
	}
}

// ListByStatus returns records in the given status, ordered by id.
func (s *RedisStore) ListByStatus(ctx context.Context, status model.MatchStatus) ([]model.Match, error) {
	ids, err := s.client.SMembers(ctx, s.statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s matches: %w: %w", status, ErrUnavailable, err)
	}

	out := make([]model.Match, 0, len(ids))
	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// The index may lag a transition by a beat; trust the record.
		if m.Status == status {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of match records tracked.
func (s *RedisStore) Count(ctx context.Context) int {
	statuses := [redisStatusValues]model.MatchStatus{
		model.StatusPending, model.StatusAccepted, model.StatusCompleted,
		model.StatusCancelled, model.StatusExpired,
	}
	total := 0
	for _, st := range statuses {
		n, err := s.client.SCard(ctx, s.statusKey(st)).Result()
		if err != nil {
			return total
		}
		total += int(n)
	}
	return total
}
