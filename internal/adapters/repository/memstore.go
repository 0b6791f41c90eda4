package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount = 8
)

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithShardCount sets the number of shards in the match store.
func WithShardCount(n int) MemOption {
	return func(s *MemStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithJournal enables the append-only JSONL journal at path. Existing
// journal contents are replayed on construction so in-flight records
// survive a process restart.
func WithJournal(path string) MemOption {
	return func(s *MemStore) {
		s.journalPath = path
	}
}

// matchRecord guards one match. Transitions for a record serialize on its
// own mutex; unrelated records never contend.
type matchRecord struct {
	mu sync.Mutex
	m  model.Match
}

type matchShard struct {
	mu      sync.RWMutex
	records map[string]*matchRecord
}

// MemStore is the sharded in-memory MatchStore with optional journaling.
type MemStore struct {
	shardCount  int
	shards      []*matchShard
	journalPath string
	journal     *journal

	// openMu guards the requester -> open match index backing the
	// one-open-match-per-requester invariant.
	openMu sync.Mutex
	open   map[string]string
}

// NewMemStore creates the in-memory match store.
func NewMemStore(opts ...MemOption) (*MemStore, error) {
	s := &MemStore{
		shardCount: defaultShardCount,
		open:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*matchShard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &matchShard{records: make(map[string]*matchRecord)}
	}

	if s.journalPath != "" {
		replayed, j, err := openJournal(s.journalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.journal = j
		for _, m := range replayed {
			shard := s.shardFor(m.ID)
			shard.records[m.ID] = &matchRecord{m: m}
			if m.Status.Open() {
				s.open[m.RequesterID] = m.ID
			}
		}
	}

	metrics.UpdateStoreShardCount(s.shardCount)
	return s, nil
}

func (s *MemStore) shardFor(id string) *matchShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[int(h.Sum32())%s.shardCount]
}

// Create persists a new record, enforcing one open match per requester.
func (s *MemStore) Create(ctx context.Context, m model.Match) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if openID, ok := s.open[m.RequesterID]; ok {
		if cur, err := s.Get(ctx, openID); err == nil && cur.Status.Open() {
			return fmt.Errorf("match %s open for requester %s: %w", openID, m.RequesterID, ErrOpenMatch)
		}
		delete(s.open, m.RequesterID)
	}

	stored := m.Clone()
	if s.journal != nil {
		if err := s.journal.append(stored); err != nil {
			metrics.RecordStoreError()
			return fmt.Errorf("journal create: %w: %w", ErrUnavailable, err)
		}
	}

	shard := s.shardFor(m.ID)
	shard.mu.Lock()
	shard.records[m.ID] = &matchRecord{m: stored}
	shard.mu.Unlock()

	if stored.Status.Open() {
		s.open[m.RequesterID] = m.ID
	}
	metrics.UpdateMatchRecords(s.Count(ctx))
	return nil
}

// Get returns a copy of the record by id.
func (s *MemStore) Get(_ context.Context, id string) (model.Match, error) {
	shard := s.shardFor(id)
	shard.mu.RLock()
	rec, ok := shard.records[id]
	shard.mu.RUnlock()
	if !ok {
		return model.Match{}, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.m.Clone(), nil
}

// Update runs mutate on a copy under the record's lock and commits
// all-or-nothing: a failed journal write leaves the in-memory record
// untouched and surfaces ErrUnavailable.
func (s *MemStore) Update(_ context.Context, id string, mutate func(*model.Match) error) (model.Match, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreTransitionLatency(float64(time.Since(start).Milliseconds()))
	}()

	shard := s.shardFor(id)
	shard.mu.RLock()
	rec, ok := shard.records[id]
	shard.mu.RUnlock()
	if !ok {
		return model.Match{}, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}

	next, wasOpen, err := func() (model.Match, bool, error) {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		next := rec.m.Clone()
		if err := mutate(&next); err != nil {
			return rec.m.Clone(), false, err
		}
		next.Version = rec.m.Version + 1

		if s.journal != nil {
			if err := s.journal.append(next); err != nil {
				metrics.RecordStoreError()
				return rec.m.Clone(), false, fmt.Errorf("journal update: %w: %w", ErrUnavailable, err)
			}
		}

		wasOpen := rec.m.Status.Open()
		rec.m = next
		return next.Clone(), wasOpen, nil
	}()
	if err != nil {
		return next, err
	}

	// Index maintenance happens outside the record lock; Create re-checks
	// the live record status, so a briefly stale entry is harmless.
	if wasOpen && !next.Status.Open() {
		s.openMu.Lock()
		if s.open[next.RequesterID] == next.ID {
			delete(s.open, next.RequesterID)
		}
		s.openMu.Unlock()
	}
	return next, nil
}

// ListByStatus returns copies of all records in status, ordered by id.
func (s *MemStore) ListByStatus(_ context.Context, status model.MatchStatus) ([]model.Match, error) {
	var out []model.Match
	for _, shard := range s.shards {
		shard.mu.RLock()
		recs := make([]*matchRecord, 0, len(shard.records))
		for _, rec := range shard.records {
			recs = append(recs, rec)
		}
		shard.mu.RUnlock()

		for _, rec := range recs {
			rec.mu.Lock()
			if rec.m.Status == status {
				out = append(out, rec.m.Clone())
			}
			rec.mu.Unlock()
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of match records tracked.
func (s *MemStore) Count(_ context.Context) int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.records)
		shard.mu.RUnlock()
	}
	return total
}

// Close flushes and closes the journal, if any.
func (s *MemStore) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.close()
}
