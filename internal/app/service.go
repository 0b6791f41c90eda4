// Package app provides the core business service that implements
// the dependencies required by the HTTP API.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/enmusubi/enmusubi/internal/adapters/dispatch"
	callbackqueue "github.com/enmusubi/enmusubi/internal/adapters/mq/queue"
	workerpool "github.com/enmusubi/enmusubi/internal/adapters/mq/worker"
	"github.com/enmusubi/enmusubi/internal/adapters/repository"
	"github.com/enmusubi/enmusubi/internal/config"
	"github.com/enmusubi/enmusubi/internal/domain/dedupe"
	"github.com/enmusubi/enmusubi/internal/domain/match"
	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/internal/domain/ranking"
	"github.com/enmusubi/enmusubi/pkg/logger"
)

// Service wires the ranker, state machine, dispatcher, and stores into one
// lifecycle and implements the HTTP API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	matches    repository.MatchStore
	profiles   *repository.ProfileMemStore
	ranker     *ranking.Ranker
	engine     *match.Engine
	dispatcher *dispatch.Dispatcher
	queue      *callbackqueue.InMemoryQueue
	workers    *workerpool.Pool
	deduper    dedupe.Deduper
	redis      *redis.Client

	// Configuration
	shortlistSize      int
	similarityWeight   float64
	availabilityWeight float64
	historyWeight      float64
	historyLookback    time.Duration
	offerTTL           time.Duration
	sweepInterval      time.Duration
	queueSize          int
	workerCount        int
	dedupeSize         int
	shardCount         int
	storeBackend       string
	journalPath        string
	redisAddr          string
	webhookURL         string

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShortlistSize sets the shortlist length.
func WithShortlistSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shortlistSize = n
		}
	}
}

// WithScoreWeights sets the composite score weights.
func WithScoreWeights(similarity, availability, history float64) Option {
	return func(s *Service) {
		s.similarityWeight = similarity
		s.availabilityWeight = availability
		s.historyWeight = history
	}
}

// WithHistoryLookback sets the recent-match counting window.
func WithHistoryLookback(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.historyLookback = d
		}
	}
}

// WithOfferTTL sets how long a Pending match waits before expiry.
func WithOfferTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.offerTTL = d
		}
	}
}

// WithSweepInterval sets the expiry sweeper cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithQueueSize sets the callback queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWorkerCount sets the number of callback workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithDedupeSize sets the callback dedupe cache size.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithShardCount sets the match store shard count.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithStoreBackend selects the match store backend.
func WithStoreBackend(backend string) Option {
	return func(s *Service) {
		if backend != "" {
			s.storeBackend = backend
		}
	}
}

// WithJournalPath enables the memory backend's restart journal.
func WithJournalPath(path string) Option {
	return func(s *Service) {
		s.journalPath = path
	}
}

// WithRedisAddr sets the redis backend address.
func WithRedisAddr(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.redisAddr = addr
		}
	}
}

// WithWebhookURL routes offer notifications to an incoming webhook.
func WithWebhookURL(url string) Option {
	return func(s *Service) {
		s.webhookURL = url
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	defaults := config.New()
	s := &Service{
		shortlistSize:      defaults.ShortlistSize,
		similarityWeight:   defaults.SimilarityWeight,
		availabilityWeight: defaults.AvailabilityWeight,
		historyWeight:      defaults.HistoryWeight,
		historyLookback:    time.Duration(defaults.HistoryLookbackDays) * 24 * time.Hour,
		offerTTL:           time.Duration(defaults.OfferTTLMinutes) * time.Minute,
		sweepInterval:      time.Duration(defaults.SweepIntervalSeconds) * time.Second,
		queueSize:          defaults.CallbackQueueSize,
		workerCount:        defaults.WorkerCount,
		dedupeSize:         defaults.DedupeSize,
		shardCount:         defaults.ShardCount,
		storeBackend:       defaults.StoreBackend,
		redisAddr:          defaults.RedisAddr,
		stopCh:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting matching service...")

	s.profiles = repository.NewProfileMemStore(
		repository.WithLookback(s.historyLookback),
	)

	switch s.storeBackend {
	case config.BackendRedis:
		s.redis = redis.NewClient(&redis.Options{Addr: s.redisAddr})
		store, err := repository.NewRedisStore(ctx, s.redis)
		if err != nil {
			return fmt.Errorf("init redis store: %w", err)
		}
		s.matches = store
		s.logger.Info(ctx, "using redis match store", logger.String("addr", s.redisAddr))
	default:
		opts := []repository.MemOption{repository.WithShardCount(s.shardCount)}
		if s.journalPath != "" {
			opts = append(opts, repository.WithJournal(s.journalPath))
		}
		store, err := repository.NewMemStore(opts...)
		if err != nil {
			return fmt.Errorf("init match store: %w", err)
		}
		s.matches = store
		s.logger.Info(ctx, "using in-memory match store",
			logger.Int("shards", s.shardCount),
			logger.String("journal", s.journalPath),
		)
	}

	s.ranker = ranking.New(
		ranking.WithShortlistSize(s.shortlistSize),
		ranking.WithWeights(s.similarityWeight, s.availabilityWeight, s.historyWeight),
	)

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)

	var notifier dispatch.Notifier
	if s.webhookURL != "" {
		notifier = dispatch.NewWebhookNotifier(s.webhookURL)
	}
	s.dispatcher = dispatch.New(s.profiles,
		dispatch.WithNotifier(notifier),
		dispatch.WithDeduper(s.deduper),
	)

	s.engine = match.NewEngine(s.matches, s.profiles,
		match.WithOfferTTL(s.offerTTL),
	)
	s.engine.SetOfferSink(s.dispatcher)
	s.dispatcher.SetArbiter(s.engine)

	s.queue = callbackqueue.NewInMemoryQueue(
		callbackqueue.WithCapacity(s.queueSize),
	)
	s.workers = workerpool.NewPool(s.workerCount, s.queue, s.dispatcher)
	s.workers.Start(ctx)

	go s.sweepLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "matching service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("shortlist", s.shortlistSize),
		logger.String("backend", s.storeBackend),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping matching service...")

	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.workers != nil {
		s.workers.Stop()
	}
	if closer, ok := s.matches.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "matching service stopped")
}

// sweepLoop expires overdue Pending matches on a fixed cadence.
func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			expired, err := s.engine.ExpireDue(ctx, now)
			if err != nil {
				s.logger.Error(ctx, "expiry sweep failed", logger.Error(err))
				continue
			}
			if expired > 0 {
				s.logger.Info(ctx, "expired overdue matches", logger.Int("count", expired))
			}
		}
	}
}

// CreateMatch ranks the eligible responder pool for requesterID, persists a
// Pending match with the shortlist, and fans out offers. No record is
// created when ranking fails.
func (s *Service) CreateMatch(ctx context.Context, requesterID string) (model.Match, error) {
	requester, err := s.profiles.GetRequester(ctx, requesterID)
	if err != nil {
		return model.Match{}, err
	}
	if requester.Status == model.RequesterMatched {
		return model.Match{}, fmt.Errorf("requester %s: %w", requesterID, match.ErrRequesterMatched)
	}

	pool, err := s.profiles.ListEligibleResponders(ctx)
	if err != nil {
		return model.Match{}, err
	}
	shortlist, err := s.ranker.Rank(ctx, &requester, pool)
	if err != nil {
		return model.Match{}, err
	}
	return s.engine.Create(ctx, requesterID, shortlist)
}

// GetMatch returns a match record by id.
func (s *Service) GetMatch(ctx context.Context, id string) (model.Match, error) {
	return s.engine.Get(ctx, id)
}

// ReOffer re-sends offers for an already-Pending match.
func (s *Service) ReOffer(ctx context.Context, id string) (model.Match, error) {
	return s.engine.Offer(ctx, id)
}

// CancelMatch administratively cancels an open match.
func (s *Service) CancelMatch(ctx context.Context, id string) (model.Match, error) {
	return s.engine.Cancel(ctx, id)
}

// CompleteMatch settles an accepted match.
func (s *Service) CompleteMatch(ctx context.Context, id string) (model.Match, error) {
	return s.engine.Complete(ctx, id)
}

// SubmitCallback enqueues an inbound accept/decline event for asynchronous
// processing. Returns false on backpressure.
func (s *Service) SubmitCallback(ctx context.Context, ev model.CallbackEvent) bool {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}
	return s.queue.Enqueue(ctx, ev)
}

// PutRequester upserts a requester profile.
func (s *Service) PutRequester(ctx context.Context, r model.Requester) error {
	return s.profiles.PutRequester(ctx, r)
}

// PutResponder upserts a responder profile.
func (s *Service) PutResponder(ctx context.Context, r model.Responder) error {
	return s.profiles.PutResponder(ctx, r)
}

// SetAvailability changes a responder's availability state.
func (s *Service) SetAvailability(ctx context.Context, id string, a model.Availability) error {
	return s.profiles.SetAvailability(ctx, id, a)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"shortlistSize": s.shortlistSize,
		"storeBackend":  s.storeBackend,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["matchRecords"] = s.matches.Count(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}
