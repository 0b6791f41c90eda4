// Package ranking combines similarity, availability, and matching history
// into one composite score and produces the ordered shortlist.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/internal/domain/scoring"
	"github.com/enmusubi/enmusubi/internal/domain/text"
	"github.com/enmusubi/enmusubi/pkg/logger"
	"github.com/enmusubi/enmusubi/pkg/metrics"
)

// Default ranking configuration. The weights are documented defaults of the
// composite formula, not invariants; configuration may override them as long
// as they stay non-negative and sum to 1.
const (
	defaultShortlistSize      = 3
	defaultSimilarityWeight   = 0.6
	defaultAvailabilityWeight = 0.2
	defaultHistoryWeight      = 0.2
)

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithShortlistSize sets the shortlist length (top-N).
func WithShortlistSize(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.shortlistSize = n
		}
	}
}

// WithWeights sets the composite weights. Invalid weight sets (negative, or
// not summing to 1) are ignored so composite stays within [0,1].
func WithWeights(similarity, availability, history float64) Option {
	return func(r *Ranker) {
		if similarity < 0 || availability < 0 || history < 0 {
			return
		}
		if math.Abs(similarity+availability+history-1) > 1e-9 {
			return
		}
		r.similarityWeight = similarity
		r.availabilityWeight = availability
		r.historyWeight = history
	}
}

// WithVectorizer sets a custom vectorizer.
func WithVectorizer(v *text.Vectorizer) Option {
	return func(r *Ranker) {
		if v != nil {
			r.vectorizer = v
		}
	}
}

// WithLogger sets a custom logger for the ranker.
func WithLogger(l logger.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// Ranker scores eligible responders for a requester. It is read-only over
// the snapshot it is handed and holds no lock shared with the accept path.
type Ranker struct {
	vectorizer    *text.Vectorizer
	shortlistSize int

	similarityWeight   float64
	availabilityWeight float64
	historyWeight      float64

	logger logger.Logger
}

// New constructs a Ranker with default configuration.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		shortlistSize:      defaultShortlistSize,
		similarityWeight:   defaultSimilarityWeight,
		availabilityWeight: defaultAvailabilityWeight,
		historyWeight:      defaultHistoryWeight,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.vectorizer == nil {
		r.vectorizer = text.NewVectorizer()
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("ranker")
	}
	return r
}

// Rank computes the ordered shortlist for requester over the responder pool
// snapshot. Responders that are unavailable are filtered first; an empty
// pool after filtering fails with ErrNoEligibleCandidates and is surfaced
// to the caller, never retried here.
func (r *Ranker) Rank(ctx context.Context, requester *model.Requester, pool []model.Responder) ([]model.CandidateScore, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingDuration(float64(time.Since(start).Milliseconds()))
	}()

	eligible := make([]model.Responder, 0, len(pool))
	for _, resp := range pool {
		if resp.Availability != model.AvailabilityUnavailable && resp.Availability.Valid() {
			eligible = append(eligible, resp)
		}
	}
	if len(eligible) == 0 {
		metrics.RecordRankingError()
		return nil, ErrNoEligibleCandidates
	}
	// Fixed document order keeps results reproducible for a snapshot.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	docs := make([]scoring.Document, len(eligible))
	for i, resp := range eligible {
		docs[i] = scoring.Document{ID: resp.ID, Vec: r.vectorizer.Vectorize(resp.Document())}
	}
	snapshot, err := scoring.NewSnapshot(docs)
	if err != nil {
		metrics.RecordRankingError()
		return nil, fmt.Errorf("build corpus snapshot: %w", err)
	}

	query := r.vectorizer.Vectorize(requester.Document())

	candidates := make([]model.CandidateScore, len(eligible))
	for i, resp := range eligible {
		c := model.CandidateScore{
			ResponderID:        resp.ID,
			Similarity:         snapshot.Similarity(query, resp.ID),
			AvailabilityWeight: resp.Availability.Weight(),
			HistoryWeight:      historyWeight(resp.RecentMatches),
		}
		c.Composite = r.similarityWeight*c.Similarity +
			r.availabilityWeight*c.AvailabilityWeight +
			r.historyWeight*c.HistoryWeight
		candidates[i] = c

		r.logger.Debug(ctx, "scored candidate",
			logger.String("responderID", resp.ID),
			logger.Float64("similarity", c.Similarity),
			logger.Float64("availability", c.AvailabilityWeight),
			logger.Float64("history", c.HistoryWeight),
			logger.Float64("composite", c.Composite),
		)
	}

	// Composite desc, responder id asc on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Composite != candidates[j].Composite {
			return candidates[i].Composite > candidates[j].Composite
		}
		return candidates[i].ResponderID < candidates[j].ResponderID
	})

	if len(candidates) > r.shortlistSize {
		candidates = candidates[:r.shortlistSize]
	}
	metrics.RecordShortlistSize(len(candidates))

	r.logger.Info(ctx, "shortlist ready",
		logger.String("requesterID", requester.ID),
		logger.Int("eligible", len(eligible)),
		logger.Int("shortlist", len(candidates)),
	)
	return candidates, nil
}

// historyWeight is the inverse of recent match load, so a responder who
// just settled a match is not immediately re-selected.
func historyWeight(recentMatches int) float64 {
	if recentMatches < 0 {
		recentMatches = 0
	}
	return 1 / float64(1+recentMatches)
}
