// Package enrich gathers search context about each speaker's company.
package enrich

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/cache"
	"github.com/ppiankov/speakerpipe/internal/model"
	"github.com/ppiankov/speakerpipe/internal/search"
	"github.com/ppiankov/speakerpipe/internal/worker"
)

const (
	// DefaultBatchSize is how many lookups run together in one batch
	DefaultBatchSize = 5
	// DefaultPause separates consecutive batches
	DefaultPause = time.Second

	limiterKey = "search"
)

// Query builds the search query for a company.
func Query(company string) string {
	return company + " construction industry digital transformation drone technology"
}

// Enricher looks up companies through the search client, reading through a
// cache that is never invalidated.
type Enricher struct {
	client    search.Client
	cache     cache.Cache
	limiter   *worker.Limiter
	batchSize int
	pause     time.Duration
	logger    *zap.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithCache sets the read-through cache. Without one every call searches.
func WithCache(c cache.Cache) Option {
	return func(e *Enricher) { e.cache = c }
}

// WithLimiter throttles outgoing searches.
func WithLimiter(l *worker.Limiter) Option {
	return func(e *Enricher) { e.limiter = l }
}

// WithBatching sets the batch size and the pause between batches.
func WithBatching(size int, pause time.Duration) Option {
	return func(e *Enricher) {
		if size > 0 {
			e.batchSize = size
		}
		if pause >= 0 {
			e.pause = pause
		}
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Enricher) { e.logger = l }
}

// New creates an Enricher backed by client.
func New(client search.Client, opts ...Option) *Enricher {
	e := &Enricher{
		client:    client,
		batchSize: DefaultBatchSize,
		pause:     DefaultPause,
		logger:    zap.L(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich returns search context for one speaker. It never fails: a lookup
// error yields an empty payload carrying the error text, and that payload is
// not cached so a later run retries it.
func (e *Enricher) Enrich(ctx context.Context, company, speakerName, jobTitle string) model.Enrichment {
	key := cache.Key(company, speakerName)

	if cached, ok := e.lookup(key); ok {
		e.logger.Debug("enrichment cache hit", zap.String("company", company))
		return cached
	}

	out := model.Enrichment{
		Company:       company,
		SpeakerName:   speakerName,
		JobTitle:      jobTitle,
		SearchResults: []model.SearchResult{},
	}

	if err := e.limiter.Wait(ctx, limiterKey); err != nil {
		out.Error = err.Error()
		return out
	}

	results, err := e.client.Search(ctx, Query(company))
	if err != nil {
		e.logger.Warn("enrichment failed",
			zap.String("company", company),
			zap.String("speaker", speakerName),
			zap.Error(err),
		)
		out.Error = err.Error()
		return out
	}

	if results != nil {
		out.SearchResults = results
	}
	e.store(key, out)
	return out
}

func (e *Enricher) lookup(key string) (model.Enrichment, bool) {
	if e.cache == nil {
		return model.Enrichment{}, false
	}
	data, ok := e.cache.Get(key)
	if !ok {
		return model.Enrichment{}, false
	}

	var cached model.Enrichment
	if err := json.Unmarshal(data, &cached); err != nil {
		e.logger.Warn("discarding unreadable cache entry", zap.Error(err))
		return model.Enrichment{}, false
	}
	return cached, true
}

func (e *Enricher) store(key string, payload model.Enrichment) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := e.cache.Set(key, data, cache.NoExpiration); err != nil {
		e.logger.Warn("cache write failed", zap.Error(err))
	}
}

// EnrichBatch enriches speakers in batches, with every lookup in a batch in
// flight at once and a pause between batches. The returned records are
// copies with enrichment merged, in input order. A cancelled context stops
// at the next pause and returns the records enriched so far with the error.
func (e *Enricher) EnrichBatch(ctx context.Context, speakers []model.Speaker) ([]model.Speaker, error) {
	return worker.Batches(ctx, speakers, e.batchSize, e.pause,
		func(ctx context.Context, batch []model.Speaker) []model.Speaker {
			return worker.ForkJoin(ctx, batch, len(batch), func(ctx context.Context, s model.Speaker) model.Speaker {
				out := s.Clone()
				out.ApplyEnrichment(e.Enrich(ctx, s.Company, s.Name, s.JobTitle))
				return out
			})
		})
}
