// Package series orchestrates the cache-then-upstream pipeline that
// produces delta-encoded block-volume series.
//
// The cache is a pure performance optimization over the same logical
// dataset the upstream API serves. Any cache anomaly is absorbed here and
// answered from upstream; the caller only ever sees an error when the
// fallback itself fails.
package series

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xtxerr/blockvol/internal/codec"
	"github.com/xtxerr/blockvol/internal/logging"
	"github.com/xtxerr/blockvol/internal/types"
)

// CacheReader reads samples from the local store.
type CacheReader interface {
	Read(ctx context.Context, rng types.Range) ([]types.Sample, error)
}

// Fetcher fetches samples from the remote block API.
type Fetcher interface {
	Fetch(ctx context.Context, rng types.Range) ([]types.Sample, error)
}

// Archiver persists fallback-recovered sample batches.
type Archiver interface {
	Write(rng types.Range, samples []types.Sample) (string, error)
}

// Envelope is the response shape for encoded-series requests.
//
// IsCached is emitted only on the cache-hit path: the fallback response
// omits the field entirely rather than sending false. That asymmetry is an
// external contract inherited from existing consumers and must not be
// "fixed" to a symmetric flag.
type Envelope struct {
	IsCached bool `json:"isCached,omitempty"`

	codec.EncodedSeries
}

// Stats counts path outcomes across requests.
type Stats struct {
	CacheHits   int64 `json:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses"`
	CacheErrors int64 `json:"cacheErrors"`
	Fallbacks   int64 `json:"fallbacks"`
}

// Service resolves sample series, preferring the cache and falling back to
// the upstream API. Safe for concurrent use.
type Service struct {
	mu sync.RWMutex

	cache    CacheReader
	upstream Fetcher
	archive  Archiver // nil when archiving is disabled

	accuracy float64 // ddsketch relative accuracy for volume summaries

	log *slog.Logger

	// Statistics, guarded by mu.
	stats Stats
}

// Option configures a Service.
type Option func(*Service)

// WithArchive attaches an archive sink for fallback-recovered batches.
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithAccuracy sets the relative accuracy used for volume percentiles.
func WithAccuracy(accuracy float64) Option {
	return func(s *Service) { s.accuracy = accuracy }
}

// New creates a Service over the given cache and upstream.
func New(cache CacheReader, upstream Fetcher, opts ...Option) *Service {
	s := &Service{
		cache:    cache,
		upstream: upstream,
		accuracy: 0.01,
		log:      logging.Component("series"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encoded resolves the range and returns its delta-encoded envelope.
func (s *Service) Encoded(ctx context.Context, rng types.Range) (Envelope, error) {
	samples, cached, err := s.samples(ctx, rng)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		IsCached:      cached,
		EncodedSeries: codec.Encode(samples),
	}, nil
}

// samples resolves the range to a sample series, reporting whether the
// cache served it. Cache errors and empty cache results both fall back to
// the upstream API; only an upstream failure propagates.
func (s *Service) samples(ctx context.Context, rng types.Range) ([]types.Sample, bool, error) {
	cached, err := s.cache.Read(ctx, rng)
	switch {
	case err != nil:
		s.count(func(st *Stats) { st.CacheErrors++ })
		s.log.Warn("cache read failed, falling back to upstream",
			"range", rng.String(), "error", err)
	case len(cached) == 0:
		s.count(func(st *Stats) { st.CacheMisses++ })
		s.log.Debug("cache miss, falling back to upstream", "range", rng.String())
	default:
		s.count(func(st *Stats) { st.CacheHits++ })
		return cached, true, nil
	}

	fetched, err := s.upstream.Fetch(ctx, rng)
	if err != nil {
		return nil, false, err
	}
	s.count(func(st *Stats) { st.Fallbacks++ })

	if s.archive != nil {
		if path, err := s.archive.Write(rng, fetched); err != nil {
			s.log.Warn("archive write failed", "range", rng.String(), "error", err)
		} else if path != "" {
			s.log.Debug("archived fallback batch", "path", path, "samples", len(fetched))
		}
	}

	return fetched, false, nil
}

// count applies a counter update under the stats lock.
func (s *Service) count(update func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.stats)
}

// Stats returns path statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
