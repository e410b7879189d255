package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/feed"
	"github.com/gauthierbraillon/subfeed/internal/isotime"
	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/metacache"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

var (
	// ErrEnrichment marks a failed metadata lookup. Cached videos are still
	// returned alongside it.
	ErrEnrichment = errors.New("video metadata lookup failed")
	// ErrCache marks a metadata cache read or write failure, which aborts the
	// operation.
	ErrCache = errors.New("metadata cache unavailable")
)

// Enricher looks up duration and live status for videos.
type Enricher interface {
	BatchLookup(ctx context.Context, ids []string) (map[string]youtube.VideoDetails, error)
}

// MetadataCache is the part of metacache.Cache the engine needs.
type MetadataCache interface {
	Lookup(id string) (metacache.Record, bool)
	PutAll(ctx context.Context, records map[string]metacache.Record) error
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.NewComponentLogger(logger, "aggregator")
	}
}

// WithFilter sets the initial filter.
func WithFilter(filter config.FilterConfig) Option {
	return func(e *Engine) {
		e.filter = filter
	}
}

// Engine resolves feed entries into videos through the metadata cache,
// enriching only what the cache cannot answer.
type Engine struct {
	cache    MetadataCache
	enricher Enricher
	logger   *slog.Logger

	mu     sync.RWMutex
	filter config.FilterConfig
}

func NewEngine(cache MetadataCache, enricher Enricher, opts ...Option) *Engine {
	e := &Engine{
		cache:    cache,
		enricher: enricher,
		logger:   logging.NewComponentLogger(nil, "aggregator"),
		filter: config.FilterConfig{
			MinDurationSeconds: config.DefaultSettings().MinVideoLength * 60,
			MaxDurationSeconds: config.DefaultMaxDurationSeconds,
			RecencyWindowDays:  config.DefaultSettings().DaysFilter,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetFilter replaces the filter. Passes already running keep the filter
// they started with.
func (e *Engine) SetFilter(filter config.FilterConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = filter
}

// Filter returns the current filter.
func (e *Engine) Filter() config.FilterConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filter
}

// candidate is an entry with its video id extracted, awaiting metadata.
type candidate struct {
	id        string
	title     string
	link      string
	author    string
	published string
}

func (c candidate) video(published time.Time, seconds int) VideoRecord {
	return VideoRecord{
		ID:              c.id,
		Title:           NormalizeTitle(c.title),
		Link:            c.link,
		Author:          c.author,
		PublishedAt:     published,
		DurationSeconds: seconds,
	}
}

// FetchVideos returns the videos of one channel's feed that pass the filter:
// valid cache hits first, then newly enriched videos in feed order.
//
// If enrichment fails outright the cache hits are returned with an error
// wrapping ErrEnrichment. A cache write failure returns nil and an error
// wrapping ErrCache.
func (e *Engine) FetchVideos(ctx context.Context, source string, doc *feed.Document) ([]VideoRecord, Stats, error) {
	return e.fetchVideos(ctx, source, doc, e.Filter())
}

func (e *Engine) fetchVideos(ctx context.Context, source string, doc *feed.Document, filter config.FilterConfig) ([]VideoRecord, Stats, error) {
	logger := e.logger.With(logging.String(logging.FieldSource, source))

	if doc == nil || len(doc.Entries) == 0 {
		logger.Warn("no entries found in feed")
		return []VideoRecord{}, Stats{}, nil
	}

	var stats Stats
	candidates := make([]candidate, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		id, ok := videoID(entry.ID)
		if !ok {
			logger.Warn("skipping entry with invalid id", logging.String("entry_id", entry.ID))
			stats.Skipped++
			continue
		}
		candidates = append(candidates, candidate{
			id:        id,
			title:     entry.Title,
			link:      entry.Link,
			author:    entry.Author,
			published: entry.Published,
		})
	}

	return e.resolve(ctx, logger, candidates, filter, stats)
}

// FetchSearch runs search results through the same cache, enrichment and
// filter path as feed entries, keeping the result order.
func (e *Engine) FetchSearch(ctx context.Context, results []youtube.SearchResult) ([]VideoRecord, Stats, error) {
	return e.fetchSearch(ctx, results, e.Filter())
}

func (e *Engine) fetchSearch(ctx context.Context, results []youtube.SearchResult, filter config.FilterConfig) ([]VideoRecord, Stats, error) {
	candidates := make([]candidate, 0, len(results))
	for _, r := range results {
		author := r.ChannelTitle
		if author == "" {
			author = feed.UnknownAuthor
		}
		candidates = append(candidates, candidate{
			id:        r.ID,
			title:     r.Title,
			link:      youtube.VideoURL(r.ID),
			author:    author,
			published: r.Published,
		})
	}

	videos, stats, err := e.resolve(ctx, e.logger.With(logging.String(logging.FieldSource, "search")), candidates, filter, Stats{})
	if err != nil && videos == nil {
		return nil, stats, err
	}
	return restoreOrder(candidates, videos), stats, err
}

func (e *Engine) resolve(ctx context.Context, logger *slog.Logger, candidates []candidate, filter config.FilterConfig, stats Stats) ([]VideoRecord, Stats, error) {
	stats.Entries = len(candidates)

	hits := make([]VideoRecord, 0, len(candidates))
	var pending []candidate
	for _, c := range candidates {
		record, ok := e.cache.Lookup(c.id)
		if !ok {
			pending = append(pending, c)
			continue
		}
		if !record.Valid(filter) {
			stats.Filtered++
			continue
		}
		published, err := record.PublishedAt()
		if err != nil {
			logger.Debug("cached publish date unreadable, enriching again",
				logging.String(logging.FieldVideoID, c.id),
				logging.Error(err),
			)
			pending = append(pending, c)
			continue
		}
		hits = append(hits, c.video(published, record.DurationSeconds))
	}
	stats.CacheHits = len(hits)

	if len(pending) == 0 {
		return hits, stats, nil
	}

	ids := make([]string, 0, len(pending))
	for _, c := range pending {
		ids = append(ids, c.id)
	}

	details, lookupErr := e.enricher.BatchLookup(ctx, ids)
	if lookupErr != nil && len(details) == 0 {
		logger.Warn("video metadata lookup failed, showing cached videos only",
			logging.Int("cached", len(hits)),
			logging.Error(lookupErr),
		)
		return hits, stats, fmt.Errorf("%w: %w", ErrEnrichment, lookupErr)
	}
	var enrichErr error
	if lookupErr != nil {
		logger.Warn("video metadata lookup partially failed",
			logging.Int("resolved", len(details)),
			logging.Int("requested", len(ids)),
			logging.Error(lookupErr),
		)
		enrichErr = fmt.Errorf("%w: %w", ErrEnrichment, lookupErr)
	}

	writes := make(map[string]metacache.Record, len(details))
	enriched := make([]VideoRecord, 0, len(pending))
	for _, c := range pending {
		d, ok := details[c.id]
		if !ok {
			stats.Dropped++
			continue
		}

		seconds, err := isotime.ParseDuration(d.Duration)
		if err != nil {
			logger.Warn("invalid duration format",
				logging.String(logging.FieldVideoID, c.id),
				logging.Error(err),
			)
		}

		record := metacache.Record{DurationSeconds: seconds, Liveness: d.Liveness, Published: c.published}
		writes[c.id] = record
		if !record.Valid(filter) {
			stats.Filtered++
			continue
		}

		published, err := isotime.ParseTimestamp(c.published)
		if err != nil {
			logger.Warn("skipping entry with invalid publish date",
				logging.String(logging.FieldVideoID, c.id),
				logging.Error(err),
			)
			stats.Skipped++
			continue
		}
		enriched = append(enriched, c.video(published, seconds))
	}

	if err := e.cache.PutAll(ctx, writes); err != nil {
		return nil, stats, fmt.Errorf("%w: %w", ErrCache, err)
	}
	stats.Enriched = len(enriched)

	logger.Debug("source resolved",
		logging.Int("cache_hits", stats.CacheHits),
		logging.Int("enriched", stats.Enriched),
		logging.Int("filtered", stats.Filtered),
	)
	return append(hits, enriched...), stats, enrichErr
}

// videoID takes the last segment of a compound id such as "yt:video:abc".
func videoID(entryID string) (string, bool) {
	i := strings.LastIndex(entryID, ":")
	if i < 0 {
		return "", false
	}
	id := strings.TrimSpace(entryID[i+1:])
	return id, id != ""
}

// restoreOrder puts videos back into the order of candidates.
func restoreOrder(candidates []candidate, videos []VideoRecord) []VideoRecord {
	byID := make(map[string]VideoRecord, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	ordered := make([]VideoRecord, 0, len(videos))
	for _, c := range candidates {
		if v, ok := byID[c.id]; ok {
			ordered = append(ordered, v)
			delete(byID, c.id)
		}
	}
	return ordered
}
