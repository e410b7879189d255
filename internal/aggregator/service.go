package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/feed"
	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
	"github.com/google/uuid"
)

const defaultSearchLimit = 25

var (
	ErrSearchUnavailable = errors.New("search is not configured")
	ErrEmptyQuery        = errors.New("search query cannot be empty")
)

// Diagnostic explains an empty or degraded result. An empty Videos slice
// looks the same whatever the cause; callers read Diagnostic to tell them
// apart.
type Diagnostic int

const (
	DiagnosticNone Diagnostic = iota
	DiagnosticNoSubscriptions
	DiagnosticFetchFailed
	DiagnosticNoEntries
	DiagnosticFilteredOut
	DiagnosticEnrichmentFailed
)

func (d Diagnostic) String() string {
	switch d {
	case DiagnosticNoSubscriptions:
		return "no subscriptions"
	case DiagnosticFetchFailed:
		return "every feed failed to load"
	case DiagnosticNoEntries:
		return "feeds have no entries"
	case DiagnosticFilteredOut:
		return "every video was filtered out"
	case DiagnosticEnrichmentFailed:
		return "video metadata lookup failed"
	default:
		return "none"
	}
}

// Result is the outcome of Refresh or Search.
type Result struct {
	Videos     []VideoRecord
	Diagnostic Diagnostic
	// EnrichmentErr is set when some metadata lookups failed but cached
	// videos could still be shown.
	EnrichmentErr error
	Stats         Stats
	RefreshID     string
}

// Fetcher downloads the feeds of many sources, index-aligned.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []string) []*feed.Document
}

// Searcher runs a video search.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]youtube.SearchResult, error)
}

// WatchedLookup reports whether a video has been watched.
type WatchedLookup interface {
	Contains(id string) bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithSearcher(searcher Searcher) ServiceOption {
	return func(s *Service) {
		s.searcher = searcher
	}
}

// WithWatched marks videos found in the watched set.
func WithWatched(watched WatchedLookup) ServiceOption {
	return func(s *Service) {
		s.watched = watched
	}
}

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "service")
	}
}

// WithClock sets the reference time for the recency cutoff.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFeedLimit keeps only the newest n videos of a refresh. Zero keeps all.
func WithFeedLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.feedLimit = n
		}
	}
}

// WithSearchLimit sets the number of search results requested.
func WithSearchLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

// Service exposes the two core operations: refreshing the subscription feed
// and searching.
type Service struct {
	fetcher     Fetcher
	engine      *Engine
	searcher    Searcher
	watched     WatchedLookup
	logger      *slog.Logger
	now         func() time.Time
	feedLimit   int
	searchLimit int
}

func NewService(fetcher Fetcher, engine *Engine, opts ...ServiceOption) *Service {
	s := &Service{
		fetcher:     fetcher,
		engine:      engine,
		logger:      logging.NewComponentLogger(nil, "service"),
		now:         time.Now,
		searchLimit: defaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches every source, resolves their videos and merges them
// newest first within the recency window.
//
// A cache failure is returned as an error. So is an enrichment failure that
// leaves nothing at all to show; otherwise it is reported in
// Result.EnrichmentErr.
func (s *Service) Refresh(ctx context.Context, sources []string) (Result, error) {
	refreshID := uuid.NewString()
	logger := s.logger.With(logging.String(logging.FieldRefreshID, refreshID))
	result := Result{Videos: []VideoRecord{}, RefreshID: refreshID}

	if len(sources) == 0 {
		logger.Info("no subscriptions to refresh")
		result.Diagnostic = DiagnosticNoSubscriptions
		return result, nil
	}

	filter := s.engine.Filter()
	start := time.Now()
	logger.Info("refresh started", logging.Int("sources", len(sources)))

	docs := s.fetcher.FetchAll(ctx, sources)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	agg := New()
	fetched := 0
	var enrichErr error
	for i, source := range sources {
		var doc *feed.Document
		if i < len(docs) {
			doc = docs[i]
		}
		if doc != nil {
			fetched++
		}

		videos, stats, err := s.engine.fetchVideos(ctx, source, doc, filter)
		result.Stats.add(stats)
		if err != nil {
			if errors.Is(err, ErrCache) {
				logger.Error("refresh aborted", logging.Error(err))
				return Result{Videos: []VideoRecord{}, RefreshID: refreshID, Stats: result.Stats}, err
			}
			if enrichErr == nil {
				enrichErr = err
			}
		}
		agg.Add(videos...)
	}

	result.Videos = agg.Feed(FeedOptions{
		Now:               s.now(),
		RecencyWindowDays: filter.RecencyWindowDays,
		Limit:             s.feedLimit,
	})
	s.markWatched(result.Videos)
	result.EnrichmentErr = enrichErr

	switch {
	case fetched == 0:
		result.Diagnostic = DiagnosticFetchFailed
	case result.Stats.Entries == 0:
		result.Diagnostic = DiagnosticNoEntries
	case len(result.Videos) == 0 && enrichErr != nil:
		result.Diagnostic = DiagnosticEnrichmentFailed
	case len(result.Videos) == 0:
		result.Diagnostic = DiagnosticFilteredOut
	}

	logger.Info("refresh finished",
		logging.Int("fetched", fetched),
		logging.Int("videos", len(result.Videos)),
		logging.Int("cache_hits", result.Stats.CacheHits),
		logging.Int("enriched", result.Stats.Enriched),
		logging.Duration("elapsed", time.Since(start)),
	)

	if enrichErr != nil && result.Stats.CacheHits == 0 && len(result.Videos) == 0 {
		return result, enrichErr
	}
	return result, nil
}

// Search queries the search endpoint directly. There is no feed fetch and
// no recency cutoff; results keep the API's order but still pass the
// duration and live-status filter.
func (s *Service) Search(ctx context.Context, query string) (Result, error) {
	refreshID := uuid.NewString()
	logger := s.logger.With(logging.String(logging.FieldRefreshID, refreshID))
	result := Result{Videos: []VideoRecord{}, RefreshID: refreshID}

	if s.searcher == nil {
		return result, ErrSearchUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return result, ErrEmptyQuery
	}

	found, err := s.searcher.Search(ctx, query, s.searchLimit)
	if err != nil {
		result.Diagnostic = DiagnosticEnrichmentFailed
		return result, fmt.Errorf("%w: %w", ErrEnrichment, err)
	}
	if len(found) == 0 {
		result.Diagnostic = DiagnosticNoEntries
		return result, nil
	}

	videos, stats, err := s.engine.fetchSearch(ctx, found, s.engine.Filter())
	result.Stats = stats
	if err != nil && errors.Is(err, ErrCache) {
		return result, err
	}
	result.EnrichmentErr = err
	result.Videos = videos
	s.markWatched(result.Videos)

	logger.Info("search finished",
		logging.Int("results", len(found)),
		logging.Int("videos", len(videos)),
	)

	if len(videos) == 0 {
		if err != nil {
			result.Diagnostic = DiagnosticEnrichmentFailed
			if stats.CacheHits == 0 {
				return result, err
			}
			return result, nil
		}
		result.Diagnostic = DiagnosticFilteredOut
	}
	return result, nil
}

func (s *Service) markWatched(videos []VideoRecord) {
	if s.watched == nil {
		return
	}
	for i := range videos {
		videos[i].Watched = s.watched.Contains(videos[i].ID)
	}
}
