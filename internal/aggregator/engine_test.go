package aggregator

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/feed"
	"github.com/gauthierbraillon/subfeed/internal/metacache"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

var defaultFilter = config.FilterConfig{MinDurationSeconds: 120, MaxDurationSeconds: 14400, RecencyWindowDays: 7}

type fakeEnricher struct {
	details map[string]youtube.VideoDetails
	err     error
	calls   [][]string
}

func (f *fakeEnricher) BatchLookup(_ context.Context, ids []string) (map[string]youtube.VideoDetails, error) {
	f.calls = append(f.calls, append([]string(nil), ids...))
	if f.err != nil && f.details == nil {
		return nil, f.err
	}
	out := map[string]youtube.VideoDetails{}
	for _, id := range ids {
		if d, ok := f.details[id]; ok {
			out[id] = d
		}
	}
	return out, f.err
}

type failingCache struct{}

func (failingCache) Lookup(string) (metacache.Record, bool) { return metacache.Record{}, false }
func (failingCache) PutAll(context.Context, map[string]metacache.Record) error {
	return errors.New("disk full")
}

func openCache(t *testing.T) *metacache.Cache {
	t.Helper()
	c, err := metacache.Open(context.Background(), filepath.Join(t.TempDir(), "cache.json"), nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	return c
}

func normal(duration string) youtube.VideoDetails {
	return youtube.VideoDetails{Duration: duration, Liveness: youtube.LivenessNormal}
}

func sampleDoc() *feed.Document {
	return &feed.Document{
		Source: "UC1",
		Entries: []feed.Entry{
			{ID: "yt:video:vid1", Title: "First VIDEO 🎬", Link: "https://www.youtube.com/watch?v=vid1", Published: "2024-01-15T10:00:00+00:00", Author: "Gophers"},
			{ID: "yt:video:vid2", Title: "Second", Link: "https://www.youtube.com/watch?v=vid2", Published: "2024-01-14T10:00:00+00:00", Author: "Gophers"},
		},
	}
}

func TestEngine_SecondPassUsesCacheOnly(t *testing.T) {
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{
		"vid1": normal("PT10M"),
		"vid2": normal("PT5M30S"),
	}}
	e := NewEngine(openCache(t), enricher, WithFilter(defaultFilter))
	ctx := context.Background()

	first, _, err := e.FetchVideos(ctx, "UC1", sampleDoc())
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	second, stats, err := e.FetchVideos(ctx, "UC1", sampleDoc())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	if len(enricher.calls) != 1 {
		t.Errorf("second pass should not call enrichment, got %d calls", len(enricher.calls))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("passes should match:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if stats.CacheHits != 2 || stats.Enriched != 0 {
		t.Errorf("second pass should be all cache hits, got %+v", stats)
	}
	if first[0].Title != "First video" || first[0].DurationSeconds != 600 || first[1].DurationSeconds != 330 {
		t.Errorf("unexpected videos %+v", first)
	}
}

func TestEngine_WritesToCacheBeforeFiltering(t *testing.T) {
	cache := openCache(t)
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{
		"vid1": normal("PT10M"),
		"vid2": normal("PT1M"),
	}}
	e := NewEngine(cache, enricher, WithFilter(defaultFilter))
	ctx := context.Background()

	videos, stats, err := e.FetchVideos(ctx, "UC1", sampleDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "vid1" {
		t.Fatalf("the 1 minute video should be filtered out, got %+v", videos)
	}
	if stats.Filtered != 1 {
		t.Errorf("expected 1 filtered entry, got %+v", stats)
	}
	if r, ok := cache.Lookup("vid2"); !ok || r.DurationSeconds != 60 {
		t.Fatalf("filtered video should still be cached, got %+v (found %v)", r, ok)
	}

	loose := defaultFilter
	loose.MinDurationSeconds = 0
	e.SetFilter(loose)
	videos, _, err = e.FetchVideos(ctx, "UC1", sampleDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Errorf("loosening the filter should bring the video back, got %d", len(videos))
	}
	if len(enricher.calls) != 1 {
		t.Errorf("loosening the filter must not trigger enrichment, got %d calls", len(enricher.calls))
	}
}

func TestEngine_ExcludesBroadcasts(t *testing.T) {
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{
		"vid1": {Duration: "PT10M", Liveness: youtube.LivenessLive},
		"vid2": {Duration: "PT10M", Liveness: youtube.LivenessUpcoming},
	}}
	e := NewEngine(openCache(t), enricher, WithFilter(defaultFilter))

	videos, _, err := e.FetchVideos(context.Background(), "UC1", sampleDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 0 {
		t.Errorf("live and upcoming broadcasts should be excluded, got %+v", videos)
	}
}

func TestEngine_SkipsMalformedIDsAndKeepsTheRest(t *testing.T) {
	doc := sampleDoc()
	doc.Entries = append([]feed.Entry{{ID: "no-separator", Title: "Broken", Published: "2024-01-16T10:00:00+00:00"}}, doc.Entries...)
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{
		"vid1": normal("PT10M"),
		"vid2": normal("PT10M"),
	}}
	e := NewEngine(openCache(t), enricher, WithFilter(defaultFilter))

	videos, stats, err := e.FetchVideos(context.Background(), "UC1", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Errorf("remaining entries should still be processed, got %d", len(videos))
	}
	if stats.Skipped != 1 {
		t.Errorf("malformed entry should be counted as skipped, got %+v", stats)
	}
	if !reflect.DeepEqual(enricher.calls[0], []string{"vid1", "vid2"}) {
		t.Errorf("malformed entry must not reach enrichment, got %v", enricher.calls[0])
	}
}

func TestEngine_EmptyOrMissingDocument(t *testing.T) {
	enricher := &fakeEnricher{}
	e := NewEngine(openCache(t), enricher)

	for _, doc := range []*feed.Document{nil, {Source: "UC1"}} {
		videos, _, err := e.FetchVideos(context.Background(), "UC1", doc)
		if err != nil || videos == nil || len(videos) != 0 {
			t.Errorf("expected empty non-nil result, got %v, %v", videos, err)
		}
	}
	if len(enricher.calls) != 0 {
		t.Error("empty feeds should not call enrichment")
	}
}

func TestEngine_TotalEnrichmentFailureReturnsCacheHits(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()
	_ = cache.PutAll(ctx, map[string]metacache.Record{
		"vid1": {DurationSeconds: 600, Liveness: youtube.LivenessNormal, Published: "2024-01-15T10:00:00+00:00"},
	})
	enricher := &fakeEnricher{err: youtube.ErrQuotaExceeded}
	e := NewEngine(cache, enricher, WithFilter(defaultFilter))

	videos, _, err := e.FetchVideos(ctx, "UC1", sampleDoc())

	if !errors.Is(err, ErrEnrichment) || !errors.Is(err, youtube.ErrQuotaExceeded) {
		t.Errorf("error should be distinguishable as an enrichment failure, got %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "vid1" {
		t.Errorf("cached videos should still be returned, got %+v", videos)
	}
}

func TestEngine_PartialResponseDropsMissingIDs(t *testing.T) {
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{"vid1": normal("PT10M")}}
	e := NewEngine(openCache(t), enricher, WithFilter(defaultFilter))

	videos, stats, err := e.FetchVideos(context.Background(), "UC1", sampleDoc())

	if err != nil {
		t.Fatalf("ids missing from the response are not an error, got %v", err)
	}
	if len(videos) != 1 || stats.Dropped != 1 {
		t.Errorf("missing id should be dropped, got %+v / %+v", videos, stats)
	}
}

func TestEngine_InvalidCachedDateIsEnrichedAgain(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()
	_ = cache.PutAll(ctx, map[string]metacache.Record{
		"vid1": {DurationSeconds: 600, Liveness: youtube.LivenessNormal, Published: "not a date"},
		"vid2": {DurationSeconds: 600, Liveness: youtube.LivenessNormal, Published: "2024-01-14T10:00:00+00:00"},
	})
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{"vid1": normal("PT10M")}}
	e := NewEngine(cache, enricher, WithFilter(defaultFilter))

	videos, _, err := e.FetchVideos(ctx, "UC1", sampleDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(enricher.calls) != 1 || !reflect.DeepEqual(enricher.calls[0], []string{"vid1"}) {
		t.Errorf("only the unreadable cache entry should be enriched, got %v", enricher.calls)
	}
	if len(videos) != 2 || videos[0].ID != "vid2" || videos[1].ID != "vid1" {
		t.Errorf("cache hits should come before enriched videos, got %+v", videos)
	}
	if r, _ := cache.Lookup("vid1"); r.Published != "2024-01-15T10:00:00+00:00" {
		t.Errorf("cache entry should be repaired, got %q", r.Published)
	}
}

func TestEngine_MalformedDurationCountsAsZero(t *testing.T) {
	cache := openCache(t)
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{
		"vid1": normal("garbage"),
		"vid2": normal("PT10M"),
	}}
	e := NewEngine(cache, enricher, WithFilter(defaultFilter))

	videos, _, err := e.FetchVideos(context.Background(), "UC1", sampleDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != "vid2" {
		t.Errorf("a zero-length video should be filtered, got %+v", videos)
	}
	if r, ok := cache.Lookup("vid1"); !ok || r.DurationSeconds != 0 {
		t.Errorf("malformed duration should be cached as 0, got %+v", r)
	}
}

func TestEngine_CacheWriteFailureIsFatal(t *testing.T) {
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{"vid1": normal("PT10M")}}
	e := NewEngine(failingCache{}, enricher, WithFilter(defaultFilter))

	videos, _, err := e.FetchVideos(context.Background(), "UC1", sampleDoc())

	if !errors.Is(err, ErrCache) {
		t.Errorf("expected ErrCache, got %v", err)
	}
	if videos != nil {
		t.Errorf("no videos should be returned on cache failure, got %+v", videos)
	}
}

func TestEngine_FetchSearchKeepsResultOrder(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()
	_ = cache.PutAll(ctx, map[string]metacache.Record{
		"s2": {DurationSeconds: 900, Liveness: youtube.LivenessNormal, Published: "2024-01-10T10:00:00Z"},
	})
	enricher := &fakeEnricher{details: map[string]youtube.VideoDetails{
		"s1": normal("PT20M"),
		"s3": normal("PT30S"),
	}}
	e := NewEngine(cache, enricher, WithFilter(defaultFilter))

	videos, _, err := e.FetchSearch(ctx, []youtube.SearchResult{
		{ID: "s1", Title: "One", ChannelTitle: "Chan", Published: "2024-01-01T10:00:00Z"},
		{ID: "s2", Title: "Two", Published: "2024-01-10T10:00:00Z"},
		{ID: "s3", Title: "Three", Published: "2024-01-05T10:00:00Z"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(videos) != 2 || videos[0].ID != "s1" || videos[1].ID != "s2" {
		t.Fatalf("search should keep API order and filter short videos, got %+v", videos)
	}
	if videos[0].Link != "https://www.youtube.com/watch?v=s1" {
		t.Errorf("unexpected link %q", videos[0].Link)
	}
	if videos[1].Author != feed.UnknownAuthor {
		t.Errorf("missing channel title should show as %q, got %q", feed.UnknownAuthor, videos[1].Author)
	}
}
