// Package metacache keeps per-video metadata so a video is enriched at most
// once. The whole cache is one JSON document keyed by video id.
package metacache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/isotime"
	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/store"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// Record is the cached metadata for one video.
type Record struct {
	DurationSeconds int              `json:"duration_seconds"`
	Liveness        youtube.Liveness `json:"live_broadcast_content"`
	Published       string           `json:"published"`
}

// Valid reports whether the record passes the duration and live-status
// filter. Records that fail are kept in the cache; validity is decided on
// every read.
func (r Record) Valid(filter config.FilterConfig) bool {
	if r.DurationSeconds < filter.MinDurationSeconds || r.DurationSeconds > filter.MaxDurationSeconds {
		return false
	}
	return !r.Liveness.Broadcast()
}

// PublishedAt parses the stored publish timestamp.
func (r Record) PublishedAt() (time.Time, error) {
	return isotime.ParseTimestamp(r.Published)
}

// Cache is the in-memory view of the metadata document. It is safe for
// concurrent use; every write goes through the document's single-writer lock.
type Cache struct {
	doc    *store.Document[map[string]Record]
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]Record
}

func newRecords() map[string]Record { return map[string]Record{} }

func newCache(path string, logger *slog.Logger) *Cache {
	return &Cache{
		doc:     store.NewDocument[map[string]Record](path, store.JSONCodec[map[string]Record]{New: newRecords}),
		logger:  logging.NewComponentLogger(logger, "metacache"),
		records: newRecords(),
	}
}

// Open loads the cache at path. A corrupt document is returned as an error;
// Reset recovers from it.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Cache, error) {
	c := newCache(path, logger)

	records, err := c.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata cache: %w", err)
	}
	c.records = records
	c.logger.Debug("metadata cache loaded", logging.Int("records", len(records)))
	return c, nil
}

// Lookup returns the record for id.
func (c *Cache) Lookup(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	return r, ok
}

// Snapshot returns a copy of every record.
func (c *Cache) Snapshot() map[string]Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.records)
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Save replaces the whole cache with records.
func (c *Cache) Save(ctx context.Context, records map[string]Record) error {
	next := maps.Clone(records)
	if next == nil {
		next = newRecords()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.doc.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save metadata cache: %w", err)
	}
	c.records = next
	return nil
}

// PutAll merges records into the cache in a single read-modify-write, so
// batches written by other handles or processes are kept.
func (c *Cache) PutAll(ctx context.Context, records map[string]Record) error {
	if len(records) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	merged, err := c.doc.Update(ctx, func(current map[string]Record) (map[string]Record, error) {
		if current == nil {
			current = newRecords()
		}
		maps.Copy(current, records)
		return current, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	c.records = merged
	c.logger.Debug("metadata cache updated",
		logging.Int("written", len(records)),
		logging.Int("records", len(merged)),
	)
	return nil
}

// Clear removes every record.
func (c *Cache) Clear(ctx context.Context) error {
	return c.Save(ctx, newRecords())
}

// Reset empties the cache document at path without reading it.
func Reset(ctx context.Context, path string, logger *slog.Logger) error {
	return newCache(path, logger).Clear(ctx)
}

// Path returns the cache document's file path.
func (c *Cache) Path() string { return c.doc.Path() }
