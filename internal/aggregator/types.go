// Package aggregator turns channel feeds into a single filtered video list.
//
// This package enables subfeed to:
// - Resolve each feed entry against the metadata cache, enriching only misses
// - Filter videos by duration and live status
// - Merge every channel's videos newest first within the recency window
// - Run the same cache and filter path for search results
package aggregator

import "time"

// VideoRecord is a video ready for display.
type VideoRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Link            string    `json:"link"`
	Author          string    `json:"author"`
	PublishedAt     time.Time `json:"published_at"`
	DurationSeconds int       `json:"duration_seconds"`
	Watched         bool      `json:"watched"`
}

// FeedOptions configures the merged feed.
type FeedOptions struct {
	// Now is the reference time for the recency cutoff; zero means time.Now.
	Now               time.Time
	RecencyWindowDays int
	Limit             int
}

// Stats counts what happened to the entries of one pass.
type Stats struct {
	Entries   int // entries with a usable id
	CacheHits int
	Enriched  int
	Skipped   int // malformed id or timestamp
	Filtered  int // excluded by duration or live status
	Dropped   int // absent from the enrichment response
}

func (s *Stats) add(o Stats) {
	s.Entries += o.Entries
	s.CacheHits += o.CacheHits
	s.Enriched += o.Enriched
	s.Skipped += o.Skipped
	s.Filtered += o.Filtered
	s.Dropped += o.Dropped
}
