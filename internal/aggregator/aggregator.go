package aggregator

import (
	"slices"
	"time"
)

// Aggregator collects videos from every channel and merges them.
type Aggregator struct {
	items []VideoRecord
}

// New creates a new Aggregator instance.
func New() *Aggregator {
	return &Aggregator{
		items: make([]VideoRecord, 0),
	}
}

// Add appends videos in encounter order.
func (a *Aggregator) Add(videos ...VideoRecord) {
	a.items = append(a.items, videos...)
}

// Feed returns the merged list: duplicates removed (first occurrence wins),
// newest first with ties in encounter order, and anything older than the
// recency window dropped.
func (a *Aggregator) Feed(opts FeedOptions) []VideoRecord {
	seen := make(map[string]struct{}, len(a.items))
	feed := make([]VideoRecord, 0, len(a.items))
	for _, item := range a.items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		feed = append(feed, item)
	}

	if len(feed) == 0 {
		return feed
	}

	slices.SortStableFunc(feed, func(x, y VideoRecord) int {
		return y.PublishedAt.Compare(x.PublishedAt)
	})

	if opts.RecencyWindowDays > 0 {
		cutoff := recencyCutoff(opts.Now, feed[0].PublishedAt.Location(), opts.RecencyWindowDays)
		feed = slices.DeleteFunc(feed, func(v VideoRecord) bool {
			return v.PublishedAt.Before(cutoff)
		})
	}

	if opts.Limit > 0 && len(feed) > opts.Limit {
		feed = feed[:opts.Limit]
	}
	return feed
}

// recencyCutoff is now, in the newest video's zone, minus the window.
func recencyCutoff(now time.Time, loc *time.Location, days int) time.Time {
	if now.IsZero() {
		now = time.Now()
	}
	return now.In(loc).Add(-time.Duration(days) * 24 * time.Hour)
}
