// Package history records watched videos. The set only marks videos in a
// feed; it never removes them.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/store"
)

var ErrInvalidEntry = errors.New("history entry needs a video id")

// Entry is one watched video.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	WatchedAt time.Time `json:"watched_at"`
}

// History is the persisted watched set.
type History struct {
	doc *store.Document[[]Entry]
	now func() time.Time

	mu      sync.RWMutex
	entries []Entry
	ids     map[string]struct{}
}

// Option configures a History.
type Option func(*History)

// WithClock overrides the time source used for watched_at.
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		if now != nil {
			h.now = now
		}
	}
}

func New(path string, opts ...Option) *History {
	h := &History{
		doc: store.NewDocument[[]Entry](path, store.JSONCodec[[]Entry]{
			New: func() []Entry { return []Entry{} },
		}),
		now: time.Now,
		ids: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load reads the watched set from disk.
func (h *History) Load(ctx context.Context) error {
	entries, err := h.doc.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watch history: %w", err)
	}
	h.replace(entries)
	return nil
}

// Add records a watch. Watching the same video again moves it to the end
// with a fresh watched_at.
func (h *History) Add(ctx context.Context, e Entry) error {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		return ErrInvalidEntry
	}
	if e.WatchedAt.IsZero() {
		e.WatchedAt = h.now()
	}

	entries, err := h.doc.Update(ctx, func(current []Entry) ([]Entry, error) {
		current = slices.DeleteFunc(current, func(existing Entry) bool { return existing.ID == e.ID })
		return append(current, e), nil
	})
	if err != nil {
		return fmt.Errorf("failed to save watch history: %w", err)
	}
	h.replace(entries)
	return nil
}

// Contains reports whether id has been watched.
func (h *History) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.ids[id]
	return ok
}

// List returns the watched videos, most recent first.
func (h *History) List() []Entry {
	h.mu.RLock()
	out := slices.Clone(h.entries)
	h.mu.RUnlock()

	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b Entry) int { return b.WatchedAt.Compare(a.WatchedAt) })
	return out
}

func (h *History) replace(entries []Entry) {
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	h.mu.Lock()
	h.entries = entries
	h.ids = ids
	h.mu.Unlock()
}
