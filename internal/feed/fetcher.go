package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/retry"
	"github.com/mmcdole/gofeed"
)

const (
	defaultBaseURL     = "https://www.youtube.com"
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 2
	defaultWorkers     = 8

	maxFeedBytes = 5 << 20
	userAgent    = "subfeed/1.0"
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Namer resolves a source id to a human-readable name for log messages.
type Namer interface {
	DisplayName(id string) string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(client HTTPClient) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithBaseURL sets the feed host (useful for testing).
func WithBaseURL(base string) Option {
	return func(f *Fetcher) {
		f.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxAttempts sets how many times a timed-out fetch is tried in total.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.policy.MaxAttempts = n
		}
	}
}

// WithBackoff overrides the pause between attempts.
func WithBackoff(initial, max time.Duration) Option {
	return func(f *Fetcher) {
		f.policy.InitialBackoff = initial
		f.policy.MaxBackoff = max
	}
}

// WithWorkers sets the size of the FetchAll pool.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logging.NewComponentLogger(logger, "feed")
	}
}

// WithNames makes failure logs use channel names instead of raw ids.
func WithNames(names Namer) Option {
	return func(f *Fetcher) {
		f.names = names
	}
}

// Fetcher downloads and parses channel feeds.
type Fetcher struct {
	httpClient HTTPClient
	baseURL    string
	timeout    time.Duration
	policy     retry.Policy
	workers    int
	logger     *slog.Logger
	names      Namer
}

func NewFetcher(opts ...Option) *Fetcher {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = defaultMaxAttempts

	f := &Fetcher{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		timeout:    defaultTimeout,
		policy:     policy,
		workers:    defaultWorkers,
		logger:     logging.NewComponentLogger(nil, "feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and parses the feed for one source. Only timeouts are
// retried; status, connection and parse failures return at once.
func (f *Fetcher) Fetch(ctx context.Context, source string) (*Document, error) {
	var doc *Document
	attempt := 0
	err := retry.Do(ctx, f.policy, isTimeout, func(ctx context.Context) error {
		attempt++
		d, err := f.fetchOnce(ctx, source)
		if err != nil {
			if isTimeout(err) {
				f.logger.Warn("feed fetch timed out",
					logging.String(logging.FieldSource, f.displayName(source)),
					logging.Int("attempt", attempt),
					logging.Duration("timeout", f.timeout),
				)
			}
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	return doc, nil
}

// FetchAll fetches every source with a fixed pool of workers. The result is
// index-aligned with sources; a failed or undispatched source is nil. It
// returns only after every worker has exited.
func (f *Fetcher) FetchAll(ctx context.Context, sources []string) []*Document {
	docs := make([]*Document, len(sources))
	if len(sources) == 0 {
		return docs
	}

	workers := f.workers
	if workers > len(sources) {
		workers = len(sources)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				doc, err := f.Fetch(ctx, sources[i])
				if err != nil {
					f.logger.Warn("skipping source",
						logging.String(logging.FieldSource, f.displayName(sources[i])),
						logging.Error(err),
					)
					continue
				}
				docs[i] = doc
			}
		}()
	}

dispatch:
	for i := range sources {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	return docs
}

func (f *Fetcher) fetchOnce(ctx context.Context, source string) (*Document, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, f.feedURL(source), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, f.classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, f.classify(ctx, err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	return newDocument(source, parsed), nil
}

// classify marks per-attempt deadline expiry as ErrTimeout. Cancellation of
// the caller's context is passed through unchanged.
func (f *Fetcher) classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w after %s", ErrTimeout, f.timeout)
	}
	return fmt.Errorf("failed to fetch feed: %w", err)
}

func (f *Fetcher) feedURL(source string) string {
	return f.baseURL + "/feeds/videos.xml?channel_id=" + url.QueryEscape(source)
}

func (f *Fetcher) displayName(id string) string {
	if f.names != nil {
		if name := f.names.DisplayName(id); name != "" {
			return name
		}
	}
	return id
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
