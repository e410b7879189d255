package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/channels"
	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/display"
	"github.com/gauthierbraillon/subfeed/internal/feed"
	"github.com/gauthierbraillon/subfeed/internal/history"
	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/metacache"
	"github.com/gauthierbraillon/subfeed/internal/store"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
	"github.com/spf13/cobra"
)

// app holds what every command needs: configuration, settings and output.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	settings  *config.SettingsStore
	formatter *display.TerminalFormatter
	out       io.Writer
	errOut    io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		settings:  config.NewSettingsStore(cfg.SettingsPath()),
		formatter: display.NewTerminalFormatter(display.WithColor(display.ShouldColorize(cmd.OutOrStdout()))),
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
	}, nil
}

func (a *app) client(apiKey string) *youtube.Client {
	return youtube.NewClient(apiKey, youtube.WithBaseURL(a.cfg.APIBaseURL))
}

// nameCache returns the channel name cache. Names are only resolved online
// when an API key is set.
func (a *app) nameCache(ctx context.Context, apiKey string) *channels.NameCache {
	var resolver channels.NameResolver
	if apiKey != "" {
		resolver = a.client(apiKey)
	}
	names := channels.NewNameCache(a.cfg.ChannelNamesPath(), resolver, a.logger)
	if err := names.Load(ctx); err != nil {
		a.logger.Warn("channel names unavailable", logging.Error(err))
	}
	return names
}

func (a *app) history(ctx context.Context) (*history.History, error) {
	h := history.New(a.cfg.HistoryPath())
	if err := h.Load(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// service wires the fetcher, cache, enrichment client and watch history
// into an aggregation service. opts are applied last.
func (a *app) service(ctx context.Context, settings config.Settings, names *channels.NameCache, opts ...aggregator.ServiceOption) (*aggregator.Service, error) {
	cache, err := metacache.Open(ctx, a.cfg.CachePath(), a.logger)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, fmt.Errorf("%w (reset it with: subfeed cache clear)", err)
		}
		return nil, err
	}
	watched, err := a.history(ctx)
	if err != nil {
		return nil, err
	}

	client := a.client(settings.APIKey)
	fetcher := feed.NewFetcher(
		feed.WithBaseURL(a.cfg.FeedBaseURL),
		feed.WithTimeout(a.cfg.FetchTimeout),
		feed.WithMaxAttempts(a.cfg.FetchAttempts),
		feed.WithWorkers(a.cfg.FetchWorkers),
		feed.WithLogger(a.logger),
		feed.WithNames(names),
	)
	engine := aggregator.NewEngine(cache, client,
		aggregator.WithLogger(a.logger),
		aggregator.WithFilter(settings.Filter(a.cfg.MaxDurationSeconds)),
	)
	return aggregator.NewService(fetcher, engine, append([]aggregator.ServiceOption{
		aggregator.WithSearcher(client),
		aggregator.WithWatched(watched),
		aggregator.WithServiceLogger(a.logger),
	}, opts...)...), nil
}

// report prints videos, or a hint explaining why there are none.
func (a *app) report(result aggregator.Result, search bool) {
	fmt.Fprint(a.out, a.formatter.FormatFeed(result.Videos))

	if result.EnrichmentErr != nil && len(result.Videos) > 0 {
		fmt.Fprint(a.errOut, a.formatter.Warn("some video details could not be loaded: "+result.EnrichmentErr.Error()))
	}
	if hint := diagnosticHint(result.Diagnostic, search); hint != "" {
		fmt.Fprintln(a.errOut, hint)
	}
}

func diagnosticHint(d aggregator.Diagnostic, search bool) string {
	if search && d == aggregator.DiagnosticNoEntries {
		return "No results."
	}
	switch d {
	case aggregator.DiagnosticNoSubscriptions:
		return "You have no subscriptions. Add one with: subfeed channels add <link>"
	case aggregator.DiagnosticFetchFailed:
		return "No channel feed could be loaded. Check your connection and try again."
	case aggregator.DiagnosticNoEntries:
		return "Your channels have not published anything yet."
	case aggregator.DiagnosticFilteredOut:
		return "Every video was filtered out. Widen the window with: subfeed config set days <n>"
	case aggregator.DiagnosticEnrichmentFailed:
		return "Video details could not be loaded from the YouTube API."
	default:
		return ""
	}
}
