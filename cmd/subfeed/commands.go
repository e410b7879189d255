package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/channels"
	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/display"
	"github.com/gauthierbraillon/subfeed/internal/history"
	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/metacache"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
	"github.com/gauthierbraillon/subfeed/pkg/browser"
)

// newVideosCmd creates the videos subcommand.
func newVideosCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Show recent videos from your subscriptions",
		Long:  "Fetch every subscribed channel's feed and show the videos that pass your filters, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			settings, err := a.settings.Load(ctx)
			if err != nil {
				return err
			}
			subs, err := channels.NewSubscriptions(a.cfg.SubscriptionsPath()).List(ctx)
			if err != nil {
				return err
			}

			names := a.nameCache(ctx, settings.APIKey)
			if _, err := names.Names(ctx, subs); err != nil {
				a.logger.Warn("showing channel ids in place of names", logging.Error(err))
			}

			svc, err := a.service(ctx, settings, names, aggregator.WithFeedLimit(limit))
			if err != nil {
				return err
			}
			result, err := svc.Refresh(ctx, subs)
			if err != nil {
				return fmt.Errorf("failed to refresh videos: %w", err)
			}
			a.report(result, false)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of videos to display (0 shows all)")

	return cmd
}

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search YouTube for videos",
		Long:  "Search YouTube. Results keep the API's order and pass the same length and live-status filter as the feed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			settings, err := a.settings.Load(ctx)
			if err != nil {
				return err
			}
			svc, err := a.service(ctx, settings, a.nameCache(ctx, ""), aggregator.WithSearchLimit(limit))
			if err != nil {
				return err
			}
			result, err := svc.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			a.report(result, true)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 25, "Number of results to request (at most 50)")

	return cmd
}

// newChannelsCmd creates the channels subcommand.
func newChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage subscribed channels",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List subscribed channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			settings, err := a.settings.Load(ctx)
			if err != nil {
				return err
			}
			subs, err := channels.NewSubscriptions(a.cfg.SubscriptionsPath()).List(ctx)
			if err != nil {
				return err
			}

			names, err := a.nameCache(ctx, settings.APIKey).Names(ctx, subs)
			if err != nil {
				a.logger.Warn("showing channel ids in place of names", logging.Error(err))
			}
			rows := make([]display.Channel, 0, len(subs))
			for _, id := range subs {
				rows = append(rows, display.Channel{ID: id, Name: names[id]})
			}
			fmt.Fprint(a.out, a.formatter.FormatChannels(rows))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <link>",
		Short: "Subscribe to a channel by link, handle or name",
		Long:  "Subscribe to a channel. Accepts channel/, @handle and user/ links, or a bare channel name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			settings, err := a.settings.Load(ctx)
			if err != nil {
				return err
			}

			id, err := a.client(settings.APIKey).ResolveChannelID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("could not find channel %q: %w", args[0], err)
			}
			if err := channels.NewSubscriptions(a.cfg.SubscriptionsPath()).Add(ctx, id); err != nil {
				return err
			}

			names := a.nameCache(ctx, settings.APIKey)
			if _, err := names.Names(ctx, []string{id}); err != nil {
				a.logger.Warn("channel name lookup failed", logging.Error(err))
			}
			fmt.Fprintf(a.out, "Subscribed to %s (%s)\n", names.DisplayName(id), id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <channel-id|number>",
		Short: "Unsubscribe by channel id or by its number in 'channels list'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			subs := channels.NewSubscriptions(a.cfg.SubscriptionsPath())

			id := strings.TrimSpace(args[0])
			if n, convErr := strconv.Atoi(id); convErr == nil {
				if id, err = subs.RemoveAt(ctx, n); err != nil {
					return err
				}
			} else if err := subs.Remove(ctx, id); err != nil {
				return err
			}

			names := a.nameCache(ctx, "")
			fmt.Fprintf(a.out, "Unsubscribed from %s\n", names.DisplayName(id))
			return nil
		},
	})

	return cmd
}

// newHistoryCmd creates the history subcommand.
func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show watched videos, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			h, err := a.history(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, a.formatter.FormatHistory(h.List()))
			return nil
		},
	}
}

// newWatchCmd creates the watch subcommand.
func newWatchCmd() *cobra.Command {
	var title, author string

	cmd := &cobra.Command{
		Use:   "watch <video-id|url>",
		Short: "Open a video in your player and mark it watched",
		Long:  "Record the video in your watch history, then open it with the configured player (SUBFEED_PLAYER or player in config.toml), or the system URL handler.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			id, err := videoIDFromArg(args[0])
			if err != nil {
				return err
			}
			h, err := a.history(ctx)
			if err != nil {
				return err
			}
			if err := h.Add(ctx, history.Entry{ID: id, Title: title, Author: author}); err != nil {
				return err
			}

			link := youtube.VideoURL(id)
			if err := browser.New(a.cfg.Player).Open(link); err != nil {
				a.logger.Warn("player did not start", logging.Error(err))
				fmt.Fprintf(a.out, "Could not open a player. Please visit:\n%s\n", link)
				return nil
			}
			fmt.Fprintf(a.out, "Playing %s\n", link)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title to record in history")
	cmd.Flags().StringVar(&author, "author", "", "Channel name to record in history")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View or modify subfeed settings: days (recency window), min-length (minutes) and api-key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			settings, err := a.settings.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Config directory: %s\n", a.cfg.Dir)
			fmt.Fprint(a.out, a.formatter.FormatSettings([][2]string{
				{"days", strconv.Itoa(settings.DaysFilter)},
				{"min-length", strconv.Itoa(settings.MinVideoLength)},
				{"max-length", display.FormatDuration(a.cfg.MaxDurationSeconds)},
				{"api-key", maskKey(settings.APIKey)},
			}))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <days|min-length|api-key> <value>",
		Short:     "Change a setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"days", "min-length", "api-key"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			key, value := args[0], strings.TrimSpace(args[1])

			var apply func(*config.Settings) error
			switch key {
			case "days", "min-length":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid value for %s: %q is not a number", key, value)
				}
				apply = func(s *config.Settings) error {
					if key == "days" {
						s.DaysFilter = n
					} else {
						s.MinVideoLength = n
					}
					return nil
				}
			case "api-key":
				if err := a.client(value).ValidateKey(ctx); err != nil {
					return fmt.Errorf("API key rejected: %w", err)
				}
				apply = func(s *config.Settings) error {
					s.APIKey = value
					return nil
				}
			default:
				return fmt.Errorf("invalid setting %q: must be one of days, min-length, api-key", key)
			}

			if _, err := a.settings.Update(ctx, apply); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s\n", key)
			return nil
		},
	})

	return cmd
}

// newCacheCmd creates the cache subcommand.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the video metadata cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show how many videos are cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			cache, err := metacache.Open(cmd.Context(), a.cfg.CachePath(), a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cached videos: %d\nCache file: %s\n", cache.Len(), cache.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget all cached video metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := metacache.Reset(cmd.Context(), a.cfg.CachePath(), a.logger); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Cache cleared.")
			return nil
		},
	})

	return cmd
}

var errInvalidVideo = errors.New("not a YouTube video id or link")

// videoIDFromArg accepts a bare id, a watch?v= link or a youtu.be link.
func videoIDFromArg(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if !strings.Contains(arg, "/") {
		if arg == "" || strings.ContainsAny(arg, " ?&=") {
			return "", fmt.Errorf("%w: %q", errInvalidVideo, arg)
		}
		return arg, nil
	}

	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("%w: %q", errInvalidVideo, arg)
	}
	var id string
	switch host := strings.TrimPrefix(u.Hostname(), "www."); host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com":
		id = u.Query().Get("v")
	}
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %q", errInvalidVideo, arg)
	}
	return id, nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 4:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}
