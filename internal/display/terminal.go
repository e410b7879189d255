// Package display provides terminal output formatting for subfeed.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/history"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

const (
	separator     = " • "
	titleMaxWidth = 60
	watchedMark   = "✓"
)

// Channel is one subscription row.
type Channel struct {
	ID   string
	Name string
}

// Option configures a TerminalFormatter.
type Option func(*TerminalFormatter)

// WithColor turns ANSI colours on or off.
func WithColor(enabled bool) Option {
	return func(f *TerminalFormatter) {
		f.color = enabled
	}
}

// WithClock sets the reference time for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *TerminalFormatter) {
		if now != nil {
			f.now = now
		}
	}
}

// TerminalFormatter formats videos, channels and history for terminal display.
type TerminalFormatter struct {
	color bool
	now   func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter. Colour is off
// unless WithColor is given.
func NewTerminalFormatter(opts ...Option) *TerminalFormatter {
	f := &TerminalFormatter{now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ShouldColorize reports whether w is an interactive terminal.
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// FormatItem formats a single video as a block.
func (f *TerminalFormatter) FormatItem(v aggregator.VideoRecord) string {
	var lines []string

	title := v.Title
	if v.Watched {
		title = watchedMark + " " + title
	}
	lines = append(lines, f.paint(text.Bold, title))

	meta := fmt.Sprintf("  by %s%s%s%s%s", v.Author, separator, f.FormatTimestamp(v.PublishedAt), separator, FormatDuration(v.DurationSeconds))
	lines = append(lines, meta)

	if v.Link != "" {
		lines = append(lines, "  "+v.Link)
	}

	return strings.Join(lines, "\n") + "\n"
}

// FormatFeed renders videos as a numbered table. Watched videos are marked
// and dimmed.
func (f *TerminalFormatter) FormatFeed(videos []aggregator.VideoRecord) string {
	if len(videos) == 0 {
		return "No videos found.\n"
	}

	tw := f.newTable()
	tw.AppendHeader(table.Row{"#", "", "Title", "Channel", "Length", "Published", "ID"})
	for i, v := range videos {
		mark := ""
		if v.Watched {
			mark = watchedMark
		}
		row := table.Row{
			i + 1,
			mark,
			f.TruncateText(v.Title, titleMaxWidth),
			v.Author,
			FormatDuration(v.DurationSeconds),
			f.FormatTimestamp(v.PublishedAt),
			v.ID,
		}
		if v.Watched && f.color {
			for j := range row {
				row[j] = text.FgHiBlack.Sprint(row[j])
			}
		}
		tw.AppendRow(row)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render() + "\n"
}

// FormatChannels renders the subscription list with 1-based indices, the
// same numbering `channels remove` accepts.
func (f *TerminalFormatter) FormatChannels(channels []Channel) string {
	if len(channels) == 0 {
		return "No subscriptions yet. Add one with: subfeed channels add <link>\n"
	}

	tw := f.newTable()
	tw.AppendHeader(table.Row{"#", "Name", "Channel ID"})
	for i, c := range channels {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		tw.AppendRow(table.Row{i + 1, name, c.ID})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return tw.Render() + "\n"
}

// FormatHistory renders watched videos, newest first as given.
func (f *TerminalFormatter) FormatHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return "No watched videos.\n"
	}

	tw := f.newTable()
	tw.AppendHeader(table.Row{"Watched", "Title", "Channel", "ID"})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			f.FormatTimestamp(e.WatchedAt),
			f.TruncateText(e.Title, titleMaxWidth),
			e.Author,
			e.ID,
		})
	}
	return tw.Render() + "\n"
}

// FormatSettings renders key/value pairs in the given order.
func (f *TerminalFormatter) FormatSettings(pairs [][2]string) string {
	tw := f.newTable()
	tw.AppendHeader(table.Row{"Setting", "Value"})
	for _, p := range pairs {
		tw.AppendRow(table.Row{p[0], p[1]})
	}
	return tw.Render() + "\n"
}

// Warn formats a warning line for stderr.
func (f *TerminalFormatter) Warn(msg string) string {
	return f.paint(text.FgYellow, "warning: "+msg) + "\n"
}

func (f *TerminalFormatter) newTable() table.Writer {
	tw := table.NewWriter()
	if f.color {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Format.Header = text.FormatDefault
	}
	return tw
}

func (f *TerminalFormatter) paint(c text.Color, s string) string {
	if !f.color {
		return s
	}
	return c.Sprint(s)
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	diff := f.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
