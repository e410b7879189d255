// Package browser launches a video URL in a media player or the system's
// default URL handler.
package browser

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Option configures a Launcher.
type Option func(*Launcher)

// WithStarter replaces the function that starts the built command.
func WithStarter(start func(*exec.Cmd) error) Option {
	return func(l *Launcher) {
		l.start = start
	}
}

// WithPlatform overrides runtime.GOOS when picking the system opener.
func WithPlatform(goos string) Option {
	return func(l *Launcher) {
		l.goos = goos
	}
}

// Launcher opens video URLs. A configured player command such as "mpv" or
// "mpv --fs" is used when set; otherwise the platform opener is used.
type Launcher struct {
	player []string
	goos   string
	start  func(*exec.Cmd) error
}

func New(player string, opts ...Option) *Launcher {
	l := &Launcher{
		player: strings.Fields(player),
		goos:   runtime.GOOS,
		start:  (*exec.Cmd).Start,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open validates the URL and starts the player without waiting for it.
func (l *Launcher) Open(urlString string) error {
	cmd, err := l.Command(urlString)
	if err != nil {
		return err
	}
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	return nil
}

// Command builds the command that would open urlString. Only http and https
// URLs are accepted.
func (l *Launcher) Command(urlString string) (*exec.Cmd, error) {
	// Validate URL to prevent command injection (fixes G204/CWE-78)
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https allowed)", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}

	if len(l.player) > 0 {
		args := append(append([]string(nil), l.player[1:]...), urlString)
		return exec.Command(l.player[0], args...), nil // #nosec G204 -- player comes from the user's config, URL validated above
	}

	switch l.goos {
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", urlString), nil // #nosec G204 -- URL validated above
	case "darwin":
		return exec.Command("open", urlString), nil // #nosec G204 -- URL validated above
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", urlString), nil // #nosec G204 -- URL validated above
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, l.goos)
	}
}
