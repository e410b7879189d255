// Package main provides the subfeed CLI entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	info, _ := debug.ReadBuildInfo()
	err := newRootCmd(resolveVersion(version, info)).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "dev" {
		return ldflags
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// newRootCmd creates the root command for subfeed CLI.
func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "subfeed",
		Short:        "Your YouTube subscriptions without the recommendations",
		Long:         "Subfeed merges the feeds of the channels you follow into one list, newest first, skipping shorts, livestreams and very long videos.",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.SetVersionTemplate("subfeed version {{.Version}}\n")

	rootCmd.AddCommand(newVideosCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newChannelsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCacheCmd())

	return rootCmd
}
