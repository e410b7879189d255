package main

import (
	"runtime/debug"
	"testing"
)

const modulePath = "github.com/gauthierbraillon/subfeed"

func buildInfo(version string) *debug.BuildInfo {
	return &debug.BuildInfo{
		Path: modulePath + "/cmd/subfeed",
		Main: debug.Module{Path: modulePath, Version: version},
	}
}

// TestResolveVersion covers release builds, go install and local builds.
func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name    string
		ldflags string
		info    *debug.BuildInfo
		want    string
	}{
		{"release build stamped by ldflags", "v0.4.0", buildInfo("v0.0.0-20240101000000-abcdef123456"), "v0.4.0"},
		{"ldflags win even without build info", "v0.4.0", nil, "v0.4.0"},
		{"go install of a tagged release", "dev", buildInfo("v0.4.1"), "v0.4.1"},
		{"go install of a pseudo-version", "dev", buildInfo("v0.4.2-0.20240301120000-0123456789ab"), "v0.4.2-0.20240301120000-0123456789ab"},
		{"local go build of this checkout", "dev", buildInfo("(devel)"), "dev"},
		{"build info without a version", "dev", buildInfo(""), "dev"},
		{"no build info at all", "dev", nil, "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveVersion(tt.ldflags, tt.info); got != tt.want {
				t.Errorf("subfeed --version should print %q, got %q", tt.want, got)
			}
		})
	}
}
