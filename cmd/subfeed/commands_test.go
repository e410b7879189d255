package main

import (
	"errors"
	"testing"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
)

func TestVideoIDFromArg(t *testing.T) {
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"  dQw4w9WgXcQ ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=abc", "abc", false},
		{"https://youtu.be/abc123", "abc123", false},
		{"https://www.youtube.com/channel/UC1", "", true},
		{"https://example.com/watch?v=abc", "", true},
		{"", "", true},
		{"two words", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := videoIDFromArg(tt.arg)
			if tt.wantErr {
				if !errors.Is(err, errInvalidVideo) {
					t.Errorf("expected errInvalidVideo, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("videoIDFromArg(%q) = %q, %v; want %q", tt.arg, got, err, tt.want)
			}
		})
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey(""); got != "(not set)" {
		t.Errorf("empty key should read as not set, got %q", got)
	}
	if got := maskKey("abc"); got != "****" {
		t.Errorf("short keys should be fully masked, got %q", got)
	}
	if got := maskKey("AIzaSecret1234"); got != "****1234" {
		t.Errorf("only the last four characters should show, got %q", got)
	}
}

func TestDiagnosticHint(t *testing.T) {
	if diagnosticHint(aggregator.DiagnosticNone, false) != "" {
		t.Error("a healthy result needs no hint")
	}
	if diagnosticHint(aggregator.DiagnosticNoEntries, true) != "No results." {
		t.Error("an empty search should say there are no results")
	}
	if diagnosticHint(aggregator.DiagnosticNoEntries, false) == "No results." {
		t.Error("an empty feed should not read like an empty search")
	}
}
