// Package logging tests cover level parsing and file output.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestParseLevel normalizes common spellings.
func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" Warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"err":     slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

// TestNewWritesFile sends records to the configured log file.
func TestNewWritesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "jaildash.log")
	lg, closeLog, err := New(Options{Level: "info", File: p})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info("jail refreshed", "jails", 3)
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "jail refreshed") {
		t.Fatalf("log file missing record: %q", b)
	}
}
