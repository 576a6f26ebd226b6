// Package config tests validate config loading behavior.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadAppliesDefaults confirms defaults are applied on load.
func TestLoadAppliesDefaults(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(p, []byte("server:\n  addr: https://fw.example.com/\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(p, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != "https://fw.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.Server.Addr)
	}
	if c.Session.InactivityTimeout != 60*time.Second {
		t.Fatalf("expected default inactivity timeout 60s, got %s", c.Session.InactivityTimeout)
	}
	if c.Dashboard.RefreshInterval != 30*time.Second {
		t.Fatalf("expected default refresh 30s, got %s", c.Dashboard.RefreshInterval)
	}
	if c.Session.TokenPath == "" {
		t.Fatalf("expected token_path default")
	}
}

// TestLoadDurations parses Go duration strings from YAML.
func TestLoadDurations(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	body := "session:\n  inactivity_timeout: 5m\ndashboard:\n  refresh_interval: 10s\n"
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(p, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Session.InactivityTimeout != 5*time.Minute {
		t.Fatalf("inactivity_timeout=%s", c.Session.InactivityTimeout)
	}
	if c.Dashboard.RefreshInterval != 10*time.Second {
		t.Fatalf("refresh_interval=%s", c.Dashboard.RefreshInterval)
	}
}

// TestLoadOptionalMissing returns defaults for an absent optional file.
func TestLoadOptionalMissing(t *testing.T) {
	p := filepath.Join(t.TempDir(), "absent.yaml")
	c, err := Load(p, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr == "" {
		t.Fatalf("expected default server.addr")
	}
	if _, err := Load(p, false); err == nil {
		t.Fatalf("expected error for required missing file")
	}
}

// TestLoadRejectsBadAddr refuses non-HTTP server addresses.
func TestLoadRejectsBadAddr(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("server:\n  addr: ftp://host\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p, false); err == nil {
		t.Fatalf("expected invalid scheme to fail")
	}
}
