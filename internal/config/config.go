// Package config loads and validates jaildash YAML configuration.
// It applies defaults so callers can rely on fully populated values.
package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig points at the jail management API.
type ServerConfig struct {
	Addr     string        `yaml:"addr"`
	Insecure bool          `yaml:"insecure"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SessionConfig holds token storage and inactivity settings.
type SessionConfig struct {
	TokenPath         string        `yaml:"token_path"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
}

// DashboardConfig holds view refresh settings.
type DashboardConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	TemplateTTL     time.Duration `yaml:"template_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// GeoIPConfig enables country annotation of banned addresses.
type GeoIPConfig struct {
	Database string `yaml:"database"`
}

// Config mirrors the config.yaml schema.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Log       LogConfig       `yaml:"log"`
	GeoIP     GeoIPConfig     `yaml:"geoip"`
}

// DefaultPath returns <user config dir>/jaildash/config.yaml.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

func baseDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "jaildash")
}

// Default returns a config populated only with defaults.
func Default() Config {
	var c Config
	applyDefaults(&c)
	return c
}

// Load reads a YAML config file, applies defaults, and validates it.
// When optional is true a missing file yields the defaults.
func Load(path string, optional bool) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	c.Server.Addr = strings.TrimRight(strings.TrimSpace(c.Server.Addr), "/")
	c.Session.TokenPath = strings.TrimSpace(c.Session.TokenPath)
	c.Log.File = strings.TrimSpace(c.Log.File)
	c.GeoIP.Database = strings.TrimSpace(c.GeoIP.Database)
	return c, nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = "http://127.0.0.1:5000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 20 * time.Second
	}
	if c.Session.TokenPath == "" {
		c.Session.TokenPath = filepath.Join(baseDir(), "token")
	}
	if c.Session.InactivityTimeout == 0 {
		c.Session.InactivityTimeout = 60 * time.Second
	}
	if c.Dashboard.RefreshInterval == 0 {
		c.Dashboard.RefreshInterval = 30 * time.Second
	}
	if c.Dashboard.TemplateTTL == 0 {
		c.Dashboard.TemplateTTL = 5 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(baseDir(), "jaildash.log")
	}
}

// validate performs basic sanity checks for required fields and ranges.
// It does not mutate the config.
func validate(c *Config) error {
	u, err := url.Parse(strings.TrimSpace(c.Server.Addr))
	if err != nil || u.Host == "" {
		return errors.New("server.addr is invalid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("server.addr must use http or https")
	}
	if c.Server.Timeout < 0 {
		return errors.New("server.timeout is invalid")
	}
	if c.Session.InactivityTimeout < time.Second {
		return errors.New("session.inactivity_timeout must be at least 1s")
	}
	if c.Dashboard.RefreshInterval < time.Second {
		return errors.New("dashboard.refresh_interval must be at least 1s")
	}
	if c.Dashboard.TemplateTTL < 0 {
		return errors.New("dashboard.template_ttl is invalid")
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		return errors.New("log.level is required")
	}
	return nil
}
