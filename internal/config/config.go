// Package config loads process configuration from an optional TOML or YAML
// file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Host backends.
const (
	HostStore = "store"
	HostRoam  = "roam"
)

// Media store backends.
const (
	MediaLocal = "local"
	MediaGCS   = "gcs"
	MediaS3    = "s3"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int `toml:"port" yaml:"port"`

	// Host selects the notes backend: "store" (database) or "roam".
	Host string `toml:"host" yaml:"host"`

	// DatabaseURL is a SQLite path or a postgres:// connection string.
	DatabaseURL string `toml:"database_url" yaml:"database_url"`

	Roam     RoamConfig     `toml:"roam" yaml:"roam"`
	Bluesky  BlueskyConfig  `toml:"bluesky" yaml:"bluesky"`
	Media    MediaConfig    `toml:"media" yaml:"media"`
	Firehose FirehoseConfig `toml:"firehose" yaml:"firehose"`
	Batch    BatchConfig    `toml:"batch" yaml:"batch"`

	// Timezone is the IANA zone used to render {DATE}.
	Timezone string `toml:"timezone" yaml:"timezone"`

	// Settings seed the plugin settings for hosts without settings storage.
	Settings SettingsConfig `toml:"settings" yaml:"settings"`

	Debug bool `toml:"debug" yaml:"debug"`
}

// RoamConfig addresses a Roam graph through the backend API.
type RoamConfig struct {
	APIURL string `toml:"api_url" yaml:"api_url"`
	Graph  string `toml:"graph" yaml:"graph"`
	Token  string `toml:"token" yaml:"token"`
}

// BlueskyConfig addresses the remote API.
type BlueskyConfig struct {
	// Relay is a pass-through proxy prefix for every outbound request.
	Relay       string        `toml:"relay" yaml:"relay"`
	AppViewURL  string        `toml:"appview_url" yaml:"appview_url"`
	ProfileURL  string        `toml:"profile_url" yaml:"profile_url"`
	BlobHost    string        `toml:"blob_host" yaml:"blob_host"`
	ThreadDepth int           `toml:"thread_depth" yaml:"thread_depth"`
	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
}

// MediaConfig selects where relocated media is uploaded.
type MediaConfig struct {
	Store    string `toml:"store" yaml:"store"`
	Dir      string `toml:"dir" yaml:"dir"`
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	Bucket   string `toml:"bucket" yaml:"bucket"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
	Region   string `toml:"region" yaml:"region"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
}

// FirehoseConfig configures the watcher.
type FirehoseConfig struct {
	URL       string   `toml:"url" yaml:"url"`
	Follow    []string `toml:"follow" yaml:"follow"`
	ParentUID string   `toml:"parent_uid" yaml:"parent_uid"`
	Page      string   `toml:"page" yaml:"page"`
}

// BatchConfig is the retry policy applied around each auto-extract item.
type BatchConfig struct {
	Attempts uint          `toml:"attempts" yaml:"attempts"`
	Delay    time.Duration `toml:"delay" yaml:"delay"`
}

// SettingsConfig mirrors the plugin settings keys.
type SettingsConfig struct {
	PostTemplate   string `toml:"post_template" yaml:"post_template"`
	ImageLocation  string `toml:"image_location" yaml:"image_location"`
	AutoExtract    bool   `toml:"auto_extract" yaml:"auto_extract"`
	AutoExtractTag string `toml:"auto_extract_tag" yaml:"auto_extract_tag"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:        3000,
		Host:        HostStore,
		DatabaseURL: "bsky-extract.db",
		Bluesky: BlueskyConfig{
			AppViewURL:  "https://api.bsky.app",
			ProfileURL:  "https://public.api.bsky.app",
			BlobHost:    "https://bsky.social",
			ThreadDepth: 1000,
			Timeout:     30 * time.Second,
		},
		Media: MediaConfig{
			Store: MediaLocal,
			Dir:   "media",
		},
		Firehose: FirehoseConfig{
			URL:  "wss://jetstream1.us-east.bsky.network/subscribe",
			Page: "Bluesky",
		},
		Batch: BatchConfig{
			Attempts: 1,
			Delay:    time.Second,
		},
		Timezone: "UTC",
	}
}

// Load reads the file at path (if non-empty), then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config format %q (use .toml or .yaml)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if p := getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}
	str("BSKY_EXTRACT_HOST", &c.Host)
	str("DATABASE_URL", &c.DatabaseURL)
	str("ROAM_API_URL", &c.Roam.APIURL)
	str("ROAM_GRAPH", &c.Roam.Graph)
	str("ROAM_API_TOKEN", &c.Roam.Token)
	str("BSKY_RELAY_URL", &c.Bluesky.Relay)
	str("BSKY_APPVIEW_URL", &c.Bluesky.AppViewURL)
	str("BSKY_PROFILE_URL", &c.Bluesky.ProfileURL)
	str("BSKY_BLOB_HOST", &c.Bluesky.BlobHost)
	if v := getenv("BSKY_THREAD_DEPTH"); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BSKY_THREAD_DEPTH: %w", err)
		}
		c.Bluesky.ThreadDepth = depth
	}
	str("MEDIA_STORE", &c.Media.Store)
	str("MEDIA_DIR", &c.Media.Dir)
	str("MEDIA_BASE_URL", &c.Media.BaseURL)
	str("MEDIA_BUCKET", &c.Media.Bucket)
	str("MEDIA_PREFIX", &c.Media.Prefix)
	str("MEDIA_REGION", &c.Media.Region)
	str("MEDIA_ENDPOINT", &c.Media.Endpoint)
	str("FIREHOSE_URL", &c.Firehose.URL)
	str("FIREHOSE_PARENT_UID", &c.Firehose.ParentUID)
	if v := getenv("FIREHOSE_FOLLOW"); v != "" {
		c.Firehose.Follow = splitList(v)
	}
	if v := getenv("BATCH_ATTEMPTS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid BATCH_ATTEMPTS: %w", err)
		}
		c.Batch.Attempts = uint(n)
	}
	str("TZ_NAME", &c.Timezone)
	if v := getenv("DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG: %w", err)
		}
		c.Debug = debug
	}
	return nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	switch c.Host {
	case HostStore:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the store host")
		}
	case HostRoam:
		if c.Roam.Graph == "" || c.Roam.Token == "" {
			return fmt.Errorf("roam graph and token are required for the roam host")
		}
	default:
		return fmt.Errorf("unsupported host %q (valid: store, roam)", c.Host)
	}

	switch c.Media.Store {
	case MediaLocal:
		if c.Media.Dir == "" {
			return fmt.Errorf("media dir is required for the local media store")
		}
	case MediaGCS, MediaS3:
		if c.Media.Bucket == "" {
			return fmt.Errorf("media bucket is required for the %s media store", c.Media.Store)
		}
	default:
		return fmt.Errorf("unsupported media store %q (valid: local, gcs, s3)", c.Media.Store)
	}

	if c.Bluesky.ThreadDepth < 1 {
		return fmt.Errorf("thread depth must be positive")
	}
	if c.Batch.Attempts < 1 {
		return fmt.Errorf("batch attempts must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
