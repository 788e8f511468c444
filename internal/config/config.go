// Package config holds the lanscan configuration tree. Files are YAML (JSON
// is accepted as a YAML subset); every field has a default so an absent
// file yields a working configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/logging"
	"github.com/anstrom/lanscan/internal/session"
	"github.com/anstrom/lanscan/internal/store"
)

// Config represents the complete configuration.
type Config struct {
	// Discovery tunes probing and enrichment
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`

	// Session tunes the orchestrator
	Session SessionConfig `yaml:"session" json:"session"`

	// Storage selects where completed sessions are persisted
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// NetworksFile is the JSON array of ranges scanned by default
	NetworksFile string `yaml:"networks_file" json:"networks_file"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Schedule lists recurring sessions
	Schedule []ScheduleEntry `yaml:"schedule" json:"schedule"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// DiscoveryConfig holds probing and enrichment settings.
type DiscoveryConfig struct {
	// Liveness probe timeout per address
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// Reverse name and hardware address lookups
	IdentityTimeout time.Duration `yaml:"identity_timeout" json:"identity_timeout"`

	// Fingerprinting timeout per host
	EnrichTimeout time.Duration `yaml:"enrich_timeout" json:"enrich_timeout"`

	// Concurrent enrichment workers
	WorkerPoolSize int `yaml:"worker_pool_size" json:"worker_pool_size"`

	// Addresses probed per range without a bulk sweep, 0 for no cap
	FallbackCap int `yaml:"fallback_cap" json:"fallback_cap"`

	// Pause between sequential probes
	FallbackDelay time.Duration `yaml:"fallback_delay" json:"fallback_delay"`

	// Bulk sweep timeout per range
	SweepTimeout time.Duration `yaml:"sweep_timeout" json:"sweep_timeout"`

	// nmap binary, empty to search PATH
	NmapPath string `yaml:"nmap_path" json:"nmap_path"`

	// Use raw ICMP sockets instead of unprivileged UDP pings
	PrivilegedPing bool `yaml:"privileged_ping" json:"privileged_ping"`

	// DNS server for reverse lookups, empty for resolv.conf
	DNSServer string `yaml:"dns_server" json:"dns_server"`

	// Skip nmap OS and port fingerprinting
	DisableFingerprint bool `yaml:"disable_fingerprint" json:"disable_fingerprint"`

	// Extra "AA:BB:CC<tab>Vendor" prefixes merged over the built-in table
	OUIFile string `yaml:"oui_file" json:"oui_file"`
}

// SessionConfig holds orchestrator settings.
type SessionConfig struct {
	RangePause    time.Duration `yaml:"range_pause" json:"range_pause"`
	EventCapacity int           `yaml:"event_capacity" json:"event_capacity"`
	SinkTimeout   time.Duration `yaml:"sink_timeout" json:"sink_timeout"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	ResultsDir  string       `yaml:"results_dir" json:"results_dir"`
	JSONEnabled bool         `yaml:"json_enabled" json:"json_enabled"`
	Database    store.Config `yaml:"database" json:"database"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	// Enable API server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address
	Host string `yaml:"host" json:"host"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// CORS allowed origins, empty disables CORS headers
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// Maximum request body size in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`

	// Expose prometheus metrics at /metrics
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
}

// ScheduleEntry is one recurring session.
type ScheduleEntry struct {
	Name string `yaml:"name" json:"name"`
	// Cron is a standard five field expression or a descriptor like @hourly
	Cron string `yaml:"cron" json:"cron"`
	// Networks to scan, empty for the stored network list
	Networks []string `yaml:"networks" json:"networks"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			ProbeTimeout:    time.Second,
			IdentityTimeout: 2 * time.Second,
			EnrichTimeout:   60 * time.Second,
			WorkerPoolSize:  10,
			FallbackCap:     50,
			FallbackDelay:   50 * time.Millisecond,
			SweepTimeout:    5 * time.Minute,
		},
		Session: SessionConfig{
			RangePause:    time.Second,
			EventCapacity: session.DefaultEventCapacity,
			SinkTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			ResultsDir:  "results",
			JSONEnabled: true,
			Database:    store.DefaultConfig(),
		},
		NetworksFile: "networks.json",
		API: APIConfig{
			Enabled:        true,
			Host:           "127.0.0.1",
			Port:           5000,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{},
			MaxRequestSize: 1024 * 1024, // 1MB
			EnableMetrics:  true,
		},
		Schedule: []ScheduleEntry{},
		Logging:  logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	d := &c.Discovery
	if d.ProbeTimeout <= 0 {
		return fmt.Errorf("discovery probe timeout must be positive")
	}
	if d.IdentityTimeout <= 0 {
		return fmt.Errorf("discovery identity timeout must be positive")
	}
	if d.EnrichTimeout <= 0 {
		return fmt.Errorf("discovery enrich timeout must be positive")
	}
	if d.SweepTimeout <= 0 {
		return fmt.Errorf("discovery sweep timeout must be positive")
	}
	if d.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive")
	}
	if d.FallbackCap < 0 {
		return fmt.Errorf("fallback cap must not be negative")
	}
	if d.FallbackDelay < 0 {
		return fmt.Errorf("fallback delay must not be negative")
	}

	if c.Session.RangePause < 0 {
		return fmt.Errorf("session range pause must not be negative")
	}
	if c.Session.EventCapacity <= 0 {
		return fmt.Errorf("session event capacity must be positive")
	}

	if c.Storage.JSONEnabled && c.Storage.ResultsDir == "" {
		return fmt.Errorf("results directory is required when JSON results are enabled")
	}
	if err := c.Storage.Database.Validate(); err != nil {
		return err
	}

	if c.NetworksFile == "" {
		return fmt.Errorf("networks file is required")
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("API port must be between 1 and 65535")
		}
		if c.API.Host == "" {
			return fmt.Errorf("API host is required when API is enabled")
		}
	}

	names := make(map[string]bool, len(c.Schedule))
	for i := range c.Schedule {
		entry := &c.Schedule[i]
		if entry.Name == "" {
			return fmt.Errorf("schedule entry %d has no name", i)
		}
		if names[entry.Name] {
			return fmt.Errorf("duplicate schedule entry %q", entry.Name)
		}
		names[entry.Name] = true
		if _, err := cron.ParseStandard(entry.Cron); err != nil {
			return fmt.Errorf("schedule %q: invalid cron expression %q: %w", entry.Name, entry.Cron, err)
		}
		for _, n := range entry.Networks {
			if err := discovery.ValidateRange(n); err != nil {
				return fmt.Errorf("schedule %q: %w", entry.Name, err)
			}
		}
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[logging.LogLevel(strings.ToLower(string(c.Logging.Level)))] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != logging.FormatText && c.Logging.Format != logging.FormatJSON {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// ScannerConfig returns the range scanner settings.
func (c *Config) ScannerConfig() discovery.Config {
	return discovery.Config{
		WorkerPoolSize: c.Discovery.WorkerPoolSize,
		FallbackCap:    c.Discovery.FallbackCap,
		FallbackDelay:  c.Discovery.FallbackDelay,
		ProbeTimeout:   c.Discovery.ProbeTimeout,
	}
}

// SessionOptions returns orchestrator options. Sinks are added by the caller.
func (c *Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.RangePause = c.Session.RangePause
	opts.EventCapacity = c.Session.EventCapacity
	if c.Session.SinkTimeout > 0 {
		opts.SinkTimeout = c.Session.SinkTimeout
	}
	return opts
}

// GetAPIAddress returns the API listen address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
