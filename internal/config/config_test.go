package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anstrom/lanscan/internal/store"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "valid yaml config",
			file: "config.yaml",
			content: `
discovery:
  probe_timeout: 500ms
  worker_pool_size: 4
  fallback_cap: 0
session:
  range_pause: 0s
storage:
  database:
    driver: sqlite
    path: /tmp/lanscan.db
schedule:
  - name: nightly
    cron: "0 2 * * *"
    networks: ["192.168.1.0/24"]
`,
			check: func(t *testing.T, c *Config) {
				if c.Discovery.ProbeTimeout != 500*time.Millisecond {
					t.Errorf("probe timeout = %v", c.Discovery.ProbeTimeout)
				}
				if c.Discovery.WorkerPoolSize != 4 {
					t.Errorf("worker pool size = %d", c.Discovery.WorkerPoolSize)
				}
				if c.Discovery.FallbackCap != 0 {
					t.Errorf("fallback cap = %d", c.Discovery.FallbackCap)
				}
				if c.Discovery.EnrichTimeout != 60*time.Second {
					t.Errorf("unset fields should keep defaults, enrich timeout = %v", c.Discovery.EnrichTimeout)
				}
				if c.Storage.Database.Driver != store.DriverSQLite {
					t.Errorf("driver = %q", c.Storage.Database.Driver)
				}
				if len(c.Schedule) != 1 || c.Schedule[0].Name != "nightly" {
					t.Errorf("schedule = %+v", c.Schedule)
				}
			},
		},
		{
			name:    "valid json config",
			file:    "config.json",
			content: `{"networks_file": "/etc/lanscan/networks.json", "api": {"port": 8081}}`,
			check: func(t *testing.T, c *Config) {
				if c.NetworksFile != "/etc/lanscan/networks.json" {
					t.Errorf("networks file = %q", c.NetworksFile)
				}
				if c.GetAPIAddress() != "127.0.0.1:8081" {
					t.Errorf("api address = %q", c.GetAPIAddress())
				}
			},
		},
		{
			name:    "invalid yaml syntax",
			file:    "config.yaml",
			content: "discovery:\n  probe_timeout: [\n",
			wantErr: true,
		},
		{
			name:    "invalid values",
			file:    "config.yaml",
			content: "discovery:\n  worker_pool_size: 0\n",
			wantErr: true,
		},
		{
			name:    "invalid schedule",
			file:    "config.yaml",
			content: "schedule:\n  - name: broken\n    cron: \"not a cron\"\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			cfg, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discovery.FallbackCap != 50 {
		t.Errorf("expected defaults, got fallback cap %d", cfg.Discovery.FallbackCap)
	}

	cfg, err = Load("")
	if err != nil || cfg == nil {
		t.Fatalf("Load(\"\") = %v, %v", cfg, err)
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Storage.Database.Enabled() {
		t.Error("database sink should be disabled by default")
	}
	if cfg.Session.EventCapacity != 100 {
		t.Errorf("event capacity = %d", cfg.Session.EventCapacity)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative fallback cap", func(c *Config) { c.Discovery.FallbackCap = -1 }},
		{"zero probe timeout", func(c *Config) { c.Discovery.ProbeTimeout = 0 }},
		{"zero event capacity", func(c *Config) { c.Session.EventCapacity = 0 }},
		{"negative range pause", func(c *Config) { c.Session.RangePause = -time.Second }},
		{"missing results dir", func(c *Config) { c.Storage.ResultsDir = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Database.Driver = "oracle" }},
		{"missing networks file", func(c *Config) { c.NetworksFile = "" }},
		{"bad api port", func(c *Config) { c.API.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"unnamed schedule", func(c *Config) {
			c.Schedule = []ScheduleEntry{{Cron: "@hourly"}}
		}},
		{"duplicate schedule", func(c *Config) {
			c.Schedule = []ScheduleEntry{{Name: "a", Cron: "@hourly"}, {Name: "a", Cron: "@daily"}}
		}},
		{"schedule network", func(c *Config) {
			c.Schedule = []ScheduleEntry{{Name: "a", Cron: "@hourly", Networks: []string{"bad"}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Discovery.FallbackCap = 128
	cfg.Schedule = []ScheduleEntry{{Name: "hourly", Cron: "@hourly"}}

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Discovery.FallbackCap != 128 {
		t.Errorf("fallback cap = %d", loaded.Discovery.FallbackCap)
	}
	if loaded.Discovery.FallbackDelay != 50*time.Millisecond {
		t.Errorf("fallback delay = %v", loaded.Discovery.FallbackDelay)
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Discovery.FallbackCap = 7
	cfg.Session.RangePause = 0

	sc := cfg.ScannerConfig()
	if sc.FallbackCap != 7 || sc.WorkerPoolSize != 10 || sc.ProbeTimeout != time.Second {
		t.Errorf("scanner config = %+v", sc)
	}

	opts := cfg.SessionOptions()
	if opts.RangePause != 0 || opts.EventCapacity != 100 || opts.NewID == nil {
		t.Errorf("session options = %+v", opts)
	}
}
