package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Ensure no config file affects the test
	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	_ = os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected loglevel=info, got %s", cfg.LogLevel)
	}
	if cfg.Socket.Path != "/run/logflux.sock" {
		t.Errorf("expected socket path=/run/logflux.sock, got %s", cfg.Socket.Path)
	}
	if cfg.Dispatch.Strategy != DispatchSequential {
		t.Errorf("expected dispatch strategy=sequential, got %s", cfg.Dispatch.Strategy)
	}
	if cfg.MessageFormat != "" {
		t.Errorf("expected message format auto-detected, got %s", cfg.MessageFormat)
	}

	// Sink defaults: influx on, everything else off
	if !cfg.Sinks.Influx.Enabled {
		t.Error("expected influx sink enabled by default")
	}
	if cfg.Sinks.Influx.Database != "logflux" {
		t.Errorf("expected influx database=logflux, got %s", cfg.Sinks.Influx.Database)
	}
	if cfg.Sinks.Influx.Timeout != 10*time.Second {
		t.Errorf("expected influx timeout=10s, got %v", cfg.Sinks.Influx.Timeout)
	}
	if cfg.Sinks.Stdout.Enabled {
		t.Error("expected stdout sink disabled by default")
	}
	if cfg.Sinks.File.Enabled {
		t.Error("expected file sink disabled by default")
	}
	if cfg.Sinks.Elasticsearch.Enabled {
		t.Error("expected elasticsearch sink disabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics endpoint disabled by default")
	}
}

func TestLoad_File(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "logflux.yaml")

	yaml := `
loglevel: debug
messageformat: json
socket:
  path: /tmp/test.sock
dispatch:
  strategy: pool
  workers: 8
rules:
  - name: errors
    match:
      key: level
      regex: error
    tags:
      host: host
  - name: warnings
    match:
      key: level
      regex: ^warn$
    fields:
      latency_ms:
        lookup: latency_ms
        type: int
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected loglevel=debug, got %s", cfg.LogLevel)
	}
	if cfg.MessageFormat != "json" {
		t.Errorf("expected messageformat=json, got %s", cfg.MessageFormat)
	}
	if cfg.Socket.Path != "/tmp/test.sock" {
		t.Errorf("expected socket path override, got %s", cfg.Socket.Path)
	}
	if cfg.Dispatch.Strategy != DispatchPool || cfg.Dispatch.Workers != 8 {
		t.Errorf("expected pool/8, got %s/%d", cfg.Dispatch.Strategy, cfg.Dispatch.Workers)
	}

	if len(cfg.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(cfg.Rules))
	}
	if cfg.Rules[0].Name != "errors" || cfg.Rules[0].Match.Key != "level" {
		t.Errorf("unexpected first rule: %+v", cfg.Rules[0])
	}
	if cfg.Rules[0].Tags["host"] != "host" {
		t.Errorf("expected bare string tag lookup, got %+v", cfg.Rules[0].Tags)
	}
	spec, ok := cfg.Rules[1].Fields["latency_ms"].(map[string]any)
	if !ok {
		t.Fatalf("expected map lookup spec, got %T", cfg.Rules[1].Fields["latency_ms"])
	}
	if spec["type"] != "int" {
		t.Errorf("expected lookup type=int, got %v", spec["type"])
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	origDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	_ = os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	os.Setenv("LOGFLUX_LOGLEVEL", "debug")
	defer os.Unsetenv("LOGFLUX_LOGLEVEL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected env override loglevel=debug, got %s", cfg.LogLevel)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaults()
		return &cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty socket path",
			mutate:  func(c *Config) { c.Socket.Path = "" },
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Dispatch.Strategy = "forking" },
			wantErr: true,
		},
		{
			name: "pool without workers",
			mutate: func(c *Config) {
				c.Dispatch.Strategy = DispatchPool
				c.Dispatch.Workers = 0
			},
			wantErr: true,
		},
		{
			name: "pool with workers",
			mutate: func(c *Config) {
				c.Dispatch.Strategy = DispatchPool
				c.Dispatch.Workers = 4
			},
		},
		{
			name:    "unknown message format",
			mutate:  func(c *Config) { c.MessageFormat = "xml" },
			wantErr: true,
		},
		{
			name:    "no sinks enabled",
			mutate:  func(c *Config) { c.Sinks.Influx.Enabled = false },
			wantErr: true,
		},
		{
			name: "influx without database",
			mutate: func(c *Config) {
				c.Sinks.Influx.Database = ""
			},
			wantErr: true,
		},
		{
			name: "file sink without path",
			mutate: func(c *Config) {
				c.Sinks.File.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "elasticsearch without addresses",
			mutate: func(c *Config) {
				c.Sinks.Influx.Enabled = false
				c.Sinks.Elasticsearch.Enabled = true
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
