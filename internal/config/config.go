// Package config provides configuration loading with layered overrides.
// Load order: defaults -> YAML file -> environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	configloader "github.com/GabrielNunesIT/go-libs/config-loader"

	"github.com/GabrielNunesIT/logflux/internal/rule"
)

// Dispatch strategy names.
const (
	DispatchSequential = "sequential"
	DispatchConcurrent = "concurrent"
	DispatchPool       = "pool"
)

// Config is the root configuration structure for logflux.
type Config struct {
	LogLevel      string            `koanf:"loglevel" yaml:"log_level" json:"log_level"`
	MessageFormat string            `koanf:"messageformat" yaml:"message_format" json:"message_format"`
	Socket        SocketConfig      `koanf:"socket"`
	Dispatch      DispatchConfig    `koanf:"dispatch"`
	Rules         []rule.Definition `koanf:"rules"`
	Sinks         SinkConfig        `koanf:"sinks"`
	Metrics       MetricsConfig     `koanf:"metrics"`
}

// SocketConfig describes the local datagram socket the listener binds.
type SocketConfig struct {
	Path string `koanf:"path"`
}

// DispatchConfig selects the concurrency strategy for message handling.
type DispatchConfig struct {
	Strategy string `koanf:"strategy"`
	Workers  int    `koanf:"workers"`
}

// SinkConfig holds configuration for all sinks.
type SinkConfig struct {
	Influx        InfluxSinkConfig        `koanf:"influx"`
	Stdout        StdoutSinkConfig        `koanf:"stdout"`
	File          FileSinkConfig          `koanf:"file"`
	Elasticsearch ElasticsearchSinkConfig `koanf:"elasticsearch"`
}

// InfluxSinkConfig configures the InfluxDB sink.
type InfluxSinkConfig struct {
	Enabled  bool          `koanf:"enabled"`
	URL      string        `koanf:"url"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	Database string        `koanf:"database"`
	Timeout  time.Duration `koanf:"timeout"`
}

// StdoutSinkConfig configures the stdout sink.
type StdoutSinkConfig struct {
	Enabled bool `koanf:"enabled"`
}

// FileSinkConfig configures the rotating-file sink.
type FileSinkConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"maxsizemb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"maxbackups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `koanf:"maxagedays" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// ElasticsearchSinkConfig configures the Elasticsearch sink.
type ElasticsearchSinkConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Addresses     []string      `koanf:"addresses"`
	Index         string        `koanf:"index"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	FlushInterval time.Duration `koanf:"flushinterval" yaml:"flush_interval" json:"flush_interval"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address"`
}

// defaults returns the default configuration values.
func defaults() Config {
	return Config{
		LogLevel: "info",
		Socket: SocketConfig{
			Path: "/run/logflux.sock",
		},
		Dispatch: DispatchConfig{
			Strategy: DispatchSequential,
			Workers:  4,
		},
		Sinks: SinkConfig{
			Influx: InfluxSinkConfig{
				Enabled:  true,
				URL:      "http://localhost:8086",
				Database: "logflux",
				Timeout:  10 * time.Second,
			},
			Stdout: StdoutSinkConfig{
				Enabled: false,
			},
			File: FileSinkConfig{
				Enabled:    false,
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 7,
				Compress:   true,
			},
			Elasticsearch: ElasticsearchSinkConfig{
				Enabled:       false,
				Index:         "logflux-points",
				FlushInterval: 5 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Validate checks the parts of the configuration that must fail fast at
// startup. Rule patterns and lookup specs are validated by rule.Compile.
func (c *Config) Validate() error {
	if c.Socket.Path == "" {
		return fmt.Errorf("socket path is required")
	}

	switch c.Dispatch.Strategy {
	case DispatchSequential, DispatchConcurrent:
	case DispatchPool:
		if c.Dispatch.Workers <= 0 {
			return fmt.Errorf("dispatch workers must be positive, got %d", c.Dispatch.Workers)
		}
	default:
		return fmt.Errorf("unknown dispatch strategy: %s", c.Dispatch.Strategy)
	}

	switch c.MessageFormat {
	case "", "json", "legacy":
	default:
		return fmt.Errorf("unknown message format: %s", c.MessageFormat)
	}

	if !c.Sinks.Influx.Enabled && !c.Sinks.Stdout.Enabled &&
		!c.Sinks.File.Enabled && !c.Sinks.Elasticsearch.Enabled {
		return fmt.Errorf("no sinks enabled")
	}

	if c.Sinks.Influx.Enabled {
		if c.Sinks.Influx.URL == "" {
			return fmt.Errorf("influx sink requires a url")
		}
		if c.Sinks.Influx.Database == "" {
			return fmt.Errorf("influx sink requires a database")
		}
	}
	if c.Sinks.File.Enabled && c.Sinks.File.Path == "" {
		return fmt.Errorf("file sink requires a path")
	}
	if c.Sinks.Elasticsearch.Enabled {
		if len(c.Sinks.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch sink requires addresses")
		}
		if c.Sinks.Elasticsearch.Index == "" {
			return fmt.Errorf("elasticsearch sink requires an index")
		}
	}

	return nil
}

// Load reads configuration from all sources with proper override order.
// Order: defaults -> config file -> environment variables.
func Load(configPath string) (*Config, error) {
	opts := []configloader.Option[Config]{
		configloader.WithDefaults[Config](defaults()),
	}

	// Add file source if path provided or if default config exists
	if configPath != "" {
		opts = append(opts, configloader.WithFile[Config](configPath))
	} else {
		// Try default config locations
		for _, path := range []string{"./logflux.yaml", "/etc/logflux/logflux.yaml"} {
			if _, err := os.Stat(path); err == nil {
				opts = append(opts, configloader.WithFile[Config](path))
				break
			}
		}
	}

	// Add environment variable support
	opts = append(opts, configloader.WithEnv[Config]("LOGFLUX_"))

	loader := configloader.NewConfigLoader[Config](opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
