// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Swarm       SwarmConfig       `yaml:"swarm"`
	Evolution   EvolutionConfig   `yaml:"evolution"`
	Hub         HubConfig         `yaml:"hub"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Channels    ChannelsConfig    `yaml:"channels"`
	Transcripts TranscriptsConfig `yaml:"transcripts"`
	Logger      LoggerConfig      `yaml:"logger"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// SwarmConfig holds registry and routing settings.
type SwarmConfig struct {
	DataDir       string `yaml:"data_dir"`       // directory holding swarm.json
	Mode          string `yaml:"mode"`           // "single" or "swarm"
	MaxConcurrent int    `yaml:"max_concurrent"` // queue processing parallelism
}

// EvolutionConfig holds blueprint search settings.
type EvolutionConfig struct {
	Enabled        bool  `yaml:"enabled"`
	PopulationSize int   `yaml:"population_size"`
	Seed           int64 `yaml:"seed,omitempty"` // 0 = time-seeded
}

// HubConfig holds consensus hub client settings.
type HubConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// RatePerSecond caps outbound hub requests.
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// GatewayConfig holds reasoning gateway client settings.
type GatewayConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RuntimeConfig holds agent execution service client settings.
type RuntimeConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ChannelsConfig holds inbound channel settings.
type ChannelsConfig struct {
	HTTP HTTPChannelConfig `yaml:"http"`
}

// HTTPChannelConfig holds HTTP API channel settings.
type HTTPChannelConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TranscriptsConfig holds replay corpus settings.
type TranscriptsConfig struct {
	DBPath       string `yaml:"db_path"`       // empty = in-memory corpus
	FixturesPath string `yaml:"fixtures_path"` // optional YAML seed file
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// SchedulerConfig holds cron/scheduler settings.
type SchedulerConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Tasks   []ScheduledTaskConfig `yaml:"tasks"`
}

// ScheduledTaskConfig defines a single scheduled task.
type ScheduledTaskConfig struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // cron expression or duration string
	Action   string `yaml:"action"`
}

// Defaults returns a Config populated with working defaults.
func Defaults() *Config {
	return &Config{
		Swarm: SwarmConfig{
			DataDir:       "./data",
			Mode:          "single",
			MaxConcurrent: 4,
		},
		Evolution: EvolutionConfig{
			Enabled:        false,
			PopulationSize: 8,
		},
		Hub: HubConfig{
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
			RateBurst:     10,
		},
		Gateway: GatewayConfig{
			Timeout: 5 * time.Second,
		},
		Runtime: RuntimeConfig{
			Timeout: 2 * time.Minute,
		},
		Channels: ChannelsConfig{
			HTTP: HTTPChannelConfig{Enabled: true, Addr: ":8087"},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the YAML config at path, applies environment overrides and
// validates the result. A missing file is not an error: defaults plus
// environment overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies SWARMHUB_* environment variables over cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SWARMHUB_DATA_DIR"); v != "" {
		cfg.Swarm.DataDir = v
	}
	if v := os.Getenv("SWARMHUB_MODE"); v != "" {
		cfg.Swarm.Mode = v
	}
	if v := os.Getenv("SWARMHUB_HUB_URL"); v != "" {
		cfg.Hub.BaseURL = v
	}
	if v := os.Getenv("SWARMHUB_GATEWAY_URL"); v != "" {
		cfg.Gateway.BaseURL = v
		cfg.Gateway.Enabled = true
	}
	if v := os.Getenv("SWARMHUB_RUNTIME_URL"); v != "" {
		cfg.Runtime.BaseURL = v
	}
	if v := os.Getenv("SWARMHUB_HTTP_ADDR"); v != "" {
		cfg.Channels.HTTP.Addr = v
	}
	if v := os.Getenv("SWARMHUB_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("SWARMHUB_EVOLUTION_ENABLED"); v == "true" {
		cfg.Evolution.Enabled = true
	}
	if v := os.Getenv("SWARMHUB_EVOLUTION_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Evolution.Seed = n
		}
	}
	if v := os.Getenv("SWARMHUB_TRANSCRIPTS_DB"); v != "" {
		cfg.Transcripts.DBPath = v
	}
}
