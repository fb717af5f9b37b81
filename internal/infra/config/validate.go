package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

var validModes = map[string]bool{
	"single": true,
	"swarm":  true,
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError when one or more problems are found, allowing callers to
// inspect all issues at once.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateSwarm(cfg, ve)
	validateEvolution(cfg, ve)
	validateHub(cfg, ve)
	validateGateway(cfg, ve)
	validateChannels(cfg, ve)
	validateLogger(cfg, ve)
	validateScheduler(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateSwarm(cfg *Config, ve *ValidationError) {
	if cfg.Swarm.DataDir == "" {
		ve.Add("swarm.data_dir must not be empty")
	}
	if !validModes[cfg.Swarm.Mode] {
		ve.Add("swarm.mode must be 'single' or 'swarm', got %q", cfg.Swarm.Mode)
	}
	if cfg.Swarm.MaxConcurrent <= 0 {
		ve.Add("swarm.max_concurrent must be > 0")
	}
}

func validateEvolution(cfg *Config, ve *ValidationError) {
	if !cfg.Evolution.Enabled {
		return
	}
	if cfg.Evolution.PopulationSize <= 0 {
		ve.Add("evolution.population_size must be > 0 when evolution is enabled")
	}
	if cfg.Hub.BaseURL == "" {
		ve.Add("hub.base_url is required when evolution is enabled")
	}
	if cfg.Runtime.BaseURL == "" {
		ve.Add("runtime.base_url is required when evolution is enabled")
	}
}

func validateHub(cfg *Config, ve *ValidationError) {
	if cfg.Hub.BaseURL != "" && !strings.HasPrefix(cfg.Hub.BaseURL, "http") {
		ve.Add("hub.base_url must be an http(s) URL, got %q", cfg.Hub.BaseURL)
	}
	if cfg.Hub.RatePerSecond <= 0 {
		ve.Add("hub.rate_per_second must be > 0")
	}
	if cfg.Hub.RateBurst <= 0 {
		ve.Add("hub.rate_burst must be > 0")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Enabled && cfg.Gateway.BaseURL == "" {
		ve.Add("gateway.base_url is required when the gateway is enabled")
	}
}

func validateChannels(cfg *Config, ve *ValidationError) {
	if cfg.Channels.HTTP.Enabled && cfg.Channels.HTTP.Addr == "" {
		ve.Add("channels.http.addr must not be empty when the http channel is enabled")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if cfg.Logger.Level != "" && !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level must be one of debug, info, warn, error, got %q", cfg.Logger.Level)
	}
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if !cfg.Scheduler.Enabled {
		return
	}
	for i, task := range cfg.Scheduler.Tasks {
		if task.Name == "" {
			ve.Add("scheduler.tasks[%d].name must not be empty", i)
		}
		if task.Schedule == "" {
			ve.Add("scheduler.tasks[%d].schedule must not be empty", i)
		}
		if task.Action == "" {
			ve.Add("scheduler.tasks[%d].action must not be empty", i)
		}
	}
}
