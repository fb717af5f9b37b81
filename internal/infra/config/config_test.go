package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "single", cfg.Swarm.Mode)
	require.Equal(t, 4, cfg.Swarm.MaxConcurrent)
	require.Equal(t, "info", cfg.Logger.Level)
	require.False(t, cfg.Evolution.Enabled)
}

func TestLoadParsesYAML(t *testing.T) {
	raw := `
swarm:
  data_dir: /tmp/swarm
  mode: swarm
  max_concurrent: 8
evolution:
  enabled: true
  population_size: 16
  seed: 42
hub:
  base_url: http://hub.local:9000
  timeout: 30s
runtime:
  base_url: http://runtime.local:8283
logger:
  level: debug
  format: json
scheduler:
  enabled: true
  tasks:
    - name: nightly-evolution
      schedule: "0 3 * * *"
      action: run_generation
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "swarm", cfg.Swarm.Mode)
	require.Equal(t, 8, cfg.Swarm.MaxConcurrent)
	require.True(t, cfg.Evolution.Enabled)
	require.Equal(t, 16, cfg.Evolution.PopulationSize)
	require.EqualValues(t, 42, cfg.Evolution.Seed)
	require.Equal(t, 30*time.Second, cfg.Hub.Timeout)
	require.Equal(t, "json", cfg.Logger.Format)
	require.Len(t, cfg.Scheduler.Tasks, 1)
	require.Equal(t, "run_generation", cfg.Scheduler.Tasks[0].Action)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("swarm: [not a map"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWARMHUB_MODE", "swarm")
	t.Setenv("SWARMHUB_HUB_URL", "http://hub:9000")
	t.Setenv("SWARMHUB_LOGGER_LEVEL", "debug")
	t.Setenv("SWARMHUB_EVOLUTION_SEED", "77")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "swarm", cfg.Swarm.Mode)
	require.Equal(t, "http://hub:9000", cfg.Hub.BaseURL)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.EqualValues(t, 77, cfg.Evolution.Seed)
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Swarm.Mode = "clustered"
	cfg.Swarm.MaxConcurrent = 0
	cfg.Evolution.Enabled = true
	cfg.Evolution.PopulationSize = 0

	err := Validate(cfg)
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(ve.Errors), 4)
}

func TestValidateSchedulerTasks(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Tasks = []ScheduledTaskConfig{{Name: "t", Schedule: "5m"}}

	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "scheduler.tasks[0].action")
}

func TestValidateDefaultsPass(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}
