package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, 90*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "/generate-monthly-workout-plan", cfg.AI.WorkoutPath)
	assert.Equal(t, RegenerationSupersede, cfg.Plans.RegenerationMode)
	assert.Equal(t, 30*24*time.Hour, cfg.Plans.RenewalActiveWindow)
	assert.Equal(t, 4, cfg.Plans.SweepConcurrency)
	assert.Equal(t, 3*time.Minute, cfg.Redis.LockTTL)
	assert.Equal(t, "raw-plans", cfg.S3.ArchivePrefix)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
database:
  driver: memory
plans:
  regeneration_mode: delete
achievements:
  timezone: Europe/Berlin
ai:
  timeout: 5s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, RegenerationDelete, cfg.Plans.RegenerationMode)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	loc, err := cfg.Achievements.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfig_RejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("plans:\n  regeneration_mode: archive\n"), 0o600))

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "regeneration_mode")
}
