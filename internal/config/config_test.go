package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, dir string) (*Config, error) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) }) //nolint:errcheck
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFrom(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 150, cfg.Generate.Tutors)
	assert.Equal(t, 30, cfg.Generate.Days)
	assert.Equal(t, 750, cfg.Generate.SessionsPerDay)
	assert.Equal(t, int64(42), cfg.Generate.Seed)
	assert.Equal(t, "data", cfg.Generate.OutputDir)
	assert.True(t, cfg.Generate.IncludeEvents)
	assert.True(t, cfg.Generate.IncludeExperiments)
	assert.True(t, cfg.Generate.IncludeInterventions)
	assert.False(t, cfg.Generate.Persist)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
generate:
  tutors: 25
  days: 14
  seed: 7
store:
  driver: postgres
  database_url: postgres://localhost/tutorsim
log:
  level: debug
  format: console
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := loadFrom(t, dir)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Generate.Tutors)
	assert.Equal(t, 14, cfg.Generate.Days)
	assert.Equal(t, int64(7), cfg.Generate.Seed)
	// Unset keys keep their defaults.
	assert.Equal(t, 750, cfg.Generate.SessionsPerDay)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TUTORSIM_GENERATE_TUTORS", "5")
	t.Setenv("TUTORSIM_LOG_LEVEL", "warn")

	cfg, err := loadFrom(t, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Generate.Tutors)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			Generate: GenerateConfig{Tutors: 1, Days: 1, SessionsPerDay: 1},
			Store:    StoreConfig{Driver: "sqlite"},
			Server:   ServerConfig{Port: 8080},
		}
	}

	cfg := base()
	cfg.Generate.Tutors = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Generate.Days = -1
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Generate.SessionsPerDay = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	cfg = base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	assert.NoError(t, base().Validate())
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouty", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestInitLogger_Formats(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}
