package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valuation_engine/pkg/core/montecarlo"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "VALUATION_STORE_DIR", "VALUATION_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  url: postgres://localhost/valuation
store:
  dir: /tmp/runs
simulation:
  trials: 2000
  workers: 4
log:
  level: DEBUG
  json: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/valuation", cfg.Database.URL)
	assert.Equal(t, "/tmp/runs", cfg.Store.Dir)
	assert.Equal(t, 2000, cfg.Simulation.Trials)
	assert.Equal(t, 4, cfg.Simulation.Workers)
	assert.Equal(t, montecarlo.DefaultBatchSize, cfg.Simulation.BatchSize)
	assert.Equal(t, montecarlo.DefaultHistogramBins, cfg.Simulation.HistogramBins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "database:\n  url: postgres://file\nstore:\n  dir: from-file\n")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("VALUATION_STORE_DIR", "from-env")
	t.Setenv("VALUATION_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Store.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DefaultPathMayBeMissing(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTrials, cfg.Simulation.Trials)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VALUATION_STORE_DIR=dotenv-runs\n"), 0o644))
	// godotenv sets the variable directly; register it so the test restores it.
	t.Setenv("VALUATION_STORE_DIR", "")
	require.NoError(t, os.Unsetenv("VALUATION_STORE_DIR"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-runs", cfg.Store.Dir)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "simulation: [1, 2"))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = Load(writeConfig(t, "log:\n  level: loud\n"))
	assert.ErrorContains(t, err, "invalid log level")
}

func TestSimulationConfig_Apply(t *testing.T) {
	s := SimulationConfig{Trials: 500, BatchSize: 50, Workers: 2, HistogramBins: 10}

	got := s.Apply(montecarlo.Config{Trials: 100, GrowthVolatility: 0.02})
	assert.Equal(t, 100, got.Trials, "scenario value wins")
	assert.Equal(t, 50, got.BatchSize)
	assert.Equal(t, 2, got.Workers)
	assert.Equal(t, 10, got.HistogramBins)
	assert.Equal(t, 0.02, got.GrowthVolatility)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "warn", JSON: true}}
	log := cfg.Logger(&buf)

	log.Info().Msg("dropped")
	log.Warn().Str("mode", "lbo").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "kept", line[zerolog.MessageFieldName])
	assert.Equal(t, "lbo", line["mode"])
	assert.Equal(t, "calc-engine", line["service"])
}
