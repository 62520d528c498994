// Package config loads the calc-engine settings: a YAML file, then .env and
// process environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"valuation_engine/pkg/core/montecarlo"
)

// DefaultPath may be missing; any other path must exist.
const DefaultPath = "config/engine.yaml"

// Defaults for values the file leaves out.
const (
	DefaultTrials   = 10000
	DefaultLogLevel = "info"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Store      StoreConfig      `yaml:"store"`
	Simulation SimulationConfig `yaml:"simulation"`
	Log        LogConfig        `yaml:"log"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty disables Postgres
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// SimulationConfig fills the execution knobs a scenario's monte_carlo section leaves at zero.
type SimulationConfig struct {
	Trials        int `yaml:"trials"`
	BatchSize     int `yaml:"batch_size"`
	Workers       int `yaml:"workers"`
	HistogramBins int `yaml:"histogram_bins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads path (DefaultPath when empty), then applies the environment:
// DATABASE_URL, VALUATION_STORE_DIR and VALUATION_LOG_LEVEL. A .env file in
// the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("VALUATION_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("VALUATION_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Simulation.Trials == 0 {
		c.Simulation.Trials = DefaultTrials
	}
	if c.Simulation.BatchSize == 0 {
		c.Simulation.BatchSize = montecarlo.DefaultBatchSize
	}
	if c.Simulation.HistogramBins == 0 {
		c.Simulation.HistogramBins = montecarlo.DefaultHistogramBins
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Apply fills zero execution knobs of mc. Workers stays zero (one per CPU)
// unless configured.
func (s SimulationConfig) Apply(mc montecarlo.Config) montecarlo.Config {
	if mc.Trials == 0 {
		mc.Trials = s.Trials
	}
	if mc.BatchSize == 0 {
		mc.BatchSize = s.BatchSize
	}
	if mc.Workers == 0 {
		mc.Workers = s.Workers
	}
	if mc.HistogramBins == 0 {
		mc.HistogramBins = s.HistogramBins
	}
	return mc
}

// Logger builds the process logger writing to w: console output unless
// log.json is set.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if !c.Log.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "calc-engine").Logger()
}
