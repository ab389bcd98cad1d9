// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// timestepChoices are the zone timestep frequencies the engine accepts.
var timestepChoices = map[int]bool{
	1: true, 2: true, 3: true, 4: true, 5: true, 6: true,
	10: true, 12: true, 15: true, 20: true, 30: true, 60: true,
}

// Config holds all application configuration.
type Config struct {
	// Engine session settings.
	EnginePath  string // Installation directory of the simulation engine.
	ModelFile   string // Building model definition file (.idf).
	WeatherFile string // Weather data file (.epw).

	// TimestepsPerHour must match the timestep setting inside the model file;
	// the run fails early when they disagree.
	TimestepsPerHour int

	// Output settings.
	OutputDir   string // Directory for engine output and CSV exports.
	ArchivePath string // SQLite run archive file; empty disables archiving.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{}
	var err error

	cfg.EnginePath = envStr("EMSGO_ENGINE_PATH", "")
	cfg.ModelFile = envStr("EMSGO_MODEL_FILE", "")
	cfg.WeatherFile = envStr("EMSGO_WEATHER_FILE", "")
	cfg.OutputDir = envStr("EMSGO_OUTPUT_DIR", "out")
	cfg.ArchivePath = envStr("EMSGO_ARCHIVE", "")
	cfg.OTELEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.ServiceName = envStr("OTEL_SERVICE_NAME", "emsgo")
	cfg.LogLevel = envStr("EMSGO_LOG_LEVEL", "info")

	if cfg.TimestepsPerHour, err = envInt("EMSGO_TIMESTEPS_PER_HOUR", 4); err != nil {
		return Config{}, err
	}
	if cfg.OTELInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", false); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that do not depend on a session.
func (c Config) Validate() error {
	if !timestepChoices[c.TimestepsPerHour] {
		return fmt.Errorf("config: EMSGO_TIMESTEPS_PER_HOUR=%d is not an engine-supported timestep frequency", c.TimestepsPerHour)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
