package emsgo

import (
	"log/slog"

	"github.com/google/uuid"
)

// Option configures a Session.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger           *slog.Logger
	engine           Engine
	runID            uuid.UUID
	version          string
	enginePath       string
	modelFile        string
	weatherFile      string
	outputDir        string
	archivePath      *string
	timestepsPerHour int
	multipleUpdates  bool
	onRuntimeError   func(error)
}

// WithLogger sets the structured logger for the Session.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithEngine sets the simulation engine the session drives. Required: the
// engine is external to this library and no default exists.
func WithEngine(e Engine) Option {
	return func(o *resolvedOptions) { o.engine = e }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id uuid.UUID) Option {
	return func(o *resolvedOptions) { o.runID = id }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEnginePath overrides the engine installation directory from config
// (EMSGO_ENGINE_PATH env var).
func WithEnginePath(path string) Option {
	return func(o *resolvedOptions) { o.enginePath = path }
}

// WithModelFile overrides the building model file from config
// (EMSGO_MODEL_FILE env var).
func WithModelFile(path string) Option {
	return func(o *resolvedOptions) { o.modelFile = path }
}

// WithWeatherFile overrides the weather data file from config
// (EMSGO_WEATHER_FILE env var).
func WithWeatherFile(path string) Option {
	return func(o *resolvedOptions) { o.weatherFile = path }
}

// WithOutputDir overrides the engine output directory from config
// (EMSGO_OUTPUT_DIR env var).
func WithOutputDir(dir string) Option {
	return func(o *resolvedOptions) { o.outputDir = dir }
}

// WithArchive overrides the SQLite run-archive path from config
// (EMSGO_ARCHIVE env var). An empty path disables archiving.
func WithArchive(path string) Option {
	return func(o *resolvedOptions) { o.archivePath = &path }
}

// WithTimestepsPerHour overrides the configured zone timestep frequency
// (EMSGO_TIMESTEPS_PER_HOUR env var). The value must match the timestep
// setting inside the model file or the run fails early.
func WithTimestepsPerHour(n int) Option {
	return func(o *resolvedOptions) { o.timestepsPerHour = n }
}

// WithMultipleStateUpdates downgrades the multiple-update-state validation
// error to a logged warning. With more than one state-updating binding the
// time-series store records multiple rows per timestep; use only when that
// is deliberate.
func WithMultipleStateUpdates() Option {
	return func(o *resolvedOptions) { o.multipleUpdates = true }
}

// WithRuntimeErrorHandler registers a callback that receives every non-fatal
// runtime data error (malformed actuation output). Errors are logged
// regardless; the handler is for programmatic inspection, e.g. in tests.
func WithRuntimeErrorHandler(fn func(error)) Option {
	return func(o *resolvedOptions) { o.onRuntimeError = fn }
}
