// Package emsgo is the public API for driving an external building-energy
// simulation engine's runtime scripting interface from Go.
//
// Research consumers import this package to attach observation and actuation
// callbacks to the engine's calling points without touching the vendor API:
//
//	sess, err := emsgo.New(
//	    emsgo.WithEngine(eng),
//	    emsgo.WithLogger(logger),
//	    emsgo.WithModelFile("office.idf"),
//	    emsgo.WithWeatherFile("chicago.epw"),
//	)
//	if err != nil { ... }
//	sess.RegisterVariable("zone_temp", "Zone Air Temperature", "Core Zone")
//	sess.Bind(emsgo.Binding{CallingPoint: emsgo.CPAfterPredictorAfterHVACManagers, ...})
//	if err := sess.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: emsgo (root) imports
// internal/*, but internal/* never imports emsgo (root). Public types
// (Binding, Table, SimClock, etc.) are standalone structs with no internal
// imports; conversion helpers (dxAdapter, toPublicTable) live here because
// this is the only file that sees both sides of the boundary.
package emsgo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/buildsim/emsgo/internal/config"
	"github.com/buildsim/emsgo/internal/export"
	"github.com/buildsim/emsgo/internal/handles"
	"github.com/buildsim/emsgo/internal/registry"
	"github.com/buildsim/emsgo/internal/series"
	"github.com/buildsim/emsgo/internal/storage"
	"github.com/buildsim/emsgo/internal/telemetry"
	"github.com/buildsim/emsgo/internal/toc"
)

// Sentinels surfaced from the time-series store, for errors.Is on query
// results.
var (
	ErrUnknownMetric       = series.ErrUnknownMetric
	ErrInsufficientHistory = series.ErrInsufficientHistory
)

// rewardSeries is the reserved series name for observation-function returns.
const rewardSeries = "reward"

// setpointPrefix marks the recorded commanded-setpoint companion series of an
// actuator, kept separate from the engine-read actuator values.
const setpointPrefix = "setpoint:"

// Session drives one engine simulation. Construct with New(), describe the
// metrics and callbacks, then call Run(). The engine invokes callbacks on a
// single goroutine, so the bookkeeping below is unsynchronized on purpose;
// query methods are safe to call between runs or from within callbacks.
type Session struct {
	cfg          config.Config
	logger       *slog.Logger
	engine       Engine
	runID        uuid.UUID
	version      string
	table        *toc.Table
	resolver     *handles.Resolver
	registry     *registry.Registry
	store        *series.Store
	inst         *telemetry.Instruments
	otelShutdown telemetry.Shutdown
	archive      *storage.DB // nil when archiving is disabled

	state            State
	allowMultiUpdate bool
	onRuntimeError   func(error)

	// Per-run loop state, touched only from engine callbacks.
	ready           bool
	timestepChecked bool
	step            int
	lastClock       SimClock
	lastZoneStep    int
	staticVals      map[string]float64 // internal variables, fetched once
	fatal           chan error
}

// New initialises a session around an engine. It loads configuration, wires
// telemetry and the optional run archive, and returns a ready-to-configure
// Session. It does NOT start the engine — call Run().
func New(opts ...Option) (*Session, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	if o.engine == nil {
		return nil, &ConfigurationError{Err: errors.New("no engine: WithEngine is required")}
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if o.enginePath != "" {
		cfg.EnginePath = o.enginePath
	}
	if o.modelFile != "" {
		cfg.ModelFile = o.modelFile
	}
	if o.weatherFile != "" {
		cfg.WeatherFile = o.weatherFile
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.archivePath != nil {
		cfg.ArchivePath = *o.archivePath
	}
	if o.timestepsPerHour != 0 {
		cfg.TimestepsPerHour = o.timestepsPerHour
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	version := o.version
	if version == "" {
		version = "dev"
	}
	runID := o.runID
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	logger.Info("emsgo session", "version", version, "run_id", runID,
		"timesteps_per_hour", cfg.TimestepsPerHour)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	inst, err := telemetry.NewInstruments()
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Open the run archive when configured.
	var archive *storage.DB
	if cfg.ArchivePath != "" {
		archive, err = storage.Open(context.Background(), cfg.ArchivePath, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("archive: %w", err)
		}
	}

	store := series.NewStore()
	store.Track(string(CategoryReward), rewardSeries)

	return &Session{
		cfg:              cfg,
		logger:           logger,
		engine:           o.engine,
		runID:            runID,
		version:          version,
		table:            toc.NewTable(),
		resolver:         handles.NewResolver(dxAdapter{e: o.engine}),
		registry:         registry.New(),
		store:            store,
		inst:             inst,
		otelShutdown:     otelShutdown,
		archive:          archive,
		state:            StateUnconfigured,
		allowMultiUpdate: o.multipleUpdates,
		onRuntimeError:   o.onRuntimeError,
	}, nil
}

// RunID returns the identifier of this session's runs.
func (s *Session) RunID() uuid.UUID { return s.runID }

// State returns the session lifecycle state.
func (s *Session) State() State { return s.state }

// Close releases the run archive and telemetry providers. Do not call while
// Run is in flight.
func (s *Session) Close() error {
	var errs []error
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.otelShutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ── Metric registration ───────────────────────────────────────────────────────

// RegisterVariable adds an output variable to the table of contents under a
// caller-chosen name. variableName and key identify it in the loaded model.
func (s *Session) RegisterVariable(name, variableName, key string) error {
	return s.register(toc.CategoryVariable, name, variableName, key)
}

// RegisterInternalVariable adds a static internal variable. Its value is
// fetched once and repeated on every state update.
func (s *Session) RegisterInternalVariable(name, variableType, key string) error {
	return s.register(toc.CategoryInternalVariable, name, variableType, key)
}

// RegisterMeter adds a consumption meter.
func (s *Session) RegisterMeter(name, meterName string) error {
	return s.register(toc.CategoryMeter, name, meterName)
}

// RegisterActuator adds an actuator. Actuators registered here are readable
// like any metric and writable from actuation functions by name.
func (s *Session) RegisterActuator(name, componentType, controlType, key string) error {
	return s.register(toc.CategoryActuator, name, componentType, controlType, key)
}

// RegisterWeather adds a current-conditions weather channel. metric must be
// one of the engine's weather metric names.
func (s *Session) RegisterWeather(name, metric string) error {
	return s.register(toc.CategoryWeather, name, metric)
}

// RegisterTOCFile loads a YAML table-of-contents document and registers every
// entry in it. Registration stops at the first invalid or duplicate entry.
func (s *Session) RegisterTOCFile(path string) error {
	entries, err := toc.LoadFile(path)
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	for _, e := range entries {
		if err := s.register(e.Category, e.Name, e.Key...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) register(cat toc.Category, name string, key ...string) error {
	if s.state == StateRunning {
		return &ConfigurationError{Err: fmt.Errorf("register %q: session is running", name)}
	}
	// The store keys series by user name across categories, so names the
	// driver records under would interleave with engine reads.
	if name == rewardSeries || strings.HasPrefix(name, setpointPrefix) {
		return &ConfigurationError{Err: fmt.Errorf("register %q: name is reserved for driver-recorded series", name)}
	}
	e, err := toc.NewEntry(cat, name, key...)
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	if err := s.table.Register(e); err != nil {
		return &ConfigurationError{Err: err}
	}
	s.store.Track(string(cat), name)
	if cat == toc.CategoryActuator {
		s.store.Track(string(CategorySetpoint), setpointPrefix+name)
	}
	if s.state == StateUnconfigured {
		s.state = StateConfigured
	}
	return nil
}

// Bind attaches a callback binding to a calling point. Multiple bindings may
// share a point; they execute in registration order.
func (s *Session) Bind(b Binding) (BindingToken, error) {
	if s.state == StateRunning {
		return BindingToken{}, &ConfigurationError{Err: errors.New("bind: session is running")}
	}
	if !b.CallingPoint.Valid() {
		return BindingToken{}, &ConfigurationError{Err: fmt.Errorf("bind: unknown calling point %q", b.CallingPoint)}
	}
	tok, err := s.registry.Add(registry.Binding{
		CallingPoint:     string(b.CallingPoint),
		Observe:          registry.ObservationFunc(b.Observe),
		Actuate:          registry.ActuationFunc(b.Actuate),
		UpdateState:      b.UpdateState,
		ObservationEvery: b.ObservationEvery,
		ActuationEvery:   b.ActuationEvery,
	})
	if err != nil {
		return BindingToken{}, &ConfigurationError{Err: err}
	}
	if s.state == StateUnconfigured {
		s.state = StateConfigured
	}
	return BindingToken{CallingPoint: CallingPoint(tok.CallingPoint), Index: tok.Index}, nil
}

// ── Run lifecycle ─────────────────────────────────────────────────────────────

// Run registers the native callbacks, starts the engine, and blocks until the
// simulation loop exits, a fatal driver error occurs, or ctx is cancelled.
// The terminal state is Finished on clean exit and Failed otherwise.
func (s *Session) Run(ctx context.Context) error {
	if s.state == StateRunning {
		return &ConfigurationError{Err: errors.New("run: session is already running")}
	}
	if s.cfg.ModelFile == "" {
		return &ConfigurationError{Err: errors.New("run: no model file (WithModelFile or EMSGO_MODEL_FILE)")}
	}
	if s.cfg.WeatherFile == "" {
		return &ConfigurationError{Err: errors.New("run: no weather file (WithWeatherFile or EMSGO_WEATHER_FILE)")}
	}
	if err := s.registry.Validate(s.allowMultiUpdate); err != nil {
		return &ConfigurationError{Err: err}
	}
	if s.allowMultiUpdate && len(s.registry.StateUpdaters()) > 1 {
		s.logger.Warn("multiple state-updating bindings: category tables will record multiple rows per timestep",
			"calling_points", s.registry.StateUpdaters())
	}

	for _, point := range s.registry.CallingPoints() {
		cp := CallingPoint(point)
		if err := s.engine.RegisterCallback(cp, func() { s.invoke(cp) }); err != nil {
			return &EngineFatalError{Err: fmt.Errorf("register callback %s: %w", cp, err)}
		}
	}

	// Reset per-run state so one session can drive consecutive runs.
	s.store.Reset()
	s.resolver.Reset()
	s.registry.ResetCounters()
	s.ready = false
	s.timestepChecked = false
	s.step = 0
	s.lastClock = SimClock{}
	s.lastZoneStep = 0
	s.staticVals = make(map[string]float64)
	s.fatal = make(chan error, 1)
	s.state = StateRunning

	if s.archive != nil {
		if err := s.archive.CreateRun(context.Background(), storage.Run{
			ID:          s.runID,
			ModelFile:   s.cfg.ModelFile,
			WeatherFile: s.cfg.WeatherFile,
			Status:      "running",
			StartedAt:   time.Now(),
		}); err != nil {
			s.logger.Warn("archive: create run failed", "error", err)
		}
	}

	spec := RunSpec{
		EnginePath:  s.cfg.EnginePath,
		ModelFile:   s.cfg.ModelFile,
		WeatherFile: s.cfg.WeatherFile,
		OutputDir:   s.cfg.OutputDir,
	}
	s.logger.Info("engine starting", "model", spec.ModelFile, "weather", spec.WeatherFile)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, runCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return s.engine.Run(runCtx, spec)
	})
	g.Go(func() error {
		// A driver fatal (resolution failure, timestep mismatch) cancels the
		// engine and becomes the run's error.
		select {
		case err := <-s.fatal:
			cancel()
			return err
		case <-runCtx.Done():
			return nil
		}
	})
	err := g.Wait()

	// The engine's own context-cancellation error may win the errgroup race
	// against the fatal that caused it; prefer the fatal.
	select {
	case ferr := <-s.fatal:
		err = ferr
	default:
	}

	status := "finished"
	s.state = StateFinished
	if err != nil {
		status = "failed"
		s.state = StateFailed
		if !isDriverError(err) && !errors.Is(err, context.Canceled) {
			err = &EngineFatalError{Err: err}
		}
	}
	s.logger.Info("engine stopped", "status", status, "timesteps", s.step)

	s.flushArchive(status)
	return err
}

// isDriverError reports whether err is already one of the root-package error
// types and should propagate without another wrap.
func isDriverError(err error) bool {
	var (
		cfgErr *ConfigurationError
		resErr *ResolutionError
		engErr *EngineFatalError
	)
	return errors.As(err, &cfgErr) || errors.As(err, &resErr) || errors.As(err, &engErr)
}

// flushArchive records the terminal status and every category table into the
// run archive. Archive failures are logged, never fatal to the run result.
func (s *Session) flushArchive(status string) {
	if s.archive == nil {
		return
	}
	ctx := context.Background()
	if err := s.archive.CompleteRun(ctx, s.runID, status, time.Now(), s.step); err != nil {
		s.logger.Warn("archive: complete run failed", "error", err)
		return
	}
	for _, cat := range s.archiveCategories() {
		t := s.store.Table(string(cat))
		if len(t.Rows) == 0 {
			continue
		}
		if err := s.archive.InsertTable(ctx, s.runID, t); err != nil {
			s.logger.Warn("archive: insert table failed", "category", cat, "error", err)
		}
	}
}

func (s *Session) archiveCategories() []Category {
	return append(Categories(), CategoryReward, CategorySetpoint)
}

// ── Callback dispatch ─────────────────────────────────────────────────────────

// invoke runs at every native invocation of a calling point with at least one
// binding. The engine calls it synchronously from its simulation loop.
func (s *Session) invoke(cp CallingPoint) {
	ctx := context.Background()
	s.inst.Callbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("calling_point", string(cp))))
	start := time.Now()
	defer func() {
		s.inst.CallbackDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("calling_point", string(cp))))
	}()

	// The data-exchange API is unusable until the engine reports ready, and
	// warmup timesteps carry no usable data.
	if !s.ready {
		if !s.engine.DataReady() {
			return
		}
		s.ready = true
	}
	if s.engine.Warmup() {
		return
	}

	if !s.timestepChecked {
		s.timestepChecked = true
		if got := s.engine.TimestepsPerHour(); got != s.cfg.TimestepsPerHour {
			s.fail(&ConfigurationError{Err: fmt.Errorf(
				"model runs %d timesteps per hour, session configured for %d", got, s.cfg.TimestepsPerHour)})
			return
		}
	}

	for _, b := range s.registry.BindingsFor(string(cp)) {
		if b.UpdateState {
			if err := s.updateState(ctx); err != nil {
				s.fail(err)
				return
			}
		}
		if b.TickObservation() {
			// Rewards are stamped with the 1-based timestep index; a return
			// arriving before any state update has no timestep to attribute
			// it to and is dropped.
			if r := b.Observe(); r != nil && s.step > 0 {
				s.store.Append(string(CategoryReward), rewardSeries, s.step, *r)
			}
		}
		if b.TickActuation() {
			if !s.applySetpoints(ctx, cp, b.Actuate()) {
				return
			}
		}
	}
}

// updateState advances the timestep bookkeeping and refreshes every
// registered metric into the store.
func (s *Session) updateState(ctx context.Context) error {
	clock := s.engine.Clock()
	zoneStep := s.engine.ZoneTimestepNumber()

	// Sub-timestep re-invocations (iteration loops, repeated calling points)
	// share a timestep index; the counter advances only when simulation time
	// moves.
	if clock != s.lastClock || zoneStep != s.lastZoneStep {
		s.step++
		s.lastClock = clock
		s.lastZoneStep = zoneStep
	}
	s.store.MarkStep(s.step, clock.Time(), zoneStep)

	for _, cat := range toc.Categories() {
		for _, e := range s.table.Entries(cat) {
			v, err := s.readMetric(e)
			if err != nil {
				return err
			}
			s.store.Append(string(cat), e.Name, s.step, v)
		}
	}
	s.inst.StateUpdates.Add(ctx, 1)
	return nil
}

// readMetric resolves and reads one table-of-contents entry. Internal
// variables are static: the engine is asked once, then the cached value is
// repeated so category tables stay step-aligned.
func (s *Session) readMetric(e toc.Entry) (float64, error) {
	if e.Category == toc.CategoryInternalVariable {
		if v, ok := s.staticVals[e.Name]; ok {
			return v, nil
		}
	}
	res, err := s.resolver.Resolve(e, s.step)
	if err != nil {
		return 0, &ResolutionError{Metric: e.Name, Err: err}
	}
	v, err := s.engine.Read(res.Handle)
	if err != nil {
		return 0, &EngineFatalError{Err: fmt.Errorf("read %q: %w", e.Name, err)}
	}
	if e.Category == toc.CategoryInternalVariable {
		s.staticVals[e.Name] = v
	}
	return v, nil
}

// applySetpoints validates and writes one actuation function's output. Keys
// are processed in sorted order so write order is deterministic. Returns
// false when a fatal error stopped the run.
func (s *Session) applySetpoints(ctx context.Context, cp CallingPoint, out map[string]*float64) bool {
	if len(out) == 0 {
		return true
	}
	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e, ok := s.table.Lookup(name)
		if !ok || e.Category != toc.CategoryActuator {
			s.reportRuntime(ctx, &RuntimeDataError{
				CallingPoint: cp,
				Step:         s.step,
				Err:          fmt.Errorf("%q is not a registered actuator", name),
			})
			continue
		}
		res, err := s.resolver.Resolve(e, s.step)
		if err != nil {
			s.fail(&ResolutionError{Metric: name, Err: err})
			return false
		}

		sp := out[name]
		if sp == nil {
			// Relinquish: hand the actuator back to the engine's own control.
			if err := s.engine.ResetActuator(res.Handle); err != nil {
				s.fail(&EngineFatalError{Err: fmt.Errorf("reset actuator %q: %w", name, err)})
				return false
			}
			s.store.Append(string(CategorySetpoint), setpointPrefix+name, s.step, math.NaN())
			continue
		}

		v := coerce(*sp, ActuatorKind(res.Kind))
		if err := s.engine.WriteActuator(res.Handle, v); err != nil {
			s.fail(&EngineFatalError{Err: fmt.Errorf("write actuator %q: %w", name, err)})
			return false
		}
		s.inst.ActuatorWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("actuator", name)))
		s.store.Append(string(CategorySetpoint), setpointPrefix+name, s.step, v)
	}
	return true
}

// coerce adapts a requested setpoint to the actuator's native kind. Integer
// actuators round to nearest with ties rounding up; boolean actuators treat
// only values approximately 1.0 as true.
func coerce(v float64, kind ActuatorKind) float64 {
	switch kind {
	case ActuatorInteger:
		return math.Floor(v + 0.5)
	case ActuatorBoolean:
		if math.Abs(v-1.0) < 1e-9 {
			return 1.0
		}
		return 0.0
	default:
		return v
	}
}

// reportRuntime surfaces a non-fatal runtime data error: logged, counted, and
// handed to the configured handler. The simulation loop continues.
func (s *Session) reportRuntime(ctx context.Context, err *RuntimeDataError) {
	s.logger.Warn("actuation skipped", "calling_point", err.CallingPoint, "step", err.Step, "error", err.Err)
	s.inst.ActuationErrors.Add(ctx, 1)
	if s.onRuntimeError != nil {
		s.onRuntimeError(err)
	}
}

// fail posts a fatal driver error. The first fatal wins; later ones are
// logged only.
func (s *Session) fail(err error) {
	s.logger.Error("fatal driver error", "error", err)
	select {
	case s.fatal <- err:
	default:
	}
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Data returns the value of a metric recorded lookback state updates ago;
// lookback 0 is the most recent. Errors are ErrUnknownMetric and
// ErrInsufficientHistory.
func (s *Session) Data(name string, lookback int) (Sample, error) {
	p, err := s.store.Lookback(name, lookback)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Step: p.Step, Value: p.Value}, nil
}

// Series returns a copy of a metric's full recorded sequence.
func (s *Session) Series(name string) ([]Sample, error) {
	pts, err := s.store.Series(name)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, len(pts))
	for i, p := range pts {
		out[i] = Sample{Step: p.Step, Value: p.Value}
	}
	return out, nil
}

// RewardSeries returns every recorded observation-function return.
func (s *Session) RewardSeries() []Sample {
	out, _ := s.Series(rewardSeries)
	return out
}

// Names returns the registered metric names of a category in registration
// order.
func (s *Session) Names(cat Category) []string {
	return s.store.Names(string(cat))
}

// Table materializes the recorded data of one category as a step-aligned
// table.
func (s *Session) Table(cat Category) Table {
	return toPublicTable(s.store.Table(string(cat)))
}

// Summaries computes descriptive statistics for every recorded metric of a
// category.
func (s *Session) Summaries(cat Category) []Summary {
	sums := export.Summarize(s.store.Table(string(cat)))
	out := make([]Summary, len(sums))
	for i, sm := range sums {
		out[i] = Summary{Metric: sm.Metric, Count: sm.Count, Mean: sm.Mean, Stddev: sm.Stddev, Min: sm.Min, Max: sm.Max}
	}
	return out
}

// ExportCSV writes every non-empty category table to path as one long-format
// CSV file (step, datetime, timestep, category, metric, value).
func (s *Session) ExportCSV(path string) error {
	var tables []series.Table
	for _, cat := range s.archiveCategories() {
		t := s.store.Table(string(cat))
		if len(t.Rows) > 0 {
			tables = append(tables, t)
		}
	}
	return export.WriteFile(path, tables...)
}

// WeatherForecast reads a registered weather channel's forecast for today or
// tomorrow at the given hour and zone timestep.
func (s *Session) WeatherForecast(name string, day ForecastDay, hour, zoneStep int) (float64, error) {
	e, ok := s.table.Lookup(name)
	if !ok || e.Category != toc.CategoryWeather {
		return 0, &ConfigurationError{Err: fmt.Errorf("forecast: %q is not a registered weather metric", name)}
	}
	if day != ForecastToday && day != ForecastTomorrow {
		return 0, &ConfigurationError{Err: fmt.Errorf("forecast: unknown day %q", day)}
	}
	if hour < 0 || hour > 23 {
		return 0, &ConfigurationError{Err: fmt.Errorf("forecast: hour %d out of range [0,23]", hour)}
	}
	if zoneStep < 1 || zoneStep > s.cfg.TimestepsPerHour {
		return 0, &ConfigurationError{Err: fmt.Errorf("forecast: zone timestep %d out of range [1,%d]", zoneStep, s.cfg.TimestepsPerHour)}
	}
	return s.engine.WeatherForecast(e.Key[0], day, hour, zoneStep)
}

// ── Boundary adapters ─────────────────────────────────────────────────────────

// dxAdapter narrows the public Engine to the resolver's data-exchange view.
// The actuator kind enums are value-aligned across the boundary.
type dxAdapter struct{ e Engine }

func (a dxAdapter) VariableHandle(name, key string) (int, error) {
	return a.e.VariableHandle(name, key)
}

func (a dxAdapter) InternalVariableHandle(variableType, key string) (int, error) {
	return a.e.InternalVariableHandle(variableType, key)
}

func (a dxAdapter) MeterHandle(name string) (int, error) {
	return a.e.MeterHandle(name)
}

func (a dxAdapter) ActuatorHandle(componentType, controlType, key string) (int, handles.ActuatorKind, error) {
	h, kind, err := a.e.ActuatorHandle(componentType, controlType, key)
	return h, handles.ActuatorKind(kind), err
}

func (a dxAdapter) WeatherHandle(metric string) (int, error) {
	return a.e.WeatherHandle(metric)
}

// toPublicTable converts the internal table to the public shape.
func toPublicTable(t series.Table) Table {
	out := Table{
		Category: Category(t.Category),
		Columns:  append([]string(nil), t.Columns...),
		Rows:     make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = Row{Step: r.Step, Time: r.Time, ZoneStep: r.ZoneStep, Values: r.Values}
	}
	return out
}
