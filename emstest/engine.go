// Package emstest provides an in-process scripted implementation of the
// emsgo.Engine interface. It replays a configurable number of simulated days
// with caller-defined variables, meters, actuators, and weather channels, so
// the library, the demo binary, and the tests run without a vendor engine
// installation.
//
// The scripted loop honors the full engine contract: readiness gating,
// a warmup period, handle-based data exchange, actuator kinds and overrides,
// context cancellation, and fatal-error injection.
package emstest

import (
	"context"
	"fmt"
	"time"

	"github.com/buildsim/emsgo"
)

// Config shapes a scripted run. The zero value simulates one day at four
// timesteps per hour starting 2024-01-01, always ready, with no warmup.
type Config struct {
	Start            time.Time // first simulated instant; default 2024-01-01 00:00 UTC
	Days             int       // simulated days after warmup; default 1
	WarmupDays       int       // leading days flagged as warmup
	TimestepsPerHour int       // default 4
	NotReadySteps    int       // timesteps before the data-exchange API reports ready
	FailAtStep       int       // inject a fatal engine error at this timestep; 0 = never
}

// Engine is a scripted emsgo.Engine. Define the model surface with the
// Define* methods before Run; mutate it from OnStep to script physics.
// Run drives the loop on the calling goroutine and invokes callbacks
// synchronously, so Engine needs no locking.
type Engine struct {
	cfg       Config
	callbacks map[emsgo.CallingPoint]func()

	// OnStep, when set, runs before each non-warmup timestep's callbacks.
	// Use it to script zone physics: read actuator state, set variables.
	OnStep func(step int)

	nextHandle int
	values     map[int]float64
	kinds      map[int]emsgo.ActuatorKind

	variables  map[string]int // "name\x00key" → handle
	internals  map[string]int
	meters     map[string]int
	actuators  map[string]int
	weather    map[string]int
	overridden map[int]bool
	defaults   map[int]float64 // actuator values under engine control

	lookups int // handle lookups performed, for cache assertions

	step     int
	zoneStep int
	warmup   bool
	clock    emsgo.SimClock
	running  bool
}

// New returns a scripted engine with cfg's defaults applied.
func New(cfg Config) *Engine {
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if cfg.Days == 0 {
		cfg.Days = 1
	}
	if cfg.TimestepsPerHour == 0 {
		cfg.TimestepsPerHour = 4
	}
	return &Engine{
		cfg:        cfg,
		callbacks:  make(map[emsgo.CallingPoint]func()),
		values:     make(map[int]float64),
		kinds:      make(map[int]emsgo.ActuatorKind),
		variables:  make(map[string]int),
		internals:  make(map[string]int),
		meters:     make(map[string]int),
		actuators:  make(map[string]int),
		weather:    make(map[string]int),
		overridden: make(map[int]bool),
		defaults:   make(map[int]float64),
	}
}

func key2(a, b string) string    { return a + "\x00" + b }
func key3(a, b, c string) string { return a + "\x00" + b + "\x00" + c }

// ── Model surface definition ──────────────────────────────────────────────────

// DefineVariable adds an output variable with an initial value.
func (e *Engine) DefineVariable(name, key string, initial float64) {
	h := e.allocate(initial)
	e.variables[key2(name, key)] = h
}

// DefineInternalVariable adds a static internal variable.
func (e *Engine) DefineInternalVariable(variableType, key string, value float64) {
	h := e.allocate(value)
	e.internals[key2(variableType, key)] = h
}

// DefineMeter adds a consumption meter.
func (e *Engine) DefineMeter(name string, initial float64) {
	h := e.allocate(initial)
	e.meters[name] = h
}

// DefineActuator adds an actuator of the given kind. defaultValue is what
// the engine's own control produces while no override is in effect.
func (e *Engine) DefineActuator(componentType, controlType, key string, kind emsgo.ActuatorKind, defaultValue float64) {
	h := e.allocate(defaultValue)
	e.kinds[h] = kind
	e.defaults[h] = defaultValue
	e.actuators[key3(componentType, controlType, key)] = h
}

// DefineWeather adds a current-conditions weather channel.
func (e *Engine) DefineWeather(metric string, value float64) {
	h := e.allocate(value)
	e.weather[metric] = h
}

func (e *Engine) allocate(v float64) int {
	e.nextHandle++
	e.values[e.nextHandle] = v
	return e.nextHandle
}

// SetVariable changes an output variable's value, typically from OnStep.
func (e *Engine) SetVariable(name, key string, v float64) {
	if h, ok := e.variables[key2(name, key)]; ok {
		e.values[h] = v
	}
}

// SetWeather changes a weather channel's current value.
func (e *Engine) SetWeather(metric string, v float64) {
	if h, ok := e.weather[metric]; ok {
		e.values[h] = v
	}
}

// AddToMeter accumulates consumption on a meter.
func (e *Engine) AddToMeter(name string, delta float64) {
	if h, ok := e.meters[name]; ok {
		e.values[h] += delta
	}
}

// ActuatorValue returns an actuator's effective value and whether an
// override is in effect.
func (e *Engine) ActuatorValue(componentType, controlType, key string) (float64, bool) {
	h, ok := e.actuators[key3(componentType, controlType, key)]
	if !ok {
		return 0, false
	}
	return e.values[h], e.overridden[h]
}

// Lookups reports how many handle lookups the engine has served.
func (e *Engine) Lookups() int { return e.lookups }

// Step reports the current timestep index of the scripted loop.
func (e *Engine) Step() int { return e.step }

// ── emsgo.Engine implementation ───────────────────────────────────────────────

func (e *Engine) RegisterCallback(cp emsgo.CallingPoint, fn func()) error {
	if e.running {
		return fmt.Errorf("emstest: register callback %s: run in progress", cp)
	}
	if !cp.Valid() {
		return fmt.Errorf("emstest: unknown calling point %q", cp)
	}
	if fn == nil {
		return fmt.Errorf("emstest: nil callback for %s", cp)
	}
	e.callbacks[cp] = fn
	return nil
}

// Run replays the scripted days, invoking registered callbacks at every
// calling point of every timestep in engine order. spec is accepted for
// interface compatibility; the scripted engine loads no files.
func (e *Engine) Run(ctx context.Context, spec emsgo.RunSpec) error {
	_ = spec
	e.running = true
	defer func() { e.running = false }()

	e.step = 0
	e.lookups = 0
	for h := range e.overridden {
		delete(e.overridden, h)
	}
	for h, d := range e.defaults {
		e.values[h] = d
	}

	stepDur := time.Hour / time.Duration(e.cfg.TimestepsPerHour)
	totalDays := e.cfg.WarmupDays + e.cfg.Days
	stepsPerDay := 24 * e.cfg.TimestepsPerHour

	for day := 0; day < totalDays; day++ {
		e.warmup = day < e.cfg.WarmupDays
		for ts := 0; ts < stepsPerDay; ts++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.step++
			e.zoneStep = ts%e.cfg.TimestepsPerHour + 1

			// Clock reports the end of the timestep, as the real engine does.
			t := e.cfg.Start.Add(time.Duration(e.step) * stepDur)
			e.clock = emsgo.SimClock{
				Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
				Hour: t.Hour(), Minute: t.Minute(),
			}

			if e.cfg.FailAtStep > 0 && e.step == e.cfg.FailAtStep {
				return fmt.Errorf("emstest: scripted failure at timestep %d", e.step)
			}
			if e.OnStep != nil && !e.warmup {
				e.OnStep(e.step)
			}
			for _, cp := range emsgo.CallingPoints() {
				if fn := e.callbacks[cp]; fn != nil {
					fn()
				}
			}
		}
	}
	return nil
}

func (e *Engine) DataReady() bool { return e.step > e.cfg.NotReadySteps }

func (e *Engine) Warmup() bool { return e.warmup }

func (e *Engine) Clock() emsgo.SimClock { return e.clock }

func (e *Engine) ZoneTimestepNumber() int { return e.zoneStep }

func (e *Engine) TimestepsPerHour() int { return e.cfg.TimestepsPerHour }

func (e *Engine) VariableHandle(name, key string) (int, error) {
	return e.handle(e.variables, key2(name, key), "output variable")
}

func (e *Engine) InternalVariableHandle(variableType, key string) (int, error) {
	return e.handle(e.internals, key2(variableType, key), "internal variable")
}

func (e *Engine) MeterHandle(name string) (int, error) {
	return e.handle(e.meters, name, "meter")
}

func (e *Engine) ActuatorHandle(componentType, controlType, key string) (int, emsgo.ActuatorKind, error) {
	h, err := e.handle(e.actuators, key3(componentType, controlType, key), "actuator")
	if err != nil {
		return 0, 0, err
	}
	return h, e.kinds[h], nil
}

func (e *Engine) WeatherHandle(metric string) (int, error) {
	return e.handle(e.weather, metric, "weather metric")
}

func (e *Engine) handle(table map[string]int, k, what string) (int, error) {
	e.lookups++
	h, ok := table[k]
	if !ok {
		return 0, fmt.Errorf("emstest: no %s matches %q in the scripted model", what, k)
	}
	return h, nil
}

func (e *Engine) Read(handle int) (float64, error) {
	v, ok := e.values[handle]
	if !ok {
		return 0, fmt.Errorf("emstest: read of unknown handle %d", handle)
	}
	return v, nil
}

func (e *Engine) WriteActuator(handle int, value float64) error {
	if _, ok := e.kinds[handle]; !ok {
		return fmt.Errorf("emstest: handle %d is not an actuator", handle)
	}
	e.values[handle] = value
	e.overridden[handle] = true
	return nil
}

func (e *Engine) ResetActuator(handle int) error {
	if _, ok := e.kinds[handle]; !ok {
		return fmt.Errorf("emstest: handle %d is not an actuator", handle)
	}
	e.values[handle] = e.defaults[handle]
	e.overridden[handle] = false
	return nil
}

// WeatherForecast returns a deterministic scripted forecast: the channel's
// current value plus an hour fraction, plus 1.0 for the tomorrow horizon.
func (e *Engine) WeatherForecast(metric string, day emsgo.ForecastDay, hour, zoneStep int) (float64, error) {
	h, ok := e.weather[metric]
	if !ok {
		return 0, fmt.Errorf("emstest: no weather metric %q in the scripted model", metric)
	}
	v := e.values[h] + float64(hour)/24 + float64(zoneStep-1)/float64(24*e.cfg.TimestepsPerHour)
	if day == emsgo.ForecastTomorrow {
		v += 1.0
	}
	return v, nil
}
