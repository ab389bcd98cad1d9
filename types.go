package emsgo

import (
	"time"
)

// Category is an EMS data category of the engine's data-exchange API.
type Category string

const (
	CategoryVariable         Category = "variable"
	CategoryInternalVariable Category = "internal_variable"
	CategoryMeter            Category = "meter"
	CategoryActuator         Category = "actuator"
	CategoryWeather          Category = "weather"

	// CategoryReward and CategorySetpoint are driver-maintained series, not
	// engine data: observation-function rewards and commanded actuator
	// setpoints respectively.
	CategoryReward   Category = "reward"
	CategorySetpoint Category = "setpoint"
)

// Categories returns the engine-backed EMS categories in canonical output order.
func Categories() []Category {
	return []Category{
		CategoryVariable,
		CategoryInternalVariable,
		CategoryMeter,
		CategoryActuator,
		CategoryWeather,
	}
}

// CallingPoint is a named point in the engine's per-timestep execution
// sequence where it invokes registered callbacks. The set and its order are
// fixed by the engine.
type CallingPoint string

const (
	CPAfterComponentGetInput                   CallingPoint = "callback_after_component_get_input"
	CPEndZoneSizing                            CallingPoint = "callback_end_zone_sizing"
	CPEndSystemSizing                          CallingPoint = "callback_end_system_sizing"
	CPBeginNewEnvironment                      CallingPoint = "callback_begin_new_environment"
	CPAfterNewEnvironmentWarmupComplete        CallingPoint = "callback_after_new_environment_warmup_complete"
	CPBeginZoneTimestepBeforeInitHeatBalance   CallingPoint = "callback_begin_zone_timestep_before_init_heat_balance"
	CPBeginZoneTimestepAfterInitHeatBalance    CallingPoint = "callback_begin_zone_timestep_after_init_heat_balance"
	CPAfterPredictorBeforeHVACManagers         CallingPoint = "callback_after_predictor_before_hvac_managers"
	CPAfterPredictorAfterHVACManagers          CallingPoint = "callback_after_predictor_after_hvac_managers"
	CPBeginSystemTimestepBeforePredictor       CallingPoint = "callback_begin_system_timestep_before_predictor"
	CPBeginZoneTimestepBeforeSetCurrentWeather CallingPoint = "callback_begin_zone_timestep_before_set_current_weather"
	CPEndSystemTimestepAfterHVACReporting      CallingPoint = "callback_end_system_timestep_after_hvac_reporting"
	CPEndSystemTimestepBeforeHVACReporting     CallingPoint = "callback_end_system_timestep_before_hvac_reporting"
	CPEndZoneTimestepAfterZoneReporting        CallingPoint = "callback_end_zone_timestep_after_zone_reporting"
	CPEndZoneTimestepBeforeZoneReporting       CallingPoint = "callback_end_zone_timestep_before_zone_reporting"
	CPInsideSystemIterationLoop                CallingPoint = "callback_inside_system_iteration_loop"
)

// callingPointOrder is the engine-defined sequence within each timestep.
var callingPointOrder = []CallingPoint{
	CPAfterComponentGetInput,
	CPEndZoneSizing,
	CPEndSystemSizing,
	CPBeginNewEnvironment,
	CPAfterNewEnvironmentWarmupComplete,
	CPBeginZoneTimestepBeforeSetCurrentWeather,
	CPBeginZoneTimestepBeforeInitHeatBalance,
	CPBeginZoneTimestepAfterInitHeatBalance,
	CPBeginSystemTimestepBeforePredictor,
	CPAfterPredictorBeforeHVACManagers,
	CPAfterPredictorAfterHVACManagers,
	CPInsideSystemIterationLoop,
	CPEndSystemTimestepBeforeHVACReporting,
	CPEndSystemTimestepAfterHVACReporting,
	CPEndZoneTimestepBeforeZoneReporting,
	CPEndZoneTimestepAfterZoneReporting,
}

// CallingPoints returns every calling point in engine execution order.
func CallingPoints() []CallingPoint {
	return append([]CallingPoint(nil), callingPointOrder...)
}

// Valid reports whether cp is one of the engine's calling points.
func (cp CallingPoint) Valid() bool {
	for _, p := range callingPointOrder {
		if p == cp {
			return true
		}
	}
	return false
}

// ActuatorKind is the native value type of an actuator, reported by the
// engine at handle lookup time. It decides setpoint coercion on write-back.
type ActuatorKind int

const (
	ActuatorFloat ActuatorKind = iota
	ActuatorInteger
	ActuatorBoolean
)

// SimClock is the engine's simulation clock at the current callback.
type SimClock struct {
	Year, Month, Day int
	Hour, Minute     int
}

// Time converts the clock to a time.Time. The engine reports hour 24 and
// minute 60 at period boundaries; both are folded forward.
func (c SimClock) Time() time.Time {
	hour, minute := c.Hour, c.Minute
	var carry time.Duration
	if hour >= 24 {
		hour = 23
		carry += time.Hour
	}
	if minute >= 60 {
		minute = 59
		carry += time.Minute
	}
	t := time.Date(c.Year, time.Month(c.Month), c.Day, hour, minute, 0, 0, time.UTC)
	return t.Add(carry)
}

// RunSpec identifies one engine session: the engine installation and the
// model and weather inputs.
type RunSpec struct {
	EnginePath  string
	ModelFile   string
	WeatherFile string
	OutputDir   string
}

// ForecastDay selects the weather forecast horizon relative to the current
// simulation day.
type ForecastDay string

const (
	ForecastToday    ForecastDay = "today"
	ForecastTomorrow ForecastDay = "tomorrow"
)

// ObservationFunc reads simulation state at a calling point. A non-nil
// return value is recorded into the reward series for the current timestep.
type ObservationFunc func() *float64

// ActuationFunc decides setpoints at a calling point. Keys are actuator user
// names from the table of contents; a nil value relinquishes engine control
// of that actuator for the timestep; a nil map performs no actuation.
type ActuationFunc func() map[string]*float64

// Float is a setpoint literal for ActuationFunc return maps.
func Float(v float64) *float64 { return &v }

// Bool is a boolean setpoint literal; the engine convention is 1.0 for true
// and 0.0 for false.
func Bool(b bool) *float64 {
	v := 0.0
	if b {
		v = 1.0
	}
	return &v
}

// Binding attaches callback functions to a calling point. Frequencies are in
// timesteps and default to 1; a function fires when its per-binding
// invocation counter (1-indexed) is a multiple of the frequency.
type Binding struct {
	CallingPoint     CallingPoint
	Observe          ObservationFunc
	Actuate          ActuationFunc
	UpdateState      bool
	ObservationEvery int
	ActuationEvery   int
}

// BindingToken names a registered binding, making the attachment visible to
// the caller.
type BindingToken struct {
	CallingPoint CallingPoint
	Index        int
}

// State is the session lifecycle state.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateRunning
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sample is one recorded point of a metric series.
type Sample struct {
	Step  int
	Value float64
}

// Row is one exported table row: the values of every column at a timestep.
type Row struct {
	Step     int
	Time     time.Time
	ZoneStep int
	Values   []float64 // aligned with Table.Columns; NaN where unrecorded
}

// Table is a materialized tabular snapshot of one category: rows are
// timesteps, columns are user-chosen metric names in registration order.
type Table struct {
	Category Category
	Columns  []string
	Rows     []Row
}

// Summary holds descriptive statistics for one metric's recorded series.
type Summary struct {
	Metric string
	Count  int
	Mean   float64
	Stddev float64
	Min    float64
	Max    float64
}
