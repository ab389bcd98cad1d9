package emsgo

import "context"

// Engine is the external building-energy simulation engine, consumed as a
// black box. The production implementation binds the vendor runtime API; the
// emstest package provides an in-process scripted implementation for tests
// and demos.
//
// The call order is fixed: register callbacks, then Run; handle lookups and
// data exchange are valid only inside a callback once DataReady reports true.
// Run drives the loop on a single goroutine and invokes callbacks
// synchronously, so no user code runs concurrently with the solver.
type Engine interface {
	// RegisterCallback attaches fn to a calling point. Must be called
	// before Run.
	RegisterCallback(cp CallingPoint, fn func()) error

	// Run starts the session described by spec and blocks until the
	// simulation loop exits or ctx is cancelled. The returned error is the
	// engine's own diagnostic on a fatal simulation error.
	Run(ctx context.Context, spec RunSpec) error

	// DataReady reports whether the data-exchange API may be used. Handle
	// resolution before readiness fails.
	DataReady() bool

	// Warmup reports whether the engine is still in its warmup period;
	// callbacks during warmup carry no usable data.
	Warmup() bool

	// Clock is the current simulation time.
	Clock() SimClock

	// ZoneTimestepNumber is the current zone timestep within the hour,
	// 1-based.
	ZoneTimestepNumber() int

	// TimestepsPerHour is the zone timestep frequency of the loaded model.
	TimestepsPerHour() int

	// Handle lookups, one per EMS category. A lookup that matches nothing
	// in the loaded model returns an error carrying the engine diagnostic.
	VariableHandle(name, key string) (int, error)
	InternalVariableHandle(variableType, key string) (int, error)
	MeterHandle(name string) (int, error)
	ActuatorHandle(componentType, controlType, key string) (int, ActuatorKind, error)
	WeatherHandle(metric string) (int, error)

	// Read returns the current value behind a resolved handle.
	Read(handle int) (float64, error)

	// WriteActuator overrides an actuator with a setpoint; ResetActuator
	// relinquishes the override back to the engine's own control.
	WriteActuator(handle int, value float64) error
	ResetActuator(handle int) error

	// WeatherForecast reads a weather channel for today or tomorrow at the
	// given hour and zone timestep.
	WeatherForecast(metric string, day ForecastDay, hour, zoneStep int) (float64, error)
}
