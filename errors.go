package emsgo

import "fmt"

// ConfigurationError reports invalid session configuration: duplicate metric
// names, malformed lookup keys, bad frequencies, or a timestep setting that
// disagrees with the loaded model. Reported immediately, never ignored.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "emsgo: configuration: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResolutionError reports a lookup key that matches nothing in the loaded
// model. It is fatal to the run; Err carries the engine diagnostic verbatim,
// since that is the actionable message.
type ResolutionError struct {
	Metric string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("emsgo: resolve %q: %v", e.Metric, e.Err)
}
func (e *ResolutionError) Unwrap() error { return e.Err }

// RuntimeDataError reports a malformed actuation return value: an unknown
// actuator name or a non-actuator metric. It is non-fatal; the offending
// actuator is skipped for the timestep and the loop continues.
type RuntimeDataError struct {
	CallingPoint CallingPoint
	Step         int
	Err          error
}

func (e *RuntimeDataError) Error() string {
	return fmt.Sprintf("emsgo: actuation at %s step %d: %v", e.CallingPoint, e.Step, e.Err)
}
func (e *RuntimeDataError) Unwrap() error { return e.Err }

// EngineFatalError reports that the engine itself halted with an error. The
// run transitions to Failed and the engine diagnostic propagates unmodified;
// the underlying session cannot be resumed, so there is no retry.
type EngineFatalError struct {
	Err error
}

func (e *EngineFatalError) Error() string { return "emsgo: engine: " + e.Err.Error() }
func (e *EngineFatalError) Unwrap() error { return e.Err }
