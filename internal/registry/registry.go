// Package registry maps engine calling points to user callback bindings and
// keeps the per-binding frequency counters that gate observation and actuation.
package registry

import (
	"errors"
	"fmt"
)

// ObservationFunc reads simulation state at a calling point. A non-nil return
// value is recorded as a scalar reward for the current timestep.
type ObservationFunc func() *float64

// ActuationFunc decides setpoints at a calling point. Keys are actuator user
// names from the table of contents; a nil value relinquishes engine control of
// that actuator for the timestep. A nil map means no actuation.
type ActuationFunc func() map[string]*float64

var (
	// ErrBadFrequency is returned for non-positive observation or actuation
	// frequencies.
	ErrBadFrequency = errors.New("registry: frequency must be a positive number of timesteps")

	// ErrMultipleStateUpdates is returned by Validate when more than one
	// binding carries UpdateState, which would double-append every metric
	// series each timestep.
	ErrMultipleStateUpdates = errors.New("registry: more than one binding updates state")
)

// Binding is one registered callback specification at a calling point.
// The invocation counters advance once per native invocation of the calling
// point; its functions fire on 1-indexed multiples of their frequency.
type Binding struct {
	CallingPoint     string
	Observe          ObservationFunc
	Actuate          ActuationFunc
	UpdateState      bool
	ObservationEvery int
	ActuationEvery   int

	obsCalls int
	actCalls int
}

// TickObservation advances the binding's observation counter and reports
// whether the observation function should fire on this invocation.
func (b *Binding) TickObservation() bool {
	b.obsCalls++
	return b.Observe != nil && b.obsCalls%b.ObservationEvery == 0
}

// TickActuation advances the binding's actuation counter and reports whether
// the actuation function should fire on this invocation. The two counters
// advance independently.
func (b *Binding) TickActuation() bool {
	b.actCalls++
	return b.Actuate != nil && b.actCalls%b.ActuationEvery == 0
}

// Token identifies a registered binding so callers can see (and tests can
// assert) the attachment relationship explicitly.
type Token struct {
	CallingPoint string
	Index        int // position within the calling point's binding list
}

// Registry holds all bindings. Multiple bindings may share a calling point;
// execution order at runtime is registration order.
type Registry struct {
	points   []string // distinct calling points, registration order
	bindings map[string][]*Binding
}

func New() *Registry {
	return &Registry{bindings: make(map[string][]*Binding)}
}

// Add registers a binding and returns its token. Frequencies default to 1
// when zero; negative frequencies are rejected.
func (r *Registry) Add(b Binding) (Token, error) {
	if b.ObservationEvery == 0 {
		b.ObservationEvery = 1
	}
	if b.ActuationEvery == 0 {
		b.ActuationEvery = 1
	}
	if b.ObservationEvery < 0 || b.ActuationEvery < 0 {
		return Token{}, fmt.Errorf("%w: observation=%d actuation=%d",
			ErrBadFrequency, b.ObservationEvery, b.ActuationEvery)
	}
	if _, seen := r.bindings[b.CallingPoint]; !seen {
		r.points = append(r.points, b.CallingPoint)
	}
	r.bindings[b.CallingPoint] = append(r.bindings[b.CallingPoint], &b)
	return Token{CallingPoint: b.CallingPoint, Index: len(r.bindings[b.CallingPoint]) - 1}, nil
}

// BindingsFor returns the bindings registered at a calling point, in
// registration order.
func (r *Registry) BindingsFor(cp string) []*Binding {
	return r.bindings[cp]
}

// CallingPoints returns the distinct calling points with at least one
// binding, in first-registration order.
func (r *Registry) CallingPoints() []string {
	return append([]string(nil), r.points...)
}

// StateUpdaters returns the calling points of every binding with UpdateState
// set, in registration order.
func (r *Registry) StateUpdaters() []string {
	var cps []string
	for _, cp := range r.points {
		for _, b := range r.bindings[cp] {
			if b.UpdateState {
				cps = append(cps, cp)
			}
		}
	}
	return cps
}

// Validate checks the one-state-update rule: exactly one binding per timestep
// should refresh the full state, otherwise the timestep bookkeeping and the
// time-series store go out of sync. When allowMultiple is set the caller
// downgrades the violation to a warning instead.
func (r *Registry) Validate(allowMultiple bool) error {
	updaters := r.StateUpdaters()
	if len(updaters) > 1 && !allowMultiple {
		return fmt.Errorf("%w: calling points %v", ErrMultipleStateUpdates, updaters)
	}
	return nil
}

// ResetCounters zeroes every binding's invocation counters. Called between
// simulation runs.
func (r *Registry) ResetCounters() {
	for _, bs := range r.bindings {
		for _, b := range bs {
			b.obsCalls = 0
			b.actCalls = 0
		}
	}
}
