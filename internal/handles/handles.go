// Package handles resolves table-of-contents entries to engine data handles
// and caches the results for the lifetime of one simulation run.
package handles

import (
	"fmt"

	"github.com/buildsim/emsgo/internal/toc"
)

// ActuatorKind is the native value type of an actuator, reported by the
// engine at handle lookup. It decides how setpoints are coerced on write-back.
type ActuatorKind int

const (
	KindFloat ActuatorKind = iota
	KindInteger
	KindBoolean
)

func (k ActuatorKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("ActuatorKind(%d)", int(k))
	}
}

// DataExchange is the slice of the engine's data-exchange API the resolver
// needs: one handle-lookup call per EMS category. Lookups are only valid once
// the engine reports its data-exchange API ready; the caller enforces that.
type DataExchange interface {
	VariableHandle(name, key string) (int, error)
	InternalVariableHandle(variableType, key string) (int, error)
	MeterHandle(name string) (int, error)
	ActuatorHandle(componentType, controlType, key string) (int, ActuatorKind, error)
	WeatherHandle(metric string) (int, error)
}

// Resolved pairs a table-of-contents entry with its engine handle.
type Resolved struct {
	Entry      toc.Entry
	Handle     int
	Kind       ActuatorKind // meaningful for actuator entries only
	ResolvedAt int          // timestep index of the lookup
}

// Resolver performs category-appropriate handle lookups and caches them.
// A second Resolve of the same entry returns the cached handle without
// another engine call.
type Resolver struct {
	dx    DataExchange
	cache map[string]Resolved
}

func NewResolver(dx DataExchange) *Resolver {
	return &Resolver{dx: dx, cache: make(map[string]Resolved)}
}

// Resolve returns the handle for an entry, performing the engine lookup on
// first use. Lookup failures indicate a ToC/model mismatch and are returned
// with the engine diagnostic intact.
func (r *Resolver) Resolve(e toc.Entry, step int) (Resolved, error) {
	if res, ok := r.cache[e.Name]; ok {
		return res, nil
	}

	var (
		h    int
		kind ActuatorKind
		err  error
	)
	switch e.Category {
	case toc.CategoryVariable:
		h, err = r.dx.VariableHandle(e.Key[0], e.Key[1])
	case toc.CategoryInternalVariable:
		h, err = r.dx.InternalVariableHandle(e.Key[0], e.Key[1])
	case toc.CategoryMeter:
		h, err = r.dx.MeterHandle(e.Key[0])
	case toc.CategoryActuator:
		h, kind, err = r.dx.ActuatorHandle(e.Key[0], e.Key[1], e.Key[2])
	case toc.CategoryWeather:
		h, err = r.dx.WeatherHandle(e.Key[0])
	default:
		err = fmt.Errorf("unknown category %q", e.Category)
	}
	if err != nil {
		return Resolved{}, fmt.Errorf("resolve %s %q %v: %w", e.Category, e.Name, e.Key, err)
	}

	res := Resolved{Entry: e, Handle: h, Kind: kind, ResolvedAt: step}
	r.cache[e.Name] = res
	return res, nil
}

// Cached returns the resolution for a name if one exists.
func (r *Resolver) Cached(name string) (Resolved, bool) {
	res, ok := r.cache[name]
	return res, ok
}

// Reset drops all cached handles. Handles are only valid within one engine
// run, so the owning session resets the cache between runs.
func (r *Resolver) Reset() {
	r.cache = make(map[string]Resolved)
}
