// Package toc holds the table of contents mapping user-chosen metric names to
// the engine-specific lookup keys needed to resolve runtime data handles.
//
// Entries are tagged by EMS category and arity-checked at construction, so a
// malformed lookup key is reported when the table is built rather than at the
// first callback of a running simulation.
package toc

import (
	"errors"
	"fmt"
)

// Category is an EMS data category understood by the engine's data-exchange API.
type Category string

const (
	CategoryVariable         Category = "variable"
	CategoryInternalVariable Category = "internal_variable"
	CategoryMeter            Category = "meter"
	CategoryActuator         Category = "actuator"
	CategoryWeather          Category = "weather"
)

// Categories returns all EMS categories in their canonical output order.
func Categories() []Category {
	return []Category{
		CategoryVariable,
		CategoryInternalVariable,
		CategoryMeter,
		CategoryActuator,
		CategoryWeather,
	}
}

// keyArity is the required lookup-key tuple length per category.
var keyArity = map[Category]int{
	CategoryVariable:         2, // variable name, variable key
	CategoryInternalVariable: 2, // variable type, variable key
	CategoryMeter:            1, // meter name
	CategoryActuator:         3, // component type, control type, actuator key
	CategoryWeather:          1, // weather metric name
}

// weatherMetrics is the fixed set of weather channels the engine exposes.
var weatherMetrics = map[string]bool{
	"sun_is_up": true, "is_raining": true, "is_snowing": true, "albedo": true,
	"beam_solar": true, "diffuse_solar": true, "horizontal_ir": true,
	"liquid_precipitation": true, "outdoor_barometric_pressure": true,
	"outdoor_dew_point": true, "outdoor_dry_bulb": true,
	"outdoor_relative_humidity": true, "sky_temperature": true,
	"wind_direction": true, "wind_speed": true,
}

var (
	// ErrDuplicateName is returned when a user name is registered twice.
	// Names share one flat namespace across categories so that data queries
	// by name are unambiguous.
	ErrDuplicateName = errors.New("toc: duplicate metric name")

	// ErrBadKey is returned when a lookup key has the wrong arity for its
	// category, contains an empty component, or names an unknown weather metric.
	ErrBadKey = errors.New("toc: malformed lookup key")
)

// Entry is one immutable table-of-contents row: a user-chosen name plus the
// lookup-key tuple the engine needs to resolve the runtime handle.
type Entry struct {
	Category Category
	Name     string
	Key      []string
}

// NewEntry validates and builds an Entry. The key tuple arity must match the
// category: Variable=(name,key), InternalVariable=(type,key), Meter=(name),
// Actuator=(component_type,control_type,key), Weather=(metric).
func NewEntry(cat Category, name string, key ...string) (Entry, error) {
	arity, ok := keyArity[cat]
	if !ok {
		return Entry{}, fmt.Errorf("%w: unknown category %q", ErrBadKey, cat)
	}
	if name == "" {
		return Entry{}, fmt.Errorf("%w: empty metric name for category %q", ErrBadKey, cat)
	}
	if len(key) != arity {
		return Entry{}, fmt.Errorf("%w: category %q wants %d key components, got %d (%q)",
			ErrBadKey, cat, arity, len(key), name)
	}
	for i, k := range key {
		if k == "" {
			return Entry{}, fmt.Errorf("%w: empty key component %d for %q", ErrBadKey, i, name)
		}
	}
	if cat == CategoryWeather && !weatherMetrics[key[0]] {
		return Entry{}, fmt.Errorf("%w: %q is not a weather metric the engine provides", ErrBadKey, key[0])
	}
	return Entry{Category: cat, Name: name, Key: append([]string(nil), key...)}, nil
}

// Table maps user names to lookup keys, per category, preserving registration
// order within each category. Built once at configuration time; read-only
// afterwards.
type Table struct {
	entries map[Category][]Entry
	owner   map[string]Category // flat name namespace
}

func NewTable() *Table {
	return &Table{
		entries: make(map[Category][]Entry),
		owner:   make(map[string]Category),
	}
}

// Register adds a validated entry. It fails with ErrDuplicateName if the user
// name is already registered in any category.
func (t *Table) Register(e Entry) error {
	if cat, ok := t.owner[e.Name]; ok {
		return fmt.Errorf("%w: %q already registered as %s", ErrDuplicateName, e.Name, cat)
	}
	t.owner[e.Name] = e.Category
	t.entries[e.Category] = append(t.entries[e.Category], e)
	return nil
}

// Names returns the registered user names of a category in registration order.
// The returned slice is a copy.
func (t *Table) Names(cat Category) []string {
	rows := t.entries[cat]
	names := make([]string, len(rows))
	for i, e := range rows {
		names[i] = e.Name
	}
	return names
}

// Entries returns the category's entries in registration order.
func (t *Table) Entries(cat Category) []Entry {
	return append([]Entry(nil), t.entries[cat]...)
}

// Lookup finds an entry by user name across all categories.
func (t *Table) Lookup(name string) (Entry, bool) {
	cat, ok := t.owner[name]
	if !ok {
		return Entry{}, false
	}
	for _, e := range t.entries[cat] {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Len reports the total number of registered entries.
func (t *Table) Len() int {
	n := 0
	for _, rows := range t.entries {
		n += len(rows)
	}
	return n
}
