// Package series accumulates per-metric time series across simulation
// timesteps and materializes them as step-aligned tables for export.
//
// Sequences are append-only and owned by a single callback goroutine, so no
// locking is needed; a concurrent simulation requires its own Store.
package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrUnknownMetric is returned for queries on names never appended to.
	ErrUnknownMetric = errors.New("series: unknown metric")

	// ErrInsufficientHistory is returned when a lookback reaches past the
	// recorded length of a series.
	ErrInsufficientHistory = errors.New("series: not enough recorded history")
)

// Point is one recorded observation.
type Point struct {
	Step  int
	Value float64
}

// StepStamp is the simulation clock at a given timestep index, recorded once
// per state update and repeated into every exported table.
type StepStamp struct {
	Time     time.Time
	ZoneStep int // zone timestep number within the hour
}

// Store holds ordered append-only sequences keyed by (category, user name).
// Column order inside a category follows Track order, which the owning
// session drives from table-of-contents registration order.
type Store struct {
	cols   map[string][]string // category -> names, tracked order
	seqs   map[string][]Point  // flat name namespace
	stamps map[int]StepStamp
}

func NewStore() *Store {
	return &Store{
		cols:   make(map[string][]string),
		seqs:   make(map[string][]Point),
		stamps: make(map[int]StepStamp),
	}
}

// Track declares a series and fixes its column position. Idempotent.
func (s *Store) Track(category, name string) {
	if _, ok := s.seqs[name]; ok {
		return
	}
	s.seqs[name] = nil
	s.cols[category] = append(s.cols[category], name)
}

// MarkStep records the simulation clock for a timestep index.
func (s *Store) MarkStep(step int, t time.Time, zoneStep int) {
	s.stamps[step] = StepStamp{Time: t, ZoneStep: zoneStep}
}

// Append records a value for a metric at a timestep. Amortized O(1). The
// series is tracked on first use if Track was never called.
func (s *Store) Append(category, name string, step int, v float64) {
	if _, ok := s.seqs[name]; !ok {
		s.Track(category, name)
	}
	s.seqs[name] = append(s.seqs[name], Point{Step: step, Value: v})
}

// Latest returns the most recent point of a series.
func (s *Store) Latest(name string) (Point, error) {
	return s.Lookback(name, 0)
}

// Lookback returns the point recorded k steps before the most recent one.
// k=0 is the most recent point.
func (s *Store) Lookback(name string, k int) (Point, error) {
	seq, ok := s.seqs[name]
	if !ok {
		return Point{}, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	if k < 0 || k >= len(seq) {
		return Point{}, fmt.Errorf("%w: %q has %d points, lookback %d",
			ErrInsufficientHistory, name, len(seq), k)
	}
	return seq[len(seq)-1-k], nil
}

// Series returns a copy of the full recorded sequence for a metric.
func (s *Store) Series(name string) ([]Point, error) {
	seq, ok := s.seqs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return append([]Point(nil), seq...), nil
}

// Len reports the recorded length of a series, zero if untracked.
func (s *Store) Len(name string) int {
	return len(s.seqs[name])
}

// Names returns the tracked metric names of a category in column order.
func (s *Store) Names(category string) []string {
	return append([]string(nil), s.cols[category]...)
}

// Stamp returns the recorded clock for a timestep index.
func (s *Store) Stamp(step int) (StepStamp, bool) {
	st, ok := s.stamps[step]
	return st, ok
}

// Row is one exported table row.
type Row struct {
	Step     int
	Time     time.Time
	ZoneStep int
	Values   []float64 // aligned with Table.Columns; NaN where unrecorded
}

// Table is a step-aligned tabular snapshot of one category: rows are
// timesteps, columns are user-chosen metric names. It is a materialized copy,
// not a live view.
type Table struct {
	Category string
	Columns  []string
	Rows     []Row
}

// Table materializes a category's accumulated data. Rows align by append
// position; under a single state-update binding every series has one point
// per qualifying timestep, so position equals elapsed qualifying timesteps.
func (s *Store) Table(category string) Table {
	cols := s.cols[category]
	t := Table{Category: category, Columns: append([]string(nil), cols...)}

	depth := 0
	for _, name := range cols {
		if n := len(s.seqs[name]); n > depth {
			depth = n
		}
	}
	for i := 0; i < depth; i++ {
		row := Row{Step: -1, Values: make([]float64, len(cols))}
		for j, name := range cols {
			seq := s.seqs[name]
			if i < len(seq) {
				row.Values[j] = seq[i].Value
				if row.Step < 0 {
					row.Step = seq[i].Step
				}
			} else {
				row.Values[j] = math.NaN()
			}
		}
		if st, ok := s.stamps[row.Step]; ok {
			row.Time = st.Time
			row.ZoneStep = st.ZoneStep
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Reset drops all recorded data and stamps but keeps tracked columns, so a
// session reuses one Store layout across consecutive runs.
func (s *Store) Reset() {
	for name := range s.seqs {
		s.seqs[name] = nil
	}
	s.stamps = make(map[int]StepStamp)
}
