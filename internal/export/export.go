// Package export serializes accumulated time-series tables for post-hoc
// analysis: long-format delimited files and per-metric summary statistics.
package export

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/buildsim/emsgo/internal/series"
)

// Record is one long-format row: a single metric observation at a timestep.
// Long format keeps the file schema fixed regardless of which metrics a run
// tracked, which downstream plotting tools handle directly.
type Record struct {
	Step     int     `csv:"step"`
	Datetime string  `csv:"datetime"`
	ZoneStep int     `csv:"zone_timestep"`
	Category string  `csv:"category"`
	Metric   string  `csv:"metric"`
	Value    float64 `csv:"value"`
}

const datetimeLayout = "2006-01-02 15:04"

// Records flattens a table into long-format rows, skipping padding cells.
func Records(t series.Table) []Record {
	var recs []Record
	for _, row := range t.Rows {
		for j, name := range t.Columns {
			v := row.Values[j]
			if math.IsNaN(v) {
				continue
			}
			rec := Record{
				Step:     row.Step,
				ZoneStep: row.ZoneStep,
				Category: t.Category,
				Metric:   name,
				Value:    v,
			}
			if !row.Time.IsZero() {
				rec.Datetime = row.Time.Format(datetimeLayout)
			}
			recs = append(recs, rec)
		}
	}
	return recs
}

// WriteCSV writes the tables as one long-format CSV document.
func WriteCSV(w io.Writer, tables ...series.Table) error {
	var recs []Record
	for _, t := range tables {
		recs = append(recs, Records(t)...)
	}
	if err := gocsv.Marshal(&recs, w); err != nil {
		return fmt.Errorf("export: marshal csv: %w", err)
	}
	return nil
}

// WriteFile writes the tables as a long-format CSV file.
func WriteFile(path string, tables ...series.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()
	return WriteCSV(f, tables...)
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

// Summarize computes per-column statistics for a table. Padding cells are
// excluded. Columns with no recorded values are omitted.
func Summarize(t series.Table) []Summary {
	var out []Summary
	for j, name := range t.Columns {
		var vals []float64
		for _, row := range t.Rows {
			if v := row.Values[j]; !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue
		}
		s := Summary{
			Metric: name,
			Count:  len(vals),
			Mean:   stat.Mean(vals, nil),
			Min:    floats.Min(vals),
			Max:    floats.Max(vals),
		}
		if len(vals) > 1 {
			s.Stddev = stat.StdDev(vals, nil)
		}
		out = append(out, s)
	}
	return out
}
