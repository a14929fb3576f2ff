// Package observer aggregates per-step simulation outcomes into output
// measures. Aggregation state is a Tally value owned by one observer; steps
// produce fresh tallies that are merged into a new value rather than
// updating shared counters.
package observer

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies one output cell. Empty Sex or AgeGroup and a zero Year
// mean the measure is not stratified on that dimension.
type Key struct {
	Measure  string
	Year     int
	Sex      string
	AgeGroup string
}

// String renders the key in the flat metric naming used for output files,
// e.g. "vaccine_first_dose_count_in_2026_among_female_in_age_group_1_to_4".
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Measure)
	if k.Year != 0 {
		fmt.Fprintf(&b, "_in_%d", k.Year)
	}
	if k.Sex != "" {
		b.WriteString("_among_")
		b.WriteString(k.Sex)
	}
	if k.AgeGroup != "" {
		b.WriteString("_in_age_group_")
		b.WriteString(k.AgeGroup)
	}
	return b.String()
}

func (k Key) less(o Key) bool {
	if k.Measure != o.Measure {
		return k.Measure < o.Measure
	}
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Sex != o.Sex {
		return k.Sex < o.Sex
	}
	return k.AgeGroup < o.AgeGroup
}

// Row is one cell of a Tally.
type Row struct {
	Key   Key
	Value float64
}

// Tally is an immutable set of accumulated values. The zero value is an
// empty tally.
type Tally struct {
	cells map[Key]float64
}

// NewTally copies cells into a tally.
func NewTally(cells map[Key]float64) Tally {
	cp := make(map[Key]float64, len(cells))
	for k, v := range cells {
		cp[k] = v
	}
	return Tally{cells: cp}
}

// Merge returns a new tally holding the cell-wise sum of t and other.
func (t Tally) Merge(other Tally) Tally {
	out := make(map[Key]float64, len(t.cells)+len(other.cells))
	for k, v := range t.cells {
		out[k] = v
	}
	for k, v := range other.cells {
		out[k] += v
	}
	return Tally{cells: out}
}

// Get returns the value for k, or 0 when absent.
func (t Tally) Get(k Key) float64 { return t.cells[k] }

// Len returns the number of cells.
func (t Tally) Len() int { return len(t.cells) }

// Total sums every cell of measure across all strata.
func (t Tally) Total(measure string) float64 {
	var sum float64
	for k, v := range t.cells {
		if k.Measure == measure {
			sum += v
		}
	}
	return sum
}

// Rows returns the cells ordered by measure, year, sex and age group.
func (t Tally) Rows() []Row {
	rows := make([]Row, 0, len(t.cells))
	for k, v := range t.cells {
		rows = append(rows, Row{Key: k, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key.less(rows[j].Key) })
	return rows
}

// Flatten returns the tally keyed by rendered cell name.
func (t Tally) Flatten() map[string]float64 {
	out := make(map[string]float64, len(t.cells))
	for k, v := range t.cells {
		out[k.String()] += v
	}
	return out
}
