package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// YearSeries is a value per calendar year. Lookups outside the observed
// years use the nearest observed year; lookups between observed years use
// the most recent earlier year.
type YearSeries struct {
	years  []int
	values []float64
}

// NewYearSeries builds a series from a year -> value map.
func NewYearSeries(byYear map[int]float64) YearSeries {
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	values := make([]float64, len(years))
	for i, y := range years {
		values[i] = byYear[y]
	}
	return YearSeries{years: years, values: values}
}

// ConstantSeries returns a series with value v for each of the given years.
func ConstantSeries(years []int, v float64) YearSeries {
	m := make(map[int]float64, len(years))
	for _, y := range years {
		m[y] = v
	}
	return NewYearSeries(m)
}

// Len returns the number of observed years.
func (s YearSeries) Len() int { return len(s.years) }

// Years returns the observed years in ascending order.
func (s YearSeries) Years() []int { return append([]int(nil), s.years...) }

// Value returns the value for year.
func (s YearSeries) Value(year int) float64 {
	if len(s.years) == 0 {
		return math.NaN()
	}
	i := sort.SearchInts(s.years, year)
	switch {
	case i < len(s.years) && s.years[i] == year:
		return s.values[i]
	case i == 0:
		return s.values[0]
	default:
		return s.values[i-1]
	}
}

// Divide returns s / other, year by year. Both series must cover the same
// years. 0/0 resolves to 0: when nobody received the earlier dose the
// conditional probability is never used.
func (s YearSeries) Divide(other YearSeries) (YearSeries, error) {
	if !sameYears(s.years, other.years) {
		return YearSeries{}, fmt.Errorf("%w: cannot divide series over years %v by series over years %v",
			ErrCoverageData, s.years, other.years)
	}
	out := YearSeries{years: append([]int(nil), s.years...), values: make([]float64, len(s.values))}
	for i := range s.values {
		num, den := s.values[i], other.values[i]
		if num == 0 && den == 0 {
			out.values[i] = 0
			continue
		}
		out.values[i] = num / den
	}
	return out, nil
}

func sameYears(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CoverageSeries is a coverage probability by year, optionally split by sex.
type CoverageSeries struct {
	slices map[model.Sex]YearSeries
}

// UniformCoverage returns a series that does not vary by sex.
func UniformCoverage(s YearSeries) CoverageSeries {
	return CoverageSeries{slices: map[model.Sex]YearSeries{model.SexAll: s}}
}

// NewCoverageSeries builds a sex-split series. A SexAll slice, if present,
// serves any sex without its own slice.
func NewCoverageSeries(slices map[model.Sex]YearSeries) CoverageSeries {
	cp := make(map[model.Sex]YearSeries, len(slices))
	for k, v := range slices {
		cp[k] = v
	}
	return CoverageSeries{slices: cp}
}

// Value returns the coverage for year and sex.
func (c CoverageSeries) Value(year int, sex model.Sex) float64 {
	if s, ok := c.slices[sex]; ok {
		return s.Value(year)
	}
	if s, ok := c.slices[model.SexAll]; ok {
		return s.Value(year)
	}
	return math.NaN()
}

func (c CoverageSeries) validate(dose model.Dose) error {
	if len(c.slices) == 0 {
		return fmt.Errorf("%w: dose %s has no coverage data", ErrCoverageData, dose)
	}
	for sex, s := range c.slices {
		if s.Len() == 0 {
			return fmt.Errorf("%w: dose %s (%s) has an empty coverage series", ErrCoverageData, dose, sex)
		}
		for i, v := range s.values {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Errorf("%w: dose %s (%s) year %d has coverage %v", ErrCoverageRange, dose, sex, s.years[i], v)
			}
		}
	}
	return nil
}

// CoverageTable holds the resolved coverage probability for every dose of a
// schedule. It is immutable after construction.
type CoverageTable struct {
	byDose map[model.Dose]CoverageSeries
}

// NewCoverageTable validates and wraps per-dose coverage. Every value must
// lie in [0,1].
func NewCoverageTable(byDose map[model.Dose]CoverageSeries) (*CoverageTable, error) {
	t := &CoverageTable{byDose: make(map[model.Dose]CoverageSeries, len(byDose))}
	for dose, series := range byDose {
		if !dose.Valid() || dose == model.DoseNone {
			return nil, fmt.Errorf("%w: %v", ErrUnknownDose, dose)
		}
		if err := series.validate(dose); err != nil {
			return nil, err
		}
		t.byDose[dose] = series
	}
	return t, nil
}

// Has reports whether the table has coverage for dose.
func (t *CoverageTable) Has(dose model.Dose) bool {
	_, ok := t.byDose[dose]
	return ok
}

// Probability returns the coverage for one individual.
func (t *CoverageTable) Probability(dose model.Dose, year int, sex model.Sex) float64 {
	series, ok := t.byDose[dose]
	if !ok {
		return 0
	}
	return series.Value(year, sex)
}

// Probabilities resolves coverage for a batch of individuals.
func (t *CoverageTable) Probabilities(dose model.Dose, year int, pop []model.Individual) []float64 {
	out := make([]float64, len(pop))
	for i, ind := range pop {
		out[i] = t.Probability(dose, year, ind.Sex)
	}
	return out
}

// ComposeCoverage turns raw per-age coverage covariates into per-dose
// coverage for schedule. catchup is the run's sampled catch-up proportion.
//
// 6_9 uses the 6 and 9 month series as independent probabilities because
// they come from different empirical schedules. 9_12 and 9_12_15 treat later
// doses as conditional on the earlier dose, dividing cumulative coverages.
func ComposeCoverage(schedule model.Schedule, covariates map[model.Covariate]YearSeries, catchup float64) (*CoverageTable, error) {
	need := func(c model.Covariate) (YearSeries, error) {
		s, ok := covariates[c]
		if !ok || s.Len() == 0 {
			return YearSeries{}, fmt.Errorf("%w: schedule %s needs covariate %s", ErrCoverageData, schedule, c)
		}
		return s, nil
	}

	doses := make(map[model.Dose]YearSeries)
	switch schedule {
	case model.ScheduleNone:
	case model.ScheduleSixNine:
		six, err := need(model.CoverageSixMonths)
		if err != nil {
			return nil, err
		}
		nine, err := need(model.CoverageNineMonths)
		if err != nil {
			return nil, err
		}
		doses[model.DoseFirst] = six
		doses[model.DoseSecond] = nine
		doses[model.DoseCatchup] = nine

	case model.ScheduleNineTwelve, model.ScheduleNineTwelveFifteen:
		nine, err := need(model.CoverageNineMonths)
		if err != nil {
			return nil, err
		}
		twelve, err := need(model.CoverageTwelveMonths)
		if err != nil {
			return nil, err
		}
		second, err := twelve.Divide(nine)
		if err != nil {
			return nil, fmt.Errorf("second dose: %w", err)
		}
		catchupSeries := ConstantSeries(nine.Years(), catchup)

		doses[model.DoseFirst] = nine
		doses[model.DoseSecond] = second
		doses[model.DoseCatchup] = catchupSeries

		if schedule == model.ScheduleNineTwelveFifteen {
			fifteen, err := need(model.CoverageFifteenMonths)
			if err != nil {
				return nil, err
			}
			third, err := fifteen.Divide(second)
			if err != nil {
				return nil, fmt.Errorf("third dose: %w", err)
			}
			doses[model.DoseThird] = third
			doses[model.DoseLateCatchupMissed1] = catchupSeries
			doses[model.DoseLateCatchupMissed2] = catchupSeries
			doses[model.DoseLateCatchupMissed12] = catchupSeries
		}

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownSchedule, schedule)
	}

	byDose := make(map[model.Dose]CoverageSeries, len(doses))
	for d, s := range doses {
		byDose[d] = UniformCoverage(s)
	}
	return NewCoverageTable(byDose)
}
