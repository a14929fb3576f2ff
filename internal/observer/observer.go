package observer

import (
	"context"
	"math"
	"sync"

	"github.com/signalsfoundry/vaccine-rollout-sim/core"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// Measure names.
const (
	MeasureCatchupProportion = "vaccine_catchup_proportion"
	MeasureExpectedCases     = "expected_cases"
	MeasureCasesAverted      = "cases_averted"
	MeasureBirths            = "live_births"
	MeasureDeaths            = "deaths"
)

// DoseCountMeasure names the count of doses of d given.
func DoseCountMeasure(d model.Dose) string { return "vaccine_" + d.String() + "_dose_count" }

// EligibleMeasure names the count of individuals eligible for d.
func EligibleMeasure(d model.Dose) string { return "eligible_for_" + d.String() + "_dose_count" }

// AgeGroup is a half-open age interval in years.
type AgeGroup struct {
	Name  string
	Start float64
	End   float64
}

// DefaultAgeGroups are the under-five groups plus an open 5+ group.
func DefaultAgeGroups() []AgeGroup {
	return []AgeGroup{
		{Name: "early_neonatal", Start: 0, End: core.ToYears(7)},
		{Name: "late_neonatal", Start: core.ToYears(7), End: core.ToYears(28)},
		{Name: "post_neonatal", Start: core.ToYears(28), End: 1},
		{Name: "1_to_4", Start: 1, End: 5},
		{Name: "5_plus", Start: 5, End: math.Inf(1)},
	}
}

// Config selects the strata doses are counted by.
type Config struct {
	ByAge     bool
	BySex     bool
	ByYear    bool
	AgeGroups []AgeGroup
}

// VaccineObserver counts dose events and incidence outcomes per step.
type VaccineObserver struct {
	mu      sync.Mutex
	cfg     Config
	catchup float64
	tally   Tally
	log     logging.Logger
}

// Option customises the observer.
type Option func(*VaccineObserver)

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option {
	return func(o *VaccineObserver) {
		if l != nil {
			o.log = l
		}
	}
}

// New returns an observer for a run whose sampled catch-up proportion is
// catchup.
func New(cfg Config, catchup float64, opts ...Option) *VaccineObserver {
	if cfg.ByAge && len(cfg.AgeGroups) == 0 {
		cfg.AgeGroups = DefaultAgeGroups()
	}
	o := &VaccineObserver{cfg: cfg, catchup: catchup, log: logging.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Collect tallies one step. It has the signature of core.Collector.
//
// A dose is counted in the step whose event time matches the individual's
// vaccine event time, so each dose is counted exactly once.
func (o *VaccineObserver) Collect(ctx context.Context, report core.StepReport) error {
	year := 0
	if o.cfg.ByYear {
		year = report.Step.Time.Year()
	}

	cells := make(map[Key]float64)
	for _, ind := range report.Population {
		if ind.VaccineDose == model.DoseNone || !ind.VaccineEventTime.Equal(report.Step.Time) {
			continue
		}
		cells[o.key(DoseCountMeasure(ind.VaccineDose), year, ind)]++
	}
	for _, d := range model.AdministeredDoses {
		if c, ok := report.Counts[d]; ok {
			cells[Key{Measure: EligibleMeasure(d)}] += float64(c.Eligible)
		}
	}
	cells[Key{Measure: MeasureExpectedCases, Year: year}] += report.Incidence.ExpectedCases
	cells[Key{Measure: MeasureCasesAverted, Year: year}] += report.Incidence.Averted()
	cells[Key{Measure: MeasureBirths, Year: year}] += float64(report.Births)
	cells[Key{Measure: MeasureDeaths, Year: year}] += float64(report.Deaths)

	step := NewTally(cells)
	o.mu.Lock()
	o.tally = o.tally.Merge(step)
	o.mu.Unlock()

	o.log.Debug(ctx, "observer collected step",
		logging.Int("step", report.Step.Index),
		logging.Int("cells", step.Len()),
	)
	return nil
}

// Metrics returns the accumulated tally plus the run's catch-up proportion.
func (o *VaccineObserver) Metrics() Tally {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tally.Merge(NewTally(map[Key]float64{{Measure: MeasureCatchupProportion}: o.catchup}))
}

func (o *VaccineObserver) key(measure string, year int, ind model.Individual) Key {
	k := Key{Measure: measure, Year: year}
	if o.cfg.BySex {
		k.Sex = ind.Sex.String()
	}
	if o.cfg.ByAge {
		k.AgeGroup = o.ageGroup(ind.Age)
	}
	return k
}

func (o *VaccineObserver) ageGroup(age float64) string {
	for _, g := range o.cfg.AgeGroups {
		if age >= g.Start && age < g.End {
			return g.Name
		}
	}
	return "other"
}
