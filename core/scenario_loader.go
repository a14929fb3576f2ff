// core/scenario_loader.go
package core

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// RunConfig is the YAML description of one simulation run. Schedule and
// scenario stay as names here and are parsed by Resolve so errors can name
// the bad value.
type RunConfig struct {
	Location string `yaml:"location"`
	Draw     int    `yaml:"draw"`
	Schedule string `yaml:"schedule"`
	Scenario string `yaml:"scenario"`

	Start    string  `yaml:"start"`
	End      string  `yaml:"end"`
	StepDays float64 `yaml:"step_days"`

	Population PopulationConfig `yaml:"population"`

	// IncidenceRate is the baseline disease incidence per person-year.
	IncidenceRate float64 `yaml:"incidence_rate"`
	// MortalityRate is the all-cause mortality per person-year.
	MortalityRate float64 `yaml:"mortality_rate"`
	Fertility     bool    `yaml:"fertility"`

	Observer ObserverConfig `yaml:"observer"`

	// Artifact is the path of an artifact database. When empty, Coverage
	// (and LiveBirths/PopulationTotal for fertility) must be given inline.
	Artifact        string                     `yaml:"artifact"`
	Coverage        map[string]map[int]float64 `yaml:"coverage"`
	LiveBirths      map[int]float64            `yaml:"live_births"`
	PopulationTotal float64                    `yaml:"population_total"`
}

// PopulationConfig describes the initial cohort.
type PopulationConfig struct {
	Size     int     `yaml:"size"`
	AgeStart float64 `yaml:"age_start"`
	AgeEnd   float64 `yaml:"age_end"`
}

// ObserverConfig selects the stratification of dose counts. Every flag is
// off by default, giving one total per measure.
type ObserverConfig struct {
	ByAge  bool `yaml:"by_age"`
	BySex  bool `yaml:"by_sex"`
	ByYear bool `yaml:"by_year"`
}

// DefaultRunConfig returns the values used for any field a file omits.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Schedule: model.ScheduleNone.String(),
		Scenario: model.ScenarioBaseline.String(),
		Start:    "2025-01-01",
		End:      "2041-01-01",
		StepDays: 36.5,
		Population: PopulationConfig{
			Size:     10000,
			AgeStart: 0,
			AgeEnd:   5,
		},
	}
}

// ResolvedRun is a RunConfig with names parsed and times converted.
type ResolvedRun struct {
	Schedule model.Schedule
	Scenario model.Scenario
	Start    time.Time
	End      time.Time
	Step     time.Duration
}

// LoadRunConfig decodes a YAML run config on top of the defaults and
// validates it.
func LoadRunConfig(r io.Reader) (*RunConfig, error) {
	cfg := DefaultRunConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("LoadRunConfig: decode failed: %w", err)
	}
	if _, err := cfg.Resolve(); err != nil {
		return nil, fmt.Errorf("LoadRunConfig: %w", err)
	}
	return &cfg, nil
}

// Resolve parses and validates the config.
func (c RunConfig) Resolve() (ResolvedRun, error) {
	var out ResolvedRun
	var err error
	if out.Schedule, err = model.ParseSchedule(c.Schedule); err != nil {
		return out, err
	}
	if out.Scenario, err = model.ParseScenario(c.Scenario); err != nil {
		return out, err
	}
	if out.Start, err = time.Parse(time.DateOnly, strings.TrimSpace(c.Start)); err != nil {
		return out, fmt.Errorf("%w: start %q: %v", ErrInvalidConfig, c.Start, err)
	}
	if out.End, err = time.Parse(time.DateOnly, strings.TrimSpace(c.End)); err != nil {
		return out, fmt.Errorf("%w: end %q: %v", ErrInvalidConfig, c.End, err)
	}
	if !out.End.After(out.Start) {
		return out, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidConfig, c.End, c.Start)
	}
	if !(c.StepDays > 0) {
		return out, fmt.Errorf("%w: step_days %v must be positive", ErrInvalidConfig, c.StepDays)
	}
	out.Step = Days(c.StepDays)

	if c.Draw < 0 {
		return out, fmt.Errorf("%w: draw %d is negative", ErrInvalidConfig, c.Draw)
	}
	if c.Population.Size < 0 {
		return out, fmt.Errorf("%w: population.size %d is negative", ErrInvalidConfig, c.Population.Size)
	}
	if c.Population.AgeStart < 0 || c.Population.AgeEnd < c.Population.AgeStart {
		return out, fmt.Errorf("%w: population ages [%v, %v)", ErrInvalidConfig, c.Population.AgeStart, c.Population.AgeEnd)
	}
	if c.IncidenceRate < 0 || c.MortalityRate < 0 {
		return out, fmt.Errorf("%w: rates must be non-negative", ErrInvalidConfig)
	}
	for name := range c.Coverage {
		if _, err := model.ParseCovariate(name); err != nil {
			return out, fmt.Errorf("%w: coverage: %v", ErrCoverageData, err)
		}
	}
	if c.Fertility && c.Artifact == "" {
		if len(c.LiveBirths) == 0 || !(c.PopulationTotal > 0) {
			return out, fmt.Errorf("%w: fertility needs live_births and population_total when no artifact is set", ErrInvalidConfig)
		}
	}
	return out, nil
}

// InlineCovariates converts the inline coverage block into series.
func (c RunConfig) InlineCovariates() (map[model.Covariate]YearSeries, error) {
	out := make(map[model.Covariate]YearSeries, len(c.Coverage))
	for name, byYear := range c.Coverage {
		cov, err := model.ParseCovariate(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCoverageData, err)
		}
		out[cov] = NewYearSeries(byYear)
	}
	return out, nil
}
