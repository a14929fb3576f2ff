// Package sim assembles a runnable simulation from a run configuration and
// a data source, and executes it.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/vaccine-rollout-sim/core"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/observability"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/observer"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/sim/state"
	"github.com/signalsfoundry/vaccine-rollout-sim/kb"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
	"github.com/signalsfoundry/vaccine-rollout-sim/timectrl"
)

// Random stream names. Each names one independent sampling decision.
const (
	StreamEfficacy           = "vaccine_efficacy"
	StreamCatchupProportion  = "vaccine_catchup_proportion"
	StreamDoseAge            = "dose_age"
	StreamCoverage           = "vaccine_coverage"
	StreamDosesForProtection = "doses_for_protection"
	StreamPopulation         = "population"
	StreamMortality          = "mortality"
	StreamBirthCount         = "crude_birth_rate"
	StreamFertility          = "fertility"
)

// DataSource serves the per-location inputs of a run.
type DataSource interface {
	Covariates(ctx context.Context, location string) (map[model.Covariate]core.YearSeries, error)
	LiveBirths(ctx context.Context, location string) (core.YearSeries, error)
	PopulationTotal(ctx context.Context, location string, year int) (float64, error)
}

// Run is one fully wired simulation for a location and draw.
type Run struct {
	Config   core.RunConfig
	Resolved core.ResolvedRun
	Scenario core.ScenarioConfig

	Efficacy          float64
	CatchupProportion float64

	Engine   *core.SimulationEngine
	Observer *observer.VaccineObserver

	runID   string
	log     logging.Logger
	metrics core.StepMetricsRecorder
	runs    *observability.RunCollector
}

// Option customises run assembly.
type Option func(*Run)

// WithLogger sets the base logger. The run tags it with its run ID,
// location and draw.
func WithLogger(l logging.Logger) Option {
	return func(r *Run) {
		if l != nil {
			r.log = l
		}
	}
}

// WithStepMetrics attaches a per-step metrics recorder to the engine.
func WithStepMetrics(m core.StepMetricsRecorder) Option {
	return func(r *Run) { r.metrics = m }
}

// WithRunMetrics attaches the batch-level run collector.
func WithRunMetrics(c *observability.RunCollector) Option {
	return func(r *Run) { r.runs = c }
}

// NewRun resolves cfg, samples the run-level parameters, loads inputs from
// src and wires every component. Any configuration or data error is
// returned before the first step.
func NewRun(ctx context.Context, cfg core.RunConfig, src DataSource, opts ...Option) (*Run, error) {
	r := &Run{Config: cfg, log: logging.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	ctx, r.log = logging.WithRunLogger(ctx, r.log)
	r.runID = logging.RunIDFromContext(ctx)
	r.log = r.log.With(logging.String("location", cfg.Location), logging.Int("draw", cfg.Draw))

	ctx, span := observability.StartRunSpan(ctx, "sim.setup", cfg.Location, cfg.Draw,
		attribute.String("sim.schedule", cfg.Schedule),
		attribute.String("sim.scenario", cfg.Scenario),
	)
	err := r.assemble(ctx, src)
	observability.EndRunSpan(span, err)
	if err != nil {
		r.log.Error(ctx, "run setup failed", logging.Err(err))
		return nil, err
	}
	r.log.Info(ctx, "run ready",
		logging.String("schedule", r.Resolved.Schedule.String()),
		logging.String("scenario", r.Resolved.Scenario.String()),
		logging.Float("efficacy", r.Efficacy),
		logging.Float("catchup_proportion", r.CatchupProportion),
		logging.Int("population", r.Engine.Population.Len()),
	)
	return r, nil
}

func (r *Run) assemble(ctx context.Context, src DataSource) error {
	cfg := r.Config
	var err error
	if r.Resolved, err = cfg.Resolve(); err != nil {
		return err
	}
	if r.Scenario, err = core.ResolveScenario(r.Resolved.Scenario); err != nil {
		return err
	}
	if err := r.Scenario.Validate(); err != nil {
		return fmt.Errorf("scenario %s: %w", r.Resolved.Scenario, err)
	}

	if r.Efficacy, err = core.SampleRunParameter(StreamEfficacy, cfg.Draw, r.Scenario.Efficacy); err != nil {
		return err
	}
	if r.CatchupProportion, err = core.SampleRunParameter(StreamCatchupProportion, cfg.Draw, r.Scenario.CatchupFraction); err != nil {
		return err
	}
	r.runs.SetSampledParameter(cfg.Location, cfg.Draw, "efficacy", r.Efficacy)
	r.runs.SetSampledParameter(cfg.Location, cfg.Draw, "catchup_proportion", r.CatchupProportion)

	schedule := r.Resolved.Schedule
	var covariates map[model.Covariate]core.YearSeries
	if schedule != model.ScheduleNone {
		if covariates, err = src.Covariates(ctx, cfg.Location); err != nil {
			return fmt.Errorf("%w: load coverage for %s: %v", core.ErrCoverageData, cfg.Location, err)
		}
	}
	coverage, err := core.ComposeCoverage(schedule, covariates, r.CatchupProportion)
	if err != nil {
		return fmt.Errorf("compose coverage for %s: %w", cfg.Location, err)
	}

	windows, err := core.DoseWindows(schedule)
	if err != nil {
		return err
	}
	scheduler, err := core.NewDoseScheduler(windows, core.NewRandomStream(StreamDoseAge, cfg.Draw))
	if err != nil {
		return err
	}
	vaccination, err := core.NewVaccinationStateMachine(schedule, scheduler, coverage,
		core.NewRandomStream(StreamCoverage, cfg.Draw), r.CatchupProportion,
		core.WithVaccinationLogger(r.log))
	if err != nil {
		return err
	}
	protection := core.NewProtectionModel(r.Scenario, r.Efficacy, core.NewRandomStream(StreamDosesForProtection, cfg.Draw))

	clock, err := timectrl.NewTimeController(r.Resolved.Start, r.Resolved.End, r.Resolved.Step)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}

	engineOpts := []core.EngineOption{
		core.WithVaccination(vaccination),
		core.WithProtection(protection),
		core.WithBaseIncidence(cfg.IncidenceRate),
		core.WithEngineLogger(r.log),
		core.WithStepMetrics(r.metrics),
	}
	if cfg.MortalityRate > 0 {
		mortality, err := core.NewMortality(cfg.MortalityRate, core.NewRandomStream(StreamMortality, cfg.Draw))
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, core.WithMortality(mortality))
	}
	if cfg.Fertility {
		fertility, err := r.fertility(ctx, src)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, core.WithFertility(fertility, core.NewRandomStream(StreamFertility, cfg.Draw)))
	}
	r.Engine = core.NewSimulationEngine(kb.NewKnowledgeBase(), clock, engineOpts...)

	r.Observer = observer.New(observer.Config{
		ByAge:  cfg.Observer.ByAge,
		BySex:  cfg.Observer.BySex,
		ByYear: cfg.Observer.ByYear,
	}, r.CatchupProportion, observer.WithLogger(r.log))
	r.Engine.RegisterCollector(r.Observer.Collect)

	cohort, err := core.InitialCohort(core.CohortSpec{
		Size:     cfg.Population.Size,
		AgeStart: cfg.Population.AgeStart,
		AgeEnd:   cfg.Population.AgeEnd,
	}, core.NewRandomStream(StreamPopulation, cfg.Draw))
	if err != nil {
		return err
	}
	r.Engine.Populate(cohort)
	return nil
}

func (r *Run) fertility(ctx context.Context, src DataSource) (*core.CrudeBirthRate, error) {
	births, err := src.LiveBirths(ctx, r.Config.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: live births for %s: %v", core.ErrInvalidConfig, r.Config.Location, err)
	}
	total, err := src.PopulationTotal(ctx, r.Config.Location, r.Resolved.Start.Year())
	if err != nil {
		return nil, fmt.Errorf("%w: population for %s: %v", core.ErrInvalidConfig, r.Config.Location, err)
	}
	return core.NewCrudeBirthRate(r.Config.Population.Size, total, births, core.NewRandomStream(StreamBirthCount, r.Config.Draw))
}

// RunID returns the run's unique identifier.
func (r *Run) RunID() string { return r.runID }

// Execute advances the simulation to its end time and returns the run's
// result. The result is returned, with Error set, even when the run fails.
func (r *Run) Execute(ctx context.Context) (*state.RunResult, error) {
	ctx = logging.ContextWithRunID(ctx, r.runID)
	ctx, span := observability.StartRunSpan(ctx, "sim.run", r.Config.Location, r.Config.Draw)

	r.runs.RunStarted()
	started := time.Now()
	err := r.Engine.Run(ctx)
	elapsed := time.Since(started)
	r.runs.RunFinished(elapsed, err)

	result := &state.RunResult{
		RunID:             r.runID,
		Location:          r.Config.Location,
		Draw:              r.Config.Draw,
		Schedule:          r.Resolved.Schedule.String(),
		Scenario:          r.Resolved.Scenario.String(),
		Efficacy:          r.Efficacy,
		CatchupProportion: r.CatchupProportion,
		Steps:             r.Engine.Clock.Steps(),
		Duration:          elapsed,
		Metrics:           r.Observer.Metrics().Flatten(),
	}
	span.SetAttributes(attribute.Int("sim.steps", result.Steps))
	observability.EndRunSpan(span, err)

	if err != nil {
		result.Error = err.Error()
		if errors.Is(err, context.Canceled) {
			r.log.Warn(ctx, "run cancelled", logging.Int("steps", result.Steps))
		} else {
			r.log.Error(ctx, "run failed", logging.Err(err), logging.Int("steps", result.Steps))
		}
		return result, err
	}
	r.log.Info(ctx, "run complete",
		logging.Int("steps", result.Steps),
		logging.Int("alive", r.Engine.Population.CountAlive()),
		logging.Any("duration", elapsed),
	)
	return result, nil
}
