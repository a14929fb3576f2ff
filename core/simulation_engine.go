package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/kb"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
	"github.com/signalsfoundry/vaccine-rollout-sim/timectrl"
)

// IncidenceModifier adjusts incidence rates for a batch of individuals.
type IncidenceModifier func(pop []model.Individual, rates []float64, now time.Time) []float64

// IncidenceSummary is the expected number of disease cases over one step
// among the living population, before and after modifiers.
type IncidenceSummary struct {
	ExpectedCases         float64
	ExpectedCasesModified float64
}

// Averted returns the cases prevented by the modifiers.
func (s IncidenceSummary) Averted() float64 {
	return s.ExpectedCases - s.ExpectedCasesModified
}

// StepReport is handed to collectors after a step's state changes.
type StepReport struct {
	Step      timectrl.Step
	Counts    StepCounts
	Incidence IncidenceSummary
	// Population is every individual, alive or dead, after the step.
	Population []model.Individual
	Births     int
	Deaths     int
}

// Collector receives a report at the end of every step.
type Collector func(ctx context.Context, report StepReport) error

// StepMetricsRecorder receives per-step counters.
type StepMetricsRecorder interface {
	RecordDoses(dose string, eligible, administered int)
	SetPopulation(alive int)
	ObserveStep(d time.Duration)
}

// SimulationEngine is a minimal population kernel: it owns the clock and the
// population table and calls each component once per step in a fixed order:
// incidence evaluation, dose delivery, mortality, aging, births, then
// collectors.
type SimulationEngine struct {
	Population *kb.KnowledgeBase
	Clock      *timectrl.TimeController

	Vaccination *VaccinationStateMachine
	Fertility   *CrudeBirthRate
	Mortality   *Mortality

	baseIncidence float64
	modifiers     []IncidenceModifier
	collectors    []Collector
	births        *RandomStream

	log     logging.Logger
	metrics StepMetricsRecorder
}

// EngineOption customises engine construction.
type EngineOption func(*SimulationEngine)

// WithVaccination attaches the dose state machine.
func WithVaccination(v *VaccinationStateMachine) EngineOption {
	return func(se *SimulationEngine) { se.Vaccination = v }
}

// WithProtection registers the protection model as an incidence modifier
// and samples its per-individual thresholds at cohort entry.
func WithProtection(p *ProtectionModel) EngineOption {
	return func(se *SimulationEngine) {
		if p == nil {
			return
		}
		se.modifiers = append(se.modifiers, p.ModifyIncidence)
		se.Population.Subscribe(func(e kb.Event) {
			if e.Type == kb.EventCohortEntered {
				p.OnInitialize(e.IDs)
			}
		})
	}
}

// WithMortality attaches all-cause mortality.
func WithMortality(m *Mortality) EngineOption {
	return func(se *SimulationEngine) { se.Mortality = m }
}

// WithFertility attaches births; newborn sexes are drawn from stream.
func WithFertility(f *CrudeBirthRate, stream *RandomStream) EngineOption {
	return func(se *SimulationEngine) {
		se.Fertility = f
		se.births = stream
	}
}

// WithBaseIncidence sets the unmodified incidence rate per person-year.
func WithBaseIncidence(rate float64) EngineOption {
	return func(se *SimulationEngine) { se.baseIncidence = rate }
}

// WithEngineLogger attaches a logger.
func WithEngineLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// WithStepMetrics attaches a metrics recorder.
func WithStepMetrics(m StepMetricsRecorder) EngineOption {
	return func(se *SimulationEngine) { se.metrics = m }
}

// NewSimulationEngine wires components to the population and clock. The
// vaccination state machine, when present, is subscribed to cohort entry
// before any individuals are added.
func NewSimulationEngine(pop *kb.KnowledgeBase, clock *timectrl.TimeController, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		Population: pop,
		Clock:      clock,
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(se)
		}
	}
	if se.Vaccination != nil {
		v := se.Vaccination
		pop.Subscribe(func(e kb.Event) {
			if e.Type == kb.EventCohortEntered {
				v.OnInitialize(e.IDs)
			}
		})
	}
	clock.AddListener(se.step)
	return se
}

// RegisterIncidenceModifier adds a modifier applied after those already
// registered.
func (se *SimulationEngine) RegisterIncidenceModifier(fn IncidenceModifier) {
	se.modifiers = append(se.modifiers, fn)
}

// RegisterCollector adds a collector invoked at the end of every step.
func (se *SimulationEngine) RegisterCollector(fn Collector) {
	se.collectors = append(se.collectors, fn)
}

// Populate adds the initial cohort at the clock's current time.
func (se *SimulationEngine) Populate(members []model.Individual) []model.IndividualID {
	return se.Population.AddCohort(members, se.Clock.Now())
}

// IncidenceRate returns the modified incidence rate for each member of pop
// at time now.
func (se *SimulationEngine) IncidenceRate(pop []model.Individual, now time.Time) []float64 {
	rates := make([]float64, len(pop))
	for i := range rates {
		rates[i] = se.baseIncidence
	}
	for _, fn := range se.modifiers {
		rates = fn(pop, rates, now)
	}
	return rates
}

// Run advances the clock to its end time.
func (se *SimulationEngine) Run(ctx context.Context) error {
	return se.Clock.Run(ctx)
}

func (se *SimulationEngine) step(ctx context.Context, step timectrl.Step) error {
	started := time.Now()
	report := StepReport{Step: step}

	alive := se.Population.Alive()
	report.Incidence = se.expectedCases(alive, step)

	if se.Vaccination != nil {
		counts, err := se.Vaccination.Step(ctx, se.Population, step.Start.Year(), step.Time, step.Size)
		if err != nil {
			return fmt.Errorf("step %d vaccination: %w", step.Index, err)
		}
		report.Counts = counts
	}

	alive = se.Population.Alive()
	var deaths []model.Individual
	if se.Mortality != nil {
		deaths = se.Mortality.Apply(alive, step.Size, strconv.Itoa(step.Index))
		report.Deaths = len(deaths)
		if err := se.Population.Update(deaths); err != nil {
			return fmt.Errorf("step %d mortality: %w", step.Index, err)
		}
	}
	survivors := se.Population.Alive()
	if err := se.Population.Update(AgePopulation(survivors, step.Size)); err != nil {
		return fmt.Errorf("step %d aging: %w", step.Index, err)
	}

	if se.Fertility != nil {
		if n := se.Fertility.Births(step.Start, step.Size); n > 0 {
			se.Population.AddCohort(Newborns(n, se.births, "sex_"+strconv.Itoa(step.Index)), step.Time)
			report.Births = n
		}
	}

	all, err := se.Population.Get(se.Population.IDs())
	if err != nil {
		return fmt.Errorf("step %d snapshot: %w", step.Index, err)
	}
	report.Population = all

	for _, fn := range se.collectors {
		if err := fn(ctx, report); err != nil {
			return fmt.Errorf("step %d collect: %w", step.Index, err)
		}
	}

	if se.metrics != nil {
		for dose, c := range report.Counts {
			se.metrics.RecordDoses(dose.String(), c.Eligible, c.Administered)
		}
		se.metrics.SetPopulation(se.Population.CountAlive())
		se.metrics.ObserveStep(time.Since(started))
	}
	se.log.Debug(ctx, "step complete",
		logging.Int("step", step.Index),
		logging.String("time", step.Time.Format(time.DateOnly)),
		logging.Int("births", report.Births),
		logging.Int("deaths", report.Deaths),
	)
	return nil
}

func (se *SimulationEngine) expectedCases(alive []model.Individual, step timectrl.Step) IncidenceSummary {
	if se.baseIncidence == 0 || len(alive) == 0 {
		return IncidenceSummary{}
	}
	years := DurationYears(step.Size)
	modified := se.IncidenceRate(alive, step.Start)
	var s IncidenceSummary
	for i := range alive {
		s.ExpectedCases += se.baseIncidence * years
		s.ExpectedCasesModified += modified[i] * years
	}
	return s
}
