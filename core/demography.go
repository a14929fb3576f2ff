package core

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// The components in this file stand in for the population kernel: they
// create, age and remove individuals but know nothing about vaccines.

// CohortSpec describes the initial population.
type CohortSpec struct {
	Size int
	// AgeStart and AgeEnd bound the uniform initial age, in years.
	AgeStart float64
	AgeEnd   float64
}

// InitialCohort draws ages and sexes for the initial population. Draws are
// keyed by position so the same CohortSpec and stream reproduce the same cohort.
func InitialCohort(spec CohortSpec, stream *RandomStream) ([]model.Individual, error) {
	if spec.Size < 0 {
		return nil, fmt.Errorf("%w: population size %d is negative", ErrInvalidConfig, spec.Size)
	}
	if spec.AgeEnd < spec.AgeStart || spec.AgeStart < 0 {
		return nil, fmt.Errorf("%w: initial ages [%v, %v)", ErrInvalidConfig, spec.AgeStart, spec.AgeEnd)
	}
	pos := make([]model.IndividualID, spec.Size)
	for i := range pos {
		pos[i] = model.IndividualID(i)
	}
	ages := stream.GetDraw(pos, "age")
	sexes := stream.GetDraw(pos, "sex")

	members := make([]model.Individual, spec.Size)
	for i := range members {
		sex := model.SexMale
		if sexes[i] < 0.5 {
			sex = model.SexFemale
		}
		members[i] = model.Individual{
			Age: spec.AgeStart + ages[i]*(spec.AgeEnd-spec.AgeStart),
			Sex: sex,
		}
	}
	return members, nil
}

// Newborns returns n age-zero individuals with sexes drawn from stream.
// key distinguishes one birth batch from another.
func Newborns(n int, stream *RandomStream, key string) []model.Individual {
	pos := make([]model.IndividualID, n)
	for i := range pos {
		pos[i] = model.IndividualID(i)
	}
	sexes := stream.GetDraw(pos, key)
	out := make([]model.Individual, n)
	for i := range out {
		out[i].Sex = model.SexMale
		if sexes[i] < 0.5 {
			out[i].Sex = model.SexFemale
		}
	}
	return out
}

// AgePopulation adds the step to every living individual's age.
func AgePopulation(pop []model.Individual, step time.Duration) []model.Individual {
	years := DurationYears(step)
	for i := range pop {
		if pop[i].Alive() {
			pop[i].Age += years
		}
	}
	return pop
}

// Mortality applies a constant all-cause mortality rate.
type Mortality struct {
	// Rate is deaths per person-year.
	Rate   float64
	stream *RandomStream
}

// NewMortality returns a mortality component drawing from stream.
func NewMortality(rate float64, stream *RandomStream) (*Mortality, error) {
	if rate < 0 || math.IsNaN(rate) {
		return nil, fmt.Errorf("%w: mortality rate %v", ErrInvalidConfig, rate)
	}
	return &Mortality{Rate: rate, stream: stream}, nil
}

// Apply marks deaths among pop for one step and returns the rows that died.
// key should identify the step so each step gets fresh draws.
func (m *Mortality) Apply(pop []model.Individual, step time.Duration, key string) []model.Individual {
	if m.Rate == 0 || len(pop) == 0 {
		return nil
	}
	p := 1 - math.Exp(-m.Rate*DurationYears(step))
	ids := make([]model.IndividualID, 0, len(pop))
	byID := make(map[model.IndividualID]int, len(pop))
	for i, ind := range pop {
		if ind.Alive() {
			ids = append(ids, ind.ID)
			byID[ind.ID] = i
		}
	}
	var died []model.Individual
	for _, id := range m.stream.FilterForScalar(ids, p, key) {
		row := pop[byID[id]]
		row.Status = model.StatusDead
		died = append(died, row)
	}
	return died
}

// CrudeBirthRate adds births each step as a Poisson process whose mean is
// the true population's live births scaled to the simulated population.
type CrudeBirthRate struct {
	// rate is simulated births per year, by calendar year.
	rate   YearSeries
	stream *RandomStream
}

// NewCrudeBirthRate scales liveBirths by initialSize / truePopulation,
// where truePopulation is the real population size in the start year.
func NewCrudeBirthRate(initialSize int, truePopulation float64, liveBirths YearSeries, stream *RandomStream) (*CrudeBirthRate, error) {
	if !(truePopulation > 0) {
		return nil, fmt.Errorf("%w: true population %v must be positive", ErrInvalidConfig, truePopulation)
	}
	if liveBirths.Len() == 0 {
		return nil, fmt.Errorf("%w: no live birth data", ErrInvalidConfig)
	}
	scale := float64(initialSize) / truePopulation
	scaled := make(map[int]float64, liveBirths.Len())
	for _, y := range liveBirths.Years() {
		scaled[y] = liveBirths.Value(y) * scale
	}
	return &CrudeBirthRate{rate: NewYearSeries(scaled), stream: stream}, nil
}

// BirthsPerYear returns the expected simulated births in year.
func (f *CrudeBirthRate) BirthsPerYear(year int) float64 {
	return f.rate.Value(year)
}

// Births samples the number of births in the step starting at start.
func (f *CrudeBirthRate) Births(start time.Time, step time.Duration) int {
	mean := f.rate.Value(start.Year()) * DurationYears(step)
	if !(mean > 0) {
		return 0
	}
	dist := distuv.Poisson{Lambda: mean, Src: f.stream.Source(start.UTC().Format(time.RFC3339))}
	return int(dist.Rand())
}
