package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// Transition is one edge of the dose state machine: individuals whose most
// recent dose is Prior become eligible for Dose when Window's target age
// comes due.
type Transition struct {
	Dose   model.Dose
	Prior  model.Dose
	Window model.Dose
}

// Transitions returns the ordered transition table for schedule. Order is
// significant: later edges see the dose state written by earlier ones in
// the same step.
func Transitions(schedule model.Schedule) ([]Transition, error) {
	base := []Transition{
		{Dose: model.DoseFirst, Prior: model.DoseNone, Window: model.DoseFirst},
		{Dose: model.DoseSecond, Prior: model.DoseFirst, Window: model.DoseSecond},
		{Dose: model.DoseCatchup, Prior: model.DoseNone, Window: model.DoseSecond},
	}
	switch schedule {
	case model.ScheduleNone:
		return nil, nil
	case model.ScheduleSixNine, model.ScheduleNineTwelve:
		return base, nil
	case model.ScheduleNineTwelveFifteen:
		return append(base,
			Transition{Dose: model.DoseThird, Prior: model.DoseSecond, Window: model.DoseThird},
			Transition{Dose: model.DoseLateCatchupMissed2, Prior: model.DoseFirst, Window: model.DoseThird},
			Transition{Dose: model.DoseLateCatchupMissed1, Prior: model.DoseCatchup, Window: model.DoseThird},
			Transition{Dose: model.DoseLateCatchupMissed12, Prior: model.DoseNone, Window: model.DoseThird},
		), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownSchedule, schedule)
}

// DoseCount is the per-dose tally for one step.
type DoseCount struct {
	Eligible     int
	Administered int
}

// StepCounts maps each dose to its eligibility and uptake in one step.
type StepCounts map[model.Dose]DoseCount

// Population is the read/write view of the population the state machine
// needs.
type Population interface {
	Alive() []model.Individual
	Update(rows []model.Individual) error
}

// VaccinationStateMachine drives dose delivery each step.
type VaccinationStateMachine struct {
	schedule    model.Schedule
	transitions []Transition
	scheduler   *DoseScheduler
	coverage    *CoverageTable
	stream      *RandomStream
	catchup     float64
	log         logging.Logger
}

// VaccinationOption customises the state machine.
type VaccinationOption func(*VaccinationStateMachine)

// WithVaccinationLogger attaches a logger for per-step debug output.
func WithVaccinationLogger(l logging.Logger) VaccinationOption {
	return func(v *VaccinationStateMachine) {
		if l != nil {
			v.log = l
		}
	}
}

// NewVaccinationStateMachine wires the transition table for schedule to a
// scheduler and a coverage table. Dose acceptance draws come from stream,
// keyed by dose name. catchup is recorded for reporting only; it is
// already folded into coverage.
func NewVaccinationStateMachine(
	schedule model.Schedule,
	scheduler *DoseScheduler,
	coverage *CoverageTable,
	stream *RandomStream,
	catchup float64,
	opts ...VaccinationOption,
) (*VaccinationStateMachine, error) {
	transitions, err := Transitions(schedule)
	if err != nil {
		return nil, err
	}
	for _, tr := range transitions {
		if !coverage.Has(tr.Dose) {
			return nil, fmt.Errorf("%w: schedule %s has no coverage for dose %s", ErrCoverageData, schedule, tr.Dose)
		}
		if _, ok := scheduler.Window(tr.Window); !ok {
			return nil, fmt.Errorf("%w: schedule %s has no age window for dose %s", ErrInvalidConfig, schedule, tr.Window)
		}
	}
	v := &VaccinationStateMachine{
		schedule:    schedule,
		transitions: transitions,
		scheduler:   scheduler,
		coverage:    coverage,
		stream:      stream,
		catchup:     catchup,
		log:         logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Schedule returns the active schedule.
func (v *VaccinationStateMachine) Schedule() model.Schedule { return v.schedule }

// CatchupProportion returns the run's sampled catch-up proportion.
func (v *VaccinationStateMachine) CatchupProportion() float64 { return v.catchup }

// OnInitialize samples dose target ages for new individuals. Their
// vaccination columns start at "no dose" in the population store.
func (v *VaccinationStateMachine) OnInitialize(ids []model.IndividualID) {
	v.scheduler.SampleAges(ids)
}

// Step applies every transition once to the living population. year is the
// calendar year coverage is resolved at and eventTime is stamped on each
// dose given. Rows are written back in one update.
func (v *VaccinationStateMachine) Step(ctx context.Context, pop Population, year int, eventTime time.Time, stepSize time.Duration) (StepCounts, error) {
	counts := make(StepCounts, len(model.AdministeredDoses))
	for _, d := range model.AdministeredDoses {
		counts[d] = DoseCount{}
	}
	if len(v.transitions) == 0 {
		return counts, nil
	}

	alive := pop.Alive()
	stepYears := DurationYears(stepSize)
	masks := make(map[model.Dose][]bool, 3)
	changed := make(map[int]struct{})

	for _, tr := range v.transitions {
		mask, ok := masks[tr.Window]
		if !ok {
			mask = v.scheduler.EligibleMask(alive, tr.Window, stepYears)
			masks[tr.Window] = mask
		}

		var eligible []model.Individual
		var rowIdx []int
		for i, ind := range alive {
			if mask[i] && ind.VaccineDose == tr.Prior {
				eligible = append(eligible, ind)
				rowIdx = append(rowIdx, i)
			}
		}

		ids := make([]model.IndividualID, len(eligible))
		for i, ind := range eligible {
			ids[i] = ind.ID
		}
		probs := v.coverage.Probabilities(tr.Dose, year, eligible)
		accepted := v.stream.FilterForProbability(ids, probs, tr.Dose.String())

		// accepted preserves input order, so walk both lists together.
		j := 0
		for k, id := range ids {
			if j >= len(accepted) {
				break
			}
			if accepted[j] != id {
				continue
			}
			row := &alive[rowIdx[k]]
			row.VaccineDose = tr.Dose
			row.VaccineDoseCount++
			row.VaccineEventTime = eventTime
			changed[rowIdx[k]] = struct{}{}
			j++
		}

		counts[tr.Dose] = DoseCount{Eligible: len(eligible), Administered: len(accepted)}
		if len(eligible) > 0 {
			v.log.Debug(ctx, "dose step",
				logging.String("dose", tr.Dose.String()),
				logging.Int("eligible", len(eligible)),
				logging.Int("administered", len(accepted)),
			)
		}
	}

	if len(changed) == 0 {
		return counts, nil
	}
	updates := make([]model.Individual, 0, len(changed))
	for i := range alive {
		if _, ok := changed[i]; ok {
			updates = append(updates, alive[i])
		}
	}
	if err := pop.Update(updates); err != nil {
		return counts, fmt.Errorf("write vaccination state: %w", err)
	}
	return counts, nil
}
