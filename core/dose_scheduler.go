package core

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// AgeWindow is the age range, in years, during which a dose is nominally due.
type AgeWindow struct {
	Min float64
	Max float64
}

// Mid returns the centre of the window.
func (w AgeWindow) Mid() float64 { return (w.Min + w.Max) / 2 }

func windowDays(min, max float64) AgeWindow {
	return AgeWindow{Min: ToYears(min), Max: ToYears(max)}
}

var (
	sixMonthWindow     = windowDays(180, 270)
	nineMonthWindow    = windowDays(270, 300)
	twelveMonthWindow  = windowDays(360, 390)
	fifteenMonthWindow = windowDays(450, 480)
)

// DoseWindows returns the due-age window for each primary dose of schedule.
// Catch-up doses share the window of the primary dose they stand in for.
func DoseWindows(schedule model.Schedule) (map[model.Dose]AgeWindow, error) {
	switch schedule {
	case model.ScheduleNone:
		return map[model.Dose]AgeWindow{}, nil
	case model.ScheduleSixNine:
		return map[model.Dose]AgeWindow{
			model.DoseFirst:  sixMonthWindow,
			model.DoseSecond: nineMonthWindow,
		}, nil
	case model.ScheduleNineTwelve:
		return map[model.Dose]AgeWindow{
			model.DoseFirst:  nineMonthWindow,
			model.DoseSecond: twelveMonthWindow,
		}, nil
	case model.ScheduleNineTwelveFifteen:
		return map[model.Dose]AgeWindow{
			model.DoseFirst:  nineMonthWindow,
			model.DoseSecond: twelveMonthWindow,
			model.DoseThird:  fifteenMonthWindow,
		}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownSchedule, schedule)
}

// DoseScheduler assigns each individual a target age per dose at cohort
// entry and answers, every step, who is due.
type DoseScheduler struct {
	windows map[model.Dose]AgeWindow
	// doses fixes the slot order within an arena row.
	doses   []model.Dose
	slots   map[model.Dose]int
	stream  *RandomStream
	targets arena[[]float64]
}

// NewDoseScheduler builds a scheduler for the given windows. Age draws come
// from stream, keyed by dose name.
func NewDoseScheduler(windows map[model.Dose]AgeWindow, stream *RandomStream) (*DoseScheduler, error) {
	ds := &DoseScheduler{
		windows: make(map[model.Dose]AgeWindow, len(windows)),
		slots:   make(map[model.Dose]int, len(windows)),
		stream:  stream,
	}
	for _, d := range []model.Dose{model.DoseFirst, model.DoseSecond, model.DoseThird} {
		w, ok := windows[d]
		if !ok {
			continue
		}
		if !(w.Max > w.Min) || w.Min < 0 {
			return nil, fmt.Errorf("%w: dose %s window [%v, %v]", ErrInvalidConfig, d, w.Min, w.Max)
		}
		ds.slots[d] = len(ds.doses)
		ds.doses = append(ds.doses, d)
		ds.windows[d] = w
	}
	if len(ds.doses) != len(windows) {
		return nil, fmt.Errorf("%w: windows may only be given for first, second and third doses", ErrInvalidConfig)
	}
	return ds, nil
}

// Doses returns the scheduled primary doses in order.
func (ds *DoseScheduler) Doses() []model.Dose {
	return append([]model.Dose(nil), ds.doses...)
}

// Window returns the window for dose.
func (ds *DoseScheduler) Window(dose model.Dose) (AgeWindow, bool) {
	w, ok := ds.windows[dose]
	return w, ok
}

// SampleAges draws and stores target ages for the given individuals. Each
// target is Normal around the window midpoint with the half-width spanning
// three standard deviations, pulled just inside the window when it falls
// outside.
func (ds *DoseScheduler) SampleAges(ids []model.IndividualID) {
	if len(ids) == 0 || len(ds.doses) == 0 {
		return
	}
	rows := make([][]float64, len(ids))
	for i := range rows {
		rows[i] = make([]float64, len(ds.doses))
	}
	for slot, dose := range ds.doses {
		w := ds.windows[dose]
		mean := w.Mid()
		dist := distuv.Normal{Mu: mean, Sigma: (mean - w.Min) / 3}

		draws := ds.stream.GetDraw(ids, dose.String())
		for i, u := range draws {
			age := dist.Quantile(u)
			if age > w.Max {
				age = w.Max * 0.99
			}
			if age < w.Min {
				age = w.Min * 1.01
			}
			rows[i][slot] = age
		}
	}
	for i, id := range ids {
		ds.targets.put(id, rows[i])
	}
}

// TargetAge returns the age at which id is due for dose.
func (ds *DoseScheduler) TargetAge(id model.IndividualID, dose model.Dose) (float64, bool) {
	slot, ok := ds.slots[dose]
	if !ok {
		return 0, false
	}
	row, ok := ds.targets.get(id)
	if !ok {
		return 0, false
	}
	return row[slot], true
}

// Eligible reports whether the individual's target age for dose falls in
// (age, age+step], i.e. the dose comes due during this step. A dose is due
// in exactly one step of an individual's life.
func (ds *DoseScheduler) Eligible(ind model.Individual, dose model.Dose, stepYears float64) bool {
	target, ok := ds.TargetAge(ind.ID, dose)
	if !ok {
		return false
	}
	return ind.Age < target && target <= ind.Age+stepYears
}

// EligibleMask evaluates Eligible for each member of pop.
func (ds *DoseScheduler) EligibleMask(pop []model.Individual, dose model.Dose, stepYears float64) []bool {
	mask := make([]bool, len(pop))
	for i, ind := range pop {
		mask[i] = ds.Eligible(ind, dose, stepYears)
	}
	return mask
}
