package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

func newTestProtection(singleDose float64) *ProtectionModel {
	cfg := BaselineScenario()
	cfg.SingleDoseProtected = singleDose
	return NewProtectionModel(cfg, 0.5, NewRandomStream("doses_for_protection", 0))
}

func vaccinated(id model.IndividualID, count int, at time.Time) model.Individual {
	return model.Individual{
		ID:               id,
		Status:           model.StatusAlive,
		VaccineDose:      model.DoseSecond,
		VaccineDoseCount: count,
		VaccineEventTime: at,
	}
}

func TestProtection_TwoDosePhases(t *testing.T) {
	m := newTestProtection(0)
	m.OnInitialize([]model.IndividualID{1})
	if got := m.DosesForProtection(1); got != 2 {
		t.Fatalf("doses for protection = %d, want 2", got)
	}

	at := vaccinationStart
	ind := vaccinated(1, 2, at)

	cases := []struct {
		name  string
		days  float64
		phase ProtectionPhase
		want  float64
	}{
		// Multi-dose recipients skip the onset delay.
		{"day 10", 10, PhaseFull, 0.5},
		{"end of plateau", 734, PhaseFull, 0.5},
		{"one day waning", 735, PhaseWaning, 0.5 * math.Exp(-0.038)},
		{"deep waning", 5000, PhaseWaning, 0.5 * math.Exp(-0.038*(5000-734))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := at.Add(Days(tc.days))
			phase, _ := m.Phase(ind, now)
			if phase != tc.phase {
				t.Fatalf("phase = %s, want %s", phase, tc.phase)
			}
			got := m.Protection(ind, now)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("protection = %v, want %v", got, tc.want)
			}
		})
	}

	deep := m.Protection(ind, at.Add(Days(5000)))
	if !(deep > 0) || deep > 1e-60 {
		t.Fatalf("deep waning protection = %v, want tiny but positive", deep)
	}

	rates := m.ModifyIncidence([]model.Individual{ind}, []float64{0.2}, at.Add(Days(10)))
	if math.Abs(rates[0]-0.1) > 1e-12 {
		t.Fatalf("modified incidence = %v, want 0.1", rates[0])
	}
}

func TestProtection_SingleDoseOnsetDelay(t *testing.T) {
	m := newTestProtection(1)
	m.OnInitialize([]model.IndividualID{4})
	if got := m.DosesForProtection(4); got != 1 {
		t.Fatalf("doses for protection = %d, want 1", got)
	}

	at := vaccinationStart
	ind := vaccinated(4, 1, at)

	if phase, _ := m.Phase(ind, at.Add(Days(5))); phase != PhaseOnsetDelay {
		t.Fatalf("day 5 phase = %s, want onset_delay", phase)
	}
	if got := m.Protection(ind, at.Add(Days(5))); got != 0 {
		t.Fatalf("day 5 protection = %v, want 0", got)
	}
	if got := m.Protection(ind, at.Add(Days(15))); got != 0.5 {
		t.Fatalf("day 15 protection = %v, want 0.5", got)
	}
}

func TestProtection_BelowThreshold(t *testing.T) {
	m := newTestProtection(0)
	m.OnInitialize([]model.IndividualID{2})
	ind := vaccinated(2, 1, vaccinationStart)
	if got := m.Protection(ind, vaccinationStart.Add(Days(100))); got != 0 {
		t.Fatalf("single dose with threshold 2 protection = %v, want 0", got)
	}

	unvaccinated := model.Individual{ID: 2}
	if phase, _ := m.Phase(unvaccinated, vaccinationStart); phase != PhaseUnprotected {
		t.Fatalf("unvaccinated phase = %s", phase)
	}
	rates := m.ModifyIncidence([]model.Individual{unvaccinated}, []float64{0.3}, vaccinationStart)
	if rates[0] != 0.3 {
		t.Fatalf("unvaccinated incidence = %v, want 0.3", rates[0])
	}
}

func TestProtection_DosesForProtectionSampling(t *testing.T) {
	m := newTestProtection(0.7)
	ids := seqIDs(4000)
	m.OnInitialize(ids)

	single := 0
	for _, id := range ids {
		switch m.DosesForProtection(id) {
		case 1:
			single++
		case 2:
		default:
			t.Fatalf("id %d doses for protection = %d", id, m.DosesForProtection(id))
		}
	}
	if frac := float64(single) / float64(len(ids)); math.Abs(frac-0.7) > 0.03 {
		t.Fatalf("single-dose fraction = %v, want ~0.7", frac)
	}

	again := newTestProtection(0.7)
	again.OnInitialize(ids)
	for _, id := range ids {
		if again.DosesForProtection(id) != m.DosesForProtection(id) {
			t.Fatalf("id %d threshold not reproducible", id)
		}
	}

	if got := m.DosesForProtection(model.IndividualID(999999)); got != 2 {
		t.Fatalf("unknown id threshold = %d, want 2", got)
	}
}
