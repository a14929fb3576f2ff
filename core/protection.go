package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// ProtectionPhase is where an individual sits on the protection curve.
type ProtectionPhase int

const (
	PhaseUnprotected ProtectionPhase = iota
	// PhaseOnsetDelay applies only to single-dose recipients before the
	// onset delay has elapsed.
	PhaseOnsetDelay
	PhaseFull
	PhaseWaning
)

func (p ProtectionPhase) String() string {
	switch p {
	case PhaseOnsetDelay:
		return "onset_delay"
	case PhaseFull:
		return "full"
	case PhaseWaning:
		return "waning"
	default:
		return "unprotected"
	}
}

// ProtectionModel turns vaccination history into a multiplicative reduction
// of disease incidence.
type ProtectionModel struct {
	efficacy            float64
	immunityDuration    time.Duration
	onsetDelay          time.Duration
	waningRate          float64
	singleDoseProtected float64

	stream *RandomStream
	// dosesForProtection holds 1 or 2 per individual.
	dosesForProtection arena[int]
}

// NewProtectionModel builds the model from a scenario and a run-level
// efficacy already sampled from cfg.Efficacy. stream decides, per
// individual, how many doses they need.
func NewProtectionModel(cfg ScenarioConfig, efficacy float64, stream *RandomStream) *ProtectionModel {
	return &ProtectionModel{
		efficacy:            efficacy,
		immunityDuration:    cfg.ImmunityDuration,
		onsetDelay:          cfg.OnsetDelay,
		waningRate:          cfg.WaningRate,
		singleDoseProtected: cfg.SingleDoseProtected,
		stream:              stream,
	}
}

// Efficacy returns the run's efficacy scalar.
func (m *ProtectionModel) Efficacy() float64 { return m.efficacy }

// OnInitialize decides, once per individual, whether one dose suffices.
func (m *ProtectionModel) OnInitialize(ids []model.IndividualID) {
	single := m.stream.FilterForScalar(ids, m.singleDoseProtected, "doses_for_protection")
	isSingle := make(map[model.IndividualID]struct{}, len(single))
	for _, id := range single {
		isSingle[id] = struct{}{}
	}
	for _, id := range ids {
		n := 2
		if _, ok := isSingle[id]; ok {
			n = 1
		}
		m.dosesForProtection.put(id, n)
	}
}

// SetDosesForProtection overrides the sampled threshold for id.
func (m *ProtectionModel) SetDosesForProtection(id model.IndividualID, n int) {
	m.dosesForProtection.put(id, n)
}

// DosesForProtection returns the threshold for id. Individuals never
// initialised need two doses.
func (m *ProtectionModel) DosesForProtection(id model.IndividualID) int {
	if n, ok := m.dosesForProtection.get(id); ok {
		return n
	}
	return 2
}

// Phase classifies ind at time now, returning also the days spent waning.
//
// The onset delay is only applied to single-dose recipients; a multi-dose
// recipient reaching the threshold is treated as protected immediately.
func (m *ProtectionModel) Phase(ind model.Individual, now time.Time) (ProtectionPhase, float64) {
	if ind.VaccineEventTime.IsZero() || ind.VaccineDoseCount < m.DosesForProtection(ind.ID) {
		return PhaseUnprotected, 0
	}
	sinceVaccination := now.Sub(ind.VaccineEventTime)
	waningDays := DurationDays(now.Sub(ind.VaccineEventTime.Add(m.onsetDelay + m.immunityDuration)))

	switch {
	case ind.VaccineDoseCount == 1 && sinceVaccination < m.onsetDelay:
		return PhaseOnsetDelay, 0
	case waningDays > 0:
		return PhaseWaning, waningDays
	default:
		return PhaseFull, 0
	}
}

// Protection returns the fraction of incidence prevented for ind at now.
func (m *ProtectionModel) Protection(ind model.Individual, now time.Time) float64 {
	phase, waningDays := m.Phase(ind, now)
	switch phase {
	case PhaseFull:
		return m.efficacy
	case PhaseWaning:
		return m.efficacy * math.Exp(-m.waningRate*waningDays)
	default:
		return 0
	}
}

// ModifyIncidence returns rates[i] * (1 - protection) for each individual.
func (m *ProtectionModel) ModifyIncidence(pop []model.Individual, rates []float64, now time.Time) []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = r * (1 - m.Protection(pop[i], now))
	}
	return out
}
