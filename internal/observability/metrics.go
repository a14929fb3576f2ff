package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for simulation steps. It
// satisfies core.StepMetricsRecorder and is safe to share across runs.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	DosesAdministered *prometheus.CounterVec
	DosesEligible     *prometheus.CounterVec
	StepDurations     prometheus.Histogram
	PopulationAlive   prometheus.Gauge
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	administered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaccine_doses_administered_total",
		Help: "Total number of vaccine doses given, labeled by dose.",
	}, []string{"dose"})
	administered, err := registerCounterVec(reg, administered, "vaccine_doses_administered_total")
	if err != nil {
		return nil, err
	}

	eligible := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaccine_dose_eligible_total",
		Help: "Total number of individuals eligible for a dose in a step, labeled by dose.",
	}, []string{"dose"})
	eligible, err = registerCounterVec(reg, eligible, "vaccine_dose_eligible_total")
	if err != nil {
		return nil, err
	}

	steps, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_step_duration_seconds",
		Help:    "Wall-clock time spent processing one simulation step.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "sim_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	alive, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_population_alive",
		Help: "Living individuals at the end of the most recent step.",
	}), "sim_population_alive")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		DosesAdministered: administered,
		DosesEligible:     eligible,
		StepDurations:     steps,
		PopulationAlive:   alive,
	}, nil
}

// RecordDoses adds one step's eligibility and uptake for a dose.
func (c *EngineCollector) RecordDoses(dose string, eligible, administered int) {
	if c == nil {
		return
	}
	if c.DosesEligible != nil {
		c.DosesEligible.WithLabelValues(dose).Add(float64(eligible))
	}
	if c.DosesAdministered != nil {
		c.DosesAdministered.WithLabelValues(dose).Add(float64(administered))
	}
}

// SetPopulation updates the living population gauge.
func (c *EngineCollector) SetPopulation(alive int) {
	if c == nil || c.PopulationAlive == nil {
		return
	}
	c.PopulationAlive.Set(float64(alive))
}

// ObserveStep records the time spent in one step.
func (c *EngineCollector) ObserveStep(d time.Duration) {
	if c == nil || c.StepDurations == nil {
		return
	}
	c.StepDurations.Observe(d.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
