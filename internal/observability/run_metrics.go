package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunCollector exposes batch-level metrics: one observation per completed
// (location, draw) run.
type RunCollector struct {
	gatherer prometheus.Gatherer

	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	SampledParameters *prometheus.GaugeVec
	RunsInFlight      prometheus.Gauge
}

// NewRunCollector registers run metrics against the provided registerer.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_runs_total",
		Help: "Completed simulation runs, labeled by outcome.",
	}, []string{"status"})
	runs, err := registerCounterVec(reg, runs, "sim_runs_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_run_duration_seconds",
		Help:    "Wall-clock duration of a full simulation run.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})
	duration, err = registerHistogram(reg, duration, "sim_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	params := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_sampled_parameter",
		Help: "Run-level sampled parameters (efficacy, catch-up proportion), labeled by location, draw and parameter.",
	}, []string{"location", "draw", "parameter"})
	params, err = registerGaugeVec(reg, params, "sim_sampled_parameter")
	if err != nil {
		return nil, err
	}

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_runs_in_flight",
		Help: "Simulation runs currently executing.",
	})
	inFlight, err = registerGauge(reg, inFlight, "sim_runs_in_flight")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:          gatherer,
		RunsTotal:         runs,
		RunDuration:       duration,
		SampledParameters: params,
		RunsInFlight:      inFlight,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RunCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// RunStarted increments the in-flight gauge.
func (c *RunCollector) RunStarted() {
	if c == nil || c.RunsInFlight == nil {
		return
	}
	c.RunsInFlight.Inc()
}

// RunFinished records a run's outcome and duration.
func (c *RunCollector) RunFinished(d time.Duration, err error) {
	if c == nil {
		return
	}
	if c.RunsInFlight != nil {
		c.RunsInFlight.Dec()
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.RunsTotal != nil {
		c.RunsTotal.WithLabelValues(status).Inc()
	}
	if c.RunDuration != nil {
		c.RunDuration.Observe(d.Seconds())
	}
}

// RunFailedSetup counts a run that failed before it started stepping. The
// in-flight gauge is untouched since RunStarted was never called.
func (c *RunCollector) RunFailedSetup(err error) {
	if c == nil || c.RunsTotal == nil || err == nil {
		return
	}
	c.RunsTotal.WithLabelValues("setup_error").Inc()
}

// SetSampledParameter publishes a run-level sampled value.
func (c *RunCollector) SetSampledParameter(location string, draw int, name string, v float64) {
	if c == nil || c.SampledParameters == nil {
		return
	}
	c.SampledParameters.WithLabelValues(location, fmt.Sprint(draw), name).Set(v)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
