package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// ScenarioConfig is the set of vaccine biology assumptions for a run.
type ScenarioConfig struct {
	// ImmunityDuration is the length of the full-protection plateau.
	ImmunityDuration time.Duration
	// OnsetDelay is the time from a first dose to protection.
	OnsetDelay time.Duration
	Efficacy   Moments
	// SingleDoseProtected is the fraction of individuals protected after a
	// single dose; the rest need two.
	SingleDoseProtected float64
	// WaningRate is the exponential decay rate of protection per day.
	WaningRate      float64
	CatchupFraction Moments
}

// BaselineScenario returns the reference assumptions.
func BaselineScenario() ScenarioConfig {
	return ScenarioConfig{
		ImmunityDuration:    Days(720),
		OnsetDelay:          Days(14),
		Efficacy:            Moments{Mean: 0.5, SD: 0.1},
		SingleDoseProtected: 0.7,
		WaningRate:          0.038,
		CatchupFraction:     Moments{Mean: 0.34, SD: 0.21},
	}
}

// Optimistic values, applied together or one at a time by the sensitivity
// scenarios.
var (
	optimisticDuration   = Days(1080)
	optimisticEfficacy   = Moments{Mean: 0.7, SD: 0.1}
	optimisticWaningRate = 0.019
)

// ResolveScenario returns the configuration for a named scenario.
func ResolveScenario(s model.Scenario) (ScenarioConfig, error) {
	cfg := BaselineScenario()
	switch s {
	case model.ScenarioBaseline:
	case model.ScenarioOptimistic:
		cfg.ImmunityDuration = optimisticDuration
		cfg.Efficacy = optimisticEfficacy
		cfg.WaningRate = optimisticWaningRate
	case model.ScenarioSensitivityDuration:
		cfg.ImmunityDuration = optimisticDuration
	case model.ScenarioSensitivityEfficacy:
		cfg.Efficacy = optimisticEfficacy
	case model.ScenarioSensitivityWaning:
		cfg.WaningRate = optimisticWaningRate
	default:
		return ScenarioConfig{}, fmt.Errorf("%w: %v", ErrUnknownScenario, s)
	}
	return cfg, nil
}

// Validate checks that every parameter is usable.
func (c ScenarioConfig) Validate() error {
	if c.ImmunityDuration < 0 {
		return fmt.Errorf("%w: immunity_duration %s is negative", ErrInvalidConfig, c.ImmunityDuration)
	}
	if c.OnsetDelay < 0 {
		return fmt.Errorf("%w: onset_delay %s is negative", ErrInvalidConfig, c.OnsetDelay)
	}
	if c.WaningRate < 0 {
		return fmt.Errorf("%w: waning_rate %v is negative", ErrInvalidConfig, c.WaningRate)
	}
	if c.SingleDoseProtected < 0 || c.SingleDoseProtected > 1 {
		return fmt.Errorf("%w: single_dose_protected %v outside [0, 1]", ErrInvalidConfig, c.SingleDoseProtected)
	}
	if _, _, err := BetaParameters(c.Efficacy.Mean, c.Efficacy.SD); err != nil {
		return fmt.Errorf("efficacy: %w", err)
	}
	if _, _, err := BetaParameters(c.CatchupFraction.Mean, c.CatchupFraction.SD); err != nil {
		return fmt.Errorf("catchup_fraction: %w", err)
	}
	return nil
}
