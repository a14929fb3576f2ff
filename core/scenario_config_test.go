package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

func TestResolveScenario(t *testing.T) {
	base := BaselineScenario()
	if base.ImmunityDuration != Days(720) || base.OnsetDelay != Days(14) {
		t.Fatalf("baseline durations = %s, %s", base.ImmunityDuration, base.OnsetDelay)
	}

	cases := []struct {
		scenario model.Scenario
		duration bool
		efficacy bool
		waning   bool
	}{
		{model.ScenarioBaseline, false, false, false},
		{model.ScenarioOptimistic, true, true, true},
		{model.ScenarioSensitivityDuration, true, false, false},
		{model.ScenarioSensitivityEfficacy, false, true, false},
		{model.ScenarioSensitivityWaning, false, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.scenario.String(), func(t *testing.T) {
			cfg, err := ResolveScenario(tc.scenario)
			if err != nil {
				t.Fatalf("ResolveScenario: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got := cfg.ImmunityDuration != base.ImmunityDuration; got != tc.duration {
				t.Fatalf("duration overridden = %v, want %v", got, tc.duration)
			}
			if got := cfg.Efficacy != base.Efficacy; got != tc.efficacy {
				t.Fatalf("efficacy overridden = %v, want %v", got, tc.efficacy)
			}
			if got := cfg.WaningRate != base.WaningRate; got != tc.waning {
				t.Fatalf("waning overridden = %v, want %v", got, tc.waning)
			}
			if cfg.OnsetDelay != base.OnsetDelay || cfg.SingleDoseProtected != base.SingleDoseProtected {
				t.Fatalf("scenario %s changed onset or single-dose fraction", tc.scenario)
			}
		})
	}

	opt, _ := ResolveScenario(model.ScenarioOptimistic)
	if !(opt.ImmunityDuration > base.ImmunityDuration && opt.Efficacy.Mean > base.Efficacy.Mean && opt.WaningRate < base.WaningRate) {
		t.Fatalf("optimistic is not more favourable than baseline: %+v", opt)
	}
}

func TestResolveScenario_Unknown(t *testing.T) {
	if _, err := ResolveScenario(model.Scenario(77)); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("err = %v, want ErrUnknownScenario", err)
	}
}

func TestScenarioConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ScenarioConfig)
		want   error
	}{
		{"negative duration", func(c *ScenarioConfig) { c.ImmunityDuration = -Days(1) }, ErrInvalidConfig},
		{"negative onset", func(c *ScenarioConfig) { c.OnsetDelay = -Days(1) }, ErrInvalidConfig},
		{"negative waning", func(c *ScenarioConfig) { c.WaningRate = -0.1 }, ErrInvalidConfig},
		{"single dose above one", func(c *ScenarioConfig) { c.SingleDoseProtected = 1.5 }, ErrInvalidConfig},
		{"efficacy sd too wide", func(c *ScenarioConfig) { c.Efficacy = Moments{Mean: 0.5, SD: 0.6} }, ErrInvalidBeta},
		{"catchup mean zero", func(c *ScenarioConfig) { c.CatchupFraction = Moments{Mean: 0, SD: 0.1} }, ErrInvalidBeta},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := BaselineScenario()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
