// core/scenario_loader_test.go
package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

func TestLoadRunConfig_Full(t *testing.T) {
	yamlData := `
location: Kenya
draw: 12
schedule: 9_12
scenario: sensitivity_waning
start: 2025-01-01
end: 2030-01-01
step_days: 30.4375
population:
  size: 2000
  age_start: 0
  age_end: 2
incidence_rate: 0.2
mortality_rate: 0.01
observer:
  by_age: true
  by_sex: true
coverage:
  coverage_9mo:
    2025: 0.8
    2026: 0.82
  coverage_12mo:
    2025: 0.6
    2026: 0.65
`
	cfg, err := LoadRunConfig(strings.NewReader(yamlData))
	require.NoError(t, err)

	assert.Equal(t, "Kenya", cfg.Location)
	assert.Equal(t, 12, cfg.Draw)
	assert.Equal(t, 2000, cfg.Population.Size)
	assert.True(t, cfg.Observer.ByAge)
	assert.True(t, cfg.Observer.BySex)
	assert.False(t, cfg.Observer.ByYear, "by_year is off unless set")

	run, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleNineTwelve, run.Schedule)
	assert.Equal(t, model.ScenarioSensitivityWaning, run.Scenario)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), run.Start)
	assert.Equal(t, Days(30.4375), run.Step)

	covs, err := cfg.InlineCovariates()
	require.NoError(t, err)
	require.Contains(t, covs, model.CoverageNineMonths)
	assert.Equal(t, 0.82, covs[model.CoverageNineMonths].Value(2026))
	assert.Equal(t, 0.6, covs[model.CoverageTwelveMonths].Value(2025))
}

func TestLoadRunConfig_EmptyUsesDefaults(t *testing.T) {
	cfg, err := LoadRunConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRunConfig(), *cfg)
	assert.Equal(t, ObserverConfig{}, cfg.Observer, "no stratification by default")
}

func TestLoadRunConfig_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown schedule", "schedule: 12_18\n", ErrUnknownSchedule},
		{"unknown scenario", "scenario: pessimistic\n", ErrUnknownScenario},
		{"bad step", "step_days: 0\n", ErrInvalidConfig},
		{"end before start", "start: 2030-01-01\nend: 2025-01-01\n", ErrInvalidConfig},
		{"negative draw", "draw: -1\n", ErrInvalidConfig},
		{"unknown covariate", "coverage:\n  coverage_18mo:\n    2025: 0.5\n", ErrCoverageData},
		{"fertility without data", "fertility: true\n", ErrInvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRunConfig(strings.NewReader(tc.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadRunConfig_RejectsUnknownFields(t *testing.T) {
	_, err := LoadRunConfig(strings.NewReader("schedule: 9_12\nvaccine_brand: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vaccine_brand")
}
