package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/vaccine-rollout-sim/core"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/observability"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/sim"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/sim/state"
)

const inlineRunYAML = `
location: Kenya
schedule: 9_12
scenario: optimistic
start: "2025-01-01"
end: "2026-07-01"
step_days: 30
population:
  size: 200
  age_start: 0
  age_end: 1
incidence_rate: 0.1
coverage:
  coverage_9mo:
    2025: 0.85
  coverage_12mo:
    2025: 0.55
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestRunBatch_WritesResults(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		ConfigPath:  writeFile(t, dir, "run.yaml", inlineRunYAML),
		Draws:       3,
		Concurrency: 2,
		OutputPath:  filepath.Join(dir, "results.yaml"),
	}
	log := logging.New(logging.Config{Level: "warn"})

	require.NoError(t, run(context.Background(), cfg, log))

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	var out struct {
		Results []state.RunResult `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(data, &out))
	require.Len(t, out.Results, 3)
	for i, r := range out.Results {
		assert.Equal(t, "Kenya", r.Location)
		assert.Equal(t, i, r.Draw)
		assert.Equal(t, "optimistic", r.Scenario)
		assert.Empty(t, r.Error)
		assert.NotEmpty(t, r.RunID)
		assert.Contains(t, r.Metrics, "vaccine_catchup_proportion")
	}
	assert.NotEqual(t, out.Results[0].Efficacy, out.Results[1].Efficacy, "draws sample different efficacies")
}

func TestRunBatch_FailedRunsAreReported(t *testing.T) {
	dir := t.TempDir()
	broken := inlineRunYAML + "\nschedule_override: true\n"
	cfg := Config{
		ConfigPath: writeFile(t, dir, "run.yaml", broken),
		Draws:      1,
	}
	err := run(context.Background(), cfg, logging.Noop())
	require.Error(t, err, "unknown fields are rejected")

	cfg.ConfigPath = writeFile(t, dir, "missing.yaml", `
location: Kenya
schedule: 9_12_15
coverage:
  coverage_9mo:
    2025: 0.85
  coverage_12mo:
    2025: 0.55
`)
	cfg.OutputPath = filepath.Join(dir, "results.yaml")
	err = run(context.Background(), cfg, logging.Noop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 runs failed")

	data, readErr := os.ReadFile(cfg.OutputPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "coverage_15mo")
}

func TestExecuteOne_SetupFailureLeavesInFlightAtZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	engineMetrics, err := observability.NewEngineCollector(reg)
	require.NoError(t, err)
	runMetrics, err := observability.NewRunCollector(reg)
	require.NoError(t, err)

	cfg := core.DefaultRunConfig()
	cfg.Location = "Kenya"
	cfg.Schedule = "9_12_15"
	result := executeOne(context.Background(), cfg, sim.NewInlineSource(cfg), logging.Noop(), engineMetrics, runMetrics)

	require.True(t, result.Failed())
	assert.Equal(t, 0.0, testutil.ToFloat64(runMetrics.RunsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(runMetrics.RunsTotal.WithLabelValues("setup_error")))

	cfg = core.DefaultRunConfig()
	cfg.Location = "Kenya"
	cfg.End = "2025-06-01"
	cfg.Population.Size = 50
	result = executeOne(context.Background(), cfg, sim.NewInlineSource(cfg), logging.Noop(), engineMetrics, runMetrics)

	require.False(t, result.Failed(), result.Error)
	assert.Equal(t, 0.0, testutil.ToFloat64(runMetrics.RunsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(runMetrics.RunsTotal.WithLabelValues("ok")))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Kenya", "Mali"}, splitList(" Kenya, ,Mali "))
	assert.Nil(t, splitList(""))
}
