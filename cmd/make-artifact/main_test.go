package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/vaccine-rollout-sim/internal/artifact"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

func TestMakeArtifact_SampleExtract(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "sample.db")

	require.NoError(t, run(ctx, out, []string{"../../configs/artifact_sample.csv"}, logging.Noop()))

	store, err := artifact.Open(out)
	require.NoError(t, err)
	defer store.Close()

	locations, err := store.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kenya", "Mali"}, locations)

	nine, err := store.Covariate(ctx, "Kenya", model.CoverageNineMonths)
	require.NoError(t, err)
	assert.Equal(t, 0.92, nine.Value(2030))

	total, err := store.PopulationTotal(ctx, "Kenya", 2025)
	require.NoError(t, err)
	assert.Equal(t, 56_000_000.0, total)
}

func TestMakeArtifact_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "out.db")

	assert.Error(t, run(ctx, out, nil, logging.Noop()))
	assert.Error(t, run(ctx, out, []string{filepath.Join(dir, "absent.csv")}, logging.Noop()))

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("location,value\nKenya,1\n"), 0o644))
	assert.Error(t, run(ctx, out, []string{bad}, logging.Noop()))
}
