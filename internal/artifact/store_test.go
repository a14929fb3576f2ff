package artifact

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "artifact.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CovariatePrefersAgeZeroFemaleSlice(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := model.CoverageNineMonths.ArtifactKey()

	require.NoError(t, s.Put(ctx, []Row{
		{Location: "Kenya", Key: key, Year: 2025, Sex: "female", AgeStart: 0, AgeEnd: 1, Value: 0.8},
		{Location: "Kenya", Key: key, Year: 2026, Sex: "female", AgeStart: 0, AgeEnd: 1, Value: 0.82},
		{Location: "Kenya", Key: key, Year: 2025, Sex: "male", AgeStart: 0, AgeEnd: 1, Value: 0.1},
		{Location: "Kenya", Key: key, Year: 2025, Sex: "female", AgeStart: 1, AgeEnd: 5, Value: 0.2},
		{Location: "Mali", Key: key, Year: 2025, Value: 0.5},
	}))

	series, err := s.Covariate(ctx, "Kenya", model.CoverageNineMonths)
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2026}, series.Years())
	assert.Equal(t, 0.8, series.Value(2025))
	assert.Equal(t, 0.82, series.Value(2030))

	// Rows without a sex split are stored as "all" and still found.
	mali, err := s.Covariate(ctx, "Mali", model.CoverageNineMonths)
	require.NoError(t, err)
	assert.Equal(t, 0.5, mali.Value(2025))

	_, err = s.Covariate(ctx, "Kenya", model.CoverageFifteenMonths)
	assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)
}

func TestStore_PutUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := model.CoverageTwelveMonths.ArtifactKey()

	require.NoError(t, s.Put(ctx, []Row{{Location: "Kenya", Key: key, Year: 2025, Value: 0.4}}))
	require.NoError(t, s.Put(ctx, []Row{{Location: "Kenya", Key: key, Year: 2025, Value: 0.45}}))

	series, err := s.Covariate(ctx, "Kenya", model.CoverageTwelveMonths)
	require.NoError(t, err)
	assert.Equal(t, 1, series.Len())
	assert.Equal(t, 0.45, series.Value(2025))
}

func TestStore_CovariatesSkipsMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, []Row{
		{Location: "Kenya", Key: model.CoverageNineMonths.ArtifactKey(), Year: 2025, Value: 0.6},
		{Location: "Kenya", Key: model.CoverageTwelveMonths.ArtifactKey(), Year: 2025, Value: 0.4},
	}))

	covs, err := s.Covariates(ctx, "Kenya")
	require.NoError(t, err)
	assert.Len(t, covs, 2)
	assert.Contains(t, covs, model.CoverageNineMonths)
	assert.NotContains(t, covs, model.CoverageSixMonths)
}

func TestStore_YearlyTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, []Row{
		{Location: "Kenya", Key: model.LiveBirthsKey, Year: 2025, Value: 1_500_000},
		{Location: "Kenya", Key: model.LiveBirthsKey, Year: 2026, Value: 1_520_000},
		{Location: "Kenya", Key: model.PopulationStructureKey, Year: 2025, Sex: "female", AgeStart: 0, AgeEnd: 5, Value: 4_000_000},
		{Location: "Kenya", Key: model.PopulationStructureKey, Year: 2025, Sex: "male", AgeStart: 0, AgeEnd: 5, Value: 4_100_000},
		{Location: "Kenya", Key: model.PopulationStructureKey, Year: 2025, Sex: "female", AgeStart: 5, AgeEnd: 125, Value: 20_000_000},
	}))

	births, err := s.LiveBirths(ctx, "Kenya")
	require.NoError(t, err)
	assert.Equal(t, 1_520_000.0, births.Value(2026))

	total, err := s.PopulationTotal(ctx, "Kenya", 2025)
	require.NoError(t, err)
	assert.Equal(t, 28_100_000.0, total)

	// Later years fall back to the most recent year on file.
	later, err := s.PopulationTotal(ctx, "Kenya", 2030)
	require.NoError(t, err)
	assert.Equal(t, total, later)

	_, err = s.LiveBirths(ctx, "Mali")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Locations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, []Row{
		{Location: "Mali", Key: model.LiveBirthsKey, Year: 2025, Value: 1},
		{Location: "Kenya", Key: model.LiveBirthsKey, Year: 2025, Value: 1},
		{Location: "Kenya", Key: model.LiveBirthsKey, Year: 2026, Value: 1},
	}))
	locs, err := s.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kenya", "Mali"}, locs)
}
