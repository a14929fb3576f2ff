package sim

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/vaccine-rollout-sim/core"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// InlineSource serves run inputs written directly in a RunConfig.
type InlineSource struct {
	cfg core.RunConfig
}

// NewInlineSource wraps cfg's coverage, live_births and population_total
// blocks.
func NewInlineSource(cfg core.RunConfig) *InlineSource {
	return &InlineSource{cfg: cfg}
}

// Covariates returns the inline coverage block. The location argument is
// ignored; an inline config describes a single location.
func (s *InlineSource) Covariates(_ context.Context, _ string) (map[model.Covariate]core.YearSeries, error) {
	return s.cfg.InlineCovariates()
}

// LiveBirths returns the inline live births per year.
func (s *InlineSource) LiveBirths(_ context.Context, location string) (core.YearSeries, error) {
	if len(s.cfg.LiveBirths) == 0 {
		return core.YearSeries{}, fmt.Errorf("no live_births for %s", location)
	}
	return core.NewYearSeries(s.cfg.LiveBirths), nil
}

// PopulationTotal returns the inline population total for every year.
func (s *InlineSource) PopulationTotal(_ context.Context, location string, _ int) (float64, error) {
	if !(s.cfg.PopulationTotal > 0) {
		return 0, fmt.Errorf("no population_total for %s", location)
	}
	return s.cfg.PopulationTotal, nil
}
