package model

import "fmt"

// Covariate identifies an externally supplied coverage series: the observed
// proportion of children covered at a given age in months.
type Covariate int

const (
	CoverageSixMonths Covariate = iota
	CoverageNineMonths
	CoverageTwelveMonths
	CoverageFifteenMonths
)

// Covariates lists every coverage covariate.
var Covariates = []Covariate{
	CoverageSixMonths,
	CoverageNineMonths,
	CoverageTwelveMonths,
	CoverageFifteenMonths,
}

// Months returns the age in months the covariate was observed at.
func (c Covariate) Months() int {
	switch c {
	case CoverageSixMonths:
		return 6
	case CoverageNineMonths:
		return 9
	case CoverageTwelveMonths:
		return 12
	case CoverageFifteenMonths:
		return 15
	}
	return 0
}

func (c Covariate) String() string {
	if m := c.Months(); m > 0 {
		return fmt.Sprintf("coverage_%dmo", m)
	}
	return fmt.Sprintf("Covariate(%d)", int(c))
}

// ArtifactKey is the key the covariate is stored under in an artifact.
func (c Covariate) ArtifactKey() string {
	return fmt.Sprintf("covariate.vaccine_%s_proportion.estimate", c.String())
}

// ParseCovariate accepts either the short name ("coverage_9mo") or the
// artifact key.
func ParseCovariate(s string) (Covariate, error) {
	for _, c := range Covariates {
		if s == c.String() || s == c.ArtifactKey() {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown coverage covariate %q", s)
}

const (
	// LiveBirthsKey is the artifact key for annual live births.
	LiveBirthsKey = "covariate.live_births_by_year.estimate"
	// PopulationStructureKey is the artifact key for population counts.
	PopulationStructureKey = "population.structure"
)
