package core

import (
	"errors"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// Setup-time errors. Any of these aborts a run; nothing in a time step is
// expected to fail once setup has succeeded.
var (
	ErrUnknownSchedule = model.ErrUnknownSchedule
	ErrUnknownScenario = model.ErrUnknownScenario
	ErrUnknownDose     = model.ErrUnknownDose

	// ErrCoverageRange indicates a resolved coverage probability outside [0,1].
	ErrCoverageRange = errors.New("coverage probability outside [0, 1]")
	// ErrCoverageData indicates missing or malformed coverage covariate data.
	ErrCoverageData = errors.New("malformed coverage data")
	// ErrInvalidBeta indicates mean/sd that do not describe a Beta distribution.
	ErrInvalidBeta = errors.New("invalid beta distribution parameters")
	// ErrInvalidConfig indicates any other invalid configuration value.
	ErrInvalidConfig = errors.New("invalid configuration")
)
