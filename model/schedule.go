package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSchedule is returned for a delivery schedule name that is not
	// one of the supported schedules.
	ErrUnknownSchedule = errors.New("unknown vaccine schedule")
	// ErrUnknownScenario is returned for an unrecognised scenario name.
	ErrUnknownScenario = errors.New("unknown vaccine scenario")
)

// Schedule identifies a dose delivery schedule by the ages (in months) the
// doses are nominally given.
type Schedule int

const (
	ScheduleNone Schedule = iota
	ScheduleSixNine
	ScheduleNineTwelve
	ScheduleNineTwelveFifteen
)

var scheduleNames = [...]string{
	ScheduleNone:              "none",
	ScheduleSixNine:           "6_9",
	ScheduleNineTwelve:        "9_12",
	ScheduleNineTwelveFifteen: "9_12_15",
}

func (s Schedule) String() string {
	if s < 0 || int(s) >= len(scheduleNames) {
		return fmt.Sprintf("Schedule(%d)", int(s))
	}
	return scheduleNames[s]
}

// ParseSchedule maps a schedule name such as "9_12" to its Schedule.
func ParseSchedule(s string) (Schedule, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range scheduleNames {
		if n == name {
			return Schedule(i), nil
		}
	}
	return ScheduleNone, fmt.Errorf("%w: %q", ErrUnknownSchedule, s)
}

// Scenario names a bundle of vaccine biology assumptions.
type Scenario int

const (
	ScenarioBaseline Scenario = iota
	ScenarioOptimistic
	ScenarioSensitivityDuration
	ScenarioSensitivityEfficacy
	ScenarioSensitivityWaning
)

var scenarioNames = [...]string{
	ScenarioBaseline:            "baseline",
	ScenarioOptimistic:          "optimistic",
	ScenarioSensitivityDuration: "sensitivity_duration",
	ScenarioSensitivityEfficacy: "sensitivity_efficacy",
	ScenarioSensitivityWaning:   "sensitivity_waning",
}

func (s Scenario) String() string {
	if s < 0 || int(s) >= len(scenarioNames) {
		return fmt.Sprintf("Scenario(%d)", int(s))
	}
	return scenarioNames[s]
}

// ParseScenario maps a scenario name to its Scenario.
func ParseScenario(s string) (Scenario, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range scenarioNames {
		if n == name {
			return Scenario(i), nil
		}
	}
	return ScenarioBaseline, fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}
