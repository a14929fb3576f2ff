package model

import (
	"errors"
	"testing"
)

func TestParseScheduleRoundTrip(t *testing.T) {
	for _, s := range []Schedule{ScheduleNone, ScheduleSixNine, ScheduleNineTwelve, ScheduleNineTwelveFifteen} {
		got, err := ParseSchedule(s.String())
		if err != nil {
			t.Fatalf("ParseSchedule(%q): %v", s, err)
		}
		if got != s {
			t.Fatalf("ParseSchedule(%q) = %v, want %v", s, got, s)
		}
	}
}

func TestParseScheduleUnknown(t *testing.T) {
	if _, err := ParseSchedule("6_12"); !errors.Is(err, ErrUnknownSchedule) {
		t.Fatalf("ParseSchedule(6_12) err = %v, want ErrUnknownSchedule", err)
	}
}

func TestParseScenarioUnknown(t *testing.T) {
	if _, err := ParseScenario("pessimistic"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("err = %v, want ErrUnknownScenario", err)
	}
	got, err := ParseScenario(" Sensitivity_Waning ")
	if err != nil || got != ScenarioSensitivityWaning {
		t.Fatalf("ParseScenario = %v, %v", got, err)
	}
}

func TestParseDose(t *testing.T) {
	for _, d := range append([]Dose{DoseNone}, AdministeredDoses...) {
		got, err := ParseDose(d.String())
		if err != nil || got != d {
			t.Fatalf("ParseDose(%q) = %v, %v", d, got, err)
		}
	}
	if _, err := ParseDose("fourth"); !errors.Is(err, ErrUnknownDose) {
		t.Fatalf("err = %v, want ErrUnknownDose", err)
	}
	if Dose(42).Valid() {
		t.Fatalf("Dose(42) should not be valid")
	}
}

func TestParseCovariate(t *testing.T) {
	c, err := ParseCovariate(CoverageTwelveMonths.ArtifactKey())
	if err != nil || c != CoverageTwelveMonths {
		t.Fatalf("ParseCovariate(artifact key) = %v, %v", c, err)
	}
	c, err = ParseCovariate("coverage_15mo")
	if err != nil || c != CoverageFifteenMonths {
		t.Fatalf("ParseCovariate(short) = %v, %v", c, err)
	}
	if _, err := ParseCovariate("coverage_18mo"); err == nil {
		t.Fatalf("expected error for unknown covariate")
	}
}
