package model

import (
	"fmt"
	"strings"
	"time"
)

// IndividualID is a stable identifier for a simulated person. IDs are
// assigned sequentially from zero and never reused within a run.
type IndividualID uint64

// Status is an individual's vital status.
type Status int

const (
	StatusAlive Status = iota
	StatusDead
)

func (s Status) String() string {
	if s == StatusDead {
		return "dead"
	}
	return "alive"
}

// Sex is the demographic sex of an individual. SexAll marks data that is not
// split by sex.
type Sex int

const (
	SexAll Sex = iota
	SexFemale
	SexMale
)

func (s Sex) String() string {
	switch s {
	case SexFemale:
		return "female"
	case SexMale:
		return "male"
	default:
		return "all"
	}
}

// ParseSex accepts "female", "male" or "all" (also "both"), case-insensitive.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "female", "f":
		return SexFemale, nil
	case "male", "m":
		return SexMale, nil
	case "", "all", "both":
		return SexAll, nil
	}
	return SexAll, fmt.Errorf("unknown sex %q", s)
}

// Individual is one row of the simulated population.
//
// Age, Sex, Status and EntranceTime belong to the population kernel; the
// Vaccine* columns are written only by the vaccination state machine.
type Individual struct {
	ID           IndividualID
	Age          float64 // years
	Sex          Sex
	Status       Status
	EntranceTime time.Time

	VaccineDose      Dose
	VaccineDoseCount int
	// VaccineEventTime is the time of the most recent dose; zero when none.
	VaccineEventTime time.Time
}

// Alive reports whether the individual is alive.
func (i Individual) Alive() bool { return i.Status == StatusAlive }

// Vaccinated reports whether the individual has received any dose.
func (i Individual) Vaccinated() bool { return i.VaccineDoseCount > 0 && !i.VaccineEventTime.IsZero() }
