package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDose is returned when a dose name does not match any known dose.
var ErrUnknownDose = errors.New("unknown vaccine dose")

// Dose is the most recent dose event an individual received. It is a
// category, not a count.
type Dose int

const (
	DoseNone Dose = iota
	DoseFirst
	DoseSecond
	DoseThird
	// DoseCatchup is given to individuals who missed the first dose, in the
	// second dose's window.
	DoseCatchup
	// DoseLateCatchupMissed1 follows a catch-up dose: missed first, got second.
	DoseLateCatchupMissed1
	// DoseLateCatchupMissed2 follows the first dose: got first, missed second.
	DoseLateCatchupMissed2
	// DoseLateCatchupMissed12 is given to individuals who missed both.
	DoseLateCatchupMissed12
)

var doseNames = [...]string{
	DoseNone:                "none",
	DoseFirst:               "first",
	DoseSecond:              "second",
	DoseThird:               "third",
	DoseCatchup:             "catchup",
	DoseLateCatchupMissed1:  "late_catchup_missed_1",
	DoseLateCatchupMissed2:  "late_catchup_missed_2",
	DoseLateCatchupMissed12: "late_catchup_missed_1_2",
}

// AdministeredDoses lists every dose that can be given, in the order the
// observer reports them.
var AdministeredDoses = []Dose{
	DoseFirst,
	DoseSecond,
	DoseThird,
	DoseCatchup,
	DoseLateCatchupMissed1,
	DoseLateCatchupMissed2,
	DoseLateCatchupMissed12,
}

func (d Dose) String() string {
	if d < 0 || int(d) >= len(doseNames) {
		return fmt.Sprintf("Dose(%d)", int(d))
	}
	return doseNames[d]
}

// Valid reports whether d is one of the declared doses.
func (d Dose) Valid() bool {
	return d >= DoseNone && int(d) < len(doseNames)
}

// ParseDose maps a dose name to its Dose value.
func ParseDose(s string) (Dose, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d, n := range doseNames {
		if n == name {
			return Dose(d), nil
		}
	}
	return DoseNone, fmt.Errorf("%w: %q", ErrUnknownDose, s)
}
