package core

import "time"

const (
	// DaysPerYear converts between day and year denominated ages.
	DaysPerYear = 365.25

	day = 24 * time.Hour
)

// ToYears converts a number of days into years.
func ToYears(days float64) float64 {
	return days / DaysPerYear
}

// DurationYears converts a duration into fractional years.
func DurationYears(d time.Duration) float64 {
	return ToYears(DurationDays(d))
}

// DurationDays converts a duration into fractional days.
func DurationDays(d time.Duration) float64 {
	return d.Hours() / 24
}

// Days builds a duration from a (possibly fractional) number of days.
func Days(n float64) time.Duration {
	return time.Duration(n * float64(day))
}
