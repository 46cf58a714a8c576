package utils

import (
	"math"
	"time"
)

// LoadLocation resolves a campus time zone name, falling back to UTC for an
// empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
