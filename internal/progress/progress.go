// Package progress holds the pure load-progression math: unit conversion,
// rounding, estimated 1RM, suggested next load, and the phase rule. No I/O.
package progress

import (
	"math"

	"github.com/claude/bilbotrack/internal/models"
)

const (
	kgToLb = 2.20462
	lbToKg = 1 / kgToLb

	// Reps at or above this keep a cycle in the bilbo phase.
	bilboRepThreshold = 15

	// firstSessionFraction of base 1RM is suggested when a cycle has no
	// sessions yet.
	firstSessionFraction = 0.5
)

// ToKg converts a value in the given display units to kilograms.
func ToKg(value float64, units models.Units) float64 {
	if units == models.UnitsLb {
		return value * lbToKg
	}
	return value
}

// FromKg converts kilograms to the given display units.
func FromKg(kg float64, units models.Units) float64 {
	if units == models.UnitsLb {
		return kg * kgToLb
	}
	return kg
}

// RoundToStep rounds kg to the nearest multiple of step. Exact ties round up.
// A step of zero or less is the identity.
func RoundToStep(kg, step float64) float64 {
	if step <= 0 {
		return kg
	}

	quotient := kg / step
	lower := math.Floor(quotient) * step
	upper := math.Ceil(quotient) * step

	distLower := kg - lower
	distUpper := upper - kg

	if math.Abs(distLower-distUpper) < 1e-4 {
		return upper
	}
	if distLower < distUpper {
		return lower
	}
	return upper
}

// Work is the session volume: load times reps.
func Work(loadKg float64, reps int) float64 {
	return loadKg * float64(reps)
}

// Estimate1RM estimates the one-rep max from a submaximal set using the Epley
// formula, 1RM = load * (1 + reps/30). One rep (or fewer) returns the load
// unchanged; there is no extrapolation below a single rep.
func Estimate1RM(loadKg float64, reps int) float64 {
	if reps <= 1 {
		return loadKg
	}
	return loadKg * (1 + float64(reps)/30)
}

// SuggestedLoad computes the load to propose for the next session of a cycle.
// With no prior session the suggestion is half the cycle's base 1RM; otherwise
// it is the last session's load plus the global increment. Either way the
// result is rounded to stepKg.
func SuggestedLoad(base1RMKg float64, lastLoadKg *float64, incrementKg, stepKg float64) float64 {
	if lastLoadKg == nil {
		return RoundToStep(firstSessionFraction*base1RMKg, stepKg)
	}
	return RoundToStep(*lastLoadKg+incrementKg, stepKg)
}

// PhaseForNewSession classifies a session about to be logged into a cycle.
// The bilbo phase ends the moment any session in the cycle drops below 15
// reps; from then on every new session is strength. The ratchet is one-way:
// it looks only at reps already recorded, and sessions keep the phase they
// were created with.
func PhaseForNewSession(prior []models.Session) models.Phase {
	for _, s := range prior {
		if s.Reps < bilboRepThreshold {
			return models.PhaseStrength
		}
	}
	return models.PhaseBilbo
}
