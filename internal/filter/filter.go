package filter

import (
	"strings"

	"flight-tracker/internal/model"
)

// Spec is an optional set of predicates over aircraft states. A nil field
// imposes no constraint on that dimension; set fields compose by AND.
type Spec struct {
	// Callsign matches case-insensitively as a substring.
	Callsign *string
	// Country matches the origin country exactly.
	Country *string
	// Category matches the raw category code exactly.
	Category *int
	// MinAltitude/MaxAltitude are inclusive barometric-altitude bounds.
	// Aircraft with unknown altitude never satisfy either bound.
	MinAltitude *float64
	MaxAltitude *float64
	// OnGround matches the on-ground flag exactly.
	OnGround *bool
}

// IsZero reports whether the spec constrains nothing.
func (s Spec) IsZero() bool {
	return s.Callsign == nil && s.Country == nil && s.Category == nil &&
		s.MinAltitude == nil && s.MaxAltitude == nil && s.OnGround == nil
}

// Apply returns the states satisfying every set predicate, preserving the
// input order. The input is never mutated.
func Apply(states []model.AircraftState, spec Spec) []model.AircraftState {
	if spec.IsZero() {
		return states
	}

	out := make([]model.AircraftState, 0, len(states))
	for _, s := range states {
		if matches(&s, spec) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s *model.AircraftState, spec Spec) bool {
	if spec.Callsign != nil {
		pat := strings.ToUpper(*spec.Callsign)
		if !strings.Contains(strings.ToUpper(s.Callsign), pat) {
			return false
		}
	}
	if spec.Country != nil && s.OriginCountry != *spec.Country {
		return false
	}
	if spec.Category != nil {
		if s.Category == nil || *s.Category != *spec.Category {
			return false
		}
	}
	if spec.MinAltitude != nil {
		if s.BaroAltitude == nil || *s.BaroAltitude < *spec.MinAltitude {
			return false
		}
	}
	if spec.MaxAltitude != nil {
		if s.BaroAltitude == nil || *s.BaroAltitude > *spec.MaxAltitude {
			return false
		}
	}
	if spec.OnGround != nil && s.OnGround != *spec.OnGround {
		return false
	}
	return true
}
