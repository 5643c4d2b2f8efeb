package fetcher

import (
	"strings"

	"flight-tracker/internal/metrics"
	"flight-tracker/internal/model"
)

// State vector positions per the OpenSky /states/all format:
// [icao24, callsign, origin_country, time_position, last_contact,
//  longitude, latitude, baro_altitude, on_ground, velocity, true_track,
//  vertical_rate, sensors, geo_altitude, squawk, spi, position_source,
//  category?]
const minStateFields = 17

// DecodeStates converts raw positional state arrays into typed records.
// Records shorter than 17 fields are dropped silently. The result is a
// materialized slice; downstream filtering and rendering need multiple
// passes.
func DecodeStates(states [][]any, m *metrics.Metrics) []model.AircraftState {
	out := make([]model.AircraftState, 0, len(states))

	for _, raw := range states {
		if len(raw) < minStateFields {
			if m != nil {
				m.StatesDropped.Inc()
			}
			continue
		}

		s := model.AircraftState{
			ICAO24:        stringAt(raw, 0),
			OriginCountry: stringAt(raw, 2),
			OnGround:      boolAt(raw, 8),
			Spi:           boolAt(raw, 15),
		}

		s.Callsign = strings.TrimSpace(stringAt(raw, 1))
		if s.Callsign == "" {
			s.Callsign = model.UnknownCallsign
		}
		if s.OriginCountry == "" {
			s.OriginCountry = model.UnknownCountry
		}

		s.TimePosition = intAt(raw, 3)
		if lc := intAt(raw, 4); lc != nil {
			s.LastContact = *lc
		}
		s.Longitude = floatAt(raw, 5)
		s.Latitude = floatAt(raw, 6)
		s.BaroAltitude = floatAt(raw, 7)
		s.Velocity = floatAt(raw, 9)
		s.TrueTrack = floatAt(raw, 10)
		s.VerticalRate = floatAt(raw, 11)
		s.GeoAltitude = floatAt(raw, 13)

		if sq, ok := raw[14].(string); ok && sq != "" {
			s.Squawk = &sq
		}
		if ps, ok := raw[16].(float64); ok {
			s.PositionSource = int(ps)
		}

		// The raw category code is kept as-is; display mapping through the
		// closed table happens in model.CategoryName.
		if len(raw) > 17 {
			if cat, ok := raw[17].(float64); ok {
				code := int(cat)
				s.Category = &code
			}
		}

		out = append(out, s)
		if m != nil {
			m.StatesDecoded.Inc()
		}
	}

	return out
}

func stringAt(raw []any, i int) string {
	if s, ok := raw[i].(string); ok {
		return s
	}
	return ""
}

func boolAt(raw []any, i int) bool {
	if b, ok := raw[i].(bool); ok {
		return b
	}
	return false
}

func floatAt(raw []any, i int) *float64 {
	if f, ok := raw[i].(float64); ok {
		return &f
	}
	return nil
}

func intAt(raw []any, i int) *int64 {
	if f, ok := raw[i].(float64); ok {
		n := int64(f)
		return &n
	}
	return nil
}
