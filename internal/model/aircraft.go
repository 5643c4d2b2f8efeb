package model

import "time"

// Placeholder values applied during decoding when the upstream omits a field.
const (
	UnknownCallsign = "N/A"
	UnknownCountry  = "Unknown"
)

// AircraftState is one decoded state vector for a single aircraft.
// Optional fields are pointers; nil means the upstream did not report them.
type AircraftState struct {
	ICAO24         string   `json:"icao24"`
	Callsign       string   `json:"callsign"`
	OriginCountry  string   `json:"origin_country"`
	TimePosition   *int64   `json:"time_position"`
	LastContact    int64    `json:"last_contact"`
	Longitude      *float64 `json:"longitude"`
	Latitude       *float64 `json:"latitude"`
	BaroAltitude   *float64 `json:"baro_altitude"`
	OnGround       bool     `json:"on_ground"`
	Velocity       *float64 `json:"velocity"`
	TrueTrack      *float64 `json:"true_track"`
	VerticalRate   *float64 `json:"vertical_rate"`
	GeoAltitude    *float64 `json:"geo_altitude"`
	Squawk         *string  `json:"squawk"`
	Spi            bool     `json:"spi"`
	PositionSource int      `json:"position_source"`
	Category       *int     `json:"category"`
}

// CategoryName returns the display label for the state's raw category code.
func (s *AircraftState) CategoryName() string {
	return CategoryName(s.Category)
}

// TrackPoint is a (latitude, longitude) waypoint. It marshals to a
// two-element JSON array, matching the track endpoints' coordinate shape.
type TrackPoint [2]float64

func (p TrackPoint) Lat() float64 { return p[0] }
func (p TrackPoint) Lon() float64 { return p[1] }

// Feed is the consumer-facing result for a filtered batch of states.
type Feed struct {
	InAir     []AircraftState `json:"in_air"`
	OnGround  []AircraftState `json:"on_ground"`
	Total     int             `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

// StatesResponse mirrors the upstream /states/all JSON: each state is a
// positional array of heterogeneous values.
type StatesResponse struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

// TrackResponse mirrors the upstream /tracks/all JSON. Each path entry is
// [time, lat, lon, baro_altitude, true_track, on_ground].
type TrackResponse struct {
	ICAO24   string  `json:"icao24"`
	Callsign string  `json:"callsign"`
	Path     [][]any `json:"path"`
}

// categoryNames is the closed table of ADS-B emitter categories (codes 0-20).
var categoryNames = map[int]string{
	0:  "No information",
	1:  "No ADS-B info",
	2:  "Light (< 15,500 lbs)",
	3:  "Small (15,500-75,000 lbs)",
	4:  "Large (75,000-300,000 lbs)",
	5:  "High Vortex Large",
	6:  "Heavy (> 300,000 lbs)",
	7:  "High Performance",
	8:  "Rotorcraft",
	9:  "Glider/Sailplane",
	10: "Lighter-than-air",
	11: "Parachutist/Skydiver",
	12: "Ultralight",
	13: "Reserved",
	14: "UAV/Drone",
	15: "Space Vehicle",
	16: "Emergency Vehicle",
	17: "Service Vehicle",
	18: "Point Obstacle",
	19: "Cluster Obstacle",
	20: "Line Obstacle",
}

// CategoryName maps a raw category code to its display label. Absent codes
// and codes outside the table both render as "Unknown".
func CategoryName(code *int) string {
	if code == nil {
		return "Unknown"
	}
	name, ok := categoryNames[*code]
	if !ok {
		return "Unknown"
	}
	return name
}
