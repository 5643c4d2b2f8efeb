package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-tracker/internal/model"
)

func ptr[T any](v T) *T { return &v }

func stateWithAltitude(icao string, alt *float64, onGround bool) model.AircraftState {
	return model.AircraftState{ICAO24: icao, BaroAltitude: alt, OnGround: onGround}
}

func TestEmptySpecPassesEverything(t *testing.T) {
	states := []model.AircraftState{
		{ICAO24: "a"}, {ICAO24: "b"}, {ICAO24: "c"},
	}
	out := Apply(states, Spec{})
	assert.Equal(t, states, out)
}

func TestCallsignSubstringCaseInsensitive(t *testing.T) {
	states := []model.AircraftState{
		{ICAO24: "a", Callsign: "EJA123"},
		{ICAO24: "b", Callsign: "UAL45"},
		{ICAO24: "c", Callsign: "eja999"},
	}

	out := Apply(states, Spec{Callsign: ptr("EJA")})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ICAO24)
	assert.Equal(t, "c", out[1].ICAO24, "match is case-insensitive and order is stable")
}

func TestAltitudeBoundsFailClosed(t *testing.T) {
	states := []model.AircraftState{
		stateWithAltitude("a", ptr(5000.0), false),
		stateWithAltitude("b", nil, false),
		stateWithAltitude("c", ptr(12000.0), true),
	}

	out := Apply(states, Spec{MinAltitude: ptr(1000.0), MaxAltitude: ptr(10000.0)})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ICAO24,
		"unknown altitude never satisfies an altitude bound; the high entry fails max_altitude")
}

func TestMinAltitudeOnly(t *testing.T) {
	states := []model.AircraftState{
		stateWithAltitude("a", ptr(5000.0), false),
		stateWithAltitude("b", nil, false),
		stateWithAltitude("c", ptr(12000.0), true),
	}

	out := Apply(states, Spec{MinAltitude: ptr(1000.0)})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ICAO24)
	assert.Equal(t, "c", out[1].ICAO24, "the ground flag is independent of altitude bounds")
}

func TestCountryExactMatch(t *testing.T) {
	states := []model.AircraftState{
		{ICAO24: "a", OriginCountry: "Germany"},
		{ICAO24: "b", OriginCountry: "Germany "},
		{ICAO24: "c", OriginCountry: "France"},
	}

	out := Apply(states, Spec{Country: ptr("Germany")})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ICAO24)
}

func TestCategoryExactMatch(t *testing.T) {
	states := []model.AircraftState{
		{ICAO24: "a", Category: ptr(6)},
		{ICAO24: "b", Category: ptr(2)},
		{ICAO24: "c"}, // no category reported
	}

	out := Apply(states, Spec{Category: ptr(6)})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ICAO24)
}

func TestOnGroundEquality(t *testing.T) {
	states := []model.AircraftState{
		{ICAO24: "a", OnGround: true},
		{ICAO24: "b", OnGround: false},
	}

	out := Apply(states, Spec{OnGround: ptr(true)})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ICAO24)
}

func TestPredicatesComposeByAnd(t *testing.T) {
	states := []model.AircraftState{
		{ICAO24: "a", Callsign: "EJA1", OriginCountry: "United States", BaroAltitude: ptr(8000.0)},
		{ICAO24: "b", Callsign: "EJA2", OriginCountry: "Germany", BaroAltitude: ptr(8000.0)},
		{ICAO24: "c", Callsign: "UAL3", OriginCountry: "United States", BaroAltitude: ptr(8000.0)},
	}

	out := Apply(states, Spec{
		Callsign:    ptr("EJA"),
		Country:     ptr("United States"),
		MinAltitude: ptr(1000.0),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ICAO24)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	states := []model.AircraftState{
		{ICAO24: "a", Callsign: "EJA1"},
		{ICAO24: "b", Callsign: "UAL2"},
	}
	snapshot := make([]model.AircraftState, len(states))
	copy(snapshot, states)

	_ = Apply(states, Spec{Callsign: ptr("EJA")})
	assert.Equal(t, snapshot, states)
}
