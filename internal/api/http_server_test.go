package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-tracker/internal/auth"
	"flight-tracker/internal/config"
	"flight-tracker/internal/feed"
	"flight-tracker/internal/fetcher"
	"flight-tracker/internal/model"
)

const statesBody = `{"time": 1700000000, "states": [
	["e1", "EJA123 ", "United States", 1700000000, 1700000000, -73.9, 40.7, 10000.0, false, 250.0, 180.0, 0.0, null, 10500.0, null, false, 0],
	["u1", "UAL45 ", "United States", 1700000000, 1700000000, -73.8, 40.6, null, true, 5.0, 90.0, 0.0, null, null, null, false, 0],
	["e2", "eja999 ", "Austria", 1700000000, 1700000000, -73.7, 40.5, 8000.0, false, 240.0, 170.0, 0.0, null, 8200.0, null, false, 0, 6]
]}`

const e1Track = `{"icao24": "e1", "path": [
	[1700000000, 40.0, -73.0, 0, 0, false],
	[1700000060, 41.0, -74.0, 0, 0, false]
]}`

// newTestService wires the full pipeline against a stub upstream and
// returns the consumer-facing test server.
func newTestService(t *testing.T, upstream http.HandlerFunc) *httptest.Server {
	t.Helper()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"access_token": "tok", "expires_in": 3600}`))
	}))
	t.Cleanup(authSrv.Close)

	apiSrv := httptest.NewServer(upstream)
	t.Cleanup(apiSrv.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)

	tm := auth.NewTokenManager(authSrv.URL, "id", "secret", time.Second, zerolog.Nop())
	client := fetcher.NewClient(apiSrv.URL, tm, 5*time.Second, zerolog.Nop())
	tracks := fetcher.NewTrackFetcher(client, 0, zerolog.Nop())
	adapter := feed.New(tracks, cfg.Feed.TrackLimit, cfg.Feed.TrackWorkers)

	srv := httptest.NewServer(NewServer(cfg, client, adapter, nil, nil, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func stubUpstream(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/states/all":
			w.Write([]byte(statesBody))
		case "/tracks/all":
			if r.URL.Query().Get("icao24") == "e1" {
				w.Write([]byte(e1Track))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestAircraftDefaultCallsignFilter(t *testing.T) {
	srv := newTestService(t, stubUpstream(t))

	var f model.Feed
	getJSON(t, srv.URL+"/api/aircraft", &f)

	// The default EJA filter matches both EJA-prefixed callsigns,
	// case-insensitively, and excludes UAL45.
	assert.Equal(t, 2, f.Total)
	require.Len(t, f.InAir, 2)
	assert.Empty(t, f.OnGround)
	assert.Equal(t, "EJA123", f.InAir[0].Callsign)
	assert.Equal(t, "eja999", f.InAir[1].Callsign)
	assert.False(t, f.Timestamp.IsZero())
}

func TestAircraftExplicitFilters(t *testing.T) {
	srv := newTestService(t, stubUpstream(t))

	var f model.Feed
	getJSON(t, srv.URL+"/api/aircraft?callsign=UAL", &f)
	require.Equal(t, 1, f.Total)
	assert.Len(t, f.OnGround, 1)

	getJSON(t, srv.URL+"/api/aircraft?callsign=EJA&min_alt=9000", &f)
	require.Equal(t, 1, f.Total)
	assert.Equal(t, "EJA123", f.InAir[0].Callsign)

	getJSON(t, srv.URL+"/api/aircraft?callsign=EJA&country=Austria", &f)
	require.Equal(t, 1, f.Total)
	assert.Equal(t, "eja999", f.InAir[0].Callsign)

	getJSON(t, srv.URL+"/api/aircraft?callsign=EJA&category=6", &f)
	require.Equal(t, 1, f.Total)
	assert.Equal(t, "eja999", f.InAir[0].Callsign)
}

func TestAircraftUpstreamFailureServesEmptyFeed(t *testing.T) {
	srv := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	var f model.Feed
	getJSON(t, srv.URL+"/api/aircraft", &f)

	assert.Zero(t, f.Total)
	assert.NotNil(t, f.InAir, "empty feed serializes as [], not null")
	assert.NotNil(t, f.OnGround)
}

func TestSingleTrackEndpoint(t *testing.T) {
	srv := newTestService(t, stubUpstream(t))

	var out struct {
		Coords []model.TrackPoint `json:"coords"`
	}
	getJSON(t, srv.URL+"/api/track/e1", &out)
	require.Len(t, out.Coords, 2)
	assert.Equal(t, model.TrackPoint{40.0, -73.0}, out.Coords[0])
}

func TestSingleTrackUnknownAircraftIsEmpty(t *testing.T) {
	srv := newTestService(t, stubUpstream(t))

	var out struct {
		Coords []model.TrackPoint `json:"coords"`
	}
	getJSON(t, srv.URL+"/api/track/nope", &out)
	assert.NotNil(t, out.Coords)
	assert.Empty(t, out.Coords)
}

func TestBulkTracksEndpoint(t *testing.T) {
	srv := newTestService(t, stubUpstream(t))

	var out map[string][]model.TrackPoint
	getJSON(t, srv.URL+"/api/tracks?track_limit=5", &out)

	// Only e1 has a track with at least two points upstream.
	require.Len(t, out, 1)
	assert.Len(t, out["e1"], 2)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestService(t, stubUpstream(t))

	var out map[string]any
	getJSON(t, srv.URL+"/health", &out)
	assert.Equal(t, "healthy", out["status"])
}
