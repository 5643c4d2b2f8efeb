package fetcher

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"flight-tracker/internal/model"
)

const trackCacheSize = 256

// TrackFetcher retrieves live aircraft tracks. Tracks are best-effort: an
// empty identifier, an upstream failure, or a rate-limited track endpoint
// all yield an empty result, never an error. A short-TTL cache bounds the
// upstream track load when the same aircraft is requested repeatedly.
type TrackFetcher struct {
	client *Client
	cache  *expirable.LRU[string, []model.TrackPoint]
	log    zerolog.Logger
}

// NewTrackFetcher creates a track fetcher; ttl 0 disables caching.
func NewTrackFetcher(client *Client, ttl time.Duration, log zerolog.Logger) *TrackFetcher {
	f := &TrackFetcher{client: client, log: log}
	if ttl > 0 {
		f.cache = expirable.NewLRU[string, []model.TrackPoint](trackCacheSize, nil, ttl)
	}
	return f
}

// FetchTrack returns the waypoints of one aircraft's live track, in the
// upstream's time-ascending order. Waypoints missing either coordinate are
// excluded.
func (f *TrackFetcher) FetchTrack(ctx context.Context, icao24 string) []model.TrackPoint {
	if icao24 == "" {
		return nil
	}

	if f.cache != nil {
		if points, ok := f.cache.Get(icao24); ok {
			return points
		}
	}

	resp, err := f.client.Track(ctx, icao24)
	if err != nil {
		// Track data is experimental upstream and may be unavailable or
		// rate-limited at any time; treat that as a normal empty result.
		f.log.Debug().Err(err).Str("icao24", icao24).Msg("track unavailable")
		return nil
	}

	points := make([]model.TrackPoint, 0, len(resp.Path))
	for _, wp := range resp.Path {
		// wp: [time, lat, lon, baro_altitude, true_track, on_ground]
		if len(wp) < 3 {
			continue
		}
		lat, latOK := wp[1].(float64)
		lon, lonOK := wp[2].(float64)
		if !latOK || !lonOK {
			continue
		}
		points = append(points, model.TrackPoint{lat, lon})
	}

	if f.cache != nil && len(points) > 0 {
		f.cache.Add(icao24, points)
	}
	return points
}
