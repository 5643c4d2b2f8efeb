package feed

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"flight-tracker/internal/fetcher"
	"flight-tracker/internal/model"
)

// Adapter is the boundary consumed by the rendering and serialization
// layers: it partitions filtered states and assembles bounded track batches.
type Adapter struct {
	tracks       *fetcher.TrackFetcher
	defaultLimit int
	workers      int
}

// New creates the presentation adapter. defaultLimit caps bulk track
// batches when the caller gives no limit; workers bounds parallel fetches.
func New(tracks *fetcher.TrackFetcher, defaultLimit, workers int) *Adapter {
	if defaultLimit <= 0 {
		defaultLimit = 30
	}
	if workers <= 0 {
		workers = 4
	}
	return &Adapter{tracks: tracks, defaultLimit: defaultLimit, workers: workers}
}

// Build partitions states by the on-ground flag and stamps the result.
// Both groups are always non-nil so the feed serializes as [] rather
// than null.
func Build(states []model.AircraftState) model.Feed {
	f := model.Feed{
		InAir:     make([]model.AircraftState, 0, len(states)),
		OnGround:  make([]model.AircraftState, 0),
		Total:     len(states),
		Timestamp: time.Now(),
	}
	for _, s := range states {
		if s.OnGround {
			f.OnGround = append(f.OnGround, s)
		} else {
			f.InAir = append(f.InAir, s)
		}
	}
	return f
}

// Track returns the waypoints of a single aircraft.
func (a *Adapter) Track(ctx context.Context, icao24 string) []model.TrackPoint {
	return a.tracks.FetchTrack(ctx, icao24)
}

// TrackBatch fetches tracks for the first limit states in parallel and
// keys them by ICAO24. Tracks with fewer than two points are dropped; a
// non-positive limit falls back to the adapter's default cap.
func (a *Adapter) TrackBatch(ctx context.Context, states []model.AircraftState, limit int) map[string][]model.TrackPoint {
	if limit <= 0 {
		limit = a.defaultLimit
	}
	if limit > len(states) {
		limit = len(states)
	}

	out := make(map[string][]model.TrackPoint, limit)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, s := range states[:limit] {
		g.Go(func() error {
			points := a.tracks.FetchTrack(ctx, s.ICAO24)
			if len(points) < 2 {
				return nil
			}
			mu.Lock()
			out[s.ICAO24] = points
			mu.Unlock()
			return nil
		})
	}

	// Track fetches never return errors, so Wait only synchronizes.
	_ = g.Wait()
	return out
}
