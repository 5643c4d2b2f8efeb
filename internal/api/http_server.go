package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"flight-tracker/internal/config"
	"flight-tracker/internal/feed"
	"flight-tracker/internal/fetcher"
	"flight-tracker/internal/filter"
	"flight-tracker/internal/metrics"
	"flight-tracker/internal/model"
	"flight-tracker/internal/registry"
	"flight-tracker/pkg/utils"
)

// Server is the consumer-facing HTTP surface. It is a thin caller of the
// ingestion pipeline: it parses filter parameters, invokes the pipeline,
// and serializes typed results. All upstream failures surface to consumers
// as an empty feed with HTTP 200; the process always renders something.
type Server struct {
	cfg     *config.Config
	client  *fetcher.Client
	adapter *feed.Adapter
	reg     *registry.Registry // nil when the sighting sink is disabled
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewServer wires the HTTP surface to the pipeline components.
func NewServer(cfg *config.Config, client *fetcher.Client, adapter *feed.Adapter, reg *registry.Registry, m *metrics.Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		client:  client,
		adapter: adapter,
		reg:     reg,
		metrics: m,
		log:     log,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	if s.cfg.Server.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(s.cfg.Server.RequestsPerMinute, time.Minute))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/aircraft", s.handleAircraft)
		r.Get("/track/{icao24}", s.handleTrack)
		r.Get("/tracks", s.handleTracksBulk)
	})

	return r
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.countRequest("health")
	s.writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleAircraft serves the filtered state feed.
func (s *Server) handleAircraft(w http.ResponseWriter, r *http.Request) {
	s.countRequest("aircraft")

	states := s.fetchStates(r)
	states = filter.Apply(states, s.filterSpec(r.URL.Query()))

	if s.reg != nil {
		// Best-effort sighting sink; errors are logged inside.
		_ = s.reg.Record(states)
	}

	s.writeJSON(w, feed.Build(states))
}

// handleTrack serves the coordinate path of a single aircraft.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	s.countRequest("track")

	coords := s.adapter.Track(r.Context(), chi.URLParam(r, "icao24"))
	if coords == nil {
		coords = []model.TrackPoint{}
	}
	s.writeJSON(w, map[string]any{"coords": coords})
}

// handleTracksBulk serves tracks for the filtered set, capped by track_limit.
func (s *Server) handleTracksBulk(w http.ResponseWriter, r *http.Request) {
	s.countRequest("tracks")

	q := r.URL.Query()
	states := s.fetchStates(r)
	states = filter.Apply(states, s.filterSpec(q))

	limit := 0
	if v := q.Get("track_limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	s.writeJSON(w, s.adapter.TrackBatch(r.Context(), states, limit))
}

// fetchStates runs the upstream fetch plus decode. Any failure yields an
// empty slice: the consumer contract is "no data available", not an error.
func (s *Server) fetchStates(r *http.Request) []model.AircraftState {
	resp, err := s.client.States(r.Context(), s.boundingBox(r.URL.Query()))
	if err != nil {
		s.log.Error().Err(err).Msg("state fetch failed, serving empty feed")
		return nil
	}
	if resp.States == nil {
		s.log.Warn().Msg("upstream returned no states")
		return nil
	}

	s.log.Debug().
		Int("raw_states", len(resp.States)).
		Time("batch_time", utils.UnixToTime(resp.Time)).
		Msg("fetched state vectors")

	return fetcher.DecodeStates(resp.States, s.metrics)
}

// filterSpec maps query parameters onto filter predicates. When the caller
// supplies no callsign at all, the configured default applies.
func (s *Server) filterSpec(q url.Values) filter.Spec {
	var spec filter.Spec

	callsign := q.Get("callsign")
	if callsign == "" {
		callsign = s.cfg.Feed.DefaultCallsign
	}
	if callsign != "" {
		spec.Callsign = &callsign
	}

	if v := q.Get("country"); v != "" {
		spec.Country = &v
	}
	if v := q.Get("category"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			spec.Category = &n
		}
	}
	if v := q.Get("min_alt"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			spec.MinAltitude = &f
		}
	}
	if v := q.Get("max_alt"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			spec.MaxAltitude = &f
		}
	}
	if v := q.Get("ground"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			spec.OnGround = &b
		}
	}

	return spec
}

// boundingBox parses the optional lamin/lomin/lamax/lomax parameters; all
// four must be present and numeric for the box to apply.
func (s *Server) boundingBox(q url.Values) *fetcher.BoundingBox {
	keys := [4]string{"lamin", "lomin", "lamax", "lomax"}
	var vals [4]float64
	for i, key := range keys {
		raw := q.Get(key)
		if raw == "" {
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		vals[i] = f
	}
	return &fetcher.BoundingBox{LaMin: vals[0], LoMin: vals[1], LaMax: vals[2], LoMax: vals[3]}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) countRequest(route string) {
	if s.metrics != nil {
		s.metrics.HTTPRequests.WithLabelValues(route).Inc()
	}
}
