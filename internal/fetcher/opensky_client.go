package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"flight-tracker/internal/auth"
	"flight-tracker/internal/metrics"
	"flight-tracker/internal/model"
)

const (
	statesEndpoint = "states/all"
	tracksEndpoint = "tracks/all"

	maxIdleConns    = 10
	maxConnsPerHost = 5
	idleConnTimeout = 90 * time.Second
)

// errUnauthorized marks a 401 response internally; it triggers the single
// re-authentication retry and is never returned to callers directly.
var errUnauthorized = errors.New("fetcher: upstream rejected authorization")

// BoundingBox scopes a state-vector query to a lat/lon rectangle.
type BoundingBox struct {
	LaMin float64
	LoMin float64
	LaMax float64
	LoMax float64
}

// Client issues authenticated requests against the OpenSky API. On a 401 it
// forces exactly one token refresh and retries the call once; a second 401
// is terminal. All other failures are terminal immediately.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *auth.TokenManager
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter paces outbound calls; nil disables pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics attaches the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates an OpenSky API client.
func NewClient(baseURL string, tokens *auth.TokenManager, timeout time.Duration, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    maxIdleConns,
				MaxConnsPerHost: maxConnsPerHost,
				IdleConnTimeout: idleConnTimeout,
			},
		},
		tokens: tokens,
		log:    log,
	}

	// The breaker only counts transport and HTTP failures: an open breaker
	// fails fast during an upstream outage without changing the consumer
	// contract. Authorization failures have their own retry rule and must
	// not trip it.
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "opensky",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUnauthorized)
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// States fetches the current state vectors, optionally bounded to a bbox.
func (c *Client) States(ctx context.Context, bbox *BoundingBox) (*model.StatesResponse, error) {
	params := url.Values{}
	if bbox != nil {
		params.Set("lamin", fmt.Sprintf("%.4f", bbox.LaMin))
		params.Set("lomin", fmt.Sprintf("%.4f", bbox.LoMin))
		params.Set("lamax", fmt.Sprintf("%.4f", bbox.LaMax))
		params.Set("lomax", fmt.Sprintf("%.4f", bbox.LoMax))
	}

	body, err := c.request(ctx, statesEndpoint, params)
	if err != nil {
		return nil, err
	}

	var resp model.StatesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Error().Err(err).Str("endpoint", statesEndpoint).Msg("failed to parse states response")
		c.countError(statesEndpoint, ReasonDecodeError)
		return nil, &RequestError{Reason: ReasonDecodeError, Endpoint: statesEndpoint, Err: err}
	}
	return &resp, nil
}

// Track fetches the live track (time=0) for one aircraft.
func (c *Client) Track(ctx context.Context, icao24 string) (*model.TrackResponse, error) {
	params := url.Values{}
	params.Set("icao24", icao24)
	params.Set("time", "0")

	body, err := c.request(ctx, tracksEndpoint, params)
	if err != nil {
		return nil, err
	}

	var resp model.TrackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Error().Err(err).Str("endpoint", tracksEndpoint).Msg("failed to parse track response")
		c.countError(tracksEndpoint, ReasonDecodeError)
		return nil, &RequestError{Reason: ReasonDecodeError, Endpoint: tracksEndpoint, Err: err}
	}
	return &resp, nil
}

// request obtains a token, issues the call, and applies the single
// 401-triggered re-authentication retry.
func (c *Client) request(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &RequestError{Reason: ReasonTransport, Endpoint: endpoint, Err: err}
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("no token available, skipping request")
		c.countError(endpoint, ReasonNoToken)
		return nil, &RequestError{Reason: ReasonNoToken, Endpoint: endpoint, Err: err}
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doOnce(ctx, endpoint, params, token)
	})
	if err == nil {
		return body, nil
	}
	if !errors.Is(err, errUnauthorized) {
		return nil, c.classify(endpoint, err)
	}

	// The cached token is untrustworthy: refresh past the validity window
	// and retry the same call exactly once.
	token, err = c.tokens.ForceRefresh(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("re-authentication failed after 401")
		c.countError(endpoint, ReasonNoToken)
		return nil, &RequestError{Reason: ReasonNoToken, Endpoint: endpoint, Err: err}
	}

	body, err = c.breaker.Execute(func() ([]byte, error) {
		return c.doOnce(ctx, endpoint, params, token)
	})
	if err == nil {
		return body, nil
	}
	if errors.Is(err, errUnauthorized) {
		c.log.Error().Str("endpoint", endpoint).Msg("authorization failed twice, giving up")
		c.countError(endpoint, ReasonUnauthorized)
		return nil, &RequestError{Reason: ReasonUnauthorized, Endpoint: endpoint, Status: http.StatusUnauthorized, Err: err}
	}
	return nil, c.classify(endpoint, err)
}

// doOnce performs a single authenticated GET and reads the full body.
func (c *Client) doOnce(ctx context.Context, endpoint string, params url.Values, token string) ([]byte, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &RequestError{Reason: ReasonTransport, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "flight-tracker/1.0")

	if c.metrics != nil {
		c.metrics.UpstreamRequests.WithLabelValues(endpoint).Inc()
	}
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("upstream request failed")
		return nil, &RequestError{Reason: ReasonTransport, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("upstream returned error status")
		return nil, &RequestError{Reason: ReasonHTTPError, Endpoint: endpoint, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("failed to read upstream body")
		return nil, &RequestError{Reason: ReasonTransport, Endpoint: endpoint, Err: err}
	}
	return body, nil
}

// classify normalizes breaker and transport errors into a RequestError.
func (c *Client) classify(endpoint string, err error) error {
	var re *RequestError
	if errors.As(err, &re) {
		c.countError(endpoint, re.Reason)
		return re
	}
	// Breaker open or half-open rejection: treat like a transport failure.
	c.countError(endpoint, ReasonTransport)
	return &RequestError{Reason: ReasonTransport, Endpoint: endpoint, Err: err}
}

func (c *Client) countError(endpoint string, reason FailureReason) {
	if c.metrics != nil {
		c.metrics.UpstreamErrors.WithLabelValues(endpoint, string(reason)).Inc()
	}
}
