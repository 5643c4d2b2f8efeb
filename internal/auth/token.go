package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// expiryMargin is the safety window before the nominal expiry: a token
// within this margin of expiring is never handed out as valid.
const expiryMargin = 60 * time.Second

// defaultExpiresIn applies when the token endpoint omits expires_in.
const defaultExpiresIn = 1800 * time.Second

// ErrNoCredentials is returned when no OAuth2 client is configured. The
// process keeps running; every token request fails with this until
// credentials are provided.
var ErrNoCredentials = errors.New("auth: no client credentials configured")

// tokenResponse mirrors the JSON body of the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenManager owns the process-wide OAuth2 client-credentials token. A
// single mutex serializes the check-and-refresh sequence, so concurrent
// callers either hit the cache or block behind the one exchange in flight.
// A failed refresh never erases a previously cached token.
type TokenManager struct {
	clientID     string
	clientSecret string
	authURL      string
	httpClient   *http.Client
	log          zerolog.Logger

	// OnExchange, when set before serving starts, is invoked after every
	// successful token exchange (metrics hook).
	OnExchange func()

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenManager creates a token manager. Empty credentials are accepted;
// Token then fails with ErrNoCredentials.
func NewTokenManager(authURL, clientID, clientSecret string, timeout time.Duration, log zerolog.Logger) *TokenManager {
	return &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      authURL,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
	}
}

// Token returns a bearer token, performing a client-credentials exchange
// only when the cache is empty or within the expiry margin.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && time.Now().Before(tm.expiresAt.Add(-expiryMargin)) {
		return tm.token, nil
	}
	return tm.exchange(ctx)
}

// ForceRefresh discards the cache validity window and performs a fresh
// exchange. Used after an upstream 401 marked the cached token untrustworthy.
func (tm *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.exchange(ctx)
}

// exchange performs the client-credentials POST. Caller must hold tm.mu.
func (tm *TokenManager) exchange(ctx context.Context) (string, error) {
	if tm.clientID == "" || tm.clientSecret == "" {
		return "", ErrNoCredentials
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {tm.clientID},
		"client_secret": {tm.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.authURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("auth: creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		tm.log.Error().Err(err).Msg("token exchange failed")
		return "", fmt.Errorf("auth: token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		tm.log.Error().Int("status", resp.StatusCode).Msg("token endpoint returned non-200")
		return "", fmt.Errorf("auth: token endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		tm.log.Error().Err(err).Msg("malformed token response")
		return "", fmt.Errorf("auth: decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("auth: token response missing access_token")
	}

	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if tok.ExpiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	tm.token = tok.AccessToken
	tm.expiresAt = time.Now().Add(expiresIn)
	tm.log.Info().Time("expires_at", tm.expiresAt).Msg("obtained access token")

	if tm.OnExchange != nil {
		tm.OnExchange()
	}
	return tm.token, nil
}
