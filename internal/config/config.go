package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces generic environment overrides, e.g.
// FLIGHTTRACKER_SERVER_PORT=9090 sets server.port.
const envPrefix = "FLIGHTTRACKER_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	OpenSky OpenSkyConfig `koanf:"opensky"`
	Feed    FeedConfig    `koanf:"feed"`
	Storage StorageConfig `koanf:"storage"`
	Logging LoggingConfig `koanf:"logging"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	// RequestsPerMinute caps consumer requests per client IP.
	RequestsPerMinute int `koanf:"requests_per_minute"`
}

type OpenSkyConfig struct {
	BaseURL string `koanf:"base_url"`
	AuthURL string `koanf:"auth_url"`
	// ClientID/ClientSecret may be empty: the service still starts and
	// serves empty feeds until credentials are configured.
	ClientID       string        `koanf:"client_id"`
	ClientSecret   string        `koanf:"client_secret"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	AuthTimeout    time.Duration `koanf:"auth_timeout"`
	// MinInterval is the pacing floor between upstream calls; zero disables
	// pacing. OpenSky allows one /states/all call per 5s for authenticated
	// accounts.
	MinInterval time.Duration `koanf:"min_interval"`
}

type FeedConfig struct {
	// DefaultCallsign is applied when the caller supplies no callsign filter.
	DefaultCallsign string `koanf:"default_callsign"`
	// TrackLimit caps bulk track retrieval per request.
	TrackLimit int `koanf:"track_limit"`
	// TrackWorkers bounds parallel track fetches.
	TrackWorkers int `koanf:"track_workers"`
	// TrackCacheTTL is how long a fetched track is served from cache.
	TrackCacheTTL time.Duration `koanf:"track_cache_ttl"`
}

type StorageConfig struct {
	// SightingsDir is the badger directory for the sighting registry.
	// Empty disables the registry.
	SightingsDir string `koanf:"sightings_dir"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // console or json
	File   string `koanf:"file"`   // optional rotated log file
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              5050,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestsPerMinute: 60,
		},
		OpenSky: OpenSkyConfig{
			BaseURL:        "https://opensky-network.org/api",
			AuthURL:        "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token",
			RequestTimeout: 15 * time.Second,
			AuthTimeout:    10 * time.Second,
			MinInterval:    5 * time.Second,
		},
		Feed: FeedConfig{
			DefaultCallsign: "EJA",
			TrackLimit:      30,
			TrackWorkers:    4,
			TrackCacheTTL:   30 * time.Second,
		},
		Storage: StorageConfig{
			SightingsDir: "data/sightings",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at configPath
// (if non-empty), then environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	def := defaults()
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	// FLIGHTTRACKER_SERVER_PORT -> server.port
	// FLIGHTTRACKER_FEED_TRACK_LIMIT -> feed.track_limit
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(key, "_", 2)
		if len(parts) == 1 {
			return key
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// The bare OpenSky variable names take precedence, matching how the
	// upstream credentials are usually provisioned.
	if id := os.Getenv("OPENSKY_CLIENT_ID"); id != "" {
		cfg.OpenSky.ClientID = id
	}
	if secret := os.Getenv("OPENSKY_CLIENT_SECRET"); secret != "" {
		cfg.OpenSky.ClientSecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// HasCredentials reports whether an OAuth2 client is configured. Absence is
// a valid degraded state, not a startup error.
func (c *Config) HasCredentials() bool {
	return c.OpenSky.ClientID != "" && c.OpenSky.ClientSecret != ""
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if c.OpenSky.BaseURL == "" {
		return fmt.Errorf("opensky base URL cannot be empty")
	}

	if c.OpenSky.AuthURL == "" {
		return fmt.Errorf("opensky auth URL cannot be empty")
	}

	if c.Feed.TrackLimit < 0 {
		return fmt.Errorf("track limit cannot be negative")
	}

	if c.Feed.TrackWorkers < 1 {
		return fmt.Errorf("track workers must be at least 1")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be 'debug', 'info', 'warn' or 'error'")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be 'console' or 'json'")
	}

	return nil
}
