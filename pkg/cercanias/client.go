package cercanias

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jusunglee/cercanias-go/internal/feed"
	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/internal/route"
	"github.com/jusunglee/cercanias-go/internal/schedule"
)

// Client defines the interface for querying Cercanías departures
// Abstracts the local aggregator behind a common interface for the HTTP layer
type Client interface {
	Departures(ctx context.Context, origin, destination string) (*schedule.Result, error)
	Board(ctx context.Context, station, destination string, lines []string) (*route.Board, error)

	Stations(ctx context.Context) ([]models.Station, error)
	FindStation(ctx context.Context, query string) (models.Station, error)
	Summary(ctx context.Context, origin, destination string, legs []models.Leg) (models.RouteSummary, error)

	Lines() []models.Line
}

// Config holds configuration for the Cercanías client
type Config struct {
	StationsURL   string
	DeparturesURL string
	LiveURL       string
	LiveFormat    string

	// RenfeClientID is sent as x-ibm-client-id to the departures service
	RenfeClientID string

	// LinesSource is a JSON file or sqlite://path holding the line table
	LinesSource string

	Timezone              string
	StationsCacheTTL      time.Duration
	DeparturesMaxAttempts int
	RetryDelay            time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns default configuration
// Departures are retried three times; the Renfe schedule API times out often
func DefaultConfig() Config {
	fc := feed.DefaultConfig()
	return Config{
		StationsURL:           fc.Stations.URL,
		DeparturesURL:         fc.Departures.URL,
		LiveURL:               fc.Live.URL,
		LiveFormat:            fc.LiveFormat,
		LinesSource:           "data/lines.json",
		Timezone:              "Europe/Madrid",
		StationsCacheTTL:      fc.StationsCacheTTL,
		DeparturesMaxAttempts: fc.Departures.Policy.MaxAttempts,
		RetryDelay:            fc.Departures.Policy.RetryDelay,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// LoadConfig starts from DefaultConfig and applies a .env file, if any,
// and then environment variables
func LoadConfig() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.StationsURL = getEnv("STATIONS_URL", cfg.StationsURL)
	cfg.DeparturesURL = getEnv("DEPARTURES_URL", cfg.DeparturesURL)
	cfg.LiveURL = getEnv("LIVE_URL", cfg.LiveURL)
	cfg.LiveFormat = getEnv("LIVE_FORMAT", cfg.LiveFormat)
	cfg.RenfeClientID = getEnv("RENFE_CLIENT_ID", cfg.RenfeClientID)
	cfg.LinesSource = getEnv("LINES_SOURCE", cfg.LinesSource)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.StationsCacheTTL, err = getDuration("STATIONS_CACHE_TTL", cfg.StationsCacheTTL); err != nil {
		return cfg, err
	}
	if cfg.RetryDelay, err = getDuration("RETRY_DELAY", cfg.RetryDelay); err != nil {
		return cfg, err
	}
	if v := os.Getenv("DEPARTURES_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("DEPARTURES_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.DeparturesMaxAttempts = n
	}

	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail at query time
func (c Config) Validate() error {
	switch c.LiveFormat {
	case feed.FormatJSON, feed.FormatGTFSRT:
	default:
		return fmt.Errorf("unknown live feed format %q", c.LiveFormat)
	}
	if c.DeparturesMaxAttempts < 1 {
		return fmt.Errorf("departures max attempts must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// feedConfig maps the flat client configuration onto the gateway's endpoints
func (c Config) feedConfig() feed.Config {
	fc := feed.DefaultConfig()
	fc.Stations.URL = c.StationsURL
	fc.Departures.URL = c.DeparturesURL
	fc.Live.URL = c.LiveURL
	fc.LiveFormat = c.LiveFormat
	fc.StationsCacheTTL = c.StationsCacheTTL
	fc.Departures.Policy.MaxAttempts = c.DeparturesMaxAttempts
	fc.Departures.Policy.RetryDelay = c.RetryDelay

	if c.RenfeClientID != "" {
		headers := make(map[string]string, len(fc.Departures.Headers)+1)
		for k, v := range fc.Departures.Headers {
			headers[k] = v
		}
		headers["x-ibm-client-id"] = c.RenfeClientID
		fc.Departures.Headers = headers
	}
	return fc
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
