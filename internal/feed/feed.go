package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bluele/gcache"
)

// Live feed formats
const (
	FormatJSON   = "json"
	FormatGTFSRT = "gtfsrt"
)

// Policy bounds a single upstream call
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// Endpoint is one upstream service
type Endpoint struct {
	URL     string
	Headers map[string]string
	Policy  Policy
}

// Config describes the three upstream services
type Config struct {
	Stations   Endpoint
	Departures Endpoint
	Live       Endpoint

	// LiveFormat is FormatJSON or FormatGTFSRT
	LiveFormat string

	// StationsCacheTTL of zero disables the station-list cache
	StationsCacheTTL time.Duration
}

// DefaultConfig returns the Renfe endpoints with their call policies.
// The departures service is the least reliable one and is always retried.
func DefaultConfig() Config {
	browser := map[string]string{
		"Accept":          "application/json",
		"Accept-Language": "es-ES,es;q=0.9",
		"User-Agent":      "Mozilla/5.0",
		"Referer":         "https://www.renfe.com/",
	}

	return Config{
		Stations: Endpoint{
			URL:     "https://horarioscercanias.renfe.com/estaciones/10.json",
			Headers: browser,
			Policy:  Policy{Timeout: 20 * time.Second, MaxAttempts: 1},
		},
		Departures: Endpoint{
			URL: "https://epe.api.renfe.es/epe/catalogo-pro/hcr-cercanias-vav/HorariosCercanias/get",
			Headers: map[string]string{
				"Accept":     "application/json",
				"Origin":     "https://www.renfe.com",
				"Referer":    "https://www.renfe.com/",
				"User-Agent": "Mozilla/5.0",
			},
			Policy: Policy{Timeout: 30 * time.Second, MaxAttempts: 3, RetryDelay: time.Second},
		},
		Live: Endpoint{
			URL:     "https://tiempo-real.renfe.com/renfe-visor/flota.json",
			Headers: browser,
			Policy:  Policy{Timeout: 10 * time.Second, MaxAttempts: 1},
		},
		LiveFormat:       FormatJSON,
		StationsCacheTTL: 5 * time.Minute,
	}
}

// UpstreamError is returned once every attempt against an endpoint failed
type UpstreamError struct {
	Endpoint   string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx upstream response
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// RequestFunc builds a fresh request for each attempt
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Gateway performs the outbound calls to the upstream services
type Gateway struct {
	config       Config
	httpClient   *http.Client
	logger       *slog.Logger
	sleep        Sleeper
	stationCache gcache.Cache
}

// Option customizes a Gateway
type Option func(*Gateway)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithLogger sets the logger used for attempt diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithSleeper replaces the backoff sleeper
func WithSleeper(s Sleeper) Option {
	return func(g *Gateway) { g.sleep = s }
}

// NewGateway creates a new gateway
func NewGateway(config Config, opts ...Option) *Gateway {
	g := &Gateway{
		config: config,
		// Per-attempt deadlines come from each endpoint's policy
		httpClient: &http.Client{},
		logger:     slog.Default(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}

	if config.StationsCacheTTL > 0 {
		g.stationCache = gcache.New(4).
			LRU().
			Expiration(config.StationsCacheTTL).
			Build()
	}

	return g
}

// CallWithRetry runs newRequest up to policy.MaxAttempts times. Each attempt
// is bounded by policy.Timeout; failed attempts are followed by a linear
// backoff of RetryDelay * attempt. Cancelling ctx aborts the sequence.
func (g *Gateway) CallWithRetry(ctx context.Context, name string, newRequest RequestFunc, policy Policy) ([]byte, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastErr    error
		lastStatus int
		attempts   int
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		start := time.Now()

		body, status, err := g.do(ctx, newRequest, policy.Timeout)
		if err == nil {
			g.logger.Debug("upstream call succeeded",
				"endpoint", name, "attempt", attempt, "status", status, "elapsed", time.Since(start))
			return body, nil
		}

		lastErr, lastStatus = err, status
		g.logger.Warn("upstream call failed",
			"endpoint", name, "attempt", attempt, "max_attempts", maxAttempts,
			"status", status, "elapsed", time.Since(start), "error", err)

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		if attempt < maxAttempts {
			if err := g.sleep(ctx, policy.RetryDelay*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	return nil, &UpstreamError{
		Endpoint:   name,
		Attempts:   attempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

func (g *Gateway) do(ctx context.Context, newRequest RequestFunc, timeout time.Duration) ([]byte, int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := newRequest(ctx)
	if err != nil {
		return nil, 0, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (g *Gateway) fetchFeed(ctx context.Context, name string, ep Endpoint) ([]byte, error) {
	return g.CallWithRetry(ctx, name, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
		if err != nil {
			return nil, err
		}
		setHeaders(req, ep.Headers)
		return req, nil
	}, ep.Policy)
}

func setHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
