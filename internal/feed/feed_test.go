package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper records backoff delays without waiting
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testGateway(t *testing.T, cfg Config, sleeper *recordingSleeper) *Gateway {
	t.Helper()
	return NewGateway(cfg, WithLogger(discardLogger()), WithSleeper(sleeper.Sleep))
}

func getRequest(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestCallWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	g := testGateway(t, Config{}, sleeper)

	policy := Policy{Timeout: time.Second, MaxAttempts: 3, RetryDelay: 100 * time.Millisecond}
	body, err := g.CallWithRetry(context.Background(), "departures", getRequest(srv.URL), policy)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeper.delays)
}

func TestCallWithRetryExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	g := testGateway(t, Config{}, sleeper)

	policy := Policy{Timeout: time.Second, MaxAttempts: 3, RetryDelay: time.Second}
	_, err := g.CallWithRetry(context.Background(), "departures", getRequest(srv.URL), policy)
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "departures", upErr.Endpoint)
	assert.Equal(t, 3, upErr.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// No sleep after the final attempt
	assert.Len(t, sleeper.delays, 2)
}

func TestCallWithRetrySingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	g := testGateway(t, Config{}, sleeper)

	// Zero attempts is treated as one
	_, err := g.CallWithRetry(context.Background(), "live", getRequest(srv.URL), Policy{Timeout: time.Second})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, sleeper.delays)
}

func TestCallWithRetryTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	g := testGateway(t, Config{}, &recordingSleeper{})

	start := time.Now()
	_, err := g.CallWithRetry(context.Background(), "live", getRequest(srv.URL),
		Policy{Timeout: 50 * time.Millisecond, MaxAttempts: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCallWithRetryCancelledDuringBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	g := NewGateway(Config{}, WithLogger(discardLogger()), WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}))

	_, err := g.CallWithRetry(ctx, "departures", getRequest(srv.URL),
		Policy{Timeout: time.Second, MaxAttempts: 3, RetryDelay: time.Hour})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchDepartures(t *testing.T) {
	query := DeparturesQuery{
		Origin:      "10000",
		Destination: "17000",
		TravelDate:  "20240101",
		RangeStart:  "09:30",
		RangeEnd:    "11:00",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-client", r.Header.Get("X-Ibm-Client-Id"))

		var got DeparturesQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, query, got)

		w.Write([]byte(departuresFixture))
	}))
	defer srv.Close()

	cfg := Config{Departures: Endpoint{
		URL:     srv.URL,
		Headers: map[string]string{"x-ibm-client-id": "test-client"},
		Policy:  Policy{Timeout: time.Second, MaxAttempts: 3},
	}}
	g := testGateway(t, cfg, &recordingSleeper{})

	deps, err := g.FetchDepartures(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, deps.Legs, 5)
	assert.Equal(t, 2, deps.Dropped)

	second := deps.Legs[1]
	assert.Equal(t, "10:05", second.DepartureTime)
	assert.Equal(t, "10:07", second.DepartureTimeActual)
	assert.Equal(t, "23503", second.TrainID)
	assert.Equal(t, "C2", second.LineID)
	assert.Equal(t, 40, second.DurationMinutes)

	assert.Equal(t, 42, deps.Legs[2].DurationMinutes)
	assert.Equal(t, 0, deps.Legs[3].DurationMinutes)
}

func TestParseLegPadsClockTimes(t *testing.T) {
	body := `{"doConsultarHorariosCercaniasReturn": {"trayectoHorariosCercanias": [
  {"horarioTrayecto": {"horaSalida": "9:05", "horaSalidaReal": "9:07", "horaLlegada": "9:45"},
   "tramos": [{"cdgoTren": "23501", "lineaOrigen": "C2"}]}
]}}`

	deps, err := parseDepartures([]byte(body))
	require.NoError(t, err)
	require.Len(t, deps.Legs, 1)

	leg := deps.Legs[0]
	assert.Equal(t, "09:05", leg.DepartureTime)
	assert.Equal(t, "09:07", leg.DepartureTimeActual)
	assert.Equal(t, "09:45", leg.ArrivalTime)
	assert.Equal(t, "", leg.ArrivalTimeActual)
}

func TestFetchDeparturesMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	cfg := Config{Departures: Endpoint{URL: srv.URL, Policy: Policy{Timeout: time.Second}}}
	g := testGateway(t, cfg, &recordingSleeper{})

	_, err := g.FetchDepartures(context.Background(), DeparturesQuery{})
	require.Error(t, err)

	var upErr *UpstreamError
	assert.False(t, errors.As(err, &upErr), "decode errors are not upstream transport failures")
}

func TestFetchStationsCache(t *testing.T) {
	tests := []struct {
		name      string
		ttl       time.Duration
		wantCalls int32
	}{
		{"cache enabled", time.Minute, 1},
		{"cache disabled", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Write([]byte(stationsFixture))
			}))
			defer srv.Close()

			cfg := Config{
				Stations:         Endpoint{URL: srv.URL, Policy: Policy{Timeout: time.Second}},
				StationsCacheTTL: tt.ttl,
			}
			g := testGateway(t, cfg, &recordingSleeper{})

			for i := 0; i < 2; i++ {
				stations, err := g.FetchStations(context.Background())
				require.NoError(t, err)
				require.Len(t, stations, 3)
				assert.Equal(t, "17000", stations[1].ID)
				assert.Equal(t, "Madrid-Atocha Cercanías", stations[2].Name)

				// Mutating the result must not leak into the cache
				stations[0].Name = "changed"
			}
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestFetchLivePositionsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(liveFixture))
	}))
	defer srv.Close()

	cfg := Config{Live: Endpoint{URL: srv.URL, Policy: Policy{Timeout: time.Second}}, LiveFormat: FormatJSON}
	g := testGateway(t, cfg, &recordingSleeper{})

	positions, err := g.FetchLivePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "23503", positions[0].TrainID)
	assert.Equal(t, 2, positions[0].DelayMinutes)
	assert.Equal(t, "18000", positions[0].NextStationID)
	assert.Equal(t, "23505", positions[1].TrainID)
	assert.Equal(t, 0, positions[1].DelayMinutes)
}

func TestFetchLivePositionsUnknownFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(liveFixture))
	}))
	defer srv.Close()

	cfg := Config{Live: Endpoint{URL: srv.URL}, LiveFormat: "xml"}
	g := testGateway(t, cfg, &recordingSleeper{})

	_, err := g.FetchLivePositions(context.Background())
	assert.Error(t, err)
}

func TestLooseString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc"`, "abc"},
		{`12345`, "12345"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var s looseString
		require.NoError(t, json.Unmarshal([]byte(tt.in), &s))
		assert.Equal(t, tt.want, string(s))
	}

	var s looseString
	assert.Error(t, json.Unmarshal([]byte(`true`), &s))
}
