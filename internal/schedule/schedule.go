package schedule

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jusunglee/cercanias-go/internal/feed"
	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/internal/store"
	"github.com/jusunglee/cercanias-go/internal/timeutil"
)

// Result ceilings
const (
	DirectLimit = 3
	BoardLimit  = 6
)

// Search window around now. This is a fixed product policy.
const (
	windowBefore = -30
	windowAfter  = 60
)

// Upstream is the subset of the gateway the aggregator needs
type Upstream interface {
	FetchStations(ctx context.Context) ([]models.Station, error)
	FetchDepartures(ctx context.Context, q feed.DeparturesQuery) (*feed.Departures, error)
	FetchLivePositions(ctx context.Context) ([]models.LivePosition, error)
}

// Query asks for the next departures between two stations
type Query struct {
	Origin      string
	Destination string
	// Limit defaults to DirectLimit
	Limit int
}

// Enrichment reports whether live data could be attached
type Enrichment struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Result is the aggregated answer for one query
type Result struct {
	Origin      models.Station             `json:"origin"`
	Destination models.Station             `json:"destination"`
	Departures  []models.EnrichedDeparture `json:"departures"`
	Enrichment  Enrichment                 `json:"liveData"`
	DroppedLegs int                        `json:"-"`
}

// TrainIDs returns the train ids in result order
func (r *Result) TrainIDs() []string {
	ids := make([]string, len(r.Departures))
	for i, d := range r.Departures {
		ids[i] = d.TrainID
	}
	return ids
}

// Aggregator joins scheduled departures with live train positions
type Aggregator struct {
	upstream Upstream
	now      func() time.Time
	logger   *slog.Logger
}

// NewAggregator creates an aggregator. now supplies the current wall-clock
// time in the service's time zone.
func NewAggregator(upstream Upstream, now func() time.Time, logger *slog.Logger) *Aggregator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{upstream: upstream, now: now, logger: logger}
}

// Departures returns the next departures from q.Origin to q.Destination,
// soonest first. Live data is attached when available; its absence never
// fails the query.
func (a *Aggregator) Departures(ctx context.Context, q Query) (*Result, error) {
	now := a.now()
	limit := q.Limit
	if limit <= 0 {
		limit = DirectLimit
	}

	raw, err := a.upstream.FetchStations(ctx)
	if err != nil {
		return nil, unavailable("station list", err)
	}
	dir := store.NewDirectory(raw)

	origin, ok := dir.Lookup(q.Origin)
	if !ok {
		return nil, &StationNotFoundError{Which: "origin", ID: q.Origin}
	}
	destination, ok := dir.Lookup(q.Destination)
	if !ok {
		return nil, &StationNotFoundError{Which: "destination", ID: q.Destination}
	}

	deps, err := a.upstream.FetchDepartures(ctx, feed.DeparturesQuery{
		Origin:      origin.ID,
		Destination: destination.ID,
		TravelDate:  timeutil.Format(now, timeutil.CompactDate),
		RangeStart:  timeutil.Format(timeutil.AddMinutes(now, windowBefore), timeutil.HourMinute),
		RangeEnd:    timeutil.Format(timeutil.AddMinutes(now, windowAfter), timeutil.HourMinute),
	})
	if err != nil {
		return nil, unavailable("departures", err)
	}

	upcoming := Upcoming(now, deps.Legs, limit)
	if len(upcoming) == 0 {
		return nil, ErrNoDepartures
	}

	result := &Result{
		Origin:      origin,
		Destination: destination,
		DroppedLegs: deps.Dropped,
	}

	positions, err := a.upstream.FetchLivePositions(ctx)
	if err != nil {
		a.logger.Warn("live positions unavailable, serving schedule only",
			"origin", origin.ID, "destination", destination.ID, "error", err)
		result.Enrichment = Enrichment{Available: false, Error: err.Error()}
	} else {
		result.Enrichment = Enrichment{Available: true}
	}

	result.Departures = Enrich(now, upcoming, positions, dir)

	a.logger.Debug("departures aggregated",
		"origin", origin.ID, "destination", destination.ID, "stations", dir.Len(),
		"legs", len(deps.Legs), "dropped", deps.Dropped, "trains", result.TrainIDs(),
		"live", result.Enrichment.Available)

	return result, nil
}

// Upcoming keeps legs departing at or after now on the same day, sorts
// them by scheduled time and truncates to limit
func Upcoming(now time.Time, legs []models.ScheduledDeparture, limit int) []models.ScheduledDeparture {
	type timed struct {
		leg models.ScheduledDeparture
		at  time.Time
	}

	candidates := make([]timed, 0, len(legs))
	for _, leg := range legs {
		at, err := timeutil.At(now, leg.DepartureTime)
		if err != nil || at.Before(now) {
			continue
		}
		candidates = append(candidates, timed{leg: leg, at: at})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].at.Before(candidates[j].at)
	})

	upcoming := make([]models.ScheduledDeparture, len(candidates))
	for i, c := range candidates {
		upcoming[i] = c.leg
	}

	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

// Enrich attaches live positions to departures by train id. Duplicate
// train ids in positions resolve to the last one.
func Enrich(now time.Time, deps []models.ScheduledDeparture, positions []models.LivePosition, dir *store.Directory) []models.EnrichedDeparture {
	byTrain := make(map[string]models.LivePosition, len(positions))
	for _, p := range positions {
		byTrain[p.TrainID] = p
	}

	result := make([]models.EnrichedDeparture, 0, len(deps))
	for _, dep := range deps {
		enriched := models.EnrichedDeparture{
			ScheduledDeparture: dep,
			MinutesRemaining:   timeutil.MinutesUntil(now, dep.DepartureTime),
			Status:             models.StatusScheduled,
		}

		if p, ok := byTrain[dep.TrainID]; ok {
			enriched.Status = models.StatusLive
			enriched.Live = &models.LiveStatus{
				DelayMinutes:   p.DelayMinutes,
				CurrentStation: dir.Name(p.CurrentStationID),
				NextStation:    dir.Name(p.NextStationID),
				Position:       models.Location{Lat: p.Lat, Lon: p.Lon},
			}
		}

		result = append(result, enriched)
	}
	return result
}
