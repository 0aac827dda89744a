package cercanias

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	// Europe/Madrid must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	"github.com/jusunglee/cercanias-go/internal/feed"
	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/internal/route"
	"github.com/jusunglee/cercanias-go/internal/schedule"
	"github.com/jusunglee/cercanias-go/internal/store"
)

// LocalClient implements the Client interface in-process
// Every query fetches fresh upstream data; nothing is shared between queries
// except configuration, the line table and the station-list cache
type LocalClient struct {
	gateway   *feed.Gateway
	schedules *schedule.Aggregator
	routes    *route.Aggregator
	lines     *store.LineTable
}

// NewLocal creates a new local client
// Loads the line table once; it is read-only afterwards
func NewLocal(config Config, logger *slog.Logger, opts ...feed.Option) (*LocalClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	lines, err := store.NewLineTable(nil)
	if err != nil {
		return nil, err
	}
	if config.LinesSource != "" {
		if lines, err = store.LoadLineTable(config.LinesSource); err != nil {
			return nil, fmt.Errorf("loading line table: %w", err)
		}
	}
	logger.Info("line table loaded", "source", config.LinesSource, "lines", len(lines.Lines()))

	gateway := feed.NewGateway(config.feedConfig(), append([]feed.Option{feed.WithLogger(logger)}, opts...)...)
	now := func() time.Time { return time.Now().In(loc) }
	schedules := schedule.NewAggregator(gateway, now, logger)

	return &LocalClient{
		gateway:   gateway,
		schedules: schedules,
		routes:    route.NewAggregator(schedules, lines, logger),
		lines:     lines,
	}, nil
}

func (c *LocalClient) Departures(ctx context.Context, origin, destination string) (*schedule.Result, error) {
	return c.schedules.Departures(ctx, schedule.Query{
		Origin:      origin,
		Destination: destination,
		Limit:       schedule.DirectLimit,
	})
}

func (c *LocalClient) Board(ctx context.Context, station, destination string, lines []string) (*route.Board, error) {
	return c.routes.Board(ctx, route.BoardQuery{
		Origin:      station,
		Destination: destination,
		LineIDs:     lines,
	})
}

// Stations returns the deduplicated station list in feed order
func (c *LocalClient) Stations(ctx context.Context) ([]models.Station, error) {
	dir, err := c.directory(ctx)
	if err != nil {
		return nil, err
	}
	return dir.Stations(), nil
}

func (c *LocalClient) FindStation(ctx context.Context, query string) (models.Station, error) {
	dir, err := c.directory(ctx)
	if err != nil {
		return models.Station{}, err
	}

	station, ok := dir.FindByName(query)
	if !ok {
		return models.Station{}, &schedule.StationNotFoundError{Which: "name", ID: query}
	}
	return station, nil
}

func (c *LocalClient) Summary(ctx context.Context, origin, destination string, legs []models.Leg) (models.RouteSummary, error) {
	dir, err := c.directory(ctx)
	if err != nil {
		return models.RouteSummary{}, err
	}

	from, ok := dir.Lookup(origin)
	if !ok {
		return models.RouteSummary{}, &schedule.StationNotFoundError{Which: "origin", ID: origin}
	}
	to, ok := dir.Lookup(destination)
	if !ok {
		return models.RouteSummary{}, &schedule.StationNotFoundError{Which: "destination", ID: destination}
	}

	return route.AdaptRouteSummary(from, to, legs), nil
}

func (c *LocalClient) Lines() []models.Line {
	return c.lines.Lines()
}

func (c *LocalClient) directory(ctx context.Context) (*store.Directory, error) {
	raw, err := c.gateway.FetchStations(ctx)
	if err != nil {
		return nil, &schedule.UpstreamUnavailableError{Detail: "station list: " + err.Error(), Err: err}
	}
	return store.NewDirectory(raw), nil
}
