package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/internal/schedule"
	"github.com/jusunglee/cercanias-go/internal/timeutil"
)

// Directions of a board query relative to the line
const (
	Forward  = "forward"
	Backward = "backward"
)

// maxInFlight bounds concurrent schedule queries for one board
const maxInFlight = 4

// Departer is the part of the schedule aggregator a board needs
type Departer interface {
	Departures(ctx context.Context, q schedule.Query) (*schedule.Result, error)
}

// Lines resolves line ids to their termini
type Lines interface {
	Line(id string) (models.Line, bool)
	LinesServing(stationID string) []string
}

// BoardQuery asks for the next train on each line through a station
type BoardQuery struct {
	Origin string
	// Destination, when set, replaces the line terminus as the forward target
	Destination string
	// LineIDs defaults to every line serving Origin
	LineIDs []string
}

// BoardDeparture is the next train of one line in one direction
type BoardDeparture struct {
	models.EnrichedDeparture
	Line      string `json:"line"`
	Direction string `json:"direction"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// LegFailure records one query that did not produce a departure
type LegFailure struct {
	LineID    string `json:"lineId"`
	Direction string `json:"direction,omitempty"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

func (f LegFailure) Error() string {
	if f.Direction == "" {
		return fmt.Sprintf("line %s: %s", f.LineID, f.Message)
	}
	return fmt.Sprintf("line %s %s: %s", f.LineID, f.Direction, f.Message)
}

func (f LegFailure) Unwrap() error {
	return f.Err
}

// Board is the merged result. Failures lists every line/direction that
// was skipped so callers can tell partial data from no data.
type Board struct {
	Origin      string           `json:"station"`
	Destination string           `json:"destination,omitempty"`
	Lines       []string         `json:"lines"`
	Departures  []BoardDeparture `json:"departures"`
	Failures    []LegFailure     `json:"failures"`
}

// Aggregator fans a board out into per-line schedule queries
type Aggregator struct {
	schedules Departer
	lines     Lines
	logger    *slog.Logger
}

// NewAggregator creates a route aggregator
func NewAggregator(schedules Departer, lines Lines, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{schedules: schedules, lines: lines, logger: logger}
}

type legQuery struct {
	line      string
	direction string
	from, to  string
}

type legOutcome struct {
	departure *BoardDeparture
	err       error
}

// Board queries every line twice, origin toward the terminus and from the
// line's origin toward the station, and keeps the first train of each.
// One failing query never aborts the others. When every query fails with
// *schedule.StationNotFoundError, that error is returned instead of a board.
func (a *Aggregator) Board(ctx context.Context, q BoardQuery) (*Board, error) {
	lineIDs := q.LineIDs
	if len(lineIDs) == 0 {
		lineIDs = a.lines.LinesServing(q.Origin)
	}

	board := &Board{
		Origin:      q.Origin,
		Destination: q.Destination,
		Lines:       []string{},
		Departures:  []BoardDeparture{},
		Failures:    []LegFailure{},
	}

	var queries []legQuery
	for _, id := range lineIDs {
		line, ok := a.lines.Line(id)
		if !ok {
			board.Failures = append(board.Failures, LegFailure{
				LineID:  id,
				Err:     fmt.Errorf("unknown line %q", id),
				Message: "unknown line",
			})
			continue
		}
		board.Lines = append(board.Lines, line.ID)

		target := line.TerminusID
		if q.Destination != "" {
			target = q.Destination
		}
		if q.Origin != target {
			queries = append(queries, legQuery{line: line.ID, direction: Forward, from: q.Origin, to: target})
		}
		if line.OriginID != q.Origin {
			queries = append(queries, legQuery{line: line.ID, direction: Backward, from: line.OriginID, to: q.Origin})
		}
	}

	outcomes := make([]legOutcome, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for i, lq := range queries {
		i, lq := i, lq
		g.Go(func() error {
			outcomes[i] = a.queryLeg(gctx, lq)
			// Failures are collected per leg; returning them would cancel the siblings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var notFound *schedule.StationNotFoundError
	missing := 0
	for i, out := range outcomes {
		lq := queries[i]
		if errors.As(out.err, &notFound) {
			missing++
		}
		if out.err != nil {
			a.logger.Warn("board leg failed",
				"line", lq.line, "direction", lq.direction, "from", lq.from, "to", lq.to, "error", out.err)
			board.Failures = append(board.Failures, LegFailure{
				LineID:    lq.line,
				Direction: lq.direction,
				Err:       out.err,
				Message:   out.err.Error(),
			})
			continue
		}
		board.Departures = append(board.Departures, *out.departure)
	}

	// Every query rejected a station: the request itself is wrong
	if len(queries) > 0 && missing == len(queries) {
		return nil, notFound
	}

	sort.SliceStable(board.Departures, func(i, j int) bool {
		di, dj := board.Departures[i], board.Departures[j]
		if di.MinutesRemaining != dj.MinutesRemaining {
			return di.MinutesRemaining < dj.MinutesRemaining
		}
		return clockKey(di.DepartureTime) < clockKey(dj.DepartureTime)
	})

	if len(board.Departures) > schedule.BoardLimit {
		board.Departures = board.Departures[:schedule.BoardLimit]
	}

	return board, nil
}

// clockKey pads clock times so string order matches time order
func clockKey(s string) string {
	if clock, err := timeutil.NormalizeClock(s); err == nil {
		return clock
	}
	return s
}

func (a *Aggregator) queryLeg(ctx context.Context, lq legQuery) legOutcome {
	result, err := a.schedules.Departures(ctx, schedule.Query{
		Origin:      lq.from,
		Destination: lq.to,
		Limit:       1,
	})
	if err != nil {
		return legOutcome{err: err}
	}
	if len(result.Departures) == 0 {
		return legOutcome{err: schedule.ErrNoDepartures}
	}

	return legOutcome{departure: &BoardDeparture{
		EnrichedDeparture: result.Departures[0],
		Line:              lq.line,
		Direction:         lq.direction,
		From:              result.Origin.Name,
		To:                result.Destination.Name,
	}}
}
