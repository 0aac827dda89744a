package route

import (
	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/internal/timeutil"
)

// AdaptRouteSummary derives a coarse journey summary from its legs.
// Duration runs from the first departure to the last arrival and wraps
// past midnight; unparseable times give a zero duration.
func AdaptRouteSummary(origin, destination models.Station, legs []models.Leg) models.RouteSummary {
	summary := models.RouteSummary{
		LineIDs:       []string{},
		StationNames:  []string{},
		PriceEstimate: models.FlatFare,
	}

	if len(legs) > 0 {
		if d, err := timeutil.ClockDeltaMinutes(legs[0].DepartureTime, legs[len(legs)-1].ArrivalTime); err == nil {
			summary.DurationMinutes = d
		}
		summary.TransferCount = len(legs) - 1
	}

	lines := newOrderedSet()
	for _, leg := range legs {
		lines.add(leg.LineID)
	}
	summary.LineIDs = lines.items

	names := newOrderedSet()
	names.add(origin.Name)
	for i, leg := range legs {
		if i > 0 {
			names.add(leg.OriginName)
		}
		names.add(leg.DestinationName)
	}
	names.add(destination.Name)
	summary.StationNames = names.items

	return summary
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool), items: []string{}}
}

// add ignores empty values and repeats
func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
