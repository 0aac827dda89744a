package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jusunglee/cercanias-go/internal/models"
)

type stationsResponse struct {
	Stations []struct {
		ID   looseString `json:"id"`
		Name string      `json:"name"`
	} `json:"stations"`
}

// FetchStations returns the raw station list. Records without an id are skipped.
func (g *Gateway) FetchStations(ctx context.Context) ([]models.Station, error) {
	key := g.config.Stations.URL
	if g.stationCache != nil {
		if cached, err := g.stationCache.Get(key); err == nil {
			if stations, ok := cached.([]models.Station); ok {
				g.logger.Debug("station list cache hit", "url", key)
				return copyStations(stations), nil
			}
		}
	}

	body, err := g.fetchFeed(ctx, "stations", g.config.Stations)
	if err != nil {
		return nil, err
	}

	stations, err := parseStations(body)
	if err != nil {
		return nil, err
	}

	if g.stationCache != nil {
		if err := g.stationCache.Set(key, copyStations(stations)); err != nil {
			g.logger.Warn("caching station list failed", "error", err)
		}
	}

	return stations, nil
}

func parseStations(body []byte) ([]models.Station, error) {
	var resp stationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding station list: %w", err)
	}

	stations := make([]models.Station, 0, len(resp.Stations))
	for _, s := range resp.Stations {
		id := strings.TrimSpace(string(s.ID))
		if id == "" {
			continue
		}
		stations = append(stations, models.Station{ID: id, Name: strings.TrimSpace(s.Name)})
	}
	return stations, nil
}

func copyStations(in []models.Station) []models.Station {
	out := make([]models.Station, len(in))
	copy(out, in)
	return out
}

// looseString accepts either a JSON string or a JSON number. Upstream
// feeds are not consistent about quoting numeric ids.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = looseString(num.String())
	return nil
}
