package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/jusunglee/cercanias-go/internal/models"
)

type liveResponse struct {
	Trains []struct {
		TrainID          looseString `json:"trainId"`
		DelayMinutes     float64     `json:"delayMinutes"`
		CurrentStationID looseString `json:"currentStationId"`
		NextStationID    looseString `json:"nextStationId"`
		Lat              float64     `json:"lat"`
		Lon              float64     `json:"lon"`
	} `json:"trains"`
}

// FetchLivePositions returns the positions of all running trains.
// Callers treat a failure here as missing enrichment, not as a request failure.
func (g *Gateway) FetchLivePositions(ctx context.Context) ([]models.LivePosition, error) {
	body, err := g.fetchFeed(ctx, "live", g.config.Live)
	if err != nil {
		return nil, err
	}

	switch g.config.LiveFormat {
	case FormatGTFSRT:
		return parseGTFSRT(body)
	case FormatJSON, "":
		return parseLiveJSON(body)
	default:
		return nil, fmt.Errorf("unknown live feed format %q", g.config.LiveFormat)
	}
}

func parseLiveJSON(body []byte) ([]models.LivePosition, error) {
	var resp liveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding live positions: %w", err)
	}

	positions := make([]models.LivePosition, 0, len(resp.Trains))
	for _, t := range resp.Trains {
		id := strings.TrimSpace(string(t.TrainID))
		if id == "" {
			continue
		}
		positions = append(positions, models.LivePosition{
			TrainID:          id,
			DelayMinutes:     int(math.Round(t.DelayMinutes)),
			CurrentStationID: strings.TrimSpace(string(t.CurrentStationID)),
			NextStationID:    strings.TrimSpace(string(t.NextStationID)),
			Lat:              t.Lat,
			Lon:              t.Lon,
		})
	}
	return positions, nil
}

// parseGTFSRT folds vehicle positions and trip updates for the same train
// into one LivePosition. Trains are keyed by vehicle label, falling back
// to the trip id.
func parseGTFSRT(body []byte) ([]models.LivePosition, error) {
	var msg gtfs.FeedMessage
	if err := proto.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decoding GTFS-RT feed: %w", err)
	}

	byTrain := make(map[string]*models.LivePosition)
	var order []string

	get := func(id string) *models.LivePosition {
		if p, ok := byTrain[id]; ok {
			return p
		}
		p := &models.LivePosition{TrainID: id}
		byTrain[id] = p
		order = append(order, id)
		return p
	}

	for _, entity := range msg.GetEntity() {
		if vp := entity.GetVehicle(); vp != nil {
			id := trainID(vp.GetVehicle().GetLabel(), vp.GetTrip().GetTripId())
			if id == "" {
				continue
			}
			p := get(id)
			if pos := vp.GetPosition(); pos != nil {
				p.Lat = float64(pos.GetLatitude())
				p.Lon = float64(pos.GetLongitude())
			}
			if stop := vp.GetStopId(); stop != "" {
				if vp.GetCurrentStatus() == gtfs.VehiclePosition_STOPPED_AT {
					p.CurrentStationID = stop
				} else {
					p.NextStationID = stop
				}
			}
		}

		if tu := entity.GetTripUpdate(); tu != nil {
			id := trainID(tu.GetVehicle().GetLabel(), tu.GetTrip().GetTripId())
			if id == "" {
				continue
			}
			p := get(id)
			updates := tu.GetStopTimeUpdate()
			if len(updates) == 0 {
				continue
			}
			next := updates[0]
			if p.NextStationID == "" {
				p.NextStationID = next.GetStopId()
			}
			if ev := next.GetDeparture(); ev != nil && ev.Delay != nil {
				p.DelayMinutes = delayMinutes(ev.GetDelay())
			} else if ev := next.GetArrival(); ev != nil && ev.Delay != nil {
				p.DelayMinutes = delayMinutes(ev.GetDelay())
			}
		}
	}

	positions := make([]models.LivePosition, 0, len(order))
	for _, id := range order {
		positions = append(positions, *byTrain[id])
	}
	return positions, nil
}

func trainID(label, tripID string) string {
	if label = strings.TrimSpace(label); label != "" {
		return label
	}
	return strings.TrimSpace(tripID)
}

func delayMinutes(seconds int32) int {
	return int(math.Round(float64(seconds) / 60))
}
