package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/internal/timeutil"
)

// DeparturesQuery is the body posted to the departures service
type DeparturesQuery struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	TravelDate  string `json:"travelDate"`
	RangeStart  string `json:"rangeStart"`
	RangeEnd    string `json:"rangeEnd"`
}

// Departures holds the legs parsed from one departures response
type Departures struct {
	Legs []models.ScheduledDeparture
	// Dropped counts legs discarded for missing required fields
	Dropped int
}

type departuresResponse struct {
	Return struct {
		Trayectos []trayecto `json:"trayectoHorariosCercanias"`
	} `json:"doConsultarHorariosCercaniasReturn"`
}

type trayecto struct {
	Horario struct {
		Salida      string      `json:"horaSalida"`
		SalidaReal  string      `json:"horaSalidaReal"`
		Llegada     string      `json:"horaLlegada"`
		LlegadaReal string      `json:"horaLlegadaReal"`
		Duracion    looseString `json:"duracionViaje"`
	} `json:"horarioTrayecto"`
	Tramos []struct {
		Tren  looseString `json:"cdgoTren"`
		Linea string      `json:"lineaOrigen"`
	} `json:"tramos"`
}

// FetchDepartures posts q to the departures service, retrying per its policy
func (g *Gateway) FetchDepartures(ctx context.Context, q DeparturesQuery) (*Departures, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encoding departures query: %w", err)
	}

	ep := g.config.Departures
	body, err := g.CallWithRetry(ctx, "departures", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		setHeaders(req, ep.Headers)
		return req, nil
	}, ep.Policy)
	if err != nil {
		return nil, err
	}

	deps, err := parseDepartures(body)
	if err != nil {
		return nil, err
	}

	if deps.Dropped > 0 {
		g.logger.Info("dropped malformed departure legs",
			"origin", q.Origin, "destination", q.Destination, "dropped", deps.Dropped, "kept", len(deps.Legs))
	}
	return deps, nil
}

func parseDepartures(body []byte) (*Departures, error) {
	var resp departuresResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding departures: %w", err)
	}

	deps := &Departures{Legs: make([]models.ScheduledDeparture, 0, len(resp.Return.Trayectos))}
	for _, t := range resp.Return.Trayectos {
		leg, ok := parseLeg(t)
		if !ok {
			deps.Dropped++
			continue
		}
		deps.Legs = append(deps.Legs, leg)
	}
	return deps, nil
}

// parseLeg requires a valid scheduled departure time and a train id;
// everything else is optional
func parseLeg(t trayecto) (models.ScheduledDeparture, bool) {
	salida, err := timeutil.NormalizeClock(t.Horario.Salida)
	if err != nil {
		return models.ScheduledDeparture{}, false
	}
	if len(t.Tramos) == 0 {
		return models.ScheduledDeparture{}, false
	}

	tramo := t.Tramos[0]
	trainID := strings.TrimSpace(string(tramo.Tren))
	if trainID == "" {
		return models.ScheduledDeparture{}, false
	}

	// A missing or odd duration is not worth dropping the leg for
	duration, _ := timeutil.ParseDurationMinutes(string(t.Horario.Duracion))

	return models.ScheduledDeparture{
		DepartureTime:       salida,
		DepartureTimeActual: optionalClock(t.Horario.SalidaReal),
		ArrivalTime:         optionalClock(t.Horario.Llegada),
		ArrivalTimeActual:   optionalClock(t.Horario.LlegadaReal),
		DurationMinutes:     duration,
		TrainID:             trainID,
		LineID:              strings.TrimSpace(tramo.Linea),
	}, true
}

// optionalClock pads a clock time when it parses and passes anything else
// through trimmed
func optionalClock(s string) string {
	if clock, err := timeutil.NormalizeClock(s); err == nil {
		return clock
	}
	return strings.TrimSpace(s)
}
