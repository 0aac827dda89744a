package models

// UnknownStation is shown when a live feed references a station id the
// directory does not know.
const UnknownStation = "Unknown"

// FlatFare is the single-journey Cercanías fare used for route estimates
const FlatFare = 1.70

// Departure status values
const (
	StatusLive      = "live"
	StatusScheduled = "scheduled"
)

// Location represents a geographic coordinate
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Station represents a commuter-rail station
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScheduledDeparture is one leg parsed from the departures feed.
// Times are wall-clock strings in HH:MM or HH:MM:SS form.
type ScheduledDeparture struct {
	DepartureTime       string `json:"departureTime"`
	DepartureTimeActual string `json:"departureTimeActual,omitempty"`
	ArrivalTime         string `json:"arrivalTime,omitempty"`
	ArrivalTimeActual   string `json:"arrivalTimeActual,omitempty"`
	DurationMinutes     int    `json:"durationMinutes"`
	TrainID             string `json:"trainId"`
	LineID              string `json:"lineId"`
}

// LivePosition is the live state of a running train
type LivePosition struct {
	TrainID          string  `json:"trainId"`
	DelayMinutes     int     `json:"delayMinutes"`
	CurrentStationID string  `json:"currentStationId"`
	NextStationID    string  `json:"nextStationId"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
}

// LiveStatus is the live part of an enriched departure, with station
// ids already resolved to names
type LiveStatus struct {
	DelayMinutes   int      `json:"delayMinutes"`
	CurrentStation string   `json:"currentStation"`
	NextStation    string   `json:"nextStation"`
	Position       Location `json:"position"`
}

// EnrichedDeparture is a scheduled departure joined with optional live data.
// MinutesRemaining is never negative.
type EnrichedDeparture struct {
	ScheduledDeparture
	MinutesRemaining int         `json:"minutesRemaining"`
	Status           string      `json:"status"`
	Live             *LiveStatus `json:"live"`
}

// HasLiveData reports whether the departure was matched against the live feed
func (d EnrichedDeparture) HasLiveData() bool {
	return d.Live != nil
}

// Leg is one train segment of a journey, as fed to the route summary
type Leg struct {
	DepartureTime   string `json:"departureTime"`
	ArrivalTime     string `json:"arrivalTime"`
	LineID          string `json:"lineId"`
	TrainID         string `json:"trainId,omitempty"`
	OriginName      string `json:"originName,omitempty"`
	DestinationName string `json:"destinationName,omitempty"`
}

// RouteSummary is a coarse, derived description of a journey
type RouteSummary struct {
	DurationMinutes int      `json:"durationMinutes"`
	TransferCount   int      `json:"transferCount"`
	LineIDs         []string `json:"lineIds"`
	StationNames    []string `json:"stationNames"`
	PriceEstimate   float64  `json:"priceEstimate"`
}

// Line is a row of the static line table
type Line struct {
	ID         string   `json:"id"`
	OriginID   string   `json:"originId"`
	TerminusID string   `json:"terminusId"`
	Stations   []string `json:"stations,omitempty"`
}

// Serves reports whether the line stops at the given station
func (l Line) Serves(stationID string) bool {
	if l.OriginID == stationID || l.TerminusID == stationID {
		return true
	}
	for _, id := range l.Stations {
		if id == stationID {
			return true
		}
	}
	return false
}
