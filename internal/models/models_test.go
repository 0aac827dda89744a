package models

import (
	"encoding/json"
	"testing"
)

func TestEnrichedDepartureJSON(t *testing.T) {
	dep := EnrichedDeparture{
		ScheduledDeparture: ScheduledDeparture{
			DepartureTime: "10:05",
			ArrivalTime:   "10:40",
			TrainID:       "23512",
			LineID:        "C5",
		},
		MinutesRemaining: 5,
		Status:           StatusScheduled,
	}

	data, err := json.Marshal(dep)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Embedded schedule fields are flattened into the departure object
	if fields["trainId"] != "23512" {
		t.Errorf("Expected trainId 23512, got %v", fields["trainId"])
	}
	if fields["departureTime"] != "10:05" {
		t.Errorf("Expected departureTime 10:05, got %v", fields["departureTime"])
	}

	// Schedule-only departures carry an explicit null live block
	live, ok := fields["live"]
	if !ok {
		t.Fatal("Expected live key to be present")
	}
	if live != nil {
		t.Errorf("Expected null live block, got %v", live)
	}
	if dep.HasLiveData() {
		t.Error("Expected HasLiveData to be false")
	}
}

func TestLineServes(t *testing.T) {
	line := Line{
		ID:         "C5",
		OriginID:   "35609",
		TerminusID: "37011",
		Stations:   []string{"18000", "17000"},
	}

	tests := []struct {
		station string
		want    bool
	}{
		{"35609", true},
		{"37011", true},
		{"18000", true},
		{"99999", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := line.Serves(tt.station); got != tt.want {
			t.Errorf("Serves(%q) = %v, want %v", tt.station, got, tt.want)
		}
	}
}
