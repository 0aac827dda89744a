package store

import (
	"strings"

	"github.com/jusunglee/cercanias-go/internal/models"
)

// Directory indexes stations from one fetch of the station feed.
// It is built fresh for each query and never mutated afterwards.
type Directory struct {
	stations map[string]models.Station
	order    []string
}

// NewDirectory builds a directory from raw feed records.
// Later records win over earlier ones with the same id.
func NewDirectory(raw []models.Station) *Directory {
	d := &Directory{
		stations: make(map[string]models.Station, len(raw)),
		order:    make([]string, 0, len(raw)),
	}

	for _, station := range raw {
		if _, seen := d.stations[station.ID]; !seen {
			d.order = append(d.order, station.ID)
		}
		d.stations[station.ID] = models.Station{ID: station.ID, Name: station.Name}
	}

	return d
}

// Len returns the number of distinct stations
func (d *Directory) Len() int {
	return len(d.stations)
}

// Lookup returns the station with the given id
func (d *Directory) Lookup(id string) (models.Station, bool) {
	station, ok := d.stations[id]
	return station, ok
}

// Name resolves a station id to its name, or models.UnknownStation
func (d *Directory) Name(id string) string {
	if station, ok := d.stations[id]; ok && station.Name != "" {
		return station.Name
	}
	return models.UnknownStation
}

// FindByName returns the first station whose normalized name contains the
// normalized query. Stations are scanned in order of first appearance in the feed.
func (d *Directory) FindByName(query string) (models.Station, bool) {
	q := normalize(query)
	if q == "" {
		return models.Station{}, false
	}

	for _, id := range d.order {
		station := d.stations[id]
		if strings.Contains(normalize(station.Name), q) {
			return station, true
		}
	}

	return models.Station{}, false
}

// Stations returns all stations in order of first appearance
func (d *Directory) Stations() []models.Station {
	result := make([]models.Station, len(d.order))
	for i, id := range d.order {
		result[i] = d.stations[id]
	}
	return result
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
