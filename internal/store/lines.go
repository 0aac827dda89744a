package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jusunglee/cercanias-go/internal/models"
)

const sqlitePrefix = "sqlite://"

// LineTable is the static per-line terminus table. It is loaded once at
// start-up and read-only afterwards, so it is safe for concurrent use.
type LineTable struct {
	lines     map[string]models.Line
	byStation map[string][]string
	ids       []string
}

// NewLineTable normalizes and validates lines and indexes them by station
func NewLineTable(lines []models.Line) (*LineTable, error) {
	t := &LineTable{
		lines:     make(map[string]models.Line, len(lines)),
		byStation: make(map[string][]string),
	}

	for i, line := range lines {
		line = normalizeLine(line)

		if line.ID == "" {
			return nil, fmt.Errorf("line %d: missing id", i)
		}
		if line.OriginID == "" || line.TerminusID == "" {
			return nil, fmt.Errorf("line %s: missing origin or terminus", line.ID)
		}
		if line.OriginID == line.TerminusID {
			return nil, fmt.Errorf("line %s: origin and terminus are both %s", line.ID, line.OriginID)
		}
		if _, dup := t.lines[line.ID]; dup {
			return nil, fmt.Errorf("line %s: duplicate id", line.ID)
		}

		t.lines[line.ID] = line
		t.ids = append(t.ids, line.ID)

		seen := make(map[string]bool)
		for _, stationID := range append([]string{line.OriginID, line.TerminusID}, line.Stations...) {
			if stationID == "" || seen[stationID] {
				continue
			}
			seen[stationID] = true
			t.byStation[stationID] = append(t.byStation[stationID], line.ID)
		}
	}

	sort.Strings(t.ids)
	for station := range t.byStation {
		sort.Strings(t.byStation[station])
	}

	return t, nil
}

// Line returns the line with the given id. Ids are matched case-insensitively.
func (t *LineTable) Line(id string) (models.Line, bool) {
	line, ok := t.lines[normalizeLineID(id)]
	return line, ok
}

// LinesServing returns the ids of all lines that stop at the station
func (t *LineTable) LinesServing(stationID string) []string {
	ids := t.byStation[strings.TrimSpace(stationID)]
	result := make([]string, len(ids))
	copy(result, ids)
	return result
}

// Lines returns all lines sorted by id
func (t *LineTable) Lines() []models.Line {
	result := make([]models.Line, len(t.ids))
	for i, id := range t.ids {
		result[i] = t.lines[id]
	}
	return result
}

// LoadLineTable reads the line table from a JSON file or, when source has
// the sqlite:// prefix, from a SQLite database
func LoadLineTable(source string) (*LineTable, error) {
	var (
		lines []models.Line
		err   error
	)

	if strings.HasPrefix(source, sqlitePrefix) {
		lines, err = loadLinesSQLite(strings.TrimPrefix(source, sqlitePrefix))
	} else {
		lines, err = loadLinesJSON(source)
	}
	if err != nil {
		return nil, err
	}

	return NewLineTable(lines)
}

func loadLinesJSON(path string) ([]models.Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading line table: %w", err)
	}

	var lines []models.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("parsing line table %s: %w", path, err)
	}
	return lines, nil
}

type lineRow struct {
	ID         string `db:"id"`
	OriginID   string `db:"origin_id"`
	TerminusID string `db:"terminus_id"`
}

type lineStationRow struct {
	LineID    string `db:"line_id"`
	StationID string `db:"station_id"`
}

func loadLinesSQLite(path string) ([]models.Line, error) {
	db, err := sqlx.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening line database: %w", err)
	}
	defer db.Close()

	var rows []lineRow
	if err := db.Select(&rows, `SELECT id, origin_id, terminus_id FROM lines ORDER BY id`); err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}

	var stops []lineStationRow
	if err := db.Select(&stops, `SELECT line_id, station_id FROM line_stations ORDER BY line_id, position`); err != nil {
		return nil, fmt.Errorf("querying line stations: %w", err)
	}

	stations := make(map[string][]string)
	for _, stop := range stops {
		stations[stop.LineID] = append(stations[stop.LineID], stop.StationID)
	}

	lines := make([]models.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, models.Line{
			ID:         row.ID,
			OriginID:   row.OriginID,
			TerminusID: row.TerminusID,
			Stations:   stations[row.ID],
		})
	}
	return lines, nil
}

func normalizeLine(line models.Line) models.Line {
	out := models.Line{
		ID:         normalizeLineID(line.ID),
		OriginID:   strings.TrimSpace(line.OriginID),
		TerminusID: strings.TrimSpace(line.TerminusID),
	}
	for _, id := range line.Stations {
		if id = strings.TrimSpace(id); id != "" {
			out.Stations = append(out.Stations, id)
		}
	}
	return out
}

func normalizeLineID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
