package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/internal/schedule"
	"github.com/jusunglee/cercanias-go/pkg/cercanias"
)

// Handler handles HTTP requests
type Handler struct {
	client cercanias.Client
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(client cercanias.Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, logger: logger}
}

// RegisterRoutes registers all routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleIndex).Methods("GET")
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/routes", h.handleRoutes).Methods("GET")
	r.HandleFunc("/routes/summary", h.handleSummary).Methods("POST")
	r.HandleFunc("/board", h.handleBoard).Methods("GET")
	r.HandleFunc("/stations", h.handleStations).Methods("GET")
	r.HandleFunc("/lines", h.handleLines).Methods("GET")
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// SummaryRequest is the body of POST /routes/summary
type SummaryRequest struct {
	Origin      string       `json:"origin"`
	Destination string       `json:"destination"`
	Legs        []models.Leg `json:"legs"`
}

// StationsResponse wraps the station list
type StationsResponse struct {
	Data []models.Station `json:"data"`
}

// LinesResponse wraps the static line table
type LinesResponse struct {
	Data []models.Line `json:"data"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"title":  "cercanias-go",
		"readme": "Next Cercanías Madrid departures with live train positions",
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRoutes(w http.ResponseWriter, r *http.Request) {
	origin, destination, ok := h.stationPair(w, r.URL.Query().Get("origin"), r.URL.Query().Get("destination"))
	if !ok {
		return
	}

	result, err := h.client.Departures(r.Context(), origin, destination)
	if err != nil {
		h.writeClientError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	station := strings.TrimSpace(r.URL.Query().Get("station"))
	if station == "" {
		h.writeError(w, http.StatusBadRequest, "missing station parameter", "")
		return
	}
	destination := strings.TrimSpace(r.URL.Query().Get("destination"))
	if destination == station {
		h.writeError(w, http.StatusBadRequest, "station and destination must differ", "")
		return
	}

	var lines []string
	if raw := r.URL.Query().Get("lines"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				lines = append(lines, id)
			}
		}
	}

	board, err := h.client.Board(r.Context(), station, destination, lines)
	if err != nil {
		h.writeClientError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, board)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	origin, destination, ok := h.stationPair(w, req.Origin, req.Destination)
	if !ok {
		return
	}

	summary, err := h.client.Summary(r.Context(), origin, destination, req.Legs)
	if err != nil {
		h.writeClientError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleStations(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		stations, err := h.client.Stations(r.Context())
		if err != nil {
			h.writeClientError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, StationsResponse{Data: stations})
		return
	}

	station, err := h.client.FindStation(r.Context(), query)
	if err != nil {
		h.writeClientError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, station)
}

func (h *Handler) handleLines(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, LinesResponse{Data: h.client.Lines()})
}

// stationPair validates an origin/destination pair and writes a 400 when invalid
func (h *Handler) stationPair(w http.ResponseWriter, origin, destination string) (string, string, bool) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)

	if origin == "" || destination == "" {
		h.writeError(w, http.StatusBadRequest, "missing origin/destination parameter", "")
		return "", "", false
	}
	if origin == destination {
		h.writeError(w, http.StatusBadRequest, "origin and destination must differ", "")
		return "", "", false
	}
	return origin, destination, true
}

// writeClientError maps domain errors to status codes
func (h *Handler) writeClientError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *schedule.StationNotFoundError
	var unavailable *schedule.UpstreamUnavailableError

	switch {
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusNotFound, "station not found", notFound.Error())
	case errors.Is(err, schedule.ErrNoDepartures):
		h.writeError(w, http.StatusNotFound, schedule.ErrNoDepartures.Error(), "")
	case errors.As(err, &unavailable):
		h.logger.Warn("upstream unavailable", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "upstream unavailable", unavailable.Detail)
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Detail: detail})
}
