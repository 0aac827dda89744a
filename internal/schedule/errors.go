package schedule

import (
	"errors"
	"fmt"
)

// ErrNoDepartures means the upstream answered but nothing is left in the window.
// It is an empty result, not a failure.
var ErrNoDepartures = errors.New("no departures in window")

// StationNotFoundError is a client error: an id the station feed does not know
type StationNotFoundError struct {
	// Which is "origin" or "destination"
	Which string
	ID    string
}

func (e *StationNotFoundError) Error() string {
	return fmt.Sprintf("%s station not found: %s", e.Which, e.ID)
}

// UpstreamUnavailableError is returned when a required upstream call
// failed after its retries
type UpstreamUnavailableError struct {
	Detail string
	Err    error
}

func (e *UpstreamUnavailableError) Error() string {
	return "upstream unavailable: " + e.Detail
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

func unavailable(what string, err error) error {
	return &UpstreamUnavailableError{Detail: fmt.Sprintf("%s: %v", what, err), Err: err}
}
