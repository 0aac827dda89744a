package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jusunglee/cercanias-go/internal/models"
	"github.com/jusunglee/cercanias-go/pkg/cercanias"
)

func main() {
	var (
		origin      = flag.String("origin", "", "Origin station id")
		destination = flag.String("destination", "", "Destination station id")
		board       = flag.String("board", "", "Station id for a per-line board")
		lines       = flag.String("lines", "", "Comma-separated line ids for -board")
		search      = flag.String("search", "", "Find a station by name")
		legsFile    = flag.String("legs", "", "JSON file of legs to summarise between -origin and -destination")
		timeout     = flag.Duration("timeout", 90*time.Second, "Overall query timeout")
	)
	flag.Parse()

	config, err := cercanias.LoadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := cercanias.NewLogger(os.Stderr, config)
	client, err := cercanias.NewLocal(config, logger)
	if err != nil {
		logger.Error("Failed to create Cercanías client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *search != "":
		station, err := client.FindStation(ctx, *search)
		if err != nil {
			logger.Error("Station search failed", "query", *search, "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s (%s)\n", station.Name, station.ID)

	case *board != "":
		var ids []string
		if *lines != "" {
			ids = strings.Split(*lines, ",")
		}
		b, err := client.Board(ctx, *board, *destination, ids)
		if err != nil {
			logger.Error("Failed to build board", "station", *board, "error", err)
			os.Exit(1)
		}

		fmt.Printf("\nBoard for %s (lines %s):\n", *board, strings.Join(b.Lines, ", "))
		for _, dep := range b.Departures {
			fmt.Printf("  %-4s %-8s %s  %s → %s  %s\n",
				dep.Line, dep.Direction, dep.DepartureTime, dep.From, dep.To, minutes(dep.EnrichedDeparture))
		}
		for _, f := range b.Failures {
			fmt.Printf("  ! %s\n", f.Error())
		}

	case *legsFile != "":
		data, err := os.ReadFile(*legsFile)
		if err != nil {
			logger.Error("Failed to read legs", "file", *legsFile, "error", err)
			os.Exit(1)
		}
		var legs []models.Leg
		if err := json.Unmarshal(data, &legs); err != nil {
			logger.Error("Failed to parse legs", "file", *legsFile, "error", err)
			os.Exit(1)
		}
		summary, err := client.Summary(ctx, *origin, *destination, legs)
		if err != nil {
			logger.Error("Failed to summarise route", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\n%s\n", strings.Join(summary.StationNames, " → "))
		fmt.Printf("  Duration: %d min, transfers: %d, lines: %s, fare: %.2f €\n",
			summary.DurationMinutes, summary.TransferCount, strings.Join(summary.LineIDs, ", "), summary.PriceEstimate)

	case *origin != "" && *destination != "":
		result, err := client.Departures(ctx, *origin, *destination)
		if err != nil {
			logger.Error("Failed to get departures", "origin", *origin, "destination", *destination, "error", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s → %s:\n", result.Origin.Name, result.Destination.Name)
		for _, dep := range result.Departures {
			fmt.Printf("  %s  %-4s train %s  %s\n", dep.DepartureTime, dep.LineID, dep.TrainID, minutes(dep))
			if dep.HasLiveData() {
				fmt.Printf("        delay %d min, at %s, next %s\n",
					dep.Live.DelayMinutes, dep.Live.CurrentStation, dep.Live.NextStation)
			}
		}
		if !result.Enrichment.Available {
			fmt.Printf("\nLive data unavailable: %s\n", result.Enrichment.Error)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func minutes(dep models.EnrichedDeparture) string {
	if dep.MinutesRemaining == 0 {
		return "now"
	}
	return fmt.Sprintf("in %d min", dep.MinutesRemaining)
}
