// Command flightbench generates a batch of random flights, loads them into
// an Index, and times a single detect call against a fixed bounding box. It
// is a thin benchmarking driver only — not part of the engine's public
// contract (see SPEC_FULL.md §6) — grounded on the original C++ source's
// random-test-data-generation main().
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/arxos/flightindex/internal/config"
	"github.com/arxos/flightindex/internal/flight"
	"github.com/arxos/flightindex/internal/index"
)

func main() {
	numFlights := flag.Int("flights", 1_000_000, "number of random flights to generate")
	coordRange := flag.Int64("range", 20, "coordinate range (+/-) for random positions")
	configPath := flag.String("config", "", "optional YAML file of engine tuning overrides")
	flag.Parse()

	cfg := config.DefaultEngineConfig()
	if *configPath != "" {
		loader := config.NewLoader()
		loader.AddSource(config.FileSource{Path: *configPath})
		loaded, err := loader.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "flightbench: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	box := flight.BoundingBox{
		Min: flight.Vec3{X: -10, Y: -10, Z: -10},
		Max: flight.Vec3{X: 10, Y: 10, Z: 10},
	}

	fmt.Printf("Generating %d random flights in +/-%d...\n", *numFlights, *coordRange)
	batch := generateRandomFlights(*numFlights, *coordRange)

	idx := index.New(cfg, nil)
	start := time.Now()
	if err := idx.Initialize(batch); err != nil {
		fmt.Fprintf(os.Stderr, "flightbench: initialize failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Initialized in %s\n", time.Since(start))

	start = time.Now()
	result, err := idx.Detect(context.Background(), box, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flightbench: detect failed: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("Detected %d flights inside the bounding box out of %d (%s)\n", result.Count, *numFlights, elapsed)
	if err := idx.Release(result); err != nil {
		fmt.Fprintf(os.Stderr, "flightbench: release failed: %v\n", err)
		os.Exit(1)
	}
}

func generateRandomFlights(count int, coordRange int64) []flight.Flight {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	randCoord := func() int64 { return rng.Int63n(2*coordRange+1) - coordRange }

	flights := make([]flight.Flight, count)
	for i := range flights {
		flights[i] = flight.Flight{
			ID: int64(i),
			Position: flight.Position{
				X:        randCoord(),
				Airports: []flight.Airport{{Y: randCoord(), Z: randCoord()}},
			},
		}
	}
	return flights
}
