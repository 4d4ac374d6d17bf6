// Package boundary implements the Boundary Shim: translation between the
// flat-array-plus-sentinel wire format a C-style caller would use and the
// engine's native Go types, plus an opaque-handle registry modeled on the
// teacher's cgo wrapper idiom (opaque handle + last-error + destroy) but
// without an actual cgo bridge — the literal cross-language ABI is not
// built here, only the marshalling it would sit behind.
package boundary

import (
	"github.com/arxos/flightindex/internal/flight"
	"github.com/arxos/flightindex/internal/flighterrors"
)

// DefaultSentinel is the historical terminator value for a flight's flat
// airport list. It must never be used as a real Y or Z coordinate.
const DefaultSentinel int64 = -1337

// DecodeFlatPositions parses flat into flightCount positions, where each
// position is one X value followed by (Y, Z) pairs terminated by sentinel.
// A length that ends before flightCount positions have been consumed, or
// that runs past len(flat), fails with MalformedBatch.
func DecodeFlatPositions(flat []int64, flightCount int, sentinel int64) ([]flight.Position, error) {
	positions := make([]flight.Position, 0, flightCount)
	i := 0
	for f := 0; f < flightCount; f++ {
		if i >= len(flat) {
			return nil, flighterrors.NewMalformedBatchError("positions array ended before all flights were consumed")
		}
		x := flat[i]
		i++

		var airports []flight.Airport
		for {
			if i >= len(flat) {
				return nil, flighterrors.NewMalformedBatchError("positions array ended before sentinel")
			}
			if flat[i] == sentinel {
				i++
				break
			}
			if i+1 >= len(flat) {
				return nil, flighterrors.NewMalformedBatchError("dangling Y without matching Z before end of array")
			}
			airports = append(airports, flight.Airport{Y: flat[i], Z: flat[i+1]})
			i += 2
		}
		if len(airports) == 0 {
			return nil, flighterrors.NewMalformedBatchError("flight has no airports")
		}
		positions = append(positions, flight.Position{X: x, Airports: airports})
	}
	if i != len(flat) {
		return nil, flighterrors.NewMalformedBatchError("positions array has trailing data past the declared flight count")
	}
	return positions, nil
}

// EncodeFlatPositions is the inverse of DecodeFlatPositions: it flattens
// positions into the wire format, terminating each flight's airport run
// with sentinel.
func EncodeFlatPositions(positions []flight.Position, sentinel int64) []int64 {
	flat := make([]int64, 0)
	for _, p := range positions {
		flat = append(flat, p.X)
		for _, a := range p.Airports {
			flat = append(flat, a.Y, a.Z)
		}
		flat = append(flat, sentinel)
	}
	return flat
}
