package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arxos/flightindex/internal/config"
	"github.com/arxos/flightindex/internal/flight"
	"github.com/arxos/flightindex/internal/flighterrors"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return New(config.DefaultEngineConfig(), nil)
}

var testBox = flight.BoundingBox{
	Min: flight.Vec3{X: -10, Y: -10, Z: -10},
	Max: flight.Vec3{X: 10, Y: 10, Z: 10},
}

func singleFlight(x, duration int64, airports ...flight.Airport) []flight.Flight {
	return []flight.Flight{{ID: 1, Position: flight.Position{X: x, Airports: airports}, Duration: duration}}
}

func TestScenario1_OriginHit(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(0, 0, flight.Airport{Y: 0, Z: 0})))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 1, buf.Count)
	require.Equal(t, []int64{1}, buf.IDs)
}

func TestScenario2_FarAwayMiss(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(20, 0, flight.Airport{Y: 20, Z: 20})))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Count)
}

func TestScenario3_BeforeBoxNoDuration(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(-11, 0, flight.Airport{Y: 0, Z: 0})))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Count)
}

func TestScenario4_DurationExtendsIntoBox(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(-11, 100, flight.Airport{Y: 0, Z: 0})))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 1, buf.Count)
}

func TestScenario5_YOutOfRange(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(-11, 100, flight.Airport{Y: 11, Z: 0})))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Count)
}

func TestScenario6_OneAirportInsideAmongMany(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(0, 0,
		flight.Airport{Y: 0, Z: -11},
		flight.Airport{Y: 0, Z: -12},
		flight.Airport{Y: 0, Z: 0},
	)))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 1, buf.Count)
}

func TestScenario7_AllAirportsOutside(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(0, 0,
		flight.Airport{Y: -11, Z: -11},
		flight.Airport{Y: -12, Z: -12},
		flight.Airport{Y: -13, Z: -13},
	)))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Count)
}

func TestScenario8_AddIncreasesCountByOne(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize([]flight.Flight{
		{ID: 1, Position: flight.Position{X: 1, Airports: []flight.Airport{{Y: 1, Z: 1}}}},
		{ID: 2, Position: flight.Position{X: 2, Airports: []flight.Airport{{Y: 2, Z: 2}}}},
	}))
	before := idx.Count()

	require.NoError(t, idx.Add([]flight.Flight{
		{ID: 3, Position: flight.Position{X: 0, Airports: []flight.Airport{{Y: 0, Z: 0}}}},
	}))

	require.Equal(t, before+1, idx.Count())
}

func TestScenario9_AutoMarkDrainsOnRepeat(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(0, 0, flight.Airport{Y: 0, Z: 0})))

	first, err := idx.Detect(context.Background(), testBox, true)
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)

	second, err := idx.Detect(context.Background(), testBox, true)
	require.NoError(t, err)
	require.Equal(t, 0, second.Count)
}

func TestScenario10_UpdateResetsFlagAndRestoresHit(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(0, 0, flight.Airport{Y: 0, Z: 0})))

	first, err := idx.Detect(context.Background(), testBox, true)
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)

	require.NoError(t, idx.Update(
		[]int64{1},
		[]flight.Position{{X: 0, Airports: []flight.Airport{{Y: 0, Z: 0}}}},
		[]int64{0},
	))

	third, err := idx.Detect(context.Background(), testBox, true)
	require.NoError(t, err)
	require.Equal(t, first.Count, third.Count)
}

func TestUpdateUnknownIdentifierFailsWholeBatchAtomically(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize([]flight.Flight{
		{ID: 1, Position: flight.Position{X: 0, Airports: []flight.Airport{{Y: 0, Z: 0}}}},
	}))

	err := idx.Update(
		[]int64{1, 999},
		[]flight.Position{
			{X: 5, Airports: []flight.Airport{{Y: 5, Z: 5}}},
			{X: 6, Airports: []flight.Airport{{Y: 6, Z: 6}}},
		},
		[]int64{0, 0},
	)
	require.Error(t, err)
	require.True(t, flighterrors.IsUnknownIdentifier(err))

	// Flight 1 must be untouched since the batch is all-or-nothing.
	require.Equal(t, 0, idx.IndexOf(1))
	got, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 1, got.Count)
}

func TestUpdateRejectsEmptyAirportsWithoutMutating(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize([]flight.Flight{
		{ID: 1, Position: flight.Position{X: 0, Airports: []flight.Airport{{Y: 0, Z: 0}}}},
	}))

	err := idx.Update(
		[]int64{1},
		[]flight.Position{{X: 5, Airports: nil}},
		[]int64{0},
	)
	require.Error(t, err)
	require.True(t, flighterrors.IsMalformedBatch(err))

	got := idx.Count()
	require.Equal(t, 1, got)
}

func TestUpdateRejectsNegativeDuration(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize([]flight.Flight{
		{ID: 1, Position: flight.Position{X: 0, Airports: []flight.Airport{{Y: 0, Z: 0}}}},
	}))

	err := idx.Update(
		[]int64{1},
		[]flight.Position{{X: 5, Airports: []flight.Airport{{Y: 5, Z: 5}}}},
		[]int64{-1},
	)
	require.Error(t, err)
	require.True(t, flighterrors.IsMalformedBatch(err))
}

func TestDetectBeforeInitializeFails(t *testing.T) {
	idx := newTestIndex(t)
	_, err := idx.Detect(context.Background(), testBox, false)
	require.True(t, flighterrors.IsNotInitialized(err))
}

func TestReleaseDoubleReleaseFails(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(0, 0, flight.Airport{Y: 0, Z: 0})))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)

	require.NoError(t, idx.Release(buf))
	err = idx.Release(buf)
	require.True(t, flighterrors.IsInvalidResultHandle(err))
}

func TestReleaseStaticEmptyIsNoOp(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Initialize(singleFlight(1000, 0, flight.Airport{Y: 1000, Z: 1000})))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Count)

	require.NoError(t, idx.Release(buf))
	require.NoError(t, idx.Release(buf))
}

func TestReleaseNilFails(t *testing.T) {
	idx := newTestIndex(t)
	err := idx.Release(nil)
	require.True(t, flighterrors.IsInvalidResultHandle(err))
}

func TestResultsAreDenseAndUnique(t *testing.T) {
	idx := newTestIndex(t)
	batch := make([]flight.Flight, 0, 50)
	for i := int64(0); i < 50; i++ {
		batch = append(batch, flight.Flight{
			ID:       i,
			Position: flight.Position{X: i % 5, Airports: []flight.Airport{{Y: 0, Z: 0}}},
		})
	}
	require.NoError(t, idx.Initialize(batch))

	buf, err := idx.Detect(context.Background(), testBox, false)
	require.NoError(t, err)
	require.Equal(t, len(buf.IDs), buf.Count)

	seen := make(map[int64]bool, buf.Count)
	for _, id := range buf.IDs {
		require.False(t, seen[id], "duplicate id %d in result", id)
		seen[id] = true
	}
}
