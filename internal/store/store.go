// Package store implements the Device Store: a growable array of flight
// records plus a parallel airport arena, both doubling on demand rather than
// relying on the host language's own slice growth, so the capacity policy
// stays an explicit, observable contract as the spec requires.
//
// The public API talks in terms of flight.Flight values; internally a
// record holds only (offset, length) into the arena, modeling the
// device-side "indices, not pointers" requirement for the airport sidecar.
package store

import (
	"github.com/arxos/flightindex/internal/flight"
	"github.com/arxos/flightindex/internal/flighterrors"
	"github.com/arxos/flightindex/internal/metrics"
)

type record struct {
	id            int64
	x             int64
	duration      int64
	recalculating bool
	airportOffset int
	airportLength int
}

// Store owns the flight array and the airport arena. It is not safe for
// concurrent use; callers (the Index) are responsible for serializing
// access, matching the engine's single-threaded synchronous contract.
type Store struct {
	records    []record
	recordsCap int
	live       int

	arena    []flight.Airport
	arenaCap int
	arenaLen int

	minCapacity     int
	longestDuration int64

	metrics *metrics.Metrics
}

// New creates an empty Store. minCapacity is the smallest allocation the
// store will make on first population, even if the initial batch is empty.
func New(minCapacity int, m *metrics.Metrics) *Store {
	if minCapacity <= 0 {
		minCapacity = 1
	}
	return &Store{minCapacity: minCapacity, metrics: m}
}

// Len returns the number of live flights.
func (s *Store) Len() int { return s.live }

// LongestDuration returns the current upper bound on duration across all
// live flights.
func (s *Store) LongestDuration() int64 { return s.longestDuration }

// EnsureCapacity grows the record array so it holds at least n slots,
// doubling the existing capacity until it suffices, per the spec's capacity
// policy. A no-op if already large enough. A doubling that would overflow
// int panics explicitly, as does the underlying make() refusing an absurd
// allocation; either panic is recovered here and reported as
// OutOfDeviceMemory rather than crashing the process, per §4.1's documented
// contract.
func (s *Store) EnsureCapacity(n int) (err error) {
	if n <= s.recordsCap {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = flighterrors.NewOutOfDeviceMemoryError("record array allocation failed").WithDetails("requested", n).WithDetails("cause", r)
		}
	}()
	newCap := s.recordsCap
	if newCap == 0 {
		newCap = s.minCapacity
	}
	for newCap < n {
		next := newCap * 2
		if next <= newCap {
			panic("record array capacity overflowed while doubling")
		}
		newCap = next
	}
	grown := make([]record, len(s.records), newCap)
	copy(grown, s.records)
	s.records = grown
	s.recordsCap = newCap
	if s.metrics != nil {
		s.metrics.RecordGrowth()
		s.metrics.SetStoreCapacity(newCap)
	}
	return nil
}

func (s *Store) ensureArenaCapacity(n int) (err error) {
	if n <= s.arenaCap {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = flighterrors.NewOutOfDeviceMemoryError("airport arena allocation failed").WithDetails("requested", n).WithDetails("cause", r)
		}
	}()
	newCap := s.arenaCap
	if newCap == 0 {
		newCap = s.minCapacity
	}
	for newCap < n {
		next := newCap * 2
		if next <= newCap {
			panic("airport arena capacity overflowed while doubling")
		}
		newCap = next
	}
	grown := make([]flight.Airport, s.arenaLen, newCap)
	copy(grown, s.arena)
	s.arena = grown
	s.arenaCap = newCap
	return nil
}

// Reset discards all current flights and airports and repopulates the store
// from batch, implementing Mutator.initialize. An empty batch yields an
// empty store ready to accept adds.
func (s *Store) Reset(batch []flight.Flight) error {
	s.records = s.records[:0]
	s.live = 0
	s.arenaLen = 0
	s.longestDuration = 0
	if err := s.EnsureCapacity(max(len(batch), 1)); err != nil {
		return err
	}
	return s.appendRecords(batch)
}

// Append adds batch at the tail, growing the store if needed, implementing
// Mutator.add.
func (s *Store) Append(batch []flight.Flight) error {
	if err := s.EnsureCapacity(max(s.live+len(batch), 1)); err != nil {
		return err
	}
	return s.appendRecords(batch)
}

func (s *Store) appendRecords(batch []flight.Flight) error {
	for _, f := range batch {
		if err := s.ensureArenaCapacity(s.arenaLen + len(f.Position.Airports)); err != nil {
			return err
		}
		offset := s.arenaLen
		s.arena = s.arena[:offset+len(f.Position.Airports)]
		copy(s.arena[offset:], f.Position.Airports)
		s.arenaLen = offset + len(f.Position.Airports)

		s.records = s.records[:s.live+1]
		s.records[s.live] = record{
			id:            f.ID,
			x:             f.Position.X,
			duration:      f.Duration,
			recalculating: f.Recalculating,
			airportOffset: offset,
			airportLength: len(f.Position.Airports),
		}
		s.live++

		if f.Duration > s.longestDuration {
			s.longestDuration = f.Duration
		}
	}
	if s.metrics != nil {
		s.metrics.SetLiveCount(s.live)
	}
	return nil
}

// At materializes the flight held in slot i as a flight.Flight value.
func (s *Store) At(i int) flight.Flight {
	r := s.records[i]
	airports := make([]flight.Airport, r.airportLength)
	copy(airports, s.arena[r.airportOffset:r.airportOffset+r.airportLength])
	return flight.Flight{
		ID:            r.id,
		Position:      flight.Position{X: r.x, Airports: airports},
		Duration:      r.duration,
		Recalculating: r.recalculating,
	}
}

// ID returns just the identifier of the flight in slot i, avoiding the
// airport-slice allocation At incurs; Sweep Query's bracket classification
// only needs this.
func (s *Store) ID(i int) int64 { return s.records[i].id }

// X returns just the X coordinate of the flight in slot i, avoiding the
// airport-slice allocation At incurs; Sweep Query's per-slot classification
// only needs this.
func (s *Store) X(i int) int64 { return s.records[i].x }

// Duration returns the duration of the flight in slot i.
func (s *Store) Duration(i int) int64 { return s.records[i].duration }

// Recalculating returns the recalculating bit of the flight in slot i.
func (s *Store) Recalculating(i int) bool { return s.records[i].recalculating }

// SetRecalculating sets the recalculating bit of the flight in slot i.
func (s *Store) SetRecalculating(i int, v bool) { s.records[i].recalculating = v }

// AirportAt returns the j-th airport of the flight in slot i without
// materializing the whole flight.
func (s *Store) AirportAt(i, j int) flight.Airport {
	r := s.records[i]
	return s.arena[r.airportOffset+j]
}

// AirportCount returns the number of airports held by the flight in slot i.
func (s *Store) AirportCount(i int) int { return s.records[i].airportLength }

// IDs returns the identifiers held in each live slot, in slot order —
// exactly the input the ID Directory needs to rebuild itself in one linear
// pass.
func (s *Store) IDs() []int64 {
	ids := make([]int64, s.live)
	for i := 0; i < s.live; i++ {
		ids[i] = s.records[i].id
	}
	return ids
}

// UpdateAt overwrites the X, duration, and airport list of the flight in
// slot i, reporting whether X changed (which invalidates the sort). The old
// airport range becomes dead; it is reclaimed on the next ReorderBy or
// Compact call rather than in place, matching the spec's "stale ranges become dead and
// are reclaimed on the next sort or compaction" rule.
func (s *Store) UpdateAt(i int, x int64, duration int64, airports []flight.Airport) (xChanged bool, err error) {
	if err := s.ensureArenaCapacity(s.arenaLen + len(airports)); err != nil {
		return false, err
	}

	r := &s.records[i]
	xChanged = r.x != x
	r.x = x
	r.duration = duration
	r.recalculating = false
	if duration > s.longestDuration {
		s.longestDuration = duration
	}

	offset := s.arenaLen
	s.arena = s.arena[:offset+len(airports)]
	copy(s.arena[offset:], airports)
	s.arenaLen = offset + len(airports)
	r.airportOffset = offset
	r.airportLength = len(airports)
	return xChanged, nil
}

// Compact drops the slots named by removedSlots and shifts survivors down
// to a dense 0..N'-1 prefix, recomputing longest_duration over the
// survivors and defragmenting the airport arena so it holds exactly the
// survivors' airports contiguously. The Directory is always dirtied by the
// caller (Mutator.Remove) after a Compact, since slots have moved.
func (s *Store) Compact(removedSlots map[int]bool) {
	newRecords := s.records[:0:s.recordsCap]
	newArena := make([]flight.Airport, 0, s.arenaCap)
	var newLongest int64

	write := 0
	for read := 0; read < s.live; read++ {
		if removedSlots[read] {
			continue
		}
		r := s.records[read]
		newOffset := len(newArena)
		newArena = append(newArena, s.arena[r.airportOffset:r.airportOffset+r.airportLength]...)
		r.airportOffset = newOffset
		newRecords = newRecords[:write+1]
		newRecords[write] = r
		if r.duration > newLongest {
			newLongest = r.duration
		}
		write++
	}

	s.records = newRecords
	s.live = write
	s.arena = newArena
	s.arenaLen = len(newArena)
	s.arenaCap = cap(newArena)
	s.longestDuration = newLongest

	if s.metrics != nil {
		s.metrics.SetLiveCount(s.live)
	}
}

// ReorderBy permutes the live prefix of records (and rewrites airport
// offsets) according to perm, where perm[newSlot] = oldSlot, implementing
// the Sort Engine's "apply the permutation to the flight array and to the
// airport sidecar by recomputing each flight's offset" step. It also
// defragments the arena as a side effect, reclaiming any airport ranges
// left dead by intervening updates.
func (s *Store) ReorderBy(perm []int) error {
	if len(perm) != s.live {
		return flighterrors.NewMalformedBatchError("permutation length does not match live count")
	}
	reordered := make([]record, s.live, s.recordsCap)
	newArena := make([]flight.Airport, 0, s.arenaCap)
	for newSlot, oldSlot := range perm {
		r := s.records[oldSlot]
		newOffset := len(newArena)
		newArena = append(newArena, s.arena[r.airportOffset:r.airportOffset+r.airportLength]...)
		r.airportOffset = newOffset
		reordered[newSlot] = r
	}
	s.records = reordered
	s.recordsCap = cap(reordered)
	s.arena = newArena
	s.arenaLen = len(newArena)
	s.arenaCap = cap(newArena)
	return nil
}
