package boundary

import (
	"context"
	"sync"

	"github.com/arxos/flightindex/internal/config"
	"github.com/arxos/flightindex/internal/flight"
	"github.com/arxos/flightindex/internal/flighterrors"
	"github.com/arxos/flightindex/internal/index"
	"github.com/arxos/flightindex/internal/metrics"
)

// Handle is an opaque token naming a live Index, modeled on the teacher's
// cgo wrapper's opaque-pointer idiom but expressed as a plain integer since
// there is no real foreign-memory boundary here. Zero is never a valid
// handle — it is returned by Create on failure, standing in for a null
// pointer.
type Handle uint64

// FlatResult is the boundary's view of a Sweep Query's result: a count and
// that many identifiers, matching §6's "owned result buffer (count +
// identifiers)".
type FlatResult struct {
	Count int
	IDs   []int64

	buf *index.ResultBuffer
}

// Shim owns a registry of opaque handles mapping to live Index instances
// and a per-handle last-error slot, mirroring the teacher's
// getLastError/clearError pattern so a boundary caller can retrieve the
// failure reason after a bool/nil-returning call.
type Shim struct {
	mu        sync.Mutex
	instances map[Handle]*index.Index
	lastErr   map[Handle]error
	nextID    uint64

	cfg     config.EngineConfig
	metrics *metrics.Metrics
}

// NewShim creates an empty registry. cfg and m are applied to every Index
// the shim creates.
func NewShim(cfg config.EngineConfig, m *metrics.Metrics) *Shim {
	return &Shim{
		instances: make(map[Handle]*index.Index),
		lastErr:   make(map[Handle]error),
		cfg:       cfg,
		metrics:   m,
	}
}

// Create allocates a new Index and returns its handle, or 0 on failure (no
// construction path currently fails, but the boundary contract reserves 0
// as the null handle regardless, and a recovered panic during construction
// reports the same way).
func (s *Shim) Create() (h Handle) {
	defer func() {
		if r := recover(); r != nil {
			h = 0
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	h = Handle(s.nextID)
	s.instances[h] = index.New(s.cfg, s.metrics)
	return h
}

// Destroy releases the Index named by h. Idempotent on an unknown or
// already-destroyed handle, matching the spec's "void (idempotent on
// null)". A recovered panic leaves the registry state as it was found.
func (s *Shim) Destroy(h Handle) {
	defer func() { recover() }()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, h)
	delete(s.lastErr, h)
}

func (s *Shim) get(h Handle) (*index.Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.instances[h]
	return idx, ok
}

func (s *Shim) setLastErr(h Handle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr[h] = err
}

// LastError returns the error from the most recent failing call against h,
// or nil if the last call succeeded or no call against h has failed since
// it was created or destroyed. A call against an unknown handle records its
// failure here too.
func (s *Shim) LastError(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr[h]
}

// Initialize replaces an Index's state with an empty batch ready to accept
// adds, matching §6's initialize operation (which carries no payload of its
// own at the boundary — batches arrive via Add).
func (s *Shim) Initialize(h Handle) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.setLastErr(h, flighterrors.NewInternalError("initialize", r))
			ok = false
		}
	}()

	idx, present := s.get(h)
	if !present {
		s.setLastErr(h, flighterrors.NewNotInitializedError("initialize"))
		return false
	}
	err := idx.Initialize(nil)
	s.setLastErr(h, err)
	return err == nil
}

// Add decodes a flat batch and appends it to the Index named by h.
// positionArrayLength is the declared length of positions, used to detect a
// malformed flat encoding per §6.
func (s *Shim) Add(h Handle, ids []int64, positions []int64, durations []int64, flightCount int, positionArrayLength int) bool {
	return s.mutate(h, "add", ids, positions, durations, flightCount, positionArrayLength, func(idx *index.Index, batch []flight.Flight) error {
		return idx.Add(batch)
	})
}

// Update decodes a flat batch and applies it as an update against the Index
// named by h.
func (s *Shim) Update(h Handle, ids []int64, positions []int64, durations []int64, updateCount int, positionArrayLength int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.setLastErr(h, flighterrors.NewInternalError("update", r))
			ok = false
		}
	}()

	idx, present := s.get(h)
	if !present {
		s.setLastErr(h, flighterrors.NewNotInitializedError("update"))
		return false
	}
	if len(ids) != updateCount || len(durations) != updateCount {
		err := flighterrors.NewMalformedBatchError("ids/durations length does not match update count")
		s.setLastErr(h, err)
		return false
	}
	if positionArrayLength != len(positions) {
		err := flighterrors.NewMalformedBatchError("declared position-array length does not match payload")
		s.setLastErr(h, err)
		return false
	}
	decoded, err := DecodeFlatPositions(positions, updateCount, s.sentinel())
	if err != nil {
		s.setLastErr(h, err)
		return false
	}
	err = idx.Update(ids, decoded, durations)
	s.setLastErr(h, err)
	return err == nil
}

func (s *Shim) mutate(h Handle, op string, ids []int64, positions []int64, durations []int64, count int, positionArrayLength int, apply func(*index.Index, []flight.Flight) error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.setLastErr(h, flighterrors.NewInternalError(op, r))
			ok = false
		}
	}()

	idx, present := s.get(h)
	if !present {
		s.setLastErr(h, flighterrors.NewNotInitializedError(op))
		return false
	}
	if len(ids) != count || len(durations) != count {
		err := flighterrors.NewMalformedBatchError("ids/durations length does not match declared count")
		s.setLastErr(h, err)
		return false
	}
	if positionArrayLength != len(positions) {
		err := flighterrors.NewMalformedBatchError("declared position-array length does not match payload")
		s.setLastErr(h, err)
		return false
	}
	decoded, err := DecodeFlatPositions(positions, count, s.sentinel())
	if err != nil {
		s.setLastErr(h, err)
		return false
	}
	batch := make([]flight.Flight, count)
	for i := range batch {
		batch[i] = flight.Flight{ID: ids[i], Position: decoded[i], Duration: durations[i]}
	}
	err = apply(idx, batch)
	s.setLastErr(h, err)
	return err == nil
}

// Remove removes the flights named by ids from the Index named by h.
func (s *Shim) Remove(h Handle, ids []int64, count int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.setLastErr(h, flighterrors.NewInternalError("remove", r))
			ok = false
		}
	}()

	idx, present := s.get(h)
	if !present {
		s.setLastErr(h, flighterrors.NewNotInitializedError("remove"))
		return false
	}
	if len(ids) != count {
		err := flighterrors.NewMalformedBatchError("ids length does not match declared count")
		s.setLastErr(h, err)
		return false
	}
	err := idx.Remove(ids)
	s.setLastErr(h, err)
	return err == nil
}

// Detect runs a Sweep Query against boxMin/boxMax and returns the owned
// result, or nil on failure.
func (s *Shim) Detect(h Handle, boxMin, boxMax [3]int64) (result *FlatResult) {
	defer func() {
		if r := recover(); r != nil {
			s.setLastErr(h, flighterrors.NewInternalError("detect", r))
			result = nil
		}
	}()

	idx, present := s.get(h)
	if !present {
		s.setLastErr(h, flighterrors.NewNotInitializedError("detect"))
		return nil
	}
	box := flight.BoundingBox{
		Min: flight.Vec3{X: boxMin[0], Y: boxMin[1], Z: boxMin[2]},
		Max: flight.Vec3{X: boxMax[0], Y: boxMax[1], Z: boxMax[2]},
	}
	buf, err := idx.Detect(context.Background(), box, false)
	s.setLastErr(h, err)
	if err != nil {
		return nil
	}
	return &FlatResult{Count: buf.Count, IDs: buf.IDs, buf: buf}
}

// Release returns a result buffer previously handed out by Detect.
func (s *Shim) Release(h Handle, result *FlatResult) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.setLastErr(h, flighterrors.NewInternalError("release", r))
			ok = false
		}
	}()

	idx, present := s.get(h)
	if !present {
		s.setLastErr(h, flighterrors.NewNotInitializedError("release"))
		return false
	}
	if result == nil {
		err := flighterrors.NewInvalidResultHandleError("release called with nil result")
		s.setLastErr(h, err)
		return false
	}
	err := idx.Release(result.buf)
	s.setLastErr(h, err)
	return err == nil
}

// Count returns the live flight count of the Index named by h, or 0 if h is
// unknown or a panic is recovered mid-call.
func (s *Shim) Count(h Handle) (n int) {
	defer func() {
		if r := recover(); r != nil {
			s.setLastErr(h, flighterrors.NewInternalError("count", r))
			n = 0
		}
	}()

	idx, present := s.get(h)
	if !present {
		return 0
	}
	return idx.Count()
}

func (s *Shim) sentinel() int64 {
	if s.cfg.SentinelValue == 0 {
		return DefaultSentinel
	}
	return s.cfg.SentinelValue
}
