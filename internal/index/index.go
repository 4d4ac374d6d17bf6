// Package index implements the Mutator and Sweep Query against the Device
// Store and ID Directory, tying them together into the single stateful
// object the rest of the spec calls "the Index."
package index

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arxos/flightindex/internal/config"
	"github.com/arxos/flightindex/internal/directory"
	"github.com/arxos/flightindex/internal/flight"
	"github.com/arxos/flightindex/internal/flighterrors"
	"github.com/arxos/flightindex/internal/logger"
	"github.com/arxos/flightindex/internal/metrics"
	"github.com/arxos/flightindex/internal/store"
)

// ResultBuffer is the densely packed output of a Sweep Query: a count and
// that many identifiers in ascending slot order. It is owned by the Index
// until released.
type ResultBuffer struct {
	Count int
	IDs   []int64
}

// Index is the single stateful object the rest of the package composes:
// Device Store, ID Directory, sort-validity bit, and the result-buffer
// registry, all guarded by one mutex as a misuse guardrail (the engine's
// synchronous contract, not a concurrency feature — see SPEC_FULL.md §5).
type Index struct {
	mu sync.Mutex

	id uuid.UUID

	store *store.Store
	dir   *directory.Directory

	sortValid   bool
	initialized bool

	cfg     config.EngineConfig
	metrics *metrics.Metrics
	log     *logger.Logger

	results     map[*ResultBuffer]struct{}
	staticEmpty *ResultBuffer
}

// New creates an Index with the given tuning config and metrics sink. m may
// be nil, in which case no metrics are recorded.
func New(cfg config.EngineConfig, m *metrics.Metrics) *Index {
	id := uuid.New()
	return &Index{
		id:          id,
		store:       store.New(cfg.MinCapacity, m),
		dir:         directory.New(),
		cfg:         cfg,
		metrics:     m,
		log:         logger.New(logger.INFO).WithTag(id.String()),
		results:     make(map[*ResultBuffer]struct{}),
		staticEmpty: &ResultBuffer{Count: 0, IDs: nil},
	}
}

// ID returns the Index's diagnostic UUID, logged alongside every error so
// multiple Index instances can be told apart in shared log output.
func (idx *Index) ID() uuid.UUID { return idx.id }

func (idx *Index) observe(operation string, err error) {
	if idx.metrics != nil {
		idx.metrics.ObserveOperation(operation, err == nil)
	}
	if err != nil {
		idx.log.Error("%s failed: %v", operation, err)
	} else {
		idx.log.Debug("%s ok", operation)
	}
}

// Initialize replaces any existing state with batch, per Mutator.initialize.
// An empty batch is legal.
func (idx *Index) Initialize(batch []flight.Flight) (err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	defer func() { idx.observe("initialize", err) }()
	defer flighterrors.Recover(&err, "initialize")

	if err = validateBatch(batch); err != nil {
		return err
	}
	if err = idx.store.Reset(batch); err != nil {
		return err
	}
	idx.initialized = true
	idx.sortValid = false
	idx.dir.MarkDirty()
	return nil
}

// Add appends batch at the tail, per Mutator.add.
func (idx *Index) Add(batch []flight.Flight) (err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	defer func() { idx.observe("add", err) }()
	defer flighterrors.Recover(&err, "add")

	if err = validateBatch(batch); err != nil {
		return err
	}
	if err = idx.store.Append(batch); err != nil {
		return err
	}
	idx.initialized = true
	idx.sortValid = false
	idx.dir.MarkDirty()
	return nil
}

func validateBatch(batch []flight.Flight) error {
	seen := make(map[int64]bool, len(batch))
	for _, f := range batch {
		if seen[f.ID] {
			return flighterrors.NewMalformedBatchError("duplicate identifier within batch").WithDetails("id", f.ID)
		}
		seen[f.ID] = true
		if len(f.Position.Airports) == 0 {
			return flighterrors.NewMalformedBatchError("flight has no airports").WithDetails("id", f.ID)
		}
		if f.Duration < 0 {
			return flighterrors.NewMalformedBatchError("negative duration").WithDetails("id", f.ID)
		}
	}
	return nil
}

func (idx *Index) rebuildDirectoryIfDirty() {
	if idx.dir.Dirty() {
		idx.dir.Rebuild(idx.store.IDs())
	}
}

// Update overwrites position and duration for each (id, position, duration)
// triple, per Mutator.update. Resolves every id first so an unknown
// identifier fails the whole batch before any mutation is applied.
func (idx *Index) Update(ids []int64, positions []flight.Position, durations []int64) (err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	defer func() { idx.observe("update", err) }()
	defer flighterrors.Recover(&err, "update")

	if !idx.initialized {
		return flighterrors.NewNotInitializedError("update")
	}
	if len(ids) != len(positions) || len(ids) != len(durations) {
		return flighterrors.NewMalformedBatchError("ids/positions/durations length mismatch")
	}
	if err = validateUpdateTriples(ids, positions, durations); err != nil {
		return err
	}

	idx.rebuildDirectoryIfDirty()
	slots := make([]int, len(ids))
	for i, id := range ids {
		slot := idx.dir.IndexOf(id)
		if slot == -1 {
			return flighterrors.NewUnknownIdentifierError(id)
		}
		slots[i] = slot
	}

	xChanged := false
	for i, slot := range slots {
		changed, err := idx.store.UpdateAt(slot, positions[i].X, durations[i], positions[i].Airports)
		if err != nil {
			return err
		}
		xChanged = xChanged || changed
	}
	if xChanged {
		idx.sortValid = false
	}
	return nil
}

// validateUpdateTriples applies the same per-record shape checks Add and
// Initialize run on a batch — no empty airport list, no negative duration —
// to each (id, position, duration) update triple before any mutation is
// applied, per SPEC_FULL §11.
func validateUpdateTriples(ids []int64, positions []flight.Position, durations []int64) error {
	for i, id := range ids {
		if len(positions[i].Airports) == 0 {
			return flighterrors.NewMalformedBatchError("flight has no airports").WithDetails("id", id)
		}
		if durations[i] < 0 {
			return flighterrors.NewMalformedBatchError("negative duration").WithDetails("id", id)
		}
	}
	return nil
}

// Remove tombstones and compacts away each live flight named in ids.
// Identifiers that are not currently live are silently skipped — the spec
// does not classify an unknown id on remove as an error the way it does for
// update.
func (idx *Index) Remove(ids []int64) (err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	defer func() { idx.observe("remove", err) }()
	defer flighterrors.Recover(&err, "remove")

	if !idx.initialized {
		return flighterrors.NewNotInitializedError("remove")
	}

	idx.rebuildDirectoryIfDirty()
	removedSlots := make(map[int]bool, len(ids))
	for _, id := range ids {
		if slot := idx.dir.IndexOf(id); slot != -1 {
			removedSlots[slot] = true
		}
	}
	idx.store.Compact(removedSlots)
	idx.sortValid = false
	idx.dir.MarkDirty()
	return nil
}

// Count returns the current live flight count.
func (idx *Index) Count() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.store.Len()
}

// IndexOf returns the slot holding id, or -1 if not present, rebuilding the
// Directory first if it is dirty.
func (idx *Index) IndexOf(id int64) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rebuildDirectoryIfDirty()
	return idx.dir.IndexOf(id)
}

func (idx *Index) ensureSorted() error {
	if idx.sortValid {
		return nil
	}
	start := time.Now()
	if err := idx.store.Sort(); err != nil {
		return err
	}
	if idx.metrics != nil {
		idx.metrics.ObserveSort(time.Since(start).Seconds())
	}
	idx.sortValid = true
	idx.dir.MarkDirty()
	return nil
}

// Detect runs the Sweep Query: a bracketed, parallel classification of the
// sorted flight array against box, optionally marking every hit
// recalculating. It blocks until every shard's classification and the
// result assembly have completed, matching the engine's synchronous
// boundary — ctx only bounds the internal fan-out early if canceled.
func (idx *Index) Detect(ctx context.Context, box flight.BoundingBox, autoMarkRecalculating bool) (buf *ResultBuffer, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	start := time.Now()
	defer func() {
		idx.observe("detect", err)
		if idx.metrics != nil {
			idx.metrics.ObserveSweep(time.Since(start).Seconds())
		}
	}()
	defer flighterrors.Recover(&err, "detect")

	if ctx == nil {
		ctx = context.Background()
	}
	if !idx.initialized {
		return nil, flighterrors.NewNotInitializedError("detect")
	}
	if err = idx.ensureSorted(); err != nil {
		return nil, err
	}

	xLo := box.Min.X - idx.store.LongestDuration()
	xHi := box.Max.X
	lo := idx.store.LowerBound(xLo)
	hi := idx.store.UpperBound(xHi)
	if lo == hi {
		return idx.staticEmpty, nil
	}

	hits, err := idx.classifyBracket(ctx, lo, hi, box)
	if err != nil {
		return nil, err
	}

	if autoMarkRecalculating {
		for _, slot := range hits.slots {
			idx.store.SetRecalculating(slot, true)
		}
	}

	result := &ResultBuffer{Count: len(hits.ids), IDs: hits.ids}
	idx.results[result] = struct{}{}
	return result, nil
}

type bracketHits struct {
	slots []int
	ids   []int64
}

// classifyBracket fans slot classification for [lo, hi) across up to
// cfg.SweepWorkerCount shards (GOMAXPROCS if unset) via an errgroup, then
// reassembles the per-shard hits in ascending slot order. All shards join
// before this returns.
func (idx *Index) classifyBracket(ctx context.Context, lo, hi int, box flight.BoundingBox) (bracketHits, error) {
	workers := idx.cfg.SweepWorkerCount
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := hi - lo
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	shardSize := (n + workers - 1) / workers

	shardSlots := make([][]int, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		shardStart := lo + w*shardSize
		shardEnd := shardStart + shardSize
		if shardEnd > hi {
			shardEnd = hi
		}
		if shardStart >= shardEnd {
			continue
		}
		g.Go(func() error {
			local := make([]int, 0)
			for s := shardStart; s < shardEnd; s++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				if idx.slotMatches(s, box) {
					local = append(local, s)
				}
			}
			shardSlots[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return bracketHits{}, err
	}

	var slots []int
	for _, shard := range shardSlots {
		slots = append(slots, shard...)
	}
	sort.Ints(slots)

	ids := make([]int64, len(slots))
	for i, s := range slots {
		ids[i] = idx.store.ID(s)
	}
	return bracketHits{slots: slots, ids: ids}, nil
}

func (idx *Index) slotMatches(slot int, box flight.BoundingBox) bool {
	if idx.store.Recalculating(slot) {
		return false
	}
	x := idx.store.X(slot)
	duration := idx.store.Duration(slot)
	if box.Min.X > x+duration || x > box.Max.X {
		return false
	}
	for j := 0; j < idx.store.AirportCount(slot); j++ {
		a := idx.store.AirportAt(slot, j)
		if a.Y >= box.Min.Y && a.Y <= box.Max.Y && a.Z >= box.Min.Z && a.Z <= box.Max.Z {
			return true
		}
	}
	return false
}

// Release returns a result buffer previously handed out by Detect.
// Releasing nil, a foreign pointer, or an already-released buffer fails
// with InvalidResultHandle. The static empty buffer is accepted as a
// no-op.
func (idx *Index) Release(buf *ResultBuffer) (err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	defer func() { idx.observe("release", err) }()
	defer flighterrors.Recover(&err, "release")

	if buf == nil {
		return flighterrors.NewInvalidResultHandleError("release called with nil buffer")
	}
	if buf == idx.staticEmpty {
		return nil
	}
	if _, ok := idx.results[buf]; !ok {
		return flighterrors.NewInvalidResultHandleError("release called on untracked or already-released buffer")
	}
	delete(idx.results, buf)
	return nil
}
