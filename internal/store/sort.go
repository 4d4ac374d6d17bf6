package store

import "sort"

// Sort orders the live prefix ascending by X with a stable key-indexed
// sort: it computes an index permutation first, keyed by X, then applies
// that permutation to the record array and the airport arena in one pass
// via ReorderBy. This models the GPU key-value sort the spec describes
// without committing to a physical kernel — only the post-state ordering
// and offset consistency are guaranteed, as the spec requires.
func (s *Store) Sort() error {
	perm := make([]int, s.live)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return s.records[perm[a]].x < s.records[perm[b]].x
	})
	return s.ReorderBy(perm)
}

// LowerBound returns the first live slot whose X is >= x, or Len() if none.
// Requires the live prefix to already be sorted ascending by X.
func (s *Store) LowerBound(x int64) int {
	return sort.Search(s.live, func(i int) bool { return s.records[i].x >= x })
}

// UpperBound returns the first live slot whose X is > x, or Len() if none.
// Requires the live prefix to already be sorted ascending by X.
func (s *Store) UpperBound(x int64) int {
	return sort.Search(s.live, func(i int) bool { return s.records[i].x > x })
}
