// Package directory implements the ID Directory: a map from a flight's
// caller-chosen identifier to its current slot index, rebuilt in one linear
// pass whenever it is marked dirty by a sort, an add, or a removal.
package directory

// Directory maps live flight identifiers to slot indices. It starts dirty
// so the first lookup forces a rebuild even against an empty store.
type Directory struct {
	slots map[int64]int
	dirty bool
}

// New creates an empty, dirty Directory.
func New() *Directory {
	return &Directory{slots: make(map[int64]int), dirty: true}
}

// MarkDirty flags the directory as stale. Any sort, add, or removal must
// call this.
func (d *Directory) MarkDirty() { d.dirty = true }

// Dirty reports whether the directory needs rebuilding before use.
func (d *Directory) Dirty() bool { return d.dirty }

// Rebuild replaces the directory's contents in one linear pass over ids,
// where ids[slot] is the identifier currently held in that slot. Clears the
// dirty flag.
func (d *Directory) Rebuild(ids []int64) {
	slots := make(map[int64]int, len(ids))
	for slot, id := range ids {
		slots[id] = slot
	}
	d.slots = slots
	d.dirty = false
}

// IndexOf returns the slot holding id, or -1 if id is not present. The
// directory must not be dirty when this is called; callers are expected to
// Rebuild first.
func (d *Directory) IndexOf(id int64) int {
	if slot, ok := d.slots[id]; ok {
		return slot
	}
	return -1
}

// BatchIndexOf resolves each id independently, producing -1 for any id not
// present; unknown identifiers never abort the batch.
func (d *Directory) BatchIndexOf(ids []int64) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = d.IndexOf(id)
	}
	return out
}
