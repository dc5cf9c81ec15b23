// Package chunkindex implements the in-memory digest -> location map used
// both per-volume (to build that volume's Descriptor1 chunk list) and as
// the library-wide union used for dedup (spec §4.5).
package chunkindex

import "github.com/duskvault/chunkvault/pkg/digest"

// Entry locates a chunk's ChunkHeader within a specific volume.
type Entry struct {
	Offset       uint64
	VolumeNumber uint64
}

// approxRecordSize mirrors the on-disk size of a Descriptor1Chunk record,
// used to estimate how much space this index will occupy once flushed to
// disk (spec §4.7 estimated_size).
const approxRecordSize = 36

// Index is a digest -> Entry map that also remembers the order in which
// digests were first added. It is not safe for concurrent use: the core
// is single-writer, single-reader per spec §5.
type Index struct {
	entries map[digest.Digest128]Entry
	order   []digest.Digest128
}

// New returns an empty Index.
func New() *Index {
	return &Index{entries: make(map[digest.Digest128]Entry)}
}

// Has reports whether d is present.
func (idx *Index) Has(d digest.Digest128) bool {
	_, ok := idx.entries[d]
	return ok
}

// Get returns the entry for d, if present.
func (idx *Index) Get(d digest.Digest128) (Entry, bool) {
	e, ok := idx.entries[d]
	return e, ok
}

// Insert records (or overwrites) the location of d.
func (idx *Index) Insert(d digest.Digest128, e Entry) {
	if _, ok := idx.entries[d]; !ok {
		idx.order = append(idx.order, d)
	}
	idx.entries[d] = e
}

// Merge copies every entry of other into idx, in other's insertion order.
// On collision, other's entry wins (last-writer-wins); in practice a
// collision means the two chunks are identical, so either entry is a
// valid place to read the content back from.
func (idx *Index) Merge(other *Index) {
	for _, d := range other.order {
		idx.Insert(d, other.entries[d])
	}
}

// Len returns the number of distinct chunks indexed.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// DiskSize approximates the on-disk footprint of this index once written
// out as Descriptor1Chunk records.
func (idx *Index) DiskSize() uint64 {
	return uint64(len(idx.entries)) * approxRecordSize
}

// Each calls fn once per entry, in the order each digest was first
// inserted (spec §5: Descriptor 1 entries are emitted in the order
// chunks were added).
func (idx *Index) Each(fn func(d digest.Digest128, e Entry)) {
	for _, d := range idx.order {
		fn(d, idx.entries[d])
	}
}
