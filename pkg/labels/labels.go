// Package labels implements the label registry (spec §3.7, §4.6): named,
// independent snapshot chains sharing the same chunk store.
package labels

import "github.com/duskvault/chunkvault/pkg/vaulterrors"

// DefaultLabelID is reserved for the "Default" label, used whenever the
// caller doesn't specify one.
const DefaultLabelID uint64 = 1

// AllocateID is the sentinel meaning "the library should allocate a new
// id for this label".
const AllocateID uint64 = 0

// Label is one named snapshot chain.
type Label struct {
	ID               uint64
	Name             string
	LastSnapshotRef  SnapshotRef
}

// SnapshotRef is a value-typed pointer to a snapshot: which volume its
// Descriptor2 lives in, and the byte offset of that Descriptor2 within
// the volume. A zero SnapshotRef means "no snapshot yet".
type SnapshotRef struct {
	VolumeNumber uint64
	Offset       uint64
}

// IsZero reports whether r refers to no snapshot.
func (r SnapshotRef) IsZero() bool {
	return r == SnapshotRef{}
}

// Registry maps label id to Label. It always contains at least the
// reserved "Default" entry once any backup has been made against it;
// until then, id 1 may simply be absent.
type Registry struct {
	labels map[uint64]*Label
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{labels: make(map[uint64]*Label)}
}

// Get returns the label for id, if present.
func (r *Registry) Get(id uint64) (*Label, bool) {
	l, ok := r.labels[id]
	return l, ok
}

// All returns every label in the registry, in no particular order.
func (r *Registry) All() []*Label {
	out := make([]*Label, 0, len(r.labels))
	for _, l := range r.labels {
		out = append(out, l)
	}
	return out
}

// Len returns the number of labels in the registry.
func (r *Registry) Len() int {
	return len(r.labels)
}

// Resolve turns requestedID into a concrete label, allocating a new one
// (and, if name is non-empty, naming it) when requestedID is AllocateID.
// A requestedID that names an existing label ignores name (renaming is a
// separate, explicit operation).
func (r *Registry) Resolve(requestedID uint64, name string) *Label {
	if requestedID != AllocateID {
		if l, ok := r.labels[requestedID]; ok {
			return l
		}
		l := &Label{ID: requestedID, Name: name}
		r.labels[requestedID] = l
		return l
	}
	id := r.nextID()
	l := &Label{ID: id, Name: name}
	r.labels[id] = l
	return l
}

// nextID returns max(existing id) + 1, or 2 if the registry is empty
// (ids 0 and 1 are reserved per spec §3.7).
func (r *Registry) nextID() uint64 {
	if len(r.labels) == 0 {
		return 2
	}
	var max uint64
	for id := range r.labels {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// Rename updates a label's name in place, preserving its id and last
// snapshot ref.
func (r *Registry) Rename(id uint64, name string) error {
	l, ok := r.labels[id]
	if !ok {
		return vaulterrors.Newf(vaulterrors.GenericError, "no such label %d", id)
	}
	l.Name = name
	return nil
}

// SetLastSnapshot records the most recent snapshot committed for a label.
func (r *Registry) SetLastSnapshot(id uint64, ref SnapshotRef) {
	l, ok := r.labels[id]
	if !ok {
		l = &Label{ID: id}
		r.labels[id] = l
	}
	l.LastSnapshotRef = ref
}

// Put inserts or overwrites a label verbatim, used when rebuilding the
// registry from a volume's Descriptor1 label list on Init.
func (r *Registry) Put(l Label) {
	cp := l
	r.labels[l.ID] = &cp
}
