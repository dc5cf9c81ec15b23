package labels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAllocatesStartingAtTwo(t *testing.T) {
	r := New()
	l := r.Resolve(AllocateID, "Default")
	require.Equal(t, uint64(2), l.ID)

	l2 := r.Resolve(AllocateID, "Second")
	require.Equal(t, uint64(3), l2.ID)
}

func TestResolveReturnsExistingLabelByID(t *testing.T) {
	r := New()
	first := r.Resolve(AllocateID, "Default")
	again := r.Resolve(first.ID, "ignored name")
	require.Same(t, first, again)
	require.Equal(t, "Default", again.Name)
}

func TestRenamePreservesID(t *testing.T) {
	r := New()
	l := r.Resolve(AllocateID, "Old")
	require.NoError(t, r.Rename(l.ID, "New"))
	got, ok := r.Get(l.ID)
	require.True(t, ok)
	require.Equal(t, "New", got.Name)
	require.Equal(t, l.ID, got.ID)
}

func TestRenameUnknownLabelErrors(t *testing.T) {
	r := New()
	require.Error(t, r.Rename(42, "x"))
}

func TestSetLastSnapshotTracksRef(t *testing.T) {
	r := New()
	l := r.Resolve(AllocateID, "Default")
	r.SetLastSnapshot(l.ID, SnapshotRef{VolumeNumber: 3, Offset: 100})
	got, _ := r.Get(l.ID)
	require.Equal(t, SnapshotRef{VolumeNumber: 3, Offset: 100}, got.LastSnapshotRef)
}
