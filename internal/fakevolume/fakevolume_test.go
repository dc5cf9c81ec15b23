package fakevolume

import (
	"testing"

	"github.com/duskvault/chunkvault/pkg/chunkindex"
	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/volume"
	"github.com/duskvault/chunkvault/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestInitFailsUntilCreated(t *testing.T) {
	v := New(0)
	require.Error(t, v.Init())
	require.NoError(t, v.Create(volume.Options{VolumeNumber: 0}))
	require.NoError(t, v.Init())
}

func TestWriteReadChunkRoundTrip(t *testing.T) {
	v := New(0)
	require.NoError(t, v.Create(volume.Options{VolumeNumber: 0}))

	d := digest.Digest128{Hi: 1, Lo: 2}
	offset, err := v.WriteChunk(d, []byte("hello"), 5, wire.EncodingRaw)
	require.NoError(t, err)
	require.True(t, v.HasChunk(d))

	payload, encoding, err := v.ReadChunk(wire.FileChunk{Digest: d, VolumeOffset: offset})
	require.NoError(t, err)
	require.Equal(t, wire.EncodingRaw, encoding)
	require.Equal(t, []byte("hello"), payload)
}

func TestGetChunksMergesIntoCallerIndex(t *testing.T) {
	v := New(0)
	require.NoError(t, v.Create(volume.Options{VolumeNumber: 0}))
	d := digest.Digest128{Hi: 5}
	_, err := v.WriteChunk(d, []byte("z"), 1, wire.EncodingRaw)
	require.NoError(t, err)

	idx := chunkindex.New()
	v.GetChunks(idx)
	require.True(t, idx.Has(d))
}

func TestCloseWithSnapshotThenLoadSnapshots(t *testing.T) {
	v := New(0)
	require.NoError(t, v.Create(volume.Options{VolumeNumber: 0}))

	snap := &volume.Snapshot{Type: wire.BackupTypeFull, Description: "full 1"}
	require.NoError(t, v.CloseWithSnapshot(snap, nil))
	require.False(t, snap.SelfRef.IsZero())

	snapshots, _, hasNext, err := v.LoadSnapshots(true)
	require.NoError(t, err)
	require.False(t, hasNext)
	require.Len(t, snapshots, 1)
	require.Equal(t, "full 1", snapshots[0].Description)
}

func TestLoadSnapshotsTerminatesOnZeroRefEvenOnNonZeroVolume(t *testing.T) {
	v := New(1)
	require.NoError(t, v.Create(volume.Options{VolumeNumber: 1}))

	snap := &volume.Snapshot{Type: wire.BackupTypeFull, Description: "first backup on volume 1"}
	require.NoError(t, v.CloseWithSnapshot(snap, nil))

	snapshots, _, hasNext, err := v.LoadSnapshots(true)
	require.NoError(t, err)
	require.False(t, hasNext)
	require.Len(t, snapshots, 1)
}

func TestCancelMarksCancelledAndKeepsChunks(t *testing.T) {
	v := New(0)
	require.NoError(t, v.Create(volume.Options{VolumeNumber: 0}))
	d := digest.Digest128{Hi: 1}
	_, err := v.WriteChunk(d, []byte("a"), 1, wire.EncodingRaw)
	require.NoError(t, err)
	require.NoError(t, v.Cancel(nil))
	require.True(t, v.Cancelled())
	require.True(t, v.HasChunk(d))
}

func TestLoadSnapshotsWithoutDescriptor2Fails(t *testing.T) {
	v := New(0)
	require.NoError(t, v.Create(volume.Options{VolumeNumber: 0}))
	_, _, _, err := v.LoadSnapshots(true)
	require.Error(t, err)
}

var _ volume.Volume = (*Volume)(nil)
