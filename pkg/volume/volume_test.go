package volume

import (
	"path/filepath"
	"testing"

	"github.com/duskvault/chunkvault/pkg/chunkindex"
	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/fsio"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/wire"
	"github.com/stretchr/testify/require"
)

func newTestVolume(t *testing.T, n uint64) (*OnDiskVolume, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "basename."+itoa(n)+".bkp")
	return New(fsio.NewOSFileIO(path)), path
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestInitOnMissingFileFailsNoSuchFile(t *testing.T) {
	v, _ := newTestVolume(t, 0)
	err := v.Init()
	require.Error(t, err)
	require.Equal(t, vaulterrors.NoSuchFile, vaulterrors.KindOf(err))
}

func TestCreateWriteChunkCloseThenInitRoundTrips(t *testing.T) {
	v, path := newTestVolume(t, 0)
	require.NoError(t, v.Create(Options{VolumeNumber: 0}))

	d := digest.Digest128{Hi: 1, Lo: 2}
	offset, err := v.WriteChunk(d, []byte("hello world"), 11, wire.EncodingRaw)
	require.NoError(t, err)
	require.True(t, v.HasChunk(d))

	require.NoError(t, v.Close(nil))

	v2 := New(fsio.NewOSFileIO(path))
	require.NoError(t, v2.Init())
	require.True(t, v2.HasChunk(d))
	require.False(t, v2.Descriptor2Present())

	payload, encoding, err := v2.ReadChunk(wire.FileChunk{Digest: d, VolumeOffset: offset})
	require.NoError(t, err)
	require.Equal(t, wire.EncodingRaw, encoding)
	require.Equal(t, []byte("hello world"), payload)
}

func TestWriteChunkThenGetChunksMergesIntoIndex(t *testing.T) {
	v, _ := newTestVolume(t, 0)
	require.NoError(t, v.Create(Options{VolumeNumber: 0}))

	d := digest.Digest128{Hi: 7}
	_, err := v.WriteChunk(d, []byte("x"), 1, wire.EncodingRaw)
	require.NoError(t, err)

	idx := chunkindex.New()
	v.GetChunks(idx)
	require.True(t, idx.Has(d))
}

func TestCloseWithSnapshotAndLoadSnapshots(t *testing.T) {
	v, path := newTestVolume(t, 0)
	require.NoError(t, v.Create(Options{VolumeNumber: 0}))

	d := digest.Digest128{Hi: 9}
	offset, err := v.WriteChunk(d, []byte("payload!"), 8, wire.EncodingRaw)
	require.NoError(t, err)

	snap := &Snapshot{
		Type:        wire.BackupTypeFull,
		LabelID:     labels.DefaultLabelID,
		Description: "first backup",
		Files: []FileEntry{
			{
				Meta: wire.BackupFile{
					FileSize: 8,
					FileType: wire.FileTypeRegular,
					FileName: "/a/b.txt",
				},
				Chunks: []wire.FileChunk{
					{Digest: d, VolumeNum: 0, VolumeOffset: offset, UnencodedSize: 8},
				},
			},
		},
	}
	labelRec := []wire.Descriptor1Label{{ID: labels.DefaultLabelID, Name: "Default"}}
	require.NoError(t, v.CloseWithSnapshot(snap, labelRec))
	require.False(t, snap.SelfRef.IsZero())

	v2 := New(fsio.NewOSFileIO(path))
	require.NoError(t, v2.Init())
	require.True(t, v2.Descriptor2Present())
	require.Len(t, v2.Labels(), 1)
	require.Equal(t, "Default", v2.Labels()[0].Name)

	snapshots, _, hasNext, err := v2.LoadSnapshots(true)
	require.NoError(t, err)
	require.False(t, hasNext)
	require.Len(t, snapshots, 1)
	require.Equal(t, "first backup", snapshots[0].Description)
	require.Len(t, snapshots[0].Files, 1)
	require.Equal(t, "/a/b.txt", snapshots[0].Files[0].Meta.FileName)
	require.Len(t, snapshots[0].Files[0].Chunks, 1)
}

// TestLoadSnapshotsTerminatesOnZeroRefEvenOnNonZeroVolume reproduces a
// first backup whose write volume rolled over before the snapshot was
// closed: the snapshot's own volume number is 1, but PreviousRef is the
// zero ref (no earlier snapshot exists anywhere). LoadSnapshots must
// terminate rather than read the zero ref as "jump to volume 0".
func TestLoadSnapshotsTerminatesOnZeroRefEvenOnNonZeroVolume(t *testing.T) {
	v, path := newTestVolume(t, 1)
	require.NoError(t, v.Create(Options{VolumeNumber: 1}))

	snap := &Snapshot{
		Type:        wire.BackupTypeFull,
		LabelID:     labels.DefaultLabelID,
		Description: "first backup on volume 1",
	}
	require.NoError(t, v.CloseWithSnapshot(snap, nil))

	v2 := New(fsio.NewOSFileIO(path))
	require.NoError(t, v2.Init())

	snapshots, _, hasNext, err := v2.LoadSnapshots(true)
	require.NoError(t, err)
	require.False(t, hasNext)
	require.Len(t, snapshots, 1)
}

func TestCancelKeepsChunksButMarksCancelled(t *testing.T) {
	v, path := newTestVolume(t, 0)
	require.NoError(t, v.Create(Options{VolumeNumber: 0}))

	d := digest.Digest128{Hi: 3}
	_, err := v.WriteChunk(d, []byte("abc"), 3, wire.EncodingRaw)
	require.NoError(t, err)
	require.NoError(t, v.Cancel(nil))

	v2 := New(fsio.NewOSFileIO(path))
	require.NoError(t, v2.Init())
	require.True(t, v2.Cancelled())
	require.False(t, v2.Descriptor2Present())
	require.True(t, v2.HasChunk(d))
}

func TestReadChunkDetectsDigestMismatch(t *testing.T) {
	v, path := newTestVolume(t, 0)
	require.NoError(t, v.Create(Options{VolumeNumber: 0}))
	d := digest.Digest128{Hi: 1}
	offset, err := v.WriteChunk(d, []byte("data"), 4, wire.EncodingRaw)
	require.NoError(t, err)
	require.NoError(t, v.Close(nil))

	v2 := New(fsio.NewOSFileIO(path))
	require.NoError(t, v2.Init())
	_, _, err = v2.ReadChunk(wire.FileChunk{Digest: digest.Digest128{Hi: 999}, VolumeOffset: offset})
	require.Error(t, err)
}

func TestLastSnapshotRefReflectsDescriptor2(t *testing.T) {
	v, _ := newTestVolume(t, 0)
	require.NoError(t, v.Create(Options{VolumeNumber: 0}))
	_, ok := v.LastSnapshotRef()
	require.False(t, ok)

	snap := &Snapshot{Type: wire.BackupTypeFull}
	require.NoError(t, v.CloseWithSnapshot(snap, nil))
	ref, ok := v.LastSnapshotRef()
	require.True(t, ok)
	require.Equal(t, snap.SelfRef, ref)
}

func TestEstimatedSizeGrowsWithChunks(t *testing.T) {
	v, _ := newTestVolume(t, 0)
	require.NoError(t, v.Create(Options{VolumeNumber: 0}))
	before := v.EstimatedSize()
	_, err := v.WriteChunk(digest.Digest128{Hi: 1}, []byte("0123456789"), 10, wire.EncodingRaw)
	require.NoError(t, err)
	after := v.EstimatedSize()
	require.Greater(t, after, before)
}
