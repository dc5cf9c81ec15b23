// Package fakevolume is an in-memory volume.Volume double, grounded on
// original_source/src/fake_backup_volume.h: a volume implementation with
// no backing file, usable by library/backup/restore tests without
// touching disk. Unlike the original (which returns hand-seeded, canned
// fixtures), this fake is functionally complete: it stores chunk bytes and
// descriptor records in memory and behaves like a real volume, so tests
// exercise the same control flow they would against OnDiskVolume.
package fakevolume

import (
	"github.com/duskvault/chunkvault/pkg/chunkindex"
	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/volume"
	"github.com/duskvault/chunkvault/pkg/wire"
)

type storedChunk struct {
	digest   digest.Digest128
	payload  []byte
	encoding wire.EncodingType
}

// Volume is an in-memory stand-in for volume.OnDiskVolume.
type Volume struct {
	// Exists controls what Init does: if false, Init fails NoSuchFile
	// (mirroring a not-yet-created volume file) and Create is expected
	// next.
	Exists bool

	volumeNumber uint64
	cancelled    bool
	closeCalls   int

	chunks       *chunkindex.Index
	payloads     map[uint64]storedChunk // offset -> chunk
	nextOffset   uint64
	labelRecords []wire.Descriptor1Label

	snapshots          map[uint64]volume.Snapshot // offset -> snapshot
	descriptor2Present bool
	descriptor2Offset  uint64
}

// New returns a fake volume for volumeNumber. Set Exists = true before
// Init to simulate an already-on-disk volume.
func New(volumeNumber uint64) *Volume {
	return &Volume{
		volumeNumber: volumeNumber,
		chunks:       chunkindex.New(),
		payloads:     make(map[uint64]storedChunk),
		snapshots:    make(map[uint64]volume.Snapshot),
		nextOffset:   wire.MagicSize,
	}
}

func (v *Volume) Init() error {
	if !v.Exists {
		return vaulterrors.New(vaulterrors.NoSuchFile, "fake volume not created")
	}
	return nil
}

func (v *Volume) Create(opts volume.Options) error {
	v.volumeNumber = opts.VolumeNumber
	v.Exists = true
	return nil
}

func (v *Volume) HasChunk(d digest.Digest128) bool { return v.chunks.Has(d) }

func (v *Volume) GetChunks(idx *chunkindex.Index) { idx.Merge(v.chunks) }

func (v *Volume) WriteChunk(d digest.Digest128, payload []byte, unencodedSize uint64, encoding wire.EncodingType) (uint64, error) {
	offset := v.nextOffset
	cp := append([]byte(nil), payload...)
	v.payloads[offset] = storedChunk{digest: d, payload: cp, encoding: encoding}
	v.chunks.Insert(d, chunkindex.Entry{Offset: offset, VolumeNumber: v.volumeNumber})
	v.nextOffset += wire.ChunkHeaderSize + uint64(len(payload))
	return offset, nil
}

func (v *Volume) ReadChunk(fc wire.FileChunk) ([]byte, wire.EncodingType, error) {
	sc, ok := v.payloads[fc.VolumeOffset]
	if !ok {
		return nil, 0, vaulterrors.Newf(vaulterrors.CorruptBackup, "fake volume: no chunk at offset %d", fc.VolumeOffset)
	}
	if sc.digest != fc.Digest {
		return nil, 0, vaulterrors.Newf(vaulterrors.CorruptBackup, "fake volume: digest mismatch at offset %d", fc.VolumeOffset)
	}
	return sc.payload, sc.encoding, nil
}

func (v *Volume) Close(labelRecords []wire.Descriptor1Label) error {
	v.labelRecords = labelRecords
	v.closeCalls++
	return nil
}

// CloseCalls reports how many times Close, CloseWithSnapshot, or Cancel
// has been called, so tests can assert a volume was released exactly
// once instead of leaked or double-closed.
func (v *Volume) CloseCalls() int { return v.closeCalls }

func (v *Volume) Cancel(labelRecords []wire.Descriptor1Label) error {
	v.labelRecords = labelRecords
	v.cancelled = true
	v.descriptor2Present = false
	v.closeCalls++
	return nil
}

func (v *Volume) CloseWithSnapshot(snap *volume.Snapshot, labelRecords []wire.Descriptor1Label) error {
	v.labelRecords = labelRecords
	v.closeCalls++
	offset := v.nextOffset
	v.nextOffset++
	snap.SelfRef = labels.SnapshotRef{VolumeNumber: v.volumeNumber, Offset: offset}
	v.snapshots[offset] = *snap
	v.descriptor2Present = true
	v.descriptor2Offset = offset
	return nil
}

func (v *Volume) LoadSnapshots(loadAll bool) ([]volume.Snapshot, uint64, bool, error) {
	if !v.descriptor2Present {
		return nil, 0, false, vaulterrors.New(vaulterrors.NotLastVolume, "fake volume has no descriptor 2")
	}
	var out []volume.Snapshot
	offset := v.descriptor2Offset
	for {
		snap, err := v.ReadSnapshotAt(offset)
		if err != nil {
			return nil, 0, false, err
		}
		out = append(out, snap)
		if snap.PreviousRef.IsZero() {
			return out, 0, false, nil
		}
		if snap.Type == wire.BackupTypeFull && !loadAll {
			return out, 0, false, nil
		}
		if snap.PreviousRef.VolumeNumber != v.volumeNumber {
			return out, snap.PreviousRef.VolumeNumber, true, nil
		}
		offset = snap.PreviousRef.Offset
	}
}

func (v *Volume) ReadSnapshotAt(offset uint64) (volume.Snapshot, error) {
	snap, ok := v.snapshots[offset]
	if !ok {
		return volume.Snapshot{}, vaulterrors.Newf(vaulterrors.CorruptBackup, "fake volume: no snapshot at offset %d", offset)
	}
	return snap, nil
}

func (v *Volume) EstimatedSize() uint64 {
	return v.nextOffset + wire.Descriptor1Size + v.chunks.DiskSize()
}

func (v *Volume) LastSnapshotRef() (labels.SnapshotRef, bool) {
	if !v.descriptor2Present {
		return labels.SnapshotRef{}, false
	}
	return labels.SnapshotRef{VolumeNumber: v.volumeNumber, Offset: v.descriptor2Offset}, true
}

func (v *Volume) VolumeNumber() uint64            { return v.volumeNumber }
func (v *Volume) Cancelled() bool                 { return v.cancelled }
func (v *Volume) Descriptor2Present() bool        { return v.descriptor2Present }
func (v *Volume) Labels() []wire.Descriptor1Label { return v.labelRecords }

var _ volume.Volume = (*Volume)(nil)
