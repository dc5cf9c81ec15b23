// Package library implements the cross-volume coordinator (spec §3.8,
// §4.7): chunk deduplication across an entire volume series, label-scoped
// snapshot history, bin-packing, and volume roll-over. It plays the same
// role `BackupLibrary` plays in original_source/src/backup_library.cc,
// generalized to support the label registry (spec §3.7) the original
// didn't have.
package library

import (
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/duskvault/chunkvault/pkg/chunkindex"
	"github.com/duskvault/chunkvault/pkg/codec"
	"github.com/duskvault/chunkvault/pkg/consts"
	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/fsio"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/options"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/volume"
	"github.com/duskvault/chunkvault/pkg/wire"
)

// VolumeFactory returns an unopened Volume bound to path. The library
// calls Init or Create on the result itself.
type VolumeFactory func(path string) volume.Volume

// BackupCreateOptions describes the snapshot a CreateBackup call is about
// to build.
type BackupCreateOptions struct {
	Type        wire.BackupType
	Description string
	// LabelID selects an existing label, or labels.AllocateID to create
	// one named LabelName.
	LabelID   uint64
	LabelName string
}

// Library coordinates reads and writes across an entire `basename.N.bkp`
// series (spec §3.8).
type Library struct {
	basename   string
	lastVolume uint64

	hasher        digest.Hasher
	encoder       codec.Encoder
	volumeFactory VolumeFactory
	opts          options.Options
	log           logr.Logger

	unionIndex *chunkindex.Index
	registry   *labels.Registry

	// Single-slot volume cache, mirroring the teacher-adjacent original's
	// cached_backup_volume_ (spec §4.7 "at least one slot").
	cachedVolume       volume.Volume
	cachedVolumeNumber uint64
	cachedVolumeValid  bool

	currentWriteVolume volume.Volume
	currentSnapshot    *volume.Snapshot
}

// New constructs a Library for the volume series rooted at path (any
// existing `basename.N.bkp` path, or one that doesn't exist yet).
func New(path string, hasher digest.Hasher, encoder codec.Encoder, factory VolumeFactory, opts ...options.Option) *Library {
	o := options.New(opts...)
	return &Library{
		basename:      path,
		hasher:        hasher,
		encoder:       encoder,
		volumeFactory: factory,
		opts:          o,
		log:           o.Logger,
		unionIndex:    chunkindex.New(),
		registry:      labels.New(),
	}
}

// Init derives (basename, last_volume) from sibling enumeration and loads
// the active label registry from the highest non-cancelled volume (spec
// §4.7 "Label union"). If path doesn't exist, Init succeeds with an empty
// library ready to create volume 0.
func (l *Library) Init() error {
	basename, lastVolume, count, err := fsio.FindBasenameAndLastVolume(l.basename)
	if err != nil {
		return err
	}
	l.basename = basename
	l.lastVolume = lastVolume
	if count == 0 {
		return nil
	}

	for v := int64(lastVolume); v >= 0; v-- {
		vol, err := l.getVolume(uint64(v), false)
		if err != nil {
			if vaulterrors.KindOf(err) == vaulterrors.NoSuchFile {
				continue
			}
			return err
		}
		if vol.Cancelled() {
			continue
		}
		l.loadRegistryFrom(vol)
		return nil
	}
	l.log.Info("no non-cancelled volume found, starting with an empty label registry")
	return nil
}

func (l *Library) loadRegistryFrom(vol volume.Volume) {
	reg := labels.New()
	for _, rec := range vol.Labels() {
		reg.Put(labels.Label{
			ID:   rec.ID,
			Name: rec.Name,
			LastSnapshotRef: labels.SnapshotRef{
				VolumeNumber: rec.LastBackupVolume,
				Offset:       rec.LastBackupOffset,
			},
		})
	}
	l.registry = reg
}

func (l *Library) volumePath(n uint64) string {
	return fsio.VolumePath(l.basename, n)
}

// getVolume returns the volume for n, using the single-slot cache when
// possible. If the volume doesn't exist and createIfNotExist is true, a
// fresh one is created in its place.
func (l *Library) getVolume(n uint64, createIfNotExist bool) (volume.Volume, error) {
	if l.cachedVolumeValid && l.cachedVolumeNumber == n {
		return l.cachedVolume, nil
	}

	vol := l.volumeFactory(l.volumePath(n))
	err := vol.Init()
	if err != nil {
		if vaulterrors.KindOf(err) != vaulterrors.NoSuchFile {
			return nil, err
		}
		if !createIfNotExist {
			return nil, err
		}
		if err := vol.Create(volume.Options{VolumeNumber: n}); err != nil {
			return nil, err
		}
	}

	l.cachedVolume = vol
	l.cachedVolumeNumber = n
	l.cachedVolumeValid = true
	return vol, nil
}

// LoadAllChunkData iterates volumes from highest to lowest, merging each
// one's chunk entries into the union index (spec §4.7). Idempotent.
func (l *Library) LoadAllChunkData() error {
	for v := int64(l.lastVolume); v >= 0; v-- {
		vol, err := l.getVolume(uint64(v), false)
		if err != nil {
			return err
		}
		vol.GetChunks(l.unionIndex)
	}
	return nil
}

// findMostRecentSnapshotRef scans volumes from highest to lowest for the
// first non-cancelled one with a descriptor 2. Because volumes are
// written in strict temporal order, that volume's own last snapshot is
// exactly the library-wide most recent snapshot (spec §4.7 step 3).
func (l *Library) findMostRecentSnapshotRef() (labels.SnapshotRef, error) {
	for v := int64(l.lastVolume); v >= 0; v-- {
		vol, err := l.getVolume(uint64(v), false)
		if err != nil {
			if vaulterrors.KindOf(err) == vaulterrors.NoSuchFile {
				continue
			}
			return labels.SnapshotRef{}, err
		}
		if vol.Cancelled() {
			continue
		}
		if ref, ok := vol.LastSnapshotRef(); ok {
			return ref, nil
		}
	}
	return labels.SnapshotRef{}, nil
}

// CreateBackup prepares a new snapshot for writing: it resolves/creates
// the target label, loads the chunk union if needed, picks the write
// volume (bin-packing per spec §4.7), and opens the new snapshot's
// previous/parent refs.
func (l *Library) CreateBackup(o BackupCreateOptions) error {
	label := l.registry.Resolve(o.LabelID, o.LabelName)

	if l.unionIndex.Len() == 0 {
		if err := l.LoadAllChunkData(); err != nil && vaulterrors.KindOf(err) != vaulterrors.NoSuchFile {
			return err
		}
	}

	var writeVolNum uint64
	if l.unionIndex.Len() == 0 {
		writeVolNum = 0
	} else {
		existing, err := l.getVolume(l.lastVolume, true)
		if err != nil {
			return err
		}
		thresholdBytes := uint64(consts.MaxSizeThresholdMB) * 1024 * 1024
		maxBytes := l.opts.MaxVolumeSizeMB * 1024 * 1024
		if l.opts.MaxVolumeSizeMB > 0 && existing.EstimatedSize()+thresholdBytes <= maxBytes {
			writeVolNum = l.lastVolume
		} else {
			if err := existing.Close(nil); err != nil {
				return err
			}
			l.cachedVolumeValid = false
			l.lastVolume++
			writeVolNum = l.lastVolume
		}
	}

	vol, err := l.getVolume(writeVolNum, true)
	if err != nil {
		return err
	}
	l.currentWriteVolume = vol

	previousRef, err := l.findMostRecentSnapshotRef()
	if err != nil {
		return err
	}

	l.currentSnapshot = &volume.Snapshot{
		PreviousRef: previousRef,
		ParentRef:   label.LastSnapshotRef,
		Type:        o.Type,
		LabelID:     label.ID,
		Description: o.Description,
	}
	return nil
}

// CreateFile starts a new file entry within the backup currently being
// built.
func (l *Library) CreateFile(meta wire.BackupFile) *volume.FileEntry {
	l.currentSnapshot.Files = append(l.currentSnapshot.Files, volume.FileEntry{Meta: meta})
	return &l.currentSnapshot.Files[len(l.currentSnapshot.Files)-1]
}

// AddChunk hashes data, de-duplicates against the union index, and
// otherwise writes it to the current write volume, appending the
// resulting FileChunk reference to entry (spec §4.7 "Adding chunks").
func (l *Library) AddChunk(data []byte, fileOffset uint64, entry *volume.FileEntry) error {
	d := l.hasher.Sum(data)
	l.currentSnapshot.UnencodedSize += uint64(len(data))

	if e, ok := l.unionIndex.Get(d); ok {
		entry.Chunks = append(entry.Chunks, wire.FileChunk{
			Digest: d, VolumeNum: e.VolumeNumber, VolumeOffset: e.Offset,
			ChunkOffset: fileOffset, UnencodedSize: uint64(len(data)),
		})
		l.currentSnapshot.DeduplicatedSize += uint64(len(data))
		return nil
	}

	payload := data
	encoding := wire.EncodingRaw
	if l.opts.EnableCompression {
		encoded, kind, err := l.encoder.Encode(data)
		if err != nil {
			return err
		}
		payload, encoding = encoded, kind
	}

	offset, err := l.currentWriteVolume.WriteChunk(d, payload, uint64(len(data)), encoding)
	if err != nil {
		return err
	}
	l.currentSnapshot.EncodedSize += uint64(len(payload))

	volNum := l.currentWriteVolume.VolumeNumber()
	l.unionIndex.Insert(d, chunkindex.Entry{Offset: offset, VolumeNumber: volNum})
	entry.Chunks = append(entry.Chunks, wire.FileChunk{
		Digest: d, VolumeNum: volNum, VolumeOffset: offset,
		ChunkOffset: fileOffset, UnencodedSize: uint64(len(data)),
	})

	if l.opts.MaxVolumeSizeMB > 0 && l.currentWriteVolume.EstimatedSize() >= l.opts.MaxVolumeSizeMB*1024*1024 {
		return l.rollOverWriteVolume()
	}
	return nil
}

func (l *Library) rollOverWriteVolume() error {
	if err := l.currentWriteVolume.Close(l.buildLabelRecords()); err != nil {
		return err
	}
	l.lastVolume++
	vol, err := l.getVolume(l.lastVolume, true)
	if err != nil {
		return err
	}
	l.currentWriteVolume = vol
	return nil
}

func (l *Library) buildLabelRecords() []wire.Descriptor1Label {
	all := l.registry.All()
	recs := make([]wire.Descriptor1Label, 0, len(all))
	for _, lb := range all {
		recs = append(recs, wire.Descriptor1Label{
			ID:               lb.ID,
			Name:             lb.Name,
			LastBackupOffset: lb.LastSnapshotRef.Offset,
			LastBackupVolume: lb.LastSnapshotRef.VolumeNumber,
		})
	}
	return recs
}

// ReadChunk resolves, decodes, and verifies one chunk (spec §4.7 "Reading
// chunks").
func (l *Library) ReadChunk(fc wire.FileChunk) ([]byte, error) {
	vol, err := l.getVolumeForRead(fc.VolumeNum)
	if err != nil {
		return nil, err
	}
	payload, encoding, err := vol.ReadChunk(fc)
	if err != nil {
		return nil, err
	}
	result, err := l.encoder.Decode(payload, encoding, int(fc.UnencodedSize))
	if err != nil {
		return nil, err
	}
	if got := l.hasher.Sum(result); got != fc.Digest {
		return nil, vaulterrors.New(vaulterrors.CorruptBackup, "chunk digest mismatch on read")
	}
	return result, nil
}

// getVolumeForRead resolves a volume for reading, invoking the
// VolumeChangeCallback if it can't be found at its conventional path.
func (l *Library) getVolumeForRead(n uint64) (volume.Volume, error) {
	vol, err := l.getVolume(n, false)
	if err == nil {
		return vol, nil
	}
	if vaulterrors.KindOf(err) != vaulterrors.NoSuchFile || l.opts.VolumeChangeCallback == nil {
		return nil, err
	}
	expected := l.volumePath(n)
	dir := l.opts.VolumeChangeCallback(expected)
	if dir == "" {
		return nil, vaulterrors.Wrap(vaulterrors.NoSuchFile, err, "volume change cancelled by caller")
	}
	vol = l.volumeFactory(filepath.Join(dir, filepath.Base(expected)))
	if err := vol.Init(); err != nil {
		return nil, err
	}
	l.cachedVolume, l.cachedVolumeNumber, l.cachedVolumeValid = vol, n, true
	return vol, nil
}

// CloseBackup finalizes the in-progress snapshot on the current write
// volume and updates the label registry to point at it.
func (l *Library) CloseBackup() error {
	if l.currentWriteVolume == nil || l.currentSnapshot == nil {
		return vaulterrors.New(vaulterrors.GenericError, "no backup in progress")
	}
	if err := l.currentWriteVolume.CloseWithSnapshot(l.currentSnapshot, l.buildLabelRecords()); err != nil {
		return err
	}
	l.registry.SetLastSnapshot(l.currentSnapshot.LabelID, l.currentSnapshot.SelfRef)
	l.currentWriteVolume = nil
	l.currentSnapshot = nil
	return nil
}

// CancelBackup aborts the in-progress snapshot: the write volume is
// closed as cancelled (spec §4.4/§4.8), its chunks remain dedup-usable,
// but no snapshot is recorded.
func (l *Library) CancelBackup() error {
	if l.currentWriteVolume == nil {
		return nil
	}
	err := l.currentWriteVolume.Cancel(l.buildLabelRecords())
	l.currentWriteVolume = nil
	l.currentSnapshot = nil
	return err
}

// LoadSnapshots walks labelID's parent_snapshot_ref chain newest to
// oldest, resolving cross-volume references as needed (spec §4.7
// "Snapshot loading").
func (l *Library) LoadSnapshots(labelID uint64, loadAll bool) ([]volume.Snapshot, error) {
	label, ok := l.registry.Get(labelID)
	if !ok || label.LastSnapshotRef.IsZero() {
		return nil, nil
	}

	var snapshots []volume.Snapshot
	ref := label.LastSnapshotRef
	for !ref.IsZero() {
		vol, err := l.getVolumeForRead(ref.VolumeNumber)
		if err != nil {
			return snapshots, err
		}
		snap, err := vol.ReadSnapshotAt(ref.Offset)
		if err != nil {
			return snapshots, err
		}
		snapshots = append(snapshots, snap)
		if snap.Type == wire.BackupTypeFull && !loadAll {
			break
		}
		ref = snap.ParentRef
	}
	return snapshots, nil
}

// Labels returns every label currently known to the library.
func (l *Library) Labels() []*labels.Label {
	return l.registry.All()
}

// RenameLabel renames a label in place, preserving its id.
func (l *Library) RenameLabel(id uint64, name string) error {
	return l.registry.Rename(id, name)
}

// LastVolume returns the highest volume number this library has on disk.
func (l *Library) LastVolume() uint64 {
	return l.lastVolume
}
