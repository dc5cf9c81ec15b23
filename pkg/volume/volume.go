// Package volume implements the Volume capability (spec §3.3/§4.4): one
// self-describing `.bkp` file holding chunk blobs, a per-volume chunk/label
// index (Descriptor1), an optional per-snapshot trailer (Descriptor2), and
// a fixed descriptor header at EOF. The layout and the back-to-front read
// order (header, then descriptor1, then descriptor2) mirror the teacher's
// `pkg/iso9660/descriptor` package, which parses a sequence of packed
// records terminated by a fixed marker.
package volume

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/chunkindex"
	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/fsio"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/wire"
)

// Options configures a newly created volume.
type Options struct {
	VolumeNumber uint64
}

// Volume is the capability set implemented by a single `.bkp` file. It is
// a capability interface, not a class hierarchy, so the library and engine
// layers can be tested against an in-memory double (internal/fakevolume)
// instead of real files.
type Volume interface {
	// Init opens an existing volume read-only, verifies its magic, and
	// reads its descriptor header, descriptor 1, and (if present)
	// descriptor 2's location, then reopens the file for append.
	Init() error
	// Create starts a brand new volume: writes the magic and marks the
	// volume open for chunk appends. No descriptor header exists until
	// Close/CloseWithSnapshot/Cancel is called.
	Create(opts Options) error

	HasChunk(d digest.Digest128) bool
	// GetChunks merges this volume's chunk entries into idx.
	GetChunks(idx *chunkindex.Index)
	// WriteChunk appends a ChunkHeader + payload at EOF and returns the
	// header's offset within the volume.
	WriteChunk(d digest.Digest128, payload []byte, unencodedSize uint64, encoding wire.EncodingType) (offset uint64, err error)
	// ReadChunk seeks to fc.VolumeOffset, validates the header type and
	// digest, and returns the encoded payload as stored.
	ReadChunk(fc wire.FileChunk) (payload []byte, encoding wire.EncodingType, err error)

	// Close writes descriptor 1 (carrying labelRecords) followed by a
	// descriptor header with descriptor_2_present = false.
	Close(labelRecords []wire.Descriptor1Label) error
	// CloseWithSnapshot writes descriptor 1, then descriptor 2 (snap and
	// its files/chunks), then a descriptor header with
	// descriptor_2_present = true. It fills in snap's SelfRef before
	// returning so the caller can update the label registry.
	CloseWithSnapshot(snap *Snapshot, labelRecords []wire.Descriptor1Label) error
	// Cancel writes descriptor 1 (so chunks remain dedup-usable) and a
	// descriptor header with cancelled = true, descriptor_2_present =
	// false.
	Cancel(labelRecords []wire.Descriptor1Label) error

	// LoadSnapshots walks the temporal (previous_snapshot_ref) chain
	// starting at this volume's cached descriptor 2 offset. If the chain
	// crosses into another volume, it stops and reports that volume
	// number via hasNext/nextVolume so the caller can continue there.
	// The walk stops at a zero ref or, if loadAll is false, after the
	// first full snapshot.
	LoadSnapshots(loadAll bool) (snapshots []Snapshot, nextVolume uint64, hasNext bool, err error)
	// ReadSnapshotAt decodes a single Descriptor2 and its file/chunk
	// records at an absolute offset within this volume. The library uses
	// this to walk the per-label (parent_snapshot_ref) chain, which may
	// need to jump between volumes in a way LoadSnapshots does not.
	ReadSnapshotAt(offset uint64) (Snapshot, error)

	// EstimatedSize returns the current on-disk length plus a lower-bound
	// estimate of descriptor 1's footprint, excluding descriptor 2.
	EstimatedSize() uint64
	VolumeNumber() uint64
	Cancelled() bool
	Descriptor2Present() bool
	// Labels returns the label records read from this volume's
	// descriptor 1 at Init time (empty for a freshly Created volume).
	Labels() []wire.Descriptor1Label
	// LastSnapshotRef reports the offset of this volume's own descriptor
	// 2, if present. The library uses this to find the temporally most
	// recent snapshot anywhere in the library without having to walk a
	// chain: the highest non-cancelled volume's own last snapshot always
	// is that snapshot, since volumes are written in strict time order.
	LastSnapshotRef() (labels.SnapshotRef, bool)
}

// OnDiskVolume is the concrete, wire-format-backed Volume implementation.
type OnDiskVolume struct {
	file fsio.FileIO

	chunks       *chunkindex.Index
	labelRecords []wire.Descriptor1Label

	header             wire.DescriptorHeader
	descriptor1Offset  uint64
	descriptor2Offset  uint64
	descriptor2Present bool

	modified bool
}

// New returns an OnDiskVolume bound to file. Neither Init nor Create has
// been called yet.
func New(file fsio.FileIO) *OnDiskVolume {
	return &OnDiskVolume{file: file, chunks: chunkindex.New()}
}

func (v *OnDiskVolume) Init() error {
	if err := v.file.Open(fsio.ModeRead); err != nil {
		return err
	}
	if err := v.checkMagic(); err != nil {
		v.file.Close()
		return err
	}
	if err := v.readDescriptorHeader(); err != nil {
		v.file.Close()
		return err
	}
	if err := v.readDescriptor1(); err != nil {
		v.file.Close()
		return err
	}
	if v.header.Descriptor2Present {
		pos, err := v.file.Tell()
		if err != nil {
			v.file.Close()
			return err
		}
		v.descriptor2Offset = uint64(pos)
		v.descriptor2Present = true
	}
	if err := v.file.Close(); err != nil {
		return err
	}
	return v.file.Open(fsio.ModeAppend)
}

func (v *OnDiskVolume) checkMagic() error {
	if err := v.file.Seek(0); err != nil {
		return err
	}
	data, err := v.file.Read(wire.MagicSize)
	if err != nil {
		return err
	}
	if string(data) != wire.Magic {
		return vaulterrors.New(vaulterrors.CorruptBackup, "not a recognized backup volume")
	}
	return nil
}

func (v *OnDiskVolume) readDescriptorHeader() error {
	if err := v.file.Seek(-int64(wire.DescriptorHeaderSize)); err != nil {
		return err
	}
	data, err := v.file.Read(wire.DescriptorHeaderSize)
	if err != nil {
		return err
	}
	header, err := wire.UnmarshalDescriptorHeader(data)
	if err != nil {
		return err
	}
	v.header = header
	v.descriptor1Offset = header.Descriptor1Offset
	return nil
}

func (v *OnDiskVolume) readDescriptor1() error {
	if err := v.file.Seek(int64(v.descriptor1Offset)); err != nil {
		return err
	}
	data, err := v.file.Read(wire.Descriptor1Size)
	if err != nil {
		return err
	}
	d1, err := wire.UnmarshalDescriptor1(data)
	if err != nil {
		return err
	}

	for i := uint64(0); i < d1.TotalChunks; i++ {
		cdata, err := v.file.Read(wire.Descriptor1ChunkSize)
		if err != nil {
			return err
		}
		chunk, err := wire.UnmarshalDescriptor1Chunk(cdata)
		if err != nil {
			return err
		}
		v.chunks.Insert(chunk.Digest, chunkindex.Entry{Offset: chunk.Offset, VolumeNumber: chunk.VolumeNumber})
	}

	v.labelRecords = make([]wire.Descriptor1Label, 0, d1.TotalLabels)
	for i := uint64(0); i < d1.TotalLabels; i++ {
		label, err := v.readDescriptor1Label()
		if err != nil {
			return err
		}
		v.labelRecords = append(v.labelRecords, label)
	}
	return nil
}

func (v *OnDiskVolume) readDescriptor1Label() (wire.Descriptor1Label, error) {
	fixed, err := v.file.Read(wire.Descriptor1LabelFixedSize)
	if err != nil {
		return wire.Descriptor1Label{}, err
	}
	nameSize := binary.LittleEndian.Uint64(fixed[28:36])
	rest, err := v.file.Read(int(nameSize))
	if err != nil {
		return wire.Descriptor1Label{}, err
	}
	label, _, err := wire.UnmarshalDescriptor1Label(append(fixed, rest...))
	return label, err
}

func (v *OnDiskVolume) Create(opts Options) error {
	if err := v.file.Open(fsio.ModeAppend); err != nil {
		return err
	}
	if err := v.file.Write([]byte(wire.Magic)); err != nil {
		v.file.Close()
		v.file.Unlink()
		return err
	}
	v.header = wire.DescriptorHeader{VolumeNumber: opts.VolumeNumber}
	v.chunks = chunkindex.New()
	v.modified = true
	return nil
}

func (v *OnDiskVolume) VolumeNumber() uint64             { return v.header.VolumeNumber }
func (v *OnDiskVolume) Cancelled() bool                  { return v.header.Cancelled }
func (v *OnDiskVolume) Descriptor2Present() bool         { return v.descriptor2Present }
func (v *OnDiskVolume) Labels() []wire.Descriptor1Label  { return v.labelRecords }

func (v *OnDiskVolume) HasChunk(d digest.Digest128) bool {
	return v.chunks.Has(d)
}

func (v *OnDiskVolume) GetChunks(idx *chunkindex.Index) {
	idx.Merge(v.chunks)
}

func (v *OnDiskVolume) WriteChunk(d digest.Digest128, payload []byte, unencodedSize uint64, encoding wire.EncodingType) (uint64, error) {
	if err := v.file.SeekEOF(); err != nil {
		return 0, err
	}
	pos, err := v.file.Tell()
	if err != nil {
		return 0, err
	}
	offset := uint64(pos)

	header := wire.ChunkHeader{
		Digest:        d,
		UnencodedSize: unencodedSize,
		EncodedSize:   uint64(len(payload)),
		EncodingType:  encoding,
	}
	if err := v.file.Write(header.Marshal()); err != nil {
		return 0, err
	}
	if err := v.file.Write(payload); err != nil {
		return 0, err
	}

	v.chunks.Insert(d, chunkindex.Entry{Offset: offset, VolumeNumber: v.header.VolumeNumber})
	v.modified = true
	return offset, nil
}

func (v *OnDiskVolume) ReadChunk(fc wire.FileChunk) ([]byte, wire.EncodingType, error) {
	if err := v.file.Seek(int64(fc.VolumeOffset)); err != nil {
		return nil, 0, err
	}
	hdata, err := v.file.Read(wire.ChunkHeaderSize)
	if err != nil {
		return nil, 0, err
	}
	header, err := wire.UnmarshalChunkHeader(hdata)
	if err != nil {
		return nil, 0, err
	}
	if header.Digest != fc.Digest {
		return nil, 0, vaulterrors.Newf(vaulterrors.CorruptBackup,
			"chunk digest mismatch at offset %d", fc.VolumeOffset)
	}
	payload, err := v.file.Read(int(header.EncodedSize))
	if err != nil {
		return nil, 0, err
	}
	return payload, header.EncodingType, nil
}

// writeDescriptor1 appends descriptor 1 (this volume's chunk and label
// list) at EOF and returns its offset.
func (v *OnDiskVolume) writeDescriptor1(labelRecords []wire.Descriptor1Label) (uint64, error) {
	if err := v.file.SeekEOF(); err != nil {
		return 0, err
	}
	pos, err := v.file.Tell()
	if err != nil {
		return 0, err
	}
	offset := uint64(pos)

	d1 := wire.Descriptor1{TotalChunks: uint64(v.chunks.Len()), TotalLabels: uint64(len(labelRecords))}
	if err := v.file.Write(d1.Marshal()); err != nil {
		return 0, err
	}

	var writeErr error
	v.chunks.Each(func(d digest.Digest128, e chunkindex.Entry) {
		if writeErr != nil {
			return
		}
		rec := wire.Descriptor1Chunk{Digest: d, Offset: e.Offset, VolumeNumber: e.VolumeNumber}
		writeErr = v.file.Write(rec.Marshal())
	})
	if writeErr != nil {
		return 0, writeErr
	}

	for _, l := range labelRecords {
		if err := v.file.Write(l.Marshal()); err != nil {
			return 0, err
		}
	}

	v.labelRecords = labelRecords
	return offset, nil
}

func (v *OnDiskVolume) writeDescriptorHeader() error {
	if err := v.file.SeekEOF(); err != nil {
		return err
	}
	if err := v.file.Write(v.header.Marshal()); err != nil {
		return err
	}
	return v.file.Close()
}

func (v *OnDiskVolume) Close(labelRecords []wire.Descriptor1Label) error {
	if !v.modified {
		return v.file.Close()
	}
	offset, err := v.writeDescriptor1(labelRecords)
	if err != nil {
		return err
	}
	v.header.Descriptor1Offset = offset
	v.header.Descriptor2Present = false
	if err := v.writeDescriptorHeader(); err != nil {
		return err
	}
	v.modified = false
	return nil
}

func (v *OnDiskVolume) Cancel(labelRecords []wire.Descriptor1Label) error {
	offset, err := v.writeDescriptor1(labelRecords)
	if err != nil {
		return err
	}
	v.header.Descriptor1Offset = offset
	v.header.Descriptor2Present = false
	v.header.Cancelled = true
	if err := v.writeDescriptorHeader(); err != nil {
		return err
	}
	v.modified = false
	return nil
}

func (v *OnDiskVolume) CloseWithSnapshot(snap *Snapshot, labelRecords []wire.Descriptor1Label) error {
	d1Offset, err := v.writeDescriptor1(labelRecords)
	if err != nil {
		return err
	}

	if err := v.file.SeekEOF(); err != nil {
		return err
	}
	pos, err := v.file.Tell()
	if err != nil {
		return err
	}
	d2Offset := uint64(pos)

	d2 := wire.Descriptor2{
		PreviousOffset:   snap.PreviousRef.Offset,
		PreviousVolume:   snap.PreviousRef.VolumeNumber,
		ParentOffset:     snap.ParentRef.Offset,
		ParentVolume:     snap.ParentRef.VolumeNumber,
		BackupDate:       snap.Date,
		BackupType:       snap.Type,
		UnencodedSize:    snap.UnencodedSize,
		EncodedSize:      snap.EncodedSize,
		DeduplicatedSize: snap.DeduplicatedSize,
		NumFiles:         uint64(len(snap.Files)),
		LabelID:          snap.LabelID,
		Description:      snap.Description,
	}
	if err := v.file.Write(d2.Marshal()); err != nil {
		return err
	}
	for _, fe := range snap.Files {
		meta := fe.Meta
		meta.NumChunks = uint64(len(fe.Chunks))
		if err := v.file.Write(meta.Marshal()); err != nil {
			return err
		}
		for _, c := range fe.Chunks {
			if err := v.file.Write(c.Marshal()); err != nil {
				return err
			}
		}
	}

	v.header.Descriptor1Offset = d1Offset
	v.header.Descriptor2Present = true
	if err := v.writeDescriptorHeader(); err != nil {
		return err
	}

	v.descriptor2Offset = d2Offset
	v.descriptor2Present = true
	v.modified = false
	snap.SelfRef = labels.SnapshotRef{VolumeNumber: v.header.VolumeNumber, Offset: d2Offset}
	return nil
}

func (v *OnDiskVolume) ReadSnapshotAt(offset uint64) (Snapshot, error) {
	if err := v.file.Seek(int64(offset)); err != nil {
		return Snapshot{}, err
	}
	fixed, err := v.file.Read(wire.Descriptor2FixedSize)
	if err != nil {
		return Snapshot{}, err
	}
	descSize := binary.LittleEndian.Uint64(fixed[88:96])
	rest, err := v.file.Read(int(descSize))
	if err != nil {
		return Snapshot{}, err
	}
	d2, _, err := wire.UnmarshalDescriptor2(append(fixed, rest...))
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		SelfRef:          labels.SnapshotRef{VolumeNumber: v.header.VolumeNumber, Offset: offset},
		PreviousRef:      labels.SnapshotRef{VolumeNumber: d2.PreviousVolume, Offset: d2.PreviousOffset},
		ParentRef:        labels.SnapshotRef{VolumeNumber: d2.ParentVolume, Offset: d2.ParentOffset},
		Date:             d2.BackupDate,
		Type:             d2.BackupType,
		UnencodedSize:    d2.UnencodedSize,
		EncodedSize:      d2.EncodedSize,
		DeduplicatedSize: d2.DeduplicatedSize,
		LabelID:          d2.LabelID,
		Description:      d2.Description,
	}

	for i := uint64(0); i < d2.NumFiles; i++ {
		fe, err := v.readFileEntry()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Files = append(snap.Files, fe)
	}
	return snap, nil
}

func (v *OnDiskVolume) readFileEntry() (FileEntry, error) {
	fixed, err := v.file.Read(wire.BackupFileFixedSize)
	if err != nil {
		return FileEntry{}, err
	}
	nameSize := binary.LittleEndian.Uint64(fixed[48:56])
	targetSize := binary.LittleEndian.Uint64(fixed[56:64])
	rest, err := v.file.Read(int(nameSize + targetSize))
	if err != nil {
		return FileEntry{}, err
	}
	meta, _, err := wire.UnmarshalBackupFile(append(fixed, rest...))
	if err != nil {
		return FileEntry{}, err
	}

	fe := FileEntry{Meta: meta}
	for i := uint64(0); i < meta.NumChunks; i++ {
		cdata, err := v.file.Read(wire.FileChunkSize)
		if err != nil {
			return FileEntry{}, err
		}
		chunk, err := wire.UnmarshalFileChunk(cdata)
		if err != nil {
			return FileEntry{}, err
		}
		fe.Chunks = append(fe.Chunks, chunk)
	}
	return fe, nil
}

func (v *OnDiskVolume) LoadSnapshots(loadAll bool) ([]Snapshot, uint64, bool, error) {
	if !v.descriptor2Present {
		return nil, 0, false, vaulterrors.New(vaulterrors.NotLastVolume, "volume has no descriptor 2")
	}

	var snapshots []Snapshot
	currentOffset := v.descriptor2Offset
	for {
		snap, err := v.ReadSnapshotAt(currentOffset)
		if err != nil {
			return nil, 0, false, err
		}
		snapshots = append(snapshots, snap)

		if snap.PreviousRef.IsZero() {
			break
		}
		if snap.Type == wire.BackupTypeFull && !loadAll {
			break
		}
		if snap.PreviousRef.VolumeNumber != v.header.VolumeNumber {
			return snapshots, snap.PreviousRef.VolumeNumber, true, nil
		}
		currentOffset = snap.PreviousRef.Offset
	}
	return snapshots, 0, false, nil
}

func (v *OnDiskVolume) LastSnapshotRef() (labels.SnapshotRef, bool) {
	if !v.descriptor2Present {
		return labels.SnapshotRef{}, false
	}
	return labels.SnapshotRef{VolumeNumber: v.header.VolumeNumber, Offset: v.descriptor2Offset}, true
}

func (v *OnDiskVolume) EstimatedSize() uint64 {
	size, err := v.file.Size()
	if err != nil {
		return 0
	}
	return uint64(size) + wire.Descriptor1Size + v.chunks.DiskSize()
}
