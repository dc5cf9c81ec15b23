package wire

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// Descriptor1Size is the fixed on-disk size of the Descriptor1 trailer,
// not counting the chunk/label records that follow it.
const Descriptor1Size = HeaderTypeSize + 8 + 8

// Descriptor1 is the per-volume trailer enumerating this volume's chunks
// and labels (§3.3 item 3).
type Descriptor1 struct {
	TotalChunks uint64
	TotalLabels uint64
}

func (d Descriptor1) Marshal() []byte {
	buf := make([]byte, Descriptor1Size)
	putHeaderType(buf, HeaderTypeDescriptor1)
	binary.LittleEndian.PutUint64(buf[4:12], d.TotalChunks)
	binary.LittleEndian.PutUint64(buf[12:20], d.TotalLabels)
	return buf
}

func UnmarshalDescriptor1(data []byte) (Descriptor1, error) {
	if len(data) < Descriptor1Size {
		return Descriptor1{}, vaulterrors.New(vaulterrors.CorruptBackup, "descriptor1: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeDescriptor1); err != nil {
		return Descriptor1{}, err
	}
	return Descriptor1{
		TotalChunks: binary.LittleEndian.Uint64(data[4:12]),
		TotalLabels: binary.LittleEndian.Uint64(data[12:20]),
	}, nil
}

// Descriptor1ChunkSize is the fixed on-disk size of one Descriptor1Chunk
// record.
const Descriptor1ChunkSize = HeaderTypeSize + 16 + 8 + 8

// Descriptor1Chunk records one chunk's location within the volume, so a
// reader can enumerate all chunks without scanning the whole file.
type Descriptor1Chunk struct {
	Digest       digest.Digest128
	Offset       uint64
	VolumeNumber uint64
}

func (c Descriptor1Chunk) Marshal() []byte {
	buf := make([]byte, Descriptor1ChunkSize)
	putHeaderType(buf, HeaderTypeDescriptor1Chunk)
	d := c.Digest.Bytes()
	copy(buf[4:20], d[:])
	binary.LittleEndian.PutUint64(buf[20:28], c.Offset)
	binary.LittleEndian.PutUint64(buf[28:36], c.VolumeNumber)
	return buf
}

func UnmarshalDescriptor1Chunk(data []byte) (Descriptor1Chunk, error) {
	if len(data) < Descriptor1ChunkSize {
		return Descriptor1Chunk{}, vaulterrors.New(vaulterrors.CorruptBackup, "descriptor1chunk: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeDescriptor1Chunk); err != nil {
		return Descriptor1Chunk{}, err
	}
	var d [16]byte
	copy(d[:], data[4:20])
	return Descriptor1Chunk{
		Digest:       digest.FromBytes(d),
		Offset:       binary.LittleEndian.Uint64(data[20:28]),
		VolumeNumber: binary.LittleEndian.Uint64(data[28:36]),
	}, nil
}

// Descriptor1LabelFixedSize is the fixed portion of a Descriptor1Label
// record, not counting the variable-length name that follows it.
const Descriptor1LabelFixedSize = HeaderTypeSize + 8 + 8 + 8 + 8

// Descriptor1Label records one label's identity and most recent snapshot
// pointer (§3.7).
type Descriptor1Label struct {
	ID               uint64
	LastBackupOffset uint64
	LastBackupVolume uint64
	Name             string
}

func (l Descriptor1Label) Marshal() []byte {
	name := []byte(l.Name)
	buf := make([]byte, Descriptor1LabelFixedSize+len(name))
	putHeaderType(buf, HeaderTypeDescriptor1Label)
	binary.LittleEndian.PutUint64(buf[4:12], l.ID)
	binary.LittleEndian.PutUint64(buf[12:20], l.LastBackupOffset)
	binary.LittleEndian.PutUint64(buf[20:28], l.LastBackupVolume)
	binary.LittleEndian.PutUint64(buf[28:36], uint64(len(name)))
	copy(buf[36:], name)
	return buf
}

// UnmarshalDescriptor1Label decodes one label record starting at the
// front of data, returning the number of bytes consumed.
func UnmarshalDescriptor1Label(data []byte) (Descriptor1Label, int, error) {
	if len(data) < Descriptor1LabelFixedSize {
		return Descriptor1Label{}, 0, vaulterrors.New(vaulterrors.CorruptBackup, "descriptor1label: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeDescriptor1Label); err != nil {
		return Descriptor1Label{}, 0, err
	}
	nameSize := binary.LittleEndian.Uint64(data[28:36])
	total := Descriptor1LabelFixedSize + int(nameSize)
	if len(data) < total {
		return Descriptor1Label{}, 0, vaulterrors.New(vaulterrors.CorruptBackup, "descriptor1label: name truncated")
	}
	return Descriptor1Label{
		ID:               binary.LittleEndian.Uint64(data[4:12]),
		LastBackupOffset: binary.LittleEndian.Uint64(data[12:20]),
		LastBackupVolume: binary.LittleEndian.Uint64(data[20:28]),
		Name:             string(data[36:total]),
	}, total, nil
}
