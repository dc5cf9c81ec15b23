package wire

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// Descriptor2FixedSize is the fixed portion of a Descriptor2 record, not
// counting the variable-length description that follows it (or the file
// records that follow that).
const Descriptor2FixedSize = HeaderTypeSize + 8 + 8 + 8 + 8 + 8 + 4 + 8 + 8 + 8 + 8 + 8 + 8

// Descriptor2 is the per-snapshot trailer (§3.6). It is followed by
// Description bytes and then NumFiles BackupFile records (each of which
// carries its own FileChunk records).
type Descriptor2 struct {
	PreviousOffset    uint64
	PreviousVolume    uint64
	ParentOffset      uint64
	ParentVolume      uint64
	BackupDate        uint64
	BackupType        BackupType
	UnencodedSize     uint64
	EncodedSize       uint64
	DeduplicatedSize  uint64
	NumFiles          uint64
	LabelID           uint64
	Description       string
}

// Marshal encodes the fixed fields plus the description. It does not
// include the file records; those are appended by the caller.
func (d Descriptor2) Marshal() []byte {
	desc := []byte(d.Description)
	buf := make([]byte, Descriptor2FixedSize+len(desc))
	putHeaderType(buf, HeaderTypeDescriptor2)
	binary.LittleEndian.PutUint64(buf[4:12], d.PreviousOffset)
	binary.LittleEndian.PutUint64(buf[12:20], d.PreviousVolume)
	binary.LittleEndian.PutUint64(buf[20:28], d.ParentOffset)
	binary.LittleEndian.PutUint64(buf[28:36], d.ParentVolume)
	binary.LittleEndian.PutUint64(buf[36:44], d.BackupDate)
	binary.LittleEndian.PutUint32(buf[44:48], uint32(d.BackupType))
	binary.LittleEndian.PutUint64(buf[48:56], d.UnencodedSize)
	binary.LittleEndian.PutUint64(buf[56:64], d.EncodedSize)
	binary.LittleEndian.PutUint64(buf[64:72], d.DeduplicatedSize)
	binary.LittleEndian.PutUint64(buf[72:80], d.NumFiles)
	binary.LittleEndian.PutUint64(buf[80:88], d.LabelID)
	binary.LittleEndian.PutUint64(buf[88:96], uint64(len(desc)))
	copy(buf[96:], desc)
	return buf
}

// UnmarshalDescriptor2 decodes the fixed fields and description from the
// front of data, returning the number of bytes consumed (the caller reads
// NumFiles BackupFile records starting immediately after).
func UnmarshalDescriptor2(data []byte) (Descriptor2, int, error) {
	if len(data) < Descriptor2FixedSize {
		return Descriptor2{}, 0, vaulterrors.New(vaulterrors.CorruptBackup, "descriptor2: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeDescriptor2); err != nil {
		return Descriptor2{}, 0, err
	}
	descSize := binary.LittleEndian.Uint64(data[88:96])
	total := Descriptor2FixedSize + int(descSize)
	if len(data) < total {
		return Descriptor2{}, 0, vaulterrors.New(vaulterrors.CorruptBackup, "descriptor2: description truncated")
	}
	d := Descriptor2{
		PreviousOffset:   binary.LittleEndian.Uint64(data[4:12]),
		PreviousVolume:   binary.LittleEndian.Uint64(data[12:20]),
		ParentOffset:     binary.LittleEndian.Uint64(data[20:28]),
		ParentVolume:     binary.LittleEndian.Uint64(data[28:36]),
		BackupDate:       binary.LittleEndian.Uint64(data[36:44]),
		BackupType:       BackupType(binary.LittleEndian.Uint32(data[44:48])),
		UnencodedSize:    binary.LittleEndian.Uint64(data[48:56]),
		EncodedSize:      binary.LittleEndian.Uint64(data[56:64]),
		DeduplicatedSize: binary.LittleEndian.Uint64(data[64:72]),
		NumFiles:         binary.LittleEndian.Uint64(data[72:80]),
		LabelID:          binary.LittleEndian.Uint64(data[80:88]),
		Description:      string(data[96:total]),
	}
	return d, total, nil
}
