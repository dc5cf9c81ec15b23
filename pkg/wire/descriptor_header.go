package wire

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// DescriptorHeaderSize is the fixed on-disk size of the DescriptorHeader,
// the very last bytes of every volume file (§3.3 item 5).
const DescriptorHeaderSize = HeaderTypeSize + 8 + 1 + 1 + 8

// DescriptorHeader is the fixed-size footer read by seeking
// -DescriptorHeaderSize from EOF. It locates Descriptor1 and flags
// whether Descriptor2 is present or the volume was cancelled.
type DescriptorHeader struct {
	Descriptor1Offset  uint64
	Descriptor2Present bool
	Cancelled          bool
	VolumeNumber       uint64
}

func (h DescriptorHeader) Marshal() []byte {
	buf := make([]byte, DescriptorHeaderSize)
	putHeaderType(buf, HeaderTypeDescriptorHeader)
	binary.LittleEndian.PutUint64(buf[4:12], h.Descriptor1Offset)
	if h.Descriptor2Present {
		buf[12] = 1
	}
	if h.Cancelled {
		buf[13] = 1
	}
	binary.LittleEndian.PutUint64(buf[14:22], h.VolumeNumber)
	return buf
}

func UnmarshalDescriptorHeader(data []byte) (DescriptorHeader, error) {
	if len(data) < DescriptorHeaderSize {
		return DescriptorHeader{}, vaulterrors.New(vaulterrors.CorruptBackup, "descriptor header: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeDescriptorHeader); err != nil {
		return DescriptorHeader{}, err
	}
	return DescriptorHeader{
		Descriptor1Offset:  binary.LittleEndian.Uint64(data[4:12]),
		Descriptor2Present: data[12] != 0,
		Cancelled:          data[13] != 0,
		VolumeNumber:       binary.LittleEndian.Uint64(data[14:22]),
	}, nil
}
