package wire

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// ChunkHeaderSize is the fixed on-disk size of a ChunkHeader, not
// including its payload.
const ChunkHeaderSize = HeaderTypeSize + 16 + 8 + 8 + 4

// ChunkHeader precedes every chunk's payload bytes in a volume.
type ChunkHeader struct {
	Digest        digest.Digest128
	UnencodedSize uint64
	EncodedSize   uint64
	EncodingType  EncodingType
}

// Marshal encodes the header (not the payload) to exactly ChunkHeaderSize
// bytes.
func (c ChunkHeader) Marshal() []byte {
	buf := make([]byte, ChunkHeaderSize)
	putHeaderType(buf, HeaderTypeChunkHeader)
	d := c.Digest.Bytes()
	copy(buf[4:20], d[:])
	binary.LittleEndian.PutUint64(buf[20:28], c.UnencodedSize)
	binary.LittleEndian.PutUint64(buf[28:36], c.EncodedSize)
	binary.LittleEndian.PutUint32(buf[36:40], uint32(c.EncodingType))
	return buf
}

// UnmarshalChunkHeader decodes a ChunkHeader from its fixed-size prefix.
func UnmarshalChunkHeader(data []byte) (ChunkHeader, error) {
	if len(data) < ChunkHeaderSize {
		return ChunkHeader{}, vaulterrors.New(vaulterrors.CorruptBackup, "chunk header: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeChunkHeader); err != nil {
		return ChunkHeader{}, err
	}
	var d [16]byte
	copy(d[:], data[4:20])
	return ChunkHeader{
		Digest:        digest.FromBytes(d),
		UnencodedSize: binary.LittleEndian.Uint64(data[20:28]),
		EncodedSize:   binary.LittleEndian.Uint64(data[28:36]),
		EncodingType:  EncodingType(binary.LittleEndian.Uint32(data[36:40])),
	}, nil
}
