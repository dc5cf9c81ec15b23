package wire

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// FileChunkSize is the fixed on-disk size of one FileChunk record.
const FileChunkSize = HeaderTypeSize + 16 + 8 + 8 + 8 + 8

// FileChunk references one chunk belonging to a file; ChunkOffset is where
// the chunk's bytes are written back in that file on restore (§3.5).
type FileChunk struct {
	Digest          digest.Digest128
	VolumeNum       uint64
	VolumeOffset    uint64
	ChunkOffset     uint64
	UnencodedSize   uint64
}

func (c FileChunk) Marshal() []byte {
	buf := make([]byte, FileChunkSize)
	putHeaderType(buf, HeaderTypeFileChunk)
	d := c.Digest.Bytes()
	copy(buf[4:20], d[:])
	binary.LittleEndian.PutUint64(buf[20:28], c.VolumeNum)
	binary.LittleEndian.PutUint64(buf[28:36], c.VolumeOffset)
	binary.LittleEndian.PutUint64(buf[36:44], c.ChunkOffset)
	binary.LittleEndian.PutUint64(buf[44:52], c.UnencodedSize)
	return buf
}

func UnmarshalFileChunk(data []byte) (FileChunk, error) {
	if len(data) < FileChunkSize {
		return FileChunk{}, vaulterrors.New(vaulterrors.CorruptBackup, "file chunk: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeFileChunk); err != nil {
		return FileChunk{}, err
	}
	var d [16]byte
	copy(d[:], data[4:20])
	return FileChunk{
		Digest:        digest.FromBytes(d),
		VolumeNum:     binary.LittleEndian.Uint64(data[20:28]),
		VolumeOffset:  binary.LittleEndian.Uint64(data[28:36]),
		ChunkOffset:   binary.LittleEndian.Uint64(data[36:44]),
		UnencodedSize: binary.LittleEndian.Uint64(data[44:52]),
	}, nil
}
