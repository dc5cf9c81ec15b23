// Package wire implements the on-disk binary layout described in spec
// section 6.1: packed, little-endian structures with a leading 4-byte
// header_type tag that must match on read. Every structure in this
// package exposes an explicit Marshal/Unmarshal pair rather than relying
// on encoding/gob or reflection-based codecs, matching the approach the
// teacher's iso9660 descriptor package takes for its own packed records.
package wire

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// HeaderType tags every record in the volume format so a reader can catch
// structural drift (wrong offset, truncated file) instead of silently
// misinterpreting bytes.
type HeaderType uint32

const (
	HeaderTypeChunkHeader HeaderType = iota
	HeaderTypeDescriptor1
	HeaderTypeDescriptor1Chunk
	HeaderTypeDescriptor1Label
	HeaderTypeDescriptor2
	HeaderTypeDescriptorHeader
	HeaderTypeBackupFile
	HeaderTypeFileChunk
)

func (h HeaderType) String() string {
	switch h {
	case HeaderTypeChunkHeader:
		return "ChunkHeader"
	case HeaderTypeDescriptor1:
		return "Descriptor1"
	case HeaderTypeDescriptor1Chunk:
		return "Descriptor1Chunk"
	case HeaderTypeDescriptor1Label:
		return "Descriptor1Label"
	case HeaderTypeDescriptor2:
		return "Descriptor2"
	case HeaderTypeDescriptorHeader:
		return "DescriptorHeader"
	case HeaderTypeBackupFile:
		return "BackupFile"
	case HeaderTypeFileChunk:
		return "FileChunk"
	default:
		return "Unknown"
	}
}

// HeaderTypeSize is the on-disk size of a HeaderType tag.
const HeaderTypeSize = 4

// Magic is the 8-byte ASCII identifier at the start of every volume file.
const Magic = "BKP_0000"

// MagicSize is the on-disk size of Magic.
const MagicSize = 8

// checkHeaderType validates that the tag just read matches want, failing
// CorruptBackup (with the mismatch named) otherwise.
func checkHeaderType(data []byte, want HeaderType) (HeaderType, error) {
	if len(data) < HeaderTypeSize {
		return 0, vaulterrors.New(vaulterrors.CorruptBackup, "data too short for header type")
	}
	got := HeaderType(binary.LittleEndian.Uint32(data))
	if got != want {
		return got, vaulterrors.Newf(vaulterrors.CorruptBackup,
			"header type mismatch: want %s, got %s", want, got)
	}
	return got, nil
}

func putHeaderType(buf []byte, t HeaderType) {
	binary.LittleEndian.PutUint32(buf, uint32(t))
}
