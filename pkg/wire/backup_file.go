package wire

import (
	"encoding/binary"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// BackupFileFixedSize is the fixed portion of a BackupFile record, not
// counting the variable-length filename and (for symlinks) target that
// follow it.
const BackupFileFixedSize = HeaderTypeSize + 8 + 4 + 8 + 8 + 8 + 8 + 8 + 8

// BackupFile describes one backed-up filesystem entry (§3.5). It precedes
// NumChunks FileChunk records.
type BackupFile struct {
	FileSize          uint64
	FileType          FileType
	CreateDate        uint64
	ModifyDate        uint64
	Attributes        uint64
	NumChunks         uint64
	FileName          string
	SymlinkTarget     string
}

// Marshal encodes the fixed fields, filename, and (if this is a symlink)
// the target. It does not include the FileChunk records that follow.
func (f BackupFile) Marshal() []byte {
	name := []byte(f.FileName)
	var target []byte
	if f.FileType == FileTypeSymlink {
		target = []byte(f.SymlinkTarget)
	}
	buf := make([]byte, BackupFileFixedSize+len(name)+len(target))
	putHeaderType(buf, HeaderTypeBackupFile)
	binary.LittleEndian.PutUint64(buf[4:12], f.FileSize)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(f.FileType))
	binary.LittleEndian.PutUint64(buf[16:24], f.CreateDate)
	binary.LittleEndian.PutUint64(buf[24:32], f.ModifyDate)
	binary.LittleEndian.PutUint64(buf[32:40], f.Attributes)
	binary.LittleEndian.PutUint64(buf[40:48], f.NumChunks)
	binary.LittleEndian.PutUint64(buf[48:56], uint64(len(name)))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(len(target)))
	copy(buf[64:64+len(name)], name)
	copy(buf[64+len(name):], target)
	return buf
}

// UnmarshalBackupFile decodes one BackupFile record from the front of
// data, returning the number of bytes consumed (the caller reads
// NumChunks FileChunk records starting immediately after).
func UnmarshalBackupFile(data []byte) (BackupFile, int, error) {
	if len(data) < BackupFileFixedSize {
		return BackupFile{}, 0, vaulterrors.New(vaulterrors.CorruptBackup, "backup file: data too short")
	}
	if _, err := checkHeaderType(data, HeaderTypeBackupFile); err != nil {
		return BackupFile{}, 0, err
	}
	fileType := FileType(binary.LittleEndian.Uint32(data[12:16]))
	nameSize := binary.LittleEndian.Uint64(data[48:56])
	targetSize := binary.LittleEndian.Uint64(data[56:64])
	total := BackupFileFixedSize + int(nameSize) + int(targetSize)
	if len(data) < total {
		return BackupFile{}, 0, vaulterrors.New(vaulterrors.CorruptBackup, "backup file: name/target truncated")
	}
	name := string(data[64 : 64+nameSize])
	var target string
	if fileType == FileTypeSymlink {
		target = string(data[64+nameSize : total])
	}
	f := BackupFile{
		FileSize:      binary.LittleEndian.Uint64(data[4:12]),
		FileType:      fileType,
		CreateDate:    binary.LittleEndian.Uint64(data[16:24]),
		ModifyDate:    binary.LittleEndian.Uint64(data[24:32]),
		Attributes:    binary.LittleEndian.Uint64(data[32:40]),
		NumChunks:     binary.LittleEndian.Uint64(data[40:48]),
		FileName:      name,
		SymlinkTarget: target,
	}
	return f, total, nil
}
