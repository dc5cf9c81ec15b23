package fsio

import (
	"os"
	"time"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/wire"
)

// Metadata is the filesystem-level information gathered for one path
// before it is turned into a wire.BackupFile. Attributes is carried as an
// opaque 64-bit value and never interpreted by the core (spec §9's open
// question): here it is the permission bits of the file mode
// (fi.Mode().Perm()), preserved byte-for-byte.
type Metadata struct {
	FileType      wire.FileType
	Size          int64
	CreateDate    time.Time
	ModifyDate    time.Time
	Attributes    uint64
	SymlinkTarget string
}

// FillMetadata stats path (using Lstat so symlinks are reported as
// symlinks, not followed) and returns its Metadata.
func FillMetadata(path string) (Metadata, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, vaulterrors.Wrap(vaulterrors.NoSuchFile, err, path)
		}
		return Metadata{}, vaulterrors.Wrap(vaulterrors.GenericError, err, "stat "+path)
	}

	m := Metadata{
		ModifyDate: fi.ModTime(),
		CreateDate: fi.ModTime(),
		Attributes: uint64(fi.Mode().Perm()),
	}

	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		m.FileType = wire.FileTypeSymlink
		target, err := os.Readlink(path)
		if err != nil {
			return Metadata{}, vaulterrors.Wrap(vaulterrors.GenericError, err, "readlink "+path)
		}
		m.SymlinkTarget = target
	case fi.IsDir():
		m.FileType = wire.FileTypeDirectory
	default:
		m.FileType = wire.FileTypeRegular
		m.Size = fi.Size()
	}

	return m, nil
}

// RestoreAttributes re-applies the permission bits and modification time
// carried in a wire.BackupFile to the on-disk path, used by the restore
// engine after writing a file's chunks (or creating a directory/symlink).
func RestoreAttributes(path string, f wire.BackupFile) error {
	mode := os.FileMode(f.Attributes) & os.ModePerm
	if f.FileType != wire.FileTypeSymlink {
		if err := os.Chmod(path, mode); err != nil {
			return vaulterrors.Wrap(vaulterrors.GenericError, err, "chmod "+path)
		}
	}
	modTime := time.Unix(int64(f.ModifyDate), 0)
	if f.FileType != wire.FileTypeSymlink {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			return vaulterrors.Wrap(vaulterrors.GenericError, err, "chtimes "+path)
		}
	}
	return nil
}
