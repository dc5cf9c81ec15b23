// Package fsio implements the File I/O capability (spec §4.3): the small
// set of filesystem primitives the volume and engine layers need, kept
// behind the FileIO interface. OSFileIO is its os.File-backed
// implementation.
package fsio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// Mode selects how Open behaves.
type Mode int

const (
	ModeRead Mode = iota
	ModeAppend
	ModeReadWrite
)

// FileIO is the capability set used by the volume and engine layers. It is
// a thin wrapper over *os.File with the buffered-write discipline spec §9
// prescribes: Flush is called before Close, before any Read that follows a
// Write, before SeekEOF, and before Size.
type FileIO interface {
	Open(mode Mode) error
	Close() error
	Unlink() error
	Tell() (int64, error)
	// Seek moves the read/write position. A negative offset is relative
	// to the end of the file.
	Seek(offset int64) error
	SeekEOF() error
	Read(n int) ([]byte, error)
	Write(p []byte) error
	Flush() error
	Size() (int64, error)
	CreateDirectories(stripLeaf bool) error
	CreateSymlink(target string) error
}

// OSFileIO is the concrete, os.File-backed FileIO implementation.
type OSFileIO struct {
	path string
	f    *os.File
	w    *bufio.Writer
	mode Mode
}

// NewOSFileIO returns a FileIO bound to path. The file is not touched
// until Open is called.
func NewOSFileIO(path string) *OSFileIO {
	return &OSFileIO{path: path}
}

func (o *OSFileIO) Open(mode Mode) error {
	var flag int
	switch mode {
	case ModeRead:
		flag = os.O_RDONLY
	case ModeAppend:
		flag = os.O_RDWR | os.O_CREATE
	case ModeReadWrite:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return vaulterrors.Newf(vaulterrors.GenericError, "invalid file mode %d", mode)
	}
	f, err := os.OpenFile(o.path, flag, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return vaulterrors.Wrap(vaulterrors.NoSuchFile, err, o.path)
		}
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "open "+o.path)
	}
	o.f = f
	o.mode = mode
	o.w = bufio.NewWriterSize(f, 256*1024)
	return nil
}

func (o *OSFileIO) Close() error {
	if o.f == nil {
		return nil
	}
	if err := o.Flush(); err != nil {
		return err
	}
	err := o.f.Close()
	o.f = nil
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "close "+o.path)
	}
	return nil
}

func (o *OSFileIO) Unlink() error {
	if err := os.Remove(o.path); err != nil {
		if os.IsNotExist(err) {
			return vaulterrors.Wrap(vaulterrors.NoSuchFile, err, o.path)
		}
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "unlink "+o.path)
	}
	return nil
}

func (o *OSFileIO) Tell() (int64, error) {
	if err := o.Flush(); err != nil {
		return 0, err
	}
	pos, err := o.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.GenericError, err, "tell "+o.path)
	}
	return pos, nil
}

func (o *OSFileIO) Seek(offset int64) error {
	if err := o.Flush(); err != nil {
		return err
	}
	whence := io.SeekStart
	if offset < 0 {
		whence = io.SeekEnd
	}
	_, err := o.f.Seek(offset, whence)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "seek "+o.path)
	}
	return nil
}

func (o *OSFileIO) SeekEOF() error {
	if err := o.Flush(); err != nil {
		return err
	}
	_, err := o.f.Seek(0, io.SeekEnd)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "seek eof "+o.path)
	}
	return nil
}

func (o *OSFileIO) Read(n int) ([]byte, error) {
	if err := o.Flush(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(o.f, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return buf[:read], vaulterrors.Wrap(vaulterrors.ShortRead, err, fmt.Sprintf("wanted %d, got %d", n, read))
		}
		return buf[:read], vaulterrors.Wrap(vaulterrors.GenericError, err, "read "+o.path)
	}
	return buf, nil
}

func (o *OSFileIO) Write(p []byte) error {
	if _, err := o.w.Write(p); err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "write "+o.path)
	}
	return nil
}

func (o *OSFileIO) Flush() error {
	if o.w == nil {
		return nil
	}
	if err := o.w.Flush(); err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "flush "+o.path)
	}
	return nil
}

func (o *OSFileIO) Size() (int64, error) {
	if err := o.Flush(); err != nil {
		return 0, err
	}
	fi, err := o.f.Stat()
	if err != nil {
		return 0, vaulterrors.Wrap(vaulterrors.GenericError, err, "stat "+o.path)
	}
	return fi.Size(), nil
}

func (o *OSFileIO) CreateDirectories(stripLeaf bool) error {
	dir := o.path
	if stripLeaf {
		dir = filepath.Dir(o.path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "mkdir "+dir)
	}
	return nil
}

func (o *OSFileIO) CreateSymlink(target string) error {
	if err := os.Symlink(target, o.path); err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "symlink "+o.path)
	}
	return nil
}

var volumeSuffix = regexp.MustCompile(`^(.*)\.([0-9]+)\.bkp$`)

// FindBasenameAndLastVolume scans the sibling files of path for the
// `basename.N.bkp` series (§6.2) and returns the basename, the highest N
// present, and the number of volumes found. If path itself doesn't match
// the series pattern, its directory/name (without extension) is used as
// the candidate basename and the scan still runs against its siblings.
func FindBasenameAndLastVolume(path string) (basename string, lastVolume uint64, volumeCount int, err error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	candidate := base
	if m := volumeSuffix.FindStringSubmatch(base); m != nil {
		candidate = m[1]
	} else {
		candidate = strings.TrimSuffix(base, filepath.Ext(base))
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return filepath.Join(dir, candidate), 0, 0, nil
		}
		return "", 0, 0, vaulterrors.Wrap(vaulterrors.GenericError, readErr, "readdir "+dir)
	}

	var found []uint64
	for _, e := range entries {
		m := volumeSuffix.FindStringSubmatch(e.Name())
		if m == nil || m[1] != candidate {
			continue
		}
		n, convErr := strconv.ParseUint(m[2], 10, 64)
		if convErr != nil {
			continue
		}
		found = append(found, n)
	}
	if len(found) == 0 {
		return filepath.Join(dir, candidate), 0, 0, nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	return filepath.Join(dir, candidate), found[len(found)-1], len(found), nil
}

// VolumePath returns the conventional path for volume number n of the
// series rooted at basename (§6.2: `basename.N.bkp`).
func VolumePath(basename string, n uint64) string {
	return fmt.Sprintf("%s.%d.bkp", basename, n)
}
