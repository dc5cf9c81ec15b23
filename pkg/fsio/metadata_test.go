package fsio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskvault/chunkvault/pkg/wire"
)

func TestFillMetadataRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o640))

	m, err := FillMetadata(path)
	require.NoError(t, err)
	require.Equal(t, wire.FileTypeRegular, m.FileType)
	require.Equal(t, int64(5), m.Size)
	require.Equal(t, uint64(0o640), m.Attributes)
}

func TestFillMetadataSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	m, err := FillMetadata(link)
	require.NoError(t, err)
	require.Equal(t, wire.FileTypeSymlink, m.FileType)
	require.Equal(t, target, m.SymlinkTarget)
}

func TestFillMetadataMissingPath(t *testing.T) {
	_, err := FillMetadata(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestRestoreAttributesAppliesModeAndModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o666))

	mtime := time.Date(2019, time.June, 1, 8, 30, 0, 0, time.UTC)
	f := wire.BackupFile{
		FileType:   wire.FileTypeRegular,
		Attributes: 0o600,
		ModifyDate: uint64(mtime.Unix()),
	}
	require.NoError(t, RestoreAttributes(path, f))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	require.True(t, fi.ModTime().Equal(mtime), "got %s, want %s", fi.ModTime(), mtime)
}

func TestRestoreAttributesSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	f := wire.BackupFile{FileType: wire.FileTypeSymlink, Attributes: 0o600}
	require.NoError(t, RestoreAttributes(link, f))
}
