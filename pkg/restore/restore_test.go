package restore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskvault/chunkvault/internal/fakevolume"
	"github.com/duskvault/chunkvault/pkg/backup"
	"github.com/duskvault/chunkvault/pkg/codec"
	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/library"
	"github.com/duskvault/chunkvault/pkg/volume"
	"github.com/duskvault/chunkvault/pkg/wire"
)

var volNumRe = regexp.MustCompile(`\.([0-9]+)\.bkp$`)

type fakeFactory struct {
	byPath map[string]*fakevolume.Volume
}

func (f *fakeFactory) factory(path string) volume.Volume {
	if v, ok := f.byPath[path]; ok {
		return v
	}
	n := uint64(0)
	if m := volNumRe.FindStringSubmatch(filepath.Base(path)); m != nil {
		parsed, _ := strconv.ParseUint(m[1], 10, 64)
		n = parsed
	}
	v := fakevolume.New(n)
	f.byPath[path] = v
	return v
}

func newTestLibrary(t *testing.T) *library.Library {
	t.Helper()
	factory := &fakeFactory{byPath: make(map[string]*fakevolume.Volume)}
	basename := filepath.Join(t.TempDir(), "vault")
	lib := library.New(basename, digest.MD5Hasher{}, codec.RawEncoder{}, factory.factory)
	require.NoError(t, lib.Init())
	return lib
}

func TestRestoreWritesFilesAndDirectories(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("nested content"), 0o644))

	lib := newTestLibrary(t)
	require.NoError(t, backup.New(lib).Run(context.Background(), backup.RunOptions{
		Type:      wire.BackupTypeFull,
		LabelID:   labels.DefaultLabelID,
		LabelName: "Default",
		Roots:     []string{src},
	}))

	dest := t.TempDir()
	engine := New(lib)
	results, err := engine.Run(context.Background(), RunOptions{LabelID: labels.DefaultLabelID, DestRoot: dest})
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.False(t, r.Differs)
	}

	gotA, err := os.ReadFile(filepath.Join(dest, src, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(gotA))

	gotB, err := os.ReadFile(filepath.Join(dest, src, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "nested content", string(gotB))
}

func TestRestoreReappliesPermissionsAndModTime(t *testing.T) {
	src := t.TempDir()
	filePath := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello world"), 0o600))
	mtime := time.Date(2020, time.March, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filePath, mtime, mtime))

	lib := newTestLibrary(t)
	require.NoError(t, backup.New(lib).Run(context.Background(), backup.RunOptions{
		Type:      wire.BackupTypeFull,
		LabelID:   labels.DefaultLabelID,
		LabelName: "Default",
		Roots:     []string{src},
	}))

	dest := t.TempDir()
	engine := New(lib)
	results, err := engine.Run(context.Background(), RunOptions{LabelID: labels.DefaultLabelID, DestRoot: dest})
	require.NoError(t, err)
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	restored := filepath.Join(dest, src, "a.txt")
	fi, err := os.Stat(restored)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	require.True(t, fi.ModTime().Equal(mtime), "got %s, want %s", fi.ModTime(), mtime)
}

func TestVerifyDetectsModifiedFile(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("original content"), 0o644))

	lib := newTestLibrary(t)
	require.NoError(t, backup.New(lib).Run(context.Background(), backup.RunOptions{
		Type:      wire.BackupTypeFull,
		LabelID:   labels.DefaultLabelID,
		LabelName: "Default",
		Roots:     []string{src},
	}))

	dest := t.TempDir()
	engine := New(lib)
	_, err := engine.Run(context.Background(), RunOptions{LabelID: labels.DefaultLabelID, DestRoot: dest})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dest, src, "a.txt"), []byte("TAMPERED!!!!!!!!"), 0o644))

	results, err := engine.Run(context.Background(), RunOptions{LabelID: labels.DefaultLabelID, DestRoot: dest, Verify: true})
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if filepath.Base(r.FileName) == "a.txt" {
			found = true
			require.True(t, r.Differs)
		}
	}
	require.True(t, found)
}
