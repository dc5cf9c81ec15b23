// Package backup implements the backup engine (spec §4.8): walks a
// selected file set, chunks regular files in fixed windows, dedupes
// through a Library, and records directories/symlinks as structural
// entries. Grounded on original_source/src/backup_driver.cc's
// PerformBackup loop (open, read fixed windows, hash, write-if-new,
// advance until a short read) generalized to the three backup types and
// to whole-tree traversal instead of a fixed filelist.
package backup

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/duskvault/chunkvault/pkg/consts"
	"github.com/duskvault/chunkvault/pkg/fsio"
	"github.com/duskvault/chunkvault/pkg/library"
	"github.com/duskvault/chunkvault/pkg/options"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/volume"
	"github.com/duskvault/chunkvault/pkg/wire"
)

// Library is the subset of *library.Library the engine drives, kept as
// an interface so tests can substitute a double without a real volume
// series behind it.
type Library interface {
	CreateBackup(o library.BackupCreateOptions) error
	CreateFile(meta wire.BackupFile) *volume.FileEntry
	AddChunk(data []byte, fileOffset uint64, entry *volume.FileEntry) error
	CloseBackup() error
	CancelBackup() error
	LoadSnapshots(labelID uint64, loadAll bool) ([]volume.Snapshot, error)
}

// RunOptions describes one backup invocation.
type RunOptions struct {
	Type        wire.BackupType
	LabelID     uint64
	LabelName   string
	Description string
	Roots       []string
	Progress    options.ProgressCallback
}

// Engine runs backups against a Library.
type Engine struct {
	lib Library
}

// New returns an Engine driving lib.
func New(lib Library) *Engine {
	return &Engine{lib: lib}
}

type fileTask struct {
	path string
	meta fsio.Metadata
}

// Run performs one backup per o (spec §4.8). ctx cancellation is polled
// at chunk boundaries; on cancellation the in-progress volume is closed
// as cancelled and Run returns ctx.Err().
func (e *Engine) Run(ctx context.Context, o RunOptions) error {
	tasks, err := discover(o.Roots)
	if err != nil {
		return err
	}

	if err := e.lib.CreateBackup(library.BackupCreateOptions{
		Type:        o.Type,
		Description: o.Description,
		LabelID:     o.LabelID,
		LabelName:   o.LabelName,
	}); err != nil {
		return err
	}

	var baseline map[string]wire.BackupFile
	if o.Type == wire.BackupTypeIncremental || o.Type == wire.BackupTypeDifferential {
		snaps, err := e.lib.LoadSnapshots(o.LabelID, false)
		if err != nil && vaulterrors.KindOf(err) != vaulterrors.NoSuchFile {
			return err
		}
		baseline = buildBaseline(snaps, o.Type)
	}

	included := make([]fileTask, 0, len(tasks))
	var totalBytes int64
	for _, t := range tasks {
		if t.meta.FileType == wire.FileTypeRegular && baseline != nil && !changedSince(t, baseline) {
			continue
		}
		included = append(included, t)
		if t.meta.FileType == wire.FileTypeRegular {
			totalBytes += t.meta.Size
		}
	}

	var transferred, lastReported int64
	for i, t := range included {
		if err := ctx.Err(); err != nil {
			_ = e.lib.CancelBackup()
			return err
		}

		meta := wire.BackupFile{
			FileType:      t.meta.FileType,
			FileName:      t.path,
			ModifyDate:    uint64(t.meta.ModifyDate.Unix()),
			CreateDate:    uint64(t.meta.CreateDate.Unix()),
			Attributes:    t.meta.Attributes,
			SymlinkTarget: t.meta.SymlinkTarget,
		}
		if t.meta.FileType == wire.FileTypeRegular {
			meta.FileSize = uint64(t.meta.Size)
		}
		entry := e.lib.CreateFile(meta)

		if t.meta.FileType == wire.FileTypeRegular {
			_, err := e.chunkFile(ctx, t.path, entry, o.Progress, t.path, i+1, len(included), totalBytes, &transferred, &lastReported)
			if err != nil {
				_ = e.lib.CancelBackup()
				return err
			}
		}

		if o.Progress != nil {
			o.Progress(t.path, transferred, totalBytes, i+1, len(included))
		}
	}

	return e.lib.CloseBackup()
}

// chunkFile reads path in fixed consts.ChunkWindowSize windows, calling
// AddChunk for each, until a short read signals end of file. Progress
// fires every consts.ProgressIntervalBytes of newly completed bytes.
func (e *Engine) chunkFile(
	ctx context.Context, path string, entry *volume.FileEntry, progress options.ProgressCallback,
	filename string, fileNum, totalFiles int, totalBytes int64, transferred, lastReported *int64,
) (int64, error) {
	f := fsio.NewOSFileIO(path)
	if err := f.Open(fsio.ModeRead); err != nil {
		return 0, err
	}
	defer f.Close()

	var read int64
	offset := uint64(0)
	for {
		if err := ctx.Err(); err != nil {
			return read, err
		}
		data, err := f.Read(consts.ChunkWindowSize)
		if len(data) > 0 {
			if err := e.lib.AddChunk(data, offset, entry); err != nil {
				return read, err
			}
			offset += uint64(len(data))
			read += int64(len(data))
			*transferred += int64(len(data))
			if *transferred-*lastReported >= consts.ProgressIntervalBytes {
				*lastReported = *transferred
				if progress != nil {
					progress(filename, *transferred, totalBytes, fileNum, totalFiles)
				}
			}
		}
		if err != nil {
			if vaulterrors.KindOf(err) == vaulterrors.ShortRead {
				return read, nil
			}
			return read, err
		}
	}
}

// discover walks roots, classifying each entry as a regular file,
// directory, or symlink (spec §4.8: "directories and symlinks are
// recorded as file entries with no chunks") and capturing the metadata
// backup.Run needs to both baseline-compare and restore later.
func discover(roots []string) ([]fileTask, error) {
	var tasks []fileTask
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			m, err := fsio.FillMetadata(path)
			if err != nil {
				return err
			}
			tasks = append(tasks, fileTask{path: path, meta: m})
			return nil
		})
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.GenericError, err, "walk "+root)
		}
	}
	return tasks, nil
}

// buildBaseline resolves the comparison file set for an incremental or
// differential backup (spec §4.8). snaps is ordered newest to oldest and
// already stops at (and includes) the most recent full snapshot, per
// Library.LoadSnapshots(labelID, loadAll=false).
func buildBaseline(snaps []volume.Snapshot, btype wire.BackupType) map[string]wire.BackupFile {
	baseline := make(map[string]wire.BackupFile)
	if len(snaps) == 0 {
		return baseline
	}
	if btype == wire.BackupTypeDifferential {
		full := snaps[len(snaps)-1]
		for _, fe := range full.Files {
			baseline[fe.Meta.FileName] = fe.Meta
		}
		return baseline
	}
	for _, snap := range snaps {
		for _, fe := range snap.Files {
			if _, ok := baseline[fe.Meta.FileName]; !ok {
				baseline[fe.Meta.FileName] = fe.Meta
			}
		}
	}
	return baseline
}

// changedSince reports whether t should be included given baseline: it's
// new, or its size or modification time differ (spec §4.8).
func changedSince(t fileTask, baseline map[string]wire.BackupFile) bool {
	prev, ok := baseline[t.path]
	if !ok {
		return true
	}
	if uint64(t.meta.Size) != prev.FileSize {
		return true
	}
	return uint64(t.meta.ModifyDate.Unix()) != prev.ModifyDate
}
