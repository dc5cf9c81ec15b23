// Package restore implements the restore and verify engine (spec §4.9):
// resolves a snapshot's file set across its chain, orders chunk reads by
// (volume, offset) for a single forward sweep per volume, and either
// writes files back to disk or compares them against existing content.
//
// Grounded on original_source/src/restore_driver.cc's Restore(): load the
// volume, load file sets, create destination directories, open the
// destination file, and write each chunk's decoded bytes in turn. The
// original explicitly punts on chain resolution, chunk-plan ordering, and
// verification ("TODO(darkstar62): Implement this" appears twice, once
// for set/file selection and once for chunk-order optimization) so those
// pieces are built from spec prose rather than ported.
package restore

import (
	"context"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/duskvault/chunkvault/pkg/fsio"
	"github.com/duskvault/chunkvault/pkg/options"
	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/volume"
	"github.com/duskvault/chunkvault/pkg/wire"
)

// materializeConcurrency bounds how many directories/symlinks are
// created at once; these are independent, order-insensitive filesystem
// operations well suited to a bounded fan-out.
const materializeConcurrency = 8

// Library is the subset of *library.Library the engine drives.
type Library interface {
	LoadSnapshots(labelID uint64, loadAll bool) ([]volume.Snapshot, error)
	ReadChunk(fc wire.FileChunk) ([]byte, error)
}

// RunOptions describes one restore or verify invocation.
type RunOptions struct {
	LabelID  uint64
	DestRoot string
	Progress options.ProgressCallback
	// Verify, if true, compares chunk bytes against DestRoot's existing
	// files instead of writing them (spec §4.9's verify mode).
	Verify bool
}

// FileResult reports the outcome of one resolved file.
type FileResult struct {
	FileName string
	Differs  bool
	Err      error
}

// Engine runs restores and verifies against a Library.
type Engine struct {
	lib Library
}

// New returns an Engine driving lib.
func New(lib Library) *Engine {
	return &Engine{lib: lib}
}

type planItem struct {
	chunk     wire.FileChunk
	fileIndex int
}

// Run resolves the file set for o.LabelID, materializes directories and
// symlinks, then walks a (volume, offset)-sorted chunk plan, writing or
// verifying each file's content (spec §4.9).
func (e *Engine) Run(ctx context.Context, o RunOptions) ([]FileResult, error) {
	snaps, err := e.lib.LoadSnapshots(o.LabelID, false)
	if err != nil {
		return nil, err
	}
	files := resolveFiles(snaps)

	results := make([]FileResult, len(files))
	for i, fe := range files {
		results[i] = FileResult{FileName: fe.Meta.FileName}
	}

	dirGroup, _ := errgroup.WithContext(ctx)
	dirGroup.SetLimit(materializeConcurrency)
	for i, fe := range files {
		if o.Verify || fe.Meta.FileType != wire.FileTypeDirectory {
			continue
		}
		i, fe := i, fe
		dirGroup.Go(func() error {
			dest := destPath(o.DestRoot, fe.Meta.FileName)
			if err := fsio.NewOSFileIO(dest).CreateDirectories(false); err != nil {
				results[i].Err = err
				return nil
			}
			if !o.Verify {
				if err := fsio.RestoreAttributes(dest, fe.Meta); err != nil {
					results[i].Err = err
				}
			}
			return nil
		})
	}
	dirGroup.Wait()

	linkGroup, _ := errgroup.WithContext(ctx)
	linkGroup.SetLimit(materializeConcurrency)
	for i, fe := range files {
		if o.Verify || fe.Meta.FileType != wire.FileTypeSymlink {
			continue
		}
		i, fe := i, fe
		linkGroup.Go(func() error {
			dest := destPath(o.DestRoot, fe.Meta.FileName)
			io := fsio.NewOSFileIO(dest)
			if err := io.CreateDirectories(true); err != nil {
				results[i].Err = err
				return nil
			}
			if err := io.CreateSymlink(fe.Meta.SymlinkTarget); err != nil {
				results[i].Err = err
				return nil
			}
			if !o.Verify {
				if err := fsio.RestoreAttributes(dest, fe.Meta); err != nil {
					results[i].Err = err
				}
			}
			return nil
		})
	}
	linkGroup.Wait()

	if !o.Verify {
		for i, fe := range files {
			if fe.Meta.FileType == wire.FileTypeRegular && len(fe.Chunks) == 0 {
				dest := destPath(o.DestRoot, fe.Meta.FileName)
				h := fsio.NewOSFileIO(dest)
				if err := h.CreateDirectories(true); err != nil {
					results[i].Err = err
					continue
				}
				if err := h.Open(fsio.ModeReadWrite); err != nil {
					results[i].Err = err
					continue
				}
				h.Close()
				if err := fsio.RestoreAttributes(dest, fe.Meta); err != nil {
					results[i].Err = err
				}
			}
		}
	}

	plan := buildPlan(files)
	lastPlanIndexForFile := make(map[int]int, len(files))
	for i, item := range plan {
		lastPlanIndexForFile[item.fileIndex] = i
	}

	handles := make(map[int]fsio.FileIO)
	skip := make(map[int]bool)
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()

	var processed, total int
	for _, fe := range files {
		if fe.Meta.FileType == wire.FileTypeRegular {
			total++
		}
	}

	for planIdx, item := range plan {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if skip[item.fileIndex] {
			continue
		}
		fe := files[item.fileIndex]

		h, ok := handles[item.fileIndex]
		if !ok {
			dest := destPath(o.DestRoot, fe.Meta.FileName)
			h = fsio.NewOSFileIO(dest)
			mode := fsio.ModeReadWrite
			if o.Verify {
				mode = fsio.ModeRead
				if err := h.Open(mode); err != nil {
					results[item.fileIndex].Differs = true
					results[item.fileIndex].Err = err
					skip[item.fileIndex] = true
					processed++
					reportProgress(o.Progress, fe.Meta.FileName, processed, total)
					continue
				}
			} else {
				if err := h.CreateDirectories(true); err != nil {
					results[item.fileIndex].Err = err
					skip[item.fileIndex] = true
					continue
				}
				if err := h.Open(mode); err != nil {
					results[item.fileIndex].Err = err
					skip[item.fileIndex] = true
					continue
				}
			}
			handles[item.fileIndex] = h
		}

		data, err := e.lib.ReadChunk(item.chunk)
		if err != nil {
			results[item.fileIndex].Err = err
			results[item.fileIndex].Differs = true
			skip[item.fileIndex] = true
			processed++
			reportProgress(o.Progress, fe.Meta.FileName, processed, total)
			continue
		}

		if o.Verify {
			if differs, verr := compareAt(h, item.chunk, data); verr != nil || differs {
				results[item.fileIndex].Differs = true
				if verr != nil {
					results[item.fileIndex].Err = verr
				}
				skip[item.fileIndex] = true
			}
		} else {
			if err := h.Seek(int64(item.chunk.ChunkOffset)); err != nil {
				results[item.fileIndex].Err = err
				skip[item.fileIndex] = true
				continue
			}
			if err := h.Write(data); err != nil {
				results[item.fileIndex].Err = err
				skip[item.fileIndex] = true
			}
		}

		if planIdx == lastPlanIndexForFile[item.fileIndex] {
			if !o.Verify && !skip[item.fileIndex] {
				dest := destPath(o.DestRoot, fe.Meta.FileName)
				if err := h.Flush(); err != nil {
					results[item.fileIndex].Err = err
				} else if err := fsio.RestoreAttributes(dest, fe.Meta); err != nil {
					results[item.fileIndex].Err = err
				}
			}
			processed++
			reportProgress(o.Progress, fe.Meta.FileName, processed, total)
		}
	}

	return results, nil
}

func reportProgress(cb options.ProgressCallback, filename string, current, total int) {
	if cb != nil {
		cb(filename, int64(current), int64(total), current, total)
	}
}

// compareAt reads len(want) bytes at chunk.ChunkOffset from h and reports
// whether they differ from want. A read error or short read both count
// as a difference (spec §4.9: "any mismatch or read error marks the file
// as different").
func compareAt(h fsio.FileIO, chunk wire.FileChunk, want []byte) (bool, error) {
	if err := h.Seek(int64(chunk.ChunkOffset)); err != nil {
		return true, err
	}
	got, err := h.Read(len(want))
	if err != nil && vaulterrors.KindOf(err) != vaulterrors.ShortRead {
		return true, err
	}
	if len(got) != len(want) {
		return true, nil
	}
	for i := range want {
		if got[i] != want[i] {
			return true, nil
		}
	}
	return false, nil
}

// resolveFiles applies "first-seen wins" over snaps (ordered newest to
// oldest) so a newer copy of a filename supersedes any older one (spec
// §4.9).
func resolveFiles(snaps []volume.Snapshot) []volume.FileEntry {
	seen := make(map[string]bool)
	var out []volume.FileEntry
	for _, snap := range snaps {
		for _, fe := range snap.Files {
			if seen[fe.Meta.FileName] {
				continue
			}
			seen[fe.Meta.FileName] = true
			out = append(out, fe)
		}
	}
	return out
}

// buildPlan lists every chunk across every regular file, sorted by
// (volume_number, volume_offset) for a single forward sweep per volume
// (spec §4.9).
func buildPlan(files []volume.FileEntry) []planItem {
	var plan []planItem
	for i, fe := range files {
		for _, c := range fe.Chunks {
			plan = append(plan, planItem{chunk: c, fileIndex: i})
		}
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].chunk.VolumeNum != plan[j].chunk.VolumeNum {
			return plan[i].chunk.VolumeNum < plan[j].chunk.VolumeNum
		}
		return plan[i].chunk.VolumeOffset < plan[j].chunk.VolumeOffset
	})
	return plan
}

func destPath(root, name string) string {
	return filepath.Join(root, name)
}
