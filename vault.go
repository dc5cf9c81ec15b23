// Package vault is the top-level entry point: it wires pkg/library,
// pkg/backup, and pkg/restore behind Open, the way the teacher's iso.go
// wires its ISO9660Image behind Open. There is no separate Create: a new
// series is created by the first Backup.
package vault

import (
	"context"
	"fmt"

	"github.com/duskvault/chunkvault/pkg/backup"
	"github.com/duskvault/chunkvault/pkg/codec"
	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/duskvault/chunkvault/pkg/fsio"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/library"
	"github.com/duskvault/chunkvault/pkg/options"
	"github.com/duskvault/chunkvault/pkg/restore"
	"github.com/duskvault/chunkvault/pkg/volume"
	"github.com/duskvault/chunkvault/pkg/wire"
)

// Option configures a Vault. It's an alias of options.Option so callers
// never need to import pkg/options directly.
type Option = options.Option

var (
	WithLogger               = options.WithLogger
	WithProgress             = options.WithProgress
	WithVolumeChangeCallback = options.WithVolumeChangeCallback
	WithMaxVolumeSizeMB      = options.WithMaxVolumeSizeMB
	WithCompression          = options.WithCompression
)

// BackupType re-exports wire.BackupType so callers of this package never
// need to import pkg/wire directly.
type BackupType = wire.BackupType

const (
	BackupFull         = wire.BackupTypeFull
	BackupIncremental  = wire.BackupTypeIncremental
	BackupDifferential = wire.BackupTypeDifferential
)

// Vault is an open chunkvault series: a basename.N.bkp volume chain plus
// the label registry and chunk index built from it.
type Vault struct {
	lib        *library.Library
	backupEng  *backup.Engine
	restoreEng *restore.Engine
}

func volumeFactory(path string) volume.Volume {
	return volume.New(fsio.NewOSFileIO(path))
}

// Open opens an existing or new volume series rooted at path (any
// `basename.N.bkp` path belonging to the series). opts.EnableCompression
// selects between zlib and raw chunk encoding (spec §4.2).
func Open(path string, opts ...Option) (*Vault, error) {
	o := options.New(opts...)
	var enc codec.Encoder
	if o.EnableCompression {
		enc = codec.ZlibEncoder{}
	} else {
		enc = codec.RawEncoder{}
	}

	lib := library.New(path, digest.MD5Hasher{}, enc, volumeFactory, opts...)
	if err := lib.Init(); err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}

	return &Vault{
		lib:        lib,
		backupEng:  backup.New(lib),
		restoreEng: restore.New(lib),
	}, nil
}

// BackupOptions describes one backup run against an open Vault.
type BackupOptions struct {
	Type wire.BackupType
	// LabelID selects an existing label, or labels.AllocateID (the zero
	// value) to create one named LabelName.
	LabelID     uint64
	LabelName   string
	Description string
	Roots       []string
	Progress    options.ProgressCallback
}

// Backup runs one backup against the vault (spec §4.8).
func (v *Vault) Backup(ctx context.Context, o BackupOptions) error {
	labelID := o.LabelID
	labelName := o.LabelName
	if labelID == labels.AllocateID && labelName == "" {
		labelID = labels.DefaultLabelID
		labelName = "Default"
	}
	return v.backupEng.Run(ctx, backup.RunOptions{
		Type:        o.Type,
		LabelID:     labelID,
		LabelName:   labelName,
		Description: o.Description,
		Roots:       o.Roots,
		Progress:    o.Progress,
	})
}

// RestoreOptions describes one restore or verify run against an open
// Vault.
type RestoreOptions struct {
	LabelID  uint64
	DestRoot string
	Progress options.ProgressCallback
	Verify   bool
}

// FileResult reports the outcome of one resolved file in a restore or
// verify run.
type FileResult = restore.FileResult

// Restore writes the most recent snapshot chain for o.LabelID back to
// o.DestRoot (spec §4.9).
func (v *Vault) Restore(ctx context.Context, o RestoreOptions) ([]FileResult, error) {
	return v.restoreEng.Run(ctx, restore.RunOptions{
		LabelID:  o.LabelID,
		DestRoot: o.DestRoot,
		Progress: o.Progress,
		Verify:   o.Verify,
	})
}

// Verify compares the most recent snapshot chain for o.LabelID against
// the files already present at o.DestRoot, without writing anything
// (spec §4.9's verify mode).
func (v *Vault) Verify(ctx context.Context, o RestoreOptions) ([]FileResult, error) {
	o.Verify = true
	return v.Restore(ctx, o)
}

// Labels returns every label currently known to the vault.
func (v *Vault) Labels() []*labels.Label {
	return v.lib.Labels()
}

// RenameLabel renames an existing label.
func (v *Vault) RenameLabel(id uint64, name string) error {
	return v.lib.RenameLabel(id, name)
}

// LastVolume returns the highest volume number in the series.
func (v *Vault) LastVolume() uint64 {
	return v.lib.LastVolume()
}

// Snapshots returns a label's snapshot chain, newest first. loadAll
// requests the full chain back to the first full snapshot's root;
// otherwise the walk stops at (and includes) the most recent full
// snapshot (spec §4.6).
func (v *Vault) Snapshots(labelID uint64, loadAll bool) ([]volume.Snapshot, error) {
	return v.lib.LoadSnapshots(labelID, loadAll)
}
