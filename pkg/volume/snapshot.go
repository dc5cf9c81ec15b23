package volume

import (
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/wire"
)

// FileEntry pairs a file's metadata with the ordered chunk references that
// reconstruct its bytes (spec §3.5).
type FileEntry struct {
	Meta   wire.BackupFile
	Chunks []wire.FileChunk
}

// Snapshot is the decoded form of a volume's Descriptor2 plus the file
// records that follow it (spec §3.6). SelfRef is filled in by
// CloseWithSnapshot (or ReadSnapshotAt) once the snapshot's own offset is
// known, so it can be handed to the
// label registry or recorded as another snapshot's PreviousRef/ParentRef.
type Snapshot struct {
	SelfRef          labels.SnapshotRef
	PreviousRef      labels.SnapshotRef
	ParentRef        labels.SnapshotRef
	Date             uint64
	Type             wire.BackupType
	UnencodedSize    uint64
	EncodedSize      uint64
	DeduplicatedSize uint64
	LabelID          uint64
	Description      string
	Files            []FileEntry
}
