// Package consts holds the fixed sizing/tuning constants of the backup
// core (spec §4.7/§4.8) that aren't themselves part of the on-disk wire
// format (those live in pkg/wire).
package consts

const (
	// ChunkWindowSize is the read window the backup engine uses when
	// streaming a file's bytes into chunks (spec §4.8).
	ChunkWindowSize = 64 * 1024

	// ProgressIntervalBytes is the minimum amount of newly-completed
	// source bytes between ProgressCallback invocations (spec §4.8).
	ProgressIntervalBytes = 1 * 1024 * 1024

	// MaxSizeThresholdMB is the bin-packing headroom (spec §4.7): a
	// volume is only reused for append if it sits at least this many MB
	// below the configured maximum, leaving guaranteed room for the
	// snapshot metadata a closing backup must still write.
	MaxSizeThresholdMB = 1

	// DefaultMaxVolumeSizeMB is used when the caller doesn't configure a
	// volume size cap explicitly.
	DefaultMaxVolumeSizeMB = 100
)
