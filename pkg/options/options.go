// Package options implements the functional-options pattern the library
// and backup engine are configured with, following the teacher's own
// Option/WithX shape.
package options

import (
	"github.com/go-logr/logr"

	"github.com/duskvault/chunkvault/pkg/consts"
)

// ProgressCallback reports progress during a backup or restore. The backup
// engine calls it every time at least ProgressIntervalBytes of new data
// has completed (spec §4.8) and again after each file. The restore/verify
// engine calls it once per completed regular file and passes the completed
// and total file counts as bytesTransferred and totalBytes.
type ProgressCallback func(
	currentFilename string,
	bytesTransferred int64,
	totalBytes int64,
	currentFileNumber int,
	totalFileCount int,
)

// VolumeChangeCallback is invoked when the library needs a volume file it
// can't find on disk (spec §4.7's cross-media resolution). It's given the
// filename the library expected, and returns a directory containing it,
// or empty to cancel the operation.
type VolumeChangeCallback func(expectedFilename string) string

// Options configures a Library.
type Options struct {
	Logger               logr.Logger
	VolumeChangeCallback VolumeChangeCallback
	ProgressCallback     ProgressCallback
	MaxVolumeSizeMB      uint64
	EnableCompression    bool
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logr.Logger the library and engines log through.
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithProgress sets the progress callback.
func WithProgress(callback ProgressCallback) Option {
	return func(o *Options) {
		o.ProgressCallback = callback
	}
}

// WithVolumeChangeCallback sets the callback used to resolve a missing
// volume file.
func WithVolumeChangeCallback(callback VolumeChangeCallback) Option {
	return func(o *Options) {
		o.VolumeChangeCallback = callback
	}
}

// WithMaxVolumeSizeMB caps how large a volume is allowed to grow before
// the library rolls over to a new one (spec §3.8/§4.7). Zero means
// unbounded.
func WithMaxVolumeSizeMB(mb uint64) Option {
	return func(o *Options) {
		o.MaxVolumeSizeMB = mb
	}
}

// WithCompression enables zlib chunk compression (spec §4.2).
func WithCompression(enabled bool) Option {
	return func(o *Options) {
		o.EnableCompression = enabled
	}
}

// New applies opts over a set of defaults.
func New(opts ...Option) Options {
	o := Options{
		Logger:          logr.Discard(),
		MaxVolumeSizeMB: consts.DefaultMaxVolumeSizeMB,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
