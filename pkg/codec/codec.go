// Package codec implements the chunk payload encoder/decoder capability
// (spec §4.2): compress a chunk's raw bytes before it's written to a
// volume, and reverse that on read. The caller decides per chunk whether
// the encoded form actually won; this package just does the encode/decode
// work.
package codec

import (
	"bytes"
	"io"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
	"github.com/duskvault/chunkvault/pkg/wire"
	"github.com/klauspost/compress/zlib"
)

// Encoder compresses and decompresses chunk payloads.
type Encoder interface {
	// Encode compresses src, returning the encoded bytes and the encoding
	// type that was actually used (an implementation may fall back to raw
	// if compression didn't help).
	Encode(src []byte) (dst []byte, kind wire.EncodingType, err error)
	// Decode reverses Encode. expectedSize is the original unencoded
	// length; a mismatch after decoding is reported as CorruptBackup.
	Decode(src []byte, kind wire.EncodingType, expectedSize int) (dst []byte, err error)
}

// ZlibEncoder is the default Encoder: zlib at default compression, with a
// raw fallback when compression doesn't shrink the chunk (spec §4.2).
type ZlibEncoder struct{}

func (ZlibEncoder) Encode(src []byte) ([]byte, wire.EncodingType, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, wire.EncodingRaw, vaulterrors.Wrap(vaulterrors.GenericError, err, "zlib encode")
	}
	if err := w.Close(); err != nil {
		return nil, wire.EncodingRaw, vaulterrors.Wrap(vaulterrors.GenericError, err, "zlib encode close")
	}
	if buf.Len() >= len(src) {
		return append([]byte(nil), src...), wire.EncodingRaw, nil
	}
	return buf.Bytes(), wire.EncodingZlib, nil
}

func (ZlibEncoder) Decode(src []byte, kind wire.EncodingType, expectedSize int) ([]byte, error) {
	switch kind {
	case wire.EncodingRaw:
		if len(src) != expectedSize {
			return nil, vaulterrors.Newf(vaulterrors.CorruptBackup,
				"raw chunk size mismatch: want %d, got %d", expectedSize, len(src))
		}
		return src, nil
	case wire.EncodingZlib:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.CorruptBackup, err, "zlib stream malformed")
		}
		defer r.Close()
		dst, err := io.ReadAll(r)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.CorruptBackup, err, "zlib decode")
		}
		if len(dst) != expectedSize {
			return nil, vaulterrors.Newf(vaulterrors.CorruptBackup,
				"decoded size mismatch: want %d, got %d", expectedSize, len(dst))
		}
		return dst, nil
	default:
		return nil, vaulterrors.Newf(vaulterrors.CorruptBackup, "unknown encoding type %d", kind)
	}
}

// RawEncoder never compresses; used when the caller has disabled
// compression entirely.
type RawEncoder struct{}

func (RawEncoder) Encode(src []byte) ([]byte, wire.EncodingType, error) {
	return append([]byte(nil), src...), wire.EncodingRaw, nil
}

func (RawEncoder) Decode(src []byte, kind wire.EncodingType, expectedSize int) ([]byte, error) {
	if kind == wire.EncodingZlib {
		return ZlibEncoder{}.Decode(src, kind, expectedSize)
	}
	if len(src) != expectedSize {
		return nil, vaulterrors.Newf(vaulterrors.CorruptBackup,
			"raw chunk size mismatch: want %d, got %d", expectedSize, len(src))
	}
	return src, nil
}
