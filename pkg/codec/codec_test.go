package codec

import (
	"strings"
	"testing"

	"github.com/duskvault/chunkvault/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestZlibRoundTrip(t *testing.T) {
	e := ZlibEncoder{}
	src := []byte(strings.Repeat("compressible data ", 200))
	enc, kind, err := e.Encode(src)
	require.NoError(t, err)
	require.Equal(t, wire.EncodingZlib, kind)
	require.Less(t, len(enc), len(src))

	dec, err := e.Decode(enc, kind, len(src))
	require.NoError(t, err)
	require.Equal(t, src, dec)
}

func TestZlibFallsBackToRawWhenNotSmaller(t *testing.T) {
	e := ZlibEncoder{}
	src := []byte("abcdefg1234567")
	_, kind, err := e.Encode(src)
	require.NoError(t, err)
	require.Equal(t, wire.EncodingRaw, kind)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	e := ZlibEncoder{}
	enc, kind, err := e.Encode([]byte(strings.Repeat("x", 1000)))
	require.NoError(t, err)
	require.Equal(t, wire.EncodingZlib, kind)

	enc[len(enc)-1] ^= 0xFF
	_, err = e.Decode(enc, kind, 1000)
	require.Error(t, err)
}

func TestDecodeDetectsSizeMismatch(t *testing.T) {
	e := RawEncoder{}
	_, err := e.Decode([]byte("abc"), wire.EncodingRaw, 99)
	require.Error(t, err)
}

func TestRawEncoderNeverCompresses(t *testing.T) {
	e := RawEncoder{}
	src := []byte(strings.Repeat("y", 500))
	dst, kind, err := e.Encode(src)
	require.NoError(t, err)
	require.Equal(t, wire.EncodingRaw, kind)
	require.Equal(t, src, dst)
}
