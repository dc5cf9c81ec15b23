package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMD5HasherDependsOnlyOnBytes(t *testing.T) {
	h := MD5Hasher{}
	a := h.Sum([]byte("abcdefg1234567"))
	b := h.Sum([]byte("abcdefg1234567"))
	require.Equal(t, a, b)

	c := h.Sum([]byte("different"))
	require.NotEqual(t, a, c)
}

func TestBytesRoundTrip(t *testing.T) {
	h := MD5Hasher{}
	d := h.Sum([]byte("round trip me"))
	require.Equal(t, d, FromBytes(d.Bytes()))
}

func TestLessIsATotalOrder(t *testing.T) {
	a := Digest128{Hi: 1, Lo: 5}
	b := Digest128{Hi: 1, Lo: 9}
	c := Digest128{Hi: 2, Lo: 0}
	require.True(t, a.Less(b))
	require.True(t, b.Less(c))
	require.False(t, b.Less(a))
}

func TestZeroDigest(t *testing.T) {
	require.True(t, Digest128{}.IsZero())
	require.False(t, (Digest128{Hi: 1}).IsZero())
}
