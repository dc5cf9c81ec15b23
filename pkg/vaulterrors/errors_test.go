package vaulterrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesByKindNotDescription(t *testing.T) {
	err := New(CorruptBackup, "chunk MD5 mismatch")
	require.True(t, errors.Is(err, New(CorruptBackup, "a different message")))
	require.False(t, errors.Is(err, New(NoSuchFile, "chunk MD5 mismatch")))
}

func TestWrapUnwrapsToCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(GenericError, cause, "writing chunk")
	require.ErrorIs(t, err, cause)
	require.Equal(t, GenericError, KindOf(err))
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	require.Equal(t, Unknown, KindOf(fmt.Errorf("plain")))
}

func TestIsHelper(t *testing.T) {
	require.True(t, Is(New(ShortRead, "eof"), ShortRead))
	require.False(t, Is(New(ShortRead, "eof"), NotLastVolume))
}
