package wire

import (
	"testing"

	"github.com/duskvault/chunkvault/pkg/digest"
	"github.com/stretchr/testify/require"
)

func TestChunkHeaderMarshalUnmarshal(t *testing.T) {
	h := ChunkHeader{
		Digest:        digest.MD5Hasher{}.Sum([]byte("abcdefg1234567")),
		UnencodedSize: 14,
		EncodedSize:   14,
		EncodingType:  EncodingRaw,
	}
	data := h.Marshal()
	require.Equal(t, ChunkHeaderSize, len(data))

	got, err := UnmarshalChunkHeader(data)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestChunkHeaderRejectsWrongHeaderType(t *testing.T) {
	d1 := Descriptor1{TotalChunks: 1, TotalLabels: 0}.Marshal()
	d1 = append(d1, make([]byte, ChunkHeaderSize-len(d1))...)
	_, err := UnmarshalChunkHeader(d1)
	require.Error(t, err)
}

func TestDescriptor1ChunkRoundTrip(t *testing.T) {
	c := Descriptor1Chunk{
		Digest:       digest.MD5Hasher{}.Sum([]byte("x")),
		Offset:       8,
		VolumeNumber: 2,
	}
	data := c.Marshal()
	require.Equal(t, Descriptor1ChunkSize, len(data))
	got, err := UnmarshalDescriptor1Chunk(data)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestDescriptor1LabelRoundTripWithName(t *testing.T) {
	l := Descriptor1Label{ID: 2, LastBackupOffset: 100, LastBackupVolume: 1, Name: "Default"}
	data := l.Marshal()
	got, n, err := UnmarshalDescriptor1Label(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, l, got)
}

func TestDescriptor1LabelMultipleRecordsConcatenate(t *testing.T) {
	l1 := Descriptor1Label{ID: 2, Name: "Default"}
	l2 := Descriptor1Label{ID: 3, Name: "Laptop"}
	buf := append(l1.Marshal(), l2.Marshal()...)

	got1, n1, err := UnmarshalDescriptor1Label(buf)
	require.NoError(t, err)
	require.Equal(t, l1, got1)

	got2, n2, err := UnmarshalDescriptor1Label(buf[n1:])
	require.NoError(t, err)
	require.Equal(t, l2, got2)
	require.Equal(t, len(buf), n1+n2)
}

func TestDescriptor2RoundTrip(t *testing.T) {
	d := Descriptor2{
		PreviousOffset:   10,
		PreviousVolume:   0,
		ParentOffset:     5,
		ParentVolume:     0,
		BackupDate:       1700000000,
		BackupType:       BackupTypeFull,
		UnencodedSize:    14,
		EncodedSize:      14,
		DeduplicatedSize: 14,
		NumFiles:         1,
		LabelID:          1,
		Description:      "Foo",
	}
	data := d.Marshal()
	got, n, err := UnmarshalDescriptor2(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, d, got)
}

func TestBackupFileRoundTripRegular(t *testing.T) {
	f := BackupFile{
		FileSize:   14,
		FileType:   FileTypeRegular,
		CreateDate: 1,
		ModifyDate: 2,
		Attributes: 0o644,
		NumChunks:  1,
		FileName:   "/a",
	}
	data := f.Marshal()
	got, n, err := UnmarshalBackupFile(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, f, got)
}

func TestBackupFileRoundTripSymlink(t *testing.T) {
	f := BackupFile{
		FileType:      FileTypeSymlink,
		FileName:      "/link",
		SymlinkTarget: "/target",
	}
	data := f.Marshal()
	got, n, err := UnmarshalBackupFile(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, f, got)
}

func TestFileChunkRoundTrip(t *testing.T) {
	c := FileChunk{
		Digest:        digest.MD5Hasher{}.Sum([]byte("chunk")),
		VolumeNum:     3,
		VolumeOffset:  128,
		ChunkOffset:   0,
		UnencodedSize: 14,
	}
	data := c.Marshal()
	require.Equal(t, FileChunkSize, len(data))
	got, err := UnmarshalFileChunk(data)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestDescriptorHeaderRoundTrip(t *testing.T) {
	h := DescriptorHeader{
		Descriptor1Offset:  4096,
		Descriptor2Present: true,
		Cancelled:          false,
		VolumeNumber:       0,
	}
	data := h.Marshal()
	require.Equal(t, DescriptorHeaderSize, len(data))
	got, err := UnmarshalDescriptorHeader(data)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDescriptorHeaderCancelled(t *testing.T) {
	h := DescriptorHeader{Descriptor1Offset: 8, Cancelled: true, VolumeNumber: 4}
	data := h.Marshal()
	got, err := UnmarshalDescriptorHeader(data)
	require.NoError(t, err)
	require.True(t, got.Cancelled)
	require.False(t, got.Descriptor2Present)
}
