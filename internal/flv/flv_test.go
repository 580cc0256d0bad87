package flv_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/nareix/joy4/format/flv/flvio"
	"github.com/rubu/stream-timestamp-analyzer/internal/flv"
	"github.com/rubu/stream-timestamp-analyzer/internal/flv/flvtest"
	"github.com/stretchr/testify/require"
)

func TestReadTags(t *testing.T) {
	tags := []flv.Tag{
		flvtest.Script(0, []byte{0x02, 0x00, 0x00}),
		flvtest.AVC(0x01020304, -40, []byte{0, 0, 0, 1, 0x65}),
		flvtest.AAC(40, []byte{0x21}),
	}
	data, err := flvtest.Stream(tags...)
	require.NoError(t, err)

	r := flv.NewReader(bytes.NewReader(data))
	h, err := r.Header()
	require.NoError(t, err)
	require.Equal(t, flv.Header{HasAudio: true, HasVideo: true}, h)

	got, err := r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, uint8(flvio.TAG_SCRIPTDATA), got.Type)
	require.Equal(t, []byte{0x02, 0x00, 0x00}, got.Data)
	require.False(t, got.IsAVCNALU())

	got, err = r.ReadTag()
	require.NoError(t, err)
	require.True(t, got.IsAVCNALU())
	require.Equal(t, int32(0x01020304), got.Timestamp)
	require.Equal(t, int32(-40), got.CompositionTime)
	require.Equal(t, []byte{0, 0, 0, 1, 0x65}, got.Data)

	got, err = r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, uint8(flvio.TAG_AUDIO), got.Type)
	require.Equal(t, int32(40), got.Timestamp)
	require.Equal(t, []byte{0x21}, got.Data)

	_, err = r.ReadTag()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadTagTruncated(t *testing.T) {
	data, err := flvtest.Stream(flvtest.Script(0, []byte{1, 2, 3, 4}))
	require.NoError(t, err)
	r := flv.NewReader(bytes.NewReader(data[:len(data)-6]))
	_, err = r.ReadTag()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadTagUnknownType(t *testing.T) {
	data, err := flvtest.Stream()
	require.NoError(t, err)
	data = append(data, 0x0f, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0xff, 0, 0, 0, 12)
	r := flv.NewReader(bytes.NewReader(data))
	_, err = r.ReadTag()
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)
}

func TestInvalidHeader(t *testing.T) {
	r := flv.NewReader(bytes.NewReader([]byte("GIF89a\x00\x00\x00\x09\x00\x00\x00\x00")))
	_, err := r.ReadTag()
	require.ErrorIs(t, err, flv.ErrInvalidHeader)

	r = flv.NewReader(bytes.NewReader([]byte("FLV\x01\x01\x00\x00\x00\x02\x00\x00\x00\x00")))
	_, err = r.Header()
	require.ErrorIs(t, err, flv.ErrInvalidHeader)

	r = flv.NewReader(bytes.NewReader([]byte("FLV\x01")))
	_, err = r.Header()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestHeaderWithExtension(t *testing.T) {
	stream, err := flvtest.Stream(flvtest.Script(7, []byte{0x05}))
	require.NoError(t, err)
	b := []byte{'F', 'L', 'V', 1, 1, 0, 0, 0, 12, 0xaa, 0xbb, 0xcc, 0, 0, 0, 0}
	// replace the 13 byte standard header
	r := flv.NewReader(io.MultiReader(bytes.NewReader(b), bytes.NewReader(stream[13:])))
	h, err := r.Header()
	require.NoError(t, err)
	require.Equal(t, flv.Header{HasVideo: true}, h)
	got, err := r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, int32(7), got.Timestamp)
}
