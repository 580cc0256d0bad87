package avc

import (
	"encoding/binary"
	"testing"

	mp4avc "github.com/Eyevinn/mp4ff/avc"
	"github.com/stretchr/testify/require"
)

var testNalus = [][]byte{
	{0x09, 0xf0},
	{0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9},
	{0x68, 0xeb, 0xe3, 0xcb},
	{0x06, 0x05, 0x02, 0x11, 0x22, 0x80},
	{0x65, 0x88, 0x84, 0x00, 0x33, 0xff, 0x01, 0x02},
}

func avccFrame(nalus [][]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = binary.BigEndian.AppendUint32(out, uint32(len(n)))
		out = append(out, n...)
	}
	return out
}

func annexBFrame(nalus [][]byte, startCode []byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, startCode...)
		out = append(out, n...)
	}
	return out
}

func naluBytes(nalus []NALUnit) [][]byte {
	out := make([][]byte, 0, len(nalus))
	for _, n := range nalus {
		out = append(out, n.Bytes())
	}
	return out
}

func TestScan(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want [][]byte
	}{
		{"avcc", avccFrame(testNalus), testNalus},
		{"annexb 3-byte start codes", annexBFrame(testNalus, []byte{0, 0, 1}), testNalus},
		{"annexb 4-byte start codes", annexBFrame(testNalus, []byte{0, 0, 0, 1}), testNalus},
		{"annexb leading garbage", append([]byte{0xaa, 0xbb}, annexBFrame(testNalus[:2], []byte{0, 0, 1})...), testNalus[:2]},
		{"avcc zero length skipped", avccFrame([][]byte{{}, testNalus[0]}), testNalus[:1]},
		{"annexb empty nalus skipped", []byte{0, 0, 1, 0, 0, 1, 0x09, 0xf0}, testNalus[:1]},
		{"empty", nil, [][]byte{}},
		{"no start code", []byte{0x12, 0x34, 0x56}, [][]byte{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := naluBytes(Scan(c.data))
			require.Equal(t, c.want, got)
		})
	}
}

func TestScanFallsBackOnTruncatedLength(t *testing.T) {
	data := avccFrame(testNalus)
	// Last NAL unit claims one byte more than available.
	data = data[:len(data)-1]
	require.Empty(t, Scan(data), "truncated AVCC without start codes yields nothing")

	mixed := append(annexBFrame(testNalus[:1], []byte{0, 0, 1}), 0x00, 0x00, 0x01)
	require.Equal(t, testNalus[:1], naluBytes(Scan(mixed)))
}

func TestNALUnitHeader(t *testing.T) {
	n := NewNALUnit([]byte{0x66, 0x05})
	require.Equal(t, uint8(0), n.ForbiddenZeroBit())
	require.Equal(t, uint8(3), n.RefIdc())
	require.Equal(t, mp4avc.NALU_SEI, n.Type())
	require.True(t, n.IsSEI())

	idr := NewNALUnit([]byte{0xe5})
	require.Equal(t, uint8(1), idr.ForbiddenZeroBit())
	require.Equal(t, mp4avc.NALU_IDR, idr.Type())
	require.False(t, idr.IsSEI())

	require.False(t, NewNALUnit(nil).IsSEI())
}
