package avc

import (
	"bytes"
	"encoding/binary"

	mp4avc "github.com/Eyevinn/mp4ff/avc"
)

// NALUnit is a view over one NAL unit of an access unit. The first byte is
// the NAL header.
type NALUnit struct {
	data []byte
}

// NewNALUnit wraps b without copying it.
func NewNALUnit(b []byte) NALUnit {
	return NALUnit{data: b}
}

// Bytes returns the NAL unit including its header byte.
func (n NALUnit) Bytes() []byte {
	return n.data
}

// Len is the number of bytes in the NAL unit including the header.
func (n NALUnit) Len() int {
	return len(n.data)
}

func (n NALUnit) ForbiddenZeroBit() uint8 {
	if len(n.data) == 0 {
		return 0
	}
	return (n.data[0] & 0x80) >> 7
}

func (n NALUnit) RefIdc() uint8 {
	if len(n.data) == 0 {
		return 0
	}
	return (n.data[0] & 0x60) >> 5
}

func (n NALUnit) Type() mp4avc.NaluType {
	if len(n.data) == 0 {
		return 0
	}
	return mp4avc.GetNaluType(n.data[0])
}

func (n NALUnit) IsSEI() bool {
	return len(n.data) > 0 && n.Type() == mp4avc.NALU_SEI
}

var startCode = []byte{0x00, 0x00, 0x01}

// Scan splits one access unit into NAL units. Length-prefixed (AVCC) framing
// with 4-byte big-endian lengths is tried first. If any length runs past the
// end of the buffer, or bytes are left over that cannot hold a length, the
// whole buffer is rescanned as an Annex B byte stream instead. Empty NAL
// units are never returned.
func Scan(au []byte) []NALUnit {
	if nalus, ok := scanLengthPrefixed(au); ok {
		return nalus
	}
	return scanStartCodes(au)
}

func scanLengthPrefixed(b []byte) ([]NALUnit, bool) {
	var nalus []NALUnit
	pos := 0
	for pos < len(b) {
		if pos+4 > len(b) {
			return nil, false
		}
		n := int(binary.BigEndian.Uint32(b[pos : pos+4]))
		pos += 4
		if n < 0 || n > len(b)-pos {
			return nil, false
		}
		if n > 0 {
			nalus = append(nalus, NewNALUnit(b[pos:pos+n]))
		}
		pos += n
	}
	return nalus, true
}

// scanStartCodes matches the 3-byte start code. A zero byte directly in
// front of a start code is the first byte of a 4-byte start code and is not
// part of the preceding NAL unit.
func scanStartCodes(b []byte) []NALUnit {
	var nalus []NALUnit
	idx := bytes.Index(b, startCode)
	if idx < 0 {
		return nil
	}
	start := idx + len(startCode)
	for start <= len(b) {
		next := bytes.Index(b[start:], startCode)
		if next < 0 {
			if start < len(b) {
				nalus = append(nalus, NewNALUnit(b[start:]))
			}
			break
		}
		end := start + next
		if end > start && b[end-1] == 0x00 {
			end--
		}
		if end > start {
			nalus = append(nalus, NewNALUnit(b[start:end]))
		}
		start = start + next + len(startCode)
	}
	return nalus
}
