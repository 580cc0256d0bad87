// Package avctest builds H.264 byte fixtures for tests: SEI NAL units with
// picture timing clock timestamps and AVCC or Annex B access units.
package avctest

import (
	"bytes"
	"encoding/binary"

	"github.com/Eyevinn/mp4ff/bits"
)

// IDR is a minimal IDR slice NAL unit.
var IDR = []byte{0x65, 0x88, 0x84, 0x21}

// Clock is a full clock timestamp.
type Clock struct {
	Hours, Minutes, Seconds int
	Frames                  int
	TimeOffset              int32
}

// picStructFor returns a pic_struct value expecting n clock timestamps.
func picStructFor(n int) int {
	switch n {
	case 2:
		return 3
	case 3:
		return 5
	default:
		return 0
	}
}

// PicTiming returns a pic_timing payload with full clock timestamps, using a
// 24-bit time offset and no CPB/DPB delays.
func PicTiming(clocks ...Clock) []byte {
	w := NewBitWriter()
	w.Write(uint64(picStructFor(len(clocks))), 4)
	for _, c := range clocks {
		w.Flag(true)  // clock_timestamp_flag
		w.Write(0, 2) // ct_type
		w.Flag(false) // nuit_field_based_flag
		w.Write(0, 5) // counting_type
		w.Flag(true)  // full_timestamp_flag
		w.Write(0, 2) // discontinuity_flag, cnt_dropped_flag
		w.Write(uint64(c.Frames), 8)
		w.Write(uint64(c.Seconds), 6)
		w.Write(uint64(c.Minutes), 6)
		w.Write(uint64(c.Hours), 5)
		w.Write(uint64(uint32(c.TimeOffset))&0xffffff, 24)
	}
	return w.Bytes()
}

// SEI returns a SEI NAL unit with one payload per (type, body) pair, with
// emulation prevention applied.
func SEI(payloads ...Payload) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x06)
	w := bits.NewEBSPWriter(&buf)
	for _, p := range payloads {
		writeValue(w, p.Type)
		writeValue(w, len(p.Body))
		for _, c := range p.Body {
			w.Write(uint(c), 8)
		}
	}
	w.Write(0x80, 8) // rbsp_trailing_bits
	return buf.Bytes()
}

// Payload is one SEI message.
type Payload struct {
	Type int
	Body []byte
}

// PicTimingSEI is SEI(Payload{1, PicTiming(clocks...)}).
func PicTimingSEI(clocks ...Clock) []byte {
	return SEI(Payload{Type: 1, Body: PicTiming(clocks...)})
}

// AVCC frames NAL units with 4-byte big-endian lengths.
func AVCC(nalus ...[]byte) []byte {
	var b []byte
	for _, n := range nalus {
		b = binary.BigEndian.AppendUint32(b, uint32(len(n)))
		b = append(b, n...)
	}
	return b
}

// AnnexB frames NAL units with 4-byte start codes.
func AnnexB(nalus ...[]byte) []byte {
	var b []byte
	for _, n := range nalus {
		b = append(b, 0x00, 0x00, 0x00, 0x01)
		b = append(b, n...)
	}
	return b
}

func writeValue(w *bits.EBSPWriter, v int) {
	for v >= 255 {
		w.Write(0xff, 8)
		v -= 255
	}
	w.Write(uint(v), 8)
}

// BitWriter writes MSB-first bit fields, such as SEI payload bodies.
type BitWriter struct {
	buf bytes.Buffer
	w   *bits.Writer
}

func NewBitWriter() *BitWriter {
	bw := &BitWriter{}
	bw.w = bits.NewWriter(&bw.buf)
	return bw
}

func (bw *BitWriter) Write(v uint64, n int) {
	bw.w.Write(uint(v), n)
}

func (bw *BitWriter) Flag(f bool) {
	if f {
		bw.w.Write(1, 1)
	} else {
		bw.w.Write(0, 1)
	}
}

// Bytes pads a partial last byte with zero bits and returns the output.
func (bw *BitWriter) Bytes() []byte {
	bw.w.Flush()
	return bw.buf.Bytes()
}
