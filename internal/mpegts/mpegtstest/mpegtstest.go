// Package mpegtstest muxes H.264 access units into MPEG-TS for tests.
package mpegtstest

import (
	"bytes"
	"context"

	"github.com/asticode/go-astits"
)

const VideoPID = 256

// Frame is one access unit to mux. DTS is omitted from the PES header when
// nil.
type Frame struct {
	PTS  int64
	DTS  *int64
	RAI  bool
	Data []byte
}

// Mux returns a transport stream with a single H.264 elementary stream on
// VideoPID carrying frames in order.
func Mux(frames ...Frame) ([]byte, error) {
	var buf bytes.Buffer
	mx := astits.NewMuxer(context.Background(), &buf)
	err := mx.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: VideoPID,
		StreamType:    astits.StreamTypeH264Video,
	})
	if err != nil {
		return nil, err
	}
	mx.SetPCRPID(VideoPID)
	if _, err := mx.WriteTables(); err != nil {
		return nil, err
	}
	for _, f := range frames {
		oh := &astits.PESOptionalHeader{
			MarkerBits:      2,
			PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
			PTS:             &astits.ClockReference{Base: f.PTS},
		}
		if f.DTS != nil {
			oh.PTSDTSIndicator = astits.PTSDTSIndicatorBothPresent
			oh.DTS = &astits.ClockReference{Base: *f.DTS}
		}
		d := &astits.MuxerData{
			PID: VideoPID,
			PES: &astits.PESData{
				Header: &astits.PESHeader{OptionalHeader: oh, StreamID: 0xe0},
				Data:   f.Data,
			},
		}
		if f.RAI {
			d.AdaptationField = &astits.PacketAdaptationField{RandomAccessIndicator: true}
		}
		if _, err := mx.WriteData(d); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
