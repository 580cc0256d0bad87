// Package mpegts demuxes the H.264 access units of an MPEG-TS stream.
package mpegts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Comcast/gots/v2/packet"
	"github.com/asticode/go-astits"
	"github.com/rubu/stream-timestamp-analyzer/common"
)

// AccessUnit is the payload of one H.264 PES packet. DTS equals PTS when
// the PES header carried no DTS.
type AccessUnit struct {
	PID    uint16
	RAI    bool
	PTS    int64
	DTS    int64
	HasDTS bool
	Data   []byte
}

// AccessUnitFunc is called for every H.264 access unit. Returning an error
// stops ReadVideo with that error.
type AccessUnitFunc func(au AccessUnit) error

// Reader walks the H.264 PES packets of a transport stream.
type Reader struct {
	// OnStreams is called once with the streams of the first PMT.
	OnStreams func(streams []common.ElementaryStreamInfo)
}

// ReadVideo reads r until it ends or ctx is done and calls fn for each
// H.264 access unit carrying a PTS, in stream order.
func ReadVideo(ctx context.Context, r io.Reader, fn AccessUnitFunc) error {
	return (&Reader{}).Read(ctx, r, fn)
}

func (tr *Reader) Read(ctx context.Context, r io.Reader, fn AccessUnitFunc) error {
	rd := bufio.NewReaderSize(r, 1000*common.PacketSize)
	if _, err := packet.Sync(rd); err != nil {
		return fmt.Errorf("syncing with reader %w", err)
	}
	dmx := astits.NewDemuxer(ctx, rd)
	video := make(map[uint16]bool)
	pmtSeen := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return nil
			}
			return fmt.Errorf("reading next data %w", err)
		}
		if d.PMT != nil && !pmtSeen {
			var streams []common.ElementaryStreamInfo
			for _, es := range d.PMT.ElementaryStreams {
				if info := streamInfo(es); info != nil {
					streams = append(streams, *info)
					if info.IsAVC() {
						video[es.ElementaryPID] = true
					}
				}
			}
			pmtSeen = true
			if tr.OnStreams != nil {
				tr.OnStreams(streams)
			}
		}
		if d.PES == nil || !video[d.PID] {
			continue
		}
		au, ok := accessUnit(d)
		if !ok {
			continue
		}
		if err := fn(au); err != nil {
			return err
		}
	}
}

func accessUnit(d *astits.DemuxerData) (AccessUnit, bool) {
	hdr := d.PES.Header
	if hdr == nil || hdr.OptionalHeader == nil || hdr.OptionalHeader.PTS == nil {
		return AccessUnit{}, false
	}
	au := AccessUnit{
		PID:  d.PID,
		PTS:  hdr.OptionalHeader.PTS.Base,
		Data: d.PES.Data,
	}
	au.DTS = au.PTS
	if dts := hdr.OptionalHeader.DTS; dts != nil {
		au.DTS = dts.Base
		au.HasDTS = true
	}
	if fp := d.FirstPacket; fp != nil && fp.AdaptationField != nil {
		au.RAI = fp.AdaptationField.RandomAccessIndicator
	}
	return au, true
}

func streamInfo(es *astits.PMTElementaryStream) *common.ElementaryStreamInfo {
	switch es.StreamType {
	case astits.StreamTypeH264Video:
		return &common.ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "AVC", Type: "video"}
	case astits.StreamTypeAACAudio:
		return &common.ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "AAC", Type: "audio"}
	case astits.StreamTypeH265Video:
		return &common.ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "HEVC", Type: "video"}
	case astits.StreamTypeSCTE35:
		return &common.ElementaryStreamInfo{PID: es.ElementaryPID, Codec: "SCTE35", Type: "cue"}
	}
	return nil
}
