package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/format/rtmp"
	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"go.uber.org/zap"
)

var errNoVideo = errors.New("no H.264 video stream")

type rtmpAnalyzer struct {
	url         string
	log         *zap.SugaredLogger
	ex          *timing.Extractor
	dialTimeout time.Duration
}

func (a *rtmpAnalyzer) URL() string { return a.url }

func (a *rtmpAnalyzer) Analyze(ctx context.Context, out chan<- timing.Record) error {
	conn, err := rtmp.DialTimeout(a.url, a.dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", a.url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	streams, err := conn.Streams()
	if err != nil {
		return a.readErr(ctx, fmt.Errorf("reading streams: %w", err))
	}
	video := videoStreamIndex(streams)
	if video < 0 {
		return errNoVideo
	}
	a.log.Infow("connected", "streams", len(streams), "videoIdx", video)

	for {
		pkt, err := conn.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return a.readErr(ctx, nil)
			}
			return a.readErr(ctx, fmt.Errorf("reading packet: %w", err))
		}
		if int(pkt.Idx) != video {
			continue
		}
		if err := emit(ctx, out, a.ex.Video(videoPacketFromAV(pkt))); err != nil {
			return err
		}
	}
}

// readErr prefers the context error once the connection was closed by
// cancellation.
func (a *rtmpAnalyzer) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func videoStreamIndex(streams []av.CodecData) int {
	for i, s := range streams {
		if s.Type() == av.H264 {
			return i
		}
	}
	return -1
}

// videoPacketFromAV converts a joy4 packet. RTMP timestamps are
// milliseconds; PTS is DTS plus the composition time.
func videoPacketFromAV(pkt av.Packet) timing.VideoPacket {
	dts := int64(pkt.Time / time.Millisecond)
	pts := dts + int64(pkt.CompositionTime/time.Millisecond)
	return timing.VideoPacket{
		Data:     pkt.Data,
		DTS:      &dts,
		PTS:      &pts,
		TimeBase: timing.Millis,
	}
}
