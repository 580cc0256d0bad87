package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	mp4avc "github.com/Eyevinn/mp4ff/avc"
	"github.com/rubu/stream-timestamp-analyzer/common"
	"github.com/rubu/stream-timestamp-analyzer/internal/avc"
	"github.com/rubu/stream-timestamp-analyzer/internal/mpegts"
)

var errMaxPictures = errors.New("max pictures reached")

// ListNALUs prints the elementary streams of the first PMT, one line per
// H.264 picture with its NAL units and, at the end, per-PID statistics.
func ListNALUs(ctx context.Context, w io.Writer, f io.Reader, o Options) error {
	jp := &JsonPrinter{W: w, Indent: o.Indent}
	statistics := make(map[uint16]*StreamStatistics)
	var pids []uint16
	nrPics := 0

	rd := &mpegts.Reader{OnStreams: func(streams []common.ElementaryStreamInfo) {
		for _, s := range streams {
			jp.Print(s, true)
		}
	}}
	err := rd.Read(ctx, f, func(au mpegts.AccessUnit) error {
		s, ok := statistics[au.PID]
		if !ok {
			s = &StreamStatistics{Type: "AVC", Pid: au.PID}
			statistics[au.PID] = s
			pids = append(pids, au.PID)
		}
		jp.Print(parseAccessUnit(au, s, o), o.ShowNALU)
		if err := jp.Error(); err != nil {
			return err
		}
		nrPics++
		// Keep looping if MaxNrPictures equals 0
		if o.MaxNrPictures > 0 && nrPics >= o.MaxNrPictures {
			return errMaxPictures
		}
		return nil
	})
	if err != nil && !errors.Is(err, errMaxPictures) && !errors.Is(err, context.Canceled) {
		return err
	}

	for _, pid := range pids {
		jp.PrintStatistics(*statistics[pid], o.ShowStatistics)
	}
	return jp.Error()
}

func parseAccessUnit(au mpegts.AccessUnit, s *StreamStatistics, o Options) NaluFrameData {
	nfd := NaluFrameData{PID: au.PID, RAI: au.RAI, PTS: au.PTS}
	if au.HasDTS {
		nfd.DTS = au.DTS
	}
	// DTS falls back to PTS in statistics
	s.TimeStamps = append(s.TimeStamps, au.DTS)
	if au.RAI {
		s.RAIPTS = append(s.RAIPTS, au.PTS)
	}

	for _, nalu := range avc.Scan(au.Data) {
		seiMsg := ""
		naluType := nalu.Type()
		switch naluType {
		case mp4avc.NALU_SEI:
			seiMsg = seiText(avc.ParseSEI(nalu), o.ShowSEIDetails)
		case mp4avc.NALU_IDR, mp4avc.NALU_NON_IDR:
			if naluType == mp4avc.NALU_IDR {
				s.IDRPTS = append(s.IDRPTS, au.PTS)
			}
			if sliceType, err := mp4avc.GetSliceTypeFromNALU(nalu.Bytes()); err == nil {
				nfd.ImgType = fmt.Sprintf("[%s]", sliceType)
			}
		}
		nfd.NALUS = append(nfd.NALUS, NaluData{
			Type: naluType.String(),
			Len:  nalu.Len(),
			Data: seiMsg,
		})
	}
	return nfd
}

// seiText renders the messages of one SEI NAL unit. With details, picture
// timing messages also list their clock timestamps.
func seiText(payloads []avc.SEIPayload, details bool) string {
	texts := make([]string, 0, len(payloads))
	for _, p := range payloads {
		pt, ok := p.Body.(*avc.PictureTiming)
		if !details || !ok || len(pt.ClockTimestamps) == 0 {
			texts = append(texts, fmt.Sprintf("msg %s", p.Name()))
			continue
		}
		clocks := make([]string, 0, len(pt.ClockTimestamps))
		for _, c := range pt.ClockTimestamps {
			clocks = append(clocks, c.String())
		}
		texts = append(texts, fmt.Sprintf("msg %s: %s", p.Name(), strings.Join(clocks, ", ")))
	}
	return strings.Join(texts, ", ")
}
