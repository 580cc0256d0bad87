package timing

import (
	"time"

	"github.com/rubu/stream-timestamp-analyzer/internal/amf"
	"github.com/rubu/stream-timestamp-analyzer/internal/avc"
)

// Extractor builds Records for one stream. It keeps no state between
// packets, so a single Extractor may be used from several goroutines.
type Extractor struct {
	URL string
	// Now stamps SystemTime. Defaults to the UTC wall clock.
	Now func() time.Time
	// PicTiming overrides the default picture timing configuration.
	PicTiming *avc.PicTimingConfig
	// Timecodes recognizes burned-in timecodes. Frame returns nothing
	// when it is nil.
	Timecodes TimecodeReader
}

// NewExtractor returns an Extractor for url with default settings.
func NewExtractor(url string) *Extractor {
	return &Extractor{URL: url}
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return systemNow()
}

func (e *Extractor) parseSEI(n avc.NALUnit) []avc.SEIPayload {
	if e.PicTiming != nil {
		return avc.ParseSEIWithConfig(n, *e.PicTiming)
	}
	return avc.ParseSEI(n)
}

// Video returns one SourceH264SEI record per clock timestamp with hours in
// every picture timing payload of the access unit, in bitstream order.
// Packets without DTS yield nothing.
func (e *Extractor) Video(p VideoPacket) []Record {
	if p.DTS == nil {
		return nil
	}
	var records []Record
	var now time.Time
	for _, nalu := range avc.Scan(p.Data) {
		if !nalu.IsSEI() {
			continue
		}
		for _, payload := range e.parseSEI(nalu) {
			pt, ok := payload.Body.(*avc.PictureTiming)
			if !ok {
				continue
			}
			for _, ct := range pt.ClockTimestamps {
				text, ok := ct.Text()
				if !ok {
					continue
				}
				if now.IsZero() {
					now = e.now()
				}
				records = append(records, Record{
					StreamURL:  e.URL,
					SystemTime: now,
					StreamTime: p.TimeBase.Seconds(*p.DTS),
					PTS:        p.PTS,
					DTS:        p.DTS,
					Duration:   p.Duration,
					Source:     SourceH264SEI,
					Extra:      &SEITimestamp{ClockTimestamp: ct, Text: text},
				})
			}
		}
	}
	return records
}

// Data returns a SourceAMFOnFI record when the message carries onFI. The
// stream time is the packet PTS in the video time base; packets without
// PTS yield nothing.
func (e *Extractor) Data(p DataPacket, video TimeBase) []Record {
	if p.PTS == nil {
		return nil
	}
	msg, ok := amf.ExtractOnFI(p.Data)
	if !ok {
		return nil
	}
	return []Record{{
		StreamURL:  e.URL,
		SystemTime: e.now(),
		StreamTime: video.Seconds(*p.PTS),
		PTS:        p.PTS,
		Source:     SourceAMFOnFI,
		Extra:      &OnFI{OnFI: msg},
	}}
}

// Frame returns a SourceBurnedTimecode record when the TimecodeReader
// recognizes a timecode in f. Frames without DTS yield nothing.
func (e *Extractor) Frame(f Frame) []Record {
	if e.Timecodes == nil || f.DTS == nil {
		return nil
	}
	tc, ok := e.Timecodes.ReadTimecode(f)
	if !ok {
		return nil
	}
	return []Record{{
		StreamURL:  e.URL,
		SystemTime: e.now(),
		StreamTime: f.TimeBase.Seconds(*f.DTS),
		PTS:        f.PTS,
		DTS:        f.DTS,
		Source:     SourceBurnedTimecode,
		Extra:      &tc,
	}}
}
