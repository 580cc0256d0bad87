// Package timing turns the timing facts found in a stream (pic_timing clock
// timestamps, onFI messages and burned-in timecodes) into Records tagged
// with their source.
package timing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rubu/stream-timestamp-analyzer/internal/amf"
	"github.com/rubu/stream-timestamp-analyzer/internal/avc"
)

// Source tells where the timing fact of a Record came from.
type Source int

const (
	SourceH264SEI Source = iota + 1
	SourceAMFOnFI
	SourceBurnedTimecode
)

var sourceNames = map[Source]string{
	SourceH264SEI:        "h264_sei",
	SourceAMFOnFI:        "amf_onfi",
	SourceBurnedTimecode: "burned_timecode",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("source_%d", int(s))
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSource is the inverse of Source.String.
func ParseSource(name string) (Source, error) {
	for s, n := range sourceNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown timing source %q", name)
}

// Record is one timing fact. Extra is *SEITimestamp for SourceH264SEI,
// *OnFI for SourceAMFOnFI and *Timecode for SourceBurnedTimecode; use
// the typed accessors instead of inspecting Extra directly.
type Record struct {
	StreamURL  string    `json:"streamUrl"`
	SystemTime time.Time `json:"systemTimestamp"`
	StreamTime float64   `json:"streamTime"`
	PTS        *int64    `json:"pts,omitempty"`
	DTS        *int64    `json:"dts,omitempty"`
	Duration   *int64    `json:"duration,omitempty"`
	Source     Source    `json:"source"`
	Extra      Extra     `json:"extra"`
	Segment    *Segment  `json:"segment,omitempty"`
}

// Segment describes the HLS media segment a record was found in.
type Segment struct {
	URI             string     `json:"uri"`
	Duration        float64    `json:"duration"`
	ProgramDateTime *time.Time `json:"programDateTime,omitempty"`
}

// Extra is implemented by the source specific payloads of this package.
type Extra interface {
	source() Source
}

// SEITimestamp is a pic_timing clock timestamp that carried hours.
type SEITimestamp struct {
	avc.ClockTimestamp
	Text string `json:"text"`
}

func (*SEITimestamp) source() Source { return SourceH264SEI }

// OnFI wraps an onFI message.
type OnFI struct {
	amf.OnFI
}

func (*OnFI) source() Source { return SourceAMFOnFI }

func (o *OnFI) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.OnFI)
}

// Timecode is what a TimecodeReader recognized in a frame.
type Timecode struct {
	Hours        int    `json:"hours"`
	Minutes      int    `json:"minutes"`
	Seconds      int    `json:"seconds"`
	Milliseconds int    `json:"milliseconds"`
	Text         string `json:"text"`
}

func (*Timecode) source() Source { return SourceBurnedTimecode }

// SEI returns the clock timestamp of a SourceH264SEI record.
func (r Record) SEI() (*SEITimestamp, bool) {
	if r.Source != SourceH264SEI {
		return nil, false
	}
	e, ok := r.Extra.(*SEITimestamp)
	return e, ok
}

// OnFI returns the message of a SourceAMFOnFI record.
func (r Record) OnFI() (*OnFI, bool) {
	if r.Source != SourceAMFOnFI {
		return nil, false
	}
	e, ok := r.Extra.(*OnFI)
	return e, ok
}

// Timecode returns the OCR result of a SourceBurnedTimecode record.
func (r Record) Timecode() (*Timecode, bool) {
	if r.Source != SourceBurnedTimecode {
		return nil, false
	}
	e, ok := r.Extra.(*Timecode)
	return e, ok
}
