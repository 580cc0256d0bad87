package timing

import "time"

// TimeBase is the rational duration of one timestamp tick.
type TimeBase struct {
	Num int64
	Den int64
}

var (
	// Millis is the time base of RTMP and FLV timestamps.
	Millis = TimeBase{Num: 1, Den: 1000}
	// MPEG is the 90 kHz time base of MPEG-TS PTS/DTS.
	MPEG = TimeBase{Num: 1, Den: 90000}
)

// Seconds converts ts ticks to seconds. A zero time base yields 0.
func (tb TimeBase) Seconds(ts int64) float64 {
	if tb.Den == 0 {
		return 0
	}
	return float64(ts) * float64(tb.Num) / float64(tb.Den)
}

// VideoPacket is one H.264 access unit as handed over by a demuxer.
type VideoPacket struct {
	Data     []byte
	DTS      *int64
	PTS      *int64
	Duration *int64
	TimeBase TimeBase
}

// DataPacket is one data-track message. It has no time base of its own.
type DataPacket struct {
	Data []byte
	PTS  *int64
}

// Frame is a decoded picture handed to a TimecodeReader.
type Frame struct {
	Width, Height int
	Stride        int
	Pix           []byte
	PTS           *int64
	DTS           *int64
	TimeBase      TimeBase
}

// TimecodeReader recognizes a timecode burned into a picture. It returns
// false when nothing was recognized.
type TimecodeReader interface {
	ReadTimecode(f Frame) (Timecode, bool)
}

// TimecodeReaderFunc adapts a function to TimecodeReader.
type TimecodeReaderFunc func(f Frame) (Timecode, bool)

func (fn TimecodeReaderFunc) ReadTimecode(f Frame) (Timecode, bool) {
	return fn(f)
}

// Int64 returns a pointer to v, for building packets.
func Int64(v int64) *int64 {
	return &v
}

func systemNow() time.Time {
	return time.Now().UTC()
}
