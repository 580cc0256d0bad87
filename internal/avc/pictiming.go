package avc

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/bits"
)

// PicTimingConfig carries the SPS/VUI values that shape a pic_timing
// payload. The parser normally has no access to the SPS, so
// DefaultPicTimingConfig is an approximation, not a full H.264 decoder.
type PicTimingConfig struct {
	CpbDpbDelaysPresent   bool
	CpbRemovalDelayLength int
	DpbOutputDelayLength  int
	PicStructPresent      bool
	TimeOffsetLength      int
}

// DefaultPicTimingConfig assumes no CPB/DPB delays, pic_struct present and a
// 24-bit time offset.
func DefaultPicTimingConfig() PicTimingConfig {
	return PicTimingConfig{
		CpbRemovalDelayLength: 24,
		DpbOutputDelayLength:  24,
		PicStructPresent:      true,
		TimeOffsetLength:      24,
	}
}

// PictureTiming is a decoded pic_timing SEI payload. Truncated is set when
// the payload ended in the middle of the grammar; ClockTimestamps is then
// empty.
type PictureTiming struct {
	CpbRemovalDelay *uint32          `json:"cpbRemovalDelay,omitempty"`
	DpbOutputDelay  *uint32          `json:"dpbOutputDelay,omitempty"`
	PicStruct       *uint8           `json:"picStruct,omitempty"`
	ClockTimestamps []ClockTimestamp `json:"clockTimestamps,omitempty"`
	Truncated       bool             `json:"truncated,omitempty"`
}

func (*PictureTiming) seiBody() {}

// ClockTimestamp is one clock_timestamp of a pic_timing payload. Seconds,
// Minutes and Hours are nil when the bitstream did not carry them.
type ClockTimestamp struct {
	CtType             uint8  `json:"ctType"`
	NuitFieldBasedFlag bool   `json:"nuitFieldBasedFlag"`
	CountingType       uint8  `json:"countingType"`
	FullTimestampFlag  bool   `json:"fullTimestampFlag"`
	DiscontinuityFlag  bool   `json:"discontinuityFlag"`
	CntDroppedFlag     bool   `json:"cntDroppedFlag"`
	NFrames            uint8  `json:"nFrames"`
	Seconds            *uint8 `json:"seconds,omitempty"`
	Minutes            *uint8 `json:"minutes,omitempty"`
	Hours              *uint8 `json:"hours,omitempty"`
	TimeOffset         *int32 `json:"timeOffset,omitempty"`
}

// HasTime reports whether the hours field was present.
func (c ClockTimestamp) HasTime() bool {
	return c.Hours != nil
}

// Text renders the timestamp as HH:MM:SS. It is only defined when hours are
// present; missing minutes and seconds render as zero.
func (c ClockTimestamp) Text() (string, bool) {
	if c.Hours == nil {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:%02d", *c.Hours, deref(c.Minutes), deref(c.Seconds)), true
}

func (c ClockTimestamp) String() string {
	text, ok := c.Text()
	if !ok {
		text = "--:--:--"
	}
	offset := int32(0)
	if c.TimeOffset != nil {
		offset = *c.TimeOffset
	}
	return fmt.Sprintf("%s:%02d offset=%d", text, c.NFrames, offset)
}

func deref(v *uint8) uint8 {
	if v == nil {
		return 0
	}
	return *v
}

// validate checks that every field length fits the value it is read into.
func (c PicTimingConfig) validate() error {
	if c.TimeOffsetLength < 0 || c.TimeOffsetLength > 32 {
		return fmt.Errorf("%w: time_offset_length %d", ErrInvalidConfig, c.TimeOffsetLength)
	}
	if !c.CpbDpbDelaysPresent {
		return nil
	}
	if c.CpbRemovalDelayLength < 1 || c.CpbRemovalDelayLength > 32 {
		return fmt.Errorf("%w: cpb_removal_delay_length %d", ErrInvalidConfig, c.CpbRemovalDelayLength)
	}
	if c.DpbOutputDelayLength < 1 || c.DpbOutputDelayLength > 32 {
		return fmt.Errorf("%w: dpb_output_delay_length %d", ErrInvalidConfig, c.DpbOutputDelayLength)
	}
	return nil
}

// numClockTS maps pic_struct to NumClockTS (H.264 Table D-1).
var numClockTS = map[uint8]int{0: 1, 1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3, 7: 2, 8: 3}

// ParsePictureTiming decodes a pic_timing payload (without the SEI envelope).
func ParsePictureTiming(payload []byte, cfg PicTimingConfig) (PictureTiming, error) {
	var pt PictureTiming
	if err := cfg.validate(); err != nil {
		return pt, err
	}
	r := bits.NewReader(bytes.NewReader(payload))
	if cfg.CpbDpbDelaysPresent {
		cpb := uint32(readBits(r, cfg.CpbRemovalDelayLength))
		dpb := uint32(readBits(r, cfg.DpbOutputDelayLength))
		if r.AccError() != nil {
			return pt, fmt.Errorf("cpb/dpb delays: %w", ErrTruncated)
		}
		pt.CpbRemovalDelay = &cpb
		pt.DpbOutputDelay = &dpb
	}
	if !cfg.PicStructPresent {
		return pt, nil
	}
	picStruct := uint8(r.Read(4))
	if r.AccError() != nil {
		return pt, fmt.Errorf("pic_struct: %w", ErrTruncated)
	}
	pt.PicStruct = &picStruct
	n, ok := numClockTS[picStruct]
	if !ok {
		n = 1
	}
	for i := 0; i < n; i++ {
		clockTimestampFlag := r.Read(1) == 1
		if r.AccError() != nil {
			return pt, fmt.Errorf("clock_timestamp_flag %d: %w", i, ErrTruncated)
		}
		if !clockTimestampFlag {
			continue
		}
		ct := readClockTimestamp(r, cfg.TimeOffsetLength)
		if r.AccError() != nil {
			return pt, fmt.Errorf("clock_timestamp %d: %w", i, ErrTruncated)
		}
		pt.ClockTimestamps = append(pt.ClockTimestamps, ct)
	}
	return pt, nil
}

// readClockTimestamp reads the fields after clock_timestamp_flag. Errors are
// accumulated in r.
func readClockTimestamp(r *bits.Reader, timeOffsetLength int) ClockTimestamp {
	ct := ClockTimestamp{
		CtType:             uint8(r.Read(2)),
		NuitFieldBasedFlag: r.Read(1) == 1,
		CountingType:       uint8(r.Read(5)),
		FullTimestampFlag:  r.Read(1) == 1,
		DiscontinuityFlag:  r.Read(1) == 1,
		CntDroppedFlag:     r.Read(1) == 1,
		NFrames:            uint8(r.Read(8)),
	}
	if ct.FullTimestampFlag {
		ct.Seconds = u8(r.Read(6))
		ct.Minutes = u8(r.Read(6))
		ct.Hours = u8(r.Read(5))
	} else if r.Read(1) == 1 {
		ct.Seconds = u8(r.Read(6))
		if r.Read(1) == 1 {
			ct.Minutes = u8(r.Read(6))
			if r.Read(1) == 1 {
				ct.Hours = u8(r.Read(5))
			}
		}
	}
	if timeOffsetLength > 0 {
		v := readBits(r, timeOffsetLength)
		offset := int32(signExtend(v, timeOffsetLength))
		ct.TimeOffset = &offset
	}
	return ct
}

func readBits(r *bits.Reader, n int) uint {
	if n <= 0 {
		return 0
	}
	return r.Read(n)
}

func signExtend(v uint, n int) int64 {
	if v&(1<<(n-1)) != 0 {
		return int64(v) - int64(1)<<n
	}
	return int64(v)
}

func u8(v uint) *uint8 {
	b := uint8(v)
	return &b
}
