package avc

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/rubu/stream-timestamp-analyzer/internal/avc/avctest"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	full                 bool
	hours, minutes, secs int // -1 when absent
	frames               int
	timeOffset           int64
}

func picTimingPayload(picStruct int, clocks []*testClock) []byte {
	w := avctest.NewBitWriter()
	w.Write(uint64(picStruct), 4)
	for _, c := range clocks {
		if c == nil {
			w.Flag(false)
			continue
		}
		w.Flag(true)
		w.Write(0, 2)  // ct_type
		w.Flag(false)  // nuit_field_based_flag
		w.Write(0, 5)  // counting_type
		w.Flag(c.full) // full_timestamp_flag
		w.Flag(false)  // discontinuity_flag
		w.Flag(false)  // cnt_dropped_flag
		w.Write(uint64(c.frames), 8)
		if c.full {
			w.Write(uint64(c.secs), 6)
			w.Write(uint64(c.minutes), 6)
			w.Write(uint64(c.hours), 5)
		} else {
			w.Flag(c.secs >= 0)
			if c.secs >= 0 {
				w.Write(uint64(c.secs), 6)
				w.Flag(c.minutes >= 0)
				if c.minutes >= 0 {
					w.Write(uint64(c.minutes), 6)
					w.Flag(c.hours >= 0)
					if c.hours >= 0 {
						w.Write(uint64(c.hours), 5)
					}
				}
			}
		}
		w.Write(uint64(c.timeOffset)&0xffffff, 24)
	}
	return w.Bytes()
}

type testPayload struct {
	typ  int
	data []byte
}

func appendSEIValue(b []byte, v int) []byte {
	for v >= 255 {
		b = append(b, 0xff)
		v -= 255
	}
	return append(b, byte(v))
}

func seiNALU(payloads ...testPayload) NALUnit {
	b := []byte{0x06}
	for _, p := range payloads {
		b = appendSEIValue(b, p.typ)
		b = appendSEIValue(b, len(p.data))
		b = append(b, p.data...)
	}
	b = append(b, rbspStopByte)
	return NewNALUnit(b)
}

func TestReadSEIValue(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint
		next int
		ok   bool
	}{
		{"single byte", []byte{0x05}, 5, 1, true},
		{"extended", []byte{0xff, 0xff, 0x05}, 515, 3, true},
		{"extended 552", []byte{0xff, 0xff, 0x2a, 0x99}, 552, 3, true},
		{"truncated", []byte{0xff, 0xff}, 0, 2, false},
		{"empty", nil, 0, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, next, ok := readSEIValue(c.data, 0)
			require.Equal(t, c.ok, ok)
			require.Equal(t, c.want, v)
			require.Equal(t, c.next, next)
		})
	}
}

func TestParseSEIPictureTimingFullTimestamp(t *testing.T) {
	payload := picTimingPayload(0, []*testClock{{full: true, hours: 12, minutes: 30, secs: 45, frames: 7, timeOffset: -2}})
	payloads := ParseSEI(seiNALU(testPayload{SEIPicTimingType, payload}))
	require.Len(t, payloads, 1)
	require.Equal(t, uint(SEIPicTimingType), payloads[0].Type)
	require.Equal(t, uint(len(payload)), payloads[0].Size)
	pt, ok := payloads[0].Body.(*PictureTiming)
	require.True(t, ok)
	require.False(t, pt.Truncated)
	require.Equal(t, uint8(0), *pt.PicStruct)
	require.Len(t, pt.ClockTimestamps, 1)
	ct := pt.ClockTimestamps[0]
	text, ok := ct.Text()
	require.True(t, ok)
	require.Equal(t, "12:30:45", text)
	require.Equal(t, uint8(7), ct.NFrames)
	require.True(t, ct.FullTimestampFlag)
	require.Equal(t, int32(-2), *ct.TimeOffset)
	require.Equal(t, "12:30:45:07 offset=-2", ct.String())
}

func TestParseSEIPictureTimingPartialTimestamps(t *testing.T) {
	// pic_struct 5 expects three clock timestamps.
	clocks := []*testClock{
		{hours: -1, minutes: -1, secs: 10},
		nil,
		{hours: 1, minutes: 2, secs: 3},
	}
	payload := picTimingPayload(5, clocks)
	payloads := ParseSEI(seiNALU(testPayload{SEIPicTimingType, payload}))
	require.Len(t, payloads, 1)
	pt := payloads[0].Body.(*PictureTiming)
	require.Len(t, pt.ClockTimestamps, 2)

	first := pt.ClockTimestamps[0]
	require.NotNil(t, first.Seconds)
	require.Equal(t, uint8(10), *first.Seconds)
	require.Nil(t, first.Minutes)
	require.Nil(t, first.Hours)
	require.False(t, first.HasTime())
	_, ok := first.Text()
	require.False(t, ok)

	second := pt.ClockTimestamps[1]
	text, ok := second.Text()
	require.True(t, ok)
	require.Equal(t, "01:02:03", text)
}

func TestParseSEIUnmappedPicStructExpectsOneClock(t *testing.T) {
	payload := picTimingPayload(12, []*testClock{{full: true, hours: 23, minutes: 59, secs: 59}})
	pt := ParseSEI(seiNALU(testPayload{SEIPicTimingType, payload}))[0].Body.(*PictureTiming)
	require.Len(t, pt.ClockTimestamps, 1)
	text, _ := pt.ClockTimestamps[0].Text()
	require.Equal(t, "23:59:59", text)
}

func TestParseSEITruncatedPayloadKeepsSiblings(t *testing.T) {
	full := picTimingPayload(0, []*testClock{{full: true, hours: 10, minutes: 0, secs: 0}})
	short := full[:4]
	id := uuid.MustParse("6e2b9c1a-4f3d-4c2b-9a7e-0123456789ab")
	userData := append(id[:], []byte("hello")...)

	payloads := ParseSEI(seiNALU(
		testPayload{SEIPicTimingType, short},
		testPayload{SEIUserDataUnregisteredType, userData},
		testPayload{SEIPicTimingType, full},
	))
	require.Len(t, payloads, 3)

	truncated := payloads[0].Body.(*PictureTiming)
	require.True(t, truncated.Truncated)
	require.Empty(t, truncated.ClockTimestamps)

	ud := payloads[1].Body.(*UserDataUnregistered)
	require.Equal(t, id, ud.UUID)
	require.Equal(t, []byte("hello"), ud.Data)

	last := payloads[2].Body.(*PictureTiming)
	require.Len(t, last.ClockTimestamps, 1)
}

func TestParseSEIUnknownAndShortUserData(t *testing.T) {
	payloads := ParseSEI(seiNALU(
		testPayload{0, []byte{0x01, 0x02}},
		testPayload{SEIUserDataUnregisteredType, []byte{0xaa, 0xbb}},
		testPayload{300, []byte{0x42}},
	))
	require.Len(t, payloads, 3)
	require.Equal(t, &UnknownPayload{Raw: []byte{0x01, 0x02}}, payloads[0].Body)
	require.Equal(t, &UnknownPayload{Raw: []byte{0xaa, 0xbb}}, payloads[1].Body)
	require.Equal(t, uint(300), payloads[2].Type)
	require.Equal(t, &UnknownPayload{Raw: []byte{0x42}}, payloads[2].Body)
}

func TestParseSEIEnvelope(t *testing.T) {
	t.Run("not sei", func(t *testing.T) {
		require.Empty(t, ParseSEI(NewNALUnit([]byte{0x65, 0x01, 0x01, 0x00})))
	})
	t.Run("too short", func(t *testing.T) {
		require.Empty(t, ParseSEI(NewNALUnit([]byte{0x06})))
	})
	t.Run("size past end stops", func(t *testing.T) {
		require.Empty(t, ParseSEI(NewNALUnit([]byte{0x06, 0x05, 0x10, 0x01})))
	})
	t.Run("stops at trailing bits", func(t *testing.T) {
		payloads := ParseSEI(NewNALUnit([]byte{0x06, 0x00, 0x01, 0x07, 0x80, 0x05, 0x01, 0x00}))
		require.Len(t, payloads, 1)
	})
	t.Run("emulation prevention removed", func(t *testing.T) {
		payloads := ParseSEI(NewNALUnit([]byte{0x06, 0x00, 0x03, 0x00, 0x00, 0x03, 0x01, 0x80}))
		require.Len(t, payloads, 1)
		require.Equal(t, &UnknownPayload{Raw: []byte{0x00, 0x00, 0x01}}, payloads[0].Body)
	})
	t.Run("emulation prevention round trip", func(t *testing.T) {
		body := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x03, 0x42}
		nalu := avctest.SEI(avctest.Payload{Type: 7, Body: body})
		require.True(t, bytes.Contains(nalu, []byte{0x00, 0x00, 0x03, 0x01}))
		payloads := ParseSEI(NewNALUnit(nalu))
		require.Len(t, payloads, 1)
		require.Equal(t, &UnknownPayload{Raw: body}, payloads[0].Body)
	})
}

func TestParsePictureTimingWithDelays(t *testing.T) {
	w := avctest.NewBitWriter()
	w.Write(100, 10) // cpb_removal_delay
	w.Write(5, 7)    // dpb_output_delay
	w.Write(0, 4)    // pic_struct
	w.Flag(false)    // clock_timestamp_flag
	cfg := PicTimingConfig{
		CpbDpbDelaysPresent:   true,
		CpbRemovalDelayLength: 10,
		DpbOutputDelayLength:  7,
		PicStructPresent:      true,
	}
	pt, err := ParsePictureTiming(w.Bytes(), cfg)
	require.NoError(t, err)
	require.Equal(t, uint32(100), *pt.CpbRemovalDelay)
	require.Equal(t, uint32(5), *pt.DpbOutputDelay)
	require.Empty(t, pt.ClockTimestamps)

	_, err = ParsePictureTiming(nil, DefaultPicTimingConfig())
	require.ErrorIs(t, err, ErrTruncated)
}

func TestParsePictureTimingRejectsFieldLengths(t *testing.T) {
	payload := picTimingPayload(0, []*testClock{{full: true, hours: 1, minutes: 2, secs: 3}})
	cases := map[string]func(*PicTimingConfig){
		"time offset too long":  func(c *PicTimingConfig) { c.TimeOffsetLength = 33 },
		"negative time offset":  func(c *PicTimingConfig) { c.TimeOffsetLength = -1 },
		"cpb delay too long":    func(c *PicTimingConfig) { c.CpbDpbDelaysPresent = true; c.CpbRemovalDelayLength = 40 },
		"dpb delay zero length": func(c *PicTimingConfig) { c.CpbDpbDelaysPresent = true; c.DpbOutputDelayLength = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultPicTimingConfig()
			mutate(&cfg)
			_, err := ParsePictureTiming(payload, cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)

			payloads := ParseSEIWithConfig(seiNALU(testPayload{SEIPicTimingType, payload}), cfg)
			require.Len(t, payloads, 1)
			require.Equal(t, &UnknownPayload{Raw: payload}, payloads[0].Body)
		})
	}

	cfg := DefaultPicTimingConfig()
	cfg.TimeOffsetLength = 32
	_, err := ParsePictureTiming(payload, cfg)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestParseSEIIsIdempotent(t *testing.T) {
	nalu := seiNALU(
		testPayload{SEIPicTimingType, picTimingPayload(3, []*testClock{{full: true, hours: 1, minutes: 1, secs: 1}, nil})},
		testPayload{7, []byte{0x01}},
	)
	require.Equal(t, ParseSEI(nalu), ParseSEI(nalu))
}

func TestSEIPayloadName(t *testing.T) {
	p := SEIPayload{Type: SEIPicTimingType}
	require.NotEmpty(t, p.Name())
}
