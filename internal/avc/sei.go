package avc

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/sei"
	"github.com/google/uuid"
)

const (
	SEIPicTimingType            = 1
	SEIUserDataUnregisteredType = 5

	rbspStopByte = 0x80
)

// ErrTruncated is reported when a bit read runs past the end of a payload.
var ErrTruncated = errors.New("avc: sei payload truncated")

// ErrInvalidConfig is reported for a PicTimingConfig with a field length
// outside what H.264 allows.
var ErrInvalidConfig = errors.New("avc: invalid pic timing config")

// SEIPayload is one SEI message of a SEI NAL unit. Body is one of
// *PictureTiming, *UserDataUnregistered or *UnknownPayload.
type SEIPayload struct {
	Type uint    `json:"type"`
	Size uint    `json:"size"`
	Body SEIBody `json:"body"`
}

// Name is the H.264 name of the payload type.
func (p SEIPayload) Name() string {
	return sei.SEIType(p.Type).String()
}

// SEIBody is implemented by the SEI payload variants of this package only.
type SEIBody interface {
	seiBody()
}

type UserDataUnregistered struct {
	UUID uuid.UUID `json:"uuid"`
	Data []byte    `json:"data"`
}

func (*UserDataUnregistered) seiBody() {}

// UnknownPayload keeps the bytes of payload types that are not parsed.
type UnknownPayload struct {
	Raw []byte `json:"raw"`
}

func (*UnknownPayload) seiBody() {}

func (u *UnknownPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Len int `json:"len"`
	}{len(u.Raw)})
}

// ParseSEI parses all SEI messages of a SEI NAL unit with the default
// picture timing configuration. It returns nil if n is not a SEI NAL unit or
// is shorter than 2 bytes.
func ParseSEI(n NALUnit) []SEIPayload {
	return ParseSEIWithConfig(n, DefaultPicTimingConfig())
}

// ParseSEIWithConfig is ParseSEI with an explicit picture timing
// configuration. Payloads are delimited by their envelope size; a picture
// timing payload that fails to parse does not stop its siblings from being
// returned.
func ParseSEIWithConfig(n NALUnit, cfg PicTimingConfig) []SEIPayload {
	if !n.IsSEI() || n.Len() < 2 {
		return nil
	}
	rbsp := removeEmulationPrevention(n.data[1:])
	var payloads []SEIPayload
	pos := 0
	for pos < len(rbsp) && rbsp[pos] != rbspStopByte {
		payloadType, next, ok := readSEIValue(rbsp, pos)
		if !ok {
			break
		}
		payloadSize, next, ok := readSEIValue(rbsp, next)
		if !ok {
			break
		}
		pos = next
		if payloadSize > uint(len(rbsp)-pos) {
			break
		}
		end := pos + int(payloadSize)
		payloads = append(payloads, SEIPayload{
			Type: payloadType,
			Size: payloadSize,
			Body: parseSEIBody(payloadType, rbsp[pos:end], cfg),
		})
		pos = end
	}
	return payloads
}

// readSEIValue reads a payload type or size: every 0xFF byte adds 255 and
// the first other byte adds its own value and ends the field.
func readSEIValue(b []byte, pos int) (value uint, next int, ok bool) {
	for pos < len(b) && b[pos] == 0xFF {
		value += 255
		pos++
	}
	if pos >= len(b) {
		return 0, pos, false
	}
	value += uint(b[pos])
	return value, pos + 1, true
}

func parseSEIBody(payloadType uint, b []byte, cfg PicTimingConfig) SEIBody {
	switch payloadType {
	case SEIPicTimingType:
		pt, err := ParsePictureTiming(b, cfg)
		if errors.Is(err, ErrInvalidConfig) {
			break
		}
		if err != nil {
			pt.ClockTimestamps = nil
			pt.Truncated = true
		}
		return &pt
	case SEIUserDataUnregisteredType:
		if len(b) < 16 {
			break
		}
		ud := &UserDataUnregistered{Data: bytes.Clone(b[16:])}
		copy(ud.UUID[:], b[:16])
		return ud
	}
	return &UnknownPayload{Raw: bytes.Clone(b)}
}

// removeEmulationPrevention turns a NAL payload into RBSP by dropping the
// 0x03 of every 00 00 03 sequence.
func removeEmulationPrevention(b []byte) []byte {
	if !bytes.Contains(b, []byte{0x00, 0x00, 0x03}) {
		return b
	}
	r := bits.NewEBSPReader(bytes.NewReader(b))
	out := make([]byte, 0, len(b))
	for {
		c := r.Read(8)
		if r.AccError() != nil {
			return out
		}
		out = append(out, byte(c))
	}
}
