// Package amf decodes AMF0 values as carried in FLV script-data tags and
// RTMP data messages, and finds the onFI frame-information message.
package amf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// AMF0 type markers.
const (
	NumberMarker     = 0x00
	BooleanMarker    = 0x01
	StringMarker     = 0x02
	ObjectMarker     = 0x03
	NullMarker       = 0x05
	UndefinedMarker  = 0x06
	EcmaArrayMarker  = 0x08
	ObjectEndMarker  = 0x09
	LongStringMarker = 0x0C
)

// OnFIName is the command name of the frame-information message.
const OnFIName = "onFI"

var (
	ErrTruncated   = errors.New("amf0: truncated data")
	ErrInvalidUTF8 = errors.New("amf0: string is not valid UTF-8")
)

// Value is an AMF0 value: Number, Boolean, String, LongString, *Object,
// *EcmaArray, Null or Undefined. DecodeValue returns a nil Value for type
// markers it does not support.
type Value interface {
	amf0()
}

type Number float64

type Boolean bool

type String string

type LongString string

type Null struct{}

type Undefined struct{}

// Property is one name/value pair of an object or ECMA array.
type Property struct {
	Name  string
	Value Value
}

// Properties keeps object members in wire order.
type Properties []Property

// Get returns the value of the first property called name.
func (ps Properties) Get(name string) (Value, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Number returns the named property if it is a Number.
func (ps Properties) Number(name string) (float64, bool) {
	v, ok := ps.Get(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(Number)
	return float64(n), ok
}

func (ps Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Object struct {
	Properties
}

// EcmaArray is an associative array. Its count prefix on the wire is not
// used; the members are those found before the end marker.
type EcmaArray struct {
	Properties
}

func (Number) amf0()     {}
func (Boolean) amf0()    {}
func (String) amf0()     {}
func (LongString) amf0() {}
func (*Object) amf0()    {}
func (*EcmaArray) amf0() {}
func (Null) amf0()       {}
func (Undefined) amf0()  {}

func (Null) MarshalJSON() ([]byte, error)      { return []byte("null"), nil }
func (Undefined) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// OnFI is an onFI message. Data is the value that followed the name.
type OnFI struct {
	Data Value `json:"data"`
}

// DecodeValue decodes the value starting at offset and returns it with the
// offset just after it. For an unsupported type marker it returns a nil
// value and the offset just after the marker, without skipping the value's
// content.
func DecodeValue(b []byte, offset int) (Value, int, error) {
	if offset < 0 || offset >= len(b) {
		return nil, offset, fmt.Errorf("type marker at %d: %w", offset, ErrTruncated)
	}
	marker := b[offset]
	offset++
	switch marker {
	case NumberMarker:
		if len(b)-offset < 8 {
			return nil, offset, fmt.Errorf("number at %d: %w", offset, ErrTruncated)
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(b[offset:]))
		return Number(f), offset + 8, nil
	case BooleanMarker:
		if offset >= len(b) {
			return nil, offset, fmt.Errorf("boolean at %d: %w", offset, ErrTruncated)
		}
		return Boolean(b[offset] != 0), offset + 1, nil
	case StringMarker:
		s, next, err := readString(b, offset)
		if err != nil {
			return nil, offset, err
		}
		return String(s), next, nil
	case LongStringMarker:
		s, next, err := readLongString(b, offset)
		if err != nil {
			return nil, offset, err
		}
		return LongString(s), next, nil
	case ObjectMarker:
		props, next, err := readProperties(b, offset)
		if err != nil {
			return nil, offset, err
		}
		return &Object{Properties: props}, next, nil
	case EcmaArrayMarker:
		if len(b)-offset < 4 {
			return nil, offset, fmt.Errorf("ecma array count at %d: %w", offset, ErrTruncated)
		}
		props, next, err := readProperties(b, offset+4)
		if err != nil {
			return nil, offset, err
		}
		return &EcmaArray{Properties: props}, next, nil
	case NullMarker:
		return Null{}, offset, nil
	case UndefinedMarker:
		return Undefined{}, offset, nil
	default:
		return nil, offset, nil
	}
}

// readProperties reads name/value pairs until an empty name directly
// followed by the object end marker.
func readProperties(b []byte, offset int) (Properties, int, error) {
	props := Properties{}
	for {
		name, next, err := readString(b, offset)
		if err != nil {
			return nil, offset, err
		}
		if name == "" {
			if next >= len(b) {
				return nil, next, fmt.Errorf("object end at %d: %w", next, ErrTruncated)
			}
			if b[next] == ObjectEndMarker {
				return props, next + 1, nil
			}
		}
		val, next, err := DecodeValue(b, next)
		if err != nil {
			return nil, offset, err
		}
		props = append(props, Property{Name: name, Value: val})
		offset = next
	}
}

func readString(b []byte, offset int) (string, int, error) {
	if len(b)-offset < 2 {
		return "", offset, fmt.Errorf("string length at %d: %w", offset, ErrTruncated)
	}
	n := int(binary.BigEndian.Uint16(b[offset:]))
	return readUTF8(b, offset+2, n)
}

func readLongString(b []byte, offset int) (string, int, error) {
	if len(b)-offset < 4 {
		return "", offset, fmt.Errorf("long string length at %d: %w", offset, ErrTruncated)
	}
	n := binary.BigEndian.Uint32(b[offset:])
	if uint64(n) > uint64(len(b)-offset-4) {
		return "", offset, fmt.Errorf("long string at %d: %w", offset, ErrTruncated)
	}
	return readUTF8(b, offset+4, int(n))
}

func readUTF8(b []byte, offset, n int) (string, int, error) {
	if len(b)-offset < n {
		return "", offset, fmt.Errorf("string at %d: %w", offset, ErrTruncated)
	}
	raw := b[offset : offset+n]
	if !utf8.Valid(raw) {
		return "", offset, fmt.Errorf("string at %d: %w", offset, ErrInvalidUTF8)
	}
	return string(raw), offset + n, nil
}

// ExtractOnFI scans the top level of a data message for the string "onFI"
// and returns the value that follows it. Other top-level values are decoded
// and skipped. It reports false when no onFI is found or the data is
// malformed.
func ExtractOnFI(b []byte) (OnFI, bool) {
	offset := 0
	for offset < len(b) {
		if b[offset] != StringMarker {
			_, next, err := DecodeValue(b, offset)
			if err != nil {
				return OnFI{}, false
			}
			offset = next
			continue
		}
		name, next, err := readString(b, offset+1)
		if err != nil {
			return OnFI{}, false
		}
		if name == OnFIName {
			data, _, err := DecodeValue(b, next)
			if err != nil {
				return OnFI{}, false
			}
			return OnFI{Data: data}, true
		}
		offset = next
	}
	return OnFI{}, false
}
