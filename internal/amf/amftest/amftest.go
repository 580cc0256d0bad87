// Package amftest encodes AMF0 values for building script data fixtures.
package amftest

import (
	"encoding/binary"
	"math"

	"github.com/rubu/stream-timestamp-analyzer/internal/amf"
)

// AppendValue appends the AMF0 encoding of v to b. A nil v is written as
// Null. Strings longer than 65535 bytes are written as long strings.
func AppendValue(b []byte, v amf.Value) []byte {
	switch v := v.(type) {
	case amf.Number:
		b = append(b, amf.NumberMarker)
		return binary.BigEndian.AppendUint64(b, math.Float64bits(float64(v)))
	case amf.Boolean:
		if v {
			return append(b, amf.BooleanMarker, 1)
		}
		return append(b, amf.BooleanMarker, 0)
	case amf.String:
		if len(v) > math.MaxUint16 {
			return AppendValue(b, amf.LongString(v))
		}
		b = append(b, amf.StringMarker)
		return appendName(b, string(v))
	case amf.LongString:
		b = append(b, amf.LongStringMarker)
		b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
		return append(b, v...)
	case *amf.Object:
		b = append(b, amf.ObjectMarker)
		return appendProperties(b, v.Properties)
	case *amf.EcmaArray:
		b = append(b, amf.EcmaArrayMarker)
		b = binary.BigEndian.AppendUint32(b, uint32(len(v.Properties)))
		return appendProperties(b, v.Properties)
	case amf.Undefined:
		return append(b, amf.UndefinedMarker)
	default:
		return append(b, amf.NullMarker)
	}
}

// AppendValues appends the encodings of vs in order, the layout of a data
// message such as ["onFI", {...}].
func AppendValues(b []byte, vs ...amf.Value) []byte {
	for _, v := range vs {
		b = AppendValue(b, v)
	}
	return b
}

func appendName(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

func appendProperties(b []byte, props amf.Properties) []byte {
	for _, p := range props {
		b = appendName(b, p.Name)
		b = AppendValue(b, p.Value)
	}
	b = appendName(b, "")
	return append(b, amf.ObjectEndMarker)
}
