// Package flvtest writes FLV streams for tests.
package flvtest

import (
	"bytes"

	"github.com/nareix/joy4/format/flv/flvio"
	"github.com/rubu/stream-timestamp-analyzer/internal/flv"
)

// Stream returns a file header announcing audio and video followed by tags.
func Stream(tags ...flv.Tag) ([]byte, error) {
	var buf bytes.Buffer
	b := make([]byte, 256)
	n := flvio.FillFileHeader(b, flvio.FILE_HAS_AUDIO|flvio.FILE_HAS_VIDEO)
	buf.Write(b[:n])
	for _, t := range tags {
		if err := flvio.WriteTag(&buf, t.Tag, t.Timestamp, b); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func Script(ts int32, data []byte) flv.Tag {
	return flv.Tag{Tag: flvio.Tag{Type: flvio.TAG_SCRIPTDATA, Data: data}, Timestamp: ts}
}

// AVC returns an H.264 key frame tag with AVCC framed NAL units.
func AVC(ts, compositionTime int32, nalus []byte) flv.Tag {
	return flv.Tag{Tag: flvio.Tag{
		Type:            flvio.TAG_VIDEO,
		FrameType:       flvio.FRAME_KEY,
		CodecID:         flvio.VIDEO_H264,
		AVCPacketType:   flvio.AVC_NALU,
		CompositionTime: compositionTime,
		Data:            nalus,
	}, Timestamp: ts}
}

// AVCSequenceHeader returns the tag carrying an AVCDecoderConfigurationRecord.
func AVCSequenceHeader(ts int32, record []byte) flv.Tag {
	return flv.Tag{Tag: flvio.Tag{
		Type:          flvio.TAG_VIDEO,
		FrameType:     flvio.FRAME_KEY,
		CodecID:       flvio.VIDEO_H264,
		AVCPacketType: flvio.AVC_SEQHDR,
		Data:          record,
	}, Timestamp: ts}
}

// AAC returns a raw AAC audio tag.
func AAC(ts int32, data []byte) flv.Tag {
	return flv.Tag{Tag: flvio.Tag{
		Type:          flvio.TAG_AUDIO,
		SoundFormat:   flvio.SOUND_AAC,
		SoundRate:     flvio.SOUND_44Khz,
		SoundSize:     flvio.SOUND_16BIT,
		SoundType:     flvio.SOUND_STEREO,
		AACPacketType: flvio.AAC_RAW,
		Data:          data,
	}, Timestamp: ts}
}
