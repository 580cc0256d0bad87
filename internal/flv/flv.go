// Package flv reads the tags of an FLV byte stream, as served by HTTP-FLV
// origins. Tag parsing is done by joy4's flvio; this package adds header
// validation and maps end of stream to io.EOF or io.ErrUnexpectedEOF.
package flv

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/nareix/joy4/format/flv/flvio"
)

var ErrInvalidHeader = errors.New("flv: invalid file header")

// Header is the FLV file header.
type Header struct {
	HasAudio bool
	HasVideo bool
}

// Tag is one FLV tag with its audio or video header fields parsed. Timestamp
// is in milliseconds with the extension byte applied.
type Tag struct {
	flvio.Tag
	Timestamp int32
}

// IsAVCNALU reports an H.264 video tag carrying AVCC framed NAL units.
func (t Tag) IsAVCNALU() bool {
	return t.Type == flvio.TAG_VIDEO && t.CodecID == flvio.VIDEO_H264 && t.AVCPacketType == flvio.AVC_NALU
}

// Reader reads tags from an FLV stream.
type Reader struct {
	r      *bufio.Reader
	header *Header
	b      []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), b: make([]byte, 256)}
}

// Header reads the file header if it has not been read yet.
func (fr *Reader) Header() (Header, error) {
	if fr.header != nil {
		return *fr.header, nil
	}
	b := fr.b[:flvio.FileHeaderLength]
	if _, err := io.ReadFull(fr.r, b); err != nil {
		return Header{}, fmt.Errorf("reading header: %w", err)
	}
	flags, skip, err := flvio.ParseFileHeader(b)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	// skip covers the header extension and PreviousTagSize0
	if skip < 4 {
		return Header{}, fmt.Errorf("%w: data offset %d", ErrInvalidHeader, skip-4+flvio.FileHeaderLength)
	}
	if _, err := fr.r.Discard(skip); err != nil {
		return Header{}, fmt.Errorf("reading header: %w", err)
	}
	h := Header{
		HasAudio: flags&flvio.FILE_HAS_AUDIO != 0,
		HasVideo: flags&flvio.FILE_HAS_VIDEO != 0,
	}
	fr.header = &h
	return h, nil
}

// ReadTag returns the next tag. It returns io.EOF at a clean end of stream
// and io.ErrUnexpectedEOF when a tag is cut short. Any other error leaves
// the reader out of sync with the tag boundaries.
func (fr *Reader) ReadTag() (Tag, error) {
	if _, err := fr.Header(); err != nil {
		return Tag{}, err
	}
	if _, err := fr.r.Peek(1); err != nil {
		return Tag{}, err
	}
	tag, ts, err := flvio.ReadTag(fr.r, fr.b)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Tag{}, io.ErrUnexpectedEOF
		}
		return Tag{}, err
	}
	return Tag{Tag: tag, Timestamp: ts}, nil
}
