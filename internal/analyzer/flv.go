package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nareix/joy4/format/flv/flvio"
	"github.com/rubu/stream-timestamp-analyzer/internal/flv"
	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"go.uber.org/zap"
)

type flvAnalyzer struct {
	url    string
	log    *zap.SugaredLogger
	ex     *timing.Extractor
	client *http.Client
}

func (a *flvAnalyzer) URL() string { return a.url }

func (a *flvAnalyzer) Analyze(ctx context.Context, out chan<- timing.Record) error {
	resp, err := httpGet(ctx, a.client, a.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	a.log.Infow("connected", "status", resp.Status)
	return a.readTags(ctx, flv.NewReader(resp.Body), out)
}

// readTags ends at the first malformed tag since the stream can not be
// resynchronized after it.
func (a *flvAnalyzer) readTags(ctx context.Context, r *flv.Reader, out chan<- timing.Record) error {
	for {
		tag, err := r.ReadTag()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading tag: %w", err)
		}
		var records []timing.Record
		switch {
		case tag.IsAVCNALU():
			dts := int64(tag.Timestamp)
			pts := dts + int64(tag.CompositionTime)
			records = a.ex.Video(timing.VideoPacket{Data: tag.Data, DTS: &dts, PTS: &pts, TimeBase: timing.Millis})
		case tag.Type == flvio.TAG_SCRIPTDATA:
			pts := int64(tag.Timestamp)
			records = a.ex.Data(timing.DataPacket{Data: tag.Data, PTS: &pts}, timing.Millis)
		}
		if err := emit(ctx, out, records); err != nil {
			return err
		}
	}
}
