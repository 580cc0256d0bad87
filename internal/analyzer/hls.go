package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/grafov/m3u8"
	"github.com/rubu/stream-timestamp-analyzer/internal/mpegts"
	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"go.uber.org/zap"
)

var errNoVariants = errors.New("master playlist has no variants")

type hlsAnalyzer struct {
	url     string
	log     *zap.SugaredLogger
	ex      *timing.Extractor
	client  *http.Client
	minPoll time.Duration
}

func (a *hlsAnalyzer) URL() string { return a.url }

// Analyze polls the media playlist and reads every media segment once, in
// media sequence order. A playlist whose last segment lies before the
// next expected one is taken as a restart and read from its start. It
// returns when an ended playlist has been read.
func (a *hlsAnalyzer) Analyze(ctx context.Context, out chan<- timing.Record) error {
	mediaURL := a.url
	var next uint64
	started := false
	for {
		pl, plURL, err := a.loadMedia(ctx, mediaURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		mediaURL = plURL
		if started && pl.SeqNo+uint64(pl.Count()) < next {
			a.log.Warnw("media sequence restarted", "seq", pl.SeqNo, "expected", next)
			started = false
		}
		seq := pl.SeqNo
		for _, seg := range pl.Segments {
			if seg == nil {
				continue
			}
			if !started || seq >= next {
				if err := a.readSegment(ctx, plURL, seg, out); err != nil {
					return err
				}
				next = seq + 1
				started = true
			}
			seq++
		}
		if pl.Closed {
			a.log.Infow("playlist ended", "lastSeq", next)
			return nil
		}
		wait := time.Duration(pl.TargetDuration * float64(time.Second))
		if wait < a.minPoll {
			wait = a.minPoll
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// loadMedia fetches playlistURL and, for a master playlist, its first
// variant. It returns the media playlist and its URL.
func (a *hlsAnalyzer) loadMedia(ctx context.Context, playlistURL string) (*m3u8.MediaPlaylist, string, error) {
	pl, listType, err := a.loadPlaylist(ctx, playlistURL)
	if err != nil {
		return nil, "", err
	}
	if listType == m3u8.MEDIA {
		return pl.(*m3u8.MediaPlaylist), playlistURL, nil
	}
	master := pl.(*m3u8.MasterPlaylist)
	if len(master.Variants) == 0 || master.Variants[0] == nil {
		return nil, "", errNoVariants
	}
	variantURL, err := resolve(playlistURL, master.Variants[0].URI)
	if err != nil {
		return nil, "", err
	}
	a.log.Debugw("selected variant", "variant", variantURL, "bandwidth", master.Variants[0].Bandwidth)
	pl, listType, err = a.loadPlaylist(ctx, variantURL)
	if err != nil {
		return nil, "", err
	}
	if listType != m3u8.MEDIA {
		return nil, "", fmt.Errorf("variant %s is not a media playlist", variantURL)
	}
	return pl.(*m3u8.MediaPlaylist), variantURL, nil
}

func (a *hlsAnalyzer) loadPlaylist(ctx context.Context, playlistURL string) (m3u8.Playlist, m3u8.ListType, error) {
	resp, err := httpGet(ctx, a.client, playlistURL)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	pl, listType, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding playlist %s: %w", playlistURL, err)
	}
	return pl, listType, nil
}

// readSegment demuxes one segment. Failures other than cancellation are
// logged and skip the segment.
func (a *hlsAnalyzer) readSegment(ctx context.Context, playlistURL string, seg *m3u8.MediaSegment, out chan<- timing.Record) error {
	segURL, err := resolve(playlistURL, seg.URI)
	if err != nil {
		a.log.Warnw("bad segment uri", "uri", seg.URI, "err", err)
		return nil
	}
	info := &timing.Segment{URI: seg.URI, Duration: seg.Duration}
	if !seg.ProgramDateTime.IsZero() {
		pdt := seg.ProgramDateTime
		info.ProgramDateTime = &pdt
	}
	resp, err := httpGet(ctx, a.client, segURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warnw("fetching segment", "segment", segURL, "err", err)
		return nil
	}
	defer resp.Body.Close()

	n := 0
	err = mpegts.ReadVideo(ctx, resp.Body, func(au mpegts.AccessUnit) error {
		dts, pts := au.DTS, au.PTS
		records := a.ex.Video(timing.VideoPacket{Data: au.Data, DTS: &dts, PTS: &pts, TimeBase: timing.MPEG})
		for i := range records {
			records[i].Segment = info
		}
		n += len(records)
		return emit(ctx, out, records)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warnw("reading segment", "segment", segURL, "err", err)
		return nil
	}
	a.log.Debugw("segment done", "segment", segURL, "records", n)
	return nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
