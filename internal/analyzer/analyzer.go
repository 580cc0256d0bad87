// Package analyzer pulls live streams and emits the timing records found in
// them. RTMP, HTTP-FLV and HLS streams are supported.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rubu/stream-timestamp-analyzer/internal/avc"
	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"go.uber.org/zap"
)

var ErrUnsupportedURL = errors.New("unsupported stream url")

// Analyzer reads one stream.
type Analyzer interface {
	URL() string
	// Analyze reads the stream until it ends, ctx is done or reading fails
	// and sends the records found to out in packet order. It returns
	// ctx.Err() when cancelled.
	Analyze(ctx context.Context, out chan<- timing.Record) error
}

// Options configures the analyzers created by New. Zero values get
// defaults.
type Options struct {
	Logger       *zap.SugaredLogger
	HTTPClient   *http.Client
	Now          func() time.Time
	PicTiming    *avc.PicTimingConfig
	DialTimeout  time.Duration
	PollInterval time.Duration
	QueueSize    int
}

const (
	defaultDialTimeout  = 10 * time.Second
	defaultPollInterval = time.Second
	defaultQueueSize    = 256
)

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	return o
}

func (o Options) extractor(url string) *timing.Extractor {
	e := timing.NewExtractor(url)
	e.Now = o.Now
	e.PicTiming = o.PicTiming
	return e
}

// Kind is the stream type selected for a URL.
type Kind string

const (
	KindRTMP Kind = "rtmp"
	KindFLV  Kind = "flv"
	KindHLS  Kind = "hls"
)

// KindOf routes a URL: rtmp:// is RTMP, http(s) URLs ending in .flv or
// containing "flv?" are HTTP-FLV and those ending in .m3u8 or containing
// "m3u8?" are HLS.
func KindOf(url string) (Kind, error) {
	isHTTP := strings.HasPrefix(url, "http")
	switch {
	case strings.HasPrefix(url, "rtmp://"):
		return KindRTMP, nil
	case strings.HasSuffix(url, ".flv") || (isHTTP && strings.Contains(url, "flv?")):
		return KindFLV, nil
	case strings.HasSuffix(url, ".m3u8") || (isHTTP && strings.Contains(url, "m3u8?")):
		return KindHLS, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
}

// New returns the analyzer for url.
func New(url string, opts Options) (Analyzer, error) {
	kind, err := KindOf(url)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	log := opts.Logger.With("url", url, "kind", string(kind))
	switch kind {
	case KindRTMP:
		return &rtmpAnalyzer{url: url, log: log, ex: opts.extractor(url), dialTimeout: opts.DialTimeout}, nil
	case KindFLV:
		return &flvAnalyzer{url: url, log: log, ex: opts.extractor(url), client: opts.HTTPClient}, nil
	default:
		return &hlsAnalyzer{url: url, log: log, ex: opts.extractor(url), client: opts.HTTPClient, minPoll: opts.PollInterval}, nil
	}
}

// emit sends records to out unless ctx is done first.
func emit(ctx context.Context, out chan<- timing.Record, records []timing.Record) error {
	for _, r := range records {
		select {
		case out <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func httpGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp, nil
}
