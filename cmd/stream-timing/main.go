package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rubu/stream-timestamp-analyzer/internal"
	"github.com/rubu/stream-timestamp-analyzer/internal/analyzer"
	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"go.uber.org/zap"
	slices "golang.org/x/exp/slices"
)

var usg = `Usage of %s:

%s pulls RTMP, HTTP-FLV and HLS streams and prints the timestamps found in
them (H.264 SEI picture timing, AMF onFI) as JSON lines, one record per line.
`

func parseOptions() internal.Options {
	opts := internal.Options{}
	flag.BoolVar(&opts.Debug, "debug", false, "debug logging to stderr")
	flag.BoolVar(&opts.Indent, "indent", false, "indent JSON output")
	flag.IntVar(&opts.MaxRecords, "max", 0, "stop after max records (0 = unlimited)")
	flag.StringVar(&opts.Sources, "sources", "", "comma-separated sources to print: h264_sei,amf_onfi,burned_timecode (default all)")
	flag.BoolVar(&opts.ShowStatistics, "stats", false, "print per-stream statistics on exit")
	flag.DurationVar(&opts.PollInterval, "poll", time.Second, "minimum HLS playlist poll interval")
	flag.BoolVar(&opts.Version, "version", false, "print version")

	flag.Usage = func() {
		parts := strings.Split(os.Args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] url [url ...] with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

var errMaxRecords = errors.New("max records reached")

// run analyzes all urls until they end, ctx is done or o.MaxRecords records
// have been printed to w.
func run(ctx context.Context, w io.Writer, logger *zap.SugaredLogger, o internal.Options, urls []string) error {
	sources, err := internal.ParseSources(o.Sources)
	if err != nil {
		return err
	}
	m := analyzer.NewManager(analyzer.Options{Logger: logger, PollInterval: o.PollInterval})
	for _, u := range urls {
		if err := m.Add(u); err != nil {
			return err
		}
	}

	jp := &internal.JsonPrinter{W: w, Indent: o.Indent}
	stats := internal.NewTimingCollector()
	err = m.Run(ctx, func(r timing.Record) error {
		if len(sources) > 0 && !slices.Contains(sources, r.Source) {
			return nil
		}
		stats.Add(r)
		jp.Print(r, true)
		if err := jp.Error(); err != nil {
			return err
		}
		if o.MaxRecords > 0 && jp.Count() >= o.MaxRecords {
			return errMaxRecords
		}
		return nil
	})
	if err != nil && !errors.Is(err, errMaxRecords) {
		return err
	}
	logger.Debugw("done", "records", jp.Count())

	jp.PrintTimingStatistics(stats, o.ShowStatistics)
	return jp.Error()
}

func main() {
	o, urls := internal.ParseParams("stream-timing", parseOptions)
	logger, err := internal.NewLogger(o.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := internal.SignalContext()
	defer cancel()
	if err := run(ctx, os.Stdout, logger, o, urls); err != nil {
		logger.Errorw("analysis failed", "err", err)
		cancel()
		_ = logger.Sync()
		os.Exit(1)
	}
}
