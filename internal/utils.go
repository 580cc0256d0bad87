package internal

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	slices "golang.org/x/exp/slices"
)

type Options struct {
	MaxNrPictures  int
	MaxRecords     int
	Version        bool
	Indent         bool
	Debug          bool
	ShowNALU       bool
	ShowSEIDetails bool
	ShowStatistics bool
	Sources        string
	PollInterval   time.Duration
}

func CreateFullOptions(max int) Options {
	return Options{MaxNrPictures: max, ShowNALU: true, ShowSEIDetails: true, ShowStatistics: true}
}

type OptionParseFunc func() Options
type RunableFunc func(ctx context.Context, w io.Writer, f io.Reader, o Options) error

// ParseParams parses the options, handles -version and makes sure at least
// one positional argument was given.
func ParseParams(name string, function OptionParseFunc) (o Options, args []string) {
	o = function()
	if o.Version {
		fmt.Printf("%s version %s\n", name, GetVersion())
		os.Exit(0)
	}
	if len(flag.Args()) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	return o, flag.Args()
}

// SignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

// Execute runs function on inFile, or on stdin when inFile is "-".
func Execute(w io.Writer, o Options, inFile string, function RunableFunc) error {
	ctx, cancel := SignalContext()
	defer cancel()

	var f io.Reader
	if inFile == "-" {
		f = os.Stdin
	} else {
		fh, err := os.Open(inFile)
		if err != nil {
			return fmt.Errorf("opening input %w", err)
		}
		defer fh.Close()
		f = fh
	}

	return function(ctx, w, f, o)
}

// ParseSources parses a comma-separated list of source names. An empty
// string selects no filter and returns nil.
func ParseSources(input string) ([]timing.Source, error) {
	var sources []timing.Source
	for _, word := range strings.Split(input, ",") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		s, err := timing.ParseSource(word)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(sources, s) {
			sources = append(sources, s)
		}
	}
	return sources, nil
}

// NewLogger returns a JSON production logger, or a console development
// logger at debug level when debug is set. Both write to stderr.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger %w", err)
	}
	return logger.Sugar(), nil
}
