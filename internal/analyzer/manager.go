package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDuplicateStream = errors.New("stream already added")
	ErrRunning         = errors.New("manager is already running")
)

// Sink receives the records of all streams. Records of one stream arrive
// in the order they were found. Returning an error stops Run.
type Sink func(r timing.Record) error

// Manager runs one worker per stream and fans their records in to a Sink.
type Manager struct {
	opts    Options
	log     *zap.SugaredLogger
	newFunc func(url string, opts Options) (Analyzer, error)

	mu      sync.Mutex
	streams map[string]*stream
	run     *run
}

type stream struct {
	analyzer Analyzer
	cancel   context.CancelFunc
}

type run struct {
	ctx     context.Context
	group   *errgroup.Group
	records chan timing.Record
	active  int
	idle    chan struct{}
	ended   bool
}

func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:    opts,
		log:     opts.Logger,
		newFunc: New,
		streams: make(map[string]*stream),
	}
}

// Add creates the analyzer for url. When Run is in progress the stream
// starts right away.
func (m *Manager) Add(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[url]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStream, url)
	}
	a, err := m.newFunc(url, m.opts)
	if err != nil {
		return err
	}
	s := &stream{analyzer: a}
	m.streams[url] = s
	m.log.Infow("added stream", "url", url)
	if m.run != nil && !m.run.ended {
		m.startLocked(s)
	}
	return nil
}

// Remove stops and forgets the stream for url. It reports whether the
// stream was known.
func (m *Manager) Remove(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[url]
	if !ok {
		return false
	}
	delete(m.streams, url)
	if s.cancel != nil {
		s.cancel()
	}
	m.log.Infow("removed stream", "url", url)
	return true
}

// URLs returns the added streams in sorted order.
func (m *Manager) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make([]string, 0, len(m.streams))
	for u := range m.streams {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Run starts all streams and delivers their records to sink until every
// stream has ended, ctx is done or sink fails. A failing stream is logged
// and does not stop the others. Cancelling ctx is not an error.
func (m *Manager) Run(ctx context.Context, sink Sink) error {
	m.mu.Lock()
	if m.run != nil {
		m.mu.Unlock()
		return ErrRunning
	}
	g, gctx := errgroup.WithContext(ctx)
	r := &run{
		ctx:     gctx,
		group:   g,
		records: make(chan timing.Record, m.opts.QueueSize),
		idle:    make(chan struct{}),
	}
	m.run = r
	for _, s := range m.streams {
		m.startLocked(s)
	}
	if r.active == 0 {
		r.ended = true
		close(r.idle)
	}
	m.mu.Unlock()

	g.Go(func() error {
		for {
			select {
			case rec := <-r.records:
				if err := sink(rec); err != nil {
					return err
				}
			case <-r.idle:
				return drain(r.records, sink)
			case <-gctx.Done():
				return nil
			}
		}
	})
	err := g.Wait()

	m.mu.Lock()
	m.run = nil
	for _, s := range m.streams {
		s.cancel = nil
	}
	m.mu.Unlock()
	return err
}

// drain delivers the records left after all workers finished.
func drain(records <-chan timing.Record, sink Sink) error {
	for {
		select {
		case rec := <-records:
			if err := sink(rec); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// startLocked starts the worker and forwarder of s. m.mu must be held.
func (m *Manager) startLocked(s *stream) {
	r := m.run
	ctx, cancel := context.WithCancel(r.ctx)
	s.cancel = cancel
	r.active++
	queue := make(chan timing.Record, m.opts.QueueSize)
	url := s.analyzer.URL()

	r.group.Go(func() error {
		defer close(queue)
		err := s.analyzer.Analyze(ctx, queue)
		switch {
		case err == nil:
			m.log.Infow("stream ended", "url", url)
		case errors.Is(err, context.Canceled):
			m.log.Infow("stream stopped", "url", url)
		default:
			m.log.Errorw("stream failed", "url", url, "err", err)
		}
		return nil
	})
	r.group.Go(func() error {
		defer m.finished(r, cancel)
		for rec := range queue {
			select {
			case r.records <- rec:
			case <-r.ctx.Done():
				return nil
			}
		}
		return nil
	})
}

func (m *Manager) finished(r *run, cancel context.CancelFunc) {
	cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	r.active--
	if r.active == 0 && !r.ended {
		r.ended = true
		close(r.idle)
	}
}
