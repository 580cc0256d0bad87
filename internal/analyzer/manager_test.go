package analyzer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"github.com/stretchr/testify/require"
)

// fakeAnalyzer emits n records, closes started and then returns err, or
// blocks until cancelled when block is set.
type fakeAnalyzer struct {
	url     string
	n       int
	err     error
	block   bool
	started chan struct{}
}

func (f *fakeAnalyzer) URL() string { return f.url }

func (f *fakeAnalyzer) Analyze(ctx context.Context, out chan<- timing.Record) error {
	for i := 0; i < f.n; i++ {
		r := timing.Record{StreamURL: f.url, StreamTime: float64(i), Source: timing.SourceH264SEI}
		if err := emit(ctx, out, []timing.Record{r}); err != nil {
			return err
		}
	}
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func newTestManager(fakes ...*fakeAnalyzer) *Manager {
	m := NewManager(Options{QueueSize: 2})
	byURL := map[string]*fakeAnalyzer{}
	for _, f := range fakes {
		byURL[f.url] = f
	}
	m.newFunc = func(url string, opts Options) (Analyzer, error) {
		if f, ok := byURL[url]; ok {
			return f, nil
		}
		return nil, ErrUnsupportedURL
	}
	return m
}

type recorder struct {
	mu      sync.Mutex
	records []timing.Record
}

func (r *recorder) sink(rec timing.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recorder) byURL() map[string][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string][]float64{}
	for _, rec := range r.records {
		out[rec.StreamURL] = append(out[rec.StreamURL], rec.StreamTime)
	}
	return out
}

func TestManagerFansInAllStreams(t *testing.T) {
	m := newTestManager(
		&fakeAnalyzer{url: "a", n: 5},
		&fakeAnalyzer{url: "b", n: 3, err: errors.New("connection reset")},
	)
	require.NoError(t, m.Add("a"))
	require.NoError(t, m.Add("b"))
	require.Equal(t, []string{"a", "b"}, m.URLs())

	rec := &recorder{}
	require.NoError(t, m.Run(context.Background(), rec.sink))
	require.Equal(t, map[string][]float64{
		"a": {0, 1, 2, 3, 4},
		"b": {0, 1, 2},
	}, rec.byURL())
}

func TestManagerAddErrors(t *testing.T) {
	m := newTestManager(&fakeAnalyzer{url: "a"})
	require.NoError(t, m.Add("a"))
	require.ErrorIs(t, m.Add("a"), ErrDuplicateStream)
	require.ErrorIs(t, m.Add("unknown"), ErrUnsupportedURL)
	require.True(t, m.Remove("a"))
	require.False(t, m.Remove("a"))
	require.Empty(t, m.URLs())
}

func TestManagerRunWithoutStreams(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Run(context.Background(), func(timing.Record) error { return nil }))
}

func TestManagerRemoveStopsStream(t *testing.T) {
	started := make(chan struct{})
	m := newTestManager(&fakeAnalyzer{url: "live", n: 1, block: true, started: started})
	require.NoError(t, m.Add("live"))

	done := make(chan error, 1)
	rec := &recorder{}
	go func() { done <- m.Run(context.Background(), rec.sink) }()

	<-started
	require.True(t, m.Remove("live"))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the last stream was removed")
	}
	require.Equal(t, map[string][]float64{"live": {0}}, rec.byURL())
}

func TestManagerAddWhileRunning(t *testing.T) {
	started := make(chan struct{})
	m := newTestManager(
		&fakeAnalyzer{url: "first", block: true, started: started},
		&fakeAnalyzer{url: "second", n: 2},
	)
	require.NoError(t, m.Add("first"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan timing.Record, 4)
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, func(r timing.Record) error {
			got <- r
			return nil
		})
	}()

	<-started
	require.ErrorIs(t, m.Run(ctx, nil), ErrRunning)
	require.NoError(t, m.Add("second"))
	for i := 0; i < 2; i++ {
		select {
		case r := <-got:
			require.Equal(t, "second", r.StreamURL)
		case <-time.After(5 * time.Second):
			t.Fatal("no record from stream added while running")
		}
	}
	cancel()
	require.NoError(t, <-done)
}

func TestManagerSinkErrorStopsRun(t *testing.T) {
	m := newTestManager(
		&fakeAnalyzer{url: "a", n: 10},
		&fakeAnalyzer{url: "b", block: true},
	)
	require.NoError(t, m.Add("a"))
	require.NoError(t, m.Add("b"))
	full := errors.New("sink full")
	err := m.Run(context.Background(), func(timing.Record) error { return full })
	require.ErrorIs(t, err, full)
}
