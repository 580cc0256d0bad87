package internal

import (
	"sort"

	"github.com/rubu/stream-timestamp-analyzer/common"
	"github.com/rubu/stream-timestamp-analyzer/internal/timing"
	"golang.org/x/exp/constraints"
)

// StreamStatistics summarizes the timestamps of one video PID of a
// transport stream.
type StreamStatistics struct {
	Type       string  `json:"streamType"`
	Pid        uint16  `json:"pid"`
	FrameRate  float64 `json:"frameRate"`
	TimeStamps []int64 `json:"-"`
	MaxStep    int64   `json:"maxStep,omitempty"`
	MinStep    int64   `json:"minStep,omitempty"`
	AvgStep    int64   `json:"avgStep,omitempty"`
	// RAI-markers
	RAIPTS         []int64 `json:"-"`
	IDRPTS         []int64 `json:"-"`
	RAIGOPDuration int64   `json:"RAIGoPDuration,omitempty"`
	IDRGOPDuration int64   `json:"IDRGoPDuration,omitempty"`
	// Errors
	Errors []string `json:"errors,omitempty"`
}

func (p *JsonPrinter) PrintStatistics(s StreamStatistics, show bool) {
	s.calculateFrameRate(common.TimeScale)
	s.calculateGoPDuration(common.TimeScale)
	p.Print(s, show)
}

func sliceMinMaxAverage[T constraints.Integer | constraints.Float](values []T) (min, max, avg T) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	min = values[0]
	max = values[0]
	var sum T
	for _, number := range values {
		if number < min {
			min = number
		}
		if number > max {
			max = number
		}
		sum += number
	}
	avg = sum / T(len(values))
	return min, max, avg
}

// CalculateSteps returns the differences between consecutive 33-bit
// timestamps.
func CalculateSteps(timestamps []int64) []int64 {
	if len(timestamps) < 2 {
		return nil
	}

	steps := make([]int64, len(timestamps)-1)
	for i := 0; i < len(timestamps)-1; i++ {
		steps[i] = common.SignedPTSDiff(timestamps[i+1], timestamps[i])
	}
	return steps
}

// Calculate frame rate from DTS or PTS steps
func (s *StreamStatistics) calculateFrameRate(timescale int64) {
	if len(s.TimeStamps) < 2 {
		s.Errors = append(s.Errors, "too few timestamps to calculate frame rate")
		return
	}

	steps := CalculateSteps(s.TimeStamps)
	minStep, maxStep, avgStep := sliceMinMaxAverage(steps)
	if maxStep != minStep {
		s.Errors = append(s.Errors, "irregular PTS/DTS steps")
		s.MinStep, s.MaxStep, s.AvgStep = minStep, maxStep, avgStep
	}
	if avgStep == 0 {
		s.Errors = append(s.Errors, "zero average step")
		return
	}
	s.FrameRate = float64(timescale) / float64(avgStep)
}

func (s *StreamStatistics) calculateGoPDuration(timescale int64) {
	if len(s.RAIPTS) < 2 || len(s.IDRPTS) < 2 {
		s.Errors = append(s.Errors, "no GoP duration since less than 2 I-frames")
		return
	}

	_, _, raiGOPStep := sliceMinMaxAverage(CalculateSteps(s.RAIPTS))
	_, _, idrGOPStep := sliceMinMaxAverage(CalculateSteps(s.IDRPTS))
	s.RAIGOPDuration = raiGOPStep / timescale
	s.IDRGOPDuration = idrGOPStep / timescale
}

// TimingStatistics summarizes the records of one analyzed stream. Steps are
// measured between consecutive H.264 SEI records in seconds of stream time.
type TimingStatistics struct {
	StreamURL       string         `json:"streamUrl"`
	Records         int            `json:"records"`
	Sources         map[string]int `json:"sources"`
	FirstStreamTime float64        `json:"firstStreamTime"`
	LastStreamTime  float64        `json:"lastStreamTime"`
	MinStep         float64        `json:"minStep,omitempty"`
	MaxStep         float64        `json:"maxStep,omitempty"`
	AvgStep         float64        `json:"avgStep,omitempty"`
	FirstTimestamp  string         `json:"firstTimestamp,omitempty"`
	LastTimestamp   string         `json:"lastTimestamp,omitempty"`

	seiTimes []float64
}

func (s *TimingStatistics) add(r timing.Record) {
	if s.Records == 0 {
		s.FirstStreamTime = r.StreamTime
	}
	s.Records++
	s.LastStreamTime = r.StreamTime
	s.Sources[r.Source.String()]++
	if sei, ok := r.SEI(); ok {
		s.seiTimes = append(s.seiTimes, r.StreamTime)
		if s.FirstTimestamp == "" {
			s.FirstTimestamp = sei.Text
		}
		s.LastTimestamp = sei.Text
	}
}

func (s *TimingStatistics) calculateSteps() {
	if len(s.seiTimes) < 2 {
		return
	}
	steps := make([]float64, len(s.seiTimes)-1)
	for i := range steps {
		steps[i] = s.seiTimes[i+1] - s.seiTimes[i]
	}
	s.MinStep, s.MaxStep, s.AvgStep = sliceMinMaxAverage(steps)
}

// TimingCollector gathers TimingStatistics per stream URL. It is not safe
// for concurrent use; feed it from a single sink.
type TimingCollector struct {
	streams map[string]*TimingStatistics
}

func NewTimingCollector() *TimingCollector {
	return &TimingCollector{streams: make(map[string]*TimingStatistics)}
}

func (c *TimingCollector) Add(r timing.Record) {
	s, ok := c.streams[r.StreamURL]
	if !ok {
		s = &TimingStatistics{StreamURL: r.StreamURL, Sources: make(map[string]int)}
		c.streams[r.StreamURL] = s
	}
	s.add(r)
}

// Statistics returns the statistics of all streams sorted by URL.
func (c *TimingCollector) Statistics() []TimingStatistics {
	urls := make([]string, 0, len(c.streams))
	for u := range c.streams {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	out := make([]TimingStatistics, 0, len(urls))
	for _, u := range urls {
		s := *c.streams[u]
		s.calculateSteps()
		out = append(out, s)
	}
	return out
}

func (p *JsonPrinter) PrintTimingStatistics(c *TimingCollector, show bool) {
	for _, s := range c.Statistics() {
		p.Print(s, show)
	}
}
