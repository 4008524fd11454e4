// Package latency samples pipeline latencies into HDR histograms.
package latency

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Kind names a measured stage of the pipeline
type Kind string

const (
	// Push is the time a producer spends enqueueing a request
	Push Kind = "push"
	// Wait is the time a request spends queued before the consumer pops it
	Wait Kind = "wait"
	// Match is the time the book takes to apply a request
	Match Kind = "match"
	// Frame is the time the dashboard takes to render one frame
	Frame Kind = "frame"
)

// Kinds lists every kind in report order
var Kinds = []Kind{Push, Wait, Match, Frame}

const (
	lowestTrackable  = 1               // 1ns
	highestTrackable = int64(time.Minute)
	significantFigs  = 3
)

// Stats summarizes one histogram
type Stats struct {
	Kind  Kind
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
}

// Recorder is safe for concurrent use
type Recorder struct {
	mu         sync.Mutex
	histograms map[Kind]*hdrhistogram.Histogram
}

// NewRecorder creates a Recorder with one histogram per kind
func NewRecorder() *Recorder {
	r := &Recorder{histograms: make(map[Kind]*hdrhistogram.Histogram, len(Kinds))}
	for _, k := range Kinds {
		r.histograms[k] = hdrhistogram.New(lowestTrackable, highestTrackable, significantFigs)
	}
	return r
}

// Record adds one sample. Samples outside the trackable range are clamped.
func (r *Recorder) Record(kind Kind, d time.Duration) {
	if r == nil {
		return
	}

	v := int64(d)
	if v < lowestTrackable {
		v = lowestTrackable
	}
	if v > highestTrackable {
		v = highestTrackable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.histograms[kind]
	if !ok {
		h = hdrhistogram.New(lowestTrackable, highestTrackable, significantFigs)
		r.histograms[kind] = h
	}
	_ = h.RecordValue(v)
}

// Since records the time elapsed since start
func (r *Recorder) Since(kind Kind, start time.Time) {
	r.Record(kind, time.Since(start))
}

// Stats returns the summary of kind. A kind with no samples has Count 0.
func (r *Recorder) Stats(kind Kind) Stats {
	s := Stats{Kind: kind}
	if r == nil {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.histograms[kind]
	if !ok || h.TotalCount() == 0 {
		return s
	}

	s.Count = h.TotalCount()
	s.Min = time.Duration(h.Min())
	s.Max = time.Duration(h.Max())
	s.Mean = time.Duration(h.Mean())
	s.P50 = time.Duration(h.ValueAtQuantile(50))
	s.P99 = time.Duration(h.ValueAtQuantile(99))
	return s
}

// Reset drops every sample
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.histograms {
		h.Reset()
	}
}

// WriteCSV writes one summary row per kind, durations in nanoseconds
func (r *Recorder) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "count", "min_ns", "max_ns", "mean_ns", "p50_ns", "p99_ns"}); err != nil {
		return fmt.Errorf("failed to write latency header: %w", err)
	}

	for _, k := range Kinds {
		s := r.Stats(k)
		row := []string{
			string(k),
			strconv.FormatInt(s.Count, 10),
			strconv.FormatInt(int64(s.Min), 10),
			strconv.FormatInt(int64(s.Max), 10),
			strconv.FormatInt(int64(s.Mean), 10),
			strconv.FormatInt(int64(s.P50), 10),
			strconv.FormatInt(int64(s.P99), 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write latency row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// String implements fmt.Stringer interface
func (s Stats) String() string {
	return fmt.Sprintf("%-5s n=%d min=%s p50=%s p99=%s max=%s mean=%s",
		s.Kind, s.Count, s.Min, s.P50, s.P99, s.Max, s.Mean)
}
