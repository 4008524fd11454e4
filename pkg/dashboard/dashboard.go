// Package dashboard renders the book read model to a terminal.
package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/latency"
	"github.com/fatih/color"
)

const clearScreen = "\033[H\033[2J"

// Source supplies the latest published snapshot, normally a
// memory.SnapshotStore
type Source interface {
	Latest() (core.Snapshot, bool)
}

// Option configures a Renderer
type Option func(*Renderer)

// WithClearScreen redraws each frame from the top of the terminal
func WithClearScreen() Option {
	return func(r *Renderer) { r.clear = true }
}

// WithMaxStops limits how many pending stops are listed
func WithMaxStops(n int) Option {
	return func(r *Renderer) { r.maxStops = n }
}

// Renderer draws frames of depth, pending stops, last trade and latency
type Renderer struct {
	out      io.Writer
	source   Source
	recorder *latency.Recorder
	depth    int
	maxStops int
	clear    bool

	cyan   func(format string, a ...interface{}) string
	red    func(format string, a ...interface{}) string
	green  func(format string, a ...interface{}) string
	yellow func(format string, a ...interface{}) string
}

// NewRenderer creates a Renderer. recorder may be nil.
func NewRenderer(out io.Writer, source Source, recorder *latency.Recorder, depth int, opts ...Option) *Renderer {
	r := &Renderer{
		out:      out,
		source:   source,
		recorder: recorder,
		depth:    depth,
		maxStops: 5,
		cyan:     color.New(color.FgCyan).SprintfFunc(),
		red:      color.New(color.FgRed).SprintfFunc(),
		green:    color.New(color.FgGreen).SprintfFunc(),
		yellow:   color.New(color.FgYellow).SprintfFunc(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run renders a frame every interval until ctx is done, then one last frame
func (r *Renderer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.Render()
		case <-ticker.C:
			if err := r.Render(); err != nil {
				return err
			}
		}
	}
}

// Render draws one frame. The frame is built in memory and written with a
// single call so a concurrent logger cannot interleave with it.
func (r *Renderer) Render() error {
	start := time.Now()
	defer r.recorder.Since(latency.Frame, start)

	var buf bytes.Buffer
	if r.clear {
		buf.WriteString(clearScreen)
	}

	snap, ok := r.source.Latest()
	if !ok {
		fmt.Fprintln(&buf, r.yellow("waiting for first snapshot"))
	} else if err := r.frame(&buf, snap); err != nil {
		return err
	}

	_, err := r.out.Write(buf.Bytes())
	return err
}

func (r *Renderer) frame(buf *bytes.Buffer, snap core.Snapshot) error {
	w := tabwriter.NewWriter(buf, 0, 0, 3, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "%12s|%12s|%8s|%s\n", r.cyan("Price"), r.cyan("Quantity"), r.cyan("Orders"), r.cyan("Side"))
	separator(w)

	asks := snap.Asks
	if r.depth > 0 && len(asks) > r.depth {
		asks = asks[:r.depth]
	}
	// highest ask on top so the spread sits in the middle
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%12s|%12d|%8d|%s\n", asks[i].Price, asks[i].Quantity, asks[i].Orders, r.red("ASK"))
	}
	separator(w)

	bids := snap.Bids
	if r.depth > 0 && len(bids) > r.depth {
		bids = bids[:r.depth]
	}
	for _, level := range bids {
		fmt.Fprintf(w, "%12s|%12d|%8d|%s\n", level.Price, level.Quantity, level.Orders, r.green("BID"))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if spread, ok := snap.Spread(); ok {
		fmt.Fprintf(buf, "spread %s", spread)
		if mid, ok := snap.Mid(); ok {
			fmt.Fprintf(buf, "  mid %s", mid)
		}
		fmt.Fprintln(buf)
	}
	if snap.HasLastTrade {
		fmt.Fprintf(buf, "last trade %s  seq %d\n", r.yellow("%s", snap.LastTrade), snap.Sequence)
	} else {
		fmt.Fprintln(buf, "last trade -")
	}

	fmt.Fprintf(buf, "pending stops %d\n", len(snap.Stops))
	for i, stop := range snap.Stops {
		if i == r.maxStops {
			fmt.Fprintf(buf, "  ... %d more\n", len(snap.Stops)-r.maxStops)
			break
		}
		fmt.Fprintf(buf, "  #%d %s %s %d @ stop %s\n", stop.ID, stop.Side, stop.Type, stop.Quantity, stop.StopPrice)
	}

	if r.recorder != nil {
		for _, kind := range latency.Kinds {
			stats := r.recorder.Stats(kind)
			if stats.Count == 0 {
				continue
			}
			fmt.Fprintln(buf, stats)
		}
	}
	return nil
}

func separator(w io.Writer) {
	fmt.Fprintf(w, "%12s|%12s|%8s|%s\n", "------------", "------------", "--------", "----")
}
