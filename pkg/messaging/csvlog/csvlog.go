// Package csvlog writes every executed trade as one CSV row.
package csvlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/erain9/lob/pkg/messaging"
)

// Header is the first row of every trade log
var Header = []string{"seq", "time", "taker_order_id", "maker_order_id", "taker_side", "price", "quantity"}

// Sender appends trades to a CSV stream
type Sender struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	now    func() time.Time
}

// Open creates or truncates the file at path and writes the header
func Open(path string) (*Sender, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade log: %w", err)
	}

	s, err := New(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// New writes the header to w and returns a Sender appending to it
func New(w io.Writer) (*Sender, error) {
	s := &Sender{
		w:   csv.NewWriter(w),
		now: time.Now,
	}
	if err := s.w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write trade log header: %w", err)
	}
	s.w.Flush()
	return s, s.w.Error()
}

// SendDoneMessage writes one row per trade in done
func (s *Sender) SendDoneMessage(_ context.Context, done *messaging.DoneMessage) error {
	if len(done.Trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC().Format(time.RFC3339Nano)
	for _, t := range done.Trades {
		row := []string{
			strconv.FormatUint(t.Seq, 10),
			ts,
			strconv.FormatInt(t.TakerOrderID, 10),
			strconv.FormatInt(t.MakerOrderID, 10),
			t.TakerSide,
			t.Price,
			strconv.FormatInt(t.Quantity, 10),
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("failed to write trade %d: %w", t.Seq, err)
		}
	}

	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the underlying file, if any
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}

// Ensure Sender implements MessageSender
var _ messaging.MessageSender = (*Sender)(nil)
