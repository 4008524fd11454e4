package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erain9/lob/pkg/otel"
	"github.com/rs/zerolog"
)

// ErrDispatcherClosed is returned by Dispatch after Close
var ErrDispatcherClosed = errors.New("dispatcher closed")

const (
	defaultDispatchBuffer = 1024
	sendTimeout           = 5 * time.Second
)

// Dispatcher delivers messages to a sender from its own goroutine so the
// caller never waits on sink I/O unless the buffer is full.
type Dispatcher struct {
	sender  MessageSender
	logger  zerolog.Logger
	metrics *otel.EngineMetrics

	mu     sync.RWMutex
	closed bool
	ch     chan *DoneMessage
	done   chan struct{}
}

// NewDispatcher starts a Dispatcher in front of sender. A buffer of zero
// or less uses the default size.
func NewDispatcher(sender MessageSender, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultDispatchBuffer
	}

	d := &Dispatcher{
		sender:  sender,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		metrics: otel.GetEngineMetrics(),
		ch:      make(chan *DoneMessage, buffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for msg := range d.ch {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := d.sender.SendDoneMessage(ctx, msg); err != nil {
			d.logger.Error().Err(err).Int64("order_id", msg.OrderID).Msg("Failed to deliver done message")
			d.metrics.IncDispatchFailures(ctx, "dispatcher")
		}
		cancel()
	}
}

// Dispatch queues msg for delivery. It blocks while the buffer is full.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *DoneMessage) error {
	if msg == nil {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of messages waiting for delivery
func (d *Dispatcher) Pending() int {
	return len(d.ch)
}

// Close delivers every queued message, then closes the sender.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	<-d.done
	return d.sender.Close()
}
