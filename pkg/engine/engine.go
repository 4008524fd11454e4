// Package engine runs the single consumer that applies queued order
// requests to an order book and fans results out to sinks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/latency"
	"github.com/erain9/lob/pkg/logging"
	"github.com/erain9/lob/pkg/messaging"
	"github.com/erain9/lob/pkg/otel"
	"github.com/erain9/lob/pkg/queue"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrEngineStopped is returned by Enqueue once Shutdown has begun
	ErrEngineStopped = errors.New("engine stopped")

	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("engine already started")
)

const (
	defaultSnapshotDepth    = 10
	defaultSnapshotInterval = 250 * time.Millisecond
)

// SnapshotPublisher receives periodic copies of the top of the book
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap core.Snapshot) error
}

// ResultHandler observes every applied request on the consumer goroutine
type ResultHandler func(req Request, done *core.Done, err error)

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMessageSender delivers every non-empty result to sender
func WithMessageSender(sender messaging.MessageSender) Option {
	return func(e *Engine) { e.sender = sender }
}

// WithDispatchBuffer sets how many results may wait for the sender
func WithDispatchBuffer(n int) Option {
	return func(e *Engine) { e.dispatchBuffer = n }
}

// WithSnapshotPublishers adds snapshot publishers
func WithSnapshotPublishers(publishers ...SnapshotPublisher) Option {
	return func(e *Engine) { e.publishers = append(e.publishers, publishers...) }
}

// WithLatencyRecorder records push, wait and match latencies into r
func WithLatencyRecorder(r *latency.Recorder) Option {
	return func(e *Engine) { e.latency = r }
}

// WithSnapshotDepth sets how many levels per side snapshots carry
func WithSnapshotDepth(depth int) Option {
	return func(e *Engine) { e.depth = depth }
}

// WithSnapshotInterval sets the snapshot publishing period
func WithSnapshotInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithResultHandler installs h
func WithResultHandler(h ResultHandler) Option {
	return func(e *Engine) { e.onResult = h }
}

// Engine owns one order book and the only goroutine allowed to mutate it.
// Producers call Enqueue from any goroutine.
type Engine struct {
	book   *core.OrderBook
	queue  *queue.Queue[Request]
	logger zerolog.Logger

	sender         messaging.MessageSender
	dispatchBuffer int
	dispatcher     *messaging.Dispatcher

	publishers []SnapshotPublisher
	depth      int
	interval   time.Duration

	latency  *latency.Recorder
	metrics  *otel.EngineMetrics
	onResult ResultHandler

	mu      sync.RWMutex
	closed  bool
	started bool

	consumerDone chan struct{}
	tickerStop   chan struct{}
	tickerDone   chan struct{}

	processed atomic.Uint64
	rejected  atomic.Uint64
}

// New creates an Engine around book
func New(book *core.OrderBook, opts ...Option) *Engine {
	e := &Engine{
		book:         book,
		queue:        queue.New[Request](),
		logger:       logging.Component("engine"),
		depth:        defaultSnapshotDepth,
		interval:     defaultSnapshotInterval,
		metrics:      otel.GetEngineMetrics(),
		consumerDone: make(chan struct{}),
		tickerStop:   make(chan struct{}),
		tickerDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.sender != nil {
		e.dispatcher = messaging.NewDispatcher(e.sender, e.dispatchBuffer, e.logger)
	}
	return e
}

// Book returns the engine's order book. Callers must treat it as read-only.
func (e *Engine) Book() *core.OrderBook {
	return e.book
}

// Enqueue hands req to the consumer. The reserved sentinel id is rejected.
func (e *Engine) Enqueue(req Request) error {
	if req.isSentinel() {
		return core.ErrReservedOrderID
	}
	if req.Kind == KindSubmit && req.Order == nil {
		return fmt.Errorf("%w: submit without order", core.ErrInvalidOrder)
	}

	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrEngineStopped
	}

	req.enqueued = start
	e.queue.Push(req)

	e.latency.Since(latency.Push, start)
	e.metrics.AddQueueDepth(context.Background(), 1)
	return nil
}

// SubmitOrder enqueues a submit of order
func (e *Engine) SubmitOrder(order *core.Order) error {
	return e.Enqueue(SubmitRequest(order))
}

// CancelOrder enqueues a cancel of orderID
func (e *Engine) CancelOrder(orderID int64) error {
	return e.Enqueue(CancelRequest(orderID))
}

// ModifyOrder enqueues a modify of orderID
func (e *Engine) ModifyOrder(orderID int64, price fpdecimal.Decimal, quantity int64) error {
	return e.Enqueue(ModifyRequest(orderID, price, quantity))
}

// Start runs the consumer and, when publishers are configured, the
// snapshot ticker. ctx only bounds the ticker; the consumer runs until
// Shutdown.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	if e.closed {
		return ErrEngineStopped
	}
	e.started = true

	go func() {
		defer close(e.consumerDone)
		e.consume()
	}()

	if len(e.publishers) > 0 && e.interval > 0 {
		go e.publishLoop(ctx)
	} else {
		close(e.tickerDone)
	}

	e.logger.Info().
		Int("publishers", len(e.publishers)).
		Bool("dispatch", e.dispatcher != nil).
		Dur("snapshot_interval", e.interval).
		Msg("Engine started")
	return nil
}

// Shutdown stops accepting requests, lets the consumer apply everything
// queued before the sentinel, publishes a final snapshot and closes the
// sinks. Producers must have stopped calling Enqueue before Shutdown is
// called; later calls fail with ErrEngineStopped.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	// every accepted request is already queued, so the sentinel is last
	e.queue.Push(stopRequest())

	if !started {
		e.consume()
		close(e.consumerDone)
		close(e.tickerDone)
	}

	select {
	case <-e.consumerDone:
	case <-ctx.Done():
		return fmt.Errorf("waiting for consumer to drain: %w", ctx.Err())
	}

	close(e.tickerStop)
	<-e.tickerDone

	e.publishSnapshot(ctx)

	var err error
	if e.dispatcher != nil {
		if cerr := e.dispatcher.Close(); cerr != nil {
			err = fmt.Errorf("closing message sender: %w", cerr)
		}
	}

	e.logger.Info().
		Uint64("processed", e.processed.Load()).
		Uint64("rejected", e.rejected.Load()).
		Msg("Engine stopped")
	return err
}

// consume applies requests until it pops the sentinel
func (e *Engine) consume() {
	for {
		req := e.queue.Pop()
		if req.isSentinel() {
			return
		}
		e.metrics.AddQueueDepth(context.Background(), -1)
		e.apply(req)
	}
}

func (e *Engine) apply(req Request) {
	wait := time.Since(req.enqueued)
	e.latency.Record(latency.Wait, wait)

	ctx := logging.WithOrderID(context.Background(), req.OrderID)
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanProcessOrder,
		attribute.String(otel.AttributeRequestKind, req.Kind.String()),
		attribute.Int64(otel.AttributeOrderID, req.OrderID),
	)
	defer span.End()

	start := time.Now()

	var (
		done *core.Done
		err  error
	)
	switch req.Kind {
	case KindSubmit:
		done, err = e.book.Submit(ctx, req.Order)
	case KindCancel:
		done = e.book.Cancel(ctx, req.OrderID)
	case KindModify:
		done, err = e.book.Modify(ctx, req.OrderID, req.Price, req.Quantity)
	default:
		err = fmt.Errorf("unknown request kind %d", req.Kind)
	}

	match := time.Since(start)
	e.latency.Record(latency.Match, match)
	e.metrics.RecordRequest(ctx, req.Kind.String(), wait, match)
	e.processed.Add(1)

	if err != nil {
		e.rejected.Add(1)
		e.metrics.IncErrors(ctx, req.Kind.String())
		span.SetStatus(codes.Error, err.Error())

		e.logger.Warn().
			Err(err).
			Int64(string(logging.OrderIDKey), req.OrderID).
			Str("kind", req.Kind.String()).
			Msg("Request rejected")
	}

	if e.onResult != nil {
		e.onResult(req, done, err)
	}

	if err != nil || e.dispatcher == nil {
		return
	}
	if msg := messaging.FromDone(done); msg != nil {
		if derr := e.dispatcher.Dispatch(ctx, msg); derr != nil {
			e.logger.Error().Err(derr).Int64(string(logging.OrderIDKey), req.OrderID).Msg("Failed to dispatch result")
		}
	}
}

func (e *Engine) publishLoop(ctx context.Context) {
	defer close(e.tickerDone)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.tickerStop:
			return
		case <-ticker.C:
			e.publishSnapshot(ctx)
		}
	}
}

func (e *Engine) publishSnapshot(ctx context.Context) {
	if len(e.publishers) == 0 {
		return
	}

	snap := e.book.Snapshot(e.depth)
	for _, p := range e.publishers {
		if err := p.PublishSnapshot(ctx, snap); err != nil {
			e.metrics.IncDispatchFailures(ctx, "snapshot")
			e.logger.Warn().Err(err).Uint64("sequence", snap.Sequence).Msg("Failed to publish snapshot")
		}
	}
}

// Snapshot returns a copy of up to depth levels per side
func (e *Engine) Snapshot(depth int) core.Snapshot {
	return e.book.Snapshot(depth)
}

// QueueLen returns the number of requests waiting for the consumer
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Processed returns how many requests the consumer applied
func (e *Engine) Processed() uint64 {
	return e.processed.Load()
}

// Rejected returns how many applied requests the book rejected
func (e *Engine) Rejected() uint64 {
	return e.rejected.Load()
}
