// Package traffic generates random order flow for demos and load tests.
package traffic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/erain9/lob/pkg/core"
	"github.com/erain9/lob/pkg/engine"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Submitter accepts requests, normally an *engine.Engine
type Submitter interface {
	Enqueue(req engine.Request) error
}

// Config describes the generated flow
type Config struct {
	Producers         int
	OrdersPerProducer int
	// Rate is the total requests per second across producers, 0 for unlimited
	Rate           float64
	ReferencePrice float64
	Tick           float64
	MaxQuantity    int64
	Seed           int64
}

// Generator runs Producers goroutines, each sending OrdersPerProducer
// requests. About seven in ten are new orders, the rest cancel or modify
// one of the producer's own earlier orders.
type Generator struct {
	cfg     Config
	target  Submitter
	ids     *core.IDAllocator
	limiter *rate.Limiter
	logger  zerolog.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// New creates a Generator. ids must be shared with every other producer
// feeding target.
func New(cfg Config, target Submitter, ids *core.IDAllocator, logger zerolog.Logger) (*Generator, error) {
	switch {
	case cfg.Producers <= 0:
		return nil, fmt.Errorf("producers must be positive, got %d", cfg.Producers)
	case cfg.OrdersPerProducer < 0:
		return nil, fmt.Errorf("orders per producer must not be negative, got %d", cfg.OrdersPerProducer)
	case cfg.ReferencePrice <= 0 || cfg.Tick <= 0:
		return nil, fmt.Errorf("reference price and tick must be positive")
	case cfg.MaxQuantity <= 0:
		return nil, fmt.Errorf("max quantity must be positive, got %d", cfg.MaxQuantity)
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Generator{
		cfg:     cfg,
		target:  target,
		ids:     ids,
		limiter: rate.NewLimiter(limit, cfg.Producers),
		logger:  logger.With().Str("component", "traffic").Logger(),
	}, nil
}

// Run blocks until every producer finished or ctx is done. It returns the
// first error that stopped a producer before its quota was sent.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info().
		Int("producers", g.cfg.Producers).
		Int("orders_per_producer", g.cfg.OrdersPerProducer).
		Float64("rate", g.cfg.Rate).
		Msg("Starting traffic")

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for p := 0; p < g.cfg.Producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			if err := g.produce(ctx, p); err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("producer %d stopped early: %w", p, err) })
			}
		}(p)
	}
	wg.Wait()

	g.logger.Info().
		Uint64("sent", g.sent.Load()).
		Uint64("failed", g.failed.Load()).
		Msg("Traffic finished")

	return firstErr
}

// produce sends this producer's quota. An engine that stopped accepting
// requests ends it quietly; a pacing failure is returned.
func (g *Generator) produce(ctx context.Context, producer int) error {
	p := &producerState{
		cfg: g.cfg,
		rng: rand.New(rand.NewSource(g.cfg.Seed + int64(producer))),
		ids: g.ids,
	}

	for i := 0; i < g.cfg.OrdersPerProducer; i++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := p.next()
		if err != nil {
			g.failed.Add(1)
			g.logger.Error().Err(err).Int("producer", producer).Msg("Failed to generate request")
			continue
		}

		if err := g.target.Enqueue(req); err != nil {
			if errors.Is(err, engine.ErrEngineStopped) {
				return nil
			}
			g.failed.Add(1)
			g.logger.Warn().Err(err).Int("producer", producer).Msg("Request not accepted")
			continue
		}
		g.sent.Add(1)
	}
	return nil
}

// Sent returns how many requests were accepted
func (g *Generator) Sent() uint64 {
	return g.sent.Load()
}

// Failed returns how many requests could not be generated or enqueued
func (g *Generator) Failed() uint64 {
	return g.failed.Load()
}

// producerState is owned by one producer goroutine
type producerState struct {
	cfg Config
	rng *rand.Rand
	ids *core.IDAllocator
	own []int64
}

func (p *producerState) next() (engine.Request, error) {
	roll := p.rng.Float64()
	switch {
	case roll < 0.15 && len(p.own) > 0:
		return engine.CancelRequest(p.takeOwn()), nil
	case roll < 0.30 && len(p.own) > 0:
		id := p.own[p.rng.Intn(len(p.own))]
		return engine.ModifyRequest(id, p.price(8), p.quantity()), nil
	}

	order, err := p.order()
	if err != nil {
		return engine.Request{}, err
	}
	if !order.IsMarketOrder() {
		p.own = append(p.own, order.ID())
	}
	return engine.SubmitRequest(order), nil
}

func (p *producerState) order() (*core.Order, error) {
	id, ts := p.ids.Next(), p.ids.Timestamp()
	side := core.Side(p.rng.Intn(2))
	qty := p.quantity()

	roll := p.rng.Float64()
	switch {
	case roll < 0.60:
		return core.NewLimitOrder(id, ts, side, qty, p.price(10))
	case roll < 0.75:
		return core.NewMarketOrder(id, ts, side, qty)
	case roll < 0.875:
		return core.NewStopOrder(id, ts, side, qty, p.stop(side))
	default:
		stop := p.stop(side)
		limit := stop.Add(p.ticks(2))
		if side == core.Sell {
			limit = stop.Sub(p.ticks(2))
		}
		if limit.LessThanOrEqual(fpdecimal.Zero) {
			limit = stop
		}
		return core.NewStopLimitOrder(id, ts, side, qty, limit, stop)
	}
}

// takeOwn removes and returns a random id of this producer
func (p *producerState) takeOwn() int64 {
	i := p.rng.Intn(len(p.own))
	id := p.own[i]
	p.own[i] = p.own[len(p.own)-1]
	p.own = p.own[:len(p.own)-1]
	return id
}

func (p *producerState) quantity() int64 {
	return 1 + p.rng.Int63n(p.cfg.MaxQuantity)
}

func (p *producerState) ticks(n int) fpdecimal.Decimal {
	return fpdecimal.FromFloat(float64(n) * p.cfg.Tick)
}

// price returns the reference price moved by up to spread ticks, never
// below one tick
func (p *producerState) price(spread int) fpdecimal.Decimal {
	offset := p.rng.Intn(2*spread+1) - spread
	v := p.cfg.ReferencePrice + float64(offset)*p.cfg.Tick
	return fpdecimal.FromFloat(math.Max(v, p.cfg.Tick))
}

// stop places buy stops above and sell stops below the reference price
func (p *producerState) stop(side core.Side) fpdecimal.Decimal {
	offset := float64(1+p.rng.Intn(8)) * p.cfg.Tick
	if side == core.Buy {
		return fpdecimal.FromFloat(p.cfg.ReferencePrice + offset)
	}
	return fpdecimal.FromFloat(math.Max(p.cfg.ReferencePrice-offset, p.cfg.Tick))
}
