package marketmaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erain9/lob/pkg/core"
)

// MarketMaker keeps a ladder of quotes in the book, re-centered on the
// current price every UpdateInterval.
type MarketMaker struct {
	cfg          *Config
	logger       *slog.Logger
	orderPlacer  OrderPlacer
	priceFetcher PriceFetcher
	strategy     MarketMakerStrategy
	ids          *core.IDAllocator

	mu           sync.Mutex
	activeOrders map[int64]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMarketMaker creates a new market maker. ids must be shared with every
// other producer feeding the same engine.
func NewMarketMaker(cfg *Config, logger *slog.Logger, orderPlacer OrderPlacer, priceFetcher PriceFetcher, strategy MarketMakerStrategy, ids *core.IDAllocator) (*MarketMaker, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &MarketMaker{
		cfg:          cfg,
		logger:       logger.With("component", "MarketMaker"),
		orderPlacer:  orderPlacer,
		priceFetcher: priceFetcher,
		strategy:     strategy,
		ids:          ids,
		activeOrders: make(map[int64]struct{}),
		stopCh:       make(chan struct{}),
	}, nil
}

// Start places the first ladder and begins the re-quote loop
func (m *MarketMaker) Start(ctx context.Context) error {
	m.logger.Info("Starting market maker",
		"levels", m.cfg.NumLevels,
		"update_interval", m.cfg.UpdateInterval)

	if err := m.updateOrders(ctx); err != nil {
		m.logger.Error("Failed to place initial orders", "error", err)
	}

	m.wg.Add(1)
	go m.run(ctx)

	return nil
}

// Stop gracefully shuts down the market maker and cancels its quotes
func (m *MarketMaker) Stop(ctx context.Context) error {
	m.logger.Info("Stopping market maker")

	m.stopOnce.Do(func() { close(m.stopCh) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Market maker stopped successfully")
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for market maker to stop: %w", ctx.Err())
	}

	if err := m.cancelAllOrders(); err != nil {
		m.logger.Error("Failed to cancel all orders during shutdown", "error", err)
		return fmt.Errorf("failed to cancel orders during shutdown: %w", err)
	}

	return nil
}

// run is the main market making loop
func (m *MarketMaker) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Context cancelled, stopping market maker loop")
			return
		case <-m.stopCh:
			m.logger.Info("Stop signal received, stopping market maker loop")
			return
		case <-ticker.C:
			if err := m.updateOrders(ctx); err != nil {
				m.logger.Error("Failed to update orders", "error", err)
			}
		}
	}
}

// updateOrders replaces the current ladder with one around the latest price
func (m *MarketMaker) updateOrders(ctx context.Context) error {
	price, err := m.priceFetcher.FetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch price: %w", err)
	}

	quotes, err := m.strategy.CalculateOrders(ctx, price)
	if err != nil {
		return fmt.Errorf("failed to calculate orders: %w", err)
	}

	if err := m.cancelAllOrders(); err != nil {
		return fmt.Errorf("failed to cancel existing orders: %w", err)
	}

	for _, q := range quotes {
		order, err := core.NewLimitOrder(m.ids.Next(), m.ids.Timestamp(), q.Side, q.Quantity, q.Price)
		if err != nil {
			m.logger.Error("Failed to build quote", "side", q.Side.String(), "price", q.Price.String(), "error", err)
			continue
		}

		if err := m.orderPlacer.SubmitOrder(order); err != nil {
			m.logger.Error("Failed to place order",
				"order_id", order.ID(),
				"side", q.Side.String(),
				"price", q.Price.String(),
				"error", err)
			continue
		}

		m.mu.Lock()
		m.activeOrders[order.ID()] = struct{}{}
		m.mu.Unlock()

		m.logger.Debug("Successfully placed order",
			"order_id", order.ID(),
			"side", q.Side.String(),
			"price", q.Price.String())
	}

	return nil
}

// cancelAllOrders cancels all tracked quotes. Quotes that already traded
// away are canceled as no-ops.
func (m *MarketMaker) cancelAllOrders() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	for orderID := range m.activeOrders {
		if err := m.orderPlacer.CancelOrder(orderID); err != nil {
			m.logger.Error("Failed to cancel order", "order_id", orderID, "error", err)
			lastErr = err
			continue
		}
		delete(m.activeOrders, orderID)
	}

	return lastErr
}

// ActiveOrders returns how many quotes the market maker believes are live
func (m *MarketMaker) ActiveOrders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeOrders)
}
