package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/erain9/lob/pkg/otel"

var (
	orderBookMetrics     *OrderBookMetrics
	orderBookMetricsOnce sync.Once
)

// OrderBookMetrics holds metrics for order book operations
type OrderBookMetrics struct {
	ordersTotal    metric.Int64Counter
	tradesTotal    metric.Int64Counter
	tradedQuantity metric.Int64Counter
	activatedStops metric.Int64Counter
	rejectedOrders metric.Int64Counter
}

// GetOrderBookMetrics returns the OrderBookMetrics singleton. Instruments
// that fail to register stay nil and their recordings are dropped.
func GetOrderBookMetrics() *OrderBookMetrics {
	orderBookMetricsOnce.Do(func() {
		meter := GetMeterProvider().Meter(instrumentationName)
		m := &OrderBookMetrics{}

		m.ordersTotal, _ = meter.Int64Counter(
			"orderbook.orders.total",
			metric.WithDescription("Total number of orders processed by operation"),
			metric.WithUnit("{order}"),
		)
		m.tradesTotal, _ = meter.Int64Counter(
			"orderbook.trades.total",
			metric.WithDescription("Total number of trades executed"),
			metric.WithUnit("{trade}"),
		)
		m.tradedQuantity, _ = meter.Int64Counter(
			"orderbook.traded_quantity.total",
			metric.WithDescription("Total quantity executed"),
			metric.WithUnit("{lot}"),
		)
		m.activatedStops, _ = meter.Int64Counter(
			"orderbook.stop_activations.total",
			metric.WithDescription("Total number of stop orders triggered"),
			metric.WithUnit("{order}"),
		)
		m.rejectedOrders, _ = meter.Int64Counter(
			"orderbook.rejections.total",
			metric.WithDescription("Total number of invalid orders rejected"),
			metric.WithUnit("{order}"),
		)

		orderBookMetrics = m
	})
	return orderBookMetrics
}

// RecordDone records the outcome of one book operation
func (m *OrderBookMetrics) RecordDone(ctx context.Context, operation string, trades int, quantity int64, activated int) {
	attrs := metric.WithAttributes(attribute.String("order.type", operation))

	if m.ordersTotal != nil {
		m.ordersTotal.Add(ctx, 1, attrs)
	}
	if m.tradesTotal != nil && trades > 0 {
		m.tradesTotal.Add(ctx, int64(trades), attrs)
	}
	if m.tradedQuantity != nil && quantity > 0 {
		m.tradedQuantity.Add(ctx, quantity, attrs)
	}
	if m.activatedStops != nil && activated > 0 {
		m.activatedStops.Add(ctx, int64(activated))
	}
}

// RecordRejection increments the rejected orders counter
func (m *OrderBookMetrics) RecordRejection(ctx context.Context, operation string) {
	if m.rejectedOrders == nil {
		return
	}
	m.rejectedOrders.Add(ctx, 1, metric.WithAttributes(attribute.String("order.type", operation)))
}
