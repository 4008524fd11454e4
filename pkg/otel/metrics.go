package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	engineMetrics     *EngineMetrics
	engineMetricsOnce sync.Once
)

// EngineMetrics holds the instruments for the ingestion pipeline
type EngineMetrics struct {
	// Latency metrics
	matchLatency metric.Float64Histogram
	queueWait    metric.Float64Histogram

	// Traffic metrics
	requestsTotal metric.Int64Counter
	queueDepth    metric.Int64UpDownCounter

	// Error metrics
	errorTotal metric.Int64Counter

	// Sink metrics
	dispatchDropped metric.Int64Counter
}

// NewEngineMetrics creates a new EngineMetrics instance
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	matchLatency, err := meter.Float64Histogram(
		"engine.match.duration",
		metric.WithDescription("Time (seconds) the book spent on one request"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queueWait, err := meter.Float64Histogram(
		"engine.queue.wait",
		metric.WithDescription("Time (seconds) a request spent in the ingestion queue"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"engine.requests.total",
		metric.WithDescription("Total number of requests applied to the book"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64UpDownCounter(
		"engine.queue.depth",
		metric.WithDescription("Number of requests waiting in the ingestion queue"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorTotal, err := meter.Int64Counter(
		"engine.errors.total",
		metric.WithDescription("Total number of rejected requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDropped, err := meter.Int64Counter(
		"engine.dispatch.failures.total",
		metric.WithDescription("Total number of results a sink failed to accept"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		matchLatency:    matchLatency,
		queueWait:       queueWait,
		requestsTotal:   requestsTotal,
		queueDepth:      queueDepth,
		errorTotal:      errorTotal,
		dispatchDropped: dispatchDropped,
	}, nil
}

// GetEngineMetrics returns a singleton instance of EngineMetrics built on
// the configured meter provider. It returns nil if registration failed.
func GetEngineMetrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		m, err := NewEngineMetrics(GetMeterProvider().Meter(instrumentationName))
		if err == nil {
			engineMetrics = m
		}
	})
	return engineMetrics
}

// RecordRequest records one applied request and how long it took
func (m *EngineMetrics) RecordRequest(ctx context.Context, kind string, wait, match time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttributeRequestKind, kind))
	m.requestsTotal.Add(ctx, 1, attrs)
	m.queueWait.Record(ctx, wait.Seconds(), attrs)
	m.matchLatency.Record(ctx, match.Seconds(), attrs)
}

// AddQueueDepth moves the queue depth gauge by delta
func (m *EngineMetrics) AddQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta)
}

// IncErrors increments the error counter
func (m *EngineMetrics) IncErrors(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeRequestKind, kind)))
}

// IncDispatchFailures counts a result a sink failed to accept
func (m *EngineMetrics) IncDispatchFailures(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.dispatchDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
