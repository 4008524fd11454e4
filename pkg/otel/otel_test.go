package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartOrderSpanWithoutProvider(t *testing.T) {
	ResetForTesting()

	ctx, span := StartOrderSpan(context.Background(), SpanSubmitOrder, attribute.Int64(AttributeOrderID, 1))
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	AddAttributes(span, attribute.Int(AttributeTradeCount, 0))
	span.End()
}

func TestStartOrderSpanRecords(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	InitForTesting(tp.Tracer("test"))
	defer ResetForTesting()

	_, span := StartOrderSpan(context.Background(), SpanMatchOrder, attribute.Int64(AttributeOrderID, 7))
	AddAttributes(span, attribute.Int(AttributeTradeCount, 2))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanMatchOrder, ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int64(AttributeOrderID, 7))
	assert.Contains(t, ended[0].Attributes(), attribute.Int(AttributeTradeCount, 2))
}

func TestInitWithoutCollector(t *testing.T) {
	cleanup, err := Init(Config{})
	require.NoError(t, err)
	cleanup()
}

func TestMetricsRecordWithoutProvider(t *testing.T) {
	ctx := context.Background()

	book := GetOrderBookMetrics()
	require.NotNil(t, book)
	book.RecordDone(ctx, "LIMIT", 2, 10, 1)
	book.RecordRejection(ctx, "MARKET")

	engine := GetEngineMetrics()
	engine.RecordRequest(ctx, "submit", time.Millisecond, time.Microsecond)
	engine.AddQueueDepth(ctx, 1)
	engine.IncErrors(ctx, "submit")
	engine.IncDispatchFailures(ctx, "kafka")

	var missing *EngineMetrics
	missing.AddQueueDepth(ctx, 1)
}
